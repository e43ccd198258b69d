package entity

// Invoice status labels. The lifecycle is a loose Draft -> Sent -> Paid
// progression; any transition is allowed.
const (
	StatusDraft = "Draft"
	StatusSent  = "Sent"
	StatusPaid  = "Paid"
)

// Line item billing units.
const (
	UnitDay     = "Day"
	UnitHalfDay = "Half-Day"
	UnitHourly  = "Hourly"
)

// Per-diem currencies. Per-diem rates are entered in CAD; a USD per-diem
// line is scaled up by the USD rate at computation time.
const (
	CurrencyCAD = "CAD"
	CurrencyUSD = "USD"
)

// DateLayout is the wire format for all entity dates (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// ValidStatus reports whether s is a known invoice status.
func ValidStatus(s string) bool {
	return s == StatusDraft || s == StatusSent || s == StatusPaid
}

// ValidUnit reports whether u is a known billing unit.
func ValidUnit(u string) bool {
	return u == UnitDay || u == UnitHalfDay || u == UnitHourly
}
