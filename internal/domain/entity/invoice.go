package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceItem is one billable line inside an invoice. Items are owned by
// their invoice and never referenced from anywhere else. Amount is always
// recomputed as Quantity * Rate on save; input amounts are not trusted.
type InvoiceItem struct {
	ID              string          `json:"id"`
	StartDate       string          `json:"start_date"`
	EndDate         *string         `json:"end_date,omitempty"`
	Description     string          `json:"description"`
	Quantity        float64         `json:"quantity"`
	Unit            string          `json:"unit"`
	Rate            decimal.Decimal `json:"rate"`
	Amount          decimal.Decimal `json:"amount"`
	PerDiemQuantity int             `json:"per_diem_quantity"`
	PerDiemCurrency string          `json:"per_diem_currency"`
	Approver        string          `json:"approver"`
}

// SpanDays returns the inclusive day count between StartDate and EndDate,
// or 0 when the range is absent or invalid. Single-day items omit EndDate.
func (it *InvoiceItem) SpanDays() int {
	if it.StartDate == "" || it.EndDate == nil || *it.EndDate == "" {
		return 0
	}
	start, err := time.Parse(DateLayout, it.StartDate)
	if err != nil {
		return 0
	}
	end, err := time.Parse(DateLayout, *it.EndDate)
	if err != nil || end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// DateRange renders the item's dates for display, "start to end" or just
// the start date for single-day items.
func (it *InvoiceItem) DateRange() string {
	if it.EndDate != nil && *it.EndDate != "" {
		return it.StartDate + " to " + *it.EndDate
	}
	return it.StartDate
}

// Invoice is a bill sent to a company. Items are owned; attached expenses
// are referenced by id only and resolved through the store at read time.
type Invoice struct {
	ID                 string          `json:"id"`
	InvoiceNumber      int             `json:"invoice_number"`
	CompanyID          string          `json:"company_id"`
	Date               string          `json:"date"`
	Items              []InvoiceItem   `json:"items"`
	AttachedExpenseIDs []string        `json:"attached_expense_ids"`
	Notes              string          `json:"notes"`
	Status             string          `json:"status"`
	HSTRate            decimal.Decimal `json:"hst_rate"`
}

// NumberString renders the invoice number zero-padded for display,
// e.g. "007".
func (inv *Invoice) NumberString() string {
	return fmt.Sprintf("%03d", inv.InvoiceNumber)
}

// HasExpense reports whether the given expense id is attached.
func (inv *Invoice) HasExpense(expenseID string) bool {
	for _, id := range inv.AttachedExpenseIDs {
		if id == expenseID {
			return true
		}
	}
	return false
}
