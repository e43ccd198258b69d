package entity

import "github.com/shopspring/decimal"

// Expense is a reimbursable or personal cost. CADAmount is a booked value:
// it is converted from Amount/Currency once, when the expense is created or
// edited, and never recomputed on read. BilledToInvoiceID is a weak
// reference; when set, the referenced invoice must list this expense in its
// AttachedExpenseIDs (the store maintains the bidirectional link).
type Expense struct {
	ID                string          `json:"id"`
	Date              string          `json:"date"`
	Description       string          `json:"description"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	CADAmount         decimal.Decimal `json:"cad_amount"`
	Category          string          `json:"category"`
	ReceiptURL        string          `json:"receipt_url,omitempty"`
	IsBillable        bool            `json:"is_billable"`
	BilledToInvoiceID string          `json:"billed_to_invoice_id,omitempty"`
}

// Attached reports whether the expense is billed to an invoice.
func (e *Expense) Attached() bool {
	return e.BilledToInvoiceID != ""
}
