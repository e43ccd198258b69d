// Package ingest turns scanned receipts and invoice documents into ledger
// entities. Extraction itself is delegated to a vision collaborator behind
// the Extractor interface; everything in this package is the normalization
// that happens after extraction, and is testable with a fake extractor.
package ingest

import (
	"context"

	"github.com/shopspring/decimal"
)

// ExtractedExpense is one expense candidate pulled from a document.
type ExtractedExpense struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
}

// ReceiptExtraction is the candidate produced from a single receipt image.
type ReceiptExtraction struct {
	ExtractedExpense
}

// ExtractedInvoiceItem is one line-item candidate from an invoice document.
type ExtractedInvoiceItem struct {
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date"`
	Description     string          `json:"description"`
	Quantity        float64         `json:"quantity"`
	RateDescription string          `json:"rate_description"`
	Amount          decimal.Decimal `json:"amount"`
	Approver        string          `json:"approver"`
}

// InvoiceDocExtraction is the candidate produced from a full invoice
// document: the billing party, line items, an aggregate per-diem count and
// any receipts embedded in the document.
type InvoiceDocExtraction struct {
	CompanyName     string                 `json:"company_name"`
	CompanyAddress  string                 `json:"company_address"`
	InvoiceNumber   int                    `json:"invoice_number"`
	Date            string                 `json:"date"`
	Items           []ExtractedInvoiceItem `json:"items"`
	PerDiemQuantity int                    `json:"per_diem_quantity"`
	Expenses        []ExtractedExpense     `json:"expenses"`
	Notes           string                 `json:"notes"`
}

// Extractor is the vision collaborator. Implementations receive raw file
// bytes plus a MIME type and return structured candidates. ExtractReceipt
// is constrained to choose a category from allowedCategories.
type Extractor interface {
	ExtractReceipt(ctx context.Context, data []byte, mimeType string, allowedCategories []string) (*ReceiptExtraction, error)
	ExtractInvoiceDocument(ctx context.Context, data []byte, mimeType string) (*InvoiceDocExtraction, error)
}
