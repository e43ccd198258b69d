package billing

import (
	"github.com/shopspring/decimal"

	"github.com/dmorneau/ledgerbook/internal/domain/entity"
)

// LineRow is one invoice item prepared for rendering.
type LineRow struct {
	Description     string          `json:"description"`
	DateRange       string          `json:"date_range"`
	Quantity        float64         `json:"quantity"`
	Unit            string          `json:"unit"`
	Rate            decimal.Decimal `json:"rate"`
	Amount          decimal.Decimal `json:"amount"`
	PerDiemQuantity int             `json:"per_diem_quantity"`
	PerDiemAmount   decimal.Decimal `json:"per_diem_amount"`
	LineTotal       decimal.Decimal `json:"line_total"`
	Approver        string          `json:"approver,omitempty"`
}

// ExpenseRow is one attached expense prepared for rendering.
type ExpenseRow struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CADAmount   decimal.Decimal `json:"cad_amount"`
}

// RenderPayload is everything a client needs to lay out a printable
// invoice: header parties, line rows with per-diems folded in, attached
// expense rows and the totals block.
type RenderPayload struct {
	InvoiceNumber  string             `json:"invoice_number"`
	Date           string             `json:"date"`
	Status         string             `json:"status"`
	From           entity.UserProfile `json:"from"`
	BillTo         *entity.Company    `json:"bill_to,omitempty"`
	Lines          []LineRow          `json:"lines"`
	Expenses       []ExpenseRow       `json:"expenses"`
	Totals         Totals             `json:"totals"`
	HSTRatePercent decimal.Decimal    `json:"hst_rate_percent"`
	Notes          string             `json:"notes,omitempty"`
}

// RenderPayload assembles the printable view of an invoice. A missing
// company leaves BillTo nil; rows and totals still render.
func (e *Engine) RenderPayload(inv *entity.Invoice, company *entity.Company, profile entity.UserProfile, expenses []*entity.Expense) RenderPayload {
	lines := make([]LineRow, 0, len(inv.Items))
	for i := range inv.Items {
		item := &inv.Items[i]
		pd := e.PerDiemAmount(item, company)
		lines = append(lines, LineRow{
			Description:     item.Description,
			DateRange:       item.DateRange(),
			Quantity:        item.Quantity,
			Unit:            item.Unit,
			Rate:            item.Rate,
			Amount:          item.Amount,
			PerDiemQuantity: item.PerDiemQuantity,
			PerDiemAmount:   pd,
			LineTotal:       item.Amount.Add(pd),
			Approver:        item.Approver,
		})
	}

	rows := make([]ExpenseRow, 0, len(expenses))
	for _, exp := range expenses {
		rows = append(rows, ExpenseRow{
			Date:        exp.Date,
			Description: exp.Description,
			Category:    exp.Category,
			Amount:      exp.Amount,
			Currency:    exp.Currency,
			CADAmount:   exp.CADAmount,
		})
	}

	return RenderPayload{
		InvoiceNumber:  inv.NumberString(),
		Date:           inv.Date,
		Status:         inv.Status,
		From:           profile,
		BillTo:         company,
		Lines:          lines,
		Expenses:       rows,
		Totals:         e.ComputeTotals(inv, company, expenses),
		HSTRatePercent: inv.HSTRate.Mul(decimal.NewFromInt(100)),
		Notes:          inv.Notes,
	}
}
