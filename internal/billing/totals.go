// Package billing computes invoice money: line amounts, per-diem totals,
// HST and the grand total. All arithmetic is exact decimal; rounding is
// a presentation concern left to renderers.
package billing

import (
	"github.com/shopspring/decimal"

	"github.com/dmorneau/ledgerbook/internal/currency"
	"github.com/dmorneau/ledgerbook/internal/domain/entity"
)

// Totals is the full money breakdown of an invoice.
type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	PerDiemTotal  decimal.Decimal `json:"per_diem_total"`
	Tax           decimal.Decimal `json:"tax"`
	ExpensesTotal decimal.Decimal `json:"expenses_total"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
}

// Engine computes invoice totals. Per-diem amounts entered in a foreign
// currency are converted to CAD through the injected converter.
type Engine struct {
	converter *currency.Converter
}

// NewEngine creates a totals engine.
func NewEngine(converter *currency.Converter) *Engine {
	return &Engine{converter: converter}
}

// PerDiemAmount returns the CAD per-diem amount for one item: the item's
// per-diem quantity times the company's per-diem day rate, converted from
// the item's per-diem currency. Zero when the company is unknown.
func (e *Engine) PerDiemAmount(item *entity.InvoiceItem, company *entity.Company) decimal.Decimal {
	if company == nil || item.PerDiemQuantity <= 0 {
		return decimal.Zero
	}
	raw := company.DefaultPerDiem.Mul(decimal.NewFromInt(int64(item.PerDiemQuantity)))
	return e.converter.ToCAD(raw, item.PerDiemCurrency, item.StartDate)
}

// LineTotal returns an item's work amount plus its CAD per-diem amount.
func (e *Engine) LineTotal(item *entity.InvoiceItem, company *entity.Company) decimal.Decimal {
	return item.Amount.Add(e.PerDiemAmount(item, company))
}

// ComputeTotals computes the full breakdown for an invoice. The attached
// expenses are passed resolved; their CAD amounts were booked when the
// expenses were recorded, so no conversion happens here.
//
// Tax applies to work and per-diems. Expenses are passed through at cost,
// untaxed: receipts already carry whatever tax was paid.
func (e *Engine) ComputeTotals(inv *entity.Invoice, company *entity.Company, expenses []*entity.Expense) Totals {
	subtotal := decimal.Zero
	perDiem := decimal.Zero
	for i := range inv.Items {
		item := &inv.Items[i]
		subtotal = subtotal.Add(item.Amount)
		perDiem = perDiem.Add(e.PerDiemAmount(item, company))
	}

	tax := subtotal.Add(perDiem).Mul(inv.HSTRate)

	expensesTotal := decimal.Zero
	for _, exp := range expenses {
		expensesTotal = expensesTotal.Add(exp.CADAmount)
	}

	return Totals{
		Subtotal:      subtotal,
		PerDiemTotal:  perDiem,
		Tax:           tax,
		ExpensesTotal: expensesTotal,
		GrandTotal:    subtotal.Add(perDiem).Add(tax).Add(expensesTotal),
	}
}
