// Package reports computes dashboard rollups over the ledger. All queries
// are pure read projections recomputed on demand; nothing here is cached.
package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmorneau/ledgerbook/internal/billing"
	"github.com/dmorneau/ledgerbook/internal/domain/entity"
	"github.com/dmorneau/ledgerbook/internal/ledger"
)

// Service answers reporting queries against the store.
type Service struct {
	store  *ledger.Store
	engine *billing.Engine
}

// NewService creates a reporting service.
func NewService(store *ledger.Store, engine *billing.Engine) *Service {
	return &Service{store: store, engine: engine}
}

// Summary is the headline dashboard rollup. Income figures count Paid
// invoices only; the billed-expense total counts expenses attached to
// those Paid invoices; the unbilled total counts every expense that no
// invoice has claimed, billable or not.
type Summary struct {
	TotalIncome         decimal.Decimal `json:"total_income"`
	TotalPerDiems       decimal.Decimal `json:"total_per_diems"`
	TotalTax            decimal.Decimal `json:"total_tax"`
	TotalExpensesBilled decimal.Decimal `json:"total_expenses_billed"`
	UnbilledExpenses    decimal.Decimal `json:"unbilled_expenses"`
	PaidInvoiceCount    int             `json:"paid_invoice_count"`
	PendingInvoiceCount int             `json:"pending_invoice_count"`
}

// Summary computes the headline rollup.
func (s *Service) Summary() Summary {
	out := Summary{
		TotalIncome:         decimal.Zero,
		TotalPerDiems:       decimal.Zero,
		TotalTax:            decimal.Zero,
		TotalExpensesBilled: decimal.Zero,
		UnbilledExpenses:    decimal.Zero,
	}

	paid := make(map[string]bool)
	for _, inv := range s.store.ListInvoices() {
		if inv.Status != entity.StatusPaid {
			if inv.Status == entity.StatusSent {
				out.PendingInvoiceCount++
			}
			continue
		}
		out.PaidInvoiceCount++
		paid[inv.ID] = true

		company := s.store.GetCompany(inv.CompanyID)
		totals := s.engine.ComputeTotals(inv, company, nil)
		out.TotalIncome = out.TotalIncome.Add(totals.Subtotal)
		out.TotalPerDiems = out.TotalPerDiems.Add(totals.PerDiemTotal)
		out.TotalTax = out.TotalTax.Add(totals.Tax)
	}

	for _, e := range s.store.ListExpenses() {
		switch {
		case e.BilledToInvoiceID == "":
			out.UnbilledExpenses = out.UnbilledExpenses.Add(e.CADAmount)
		case paid[e.BilledToInvoiceID]:
			out.TotalExpensesBilled = out.TotalExpensesBilled.Add(e.CADAmount)
		}
	}

	return out
}

// CategoryTotal is one slice of the category breakdown.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// ExpensesByCategory sums CAD amounts per category across every expense,
// billed or not. Categories follow the store's insertion order; expenses
// tagged with a category no longer in the set are appended after.
func (s *Service) ExpensesByCategory() []CategoryTotal {
	totals := make(map[string]decimal.Decimal)
	var order []string
	seen := make(map[string]bool)

	for _, c := range s.store.Categories() {
		order = append(order, c)
		seen[c] = true
		totals[c] = decimal.Zero
	}
	for _, e := range s.store.ListExpenses() {
		if !seen[e.Category] {
			order = append(order, e.Category)
			seen[e.Category] = true
			totals[e.Category] = decimal.Zero
		}
		totals[e.Category] = totals[e.Category].Add(e.CADAmount)
	}

	out := make([]CategoryTotal, 0, len(order))
	for _, c := range order {
		if totals[c].IsZero() {
			continue
		}
		out = append(out, CategoryTotal{Category: c, Total: totals[c]})
	}
	return out
}

// MonthlyPoint is one month of the income/expense series.
type MonthlyPoint struct {
	Month    string          `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

// MonthlySeries groups Paid-invoice subtotals and unattached-expense CAD
// amounts by calendar month name, in calendar order Jan..Dec. Months with
// no activity are omitted. Dates that fail to parse are skipped.
func (s *Service) MonthlySeries() []MonthlyPoint {
	income := make(map[time.Month]decimal.Decimal)
	expenses := make(map[time.Month]decimal.Decimal)

	for _, inv := range s.store.ListInvoices() {
		if inv.Status != entity.StatusPaid {
			continue
		}
		month, ok := monthOf(inv.Date)
		if !ok {
			continue
		}
		subtotal := decimal.Zero
		for i := range inv.Items {
			subtotal = subtotal.Add(inv.Items[i].Amount)
		}
		income[month] = monthTotal(income, month).Add(subtotal)
	}

	for _, e := range s.store.ListExpenses() {
		if e.BilledToInvoiceID != "" {
			continue
		}
		month, ok := monthOf(e.Date)
		if !ok {
			continue
		}
		expenses[month] = monthTotal(expenses, month).Add(e.CADAmount)
	}

	var out []MonthlyPoint
	for m := time.January; m <= time.December; m++ {
		in, hasIncome := income[m]
		ex, hasExpense := expenses[m]
		if !hasIncome && !hasExpense {
			continue
		}
		if !hasIncome {
			in = decimal.Zero
		}
		if !hasExpense {
			ex = decimal.Zero
		}
		out = append(out, MonthlyPoint{Month: m.String()[:3], Income: in, Expenses: ex})
	}
	return out
}

func monthOf(date string) (time.Month, bool) {
	t, err := time.Parse(entity.DateLayout, date)
	if err != nil {
		return 0, false
	}
	return t.Month(), true
}

func monthTotal(m map[time.Month]decimal.Decimal, month time.Month) decimal.Decimal {
	if v, ok := m[month]; ok {
		return v
	}
	return decimal.Zero
}
