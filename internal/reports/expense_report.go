package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dmorneau/ledgerbook/internal/domain/entity"
)

// Filter selects which expenses an expense report includes.
type Filter string

const (
	FilterAll         Filter = "all"
	FilterBillable    Filter = "billable"
	FilterNonBillable Filter = "non_billable"
)

// CategoryGroup is one category section of an expense report.
type CategoryGroup struct {
	Category string            `json:"category"`
	Expenses []*entity.Expense `json:"expenses"`
	Total    decimal.Decimal   `json:"total"`
}

// ExpenseReport is the grouped expense listing behind the spreadsheet
// export: expenses grouped by category and sorted by date within each
// group, with per-category and grand totals in CAD.
type ExpenseReport struct {
	Filter     Filter          `json:"filter"`
	Groups     []CategoryGroup `json:"groups"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// ExpenseReport builds the grouped listing for the given filter.
func (s *Service) ExpenseReport(filter Filter) ExpenseReport {
	byCategory := make(map[string][]*entity.Expense)
	for _, e := range s.store.ListExpenses() {
		switch filter {
		case FilterBillable:
			if !e.IsBillable {
				continue
			}
		case FilterNonBillable:
			if e.IsBillable {
				continue
			}
		}
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	report := ExpenseReport{Filter: filter, GrandTotal: decimal.Zero}
	for _, c := range categories {
		group := CategoryGroup{Category: c, Total: decimal.Zero}
		group.Expenses = byCategory[c]
		sort.SliceStable(group.Expenses, func(i, j int) bool {
			return group.Expenses[i].Date < group.Expenses[j].Date
		})
		for _, e := range group.Expenses {
			group.Total = group.Total.Add(e.CADAmount)
		}
		report.Groups = append(report.Groups, group)
		report.GrandTotal = report.GrandTotal.Add(group.Total)
	}
	return report
}
