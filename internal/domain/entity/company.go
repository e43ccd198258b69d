package entity

import "github.com/shopspring/decimal"

// Company is a billing counterparty. DefaultRate is the day rate used to
// prefill invoice line items; DefaultPerDiem is the per-diem day rate,
// always entered in CAD.
type Company struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Address        string          `json:"address"`
	DefaultRate    decimal.Decimal `json:"default_rate"`
	DefaultPerDiem decimal.Decimal `json:"default_per_diem"`
}

// RateForUnit derives the line-item rate from the company's day rate.
// Half-Day is half the day rate; Hourly is one tenth. These are explicit
// billing conventions, not a general formula.
func (c *Company) RateForUnit(unit string) decimal.Decimal {
	switch unit {
	case UnitHalfDay:
		return c.DefaultRate.Div(decimal.NewFromInt(2))
	case UnitHourly:
		return c.DefaultRate.Div(decimal.NewFromInt(10))
	default:
		return c.DefaultRate
	}
}
