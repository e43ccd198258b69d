// Package currency converts foreign-currency amounts to CAD, the system's
// base and reporting currency.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RateSource resolves a 3-letter currency code to its CAD multiplier.
// The static table below is the reference source; a historical-rate lookup
// can be substituted without changing the Converter contract.
type RateSource interface {
	Rate(code string) (decimal.Decimal, bool)
}

// StaticRates is a fixed code -> CAD multiplier table. Lookups are
// case-insensitive; keys must be upper case.
type StaticRates map[string]decimal.Decimal

// Rate implements RateSource.
func (s StaticRates) Rate(code string) (decimal.Decimal, bool) {
	rate, ok := s[strings.ToUpper(code)]
	return rate, ok
}

// DefaultRates is the built-in rate table.
func DefaultRates() StaticRates {
	return StaticRates{
		"USD": decimal.RequireFromString("1.379333333"),
		"EUR": decimal.RequireFromString("1.48"),
		"GBP": decimal.RequireFromString("1.74"),
		"CAD": decimal.NewFromInt(1),
	}
}

// Converter converts amounts to CAD using a rate source.
type Converter struct {
	rates RateSource
}

// NewConverter creates a converter backed by the given rate source.
func NewConverter(rates RateSource) *Converter {
	return &Converter{rates: rates}
}

// ToCAD converts amount from the given currency to CAD. Unknown currencies
// pass through unchanged (treated as already CAD) rather than failing. The
// date is accepted for forward compatibility with historical-rate sources
// and is ignored here: conversion is a pure, time-invariant multiplication.
func (c *Converter) ToCAD(amount decimal.Decimal, fromCurrency, date string) decimal.Decimal {
	rate, ok := c.rates.Rate(fromCurrency)
	if !ok {
		return amount
	}
	return amount.Mul(rate)
}
