package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/dmorneau/ledgerbook/internal/domain/entity"
)

// Seed data used when a collection has never been persisted. The sample
// entities give a fresh install something to look at and keep the
// bidirectional expense/invoice links valid from the start.

func defaultCategories() []string {
	return []string{"Travel", "Meals", "Lodging", "Gear", "Misc"}
}

func defaultProfile() entity.UserProfile {
	return entity.UserProfile{
		Name:    "Your Name Here",
		Address: "Your Address\nCity, Province, Postal Code",
	}
}

func seedCompanies() []*entity.Company {
	return []*entity.Company{
		{
			ID:             "comp-1",
			Name:           "Apex Lighting",
			Address:        "123 Pixel Ave, Tron City",
			DefaultRate:    decimal.NewFromInt(600),
			DefaultPerDiem: decimal.NewFromInt(75),
		},
		{
			ID:             "comp-2",
			Name:           "Soundbox Audio",
			Address:        "456 Synth St, Neo Kyoto",
			DefaultRate:    decimal.NewFromInt(550),
			DefaultPerDiem: decimal.NewFromInt(50),
		},
	}
}

func seedExpenses() []*entity.Expense {
	return []*entity.Expense{
		{
			ID:                "exp-1",
			Date:              "2024-07-15",
			Description:       "Flight to Neo Kyoto",
			Amount:            decimal.RequireFromString("450.00"),
			Currency:          "USD",
			CADAmount:         decimal.RequireFromString("612.50"),
			Category:          "Travel",
			IsBillable:        true,
			BilledToInvoiceID: "inv-1",
		},
		{
			ID:                "exp-2",
			Date:              "2024-07-16",
			Description:       "Hotel in Neo Kyoto",
			Amount:            decimal.RequireFromString("180.00"),
			Currency:          "USD",
			CADAmount:         decimal.RequireFromString("245.00"),
			Category:          "Lodging",
			IsBillable:        true,
			BilledToInvoiceID: "inv-1",
		},
		{
			ID:          "exp-3",
			Date:        "2024-07-20",
			Description: "Team Dinner",
			Amount:      decimal.RequireFromString("85.50"),
			Currency:    "CAD",
			CADAmount:   decimal.RequireFromString("85.50"),
			Category:    "Meals",
		},
		{
			ID:          "exp-4",
			Date:        "2024-07-22",
			Description: "Gaffer Tape",
			Amount:      decimal.RequireFromString("25.00"),
			Currency:    "CAD",
			CADAmount:   decimal.RequireFromString("25.00"),
			Category:    "Gear",
			IsBillable:  true,
		},
	}
}

func seedInvoices() []*entity.Invoice {
	end := "2024-07-17"
	return []*entity.Invoice{
		{
			ID:            "inv-1",
			InvoiceNumber: 1,
			CompanyID:     "comp-2",
			Date:          "2024-07-18",
			Items: []entity.InvoiceItem{
				{
					ID:              "item-1",
					StartDate:       "2024-07-16",
					EndDate:         &end,
					Description:     "Audio Engineer",
					Quantity:        2,
					Unit:            entity.UnitDay,
					Rate:            decimal.NewFromInt(550),
					Amount:          decimal.NewFromInt(1100),
					PerDiemQuantity: 2,
					PerDiemCurrency: entity.CurrencyCAD,
					Approver:        "Jane Doe",
				},
			},
			AttachedExpenseIDs: []string{"exp-1", "exp-2"},
			Notes:              "Thanks for the great gig!",
			Status:             entity.StatusPaid,
			HSTRate:            decimal.RequireFromString("0.13"),
		},
	}
}
