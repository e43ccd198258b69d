package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dmorneau/ledgerbook/internal/domain/entity"
	"github.com/dmorneau/ledgerbook/internal/ledger"
)

const (
	fallbackCategory = "Misc"
	fallbackRate     = 500
	fallbackPerDiem  = 50
)

// Importer normalizes extraction candidates into ledger entities.
type Importer struct {
	store     *ledger.Store
	extractor Extractor
	logger    *zap.Logger
}

// NewImporter creates an importer.
func NewImporter(store *ledger.Store, extractor Extractor, logger *zap.Logger) *Importer {
	return &Importer{store: store, extractor: extractor, logger: logger}
}

// ImportReceipt runs extraction on a receipt file and records the result
// as a billable expense carrying the receipt image as a data URI.
// Extraction failure never blocks the import: a stub expense is created
// from file metadata so the receipt still lands in the ledger and can be
// fixed up by hand.
func (im *Importer) ImportReceipt(ctx context.Context, fileName string, data []byte, mimeType string) (*entity.Expense, error) {
	categories := im.store.Categories()
	receiptURL := dataURI(mimeType, data)

	candidate, err := im.extractor.ExtractReceipt(ctx, data, mimeType, categories)
	if err != nil {
		im.logger.Warn("Receipt extraction failed, recording stub expense",
			zap.String("file", fileName),
			zap.Error(err))
		return im.store.AddExpense(ctx, &entity.Expense{
			Date:        time.Now().Format(entity.DateLayout),
			Description: fileName,
			Amount:      decimal.Zero,
			Currency:    entity.CurrencyCAD,
			Category:    fallbackCategory,
			IsBillable:  true,
			ReceiptURL:  receiptURL,
		})
	}

	expense := &entity.Expense{
		Date:        candidate.Date,
		Description: candidate.Description,
		Amount:      candidate.Amount,
		Currency:    strings.ToUpper(candidate.Currency),
		Category:    snapCategory(candidate.Category, categories),
		IsBillable:  true,
		ReceiptURL:  receiptURL,
	}
	if expense.Date == "" {
		expense.Date = time.Now().Format(entity.DateLayout)
	}
	if expense.Description == "" {
		expense.Description = fileName
	}
	if expense.Currency == "" {
		expense.Currency = entity.CurrencyCAD
	}

	created, err := im.store.AddExpense(ctx, expense)
	if err != nil {
		return nil, err
	}

	im.logger.Info("Receipt imported",
		zap.String("file", fileName),
		zap.String("expense_id", created.ID),
		zap.String("category", created.Category))
	return created, nil
}

// ImportInvoiceDocument runs extraction on an invoice document and records
// the result as an invoice plus its embedded expenses in one composite
// operation. The named company is matched case-insensitively and created
// when missing.
func (im *Importer) ImportInvoiceDocument(ctx context.Context, fileName string, data []byte, mimeType string) (*entity.Invoice, error) {
	candidate, err := im.extractor.ExtractInvoiceDocument(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}

	company, err := im.resolveCompany(ctx, candidate)
	if err != nil {
		return nil, err
	}

	items := make([]entity.InvoiceItem, 0, len(candidate.Items))
	pdTarget := perDiemTargetIndex(candidate.Items)
	for i, raw := range candidate.Items {
		item := entity.InvoiceItem{
			StartDate:   raw.StartDate,
			Description: raw.Description,
			Quantity:    raw.Quantity,
			Unit:        inferUnit(raw.RateDescription),
			Approver:    raw.Approver,
		}
		if raw.EndDate != "" {
			end := raw.EndDate
			item.EndDate = &end
		}
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		if raw.Quantity > 0 {
			item.Rate = raw.Amount.Div(decimal.NewFromFloat(raw.Quantity))
		}
		if candidate.PerDiemQuantity > 0 && i == pdTarget {
			item.PerDiemQuantity = candidate.PerDiemQuantity
			item.PerDiemCurrency = entity.CurrencyCAD
		}
		items = append(items, item)
	}

	expenses := make([]*entity.Expense, 0, len(candidate.Expenses))
	for _, raw := range candidate.Expenses {
		expenses = append(expenses, &entity.Expense{
			Date:        raw.Date,
			Description: raw.Description,
			Amount:      raw.Amount,
			Currency:    orCAD(raw.Currency),
			Category:    snapCategory(raw.Category, im.store.Categories()),
			IsBillable:  true,
		})
	}

	invoice := &entity.Invoice{
		InvoiceNumber: candidate.InvoiceNumber,
		CompanyID:     company.ID,
		Date:          candidate.Date,
		Items:         items,
		Notes:         candidate.Notes,
		Status:        entity.StatusDraft,
		HSTRate:       decimal.RequireFromString("0.13"),
	}
	if invoice.Date == "" {
		invoice.Date = time.Now().Format(entity.DateLayout)
	}

	created, err := im.store.AddInvoiceWithExpenses(ctx, invoice, expenses)
	if err != nil {
		return nil, err
	}

	im.logger.Info("Invoice document imported",
		zap.String("file", fileName),
		zap.String("invoice_id", created.ID),
		zap.String("company", company.Name),
		zap.Int("items", len(created.Items)),
		zap.Int("expenses", len(created.AttachedExpenseIDs)))
	return created, nil
}

// resolveCompany finds the named company case-insensitively or creates it,
// inferring the day rate from the first item's amount/quantity.
func (im *Importer) resolveCompany(ctx context.Context, candidate *InvoiceDocExtraction) (*entity.Company, error) {
	name := strings.TrimSpace(candidate.CompanyName)
	if name == "" {
		name = "Unknown Company"
	}

	for _, c := range im.store.ListCompanies() {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}

	rate := decimal.NewFromInt(fallbackRate)
	if len(candidate.Items) > 0 && candidate.Items[0].Quantity > 0 {
		rate = candidate.Items[0].Amount.Div(decimal.NewFromFloat(candidate.Items[0].Quantity))
	}

	created, err := im.store.AddCompany(ctx, &entity.Company{
		Name:           name,
		Address:        candidate.CompanyAddress,
		DefaultRate:    rate,
		DefaultPerDiem: decimal.NewFromInt(fallbackPerDiem),
	})
	if err != nil {
		return nil, err
	}

	im.logger.Info("Company auto-created from invoice document",
		zap.String("company_id", created.ID),
		zap.String("name", created.Name),
		zap.String("default_rate", created.DefaultRate.String()))
	return created, nil
}

// snapCategory snaps an extracted category onto the allowed set, matching
// case-insensitively. Unknown categories fall back to the first allowed
// one, or "Misc" when the set is empty.
func snapCategory(category string, allowed []string) string {
	for _, c := range allowed {
		if strings.EqualFold(c, category) {
			return c
		}
	}
	if len(allowed) > 0 {
		return allowed[0]
	}
	return fallbackCategory
}

// inferUnit reads the extracted rate description: anything mentioning a
// day bills as Day, everything else as Hourly.
func inferUnit(rateDescription string) string {
	if strings.Contains(strings.ToLower(rateDescription), "day") {
		return entity.UnitDay
	}
	return entity.UnitHourly
}

// perDiemTargetIndex picks the line item that receives the document's
// aggregate per-diem count: the largest quantity, first one on ties.
func perDiemTargetIndex(items []ExtractedInvoiceItem) int {
	target := -1
	best := 0.0
	for i, it := range items {
		if it.Quantity > best {
			best = it.Quantity
			target = i
		}
	}
	if target < 0 && len(items) > 0 {
		target = 0
	}
	return target
}

func orCAD(currency string) string {
	if currency == "" {
		return entity.CurrencyCAD
	}
	return strings.ToUpper(currency)
}

// dataURI embeds the raw file as a base64 data URI so the receipt image
// travels with the expense record.
func dataURI(mimeType string, data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}
