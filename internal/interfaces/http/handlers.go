package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dmorneau/ledgerbook/internal/billing"
	"github.com/dmorneau/ledgerbook/internal/domain/entity"
	"github.com/dmorneau/ledgerbook/internal/export"
	"github.com/dmorneau/ledgerbook/internal/ingest"
	"github.com/dmorneau/ledgerbook/internal/ledger"
	"github.com/dmorneau/ledgerbook/internal/reports"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	store    *ledger.Store
	engine   *billing.Engine
	reporter *reports.Service
	importer *ingest.Importer
	excel    *export.ExcelWriter
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	store *ledger.Store,
	engine *billing.Engine,
	reporter *reports.Service,
	importer *ingest.Importer,
	excel *export.ExcelWriter,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		store:    store,
		engine:   engine,
		reporter: reporter,
		importer: importer,
		excel:    excel,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}

// failErr maps ledger sentinels onto HTTP statuses.
func (h *Handlers) failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrCompanyNotFound),
		errors.Is(err, ledger.ErrInvoiceNotFound),
		errors.Is(err, ledger.ErrExpenseNotFound),
		errors.Is(err, ledger.ErrCategoryNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrCompanyInUse),
		errors.Is(err, ledger.ErrCategoryInUse),
		errors.Is(err, ledger.ErrCategoryExists),
		errors.Is(err, ledger.ErrExpenseUnavailable):
		fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrCategoryInvalid):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Request failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal error")
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ---- companies ----

// ListCompanies handles GET /api/companies
func (h *Handlers) ListCompanies(c *gin.Context) {
	ok(c, h.store.ListCompanies())
}

// AddCompany handles POST /api/companies
func (h *Handlers) AddCompany(c *gin.Context) {
	var company entity.Company
	if err := c.ShouldBindJSON(&company); err != nil {
		fail(c, http.StatusBadRequest, "invalid company payload")
		return
	}
	if company.Name == "" {
		fail(c, http.StatusBadRequest, "company name is required")
		return
	}

	created, err := h.store.AddCompany(c.Request.Context(), &company)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, created)
}

// UpdateCompany handles PUT /api/companies/:id
func (h *Handlers) UpdateCompany(c *gin.Context) {
	var company entity.Company
	if err := c.ShouldBindJSON(&company); err != nil {
		fail(c, http.StatusBadRequest, "invalid company payload")
		return
	}
	company.ID = c.Param("id")

	if err := h.store.UpdateCompany(c.Request.Context(), &company); err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, company)
}

// DeleteCompany handles DELETE /api/companies/:id
func (h *Handlers) DeleteCompany(c *gin.Context) {
	if err := h.store.DeleteCompany(c.Request.Context(), c.Param("id")); err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, nil)
}

// ---- expenses ----

// ListExpenses handles GET /api/expenses
func (h *Handlers) ListExpenses(c *gin.Context) {
	ok(c, h.store.ListExpenses())
}

// AddExpense handles POST /api/expenses
func (h *Handlers) AddExpense(c *gin.Context) {
	var expense entity.Expense
	if err := c.ShouldBindJSON(&expense); err != nil {
		fail(c, http.StatusBadRequest, "invalid expense payload")
		return
	}

	created, err := h.store.AddExpense(c.Request.Context(), &expense)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, created)
}

// UpdateExpense handles PUT /api/expenses/:id
func (h *Handlers) UpdateExpense(c *gin.Context) {
	var expense entity.Expense
	if err := c.ShouldBindJSON(&expense); err != nil {
		fail(c, http.StatusBadRequest, "invalid expense payload")
		return
	}
	expense.ID = c.Param("id")

	if err := h.store.UpdateExpense(c.Request.Context(), &expense); err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, h.store.GetExpense(expense.ID))
}

// DeleteExpense handles DELETE /api/expenses/:id
func (h *Handlers) DeleteExpense(c *gin.Context) {
	if err := h.store.DeleteExpense(c.Request.Context(), c.Param("id")); err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, nil)
}

// DeleteAllExpenses handles DELETE /api/expenses
func (h *Handlers) DeleteAllExpenses(c *gin.Context) {
	if err := h.store.DeleteAllExpenses(c.Request.Context()); err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, nil)
}

// AvailableExpenses handles GET /api/expenses/available?invoice_id=...
func (h *Handlers) AvailableExpenses(c *gin.Context) {
	ok(c, h.store.AvailableExpenses(c.Query("invoice_id")))
}

// ---- invoices ----

// ListInvoices handles GET /api/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	ok(c, h.store.ListInvoices())
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	inv := h.store.GetInvoice(c.Param("id"))
	if inv == nil {
		fail(c, http.StatusNotFound, ledger.ErrInvoiceNotFound.Error())
		return
	}
	ok(c, inv)
}

// AddInvoice handles POST /api/invoices
func (h *Handlers) AddInvoice(c *gin.Context) {
	var invoice entity.Invoice
	if err := c.ShouldBindJSON(&invoice); err != nil {
		fail(c, http.StatusBadRequest, "invalid invoice payload")
		return
	}

	created, err := h.store.AddInvoice(c.Request.Context(), &invoice)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, created)
}

// UpdateInvoice handles PUT /api/invoices/:id
func (h *Handlers) UpdateInvoice(c *gin.Context) {
	var invoice entity.Invoice
	if err := c.ShouldBindJSON(&invoice); err != nil {
		fail(c, http.StatusBadRequest, "invalid invoice payload")
		return
	}
	invoice.ID = c.Param("id")

	if err := h.store.UpdateInvoice(c.Request.Context(), &invoice); err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, h.store.GetInvoice(invoice.ID))
}

// DeleteInvoice handles DELETE /api/invoices/:id
func (h *Handlers) DeleteInvoice(c *gin.Context) {
	if err := h.store.DeleteInvoice(c.Request.Context(), c.Param("id")); err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, nil)
}

// InvoiceTotals handles GET /api/invoices/:id/totals
func (h *Handlers) InvoiceTotals(c *gin.Context) {
	inv := h.store.GetInvoice(c.Param("id"))
	if inv == nil {
		fail(c, http.StatusNotFound, ledger.ErrInvoiceNotFound.Error())
		return
	}

	company := h.store.GetCompany(inv.CompanyID)
	expenses := h.store.ExpensesByIDs(inv.AttachedExpenseIDs)
	ok(c, h.engine.ComputeTotals(inv, company, expenses))
}

// RenderInvoice handles GET /api/invoices/:id/render
func (h *Handlers) RenderInvoice(c *gin.Context) {
	inv := h.store.GetInvoice(c.Param("id"))
	if inv == nil {
		fail(c, http.StatusNotFound, ledger.ErrInvoiceNotFound.Error())
		return
	}

	company := h.store.GetCompany(inv.CompanyID)
	expenses := h.store.ExpensesByIDs(inv.AttachedExpenseIDs)
	ok(c, h.engine.RenderPayload(inv, company, h.store.UserProfile(), expenses))
}

// StatusRequest is the body of PUT /api/invoices/:id/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// UpdateInvoiceStatus handles PUT /api/invoices/:id/status
func (h *Handlers) UpdateInvoiceStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !entity.ValidStatus(req.Status) {
		fail(c, http.StatusBadRequest, "status must be one of Draft, Sent, Paid")
		return
	}

	inv := h.store.GetInvoice(c.Param("id"))
	if inv == nil {
		fail(c, http.StatusNotFound, ledger.ErrInvoiceNotFound.Error())
		return
	}

	inv.Status = req.Status
	if err := h.store.UpdateInvoice(c.Request.Context(), inv); err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, h.store.GetInvoice(inv.ID))
}

// ---- categories ----

// ListCategories handles GET /api/categories
func (h *Handlers) ListCategories(c *gin.Context) {
	ok(c, h.store.Categories())
}

// CategoryRequest is the body of category mutations.
type CategoryRequest struct {
	Name    string `json:"name"`
	NewName string `json:"new_name,omitempty"`
}

// AddCategory handles POST /api/categories
func (h *Handlers) AddCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid category payload")
		return
	}

	if err := h.store.AddCategory(c.Request.Context(), req.Name); err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, h.store.Categories())
}

// RenameCategory handles PUT /api/categories
func (h *Handlers) RenameCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid category payload")
		return
	}

	if err := h.store.RenameCategory(c.Request.Context(), req.Name, req.NewName); err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, h.store.Categories())
}

// DeleteCategory handles DELETE /api/categories/:name
func (h *Handlers) DeleteCategory(c *gin.Context) {
	if err := h.store.DeleteCategory(c.Request.Context(), c.Param("name")); err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, h.store.Categories())
}

// ---- profile ----

// GetProfile handles GET /api/profile
func (h *Handlers) GetProfile(c *gin.Context) {
	ok(c, h.store.UserProfile())
}

// UpdateProfile handles PUT /api/profile
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var profile entity.UserProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		fail(c, http.StatusBadRequest, "invalid profile payload")
		return
	}

	if err := h.store.UpdateUserProfile(c.Request.Context(), profile); err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, profile)
}

// ---- reports ----

// ReportSummary handles GET /api/reports/summary
func (h *Handlers) ReportSummary(c *gin.Context) {
	ok(c, h.reporter.Summary())
}

// ReportMonthly handles GET /api/reports/monthly
func (h *Handlers) ReportMonthly(c *gin.Context) {
	ok(c, h.reporter.MonthlySeries())
}

// ReportCategories handles GET /api/reports/categories
func (h *Handlers) ReportCategories(c *gin.Context) {
	ok(c, h.reporter.ExpensesByCategory())
}

// ReportExpenses handles GET /api/reports/expenses?filter=all|billable|non_billable
func (h *Handlers) ReportExpenses(c *gin.Context) {
	filter, ok2 := parseFilter(c.Query("filter"))
	if !ok2 {
		fail(c, http.StatusBadRequest, "filter must be all, billable or non_billable")
		return
	}
	ok(c, h.reporter.ExpenseReport(filter))
}

// ExportExpenses handles GET /api/reports/expenses/export and streams an
// xlsx workbook.
func (h *Handlers) ExportExpenses(c *gin.Context) {
	filter, ok2 := parseFilter(c.Query("filter"))
	if !ok2 {
		fail(c, http.StatusBadRequest, "filter must be all, billable or non_billable")
		return
	}

	report := h.reporter.ExpenseReport(filter)

	fileName := fmt.Sprintf("expense-report-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := h.excel.Write(report, c.Writer); err != nil {
		h.logger.Error("Failed to stream workbook", zap.Error(err))
		c.Status(http.StatusInternalServerError)
	}
}

func parseFilter(raw string) (reports.Filter, bool) {
	switch reports.Filter(raw) {
	case "", reports.FilterAll:
		return reports.FilterAll, true
	case reports.FilterBillable:
		return reports.FilterBillable, true
	case reports.FilterNonBillable:
		return reports.FilterNonBillable, true
	default:
		return "", false
	}
}

// ---- imports ----

// ImportReceipt handles POST /api/import/receipt (multipart, field "file")
func (h *Handlers) ImportReceipt(c *gin.Context) {
	name, data, mimeType, err := readUpload(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	expense, err := h.importer.ImportReceipt(c.Request.Context(), name, data, mimeType)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, expense)
}

// ImportInvoiceDocument handles POST /api/import/invoice (multipart, field "file")
func (h *Handlers) ImportInvoiceDocument(c *gin.Context) {
	name, data, mimeType, err := readUpload(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	invoice, err := h.importer.ImportInvoiceDocument(c.Request.Context(), name, data, mimeType)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, invoice)
}

// readUpload pulls the "file" part of a multipart request and resolves its
// MIME type from the file name.
func readUpload(c *gin.Context) (name string, data []byte, mimeType string, err error) {
	header, err := c.FormFile("file")
	if err != nil {
		return "", nil, "", fmt.Errorf("multipart field 'file' is required")
	}

	mimeType, supported := ingest.MIMETypeFor(header.Filename)
	if !supported {
		return "", nil, "", fmt.Errorf("unsupported file type: %s", header.Filename)
	}

	file, err := header.Open()
	if err != nil {
		return "", nil, "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return "", nil, "", fmt.Errorf("failed to read upload: %w", err)
	}

	return header.Filename, data, mimeType, nil
}
