package ledger

import "errors"

// Validation rejections. These abort the operation with state unchanged and
// are mapped to user-facing messages by the callers; they never unwind
// already-applied state.
var (
	ErrCompanyNotFound    = errors.New("company not found")
	ErrCompanyInUse       = errors.New("company is referenced by one or more invoices")
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrExpenseNotFound    = errors.New("expense not found")
	ErrExpenseUnavailable = errors.New("expense is not billable or already billed to another invoice")
	ErrCategoryInvalid    = errors.New("category name is empty")
	ErrCategoryExists     = errors.New("category already exists")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrCategoryInUse      = errors.New("category is in use by one or more expenses")
)
