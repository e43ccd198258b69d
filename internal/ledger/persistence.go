package ledger

import "context"

// Persistence is the durable key-value collaborator the store delegates
// load/save to. Values are JSON-serialized entity collections keyed by
// logical name. Load returns (nil, nil) when the key has never been saved;
// the store substitutes seed defaults in that case.
type Persistence interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	// SaveAll writes every key or none of them. Mutations that touch more
	// than one collection go through it so a crash mid-save cannot leave
	// the durable snapshot with half a change.
	SaveAll(ctx context.Context, values map[string][]byte) error
}

// Logical collection keys.
const (
	KeyCompanies      = "companies"
	KeyInvoices       = "invoices"
	KeyExpenses       = "expenses"
	KeyCategories     = "expense_categories"
	KeyUserProfile    = "user_profile"
	KeyProcessedFiles = "processed_files"
)
