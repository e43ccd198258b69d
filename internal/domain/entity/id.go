package entity

import "github.com/google/uuid"

// ID prefixes identify the entity type at a glance in logs and stored JSON.
const (
	PrefixCompany = "comp"
	PrefixInvoice = "inv"
	PrefixExpense = "exp"
	PrefixItem    = "item"
)

// NewID returns a collision-proof identifier with a type prefix,
// e.g. "exp-7f9c24e8-...".
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
