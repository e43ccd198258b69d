// Package ledger holds the authoritative in-memory state for all entities
// and the reconciliation rules that keep expense/invoice links consistent.
// Durable persistence is delegated to an injected key-value collaborator;
// every mutating operation persists the affected collections synchronously
// before returning.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dmorneau/ledgerbook/internal/currency"
	"github.com/dmorneau/ledgerbook/internal/domain/entity"
)

// Store is the entity store. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	db        Persistence
	converter *currency.Converter
	logger    *zap.Logger

	companies  []*entity.Company
	invoices   []*entity.Invoice
	expenses   []*entity.Expense
	categories []string
	profile    entity.UserProfile
	processed  map[string]bool
}

// Open loads all collections from persistence, substituting seed defaults
// for keys that have never been saved.
func Open(ctx context.Context, db Persistence, converter *currency.Converter, logger *zap.Logger) (*Store, error) {
	s := &Store{
		db:        db,
		converter: converter,
		logger:    logger,
		processed: make(map[string]bool),
	}

	found, err := s.load(ctx, KeyCompanies, &s.companies)
	if err != nil {
		return nil, err
	}
	if !found {
		s.companies = seedCompanies()
	}

	if found, err = s.load(ctx, KeyInvoices, &s.invoices); err != nil {
		return nil, err
	} else if !found {
		s.invoices = seedInvoices()
	}

	if found, err = s.load(ctx, KeyExpenses, &s.expenses); err != nil {
		return nil, err
	} else if !found {
		s.expenses = seedExpenses()
	}

	if found, err = s.load(ctx, KeyCategories, &s.categories); err != nil {
		return nil, err
	} else if !found {
		s.categories = defaultCategories()
	}

	if found, err = s.load(ctx, KeyUserProfile, &s.profile); err != nil {
		return nil, err
	} else if !found {
		s.profile = defaultProfile()
	}

	var processedList []string
	if _, err = s.load(ctx, KeyProcessedFiles, &processedList); err != nil {
		return nil, err
	}
	for _, key := range processedList {
		s.processed[key] = true
	}

	logger.Info("Ledger store loaded",
		zap.Int("companies", len(s.companies)),
		zap.Int("invoices", len(s.invoices)),
		zap.Int("expenses", len(s.expenses)),
		zap.Int("categories", len(s.categories)))

	return s, nil
}

func (s *Store) load(ctx context.Context, key string, target interface{}) (bool, error) {
	raw, err := s.db.Load(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) save(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.db.Save(ctx, key, raw); err != nil {
		s.logger.Error("Failed to persist collection", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

// saveAll persists several collections in one all-or-nothing write.
func (s *Store) saveAll(ctx context.Context, values map[string]interface{}) error {
	blobs := make(map[string][]byte, len(values))
	for key, value := range values {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
		blobs[key] = raw
	}
	if err := s.db.SaveAll(ctx, blobs); err != nil {
		keys := make([]string, 0, len(blobs))
		for k := range blobs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		s.logger.Error("Failed to persist collections", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("failed to persist %s: %w", strings.Join(keys, ", "), err)
	}
	return nil
}

func (s *Store) processedKeys() []string {
	keys := make([]string, 0, len(s.processed))
	for k := range s.processed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) saveProcessed(ctx context.Context) error {
	return s.save(ctx, KeyProcessedFiles, s.processedKeys())
}

// ---- companies ----

// AddCompany creates a company, assigning an id when none is given.
func (s *Store) AddCompany(ctx context.Context, c *entity.Company) (*entity.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneCompany(c)
	if stored.ID == "" {
		stored.ID = entity.NewID(entity.PrefixCompany)
	}
	s.companies = append(s.companies, stored)

	if err := s.save(ctx, KeyCompanies, s.companies); err != nil {
		return nil, err
	}
	return cloneCompany(stored), nil
}

// UpdateCompany replaces an existing company.
func (s *Store) UpdateCompany(ctx context.Context, c *entity.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.companies {
		if existing.ID == c.ID {
			s.companies[i] = cloneCompany(c)
			return s.save(ctx, KeyCompanies, s.companies)
		}
	}
	return ErrCompanyNotFound
}

// DeleteCompany removes a company. Rejected while any invoice references it.
func (s *Store) DeleteCompany(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inv := range s.invoices {
		if inv.CompanyID == id {
			return ErrCompanyInUse
		}
	}

	for i, c := range s.companies {
		if c.ID == id {
			s.companies = append(s.companies[:i], s.companies[i+1:]...)
			return s.save(ctx, KeyCompanies, s.companies)
		}
	}
	return ErrCompanyNotFound
}

// GetCompany returns the company with the given id, or nil.
func (s *Store) GetCompany(id string) *entity.Company {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c := s.findCompany(id); c != nil {
		return cloneCompany(c)
	}
	return nil
}

// ListCompanies returns all companies.
func (s *Store) ListCompanies() []*entity.Company {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Company, len(s.companies))
	for i, c := range s.companies {
		out[i] = cloneCompany(c)
	}
	return out
}

func (s *Store) findCompany(id string) *entity.Company {
	for _, c := range s.companies {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// ---- expenses ----

// AddExpense creates an expense. The CAD amount is converted from the
// entered amount/currency here, once, and cached on the entity.
func (s *Store) AddExpense(ctx context.Context, e *entity.Expense) (*entity.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.bookExpense(e)
	s.expenses = append(s.expenses, stored)

	if err := s.save(ctx, KeyExpenses, s.expenses); err != nil {
		return nil, err
	}
	return cloneExpense(stored), nil
}

// AddExpenses creates a batch of expenses with a single persistence write.
func (s *Store) AddExpenses(ctx context.Context, batch []*entity.Expense) ([]*entity.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]*entity.Expense, 0, len(batch))
	for _, e := range batch {
		stored := s.bookExpense(e)
		s.expenses = append(s.expenses, stored)
		created = append(created, cloneExpense(stored))
	}

	if err := s.save(ctx, KeyExpenses, s.expenses); err != nil {
		return nil, err
	}
	return created, nil
}

// bookExpense clones, assigns an id and books the CAD amount. Attachment
// state is never taken from input on this path.
func (s *Store) bookExpense(e *entity.Expense) *entity.Expense {
	stored := cloneExpense(e)
	if stored.ID == "" {
		stored.ID = entity.NewID(entity.PrefixExpense)
	}
	stored.BilledToInvoiceID = ""
	stored.CADAmount = s.converter.ToCAD(stored.Amount, stored.Currency, stored.Date)
	return stored
}

// UpdateExpense replaces an expense's own fields and re-books the CAD
// amount. The attachment link is preserved from the stored entity:
// attach/detach flows only through invoice operations, keeping the
// bidirectional link sound.
func (s *Store) UpdateExpense(ctx context.Context, e *entity.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.expenses {
		if existing.ID == e.ID {
			stored := cloneExpense(e)
			stored.BilledToInvoiceID = existing.BilledToInvoiceID
			stored.CADAmount = s.converter.ToCAD(stored.Amount, stored.Currency, stored.Date)
			s.expenses[i] = stored
			return s.save(ctx, KeyExpenses, s.expenses)
		}
	}
	return ErrExpenseNotFound
}

// DeleteExpense removes an expense and strips its id from every invoice's
// attached set. Referential cleanup is never an error.
func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, e := range s.expenses {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrExpenseNotFound
	}
	s.expenses = append(s.expenses[:idx], s.expenses[idx+1:]...)

	for _, inv := range s.invoices {
		inv.AttachedExpenseIDs = removeString(inv.AttachedExpenseIDs, id)
	}

	return s.saveAll(ctx, map[string]interface{}{
		KeyExpenses: s.expenses,
		KeyInvoices: s.invoices,
	})
}

// DeleteAllExpenses clears every expense, resets every invoice's attached
// set and clears the processed-file ingestion history.
func (s *Store) DeleteAllExpenses(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expenses = []*entity.Expense{}
	for _, inv := range s.invoices {
		inv.AttachedExpenseIDs = []string{}
	}
	s.processed = make(map[string]bool)

	return s.saveAll(ctx, map[string]interface{}{
		KeyExpenses:       s.expenses,
		KeyInvoices:       s.invoices,
		KeyProcessedFiles: s.processedKeys(),
	})
}

// GetExpense returns the expense with the given id, or nil.
func (s *Store) GetExpense(id string) *entity.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e := s.findExpense(id); e != nil {
		return cloneExpense(e)
	}
	return nil
}

// ListExpenses returns all expenses.
func (s *Store) ListExpenses() []*entity.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Expense, len(s.expenses))
	for i, e := range s.expenses {
		out[i] = cloneExpense(e)
	}
	return out
}

// ExpensesByIDs resolves the given ids against the store, skipping ids
// that no longer exist.
func (s *Store) ExpensesByIDs(ids []string) []*entity.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Expense, 0, len(ids))
	for _, id := range ids {
		if e := s.findExpense(id); e != nil {
			out = append(out, cloneExpense(e))
		}
	}
	return out
}

// AvailableExpenses returns the expenses attachable to the given invoice:
// billable and either unattached or already attached to that invoice.
// Pass an empty id for a new, unsaved invoice.
func (s *Store) AvailableExpenses(invoiceID string) []*entity.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.Expense
	for _, e := range s.expenses {
		if e.IsBillable && (e.BilledToInvoiceID == "" || e.BilledToInvoiceID == invoiceID) {
			out = append(out, cloneExpense(e))
		}
	}
	return out
}

func (s *Store) findExpense(id string) *entity.Expense {
	for _, e := range s.expenses {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// ---- invoices ----

// AddInvoice creates a draft-by-default invoice, assigning the next invoice
// number. Attached expenses must be billable and unattached; they are
// stamped with the new invoice's id so the bidirectional link holds.
func (s *Store) AddInvoice(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	company := s.findCompany(inv.CompanyID)
	if company == nil {
		return nil, ErrCompanyNotFound
	}

	// Validate the whole attachment set before mutating anything.
	for _, id := range inv.AttachedExpenseIDs {
		e := s.findExpense(id)
		if e == nil {
			return nil, ErrExpenseNotFound
		}
		if !e.IsBillable || e.BilledToInvoiceID != "" {
			return nil, ErrExpenseUnavailable
		}
	}

	stored := cloneInvoice(inv)
	stored.ID = entity.NewID(entity.PrefixInvoice)
	stored.InvoiceNumber = s.nextInvoiceNumber()
	normalizeInvoice(stored, company)

	for _, id := range stored.AttachedExpenseIDs {
		s.findExpense(id).BilledToInvoiceID = stored.ID
	}
	s.invoices = append([]*entity.Invoice{stored}, s.invoices...)

	if err := s.saveAll(ctx, map[string]interface{}{
		KeyInvoices: s.invoices,
		KeyExpenses: s.expenses,
	}); err != nil {
		return nil, err
	}
	return cloneInvoice(stored), nil
}

// UpdateInvoice replaces an invoice. The attached set is replaced wholesale
// with the caller's selection; expenses entering the set are stamped and
// expenses leaving it are detached, so both sides of the link stay in sync.
func (s *Store) UpdateInvoice(ctx context.Context, inv *entity.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *entity.Invoice
	idx := -1
	for i, stored := range s.invoices {
		if stored.ID == inv.ID {
			existing, idx = stored, i
			break
		}
	}
	if existing == nil {
		return ErrInvoiceNotFound
	}

	company := s.findCompany(inv.CompanyID)
	if company == nil {
		return ErrCompanyNotFound
	}

	newSet := make(map[string]bool, len(inv.AttachedExpenseIDs))
	for _, id := range inv.AttachedExpenseIDs {
		e := s.findExpense(id)
		if e == nil {
			return ErrExpenseNotFound
		}
		if !e.IsBillable || (e.BilledToInvoiceID != "" && e.BilledToInvoiceID != inv.ID) {
			return ErrExpenseUnavailable
		}
		newSet[id] = true
	}

	// Detach expenses that left the set, stamp the ones that joined.
	for _, id := range existing.AttachedExpenseIDs {
		if !newSet[id] {
			if e := s.findExpense(id); e != nil {
				e.BilledToInvoiceID = ""
			}
		}
	}
	for id := range newSet {
		s.findExpense(id).BilledToInvoiceID = inv.ID
	}

	stored := cloneInvoice(inv)
	stored.InvoiceNumber = existing.InvoiceNumber
	normalizeInvoice(stored, company)
	s.invoices[idx] = stored

	return s.saveAll(ctx, map[string]interface{}{
		KeyInvoices: s.invoices,
		KeyExpenses: s.expenses,
	})
}

// DeleteInvoice removes an invoice and detaches (never deletes) every
// expense that referenced it.
func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, inv := range s.invoices {
		if inv.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrInvoiceNotFound
	}

	for _, e := range s.expenses {
		if e.BilledToInvoiceID == id {
			e.BilledToInvoiceID = ""
		}
	}
	s.invoices = append(s.invoices[:idx], s.invoices[idx+1:]...)

	return s.saveAll(ctx, map[string]interface{}{
		KeyInvoices: s.invoices,
		KeyExpenses: s.expenses,
	})
}

// GetInvoice returns the invoice with the given id, or nil.
func (s *Store) GetInvoice(id string) *entity.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.invoices {
		if inv.ID == id {
			return cloneInvoice(inv)
		}
	}
	return nil
}

// ListInvoices returns all invoices, newest first.
func (s *Store) ListInvoices() []*entity.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Invoice, len(s.invoices))
	for i, inv := range s.invoices {
		out[i] = cloneInvoice(inv)
	}
	return out
}

// AddInvoiceWithExpenses is the atomic composite used by import flows: it
// creates the given expenses stamped with a freshly generated invoice id,
// then creates the invoice with its attached set equal to exactly those new
// expense ids. The invoice number is taken from the caller when positive
// (re-import) or assigned as max+1.
func (s *Store) AddInvoiceWithExpenses(ctx context.Context, inv *entity.Invoice, batch []*entity.Expense) (*entity.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	company := s.findCompany(inv.CompanyID)
	if company == nil {
		return nil, ErrCompanyNotFound
	}

	stored := cloneInvoice(inv)
	stored.ID = entity.NewID(entity.PrefixInvoice)
	if stored.InvoiceNumber <= 0 {
		stored.InvoiceNumber = s.nextInvoiceNumber()
	}

	newExpenses := make([]*entity.Expense, 0, len(batch))
	expenseIDs := make([]string, 0, len(batch))
	for _, e := range batch {
		booked := s.bookExpense(e)
		booked.BilledToInvoiceID = stored.ID
		newExpenses = append(newExpenses, booked)
		expenseIDs = append(expenseIDs, booked.ID)
	}

	stored.AttachedExpenseIDs = expenseIDs
	normalizeInvoice(stored, company)

	s.expenses = append(s.expenses, newExpenses...)
	s.invoices = append([]*entity.Invoice{stored}, s.invoices...)

	if err := s.saveAll(ctx, map[string]interface{}{
		KeyInvoices: s.invoices,
		KeyExpenses: s.expenses,
	}); err != nil {
		return nil, err
	}
	return cloneInvoice(stored), nil
}

func (s *Store) nextInvoiceNumber() int {
	max := 0
	for _, inv := range s.invoices {
		if inv.InvoiceNumber > max {
			max = inv.InvoiceNumber
		}
	}
	return max + 1
}

// ---- categories ----

// AddCategory appends a category. Empty names and case-insensitive
// duplicates are silent no-ops.
func (s *Store) AddCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.categoryExists(name) {
		return nil
	}
	s.categories = append(s.categories, name)
	return s.save(ctx, KeyCategories, s.categories)
}

// RenameCategory renames a category and cascades the rename to every
// expense tagged with the old name.
func (s *Store) RenameCategory(ctx context.Context, oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrCategoryInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.categoryExists(newName) {
		return ErrCategoryExists
	}

	idx := -1
	for i, c := range s.categories {
		if c == oldName {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrCategoryNotFound
	}

	s.categories[idx] = newName
	for _, e := range s.expenses {
		if e.Category == oldName {
			e.Category = newName
		}
	}

	return s.saveAll(ctx, map[string]interface{}{
		KeyCategories: s.categories,
		KeyExpenses:   s.expenses,
	})
}

// DeleteCategory removes a category. Rejected while any expense uses it.
func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.expenses {
		if e.Category == name {
			return ErrCategoryInUse
		}
	}

	for i, c := range s.categories {
		if c == name {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			return s.save(ctx, KeyCategories, s.categories)
		}
	}
	return ErrCategoryNotFound
}

// Categories returns the category set in insertion order.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.categories...)
}

func (s *Store) categoryExists(name string) bool {
	for _, c := range s.categories {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// ---- user profile ----

// UserProfile returns the invoicing party's profile.
func (s *Store) UserProfile() entity.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// UpdateUserProfile replaces the profile.
func (s *Store) UpdateUserProfile(ctx context.Context, p entity.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profile = p
	return s.save(ctx, KeyUserProfile, s.profile)
}

// ---- ingestion dedup history ----

// IsFileProcessed reports whether an ingested file fingerprint was already
// imported.
func (s *Store) IsFileProcessed(fingerprint string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processed[fingerprint]
}

// MarkFileProcessed records an ingested file fingerprint.
func (s *Store) MarkFileProcessed(ctx context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed[fingerprint] = true
	return s.saveProcessed(ctx)
}

// ---- helpers ----

// normalizeInvoice enforces the computed-field rules on save: item ids,
// per-diem currency default, quantity auto-derived from the date span for
// Day/Half-Day items, rate defaulted from the company when absent, and
// amount always recomputed as quantity * rate.
func normalizeInvoice(inv *entity.Invoice, company *entity.Company) {
	if inv.Status == "" {
		inv.Status = entity.StatusDraft
	}
	if inv.AttachedExpenseIDs == nil {
		inv.AttachedExpenseIDs = []string{}
	}
	for i := range inv.Items {
		it := &inv.Items[i]
		if it.ID == "" {
			it.ID = entity.NewID(entity.PrefixItem)
		}
		if it.Unit == "" {
			it.Unit = entity.UnitDay
		}
		if it.PerDiemCurrency == "" {
			it.PerDiemCurrency = entity.CurrencyCAD
		}
		if it.Unit == entity.UnitDay || it.Unit == entity.UnitHalfDay {
			if span := it.SpanDays(); span > 0 {
				it.Quantity = float64(span)
			}
		}
		if it.Rate.IsZero() && company != nil {
			it.Rate = company.RateForUnit(it.Unit)
		}
		it.Amount = it.Rate.Mul(decimal.NewFromFloat(it.Quantity))
	}
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func cloneCompany(c *entity.Company) *entity.Company {
	cp := *c
	return &cp
}

func cloneExpense(e *entity.Expense) *entity.Expense {
	cp := *e
	return &cp
}

func cloneInvoice(inv *entity.Invoice) *entity.Invoice {
	cp := *inv
	cp.Items = append([]entity.InvoiceItem(nil), inv.Items...)
	cp.AttachedExpenseIDs = append([]string(nil), inv.AttachedExpenseIDs...)
	return &cp
}
