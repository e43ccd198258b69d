package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmorneau/ledgerbook/internal/currency"
	"github.com/dmorneau/ledgerbook/internal/domain/entity"
)

// memoryDB is an in-memory Persistence for tests.
type memoryDB struct {
	data map[string][]byte
}

func newMemoryDB() *memoryDB {
	return &memoryDB{data: make(map[string][]byte)}
}

func (m *memoryDB) Load(_ context.Context, key string) ([]byte, error) {
	raw, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return raw, nil
}

func (m *memoryDB) Save(_ context.Context, key string, value []byte) error {
	m.data[key] = value
	return nil
}

func (m *memoryDB) SaveAll(_ context.Context, values map[string][]byte) error {
	for key, value := range values {
		m.data[key] = value
	}
	return nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), newMemoryDB(), currency.NewConverter(currency.DefaultRates()), zap.NewNop())
	require.NoError(t, err)
	return s
}

// checkLinks asserts the bidirectional expense/invoice link invariant.
func checkLinks(t *testing.T, s *Store) {
	t.Helper()

	for _, inv := range s.ListInvoices() {
		for _, id := range inv.AttachedExpenseIDs {
			e := s.GetExpense(id)
			require.NotNil(t, e, "attached expense %s must exist", id)
			assert.Equal(t, inv.ID, e.BilledToInvoiceID)
		}
	}
	for _, e := range s.ListExpenses() {
		if e.BilledToInvoiceID == "" {
			continue
		}
		inv := s.GetInvoice(e.BilledToInvoiceID)
		require.NotNil(t, inv, "expense %s points at missing invoice", e.ID)
		assert.True(t, inv.HasExpense(e.ID))
	}
}

func TestOpenSeedsOnFirstRun(t *testing.T) {
	s := newTestStore(t)

	assert.Len(t, s.ListCompanies(), 2)
	assert.Len(t, s.ListInvoices(), 1)
	assert.Len(t, s.ListExpenses(), 4)
	assert.Len(t, s.Categories(), 5)
	assert.NotEmpty(t, s.UserProfile().Name)
	checkLinks(t, s)
}

func TestOpenPrefersPersistedState(t *testing.T) {
	ctx := context.Background()
	db := newMemoryDB()
	conv := currency.NewConverter(currency.DefaultRates())

	s1, err := Open(ctx, db, conv, zap.NewNop())
	require.NoError(t, err)

	created, err := s1.AddCompany(ctx, &entity.Company{Name: "Northline Rigging"})
	require.NoError(t, err)
	require.NoError(t, s1.DeleteAllExpenses(ctx))

	s2, err := Open(ctx, db, conv, zap.NewNop())
	require.NoError(t, err)

	assert.Len(t, s2.ListCompanies(), 3)
	assert.NotNil(t, s2.GetCompany(created.ID))
	assert.Empty(t, s2.ListExpenses())
}

func TestCompanyCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c, err := s.AddCompany(ctx, &entity.Company{
		Name:           "Brightside Events",
		Address:        "12 King St W, Toronto",
		DefaultRate:    decimal.NewFromInt(700),
		DefaultPerDiem: decimal.NewFromInt(80),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	c.Address = "44 Queen St E, Toronto"
	require.NoError(t, s.UpdateCompany(ctx, c))
	assert.Equal(t, "44 Queen St E, Toronto", s.GetCompany(c.ID).Address)

	require.NoError(t, s.DeleteCompany(ctx, c.ID))
	assert.Nil(t, s.GetCompany(c.ID))

	assert.ErrorIs(t, s.UpdateCompany(ctx, c), ErrCompanyNotFound)
	assert.ErrorIs(t, s.DeleteCompany(ctx, c.ID), ErrCompanyNotFound)
}

func TestDeleteCompanyRejectedWhileInvoiced(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	inv := s.ListInvoices()[0]
	assert.ErrorIs(t, s.DeleteCompany(ctx, inv.CompanyID), ErrCompanyInUse)

	require.NoError(t, s.DeleteInvoice(ctx, inv.ID))
	assert.NoError(t, s.DeleteCompany(ctx, inv.CompanyID))
}

func TestAddExpenseConvertsToCAD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e, err := s.AddExpense(ctx, &entity.Expense{
		Date:        "2025-03-04",
		Description: "Hotel night",
		Amount:      decimal.NewFromInt(100),
		Currency:    entity.CurrencyUSD,
		Category:    "Lodging",
		IsBillable:  true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Empty(t, e.BilledToInvoiceID)
	assert.True(t, e.CADAmount.Equal(decimal.RequireFromString("137.9333333")),
		"got %s", e.CADAmount)
}

func TestUpdateExpensePreservesAttachment(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	inv := s.ListInvoices()[0]
	require.NotEmpty(t, inv.AttachedExpenseIDs)
	attached := s.GetExpense(inv.AttachedExpenseIDs[0])

	// Client payloads do not carry the link; it must survive the update.
	attached.Description = "Parking at venue (corrected)"
	attached.BilledToInvoiceID = ""
	require.NoError(t, s.UpdateExpense(ctx, attached))

	got := s.GetExpense(attached.ID)
	assert.Equal(t, "Parking at venue (corrected)", got.Description)
	assert.Equal(t, inv.ID, got.BilledToInvoiceID)
	checkLinks(t, s)
}

func TestDeleteExpenseDetachesFromInvoices(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	inv := s.ListInvoices()[0]
	require.NotEmpty(t, inv.AttachedExpenseIDs)
	victim := inv.AttachedExpenseIDs[0]

	require.NoError(t, s.DeleteExpense(ctx, victim))

	assert.Nil(t, s.GetExpense(victim))
	assert.False(t, s.GetInvoice(inv.ID).HasExpense(victim))
	checkLinks(t, s)

	assert.ErrorIs(t, s.DeleteExpense(ctx, victim), ErrExpenseNotFound)
}

func TestDeleteAllExpenses(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.MarkFileProcessed(ctx, "receipt-001.png:1234"))
	invoiceCount := len(s.ListInvoices())

	require.NoError(t, s.DeleteAllExpenses(ctx))

	assert.Empty(t, s.ListExpenses())
	assert.Len(t, s.ListInvoices(), invoiceCount)
	for _, inv := range s.ListInvoices() {
		assert.Empty(t, inv.AttachedExpenseIDs)
	}
	assert.False(t, s.IsFileProcessed("receipt-001.png:1234"))
}

func TestAddInvoiceStampsExpenses(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e, err := s.AddExpense(ctx, &entity.Expense{
		Date:       "2025-04-01",
		Amount:     decimal.NewFromInt(40),
		Currency:   entity.CurrencyCAD,
		Category:   "Travel",
		IsBillable: true,
	})
	require.NoError(t, err)

	company := s.ListCompanies()[0]
	inv, err := s.AddInvoice(ctx, &entity.Invoice{
		CompanyID:          company.ID,
		Date:               "2025-04-15",
		AttachedExpenseIDs: []string{e.ID},
		HSTRate:            decimal.RequireFromString("0.13"),
		Items: []entity.InvoiceItem{{
			StartDate:   "2025-04-01",
			Description: "Lighting Design",
			Quantity:    1,
			Unit:        entity.UnitDay,
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusDraft, inv.Status)
	assert.Equal(t, inv.ID, s.GetExpense(e.ID).BilledToInvoiceID)
	assert.Equal(t, inv.ID, s.ListInvoices()[0].ID, "new invoices go first")
	checkLinks(t, s)
}

func TestAddInvoiceNumbering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	company := s.ListCompanies()[0]
	first, err := s.AddInvoice(ctx, &entity.Invoice{CompanyID: company.ID, Date: "2025-05-01"})
	require.NoError(t, err)
	second, err := s.AddInvoice(ctx, &entity.Invoice{CompanyID: company.ID, Date: "2025-05-02"})
	require.NoError(t, err)

	assert.Equal(t, first.InvoiceNumber+1, second.InvoiceNumber)

	require.NoError(t, s.DeleteInvoice(ctx, first.ID))
	third, err := s.AddInvoice(ctx, &entity.Invoice{CompanyID: company.ID, Date: "2025-05-03"})
	require.NoError(t, err)
	assert.Equal(t, second.InvoiceNumber+1, third.InvoiceNumber, "numbers never reused")
}

func TestAddInvoiceValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AddInvoice(ctx, &entity.Invoice{CompanyID: "comp-missing", Date: "2025-05-01"})
	assert.ErrorIs(t, err, ErrCompanyNotFound)

	company := s.ListCompanies()[0]

	_, err = s.AddInvoice(ctx, &entity.Invoice{
		CompanyID:          company.ID,
		AttachedExpenseIDs: []string{"exp-missing"},
	})
	assert.ErrorIs(t, err, ErrExpenseNotFound)

	nonBillable, err := s.AddExpense(ctx, &entity.Expense{
		Date: "2025-05-01", Amount: decimal.NewFromInt(10), Currency: entity.CurrencyCAD,
	})
	require.NoError(t, err)
	_, err = s.AddInvoice(ctx, &entity.Invoice{
		CompanyID:          company.ID,
		AttachedExpenseIDs: []string{nonBillable.ID},
	})
	assert.ErrorIs(t, err, ErrExpenseUnavailable)

	// Already attached elsewhere.
	taken := s.ListInvoices()[0].AttachedExpenseIDs[0]
	_, err = s.AddInvoice(ctx, &entity.Invoice{
		CompanyID:          company.ID,
		AttachedExpenseIDs: []string{taken},
	})
	assert.ErrorIs(t, err, ErrExpenseUnavailable)
	checkLinks(t, s)
}

func TestInvoiceItemNormalization(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	company := s.ListCompanies()[0]
	end := "2025-06-05"
	inv, err := s.AddInvoice(ctx, &entity.Invoice{
		CompanyID: company.ID,
		Date:      "2025-06-10",
		Items: []entity.InvoiceItem{
			{
				StartDate:   "2025-06-02",
				EndDate:     &end,
				Description: "Show calls",
				Unit:        entity.UnitDay,
			},
			{
				StartDate:   "2025-06-06",
				Description: "Patch notes",
				Quantity:    3,
				Unit:        entity.UnitHourly,
			},
		},
	})
	require.NoError(t, err)

	day := inv.Items[0]
	assert.NotEmpty(t, day.ID)
	assert.Equal(t, entity.CurrencyCAD, day.PerDiemCurrency)
	assert.Equal(t, float64(4), day.Quantity, "quantity derived from inclusive span")
	assert.True(t, day.Rate.Equal(company.DefaultRate))
	assert.True(t, day.Amount.Equal(company.DefaultRate.Mul(decimal.NewFromInt(4))))

	hourly := inv.Items[1]
	assert.Equal(t, float64(3), hourly.Quantity)
	assert.True(t, hourly.Rate.Equal(company.DefaultRate.Div(decimal.NewFromInt(10))))
	assert.True(t, hourly.Amount.Equal(hourly.Rate.Mul(decimal.NewFromInt(3))))
}

func TestUpdateInvoiceReconcilesAttachments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	inv := s.ListInvoices()[0]
	require.Len(t, inv.AttachedExpenseIDs, 2)
	kept, dropped := inv.AttachedExpenseIDs[0], inv.AttachedExpenseIDs[1]

	added, err := s.AddExpense(ctx, &entity.Expense{
		Date: "2025-07-01", Amount: decimal.NewFromInt(25),
		Currency: entity.CurrencyCAD, Category: "Meals", IsBillable: true,
	})
	require.NoError(t, err)

	inv.AttachedExpenseIDs = []string{kept, added.ID}
	require.NoError(t, s.UpdateInvoice(ctx, inv))

	assert.Equal(t, inv.ID, s.GetExpense(kept).BilledToInvoiceID)
	assert.Equal(t, inv.ID, s.GetExpense(added.ID).BilledToInvoiceID)
	assert.Empty(t, s.GetExpense(dropped).BilledToInvoiceID)
	checkLinks(t, s)
}

func TestUpdateInvoicePreservesNumber(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	inv := s.ListInvoices()[0]
	want := inv.InvoiceNumber

	inv.InvoiceNumber = 999
	inv.Notes = "net 30"
	require.NoError(t, s.UpdateInvoice(ctx, inv))

	assert.Equal(t, want, s.GetInvoice(inv.ID).InvoiceNumber)
	assert.Equal(t, "net 30", s.GetInvoice(inv.ID).Notes)
}

func TestUpdateInvoiceRejectsExpenseHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	company := s.ListCompanies()[0]
	other, err := s.AddInvoice(ctx, &entity.Invoice{CompanyID: company.ID, Date: "2025-07-10"})
	require.NoError(t, err)

	held := s.ListInvoices()[1].AttachedExpenseIDs[0]
	other.AttachedExpenseIDs = []string{held}
	assert.ErrorIs(t, s.UpdateInvoice(ctx, other), ErrExpenseUnavailable)
	checkLinks(t, s)
}

func TestDeleteInvoiceDetachesExpenses(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	inv := s.ListInvoices()[0]
	attached := append([]string(nil), inv.AttachedExpenseIDs...)
	require.NotEmpty(t, attached)

	require.NoError(t, s.DeleteInvoice(ctx, inv.ID))

	assert.Nil(t, s.GetInvoice(inv.ID))
	for _, id := range attached {
		e := s.GetExpense(id)
		require.NotNil(t, e, "expenses survive invoice deletion")
		assert.Empty(t, e.BilledToInvoiceID)
	}
	checkLinks(t, s)
}

// brokenDB rejects multi-key writes once armed, committing nothing.
type brokenDB struct {
	*memoryDB
	armed bool
}

func (b *brokenDB) SaveAll(ctx context.Context, values map[string][]byte) error {
	if b.armed {
		return assert.AnError
	}
	return b.memoryDB.SaveAll(ctx, values)
}

func TestDeleteInvoicePersistFailureLeavesNoHalfState(t *testing.T) {
	ctx := context.Background()
	db := &brokenDB{memoryDB: newMemoryDB()}
	conv := currency.NewConverter(currency.DefaultRates())

	s1, err := Open(ctx, db, conv, zap.NewNop())
	require.NoError(t, err)
	inv := s1.ListInvoices()[0]
	require.NotEmpty(t, inv.AttachedExpenseIDs)

	db.armed = true
	require.Error(t, s1.DeleteInvoice(ctx, inv.ID))
	db.armed = false

	// A reload from the same database must never see expenses stamped
	// with an invoice that is gone.
	s2, err := Open(ctx, db, conv, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, s2.GetInvoice(inv.ID), "failed delete must not persist either side")
	checkLinks(t, s2)
}

func TestAvailableExpenses(t *testing.T) {
	s := newTestStore(t)

	inv := s.ListInvoices()[0]
	attached := inv.AttachedExpenseIDs[0]

	forNew := s.AvailableExpenses("")
	for _, e := range forNew {
		assert.True(t, e.IsBillable)
		assert.Empty(t, e.BilledToInvoiceID)
	}

	forOwner := s.AvailableExpenses(inv.ID)
	ids := make([]string, 0, len(forOwner))
	for _, e := range forOwner {
		ids = append(ids, e.ID)
	}
	assert.Contains(t, ids, attached, "own attachments stay selectable")
}

func TestAddInvoiceWithExpenses(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	company := s.ListCompanies()[1]
	inv, err := s.AddInvoiceWithExpenses(ctx,
		&entity.Invoice{
			CompanyID: company.ID,
			Date:      "2025-08-01",
			HSTRate:   decimal.RequireFromString("0.13"),
			Items: []entity.InvoiceItem{{
				StartDate: "2025-08-01", Description: "FOH mix", Quantity: 1, Unit: entity.UnitDay,
			}},
		},
		[]*entity.Expense{
			{Date: "2025-08-01", Description: "Taxi", Amount: decimal.NewFromInt(30), Currency: entity.CurrencyCAD, Category: "Travel", IsBillable: true},
			{Date: "2025-08-01", Description: "Lunch", Amount: decimal.NewFromInt(18), Currency: entity.CurrencyCAD, Category: "Meals", IsBillable: true},
		})
	require.NoError(t, err)

	require.Len(t, inv.AttachedExpenseIDs, 2)
	for _, id := range inv.AttachedExpenseIDs {
		assert.Equal(t, inv.ID, s.GetExpense(id).BilledToInvoiceID)
	}
	checkLinks(t, s)
}

func TestAddInvoiceWithExpensesHonoursSuppliedNumber(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	company := s.ListCompanies()[0]
	inv, err := s.AddInvoiceWithExpenses(ctx,
		&entity.Invoice{CompanyID: company.ID, InvoiceNumber: 42, Date: "2025-08-02"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, inv.InvoiceNumber)

	next, err := s.AddInvoice(ctx, &entity.Invoice{CompanyID: company.ID, Date: "2025-08-03"})
	require.NoError(t, err)
	assert.Equal(t, 43, next.InvoiceNumber)
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := len(s.Categories())

	require.NoError(t, s.AddCategory(ctx, "Software"))
	assert.Len(t, s.Categories(), base+1)

	// Duplicates and blanks are silent no-ops.
	require.NoError(t, s.AddCategory(ctx, "software"))
	require.NoError(t, s.AddCategory(ctx, "  "))
	assert.Len(t, s.Categories(), base+1)

	assert.ErrorIs(t, s.RenameCategory(ctx, "Software", ""), ErrCategoryInvalid)
	assert.ErrorIs(t, s.RenameCategory(ctx, "Software", "TRAVEL"), ErrCategoryExists)
	assert.ErrorIs(t, s.RenameCategory(ctx, "Nope", "Subscriptions"), ErrCategoryNotFound)

	require.NoError(t, s.RenameCategory(ctx, "Software", "Subscriptions"))
	assert.Contains(t, s.Categories(), "Subscriptions")
	assert.NotContains(t, s.Categories(), "Software")

	require.NoError(t, s.DeleteCategory(ctx, "Subscriptions"))
	assert.ErrorIs(t, s.DeleteCategory(ctx, "Subscriptions"), ErrCategoryNotFound)
}

func TestRenameCategoryCascadesToExpenses(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e, err := s.AddExpense(ctx, &entity.Expense{
		Date: "2025-08-05", Amount: decimal.NewFromInt(12),
		Currency: entity.CurrencyCAD, Category: "Meals",
	})
	require.NoError(t, err)

	require.NoError(t, s.RenameCategory(ctx, "Meals", "Food"))
	assert.Equal(t, "Food", s.GetExpense(e.ID).Category)
}

func TestDeleteCategoryRejectedWhileInUse(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	used := s.ListExpenses()[0].Category
	assert.ErrorIs(t, s.DeleteCategory(ctx, used), ErrCategoryInUse)
}

func TestUserProfile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := entity.UserProfile{Name: "Dana Morneau", Address: "9 Birch Ave, Hamilton, ON"}
	require.NoError(t, s.UpdateUserProfile(ctx, p))
	assert.Equal(t, p, s.UserProfile())
}

func TestProcessedFileHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := "scans/receipt-042.pdf:88211"
	assert.False(t, s.IsFileProcessed(key))
	require.NoError(t, s.MarkFileProcessed(ctx, key))
	assert.True(t, s.IsFileProcessed(key))
}
