package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmorneau/ledgerbook/pkg/database"
)

func newTestKV(t *testing.T) *KV {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	kv, err := NewKV(db, zap.NewNop())
	require.NoError(t, err)
	return kv
}

func TestLoadMissingKey(t *testing.T) {
	kv := newTestKV(t)

	value, err := kv.Load(context.Background(), "companies")
	require.NoError(t, err)
	assert.Nil(t, value, "missing key loads as nil, not an error")
}

func TestSaveAndLoad(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	payload := []byte(`[{"id":"comp-1","name":"Apex Lighting"}]`)
	require.NoError(t, kv.Save(ctx, "companies", payload))

	got, err := kv.Load(ctx, "companies")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSaveOverwrites(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Save(ctx, "expenses", []byte(`[]`)))
	require.NoError(t, kv.Save(ctx, "expenses", []byte(`[{"id":"exp-1"}]`)))

	got, err := kv.Load(ctx, "expenses")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"id":"exp-1"}]`), got)
}

func TestSaveAllWritesEveryKey(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Save(ctx, "invoices", []byte(`["stale"]`)))

	require.NoError(t, kv.SaveAll(ctx, map[string][]byte{
		"invoices": []byte(`[{"id":"inv-1"}]`),
		"expenses": []byte(`[{"id":"exp-1"}]`),
	}))

	invoices, err := kv.Load(ctx, "invoices")
	require.NoError(t, err)
	expenses, err := kv.Load(ctx, "expenses")
	require.NoError(t, err)

	assert.Equal(t, []byte(`[{"id":"inv-1"}]`), invoices)
	assert.Equal(t, []byte(`[{"id":"exp-1"}]`), expenses)
}

func TestKeysAreIndependent(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Save(ctx, "companies", []byte(`["a"]`)))
	require.NoError(t, kv.Save(ctx, "invoices", []byte(`["b"]`)))

	companies, err := kv.Load(ctx, "companies")
	require.NoError(t, err)
	invoices, err := kv.Load(ctx, "invoices")
	require.NoError(t, err)

	assert.Equal(t, []byte(`["a"]`), companies)
	assert.Equal(t, []byte(`["b"]`), invoices)
}
