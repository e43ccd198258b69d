// Package sqlite implements the ledger's durable key-value persistence on
// a sqlite table. Values are the JSON blobs the store hands over; the
// schema never needs migrations because the table shape is fixed.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dmorneau/ledgerbook/internal/ledger"
	"github.com/dmorneau/ledgerbook/pkg/database"
)

// KV stores collection blobs in a single kv_store table.
type KV struct {
	db     *database.DB
	logger *zap.Logger
}

var _ ledger.Persistence = (*KV)(nil)

// NewKV creates the key-value persistence, creating its table when absent.
func NewKV(db *database.DB, logger *zap.Logger) (*KV, error) {
	query := `
		CREATE TABLE IF NOT EXISTS kv_store (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create kv_store table: %w", err)
	}
	return &KV{db: db, logger: logger}, nil
}

// Load returns the value for key, or (nil, nil) when the key has never
// been saved.
func (kv *KV) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := kv.db.QueryRowContext(ctx,
		"SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load key %s: %w", key, err)
	}
	return value, nil
}

// Save upserts the value for key.
func (kv *KV) Save(ctx context.Context, key string, value []byte) error {
	_, err := kv.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to save key %s: %w", key, err)
	}

	kv.logger.Debug("Collection persisted",
		zap.String("key", key),
		zap.Int("bytes", len(value)))
	return nil
}

// SaveAll upserts every key inside a single transaction, so either all
// collections land or none do.
func (kv *KV) SaveAll(ctx context.Context, values map[string][]byte) error {
	err := kv.db.WithTransaction(func(tx *sql.Tx) error {
		for key, value := range values {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
			`, key, value); err != nil {
				return fmt.Errorf("failed to save key %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	kv.logger.Debug("Collections persisted", zap.Int("keys", len(values)))
	return nil
}
