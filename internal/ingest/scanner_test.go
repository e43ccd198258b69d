package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScanner(t *testing.T, ex Extractor, dirs []string) (*Scanner, *Importer) {
	t.Helper()
	im, store := newTestImporter(t, ex)
	return NewScanner(store, im, zap.NewNop(), dirs, time.Minute, 0), im
}

func writeFile(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), content, 0o644))
}

func TestScanOnceImportsSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "receipt.png", []byte("png bytes"))
	writeFile(t, dir, "scan.PDF", []byte("pdf bytes"))
	writeFile(t, dir, "notes.txt", []byte("ignore me"))

	ex := &fakeExtractor{receipt: &ReceiptExtraction{ExtractedExpense: ExtractedExpense{
		Date: "2025-05-01", Description: "Receipt", Amount: decimal.NewFromInt(10), Currency: "CAD", Category: "Misc",
	}}}
	sc, im := newTestScanner(t, ex, []string{dir})

	sc.scanOnce(context.Background())

	expenses := im.store.ListExpenses()
	assert.Len(t, expenses, 6, "seed expenses plus the two supported files")
}

func TestScanOnceSkipsProcessedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "receipt.jpg", []byte("jpeg bytes"))

	ex := &fakeExtractor{receipt: &ReceiptExtraction{ExtractedExpense: ExtractedExpense{
		Date: "2025-05-01", Description: "Receipt", Amount: decimal.NewFromInt(10), Currency: "CAD", Category: "Misc",
	}}}
	sc, im := newTestScanner(t, ex, []string{dir})

	sc.scanOnce(context.Background())
	before := len(im.store.ListExpenses())

	sc.scanOnce(context.Background())
	assert.Len(t, im.store.ListExpenses(), before, "same file never imports twice")

	// A changed size is a new fingerprint.
	writeFile(t, dir, "receipt.jpg", []byte("jpeg bytes, rescanned"))
	sc.scanOnce(context.Background())
	assert.Len(t, im.store.ListExpenses(), before+1)
}

func TestScanOnceMissingDir(t *testing.T) {
	ex := &fakeExtractor{}
	sc, im := newTestScanner(t, ex, []string{"/nonexistent/receipts"})

	before := len(im.store.ListExpenses())
	sc.scanOnce(context.Background())
	assert.Len(t, im.store.ListExpenses(), before, "unreadable folders are skipped, not fatal")
}

func TestScannerStartStop(t *testing.T) {
	ex := &fakeExtractor{}
	sc, _ := newTestScanner(t, ex, []string{t.TempDir()})

	require.NoError(t, sc.Start(context.Background()))
	assert.Error(t, sc.Start(context.Background()), "double start rejected")

	sc.Stop()
	sc.Stop() // idempotent
}
