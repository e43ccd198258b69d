package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dmorneau/ledgerbook/internal/ledger"
)

// mimeTypes maps the file extensions the scanner picks up to the MIME
// type handed to the extractor. Everything else is ignored.
var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// MIMETypeFor maps a file name to the MIME type the extractor accepts.
// Returns false for unsupported extensions.
func MIMETypeFor(name string) (string, bool) {
	mimeType, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]
	return mimeType, ok
}

// Scanner watches receipt drop folders and imports new files on a timer.
// Files are fingerprinted by name and size; a fingerprint that was already
// imported is skipped, so re-scans and restarts never double-book.
type Scanner struct {
	store    *ledger.Store
	importer *Importer
	logger   *zap.Logger

	dirs      []string
	interval  time.Duration
	fileDelay time.Duration

	mu        sync.Mutex
	scanLock  sync.Mutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewScanner creates a folder scanner. fileDelay is a pause between file
// imports so a burst of drops does not hammer the extraction API.
func NewScanner(store *ledger.Store, importer *Importer, logger *zap.Logger, dirs []string, interval, fileDelay time.Duration) *Scanner {
	return &Scanner{
		store:     store,
		importer:  importer,
		logger:    logger,
		dirs:      dirs,
		interval:  interval,
		fileDelay: fileDelay,
	}
}

// Start begins the scan loop.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("receipt scanner is already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.isRunning = true

	s.logger.Info("Receipt scanner started",
		zap.Strings("dirs", s.dirs),
		zap.Duration("interval", s.interval))

	go s.scanLoop()

	return nil
}

// Stop stops the scan loop.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
	}

	s.logger.Info("Receipt scanner stopped")
}

// Name returns the worker name.
func (s *Scanner) Name() string {
	return "ReceiptScanner"
}

func (s *Scanner) scanLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Scan immediately on start.
	s.scanOnce(s.ctx)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.scanOnce(s.ctx)
		}
	}
}

// scanOnce walks every configured folder and imports unseen files. If a
// previous scan is still running the tick is skipped rather than queued.
func (s *Scanner) scanOnce(ctx context.Context) {
	if !s.scanLock.TryLock() {
		s.logger.Debug("Previous scan still running, skipping tick")
		return
	}
	defer s.scanLock.Unlock()

	imported := 0
	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			s.logger.Warn("Failed to read scan folder",
				zap.String("dir", dir),
				zap.Error(err))
			continue
		}

		for _, entry := range entries {
			if ctx.Err() != nil {
				return
			}
			if entry.IsDir() {
				continue
			}

			if s.importFile(ctx, dir, entry) {
				imported++
				if !sleepCtx(ctx, s.fileDelay) {
					return
				}
			}
		}
	}

	if imported > 0 {
		s.logger.Info("Scan completed", zap.Int("imported", imported))
	}
}

// importFile imports a single directory entry. Returns true when an import
// was attempted, false when the file was skipped.
func (s *Scanner) importFile(ctx context.Context, dir string, entry os.DirEntry) bool {
	mimeType, ok := MIMETypeFor(entry.Name())
	if !ok {
		return false
	}

	info, err := entry.Info()
	if err != nil {
		s.logger.Warn("Failed to stat file", zap.String("file", entry.Name()), zap.Error(err))
		return false
	}

	fingerprint := fmt.Sprintf("%s:%d", entry.Name(), info.Size())
	if s.store.IsFileProcessed(fingerprint) {
		return false
	}

	path := filepath.Join(dir, entry.Name())
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("Failed to read file", zap.String("path", path), zap.Error(err))
		return false
	}

	expense, err := s.importer.ImportReceipt(ctx, entry.Name(), data, mimeType)
	if err != nil {
		s.logger.Error("Failed to import receipt",
			zap.String("path", path),
			zap.Error(err))
		return false
	}

	if err := s.store.MarkFileProcessed(ctx, fingerprint); err != nil {
		s.logger.Error("Failed to record file fingerprint",
			zap.String("fingerprint", fingerprint),
			zap.Error(err))
	}

	s.logger.Info("Receipt file imported",
		zap.String("file", entry.Name()),
		zap.String("expense_id", expense.ID))
	return true
}

// sleepCtx sleeps for d unless the context is cancelled first. Returns
// false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
