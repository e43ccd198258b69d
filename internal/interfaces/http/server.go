// Package http is the HTTP adapter: a thin layer translating requests to
// store, billing, reporting and import calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dmorneau/ledgerbook/internal/billing"
	"github.com/dmorneau/ledgerbook/internal/export"
	"github.com/dmorneau/ledgerbook/internal/ingest"
	"github.com/dmorneau/ledgerbook/internal/ledger"
	"github.com/dmorneau/ledgerbook/internal/reports"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	logger     *zap.Logger
}

// NewServer creates the HTTP server and wires all routes.
func NewServer(
	config ServerConfig,
	store *ledger.Store,
	engine *billing.Engine,
	reporter *reports.Service,
	importer *ingest.Importer,
	excel *export.ExcelWriter,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config: config,
		router: router,
		logger: logger,
	}

	router.Use(gin.Recovery())
	router.Use(server.loggingMiddleware())

	handlers := NewHandlers(store, engine, reporter, importer, excel, logger)

	router.GET("/health", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/companies", handlers.ListCompanies)
		api.POST("/companies", handlers.AddCompany)
		api.PUT("/companies/:id", handlers.UpdateCompany)
		api.DELETE("/companies/:id", handlers.DeleteCompany)

		api.GET("/expenses", handlers.ListExpenses)
		api.POST("/expenses", handlers.AddExpense)
		api.DELETE("/expenses", handlers.DeleteAllExpenses)
		api.GET("/expenses/available", handlers.AvailableExpenses)
		api.PUT("/expenses/:id", handlers.UpdateExpense)
		api.DELETE("/expenses/:id", handlers.DeleteExpense)

		api.GET("/invoices", handlers.ListInvoices)
		api.POST("/invoices", handlers.AddInvoice)
		api.GET("/invoices/:id", handlers.GetInvoice)
		api.PUT("/invoices/:id", handlers.UpdateInvoice)
		api.DELETE("/invoices/:id", handlers.DeleteInvoice)
		api.GET("/invoices/:id/totals", handlers.InvoiceTotals)
		api.GET("/invoices/:id/render", handlers.RenderInvoice)
		api.PUT("/invoices/:id/status", handlers.UpdateInvoiceStatus)

		api.GET("/categories", handlers.ListCategories)
		api.POST("/categories", handlers.AddCategory)
		api.PUT("/categories", handlers.RenameCategory)
		api.DELETE("/categories/:name", handlers.DeleteCategory)

		api.GET("/profile", handlers.GetProfile)
		api.PUT("/profile", handlers.UpdateProfile)

		api.GET("/reports/summary", handlers.ReportSummary)
		api.GET("/reports/monthly", handlers.ReportMonthly)
		api.GET("/reports/categories", handlers.ReportCategories)
		api.GET("/reports/expenses", handlers.ReportExpenses)
		api.GET("/reports/expenses/export", handlers.ExportExpenses)

		api.POST("/import/receipt", handlers.ImportReceipt)
		api.POST("/import/invoice", handlers.ImportInvoiceDocument)
	}

	return server
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// Start runs the server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
