// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/finance-ledger/internal/logging"
	"github.com/finance-ledger/internal/models"
	"github.com/finance-ledger/internal/service"
	"github.com/finance-ledger/internal/storage"
	"github.com/finance-ledger/internal/types"
	"github.com/gorilla/mux"
)

// Service interfaces for dependency injection and testing

// FinanceServiceInterface defines the interface for write-side operations
type FinanceServiceInterface interface {
	CreateEntity(ctx context.Context, input *service.CreateEntityInput) (*service.MutationResult, error)
	UpdateEntity(ctx context.Context, input *service.UpdateEntityInput) (*service.MutationResult, error)
	DeleteEntity(ctx context.Context, input *service.DeleteEntityInput) (*service.MutationResult, error)
	ListAssets(ctx context.Context, userID string) ([]*models.Asset, error)
	ListLiabilities(ctx context.Context, userID string) ([]*models.Liability, error)
	ListIncomes(ctx context.Context, userID string) ([]*models.IncomeLine, error)
	ListExpenses(ctx context.Context, userID string) ([]*models.Expense, error)
	GetCashSavings(ctx context.Context, userID string) (*models.CashSavings, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

// AnalysisServiceInterface defines the interface for analysis operations
type AnalysisServiceInterface interface {
	GetFinancialSnapshot(ctx context.Context, userID string, asOf *time.Time) (*service.FinancialAnalysis, error)
	GetFinancialTrajectory(ctx context.Context, userID string, startDate, endDate time.Time, interval types.Interval) ([]*service.TrajectoryPoint, error)
}

// ActivityServiceInterface defines the interface for the event feed
type ActivityServiceInterface interface {
	GetActivityFeed(ctx context.Context, userID string, filters *storage.EventFilters) (*service.ActivityFeed, error)
}

// ConsistencyServiceInterface defines the interface for read-model audits
type ConsistencyServiceInterface interface {
	CheckUser(ctx context.Context, userID string) (*service.ConsistencyCheckResult, error)
}

// Server represents the HTTP API server.
type Server struct {
	router             *mux.Router
	httpServer         *http.Server
	financeService     FinanceServiceInterface
	analysisService    AnalysisServiceInterface
	activityService    ActivityServiceInterface
	consistencyService ConsistencyServiceInterface
	config             *ServerConfig
	logger             *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	FreeTierRPS     int
	PaidTierRPS     int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	financeService FinanceServiceInterface,
	analysisService AnalysisServiceInterface,
	activityService ActivityServiceInterface,
	consistencyService ConsistencyServiceInterface,
	logger *logging.Logger,
) *Server {
	s := &Server{
		router:             mux.NewRouter(),
		financeService:     financeService,
		analysisService:    analysisService,
		activityService:    activityService,
		consistencyService: consistencyService,
		config:             config,
		logger:             logger,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.FreeTierRPS, s.config.PaidTierRPS)

	// Middleware order matters
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// API v1 routes
	api := s.router.PathPrefix("/api").Subrouter()

	// Asset endpoints
	api.HandleFunc("/assets", s.handleCreateAsset).Methods("POST")
	api.HandleFunc("/assets", s.handleListAssets).Methods("GET")
	api.HandleFunc("/assets/{id}", s.handleUpdateAsset).Methods("PUT")
	api.HandleFunc("/assets/{id}", s.handleDeleteAsset).Methods("DELETE")

	// Liability endpoints
	api.HandleFunc("/liabilities", s.handleCreateLiability).Methods("POST")
	api.HandleFunc("/liabilities", s.handleListLiabilities).Methods("GET")
	api.HandleFunc("/liabilities/{id}", s.handleUpdateLiability).Methods("PUT")
	api.HandleFunc("/liabilities/{id}", s.handleDeleteLiability).Methods("DELETE")

	// Income endpoints
	api.HandleFunc("/incomes", s.handleCreateIncome).Methods("POST")
	api.HandleFunc("/incomes", s.handleListIncomes).Methods("GET")
	api.HandleFunc("/incomes/{id}", s.handleUpdateIncome).Methods("PUT")
	api.HandleFunc("/incomes/{id}", s.handleDeleteIncome).Methods("DELETE")

	// Expense endpoints
	api.HandleFunc("/expenses", s.handleCreateExpense).Methods("POST")
	api.HandleFunc("/expenses", s.handleListExpenses).Methods("GET")
	api.HandleFunc("/expenses/{id}", s.handleUpdateExpense).Methods("PUT")
	api.HandleFunc("/expenses/{id}", s.handleDeleteExpense).Methods("DELETE")

	// Cash savings endpoints
	api.HandleFunc("/cash-savings", s.handleCreateCashSavings).Methods("POST")
	api.HandleFunc("/cash-savings", s.handleGetCashSavings).Methods("GET")
	api.HandleFunc("/cash-savings/{id}", s.handleUpdateCashSavings).Methods("PUT")
	api.HandleFunc("/cash-savings/{id}", s.handleDeleteCashSavings).Methods("DELETE")

	// User preference endpoints
	api.HandleFunc("/users/me", s.handleCreateUser).Methods("POST")
	api.HandleFunc("/users/me", s.handleGetUser).Methods("GET")
	api.HandleFunc("/users/me", s.handleUpdateUser).Methods("PUT")

	// Event feed endpoints
	api.HandleFunc("/events", s.handleGetEvents).Methods("GET")

	// Analysis endpoints
	api.HandleFunc("/analysis/snapshot", s.handleGetSnapshot).Methods("GET")
	api.HandleFunc("/analysis/trajectory", s.handleGetTrajectory).Methods("GET")
	api.HandleFunc("/analysis/consistency", s.handleCheckConsistency).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "finance-ledger",
	})
}

// Router returns the configured router, used by tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
