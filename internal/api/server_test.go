package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/finance-ledger/internal/errors"
	"github.com/finance-ledger/internal/ledger"
	"github.com/finance-ledger/internal/logging"
	"github.com/finance-ledger/internal/models"
	"github.com/finance-ledger/internal/service"
	"github.com/finance-ledger/internal/storage"
	"github.com/finance-ledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stub services for handler tests

type stubFinanceService struct {
	createErr error
	updateErr error
	deleteErr error
	assets    []*models.Asset
}

func (s *stubFinanceService) CreateEntity(ctx context.Context, input *service.CreateEntityInput) (*service.MutationResult, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &service.MutationResult{
		Event: &models.Event{
			ID:         1,
			ActionType: types.ActionCreate,
			EntityType: input.EntityType,
			UserID:     input.UserID,
			EntityID:   "e1",
		},
	}, nil
}

func (s *stubFinanceService) UpdateEntity(ctx context.Context, input *service.UpdateEntityInput) (*service.MutationResult, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &service.MutationResult{
		Event: &models.Event{
			ID:         2,
			ActionType: types.ActionUpdate,
			EntityType: input.EntityType,
			UserID:     input.UserID,
			EntityID:   input.EntityID,
		},
	}, nil
}

func (s *stubFinanceService) DeleteEntity(ctx context.Context, input *service.DeleteEntityInput) (*service.MutationResult, error) {
	if s.deleteErr != nil {
		return nil, s.deleteErr
	}
	return &service.MutationResult{
		Event: &models.Event{
			ID:         3,
			ActionType: types.ActionDelete,
			EntityType: input.EntityType,
			UserID:     input.UserID,
			EntityID:   input.EntityID,
		},
	}, nil
}

func (s *stubFinanceService) ListAssets(ctx context.Context, userID string) ([]*models.Asset, error) {
	return s.assets, nil
}

func (s *stubFinanceService) ListLiabilities(ctx context.Context, userID string) ([]*models.Liability, error) {
	return nil, nil
}

func (s *stubFinanceService) ListIncomes(ctx context.Context, userID string) ([]*models.IncomeLine, error) {
	return nil, nil
}

func (s *stubFinanceService) ListExpenses(ctx context.Context, userID string) ([]*models.Expense, error) {
	return nil, nil
}

func (s *stubFinanceService) GetCashSavings(ctx context.Context, userID string) (*models.CashSavings, error) {
	return nil, nil
}

func (s *stubFinanceService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return &models.User{ID: userID}, nil
}

type stubAnalysisService struct {
	snapshotErr error
}

func (s *stubAnalysisService) GetFinancialSnapshot(ctx context.Context, userID string, asOf *time.Time) (*service.FinancialAnalysis, error) {
	if s.snapshotErr != nil {
		return nil, s.snapshotErr
	}
	state := ledger.EmptyState()
	return &service.FinancialAnalysis{
		AsOf:    time.Now().UTC(),
		State:   state,
		Metrics: ledger.ComputeMetrics(state),
	}, nil
}

func (s *stubAnalysisService) GetFinancialTrajectory(ctx context.Context, userID string, startDate, endDate time.Time, interval types.Interval) ([]*service.TrajectoryPoint, error) {
	if !interval.Valid() {
		return nil, apperrors.NewInvalidParameterError("interval", "unknown interval")
	}
	return nil, nil
}

type stubActivityService struct{}

func (s *stubActivityService) GetActivityFeed(ctx context.Context, userID string, filters *storage.EventFilters) (*service.ActivityFeed, error) {
	return &service.ActivityFeed{Limit: filters.Limit, Offset: filters.Offset}, nil
}

type stubConsistencyService struct{}

func (s *stubConsistencyService) CheckUser(ctx context.Context, userID string) (*service.ConsistencyCheckResult, error) {
	return &service.ConsistencyCheckResult{UserID: userID, Consistent: true}, nil
}

func createTestServer(finance *stubFinanceService, analysis *stubAnalysisService) *Server {
	return NewServer(
		&ServerConfig{
			Host:        "localhost",
			Port:        "0",
			FreeTierRPS: 1000,
			PaidTierRPS: 1000,
		},
		finance,
		analysis,
		&stubActivityService{},
		&stubConsistencyService{},
		logging.NewLogger(logging.LevelError, logging.FormatText),
	)
}

func doRequest(server *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-123")
	req.Header.Set("X-User-Tier", "free")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(&stubFinanceService{}, &stubAnalysisService{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateAssetRequiresUserID(t *testing.T) {
	server := createTestServer(&stubFinanceService{}, &stubAnalysisService{})

	req := httptest.NewRequest("POST", "/api/assets", bytes.NewReader([]byte(`{"name":"House","value":1}`)))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAssetSuccess(t *testing.T) {
	server := createTestServer(&stubFinanceService{}, &stubAnalysisService{})

	w := doRequest(server, "POST", "/api/assets", []byte(`{"name":"House","value":300000}`))
	require.Equal(t, http.StatusCreated, w.Code)

	var result service.MutationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, types.ActionCreate, result.Event.ActionType)
	assert.Equal(t, types.EntityAsset, result.Event.EntityType)
}

func TestCreateAssetEmptyBodyRejected(t *testing.T) {
	server := createTestServer(&stubFinanceService{}, &stubAnalysisService{})

	w := doRequest(server, "POST", "/api/assets", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidationErrorMapsTo400(t *testing.T) {
	finance := &stubFinanceService{
		createErr: &ledger.ValidationError{Field: "value", Message: "must be non-negative"},
	}
	server := createTestServer(finance, &stubAnalysisService{})

	w := doRequest(server, "POST", "/api/expenses", []byte(`{"name":"Rent","amount":-5}`))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestNotFoundErrorMapsTo404(t *testing.T) {
	finance := &stubFinanceService{
		updateErr: apperrors.NewNotFoundError("asset", "missing"),
	}
	server := createTestServer(finance, &stubAnalysisService{})

	w := doRequest(server, "PUT", "/api/assets/missing", []byte(`{"name":"House","value":1}`))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPersistenceErrorHidesDetails(t *testing.T) {
	finance := &stubFinanceService{
		createErr: apperrors.NewPersistenceError("append event", assert.AnError),
	}
	server := createTestServer(finance, &stubAnalysisService{})

	w := doRequest(server, "POST", "/api/assets", []byte(`{"name":"House","value":1}`))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "An internal error occurred", resp.Error.Message)
}

func TestListAssets(t *testing.T) {
	finance := &stubFinanceService{
		assets: []*models.Asset{
			{ID: "a1", UserID: "user-123", Name: "House", Value: decimal.NewFromInt(300000)},
		},
	}
	server := createTestServer(finance, &stubAnalysisService{})

	w := doRequest(server, "GET", "/api/assets", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var assets []*models.Asset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &assets))
	require.Len(t, assets, 1)
	assert.Equal(t, "House", assets[0].Name)
}

func TestGetSnapshotDefaultsToNow(t *testing.T) {
	server := createTestServer(&stubFinanceService{}, &stubAnalysisService{})

	w := doRequest(server, "GET", "/api/analysis/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var analysis service.FinancialAnalysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analysis))
	assert.NotNil(t, analysis.Metrics)
}

func TestGetSnapshotRejectsBadTimestamp(t *testing.T) {
	server := createTestServer(&stubFinanceService{}, &stubAnalysisService{})

	w := doRequest(server, "GET", "/api/analysis/snapshot?asOf=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrajectoryRejectsBadInterval(t *testing.T) {
	server := createTestServer(&stubFinanceService{}, &stubAnalysisService{})

	w := doRequest(server, "GET", "/api/analysis/trajectory?startDate=2026-01-01T00:00:00Z&endDate=2026-02-01T00:00:00Z&interval=hourly", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventsFeedParsesFilters(t *testing.T) {
	server := createTestServer(&stubFinanceService{}, &stubAnalysisService{})

	w := doRequest(server, "GET", "/api/events?limit=10&offset=5&entityType=ASSET", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var feed service.ActivityFeed
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &feed))
	assert.Equal(t, 10, feed.Limit)
	assert.Equal(t, 5, feed.Offset)
}

func TestEventsFeedRejectsBadLimit(t *testing.T) {
	server := createTestServer(&stubFinanceService{}, &stubAnalysisService{})

	w := doRequest(server, "GET", "/api/events?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConsistencyEndpoint(t *testing.T) {
	server := createTestServer(&stubFinanceService{}, &stubAnalysisService{})

	w := doRequest(server, "GET", "/api/analysis/consistency", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result service.ConsistencyCheckResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Consistent)
}

func TestCORSHeadersSet(t *testing.T) {
	server := createTestServer(&stubFinanceService{}, &stubAnalysisService{})

	w := doRequest(server, "GET", "/api/assets", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitExceeded(t *testing.T) {
	server := NewServer(
		&ServerConfig{Host: "localhost", Port: "0", FreeTierRPS: 1, PaidTierRPS: 1},
		&stubFinanceService{},
		&stubAnalysisService{},
		&stubActivityService{},
		&stubConsistencyService{},
		logging.NewLogger(logging.LevelError, logging.FormatText),
	)

	// Burst allowance is 10, the 11th immediate request must be refused
	var last int
	for i := 0; i < 11; i++ {
		w := doRequest(server, "GET", "/health", nil)
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
