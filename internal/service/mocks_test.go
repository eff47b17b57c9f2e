package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/finance-ledger/internal/models"
	"github.com/finance-ledger/internal/storage"
	"github.com/jackc/pgx/v5"
)

// In-memory fakes for the store interfaces. The fake transaction only tracks
// commit/rollback so tests can assert that every write runs inside one
// transaction and that failures roll back.

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	beginCount int
	beginErr   error
	commitErr  error
	txs        []*fakeTx
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	d.beginCount++
	tx := &fakeTx{commitErr: d.commitErr}
	d.txs = append(d.txs, tx)
	return tx, nil
}

func (d *fakeDB) lastTx() *fakeTx {
	if len(d.txs) == 0 {
		return nil
	}
	return d.txs[len(d.txs)-1]
}

type mockEventStore struct {
	events    []*models.Event
	nextID    int64
	appendErr error
	queries   int
}

func (m *mockEventStore) AppendTx(ctx context.Context, tx pgx.Tx, ev *models.Event) (*models.Event, error) {
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	m.nextID++
	ev.ID = m.nextID
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *mockEventStore) matching(userID string, filters *storage.EventFilters) []*models.Event {
	if filters == nil {
		filters = &storage.EventFilters{}
	}
	var out []*models.Event
	for _, ev := range m.events {
		if ev.UserID != userID {
			continue
		}
		if filters.EntityType != nil && ev.EntityType != *filters.EntityType {
			continue
		}
		if filters.EntityID != nil && ev.EntityID != *filters.EntityID {
			continue
		}
		if filters.After != nil && !ev.Timestamp.After(*filters.After) {
			continue
		}
		if filters.UpTo != nil && ev.Timestamp.After(*filters.UpTo) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func (m *mockEventStore) Query(ctx context.Context, userID string, filters *storage.EventFilters) ([]*models.Event, error) {
	m.queries++
	out := m.matching(userID, filters)
	if filters != nil {
		if filters.Offset > 0 {
			if filters.Offset >= len(out) {
				return nil, nil
			}
			out = out[filters.Offset:]
		}
		if filters.Limit > 0 && len(out) > filters.Limit {
			out = out[:filters.Limit]
		}
	}
	return out, nil
}

func (m *mockEventStore) EarliestTimestamp(ctx context.Context, userID string) (*time.Time, error) {
	var earliest *time.Time
	for _, ev := range m.events {
		if ev.UserID != userID {
			continue
		}
		if earliest == nil || ev.Timestamp.Before(*earliest) {
			ts := ev.Timestamp
			earliest = &ts
		}
	}
	return earliest, nil
}

func (m *mockEventStore) CountByUser(ctx context.Context, userID string, filters *storage.EventFilters) (int64, error) {
	return int64(len(m.matching(userID, filters))), nil
}

type mockAssetStore struct {
	rows      map[string]*models.Asset
	createErr error
}

func newMockAssetStore() *mockAssetStore {
	return &mockAssetStore{rows: make(map[string]*models.Asset)}
}

func (m *mockAssetStore) CreateTx(ctx context.Context, tx pgx.Tx, asset *models.Asset) error {
	if m.createErr != nil {
		return m.createErr
	}
	cp := *asset
	m.rows[asset.ID] = &cp
	return nil
}

func (m *mockAssetStore) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id, userID string) (*models.Asset, error) {
	if row, ok := m.rows[id]; ok && row.UserID == userID {
		cp := *row
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *mockAssetStore) UpdateTx(ctx context.Context, tx pgx.Tx, asset *models.Asset) error {
	if row, ok := m.rows[asset.ID]; !ok || row.UserID != asset.UserID {
		return pgx.ErrNoRows
	}
	cp := *asset
	m.rows[asset.ID] = &cp
	return nil
}

func (m *mockAssetStore) DeleteTx(ctx context.Context, tx pgx.Tx, id, userID string) error {
	if row, ok := m.rows[id]; !ok || row.UserID != userID {
		return pgx.ErrNoRows
	}
	delete(m.rows, id)
	return nil
}

func (m *mockAssetStore) GetByID(ctx context.Context, id, userID string) (*models.Asset, error) {
	return m.GetForUpdateTx(ctx, nil, id, userID)
}

func (m *mockAssetStore) ListByUser(ctx context.Context, userID string) ([]*models.Asset, error) {
	var out []*models.Asset
	for _, row := range m.rows {
		if row.UserID == userID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockLiabilityStore struct {
	rows map[string]*models.Liability
}

func newMockLiabilityStore() *mockLiabilityStore {
	return &mockLiabilityStore{rows: make(map[string]*models.Liability)}
}

func (m *mockLiabilityStore) CreateTx(ctx context.Context, tx pgx.Tx, liability *models.Liability) error {
	cp := *liability
	m.rows[liability.ID] = &cp
	return nil
}

func (m *mockLiabilityStore) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id, userID string) (*models.Liability, error) {
	if row, ok := m.rows[id]; ok && row.UserID == userID {
		cp := *row
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *mockLiabilityStore) UpdateTx(ctx context.Context, tx pgx.Tx, liability *models.Liability) error {
	if row, ok := m.rows[liability.ID]; !ok || row.UserID != liability.UserID {
		return pgx.ErrNoRows
	}
	cp := *liability
	m.rows[liability.ID] = &cp
	return nil
}

func (m *mockLiabilityStore) DeleteTx(ctx context.Context, tx pgx.Tx, id, userID string) error {
	if row, ok := m.rows[id]; !ok || row.UserID != userID {
		return pgx.ErrNoRows
	}
	delete(m.rows, id)
	return nil
}

func (m *mockLiabilityStore) GetByID(ctx context.Context, id, userID string) (*models.Liability, error) {
	return m.GetForUpdateTx(ctx, nil, id, userID)
}

func (m *mockLiabilityStore) ListByUser(ctx context.Context, userID string) ([]*models.Liability, error) {
	var out []*models.Liability
	for _, row := range m.rows {
		if row.UserID == userID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockIncomeStore struct {
	rows map[string]*models.IncomeLine
}

func newMockIncomeStore() *mockIncomeStore {
	return &mockIncomeStore{rows: make(map[string]*models.IncomeLine)}
}

func (m *mockIncomeStore) CreateTx(ctx context.Context, tx pgx.Tx, income *models.IncomeLine) error {
	cp := *income
	m.rows[income.ID] = &cp
	return nil
}

func (m *mockIncomeStore) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id, userID string) (*models.IncomeLine, error) {
	if row, ok := m.rows[id]; ok && row.UserID == userID {
		cp := *row
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *mockIncomeStore) UpdateTx(ctx context.Context, tx pgx.Tx, income *models.IncomeLine) error {
	if row, ok := m.rows[income.ID]; !ok || row.UserID != income.UserID {
		return pgx.ErrNoRows
	}
	cp := *income
	m.rows[income.ID] = &cp
	return nil
}

func (m *mockIncomeStore) DeleteTx(ctx context.Context, tx pgx.Tx, id, userID string) error {
	if row, ok := m.rows[id]; !ok || row.UserID != userID {
		return pgx.ErrNoRows
	}
	delete(m.rows, id)
	return nil
}

func (m *mockIncomeStore) GetByID(ctx context.Context, id, userID string) (*models.IncomeLine, error) {
	return m.GetForUpdateTx(ctx, nil, id, userID)
}

func (m *mockIncomeStore) ListByUser(ctx context.Context, userID string) ([]*models.IncomeLine, error) {
	var out []*models.IncomeLine
	for _, row := range m.rows {
		if row.UserID == userID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockExpenseStore struct {
	rows map[string]*models.Expense
}

func newMockExpenseStore() *mockExpenseStore {
	return &mockExpenseStore{rows: make(map[string]*models.Expense)}
}

func (m *mockExpenseStore) CreateTx(ctx context.Context, tx pgx.Tx, expense *models.Expense) error {
	cp := *expense
	m.rows[expense.ID] = &cp
	return nil
}

func (m *mockExpenseStore) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id, userID string) (*models.Expense, error) {
	if row, ok := m.rows[id]; ok && row.UserID == userID {
		cp := *row
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *mockExpenseStore) UpdateTx(ctx context.Context, tx pgx.Tx, expense *models.Expense) error {
	if row, ok := m.rows[expense.ID]; !ok || row.UserID != expense.UserID {
		return pgx.ErrNoRows
	}
	cp := *expense
	m.rows[expense.ID] = &cp
	return nil
}

func (m *mockExpenseStore) DeleteTx(ctx context.Context, tx pgx.Tx, id, userID string) error {
	if row, ok := m.rows[id]; !ok || row.UserID != userID {
		return pgx.ErrNoRows
	}
	delete(m.rows, id)
	return nil
}

func (m *mockExpenseStore) GetByID(ctx context.Context, id, userID string) (*models.Expense, error) {
	return m.GetForUpdateTx(ctx, nil, id, userID)
}

func (m *mockExpenseStore) ListByUser(ctx context.Context, userID string) ([]*models.Expense, error) {
	var out []*models.Expense
	for _, row := range m.rows {
		if row.UserID == userID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockCashSavingsStore struct {
	rows map[string]*models.CashSavings // keyed by user id
}

func newMockCashSavingsStore() *mockCashSavingsStore {
	return &mockCashSavingsStore{rows: make(map[string]*models.CashSavings)}
}

func (m *mockCashSavingsStore) CreateTx(ctx context.Context, tx pgx.Tx, cash *models.CashSavings) error {
	cp := *cash
	m.rows[cash.UserID] = &cp
	return nil
}

func (m *mockCashSavingsStore) GetForUpdateTx(ctx context.Context, tx pgx.Tx, userID string) (*models.CashSavings, error) {
	if row, ok := m.rows[userID]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *mockCashSavingsStore) UpdateTx(ctx context.Context, tx pgx.Tx, cash *models.CashSavings) error {
	if _, ok := m.rows[cash.UserID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *cash
	m.rows[cash.UserID] = &cp
	return nil
}

func (m *mockCashSavingsStore) DeleteTx(ctx context.Context, tx pgx.Tx, id, userID string) error {
	if row, ok := m.rows[userID]; !ok || row.ID != id {
		return pgx.ErrNoRows
	}
	delete(m.rows, userID)
	return nil
}

func (m *mockCashSavingsStore) GetByUser(ctx context.Context, userID string) (*models.CashSavings, error) {
	return m.GetForUpdateTx(ctx, nil, userID)
}

type mockUserStore struct {
	rows map[string]*models.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{rows: make(map[string]*models.User)}
}

func (m *mockUserStore) CreateTx(ctx context.Context, tx pgx.Tx, user *models.User) error {
	cp := *user
	m.rows[user.ID] = &cp
	return nil
}

func (m *mockUserStore) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*models.User, error) {
	if row, ok := m.rows[id]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *mockUserStore) UpdateTx(ctx context.Context, tx pgx.Tx, user *models.User) error {
	if _, ok := m.rows[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *user
	m.rows[user.ID] = &cp
	return nil
}

func (m *mockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return m.GetForUpdateTx(ctx, nil, id)
}

type mockSnapshotStore struct {
	snapshots []*models.FinancialSnapshot
	creates   int
	prunes    []time.Time
	createErr error
	deleteErr error
}

func (m *mockSnapshotStore) Create(ctx context.Context, snapshot *models.FinancialSnapshot) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.creates++
	for i, s := range m.snapshots {
		if s.UserID == snapshot.UserID && s.Date.Equal(snapshot.Date) {
			m.snapshots[i] = snapshot
			return nil
		}
	}
	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

func (m *mockSnapshotStore) FindLatestBefore(ctx context.Context, userID string, asOf time.Time) (*models.FinancialSnapshot, error) {
	var best *models.FinancialSnapshot
	for _, s := range m.snapshots {
		if s.UserID != userID || s.Date.After(asOf) {
			continue
		}
		if best == nil || s.Date.After(best.Date) {
			best = s
		}
	}
	return best, nil
}

func (m *mockSnapshotStore) ListDates(ctx context.Context, userID string) ([]time.Time, error) {
	var dates []time.Time
	for _, s := range m.snapshots {
		if s.UserID == userID {
			dates = append(dates, s.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (m *mockSnapshotStore) DeleteFromTx(ctx context.Context, tx pgx.Tx, userID string, from time.Time) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.prunes = append(m.prunes, from)
	kept := m.snapshots[:0]
	for _, s := range m.snapshots {
		if s.UserID == userID && !s.Date.Before(from) {
			continue
		}
		kept = append(kept, s)
	}
	m.snapshots = kept
	return nil
}

type mockCache struct {
	data        map[string][]byte
	invalidated []string
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *mockCache) InvalidateUser(ctx context.Context, userID string) error {
	m.invalidated = append(m.invalidated, userID)
	delete(m.data, m.GenerateAnalysisKey(userID))
	prefix := "trajectory:" + userID + ":"
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *mockCache) GenerateAnalysisKey(userID string) string {
	return "analysis:" + userID
}

func (m *mockCache) GenerateTrajectoryKey(userID, interval string, start, end time.Time) string {
	return strings.Join([]string{
		"trajectory", userID, strings.ToLower(interval),
		start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02"),
	}, ":")
}
