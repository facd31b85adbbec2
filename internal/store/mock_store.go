// ABOUTME: In-memory Store implementation for unit tests
// ABOUTME: Map-backed with deep copies so callers can't mutate stored state

package store

import (
	"context"
	"sync"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
)

// MockStore is an in-memory Store for tests.
type MockStore struct {
	mu            sync.Mutex
	permissions   map[canvas.Position]*PermissionRecord
	userStats     map[string]*UserStatistics
	engineConfig  *EngineConfig
	totalFees     uint64
	ownerBalances map[string]uint64
	history       map[canvas.Position][]*ColorChangeEvent
	claims        map[canvas.Position]*Claim
	cursor        canvas.Position
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		permissions:   make(map[canvas.Position]*PermissionRecord),
		userStats:     make(map[string]*UserStatistics),
		ownerBalances: make(map[string]uint64),
		history:       make(map[canvas.Position][]*ColorChangeEvent),
		claims:        make(map[canvas.Position]*Claim),
	}
}

func copyRecord(rec *PermissionRecord) *PermissionRecord {
	out := *rec
	out.Grants = make([]Grant, len(rec.Grants))
	copy(out.Grants, rec.Grants)
	if rec.PublicChangeFee != nil {
		fee := *rec.PublicChangeFee
		out.PublicChangeFee = &fee
	}
	return &out
}

func (m *MockStore) GetPermissions(_ context.Context, pos canvas.Position) (*PermissionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.permissions[pos]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (m *MockStore) PutPermissions(_ context.Context, rec *PermissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permissions[rec.Position] = copyRecord(rec)
	return nil
}

func (m *MockStore) GetUserStatistics(_ context.Context, identity string) (*UserStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats, ok := m.userStats[identity]
	if !ok {
		return nil, ErrNotFound
	}
	out := *stats
	return &out, nil
}

func (m *MockStore) PutUserStatistics(_ context.Context, stats *UserStatistics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *stats
	m.userStats[stats.Identity] = &out
	return nil
}

func (m *MockStore) GetEngineConfig(_ context.Context) (*EngineConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engineConfig == nil {
		return nil, ErrNotFound
	}
	out := *m.engineConfig
	return &out, nil
}

func (m *MockStore) PutEngineConfig(_ context.Context, cfg *EngineConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *cfg
	m.engineConfig = &out
	return nil
}

func (m *MockStore) GetTotalFees(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalFees, nil
}

func (m *MockStore) SetTotalFees(_ context.Context, total uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalFees = total
	return nil
}

func (m *MockStore) GetOwnerBalance(_ context.Context, identity string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownerBalances[identity], nil
}

func (m *MockStore) AddOwnerBalance(_ context.Context, identity string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ownerBalances[identity] += amount
	return nil
}

func (m *MockStore) AppendColorChange(_ context.Context, ev *ColorChangeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *ev
	m.history[ev.Position] = append(m.history[ev.Position], &out)
	return nil
}

func (m *MockStore) ListColorChanges(_ context.Context, pos canvas.Position, limit int) ([]*ColorChangeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.history[pos]
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	out := make([]*ColorChangeEvent, len(events))
	for i, ev := range events {
		c := *ev
		out[i] = &c
	}
	return out, nil
}

func (m *MockStore) GetClaim(_ context.Context, pos canvas.Position) (*Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	claim, ok := m.claims[pos]
	if !ok {
		return nil, ErrNotFound
	}
	out := *claim
	return &out, nil
}

func (m *MockStore) PutClaim(_ context.Context, claim *Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *claim
	m.claims[claim.Position] = &out
	return nil
}

func (m *MockStore) HasClaim(_ context.Context, pos canvas.Position) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.claims[pos]
	return ok, nil
}

func (m *MockStore) CountClaims(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.claims)), nil
}

func (m *MockStore) GetCursor(_ context.Context) (canvas.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor, nil
}

func (m *MockStore) SetCursor(_ context.Context, pos canvas.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor = pos
	return nil
}

func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements the Store interface.
var _ Store = (*MockStore)(nil)
