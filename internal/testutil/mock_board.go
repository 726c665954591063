// mock_board.go - In-memory board store for testing
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/moodboard/backend/internal/models"
	"github.com/moodboard/backend/internal/storage"
)

// MockBoardStore implements storage.BoardStore in memory
type MockBoardStore struct {
	mu    sync.RWMutex
	weeks map[string]*models.Week
	items map[string]*models.Item
	order []string

	// GeometryErr, when set, is returned by UpdateGeometry
	GeometryErr error
	// Geometries records every UpdateGeometry call in order
	Geometries []GeometryCall
}

// GeometryCall is one recorded UpdateGeometry
type GeometryCall struct {
	ID       string
	Geometry models.Geometry
}

// NewMockBoardStore creates an empty mock board store
func NewMockBoardStore() *MockBoardStore {
	return &MockBoardStore{
		weeks: make(map[string]*models.Week),
		items: make(map[string]*models.Item),
	}
}

func copyItem(it *models.Item) *models.Item {
	cp := *it
	cp.Tags = append([]string{}, it.Tags...)
	cp.Colors = append([]string{}, it.Colors...)
	return &cp
}

func (m *MockBoardStore) ensureWeek(id string) (*models.Week, error) {
	if w, ok := m.weeks[id]; ok {
		return w, nil
	}
	w, err := models.NewWeek(id)
	if err != nil {
		return nil, err
	}
	m.weeks[id] = w
	return w, nil
}

func (m *MockBoardStore) EnsureWeek(_ context.Context, id string) (*models.Week, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := m.ensureWeek(id)
	if err != nil {
		return nil, err
	}
	cp := *w
	return &cp, nil
}

func (m *MockBoardStore) GetWeek(ctx context.Context, id string) (*models.Week, error) {
	m.mu.RLock()
	w, ok := m.weeks[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("week %s: %w", id, storage.ErrNotFound)
	}
	items, _ := m.ListItems(ctx, id)
	m.mu.RLock()
	cp := *w
	m.mu.RUnlock()
	cp.Items = items
	cp.ItemCount = len(items)
	return &cp, nil
}

func (m *MockBoardStore) ListWeeks(ctx context.Context) ([]*models.Week, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.weeks))
	for id := range m.weeks {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	weeks := make([]*models.Week, 0, len(ids))
	for _, id := range ids {
		w, err := m.GetWeek(ctx, id)
		if err != nil {
			return nil, err
		}
		w.Items = nil
		weeks = append(weeks, w)
	}
	return weeks, nil
}

func (m *MockBoardStore) SaveNotes(_ context.Context, id, notes string) (*models.Week, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := m.ensureWeek(id)
	if err != nil {
		return nil, err
	}
	w.Notes = notes
	w.UpdatedAt = time.Now()
	cp := *w
	return &cp, nil
}

func (m *MockBoardStore) CreateItem(_ context.Context, item *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.ensureWeek(item.WeekID); err != nil {
		return err
	}
	if item.ID == "" {
		item.ID = generateTestID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	if item.Colors == nil {
		item.Colors = []string{}
	}
	m.items[item.ID] = copyItem(item)
	m.order = append(m.order, item.ID)
	return nil
}

func (m *MockBoardStore) GetItem(_ context.Context, id string) (*models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	return copyItem(it), nil
}

func (m *MockBoardStore) ListItems(_ context.Context, weekID string) ([]*models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]*models.Item, 0)
	for _, id := range m.order {
		if it, ok := m.items[id]; ok && it.WeekID == weekID {
			items = append(items, copyItem(it))
		}
	}
	return items, nil
}

func (m *MockBoardStore) UpdateGeometry(_ context.Context, id string, g models.Geometry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Geometries = append(m.Geometries, GeometryCall{ID: id, Geometry: g})
	if m.GeometryErr != nil {
		return m.GeometryErr
	}
	it, ok := m.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	it.X, it.Y = g.X, g.Y
	if g.Width != nil {
		w := *g.Width
		it.Width = &w
	}
	if g.Height != nil {
		h := *g.Height
		it.Height = &h
	}
	return nil
}

func (m *MockBoardStore) SetTags(_ context.Context, id string, tags []string) error {
	return m.update(id, func(it *models.Item) { it.Tags = append([]string{}, tags...) })
}

func (m *MockBoardStore) SetColors(_ context.Context, id string, colors []string) error {
	return m.update(id, func(it *models.Item) { it.Colors = append([]string{}, colors...) })
}

func (m *MockBoardStore) update(id string, fn func(*models.Item)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	fn(it)
	return nil
}

func (m *MockBoardStore) DeleteItem(_ context.Context, id string) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	delete(m.items, id)
	return it, nil
}

func (m *MockBoardStore) Close() error { return nil }

// GeometryCalls returns a copy of the recorded UpdateGeometry calls
func (m *MockBoardStore) GeometryCalls() []GeometryCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]GeometryCall(nil), m.Geometries...)
}

// Ensure MockBoardStore implements storage.BoardStore
var _ storage.BoardStore = (*MockBoardStore)(nil)
