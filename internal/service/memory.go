package service

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/slatrack/backend/internal/models"
)

// MemoryRepository is an in-memory Repository used by tests and local tooling.
// Err, when set, is returned from every call.
type MemoryRepository struct {
	mu       sync.RWMutex
	requests []models.ServiceRequest
	details  map[int64]models.ResourceDetail
	ratings  map[int64]models.SatisfactionRating
	Err      error
	Calls    int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		details: map[int64]models.ResourceDetail{},
		ratings: map[int64]models.SatisfactionRating{},
	}
}

func (m *MemoryRepository) Add(r models.ServiceRequest, detail models.ResourceDetail, rating *models.SatisfactionRating) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, r)
	if detail != nil {
		m.details[r.ID] = detail
	}
	if rating != nil {
		m.ratings[r.ID] = *rating
	}
}

func (m *MemoryRepository) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return m.Err
}

func (m *MemoryRepository) FetchRequests(ctx context.Context, w models.Window, scope *models.Scope, limit int) ([]models.ServiceRequest, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ServiceRequest
	for _, r := range m.requests {
		if w.Contains(r.CreatedAt) && scope.Matches(scope.Pick(r.Requester, r.Assignee)) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b models.ServiceRequest) int { return cmp.Compare(a.ID, b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) FetchRequest(ctx context.Context, id int64) (models.ServiceRequest, error) {
	if err := m.begin(); err != nil {
		return models.ServiceRequest{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.ID == id {
			return r, nil
		}
	}
	return models.ServiceRequest{}, models.ErrNotFound
}

func (m *MemoryRepository) FetchResourceDetail(ctx context.Context, requestID int64) (models.ResourceDetail, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.details[requestID], nil
}

func (m *MemoryRepository) FetchRating(ctx context.Context, requestID int64) (*models.SatisfactionRating, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.ratings[requestID]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *MemoryRepository) FetchResourceDetails(ctx context.Context, requestIDs []int64) (map[int64]models.ResourceDetail, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]models.ResourceDetail, len(requestIDs))
	for _, id := range requestIDs {
		if d, ok := m.details[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (m *MemoryRepository) FetchRatings(ctx context.Context, requestIDs []int64) (map[int64]models.SatisfactionRating, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]models.SatisfactionRating, len(requestIDs))
	for _, id := range requestIDs {
		if r, ok := m.ratings[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}
