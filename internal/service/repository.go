package service

import (
	"context"
	"errors"

	"github.com/slatrack/backend/internal/models"
)

// ErrUnavailable means the repository is shedding calls after repeated failures.
var ErrUnavailable = errors.New("repository unavailable")

// Repository is the read side the engine evaluates. Single-record lookups return
// models.ErrNotFound for a missing request; a missing detail or rating is (nil, nil).
type Repository interface {
	// FetchRequests returns requests created inside w that match scope, ordered by id.
	// limit <= 0 means no limit.
	FetchRequests(ctx context.Context, w models.Window, scope *models.Scope, limit int) ([]models.ServiceRequest, error)
	FetchRequest(ctx context.Context, id int64) (models.ServiceRequest, error)
	FetchResourceDetail(ctx context.Context, requestID int64) (models.ResourceDetail, error)
	FetchRating(ctx context.Context, requestID int64) (*models.SatisfactionRating, error)
	FetchResourceDetails(ctx context.Context, requestIDs []int64) (map[int64]models.ResourceDetail, error)
	FetchRatings(ctx context.Context, requestIDs []int64) (map[int64]models.SatisfactionRating, error)
}
