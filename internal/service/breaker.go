package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/slatrack/backend/internal/metrics"
	"github.com/slatrack/backend/internal/models"
)

type BreakerConfig struct {
	Name string
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// Timeout is how long the breaker stays open before letting a trial request through.
	Timeout     time.Duration
	MaxRequests uint32
	Interval    time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "repository",
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		MaxRequests:      1,
		Interval:         time.Minute,
	}
}

// BreakerRepository wraps a Repository so that a failing database fails fast
// instead of tying up every request until its timeout.
type BreakerRepository struct {
	next Repository
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreakerRepository(next Repository, cfg BreakerConfig, logger zerolog.Logger) *BreakerRepository {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// Missing rows and callers giving up say nothing about database health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, models.ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(name, int(to))
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}
	metrics.SetBreakerState(cfg.Name, int(gobreaker.StateClosed))
	return &BreakerRepository{next: next, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

func (b *BreakerRepository) State() gobreaker.State {
	return b.cb.State()
}

func guarded[T any](b *BreakerRepository, fn func() (T, error)) (T, error) {
	v, err := b.cb.Execute(func() (any, error) {
		r, err := fn()
		return r, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

func (b *BreakerRepository) FetchRequests(ctx context.Context, w models.Window, scope *models.Scope, limit int) ([]models.ServiceRequest, error) {
	return guarded(b, func() ([]models.ServiceRequest, error) { return b.next.FetchRequests(ctx, w, scope, limit) })
}

func (b *BreakerRepository) FetchRequest(ctx context.Context, id int64) (models.ServiceRequest, error) {
	return guarded(b, func() (models.ServiceRequest, error) { return b.next.FetchRequest(ctx, id) })
}

func (b *BreakerRepository) FetchResourceDetail(ctx context.Context, requestID int64) (models.ResourceDetail, error) {
	return guarded(b, func() (models.ResourceDetail, error) { return b.next.FetchResourceDetail(ctx, requestID) })
}

func (b *BreakerRepository) FetchRating(ctx context.Context, requestID int64) (*models.SatisfactionRating, error) {
	return guarded(b, func() (*models.SatisfactionRating, error) { return b.next.FetchRating(ctx, requestID) })
}

func (b *BreakerRepository) FetchResourceDetails(ctx context.Context, requestIDs []int64) (map[int64]models.ResourceDetail, error) {
	return guarded(b, func() (map[int64]models.ResourceDetail, error) { return b.next.FetchResourceDetails(ctx, requestIDs) })
}

func (b *BreakerRepository) FetchRatings(ctx context.Context, requestIDs []int64) (map[int64]models.SatisfactionRating, error) {
	return guarded(b, func() (map[int64]models.SatisfactionRating, error) { return b.next.FetchRatings(ctx, requestIDs) })
}
