package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/slatrack/backend/internal/models"
)

var now = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

type fakeEngine struct {
	failDivision int64
	windows      []models.Window
}

func (f *fakeEngine) Snapshot(_ context.Context, w models.Window, scope *models.Scope) (models.ScorecardSnapshot, error) {
	f.windows = append(f.windows, w)
	snap := models.ScorecardSnapshot{ID: "org", TotalScore: 70, IntegrationIndex: 50}
	if !scope.Empty() {
		if *scope.DivisionID == f.failDivision {
			return models.ScorecardSnapshot{}, errors.New("window too large")
		}
		snap.ID = "div"
		snap.DivisionID = scope.DivisionID
	}
	return snap, nil
}

type fakeStore struct {
	mu        sync.Mutex
	divisions []int64
	listErr   error
	stored    []models.ScorecardSnapshot
}

func (f *fakeStore) InsertScorecard(_ context.Context, snap models.ScorecardSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, snap)
	return nil
}

func (f *fakeStore) ListDivisionIDs(context.Context) ([]int64, error) {
	return f.divisions, f.listErr
}

func newService(engine Snapshotter, store SnapshotStore) *SnapshotService {
	return &SnapshotService{
		Engine:   engine,
		Store:    store,
		Interval: time.Hour,
		Window:   30 * 24 * time.Hour,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return now },
	}
}

func TestRunOnceStoresOrganisationAndDivisions(t *testing.T) {
	engine := &fakeEngine{}
	store := &fakeStore{divisions: []int64{1, 2}}

	out, err := newService(engine, store).RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Len(t, store.stored, 3)
	require.Nil(t, store.stored[0].DivisionID)
	require.Equal(t, int64(1), *store.stored[1].DivisionID)
	require.Equal(t, int64(2), *store.stored[2].DivisionID)

	require.Equal(t, models.Window{Start: now.Add(-30 * 24 * time.Hour), End: now}, engine.windows[0])
}

func TestRunOnceContinuesPastFailingDivision(t *testing.T) {
	store := &fakeStore{divisions: []int64{1, 2, 3}}
	out, err := newService(&fakeEngine{failDivision: 2}, store).RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "division:2")
	require.Len(t, out, 3)
	require.Len(t, store.stored, 3)
}

func TestRunOnceFailsWithoutDivisionList(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	_, err := newService(&fakeEngine{}, store).RunOnce(context.Background())
	require.ErrorIs(t, err, store.listErr)
	require.Empty(t, store.stored)
}

func TestServeStopsOnCancel(t *testing.T) {
	store := &fakeStore{}
	svc := newService(&fakeEngine{}, store)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.stored) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeRejectsZeroInterval(t *testing.T) {
	svc := newService(&fakeEngine{}, &fakeStore{})
	svc.Interval = 0
	require.Error(t, svc.Serve(context.Background()))
	require.Equal(t, "snapshot-scheduler", svc.String())
}
