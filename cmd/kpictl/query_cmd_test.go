package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowFlagsResolve(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	f := windowFlags{window: "week", side: "assignee"}
	w, scope, err := f.resolve(now)
	require.NoError(t, err)
	require.Nil(t, scope)
	require.Equal(t, now.AddDate(0, 0, -7), w.Start)

	f = windowFlags{start: "2024-01-01T00:00:00Z", end: "2024-02-01T00:00:00Z", division: 4, side: "requester"}
	w, scope, err = f.resolve(now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), w.End)
	require.NotNil(t, scope)
	require.Equal(t, int64(4), *scope.DivisionID)
	require.Nil(t, scope.DepartmentID)

	_, _, err = (&windowFlags{start: "2024-01-01T00:00:00Z", side: "assignee"}).resolve(now)
	require.Error(t, err)
	_, _, err = (&windowFlags{window: "fortnight", side: "assignee"}).resolve(now)
	require.Error(t, err)
	_, _, err = (&windowFlags{window: "week", side: "both"}).resolve(now)
	require.Error(t, err)
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"migrate", "kpis", "scorecard", "integration", "sla", "trend", "snapshot"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, cmd.Name())
	}
}
