package history

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairForge/sensorbench/internal/loadtest"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewStore(db), mock
}

func TestStore_CreateTables(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS load_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.CreateTables(context.Background()))
}

func TestStore_CreateTables_Error(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	err := store.CreateTables(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestStore_RecordRun(t *testing.T) {
	store, mock := newMockStore(t)

	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	summary := &loadtest.Summary{
		TestName:       "nightly",
		StartTime:      start,
		EndTime:        start.Add(5 * time.Minute),
		TotalRequests:  30000,
		FailureCount:   12,
		ViolationCount: 15,
		RequestsPerSec: 100,
		P95Latency:     250 * time.Millisecond,
		Violations:     map[string]int64{"missing expected alert for high value": 15},
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO load_runs")).
		WithArgs("nightly", start, start.Add(5*time.Minute), int64(30000), int64(12), int64(15),
			100.0, int64(250), []byte(`{"missing expected alert for high value":15}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	id, err := store.RecordRun(context.Background(), summary)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestStore_RecordRun_NilViolations(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO load_runs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), []byte(`{}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	_, err := store.RecordRun(context.Background(), &loadtest.Summary{TestName: "empty"})
	require.NoError(t, err)
}

func TestStore_ListRuns(t *testing.T) {
	store, mock := newMockStore(t)

	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	columns := []string{"id", "name", "started_at", "ended_at", "total_requests", "failure_count",
		"violation_count", "requests_per_sec", "p95_latency_ms", "violations"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM load_runs")).
		WithArgs("nightly", 20).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(2, "nightly", start.Add(24*time.Hour), start.Add(24*time.Hour+5*time.Minute),
				31000, 0, 0, 103.3, 180, []byte(`{}`)).
			AddRow(1, "nightly", start, start.Add(5*time.Minute),
				30000, 12, 15, 100.0, 250, []byte(`{"results array length mismatch":15}`)))

	runs, err := store.ListRuns(context.Background(), "nightly", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, int64(2), runs[0].ID)
	assert.Empty(t, runs[0].Violations)
	assert.Equal(t, 180*time.Millisecond, runs[0].P95Latency)

	assert.Equal(t, int64(15), runs[1].ViolationCount)
	assert.Equal(t, map[string]int64{"results array length mismatch": 15}, runs[1].Violations)
	assert.Equal(t, start, runs[1].StartedAt)
}

func TestStore_ListRuns_QueryError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM load_runs").WillReturnError(errors.New("connection reset"))

	_, err := store.ListRuns(context.Background(), "nightly", 5)
	require.Error(t, err)
}
