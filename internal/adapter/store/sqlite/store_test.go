package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawright/conform/internal/domain"
	"github.com/datawright/conform/internal/usecase/fixloop"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun() fixloop.StoreRun {
	return fixloop.StoreRun{
		RunID:         "run-20260828T120000Z-abc123",
		StudyID:       "STUDY1",
		Timestamp:     time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		MaxIterations: 5,
		IterationsRun: 2,
		Converged:     true,
		TotalFixed:    3,
	}
}

func TestSaveRunAndCount(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, sampleRun()))

	count, err := store.CountRuns(ctx, "STUDY1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.CountRuns(ctx, "OTHER")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSaveRunRejectsDuplicateID(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, sampleRun()))
	assert.Error(t, store.SaveRun(ctx, sampleRun()), "run ids are primary keys")
}

func TestSaveIterationsAndActions(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()
	run := sampleRun()
	require.NoError(t, store.SaveRun(ctx, run))

	iterations := []domain.IterationRecord{
		{Iteration: 1, IssuesFound: 4, AutoFixed: 3, NeedsHuman: 1},
		{Iteration: 2, IssuesFound: 1, NeedsHuman: 1},
	}
	require.NoError(t, store.SaveIterations(ctx, run.RunID, iterations))

	actions := []domain.FixAction{
		{RuleID: "SD0001", Domain: "DM", Variable: "DOMAIN", FixType: domain.FixSetDomainValue, AfterValue: "DM", AffectedCount: 2, Timestamp: run.Timestamp},
	}
	require.NoError(t, store.SaveFixActions(ctx, run.RunID, actions))

	findings := []domain.Finding{
		{RuleID: "SD0006", Severity: domain.SeverityError, Category: domain.CategoryFormat, Domain: "AE", Variable: "AESTDTC", Message: "bad date", AffectedCount: 1},
	}
	require.NoError(t, store.SaveFindings(ctx, run.RunID, findings))
}

func TestNewStoreCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conform.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(context.Background(), sampleRun()))
	require.NoError(t, store.Close())

	// Reopening must find the schema and the saved run.
	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.CountRuns(context.Background(), "STUDY1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
