package service

import (
	"context"
	"errors"
	"testing"

	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/repository"
	"github.com/pianotech/tournee/internal/source"
	"github.com/pianotech/tournee/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresh_CreatesDefaultOverlays(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.source.records = testutil.NewTestRecords("P", 3)

	res, err := e.Merge.Refresh(ctx, source.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, int64(3), res.NewOverlays)
	require.Len(t, res.Pianos, 3)
	for _, p := range res.Pianos {
		assert.Equal(t, domain.PianoNormal, p.Overlay.Status)
		assert.Nil(t, p.Overlay.Usage)
		assert.False(t, p.Overlay.IsHidden)
	}

	overlays, err := e.pianos.ListOverlays(ctx)
	require.NoError(t, err)
	assert.Len(t, overlays, 3, "overlay rows are created lazily on first sight")

	assert.Equal(t, "refresh", e.observer.last().Name)
	assert.True(t, e.observer.last().Success)
}

// External refresh corrects P1.make; overlay fields set before the refresh
// are unchanged after the merge.
func TestRefresh_PreservesOverlayOnExternalCorrection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, testutil.NewTestRecord("P1", testutil.WithMake("Yamaha", "C3")))

	usage := domain.UsageTeaching
	status := domain.PianoProposed
	note := "tune before exams"
	work := "pedal squeak"
	obs := "near window"
	hidden := true
	_, err := e.Piano.UpdateOverlay(ctx, "P1", domain.OverlayPatch{
		Status: &status, UsageSet: true, Usage: &usage,
		AssignmentNote: &note, WorkNote: &work, Observations: &obs, IsHidden: &hidden,
	}, "manager")
	require.NoError(t, err)

	e.source.records = []domain.PianoRecord{testutil.NewTestRecord("P1", testutil.WithMake("Yamaha (corrected)", "C3"))}
	res, err := e.Merge.Refresh(ctx, source.Filter{})
	require.NoError(t, err)
	assert.Zero(t, res.NewOverlays)

	require.Len(t, res.Pianos, 1)
	got := res.Pianos[0]
	assert.Equal(t, "Yamaha (corrected)", got.Make)
	assert.Equal(t, domain.PianoProposed, got.Overlay.Status)
	require.NotNil(t, got.Overlay.Usage)
	assert.Equal(t, domain.UsageTeaching, *got.Overlay.Usage)
	assert.Equal(t, "tune before exams", got.Overlay.AssignmentNote)
	assert.Equal(t, "pedal squeak", got.Overlay.WorkNote)
	assert.Equal(t, "near window", got.Overlay.Observations)
	assert.True(t, got.Overlay.IsHidden)

	stored, err := e.Piano.Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Yamaha (corrected)", stored.Make)
	assert.Equal(t, "pedal squeak", stored.Overlay.WorkNote)
}

func TestRefresh_RetainsMissingAsStale(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, testutil.NewTestRecords("P", 3)...)

	status := domain.PianoTop
	_, err := e.Piano.UpdateOverlay(ctx, "P2", domain.OverlayPatch{Status: &status}, "manager")
	require.NoError(t, err)

	e.source.records = []domain.PianoRecord{testutil.NewTestRecord("P1"), testutil.NewTestRecord("P3")}
	res, err := e.Merge.Refresh(ctx, source.Filter{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.MarkedStale)
	require.Len(t, res.Pianos, 3)
	last := res.Pianos[2]
	assert.Equal(t, "P2", last.ID)
	assert.True(t, last.Stale)
	assert.Equal(t, domain.PianoTop, last.Overlay.Status, "stale units keep their overlay")

	visible, err := e.Merge.Projections(ctx, repository.PianoFilter{})
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	all, err := e.Merge.Projections(ctx, repository.PianoFilter{IncludeStale: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRefresh_FilteredFetchDoesNotMarkStale(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, testutil.NewTestRecords("P", 3)...)

	res, err := e.Merge.Refresh(ctx, source.Filter{IDs: []string{"P1"}})
	require.NoError(t, err)
	assert.Zero(t, res.MarkedStale)
	assert.Len(t, res.Pianos, 1)

	visible, err := e.Merge.Projections(ctx, repository.PianoFilter{})
	require.NoError(t, err)
	assert.Len(t, visible, 3)
}

func TestRefresh_SourceFailureWritesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, testutil.NewTestRecords("P", 2)...)

	e.source.err = errors.New("connection reset")
	_, err := e.Merge.Refresh(ctx, source.Filter{})

	var pe *domain.PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.False(t, e.observer.last().Success)

	visible, err := e.Merge.Projections(ctx, repository.PianoFilter{})
	require.NoError(t, err)
	assert.Len(t, visible, 2, "a failed fetch must not mark anything stale")
}

func TestRefresh_NoSourceConfigured(t *testing.T) {
	database := testutil.NewTestDB(t)
	svc := NewMergeService(nil, repository.NewSQLitePianoRepo(database), testutil.NewTestUoW(database))

	_, err := svc.Refresh(context.Background(), source.Filter{})
	assert.ErrorIs(t, err, ErrNoSource)
}
