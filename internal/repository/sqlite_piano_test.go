package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seenAt = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func TestPianoRepo_UpsertAndGet_DefaultOverlay(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLitePianoRepo(db)
	ctx := context.Background()

	next := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	rec := testutil.NewTestRecord("P1", testutil.WithMake("Steinway", "B"), testutil.WithType(domain.TypeGrand), testutil.WithNextService(next))
	rec.Tags = []string{"hall", "concert"}
	require.NoError(t, repo.UpsertRecords(ctx, []domain.PianoRecord{rec}, seenAt))

	p, err := repo.Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Steinway", p.Make)
	assert.Equal(t, domain.TypeGrand, p.Type)
	assert.Equal(t, []string{"hall", "concert"}, p.Tags)
	require.NotNil(t, p.NextServiceDate)
	assert.Equal(t, "2025-09-01", p.NextServiceDate.Format("2006-01-02"))
	assert.Equal(t, domain.PianoNormal, p.Overlay.Status, "no overlay row yet: default overlay")
	assert.False(t, p.Stale)
}

func TestPianoRepo_Get_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLitePianoRepo(db)

	_, err := repo.Get(context.Background(), "missing")
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.ID)
}

func TestPianoRepo_UpsertNeverTouchesOverlay(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLitePianoRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertRecords(ctx, []domain.PianoRecord{testutil.NewTestRecord("P1", testutil.WithMake("Yamaha", "C3"))}, seenAt))
	usage := domain.UsageConcert
	ov := &domain.Overlay{
		PianoID:        "P1",
		Status:         domain.PianoTop,
		Usage:          &usage,
		AssignmentNote: "tune for recital",
		WorkNote:       "regulated action",
		Observations:   "dry room",
		IsHidden:       true,
		UpdatedAt:      seenAt,
		UpdatedBy:      "manager",
	}
	require.NoError(t, repo.SaveOverlay(ctx, ov))

	require.NoError(t, repo.UpsertRecords(ctx,
		[]domain.PianoRecord{testutil.NewTestRecord("P1", testutil.WithMake("Yamaha (corrected)", "C3"))},
		seenAt.Add(time.Hour)))
	created, err := repo.EnsureOverlays(ctx, []string{"P1"}, seenAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, created, "existing overlay must not be replaced")

	p, err := repo.Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Yamaha (corrected)", p.Make)
	assert.Equal(t, domain.PianoTop, p.Overlay.Status)
	require.NotNil(t, p.Overlay.Usage)
	assert.Equal(t, domain.UsageConcert, *p.Overlay.Usage)
	assert.Equal(t, "tune for recital", p.Overlay.AssignmentNote)
	assert.Equal(t, "regulated action", p.Overlay.WorkNote)
	assert.Equal(t, "dry room", p.Overlay.Observations)
	assert.True(t, p.Overlay.IsHidden)
	assert.Equal(t, "manager", p.Overlay.UpdatedBy)
}

func TestPianoRepo_MarkStaleNotSeenAt(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLitePianoRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertRecords(ctx, testutil.NewTestRecords("P", 3), seenAt))
	// The next refresh lands within the same second and no longer lists P2.
	next := seenAt.Add(time.Nanosecond)
	require.NoError(t, repo.UpsertRecords(ctx, []domain.PianoRecord{
		testutil.NewTestRecord("P1"), testutil.NewTestRecord("P3"),
	}, next))

	n, err := repo.MarkStaleNotSeenAt(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.MarkStaleNotSeenAt(ctx, next)
	require.NoError(t, err)
	assert.Zero(t, n, "already stale records are not counted again")

	visible, err := repo.List(ctx, PianoFilter{})
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	all, err := repo.List(ctx, PianoFilter{IncludeStale: true})
	require.NoError(t, err)
	require.Len(t, all, 3)
	p2, err := repo.Get(ctx, "P2")
	require.NoError(t, err)
	assert.True(t, p2.Stale)

	// Reappearing clears the flag.
	require.NoError(t, repo.UpsertRecords(ctx, []domain.PianoRecord{testutil.NewTestRecord("P2")}, seenAt.Add(time.Hour)))
	p2, err = repo.Get(ctx, "P2")
	require.NoError(t, err)
	assert.False(t, p2.Stale)
}

func TestPianoRepo_List_Filters(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLitePianoRepo(db)
	campaigns := NewSQLiteCampaignRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertRecords(ctx, testutil.NewTestRecords("P", 4), seenAt))
	_, err := repo.EnsureOverlays(ctx, []string{"P1", "P2", "P3", "P4"}, seenAt)
	require.NoError(t, err)

	require.NoError(t, repo.SaveOverlay(ctx, &domain.Overlay{PianoID: "P2", Status: domain.PianoProposed, UpdatedAt: seenAt}))
	require.NoError(t, repo.SaveOverlay(ctx, &domain.Overlay{PianoID: "P4", Status: domain.PianoNormal, IsHidden: true, UpdatedAt: seenAt}))

	c := testutil.NewTestCampaign("Spring", testutil.WithPianos("P1", "P2"))
	require.NoError(t, campaigns.Create(ctx, c))

	list, err := repo.List(ctx, PianoFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2", "P3"}, ids(list), "hidden excluded by default")

	list, err = repo.List(ctx, PianoFilter{IncludeHidden: true})
	require.NoError(t, err)
	assert.Len(t, list, 4)

	list, err = repo.List(ctx, PianoFilter{Statuses: []domain.PianoStatus{domain.PianoProposed}})
	require.NoError(t, err)
	assert.Equal(t, []string{"P2"}, ids(list))

	list, err = repo.List(ctx, PianoFilter{CampaignID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, ids(list))

	list, err = repo.List(ctx, PianoFilter{IDs: []string{"P3", "P4"}, IncludeHidden: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"P3", "P4"}, ids(list))
}

func TestPianoRepo_ListOverlays(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLitePianoRepo(db)
	ctx := context.Background()

	campaign := "T1"
	completedAt := seenAt.Add(2 * time.Hour)
	require.NoError(t, repo.SaveOverlay(ctx, &domain.Overlay{
		PianoID: "P1", Status: domain.PianoCompleted, CompletedInCampaignID: &campaign,
		CompletedAt: &completedAt, UpdatedAt: seenAt,
	}))

	overlays, err := repo.ListOverlays(ctx)
	require.NoError(t, err)
	require.Contains(t, overlays, "P1")
	ov := overlays["P1"]
	assert.Equal(t, domain.PianoCompleted, ov.Status)
	require.NotNil(t, ov.CompletedInCampaignID)
	assert.Equal(t, "T1", *ov.CompletedInCampaignID)
	require.NotNil(t, ov.CompletedAt)
	assert.True(t, completedAt.Equal(*ov.CompletedAt))
}

func ids(pianos []*domain.Piano) []string {
	out := make([]string, 0, len(pianos))
	for _, p := range pianos {
		out = append(out, p.ID)
	}
	return out
}
