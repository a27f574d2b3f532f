package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func status(t *testing.T, s *Store, id string) domain.PianoStatus {
	t.Helper()
	p, ok := s.Piano(id)
	require.True(t, ok, "piano %s missing from store", id)
	return p.Overlay.Status
}

func TestSetStatus_RangeSelectTopWithCampaign(t *testing.T) {
	campaign := &domain.Campaign{ID: "T1", Status: domain.CampaignActive, PianoIDs: []string{"P6"}}
	members := newFakeMembership(campaign)
	s, gw := newTestStore(6, WithMembership(members), WithActor("anna"))
	s.SelectCampaign(campaign)

	view := s.View(ViewOptions{})
	s.Click(view[0])
	s.RangeClick(view[4], view)
	require.Equal(t, view[:5], s.SelectedIDs())

	res, err := s.SetStatus(context.Background(), s.SelectedIDs(), domain.PianoTop)
	require.NoError(t, err)
	assert.Equal(t, view[:5], res.Succeeded)

	for _, id := range view[:5] {
		assert.Equal(t, domain.PianoTop, status(t, s, id))
		assert.Equal(t, domain.PianoTop, gw.authoritative(id).Overlay.Status)
		assert.Equal(t, "anna", gw.authoritative(id).Overlay.UpdatedBy)
		assert.Equal(t, domain.CategoryTop, s.Category(id))
	}
	assert.ElementsMatch(t, view[:5], members.snapshot().TopPianoIDs)
	assert.ElementsMatch(t, view[:5], s.SelectedCampaign().TopPianoIDs)
	assert.Equal(t, domain.CategoryNormal, s.Category("P6"))

	s.ClearSelection()
	assert.Empty(t, s.SelectedIDs())
	for _, id := range view[:5] {
		assert.Equal(t, domain.PianoTop, status(t, s, id), "clearing selection keeps status")
	}
}

func TestSetStatus_PartialFailureReconcilesFailedPianos(t *testing.T) {
	s, gw := newTestStore(4)
	gw.failOn["P3"] = true

	res, err := s.SetStatus(context.Background(), []string{"P1", "P2", "P3", "P4"}, domain.PianoProposed)

	require.Error(t, err)
	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"P3"}, pe.IDs)
	assert.Equal(t, "set-status", pe.Op)
	assert.ErrorIs(t, err, errBackend)

	assert.Equal(t, []string{"P1", "P2", "P4"}, res.Succeeded)
	assert.Equal(t, []string{"P3"}, res.FailedIDs())
	assert.False(t, res.OK())

	for _, id := range []string{"P1", "P2", "P4"} {
		assert.Equal(t, domain.PianoProposed, status(t, s, id))
	}
	assert.Equal(t, gw.authoritative("P3").Overlay.Status, status(t, s, "P3"))
	assert.Equal(t, domain.PianoNormal, status(t, s, "P3"))
}

func TestSetStatus_FallsBackToSnapshotWhenRefetchFails(t *testing.T) {
	s, gw := newTestStore(2)
	gw.failOn["P2"] = true
	gw.failGet["P2"] = true

	_, err := s.SetStatus(context.Background(), []string{"P1", "P2"}, domain.PianoTop)

	require.Error(t, err)
	assert.Equal(t, domain.PianoTop, status(t, s, "P1"))
	assert.Equal(t, domain.PianoNormal, status(t, s, "P2"), "restored to pre-batch state")
}

func TestSetStatus_StaleResponseDoesNotOverwriteNewerChange(t *testing.T) {
	s, gw := newTestStore(1)
	release := gw.stall("P1")

	done := make(chan error, 1)
	go func() {
		_, err := s.SetStatus(context.Background(), []string{"P1"}, domain.PianoProposed)
		done <- err
	}()
	require.Eventually(t, func() bool { return gw.updateCount("P1") == 1 }, time.Second, 5*time.Millisecond)

	_, err := s.SetStatus(context.Background(), []string{"P1"}, domain.PianoTop)
	require.NoError(t, err)
	assert.Equal(t, domain.PianoTop, status(t, s, "P1"))

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, domain.PianoTop, status(t, s, "P1"), "late response for the older request is discarded")
	assert.Equal(t, domain.PianoTop, gw.authoritative("P1").Overlay.Status)
}

func TestSetStatus_LoadDiscardsInFlightResponses(t *testing.T) {
	s, gw := newTestStore(1)
	release := gw.stall("P1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.SetStatus(context.Background(), []string{"P1"}, domain.PianoProposed)
	}()
	require.Eventually(t, func() bool { return gw.updateCount("P1") == 1 }, time.Second, 5*time.Millisecond)

	fresh := testPianos(1)
	fresh[0].Overlay.WorkNote = "reloaded"
	s.Load(fresh)
	close(release)
	<-done

	p, _ := s.Piano("P1")
	assert.Equal(t, "reloaded", p.Overlay.WorkNote)
	assert.Equal(t, domain.PianoNormal, p.Overlay.Status)
}

func TestSetStatus_LateResponseDoesNotRestoreDroppedPiano(t *testing.T) {
	s, gw := newTestStore(2)
	release := gw.stall("P2")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.SetStatus(context.Background(), []string{"P2"}, domain.PianoTop)
	}()
	require.Eventually(t, func() bool { return gw.updateCount("P2") == 1 }, time.Second, 5*time.Millisecond)

	s.Load(testPianos(1))
	close(release)
	<-done

	_, ok := s.Piano("P2")
	assert.False(t, ok)
	assert.Len(t, s.Pianos(), 1)
	assert.Equal(t, []string{"P1"}, s.View(ViewOptions{}))
}

func TestSetStatus_MembershipFollowsStatus(t *testing.T) {
	campaign := &domain.Campaign{ID: "T1", Status: domain.CampaignActive, PianoIDs: []string{"P1", "P2", "P3"}, TopPianoIDs: []string{"P1"}}
	members := newFakeMembership(campaign)
	s, _ := newTestStore(4, WithMembership(members))
	s.SelectCampaign(campaign)
	ctx := context.Background()

	_, err := s.SetStatus(ctx, []string{"P1", "P4"}, domain.PianoProposed)
	require.NoError(t, err)
	got := members.snapshot()
	assert.True(t, got.HasPiano("P4"))
	assert.False(t, got.IsTop("P1"), "proposed removes top flag")

	_, err = s.SetStatus(ctx, []string{"P2"}, domain.PianoNormal)
	require.NoError(t, err)
	assert.False(t, members.snapshot().HasPiano("P2"))
	assert.False(t, s.SelectedCampaign().HasPiano("P2"))

	_, err = s.SetStatus(ctx, []string{"P3"}, domain.PianoCompleted)
	require.NoError(t, err)
	assert.True(t, members.snapshot().HasPiano("P3"), "completion keeps membership")
	p, _ := s.Piano("P3")
	require.NotNil(t, p.Overlay.CompletedInCampaignID)
	assert.Equal(t, "T1", *p.Overlay.CompletedInCampaignID)
	assert.Equal(t, domain.CategoryCompleted, s.Category("P3"))
}

func TestSetStatus_CompletedRecordsOnlyActiveCampaign(t *testing.T) {
	for _, status := range []domain.CampaignStatus{domain.CampaignPlanned, domain.CampaignArchived} {
		t.Run(string(status), func(t *testing.T) {
			campaign := &domain.Campaign{ID: "T1", Status: status, PianoIDs: []string{"P1"}}
			s, gw := newTestStore(1, WithMembership(newFakeMembership(campaign)))
			s.SelectCampaign(campaign)

			_, err := s.SetStatus(context.Background(), []string{"P1"}, domain.PianoCompleted)
			require.NoError(t, err)

			p, _ := s.Piano("P1")
			assert.Equal(t, domain.PianoCompleted, p.Overlay.Status)
			assert.Nil(t, p.Overlay.CompletedInCampaignID)
			assert.NotNil(t, p.Overlay.CompletedAt)
			assert.Nil(t, gw.authoritative("P1").Overlay.CompletedInCampaignID)
		})
	}
}

func TestSetStatus_WithoutCampaignLeavesMembershipAlone(t *testing.T) {
	members := newFakeMembership(&domain.Campaign{ID: "T1"})
	s, _ := newTestStore(2, WithMembership(members))

	_, err := s.SetStatus(context.Background(), []string{"P1"}, domain.PianoTop)
	require.NoError(t, err)

	assert.Empty(t, members.snapshot().PianoIDs)
	assert.Equal(t, domain.CategoryNormal, s.Category("P1"))
}

func TestSetStatus_MembershipFailureReloadsCampaign(t *testing.T) {
	campaign := &domain.Campaign{ID: "T1"}
	members := newFakeMembership(campaign)
	members.failAdd["P2"] = true
	core, logs := observer.New(zap.WarnLevel)
	s, _ := newTestStore(2, WithMembership(members), WithLogger(zap.New(core)))
	s.SelectCampaign(campaign)

	res, err := s.SetStatus(context.Background(), []string{"P1", "P2"}, domain.PianoProposed)

	require.ErrorIs(t, err, errBackend)
	assert.Equal(t, []string{"P2"}, res.FailedIDs())
	assert.Equal(t, []string{"P1"}, s.SelectedCampaign().PianoIDs, "local campaign copy replaced by the authoritative one")
	require.Equal(t, 1, logs.FilterMessage("batch mutation partially failed").Len())
}

func TestSetStatus_InvalidStatus(t *testing.T) {
	s, gw := newTestStore(1)

	_, err := s.SetStatus(context.Background(), []string{"P1"}, domain.PianoStatus("retired"))

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Zero(t, gw.updateCount("P1"))
}

func TestSetStatus_UnknownPianoFails(t *testing.T) {
	s, _ := newTestStore(1)

	res, err := s.SetStatus(context.Background(), []string{"P1", "P99"}, domain.PianoTop)

	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, []string{"P1"}, res.Succeeded)
	assert.Equal(t, []string{"P99"}, res.FailedIDs())
}

func TestSetStatus_EmptyAndDuplicateIDs(t *testing.T) {
	s, gw := newTestStore(2)

	res, err := s.SetStatus(context.Background(), nil, domain.PianoTop)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.NoError(t, res.Err())

	_, err = s.SetStatus(context.Background(), []string{"P1", "P1", "P1"}, domain.PianoTop)
	require.NoError(t, err)
	assert.Equal(t, 1, gw.updateCount("P1"))
}

func TestSetUsage(t *testing.T) {
	s, gw := newTestStore(2)
	ctx := context.Background()
	teaching := domain.UsageTeaching

	_, err := s.SetUsage(ctx, []string{"P1", "P2"}, &teaching)
	require.NoError(t, err)
	p, _ := s.Piano("P2")
	require.NotNil(t, p.Overlay.Usage)
	assert.Equal(t, domain.UsageTeaching, *p.Overlay.Usage)

	_, err = s.SetUsage(ctx, []string{"P1"}, nil)
	require.NoError(t, err)
	p, _ = s.Piano("P1")
	assert.Nil(t, p.Overlay.Usage)
	assert.Nil(t, gw.authoritative("P1").Overlay.Usage)

	bogus := domain.UsageCategory("storage")
	_, err = s.SetUsage(ctx, []string{"P1"}, &bogus)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 2, gw.updateCount("P1"))
}

func TestSetHidden(t *testing.T) {
	s, gw := newTestStore(3)

	_, err := s.SetHidden(context.Background(), []string{"P2"}, true)
	require.NoError(t, err)

	assert.True(t, gw.authoritative("P2").Overlay.IsHidden)
	assert.Equal(t, []string{"P1", "P3"}, s.View(ViewOptions{}))
	assert.Equal(t, []string{"P1", "P2", "P3"}, s.View(ViewOptions{IncludeHidden: true}))
}

func TestBatch_NotifiesBeforeAndAfterPersistence(t *testing.T) {
	s, _ := newTestStore(2)
	var log eventLog
	s.Subscribe(log.record)

	_, err := s.SetHidden(context.Background(), []string{"P1", "P2"}, true)
	require.NoError(t, err)

	assert.Equal(t, []EventKind{EventPianosChanged, EventPianosChanged}, log.kinds())
	assert.Equal(t, []string{"P1", "P2"}, log.events[0].IDs)
}

func TestBatch_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	s, gw := newTestStore(3, WithMetrics(m))
	gw.failOn["P1"] = true

	_, _ = s.SetStatus(context.Background(), []string{"P1", "P2", "P3"}, domain.PianoProposed)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BatchItemsTotal.WithLabelValues("set-status", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchItemsTotal.WithLabelValues("set-status", "error")))
}

// countingGateway tracks the peak number of concurrent UpdateOverlay calls.
type countingGateway struct {
	*fakeGateway
	inflight atomic.Int32
	peak     atomic.Int32
}

func (g *countingGateway) UpdateOverlay(ctx context.Context, id string, patch domain.OverlayPatch, actor string) (*domain.Piano, error) {
	n := g.inflight.Add(1)
	defer g.inflight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return g.fakeGateway.UpdateOverlay(ctx, id, patch, actor)
}

func TestBatch_BoundsConcurrency(t *testing.T) {
	pianos := testPianos(12)
	gw := &countingGateway{fakeGateway: newFakeGateway(pianos...)}
	s := NewStore(gw, WithConcurrency(3))
	s.Load(pianos)

	ids := make([]string, len(pianos))
	for i, p := range pianos {
		ids[i] = p.ID
	}
	res, err := s.SetStatus(context.Background(), ids, domain.PianoProposed)

	require.NoError(t, err)
	assert.Len(t, res.Succeeded, 12)
	assert.LessOrEqual(t, gw.peak.Load(), int32(3))
}

func TestBatch_ConcurrentBatchesOnDistinctPianos(t *testing.T) {
	s, gw := newTestStore(10)
	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("P%d", i)
			_, err := s.SetStatus(context.Background(), []string{id}, domain.PianoTop)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, p := range s.Pianos() {
		assert.Equal(t, domain.PianoTop, p.Overlay.Status)
		assert.Equal(t, p.Overlay.Status, gw.authoritative(p.ID).Overlay.Status)
	}
}

func TestBatchResult_ErrJoinsCauses(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	r := &BatchResult{Op: "set-hidden", Failed: map[string]error{"P2": second, "P1": first}}

	err := r.Err()

	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"P1", "P2"}, pe.IDs)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}
