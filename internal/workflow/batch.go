package workflow

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/pianotech/tournee/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the per-piano outcome of a batch mutation.
type BatchResult struct {
	Op        string
	Succeeded []string
	Failed    map[string]error
}

func (r *BatchResult) OK() bool { return len(r.Failed) == 0 }

// FailedIDs returns the failed ids in sorted order.
func (r *BatchResult) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Err returns nil when every piano succeeded, otherwise a
// *domain.PersistenceError naming the failed ids and joining their causes.
func (r *BatchResult) Err() error {
	if r.OK() {
		return nil
	}
	ids := r.FailedIDs()
	causes := make([]error, 0, len(ids))
	for _, id := range ids {
		causes = append(causes, r.Failed[id])
	}
	return &domain.PersistenceError{Op: r.Op, IDs: ids, Err: errors.Join(causes...)}
}

// SetStatus sets the status of every id. With a campaign selected it also
// maintains membership: proposed adds the piano (not top), top adds it as
// top, normal removes it. Completed leaves membership alone and records the
// selected campaign only while that campaign is active.
func (s *Store) SetStatus(ctx context.Context, ids []string, status domain.PianoStatus) (*BatchResult, error) {
	if !domain.ValidPianoStatuses[status] {
		return nil, &domain.ValidationError{Field: "status", Message: "unknown piano status " + string(status)}
	}
	campaign := s.SelectedCampaign()
	var campaignID *string
	if campaign != nil && campaign.Status == domain.CampaignActive {
		campaignID = &campaign.ID
	}
	patch := domain.OverlayPatch{Status: &status, CampaignID: campaignID}

	var ms memberSync
	if campaign != nil && s.membership != nil {
		ms = s.memberSyncFor(campaign.ID, status)
	}
	return s.runBatch(ctx, "set-status", ids, patch, ms)
}

// SetUsage sets or, with a nil usage, clears the usage category.
func (s *Store) SetUsage(ctx context.Context, ids []string, usage *domain.UsageCategory) (*BatchResult, error) {
	if usage != nil {
		if _, err := domain.ParseUsage(string(*usage)); err != nil {
			return nil, err
		}
	}
	return s.runBatch(ctx, "set-usage", ids, domain.OverlayPatch{UsageSet: true, Usage: usage}, memberSync{})
}

func (s *Store) SetHidden(ctx context.Context, ids []string, hidden bool) (*BatchResult, error) {
	return s.runBatch(ctx, "set-hidden", ids, domain.OverlayPatch{IsHidden: &hidden}, memberSync{})
}

// memberSync keeps the selected campaign in step with a status change:
// local applies the change to the store's campaign copy, remote persists it.
type memberSync struct {
	campaignID string
	local      func(c *domain.Campaign, pianoID string)
	remote     func(ctx context.Context, pianoID string) error
}

func (s *Store) memberSyncFor(campaignID string, status domain.PianoStatus) memberSync {
	m := s.membership
	switch status {
	case domain.PianoProposed:
		return memberSync{
			campaignID: campaignID,
			local: func(c *domain.Campaign, id string) {
				c.AddPiano(id)
				c.UnsetTop(id)
			},
			remote: func(ctx context.Context, id string) error {
				if err := m.AddPiano(ctx, campaignID, id); err != nil {
					return err
				}
				return m.UnsetTopPiano(ctx, campaignID, id)
			},
		}
	case domain.PianoTop:
		return memberSync{
			campaignID: campaignID,
			local: func(c *domain.Campaign, id string) {
				c.AddPiano(id)
				_ = c.SetTop(id)
			},
			remote: func(ctx context.Context, id string) error {
				if err := m.AddPiano(ctx, campaignID, id); err != nil {
					return err
				}
				return m.SetTopPiano(ctx, campaignID, id)
			},
		}
	case domain.PianoNormal:
		return memberSync{
			campaignID: campaignID,
			local:      func(c *domain.Campaign, id string) { c.RemovePiano(id) },
			remote: func(ctx context.Context, id string) error {
				return m.RemovePiano(ctx, campaignID, id)
			},
		}
	}
	return memberSync{}
}

type snapshot struct {
	piano domain.Piano
	rev   uint64
}

// runBatch applies patch to every id optimistically, then persists each id
// with bounded concurrency. Responses are applied by id and only when no
// newer local change superseded them; failures are reconciled from the
// gateway. Calls are never cancelled once issued, including on failure of
// a sibling.
func (s *Store) runBatch(ctx context.Context, op string, ids []string, patch domain.OverlayPatch, ms memberSync) (*BatchResult, error) {
	ids = dedupe(ids)
	result := &BatchResult{Op: op, Failed: make(map[string]error)}
	if len(ids) == 0 {
		return result, nil
	}

	now := time.Now().UTC()
	before := make(map[string]snapshot, len(ids))
	for _, id := range ids {
		prev, known := s.Piano(id)
		rev, err := s.applyLocal(id, func(o *domain.Overlay) error {
			return o.Apply(patch, s.actor, now)
		})
		if err != nil && known {
			// Invalid patch: nothing was applied, nothing to persist.
			result.Failed[id] = err
			continue
		}
		before[id] = snapshot{piano: prev, rev: rev}
		if ms.local != nil {
			s.updateCampaign(func(c *domain.Campaign) { ms.local(c, id) })
		}
	}
	s.notify(Event{Kind: EventPianosChanged, IDs: ids})

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		snap, ok := before[id]
		if !ok {
			continue
		}
		g.Go(func() error {
			err := s.persist(ctx, op, id, snap, patch, nil)
			if err == nil && ms.remote != nil {
				err = ms.remote(ctx, id)
			}
			if s.metrics != nil {
				s.metrics.ObserveBatchItem(op, err)
			}
			mu.Lock()
			if err != nil {
				result.Failed[id] = err
			} else {
				result.Succeeded = append(result.Succeeded, id)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// The local campaign copy was changed for every id; reload it when any
	// of them did not go through.
	if ms.remote != nil && !result.OK() {
		s.refreshCampaign(ctx, ms.campaignID)
	}
	slices.Sort(result.Succeeded)
	s.notify(Event{Kind: EventPianosChanged, IDs: ids})

	if !result.OK() {
		s.logger.Warn("batch mutation partially failed",
			zap.String("op", op),
			zap.Strings("failed_ids", result.FailedIDs()),
			zap.Int("succeeded", len(result.Succeeded)),
		)
	}
	return result, result.Err()
}

// persist sends one patch and reconciles the projection with the outcome.
// settle, when set, drops the unsaved value the patch carries: after the
// response on success, before the authoritative copy on failure.
func (s *Store) persist(ctx context.Context, op, id string, snap snapshot, patch domain.OverlayPatch, settle func()) error {
	updated, err := s.gateway.UpdateOverlay(ctx, id, patch, s.actor)
	if err == nil {
		s.reconcile(id, snap.rev, updated)
		if settle != nil {
			settle()
		}
		return nil
	}

	if settle != nil {
		settle()
	}
	fresh, getErr := s.gateway.Get(ctx, id)
	if getErr != nil {
		// Without an authoritative copy, fall back to the state before the
		// optimistic change.
		if snap.piano.ID != "" {
			s.reconcile(id, snap.rev, &snap.piano)
		}
		s.logger.Warn("reconcile fetch failed",
			zap.String("op", op), zap.String("piano_id", id), zap.Error(getErr))
		return errors.Join(err, getErr)
	}
	s.reconcile(id, snap.rev, fresh)
	return err
}

func (s *Store) refreshCampaign(ctx context.Context, id string) {
	c, err := s.membership.Get(ctx, id)
	if err != nil {
		s.logger.Warn("reloading campaign after membership failure",
			zap.String("campaign_id", id), zap.Error(err))
		return
	}
	s.replaceCampaign(c)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
