package service

import (
	"context"

	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/repository"
	"github.com/pianotech/tournee/internal/source"
)

// RefreshResult holds the outcome of a catalog refresh.
type RefreshResult struct {
	Pianos      []domain.Piano
	Fetched     int
	NewOverlays int64
	MarkedStale int64
}

type MergeService interface {
	// Refresh fetches the external records and merges them with the stored
	// overlays. Overlays are never modified by a refresh.
	Refresh(ctx context.Context, f source.Filter) (*RefreshResult, error)
	// Projections returns the stored merged view without contacting the
	// external source.
	Projections(ctx context.Context, f repository.PianoFilter) ([]*domain.Piano, error)
}

// MarkDoneResult carries the completed piano and the outcome of the work
// report, which is independent of the status change.
type MarkDoneResult struct {
	Piano     *domain.Piano
	Campaign  *domain.Campaign
	ReportErr error
}

type PianoService interface {
	Get(ctx context.Context, id string) (*domain.Piano, error)
	List(ctx context.Context, f repository.PianoFilter) ([]*domain.Piano, error)
	UpdateOverlay(ctx context.Context, id string, patch domain.OverlayPatch, actor string) (*domain.Piano, error)
	Cycle(ctx context.Context, id, actor string) (*domain.Piano, error)
	MarkDone(ctx context.Context, id, actor string) (*MarkDoneResult, error)
	UndoDone(ctx context.Context, id, actor string) (*domain.Piano, error)
}

// ActivateResult lists the campaigns demoted to planned by an activation.
type ActivateResult struct {
	Campaign *domain.Campaign
	Demoted  []string
}

type CampaignService interface {
	Create(ctx context.Context, c *domain.Campaign) error
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, f repository.CampaignFilter) ([]*domain.Campaign, error)
	Update(ctx context.Context, c *domain.Campaign) error
	Activate(ctx context.Context, id string) (*ActivateResult, error)
	Archive(ctx context.Context, id string) (*domain.Campaign, error)
	Reanimate(ctx context.Context, id string) (*domain.Campaign, error)
	Complete(ctx context.Context, id string) (*domain.Campaign, error)
	Delete(ctx context.Context, id string) error

	AddPiano(ctx context.Context, campaignID, pianoID string) error
	RemovePiano(ctx context.Context, campaignID, pianoID string) error
	SetTopPiano(ctx context.Context, campaignID, pianoID string) error
	UnsetTopPiano(ctx context.Context, campaignID, pianoID string) error

	// ActiveFor returns the active campaign of the institution, or nil.
	ActiveFor(ctx context.Context, institution string) (*domain.Campaign, error)
}
