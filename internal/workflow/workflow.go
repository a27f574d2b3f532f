// Package workflow is the client-side engine over merged piano projections:
// an observable store with campaign context and selection, ordered views,
// optimistic batch mutations reconciled per piano, and a debounced writer
// for free-text overlay fields.
package workflow

import (
	"context"

	"github.com/pianotech/tournee/internal/domain"
)

// Gateway persists overlay changes and returns authoritative projections.
type Gateway interface {
	UpdateOverlay(ctx context.Context, id string, patch domain.OverlayPatch, actor string) (*domain.Piano, error)
	Get(ctx context.Context, id string) (*domain.Piano, error)
}

// Membership maintains campaign membership when a status change is made
// with a campaign selected.
type Membership interface {
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	AddPiano(ctx context.Context, campaignID, pianoID string) error
	RemovePiano(ctx context.Context, campaignID, pianoID string) error
	SetTopPiano(ctx context.Context, campaignID, pianoID string) error
	UnsetTopPiano(ctx context.Context, campaignID, pianoID string) error
}

type EventKind int

const (
	EventLoaded EventKind = iota
	EventPianosChanged
	EventCampaignChanged
	EventSelectionChanged
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventPianosChanged:
		return "pianos_changed"
	case EventCampaignChanged:
		return "campaign_changed"
	case EventSelectionChanged:
		return "selection_changed"
	}
	return "unknown"
}

// Event is delivered to subscribers after the store changed. IDs lists the
// affected pianos when the change is piano-scoped.
type Event struct {
	Kind EventKind
	IDs  []string
}
