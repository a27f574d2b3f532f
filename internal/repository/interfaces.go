package repository

import (
	"context"
	"time"

	"github.com/pianotech/tournee/internal/domain"
)

// PianoFilter narrows List results. The zero value lists every visible,
// non-stale piano.
type PianoFilter struct {
	IDs           []string
	CampaignID    string
	Statuses      []domain.PianoStatus
	IncludeHidden bool
	IncludeStale  bool
}

// PianoRepo stores the cached external records and the local overlays.
// The two tables are written independently: record upserts never touch
// overlay columns.
type PianoRepo interface {
	UpsertRecords(ctx context.Context, records []domain.PianoRecord, seenAt time.Time) error
	// MarkStaleNotSeenAt flags every record whose last upsert was not the
	// one stamped seenAt.
	MarkStaleNotSeenAt(ctx context.Context, seenAt time.Time) (int64, error)
	EnsureOverlays(ctx context.Context, ids []string, now time.Time) (int64, error)
	ListOverlays(ctx context.Context) (map[string]domain.Overlay, error)
	SaveOverlay(ctx context.Context, o *domain.Overlay) error
	Get(ctx context.Context, id string) (*domain.Piano, error)
	List(ctx context.Context, f PianoFilter) ([]*domain.Piano, error)
}

// CampaignFilter narrows campaign listings. Empty fields match everything.
type CampaignFilter struct {
	Institution string
	Statuses    []domain.CampaignStatus
	PianoID     string
}

type CampaignRepo interface {
	Create(ctx context.Context, c *domain.Campaign) error
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, f CampaignFilter) ([]*domain.Campaign, error)
	Update(ctx context.Context, c *domain.Campaign) error
	SetStatus(ctx context.Context, id string, status domain.CampaignStatus, now time.Time) error
	DemoteActive(ctx context.Context, institution, exceptID string, now time.Time) ([]string, error)
	Delete(ctx context.Context, id string) error

	AddPiano(ctx context.Context, campaignID, pianoID string) error
	RemovePiano(ctx context.Context, campaignID, pianoID string) error
	SetTop(ctx context.Context, campaignID, pianoID string, top bool) error
}
