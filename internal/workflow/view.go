package workflow

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/pianotech/tournee/internal/domain"
)

type SortKey string

const (
	SortLocation    SortKey = "location"
	SortMake        SortKey = "make"
	SortSerial      SortKey = "serial"
	SortNextService SortKey = "next_service"
	SortStatus      SortKey = "status"
)

// ValidSortKeys is the canonical set of accepted sort keys.
var ValidSortKeys = map[SortKey]bool{
	SortLocation: true, SortMake: true, SortSerial: true, SortNextService: true, SortStatus: true,
}

// ViewOptions filters and orders the projections. Zero value shows every
// visible, non-stale piano by location.
type ViewOptions struct {
	Search   string
	Types    []domain.PianoType
	Statuses []domain.PianoStatus
	Usages   []domain.UsageCategory
	// CampaignOnly keeps members of the selected campaign.
	CampaignOnly  bool
	IncludeHidden bool
	IncludeStale  bool

	Sort       SortKey
	Descending bool
}

var statusRank = map[domain.PianoStatus]int{
	domain.PianoTop:       0,
	domain.PianoProposed:  1,
	domain.PianoNormal:    2,
	domain.PianoCompleted: 3,
}

// BuildView returns the ordered ids of the pianos matching opts. Ties are
// broken by id so the order is stable across calls.
func BuildView(pianos []domain.Piano, campaign *domain.Campaign, opts ViewOptions) []string {
	search := strings.ToLower(strings.TrimSpace(opts.Search))

	matched := make([]*domain.Piano, 0, len(pianos))
	for i := range pianos {
		p := &pianos[i]
		if p.Overlay.IsHidden && !opts.IncludeHidden {
			continue
		}
		if p.Stale && !opts.IncludeStale {
			continue
		}
		if len(opts.Types) > 0 && !slices.Contains(opts.Types, p.Type) {
			continue
		}
		if len(opts.Statuses) > 0 && !slices.Contains(opts.Statuses, p.Overlay.Status) {
			continue
		}
		if len(opts.Usages) > 0 && (p.Overlay.Usage == nil || !slices.Contains(opts.Usages, *p.Overlay.Usage)) {
			continue
		}
		if opts.CampaignOnly && (campaign == nil || !campaign.HasPiano(p.ID)) {
			continue
		}
		if search != "" && !matchesSearch(p, search) {
			continue
		}
		matched = append(matched, p)
	}

	compare := comparator(opts.Sort)
	slices.SortStableFunc(matched, func(a, b *domain.Piano) int {
		c := compare(a, b)
		if opts.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	ids := make([]string, len(matched))
	for i, p := range matched {
		ids[i] = p.ID
	}
	return ids
}

func matchesSearch(p *domain.Piano, needle string) bool {
	fields := []string{p.Make, p.Model, p.Location, p.ID}
	if p.Serial != nil {
		fields = append(fields, *p.Serial)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func comparator(key SortKey) func(a, b *domain.Piano) int {
	switch key {
	case SortMake:
		return func(a, b *domain.Piano) int {
			return cmp.Or(
				strings.Compare(strings.ToLower(a.Make), strings.ToLower(b.Make)),
				strings.Compare(strings.ToLower(a.Model), strings.ToLower(b.Model)),
			)
		}
	case SortSerial:
		return func(a, b *domain.Piano) int {
			return strings.Compare(deref(a.Serial), deref(b.Serial))
		}
	case SortNextService:
		// Pianos without a date sort last.
		return func(a, b *domain.Piano) int {
			return compareDates(a.NextServiceDate, b.NextServiceDate)
		}
	case SortStatus:
		return func(a, b *domain.Piano) int {
			return cmp.Compare(statusRank[a.Overlay.Status], statusRank[b.Overlay.Status])
		}
	default:
		return func(a, b *domain.Piano) int {
			return strings.Compare(strings.ToLower(a.Location), strings.ToLower(b.Location))
		}
	}
}

func compareDates(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
