package workflow

import (
	"testing"
	"time"

	"github.com/pianotech/tournee/internal/domain"
	"github.com/stretchr/testify/assert"
)

func viewFixture() []domain.Piano {
	ps := testPianos(5)
	d := func(m int) *time.Time {
		t := time.Date(2026, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		return &t
	}
	concert := domain.UsageConcert

	ps[0].Location, ps[0].Make, ps[0].NextServiceDate = "Hall B", "Steinway", d(3)
	ps[0].Type = domain.TypeGrand
	ps[0].Overlay.Usage = &concert
	ps[1].Location, ps[1].Make, ps[1].NextServiceDate = "hall a", "Bechstein", d(1)
	ps[1].Overlay.Status = domain.PianoTop
	ps[2].Location, ps[2].Make = "Hall B", "Yamaha"
	ps[2].Overlay.Status = domain.PianoProposed
	ps[3].Location, ps[3].Make, ps[3].NextServiceDate = "Annex", "Kawai", d(2)
	ps[3].Overlay.IsHidden = true
	ps[4].Location, ps[4].Make = "Studio", "Yamaha"
	ps[4].Stale = true
	return ps
}

func TestBuildView_DefaultHidesHiddenAndStale(t *testing.T) {
	got := BuildView(viewFixture(), nil, ViewOptions{})
	// location order, id tiebreak between the two "Hall B" rows
	assert.Equal(t, []string{"P2", "P1", "P3"}, got)
}

func TestBuildView_IncludeHiddenAndStale(t *testing.T) {
	got := BuildView(viewFixture(), nil, ViewOptions{IncludeHidden: true, IncludeStale: true})
	assert.Equal(t, []string{"P4", "P2", "P1", "P3", "P5"}, got)
}

func TestBuildView_Filters(t *testing.T) {
	pianos := viewFixture()
	campaign := &domain.Campaign{ID: "T1", PianoIDs: []string{"P1", "P3"}}

	cases := []struct {
		name string
		opts ViewOptions
		want []string
	}{
		{"search make", ViewOptions{Search: "  yamaha "}, []string{"P3"}},
		{"search serial", ViewOptions{Search: "s002"}, []string{"P2"}},
		{"type", ViewOptions{Types: []domain.PianoType{domain.TypeGrand}}, []string{"P1"}},
		{"status", ViewOptions{Statuses: []domain.PianoStatus{domain.PianoTop, domain.PianoProposed}}, []string{"P2", "P3"}},
		{"usage", ViewOptions{Usages: []domain.UsageCategory{domain.UsageConcert}}, []string{"P1"}},
		{"campaign only", ViewOptions{CampaignOnly: true}, []string{"P1", "P3"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BuildView(pianos, campaign, tc.opts))
		})
	}
}

func TestBuildView_CampaignOnlyWithoutCampaignIsEmpty(t *testing.T) {
	assert.Empty(t, BuildView(viewFixture(), nil, ViewOptions{CampaignOnly: true}))
}

func TestBuildView_Sorts(t *testing.T) {
	pianos := viewFixture()

	cases := []struct {
		name string
		opts ViewOptions
		want []string
	}{
		{"make", ViewOptions{Sort: SortMake}, []string{"P2", "P1", "P3"}},
		{"serial desc", ViewOptions{Sort: SortSerial, Descending: true}, []string{"P3", "P2", "P1"}},
		{"next service nil last", ViewOptions{Sort: SortNextService}, []string{"P2", "P1", "P3"}},
		{"status", ViewOptions{Sort: SortStatus}, []string{"P2", "P3", "P1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BuildView(pianos, nil, tc.opts))
		})
	}
}

func TestBuildView_StableAcrossCalls(t *testing.T) {
	pianos := testPianos(20)
	for i := range pianos {
		pianos[i].Location = "Same room"
	}

	first := BuildView(pianos, nil, ViewOptions{})
	for range 5 {
		assert.Equal(t, first, BuildView(pianos, nil, ViewOptions{}))
	}
	assert.Equal(t, "P1", first[0])
	assert.Equal(t, "P10", first[1])
}
