package service

import (
	"context"

	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/repository"
)

// activeCampaignWith returns the active campaign that lists pianoID as a
// member, or nil when there is none.
func activeCampaignWith(ctx context.Context, campaigns repository.CampaignRepo, pianoID string) (*domain.Campaign, error) {
	list, err := campaigns.List(ctx, repository.CampaignFilter{
		PianoID:  pianoID,
		Statuses: []domain.CampaignStatus{domain.CampaignActive},
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func pianoIDs(records []domain.PianoRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func derefPianos(pianos []*domain.Piano) []domain.Piano {
	out := make([]domain.Piano, 0, len(pianos))
	for _, p := range pianos {
		out = append(out, *p)
	}
	return out
}
