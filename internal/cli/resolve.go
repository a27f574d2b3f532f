package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/repository"
)

// resolveCampaign accepts a full id, an id prefix or a case-insensitive
// campaign name.
func resolveCampaign(ctx context.Context, app *App, input string) (*domain.Campaign, error) {
	if input == "" {
		return nil, fmt.Errorf("campaign ID is required")
	}

	campaigns, err := app.Campaigns.List(ctx, repository.CampaignFilter{})
	if err != nil {
		return nil, err
	}

	// 1. Exact id
	for _, c := range campaigns {
		if c.ID == input {
			return c, nil
		}
	}

	// 2. Exact name
	var matches []*domain.Campaign
	for _, c := range campaigns {
		if strings.EqualFold(c.Name, input) {
			matches = append(matches, c)
		}
	}

	// 3. Id prefix
	if len(matches) == 0 {
		for _, c := range campaigns {
			if strings.HasPrefix(c.ID, input) {
				matches = append(matches, c)
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("campaign not found: %q", input)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("campaign %q is ambiguous (%d matches)", input, len(matches))
	}
}

// selectedCampaign resolves the optional --campaign flag; empty means none.
func selectedCampaign(ctx context.Context, app *App, input string) (*domain.Campaign, error) {
	if input == "" {
		return nil, nil
	}
	return resolveCampaign(ctx, app, input)
}

func parseStatuses(in []string) ([]domain.PianoStatus, error) {
	out := make([]domain.PianoStatus, 0, len(in))
	for _, s := range in {
		st := domain.PianoStatus(strings.ToLower(s))
		if !domain.ValidPianoStatuses[st] {
			return nil, fmt.Errorf("invalid status %q (want normal, proposed, top or completed)", s)
		}
		out = append(out, st)
	}
	return out, nil
}

func parseTypes(in []string) ([]domain.PianoType, error) {
	out := make([]domain.PianoType, 0, len(in))
	for _, s := range in {
		t := domain.PianoType(strings.ToLower(s))
		if !domain.ValidPianoTypes[t] {
			return nil, fmt.Errorf("invalid piano type %q", s)
		}
		out = append(out, t)
	}
	return out, nil
}

func parseUsages(in []string) ([]domain.UsageCategory, error) {
	out := make([]domain.UsageCategory, 0, len(in))
	for _, s := range in {
		u, err := domain.ParseUsage(strings.ToLower(s))
		if err != nil {
			return nil, err
		}
		if u != nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

func derefPianos(ps []*domain.Piano) []domain.Piano {
	out := make([]domain.Piano, len(ps))
	for i, p := range ps {
		out[i] = *p
	}
	return out
}
