package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pianotech/tournee/internal/db"
	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/repository"
)

type campaignService struct {
	campaigns           repository.CampaignRepo
	uow                 db.UnitOfWork
	enforceSingleActive bool
	observer            UseCaseObserver

	// activateMu serializes activations in this process; the immediate
	// transaction covers other processes sharing the database file.
	activateMu sync.Mutex
}

func NewCampaignService(
	campaigns repository.CampaignRepo,
	uow db.UnitOfWork,
	enforceSingleActive bool,
	observers ...UseCaseObserver,
) CampaignService {
	return &campaignService{
		campaigns:           campaigns,
		uow:                 uow,
		enforceSingleActive: enforceSingleActive,
		observer:            useCaseObserverOrNoop(observers),
	}
}

func (s *campaignService) Create(ctx context.Context, c *domain.Campaign) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"institution": c.Institution}
	defer func() { observeUseCase(ctx, s.observer, "campaign-create", startedAt, fields, err) }()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	fields["campaign_id"] = c.ID
	if c.Status == "" {
		c.Status = domain.CampaignPlanned
	}
	if c.Status != domain.CampaignPlanned && c.Status != domain.CampaignActive {
		return &domain.ValidationError{Field: "status", Message: "new campaigns must be planned or active"}
	}
	normalizeMembership(c)
	if err := c.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	if c.Status == domain.CampaignActive {
		s.activateMu.Lock()
		defer s.activateMu.Unlock()
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txCampaigns := repository.NewSQLiteCampaignRepo(tx)
		if c.Status == domain.CampaignActive && s.enforceSingleActive {
			demoted, err := txCampaigns.DemoteActive(ctx, c.Institution, c.ID, now)
			if err != nil {
				return err
			}
			fields["demoted"] = demoted
		}
		return txCampaigns.Create(ctx, c)
	})
}

func (s *campaignService) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.campaigns.GetByID(ctx, id)
}

func (s *campaignService) List(ctx context.Context, f repository.CampaignFilter) ([]*domain.Campaign, error) {
	return s.campaigns.List(ctx, f)
}

// Update rewrites the editable attributes and membership. Status, creation
// stamps and institution changes that would break the single-active rule
// are not accepted here; status moves through the lifecycle operations.
func (s *campaignService) Update(ctx context.Context, c *domain.Campaign) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		observeUseCase(ctx, s.observer, "campaign-update", startedAt, map[string]any{"campaign_id": c.ID}, err)
	}()

	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txCampaigns := repository.NewSQLiteCampaignRepo(tx)
		existing, err := txCampaigns.GetByID(ctx, c.ID)
		if err != nil {
			return err
		}
		if existing.Status == domain.CampaignActive && c.Institution != existing.Institution {
			return &domain.ConflictError{Entity: "campaign", ID: c.ID, Reason: "cannot move an active campaign to another institution"}
		}

		c.Status = existing.Status
		c.CreatedAt = existing.CreatedAt
		c.CreatedBy = existing.CreatedBy
		c.UpdatedAt = time.Now().UTC()
		normalizeMembership(c)
		if err := c.Validate(); err != nil {
			return err
		}
		return txCampaigns.Update(ctx, c)
	})
}

// Activate makes the campaign the active one of its institution. The read,
// the demotion of any other active campaign and the promotion happen in one
// transaction, so two concurrent activations can never both win.
func (s *campaignService) Activate(ctx context.Context, id string) (result *ActivateResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"campaign_id": id}
	defer func() { observeUseCase(ctx, s.observer, "campaign-activate", startedAt, fields, err) }()

	s.activateMu.Lock()
	defer s.activateMu.Unlock()

	result = &ActivateResult{}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txCampaigns := repository.NewSQLiteCampaignRepo(tx)
		c, err := txCampaigns.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := c.CanActivate(); err != nil {
			return err
		}

		now := time.Now().UTC()
		if s.enforceSingleActive {
			demoted, err := txCampaigns.DemoteActive(ctx, c.Institution, c.ID, now)
			if err != nil {
				return err
			}
			result.Demoted = demoted
		}
		if c.Status != domain.CampaignActive {
			if err := txCampaigns.SetStatus(ctx, c.ID, domain.CampaignActive, now); err != nil {
				return err
			}
			c.Status = domain.CampaignActive
			c.UpdatedAt = now
		}
		result.Campaign = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["demoted"] = result.Demoted
	return result, nil
}

func (s *campaignService) Archive(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.transition(ctx, "campaign-archive", id, (*domain.Campaign).Archive)
}

func (s *campaignService) Reanimate(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.transition(ctx, "campaign-reanimate", id, (*domain.Campaign).Reanimate)
}

func (s *campaignService) Complete(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.transition(ctx, "campaign-complete", id, (*domain.Campaign).Complete)
}

func (s *campaignService) transition(ctx context.Context, name, id string, fn func(*domain.Campaign, time.Time) error) (campaign *domain.Campaign, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		observeUseCase(ctx, s.observer, name, startedAt, map[string]any{"campaign_id": id}, err)
	}()

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txCampaigns := repository.NewSQLiteCampaignRepo(tx)
		c, err := txCampaigns.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(c, time.Now().UTC()); err != nil {
			return err
		}
		if err := txCampaigns.SetStatus(ctx, c.ID, c.Status, c.UpdatedAt); err != nil {
			return err
		}
		campaign = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return campaign, nil
}

// Delete removes a non-active campaign and its membership. Completion
// records on pianos keep pointing at the deleted id.
func (s *campaignService) Delete(ctx context.Context, id string) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		observeUseCase(ctx, s.observer, "campaign-delete", startedAt, map[string]any{"campaign_id": id}, err)
	}()

	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txCampaigns := repository.NewSQLiteCampaignRepo(tx)
		c, err := txCampaigns.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := c.CanDelete(); err != nil {
			return err
		}
		return txCampaigns.Delete(ctx, id)
	})
}

func (s *campaignService) AddPiano(ctx context.Context, campaignID, pianoID string) error {
	return s.membership(ctx, "campaign-add-piano", campaignID, pianoID, func(ctx context.Context, r repository.CampaignRepo, _ *domain.Campaign) error {
		return r.AddPiano(ctx, campaignID, pianoID)
	})
}

// RemovePiano removes the piano from the campaign, and from its top set.
func (s *campaignService) RemovePiano(ctx context.Context, campaignID, pianoID string) error {
	return s.membership(ctx, "campaign-remove-piano", campaignID, pianoID, func(ctx context.Context, r repository.CampaignRepo, _ *domain.Campaign) error {
		return r.RemovePiano(ctx, campaignID, pianoID)
	})
}

func (s *campaignService) SetTopPiano(ctx context.Context, campaignID, pianoID string) error {
	return s.membership(ctx, "campaign-set-top", campaignID, pianoID, func(ctx context.Context, r repository.CampaignRepo, c *domain.Campaign) error {
		if err := c.SetTop(pianoID); err != nil {
			return err
		}
		return r.SetTop(ctx, campaignID, pianoID, true)
	})
}

func (s *campaignService) UnsetTopPiano(ctx context.Context, campaignID, pianoID string) error {
	return s.membership(ctx, "campaign-unset-top", campaignID, pianoID, func(ctx context.Context, r repository.CampaignRepo, c *domain.Campaign) error {
		if !c.UnsetTop(pianoID) {
			return nil
		}
		return r.SetTop(ctx, campaignID, pianoID, false)
	})
}

func (s *campaignService) membership(ctx context.Context, name, campaignID, pianoID string, fn func(context.Context, repository.CampaignRepo, *domain.Campaign) error) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		observeUseCase(ctx, s.observer, name, startedAt, map[string]any{"campaign_id": campaignID, "piano_id": pianoID}, err)
	}()

	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txCampaigns := repository.NewSQLiteCampaignRepo(tx)
		c, err := txCampaigns.GetByID(ctx, campaignID)
		if err != nil {
			return err
		}
		return fn(ctx, txCampaigns, c)
	})
}

func (s *campaignService) ActiveFor(ctx context.Context, institution string) (*domain.Campaign, error) {
	list, err := s.campaigns.List(ctx, repository.CampaignFilter{
		Institution: institution,
		Statuses:    []domain.CampaignStatus{domain.CampaignActive},
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// normalizeMembership drops duplicate member ids, keeping first occurrence.
func normalizeMembership(c *domain.Campaign) {
	members := c.PianoIDs
	c.PianoIDs = nil
	for _, id := range members {
		c.AddPiano(id)
	}
	tops := c.TopPianoIDs
	c.TopPianoIDs = nil
	for _, id := range tops {
		if !c.IsTop(id) {
			c.TopPianoIDs = append(c.TopPianoIDs, id)
		}
	}
}
