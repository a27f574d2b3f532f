package service

import (
	"context"
	"time"

	"github.com/pianotech/tournee/internal/db"
	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/repository"
	"github.com/pianotech/tournee/internal/source"
	"go.uber.org/zap"
)

type pianoService struct {
	pianos    repository.PianoRepo
	campaigns repository.CampaignRepo
	uow       db.UnitOfWork
	reports   source.ReportSink
	logger    *zap.Logger
	observer  UseCaseObserver
}

func NewPianoService(
	pianos repository.PianoRepo,
	campaigns repository.CampaignRepo,
	uow db.UnitOfWork,
	reports source.ReportSink,
	logger *zap.Logger,
	observers ...UseCaseObserver,
) PianoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &pianoService{
		pianos:    pianos,
		campaigns: campaigns,
		uow:       uow,
		reports:   reports,
		logger:    logger,
		observer:  useCaseObserverOrNoop(observers),
	}
}

func (s *pianoService) Get(ctx context.Context, id string) (*domain.Piano, error) {
	return s.pianos.Get(ctx, id)
}

func (s *pianoService) List(ctx context.Context, f repository.PianoFilter) ([]*domain.Piano, error) {
	return s.pianos.List(ctx, f)
}

// UpdateOverlay applies a partial overlay update. It is the single write
// path used by batch mutations and the field writer.
func (s *pianoService) UpdateOverlay(ctx context.Context, id string, patch domain.OverlayPatch, actor string) (piano *domain.Piano, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		observeUseCase(ctx, s.observer, "update-overlay", startedAt, map[string]any{"piano_id": id}, err)
	}()

	return s.mutate(ctx, id, func(_ context.Context, _ repository.CampaignRepo, o *domain.Overlay, now time.Time) error {
		return o.Apply(patch, actor, now)
	})
}

func (s *pianoService) Cycle(ctx context.Context, id, actor string) (piano *domain.Piano, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"piano_id": id}
	defer func() { observeUseCase(ctx, s.observer, "cycle-status", startedAt, fields, err) }()

	return s.mutate(ctx, id, func(ctx context.Context, campaigns repository.CampaignRepo, o *domain.Overlay, now time.Time) error {
		var campaignID *string
		if o.Status.NextInCycle() == domain.PianoCompleted {
			active, err := activeCampaignWith(ctx, campaigns, id)
			if err != nil {
				return err
			}
			if active != nil {
				campaignID = &active.ID
			}
		}
		fields["from"] = string(o.Status)
		if err := o.Cycle(campaignID, now); err != nil {
			return err
		}
		fields["to"] = string(o.Status)
		o.UpdatedBy = actor
		return nil
	})
}

// MarkDone completes a proposed or top piano within its active campaign and
// then submits the work report. A report failure is returned in the result
// and never rolls the status back.
func (s *pianoService) MarkDone(ctx context.Context, id, actor string) (result *MarkDoneResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"piano_id": id}
	defer func() { observeUseCase(ctx, s.observer, "mark-done", startedAt, fields, err) }()

	var campaign *domain.Campaign
	piano, err := s.mutate(ctx, id, func(ctx context.Context, campaigns repository.CampaignRepo, o *domain.Overlay, now time.Time) error {
		if !o.Status.CanMarkDone() {
			return &domain.ConflictError{Entity: "piano", ID: id, Reason: "only proposed or top pianos can be marked done (status " + string(o.Status) + ")"}
		}
		active, err := activeCampaignWith(ctx, campaigns, id)
		if err != nil {
			return err
		}
		if active == nil {
			return &domain.ConflictError{Entity: "piano", ID: id, Reason: "not a member of any active campaign"}
		}
		campaign = active
		if err := o.MarkDone(active.ID, now); err != nil {
			return err
		}
		o.UpdatedBy = actor
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["campaign_id"] = campaign.ID

	result = &MarkDoneResult{Piano: piano, Campaign: campaign}
	if s.reports != nil {
		report := source.WorkReport{
			PianoID:      piano.ID,
			CampaignID:   campaign.ID,
			Institution:  campaign.Institution,
			CompletedAt:  *piano.Overlay.CompletedAt,
			Technician:   actor,
			WorkNote:     piano.Overlay.WorkNote,
			Observations: piano.Overlay.Observations,
			Usage:        piano.Overlay.Usage,
		}
		if rErr := s.reports.Submit(ctx, report); rErr != nil {
			s.logger.Warn("work report submission failed; piano stays completed",
				zap.String("piano_id", piano.ID),
				zap.String("campaign_id", campaign.ID),
				zap.Error(rErr),
			)
			result.ReportErr = rErr
			fields["report_failed"] = true
		}
	}
	return result, nil
}

func (s *pianoService) UndoDone(ctx context.Context, id, actor string) (piano *domain.Piano, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		observeUseCase(ctx, s.observer, "undo-done", startedAt, map[string]any{"piano_id": id}, err)
	}()

	return s.mutate(ctx, id, func(_ context.Context, _ repository.CampaignRepo, o *domain.Overlay, now time.Time) error {
		if err := o.UndoDone(now); err != nil {
			return err
		}
		o.UpdatedBy = actor
		return nil
	})
}

type overlayMutation func(ctx context.Context, campaigns repository.CampaignRepo, o *domain.Overlay, now time.Time) error

// mutate reads the piano, applies fn to its overlay and saves it in one
// transaction.
func (s *pianoService) mutate(ctx context.Context, id string, fn overlayMutation) (*domain.Piano, error) {
	var piano *domain.Piano
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txPianos := repository.NewSQLitePianoRepo(tx)
		txCampaigns := repository.NewSQLiteCampaignRepo(tx)

		p, err := txPianos.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, txCampaigns, &p.Overlay, time.Now().UTC()); err != nil {
			return err
		}
		if err := txPianos.SaveOverlay(ctx, &p.Overlay); err != nil {
			return err
		}
		piano = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return piano, nil
}
