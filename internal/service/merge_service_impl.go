package service

import (
	"context"
	"errors"
	"time"

	"github.com/pianotech/tournee/internal/db"
	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/repository"
	"github.com/pianotech/tournee/internal/source"
)

// ErrNoSource is returned by Refresh when no external source is configured.
var ErrNoSource = errors.New("no unit source configured (set TOURNEE_SOURCE_URL or TOURNEE_SOURCE_FILE)")

type mergeService struct {
	units    source.UnitSource
	pianos   repository.PianoRepo
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewMergeService(
	units source.UnitSource,
	pianos repository.PianoRepo,
	uow db.UnitOfWork,
	observers ...UseCaseObserver,
) MergeService {
	return &mergeService{
		units:    units,
		pianos:   pianos,
		uow:      uow,
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *mergeService) Refresh(ctx context.Context, f source.Filter) (result *RefreshResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"filtered": isFiltered(f)}
	defer func() { observeUseCase(ctx, s.observer, "refresh", startedAt, fields, err) }()

	if s.units == nil {
		return nil, ErrNoSource
	}

	records, err := s.units.ListUnits(ctx, f)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "fetching pianos from source", Err: err}
	}
	fields["fetched"] = len(records)

	// A filtered fetch says nothing about pianos outside the filter, so
	// staleness is only decided on full refreshes.
	var previous []domain.Piano
	if !isFiltered(f) {
		prev, err := s.pianos.List(ctx, repository.PianoFilter{IncludeHidden: true, IncludeStale: true})
		if err != nil {
			return nil, err
		}
		previous = derefPianos(prev)
	}

	result = &RefreshResult{Fetched: len(records)}
	now := time.Now().UTC()
	ids := pianoIDs(records)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txPianos := repository.NewSQLitePianoRepo(tx)
		if err := txPianos.UpsertRecords(ctx, records, now); err != nil {
			return err
		}
		created, err := txPianos.EnsureOverlays(ctx, ids, now)
		if err != nil {
			return err
		}
		result.NewOverlays = created

		if !isFiltered(f) {
			stale, err := txPianos.MarkStaleNotSeenAt(ctx, now)
			if err != nil {
				return err
			}
			result.MarkedStale = stale
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	overlays, err := s.pianos.ListOverlays(ctx)
	if err != nil {
		return nil, err
	}
	result.Pianos = domain.MergeProjections(records, overlays, previous)
	fields["new_overlays"] = result.NewOverlays
	fields["marked_stale"] = result.MarkedStale
	return result, nil
}

func (s *mergeService) Projections(ctx context.Context, f repository.PianoFilter) ([]*domain.Piano, error) {
	return s.pianos.List(ctx, f)
}

func isFiltered(f source.Filter) bool {
	return len(f.IDs) > 0 || f.Location != ""
}
