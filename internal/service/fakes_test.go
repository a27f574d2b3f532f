package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/repository"
	"github.com/pianotech/tournee/internal/source"
	"github.com/pianotech/tournee/internal/testutil"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	records []domain.PianoRecord
	err     error
	calls   int
}

func (f *fakeSource) ListUnits(_ context.Context, filter source.Filter) ([]domain.PianoRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(filter.IDs) == 0 {
		return f.records, nil
	}
	var out []domain.PianoRecord
	for _, r := range f.records {
		for _, id := range filter.IDs {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

type fakeSink struct {
	mu      sync.Mutex
	reports []source.WorkReport
	err     error
}

func (f *fakeSink) Submit(_ context.Context, r source.WorkReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return f.err
}

type recordingObserver struct {
	mu     sync.Mutex
	events []UseCaseEvent
}

func (o *recordingObserver) ObserveUseCase(_ context.Context, e UseCaseEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *recordingObserver) last() UseCaseEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events[len(o.events)-1]
}

var errSinkDown = errors.New("report endpoint unavailable")

// env bundles the services over one test database.
type env struct {
	db        *sql.DB
	pianos    *repository.SQLitePianoRepo
	campaigns *repository.SQLiteCampaignRepo
	source    *fakeSource
	sink      *fakeSink
	observer  *recordingObserver

	Merge    MergeService
	Piano    PianoService
	Campaign CampaignService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	database := testutil.NewTestDB(t)
	return newEnvOn(t, database, true)
}

func newEnvOn(t *testing.T, database *sql.DB, enforce bool) *env {
	t.Helper()
	e := &env{
		db:        database,
		pianos:    repository.NewSQLitePianoRepo(database),
		campaigns: repository.NewSQLiteCampaignRepo(database),
		source:    &fakeSource{},
		sink:      &fakeSink{},
		observer:  &recordingObserver{},
	}
	uow := testutil.NewTestUoW(database)
	e.Merge = NewMergeService(e.source, e.pianos, uow, e.observer)
	e.Piano = NewPianoService(e.pianos, e.campaigns, uow, e.sink, nil, e.observer)
	e.Campaign = NewCampaignService(e.campaigns, uow, enforce, e.observer)
	return e
}

// seed loads records through a full refresh.
func (e *env) seed(t *testing.T, records ...domain.PianoRecord) {
	t.Helper()
	e.source.records = records
	_, err := e.Merge.Refresh(context.Background(), source.Filter{})
	require.NoError(t, err)
}

func (e *env) createCampaign(t *testing.T, name string, opts ...testutil.CampaignOption) *domain.Campaign {
	t.Helper()
	c := testutil.NewTestCampaign(name, opts...)
	require.NoError(t, e.Campaign.Create(context.Background(), c))
	return c
}
