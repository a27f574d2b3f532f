package source

import (
	"context"

	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/metrics"
	"go.uber.org/zap"
)

type instrumentedSource struct {
	next    UnitSource
	metrics *metrics.Metrics
}

// Instrument records the duration and outcome of every listing.
func Instrument(src UnitSource, m *metrics.Metrics) UnitSource {
	if m == nil {
		return src
	}
	return &instrumentedSource{next: src, metrics: m}
}

func (s *instrumentedSource) ListUnits(ctx context.Context, f Filter) (records []domain.PianoRecord, err error) {
	done := s.metrics.TrackSource("list_units")
	defer func() { done(err) }()
	return s.next.ListUnits(ctx, f)
}

type instrumentedSink struct {
	next    ReportSink
	metrics *metrics.Metrics
}

func InstrumentSink(sink ReportSink, m *metrics.Metrics) ReportSink {
	if m == nil {
		return sink
	}
	return &instrumentedSink{next: sink, metrics: m}
}

func (s *instrumentedSink) Submit(ctx context.Context, r WorkReport) (err error) {
	done := s.metrics.TrackSource("submit_report")
	defer func() { done(err) }()
	return s.next.Submit(ctx, r)
}

// LogSink records reports in the log when no report endpoint is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Submit(_ context.Context, r WorkReport) error {
	s.logger.Info("work report",
		zap.String("piano_id", r.PianoID),
		zap.String("campaign_id", r.CampaignID),
		zap.String("institution", r.Institution),
		zap.String("technician", r.Technician),
		zap.Time("completed_at", r.CompletedAt),
	)
	return nil
}
