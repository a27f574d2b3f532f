package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pianotech/tournee/internal/metrics"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogUseCaseObserver(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	obs := NewLogUseCaseObserver(zap.New(core))

	obs.ObserveUseCase(context.Background(), UseCaseEvent{
		Name: "campaign-activate", Duration: 3 * time.Millisecond, Success: true,
		Fields: map[string]any{"campaign_id": "T1"},
	})
	obs.ObserveUseCase(context.Background(), UseCaseEvent{
		Name: "mark-done", Err: errors.New("boom"),
	})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "service_use_case", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "campaign-activate", entries[0].ContextMap()["use_case"])
	assert.Equal(t, "T1", entries[0].ContextMap()["campaign_id"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestNewLogUseCaseObserver_NilLogger(t *testing.T) {
	assert.IsType(t, NoopUseCaseObserver{}, NewLogUseCaseObserver(nil))
}

func TestMultiUseCaseObserver(t *testing.T) {
	m := metrics.New()
	rec := &recordingObserver{}
	obs := NewMultiUseCaseObserver(rec, nil, NewMetricsUseCaseObserver(m))

	observeUseCase(context.Background(), obs, "refresh", time.Now(), nil, nil)

	require.Len(t, rec.events, 1)
	assert.True(t, rec.events[0].Success)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.UseCaseTotal.WithLabelValues("refresh", "success")))
}
