package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestObserveUseCase(t *testing.T) {
	m := New()

	m.ObserveUseCase("campaign-activate", 10*time.Millisecond, nil)
	m.ObserveUseCase("campaign-activate", 5*time.Millisecond, errors.New("boom"))
	m.ObserveUseCase("campaign-activate", 5*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UseCaseTotal.WithLabelValues("campaign-activate", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UseCaseTotal.WithLabelValues("campaign-activate", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.UseCaseDuration))
}

func TestObserveBatchItem(t *testing.T) {
	m := New()
	m.ObserveBatchItem("set-status", nil)
	m.ObserveBatchItem("set-status", errors.New("x"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchItemsTotal.WithLabelValues("set-status", "error")))
}

func TestTrackSource(t *testing.T) {
	m := New()
	done := m.TrackSource("list-units")
	done(nil)

	assert.Equal(t, 1, testutil.CollectAndCount(m.SourceDuration))
}

func TestSeparateInstancesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

func TestServe(t *testing.T) {
	m := New()
	m.ObserveUseCase("refresh", time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr, err := Serve(ctx, "127.0.0.1:0", m, zap.NewNop())
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `tournee_use_case_total{outcome="success",use_case="refresh"} 1`)
}
