package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pianotech/tournee/internal/domain"
	"go.uber.org/zap"
)

type listUnitsResponse struct {
	Pianos []unitDTO `json:"pianos"`
}

type apiError struct {
	Message string `json:"message"`
}

// HTTPSource lists piano records from the inventory API.
type HTTPSource struct {
	client *resty.Client
	logger *zap.Logger
}

// NewHTTPSource creates a client for baseURL. Listing is an idempotent
// read, so transport failures are retried.
func NewHTTPSource(baseURL, token string, timeout time.Duration, logger *zap.Logger) *HTTPSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &HTTPSource{client: client, logger: logger}
}

func (s *HTTPSource) ListUnits(ctx context.Context, f Filter) ([]domain.PianoRecord, error) {
	req := s.client.R().
		SetContext(ctx).
		SetResult(&listUnitsResponse{}).
		SetError(&apiError{})
	if len(f.IDs) > 0 {
		req.SetQueryParam("ids", strings.Join(f.IDs, ","))
	}
	if f.Location != "" {
		req.SetQueryParam("location", f.Location)
	}

	resp, err := req.Get("/pianos")
	if err != nil {
		s.logger.Error("listing pianos failed", zap.Error(err))
		return nil, fmt.Errorf("listing pianos: %w", err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if e, ok := resp.Error().(*apiError); ok && e.Message != "" {
			msg = e.Message
		}
		s.logger.Error("inventory API returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("msg", msg),
		)
		return nil, fmt.Errorf("listing pianos: %s (status: %d)", msg, resp.StatusCode())
	}

	body := resp.Result().(*listUnitsResponse)
	records, err := convertUnits(body.Pianos)
	if err != nil {
		return nil, fmt.Errorf("decoding pianos: %w", err)
	}
	s.logger.Debug("listed pianos", zap.Int("count", len(records)))
	return records, nil
}

// HTTPReportSink posts work reports. Reports are not retried: a failure is
// surfaced to the caller, who decides whether to resubmit.
type HTTPReportSink struct {
	client *resty.Client
	logger *zap.Logger
}

func NewHTTPReportSink(baseURL, token string, timeout time.Duration, logger *zap.Logger) *HTTPReportSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &HTTPReportSink{client: client, logger: logger}
}

func (s *HTTPReportSink) Submit(ctx context.Context, r WorkReport) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(r).
		SetError(&apiError{}).
		Post("/work-reports")
	if err != nil {
		return fmt.Errorf("submitting work report for %s: %w", r.PianoID, err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if e, ok := resp.Error().(*apiError); ok && e.Message != "" {
			msg = e.Message
		}
		return fmt.Errorf("submitting work report for %s: %s (status: %d)", r.PianoID, msg, resp.StatusCode())
	}
	s.logger.Info("work report submitted",
		zap.String("piano_id", r.PianoID),
		zap.String("campaign_id", r.CampaignID),
	)
	return nil
}
