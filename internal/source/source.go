// Package source talks to the external system of record: it lists the
// immutable piano records and receives work reports when a piano is done.
package source

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pianotech/tournee/internal/domain"
)

// Filter narrows a listing. Zero value lists everything.
type Filter struct {
	IDs      []string
	Location string
}

// UnitSource lists immutable piano records. It never returns overlay data.
type UnitSource interface {
	ListUnits(ctx context.Context, f Filter) ([]domain.PianoRecord, error)
}

// WorkReport is submitted once a piano is marked done in a campaign.
type WorkReport struct {
	PianoID      string                `json:"pianoId"`
	CampaignID   string                `json:"campaignId"`
	Institution  string                `json:"institution"`
	CompletedAt  time.Time             `json:"completedAt"`
	Technician   string                `json:"technician"`
	WorkNote     string                `json:"workNote,omitempty"`
	Observations string                `json:"observations,omitempty"`
	Usage        *domain.UsageCategory `json:"usage,omitempty"`
}

// ReportSink receives work reports. Failures are independent of the status
// change that triggered the report.
type ReportSink interface {
	Submit(ctx context.Context, r WorkReport) error
}

// unitDTO is the wire shape shared by the HTTP and YAML sources.
type unitDTO struct {
	ID                    string   `json:"id" yaml:"id"`
	Serial                *string  `json:"serial" yaml:"serial"`
	Make                  string   `json:"make" yaml:"make"`
	Model                 string   `json:"model" yaml:"model"`
	Location              string   `json:"location" yaml:"location"`
	Type                  string   `json:"type" yaml:"type"`
	LastServiceDate       string   `json:"lastServiceDate" yaml:"last_service_date"`
	NextServiceDate       string   `json:"nextServiceDate" yaml:"next_service_date"`
	ServiceIntervalMonths int      `json:"serviceIntervalMonths" yaml:"service_interval_months"`
	Tags                  []string `json:"tags" yaml:"tags"`
}

const dateLayout = "2006-01-02"

func (d unitDTO) toRecord() (domain.PianoRecord, error) {
	if strings.TrimSpace(d.ID) == "" {
		return domain.PianoRecord{}, fmt.Errorf("unit without id")
	}
	rec := domain.PianoRecord{
		ID:                    d.ID,
		Serial:                d.Serial,
		Make:                  d.Make,
		Model:                 d.Model,
		Location:              d.Location,
		Type:                  domain.PianoType(d.Type),
		ServiceIntervalMonths: d.ServiceIntervalMonths,
		Tags:                  d.Tags,
	}
	if rec.Type == "" {
		rec.Type = domain.TypeUpright
	}
	if !domain.ValidPianoTypes[rec.Type] {
		return domain.PianoRecord{}, fmt.Errorf("unit %s: unknown type %q", d.ID, d.Type)
	}

	var err error
	if rec.LastServiceDate, err = parseDate(d.LastServiceDate); err != nil {
		return domain.PianoRecord{}, fmt.Errorf("unit %s: last service date: %w", d.ID, err)
	}
	if rec.NextServiceDate, err = parseDate(d.NextServiceDate); err != nil {
		return domain.PianoRecord{}, fmt.Errorf("unit %s: next service date: %w", d.ID, err)
	}
	return rec, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	// Accept full timestamps too; only the date part is kept.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func convertUnits(dtos []unitDTO) ([]domain.PianoRecord, error) {
	out := make([]domain.PianoRecord, 0, len(dtos))
	for _, d := range dtos {
		rec, err := d.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// applyFilter is used by sources that cannot filter server-side.
func applyFilter(records []domain.PianoRecord, f Filter) []domain.PianoRecord {
	if len(f.IDs) == 0 && f.Location == "" {
		return records
	}
	out := records[:0:0]
	for _, r := range records {
		if len(f.IDs) > 0 && !slices.Contains(f.IDs, r.ID) {
			continue
		}
		if f.Location != "" && !strings.EqualFold(r.Location, f.Location) {
			continue
		}
		out = append(out, r)
	}
	return out
}
