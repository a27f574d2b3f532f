package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pianotech/tournee/internal/domain"
)

var testSerialCounter atomic.Int64

// Campaign options
type CampaignOption func(*domain.Campaign)

func WithCampaignStatus(s domain.CampaignStatus) CampaignOption {
	return func(c *domain.Campaign) {
		c.Status = s
	}
}

func WithInstitution(inst string) CampaignOption {
	return func(c *domain.Campaign) {
		c.Institution = inst
	}
}

func WithPianos(ids ...string) CampaignOption {
	return func(c *domain.Campaign) {
		c.PianoIDs = append(c.PianoIDs, ids...)
	}
}

// WithTopPianos adds ids to both the membership and the top set.
func WithTopPianos(ids ...string) CampaignOption {
	return func(c *domain.Campaign) {
		for _, id := range ids {
			c.AddPiano(id)
		}
		c.TopPianoIDs = append(c.TopPianoIDs, ids...)
	}
}

func WithAssistants(names ...string) CampaignOption {
	return func(c *domain.Campaign) {
		c.AssistantTechnicians = append(c.AssistantTechnicians, names...)
	}
}

func NewTestCampaign(name string, opts ...CampaignOption) *domain.Campaign {
	now := time.Now().UTC().Truncate(time.Second)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	c := &domain.Campaign{
		ID:          uuid.New().String(),
		Name:        name,
		StartDate:   start,
		EndDate:     start.AddDate(0, 0, 14),
		Status:      domain.CampaignPlanned,
		Institution: "conservatoire",
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   "test",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Piano record options
type RecordOption func(*domain.PianoRecord)

func WithMake(brand, model string) RecordOption {
	return func(r *domain.PianoRecord) {
		r.Make = brand
		r.Model = model
	}
}

func WithLocation(loc string) RecordOption {
	return func(r *domain.PianoRecord) {
		r.Location = loc
	}
}

func WithType(t domain.PianoType) RecordOption {
	return func(r *domain.PianoRecord) {
		r.Type = t
	}
}

func WithNextService(d time.Time) RecordOption {
	return func(r *domain.PianoRecord) {
		r.NextServiceDate = &d
	}
}

func NewTestRecord(id string, opts ...RecordOption) domain.PianoRecord {
	serial := fmt.Sprintf("S%05d", testSerialCounter.Add(1))
	r := domain.PianoRecord{
		ID:                    id,
		Serial:                &serial,
		Make:                  "Yamaha",
		Model:                 "U1",
		Location:              "Room 101",
		Type:                  domain.TypeUpright,
		ServiceIntervalMonths: 6,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// NewTestRecords creates records with ids prefix1..prefixN.
func NewTestRecords(prefix string, n int) []domain.PianoRecord {
	out := make([]domain.PianoRecord, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, NewTestRecord(fmt.Sprintf("%s%d", prefix, i),
			WithLocation(fmt.Sprintf("Room %03d", i))))
	}
	return out
}
