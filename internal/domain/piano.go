package domain

import (
	"strings"
	"time"
)

// PianoRecord holds the attributes owned by the external system of record.
// It is read-only from this module's perspective.
type PianoRecord struct {
	ID                    string
	Serial                *string
	Make                  string
	Model                 string
	Location              string
	Type                  PianoType
	LastServiceDate       *time.Time
	NextServiceDate       *time.Time
	ServiceIntervalMonths int
	Tags                  []string
}

// Overlay is the locally owned workflow state of a piano, keyed by piano ID
// independently of the external record.
type Overlay struct {
	PianoID               string
	Status                PianoStatus
	Usage                 *UsageCategory
	AssignmentNote        string
	WorkNote              string
	Observations          string
	CompletedInCampaignID *string
	CompletedAt           *time.Time
	IsHidden              bool
	UpdatedAt             time.Time
	UpdatedBy             string
}

// Piano is the merged projection of one unit.
type Piano struct {
	PianoRecord
	Overlay Overlay

	// Stale marks a unit that was absent from the latest external refresh.
	Stale bool
}

// DefaultOverlay returns the overlay attached to a unit seen for the first time.
func DefaultOverlay(pianoID string) Overlay {
	return Overlay{PianoID: pianoID, Status: PianoNormal}
}

// Status is shorthand for p.Overlay.Status.
func (p *Piano) Status() PianoStatus { return p.Overlay.Status }

// DisplayName returns "Make Model" with the serial appended when known.
func (p *Piano) DisplayName() string {
	name := strings.TrimSpace(p.Make + " " + p.Model)
	if p.Serial != nil && *p.Serial != "" {
		name += " #" + *p.Serial
	}
	if name == "" {
		return p.ID
	}
	return name
}

// NextInCycle returns the status reached by one management-context cycle
// action: normal → proposed → completed → normal. Top re-enters the cycle
// at proposed.
func (s PianoStatus) NextInCycle() PianoStatus {
	switch s {
	case PianoNormal:
		return PianoProposed
	case PianoProposed:
		return PianoCompleted
	case PianoTop:
		return PianoProposed
	default:
		return PianoNormal
	}
}

// CanMarkDone reports whether the status allows the field "mark done" action.
func (s PianoStatus) CanMarkDone() bool {
	return s == PianoProposed || s == PianoTop
}

// SetStatus moves the overlay to status, maintaining the completion fields:
// leaving completed clears them, entering completed stamps CompletedAt and
// records campaignID (which may be nil).
func (o *Overlay) SetStatus(status PianoStatus, campaignID *string, now time.Time) error {
	if !ValidPianoStatuses[status] {
		return invalid("status", "unknown piano status %q", status)
	}
	if status == PianoCompleted {
		if o.Status != PianoCompleted {
			o.CompletedAt = &now
			o.CompletedInCampaignID = copyStrPtr(campaignID)
		}
	} else {
		o.CompletedAt = nil
		o.CompletedInCampaignID = nil
	}
	o.Status = status
	o.UpdatedAt = now
	return nil
}

// Cycle applies one management-context cycle action.
func (o *Overlay) Cycle(campaignID *string, now time.Time) error {
	return o.SetStatus(o.Status.NextInCycle(), campaignID, now)
}

// MarkDone performs the field-context completion. Campaign membership and
// activity are checked by the caller; here only the status precondition is
// enforced.
func (o *Overlay) MarkDone(campaignID string, now time.Time) error {
	if !o.Status.CanMarkDone() {
		return conflict("piano", o.PianoID, "cannot mark done from status %s", o.Status)
	}
	o.Status = PianoCompleted
	o.CompletedInCampaignID = &campaignID
	o.CompletedAt = &now
	o.UpdatedAt = now
	return nil
}

// UndoDone reverts a completion to proposed. It never returns to normal.
func (o *Overlay) UndoDone(now time.Time) error {
	if o.Status != PianoCompleted {
		return conflict("piano", o.PianoID, "cannot undo completion from status %s", o.Status)
	}
	o.Status = PianoProposed
	o.CompletedInCampaignID = nil
	o.CompletedAt = nil
	o.UpdatedAt = now
	return nil
}

// OverlayPatch is a partial overlay update. Nil fields are left untouched.
type OverlayPatch struct {
	Status *PianoStatus
	// CampaignID is recorded as CompletedInCampaignID when Status moves to
	// completed.
	CampaignID *string

	// UsageSet distinguishes "clear usage" (UsageSet with nil Usage) from
	// "leave usage alone".
	UsageSet bool
	Usage    *UsageCategory

	AssignmentNote *string
	WorkNote       *string
	Observations   *string
	IsHidden       *bool
}

// FieldPatch returns a patch that sets a single free-text field.
func FieldPatch(field OverlayField, value string) (OverlayPatch, error) {
	var p OverlayPatch
	switch field {
	case FieldAssignmentNote:
		p.AssignmentNote = &value
	case FieldWorkNote:
		p.WorkNote = &value
	case FieldObservations:
		p.Observations = &value
	default:
		return p, invalid("field", "unknown overlay field %q", field)
	}
	return p, nil
}

// IsEmpty reports whether the patch changes nothing.
func (p OverlayPatch) IsEmpty() bool {
	return p.Status == nil && !p.UsageSet && p.AssignmentNote == nil &&
		p.WorkNote == nil && p.Observations == nil && p.IsHidden == nil
}

// Apply merges the patch into the overlay and stamps the audit fields.
func (o *Overlay) Apply(p OverlayPatch, actor string, now time.Time) error {
	if p.UsageSet && p.Usage != nil {
		if _, err := ParseUsage(string(*p.Usage)); err != nil {
			return err
		}
	}
	if p.Status != nil {
		if err := o.SetStatus(*p.Status, p.CampaignID, now); err != nil {
			return err
		}
	}
	if p.UsageSet {
		o.Usage = p.Usage
	}
	o.AssignmentNote = StrFromPtrWithDefault(o.AssignmentNote, p.AssignmentNote)
	o.WorkNote = StrFromPtrWithDefault(o.WorkNote, p.WorkNote)
	o.Observations = StrFromPtrWithDefault(o.Observations, p.Observations)
	o.IsHidden = BoolFromPtrWithDefault(o.IsHidden, p.IsHidden)
	o.UpdatedAt = now
	o.UpdatedBy = actor
	return nil
}

// FieldValue returns the current value of a free-text overlay field.
func (o *Overlay) FieldValue(field OverlayField) string {
	switch field {
	case FieldAssignmentNote:
		return o.AssignmentNote
	case FieldWorkNote:
		return o.WorkNote
	case FieldObservations:
		return o.Observations
	}
	return ""
}

func copyStrPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
