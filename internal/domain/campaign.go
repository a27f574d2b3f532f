package domain

import (
	"slices"
	"strings"
	"time"
)

// Campaign is a time-boxed work assignment grouping a subset of pianos
// (a "tournée"). TopPianoIDs is always a subset of PianoIDs.
type Campaign struct {
	ID                    string
	Name                  string
	StartDate             time.Time
	EndDate               time.Time
	Status                CampaignStatus
	Institution           string
	ResponsibleTechnician *string
	AssistantTechnicians  []string
	PianoIDs              []string
	TopPianoIDs           []string
	Notes                 *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	CreatedBy             string
}

// Validate checks the fields required at creation and update.
func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", "campaign name is required")
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return invalid("dates", "start and end dates are required")
	}
	if !c.EndDate.After(c.StartDate) {
		return invalid("end_date", "end date %s must be after start date %s",
			c.EndDate.Format("2006-01-02"), c.StartDate.Format("2006-01-02"))
	}
	for _, id := range c.TopPianoIDs {
		if !slices.Contains(c.PianoIDs, id) {
			return invalid("top_piano_ids", "top piano %q is not a member of the campaign", id)
		}
	}
	return nil
}

// HasPiano reports campaign membership.
func (c *Campaign) HasPiano(id string) bool {
	return c != nil && slices.Contains(c.PianoIDs, id)
}

// IsTop reports whether id is a priority piano of the campaign.
func (c *Campaign) IsTop(id string) bool {
	return c != nil && slices.Contains(c.TopPianoIDs, id)
}

// AddPiano adds id to the membership. Returns false if already present.
func (c *Campaign) AddPiano(id string) bool {
	if c.HasPiano(id) {
		return false
	}
	c.PianoIDs = append(c.PianoIDs, id)
	return true
}

// RemovePiano removes id from the membership and from the top set.
// Returns false if id was not a member.
func (c *Campaign) RemovePiano(id string) bool {
	if !c.HasPiano(id) {
		return false
	}
	c.PianoIDs = slices.DeleteFunc(c.PianoIDs, func(s string) bool { return s == id })
	c.TopPianoIDs = slices.DeleteFunc(c.TopPianoIDs, func(s string) bool { return s == id })
	return true
}

// SetTop flags a member piano as priority.
func (c *Campaign) SetTop(id string) error {
	if !c.HasPiano(id) {
		return conflict("campaign", c.ID, "piano %q is not a member", id)
	}
	if !c.IsTop(id) {
		c.TopPianoIDs = append(c.TopPianoIDs, id)
	}
	return nil
}

// UnsetTop clears the priority flag. Returns false if id was not top.
func (c *Campaign) UnsetTop(id string) bool {
	if !c.IsTop(id) {
		return false
	}
	c.TopPianoIDs = slices.DeleteFunc(c.TopPianoIDs, func(s string) bool { return s == id })
	return true
}

// CanActivate reports whether the campaign may become the active one.
// Archived campaigns must be reanimated first; completed is terminal.
func (c *Campaign) CanActivate() error {
	switch c.Status {
	case CampaignPlanned, CampaignActive:
		return nil
	default:
		return conflict("campaign", c.ID, "cannot activate from status %s", c.Status)
	}
}

// Archive moves an active or planned campaign to archived. Membership and
// completion history are retained.
func (c *Campaign) Archive(now time.Time) error {
	if c.Status != CampaignActive && c.Status != CampaignPlanned {
		return conflict("campaign", c.ID, "cannot archive from status %s", c.Status)
	}
	c.Status = CampaignArchived
	c.UpdatedAt = now
	return nil
}

// Reanimate returns an archived campaign to planned, never directly to active.
func (c *Campaign) Reanimate(now time.Time) error {
	if c.Status != CampaignArchived {
		return conflict("campaign", c.ID, "only archived campaigns can be reanimated (status %s)", c.Status)
	}
	c.Status = CampaignPlanned
	c.UpdatedAt = now
	return nil
}

// Complete concludes the campaign manually.
func (c *Campaign) Complete(now time.Time) error {
	if c.Status != CampaignActive && c.Status != CampaignPlanned {
		return conflict("campaign", c.ID, "cannot complete from status %s", c.Status)
	}
	c.Status = CampaignCompleted
	c.UpdatedAt = now
	return nil
}

// CanDelete rejects deletion of the active campaign.
func (c *Campaign) CanDelete() error {
	if c.Status == CampaignActive {
		return conflict("campaign", c.ID, "cannot delete an active campaign; archive it first")
	}
	return nil
}

// DisplayID truncates ID to 8 characters.
func (c *Campaign) DisplayID() string {
	if len(c.ID) >= 8 {
		return c.ID[:8]
	}
	return c.ID
}
