package formatter

import (
	"fmt"
	"strings"

	"github.com/pianotech/tournee/internal/domain"
)

func FormatCampaignList(campaigns []*domain.Campaign) string {
	headers := []string{"ID", "NAME", "INSTITUTION", "STATUS", "DATES", "PIANOS", "TOP"}
	rows := make([][]string, 0, len(campaigns))
	for _, c := range campaigns {
		rows = append(rows, []string{
			c.DisplayID(),
			c.Name,
			c.Institution,
			CampaignStatusStyle(c.Status).Render(string(c.Status)),
			DateRange(c.StartDate, c.EndDate),
			fmt.Sprintf("%d", len(c.PianoIDs)),
			fmt.Sprintf("%d", len(c.TopPianoIDs)),
		})
	}
	return RenderTable(headers, rows)
}

// FormatCampaignDetail renders a campaign with its members. completed is
// the number of members whose completion was recorded in this campaign.
func FormatCampaignDetail(c *domain.Campaign, completed int) string {
	var b strings.Builder
	line := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", StyleDim.Render(fmt.Sprintf("%-14s", label)), value)
	}
	line("ID", c.ID)
	line("Status", CampaignStatusStyle(c.Status).Render(string(c.Status)))
	line("Institution", c.Institution)
	line("Dates", DateRange(c.StartDate, c.EndDate))
	line("Responsible", derefOr(c.ResponsibleTechnician, Dim("—")))
	if len(c.AssistantTechnicians) > 0 {
		line("Assistants", strings.Join(c.AssistantTechnicians, ", "))
	}
	line("Progress", RenderProgress(completed, len(c.PianoIDs), 20))
	line("Pianos", memberList(c))
	if c.Notes != nil && *c.Notes != "" {
		line("Notes", *c.Notes)
	}
	line("Created", c.CreatedAt.Format("2006-01-02")+" "+Dim("by "+c.CreatedBy))
	return RenderBox(c.Name, strings.TrimRight(b.String(), "\n"))
}

// memberList prints members with top pianos marked and listed first.
func memberList(c *domain.Campaign) string {
	if len(c.PianoIDs) == 0 {
		return Dim("none")
	}
	parts := make([]string, 0, len(c.PianoIDs))
	for _, id := range c.TopPianoIDs {
		parts = append(parts, StyleRed.Render("★"+id))
	}
	for _, id := range c.PianoIDs {
		if !c.IsTop(id) {
			parts = append(parts, id)
		}
	}
	return strings.Join(parts, " ")
}
