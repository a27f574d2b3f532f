package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/pianotech/tournee/internal/domain"
)

// FormatPianoList renders projections in the given order. Categories are
// resolved against campaign, which may be nil.
func FormatPianoList(pianos []domain.Piano, campaign *domain.Campaign, now time.Time) string {
	ctx := domain.CategoryContext{SelectedCampaign: campaign}
	headers := []string{"ID", "PIANO", "LOCATION", "TYPE", "STATUS", "USAGE", "NEXT SERVICE", ""}
	rows := make([][]string, 0, len(pianos))
	for _, p := range pianos {
		cat := domain.ResolveCategory(p, ctx)
		rows = append(rows, []string{
			CategoryStyle(cat).Render(p.ID),
			p.DisplayName(),
			orDash(p.Location),
			string(p.Type),
			CategoryStyle(cat).Render(string(p.Overlay.Status)),
			usage(p.Overlay.Usage),
			ServiceDue(p.NextServiceDate, now),
			flags(p),
		})
	}
	return RenderTable(headers, rows)
}

// FormatPianoDetail renders one projection with its overlay fields.
func FormatPianoDetail(p *domain.Piano, campaign *domain.Campaign, now time.Time) string {
	cat := domain.ResolveCategory(*p, domain.CategoryContext{SelectedCampaign: campaign})

	var b strings.Builder
	line := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", StyleDim.Render(fmt.Sprintf("%-16s", label)), value)
	}
	line("Category", CategoryIndicator(cat))
	if campaign != nil {
		line("Campaign", campaign.Name)
	}
	line("Status", string(p.Overlay.Status))
	line("Serial", derefOr(p.Serial, Dim("unknown")))
	line("Location", orDash(p.Location))
	line("Type", string(p.Type))
	line("Usage", usage(p.Overlay.Usage))
	line("Last service", dateOrDash(p.LastServiceDate))
	line("Next service", ServiceDue(p.NextServiceDate, now))
	if p.ServiceIntervalMonths > 0 {
		line("Interval", fmt.Sprintf("%d months", p.ServiceIntervalMonths))
	}
	if len(p.Tags) > 0 {
		line("Tags", strings.Join(p.Tags, ", "))
	}
	if p.Overlay.CompletedAt != nil {
		line("Completed", p.Overlay.CompletedAt.Format("2006-01-02 15:04")+" "+Dim("in "+derefOr(p.Overlay.CompletedInCampaignID, "no campaign")))
	}
	line("Assignment", orDash(p.Overlay.AssignmentNote))
	line("Work note", orDash(p.Overlay.WorkNote))
	line("Observations", orDash(p.Overlay.Observations))
	if f := flags(*p); f != "" {
		line("Flags", f)
	}
	if !p.Overlay.UpdatedAt.IsZero() {
		line("Updated", p.Overlay.UpdatedAt.Format("2006-01-02 15:04")+" "+Dim("by "+orDash(p.Overlay.UpdatedBy)))
	}
	return RenderBox(p.DisplayName()+" ("+p.ID+")", strings.TrimRight(b.String(), "\n"))
}

func usage(u *domain.UsageCategory) string {
	if u == nil {
		return Dim("—")
	}
	return string(*u)
}

func flags(p domain.Piano) string {
	var out []string
	if p.Stale {
		out = append(out, StyleRed.Render("stale"))
	}
	if p.Overlay.IsHidden {
		out = append(out, Dim("hidden"))
	}
	return strings.Join(out, " ")
}

func dateOrDash(d *time.Time) string {
	if d == nil {
		return Dim("—")
	}
	return d.Format("2006-01-02")
}
