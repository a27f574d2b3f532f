package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/pianotech/tournee/internal/cli/formatter"
	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/repository"
	"github.com/pianotech/tournee/internal/service"
	"github.com/spf13/cobra"
)

func newCampaignCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "campaign",
		Aliases: []string{"tournee", "campaigns"},
		Short:   "Manage campaigns (tournées)",
	}

	cmd.AddCommand(
		newCampaignAddCmd(app),
		newCampaignListCmd(app),
		newCampaignShowCmd(app),
		newCampaignUpdateCmd(app),
		newCampaignActivateCmd(app),
		newCampaignTransitionCmd(app, "archive", "Archive a planned or active campaign", service.CampaignService.Archive),
		newCampaignTransitionCmd(app, "reanimate", "Return an archived campaign to planned", service.CampaignService.Reanimate),
		newCampaignTransitionCmd(app, "complete", "Conclude a planned or active campaign", service.CampaignService.Complete),
		newCampaignDeleteCmd(app),
		newCampaignMemberCmd(app, "add-piano", "Add pianos to a campaign", service.CampaignService.AddPiano),
		newCampaignMemberCmd(app, "remove-piano", "Remove pianos from a campaign", service.CampaignService.RemovePiano),
		newCampaignMemberCmd(app, "top", "Mark member pianos as top priority", service.CampaignService.SetTopPiano),
		newCampaignMemberCmd(app, "untop", "Clear the top priority flag", service.CampaignService.UnsetTopPiano),
	)

	return cmd
}

func newCampaignAddCmd(app *App) *cobra.Command {
	var in campaignInput
	var pianos, top []string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a new campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.name == "" || in.institution == "" || in.start == "" || in.end == "" {
				if !app.interactive() {
					return fmt.Errorf("--name, --institution, --start and --end are required")
				}
				if err := campaignForm(&in).Run(); err != nil {
					return err
				}
			}

			c, err := in.campaign(nil)
			if err != nil {
				return err
			}
			c.PianoIDs = pianos
			for _, id := range top {
				c.AddPiano(id)
				_ = c.SetTop(id)
			}
			c.CreatedBy = app.Actor
			if in.activate {
				c.Status = domain.CampaignActive
			}

			if err := app.Campaigns.Create(cmd.Context(), c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created campaign %s [%s] (%s)\n", c.Name, c.DisplayID(), c.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.name, "name", "", "Campaign name")
	cmd.Flags().StringVar(&in.institution, "institution", "", "Institution the campaign serves")
	cmd.Flags().StringVar(&in.start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.end, "end", "", "End date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.technician, "technician", "", "Responsible technician")
	cmd.Flags().StringSliceVar(&in.assistants, "assistant", nil, "Assistant technicians")
	cmd.Flags().StringVar(&in.notes, "notes", "", "Free-text notes")
	cmd.Flags().BoolVar(&in.activate, "activate", false, "Create as the active campaign of the institution")
	cmd.Flags().StringSliceVar(&pianos, "piano", nil, "Member piano IDs")
	cmd.Flags().StringSliceVar(&top, "top", nil, "Top priority piano IDs (added as members)")

	return cmd
}

// campaign builds a new campaign from the input, or applies it on top of
// base when updating.
func (in *campaignInput) campaign(base *domain.Campaign) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	if base != nil {
		c = base
	}
	if in.name != "" {
		c.Name = in.name
	}
	if in.institution != "" {
		c.Institution = in.institution
	}
	if in.start != "" {
		d, err := parseDate(in.start)
		if err != nil {
			return nil, fmt.Errorf("invalid start date %q: %w", in.start, err)
		}
		c.StartDate = d
	}
	if in.end != "" {
		d, err := parseDate(in.end)
		if err != nil {
			return nil, fmt.Errorf("invalid end date %q: %w", in.end, err)
		}
		c.EndDate = d
	}
	if in.technician != "" {
		c.ResponsibleTechnician = domain.StrPtrOrNil(in.technician)
	}
	if len(in.assistants) > 0 {
		c.AssistantTechnicians = in.assistants
	}
	if in.notes != "" {
		c.Notes = domain.StrPtrOrNil(in.notes)
	}
	return c, nil
}

func newCampaignListCmd(app *App) *cobra.Command {
	var institution, piano string
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := repository.CampaignFilter{Institution: institution, PianoID: piano}
			for _, s := range statuses {
				f.Statuses = append(f.Statuses, domain.CampaignStatus(strings.ToLower(s)))
			}
			campaigns, err := app.Campaigns.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			if len(campaigns) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No campaigns found.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatCampaignList(campaigns))
			return nil
		},
	}

	cmd.Flags().StringVar(&institution, "institution", "", "Filter by institution")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (planned, active, archived, completed)")
	cmd.Flags().StringVar(&piano, "piano", "", "Only campaigns containing this piano")

	return cmd
}

func newCampaignShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <campaign>",
		Short: "Show a campaign with its members and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := resolveCampaign(ctx, app, args[0])
			if err != nil {
				return err
			}
			completed, err := completedIn(ctx, app, c)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatCampaignDetail(c, completed))
			return nil
		},
	}
}

// completedIn counts members whose completion was recorded in c.
func completedIn(ctx context.Context, app *App, c *domain.Campaign) (int, error) {
	if len(c.PianoIDs) == 0 {
		return 0, nil
	}
	pianos, err := app.Merge.Projections(ctx, repository.PianoFilter{
		IDs: c.PianoIDs, IncludeHidden: true, IncludeStale: true,
	})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range pianos {
		id := p.Overlay.CompletedInCampaignID
		if p.Overlay.Status == domain.PianoCompleted && id != nil && *id == c.ID {
			n++
		}
	}
	return n, nil
}

func newCampaignUpdateCmd(app *App) *cobra.Command {
	var in campaignInput

	cmd := &cobra.Command{
		Use:   "update <campaign>",
		Short: "Update name, dates, technicians or notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			existing, err := resolveCampaign(ctx, app, args[0])
			if err != nil {
				return err
			}
			c, err := in.campaign(existing)
			if err != nil {
				return err
			}
			if err := app.Campaigns.Update(ctx, c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated campaign %s [%s]\n", c.Name, c.DisplayID())
			return nil
		},
	}

	cmd.Flags().StringVar(&in.name, "name", "", "New name")
	cmd.Flags().StringVar(&in.institution, "institution", "", "New institution")
	cmd.Flags().StringVar(&in.start, "start", "", "New start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.end, "end", "", "New end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.technician, "technician", "", "Responsible technician")
	cmd.Flags().StringSliceVar(&in.assistants, "assistant", nil, "Replace the assistant technicians")
	cmd.Flags().StringVar(&in.notes, "notes", "", "Free-text notes")

	return cmd
}

func newCampaignActivateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <campaign>",
		Short: "Make a planned campaign the active one of its institution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := resolveCampaign(ctx, app, args[0])
			if err != nil {
				return err
			}
			res, err := app.Campaigns.Activate(ctx, c.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Activated %s [%s]\n", res.Campaign.Name, res.Campaign.DisplayID())
			if len(res.Demoted) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", formatter.Dim("Moved back to planned: "+strings.Join(res.Demoted, ", ")))
			}
			return nil
		},
	}
}

func newCampaignTransitionCmd(app *App, use, short string, fn func(service.CampaignService, context.Context, string) (*domain.Campaign, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <campaign>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := resolveCampaign(ctx, app, args[0])
			if err != nil {
				return err
			}
			updated, err := fn(app.Campaigns, ctx, c.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]: %s → %s\n", updated.Name, updated.DisplayID(), c.Status, updated.Status)
			return nil
		},
	}
}

func newCampaignDeleteCmd(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <campaign>",
		Short: "Delete a campaign that is not active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := resolveCampaign(ctx, app, args[0])
			if err != nil {
				return err
			}
			if !force && app.interactive() {
				confirmed := false
				if err := confirmForm(fmt.Sprintf("Delete campaign %q?", c.Name), &confirmed).Run(); err != nil {
					return err
				}
				if !confirmed {
					return nil
				}
			}
			if err := app.Campaigns.Delete(ctx, c.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted campaign %s [%s]\n", c.Name, c.DisplayID())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")

	return cmd
}

func newCampaignMemberCmd(app *App, use, short string, fn func(svc service.CampaignService, ctx context.Context, campaignID, pianoID string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <campaign> <piano-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := resolveCampaign(ctx, app, args[0])
			if err != nil {
				return err
			}
			for _, id := range args[1:] {
				if err := fn(app.Campaigns, ctx, c.ID, id); err != nil {
					return fmt.Errorf("%s %s: %w", use, id, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s\n", c.Name, use, strings.Join(args[1:], ", "))
			return nil
		},
	}
}
