package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pianotech/tournee/internal/cli/formatter"
	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/repository"
	"github.com/pianotech/tournee/internal/workflow"
	"github.com/spf13/cobra"
)

func newPianoCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "piano",
		Aliases: []string{"pianos"},
		Short:   "Inspect pianos and change their workflow status",
	}

	cmd.AddCommand(
		newPianoListCmd(app),
		newPianoShowCmd(app),
		newPianoCycleCmd(app),
		newPianoDoneCmd(app),
		newPianoUndoCmd(app),
		newPianoNoteCmd(app),
	)

	return cmd
}

// viewFlags are the filter and sort flags shared by list, batch and
// inventory commands.
type viewFlags struct {
	campaign      string
	search        string
	statuses      []string
	types         []string
	usages        []string
	campaignOnly  bool
	includeHidden bool
	includeStale  bool
	sort          string
	desc          bool
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.campaign, "campaign", "c", "", "Campaign (ID, ID prefix or name) used for categories and membership")
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "Search make, model, serial and location")
	cmd.Flags().StringSliceVar(&f.statuses, "status", nil, "Filter by status (normal, proposed, top, completed)")
	cmd.Flags().StringSliceVar(&f.types, "type", nil, "Filter by type (grand, digital_grand, upright)")
	cmd.Flags().StringSliceVar(&f.usages, "usage", nil, "Filter by usage category")
	cmd.Flags().BoolVar(&f.campaignOnly, "campaign-only", false, "Only pianos in the campaign")
	cmd.Flags().BoolVar(&f.includeHidden, "include-hidden", false, "Include hidden pianos")
	cmd.Flags().BoolVar(&f.includeStale, "include-stale", false, "Include pianos missing from the last sync")
	cmd.Flags().StringVar(&f.sort, "sort", string(workflow.SortLocation), "Sort by location, make, serial, next_service or status")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "Sort descending")
}

func (f *viewFlags) options() (workflow.ViewOptions, error) {
	statuses, err := parseStatuses(f.statuses)
	if err != nil {
		return workflow.ViewOptions{}, err
	}
	types, err := parseTypes(f.types)
	if err != nil {
		return workflow.ViewOptions{}, err
	}
	usages, err := parseUsages(f.usages)
	if err != nil {
		return workflow.ViewOptions{}, err
	}
	sortKey := workflow.SortKey(strings.ToLower(f.sort))
	if !workflow.ValidSortKeys[sortKey] {
		return workflow.ViewOptions{}, fmt.Errorf("invalid sort key %q", f.sort)
	}
	if f.campaignOnly && f.campaign == "" {
		return workflow.ViewOptions{}, fmt.Errorf("--campaign-only requires --campaign")
	}
	return workflow.ViewOptions{
		Search:        f.search,
		Types:         types,
		Statuses:      statuses,
		Usages:        usages,
		CampaignOnly:  f.campaignOnly,
		IncludeHidden: f.includeHidden,
		IncludeStale:  f.includeStale,
		Sort:          sortKey,
		Descending:    f.desc,
	}, nil
}

func newPianoListCmd(app *App) *cobra.Command {
	var vf viewFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pianos",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := vf.options()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			campaign, err := selectedCampaign(ctx, app, vf.campaign)
			if err != nil {
				return err
			}
			store, err := app.newStore(ctx, campaign)
			if err != nil {
				return err
			}

			ids := store.View(opts)
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pianos found.")
				return nil
			}
			pianos := make([]domain.Piano, 0, len(ids))
			for _, id := range ids {
				p, _ := store.Piano(id)
				pianos = append(pianos, p)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPianoList(pianos, campaign, time.Now()))
			return nil
		},
	}
	vf.register(cmd)

	return cmd
}

func newPianoShowCmd(app *App) *cobra.Command {
	var campaignRef string

	cmd := &cobra.Command{
		Use:   "show <piano-id>",
		Short: "Show a piano with its overlay and category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := app.Pianos.Get(ctx, args[0])
			if err != nil {
				return err
			}
			campaign, err := selectedCampaign(ctx, app, campaignRef)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatPianoDetail(p, campaign, time.Now()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&campaignRef, "campaign", "c", "", "Resolve the category for this campaign")

	return cmd
}

func newPianoCycleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle <piano-id>",
		Short: "Advance the status: normal → proposed → completed → normal (top re-enters at proposed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			before, err := app.Pianos.Get(ctx, args[0])
			if err != nil {
				return err
			}
			after, err := app.Pianos.Cycle(ctx, args[0], app.Actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s → %s\n", after.ID, before.Overlay.Status, after.Overlay.Status)
			return nil
		},
	}
}

func newPianoDoneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "done <piano-id>",
		Short: "Mark a proposed or top piano of the active campaign as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.Pianos.MarkDone(cmd.Context(), args[0], app.Actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s completed in %s\n",
				formatter.StyleGreen.Render("✔"), res.Piano.ID, res.Campaign.Name)
			if res.ReportErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s work report not sent: %v\n",
					formatter.StyleYellow.Render("!"), res.ReportErr)
			}
			return nil
		},
	}
}

func newPianoUndoCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <piano-id>",
		Short: "Revert a completion back to proposed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Pianos.UndoDone(cmd.Context(), args[0], app.Actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: completed → %s\n", p.ID, p.Overlay.Status)
			return nil
		},
	}
}

var noteFields = map[string]domain.OverlayField{
	"assignment":      domain.FieldAssignmentNote,
	"assignment_note": domain.FieldAssignmentNote,
	"work":            domain.FieldWorkNote,
	"work_note":       domain.FieldWorkNote,
	"observations":    domain.FieldObservations,
}

func newPianoNoteCmd(app *App) *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "note <piano-id> <text>...",
		Short: "Set a free-text overlay field (assignment, work or observations)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, ok := noteFields[strings.ToLower(field)]
			if !ok {
				return fmt.Errorf("invalid field %q (want assignment, work or observations)", field)
			}
			ctx := cmd.Context()
			store, err := app.newStore(ctx, nil)
			if err != nil {
				return err
			}
			w := workflow.NewFieldWriter(store, app.Debounce)
			var writeErr error
			w.OnError(func(_ string, _ domain.OverlayField, err error) { writeErr = err })
			if err := w.Edit(args[0], f, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			if err := w.Close(ctx); err != nil {
				return err
			}
			if writeErr != nil {
				return writeErr
			}
			p, _ := store.Piano(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", p.ID, f, p.Overlay.FieldValue(f))
			return nil
		},
	}
	cmd.Flags().StringVarP(&field, "field", "f", "work", "Field to set: assignment, work or observations")

	return cmd
}

// newStore loads every projection into a workflow store wired to the
// services, with campaign selected.
func (a *App) newStore(ctx context.Context, campaign *domain.Campaign) (*workflow.Store, error) {
	ps, err := a.Merge.Projections(ctx, repository.PianoFilter{IncludeHidden: true, IncludeStale: true})
	if err != nil {
		return nil, err
	}
	s := workflow.NewStore(a.Pianos,
		workflow.WithActor(a.Actor),
		workflow.WithConcurrency(a.BatchConcurrency),
		workflow.WithMembership(a.Campaigns),
		workflow.WithLogger(a.logger()),
		workflow.WithMetrics(a.Metrics),
	)
	s.Load(derefPianos(ps))
	s.SelectCampaign(campaign)
	return s, nil
}
