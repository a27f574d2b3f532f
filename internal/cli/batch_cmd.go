package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/pianotech/tournee/internal/cli/formatter"
	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/workflow"
	"github.com/spf13/cobra"
)

func newBatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Apply one change to many pianos",
		Long: `Apply one change to many pianos.

Pianos are given as IDs, as a range over the listed order (--from/--to,
using the same filter and sort flags as "piano list"), or as every listed
piano (--all). Each piano is persisted on its own; failures are reported
per piano and do not undo the others.`,
	}

	cmd.AddCommand(
		newBatchStatusCmd(app),
		newBatchUsageCmd(app),
		newBatchHiddenCmd(app, "hide", true),
		newBatchHiddenCmd(app, "unhide", false),
	)

	return cmd
}

// batchTarget selects pianos the way the inventory view does: by clicks
// on ids, a range click over the visible order, or select-all.
type batchTarget struct {
	view viewFlags
	from string
	to   string
	all  bool
}

func (bt *batchTarget) register(cmd *cobra.Command) {
	bt.view.register(cmd)
	cmd.Flags().StringVar(&bt.from, "from", "", "First piano of a range in the listed order")
	cmd.Flags().StringVar(&bt.to, "to", "", "Last piano of a range in the listed order")
	cmd.Flags().BoolVar(&bt.all, "all", false, "Every listed piano")
}

// run loads the store, selects the targets and calls apply with them.
func (bt *batchTarget) run(cmd *cobra.Command, app *App, ids []string,
	apply func(ctx context.Context, s *workflow.Store, ids []string) (*workflow.BatchResult, error),
) error {
	ctx := cmd.Context()
	opts, err := bt.view.options()
	if err != nil {
		return err
	}
	if (bt.from == "") != (bt.to == "") {
		return fmt.Errorf("--from and --to must be given together")
	}
	campaign, err := selectedCampaign(ctx, app, bt.view.campaign)
	if err != nil {
		return err
	}
	store, err := app.newStore(ctx, campaign)
	if err != nil {
		return err
	}

	visible := store.View(opts)
	for _, id := range ids {
		if !store.IsSelected(id) {
			store.Click(id)
		}
	}
	if bt.from != "" {
		store.Click(bt.from)
		store.RangeClick(bt.to, visible)
	}
	if bt.all {
		store.SelectAll(visible)
	}
	targets := store.SelectedIDs()
	if len(targets) == 0 {
		return fmt.Errorf("no pianos selected: pass IDs, --from/--to or --all")
	}

	res, err := apply(ctx, store, targets)
	if res != nil {
		fmt.Fprint(cmd.OutOrStdout(), formatter.FormatBatchResult(res))
	}
	return err
}

func newBatchStatusCmd(app *App) *cobra.Command {
	var bt batchTarget

	cmd := &cobra.Command{
		Use:   "status <normal|proposed|top|completed> [piano-id...]",
		Short: "Set the status; with --campaign also updates membership",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(args[:1])
			if err != nil {
				return err
			}
			return bt.run(cmd, app, args[1:], func(ctx context.Context, s *workflow.Store, ids []string) (*workflow.BatchResult, error) {
				return s.SetStatus(ctx, ids, statuses[0])
			})
		},
	}
	bt.register(cmd)

	return cmd
}

func newBatchUsageCmd(app *App) *cobra.Command {
	var bt batchTarget

	cmd := &cobra.Command{
		Use:   "usage <" + usageChoices() + "|none> [piano-id...]",
		Short: "Set or clear the usage category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var usage *domain.UsageCategory
			if !strings.EqualFold(args[0], "none") {
				u, err := domain.ParseUsage(strings.ToLower(args[0]))
				if err != nil {
					return err
				}
				usage = u
			}
			return bt.run(cmd, app, args[1:], func(ctx context.Context, s *workflow.Store, ids []string) (*workflow.BatchResult, error) {
				return s.SetUsage(ctx, ids, usage)
			})
		},
	}
	bt.register(cmd)

	return cmd
}

func newBatchHiddenCmd(app *App, use string, hidden bool) *cobra.Command {
	var bt batchTarget

	cmd := &cobra.Command{
		Use:   use + " [piano-id...]",
		Short: strings.ToUpper(use[:1]) + use[1:] + " pianos in listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return bt.run(cmd, app, args, func(ctx context.Context, s *workflow.Store, ids []string) (*workflow.BatchResult, error) {
				return s.SetHidden(ctx, ids, hidden)
			})
		},
	}
	bt.register(cmd)

	return cmd
}

func usageChoices() string {
	names := make([]string, len(domain.UsageCategories))
	for i, u := range domain.UsageCategories {
		names[i] = string(u)
	}
	return strings.Join(names, "|")
}
