package cli

import (
	"fmt"

	"github.com/pianotech/tournee/internal/cli/formatter"
	"github.com/pianotech/tournee/internal/source"
	"github.com/spf13/cobra"
)

func newSyncCmd(app *App) *cobra.Command {
	var ids []string
	var location string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch pianos from the source of record and merge them with local overlays",
		Long: `Fetch pianos from the source of record and merge them with local overlays.

A full sync flags pianos missing from the source as stale; they keep their
overlay and stay listed with --include-stale. A sync narrowed with --id or
--location never marks anything stale.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var spinner *formatter.Spinner
			if app.interactive() {
				spinner = formatter.NewSpinner(cmd.ErrOrStderr(), "fetching pianos")
				spinner.Start()
			}
			res, err := app.Merge.Refresh(cmd.Context(), source.Filter{IDs: ids, Location: location})
			if spinner != nil {
				spinner.Stop()
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatRefreshResult(res))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&ids, "id", nil, "Only fetch these piano IDs")
	cmd.Flags().StringVar(&location, "location", "", "Only fetch pianos at this location")

	return cmd
}
