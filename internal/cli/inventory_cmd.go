package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newInventoryCmd(app *App) *cobra.Command {
	var vf viewFlags

	cmd := &cobra.Command{
		Use:     "inventory",
		Aliases: []string{"inv", "ui"},
		Short:   "Interactive piano list with range selection and batch status changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.interactive() {
				return fmt.Errorf("inventory needs an interactive terminal; use \"piano list\" and \"batch\" instead")
			}
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

			model := newInventoryModel(ctx, app, store, opts)
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
	vf.register(cmd)

	return cmd
}
