package cli

import (
	"time"

	"github.com/pianotech/tournee/internal/metrics"
	"github.com/pianotech/tournee/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// App holds the services and settings shared by all commands.
type App struct {
	Merge     service.MergeService
	Pianos    service.PianoService
	Campaigns service.CampaignService

	// Actor is recorded as UpdatedBy on overlay writes.
	Actor            string
	Debounce         time.Duration
	BatchConcurrency int

	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// IsInteractive reports whether stdin is a terminal; forms and the
	// inventory view need one.
	IsInteractive func() bool
}

// NewRootCmd creates the top-level "tournee" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "tournee",
		Short:         "Piano service campaigns: inventory, tournées and batch status changes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSyncCmd(app),
		newPianoCmd(app),
		newCampaignCmd(app),
		newBatchCmd(app),
		newInventoryCmd(app),
	)

	return root
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}

func (a *App) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
