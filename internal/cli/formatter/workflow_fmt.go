package formatter

import (
	"fmt"
	"strings"

	"github.com/pianotech/tournee/internal/service"
	"github.com/pianotech/tournee/internal/workflow"
)

// FormatBatchResult lists succeeded pianos on one line and each failure
// with its cause.
func FormatBatchResult(res *workflow.BatchResult) string {
	var b strings.Builder
	if len(res.Succeeded) > 0 {
		fmt.Fprintf(&b, "%s %s: %s\n", StyleGreen.Render("✔"), res.Op, strings.Join(res.Succeeded, ", "))
	}
	for _, id := range res.FailedIDs() {
		fmt.Fprintf(&b, "%s %s: %s %s\n", StyleRed.Render("✘"), res.Op, id, Dim(res.Failed[id].Error()))
	}
	if b.Len() == 0 {
		return Dim("nothing to do") + "\n"
	}
	return b.String()
}

func FormatRefreshResult(res *service.RefreshResult) string {
	stale := 0
	for _, p := range res.Pianos {
		if p.Stale {
			stale++
		}
	}
	out := fmt.Sprintf("Fetched %d pianos, %d new, %d marked stale", res.Fetched, res.NewOverlays, res.MarkedStale)
	if stale > 0 {
		out += " " + StyleRed.Render(fmt.Sprintf("(%d stale in total)", stale))
	}
	return out
}
