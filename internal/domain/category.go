package domain

// CategoryContext carries the view context that ResolveCategory depends on.
type CategoryContext struct {
	// SelectedCampaign scopes membership and priority. Nil means no campaign
	// is selected.
	SelectedCampaign *Campaign
}

// ResolveCategory derives the display category of a piano. Precedence:
//
//  1. completed status, regardless of the selected campaign
//  2. priority piano of the selected campaign
//  3. proposed member of the selected campaign
//  4. normal
//
// Batch selection is a separate decoration and does not take part.
func ResolveCategory(p Piano, ctx CategoryContext) Category {
	if p.Overlay.Status == PianoCompleted {
		return CategoryCompleted
	}
	sel := ctx.SelectedCampaign
	if sel.IsTop(p.ID) {
		return CategoryTop
	}
	if sel.HasPiano(p.ID) && p.Overlay.Status == PianoProposed {
		return CategoryProposed
	}
	return CategoryNormal
}
