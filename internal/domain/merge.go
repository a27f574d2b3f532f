package domain

// MergeProjections fuses a full external refresh with the stored overlays.
//
// Each incoming record gets its existing overlay attached unchanged, or a
// default overlay when none exists. External attributes are never copied
// into the overlay. Units present in previous but absent from records are
// kept, flagged Stale, with their overlay intact. Output order is records
// order followed by stale units in previous order.
func MergeProjections(records []PianoRecord, overlays map[string]Overlay, previous []Piano) []Piano {
	out := make([]Piano, 0, len(records))
	seen := make(map[string]bool, len(records))

	for _, rec := range records {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true

		ov, ok := overlays[rec.ID]
		if !ok {
			ov = DefaultOverlay(rec.ID)
		}
		out = append(out, Piano{PianoRecord: rec, Overlay: ov})
	}

	for _, prev := range previous {
		if seen[prev.ID] {
			continue
		}
		seen[prev.ID] = true

		stale := prev
		if ov, ok := overlays[prev.ID]; ok {
			stale.Overlay = ov
		}
		stale.Stale = true
		out = append(out, stale)
	}
	return out
}
