package workflow

import "slices"

// CheckState is the tri-state of a select-all control.
type CheckState int

const (
	Unchecked CheckState = iota
	Checked
	Indeterminate
)

func (s CheckState) String() string {
	switch s {
	case Checked:
		return "checked"
	case Indeterminate:
		return "indeterminate"
	}
	return "unchecked"
}

// Selection is a set of piano ids plus the anchor of the last plain click.
// Ranges are resolved against the caller's ordered visible list, never
// against stored positions, so the selection survives re-sorting.
type Selection struct {
	ids    map[string]struct{}
	anchor string
}

func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// Click toggles id and makes it the anchor.
func (s *Selection) Click(id string) {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
	} else {
		s.ids[id] = struct{}{}
	}
	s.anchor = id
}

// RangeClick adds every visible id between the anchor and id, inclusive.
// The anchor is kept so successive range clicks pivot on the same point.
// Without a visible anchor it behaves like Click.
func (s *Selection) RangeClick(id string, visible []string) {
	from := slices.Index(visible, s.anchor)
	to := slices.Index(visible, id)
	if s.anchor == "" || from < 0 || to < 0 {
		s.Click(id)
		return
	}
	if from > to {
		from, to = to, from
	}
	for _, v := range visible[from : to+1] {
		s.ids[v] = struct{}{}
	}
}

// ToggleAll deselects all visible ids when they are all selected and
// selects all of them otherwise, including from the indeterminate state.
func (s *Selection) ToggleAll(visible []string) {
	if s.AllState(visible) == Checked {
		for _, id := range visible {
			delete(s.ids, id)
		}
		return
	}
	for _, id := range visible {
		s.ids[id] = struct{}{}
	}
}

// SelectAll adds every visible id without touching the rest of the
// selection or the anchor.
func (s *Selection) SelectAll(visible []string) {
	for _, id := range visible {
		s.ids[id] = struct{}{}
	}
}

// AllState reports how much of visible is selected.
func (s *Selection) AllState(visible []string) CheckState {
	n := 0
	for _, id := range visible {
		if _, ok := s.ids[id]; ok {
			n++
		}
	}
	switch {
	case n == 0:
		return Unchecked
	case n == len(visible):
		return Checked
	default:
		return Indeterminate
	}
}

func (s *Selection) Clear() {
	clear(s.ids)
	s.anchor = ""
}

func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *Selection) Len() int { return len(s.ids) }

func (s *Selection) Anchor() string { return s.anchor }

// IDs returns the selected ids in sorted order.
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// IDsIn returns the selected ids in the order of visible.
func (s *Selection) IDsIn(visible []string) []string {
	var out []string
	for _, id := range visible {
		if _, ok := s.ids[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Retain drops selected ids that are not in keep.
func (s *Selection) Retain(keep map[string]bool) {
	for id := range s.ids {
		if !keep[id] {
			delete(s.ids, id)
		}
	}
	if !keep[s.anchor] {
		s.anchor = ""
	}
}
