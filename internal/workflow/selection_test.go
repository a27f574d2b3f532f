package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var visible = []string{"P1", "P2", "P3", "P4", "P5", "P6"}

func TestSelection_ClickTogglesAndSetsAnchor(t *testing.T) {
	s := NewSelection()

	s.Click("P2")
	assert.True(t, s.Has("P2"))
	assert.Equal(t, "P2", s.Anchor())

	s.Click("P2")
	assert.False(t, s.Has("P2"))
	assert.Equal(t, "P2", s.Anchor(), "deselecting click still moves the anchor")
}

func TestSelection_RangeClickIsSymmetric(t *testing.T) {
	for i := range visible {
		for j := range visible {
			forward := NewSelection()
			forward.Click(visible[i])
			forward.RangeClick(visible[j], visible)

			backward := NewSelection()
			backward.Click(visible[j])
			backward.RangeClick(visible[i], visible)

			lo, hi := min(i, j), max(i, j)
			assert.Equal(t, visible[lo:hi+1], forward.IDsIn(visible), "click %d then range %d", i, j)
			assert.Equal(t, forward.IDs(), backward.IDs(), "click %d / range %d", i, j)
		}
	}
}

func TestSelection_RangeClickKeepsAnchor(t *testing.T) {
	s := NewSelection()
	s.Click("P3")

	s.RangeClick("P5", visible)
	assert.Equal(t, "P3", s.Anchor())
	assert.Equal(t, []string{"P3", "P4", "P5"}, s.IDs())

	s.RangeClick("P1", visible)
	assert.Equal(t, []string{"P1", "P2", "P3", "P4", "P5"}, s.IDs(), "ranges union around the same anchor")
}

func TestSelection_RangeClickWithoutAnchorActsAsClick(t *testing.T) {
	s := NewSelection()
	s.RangeClick("P4", visible)
	assert.Equal(t, []string{"P4"}, s.IDs())
	assert.Equal(t, "P4", s.Anchor())

	// Anchor filtered out of the visible list.
	s.RangeClick("P2", []string{"P1", "P2", "P3"})
	assert.Equal(t, []string{"P2", "P4"}, s.IDs())
	assert.Equal(t, "P2", s.Anchor())
}

func TestSelection_RangeFollowsCurrentOrder(t *testing.T) {
	s := NewSelection()
	s.Click("P1")

	reordered := []string{"P6", "P1", "P4", "P2"}
	s.RangeClick("P2", reordered)

	assert.Equal(t, []string{"P1", "P2", "P4"}, s.IDs())
}

func TestSelection_ToggleAllTriState(t *testing.T) {
	s := NewSelection()
	assert.Equal(t, Unchecked, s.AllState(visible))

	s.Click("P1")
	assert.Equal(t, Indeterminate, s.AllState(visible))

	s.ToggleAll(visible)
	assert.Equal(t, Checked, s.AllState(visible), "indeterminate selects all visible")
	assert.Equal(t, len(visible), s.Len())

	s.ToggleAll(visible)
	assert.Equal(t, Unchecked, s.AllState(visible))
	assert.Zero(t, s.Len())
}

func TestSelection_ToggleAllOnlyTouchesVisible(t *testing.T) {
	s := NewSelection()
	s.Click("P9")

	s.ToggleAll(visible[:2])
	assert.Equal(t, []string{"P1", "P2", "P9"}, s.IDs())

	s.ToggleAll(visible[:2])
	assert.Equal(t, []string{"P9"}, s.IDs())
}

func TestSelection_SelectAllIsIdempotent(t *testing.T) {
	s := NewSelection()
	s.Click("P9")
	s.SelectAll(visible)
	s.SelectAll(visible)

	assert.Equal(t, Checked, s.AllState(visible))
	assert.Len(t, s.IDs(), len(visible)+1)
	assert.Equal(t, "P9", s.Anchor())
}

func TestSelection_AllStateEmptyVisible(t *testing.T) {
	s := NewSelection()
	s.Click("P1")
	assert.Equal(t, Unchecked, s.AllState(nil))
}

func TestSelection_ClearAndRetain(t *testing.T) {
	s := NewSelection()
	s.Click("P1")
	s.Click("P2")
	s.Click("P3")

	s.Retain(map[string]bool{"P1": true, "P2": true})
	assert.Equal(t, []string{"P1", "P2"}, s.IDs())
	assert.Empty(t, s.Anchor(), "anchor P3 was dropped")

	s.Clear()
	assert.Zero(t, s.Len())
	assert.Equal(t, "unchecked", s.AllState(visible).String())
}
