package teatest

import (
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

type loadedMsg struct{ n int }

// counter loads a value in Init, counts key presses and quits on q.
type counter struct {
	n      int
	width  int
	quit   bool
	loaded bool
}

func (c *counter) Init() tea.Cmd {
	return func() tea.Msg { return loadedMsg{n: 10} }
}

func (c *counter) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		c.loaded, c.n = true, msg.n
	case tea.WindowSizeMsg:
		c.width = msg.Width
	case tea.QuitMsg:
		c.quit = true
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			return c, tea.Quit
		case "b":
			return c, tea.Batch(
				func() tea.Msg { return loadedMsg{n: c.n + 1} },
				func() tea.Msg { time.Sleep(time.Second); return loadedMsg{n: -1} },
			)
		default:
			c.n++
		}
	}
	return c, nil
}

func (c *counter) View() string { return fmt.Sprintf("n=%d width=%d", c.n, c.width) }

func TestDriver_InitSizeAndKeys(t *testing.T) {
	d := New(t, &counter{}, WithSize(80, 24))

	d.Type("ax c")
	d.Press(tea.KeyDown)

	d.AssertViewContains("width=80")
	assert.True(t, d.Model.(*counter).loaded)
}

func TestDriver_SkipsSlowCmds(t *testing.T) {
	d := New(t, &counter{}, WithCmdTimeout(50*time.Millisecond))

	d.PressKey('b')

	assert.Equal(t, 11, d.Model.(*counter).n)
}

func TestDriver_QuitStopsFurtherInput(t *testing.T) {
	d := New(t, &counter{})

	d.PressKey('q')
	d.PressKey('x')

	assert.True(t, d.Quitting)
	assert.True(t, d.Model.(*counter).quit)
	assert.Equal(t, 10, d.Model.(*counter).n)
}
