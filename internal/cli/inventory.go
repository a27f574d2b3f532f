package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pianotech/tournee/internal/cli/formatter"
	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/repository"
	"github.com/pianotech/tournee/internal/workflow"
)

type inventoryKeyMap struct {
	Up, Down, RangeUp, RangeDown       key.Binding
	Toggle, RangeClick, All, Clear     key.Binding
	Normal, Proposed, Top, Completed   key.Binding
	Hide, Unhide, Search, Sort, Reload key.Binding
	Help, Quit                         key.Binding
}

func newInventoryKeyMap() inventoryKeyMap {
	return inventoryKeyMap{
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		RangeUp:    key.NewBinding(key.WithKeys("shift+up", "K"), key.WithHelp("shift+↑", "extend up")),
		RangeDown:  key.NewBinding(key.WithKeys("shift+down", "J"), key.WithHelp("shift+↓", "extend down")),
		Toggle:     key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "select")),
		RangeClick: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "range to anchor")),
		All:        key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select all")),
		Clear:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
		Normal:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "normal")),
		Proposed:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "proposed")),
		Top:        key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "top")),
		Completed:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "completed")),
		Hide:       key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "hide")),
		Unhide:     key.NewBinding(key.WithKeys("H"), key.WithHelp("H", "unhide")),
		Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Sort:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		Reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k inventoryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.RangeDown, k.All, k.Proposed, k.Top, k.Help, k.Quit}
}

func (k inventoryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.RangeUp, k.RangeDown},
		{k.Toggle, k.RangeClick, k.All, k.Clear},
		{k.Normal, k.Proposed, k.Top, k.Completed},
		{k.Hide, k.Unhide, k.Search, k.Sort, k.Reload, k.Quit},
	}
}

var sortCycle = []workflow.SortKey{
	workflow.SortLocation, workflow.SortMake, workflow.SortSerial, workflow.SortNextService, workflow.SortStatus,
}

type inventoryLoadedMsg struct {
	pianos []domain.Piano
	err    error
}

type batchDoneMsg struct {
	res *workflow.BatchResult
	err error
}

// inventoryModel is the interactive piano list: selection with range and
// select-all, batch status changes and category colors.
type inventoryModel struct {
	ctx   context.Context
	app   *App
	store *workflow.Store
	opts  workflow.ViewOptions

	visible   []string
	cursor    int
	height    int
	searching bool
	busy      bool
	message   string
	err       error

	keys inventoryKeyMap
	help help.Model
}

func newInventoryModel(ctx context.Context, app *App, store *workflow.Store, opts workflow.ViewOptions) *inventoryModel {
	return &inventoryModel{
		ctx:   ctx,
		app:   app,
		store: store,
		opts:  opts,
		keys:  newInventoryKeyMap(),
		help:  help.New(),
	}
}

// Init shows a preloaded store at once and loads projections otherwise.
func (m *inventoryModel) Init() tea.Cmd {
	if len(m.store.Pianos()) > 0 {
		m.refresh()
		return nil
	}
	return m.load()
}

func (m *inventoryModel) load() tea.Cmd {
	return func() tea.Msg {
		ps, err := m.app.Merge.Projections(m.ctx, repository.PianoFilter{IncludeHidden: true, IncludeStale: true})
		if err != nil {
			return inventoryLoadedMsg{err: err}
		}
		return inventoryLoadedMsg{pianos: derefPianos(ps)}
	}
}

func (m *inventoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case inventoryLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.store.Load(msg.pianos)
		m.refresh()
		return m, nil

	case batchDoneMsg:
		m.busy = false
		m.err = msg.err
		if msg.res != nil {
			m.message = fmt.Sprintf("%s: %d updated", msg.res.Op, len(msg.res.Succeeded))
			if n := len(msg.res.Failed); n > 0 {
				m.message += fmt.Sprintf(", %d failed (%s)", n, strings.Join(msg.res.FailedIDs(), ", "))
			}
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m, m.updateSearch(msg)
		}
		return m, m.updateKeys(msg)
	}
	return m, nil
}

func (m *inventoryModel) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.searching = false
	case tea.KeyBackspace:
		if r := []rune(m.opts.Search); len(r) > 0 {
			m.opts.Search = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.opts.Search += " "
	case tea.KeyRunes:
		m.opts.Search += string(msg.Runes)
	}
	m.refresh()
	return nil
}

func (m *inventoryModel) updateKeys(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.move(-1)
	case key.Matches(msg, m.keys.Down):
		m.move(1)
	case key.Matches(msg, m.keys.RangeUp):
		m.extend(-1)
	case key.Matches(msg, m.keys.RangeDown):
		m.extend(1)
	case key.Matches(msg, m.keys.Toggle):
		if id, ok := m.current(); ok {
			m.store.Click(id)
		}
	case key.Matches(msg, m.keys.RangeClick):
		if id, ok := m.current(); ok {
			m.store.RangeClick(id, m.visible)
		}
	case key.Matches(msg, m.keys.All):
		m.store.ToggleAll(m.visible)
	case key.Matches(msg, m.keys.Clear):
		m.store.ClearSelection()
		m.message = ""
	case key.Matches(msg, m.keys.Normal):
		return m.setStatus(domain.PianoNormal)
	case key.Matches(msg, m.keys.Proposed):
		return m.setStatus(domain.PianoProposed)
	case key.Matches(msg, m.keys.Top):
		return m.setStatus(domain.PianoTop)
	case key.Matches(msg, m.keys.Completed):
		return m.setStatus(domain.PianoCompleted)
	case key.Matches(msg, m.keys.Hide):
		return m.setHidden(true)
	case key.Matches(msg, m.keys.Unhide):
		return m.setHidden(false)
	case key.Matches(msg, m.keys.Search):
		m.searching = true
	case key.Matches(msg, m.keys.Sort):
		m.nextSort()
	case key.Matches(msg, m.keys.Reload):
		return m.load()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return nil
}

func (m *inventoryModel) current() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return "", false
	}
	return m.visible[m.cursor], true
}

func (m *inventoryModel) move(delta int) {
	m.cursor = min(max(m.cursor+delta, 0), max(len(m.visible)-1, 0))
}

// extend grows the selection from the anchor to the row the cursor moves
// to. Without a visible anchor the current row becomes one.
func (m *inventoryModel) extend(delta int) {
	id, ok := m.current()
	if !ok {
		return
	}
	if a := m.store.Anchor(); a == "" || !slices.Contains(m.visible, a) {
		// Click toggles, so a selected row is clicked twice to become the
		// anchor and stay selected.
		m.store.Click(id)
		if !m.store.IsSelected(id) {
			m.store.Click(id)
		}
	}
	m.move(delta)
	if next, ok := m.current(); ok {
		m.store.RangeClick(next, m.visible)
	}
}

// targets returns the selection, or the row under the cursor when nothing
// is selected.
func (m *inventoryModel) targets() []string {
	if ids := m.store.SelectedIDs(); len(ids) > 0 {
		return ids
	}
	if id, ok := m.current(); ok {
		return []string{id}
	}
	return nil
}

func (m *inventoryModel) setStatus(status domain.PianoStatus) tea.Cmd {
	return m.runBatch(func(ids []string) (*workflow.BatchResult, error) {
		return m.store.SetStatus(m.ctx, ids, status)
	})
}

func (m *inventoryModel) setHidden(hidden bool) tea.Cmd {
	return m.runBatch(func(ids []string) (*workflow.BatchResult, error) {
		return m.store.SetHidden(m.ctx, ids, hidden)
	})
}

func (m *inventoryModel) runBatch(fn func(ids []string) (*workflow.BatchResult, error)) tea.Cmd {
	ids := m.targets()
	if len(ids) == 0 || m.busy {
		return nil
	}
	m.busy = true
	return func() tea.Msg {
		res, err := fn(ids)
		return batchDoneMsg{res: res, err: err}
	}
}

func (m *inventoryModel) nextSort() {
	i := 0
	for j, k := range sortCycle {
		if k == m.opts.Sort {
			i = j
		}
	}
	m.opts.Sort = sortCycle[(i+1)%len(sortCycle)]
	m.refresh()
}

// refresh recomputes the visible order and keeps the cursor on the same
// piano when it is still listed.
func (m *inventoryModel) refresh() {
	prev, _ := m.current()
	m.visible = m.store.View(m.opts)
	for i, id := range m.visible {
		if id == prev {
			m.cursor = i
			return
		}
	}
	m.move(0)
}

func (m *inventoryModel) View() string {
	var b strings.Builder

	title := "Inventory"
	if c := m.store.SelectedCampaign(); c != nil {
		title += " · " + c.Name
	}
	fmt.Fprintf(&b, "%s\n", formatter.Header(title))
	fmt.Fprintf(&b, "%s %d/%d selected · sort %s",
		checkbox(m.store.AllState(m.visible)), len(m.store.SelectedIDs()), len(m.visible), m.opts.Sort)
	if m.opts.Search != "" || m.searching {
		fmt.Fprintf(&b, " · search %q", m.opts.Search)
	}
	b.WriteString("\n\n")

	if m.err != nil && len(m.visible) == 0 {
		fmt.Fprintf(&b, "%s\n", formatter.StyleRed.Render("Error: "+m.err.Error()))
	}
	if len(m.visible) == 0 && m.err == nil {
		b.WriteString(formatter.Dim("No pianos.") + "\n")
	}

	start, end := m.window()
	for i := start; i < end; i++ {
		b.WriteString(m.renderRow(i) + "\n")
	}

	if m.err != nil && len(m.visible) > 0 {
		fmt.Fprintf(&b, "\n%s", formatter.StyleRed.Render(m.err.Error()))
	}
	if m.message != "" {
		fmt.Fprintf(&b, "\n%s", formatter.Dim(m.message))
	}
	if m.busy {
		fmt.Fprintf(&b, "\n%s", formatter.StylePurple.Render("saving…"))
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

// window returns the row range that fits the terminal around the cursor.
func (m *inventoryModel) window() (int, int) {
	rows := m.height - 8
	if m.height == 0 || rows >= len(m.visible) {
		return 0, len(m.visible)
	}
	rows = max(rows, 1)
	start := max(m.cursor-rows/2, 0)
	end := min(start+rows, len(m.visible))
	return max(end-rows, 0), end
}

func (m *inventoryModel) renderRow(i int) string {
	id := m.visible[i]
	p, _ := m.store.Piano(id)
	style := formatter.CategoryStyle(m.store.Category(id))

	cursor := "  "
	if i == m.cursor {
		cursor = formatter.StyleHeader.Render("▶ ")
	}
	box := "[ ]"
	if m.store.IsSelected(id) {
		box = "[x]"
	}
	line := fmt.Sprintf("%s %-8s %-28s %-20s %-9s", box, p.ID, truncate(p.DisplayName(), 28), truncate(p.Location, 20), p.Overlay.Status)
	if p.Stale {
		line += " stale"
	}
	if p.Overlay.IsHidden {
		line += " hidden"
	}
	if m.store.IsSelected(id) {
		return cursor + formatter.StyleSelected.Inherit(style).Render(line)
	}
	return cursor + style.Render(line)
}

func checkbox(s workflow.CheckState) string {
	switch s {
	case workflow.Checked:
		return "[x]"
	case workflow.Indeterminate:
		return "[-]"
	}
	return "[ ]"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
