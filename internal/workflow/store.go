package workflow

import (
	"slices"
	"sync"
	"time"

	"github.com/pianotech/tournee/internal/domain"
	"github.com/pianotech/tournee/internal/metrics"
	"go.uber.org/zap"
)

// Store is the observable state container: projections, the selected
// campaign and the piano selection. All methods are safe for concurrent
// use; subscribers are called synchronously after the state lock is
// released.
type Store struct {
	mu        sync.Mutex
	pianos    map[string]domain.Piano
	order     []string
	campaign  *domain.Campaign
	selection *Selection
	// revisions count local changes per piano. A gateway response is only
	// applied when no newer local change happened since its request.
	revisions map[string]uint64
	// unsaved holds free-text values edited locally that the gateway has not
	// confirmed yet. They are laid over every authoritative projection.
	unsaved map[string]map[domain.OverlayField]unsavedValue

	subMu       sync.Mutex
	subscribers map[int]func(Event)
	nextSub     int

	gateway     Gateway
	membership  Membership
	actor       string
	concurrency int
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

type unsavedValue struct {
	value string
	seq   uint64
}

type Option func(*Store)

// WithActor sets the name recorded as UpdatedBy on writes.
func WithActor(actor string) Option {
	return func(s *Store) { s.actor = actor }
}

// WithConcurrency bounds the number of in-flight gateway calls per batch.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithMembership(m Membership) Option {
	return func(s *Store) { s.membership = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func NewStore(gw Gateway, opts ...Option) *Store {
	s := &Store{
		pianos:      make(map[string]domain.Piano),
		selection:   NewSelection(),
		revisions:   make(map[string]uint64),
		unsaved:     make(map[string]map[domain.OverlayField]unsavedValue),
		subscribers: make(map[int]func(Event)),
		gateway:     gw,
		actor:       "tournee",
		concurrency: 8,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for every subsequent change and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) notify(e Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

// Load replaces the projections. In-flight responses issued before the load
// are discarded. Selected ids that are no longer present are dropped; unsaved
// edits of present ids stay visible.
func (s *Store) Load(pianos []domain.Piano) {
	s.mu.Lock()
	s.pianos = make(map[string]domain.Piano, len(pianos))
	s.order = s.order[:0]
	keep := make(map[string]bool, len(pianos))
	for _, p := range pianos {
		if _, dup := s.pianos[p.ID]; dup {
			continue
		}
		s.overlayUnsaved(&p)
		s.pianos[p.ID] = p
		s.order = append(s.order, p.ID)
		s.revisions[p.ID]++
		keep[p.ID] = true
	}
	for id := range s.unsaved {
		if !keep[id] {
			delete(s.unsaved, id)
		}
	}
	s.selection.Retain(keep)
	s.mu.Unlock()

	s.notify(Event{Kind: EventLoaded})
}

// SelectCampaign sets the campaign context; nil clears it.
func (s *Store) SelectCampaign(c *domain.Campaign) {
	s.mu.Lock()
	s.campaign = cloneCampaign(c)
	s.mu.Unlock()
	s.notify(Event{Kind: EventCampaignChanged})
}

// SelectedCampaign returns a copy of the campaign context, or nil.
func (s *Store) SelectedCampaign() *domain.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCampaign(s.campaign)
}

func (s *Store) Piano(id string) (domain.Piano, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pianos[id]
	return p, ok
}

// Pianos returns every projection in load order.
func (s *Store) Pianos() []domain.Piano {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Piano, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.pianos[id])
	}
	return out
}

// Category resolves the display category of id under the selected campaign.
func (s *Store) Category(id string) domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ResolveCategory(s.pianos[id], domain.CategoryContext{SelectedCampaign: s.campaign})
}

// View returns the ordered visible ids for opts.
func (s *Store) View(opts ViewOptions) []string {
	s.mu.Lock()
	pianos := make([]domain.Piano, 0, len(s.order))
	for _, id := range s.order {
		pianos = append(pianos, s.pianos[id])
	}
	campaign := s.campaign
	s.mu.Unlock()
	return BuildView(pianos, campaign, opts)
}

// Selection state. Selection is a decoration on top of the category and
// never changes it.

func (s *Store) IsSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Has(id)
}

func (s *Store) Click(id string) {
	s.withSelection(func(sel *Selection) { sel.Click(id) })
}

func (s *Store) RangeClick(id string, visible []string) {
	s.withSelection(func(sel *Selection) { sel.RangeClick(id, visible) })
}

func (s *Store) ToggleAll(visible []string) {
	s.withSelection(func(sel *Selection) { sel.ToggleAll(visible) })
}

func (s *Store) SelectAll(visible []string) {
	s.withSelection(func(sel *Selection) { sel.SelectAll(visible) })
}

func (s *Store) ClearSelection() {
	s.withSelection(func(sel *Selection) { sel.Clear() })
}

func (s *Store) AllState(visible []string) CheckState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.AllState(visible)
}

// Anchor returns the id of the last plain click, or "".
func (s *Store) Anchor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Anchor()
}

func (s *Store) SelectedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.IDs()
}

func (s *Store) withSelection(fn func(*Selection)) {
	s.mu.Lock()
	fn(s.selection)
	s.mu.Unlock()
	s.notify(Event{Kind: EventSelectionChanged})
}

// applyLocal mutates the overlay of id in place and returns the new
// revision. Unknown ids are left alone.
func (s *Store) applyLocal(id string, fn func(o *domain.Overlay) error) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pianos[id]
	if !ok {
		return s.revisions[id], &domain.NotFoundError{Entity: "piano", ID: id}
	}
	if err := fn(&p.Overlay); err != nil {
		return s.revisions[id], err
	}
	s.pianos[id] = p
	s.revisions[id]++
	return s.revisions[id], nil
}

// editField applies a free-text edit locally and keeps it as unsaved until
// settleField is called with the same seq.
func (s *Store) editField(id string, field domain.OverlayField, value string, seq uint64) error {
	patch, err := domain.FieldPatch(field, value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pianos[id]
	if !ok {
		return &domain.NotFoundError{Entity: "piano", ID: id}
	}
	if err := p.Overlay.Apply(patch, s.actor, time.Now().UTC()); err != nil {
		return err
	}
	s.pianos[id] = p
	s.revisions[id]++
	if s.unsaved[id] == nil {
		s.unsaved[id] = make(map[domain.OverlayField]unsavedValue)
	}
	s.unsaved[id][field] = unsavedValue{value: value, seq: seq}
	return nil
}

// settleField forgets the unsaved value of (id, field) unless a newer edit
// replaced it.
func (s *Store) settleField(id string, field domain.OverlayField, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := s.unsaved[id]
	if v, ok := fields[field]; !ok || v.seq != seq {
		return
	}
	delete(fields, field)
	if len(fields) == 0 {
		delete(s.unsaved, id)
	}
}

// overlayUnsaved writes the unsaved values of p's id into p. Caller holds mu.
func (s *Store) overlayUnsaved(p *domain.Piano) {
	for field, v := range s.unsaved[p.ID] {
		switch field {
		case domain.FieldAssignmentNote:
			p.Overlay.AssignmentNote = v.value
		case domain.FieldWorkNote:
			p.Overlay.WorkNote = v.value
		case domain.FieldObservations:
			p.Overlay.Observations = v.value
		}
	}
}

// reconcile replaces the projection of id with an authoritative one, unless
// a newer local change was made after revision rev or the piano is no longer
// loaded. Unsaved field edits are kept on top of the response.
func (s *Store) reconcile(id string, rev uint64, p *domain.Piano) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revisions[id] != rev {
		return false
	}
	if _, ok := s.pianos[id]; !ok {
		return false
	}
	cp := *p
	s.overlayUnsaved(&cp)
	s.pianos[id] = cp
	return true
}

func (s *Store) revision(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revisions[id]
}

func (s *Store) updateCampaign(fn func(c *domain.Campaign)) {
	s.mu.Lock()
	if s.campaign != nil {
		fn(s.campaign)
	}
	s.mu.Unlock()
}

// replaceCampaign installs an authoritative campaign copy if it is still
// the selected one.
func (s *Store) replaceCampaign(c *domain.Campaign) {
	s.mu.Lock()
	if s.campaign == nil || s.campaign.ID != c.ID {
		s.mu.Unlock()
		return
	}
	s.campaign = cloneCampaign(c)
	s.mu.Unlock()
	s.notify(Event{Kind: EventCampaignChanged})
}

func cloneCampaign(c *domain.Campaign) *domain.Campaign {
	if c == nil {
		return nil
	}
	cp := *c
	cp.PianoIDs = slices.Clone(c.PianoIDs)
	cp.TopPianoIDs = slices.Clone(c.TopPianoIDs)
	cp.AssistantTechnicians = slices.Clone(c.AssistantTechnicians)
	return &cp
}
