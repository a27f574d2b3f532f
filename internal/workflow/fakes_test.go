package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/pianotech/tournee/internal/domain"
)

var errBackend = errors.New("backend unavailable")

// fakeGateway holds the authoritative pianos and can fail or stall per id.
type fakeGateway struct {
	mu      sync.Mutex
	pianos  map[string]domain.Piano
	failOn  map[string]bool
	failGet map[string]bool
	block   map[string]chan struct{}
	updates []string
	patches map[string][]domain.OverlayPatch
}

func newFakeGateway(pianos ...domain.Piano) *fakeGateway {
	g := &fakeGateway{
		pianos:  make(map[string]domain.Piano),
		failOn:  make(map[string]bool),
		failGet: make(map[string]bool),
		block:   make(map[string]chan struct{}),
		patches: make(map[string][]domain.OverlayPatch),
	}
	for _, p := range pianos {
		g.pianos[p.ID] = p
	}
	return g
}

// UpdateOverlay applies the patch at once. A stalled id returns its
// response only after the stall channel is closed.
func (g *fakeGateway) UpdateOverlay(ctx context.Context, id string, patch domain.OverlayPatch, actor string) (*domain.Piano, error) {
	p, ch, err := g.apply(id, patch, actor)
	if ch != nil {
		<-ch
	}
	return p, err
}

func (g *fakeGateway) apply(id string, patch domain.OverlayPatch, actor string) (*domain.Piano, chan struct{}, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := g.block[id]
	delete(g.block, id)
	g.updates = append(g.updates, id)
	g.patches[id] = append(g.patches[id], patch)
	if g.failOn[id] {
		return nil, ch, &domain.PersistenceError{Op: "saving overlay", IDs: []string{id}, Err: errBackend}
	}
	p, ok := g.pianos[id]
	if !ok {
		return nil, ch, &domain.NotFoundError{Entity: "piano", ID: id}
	}
	if err := p.Overlay.Apply(patch, actor, time.Now().UTC()); err != nil {
		return nil, ch, err
	}
	g.pianos[id] = p
	return &p, ch, nil
}

func (g *fakeGateway) Get(_ context.Context, id string) (*domain.Piano, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failGet[id] {
		return nil, errBackend
	}
	p, ok := g.pianos[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "piano", ID: id}
	}
	return &p, nil
}

func (g *fakeGateway) stall(id string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.block[id] = ch
	return ch
}

func (g *fakeGateway) authoritative(id string) domain.Piano {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pianos[id]
}

func (g *fakeGateway) updateCount(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.patches[id])
}

func (g *fakeGateway) lastPatch(id string) domain.OverlayPatch {
	g.mu.Lock()
	defer g.mu.Unlock()
	ps := g.patches[id]
	return ps[len(ps)-1]
}

type fakeMembership struct {
	mu       sync.Mutex
	campaign *domain.Campaign
	failAdd  map[string]bool
}

func newFakeMembership(c *domain.Campaign) *fakeMembership {
	return &fakeMembership{campaign: cloneCampaign(c), failAdd: make(map[string]bool)}
}

func (m *fakeMembership) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.campaign.ID != id {
		return nil, &domain.NotFoundError{Entity: "campaign", ID: id}
	}
	return cloneCampaign(m.campaign), nil
}

func (m *fakeMembership) AddPiano(_ context.Context, _, pianoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAdd[pianoID] {
		return errBackend
	}
	m.campaign.AddPiano(pianoID)
	return nil
}

func (m *fakeMembership) RemovePiano(_ context.Context, _, pianoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaign.RemovePiano(pianoID)
	return nil
}

func (m *fakeMembership) SetTopPiano(_ context.Context, _, pianoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaign.SetTop(pianoID)
}

func (m *fakeMembership) UnsetTopPiano(_ context.Context, _, pianoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaign.UnsetTop(pianoID)
	return nil
}

func (m *fakeMembership) snapshot() *domain.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneCampaign(m.campaign)
}

func testPianos(n int) []domain.Piano {
	out := make([]domain.Piano, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("P%d", i)
		serial := fmt.Sprintf("S%03d", i)
		out = append(out, domain.Piano{
			PianoRecord: domain.PianoRecord{
				ID: id, Serial: &serial, Make: "Yamaha", Model: "U1",
				Location: fmt.Sprintf("Room %02d", i), Type: domain.TypeUpright,
			},
			Overlay: domain.DefaultOverlay(id),
		})
	}
	return out
}

func newTestStore(n int, opts ...Option) (*Store, *fakeGateway) {
	pianos := testPianos(n)
	gw := newFakeGateway(pianos...)
	s := NewStore(gw, opts...)
	s.Load(slices.Clone(pianos))
	return s, gw
}
