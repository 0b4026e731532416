package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pricewatch/crawler/internal/domain"
)

// fakeAdapter delegates to per-test functions and counts calls
type fakeAdapter struct {
	locate  func(ctx context.Context, name string) (string, error)
	extract func(ctx context.Context, url string) ([]domain.PriceOffer, error)

	locateCalls  atomic.Int32
	extractCalls atomic.Int32
}

func (a *fakeAdapter) Locate(ctx context.Context, name string) (string, error) {
	a.locateCalls.Add(1)
	if a.locate == nil {
		return "", nil
	}
	return a.locate(ctx, name)
}

func (a *fakeAdapter) ExtractOffers(ctx context.Context, url string) ([]domain.PriceOffer, error) {
	a.extractCalls.Add(1)
	if a.extract == nil {
		return nil, nil
	}
	return a.extract(ctx, url)
}

// staticAdapter finds every product at url and prices it at price
func staticAdapter(url string, price int64) *fakeAdapter {
	return &fakeAdapter{
		locate: func(context.Context, string) (string, error) { return url, nil },
		extract: func(context.Context, string) ([]domain.PriceOffer, error) {
			return []domain.PriceOffer{{Variant: "black", Price: price}}, nil
		},
	}
}

type fakeResolver map[string]domain.StoreAdapter

func (r fakeResolver) Resolve(moduleID string) (domain.StoreAdapter, error) {
	adapter, ok := r[moduleID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAdapter, moduleID)
	}
	return adapter, nil
}

// fakeStream replays events pushed by the test. Closing events ends the
// stream with endErr, or io.EOF when endErr is nil.
type fakeStream struct {
	events chan domain.StreamEvent
	endErr error
	closed atomic.Bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan domain.StreamEvent, 16)}
}

func (s *fakeStream) Next(ctx context.Context) (domain.StreamEvent, error) {
	select {
	case <-ctx.Done():
		return domain.StreamEvent{}, ctx.Err()
	case e, ok := <-s.events:
		if !ok {
			if s.endErr != nil {
				return domain.StreamEvent{}, s.endErr
			}
			return domain.StreamEvent{}, io.EOF
		}
		return e, nil
	}
}

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	return nil
}

// fakeSource hands out the queued streams in order
type fakeSource struct {
	mu      sync.Mutex
	streams []*fakeStream
	openErr error
	opened  []string
}

func (f *fakeSource) OpenCheckStream(_ context.Context, productName string) (domain.EventStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.opened = append(f.opened, productName)
	if f.openErr != nil {
		return nil, f.openErr
	}
	if len(f.streams) == 0 {
		return nil, fmt.Errorf("%w: no stream queued", domain.ErrStreamFailure)
	}
	s := f.streams[0]
	f.streams = f.streams[1:]
	return s, nil
}

type fakeChecker struct {
	check func(ctx context.Context, store, url string) ([]domain.PriceOffer, error)
	calls atomic.Int32
}

func (c *fakeChecker) CheckPrice(ctx context.Context, store, url string) ([]domain.PriceOffer, error) {
	c.calls.Add(1)
	return c.check(ctx, store, url)
}

// recorder keeps every orchestrator event
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// resultCounts counts merged results per store for one session
func (r *recorder) resultCounts(sessionID string) map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int)
	for _, e := range r.events {
		if e.Type == EventResult && e.SessionID == sessionID {
			counts[e.Store]++
		}
	}
	return counts
}

func (r *recorder) count(sessionID string, typ EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.events {
		if e.Type == typ && e.SessionID == sessionID {
			n++
		}
	}
	return n
}

func storesEvent(stores ...domain.StoreDescriptor) domain.StreamEvent {
	return domain.StreamEvent{Type: domain.EventTypeStores, Stores: stores}
}

func resultEvent(store, url string, offers ...domain.PriceOffer) domain.StreamEvent {
	return domain.StreamEvent{
		Type:   domain.EventTypeResult,
		Store:  &domain.StoreDescriptor{Name: store},
		URL:    url,
		Prices: offers,
	}
}

func frontendStore(name, module string) domain.StoreDescriptor {
	return domain.StoreDescriptor{Name: name, ModuleID: module, IsFrontend: true}
}

func backendStore(name string) domain.StoreDescriptor {
	return domain.StoreDescriptor{Name: name, IsCore: true}
}
