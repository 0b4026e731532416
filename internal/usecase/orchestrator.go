package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pricewatch/crawler/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EventType identifies an orchestrator notification
type EventType string

const (
	EventState    EventType = "state"
	EventStores   EventType = "stores"
	EventResult   EventType = "result"
	EventOverride EventType = "override"
)

// Event is one change to the current session, delivered to the Listener
// in the order the changes were applied.
type Event struct {
	Type      EventType                `json:"type"`
	SessionID string                   `json:"sessionId"`
	State     domain.SessionState      `json:"state,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Stores    []domain.StoreDescriptor `json:"stores,omitempty"`
	Result    *domain.StoreResult      `json:"result,omitempty"`
	Store     string                   `json:"store,omitempty"`
	URL       string                   `json:"url,omitempty"`
}

// Listener receives session events. OnEvent is called with the
// orchestrator's lock held: it must not block or call back into the
// orchestrator.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(Event)

// OnEvent implements Listener
func (f ListenerFunc) OnEvent(e Event) { f(e) }

// OrchestratorConfig holds configuration for the orchestrator
type OrchestratorConfig struct {
	// MinOverrideURLLength is the shortest override URL that triggers extraction
	MinOverrideURLLength int
}

// Snapshot is a consistent copy of the current session
type Snapshot struct {
	SessionID     string                   `json:"sessionId,omitempty"`
	ProductName   string                   `json:"productName,omitempty"`
	State         domain.SessionState      `json:"state"`
	StreamError   string                   `json:"streamError,omitempty"`
	Stores        []domain.StoreDescriptor `json:"stores"`
	Results       []domain.StoreResult     `json:"results"`
	Overrides     map[string]string        `json:"overrides"`
	ReadyToSubmit bool                     `json:"readyToSubmit"`
	Links         []domain.StoreLink       `json:"links"`
}

// Result returns the result of one store
func (s Snapshot) Result(storeName string) (domain.StoreResult, bool) {
	for _, r := range s.Results {
		if r.StoreName == storeName {
			return r, true
		}
	}
	return domain.StoreResult{}, false
}

// Orchestrator drives one check session at a time: it consumes the backend's
// check stream, fans out adapter chains for frontend stores, merges backend
// results and operator overrides into a single per-store result set.
//
// Every mutation goes through merge, which drops anything tagged with a
// generation other than the current session's.
type Orchestrator struct {
	source     domain.StreamSource
	resolution *ResolutionService
	listener   Listener
	logger     *zap.Logger
	minURLLen  int

	mu         sync.Mutex
	generation uint64
	session    *session

	wg sync.WaitGroup
}

type session struct {
	id          string
	productName string
	generation  uint64
	ctx         context.Context
	cancel      context.CancelFunc

	state     domain.SessionState
	streamErr string
	stores    []domain.StoreDescriptor
	byName    map[string]domain.StoreDescriptor
	results   *ResultSet

	overrides      map[string]string
	overrideSeq    map[string]uint64
	mergedOverride map[string]uint64
}

// streamMessage is one item of a session's inbox: an event or the
// error that ended the stream.
type streamMessage struct {
	event domain.StreamEvent
	err   error
}

// NewOrchestrator creates a new orchestrator. listener may be nil.
func NewOrchestrator(
	source domain.StreamSource,
	resolution *ResolutionService,
	listener Listener,
	config OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if listener == nil {
		listener = ListenerFunc(func(Event) {})
	}

	minURLLen := config.MinOverrideURLLength
	if minURLLen <= 0 {
		minURLLen = 5
	}

	return &Orchestrator{
		source:     source,
		resolution: resolution,
		listener:   listener,
		logger:     logger.Named("orchestrator"),
		minURLLen:  minURLLen,
	}
}

// Start tears down the current session and opens a new one for productName.
// The session outlives ctx's cancellation but keeps its values.
func (o *Orchestrator) Start(ctx context.Context, productName string) (string, error) {
	productName = strings.TrimSpace(productName)
	if productName == "" {
		return "", domain.ErrInvalidRequest
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	o.mu.Lock()
	o.teardownLocked()

	s := &session{
		id:             uuid.NewString(),
		productName:    productName,
		generation:     o.generation,
		ctx:            sessionCtx,
		cancel:         cancel,
		state:          domain.StateConnecting,
		overrides:      make(map[string]string),
		overrideSeq:    make(map[string]uint64),
		mergedOverride: make(map[string]uint64),
	}
	o.session = s
	o.emitLocked(Event{Type: EventState, SessionID: s.id, State: s.state})

	o.wg.Add(1)
	o.mu.Unlock()

	o.logger.Info("check session started",
		zap.String("session", s.id),
		zap.String("product", productName))

	go o.run(s)

	return s.id, nil
}

// Close tears down the current session. In-flight work of the session
// keeps running until it notices the cancellation but can no longer
// change any state.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.teardownLocked()
}

// Wait blocks until every goroutine of every session started so far has exited
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) teardownLocked() {
	o.generation++

	s := o.session
	if s == nil {
		return
	}
	s.cancel()
	if s.state != domain.StateClosed {
		s.state = domain.StateClosed
		o.emitLocked(Event{Type: EventState, SessionID: s.id, State: s.state})
	}
	o.session = nil

	o.logger.Debug("check session torn down", zap.String("session", s.id))
}

// run owns the session's stream. A reader goroutine feeds the inbox and
// this goroutine applies the messages in arrival order.
func (o *Orchestrator) run(s *session) {
	defer o.wg.Done()

	stream, err := o.source.OpenCheckStream(s.ctx, s.productName)
	if err != nil {
		o.handleStreamEnd(s, err)
		return
	}
	defer stream.Close()

	o.setState(s.generation, domain.StateStreaming, "")

	inbox := make(chan streamMessage)
	o.wg.Add(1)
	go o.readStream(s.ctx, stream, inbox)

	// chains are isolated: each one always returns nil
	var chains errgroup.Group

	for msg := range inbox {
		switch {
		case msg.err != nil:
			o.handleStreamEnd(s, msg.err)
		case msg.event.Type == domain.EventTypeStores:
			for _, store := range o.declareStores(s, msg.event.Stores) {
				chains.Go(func() error {
					result := o.resolution.ResolveStore(s.ctx, store, s.productName)
					o.merge(s.generation, 0, result)
					return nil
				})
			}
		case msg.event.Type == domain.EventTypeResult:
			result, ok := msg.event.Result()
			if !ok {
				o.logger.Warn("result event without store", zap.String("session", s.id))
				continue
			}
			o.merge(s.generation, 0, result)
		default:
			o.logger.Debug("ignoring stream event", zap.String("type", msg.event.Type))
		}
	}

	_ = chains.Wait()
}

func (o *Orchestrator) readStream(ctx context.Context, stream domain.EventStream, inbox chan<- streamMessage) {
	defer o.wg.Done()
	defer close(inbox)

	for {
		event, err := stream.Next(ctx)
		if err != nil {
			inbox <- streamMessage{err: err}
			return
		}
		inbox <- streamMessage{event: event}
	}
}

func (o *Orchestrator) handleStreamEnd(s *session, err error) {
	switch {
	case errors.Is(err, io.EOF):
		o.setState(s.generation, domain.StateClosed, "")
	case s.ctx.Err() != nil:
		// torn down; nothing to report
	default:
		o.logger.Warn("check stream failed", zap.String("session", s.id), zap.Error(err))
		o.setState(s.generation, domain.StateClosed, err.Error())
	}
}

func (o *Orchestrator) setState(gen uint64, state domain.SessionState, streamErr string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.session
	if s == nil || s.generation != gen {
		return
	}
	s.state = state
	s.streamErr = streamErr
	o.emitLocked(Event{Type: EventState, SessionID: s.id, State: state, Error: streamErr})
}

// declareStores records the session's store set and returns the frontend
// stores whose chains must be launched. Only the first store set counts.
func (o *Orchestrator) declareStores(s *session, stores []domain.StoreDescriptor) []domain.StoreDescriptor {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session != s || s.results != nil {
		o.logger.Debug("ignoring store set", zap.String("session", s.id))
		return nil
	}

	s.results = NewResultSet(stores)
	s.byName = make(map[string]domain.StoreDescriptor, len(stores))

	var frontend []domain.StoreDescriptor
	for _, store := range stores {
		if _, dup := s.byName[store.Name]; dup || store.Name == "" {
			continue
		}
		s.byName[store.Name] = store
		s.stores = append(s.stores, store)
		if store.IsFrontend {
			frontend = append(frontend, store)
		}
	}

	o.emitLocked(Event{Type: EventStores, SessionID: s.id, Stores: cloneStores(s.stores)})

	o.logger.Info("stores declared",
		zap.String("session", s.id),
		zap.Int("stores", len(s.stores)),
		zap.Int("frontend", len(frontend)))

	return frontend
}

// merge is the only way a result enters the result set. seq is zero for
// automatic results and the override's sequence number otherwise.
func (o *Orchestrator) merge(gen, seq uint64, result domain.StoreResult) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.session
	if s == nil || s.generation != gen || s.results == nil {
		return false
	}

	name := result.StoreName
	if seq == 0 {
		if s.mergedOverride[name] > 0 {
			o.logger.Debug("automatic result superseded by override", zap.String("store", name))
			return false
		}
	} else {
		if seq < s.overrideSeq[name] {
			o.logger.Debug("stale override result", zap.String("store", name), zap.Uint64("seq", seq))
			return false
		}
		result.Override = true
	}

	if !s.results.Merge(result) {
		o.logger.Warn("result for undeclared store", zap.String("store", name))
		return false
	}
	if seq > 0 {
		s.mergedOverride[name] = seq
	}

	o.emitLocked(Event{Type: EventResult, SessionID: s.id, Store: name, Result: &result})
	return true
}

// SubmitOverride records url as the operator's text for storeName and,
// when the URL is plausible and the store is declared, prices it in the
// background. The last submitted override wins.
func (o *Orchestrator) SubmitOverride(storeName, url string) {
	o.mu.Lock()

	s := o.session
	if s == nil {
		o.mu.Unlock()
		return
	}

	s.overrides[storeName] = url
	o.emitLocked(Event{Type: EventOverride, SessionID: s.id, Store: storeName, URL: url})

	store, ok := s.byName[storeName]
	if !ok || utf8.RuneCountInString(url) < o.minURLLen {
		o.mu.Unlock()
		return
	}

	s.overrideSeq[storeName]++
	seq := s.overrideSeq[storeName]

	o.wg.Add(1)
	o.mu.Unlock()

	o.logger.Info("override submitted",
		zap.String("store", storeName),
		zap.String("url", url),
		zap.Uint64("seq", seq))

	go func() {
		defer o.wg.Done()
		result := o.resolution.ExtractOverride(s.ctx, store, url)
		o.merge(s.generation, seq, result)
	}()
}

// Snapshot returns a copy of the current session; Idle when there is none
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.session
	if s == nil {
		return Snapshot{State: domain.StateIdle, Overrides: map[string]string{}}
	}

	snap := Snapshot{
		SessionID:   s.id,
		ProductName: s.productName,
		State:       s.state,
		StreamError: s.streamErr,
		Stores:      cloneStores(s.stores),
		Overrides:   make(map[string]string, len(s.overrides)),
	}
	for k, v := range s.overrides {
		snap.Overrides[k] = v
	}
	if s.results != nil {
		snap.Results = s.results.List()
	}

	snap.Links = s.links()
	snap.ReadyToSubmit = s.productName != "" && len(s.stores) > 0 && len(snap.Links) > 0

	return snap
}

// links pairs every store that has a terminal result with its URL; the
// operator's override text takes precedence over the resolved URL.
func (s *session) links() []domain.StoreLink {
	if s.results == nil {
		return nil
	}

	var links []domain.StoreLink
	for _, store := range s.stores {
		result, ok := s.results.Get(store.Name)
		if !ok || result.Status() == domain.ResultPending {
			continue
		}

		url, overridden := s.overrides[store.Name]
		if !overridden {
			url = result.ResolvedURL()
		}
		if url == "" {
			continue
		}
		links = append(links, domain.StoreLink{Store: store.Name, URL: url})
	}
	return links
}

func (o *Orchestrator) emitLocked(e Event) {
	o.listener.OnEvent(e)
}

func cloneStores(stores []domain.StoreDescriptor) []domain.StoreDescriptor {
	if stores == nil {
		return nil
	}
	return append([]domain.StoreDescriptor(nil), stores...)
}
