package listview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrCreateUnsupported is returned by Create on a controller built without a
// create collaborator.
var ErrCreateUnsupported = errors.New("this list does not support creating records")

// ErrClosed is returned by Create after Close.
var ErrClosed = errors.New("list controller closed")

// Page is one page of records as returned by a fetch collaborator. Total
// counts every record matching the filter, not just len(Items).
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// FetchFunc loads one page for the given params. It must return an error,
// never an empty page, when the data source is unreachable or unconfigured.
type FetchFunc[T any] func(ctx context.Context, p Params) (Page[T], error)

// CreateFunc creates a record remotely and returns it as stored.
type CreateFunc[T any] func(ctx context.Context, payload T) (T, error)

// Ordering decides what happens to a response that settles after a newer
// request has already been issued.
type Ordering int

const (
	// DiscardStale applies a response only when it belongs to the most
	// recently issued request.
	DiscardStale Ordering = iota
	// ApplyAll applies every response as it settles, so whichever request
	// finishes last wins even if it is not the latest one.
	ApplyAll
)

func (o Ordering) String() string {
	switch o {
	case DiscardStale:
		return "discard-stale"
	case ApplyAll:
		return "apply-all"
	default:
		return fmt.Sprintf("ordering(%d)", int(o))
	}
}

// Phase is the controller's position in its Idle → Loading → Ready|Failed
// lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText renders the phase by name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is the result side of a list: the current page plus loading and
// error flags. Items is replaced wholesale on every applied fetch and never
// mutated in place, so a State may be shared freely once published.
type State[T any] struct {
	Items   []T    `json:"items"`
	Total   int    `json:"total"`
	Loading bool   `json:"isLoading"`
	Err     string `json:"error"`
}

// Snapshot is a consistent view of params and state at one version.
type Snapshot[T any] struct {
	Version uint64   `json:"version"`
	Phase   Phase    `json:"phase"`
	Params  Params   `json:"params"`
	State   State[T] `json:"state"`
}

// Option configures a Controller.
type Option func(*settings)

type settings struct {
	ordering Ordering
	logger   zerolog.Logger
	create   any
}

// WithOrdering selects how late responses are treated. The default is
// DiscardStale.
func WithOrdering(o Ordering) Option {
	return func(s *settings) { s.ordering = o }
}

// WithLogger attaches a logger for fetch diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithCreate enables Create using fn as the remote create collaborator.
func WithCreate[T any](fn CreateFunc[T]) Option {
	return func(s *settings) { s.create = fn }
}

// Controller owns the fetch lifecycle of one list. All methods are safe for
// concurrent use.
type Controller[T any] struct {
	fetch    FetchFunc[T]
	create   CreateFunc[T]
	ordering Ordering
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	idle    *sync.Cond
	params  Params
	state   State[T]
	lastErr error
	started bool
	closed  bool
	version uint64

	issued        uint64 // sequence number of the newest request
	inflight      int
	latestPending bool
	holds         int // Create calls in progress

	subMu  sync.Mutex
	subs   map[int]*subscription[T]
	nextID int
}

// New builds an idle controller whose params start from Default(initial).
// Nothing is fetched until Start.
func New[T any](fetch FetchFunc[T], initial Patch, opts ...Option) *Controller[T] {
	s := settings{ordering: DiscardStale, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller[T]{
		fetch:    fetch,
		ordering: s.ordering,
		log:      s.logger,
		ctx:      ctx,
		cancel:   cancel,
		params:   Default(initial),
		state:    State[T]{Items: []T{}, Loading: true},
		subs:     make(map[int]*subscription[T]),
	}
	c.idle = sync.NewCond(&c.mu)

	if s.create != nil {
		fn, ok := s.create.(CreateFunc[T])
		if !ok {
			panic(fmt.Sprintf("listview: create collaborator %T does not match record type %T", s.create, *new(T)))
		}
		c.create = fn
	}
	return c
}

// Start mounts the controller and issues the first fetch. Calling it more
// than once has no effect.
func (c *Controller[T]) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	snap, _ := c.issueLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// UpdateParams merges patch into the current params. When the merge changes
// nothing the call is a no-op; otherwise the new params replace the old ones
// and a fetch is scheduled. The outcome is observed through Snapshot and
// subscribers.
func (c *Controller[T]) UpdateParams(patch Patch) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	next := Merge(c.params, patch)
	if next.Equal(c.params) {
		c.mu.Unlock()
		return
	}
	c.params = next

	var snap Snapshot[T]
	if c.started {
		snap, _ = c.issueLocked()
	} else {
		c.version++
		snap = c.snapshotLocked()
	}
	c.mu.Unlock()

	c.publish(snap)
}

// Refresh re-fetches the current page with unchanged params.
func (c *Controller[T]) Refresh() {
	c.mu.Lock()
	if c.closed || !c.started {
		c.mu.Unlock()
		return
	}
	snap, _ := c.issueLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// Create forwards payload to the create collaborator and, on success,
// re-fetches the current page so that totals and ordering come from the
// server. Loading stays true across both steps and Create returns once the
// re-fetch has settled. A failed create leaves items and total untouched and
// is returned as a *CreateError rather than stored in the state.
func (c *Controller[T]) Create(ctx context.Context, payload T) (T, error) {
	var zero T
	if c.create == nil {
		return zero, ErrCreateUnsupported
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return zero, ErrClosed
	}
	c.holds++
	c.state.Loading = true
	c.version++
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	created, err := c.create(ctx, payload)

	c.mu.Lock()
	c.holds--
	if err != nil || c.closed {
		c.state.Loading = c.loadingLocked()
		c.version++
		snap = c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
		if err == nil {
			return created, nil
		}
		return zero, &CreateError{Err: err}
	}
	c.started = true
	snap, done := c.issueLocked()
	c.mu.Unlock()
	c.publish(snap)

	select {
	case <-done:
	case <-ctx.Done():
	}
	return created, nil
}

// Snapshot returns the current params and state.
func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Params returns the current params.
func (c *Controller[T]) Params() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.clone()
}

// State returns the current state.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the *FetchError of the most recent applied fetch, or nil if
// that fetch succeeded.
func (c *Controller[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Wait blocks until no fetch is in flight.
func (c *Controller[T]) Wait() {
	c.mu.Lock()
	for c.inflight > 0 {
		c.idle.Wait()
	}
	c.mu.Unlock()
}

// Close stops the controller. Fetches still in flight are cancelled through
// their context and their results are dropped; subscribers are released.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()

	c.subMu.Lock()
	for id, sub := range c.subs {
		sub.stop()
		delete(c.subs, id)
	}
	c.subMu.Unlock()
}

// issueLocked starts a fetch for the current params. It returns the
// snapshot to publish and a channel closed when that fetch settles.
func (c *Controller[T]) issueLocked() (Snapshot[T], <-chan struct{}) {
	c.issued++
	seq := c.issued
	c.inflight++
	c.latestPending = true
	c.state.Loading = true
	c.version++

	params := c.params.clone()
	done := make(chan struct{})
	go c.run(seq, params, done)

	return c.snapshotLocked(), done
}

func (c *Controller[T]) run(seq uint64, params Params, done chan struct{}) {
	defer close(done)

	page, err := c.fetch(c.ctx, params)

	c.mu.Lock()
	c.inflight--
	c.idle.Broadcast()

	if c.closed {
		c.mu.Unlock()
		return
	}

	latest := seq == c.issued
	if !latest && c.ordering == DiscardStale {
		c.log.Debug().
			Uint64("seq", seq).
			Uint64("latest", c.issued).
			Msg("discarding stale list response")
		c.mu.Unlock()
		return
	}
	if latest || c.ordering == ApplyAll {
		c.latestPending = false
	}

	if err != nil {
		fe := &FetchError{Params: params, Err: err}
		c.lastErr = fe
		c.state.Err = fe.Error()
		c.log.Warn().
			Err(err).
			Int("offset", params.Offset).
			Int("limit", params.Limit).
			Str("filter", params.Filter).
			Msg("list fetch failed")
	} else {
		items := page.Items
		if items == nil {
			items = []T{}
		}
		c.lastErr = nil
		c.state.Items = items
		c.state.Total = max(page.Total, 0)
		c.state.Err = ""
	}
	c.state.Loading = c.loadingLocked()
	c.version++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

func (c *Controller[T]) loadingLocked() bool {
	return c.holds > 0 || c.latestPending
}

func (c *Controller[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Version: c.version,
		Phase:   c.phaseLocked(),
		Params:  c.params.clone(),
		State:   c.state,
	}
}

func (c *Controller[T]) phaseLocked() Phase {
	switch {
	case !c.started:
		return PhaseIdle
	case c.state.Loading:
		return PhaseLoading
	case c.state.Err != "":
		return PhaseFailed
	default:
		return PhaseReady
	}
}
