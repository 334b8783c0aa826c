package listview

import "sync"

// Subscribe registers fn to receive snapshots. fn is called once with the
// current snapshot and then after every change, on a goroutine owned by the
// subscription. Snapshots arrive in version order; when fn falls behind,
// intermediate snapshots are skipped and only the newest is delivered. fn may
// call back into the controller. The returned function unsubscribes.
func (c *Controller[T]) Subscribe(fn func(Snapshot[T])) (unsubscribe func()) {
	sub := &subscription[T]{
		fn:     fn,
		signal: make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}

	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = sub
	c.subMu.Unlock()

	sub.offer(c.Snapshot())
	go sub.loop()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
		sub.stop()
	}
}

func (c *Controller[T]) publish(s Snapshot[T]) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, sub := range c.subs {
		sub.offer(s)
	}
}

type subscription[T any] struct {
	fn     func(Snapshot[T])
	signal chan struct{}
	quit   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	pending   Snapshot[T]
	has       bool
	sent      bool
	delivered uint64
}

func (s *subscription[T]) offer(snap Snapshot[T]) {
	s.mu.Lock()
	if s.has && snap.Version <= s.pending.Version {
		s.mu.Unlock()
		return
	}
	s.pending = snap
	s.has = true
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription[T]) loop() {
	for {
		select {
		case <-s.quit:
			return
		case <-s.signal:
		}

		s.mu.Lock()
		snap := s.pending
		fresh := s.has && (!s.sent || snap.Version > s.delivered)
		if fresh {
			s.sent = true
			s.delivered = snap.Version
		}
		s.mu.Unlock()

		if !fresh {
			continue
		}
		select {
		case <-s.quit:
			return
		default:
		}
		s.fn(snap)
	}
}

func (s *subscription[T]) stop() {
	s.once.Do(func() { close(s.quit) })
}
