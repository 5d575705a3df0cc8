package sync

import "sync"

// A Subscription is a live query handle. The engine signals it whenever
// the replica changes; the caller re-reads its view on each signal. The
// channel is buffered and coalescing, so delivery stays in mutation
// order and duplicate signals collapse instead of queueing.
type Subscription struct {
	ch     chan struct{}
	owner  *subscribers
	id     int
	closed bool
}

// Changes signals when underlying entities may have changed. A receive
// means "re-read now"; the snapshot read is what guarantees the caller
// never observes out-of-order state.
func (s *Subscription) Changes() <-chan struct{} { return s.ch }

func (s *Subscription) Close() { s.owner.remove(s) }

type subscribers struct {
	mu   sync.Mutex
	next int
	subs map[int]*Subscription
}

func newSubscribers() *subscribers {
	return &subscribers{subs: map[int]*Subscription{}}
}

func (e *Engine) Subscribe() *Subscription {
	return e.subs.add()
}

func (s *subscribers) add() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	sub := &Subscription{ch: make(chan struct{}, 1), owner: s, id: s.next}
	s.subs[sub.id] = sub
	return sub
}

func (s *subscribers) remove(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	delete(s.subs, sub.id)
	close(sub.ch)
}

func (s *subscribers) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		select {
		case sub.ch <- struct{}{}:
		default: // a signal is already pending; coalesce
		}
	}
}

func (s *subscribers) closeAll() {
	s.mu.Lock()
	subs := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		s.remove(sub)
	}
}
