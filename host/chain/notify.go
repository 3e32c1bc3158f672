package chain

import "sync"

// Listener receives chain notifications. Calls happen synchronously on the
// goroutine that performed the mutation, after it completed and outside the
// chain's internal lock, so a listener may call back into the chain.
type Listener interface {
	// ChainChanged fires after an entry was added or removed, or the chain was cleared.
	ChainChanged()
	// BypassChanged fires after SetBypassed on a valid index.
	BypassChanged(index int, bypassed bool)
	// InstantiationFailed fires when Append could not load a descriptor.
	InstantiationFailed(err *InstantiationError)
}

// ListenerFuncs adapts optional callbacks to Listener. Nil fields are ignored.
type ListenerFuncs struct {
	OnChainChanged        func()
	OnBypassChanged       func(index int, bypassed bool)
	OnInstantiationFailed func(err *InstantiationError)
}

func (f ListenerFuncs) ChainChanged() {
	if f.OnChainChanged != nil {
		f.OnChainChanged()
	}
}

func (f ListenerFuncs) BypassChanged(index int, bypassed bool) {
	if f.OnBypassChanged != nil {
		f.OnBypassChanged(index, bypassed)
	}
}

func (f ListenerFuncs) InstantiationFailed(err *InstantiationError) {
	if f.OnInstantiationFailed != nil {
		f.OnInstantiationFailed(err)
	}
}

// Subscribe registers l and returns a function that unregisters it.
// The returned function is idempotent.
func (c *Chain) Subscribe(l Listener) (unsubscribe func()) {
	return c.listeners.add(l)
}

type subscription struct {
	id uint64
	l  Listener
}

type listenerSet struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
}

func (s *listenerSet) add(l Listener) func() {
	if l == nil {
		return func() {}
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, l: l})
	s.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *listenerSet) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)

			return
		}
	}
}

func (s *listenerSet) reset() {
	s.mu.Lock()
	s.subs = nil
	s.mu.Unlock()
}

// current returns the subscriptions at the time of the call. The slice is
// never mutated in place, so it can be iterated without the lock.
func (s *listenerSet) current() []subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.subs
}

func (s *listenerSet) chainChanged() {
	for _, sub := range s.current() {
		sub.l.ChainChanged()
	}
}

func (s *listenerSet) bypassChanged(index int, bypassed bool) {
	for _, sub := range s.current() {
		sub.l.BypassChanged(index, bypassed)
	}
}

func (s *listenerSet) instantiationFailed(err *InstantiationError) {
	for _, sub := range s.current() {
		sub.l.InstantiationFailed(err)
	}
}
