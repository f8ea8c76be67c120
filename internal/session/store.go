package session

import (
	"sync"
	"time"
)

// Selection is what the order-entry screens share: the customer being served, the
// receiver the parcel goes to and the shipping service picked.
type Selection struct {
	CustomerID string    `json:"customer_id,omitempty"`
	ReceiverID string    `json:"receiver_id,omitempty"`
	ServiceID  string    `json:"service_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Listener func(Selection)

// Store holds one user session's selection. It is passed explicitly to whoever needs
// it and notifies subscribers synchronously after every change.
type Store struct {
	mu        sync.RWMutex
	sel       Selection
	listeners map[uint64]Listener
	nextID    uint64
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{listeners: map[uint64]Listener{}, now: time.Now}
}

func (s *Store) Get() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// Subscribe registers fn; the returned func removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SetCustomer selects a customer. A different customer invalidates the receiver.
func (s *Store) SetCustomer(id string) {
	s.update(func(sel *Selection) {
		if sel.CustomerID != id {
			sel.ReceiverID = ""
		}
		sel.CustomerID = id
	})
}

func (s *Store) SetReceiver(id string) {
	s.update(func(sel *Selection) { sel.ReceiverID = id })
}

func (s *Store) SetService(id string) {
	s.update(func(sel *Selection) { sel.ServiceID = id })
}

// Replace sets the whole selection at once.
func (s *Store) Replace(next Selection) {
	s.update(func(sel *Selection) {
		sel.CustomerID = next.CustomerID
		sel.ReceiverID = next.ReceiverID
		sel.ServiceID = next.ServiceID
	})
}

func (s *Store) Reset() {
	s.update(func(sel *Selection) { *sel = Selection{} })
}

func (s *Store) update(fn func(*Selection)) {
	s.mu.Lock()
	before := s.sel
	fn(&s.sel)
	if sameChoice(before, s.sel) {
		s.mu.Unlock()
		return
	}
	s.sel.UpdatedAt = s.now()
	sel := s.sel
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.Unlock()

	for _, l := range ls {
		l(sel)
	}
}

func sameChoice(a, b Selection) bool {
	return a.CustomerID == b.CustomerID && a.ReceiverID == b.ReceiverID && a.ServiceID == b.ServiceID
}
