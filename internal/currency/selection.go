// Package currency holds the user's selected fiat currency.
package currency

import (
	"log/slog"
	"sync"

	"github.com/mtlprog/airdrop/internal/domain"
)

// Selection is the currently selected currency shared by the price store and the API.
type Selection struct {
	mu          sync.RWMutex
	current     domain.Currency
	subscribers map[int]chan domain.Currency
	nextID      int
}

// NewSelection creates a Selection starting at initial, or the default currency if initial is invalid.
func NewSelection(initial domain.Currency) *Selection {
	if !initial.Valid() {
		initial = domain.DefaultCurrency
	}
	return &Selection{
		current:     initial,
		subscribers: make(map[int]chan domain.Currency),
	}
}

// Get returns the selected currency.
func (s *Selection) Get() domain.Currency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set selects c and notifies subscribers if the value changed.
// Invalid codes are ignored; callers validate with domain.ParseCurrency first.
func (s *Selection) Set(c domain.Currency) {
	if !c.Valid() {
		slog.Warn("currency: ignoring unsupported currency", "currency", c)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == c {
		return
	}
	prev := s.current
	s.current = c
	slog.Info("currency: selection changed", "from", prev, "to", c)

	for _, ch := range s.subscribers {
		// A pending notification already tells the subscriber to re-read the selection.
		select {
		case <-ch:
		default:
		}
		ch <- c
	}
}

// Subscribe returns a channel that receives the new currency after each change,
// and a function that stops the subscription. The channel holds only the latest change.
func (s *Selection) Subscribe() (<-chan domain.Currency, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan domain.Currency, 1)
	s.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}
