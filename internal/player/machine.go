package player

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrInvalidTransition is returned when a transition is not in the table.
var ErrInvalidTransition = errors.New("invalid player state transition")

// Error and Stopped are reachable from every state and are not listed.
var transitions = map[Kind][]Kind{
	KindIdle:         {KindStarting},
	KindStarting:     {KindLoading},
	KindLoading:      {KindReady},
	KindReady:        {KindTranscribing},
	KindTranscribing: {KindTranscribing, KindComplete, KindReady},
	KindComplete:     {KindReady, KindTranscribing},
	KindError:        {KindStarting, KindReady},
	KindStopped:      {KindStarting},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Kind) bool {
	if to == KindError || to == KindStopped {
		return true
	}
	return slices.Contains(transitions[from], to)
}

// Machine holds the current state. It is safe for concurrent use.
type Machine struct {
	mu      sync.Mutex
	current State
	subs    map[int]chan State
	nextSub int
}

// NewMachine starts in Idle.
func NewMachine() *Machine {
	return &Machine{current: Idle{}, subs: make(map[int]chan State)}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transition moves to next or returns ErrInvalidTransition.
func (m *Machine) Transition(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.current.Kind()
	if !CanTransition(from, next.Kind()) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next.Kind())
	}
	m.current = next
	for _, ch := range m.subs {
		select {
		case ch <- next:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel receiving every accepted state. Slow readers
// miss intermediate states. The cancel function closes the channel.
func (m *Machine) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan State, 16)
	m.subs[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}
