package hfsm

import (
	"fmt"
	"sort"
)

// HistoryEntry is the recorded last active sub-state of one composite state
type HistoryEntry[S comparable] struct {
	SuperState      S `json:"superState" yaml:"superState"`
	LastActiveState S `json:"lastActiveState" yaml:"lastActiveState"`
}

// Snapshot is the serializable checkpoint of a machine: the current state
// and the history records. It is what passivation saves and activation
// restores.
type Snapshot[S comparable] struct {
	CurrentState S                 `json:"currentState" yaml:"currentState"`
	History      []HistoryEntry[S] `json:"history,omitempty" yaml:"history,omitempty"`
}

// LastActive looks up the recorded last active sub-state of super
func (s Snapshot[S]) LastActive(super S) (S, bool) {
	for _, h := range s.History {
		if h.SuperState == super {
			return h.LastActiveState, true
		}
	}
	var zero S
	return zero, false
}

// Snapshot captures the current state and the history records. History
// entries are ordered by the definition order of their composite states.
func (m *Machine[S, E]) Snapshot() (Snapshot[S], error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if !m.initialized {
		return Snapshot[S]{}, protocolError(ErrNotInitialized, "Snapshot")
	}

	supers := make([]int, 0, len(m.history))
	for super := range m.history {
		supers = append(supers, super)
	}
	sort.Ints(supers)

	snap := Snapshot[S]{CurrentState: m.def.states[m.current].id}
	for _, super := range supers {
		snap.History = append(snap.History, HistoryEntry[S]{
			SuperState:      m.def.states[super].id,
			LastActiveState: m.def.states[m.history[super]].id,
		})
	}
	return snap, nil
}

// Restore sets the current state and seeds the history records from a
// snapshot without running any entry action. It replaces Initialize and is
// only allowed on a fresh machine.
func (m *Machine[S, E]) Restore(snap Snapshot[S]) error {
	if m.IsInitialized() {
		return protocolError(ErrAlreadyInitialized, "Restore")
	}
	current, ok := m.def.index[snap.CurrentState]
	if !ok {
		return NewStateError(ErrCodeInvalidSnapshot, snap.CurrentState, "current state is not part of the definition")
	}
	if len(m.def.states[current].children) > 0 {
		return NewStateError(ErrCodeInvalidSnapshot, snap.CurrentState, "current state is not a leaf state")
	}

	history := make(map[int]int, len(snap.History))
	for _, h := range snap.History {
		super, ok := m.def.index[h.SuperState]
		if !ok {
			return NewStateError(ErrCodeInvalidSnapshot, h.SuperState, "history super-state is not part of the definition")
		}
		last, ok := m.def.index[h.LastActiveState]
		if !ok || m.def.states[last].parent != super {
			return NewStateError(ErrCodeInvalidSnapshot, h.SuperState,
				fmt.Sprintf("'%v' is not a sub-state", h.LastActiveState))
		}
		history[super] = last
	}

	m.mutex.Lock()
	m.current = current
	m.history = history
	m.initialized = true
	m.mutex.Unlock()

	m.logger.WithField("state", fmt.Sprint(snap.CurrentState)).Debug("state machine restored")
	return nil
}
