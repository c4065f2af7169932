package hfsm

import (
	"errors"
	"fmt"
	"slices"
)

// Definition is the static part of a state machine: the state graph, the
// transition table and the observers. It must be fully configured before the
// first machine built from it is initialized; afterwards it is only read and
// may be shared by many machines.
type Definition[S, E comparable] struct {
	name      string
	states    []*State[S, E]
	index     map[S]int
	observers *ObserverManager[S, E]
}

// NewDefinition creates an empty definition
func NewDefinition[S, E comparable](name string) *Definition[S, E] {
	return &Definition[S, E]{
		name:      name,
		index:     make(map[S]int),
		observers: NewObserverManager[S, E](),
	}
}

// Name returns the definition name
func (d *Definition[S, E]) Name() string {
	return d.name
}

// State returns the state with the given id, creating it on first reference
func (d *Definition[S, E]) State(id S) *State[S, E] {
	return d.states[d.getOrCreate(id)]
}

// Lookup returns the state with the given id without creating it
func (d *Definition[S, E]) Lookup(id S) (*State[S, E], bool) {
	i, ok := d.index[id]
	if !ok {
		return nil, false
	}
	return d.states[i], true
}

// States returns all states in the order they were first referenced
func (d *Definition[S, E]) States() []*State[S, E] {
	return slices.Clone(d.states)
}

// Roots returns the states without a parent
func (d *Definition[S, E]) Roots() []*State[S, E] {
	var roots []*State[S, E]
	for _, s := range d.states {
		if s.parent == none {
			roots = append(roots, s)
		}
	}
	return roots
}

func (d *Definition[S, E]) getOrCreate(id S) int {
	if i, ok := d.index[id]; ok {
		return i
	}
	i := len(d.states)
	d.states = append(d.states, newState(d, id, i))
	d.index[id] = i
	return i
}

// DefineHierarchy makes subs the children of super. initial must be one of
// subs. Sub-states that already had a parent are moved.
func (d *Definition[S, E]) DefineHierarchy(super S, initial S, mode HistoryMode, subs ...S) error {
	if super == initial {
		return NewConfigurationError(super, "state cannot be its own initial sub-state")
	}
	if !slices.Contains(subs, initial) {
		return NewConfigurationError(super, fmt.Sprintf("initial sub-state '%v' is not one of its sub-states", initial))
	}
	if mode < HistoryNone || mode > HistoryDeep {
		return NewConfigurationError(super, fmt.Sprintf("unknown history mode %v", mode))
	}

	superIdx := d.getOrCreate(super)
	for _, sub := range subs {
		if sub == super {
			return NewConfigurationError(super, "state cannot be its own parent")
		}
		subIdx := d.getOrCreate(sub)
		if d.isAncestor(subIdx, superIdx) {
			return NewConfigurationError(super, fmt.Sprintf("sub-state '%v' is an ancestor; hierarchy would contain a cycle", sub))
		}
	}

	parent := d.states[superIdx]
	for _, sub := range subs {
		subIdx := d.index[sub]
		child := d.states[subIdx]
		if child.parent == superIdx {
			continue
		}
		if child.parent != none {
			d.states[child.parent].removeChild(subIdx)
		}
		parent.children = append(parent.children, subIdx)
		child.setParent(superIdx)
	}
	parent.initial = d.index[initial]
	parent.history = mode
	return nil
}

// AddTransition registers a transition from source to target for event.
// Transitions registered for the same state and event are tried in
// registration order.
func (d *Definition[S, E]) AddTransition(source S, event E, target S) *Transition[S, E] {
	t := &Transition[S, E]{
		def:    d,
		source: d.getOrCreate(source),
		target: d.getOrCreate(target),
		event:  event,
	}
	d.states[t.source].addTransition(t)
	return t
}

// AddInternalTransition registers a transition that only runs its actions
func (d *Definition[S, E]) AddInternalTransition(source S, event E) *Transition[S, E] {
	t := &Transition[S, E]{
		def:    d,
		source: d.getOrCreate(source),
		target: none,
		event:  event,
	}
	d.states[t.source].addTransition(t)
	return t
}

// TransitionsFor returns the transitions registered on state for event
func (d *Definition[S, E]) TransitionsFor(state S, event E) []*Transition[S, E] {
	i, ok := d.index[state]
	if !ok {
		return nil
	}
	return slices.Clone(d.states[i].transitions[event])
}

// Validate checks the definition for problems that DefineHierarchy cannot
// catch on its own, such as a composite state that lost its initial child
// when one of its sub-states was moved elsewhere.
func (d *Definition[S, E]) Validate() error {
	var errs []error
	if len(d.states) == 0 {
		errs = append(errs, NewConfigurationError(d.name, "definition has no states"))
	}
	for _, s := range d.states {
		if len(s.children) > 0 && s.initial == none {
			errs = append(errs, NewConfigurationError(s.id, "composite state has no initial sub-state"))
		}
	}
	return errors.Join(errs...)
}

// AddObserver subscribes an observer to the notifications of every machine
// built from this definition
func (d *Definition[S, E]) AddObserver(observer Observer[S, E]) {
	d.observers.AddObserver(observer)
}

// RemoveObserver unsubscribes an observer
func (d *Definition[S, E]) RemoveObserver(observer Observer[S, E]) {
	d.observers.RemoveObserver(observer)
}

func (d *Definition[S, E]) isAncestor(ancestor, state int) bool {
	for s := state; s != none; s = d.states[s].parent {
		if s == ancestor {
			return true
		}
	}
	return false
}

// path returns the chain of indices from the root down to state.
func (d *Definition[S, E]) path(state int) []int {
	var p []int
	for s := state; s != none; s = d.states[s].parent {
		p = append(p, s)
	}
	slices.Reverse(p)
	return p
}
