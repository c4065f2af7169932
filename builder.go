package hfsm

import (
	"errors"
	"fmt"
)

// Builder assembles a Definition with a fluent API. Problems are collected
// while building and reported together by Build.
//
//	def, err := hfsm.NewBuilder[State, Event]("door").
//		Composite(Open).History(hfsm.HistoryShallow).Children(Ajar, Wide).
//		State(Ajar).To(Wide).On(Push).
//		State(Wide).To(Closed).On(Slam).Do(logSlam).
//		Build()
type Builder[S, E comparable] struct {
	def         *Definition[S, E]
	composites  []*CompositeBuilder[S, E]
	transitions []*TransitionBuilder[S, E]
	errs        []error
	built       bool
}

// NewBuilder creates a builder for a definition with the given name
func NewBuilder[S, E comparable](name string) *Builder[S, E] {
	return &Builder[S, E]{def: NewDefinition[S, E](name)}
}

// State starts configuring a state
func (b *Builder[S, E]) State(id S) *StateBuilder[S, E] {
	return &StateBuilder[S, E]{builder: b, state: b.def.State(id)}
}

// Composite starts configuring a state with sub-states
func (b *Builder[S, E]) Composite(id S) *CompositeBuilder[S, E] {
	cb := &CompositeBuilder[S, E]{StateBuilder: b.State(id)}
	b.composites = append(b.composites, cb)
	return cb
}

// Observe subscribes an observer to every machine built from the definition
func (b *Builder[S, E]) Observe(observer Observer[S, E]) *Builder[S, E] {
	b.def.AddObserver(observer)
	return b
}

// Build wires the hierarchy and the transitions and validates the result.
// It returns every problem found, joined into one error.
func (b *Builder[S, E]) Build() (*Definition[S, E], error) {
	if b.built {
		return b.def, errors.Join(b.errs...)
	}
	b.built = true

	for _, cb := range b.composites {
		if err := cb.apply(); err != nil {
			b.errs = append(b.errs, err)
		}
	}
	for _, tb := range b.transitions {
		if err := tb.apply(); err != nil {
			b.errs = append(b.errs, err)
		}
	}
	if err := b.def.Validate(); err != nil {
		b.errs = append(b.errs, err)
	}

	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	return b.def, nil
}

// StateBuilder configures one state
type StateBuilder[S, E comparable] struct {
	builder *Builder[S, E]
	state   *State[S, E]
}

// OnEntry appends entry actions
func (sb *StateBuilder[S, E]) OnEntry(actions ...ActionFunc[S, E]) *StateBuilder[S, E] {
	sb.state.OnEntry(actions...)
	return sb
}

// OnExit appends exit actions
func (sb *StateBuilder[S, E]) OnExit(actions ...ActionFunc[S, E]) *StateBuilder[S, E] {
	sb.state.OnExit(actions...)
	return sb
}

// To starts a transition to target
func (sb *StateBuilder[S, E]) To(target S) *TransitionBuilder[S, E] {
	return sb.transition(target, false)
}

// ToSelf starts a self transition; the state is exited and entered again
func (sb *StateBuilder[S, E]) ToSelf() *TransitionBuilder[S, E] {
	return sb.transition(sb.state.id, false)
}

// Internal starts a transition that runs its actions without leaving the state
func (sb *StateBuilder[S, E]) Internal() *TransitionBuilder[S, E] {
	var zero S
	return sb.transition(zero, true)
}

func (sb *StateBuilder[S, E]) transition(target S, internal bool) *TransitionBuilder[S, E] {
	tb := &TransitionBuilder[S, E]{
		from:     sb,
		target:   target,
		internal: internal,
	}
	sb.builder.transitions = append(sb.builder.transitions, tb)
	return tb
}

// State switches to configuring another state
func (sb *StateBuilder[S, E]) State(id S) *StateBuilder[S, E] {
	return sb.builder.State(id)
}

// Composite switches to configuring a composite state
func (sb *StateBuilder[S, E]) Composite(id S) *CompositeBuilder[S, E] {
	return sb.builder.Composite(id)
}

// Build finishes the definition
func (sb *StateBuilder[S, E]) Build() (*Definition[S, E], error) {
	return sb.builder.Build()
}

// CompositeBuilder configures a state with sub-states. The hierarchy is
// applied when the definition is built.
type CompositeBuilder[S, E comparable] struct {
	*StateBuilder[S, E]
	mode       HistoryMode
	initial    S
	hasInitial bool
	children   []S
}

// History sets the history mode used when the state is re-entered
func (cb *CompositeBuilder[S, E]) History(mode HistoryMode) *CompositeBuilder[S, E] {
	cb.mode = mode
	return cb
}

// Initial sets the initial sub-state. Without it the first child is used.
func (cb *CompositeBuilder[S, E]) Initial(id S) *CompositeBuilder[S, E] {
	cb.initial = id
	cb.hasInitial = true
	return cb
}

// Children appends sub-states
func (cb *CompositeBuilder[S, E]) Children(ids ...S) *CompositeBuilder[S, E] {
	cb.children = append(cb.children, ids...)
	return cb
}

// OnEntry appends entry actions
func (cb *CompositeBuilder[S, E]) OnEntry(actions ...ActionFunc[S, E]) *CompositeBuilder[S, E] {
	cb.state.OnEntry(actions...)
	return cb
}

// OnExit appends exit actions
func (cb *CompositeBuilder[S, E]) OnExit(actions ...ActionFunc[S, E]) *CompositeBuilder[S, E] {
	cb.state.OnExit(actions...)
	return cb
}

func (cb *CompositeBuilder[S, E]) apply() error {
	if len(cb.children) == 0 {
		return NewConfigurationError(cb.state.id, "composite state has no sub-states")
	}
	initial := cb.children[0]
	if cb.hasInitial {
		initial = cb.initial
	}
	return cb.builder.def.DefineHierarchy(cb.state.id, initial, cb.mode, cb.children...)
}

// TransitionBuilder configures one transition
type TransitionBuilder[S, E comparable] struct {
	from     *StateBuilder[S, E]
	target   S
	internal bool
	event    E
	hasEvent bool
	guard    GuardFunc[S, E]
	actions  []ActionFunc[S, E]
}

// On sets the triggering event
func (tb *TransitionBuilder[S, E]) On(event E) *TransitionBuilder[S, E] {
	tb.event = event
	tb.hasEvent = true
	return tb
}

// When sets the guard
func (tb *TransitionBuilder[S, E]) When(guard GuardFunc[S, E]) *TransitionBuilder[S, E] {
	tb.guard = guard
	return tb
}

// Do appends transition actions
func (tb *TransitionBuilder[S, E]) Do(actions ...ActionFunc[S, E]) *TransitionBuilder[S, E] {
	tb.actions = append(tb.actions, actions...)
	return tb
}

// To starts another transition from the same state
func (tb *TransitionBuilder[S, E]) To(target S) *TransitionBuilder[S, E] {
	return tb.from.To(target)
}

// ToSelf starts another self transition from the same state
func (tb *TransitionBuilder[S, E]) ToSelf() *TransitionBuilder[S, E] {
	return tb.from.ToSelf()
}

// Internal starts another internal transition on the same state
func (tb *TransitionBuilder[S, E]) Internal() *TransitionBuilder[S, E] {
	return tb.from.Internal()
}

// State switches to configuring another state
func (tb *TransitionBuilder[S, E]) State(id S) *StateBuilder[S, E] {
	return tb.from.builder.State(id)
}

// Composite switches to configuring a composite state
func (tb *TransitionBuilder[S, E]) Composite(id S) *CompositeBuilder[S, E] {
	return tb.from.builder.Composite(id)
}

// Build finishes the definition
func (tb *TransitionBuilder[S, E]) Build() (*Definition[S, E], error) {
	return tb.from.builder.Build()
}

func (tb *TransitionBuilder[S, E]) apply() error {
	source := tb.from.state.id
	if !tb.hasEvent {
		if tb.internal {
			return NewConfigurationError(source, "internal transition has no event")
		}
		return NewConfigurationError(source, fmt.Sprintf("transition to '%v' has no event", tb.target))
	}

	def := tb.from.builder.def
	var t *Transition[S, E]
	if tb.internal {
		t = def.AddInternalTransition(source, tb.event)
	} else {
		t = def.AddTransition(source, tb.event, tb.target)
	}
	if tb.guard != nil {
		t.When(tb.guard)
	}
	t.Do(tb.actions...)
	return nil
}
