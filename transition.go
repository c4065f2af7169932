package hfsm

// Transition represents a guarded, action-bearing edge registered on a
// source state for one event. A transition without a target is internal: it
// runs its actions without leaving the current state.
type Transition[S, E comparable] struct {
	def     *Definition[S, E]
	source  int
	target  int
	event   E
	guard   GuardFunc[S, E]
	actions []ActionFunc[S, E]
}

// When sets the guard condition of the transition
func (t *Transition[S, E]) When(guard GuardFunc[S, E]) *Transition[S, E] {
	t.guard = guard
	return t
}

// Do appends actions executed when the transition fires
func (t *Transition[S, E]) Do(actions ...ActionFunc[S, E]) *Transition[S, E] {
	t.actions = append(t.actions, actions...)
	return t
}

// Source returns the state the transition is registered on
func (t *Transition[S, E]) Source() S {
	return t.def.states[t.source].id
}

// Target returns the target state; ok is false for internal transitions
func (t *Transition[S, E]) Target() (target S, ok bool) {
	if t.target == none {
		return target, false
	}
	return t.def.states[t.target].id, true
}

// Event returns the event that triggers the transition
func (t *Transition[S, E]) Event() E {
	return t.event
}

// IsInternal returns true for transitions without a target
func (t *Transition[S, E]) IsInternal() bool {
	return t.target == none
}

// HasGuard returns true when a guard condition is set
func (t *Transition[S, E]) HasGuard() bool {
	return t.guard != nil
}

// ActionCount returns the number of transition actions
func (t *Transition[S, E]) ActionCount() int {
	return len(t.actions)
}
