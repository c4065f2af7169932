package observers

import (
	"fmt"
	"sync"

	"github.com/anggasct/hfsm"
)

// ValidationObserver checks a running machine against expectations: which
// states should be visited and which leaf-to-leaf transitions are allowed.
type ValidationObserver[S, E comparable] struct {
	hfsm.BaseObserver[S, E]

	expectedStates     map[S]bool
	visitedStates      map[S]bool
	allowedTransitions map[S]map[S]bool
	violations         []string
	mutex              sync.RWMutex
}

// NewValidationObserver creates a new validation observer
func NewValidationObserver[S, E comparable]() *ValidationObserver[S, E] {
	return &ValidationObserver[S, E]{
		expectedStates:     make(map[S]bool),
		visitedStates:      make(map[S]bool),
		allowedTransitions: make(map[S]map[S]bool),
	}
}

// AddExpectedState adds a state that must be entered at least once
func (o *ValidationObserver[S, E]) AddExpectedState(state S) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.expectedStates[state] = true
}

// AddAllowedTransition allows moving from one leaf state to another. Leaf
// states without any allowed transition are not checked.
func (o *ValidationObserver[S, E]) AddAllowedTransition(from, to S) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if _, exists := o.allowedTransitions[from]; !exists {
		o.allowedTransitions[from] = make(map[S]bool)
	}
	o.allowedTransitions[from][to] = true
}

// OnStateEnter marks the state as visited
func (o *ValidationObserver[S, E]) OnStateEnter(ctx *hfsm.Context[S, E], state S) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.visitedStates[state] = true
}

// OnTransitionCompleted validates transitions
func (o *ValidationObserver[S, E]) OnTransitionCompleted(ctx *hfsm.Context[S, E], newState S) {
	from := ctx.State()
	event, _ := ctx.Event()

	o.mutex.Lock()
	defer o.mutex.Unlock()

	if allowed, exists := o.allowedTransitions[from]; exists && !allowed[newState] {
		o.violations = append(o.violations, fmt.Sprintf(
			"invalid transition from '%v' to '%v' on event '%v'", from, newState, event))
	}
}

// OnError records every caught error as a violation
func (o *ValidationObserver[S, E]) OnError(ctx *hfsm.Context[S, E], err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.violations = append(o.violations, fmt.Sprintf("error occurred: %v", err))
}

// GetViolations returns all validation violations
func (o *ValidationObserver[S, E]) GetViolations() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make([]string, len(o.violations))
	copy(result, o.violations)
	return result
}

// GetUnvisitedStates returns states that were expected but not visited
func (o *ValidationObserver[S, E]) GetUnvisitedStates() []S {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	var unvisited []S
	for state := range o.expectedStates {
		if !o.visitedStates[state] {
			unvisited = append(unvisited, state)
		}
	}
	return unvisited
}

// HasViolations returns whether any violations occurred
func (o *ValidationObserver[S, E]) HasViolations() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.violations) > 0
}

// Reset forgets visited states and violations
func (o *ValidationObserver[S, E]) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.visitedStates = make(map[S]bool)
	o.violations = nil
}
