// Package hfsm provides a hierarchical finite state machine engine for Go
// that implements UML statechart concepts: nested states with entry and exit
// actions, guarded transitions that bubble up the state hierarchy, shallow and
// deep history, and two interchangeable event drivers.
//
// A Definition holds the state graph and the transition table. It is built
// once and then shared, read-only, by any number of Machine instances. A
// Machine is the interpreter for one entity; it is not safe for concurrent
// use and is normally driven through a PassiveMachine (events are processed
// on the caller's goroutine) or an ActiveMachine (events are processed by a
// dedicated worker goroutine).
package hfsm

import "fmt"

// HistoryMode decides which sub-state is entered when a composite state is
// (re-)entered.
type HistoryMode int

const (
	// HistoryNone enters the initial child, which then applies its own mode
	HistoryNone HistoryMode = iota
	// HistoryShallow enters the last active child, then its initial chain
	HistoryShallow
	// HistoryDeep enters the last active child, which then applies its own mode
	HistoryDeep
)

// String returns a string representation of the history mode
func (h HistoryMode) String() string {
	switch h {
	case HistoryNone:
		return "NONE"
	case HistoryShallow:
		return "SHALLOW"
	case HistoryDeep:
		return "DEEP"
	default:
		return fmt.Sprintf("HistoryMode(%d)", int(h))
	}
}

// ActionFunc is executed on state entry, state exit or while a transition
// fires. A returned error or a panic is recorded on the context and reported
// to observers; it never stops the surrounding transition.
type ActionFunc[S, E comparable] func(ctx *Context[S, E]) error

// GuardFunc decides whether a transition may fire. A panicking guard counts
// as a rejection and is reported as an error.
type GuardFunc[S, E comparable] func(ctx *Context[S, E]) bool
