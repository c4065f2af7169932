package hfsm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordKind tells whether a state was entered or exited
type RecordKind int

const (
	// Enter is recorded when a state is entered
	Enter RecordKind = iota
	// Exit is recorded when a state is exited
	Exit
)

// String returns a string representation of the record kind
func (k RecordKind) String() string {
	if k == Exit {
		return "Exit"
	}
	return "Enter"
}

// Record is one entry of the enter/exit trace
type Record[S comparable] struct {
	State S
	Kind  RecordKind
}

func (r Record[S]) String() string {
	return fmt.Sprintf("%s(%v)", r.Kind, r.State)
}

// Context is the scratchpad of a single Initialize, Fire or Terminate call.
// It carries the event and its arguments, the ordered trace of entered and
// exited states, and every error caught while the operation ran. A context
// is never reused across operations.
type Context[S, E comparable] struct {
	context.Context
	machine  *Machine[S, E]
	state    S
	event    E
	hasEvent bool
	eventID  uuid.UUID
	enqueued time.Time
	args     []any
	records  []Record[S]
	errs     []error
}

func newContext[S, E comparable](m *Machine[S, E], state S) *Context[S, E] {
	return &Context[S, E]{
		Context: m.ctx,
		machine: m,
		state:   state,
	}
}

func (ctx *Context[S, E]) withEvent(qe queuedEvent[E]) *Context[S, E] {
	ctx.event = qe.event
	ctx.hasEvent = true
	ctx.eventID = qe.id
	ctx.enqueued = qe.enqueued
	ctx.args = qe.args
	return ctx
}

// Machine returns the machine instance the operation runs on
func (ctx *Context[S, E]) Machine() *Machine[S, E] {
	return ctx.machine
}

// State returns the state the operation started from
func (ctx *Context[S, E]) State() S {
	return ctx.state
}

// Event returns the event being fired; ok is false during Initialize and
// Terminate
func (ctx *Context[S, E]) Event() (event E, ok bool) {
	return ctx.event, ctx.hasEvent
}

// EventID identifies the fired event instance; it is uuid.Nil during
// Initialize and Terminate
func (ctx *Context[S, E]) EventID() uuid.UUID {
	return ctx.eventID
}

// EnqueuedAt returns when the event was handed to the machine or its driver
func (ctx *Context[S, E]) EnqueuedAt() time.Time {
	return ctx.enqueued
}

// Args returns the event arguments
func (ctx *Context[S, E]) Args() []any {
	return ctx.args
}

// Arg returns the i-th event argument or nil
func (ctx *Context[S, E]) Arg(i int) any {
	if i < 0 || i >= len(ctx.args) {
		return nil
	}
	return ctx.args[i]
}

// Get retrieves a value from the machine's data
func (ctx *Context[S, E]) Get(key string) (any, bool) {
	return ctx.machine.Get(key)
}

// Set stores a value in the machine's data
func (ctx *Context[S, E]) Set(key string, value any) {
	ctx.machine.Set(key, value)
}

// Records returns the enter/exit trace collected so far
func (ctx *Context[S, E]) Records() []Record[S] {
	return append([]Record[S](nil), ctx.records...)
}

// Errors returns the errors caught so far
func (ctx *Context[S, E]) Errors() []error {
	return append([]error(nil), ctx.errs...)
}

func (ctx *Context[S, E]) addRecord(state S, kind RecordKind) {
	ctx.records = append(ctx.records, Record[S]{State: state, Kind: kind})
}

func (ctx *Context[S, E]) addError(err error) {
	ctx.errs = append(ctx.errs, err)
}
