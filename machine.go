package hfsm

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Machine is one state machine instance built from a Definition. It keeps
// the current leaf state, the history records of its composite states and
// free-form data for actions.
//
// A Machine is driven from a single goroutine at a time, normally through a
// PassiveMachine or an ActiveMachine. Read accessors such as CurrentState
// are safe to call from other goroutines.
type Machine[S, E comparable] struct {
	id     uuid.UUID
	def    *Definition[S, E]
	name   string
	ctx    context.Context
	logger logrus.FieldLogger

	mutex       sync.RWMutex
	current     int
	initialized bool
	terminated  bool
	history     map[int]int

	dataMutex sync.RWMutex
	data      map[string]any
}

// NewMachine creates a new machine instance for the definition
func NewMachine[S, E comparable](def *Definition[S, E], opts ...Option) *Machine[S, E] {
	return newMachine(def, newOptions(opts))
}

func newMachine[S, E comparable](def *Definition[S, E], o *options) *Machine[S, E] {
	name := o.name
	if name == "" {
		name = def.name
	}
	id := uuid.New()
	return &Machine[S, E]{
		id:      id,
		def:     def,
		name:    name,
		ctx:     o.ctx,
		logger:  o.logger.WithFields(logrus.Fields{"machine": name, "instance": id.String()}),
		current: none,
		history: make(map[int]int),
		data:    make(map[string]any),
	}
}

// ID returns the unique instance identifier
func (m *Machine[S, E]) ID() uuid.UUID {
	return m.id
}

// Name returns the machine name used in logs and reports
func (m *Machine[S, E]) Name() string {
	return m.name
}

// Definition returns the definition the machine was built from
func (m *Machine[S, E]) Definition() *Definition[S, E] {
	return m.def
}

// CurrentState returns the current leaf state, or the zero value before
// initialization
func (m *Machine[S, E]) CurrentState() S {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.current == none {
		var zero S
		return zero
	}
	return m.def.states[m.current].id
}

// IsInState returns true when id is the current leaf state or one of its
// ancestors
func (m *Machine[S, E]) IsInState(id S) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for s := m.current; s != none; s = m.def.states[s].parent {
		if m.def.states[s].id == id {
			return true
		}
	}
	return false
}

// IsInitialized returns true once Initialize or Restore succeeded
func (m *Machine[S, E]) IsInitialized() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.initialized
}

// IsTerminated returns true once Terminate ran
func (m *Machine[S, E]) IsTerminated() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.terminated
}

// LastActiveState returns the recorded last active sub-state of a composite
// state, if any
func (m *Machine[S, E]) LastActiveState(super S) (S, bool) {
	var zero S
	i, ok := m.def.index[super]
	if !ok {
		return zero, false
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	last, ok := m.history[i]
	if !ok {
		return zero, false
	}
	return m.def.states[last].id, true
}

// Get retrieves a value from the machine data
func (m *Machine[S, E]) Get(key string) (any, bool) {
	m.dataMutex.RLock()
	defer m.dataMutex.RUnlock()
	value, exists := m.data[key]
	return value, exists
}

// Set stores a value in the machine data
func (m *Machine[S, E]) Set(key string, value any) {
	m.dataMutex.Lock()
	defer m.dataMutex.Unlock()
	m.data[key] = value
}

// Initialize enters the given state: first its ancestors from the root down,
// then its sub-states according to history and initial children until a
// leaf is reached. It may be called only once.
func (m *Machine[S, E]) Initialize(state S) (*Context[S, E], error) {
	if m.IsInitialized() {
		return nil, protocolError(ErrAlreadyInitialized, "Initialize")
	}
	idx, ok := m.def.index[state]
	if !ok {
		return nil, NewStateNotFoundError(state)
	}

	ctx := newContext(m, state)
	for _, s := range m.def.path(idx) {
		m.enter(ctx, s)
	}
	leaf := m.enterByHistory(ctx, idx)

	m.mutex.Lock()
	m.current = leaf
	m.initialized = true
	m.mutex.Unlock()

	m.logger.WithField("state", fmt.Sprint(m.def.states[leaf].id)).Debug("state machine initialized")
	return ctx, nil
}

// Fire offers the event to the current state and, while nothing accepts it,
// to each of its ancestors. The first transition whose guard passes fires.
// A declined event is not an error.
func (m *Machine[S, E]) Fire(event E, args ...any) (*Context[S, E], error) {
	return m.fire(newQueuedEvent(event, args))
}

func (m *Machine[S, E]) fire(qe queuedEvent[E]) (*Context[S, E], error) {
	m.mutex.RLock()
	initialized, terminated, leaf := m.initialized, m.terminated, m.current
	m.mutex.RUnlock()
	if !initialized {
		return nil, protocolError(ErrNotInitialized, "Fire")
	}
	if terminated {
		return nil, protocolError(ErrTerminated, "Fire")
	}

	ctx := newContext(m, m.def.states[leaf].id).withEvent(qe)
	event := qe.event
	logger := m.logger.WithFields(logrus.Fields{"event": fmt.Sprint(event), "event_id": qe.id.String()})

	for s := leaf; s != none; s = m.def.states[s].parent {
		for _, t := range m.def.states[s].transitions[event] {
			if !m.shouldFire(ctx, t) {
				continue
			}
			m.def.observers.NotifyTransitionBegin(ctx)
			newLeaf := m.execute(ctx, t, leaf)

			m.mutex.Lock()
			m.current = newLeaf
			m.mutex.Unlock()

			newState := m.def.states[newLeaf].id
			logger.WithFields(logrus.Fields{
				"from": fmt.Sprint(ctx.state),
				"to":   fmt.Sprint(newState),
			}).Debug("transition completed")
			m.def.observers.NotifyTransitionCompleted(ctx, newState)
			return ctx, nil
		}
	}

	logger.WithField("state", fmt.Sprint(ctx.state)).Debug("transition declined")
	m.def.observers.NotifyTransitionDeclined(ctx)
	return ctx, nil
}

// Terminate exits the current leaf state and all its ancestors. Calling it
// again, or before initialization, does nothing.
func (m *Machine[S, E]) Terminate() *Context[S, E] {
	m.mutex.Lock()
	initialized, terminated, leaf := m.initialized, m.terminated, m.current
	if initialized {
		m.terminated = true
	}
	m.mutex.Unlock()

	var zero S
	if !initialized || terminated {
		return newContext(m, zero)
	}

	ctx := newContext(m, m.def.states[leaf].id)
	for s := leaf; s != none; s = m.def.states[s].parent {
		m.exit(ctx, s)
	}
	m.logger.Debug("state machine terminated")
	return ctx
}

func (m *Machine[S, E]) shouldFire(ctx *Context[S, E], t *Transition[S, E]) bool {
	if t.guard == nil {
		return true
	}
	ok, err := safeEvaluateGuard(t.guard, ctx)
	if err != nil {
		m.handleError(ctx, NewGuardError(m.def.states[t.source].id, t.event, err))
		return false
	}
	return ok
}

// execute fires an accepted transition and returns the new leaf state.
func (m *Machine[S, E]) execute(ctx *Context[S, E], t *Transition[S, E], leaf int) int {
	if t.target == none {
		m.performActions(ctx, t)
		return leaf
	}
	for s := leaf; s != t.source; s = m.def.states[s].parent {
		m.exit(ctx, s)
	}
	m.fireBetween(ctx, t, t.source, t.target)
	return m.enterByHistory(ctx, t.target)
}

// fireBetween exits from source and enters down to target through their
// least common ancestor, running the transition actions in between.
func (m *Machine[S, E]) fireBetween(ctx *Context[S, E], t *Transition[S, E], source, target int) {
	src, tgt := m.def.states[source], m.def.states[target]
	switch {
	case source == t.target:
		m.exit(ctx, source)
		m.performActions(ctx, t)
		m.enter(ctx, target)
	case source == target:
		m.performActions(ctx, t)
	case src.parent == tgt.parent:
		m.exit(ctx, source)
		m.performActions(ctx, t)
		m.enter(ctx, target)
	case src.depth > tgt.depth:
		m.exit(ctx, source)
		m.fireBetween(ctx, t, src.parent, target)
	case src.depth < tgt.depth:
		m.fireBetween(ctx, t, source, tgt.parent)
		m.enter(ctx, target)
	default:
		m.exit(ctx, source)
		m.fireBetween(ctx, t, src.parent, tgt.parent)
		m.enter(ctx, target)
	}
}

// enterByHistory enters the sub-states of an already entered state and
// returns the resulting leaf. NONE enters the initial child and DEEP the
// recorded child; either way the entered child then applies its own mode.
// SHALLOW enters the recorded child and below it only initial children.
func (m *Machine[S, E]) enterByHistory(ctx *Context[S, E], s int) int {
	st := m.def.states[s]
	if len(st.children) == 0 {
		return s
	}
	switch st.history {
	case HistoryShallow:
		return m.enterShallow(ctx, m.lastActive(s))
	case HistoryDeep:
		last := m.lastActive(s)
		m.enter(ctx, last)
		return m.enterByHistory(ctx, last)
	default:
		m.enter(ctx, st.initial)
		return m.enterByHistory(ctx, st.initial)
	}
}

// enterShallow enters s and then its initial chain, ignoring history.
func (m *Machine[S, E]) enterShallow(ctx *Context[S, E], s int) int {
	m.enter(ctx, s)
	if st := m.def.states[s]; len(st.children) > 0 {
		return m.enterShallow(ctx, st.initial)
	}
	return s
}

func (m *Machine[S, E]) lastActive(s int) int {
	m.mutex.RLock()
	last, ok := m.history[s]
	m.mutex.RUnlock()
	if ok {
		return last
	}
	return m.def.states[s].initial
}

func (m *Machine[S, E]) enter(ctx *Context[S, E], s int) {
	st := m.def.states[s]
	ctx.addRecord(st.id, Enter)
	for _, action := range st.entry {
		m.runAction(ctx, EntryAction, st.id, action)
	}
	m.def.observers.NotifyStateEnter(ctx, st.id)
}

func (m *Machine[S, E]) exit(ctx *Context[S, E], s int) {
	st := m.def.states[s]
	ctx.addRecord(st.id, Exit)
	for _, action := range st.exit {
		m.runAction(ctx, ExitAction, st.id, action)
	}
	if st.parent != none && m.def.states[st.parent].history != HistoryNone {
		m.mutex.Lock()
		m.history[st.parent] = s
		m.mutex.Unlock()
	}
	m.def.observers.NotifyStateExit(ctx, st.id)
}

func (m *Machine[S, E]) performActions(ctx *Context[S, E], t *Transition[S, E]) {
	source := m.def.states[t.source].id
	for _, action := range t.actions {
		m.runAction(ctx, TransitionAction, source, action)
	}
}

func (m *Machine[S, E]) runAction(ctx *Context[S, E], kind ActionKind, state S, action ActionFunc[S, E]) {
	if err := safeExecuteAction(action, ctx); err != nil {
		m.handleError(ctx, NewActionError(kind, state, err))
	}
}

func (m *Machine[S, E]) handleError(ctx *Context[S, E], err error) {
	ctx.addError(err)
	m.logger.WithError(err).Warn("error caught while firing")
	m.def.observers.NotifyError(ctx, err)
}

// safeEvaluateGuard safely evaluates a guard function with panic recovery
func safeEvaluateGuard[S, E comparable](guard GuardFunc[S, E], ctx *Context[S, E]) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = false
			err = fmt.Errorf("guard panic: %v", r)
		}
	}()

	result = guard(ctx)
	return result, nil
}

// safeExecuteAction safely executes an action function with panic recovery
func safeExecuteAction[S, E comparable](action ActionFunc[S, E], ctx *Context[S, E]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()

	err = action(ctx)
	return err
}
