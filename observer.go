package hfsm

import (
	"fmt"
	"sync"
)

// Observer receives the notifications raised while machines fire events
type Observer[S, E comparable] interface {
	// OnTransitionBegin is called once a transition was accepted, before any
	// state is exited
	OnTransitionBegin(ctx *Context[S, E])

	// OnTransitionCompleted is called after the machine settled in newState
	OnTransitionCompleted(ctx *Context[S, E], newState S)

	// OnTransitionDeclined is called when no state in the hierarchy accepted
	// the event
	OnTransitionDeclined(ctx *Context[S, E])

	// OnError is called for every error caught in a guard or an action
	OnError(ctx *Context[S, E], err error)
}

// ExtendedObserver provides additional optional observation methods
type ExtendedObserver[S, E comparable] interface {
	Observer[S, E]

	// OnStateEnter is called after a state's entry actions ran
	OnStateEnter(ctx *Context[S, E], state S)

	// OnStateExit is called after a state's exit actions ran
	OnStateExit(ctx *Context[S, E], state S)

	// OnMachineStarted is called when a driver starts
	OnMachineStarted(m *Machine[S, E])

	// OnMachineStopped is called when a driver terminates
	OnMachineStopped(m *Machine[S, E])
}

// BaseObserver provides a default implementation with no-op methods
type BaseObserver[S, E comparable] struct{}

// OnTransitionBegin implements Observer
func (o *BaseObserver[S, E]) OnTransitionBegin(ctx *Context[S, E]) {}

// OnTransitionCompleted implements Observer
func (o *BaseObserver[S, E]) OnTransitionCompleted(ctx *Context[S, E], newState S) {}

// OnTransitionDeclined implements Observer
func (o *BaseObserver[S, E]) OnTransitionDeclined(ctx *Context[S, E]) {}

// OnError implements Observer
func (o *BaseObserver[S, E]) OnError(ctx *Context[S, E], err error) {}

// OnStateEnter implements ExtendedObserver
func (o *BaseObserver[S, E]) OnStateEnter(ctx *Context[S, E], state S) {}

// OnStateExit implements ExtendedObserver
func (o *BaseObserver[S, E]) OnStateExit(ctx *Context[S, E], state S) {}

// OnMachineStarted implements ExtendedObserver
func (o *BaseObserver[S, E]) OnMachineStarted(m *Machine[S, E]) {}

// OnMachineStopped implements ExtendedObserver
func (o *BaseObserver[S, E]) OnMachineStopped(m *Machine[S, E]) {}

// ObserverManager manages a collection of observers. A panicking observer
// never disturbs the machine or the other observers.
type ObserverManager[S, E comparable] struct {
	mutex     sync.RWMutex
	observers []Observer[S, E]
}

// NewObserverManager creates a new observer manager
func NewObserverManager[S, E comparable]() *ObserverManager[S, E] {
	return &ObserverManager[S, E]{
		observers: make([]Observer[S, E], 0),
	}
}

// AddObserver adds an observer to the manager
func (om *ObserverManager[S, E]) AddObserver(observer Observer[S, E]) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	om.observers = append(om.observers, observer)
}

// RemoveObserver removes an observer from the manager
func (om *ObserverManager[S, E]) RemoveObserver(observer Observer[S, E]) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	for i, obs := range om.observers {
		if obs == observer {
			om.observers = append(om.observers[:i:i], om.observers[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered observers
func (om *ObserverManager[S, E]) Len() int {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	return len(om.observers)
}

func (om *ObserverManager[S, E]) snapshot() []Observer[S, E] {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	observers := make([]Observer[S, E], len(om.observers))
	copy(observers, om.observers)
	return observers
}

// each calls fn for every observer, recovering panics. A panic is reported
// to the observer's own OnError when a context is available.
func (om *ObserverManager[S, E]) each(ctx *Context[S, E], hook string, fn func(Observer[S, E])) {
	for _, observer := range om.snapshot() {
		func() {
			defer func() {
				if r := recover(); r != nil && ctx != nil {
					func() {
						defer func() { _ = recover() }()
						observer.OnError(ctx, fmt.Errorf("observer panic in %s: %v", hook, r))
					}()
				}
			}()
			fn(observer)
		}()
	}
}

// NotifyTransitionBegin notifies all observers that a transition begins
func (om *ObserverManager[S, E]) NotifyTransitionBegin(ctx *Context[S, E]) {
	om.each(ctx, "OnTransitionBegin", func(o Observer[S, E]) {
		o.OnTransitionBegin(ctx)
	})
}

// NotifyTransitionCompleted notifies all observers of a completed transition
func (om *ObserverManager[S, E]) NotifyTransitionCompleted(ctx *Context[S, E], newState S) {
	om.each(ctx, "OnTransitionCompleted", func(o Observer[S, E]) {
		o.OnTransitionCompleted(ctx, newState)
	})
}

// NotifyTransitionDeclined notifies all observers of a declined event
func (om *ObserverManager[S, E]) NotifyTransitionDeclined(ctx *Context[S, E]) {
	om.each(ctx, "OnTransitionDeclined", func(o Observer[S, E]) {
		o.OnTransitionDeclined(ctx)
	})
}

// NotifyError notifies all observers of a caught error
func (om *ObserverManager[S, E]) NotifyError(ctx *Context[S, E], err error) {
	for _, observer := range om.snapshot() {
		func() {
			defer func() { _ = recover() }()
			observer.OnError(ctx, err)
		}()
	}
}

// NotifyStateEnter notifies extended observers of state entry
func (om *ObserverManager[S, E]) NotifyStateEnter(ctx *Context[S, E], state S) {
	om.each(ctx, "OnStateEnter", func(o Observer[S, E]) {
		if ext, ok := o.(ExtendedObserver[S, E]); ok {
			ext.OnStateEnter(ctx, state)
		}
	})
}

// NotifyStateExit notifies extended observers of state exit
func (om *ObserverManager[S, E]) NotifyStateExit(ctx *Context[S, E], state S) {
	om.each(ctx, "OnStateExit", func(o Observer[S, E]) {
		if ext, ok := o.(ExtendedObserver[S, E]); ok {
			ext.OnStateExit(ctx, state)
		}
	})
}

// NotifyMachineStarted notifies extended observers that a driver started
func (om *ObserverManager[S, E]) NotifyMachineStarted(m *Machine[S, E]) {
	om.each(nil, "OnMachineStarted", func(o Observer[S, E]) {
		if ext, ok := o.(ExtendedObserver[S, E]); ok {
			ext.OnMachineStarted(m)
		}
	})
}

// NotifyMachineStopped notifies extended observers that a driver terminated
func (om *ObserverManager[S, E]) NotifyMachineStopped(m *Machine[S, E]) {
	om.each(nil, "OnMachineStopped", func(o Observer[S, E]) {
		if ext, ok := o.(ExtendedObserver[S, E]); ok {
			ext.OnMachineStopped(m)
		}
	})
}
