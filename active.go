package hfsm

import (
	"sync/atomic"
	"time"
)

// ActiveMachine processes events on a dedicated worker goroutine. Fire and
// FirePriority only enqueue and are safe to call from any goroutine; the
// worker fires the events one at a time, in queue order.
//
// Terminate waits for the worker to finish the event in hand. Calling it
// from inside an action therefore blocks until the join timeout expires.
type ActiveMachine[S, E comparable] struct {
	*driver[S, E]
	pollInterval time.Duration
	joinTimeout  time.Duration
	done         chan struct{}
	launched     atomic.Bool
}

// NewActiveMachine creates an active driver around a new machine instance
func NewActiveMachine[S, E comparable](def *Definition[S, E], opts ...Option) *ActiveMachine[S, E] {
	d := newDriver(def, "active", opts)
	return &ActiveMachine[S, E]{
		driver:       d,
		pollInterval: d.opts.pollInterval,
		joinTimeout:  d.opts.joinTimeout,
		done:         make(chan struct{}),
	}
}

// Start launches the worker goroutine. The initial state is entered on the
// worker before the first event.
func (a *ActiveMachine[S, E]) Start() error {
	if err := a.start(); err != nil {
		return err
	}
	a.logger.Info("active state machine started")
	a.machine.def.observers.NotifyMachineStarted(a.machine)
	a.queue.acquire()
	a.launched.Store(true)
	go a.run()
	return nil
}

// Fire queues an event at the tail of the queue
func (a *ActiveMachine[S, E]) Fire(event E, args ...any) error {
	if err := a.checkFire("Fire"); err != nil {
		return err
	}
	a.queue.push(event, args)
	return nil
}

// FirePriority queues an event at the head of the queue
func (a *ActiveMachine[S, E]) FirePriority(event E, args ...any) error {
	if err := a.checkFire("FirePriority"); err != nil {
		return err
	}
	a.queue.pushFront(event, args)
	return nil
}

// Terminate stops dequeuing and waits up to the join timeout for the worker
// to exit the active states. A worker that does not stop in time is
// abandoned. Calling Terminate again does nothing.
func (a *ActiveMachine[S, E]) Terminate() error {
	previous := a.stop()
	if previous == Terminated {
		return nil
	}
	a.queue.close()
	if previous == Created {
		a.logger.Info("state machine terminated before start")
		return nil
	}

	timer := time.NewTimer(a.joinTimeout)
	defer timer.Stop()
	select {
	case <-a.done:
	case <-timer.C:
		a.logger.WithField("timeout", a.joinTimeout.String()).Warn("worker did not stop in time, abandoning it")
	}
	return nil
}

// IsIdle returns true when nothing is queued and the worker is not firing
func (a *ActiveMachine[S, E]) IsIdle() bool {
	return a.queue.idle()
}

// Passivate terminates the driver and returns a snapshot of the machine.
// When the worker does not stop within the join timeout, which is always the
// case when called from an action, the driver stays terminated and
// Passivate fails with ErrBusy.
func (a *ActiveMachine[S, E]) Passivate() (Snapshot[S], error) {
	return a.passivate(a.Terminate, a.stopped)
}

// stopped reports whether the worker exited or was never launched.
func (a *ActiveMachine[S, E]) stopped() bool {
	if !a.launched.Load() {
		return true
	}
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

func (a *ActiveMachine[S, E]) run() {
	defer close(a.done)

	a.enterPending()
	a.queue.release()

	for a.IsRunning() {
		qe, ok := a.queue.popWait(a.pollInterval)
		if !ok {
			continue
		}
		a.process(qe)
		a.queue.release()
	}
	a.finish()
}
