package hfsm

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// RunningState is the lifecycle state of a driver. It only ever moves
// forward: Created, then Running, then Terminated.
type RunningState int

const (
	// Created is the state of a driver that was not started yet
	Created RunningState = iota
	// Running is the state of a started driver
	Running
	// Terminated is the final state of a driver
	Terminated
)

// String returns a string representation of the running state
func (r RunningState) String() string {
	switch r {
	case Created:
		return "Created"
	case Running:
		return "Running"
	case Terminated:
		return "Terminated"
	default:
		return fmt.Sprintf("RunningState(%d)", int(r))
	}
}

// Driver is the event-queue front end that feeds a Machine. PassiveMachine
// and ActiveMachine are interchangeable through it.
type Driver[S, E comparable] interface {
	// Initialize sets the state entered when the driver starts
	Initialize(state S) error
	// Start moves the driver to Running and begins processing events
	Start() error
	// Terminate stops processing and exits all active states
	Terminate() error
	// Fire queues an event at the tail of the queue
	Fire(event E, args ...any) error
	// FirePriority queues an event at the head of the queue
	FirePriority(event E, args ...any) error
	NumberOfQueuedEvents() int
	IsIdle() bool
	IsRunning() bool
	RunningState() RunningState
	CurrentState() S
	Machine() *Machine[S, E]
	AddObserver(observer Observer[S, E])
	RemoveObserver(observer Observer[S, E])
	Report() string
	// Passivate terminates the driver and returns a snapshot of the machine.
	// It fails with ErrBusy while an event is still being processed.
	Passivate() (Snapshot[S], error)
	// Activate restores a snapshot instead of calling Initialize
	Activate(snap Snapshot[S]) error
}

// driver holds what both drivers share: the machine, its queue and the
// lifecycle bookkeeping.
type driver[S, E comparable] struct {
	machine *Machine[S, E]
	queue   *eventQueue[E]
	logger  logrus.FieldLogger
	opts    *options

	mutex      sync.Mutex
	state      RunningState
	pending    S
	hasPending bool
}

func newDriver[S, E comparable](def *Definition[S, E], kind string, opts []Option) *driver[S, E] {
	o := newOptions(opts)
	m := newMachine(def, o)
	return &driver[S, E]{
		machine: m,
		queue:   newEventQueue[E](),
		logger:  m.logger.WithField("driver", kind),
		opts:    o,
	}
}

// Initialize records the initial state. The state is entered when the
// driver starts, on the goroutine that processes events.
func (d *driver[S, E]) Initialize(state S) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.state == Terminated {
		return protocolError(ErrTerminated, "Initialize")
	}
	if d.hasPending || d.machine.IsInitialized() {
		return protocolError(ErrAlreadyInitialized, "Initialize")
	}
	if _, ok := d.machine.def.index[state]; !ok {
		return NewStateNotFoundError(state)
	}
	d.pending = state
	d.hasPending = true
	return nil
}

// Activate restores a passivated snapshot. It replaces Initialize and must
// be called before Start.
func (d *driver[S, E]) Activate(snap Snapshot[S]) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	switch d.state {
	case Running:
		return protocolError(ErrAlreadyStarted, "Activate")
	case Terminated:
		return protocolError(ErrTerminated, "Activate")
	}
	if d.hasPending {
		return protocolError(ErrAlreadyInitialized, "Activate")
	}
	if err := d.machine.Restore(snap); err != nil {
		return err
	}
	d.logger.WithField("state", fmt.Sprint(snap.CurrentState)).Info("state machine activated")
	return nil
}

// Machine returns the underlying machine instance
func (d *driver[S, E]) Machine() *Machine[S, E] {
	return d.machine
}

// CurrentState returns the current leaf state of the machine
func (d *driver[S, E]) CurrentState() S {
	return d.machine.CurrentState()
}

// NumberOfQueuedEvents returns how many events wait in the queue
func (d *driver[S, E]) NumberOfQueuedEvents() int {
	return d.queue.len()
}

// RunningState returns the lifecycle state of the driver
func (d *driver[S, E]) RunningState() RunningState {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.state
}

// IsRunning returns true between Start and Terminate
func (d *driver[S, E]) IsRunning() bool {
	return d.RunningState() == Running
}

// AddObserver subscribes to the notifications of the machine definition
func (d *driver[S, E]) AddObserver(observer Observer[S, E]) {
	d.machine.def.AddObserver(observer)
}

// RemoveObserver unsubscribes an observer
func (d *driver[S, E]) RemoveObserver(observer Observer[S, E]) {
	d.machine.def.RemoveObserver(observer)
}

// Report returns a plain-text description of the definition and the
// current status of this driver and its machine
func (d *driver[S, E]) Report() string {
	return report(d.machine, d.RunningState().String(), d.queue.pending())
}

// checkFire rejects events the driver could never process.
func (d *driver[S, E]) checkFire(op string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.state == Terminated {
		return protocolError(ErrTerminated, op)
	}
	if !d.hasPending && !d.machine.IsInitialized() {
		return protocolError(ErrNotInitialized, op)
	}
	return nil
}

// start moves Created to Running.
func (d *driver[S, E]) start() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	switch d.state {
	case Running:
		return protocolError(ErrAlreadyStarted, "Start")
	case Terminated:
		return protocolError(ErrTerminated, "Start")
	}
	if !d.hasPending && !d.machine.IsInitialized() {
		return protocolError(ErrNotInitialized, "Start")
	}
	d.state = Running
	return nil
}

// stop moves the driver to Terminated and returns the state it left.
func (d *driver[S, E]) stop() RunningState {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	previous := d.state
	d.state = Terminated
	return previous
}

// enterPending enters the state recorded by Initialize, if any.
func (d *driver[S, E]) enterPending() {
	d.mutex.Lock()
	state, ok := d.pending, d.hasPending
	d.mutex.Unlock()
	if !ok {
		return
	}
	if _, err := d.machine.Initialize(state); err != nil {
		d.logger.WithError(err).Error("failed to initialize state machine")
	}
	d.mutex.Lock()
	d.hasPending = false
	d.mutex.Unlock()
}

func (d *driver[S, E]) process(qe queuedEvent[E]) {
	if _, err := d.machine.fire(qe); err != nil {
		d.logger.WithError(err).WithField("event", fmt.Sprint(qe.event)).Warn("event dropped")
	}
}

// finish exits all active states and tells observers the machine stopped.
func (d *driver[S, E]) finish() {
	d.machine.Terminate()
	d.machine.def.observers.NotifyMachineStopped(d.machine)
	d.logger.Info("state machine terminated")
}

// passivate terminates and snapshots the machine. The snapshot is refused
// with ErrBusy when an event is still being processed after terminate
// returns.
func (d *driver[S, E]) passivate(terminate func() error, stopped func() bool) (Snapshot[S], error) {
	if err := terminate(); err != nil {
		return Snapshot[S]{}, err
	}
	if !stopped() {
		return Snapshot[S]{}, protocolError(ErrBusy, "Passivate")
	}
	return d.machine.Snapshot()
}

var (
	_ Driver[string, string] = (*PassiveMachine[string, string])(nil)
	_ Driver[string, string] = (*ActiveMachine[string, string])(nil)
)
