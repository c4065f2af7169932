package hfsm

// PassiveMachine processes events synchronously on the goroutine that fires
// them. Events fired while the machine is already processing, for example
// from inside an action, are queued and handled by the outer call before it
// returns. A PassiveMachine must not be used from several goroutines at
// once.
type PassiveMachine[S, E comparable] struct {
	*driver[S, E]
	executing bool
	stopping  bool
}

// NewPassiveMachine creates a passive driver around a new machine instance
func NewPassiveMachine[S, E comparable](def *Definition[S, E], opts ...Option) *PassiveMachine[S, E] {
	return &PassiveMachine[S, E]{driver: newDriver(def, "passive", opts)}
}

// Start enters the initial state, if Initialize was used, and processes all
// events queued so far.
func (p *PassiveMachine[S, E]) Start() error {
	if err := p.start(); err != nil {
		return err
	}
	p.logger.Info("passive state machine started")
	p.machine.def.observers.NotifyMachineStarted(p.machine)
	p.execute()
	return nil
}

// Fire queues the event and processes the queue unless a call further up
// the stack is already doing so. Before Start events only accumulate.
func (p *PassiveMachine[S, E]) Fire(event E, args ...any) error {
	if err := p.checkFire("Fire"); err != nil {
		return err
	}
	p.queue.push(event, args)
	p.execute()
	return nil
}

// FirePriority is Fire with the event placed at the head of the queue
func (p *PassiveMachine[S, E]) FirePriority(event E, args ...any) error {
	if err := p.checkFire("FirePriority"); err != nil {
		return err
	}
	p.queue.pushFront(event, args)
	p.execute()
	return nil
}

// Terminate exits all active states. When called from an action, the
// current event completes first. Calling it again does nothing.
func (p *PassiveMachine[S, E]) Terminate() error {
	switch p.stop() {
	case Terminated:
		return nil
	case Created:
		p.queue.close()
		p.logger.Info("state machine terminated before start")
		return nil
	}
	p.queue.close()
	if p.executing {
		p.stopping = true
		return nil
	}
	p.finish()
	return nil
}

// IsIdle returns true when nothing is queued and no event is being processed
func (p *PassiveMachine[S, E]) IsIdle() bool {
	return !p.executing && p.queue.idle()
}

// Passivate terminates the driver and returns a snapshot of the machine.
// Called from inside an action it fails with ErrBusy and leaves the driver
// running.
func (p *PassiveMachine[S, E]) Passivate() (Snapshot[S], error) {
	if p.executing {
		return Snapshot[S]{}, protocolError(ErrBusy, "Passivate")
	}
	return p.passivate(p.Terminate, func() bool { return !p.executing })
}

func (p *PassiveMachine[S, E]) execute() {
	if p.executing || !p.IsRunning() {
		return
	}
	p.executing = true
	defer func() { p.executing = false }()

	p.enterPending()
	for p.IsRunning() {
		qe, ok := p.queue.pop()
		if !ok {
			break
		}
		p.process(qe)
		p.queue.release()
	}
	if p.stopping {
		p.stopping = false
		p.finish()
	}
}
