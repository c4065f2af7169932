// Package observers provides observers for monitoring state machine events
package observers

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/anggasct/hfsm"
)

// LoggingObserver writes every notification to a logrus logger. Transitions
// and lifecycle events are logged at Info, state entry and exit at Debug and
// caught errors at Error.
type LoggingObserver[S, E comparable] struct {
	logger logrus.FieldLogger
}

// NewLoggingObserver creates a new logging observer. A non-empty prefix is
// added to every entry as the "component" field.
func NewLoggingObserver[S, E comparable](logger logrus.FieldLogger, prefix string) *LoggingObserver[S, E] {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if prefix != "" {
		logger = logger.WithField("component", prefix)
	}
	return &LoggingObserver[S, E]{logger: logger}
}

func (o *LoggingObserver[S, E]) entry(ctx *hfsm.Context[S, E]) logrus.FieldLogger {
	fields := logrus.Fields{
		"machine": ctx.Machine().Name(),
		"state":   fmt.Sprint(ctx.State()),
	}
	if event, ok := ctx.Event(); ok {
		fields["event"] = fmt.Sprint(event)
		fields["event_id"] = ctx.EventID().String()
	}
	return o.logger.WithFields(fields)
}

// OnTransitionBegin logs the accepted event
func (o *LoggingObserver[S, E]) OnTransitionBegin(ctx *hfsm.Context[S, E]) {
	o.entry(ctx).Debug("transition begin")
}

// OnTransitionCompleted logs transitions
func (o *LoggingObserver[S, E]) OnTransitionCompleted(ctx *hfsm.Context[S, E], newState S) {
	o.entry(ctx).WithField("to", fmt.Sprint(newState)).Info("transition completed")
}

// OnTransitionDeclined logs events nobody accepted
func (o *LoggingObserver[S, E]) OnTransitionDeclined(ctx *hfsm.Context[S, E]) {
	o.entry(ctx).Info("transition declined")
}

// OnError logs errors
func (o *LoggingObserver[S, E]) OnError(ctx *hfsm.Context[S, E], err error) {
	o.entry(ctx).WithError(err).Error("state machine error")
}

// OnStateEnter logs state entry
func (o *LoggingObserver[S, E]) OnStateEnter(ctx *hfsm.Context[S, E], state S) {
	o.entry(ctx).WithField("entered", fmt.Sprint(state)).Debug("entering state")
}

// OnStateExit logs state exit
func (o *LoggingObserver[S, E]) OnStateExit(ctx *hfsm.Context[S, E], state S) {
	o.entry(ctx).WithField("exited", fmt.Sprint(state)).Debug("exiting state")
}

// OnMachineStarted logs driver start
func (o *LoggingObserver[S, E]) OnMachineStarted(m *hfsm.Machine[S, E]) {
	o.logger.WithFields(logrus.Fields{"machine": m.Name(), "instance": m.ID().String()}).Info("state machine started")
}

// OnMachineStopped logs driver termination
func (o *LoggingObserver[S, E]) OnMachineStopped(m *hfsm.Machine[S, E]) {
	o.logger.WithFields(logrus.Fields{"machine": m.Name(), "instance": m.ID().String()}).Info("state machine stopped")
}
