package observers

import "github.com/sirupsen/logrus"

// NewDefaultLoggingObserver creates a logging observer writing to the logrus
// standard logger
func NewDefaultLoggingObserver[S, E comparable]() *LoggingObserver[S, E] {
	return NewLoggingObserver[S, E](logrus.StandardLogger(), "StateMachine")
}
