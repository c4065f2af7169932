package hfsm

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in the state machine
type ErrorCode int

const (
	// No error occurred
	ErrCodeNone ErrorCode = iota
	// State was not found in the definition
	ErrCodeStateNotFound
	// Guard condition failed while being evaluated
	ErrCodeGuardFailed
	// Action execution failed
	ErrCodeActionFailed
	// Definition configuration is invalid
	ErrCodeInvalidConfiguration
	// Machine has not been initialized
	ErrCodeNotInitialized
	// Machine was already initialized
	ErrCodeAlreadyInitialized
	// Driver was already started
	ErrCodeAlreadyStarted
	// Driver has been terminated
	ErrCodeTerminated
	// Snapshot does not match the definition
	ErrCodeInvalidSnapshot
	// Driver is in the middle of processing an event
	ErrCodeBusy
)

// Protocol errors returned synchronously to the caller.
var (
	ErrNotInitialized     = NewMachineError(ErrCodeNotInitialized, "", "state machine is not initialized")
	ErrAlreadyInitialized = NewMachineError(ErrCodeAlreadyInitialized, "", "state machine is already initialized")
	ErrAlreadyStarted     = NewMachineError(ErrCodeAlreadyStarted, "", "state machine was already started")
	ErrTerminated         = NewMachineError(ErrCodeTerminated, "", "state machine is terminated")
	ErrBusy               = NewMachineError(ErrCodeBusy, "", "state machine is processing an event")
)

// StateError represents state-related errors
type StateError struct {
	Code    ErrorCode
	StateID string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state error [%s]: %s", e.StateID, e.Message)
}

// NewStateNotFoundError creates a new state not found error
func NewStateNotFoundError(stateID any) *StateError {
	id := fmt.Sprint(stateID)
	return &StateError{
		Code:    ErrCodeStateNotFound,
		StateID: id,
		Message: fmt.Sprintf("state '%s' not found", id),
	}
}

// NewStateError creates a new state error with custom values
func NewStateError(code ErrorCode, stateID any, message string) *StateError {
	return &StateError{
		Code:    code,
		StateID: fmt.Sprint(stateID),
		Message: message,
	}
}

// ConfigurationError represents definition configuration issues. It is only
// ever produced while a definition is being built.
type ConfigurationError struct {
	Component string
	Issue     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Issue)
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(component any, issue string) *ConfigurationError {
	return &ConfigurationError{
		Component: fmt.Sprint(component),
		Issue:     issue,
	}
}

// MachineError represents a protocol violation such as firing before
// initialization or starting a driver twice.
type MachineError struct {
	Code      ErrorCode
	Operation string
	Message   string
}

func (e *MachineError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("machine error: %s", e.Message)
	}
	return fmt.Sprintf("machine error during %s: %s", e.Operation, e.Message)
}

// Is reports whether target is a MachineError with the same code, so that
// errors carrying an operation still match the package sentinels.
func (e *MachineError) Is(target error) bool {
	t, ok := target.(*MachineError)
	return ok && t.Code == e.Code
}

// NewMachineError creates a new machine error
func NewMachineError(code ErrorCode, operation string, message string) *MachineError {
	return &MachineError{
		Code:      code,
		Operation: operation,
		Message:   message,
	}
}

// protocolError derives an operation-specific error from a sentinel.
func protocolError(sentinel *MachineError, operation string) *MachineError {
	return NewMachineError(sentinel.Code, operation, sentinel.Message)
}

// GuardError represents a guard that failed while being evaluated
type GuardError struct {
	State       string
	Event       string
	OriginalErr error
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guard failed in state '%s' on event '%s': %v", e.State, e.Event, e.OriginalErr)
}

func (e *GuardError) Unwrap() error {
	return e.OriginalErr
}

// NewGuardError creates a new guard evaluation error
func NewGuardError(state, event any, err error) *GuardError {
	return &GuardError{
		State:       fmt.Sprint(state),
		Event:       fmt.Sprint(event),
		OriginalErr: err,
	}
}

// ActionKind tells which kind of action failed
type ActionKind string

const (
	EntryAction      ActionKind = "entry"
	ExitAction       ActionKind = "exit"
	TransitionAction ActionKind = "transition"
)

// ActionError represents action execution errors
type ActionError struct {
	Kind        ActionKind
	State       string
	OriginalErr error
}

func (e *ActionError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s action failed in state '%s': %v", e.Kind, e.State, e.OriginalErr)
	}
	return fmt.Sprintf("%s action failed in state '%s'", e.Kind, e.State)
}

func (e *ActionError) Unwrap() error {
	return e.OriginalErr
}

// NewActionError creates a new action execution error
func NewActionError(kind ActionKind, state any, err error) *ActionError {
	return &ActionError{
		Kind:        kind,
		State:       fmt.Sprint(state),
		OriginalErr: err,
	}
}

// IsStateError checks if an error is a StateError
func IsStateError(err error) bool {
	var e *StateError
	return errors.As(err, &e)
}

// IsGuardError checks if an error is a GuardError
func IsGuardError(err error) bool {
	var e *GuardError
	return errors.As(err, &e)
}

// IsConfigurationError checks if an error is a ConfigurationError
func IsConfigurationError(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}

// IsMachineError checks if an error is a MachineError
func IsMachineError(err error) bool {
	var e *MachineError
	return errors.As(err, &e)
}

// IsActionError checks if an error is an ActionError
func IsActionError(err error) bool {
	var e *ActionError
	return errors.As(err, &e)
}

// GetErrorCode returns the error code for known error types
func GetErrorCode(err error) ErrorCode {
	var (
		stateErr   *StateError
		machineErr *MachineError
		guardErr   *GuardError
		configErr  *ConfigurationError
		actionErr  *ActionError
	)
	switch {
	case errors.As(err, &stateErr):
		return stateErr.Code
	case errors.As(err, &machineErr):
		return machineErr.Code
	case errors.As(err, &guardErr):
		return ErrCodeGuardFailed
	case errors.As(err, &configErr):
		return ErrCodeInvalidConfiguration
	case errors.As(err, &actionErr):
		return ErrCodeActionFailed
	default:
		return ErrCodeNone
	}
}
