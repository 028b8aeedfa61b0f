package behaviour

import (
	"errors"
	"fmt"

	"github.com/roach88/rgraph/internal/typeid"
)

// TransitionErrorCode categorizes transition failures.
type TransitionErrorCode string

const (
	// ErrCodeInvalidTransition indicates the target state is not reachable
	// from the current state, or the behaviour does not exist.
	ErrCodeInvalidTransition TransitionErrorCode = "INVALID_TRANSITION"

	// ErrCodeBehaviourInvalid indicates the validator rejected the instance.
	ErrCodeBehaviourInvalid TransitionErrorCode = "BEHAVIOUR_INVALID"

	// ErrCodeInitializationFailed indicates the init hook failed.
	ErrCodeInitializationFailed TransitionErrorCode = "BEHAVIOUR_INITIALIZATION_FAILED"

	// ErrCodeConnectFailed indicates the connect hook failed or the
	// behaviour to connect does not exist.
	ErrCodeConnectFailed TransitionErrorCode = "BEHAVIOUR_CONNECT_FAILED"

	// ErrCodeDisconnectFailed indicates the disconnect hook failed or the
	// behaviour to disconnect does not exist.
	ErrCodeDisconnectFailed TransitionErrorCode = "BEHAVIOUR_DISCONNECT_FAILED"
)

// Sentinels for errors.Is matching against a TransitionError's code.
var (
	ErrInvalidTransition       = errors.New("invalid transition")
	ErrBehaviourInvalid        = errors.New("behaviour invalid")
	ErrInitializationFailed    = errors.New("behaviour initialization failed")
	ErrConnectFailed           = errors.New("behaviour connect failed")
	ErrDisconnectFailed        = errors.New("behaviour disconnect failed")
	ErrBehaviourNotFound       = errors.New("behaviour not found")
	ErrBehaviourAlreadyApplied = errors.New("behaviour already applied")
)

var sentinelByCode = map[TransitionErrorCode]error{
	ErrCodeInvalidTransition:    ErrInvalidTransition,
	ErrCodeBehaviourInvalid:     ErrBehaviourInvalid,
	ErrCodeInitializationFailed: ErrInitializationFailed,
	ErrCodeConnectFailed:        ErrConnectFailed,
	ErrCodeDisconnectFailed:     ErrDisconnectFailed,
}

// TransitionError is returned by FSM transitions and manager operations.
type TransitionError struct {
	// Code identifies the failure category.
	Code TransitionErrorCode

	// BehaviourType is the behaviour whose transition failed.
	BehaviourType typeid.BehaviourTypeID

	// From and To are the states of the requested transition. Both are
	// zero when the behaviour was not found.
	From State
	To   State

	// Err is the hook error, if any.
	Err error
}

func (e *TransitionError) Error() string {
	if errors.Is(e.Err, ErrBehaviourNotFound) {
		return fmt.Sprintf("%s: behaviour %s not found", e.Code, e.BehaviourType)
	}
	msg := fmt.Sprintf("%s: %s (%s -> %s)", e.Code, e.BehaviourType, e.From, e.To)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the hook error.
func (e *TransitionError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's code.
func (e *TransitionError) Is(target error) bool {
	return sentinelByCode[e.Code] == target
}

func newTransitionError(code TransitionErrorCode, ty typeid.BehaviourTypeID, from, to State, err error) *TransitionError {
	return &TransitionError{Code: code, BehaviourType: ty, From: from, To: to, Err: err}
}

func hasCode(err error, code TransitionErrorCode) bool {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// IsInvalidTransition reports whether err is an InvalidTransition error.
func IsInvalidTransition(err error) bool { return hasCode(err, ErrCodeInvalidTransition) }

// IsBehaviourInvalid reports whether err is a validation failure.
func IsBehaviourInvalid(err error) bool { return hasCode(err, ErrCodeBehaviourInvalid) }

// IsInitializationFailed reports whether err is an init failure.
func IsInitializationFailed(err error) bool { return hasCode(err, ErrCodeInitializationFailed) }

// IsConnectFailed reports whether err is a connect failure.
func IsConnectFailed(err error) bool { return hasCode(err, ErrCodeConnectFailed) }

// IsDisconnectFailed reports whether err is a disconnect failure.
func IsDisconnectFailed(err error) bool { return hasCode(err, ErrCodeDisconnectFailed) }

// CreationError is returned when a factory cannot create a behaviour.
type CreationError struct {
	BehaviourType typeid.BehaviourTypeID
	Instance      string
	Err           error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("create behaviour %s on %s: %v", e.BehaviourType, e.Instance, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}
