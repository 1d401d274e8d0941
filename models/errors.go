package models

import "fmt"

// ErrorKind categorizes controller errors for edge translation and logging.
type ErrorKind string

const (
	// KindInvalidInput covers malformed requests, unknown deployments, duplicate creates.
	KindInvalidInput ErrorKind = "invalid_input"

	// KindInvalidDefinition covers canonicalization failures.
	KindInvalidDefinition ErrorKind = "invalid_definition"

	// KindInvalidState covers illegal state transitions.
	KindInvalidState ErrorKind = "invalid_state"

	// KindDeployError covers recoverable failures during a deploy operation.
	KindDeployError ErrorKind = "deploy_error"

	// KindFatal covers unexpected, programming-error-class failures.
	KindFatal ErrorKind = "fatal"
)

// ControllerError is the core error type. Every error the controller
// produces carries a Kind so the HTTP edge and logs can classify it
// without string matching.
type ControllerError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ControllerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ControllerError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a ControllerError of the same Kind, so
// callers can use errors.Is(err, &ControllerError{Kind: KindInvalidState}).
func (e *ControllerError) Is(target error) bool {
	t, ok := target.(*ControllerError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind ErrorKind, msg string, err error) *ControllerError {
	return &ControllerError{Kind: kind, Msg: msg, Err: err}
}

// InvalidInput builds a KindInvalidInput error.
func InvalidInput(msg string) *ControllerError { return newErr(KindInvalidInput, msg, nil) }

// InvalidInputf builds a KindInvalidInput error with wrapped cause.
func InvalidInputf(msg string, err error) *ControllerError { return newErr(KindInvalidInput, msg, err) }

// InvalidDefinition builds a KindInvalidDefinition error.
func InvalidDefinition(msg string) *ControllerError { return newErr(KindInvalidDefinition, msg, nil) }

// InvalidState builds a KindInvalidState error.
func InvalidState(msg string) *ControllerError { return newErr(KindInvalidState, msg, nil) }

// DeployError builds a KindDeployError error.
func DeployError(msg string, err error) *ControllerError { return newErr(KindDeployError, msg, err) }

// Fatal builds a KindFatal error.
func Fatal(msg string, err error) *ControllerError { return newErr(KindFatal, msg, err) }

// ErrAlreadyExists is returned by CreateDeployment when the id exists and fail=true.
var ErrAlreadyExists = InvalidInput("deployment already exists")

// ErrNoSuchDeployment is returned when an operation targets an unknown deployment id.
var ErrNoSuchDeployment = InvalidInput("no such deployment")

// ErrDependencyCycle is returned by the requires plugin when it detects a cycle.
func ErrDependencyCycle(chain string) *ControllerError {
	return DeployError(fmt.Sprintf("dependency cycle: %s", chain), nil)
}
