// Package fault defines the stable error codes shared by the pin core.
// Every condition here is recoverable: callers log it and carry on.
package fault

import "errors"

// Code is a stable, comparable error identifier.
type Code string

func (c Code) Error() string { return string(c) }

const (
	OutOfRange        Code = "out_of_range"
	AlreadySubscribed Code = "already_subscribed"
	NotSubscribed     Code = "not_subscribed"
	BusFailure        Code = "bus_failure"
	ListenerFault     Code = "listener_fault"
	Unsupported       Code = "unsupported"

	Error Code = "error" // generic fallback
)

// E wraps a Code with the failing operation and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, fault.OutOfRange) match a wrapped code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// New builds an *E for op.
func New(c Code, op, msg string) error {
	return &E{C: c, Op: op, Msg: msg}
}

// Wrap attaches a code to a lower-level error. A nil err stays nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// Of extracts the Code from err, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return ""
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	return Error
}
