package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by where they stop the client.
type ErrorKind int

const (
	// KindConnection aborts the whole run.
	KindConnection ErrorKind = iota + 1
	// KindTopology prevents the dependent loop from starting.
	KindTopology
	// KindProduce is scoped to a single batch; the loop continues.
	KindProduce
	// KindPoll terminates the consumption loop.
	KindPoll
	// KindHandler terminates the consumption loop.
	KindHandler
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTopology:
		return "topology"
	case KindProduce:
		return "produce"
	case KindPoll:
		return "poll"
	case KindHandler:
		return "handler"
	default:
		return "unknown"
	}
}

// Error is returned at iteration boundaries.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err, or 0 when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsFatal reports whether err should abort the whole run.
func IsFatal(err error) bool {
	k := KindOf(err)
	return k == KindConnection || k == KindTopology
}
