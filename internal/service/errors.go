package service

import "errors"

// Op identifies which operation of a component failed.
type Op string

const (
	OpLoad   Op = "load"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

var (
	ErrNotAuthenticated = errors.New("user not authenticated")
	ErrNoWorkspace      = errors.New("user not authenticated or no workspace selected")
	ErrAccessDenied     = errors.New("access denied")
)

// OpError is a LoadError, CreateError, UpdateError or DeleteError depending
// on Op. The cause is not classified further; Error returns its message.
type OpError struct {
	Op       Op
	Resource string
	Err      error
}

func (e *OpError) Error() string {
	if e.Err == nil || e.Err.Error() == "" {
		return "failed to " + string(e.Op) + " " + e.Resource
	}
	return e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// IsOp reports whether err is an OpError for op.
func IsOp(err error, op Op) bool {
	var opErr *OpError
	return errors.As(err, &opErr) && opErr.Op == op
}

func newOpError(op Op, resource string, err error) *OpError {
	return &OpError{Op: op, Resource: resource, Err: err}
}
