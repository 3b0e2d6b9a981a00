package feature

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput marks a transaction that cannot take part in window aggregation.
	ErrMalformedInput = errors.New("malformed input")
	// ErrConfiguration marks invalid window or delay settings.
	ErrConfiguration = errors.New("invalid feature configuration")
)

// Pass names an entity grouping pass.
type Pass string

const (
	PassCustomer Pass = "customer"
	PassTerminal Pass = "terminal"
)

// GroupError reports a failed entity group.
type GroupError struct {
	Pass          Pass
	Key           int64
	TransactionID int64
	Err           error
}

func (e *GroupError) Error() string {
	return fmt.Sprintf("%s %d: transaction %d: %v", e.Pass, e.Key, e.TransactionID, e.Err)
}

func (e *GroupError) Unwrap() error {
	return e.Err
}

// Malformed builds an ErrMalformedInput error with a reason.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}
