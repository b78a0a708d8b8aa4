package radclient

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/openradius/authstorm/internal/metrics"
)

// ExchangeError is a failed exchange tagged with its error class.
type ExchangeError struct {
	Class string
	Err   error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("radius %s: %v", e.Class, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// ErrorClass implements metrics.Classifier.
func (e *ExchangeError) ErrorClass() string { return e.Class }

// classifyExchange tags err. A deadline on the call context wins over whatever
// the transport reported when the socket was torn down.
func classifyExchange(callCtx context.Context, err error) *ExchangeError {
	switch {
	case errors.Is(callCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return &ExchangeError{Class: metrics.ErrorClassTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &ExchangeError{Class: metrics.ErrorClassCanceled, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &ExchangeError{Class: metrics.ErrorClassTimeout, Err: err}
		}
		return &ExchangeError{Class: metrics.ErrorClassNetwork, Err: err}
	}
	// Parse failures and non-authentic responses.
	return &ExchangeError{Class: metrics.ErrorClassMalformed, Err: err}
}
