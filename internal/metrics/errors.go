package metrics

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Error classes used in breakdowns.
const (
	ErrorClassTimeout   = "timeout"
	ErrorClassCanceled  = "canceled"
	ErrorClassNetwork   = "network"
	ErrorClassMalformed = "malformed"
	ErrorClassOther     = "other"
)

// Classifier lets an error name its own class.
type Classifier interface {
	ErrorClass() string
}

var friendlyClassNames = map[string]string{
	ErrorClassTimeout:   "Request timed out",
	ErrorClassCanceled:  "Attempt canceled",
	ErrorClassNetwork:   "Network error",
	ErrorClassMalformed: "Malformed response",
	ErrorClassOther:     "Other error",
}

// ClassifyError buckets a protocol error. A nil error is classed as other.
func ClassifyError(err error) string {
	if err == nil {
		return ErrorClassOther
	}

	var c Classifier
	if errors.As(err, &c) {
		if class := strings.TrimSpace(c.ErrorClass()); class != "" {
			return class
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorClassTimeout
	case errors.Is(err, context.Canceled):
		return ErrorClassCanceled
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorClassTimeout
		}
		return ErrorClassNetwork
	}
	return ErrorClassOther
}

// FriendlyErrorName returns a human-friendly label for an error class.
func FriendlyErrorName(class string) string {
	cleaned := strings.ToLower(strings.TrimSpace(class))
	if cleaned == "" {
		return "Unknown error"
	}
	if name, ok := friendlyClassNames[cleaned]; ok {
		return name
	}
	return strings.ToUpper(cleaned[:1]) + cleaned[1:]
}
