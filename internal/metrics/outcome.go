package metrics

import "time"

// Outcome is the terminal state of one authentication attempt.
type Outcome int

const (
	OutcomeAccept Outcome = iota
	OutcomeReject
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccept:
		return "accept"
	case OutcomeReject:
		return "reject"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is produced once per attempt and recorded into exactly one phase.
// Err is only set for OutcomeError and is kept for classification and logging.
type Result struct {
	Latency time.Duration
	Outcome Outcome
	Err     error
}

// Sink receives attempt results. Implementations must be safe for concurrent use.
type Sink interface {
	Record(r Result)
}

type teeSink []Sink

func (t teeSink) Record(r Result) {
	for _, s := range t {
		s.Record(r)
	}
}

// Tee fans a result out to every non-nil sink in order.
func Tee(sinks ...Sink) Sink {
	out := make(teeSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
