package filter

import "time"

// Outcomes reported by Evaluation.Outcome.
const (
	OutcomeMatched  = "matched"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Evaluation describes one filter decision about a topic record.
type Evaluation struct {
	Engine   string
	Expr     string
	Path     string
	Matched  bool
	Duration time.Duration
	Err      error
}

// Outcome classifies the decision. A failed evaluation never matches.
func (e Evaluation) Outcome() string {
	switch {
	case e.Err != nil:
		return OutcomeFailed
	case e.Matched:
		return OutcomeMatched
	default:
		return OutcomeRejected
	}
}

// Logger records filter decisions.
type Logger interface {
	LogEvaluation(Evaluation)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Evaluation)

// LogEvaluation implements Logger.
func (f LoggerFunc) LogEvaluation(event Evaluation) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogEvaluation(Evaluation) {}
