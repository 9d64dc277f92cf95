package bsonjs

// Warning describes a malformed input that was replaced by a safe default.
type Warning struct {
	// Kind is ErrMalformedBinaryTag or ErrMalformedTimestamp.
	Kind error
	// Key is the property or index the string was found under, when known.
	Key   string
	Input string
	Err   error
}

// Logger records recovered conversion problems.
type Logger interface {
	LogWarning(Warning)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Warning)

// LogWarning implements Logger.
func (f LoggerFunc) LogWarning(w Warning) {
	if f != nil {
		f(w)
	}
}

type noopLogger struct{}

func (noopLogger) LogWarning(Warning) {}
