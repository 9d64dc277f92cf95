package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/enviriot/bsonjs"
)

// Engine names accepted by New.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// Record is the view of a topic an expression is evaluated against.
type Record struct {
	Path     string
	Manifest bsonjs.Value
	State    bsonjs.Value
}

// Filter decides whether a topic record is migrated.
type Filter interface {
	Match(rec Record) (bool, error)
}

// Option configures a filter.
type Option func(*config)

type config struct {
	logger Logger
}

// WithLogger records every evaluation.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

func applyOptions(opts []Option) config {
	cfg := config{logger: noopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Engines lists the engine names New understands.
func Engines() []string {
	return []string{EngineExpr, EngineCEL, EngineJS}
}

// New compiles expression for engine. An empty expression matches every
// record regardless of engine.
func New(engine, expression string, opts ...Option) (Filter, error) {
	cfg := applyOptions(opts)
	engine = strings.ToLower(strings.TrimSpace(engine))
	if engine == "" {
		engine = EngineExpr
	}
	if strings.TrimSpace(expression) == "" {
		switch engine {
		case EngineExpr, EngineCEL, EngineJS:
			return matchAll{}, nil
		}
	}

	var (
		m   matcher
		err error
	)
	switch engine {
	case EngineExpr:
		m, err = compileExpr(expression)
	case EngineCEL:
		m, err = compileCEL(expression)
	case EngineJS:
		m, err = compileJS(expression)
	default:
		return nil, fmt.Errorf("filter: unknown engine %q", engine)
	}
	if err != nil {
		return nil, wrapEvaluationError(engine, expression, "", err)
	}
	return &compiled{engine: engine, expression: expression, matcher: m, logger: cfg.logger}, nil
}

// MatchAll returns a filter that accepts every record.
func MatchAll() Filter {
	return matchAll{}
}

type matchAll struct{}

func (matchAll) Match(Record) (bool, error) { return true, nil }

type matcher interface {
	eval(rec Record) (any, error)
}

type compiled struct {
	engine     string
	expression string
	matcher    matcher
	logger     Logger
}

func (c *compiled) Match(rec Record) (bool, error) {
	start := time.Now()
	out, err := c.matcher.eval(rec)
	if err == nil {
		if _, ok := out.(bool); !ok {
			err = fmt.Errorf("expected bool result, got %T", out)
		}
	}
	err = wrapEvaluationError(c.engine, c.expression, rec.Path, err)
	matched := err == nil && out.(bool)
	c.logger.LogEvaluation(Evaluation{
		Engine:   c.engine,
		Expr:     c.expression,
		Path:     rec.Path,
		Matched:  matched,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return false, err
	}
	return matched, nil
}

// environment exposes the record as plain Go values. An undefined state is
// nil.
func environment(rec Record) map[string]any {
	return map[string]any{
		"path":     rec.Path,
		"manifest": rec.Manifest.Export(),
		"state":    rec.State.Export(),
	}
}
