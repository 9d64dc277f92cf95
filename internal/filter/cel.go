package filter

import (
	celgo "github.com/google/cel-go/cel"
)

type celMatcher struct {
	program celgo.Program
}

func compileCEL(expression string) (*celMatcher, error) {
	env, err := celgo.NewEnv(
		celgo.Variable("path", celgo.StringType),
		celgo.Variable("manifest", celgo.DynType),
		celgo.Variable("state", celgo.DynType),
	)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	return &celMatcher{program: prg}, nil
}

func (m *celMatcher) eval(rec Record) (any, error) {
	out, _, err := m.program.Eval(environment(rec))
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}
