package filter

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// exprMatcher runs expressions with github.com/expr-lang/expr.
type exprMatcher struct {
	program *exprvm.Program
}

func compileExpr(expression string) (*exprMatcher, error) {
	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, err
	}
	return &exprMatcher{program: program}, nil
}

func (m *exprMatcher) eval(rec Record) (any, error) {
	return exprlang.Run(m.program, environment(rec))
}
