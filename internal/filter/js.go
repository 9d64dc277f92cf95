package filter

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/enviriot/bsonjs"
)

// jsMatcher runs expressions with goja. Manifest, state and the result go
// through the script bridge so dates, blobs and holes keep their script shape.
type jsMatcher struct {
	program *goja.Program
}

func compileJS(expression string) (*jsMatcher, error) {
	program, err := goja.Compile("filter", wrapExpression(expression), false)
	if err != nil {
		return nil, err
	}
	return &jsMatcher{program: program}, nil
}

func (m *jsMatcher) eval(rec Record) (any, error) {
	vm := goja.New()
	if err := vm.Set("path", rec.Path); err != nil {
		return nil, err
	}
	for name, val := range map[string]bsonjs.Value{"manifest": rec.Manifest, "state": rec.State} {
		sv, err := bsonjs.ToScript(vm, val)
		if err != nil {
			return nil, fmt.Errorf("inject %s: %w", name, err)
		}
		if err := vm.Set(name, sv); err != nil {
			return nil, err
		}
	}
	value, err := vm.RunProgram(m.program)
	if err != nil {
		return nil, err
	}
	result, err := bsonjs.FromScript(value)
	if err != nil {
		return nil, fmt.Errorf("result: %w", err)
	}
	return result.Export(), nil
}

func wrapExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}
