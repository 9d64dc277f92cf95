package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/enviriot/bsonjs"
)

func sampleRecord() Record {
	manifest := bsonjs.NewMap().
		Set("type", bsonjs.Str("sensor")).
		Set("attr", bsonjs.Obj(bsonjs.NewMap().Set("count", bsonjs.Int(7)))).
		Set("when", bsonjs.Time(time.Date(2015, 9, 16, 0, 0, 0, 0, time.UTC))).
		Set("list", bsonjs.List(bsonjs.Int(1), bsonjs.Value{}, bsonjs.Int(3)))
	return Record{
		Path:     "/plc/boiler",
		Manifest: bsonjs.Obj(manifest),
		State:    bsonjs.Float(21.5),
	}
}

func TestFilterEngines(t *testing.T) {
	cases := []struct {
		engine string
		expr   string
		want   bool
	}{
		{engine: EngineExpr, expr: `path startsWith "/plc/" && manifest.type == "sensor"`, want: true},
		{engine: EngineExpr, expr: `manifest.attr.count > 10`, want: false},
		{engine: EngineExpr, expr: `state > 20`, want: true},
		{engine: EngineCEL, expr: `path.startsWith("/plc/") && manifest.type == "sensor"`, want: true},
		{engine: EngineCEL, expr: `manifest.attr.count == 7`, want: true},
		{engine: EngineCEL, expr: `path == "/other"`, want: false},
		{engine: EngineJS, expr: `path.indexOf("/plc/") === 0 && manifest.type === "sensor"`, want: true},
		{engine: EngineJS, expr: `manifest.when instanceof Date && manifest.when.getUTCFullYear() === 2015`, want: true},
		{engine: EngineJS, expr: `!(1 in manifest.list)`, want: true},
		{engine: EngineJS, expr: `state < 0`, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.engine+"/"+tc.expr, func(t *testing.T) {
			f, err := New(tc.engine, tc.expr)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			got, err := f.Match(sampleRecord())
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Match = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilterEmptyExpressionMatchesAll(t *testing.T) {
	for _, engine := range append(Engines(), "") {
		f, err := New(engine, "  ")
		if err != nil {
			t.Fatalf("New(%q): %v", engine, err)
		}
		ok, err := f.Match(Record{Path: "/x", State: bsonjs.UndefinedValue()})
		if err != nil || !ok {
			t.Fatalf("empty %q filter = %v, %v; want match", engine, ok, err)
		}
	}
}

func TestFilterUnknownEngine(t *testing.T) {
	if _, err := New("lua", "true"); err == nil {
		t.Fatalf("expected unknown engine error")
	}
}

func TestFilterCompileErrors(t *testing.T) {
	for _, engine := range Engines() {
		_, err := New(engine, "path ==")
		var evalErr *EvaluationError
		if !errors.As(err, &evalErr) {
			t.Fatalf("%s: expected EvaluationError, got %v", engine, err)
		}
		if evalErr.Engine != engine || evalErr.Expr != "path ==" {
			t.Fatalf("%s: unexpected metadata %+v", engine, evalErr)
		}
	}
}

func TestFilterNonBooleanResult(t *testing.T) {
	for _, engine := range Engines() {
		f, err := New(engine, "path")
		if err != nil {
			t.Fatalf("%s: New: %v", engine, err)
		}
		_, err = f.Match(sampleRecord())
		var evalErr *EvaluationError
		if !errors.As(err, &evalErr) {
			t.Fatalf("%s: expected EvaluationError, got %v", engine, err)
		}
		if evalErr.Path != "/plc/boiler" {
			t.Fatalf("%s: expected record path in error, got %q", engine, evalErr.Path)
		}
	}
}

func TestFilterLogsEvaluations(t *testing.T) {
	var events []Evaluation
	f, err := New(EngineExpr, `path != ""`, WithLogger(LoggerFunc(func(e Evaluation) {
		events = append(events, e)
	})))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := f.Match(sampleRecord()); err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one evaluation event, got %d", len(events))
	}
	if events[0].Engine != EngineExpr || events[0].Path != "/plc/boiler" || events[0].Err != nil {
		t.Fatalf("unexpected event %+v", events[0])
	}
}

func TestFilterEvaluationOutcome(t *testing.T) {
	cases := []struct {
		expression string
		want       string
	}{
		{expression: `path == "/plc/boiler"`, want: OutcomeMatched},
		{expression: `path == "/plc/pump"`, want: OutcomeRejected},
		{expression: `path`, want: OutcomeFailed},
	}
	for _, tc := range cases {
		var got []Evaluation
		f, err := New(EngineJS, tc.expression, WithLogger(LoggerFunc(func(e Evaluation) {
			got = append(got, e)
		})))
		if err != nil {
			t.Fatalf("New(%s): %v", tc.expression, err)
		}
		matched, _ := f.Match(sampleRecord())
		if len(got) != 1 || got[0].Outcome() != tc.want || got[0].Matched != matched {
			t.Fatalf("%s: unexpected evaluations %+v (matched=%v), want outcome %s", tc.expression, got, matched, tc.want)
		}
	}
}

func TestFilterJSResultThroughScriptBridge(t *testing.T) {
	f, err := New(EngineJS, `manifest.when instanceof Date && manifest.list.length === 3`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if ok, err := f.Match(sampleRecord()); err != nil || !ok {
		t.Fatalf("Match = %v, %v; want true", ok, err)
	}

	f, err = New(EngineJS, `function() { return true; }`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := f.Match(sampleRecord()); !errors.Is(err, bsonjs.ErrUnsupportedType) {
		t.Fatalf("Match error = %v, want ErrUnsupportedType", err)
	}
}

func TestWrapEvaluationErrorAugmentsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{Engine: "expr", Err: base}

	err := wrapEvaluationError("cel", "rule", "/a", existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != "expr" {
		t.Fatalf("existing engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Expr != "rule" || existing.Path != "/a" {
		t.Fatalf("metadata should be filled, got %+v", existing)
	}
}
