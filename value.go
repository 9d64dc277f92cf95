package bsonjs

import (
	"fmt"
	"math"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	// Absent is the zero Kind: an array hole or a property that is not there.
	Absent Kind = iota
	Undefined
	Null
	Boolean
	Integer
	Double
	String
	Date
	Array
	Object
	Binary
	Reference
)

var kindNames = [...]string{
	Absent:    "absent",
	Undefined: "undefined",
	Null:      "null",
	Boolean:   "boolean",
	Integer:   "integer",
	Double:    "double",
	String:    "string",
	Date:      "date",
	Array:     "array",
	Object:    "object",
	Binary:    "binary",
	Reference: "reference",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a script-side value. The zero Value is Absent.
// Values are immutable once built; Array and Object hold their own copies.
type Value struct {
	kind Kind
	b    bool
	i    int32
	f    float64
	s    string
	t    time.Time
	arr  []Value
	obj  *Map
	blob *Blob
}

// NullValue returns the null value.
func NullValue() Value { return Value{kind: Null} }

// UndefinedValue returns the undefined value.
func UndefinedValue() Value { return Value{kind: Undefined} }

// Bool wraps b.
func Bool(b bool) Value { return Value{kind: Boolean, b: b} }

// Int wraps a 32-bit integer.
func Int(i int32) Value { return Value{kind: Integer, i: i} }

// Float wraps a double.
func Float(f float64) Value { return Value{kind: Double, f: f} }

// Number returns an Integer when f is integral and fits in 32 bits, and a
// Double otherwise.
func Number(f float64) Value {
	if f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 && !(f == 0 && math.Signbit(f)) {
		return Int(int32(f))
	}
	return Float(f)
}

// Str wraps s.
func Str(s string) Value { return Value{kind: String, s: s} }

// Time wraps t truncated to millisecond precision, the resolution of both
// document dates and script Dates.
func Time(t time.Time) Value { return Value{kind: Date, t: t.Truncate(time.Millisecond)} }

// List builds an Array. Absent elements are holes.
func List(elems ...Value) Value {
	return Value{kind: Array, arr: append([]Value(nil), elems...)}
}

// Obj wraps m. A nil map yields an empty object.
func Obj(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: Object, obj: m}
}

// Bin wraps b. A nil blob yields an empty one.
func Bin(b *Blob) Value {
	if b == nil {
		b = EmptyBlob()
	}
	return Value{kind: Binary, blob: b}
}

// Ref wraps a reference to the document stored under path.
func Ref(path string) Value { return Value{kind: Reference, s: path} }

// Kind reports the variant.
func (v Value) Kind() Kind { return v.kind }

// Exists reports whether v is anything other than Absent.
func (v Value) Exists() bool { return v.kind != Absent }

// IsUndefined reports whether v is Undefined or Absent.
func (v Value) IsUndefined() bool { return v.kind == Undefined || v.kind == Absent }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == Null }

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.b }

// Int returns the integer payload.
func (v Value) Int() int32 { return v.i }

// Float returns the numeric payload of an Integer or Double.
func (v Value) Float() float64 {
	if v.kind == Integer {
		return float64(v.i)
	}
	return v.f
}

// Str returns the string payload of a String, or the path of a Reference.
func (v Value) Str() string { return v.s }

// Time returns the Date payload.
func (v Value) Time() time.Time { return v.t }

// Len returns the array length, counting holes.
func (v Value) Len() int { return len(v.arr) }

// Index returns element i of an array, or Absent when out of range.
func (v Value) Index(i int) Value {
	if i < 0 || i >= len(v.arr) {
		return Value{}
	}
	return v.arr[i]
}

// Elems returns a copy of the array elements.
func (v Value) Elems() []Value {
	return append([]Value(nil), v.arr...)
}

// Map returns the object payload.
func (v Value) Map() *Map { return v.obj }

// Blob returns the binary payload.
func (v Value) Blob() *Blob { return v.blob }

// Export converts v into plain Go values: map[string]any, []any, int64,
// float64, string, bool, time.Time, []byte or nil. References become their
// tagged string form.
func (v Value) Export() any {
	switch v.kind {
	case Boolean:
		return v.b
	case Integer:
		return int64(v.i)
	case Double:
		return v.f
	case String:
		return v.s
	case Reference:
		return ReferenceTag + v.s
	case Date:
		return v.t
	case Binary:
		return v.blob.Bytes()
	case Array:
		out := make([]any, len(v.arr))
		for i, elem := range v.arr {
			out[i] = elem.Export()
		}
		return out
	case Object:
		out := make(map[string]any, v.obj.Len())
		v.obj.Range(func(key string, val Value) bool {
			if val.Exists() {
				out[key] = val.Export()
			}
			return true
		})
		return out
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case Boolean:
		return fmt.Sprint(v.b)
	case Integer:
		return fmt.Sprint(v.i)
	case Double:
		return fmt.Sprint(v.f)
	case String:
		return fmt.Sprintf("%q", v.s)
	case Reference:
		return "ref(" + v.s + ")"
	case Date:
		return v.t.Format(time.RFC3339Nano)
	case Binary:
		return v.blob.String()
	case Array:
		return fmt.Sprintf("array(%d)", len(v.arr))
	case Object:
		return fmt.Sprintf("object(%d)", v.obj.Len())
	default:
		return v.kind.String()
	}
}

// Equal reports whether a and b hold the same tree. Integers and doubles
// compare by numeric value, dates by instant.
func Equal(a, b Value) bool {
	if isNumeric(a.kind) && isNumeric(b.kind) {
		return a.Float() == b.Float()
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Boolean:
		return a.b == b.b
	case String, Reference:
		return a.s == b.s
	case Date:
		return a.t.Equal(b.t)
	case Binary:
		return string(a.blob.Bytes()) == string(b.blob.Bytes())
	case Array:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		for i, key := range a.obj.keys {
			if b.obj.keys[i] != key {
				return false
			}
			if !Equal(a.obj.values[key], b.obj.values[key]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func isNumeric(k Kind) bool {
	return k == Integer || k == Double
}
