package bsonjs

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/dop251/goja"
)

// MaxScriptArrayLen bounds the length of a script array FromScript accepts.
const MaxScriptArrayLen = 1 << 20

var blobType = reflect.TypeOf((*Blob)(nil))

// ToScript converts v into a value owned by vm. Dates become JS Date objects,
// arrays keep their holes, blobs are exposed as host objects wrapping *Blob
// and References become their "¤TR" tagged string. Undefined object members
// stay present with the value undefined; Absent members are left out.
func ToScript(vm *goja.Runtime, v Value) (goja.Value, error) {
	return toScript(vm, v, "")
}

func toScript(vm *goja.Runtime, v Value, path string) (goja.Value, error) {
	switch v.kind {
	case Absent, Undefined:
		return goja.Undefined(), nil
	case Null:
		return goja.Null(), nil
	case Boolean:
		return vm.ToValue(v.b), nil
	case Integer:
		return vm.ToValue(int64(v.i)), nil
	case Double:
		return vm.ToValue(v.f), nil
	case String:
		return vm.ToValue(v.s), nil
	case Reference:
		return vm.ToValue(ReferenceTag + v.s), nil
	case Date:
		date, err := vm.New(vm.Get("Date"), vm.ToValue(v.t.UnixMilli()))
		if err != nil {
			return nil, wrapConversionError("script", path, v.kind.String(), err)
		}
		return date, nil
	case Binary:
		return vm.ToValue(v.blob), nil
	case Array:
		arr := vm.NewArray()
		for i, elem := range v.arr {
			if !elem.Exists() {
				continue
			}
			item, err := toScript(vm, elem, indexPath(path, i))
			if err != nil {
				return nil, err
			}
			if err := arr.Set(strconv.Itoa(i), item); err != nil {
				return nil, wrapConversionError("script", indexPath(path, i), elem.kind.String(), err)
			}
		}
		if err := arr.Set("length", len(v.arr)); err != nil {
			return nil, wrapConversionError("script", path, v.kind.String(), err)
		}
		return arr, nil
	case Object:
		obj := vm.NewObject()
		var err error
		v.obj.Range(func(key string, val Value) bool {
			if !val.Exists() {
				return true
			}
			var item goja.Value
			item, err = toScript(vm, val, childPath(path, key))
			if err != nil {
				return false
			}
			if err = obj.Set(key, item); err != nil {
				err = wrapConversionError("script", childPath(path, key), val.kind.String(), err)
				return false
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		return obj, nil
	default:
		return nil, wrapConversionError("script", path, v.kind.String(), ErrUnsupportedType)
	}
}

// FromScript converts a goja value into a Value. Numbers that are integral
// and fit in 32 bits become Integer. Functions, symbols and cyclic objects
// fail with ErrUnsupportedType.
func FromScript(v goja.Value) (Value, error) {
	return fromScript(v, "", map[*goja.Object]bool{})
}

func fromScript(v goja.Value, path string, visiting map[*goja.Object]bool) (Value, error) {
	if v == nil || goja.IsUndefined(v) {
		return UndefinedValue(), nil
	}
	if goja.IsNull(v) {
		return NullValue(), nil
	}
	if _, ok := v.(*goja.Symbol); ok {
		return Value{}, wrapConversionError("script", path, "symbol", ErrUnsupportedType)
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return fromScriptPrimitive(v.Export(), path)
	}
	if _, ok := goja.AssertFunction(obj); ok {
		return Value{}, wrapConversionError("script", path, "function", ErrUnsupportedType)
	}
	if visiting[obj] {
		return Value{}, wrapConversionError("script", path, "object", fmt.Errorf("%w: cyclic value", ErrUnsupportedType))
	}
	visiting[obj] = true
	defer delete(visiting, obj)

	switch {
	case obj.ClassName() == "Date":
		if t, ok := obj.Export().(time.Time); ok {
			return Time(t), nil
		}
	case obj.ClassName() == "Array":
		return fromScriptArray(obj, path, visiting)
	case obj.ExportType() == blobType:
		if blob, ok := obj.Export().(*Blob); ok {
			return Bin(blob), nil
		}
	}

	m := NewMap()
	for _, key := range obj.Keys() {
		val, err := fromScript(obj.Get(key), childPath(path, key), visiting)
		if err != nil {
			return Value{}, err
		}
		m.Set(key, val)
	}
	return Obj(m), nil
}

// fromScriptArray walks the own keys of obj so holes in a sparse array cost
// nothing. Arrays longer than MaxScriptArrayLen are rejected.
func fromScriptArray(obj *goja.Object, path string, visiting map[*goja.Object]bool) (Value, error) {
	n := obj.Get("length").ToInteger()
	if n < 0 || n > MaxScriptArrayLen {
		return Value{}, wrapConversionError("script", path, "array", fmt.Errorf("%w: length %d", ErrUnsupportedType, n))
	}
	elems := make([]Value, n)
	for _, key := range obj.Keys() {
		i, err := strconv.ParseInt(key, 10, 64)
		if err != nil || i < 0 || i >= n || strconv.FormatInt(i, 10) != key {
			continue
		}
		elem, err := fromScript(obj.Get(key), indexPath(path, int(i)), visiting)
		if err != nil {
			return Value{}, err
		}
		elems[i] = elem
	}
	return Value{kind: Array, arr: elems}, nil
}

func fromScriptPrimitive(exported any, path string) (Value, error) {
	switch val := exported.(type) {
	case bool:
		return Bool(val), nil
	case int64:
		if val >= math.MinInt32 && val <= math.MaxInt32 {
			return Int(int32(val)), nil
		}
		return Float(float64(val)), nil
	case float64:
		return Number(val), nil
	case string:
		return Str(val), nil
	default:
		return Value{}, wrapConversionError("script", path, fmt.Sprintf("%T", exported), ErrUnsupportedType)
	}
}
