package bsonjs

import (
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Encode converts v into the BSON value model: nil, bool, int32, float64,
// string, bson.DateTime, bson.Binary, bson.A or bson.D. Object keys are
// escaped with EscapeFieldName. References and "¤TR" strings are written as
// plain strings; no lookup is performed.
func (c *Codec) Encode(v Value) (any, error) {
	return encodeValue(v, "")
}

func encodeValue(v Value, path string) (any, error) {
	switch v.kind {
	case Absent, Undefined, Null:
		return nil, nil
	case Boolean:
		return v.b, nil
	case Date:
		return bson.NewDateTimeFromTime(v.t.UTC()), nil
	case Double:
		return v.f, nil
	case Integer:
		return v.i, nil
	case String:
		return v.s, nil
	case Reference:
		return ReferenceTag + v.s, nil
	case Array:
		return encodeArray(v.arr, path)
	case Binary:
		return bson.Binary{Subtype: 0x00, Data: v.blob.Bytes()}, nil
	case Object:
		return encodeObject(v.obj, path)
	default:
		return nil, wrapConversionError("encode", path, v.kind.String(), ErrUnsupportedType)
	}
}

// encodeArray writes each present element at its own index, padding holes
// with null. Trailing holes are dropped.
func encodeArray(elems []Value, path string) (bson.A, error) {
	last := -1
	for i, elem := range elems {
		if elem.Exists() {
			last = i
		}
	}
	out := make(bson.A, last+1)
	for i := 0; i <= last; i++ {
		if !elems[i].Exists() {
			continue
		}
		enc, err := encodeValue(elems[i], indexPath(path, i))
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}

func encodeObject(m *Map, path string) (bson.D, error) {
	out := make(bson.D, 0, m.Len())
	var err error
	m.Range(func(key string, val Value) bool {
		var name string
		name, err = EscapeFieldName(key)
		if err != nil {
			err = wrapConversionError("encode", childPath(path, key), "", err)
			return false
		}
		var enc any
		enc, err = encodeValue(val, childPath(path, key))
		if err != nil {
			return false
		}
		out = append(out, bson.E{Key: name, Value: enc})
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func childPath(path, key string) string {
	if path == "" {
		path = "$"
	}
	return fmt.Sprintf("%s.%s", path, key)
}

func indexPath(path string, i int) string {
	if path == "" {
		path = "$"
	}
	return path + "[" + strconv.Itoa(i) + "]"
}
