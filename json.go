package bsonjs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
	"unicode/utf16"
)

// timestampLayout is the fixed-width UTC form recognised inside JSON strings,
// e.g. 2015-09-16T14:15:18.994Z.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// sentinelYear marks dates written by a known-bad source; they are replaced
// by the current time.
const sentinelYear = 1001

// ParseJSON parses JSON text into a Value. Strings carrying the binary tag
// become Binary values, and strings shaped like timestampLayout become
// Dates in the configured location. A malformed binary payload yields an
// empty blob and a malformed or sentinel timestamp yields the current time;
// both are reported to the Logger and never fail the parse. Numbers that are
// integral and fit in 32 bits become Integer. Object key order is preserved.
func (c *Codec) ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := c.parseJSONValue(dec, "")
	if err != nil {
		return Value{}, fmt.Errorf("bsonjs: parse json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, fmt.Errorf("bsonjs: parse json: unexpected data after top-level value")
	}
	return v, nil
}

func (c *Codec) parseJSONValue(dec *json.Decoder, key string) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return c.parseJSONObject(dec)
		case '[':
			return c.parseJSONArray(dec)
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return c.reviveString(key, t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("number %s: %w", t, err)
		}
		return Number(f), nil
	case bool:
		return Bool(t), nil
	case nil:
		return NullValue(), nil
	default:
		return Value{}, fmt.Errorf("unexpected token %v", tok)
	}
}

func (c *Codec) parseJSONObject(dec *json.Decoder) (Value, error) {
	m := NewMap()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key %v is not a string", tok)
		}
		val, err := c.parseJSONValue(dec, key)
		if err != nil {
			return Value{}, err
		}
		m.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Obj(m), nil
}

func (c *Codec) parseJSONArray(dec *json.Decoder) (Value, error) {
	var elems []Value
	for dec.More() {
		elem, err := c.parseJSONValue(dec, strconv.Itoa(len(elems)))
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, elem)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Value{kind: Array, arr: elems}, nil
}

func (c *Codec) reviveString(key, s string) Value {
	if blob, ok, err := parseBinaryTag(s); ok {
		if err != nil {
			c.cfg.logger.LogWarning(Warning{Kind: ErrMalformedBinaryTag, Key: key, Input: s, Err: err})
		}
		return Bin(blob)
	}
	if looksLikeTimestamp(s) {
		return Time(c.parseTimestamp(key, s))
	}
	return Str(s)
}

// looksLikeTimestamp checks the separator positions of a 24 code unit
// string without validating the digits.
func looksLikeTimestamp(s string) bool {
	if len(s) < 24 || len(s) > 4*24 {
		return false
	}
	units := utf16.Encode([]rune(s))
	return len(units) == 24 &&
		units[4] == '-' && units[7] == '-' && units[10] == 'T' &&
		units[13] == ':' && units[16] == ':' && units[19] == '.'
}

func (c *Codec) parseTimestamp(key, s string) time.Time {
	t, err := time.ParseInLocation(timestampLayout, s, time.UTC)
	if err != nil {
		c.cfg.logger.LogWarning(Warning{Kind: ErrMalformedTimestamp, Key: key, Input: s, Err: err})
		return c.cfg.now().In(c.cfg.location)
	}
	if abs(t.Year()-sentinelYear) < 1 {
		c.cfg.logger.LogWarning(Warning{
			Kind:  ErrMalformedTimestamp,
			Key:   key,
			Input: s,
			Err:   fmt.Errorf("sentinel year %d", t.Year()),
		})
		return c.cfg.now().In(c.cfg.location)
	}
	return t.In(c.cfg.location)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Stringify renders v as JSON text. Blobs are written as "¤BA" tagged
// strings, References as "¤TR" tagged strings and Dates as UTC instants with
// millisecond precision. Undefined object members are omitted and undefined
// array elements become null. A top-level Undefined or Absent value has no
// JSON form and yields nil.
func (c *Codec) Stringify(v Value) ([]byte, error) {
	if v.IsUndefined() {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := writeJSON(&buf, v, ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value, path string) error {
	switch v.kind {
	case Absent, Undefined, Null:
		buf.WriteString("null")
	case Boolean:
		buf.WriteString(strconv.FormatBool(v.b))
	case Integer:
		buf.WriteString(strconv.FormatInt(int64(v.i), 10))
	case Double:
		switch {
		case math.IsNaN(v.f) || math.IsInf(v.f, 0):
			buf.WriteString("null")
			return nil
		case v.f == 0:
			// Negative zero prints as 0.
			buf.WriteByte('0')
			return nil
		}
		out, err := json.Marshal(v.f)
		if err != nil {
			return wrapConversionError("stringify", path, v.kind.String(), err)
		}
		buf.Write(out)
	case String:
		return writeJSONString(buf, v.s)
	case Reference:
		return writeJSONString(buf, ReferenceTag+v.s)
	case Date:
		return writeJSONString(buf, v.t.UTC().Format(timestampLayout))
	case Binary:
		out, err := v.blob.MarshalJSON()
		if err != nil {
			return wrapConversionError("stringify", path, v.kind.String(), err)
		}
		buf.Write(out)
	case Array:
		buf.WriteByte('[')
		for i, elem := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, elem, indexPath(path, i)); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		first := true
		var err error
		v.obj.Range(func(key string, val Value) bool {
			if val.IsUndefined() {
				return true
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			if err = writeJSONString(buf, key); err != nil {
				return false
			}
			buf.WriteByte(':')
			err = writeJSON(buf, val, childPath(path, key))
			return err == nil
		})
		if err != nil {
			return err
		}
		buf.WriteByte('}')
	default:
		return wrapConversionError("stringify", path, v.kind.String(), ErrUnsupportedType)
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates each value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
