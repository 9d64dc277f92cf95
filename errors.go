package bsonjs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports an empty or missing field name.
	ErrInvalidArgument = errors.New("bsonjs: invalid argument")
	// ErrUnsupportedType reports a value variant with no conversion rule.
	ErrUnsupportedType = errors.New("bsonjs: unsupported type")
	// ErrUnknownReference reports an ObjectID that has no indexed path.
	ErrUnknownReference = errors.New("bsonjs: unknown reference")
	// ErrMalformedBinaryTag reports a "¤BA" string whose payload is not base64.
	// It is only ever delivered to a Logger, never returned.
	ErrMalformedBinaryTag = errors.New("bsonjs: malformed binary tag")
	// ErrMalformedTimestamp reports a timestamp-shaped string that could not be
	// used. It is only ever delivered to a Logger, never returned.
	ErrMalformedTimestamp = errors.New("bsonjs: malformed timestamp")
)

// ConversionError captures where in a value tree a conversion failed.
type ConversionError struct {
	Op   string
	Path string
	Type string
	Err  error
}

func (e *ConversionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Type == "" {
		return fmt.Sprintf("bsonjs: %s %s: %v", e.Op, describePath(e.Path), e.Err)
	}
	return fmt.Sprintf("bsonjs: %s %s: %s: %v", e.Op, describePath(e.Path), e.Type, e.Err)
}

func (e *ConversionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describePath(path string) string {
	if path == "" {
		return "$"
	}
	return path
}

// wrapConversionError attaches op and path to err, keeping the innermost
// location when err already carries one.
func wrapConversionError(op, path, typ string, err error) error {
	if err == nil {
		return nil
	}

	var convErr *ConversionError
	if errors.As(err, &convErr) {
		if convErr.Op == "" {
			convErr.Op = op
		}
		if convErr.Path == "" {
			convErr.Path = path
		}
		return err
	}

	return &ConversionError{
		Op:   op,
		Path: path,
		Type: typ,
		Err:  err,
	}
}
