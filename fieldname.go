package bsonjs

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// EscapeFieldName makes name safe to use as a document field name. Every
// UTF-16 code unit that is not a letter or digit, not a leading '$' and not a
// non-leading '-' is written as '_' followed by four uppercase hex digits.
// Names that are empty or not valid UTF-8 fail with ErrInvalidArgument.
func EscapeFieldName(name string) (string, error) {
	if err := checkFieldName("escape", name); err != nil {
		return "", err
	}
	units := utf16.Encode([]rune(name))
	var sb strings.Builder
	sb.Grow(len(name))
	for i, u := range units {
		switch {
		case isPlainUnit(u) || (u == '$' && i == 0) || (u == '-' && i > 0):
			sb.WriteRune(rune(u))
		default:
			fmt.Fprintf(&sb, "_%04X", u)
		}
	}
	return sb.String(), nil
}

// isPlainUnit reports whether u is a letter or digit that stands on its own.
// Surrogate halves are never plain.
func isPlainUnit(u uint16) bool {
	if utf16.IsSurrogate(rune(u)) {
		return false
	}
	r := rune(u)
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// UnescapeFieldName reverses EscapeFieldName. Any '_' followed by four hex
// digits is decoded, whether or not EscapeFieldName produced it.
func UnescapeFieldName(name string) (string, error) {
	if err := checkFieldName("unescape", name); err != nil {
		return "", err
	}
	units := utf16.Encode([]rune(name))
	out := make([]uint16, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u == '_' && i+4 < len(units) {
			if code, ok := parseHexUnits(units[i+1 : i+5]); ok {
				out = append(out, code)
				i += 4
				continue
			}
		}
		out = append(out, u)
	}
	return string(utf16.Decode(out)), nil
}

func checkFieldName(op, name string) error {
	switch {
	case name == "":
		return &ConversionError{Op: op, Err: fmt.Errorf("%w: empty field name", ErrInvalidArgument)}
	case !utf8.ValidString(name):
		return &ConversionError{Op: op, Err: fmt.Errorf("%w: field name %q is not valid UTF-8", ErrInvalidArgument, name)}
	}
	return nil
}

func parseHexUnits(units []uint16) (uint16, bool) {
	var buf [4]byte
	for i, u := range units {
		if u > unicode.MaxASCII {
			return 0, false
		}
		buf[i] = byte(u)
	}
	code, err := strconv.ParseUint(string(buf[:]), 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(code), true
}
