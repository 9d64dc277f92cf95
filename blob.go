package bsonjs

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// BinaryTag prefixes base64 blob payloads inside JSON text.
const BinaryTag = "¤BA"

// Blob is an immutable byte buffer.
type Blob struct {
	data []byte
}

// EmptyBlob returns a zero-length blob.
func EmptyBlob() *Blob {
	return &Blob{data: []byte{}}
}

// BlobFromBytes adopts data without copying it. The caller must not modify
// data afterwards.
func BlobFromBytes(data []byte) *Blob {
	if data == nil {
		data = []byte{}
	}
	return &Blob{data: data}
}

// SpliceBlob builds a new blob by inserting data into src at pos.
//
// With a nil src the result is max(pos, 0) zero bytes followed by data.
// Otherwise a negative pos counts back from len(src)+1, so -1 appends. A pos
// at or past the end appends data after zero padding up to pos, pos 0
// prepends, and anything else splits src at pos. src is never modified.
func SpliceBlob(src *Blob, data []byte, pos int) *Blob {
	if data == nil {
		return EmptyBlob()
	}
	if src == nil {
		if pos < 0 {
			pos = 0
		}
		out := make([]byte, pos+len(data))
		copy(out[pos:], data)
		return &Blob{data: out}
	}

	n := len(src.data)
	if pos < 0 {
		pos = n + 1 + pos
	}
	switch {
	case pos >= n:
		out := make([]byte, pos+len(data))
		copy(out, src.data)
		copy(out[pos:], data)
		return &Blob{data: out}
	case pos <= 0:
		out := make([]byte, 0, n+len(data))
		out = append(out, data...)
		out = append(out, src.data...)
		return &Blob{data: out}
	default:
		out := make([]byte, 0, n+len(data))
		out = append(out, src.data[:pos]...)
		out = append(out, data...)
		out = append(out, src.data[pos:]...)
		return &Blob{data: out}
	}
}

// Bytes returns the underlying bytes. The result must not be modified.
func (b *Blob) Bytes() []byte {
	if b == nil {
		return []byte{}
	}
	return b.data
}

// Len returns the number of bytes.
func (b *Blob) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Tagged returns the "¤BA"-prefixed base64 form used in JSON text.
func (b *Blob) Tagged() string {
	return BinaryTag + base64.StdEncoding.EncodeToString(b.Bytes())
}

// MarshalJSON encodes the blob as its tagged string.
func (b *Blob) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Tagged())
}

// String renders the bytes as dash-separated hex pairs, e.g. "DE-AD".
func (b *Blob) String() string {
	data := b.Bytes()
	var sb strings.Builder
	for i, c := range data {
		if i > 0 {
			sb.WriteByte('-')
		}
		fmt.Fprintf(&sb, "%02X", c)
	}
	return sb.String()
}

// parseBinaryTag decodes the payload of a tagged string. ok is false when s
// does not carry the tag.
func parseBinaryTag(s string) (blob *Blob, ok bool, err error) {
	payload, found := strings.CutPrefix(s, BinaryTag)
	if !found {
		return nil, false, nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return EmptyBlob(), true, err
	}
	return BlobFromBytes(data), true, nil
}
