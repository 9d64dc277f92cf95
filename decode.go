package bsonjs

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Decode converts a BSON value, as produced by the driver when decoding into
// bson.D, into a Value.
//
// ObjectIDs become References through the configured PathResolver and fail
// with ErrUnknownReference when the index has no path for them. Null array
// elements become holes. Every numeric type widens to Double. Dates are
// expressed in the configured location.
func (c *Codec) Decode(ctx context.Context, doc any) (Value, error) {
	return c.decodeValue(ctx, doc, "")
}

func (c *Codec) decodeValue(ctx context.Context, doc any, path string) (Value, error) {
	switch val := doc.(type) {
	case nil:
		return NullValue(), nil
	case bson.ObjectID:
		return c.decodeReference(ctx, val, path)
	case bson.A:
		return c.decodeArray(ctx, val, path)
	case []any:
		return c.decodeArray(ctx, val, path)
	case bool:
		return Bool(val), nil
	case bson.DateTime:
		return Time(val.Time().In(c.cfg.location)), nil
	case bson.Binary:
		return Bin(BlobFromBytes(val.Data)), nil
	case []byte:
		return Bin(BlobFromBytes(val)), nil
	case bson.D:
		return c.decodeDocument(ctx, val, path)
	case bson.M:
		return c.decodeDocument(ctx, sortedDocument(val), path)
	case float64:
		return Float(val), nil
	case int32:
		return Float(float64(val)), nil
	case int64:
		return Float(float64(val)), nil
	case string:
		return Str(val), nil
	default:
		return Value{}, wrapConversionError("decode", path, fmt.Sprintf("%T", doc), ErrUnsupportedType)
	}
}

func (c *Codec) decodeReference(ctx context.Context, id bson.ObjectID, path string) (Value, error) {
	if c.cfg.resolver == nil {
		return Value{}, wrapConversionError("decode", path, "objectId",
			fmt.Errorf("%w: %s", ErrUnknownReference, id.Hex()))
	}
	target, ok, err := c.cfg.resolver.ResolvePath(ctx, id)
	if err != nil {
		return Value{}, wrapConversionError("decode", path, "objectId", fmt.Errorf("resolve %s: %w", id.Hex(), err))
	}
	if !ok {
		return Value{}, wrapConversionError("decode", path, "objectId",
			fmt.Errorf("%w: %s", ErrUnknownReference, id.Hex()))
	}
	return Ref(target), nil
}

func (c *Codec) decodeArray(ctx context.Context, arr []any, path string) (Value, error) {
	elems := make([]Value, len(arr))
	for i, item := range arr {
		if item == nil {
			continue
		}
		elem, err := c.decodeValue(ctx, item, indexPath(path, i))
		if err != nil {
			return Value{}, err
		}
		elems[i] = elem
	}
	return Value{kind: Array, arr: elems}, nil
}

func (c *Codec) decodeDocument(ctx context.Context, doc bson.D, path string) (Value, error) {
	m := NewMap()
	for _, elem := range doc {
		key, err := UnescapeFieldName(elem.Key)
		if err != nil {
			return Value{}, wrapConversionError("decode", childPath(path, elem.Key), "", err)
		}
		val, err := c.decodeValue(ctx, elem.Value, childPath(path, key))
		if err != nil {
			return Value{}, err
		}
		m.Set(key, val)
	}
	return Obj(m), nil
}

// sortedDocument orders an unordered bson.M by key so decoding is stable.
func sortedDocument(m bson.M) bson.D {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	doc := make(bson.D, 0, len(keys))
	for _, key := range keys {
		doc = append(doc, bson.E{Key: key, Value: m[key]})
	}
	return doc
}
