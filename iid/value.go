package iid

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// ValueType is the single-byte code stored at a type vertex's ValueTypeInfix
// property key.
type ValueType byte

const (
	ValueTypeBoolean ValueType = 1
	ValueTypeLong    ValueType = 2
	ValueTypeDouble  ValueType = 3
	ValueTypeString  ValueType = 4
	ValueTypeDateTime ValueType = 5
)

func (vt ValueType) String() string {
	switch vt {
	case ValueTypeBoolean:
		return "boolean"
	case ValueTypeLong:
		return "long"
	case ValueTypeDouble:
		return "double"
	case ValueTypeString:
		return "string"
	case ValueTypeDateTime:
		return "datetime"
	default:
		return "unknown-value-type"
	}
}

// EncodeValue canonically MessagePack-encodes a typed attribute value. Two
// calls with equal (valueType, value) always produce identical bytes, which
// is the basis for attribute content addressing.
func EncodeValue(vt ValueType, value any) ([]byte, error) {
	switch vt {
	case ValueTypeBoolean:
		v, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("iid: expected bool for boolean value, got %T", value)
		}
		return msgpack.Marshal(v)
	case ValueTypeLong:
		v, ok := value.(int64)
		if !ok {
			return nil, fmt.Errorf("iid: expected int64 for long value, got %T", value)
		}
		return msgpack.Marshal(v)
	case ValueTypeDouble:
		v, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("iid: expected float64 for double value, got %T", value)
		}
		return msgpack.Marshal(v)
	case ValueTypeString:
		v, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("iid: expected string for string value, got %T", value)
		}
		return msgpack.Marshal(v)
	case ValueTypeDateTime:
		v, ok := value.(time.Time)
		if !ok {
			return nil, fmt.Errorf("iid: expected time.Time for datetime value, got %T", value)
		}
		return msgpack.Marshal(v.UTC().UnixNano())
	default:
		return nil, fmt.Errorf("iid: unknown value type %v", vt)
	}
}

// DecodeValue is EncodeValue's inverse: given the value type recorded on an
// attribute's TypeVertex, it unmarshals the canonical MessagePack encoding
// back into the corresponding Go type.
func DecodeValue(vt ValueType, encoded []byte) (any, error) {
	switch vt {
	case ValueTypeBoolean:
		var v bool
		err := msgpack.Unmarshal(encoded, &v)
		return v, err
	case ValueTypeLong:
		var v int64
		err := msgpack.Unmarshal(encoded, &v)
		return v, err
	case ValueTypeDouble:
		var v float64
		err := msgpack.Unmarshal(encoded, &v)
		return v, err
	case ValueTypeString:
		var v string
		err := msgpack.Unmarshal(encoded, &v)
		return v, err
	case ValueTypeDateTime:
		var v int64
		if err := msgpack.Unmarshal(encoded, &v); err != nil {
			return nil, err
		}
		return time.Unix(0, v).UTC(), nil
	default:
		return nil, fmt.Errorf("iid: unknown value type %v", vt)
	}
}

// AttributeInstanceID derives a content-addressed instance id from the
// attribute type and its canonically-encoded value, so two writes of the
// same (type, value) pair collapse onto a single attribute vertex.
func AttributeInstanceID(typeID uint64, encodedValue []byte) uint64 {
	h := xxhash.New()
	_, _ = h.Write(encodeUint64(typeID))
	_, _ = h.Write(encodedValue)
	return h.Sum64()
}
