package model

import (
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// Coerce converts v into the canonical Go representation of t: string,
// int64, float64, bool, time.Time or []byte. A nil v stays nil.
func Coerce(t types.AttributeType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case types.TypeString:
		return cast.ToStringE(v)
	case types.TypeInteger:
		return cast.ToInt64E(v)
	case types.TypeFloat:
		return cast.ToFloat64E(v)
	case types.TypeBoolean:
		return cast.ToBoolE(v)
	case types.TypeDate:
		if tm, ok := v.(time.Time); ok {
			return tm, nil
		}
		return cast.ToTimeE(v)
	case types.TypeBinary:
		switch b := v.(type) {
		case []byte:
			return append([]byte(nil), b...), nil
		case string:
			return []byte(b), nil
		default:
			return nil, fmt.Errorf("unable to cast %#v of type %T to []byte", v, v)
		}
	default:
		return nil, types.ErrInvalidDataType
	}
}

// MatchesKind reports whether the dynamic kind of v is acceptable for t
// without conversion: strings for String, any integer, float or bool for
// the numeric types, time.Time for Date and []byte for Binary. nil matches
// every type.
func MatchesKind(t types.AttributeType, v any) bool {
	if v == nil {
		return true
	}
	switch t {
	case types.TypeString:
		_, ok := v.(string)
		return ok
	case types.TypeInteger, types.TypeFloat, types.TypeBoolean:
		switch v.(type) {
		case int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64, bool:
			return true
		}
		return false
	case types.TypeDate:
		_, ok := v.(time.Time)
		return ok
	case types.TypeBinary:
		_, ok := v.([]byte)
		return ok
	default:
		return false
	}
}
