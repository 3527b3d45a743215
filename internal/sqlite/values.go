package sqlite

import (
	"time"

	"github.com/spf13/cast"

	"github.com/mesh-intelligence/larder/pkg/model"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// packValue converts a property value into the form bound to a statement.
// Booleans become 1 or 0 and dates become Unix seconds.
func packValue(p *model.Property, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	cv, err := model.Coerce(p.Type(), v)
	if err != nil {
		return nil, &types.InvalidDataTypeError{Attribute: p.String(), Type: p.Type(), Value: v, Err: err}
	}
	switch x := cv.(type) {
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case time.Time:
		return x.Unix(), nil
	default:
		return cv, nil
	}
}

// boxValue converts a column value read from SQLite into the canonical Go
// value for the property's type.
func boxValue(p *model.Property, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	var (
		v   any
		err error
	)
	switch p.Type() {
	case types.TypeDate:
		var secs int64
		secs, err = cast.ToInt64E(raw)
		v = time.Unix(secs, 0).UTC()
	case types.TypeString:
		if b, ok := raw.([]byte); ok {
			raw = string(b)
		}
		v, err = model.Coerce(p.Type(), raw)
	default:
		v, err = model.Coerce(p.Type(), raw)
	}
	if err != nil {
		return nil, &types.InvalidDataTypeError{Attribute: p.String(), Type: p.Type(), Value: raw, Err: err}
	}
	return v, nil
}
