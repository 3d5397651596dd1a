package quereus

import (
	"math/big"

	"github.com/spf13/cast"

	"github.com/Digithought/quereus-sub010/sql"
)

// valueFromAny coerces a native Go value passed to Statement.Bind/BindName/
// BindAll into a sql.Value, using github.com/spf13/cast the way the
// teacher's engine accepts plain Go values for bound parameters rather
// than requiring callers to pre-build an internal value type (SPEC_FULL.md
// ambient-stack: spf13/cast). nil becomes sql.Null; an already-built
// sql.Value passes through unchanged.
func valueFromAny(v interface{}) (sql.Value, error) {
	switch t := v.(type) {
	case nil:
		return sql.Null, nil
	case sql.Value:
		return t, nil
	case *big.Int:
		return sql.BigIntValue(t), nil
	case []byte:
		return sql.BlobValue(t), nil
	case bool:
		return sql.BoolValue(t), nil
	}

	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		i, err := cast.ToInt64E(v)
		if err != nil {
			return sql.Value{}, sql.ErrMisuse.New(err.Error())
		}
		return sql.IntValue(i), nil
	case float32, float64:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return sql.Value{}, sql.ErrMisuse.New(err.Error())
		}
		return sql.FloatValue(f), nil
	case string:
		return sql.TextValue(v.(string)), nil
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return sql.Value{}, sql.ErrMisuse.New("unbindable parameter value: " + err.Error())
	}
	return sql.TextValue(s), nil
}
