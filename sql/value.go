package sql

import (
	"fmt"
	"math/big"
)

// ValueKind tags the dynamic type carried by a Value. The source system's
// values are dynamically typed; here that becomes an explicit, closed sum
// type so the scheduler and storage layer never have to duck-type a Go
// interface{}.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindInt64
	KindBigInt
	KindFloat64
	KindText
	KindBlob
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInt64:
		return "INTEGER"
	case KindBigInt:
		return "BIGINT"
	case KindFloat64:
		return "REAL"
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// Value is a single SQL-typed datum: null, a 64-bit signed integer, an
// arbitrary-precision integer, a double, text, or a byte string. Exactly one
// of the typed fields is meaningful, selected by Kind.
type Value struct {
	Kind  ValueKind
	Int   int64
	Big   *big.Int
	Float float64
	Text  string
	Blob  []byte
}

var Null = Value{Kind: KindNull}

func IntValue(v int64) Value       { return Value{Kind: KindInt64, Int: v} }
func BigIntValue(v *big.Int) Value { return Value{Kind: KindBigInt, Big: v} }
func FloatValue(v float64) Value   { return Value{Kind: KindFloat64, Float: v} }
func TextValue(v string) Value     { return Value{Kind: KindText, Text: v} }
func BlobValue(v []byte) Value     { return Value{Kind: KindBlob, Blob: v} }
func BoolValue(v bool) Value {
	if v {
		return IntValue(1)
	}
	return IntValue(0)
}

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Truthy follows the constraint engine's definition (spec §4.4): a value is
// truthy unless it is integer/float zero, empty text or an empty blob.
// NULL is not truthy but is
// also not a CHECK failure on its own (a CHECK only fails on an explicit
// false/0 result).
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindInt64:
		return v.Int != 0
	case KindBigInt:
		return v.Big != nil && v.Big.Sign() != 0
	case KindFloat64:
		return v.Float != 0
	case KindText:
		return v.Text != ""
	case KindBlob:
		return len(v.Blob) != 0
	default:
		return false
	}
}

// IsConstraintFailure reports whether evaluating a CHECK expression to this
// value counts as a failed check: exactly false/0, per spec §4.4. NULL and
// any other truthy value pass.
func (v Value) IsConstraintFailure() bool {
	switch v.Kind {
	case KindInt64:
		return v.Int == 0
	case KindBigInt:
		return v.Big != nil && v.Big.Sign() == 0
	case KindFloat64:
		return v.Float == 0
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindInt64:
		return fmt.Sprintf("%d", v.Int)
	case KindBigInt:
		if v.Big == nil {
			return "0"
		}
		return v.Big.String()
	case KindFloat64:
		return fmt.Sprintf("%v", v.Float)
	case KindText:
		return v.Text
	case KindBlob:
		return fmt.Sprintf("x'%x'", v.Blob)
	default:
		return "?"
	}
}

// Compare orders two values of compatible kind. NULL sorts before every
// other value. Numeric kinds compare numerically across Int64/BigInt/Float64
// by promoting to the widest representation present.
func Compare(a, b Value) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return -1
	}
	if b.IsNull() {
		return 1
	}

	if a.Kind == KindText || b.Kind == KindText {
		return compareString(a.String(), b.String())
	}
	if a.Kind == KindBlob || b.Kind == KindBlob {
		return compareBytes(toBlob(a), toBlob(b))
	}
	if a.Kind == KindFloat64 || b.Kind == KindFloat64 {
		af, bf := toFloat(a), toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	if a.Kind == KindBigInt || b.Kind == KindBigInt {
		return toBig(a).Cmp(toBig(b))
	}
	switch {
	case a.Int < b.Int:
		return -1
	case a.Int > b.Int:
		return 1
	default:
		return 0
	}
}

func Equal(a, b Value) bool { return Compare(a, b) == 0 }

func toFloat(v Value) float64 {
	switch v.Kind {
	case KindInt64:
		return float64(v.Int)
	case KindBigInt:
		f := new(big.Float).SetInt(v.Big)
		out, _ := f.Float64()
		return out
	case KindFloat64:
		return v.Float
	default:
		return 0
	}
}

func toBig(v Value) *big.Int {
	switch v.Kind {
	case KindInt64:
		return big.NewInt(v.Int)
	case KindBigInt:
		if v.Big == nil {
			return big.NewInt(0)
		}
		return v.Big
	default:
		return big.NewInt(0)
	}
}

func toBlob(v Value) []byte {
	if v.Kind == KindBlob {
		return v.Blob
	}
	return []byte(v.String())
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBytes(a, b []byte) int {
	la, lb := len(a), len(b)
	n := la
	if lb < n {
		n = lb
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case la < lb:
		return -1
	case la > lb:
		return 1
	default:
		return 0
	}
}
