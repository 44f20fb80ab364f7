package cube

import (
	"fmt"
	"math"
	"strings"

	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/shopspring/decimal"
)

// Value is a typed scalar, used for attributes and fill values.
type Value struct {
	Type  ScalarType
	Text  string
	Int   int64
	Float float64
}

func TextValue(s string) Value { return Value{Type: TypeText, Text: s} }

// ParseValue parses a catalog attribute value stored as text. Numeric values
// go through decimal so integer types reject fractional input instead of
// silently truncating it.
func ParseValue(t ScalarType, raw string) (Value, error) {
	s := strings.TrimSpace(raw)
	switch t {
	case TypeText:
		return Value{Type: TypeText, Text: raw}, nil
	case TypeByte, TypeShort, TypeInt, TypeLong:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Value{}, fmt.Errorf("parse %s value %q: %w", t, raw, err)
		}
		if !d.IsInteger() {
			return Value{}, fmt.Errorf("parse %s value %q: not an integer", t, raw)
		}
		lo, hi := integerBounds(t)
		if d.LessThan(decimal.NewFromInt(lo)) || d.GreaterThan(decimal.NewFromInt(hi)) {
			return Value{}, fmt.Errorf("parse %s value %q: out of range", t, raw)
		}
		return Value{Type: t, Int: d.IntPart()}, nil
	case TypeFloat, TypeDouble, TypeTime:
		if f, ok := parseSpecialFloat(s); ok {
			return Value{Type: t, Float: f}, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Value{}, fmt.Errorf("parse %s value %q: %w", t, raw, err)
		}
		f, _ := d.Float64()
		if t == TypeFloat {
			f = float64(float32(f))
		}
		return Value{Type: t, Float: f}, nil
	default:
		return Value{}, xerr.UnsupportedType("cube.parse_value", t.String())
	}
}

func parseSpecialFloat(s string) (float64, bool) {
	switch strings.ToLower(s) {
	case "nan":
		return math.NaN(), true
	case "inf", "+inf", "infinity":
		return math.Inf(1), true
	case "-inf", "-infinity":
		return math.Inf(-1), true
	}
	return 0, false
}

// Convert returns v expressed as type t. Text converts by parsing.
func (v Value) Convert(t ScalarType) (Value, error) {
	if v.Type == t {
		return v, nil
	}
	switch v.Type {
	case TypeText:
		return ParseValue(t, v.Text)
	case TypeByte, TypeShort, TypeInt, TypeLong:
		if t == TypeText {
			return TextValue(fmt.Sprintf("%d", v.Int)), nil
		}
		return ParseValue(t, fmt.Sprintf("%d", v.Int))
	case TypeFloat, TypeDouble, TypeTime:
		switch {
		case t == TypeText:
			return TextValue(fmt.Sprintf("%g", v.Float)), nil
		case t.IsInteger():
			if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
				return Value{}, fmt.Errorf("cannot convert %g to %s", v.Float, t)
			}
			return ParseValue(t, decimal.NewFromFloat(v.Float).String())
		default:
			f := v.Float
			if t == TypeFloat {
				f = float64(float32(f))
			}
			return Value{Type: t, Float: f}, nil
		}
	default:
		return Value{}, xerr.UnsupportedType("cube.convert", v.Type.String())
	}
}

// Bytes encodes v in its own type, little-endian. Text yields its UTF-8 bytes.
func (v Value) Bytes() ([]byte, error) {
	if v.Type == TypeText {
		return []byte(v.Text), nil
	}
	w, err := v.Type.Width()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, w)
	if v.Type.IsInteger() {
		err = PutInt(buf, v.Type, v.Int)
	} else {
		err = PutFloat(buf, v.Type, v.Float)
	}
	return buf, err
}

// AsFloat returns the numeric value of v.
func (v Value) AsFloat() float64 {
	if v.Type.IsInteger() {
		return float64(v.Int)
	}
	return v.Float
}

func (v Value) String() string {
	switch {
	case v.Type == TypeText:
		return v.Text
	case v.Type.IsInteger():
		return fmt.Sprintf("%d", v.Int)
	default:
		return fmt.Sprintf("%g", v.Float)
	}
}

// ValueFromBytes decodes one value of type t.
func ValueFromBytes(t ScalarType, buf []byte) (Value, error) {
	if t == TypeText {
		return TextValue(string(buf)), nil
	}
	if t.IsInteger() {
		i, err := GetInt(buf, t)
		return Value{Type: t, Int: i}, err
	}
	f, err := GetFloat(buf, t)
	return Value{Type: t, Float: f}, err
}
