package cube

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
)

// ScalarType is the closed set of value types a measure, dimension or
// attribute can carry.
type ScalarType uint8

const (
	TypeInvalid ScalarType = iota
	TypeByte
	TypeShort
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	// TypeTime is a label-backed calendar axis. Values are stored as doubles;
	// the calendar and units travel as attributes.
	TypeTime
	// TypeText is only valid for attributes.
	TypeText
)

// NumericTypes lists every type a measure or dimension may use.
var NumericTypes = []ScalarType{TypeByte, TypeShort, TypeInt, TypeLong, TypeFloat, TypeDouble, TypeTime}

var typeNames = map[ScalarType]string{
	TypeByte:   "byte",
	TypeShort:  "short",
	TypeInt:    "int",
	TypeLong:   "long",
	TypeFloat:  "float",
	TypeDouble: "double",
	TypeTime:   "time",
	TypeText:   "text",
}

var typeAliases = map[string]ScalarType{
	"char":   TypeText,
	"string": TypeText,
}

func (t ScalarType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("invalid(%d)", uint8(t))
}

// ParseScalarType maps a catalog type tag to a ScalarType. An unknown tag is
// an UnsupportedTypeError, never a default.
func ParseScalarType(tag string) (ScalarType, error) {
	s := strings.ToLower(strings.TrimSpace(tag))
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	if t, ok := typeAliases[s]; ok {
		return t, nil
	}
	return TypeInvalid, xerr.UnsupportedType("cube.parse_type", tag)
}

// Width is the number of bytes of one stored value.
func (t ScalarType) Width() (int, error) {
	switch t {
	case TypeByte, TypeText:
		return 1, nil
	case TypeShort:
		return 2, nil
	case TypeInt, TypeFloat:
		return 4, nil
	case TypeLong, TypeDouble, TypeTime:
		return 8, nil
	default:
		return 0, xerr.UnsupportedType("cube.width", t.String())
	}
}

// MustWidth is Width for types already validated by ParseScalarType.
func (t ScalarType) MustWidth() int {
	w, err := t.Width()
	if err != nil {
		panic(err)
	}
	return w
}

// IsInteger reports whether t stores integers.
func (t ScalarType) IsInteger() bool {
	switch t {
	case TypeByte, TypeShort, TypeInt, TypeLong:
		return true
	}
	return false
}

// IsNumeric reports whether t is valid for a measure or dimension.
func (t ScalarType) IsNumeric() bool {
	switch t {
	case TypeByte, TypeShort, TypeInt, TypeLong, TypeFloat, TypeDouble, TypeTime:
		return true
	}
	return false
}

func integerBounds(t ScalarType) (int64, int64) {
	switch t {
	case TypeByte:
		return math.MinInt8, math.MaxInt8
	case TypeShort:
		return math.MinInt16, math.MaxInt16
	case TypeInt:
		return math.MinInt32, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

// PutInt stores v as type t at buf[0:width] in little-endian order.
func PutInt(buf []byte, t ScalarType, v int64) error {
	switch t {
	case TypeByte:
		buf[0] = byte(int8(v))
	case TypeShort:
		binary.LittleEndian.PutUint16(buf, uint16(int16(v)))
	case TypeInt:
		binary.LittleEndian.PutUint32(buf, uint32(int32(v)))
	case TypeLong:
		binary.LittleEndian.PutUint64(buf, uint64(v))
	case TypeFloat:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
	case TypeDouble, TypeTime:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(float64(v)))
	default:
		return xerr.UnsupportedType("cube.put", t.String())
	}
	return nil
}

// PutFloat stores v as type t at buf[0:width]. Integer types truncate toward zero.
func PutFloat(buf []byte, t ScalarType, v float64) error {
	switch t {
	case TypeByte, TypeShort, TypeInt, TypeLong:
		return PutInt(buf, t, int64(v))
	case TypeFloat:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
	case TypeDouble, TypeTime:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	default:
		return xerr.UnsupportedType("cube.put", t.String())
	}
	return nil
}

// GetFloat reads one value of type t from buf as float64.
func GetFloat(buf []byte, t ScalarType) (float64, error) {
	switch t {
	case TypeByte:
		return float64(int8(buf[0])), nil
	case TypeShort:
		return float64(int16(binary.LittleEndian.Uint16(buf))), nil
	case TypeInt:
		return float64(int32(binary.LittleEndian.Uint32(buf))), nil
	case TypeLong:
		return float64(int64(binary.LittleEndian.Uint64(buf))), nil
	case TypeFloat:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))), nil
	case TypeDouble, TypeTime:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
	default:
		return 0, xerr.UnsupportedType("cube.get", t.String())
	}
}

// GetInt reads one integer value of type t from buf.
func GetInt(buf []byte, t ScalarType) (int64, error) {
	switch t {
	case TypeByte:
		return int64(int8(buf[0])), nil
	case TypeShort:
		return int64(int16(binary.LittleEndian.Uint16(buf))), nil
	case TypeInt:
		return int64(int32(binary.LittleEndian.Uint32(buf))), nil
	case TypeLong:
		return int64(binary.LittleEndian.Uint64(buf)), nil
	case TypeFloat, TypeDouble, TypeTime:
		f, err := GetFloat(buf, t)
		return int64(f), err
	default:
		return 0, xerr.UnsupportedType("cube.get", t.String())
	}
}

// DecodeLongs decodes a little-endian int64 array.
func DecodeLongs(buf []byte) ([]int64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("long array of %d bytes is not a multiple of 8", len(buf))
	}
	out := make([]int64, len(buf)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return out, nil
}

// EncodeLongs converts integer values to a buffer of type t.
func EncodeLongs(t ScalarType, vals []int64) ([]byte, error) {
	w, err := t.Width()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, len(vals)*w)
	for i, v := range vals {
		if err := PutInt(buf[i*w:], t, v); err != nil {
			return nil, err
		}
	}
	return buf, nil
}
