package zarr

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dtype is the set of all zarr data types
// Simple data types as a string following the NumPy array protocol type string
// (typestr) format. The format consists of 3 parts:
//  * One character describing the byteorder of the data:
//    "<": little-endian; ">": big-endian; "|": not-relevant)
//  * One character code giving the basic type of the array:
//    * "b": Boolean (integer type where all values are only True or False)
//    * "i": integer;
//    * "u": unsigned integer
//    * "f": floating point
//    * "c": complex floating point
//    * "m": timedelta;
//    * "M": datetime
//    * "S": string (fixed-length sequence of char)
//    * "U": unicode (fixed-length sequence of Py_UNICODE)
//    * "V": other (void * – each item is a fixed-size chunk of memory))
//  * An integer specifying the number of bytes the type uses.
//
// The byte order is optional in some circumstances, within the zarr format
// byte order MUST be specified
type Dtype struct {
	ByteOrder ByteOrder
	BasicType BasicType
	ByteSize  int
	Units     string
}

var (
	_ json.Unmarshaler = (*Dtype)(nil)
	_ json.Marshaler   = (*Dtype)(nil)
)

// Float64 is the dtype arrays are written with.
var Float64 = Dtype{ByteOrder: BOLittleEndian, BasicType: BTFloatingPoint, ByteSize: 8}

func ParseDtype(s string) (dt Dtype, err error) {
	// bug in python implementation uses HTML escape sequences when serializaing JSON
	s = strings.Replace(s, "&lt;", "<", 1)
	s = strings.Replace(s, "&gt;", ">", 1)

	if len(s) < 3 {
		return dt, fmt.Errorf("invalid Dtype string. %q is too short", s)
	}

	boByte, s := s[0], s[1:]
	dt.ByteOrder, err = ParseByteOrder(rune(boByte))
	if err != nil {
		return dt, err
	}

	typeByte, s := s[0], s[1:]
	dt.BasicType, err = ParseBasicType(rune(typeByte))
	if err != nil {
		return dt, err
	}

	sizeStr, unitStr := s, ""
	if i := strings.IndexByte(s, '['); i >= 0 {
		sizeStr, unitStr = s[:i], s[i:]
	}

	size, err := strconv.ParseInt(sizeStr, 10, 0)
	if err != nil {
		return dt, err
	}
	dt.ByteSize = int(size)
	dt.Units = unitStr

	return dt, nil
}

func (dt Dtype) String() string {
	s := fmt.Sprintf("%s%s%d", string(dt.ByteOrder), string(dt.BasicType), dt.ByteSize)
	if dt.Units != "" {
		s += dt.Units
	}
	return s
}

func (dt Dtype) MarshalJSON() ([]byte, error) {
	return []byte(`"` + dt.String() + `"`), nil
}

func (dt *Dtype) UnmarshalJSON(d []byte) error {
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		return fmt.Errorf("structured dtypes are not supported: %w", err)
	}
	t, err := ParseDtype(s)
	if err != nil {
		return err
	}

	*dt = t
	return nil
}

func (dt Dtype) byteOrder() binary.ByteOrder {
	if dt.ByteOrder == BOBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// decodeFunc returns a function converting one element's bytes to float64.
// Only numeric and boolean dtypes can back a dataset variable.
func (dt Dtype) decodeFunc() (func([]byte) float64, error) {
	bo := dt.byteOrder()
	switch dt.BasicType {
	case BTBoolean:
		if dt.ByteSize == 1 {
			return func(b []byte) float64 {
				if b[0] != 0 {
					return 1
				}
				return 0
			}, nil
		}
	case BTInteger:
		switch dt.ByteSize {
		case 1:
			return func(b []byte) float64 { return float64(int8(b[0])) }, nil
		case 2:
			return func(b []byte) float64 { return float64(int16(bo.Uint16(b))) }, nil
		case 4:
			return func(b []byte) float64 { return float64(int32(bo.Uint32(b))) }, nil
		case 8:
			return func(b []byte) float64 { return float64(int64(bo.Uint64(b))) }, nil
		}
	case BTUnsigned:
		switch dt.ByteSize {
		case 1:
			return func(b []byte) float64 { return float64(b[0]) }, nil
		case 2:
			return func(b []byte) float64 { return float64(bo.Uint16(b)) }, nil
		case 4:
			return func(b []byte) float64 { return float64(bo.Uint32(b)) }, nil
		case 8:
			return func(b []byte) float64 { return float64(bo.Uint64(b)) }, nil
		}
	case BTFloatingPoint:
		switch dt.ByteSize {
		case 4:
			return func(b []byte) float64 { return float64(math.Float32frombits(bo.Uint32(b))) }, nil
		case 8:
			return func(b []byte) float64 { return math.Float64frombits(bo.Uint64(b)) }, nil
		}
	}
	return nil, fmt.Errorf("unsupported decoding type %s", dt)
}

// encodeFunc is the inverse of decodeFunc for the dtypes arrays can be
// written with.
func (dt Dtype) encodeFunc() (func([]byte, float64), error) {
	bo := dt.byteOrder()
	switch {
	case dt.BasicType == BTFloatingPoint && dt.ByteSize == 8:
		return func(b []byte, v float64) { bo.PutUint64(b, math.Float64bits(v)) }, nil
	case dt.BasicType == BTFloatingPoint && dt.ByteSize == 4:
		return func(b []byte, v float64) { bo.PutUint32(b, math.Float32bits(float32(v))) }, nil
	}
	return nil, fmt.Errorf("unsupported encoding type %s", dt)
}

type ByteOrder rune

func ParseByteOrder(r rune) (ByteOrder, error) {
	o := ByteOrder(r)
	if _, ok := byteOrders[o]; !ok {
		return o, fmt.Errorf("unsupported byte order format: %q", r)
	}
	return o, nil
}

const (
	BONotRelevant  ByteOrder = '|'
	BOLittleEndian ByteOrder = '<'
	BOBigEndian    ByteOrder = '>'
)

var byteOrders = map[ByteOrder]struct{}{
	BONotRelevant:  {},
	BOLittleEndian: {},
	BOBigEndian:    {},
}

type BasicType rune

func ParseBasicType(r rune) (BasicType, error) {
	t := BasicType(r)
	if _, ok := supportedBasicTypes[t]; !ok {
		return t, fmt.Errorf("unsupported basic type: %q", r)
	}
	return t, nil
}

func (bt BasicType) Human() string {
	return supportedBasicTypes[bt]
}

const (
	BTBoolean       BasicType = 'b'
	BTInteger       BasicType = 'i'
	BTUnsigned      BasicType = 'u'
	BTFloatingPoint BasicType = 'f'
	BTComplex       BasicType = 'c'
	BTTimedelta     BasicType = 'm'
	BTDatetime      BasicType = 'M'
	BTString        BasicType = 'S'
	BTUnicode       BasicType = 'U'
	BTOther         BasicType = 'V'
)

var supportedBasicTypes = map[BasicType]string{
	BTBoolean:       "bool",
	BTInteger:       "int",
	BTUnsigned:      "uint",
	BTFloatingPoint: "float",
	BTComplex:       "complex",
	BTTimedelta:     "timeDelta",
	BTDatetime:      "dateTime",
	BTString:        "string",
	BTUnicode:       "unicode",
	BTOther:         "other",
}
