package zarr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

type MetaType string

const (
	// MTAttributes stores userland metadata keyed by array name
	MTAttributes MetaType = ".zattrs"
	// MTArray is the key for storing metadata on an array store
	MTArray MetaType = ".zarray"
	// MTGroup is the key for storing group definitions on an array store
	MTGroup MetaType = ".zgroup"
	// MTMetadata is the key for composite metadata
	MTMetadata MetaType = ".zmetadata"
)

// FormatVersion is the version of the storage specification this package
// reads and writes.
const FormatVersion = 2

type MetaTyper interface {
	MetaType() MetaType
}

var metaTypes = map[MetaType]struct{}{
	MTAttributes: {},
	MTArray:      {},
	MTGroup:      {},
}

// relies on the fact that all keynames are 7 characters long
func KeyMetaType(s string) (mt MetaType, ok bool) {
	if len(s) < 7 {
		return mt, false
	}
	mt = MetaType(s[len(s)-7:])
	_, ok = metaTypes[mt]
	return mt, ok
}

type Attributes map[string]interface{}

func (Attributes) MetaType() MetaType { return MTAttributes }

// Arrays can be organized into groups which can also contain other groups.
// A group is created by storing group metadata under the ".zgroup" key under
// some logical path. E.g., a group exists at the root of an array store if the
// ".zgroup" key exists in the store, and a group exists at logical path
// "foo/bar" if the "foo/bar/.zgroup" key exists in the store.
type Group struct {
	ZarrFormat int `json:"zarr_format"`
}

func (Group) MetaType() MetaType { return MTGroup }

type ConsolidatedMetadata struct {
	ConsolidatedFormat int                  `json:"zarr_consolidated_format"`
	Metadata           map[string]MetaTyper `json:"metadata"`
}

type consolidatedMetaDecoder struct {
	ConsolidatedFormat int                        `json:"zarr_consolidated_format"`
	Metadata           map[string]json.RawMessage `json:"metadata"`
}

func (m *ConsolidatedMetadata) UnmarshalJSON(d []byte) error {
	cd := consolidatedMetaDecoder{}
	if err := json.Unmarshal(d, &cd); err != nil {
		return err
	}
	cm := ConsolidatedMetadata{
		ConsolidatedFormat: cd.ConsolidatedFormat,
		Metadata:           map[string]MetaTyper{},
	}

	for key, data := range cd.Metadata {
		kt, ok := KeyMetaType(key)
		if !ok {
			return fmt.Errorf("invalid consoldated metadata key: %q", key)
		}

		switch kt {
		case MTArray:
			arr := &ArrayMeta{}
			if err := json.Unmarshal(data, arr); err != nil {
				return fmt.Errorf("reading %q metadata: %w", key, err)
			}
			cm.Metadata[key] = arr
		case MTAttributes:
			attr := Attributes{}
			if err := json.Unmarshal(data, &attr); err != nil {
				return fmt.Errorf("reading %q attributes: %w", key, err)
			}
			cm.Metadata[key] = attr
		case MTGroup:
			grp := &Group{}
			if err := json.Unmarshal(data, grp); err != nil {
				return fmt.Errorf("reading %q group: %w", key, err)
			}
			cm.Metadata[key] = grp
		}
	}

	*m = cm
	return nil
}

// Each array requires essential configuration metadata to be stored,
// enabling correct interpretation of the stored data.
// This metadata is encoded using JSON and stored as the value of the
// ".zarray" key within an array store.
type ArrayMeta struct {
	// An integer defining the version of the storage specification to which
	// the array store adheres.
	ZarrFormat int `json:"zarr_format"`
	// A list of integers defining the length of each dimension of the array.
	Shape []int `json:"shape"`
	// A list of integers defining the length of each dimension of a chunk of the
	// array. Note that all chunks within a Zarr array have the same shape.
	Chunks []int `json:"chunks"`
	// A string defining a valid data type for the array.
	Dtype Dtype `json:"dtype"`
	// A JSON object identifying the primary compression codec and providing
	// configuration parameters, or null if no compressor is to be used. The
	// object MUST contain an "id" key identifying the codec to be used.
	Compressor *CompressionMeta `json:"compressor"`

	// A scalar value providing the default value to use for uninitialized
	// portions of the array, or null if no fill_value is to be used.
	FillValue interface{} `json:"fill_value"`
	// Either "C" or "F", defining the layout of bytes within each chunk of the
	// array. "C" means row-major order, i.e., the last dimension varies fastest;
	// "F" means column-major order, i.e., the first dimension varies fastest.
	Order string `json:"order"`
	// A list of JSON objects providing codec configurations, or null if no
	// filters are to be applied. Each codec configuration object MUST contain a
	// "id" key identifying the codec to be used.
	Filters []Filter `json:"filters"`

	// optional fields

	// If present, either the string "." or "/"" definining the separator placed
	// between the dimensions of a chunk. If the value is not set, then the
	// default MUST be assumed to be ".", leading to chunk keys of the form "0.0".
	DimensionSeparator string `json:"dimension_separator,omitempty"`
}

func (a ArrayMeta) MetaType() MetaType { return MTArray }

// Validate checks the parts of the metadata this package relies on.
func (a *ArrayMeta) Validate() error {
	if a.ZarrFormat != FormatVersion {
		return fmt.Errorf("unsupported zarr_format %d", a.ZarrFormat)
	}
	if len(a.Chunks) != len(a.Shape) {
		return fmt.Errorf("chunks %v do not match shape %v", a.Chunks, a.Shape)
	}
	for i, c := range a.Chunks {
		if c < 1 {
			return fmt.Errorf("chunk length for dimension %d must be positive, got %d", i, c)
		}
		if a.Shape[i] < 0 {
			return fmt.Errorf("negative length for dimension %d", i)
		}
	}
	if a.Order != "C" {
		return fmt.Errorf("unsupported order %q: only C order is supported", a.Order)
	}
	if len(a.Filters) > 0 {
		return fmt.Errorf("filters are not supported")
	}
	switch a.DimensionSeparator {
	case "", ".", "/":
	default:
		return fmt.Errorf("invalid dimension_separator %q", a.DimensionSeparator)
	}
	return nil
}

// fillFloat interprets FillValue as a float64. null reads as NaN, matching
// how xarray treats float arrays without a fill value.
func (a *ArrayMeta) fillFloat() (float64, error) {
	switch v := a.FillValue.(type) {
	case nil:
		return nan, nil
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		switch v {
		case FillValueNaN:
			return nan, nil
		case FillValueInfinity:
			return posInf, nil
		case FillValueNegativeInfinity:
			return negInf, nil
		}
	}
	return 0, fmt.Errorf("unsupported fill_value %#v", a.FillValue)
}

type Filter struct {
	ID     string `json:"id"`
	Delta  string `json:"delta,omitempty"`
	Dtype  string `json:"dtype,omitempty"`
	AsType string `json:"astype,omitempty"`
}

const (
	// Not a Number
	FillValueNaN = "NaN"
	// Infinity
	FillValueInfinity = "Infinity"
	// -Infinity
	FillValueNegativeInfinity = "-Infinity"
)

func putJSON(ctx context.Context, s Store, key string, v interface{}) error {
	d, err := encodeJSON(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	return s.Put(ctx, key, bytes.NewReader(d))
}

// encodeJSON writes metadata documents the way zarr-python does: indented,
// with dtype strings like "<f8" left unescaped.
func encodeJSON(v interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func getJSON(ctx context.Context, s Store, key string, v interface{}) error {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()
	d, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(d, v); err != nil {
		return fmt.Errorf("decoding %q: %w", key, err)
	}
	return nil
}

// ReadAttributes loads the .zattrs document at p. A missing document yields
// empty attributes.
func ReadAttributes(ctx context.Context, s Store, p Path) (Attributes, error) {
	attrs := Attributes{}
	if err := getJSON(ctx, s, p.Key(string(MTAttributes)), &attrs); err != nil {
		if isNotFound(err) {
			return Attributes{}, nil
		}
		return nil, err
	}
	return attrs, nil
}

// WriteAttributes stores attrs as the .zattrs document at p.
func WriteAttributes(ctx context.Context, s Store, p Path, attrs Attributes) error {
	if attrs == nil {
		attrs = Attributes{}
	}
	return putJSON(ctx, s, p.Key(string(MTAttributes)), attrs)
}
