package xcollection

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
)

// writeNetCDF writes ds to a netCDF classic file. Coordinates follow the CF
// convention: dimension coordinates are variables named after their
// dimension, the rest are listed in a "coordinates" attribute.
func writeNetCDF(path string, ds *Dataset) (err error) {
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cw.Close(); err == nil {
			err = cerr
		}
	}()

	groupAttrs, varAttrs := encodeAttributes(ds)
	for _, n := range ds.names {
		v := ds.vars[n]
		attrs := varAttrs[n]
		delete(attrs, attrArrayDims)
		am, err := netCDFAttributes(attrs)
		if err != nil {
			return fmt.Errorf("variable %q: %w", n, err)
		}
		if err := cw.AddVar(n, api.Variable{
			Values:     nestValues(v.Data, v.Shape),
			Dimensions: append([]string{}, v.Dims...),
			Attributes: am,
		}); err != nil {
			return fmt.Errorf("variable %q: %w", n, err)
		}
	}

	am, err := netCDFAttributes(groupAttrs)
	if err != nil {
		return err
	}
	return cw.AddGlobalAttrs(am)
}

// readNetCDF loads every variable of a netCDF file as float64 data.
func readNetCDF(path string) (*Dataset, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer g.Close()

	groupAttrs := readAttributeMap(g.Attributes())
	coordNames := map[string]bool{}
	for _, c := range splitFields(groupAttrs[attrCoordinates]) {
		coordNames[c] = true
	}
	delete(groupAttrs, attrCoordinates)

	names := g.ListVariables()
	vars := map[string]*Variable{}
	for _, n := range names {
		nv, err := g.GetVariable(n)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", n, err)
		}
		data, shape, err := flattenValues(nv.Values)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", n, err)
		}
		attrs := readAttributeMap(nv.Attributes)
		for _, c := range splitFields(attrs[attrCoordinates]) {
			coordNames[c] = true
		}
		delete(attrs, attrCoordinates)

		dims := append([]string{}, nv.Dimensions...)
		if len(dims) != len(shape) {
			return nil, fmt.Errorf("variable %q: %d dimensions for values of rank %d", n, len(dims), len(shape))
		}
		v, err := NewVariable(dims, shape, data, attrs)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", n, err)
		}
		vars[n] = v
	}

	ds := NewDataset()
	ds.Attrs = groupAttrs
	for _, n := range names {
		if coordNames[n] || isDimensionCoord(n, vars[n]) {
			if err := ds.SetCoord(n, vars[n]); err != nil {
				return nil, err
			}
		}
	}
	for _, n := range names {
		if !ds.IsCoord(n) {
			if err := ds.SetDataVar(n, vars[n]); err != nil {
				return nil, err
			}
		}
	}
	return ds, nil
}

func splitFields(v interface{}) []string {
	s, _ := v.(string)
	return strings.Fields(s)
}

// netCDFAttributes converts attributes to the types the classic format
// stores: text, doubles and arrays of doubles.
func netCDFAttributes(attrs map[string]interface{}) (api.AttributeMap, error) {
	keys := make([]string, 0, len(attrs))
	vals := map[string]interface{}{}
	for k, v := range attrs {
		cv, err := netCDFAttribute(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		keys = append(keys, k)
		vals[k] = cv
	}
	sort.Strings(keys)
	om, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		return nil, err
	}
	return om, nil
}

func netCDFAttribute(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case string, float64, []float64:
		return x, nil
	case bool:
		if x {
			return float64(1), nil
		}
		return float64(0), nil
	case []string:
		return strings.Join(x, " "), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32:
		return rv.Convert(reflect.TypeOf(float64(0))).Float(), nil
	case reflect.Slice:
		out := make([]float64, rv.Len())
		for i := range out {
			f, err := netCDFAttribute(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			n, ok := f.(float64)
			if !ok {
				return nil, fmt.Errorf("unsupported list element %T", rv.Index(i).Interface())
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported attribute type %T", v)
}

// readAttributeMap copies a netCDF attribute map, widening numbers to
// float64. The format stores every numeric attribute as an array, so a
// single value comes back as a scalar.
func readAttributeMap(am api.AttributeMap) Attributes {
	out := Attributes{}
	if am == nil {
		return out
	}
	for _, k := range am.Keys() {
		v, ok := am.Get(k)
		if !ok {
			continue
		}
		out[k] = widenAttribute(v)
	}
	return out
}

func widenAttribute(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		return s
	}
	rv := reflect.ValueOf(v)
	if isNumericKind(rv.Kind()) {
		return toFloat(rv)
	}
	if rv.Kind() == reflect.Slice && isNumericKind(rv.Type().Elem().Kind()) {
		if rv.Len() == 1 {
			return toFloat(rv.Index(0))
		}
		out := make([]float64, rv.Len())
		for i := range out {
			out[i] = toFloat(rv.Index(i))
		}
		return out
	}
	return v
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(rv reflect.Value) float64 {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	}
	return rv.Float()
}

// nestValues turns C-order data into the nested slices the netCDF writer
// expects. A 0-d variable becomes a bare float64.
func nestValues(data []float64, shape []int) interface{} {
	if len(shape) == 0 {
		return data[0]
	}
	if len(shape) == 1 {
		return append([]float64{}, data...)
	}
	typ := reflect.TypeOf([]float64{})
	for i := 1; i < len(shape); i++ {
		typ = reflect.SliceOf(typ)
	}
	return nest(data, shape, typ).Interface()
}

func nest(data []float64, shape []int, typ reflect.Type) reflect.Value {
	if len(shape) == 1 {
		return reflect.ValueOf(append([]float64{}, data...))
	}
	out := reflect.MakeSlice(typ, shape[0], shape[0])
	step := product(shape[1:])
	for i := 0; i < shape[0]; i++ {
		out.Index(i).Set(nest(data[i*step:(i+1)*step], shape[1:], typ.Elem()))
	}
	return out
}

// flattenValues converts a numeric scalar or nested slice into C-order
// float64 data and its shape.
func flattenValues(values interface{}) ([]float64, []int, error) {
	rv := reflect.ValueOf(values)
	if !rv.IsValid() {
		return nil, nil, fmt.Errorf("variable has no values")
	}
	if isNumericKind(rv.Kind()) {
		return []float64{toFloat(rv)}, []int{}, nil
	}

	var shape []int
	for t, cur := rv.Type(), rv; t.Kind() == reflect.Slice; t = t.Elem() {
		shape = append(shape, cur.Len())
		if cur.Len() > 0 {
			cur = cur.Index(0)
		}
	}
	var data []float64
	if err := flattenInto(rv, &data); err != nil {
		return nil, nil, err
	}
	return data, shape, nil
}

func flattenInto(rv reflect.Value, out *[]float64) error {
	if rv.Kind() != reflect.Slice {
		if !isNumericKind(rv.Kind()) {
			return fmt.Errorf("unsupported element type %s", rv.Type())
		}
		*out = append(*out, toFloat(rv))
		return nil
	}
	if rv.Type().Elem().Kind() == reflect.Slice {
		for i := 0; i < rv.Len(); i++ {
			if err := flattenInto(rv.Index(i), out); err != nil {
				return err
			}
		}
		return nil
	}
	if !isNumericKind(rv.Type().Elem().Kind()) {
		return fmt.Errorf("unsupported element type %s", rv.Type().Elem())
	}
	for i := 0; i < rv.Len(); i++ {
		*out = append(*out, toFloat(rv.Index(i)))
	}
	return nil
}
