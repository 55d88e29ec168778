package xcollection

import (
	"fmt"
)

// Dim is a named dimension and its length.
type Dim struct {
	Name string
	Size int
}

// Dataset is a set of labeled variables sharing named dimensions. Variables
// are either data variables or coordinates; both kinds keep their insertion
// order. A shared dimension has the same length in every variable.
type Dataset struct {
	names   []string
	vars    map[string]*Variable
	isCoord map[string]bool
	Attrs   Attributes
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{
		vars:    map[string]*Variable{},
		isCoord: map[string]bool{},
		Attrs:   Attributes{},
	}
}

// SetDataVar adds or replaces a data variable.
func (ds *Dataset) SetDataVar(name string, v *Variable) error {
	return ds.set(name, v, false)
}

// SetCoord adds or replaces a coordinate variable.
func (ds *Dataset) SetCoord(name string, v *Variable) error {
	return ds.set(name, v, true)
}

func (ds *Dataset) set(name string, v *Variable, coord bool) error {
	if name == "" {
		return fmt.Errorf("variable name cannot be empty")
	}
	if v == nil {
		return fmt.Errorf("variable %q is nil", name)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("variable %q: %w", name, err)
	}
	if existing, ok := ds.isCoord[name]; ok && existing != coord {
		kind := "data variable"
		if existing {
			kind = "coordinate"
		}
		return fmt.Errorf("%q already exists as a %s", name, kind)
	}
	for i, d := range v.Dims {
		for other, ov := range ds.vars {
			if other == name {
				continue
			}
			if ax := ov.Axis(d); ax >= 0 && ov.Shape[ax] != v.Shape[i] {
				return fmt.Errorf("%w: dimension %q has length %d in %q but %d in %q", ErrDimensionMismatch, d, ov.Shape[ax], other, v.Shape[i], name)
			}
		}
	}

	if ds.vars == nil {
		ds.vars = map[string]*Variable{}
		ds.isCoord = map[string]bool{}
	}
	if _, ok := ds.vars[name]; !ok {
		ds.names = append(ds.names, name)
	}
	ds.vars[name] = v
	ds.isCoord[name] = coord
	return nil
}

// Drop removes a variable of either kind. Dropping a missing name is a
// no-op.
func (ds *Dataset) Drop(name string) {
	if _, ok := ds.vars[name]; !ok {
		return
	}
	delete(ds.vars, name)
	delete(ds.isCoord, name)
	for i, n := range ds.names {
		if n == name {
			ds.names = append(ds.names[:i:i], ds.names[i+1:]...)
			break
		}
	}
}

// DataVars returns data variable names in insertion order.
func (ds *Dataset) DataVars() []string { return ds.filterNames(false) }

// Coords returns coordinate names in insertion order.
func (ds *Dataset) Coords() []string { return ds.filterNames(true) }

func (ds *Dataset) filterNames(coord bool) []string {
	out := []string{}
	for _, n := range ds.names {
		if ds.isCoord[n] == coord {
			out = append(out, n)
		}
	}
	return out
}

// Var returns the named data variable or coordinate.
func (ds *Dataset) Var(name string) (*Variable, bool) {
	v, ok := ds.vars[name]
	return v, ok
}

// HasDataVar reports whether name is a data variable.
func (ds *Dataset) HasDataVar(name string) bool {
	_, ok := ds.vars[name]
	return ok && !ds.isCoord[name]
}

// IsCoord reports whether name is a coordinate.
func (ds *Dataset) IsCoord(name string) bool {
	return ds.isCoord[name]
}

// Len is the number of data variables.
func (ds *Dataset) Len() int { return len(ds.DataVars()) }

// Dims returns the dataset dimensions in order of first appearance.
func (ds *Dataset) Dims() []Dim {
	var dims []Dim
	seen := map[string]bool{}
	for _, n := range ds.names {
		v := ds.vars[n]
		for i, d := range v.Dims {
			if !seen[d] {
				seen[d] = true
				dims = append(dims, Dim{Name: d, Size: v.Shape[i]})
			}
		}
	}
	return dims
}

// DimNames returns the names from Dims.
func (ds *Dataset) DimNames() []string {
	dims := ds.Dims()
	out := make([]string, len(dims))
	for i, d := range dims {
		out[i] = d.Name
	}
	return out
}

// DimSize returns the length of dim.
func (ds *Dataset) DimSize(dim string) (int, bool) {
	for _, v := range ds.vars {
		if ax := v.Axis(dim); ax >= 0 {
			return v.Shape[ax], true
		}
	}
	return 0, false
}

// HasDim reports whether any variable carries dim.
func (ds *Dataset) HasDim(dim string) bool {
	_, ok := ds.DimSize(dim)
	return ok
}

// Select returns a dataset holding the named variables, plus every
// coordinate whose dimensions are covered by them, and the dataset
// attributes. Variables are shared, not copied. Any missing name is a
// *KeyError.
func (ds *Dataset) Select(names ...string) (*Dataset, error) {
	var missing []string
	for _, n := range names {
		if _, ok := ds.vars[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, missingVarsError(missing)
	}

	out := NewDataset()
	out.Attrs = ds.Attrs.Copy()
	dims := map[string]bool{}
	for _, n := range names {
		if _, ok := out.vars[n]; ok {
			continue
		}
		v := ds.vars[n]
		for _, d := range v.Dims {
			dims[d] = true
		}
		if err := out.set(n, v, ds.isCoord[n]); err != nil {
			return nil, err
		}
	}
	for _, c := range ds.Coords() {
		if _, ok := out.vars[c]; ok {
			continue
		}
		v := ds.vars[c]
		covered := true
		for _, d := range v.Dims {
			if !dims[d] {
				covered = false
				break
			}
		}
		if covered {
			if err := out.set(c, v, true); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Isel slices every variable carrying dim to the positional range
// [start, stop).
func (ds *Dataset) Isel(dim string, start, stop int) (*Dataset, error) {
	if !ds.HasDim(dim) {
		return nil, fmt.Errorf("dimension %q not found in dataset", dim)
	}
	out := NewDataset()
	out.Attrs = ds.Attrs.Copy()
	for _, n := range ds.names {
		if err := out.set(n, ds.vars[n].Isel(dim, start, stop), ds.isCoord[n]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Copy returns a deep copy.
func (ds *Dataset) Copy() *Dataset {
	out := NewDataset()
	out.Attrs = ds.Attrs.Copy()
	if out.Attrs == nil {
		out.Attrs = Attributes{}
	}
	for _, n := range ds.names {
		out.names = append(out.names, n)
		out.vars[n] = ds.vars[n].Copy()
		out.isCoord[n] = ds.isCoord[n]
	}
	return out
}

// DataArray returns the named data variable as a DataArray carrying the
// coordinates that apply to it.
func (ds *Dataset) DataArray(name string) (*DataArray, error) {
	if !ds.HasDataVar(name) {
		return nil, missingVarsError([]string{name})
	}
	sub, err := ds.Select(name)
	if err != nil {
		return nil, err
	}
	da := NewDataArray(name, ds.vars[name])
	for _, c := range sub.Coords() {
		da.SetCoord(c, sub.vars[c])
	}
	return da, nil
}
