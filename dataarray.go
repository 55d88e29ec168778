package xcollection

// DataArray is a single named variable together with its coordinates.
type DataArray struct {
	Name     string
	Variable *Variable

	coordNames []string
	coords     map[string]*Variable
}

// NewDataArray wraps v. An empty name is allowed, but such an array cannot
// be stored in a Collection.
func NewDataArray(name string, v *Variable) *DataArray {
	return &DataArray{Name: name, Variable: v, coords: map[string]*Variable{}}
}

// SetCoord attaches a coordinate and returns the array for chaining.
func (da *DataArray) SetCoord(name string, v *Variable) *DataArray {
	if da.coords == nil {
		da.coords = map[string]*Variable{}
	}
	if _, ok := da.coords[name]; !ok {
		da.coordNames = append(da.coordNames, name)
	}
	da.coords[name] = v
	return da
}

// Coords returns coordinate names in insertion order.
func (da *DataArray) Coords() []string { return append([]string{}, da.coordNames...) }

// Coord returns the named coordinate.
func (da *DataArray) Coord(name string) (*Variable, bool) {
	v, ok := da.coords[name]
	return v, ok
}

// Dims returns the dimensions of the underlying variable.
func (da *DataArray) Dims() []string { return da.Variable.Dims }

// ToDataset converts the array to a single-variable dataset.
func (da *DataArray) ToDataset() (*Dataset, error) {
	if da.Name == "" {
		return nil, ErrUnnamedDataArray
	}
	ds := NewDataset()
	for _, c := range da.coordNames {
		if err := ds.SetCoord(c, da.coords[c]); err != nil {
			return nil, err
		}
	}
	if err := ds.SetDataVar(da.Name, da.Variable); err != nil {
		return nil, err
	}
	return ds, nil
}
