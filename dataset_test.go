package xcollection

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableValidate(t *testing.T) {
	cases := []struct {
		name  string
		dims  []string
		shape []int
		data  []float64
		ok    bool
	}{
		{"scalar", []string{}, []int{}, []float64{1}, true},
		{"matrix", []string{"y", "x"}, []int{2, 2}, []float64{1, 2, 3, 4}, true},
		{"empty", []string{"x"}, []int{0}, []float64{}, true},
		{"rank mismatch", []string{"x"}, []int{2, 1}, []float64{1, 2}, false},
		{"size mismatch", []string{"x"}, []int{3}, []float64{1, 2}, false},
		{"duplicate dim", []string{"x", "x"}, []int{1, 1}, []float64{1}, false},
		{"unnamed dim", []string{""}, []int{1}, []float64{1}, false},
		{"negative", []string{"x"}, []int{-1}, []float64{}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewVariable(c.dims, c.shape, c.data, nil)
			if c.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
	assert.Panics(t, func() { MustVariable([]string{"x"}, []int{2}, nil, nil) })
}

func TestVariableAtAndIsel(t *testing.T) {
	v := MustVariable([]string{"y", "x"}, []int{2, 3}, []float64{0, 1, 2, 3, 4, 5}, Attributes{"a": "b"})

	x, err := v.At(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5.0, x)
	_, err = v.At(2, 0)
	assert.Error(t, err)
	_, err = v.At(0)
	assert.Error(t, err)

	s := v.Isel("x", 1, 3)
	assert.Equal(t, []int{2, 2}, s.Shape)
	assert.Equal(t, []float64{1, 2, 4, 5}, s.Data)
	assert.Equal(t, "b", s.Attrs["a"])

	s = v.Isel("x", -1, 10)
	assert.Equal(t, []float64{2, 5}, s.Data)

	s = v.Isel("y", 1, 0)
	assert.Equal(t, []int{0, 3}, s.Shape)
	assert.Empty(t, s.Data)

	s = v.Isel("z", 0, 1)
	assert.Equal(t, v.Data, s.Data)
}

func TestDatasetConsistency(t *testing.T) {
	ds := climateDataset(t, 0)

	err := ds.SetDataVar("bad", MustVariable([]string{"time"}, []int{4}, make([]float64, 4), nil))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	err = ds.SetCoord("tas", MustVariable([]string{"lat"}, []int{2}, make([]float64, 2), nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists as a data variable")

	assert.Error(t, ds.SetDataVar("", Scalar(1)))
	assert.Error(t, ds.SetDataVar("nil", nil))

	assert.Equal(t, []Dim{{"time", 3}, {"lat", 2}}, ds.Dims())
	assert.Equal(t, []string{"time", "lat"}, ds.DimNames())
	n, ok := ds.DimSize("lat")
	assert.True(t, ok)
	assert.Equal(t, 2, n)
	assert.False(t, ds.HasDim("lon"))
	assert.Equal(t, 2, ds.Len())
	assert.True(t, ds.HasDataVar("tas"))
	assert.False(t, ds.HasDataVar("time"))
	assert.True(t, ds.IsCoord("area"))

	ds.Drop("pr")
	ds.Drop("pr")
	assert.Equal(t, []string{"tas"}, ds.DataVars())
}

func TestDatasetSelect(t *testing.T) {
	ds := climateDataset(t, 0)
	require.NoError(t, ds.SetDataVar("series", MustVariable([]string{"time"}, []int{3}, []float64{1, 2, 3}, nil)))

	sel, err := ds.Select("series")
	require.NoError(t, err)
	assert.Equal(t, []string{"series"}, sel.DataVars())
	assert.Equal(t, []string{"time"}, sel.Coords())
	assert.Equal(t, "test run", sel.Attrs["title"])

	_, err = ds.Select("tas", "nope", "other")
	require.Error(t, err)
	var ke *KeyError
	require.True(t, errors.As(err, &ke))
	assert.Equal(t, "No data variables: `[nope other]` found in dataset", ke.Error())
}

func TestDatasetIselCopy(t *testing.T) {
	ds := climateDataset(t, 0)

	sub, err := ds.Isel("time", 0, 1)
	require.NoError(t, err)
	n, _ := sub.DimSize("time")
	assert.Equal(t, 1, n)
	tas, _ := sub.Var("tas")
	assert.Equal(t, []float64{0, 1}, tas.Data)

	_, err = ds.Isel("lon", 0, 1)
	assert.Error(t, err)

	cp := ds.Copy()
	assert.True(t, cp.Identical(ds))
	v, _ := cp.Var("tas")
	v.Data[0] = 100
	assert.False(t, cp.Identical(ds))
	assert.Contains(t, cp.Diff(ds), "100")
}

func TestIdentical(t *testing.T) {
	a := climateDataset(t, 1)
	b := climateDataset(t, 1)
	assert.True(t, a.Identical(b), "NaN values compare equal")
	assert.Empty(t, a.Diff(b))

	b.Attrs["title"] = "other"
	assert.False(t, a.Identical(b))

	c := climateDataset(t, 1)
	v, _ := c.Var("area")
	c.Drop("area")
	require.NoError(t, c.SetDataVar("area", v))
	assert.False(t, a.Identical(c), "coordinates and data variables are distinct")

	var none *Dataset
	assert.False(t, a.Identical(none))
	assert.True(t, none.Identical(nil))
	assert.Equal(t, "one dataset is nil", a.Diff(nil))
}

func TestDataArray(t *testing.T) {
	ds := climateDataset(t, 0)

	da, err := ds.DataArray("tas")
	require.NoError(t, err)
	assert.Equal(t, "tas", da.Name)
	assert.Equal(t, []string{"time", "lat"}, da.Dims())
	assert.ElementsMatch(t, []string{"time", "lat", "area"}, da.Coords())
	_, ok := da.Coord("area")
	assert.True(t, ok)

	back, err := da.ToDataset()
	require.NoError(t, err)
	assert.Equal(t, []string{"tas"}, back.DataVars())

	_, err = ds.DataArray("time")
	assert.True(t, IsKeyError(err))

	_, err = NewDataArray("", Scalar(1)).ToDataset()
	assert.ErrorIs(t, err, ErrUnnamedDataArray)
}

func TestDatasetString(t *testing.T) {
	s := climateDataset(t, 0).String()
	lines := strings.Split(s, "\n")
	require.True(t, len(lines) > 5)
	assert.Equal(t, "<xcollection.Dataset>", lines[0])
	assert.Equal(t, "Dimensions:  (time: 3, lat: 2)", lines[1])
	assert.Equal(t, "Coordinates:", lines[2])
	assert.Contains(t, s, "  * time")
	assert.Contains(t, s, "    area")
	assert.Contains(t, s, "Data variables:\n    tas")
	assert.Contains(t, s, "0 1 2 ... 5")
	assert.Contains(t, s, "Attributes:\n    title:")

	assert.Contains(t, NewDataset().String(), "*empty*")

	da := NewDataArray("v", MustVariable([]string{"x"}, []int{2}, []float64{1.5, 2}, nil))
	assert.Equal(t, "<xcollection.DataArray \"v\" (x)>\n1.5 2", da.String())
}
