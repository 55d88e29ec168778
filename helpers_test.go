package xcollection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

// climateDataset builds a small dataset with two data variables over
// (time, lat), dimension coordinates for both, and a non-dimension
// coordinate.
func climateDataset(t *testing.T, offset float64) *Dataset {
	t.Helper()
	ds := NewDataset()
	ds.Attrs = Attributes{"title": "test run", "version": 2.0}

	require.NoError(t, ds.SetCoord("time", MustVariable([]string{"time"}, []int{3}, []float64{0, 1, 2}, Attributes{"units": "days"})))
	require.NoError(t, ds.SetCoord("lat", MustVariable([]string{"lat"}, []int{2}, []float64{-45, 45}, nil)))
	require.NoError(t, ds.SetCoord("area", MustVariable([]string{"lat"}, []int{2}, []float64{0.5, 0.5}, nil)))

	tas := make([]float64, 6)
	pr := make([]float64, 6)
	for i := range tas {
		tas[i] = offset + float64(i)
		pr[i] = offset * float64(i)
	}
	pr[4] = nan
	require.NoError(t, ds.SetDataVar("tas", MustVariable([]string{"time", "lat"}, []int{3, 2}, tas, Attributes{"units": "K"})))
	require.NoError(t, ds.SetDataVar("pr", MustVariable([]string{"time", "lat"}, []int{3, 2}, pr, nil)))
	return ds
}

// onlyVar builds a dataset with a single 1-d data variable over x.
func onlyVar(t *testing.T, name string, data ...float64) *Dataset {
	t.Helper()
	ds := NewDataset()
	require.NoError(t, ds.SetDataVar(name, MustVariable([]string{"x"}, []int{len(data)}, data, nil)))
	return ds
}

func testCollection(t *testing.T) *Collection {
	t.Helper()
	c, err := New(map[string]interface{}{
		"foo": climateDataset(t, 1),
		"bar": climateDataset(t, 10),
	})
	require.NoError(t, err)
	return c
}
