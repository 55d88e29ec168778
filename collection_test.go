package xcollection

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSortsKeys(t *testing.T) {
	c := testCollection(t)
	assert.Equal(t, []string{"bar", "foo"}, c.Keys())
	assert.Equal(t, 2, c.Len())

	empty, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Keys())
}

func TestValidation(t *testing.T) {
	da := NewDataArray("tas", MustVariable([]string{"x"}, []int{2}, []float64{1, 2}, nil)).
		SetCoord("x", MustVariable([]string{"x"}, []int{2}, []float64{10, 20}, nil))

	c, err := New(map[string]interface{}{"a": da, "b": *onlyVar(t, "pr", 1)})
	require.NoError(t, err)

	ds, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"tas"}, ds.DataVars())
	assert.Equal(t, []string{"x"}, ds.Coords())

	cases := []struct {
		name  string
		key   string
		value interface{}
		want  error
	}{
		{"unnamed data array", "k", NewDataArray("", Scalar(1)), ErrUnnamedDataArray},
		{"int", "k", 1, ErrInvalidType},
		{"string", "k", "dataset", ErrInvalidType},
		{"nil dataset", "k", (*Dataset)(nil), ErrInvalidType},
		{"empty key", "", NewDataset(), ErrInvalidKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := c.Set(tc.key, tc.value)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tc.key, ve.Key)
		})
	}
	assert.Equal(t, 2, c.Len(), "failed sets must not add keys")

	_, err = New(map[string]interface{}{"bad": 42})
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestDatasetValueIsCopied(t *testing.T) {
	ds := climateDataset(t, 1)
	c, err := New(map[string]interface{}{"a": *ds})
	require.NoError(t, err)

	require.NoError(t, ds.SetDataVar("extra", MustVariable([]string{"x"}, []int{1}, []float64{1}, nil)))
	got, err := c.Get("a")
	require.NoError(t, err)
	assert.False(t, got.HasDataVar("extra"))

	got.Drop("tas")
	assert.True(t, ds.HasDataVar("tas"))
}

func TestGetDelete(t *testing.T) {
	c := testCollection(t)

	_, err := c.Get("missing")
	require.Error(t, err)
	assert.True(t, IsKeyError(err))
	assert.Equal(t, "Dataset with key: `missing` not found", err.Error())

	require.NoError(t, c.Delete("bar"))
	assert.False(t, c.Contains("bar"))
	assert.Equal(t, []string{"foo"}, c.Keys())
	assert.True(t, IsKeyError(c.Delete("bar")))
}

func TestSetKeepsPosition(t *testing.T) {
	c := &Collection{}
	require.NoError(t, c.Set("z", onlyVar(t, "a", 1)))
	require.NoError(t, c.Set("y", onlyVar(t, "a", 2)))
	require.NoError(t, c.Set("z", onlyVar(t, "a", 3)))

	assert.Equal(t, []string{"z", "y"}, c.Keys())
	ds, err := c.Get("z")
	require.NoError(t, err)
	assert.True(t, ds.Identical(onlyVar(t, "a", 3)))
}

func TestIteration(t *testing.T) {
	c := testCollection(t)

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "bar", items[0].Key)
	assert.Same(t, c.Values()[1], items[1].Dataset)

	var seen []string
	c.Range(func(key string, _ *Dataset) bool {
		seen = append(seen, key)
		return false
	})
	assert.Equal(t, []string{"bar"}, seen)
}

func TestFromDatasets(t *testing.T) {
	c, err := FromDatasets([]string{"b", "a"}, []*Dataset{onlyVar(t, "v", 1), onlyVar(t, "v", 2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, c.Keys())

	_, err = FromDatasets([]string{"a"}, nil)
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	a := testCollection(t)
	b, err := FromDatasets([]string{"foo", "bar"}, []*Dataset{climateDataset(t, 1), climateDataset(t, 10)})
	require.NoError(t, err)
	assert.True(t, a.Equal(b), "key order and NaN values must not matter")

	require.NoError(t, b.Set("foo", climateDataset(t, 2)))
	assert.False(t, a.Equal(b))

	require.NoError(t, b.Delete("foo"))
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
}

func TestCollectionString(t *testing.T) {
	c := testCollection(t)
	s := c.String()
	assert.True(t, strings.HasPrefix(s, "<Collection (2 keys)>\n"))
	assert.Contains(t, s, keyMarker+" bar\n<xcollection.Dataset>")
	assert.Contains(t, s, keyMarker+" foo\n")
	assert.Less(t, strings.Index(s, "bar"), strings.Index(s, "foo"))
}
