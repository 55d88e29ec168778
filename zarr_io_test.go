package xcollection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/qri-io/xcollection/zarr"
)

func readJSON(t *testing.T, s zarr.Store, key string) map[string]interface{} {
	t.Helper()
	rc, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	d, err := io.ReadAll(rc)
	require.NoError(t, err)
	doc := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(d, &doc))
	return doc
}

func TestToZarrRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := zarr.NewMemoryStore()
	c := testCollection(t)

	core, logs := observer.New(zap.DebugLevel)
	require.NoError(t, c.ToZarr(ctx, store, WithLogger(zap.New(core))))
	assert.Equal(t, 1, logs.FilterMessage("wrote collection").Len())
	assert.NotZero(t, logs.FilterMessage("wrote variable").Len())

	for _, key := range []string{".zgroup", ".zmetadata", "foo/.zgroup", "foo/.zattrs", "foo/tas/.zarray", "foo/tas/.zattrs", "bar/area/.zarray"} {
		ok, err := zarr.Exists(ctx, store, key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}

	tasAttrs := readJSON(t, store, "foo/tas/.zattrs")
	assert.Equal(t, []interface{}{"time", "lat"}, tasAttrs["_ARRAY_DIMENSIONS"])
	assert.Equal(t, "area", tasAttrs["coordinates"])
	assert.Equal(t, "K", tasAttrs["units"])

	arr := readJSON(t, store, "foo/tas/.zarray")
	assert.Equal(t, "<f8", arr["dtype"])
	assert.Equal(t, "NaN", arr["fill_value"])
	assert.Equal(t, "zstd", arr["compressor"].(map[string]interface{})["id"])

	got, err := OpenCollection(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "foo"}, got.Keys())
	for _, k := range c.Keys() {
		want, _ := c.Get(k)
		have, err := got.Get(k)
		require.NoError(t, err)
		assert.True(t, want.Identical(have), "%s: %s", k, want.Diff(have))
		assert.True(t, have.IsCoord("area"))
	}
	assert.True(t, c.Equal(got))
}

func TestToZarrUnclaimedCoordinate(t *testing.T) {
	ctx := context.Background()
	ds := onlyVar(t, "v", 1, 2)
	require.NoError(t, ds.SetCoord("station", MustVariable([]string{"site"}, []int{3}, []float64{7, 8, 9}, nil)))
	require.NoError(t, ds.SetCoord("height", Scalar(2)))
	c, err := New(map[string]interface{}{"a": ds})
	require.NoError(t, err)

	store := zarr.NewMemoryStore()
	require.NoError(t, c.ToZarr(ctx, store, WithCompressor(nil)))

	assert.Equal(t, "station", readJSON(t, store, "a/.zattrs")["coordinates"])
	assert.Equal(t, "height", readJSON(t, store, "a/v/.zattrs")["coordinates"])

	got, err := OpenDataset(ctx, store, "a")
	require.NoError(t, err)
	assert.True(t, ds.Identical(got), ds.Diff(got))
}

func TestToZarrChunks(t *testing.T) {
	ctx := context.Background()
	store := zarr.NewMemoryStore()
	c := testCollection(t)
	require.NoError(t, c.ToZarr(ctx, store, WithChunks(map[string]int{"time": 2, "lat": 10})))

	arr, err := zarr.OpenArray(ctx, store, "foo/tas", zarr.ModeRead)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, arr.Meta().Chunks)

	ok, err := zarr.Exists(ctx, store, "foo/tas/1.0")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := OpenCollection(ctx, store)
	require.NoError(t, err)
	assert.True(t, c.Equal(got))

	err = c.ToZarr(ctx, store, WithChunks(map[string]int{"time": 0}))
	assert.Error(t, err)
}

func TestToZarrModes(t *testing.T) {
	ctx := context.Background()
	store := zarr.NewMemoryStore()
	c := testCollection(t)
	require.NoError(t, c.ToZarr(ctx, store))

	err := c.ToZarr(ctx, store, WithMode(zarr.ModeWriteFail))
	assert.ErrorIs(t, err, zarr.ErrExists)

	err = c.ToZarr(ctx, store, WithMode(zarr.ModeRead))
	assert.ErrorIs(t, err, ErrInvalidMode)

	err = c.ToZarr(ctx, store, WithMode("x"))
	assert.Error(t, err)

	// w replaces the group, dropping variables the new dataset lacks
	small, err := New(map[string]interface{}{"foo": onlyVar(t, "v", 1, 2, 3)})
	require.NoError(t, err)
	require.NoError(t, small.ToZarr(ctx, store))
	arrays, err := zarr.ChildArrays(ctx, store, "foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"v"}, arrays)

	// a adds groups and keeps the others
	extra, err := New(map[string]interface{}{"baz": onlyVar(t, "v", 4)})
	require.NoError(t, err)
	require.NoError(t, extra.ToZarr(ctx, store, WithMode(zarr.ModeReadWriteCreate)))
	got, err := OpenCollection(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "baz", "foo"}, got.Keys())

	// r+ rewrites values in place
	updated, err := New(map[string]interface{}{"foo": onlyVar(t, "v", 9, 8, 7)})
	require.NoError(t, err)
	require.NoError(t, updated.ToZarr(ctx, store, WithMode(zarr.ModeReadWrite)))
	ds, err := OpenDataset(ctx, store, "foo")
	require.NoError(t, err)
	v, _ := ds.Var("v")
	assert.Equal(t, []float64{9, 8, 7}, v.Data)

	wrongShape, err := New(map[string]interface{}{"foo": onlyVar(t, "v", 1)})
	require.NoError(t, err)
	assert.Error(t, wrongShape.ToZarr(ctx, store, WithMode(zarr.ModeReadWrite)))

	missing, err := New(map[string]interface{}{"nope": onlyVar(t, "v", 1)})
	require.NoError(t, err)
	assert.ErrorIs(t, missing.ToZarr(ctx, store, WithMode(zarr.ModeReadWrite)), zarr.ErrNotfound)
}

func TestToZarrRejects(t *testing.T) {
	ctx := context.Background()
	store := zarr.NewMemoryStore()
	c := testCollection(t)

	err := c.ToZarr(ctx, store, WithGroup("root"))
	assert.ErrorIs(t, err, ErrNotImplemented)

	for _, key := range []string{"a/b", ".hidden"} {
		bad, err := New(map[string]interface{}{key: onlyVar(t, "v", 1)})
		require.NoError(t, err)
		assert.ErrorIs(t, bad.ToZarr(ctx, store), ErrInvalidKey, key)
	}

	keys, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys, "rejected writes must not touch the store")
}

func TestOpenCollectionUnconsolidated(t *testing.T) {
	ctx := context.Background()
	store := zarr.NewMemoryStore()
	c := testCollection(t)
	require.NoError(t, c.ToZarr(ctx, store, WithConsolidated(false), WithLogger(nil)))

	_, err := zarr.ReadConsolidated(ctx, store)
	assert.True(t, errors.Is(err, zarr.ErrNotfound))

	got, err := OpenCollection(ctx, store)
	require.NoError(t, err)
	assert.True(t, c.Equal(got))

	_, err = OpenCollection(ctx, zarr.NewMemoryStore())
	assert.ErrorIs(t, err, zarr.ErrNotfound)
}

func TestOpenCollectionAfterUnconsolidatedAppend(t *testing.T) {
	ctx := context.Background()
	store := zarr.NewMemoryStore()

	first, err := New(map[string]interface{}{"a": onlyVar(t, "tas", 1, 2)})
	require.NoError(t, err)
	require.NoError(t, first.ToZarr(ctx, store))
	rc, err := store.Get(ctx, ".zmetadata")
	require.NoError(t, err)
	stale, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	second, err := New(map[string]interface{}{"b": onlyVar(t, "pr", 3)})
	require.NoError(t, err)
	require.NoError(t, second.ToZarr(ctx, store, WithMode(zarr.ModeReadWriteCreate), WithConsolidated(false)))

	_, err = zarr.ReadConsolidated(ctx, store)
	assert.ErrorIs(t, err, zarr.ErrNotfound)

	got, err := OpenCollection(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Keys())

	// a .zmetadata written by someone else before the append is ignored
	require.NoError(t, store.Put(ctx, ".zmetadata", bytes.NewReader(stale)))
	got, err = OpenCollection(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Keys())
}

func TestWriteOpenDataset(t *testing.T) {
	ctx := context.Background()
	store, err := zarr.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ds := climateDataset(t, 3)
	ds.Attrs["tags"] = []string{"a", "b"}
	require.NoError(t, WriteDataset(ctx, store, "run1", ds, WithCompressor(&zarr.CompressionMeta{ID: zarr.CodecGzip, Level: 6})))

	got, err := OpenDataset(ctx, store, "run1")
	require.NoError(t, err)
	assert.True(t, ds.Identical(got), ds.Diff(got))

	c, err := OpenCollection(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"run1"}, c.Keys())

	_, err = OpenDataset(ctx, store, "missing")
	assert.ErrorIs(t, err, zarr.ErrNotfound)
	assert.ErrorIs(t, WriteDataset(ctx, store, "", ds), ErrInvalidKey)
	assert.ErrorIs(t, WriteDataset(ctx, store, "x", nil), ErrInvalidType)
}
