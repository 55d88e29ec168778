package zarr

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestArrayRoundTrip(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		shape  []int
		chunks []int
		comp   *CompressionMeta
		sep    string
	}{
		{"scalar", []int{}, []int{}, nil, ""},
		{"1d single chunk", []int{5}, []int{5}, DefaultCompressor(), ""},
		{"2d ragged chunks", []int{5, 7}, []int{2, 3}, DefaultCompressor(), ""},
		{"3d nested keys", []int{2, 3, 4}, []int{1, 2, 3}, &CompressionMeta{ID: CodecGzip, Level: 5}, "/"},
		{"zlib", []int{4, 4}, []int{4, 2}, &CompressionMeta{ID: CodecZlib}, ""},
		{"lz4", []int{64}, []int{16}, &CompressionMeta{ID: CodecLZ4}, ""},
		{"empty", []int{0, 3}, []int{1, 3}, nil, ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := NewMemoryStore()
			a, err := CreateArray(ctx, s, "g/v", &ArrayMeta{
				Shape:              c.shape,
				Chunks:             c.chunks,
				Dtype:              Float64,
				Compressor:         c.comp,
				FillValue:          FillValueNaN,
				DimensionSeparator: c.sep,
			}, ModeWrite)
			require.NoError(t, err)

			want := seq(product(c.shape))
			require.NoError(t, a.Write(ctx, want))

			b, err := OpenArray(ctx, s, "g/v", ModeRead)
			require.NoError(t, err)
			got, err := b.Read(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestArrayChunkKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a, err := CreateArray(ctx, s, "v", &ArrayMeta{
		Shape:  []int{3, 2},
		Chunks: []int{2, 2},
		Dtype:  Float64,
	}, ModeWrite)
	require.NoError(t, err)
	require.NoError(t, a.Write(ctx, seq(6)))

	keys, err := s.List(ctx, "v/")
	require.NoError(t, err)
	assert.Equal(t, []string{"v/.zarray", "v/0.0", "v/1.0"}, keys)

	// an absent chunk reads as the fill value
	require.NoError(t, s.Delete(ctx, "v/1.0"))
	got, err := a.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3}, got[:4])
	assert.True(t, math.IsNaN(got[4]) && math.IsNaN(got[5]))
}

func TestArrayDecodesForeignDtypes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, putJSON(ctx, s, "i/.zarray", map[string]interface{}{
		"zarr_format": 2,
		"shape":       []int{3},
		"chunks":      []int{3},
		"dtype":       ">i2",
		"compressor":  nil,
		"fill_value":  0,
		"order":       "C",
		"filters":     nil,
	}))
	require.NoError(t, s.Put(ctx, "i/0", strings.NewReader("\x00\x01\xff\xff\x00\x10")))

	a, err := OpenArray(ctx, s, "i", ModeRead)
	require.NoError(t, err)
	got, err := a.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -1, 16}, got)

	assert.Error(t, a.Write(ctx, []float64{1, 2, 3}), "read-only arrays reject writes")
}

func TestCreateArrayModes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	m := func() *ArrayMeta { return &ArrayMeta{Shape: []int{4}, Chunks: []int{1}, Dtype: Float64} }

	a, err := CreateArray(ctx, s, "v", m(), ModeWrite)
	require.NoError(t, err)
	require.NoError(t, a.Write(ctx, seq(4)))

	_, err = CreateArray(ctx, s, "v", m(), ModeWriteFail)
	assert.ErrorIs(t, err, ErrExists)

	_, err = CreateArray(ctx, s, "v", m(), ModeRead)
	assert.Error(t, err)

	// recreating drops chunks left over from the old layout
	_, err = CreateArray(ctx, s, "v", &ArrayMeta{Shape: []int{2}, Chunks: []int{2}, Dtype: Float64}, ModeWrite)
	require.NoError(t, err)
	keys, err := s.List(ctx, "v/")
	require.NoError(t, err)
	assert.Equal(t, []string{"v/.zarray"}, keys)

	_, err = ParsePersistenceMode("x")
	assert.Error(t, err)
}

func TestOpenArrayRejectsFortranOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, putJSON(ctx, s, "f/.zarray", &ArrayMeta{
		ZarrFormat: FormatVersion,
		Shape:      []int{2, 2},
		Chunks:     []int{2, 2},
		Dtype:      Float64,
		Order:      "F",
	}))
	_, err := OpenArray(ctx, s, "f", ModeRead)
	assert.Error(t, err)
}

func TestNewPath(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"/":              "",
		"foo":            "foo",
		"/foo/bar/":      "foo/bar",
		`foo\bar`:        "foo/bar",
		"foo///bar//baz": "foo/bar/baz",
	}
	for in, want := range cases {
		p, err := NewPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, p.String(), in)
	}

	_, err := NewPath("foo/../bar")
	assert.Error(t, err)

	p, _ := NewPath("a/b")
	q := p.Join("c")
	assert.Equal(t, "a/b", p.String())
	assert.Equal(t, "a/b/c", q.String())
	assert.Equal(t, "a/b/.zgroup", p.Key(".zgroup"))
	head, rest := q.Shift()
	assert.Equal(t, "a", head)
	assert.Equal(t, "b/c", rest.String())
}

func TestGroups(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, CreateGroup(ctx, s, "", nil))
	require.NoError(t, CreateGroup(ctx, s, "a", nil))
	require.NoError(t, CreateGroup(ctx, s, "b", Attributes{"k": "v"}))
	require.NoError(t, CreateGroup(ctx, s, "a/nested", nil))
	_, err := CreateArray(ctx, s, "a/x", &ArrayMeta{Shape: []int{1}, Chunks: []int{1}, Dtype: Float64}, ModeWrite)
	require.NoError(t, err)

	groups, err := ChildGroups(ctx, s, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, groups)

	groups, err = ChildGroups(ctx, s, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"nested"}, groups)

	arrays, err := ChildArrays(ctx, s, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, arrays)

	cm, err := Consolidate(ctx, s)
	require.NoError(t, err)
	groups, err = cm.ChildGroups("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"nested"}, groups)
	groups, err = cm.ChildGroups("a/nested")
	require.NoError(t, err)
	assert.Empty(t, groups)

	attrs, err := ReadAttributes(ctx, s, Path{"b"})
	require.NoError(t, err)
	assert.Equal(t, Attributes{"k": "v"}, attrs)

	attrs, err = ReadAttributes(ctx, s, Path{"a"})
	require.NoError(t, err)
	assert.Empty(t, attrs)

	require.NoError(t, RemoveGroup(ctx, s, "a"))
	ok, err := GroupExists(ctx, s, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = GroupExists(ctx, s, "b")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Error(t, RemoveGroup(ctx, s, ""))
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "store.zarr")
	s, err := NewLocalStore(dir)
	require.NoError(t, err)
	assert.Equal(t, LocalStoreType, s.Type())

	require.NoError(t, s.Put(ctx, "a/.zgroup", strings.NewReader("{}")))
	require.NoError(t, s.Put(ctx, "a/b/0.0", strings.NewReader("data")))

	_, err = os.Stat(filepath.Join(dir, "a", "b", "0.0"))
	require.NoError(t, err)

	keys, err := s.List(ctx, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/.zgroup", "a/b/0.0"}, keys)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotfound)

	require.NoError(t, s.Delete(ctx, "a/b/0.0"))
	require.NoError(t, s.Delete(ctx, "a/b/0.0"))
	ok, err := Exists(ctx, s, "a/b/0.0")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	assert.Equal(t, MemoryStoreType, s.Type())

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotfound)

	require.NoError(t, s.Put(ctx, "p/k", strings.NewReader("v")))
	require.NoError(t, s.Put(ctx, "q", strings.NewReader("w")))
	keys, err := s.List(ctx, "p/")
	require.NoError(t, err)
	assert.Equal(t, []string{"p/k"}, keys)

	require.NoError(t, DeletePrefix(ctx, s, "p/"))
	keys, err = s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"q"}, keys)
}

func TestLZ4LiteralBlock(t *testing.T) {
	m := &CompressionMeta{ID: CodecLZ4}
	for _, n := range []int{3, 14, 15, 300, 600} {
		d := make([]byte, n)
		for i := range d {
			d[i] = byte(i * 7919 % 251)
		}
		enc := append([]byte{byte(n), byte(n >> 8), 0, 0}, lz4LiteralBlock(d)...)
		got, err := m.Decode(enc)
		require.NoError(t, err, n)
		assert.Equal(t, d, got, n)
	}
}
