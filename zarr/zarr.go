package zarr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var (
	nan    = math.NaN()
	posInf = math.Inf(1)
	negInf = math.Inf(-1)
)

type Array struct {
	path  Path
	store Store
	mode  PersistenceMode
	meta  *ArrayMeta
}

// CreateArray writes array metadata at path and returns a handle for writing
// values. In ModeWriteFail an existing array is an error; ModeRead refuses
// to create anything.
func CreateArray(ctx context.Context, store Store, path string, m *ArrayMeta, mode PersistenceMode) (*Array, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if !mode.CanWrite() {
		return nil, fmt.Errorf("cannot create array %q in mode %q", path, mode)
	}
	p, err := NewPath(path)
	if err != nil {
		return nil, err
	}
	if m.ZarrFormat == 0 {
		m.ZarrFormat = FormatVersion
	}
	if m.Order == "" {
		m.Order = "C"
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	exists, err := Exists(ctx, store, p.Key(string(MTArray)))
	if err != nil {
		return nil, err
	}
	if exists && mode == ModeWriteFail {
		return nil, fmt.Errorf("array %q: %w", path, ErrExists)
	}
	if exists {
		// stale chunks from a previous shape must not survive
		if err := deleteChunks(ctx, store, p); err != nil {
			return nil, err
		}
	}
	if err := putJSON(ctx, store, p.Key(string(MTArray)), m); err != nil {
		return nil, err
	}

	return &Array{path: p, store: store, mode: mode, meta: m}, nil
}

// OpenArray reads the array metadata at path.
func OpenArray(ctx context.Context, store Store, path string, mode PersistenceMode) (*Array, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	p, err := NewPath(path)
	if err != nil {
		return nil, err
	}

	a := &Array{
		path:  p,
		store: store,
		mode:  mode,
		meta:  &ArrayMeta{},
	}
	if err := getJSON(ctx, store, p.Key(string(MTArray)), a.meta); err != nil {
		return nil, fmt.Errorf("opening array %q: %w", path, err)
	}
	if err := a.meta.Validate(); err != nil {
		return nil, fmt.Errorf("array %q: %w", path, err)
	}

	return a, nil
}

func (a *Array) Info() string {
	return fmt.Sprintf("<zarr-go.Array %q shape=%v chunks=%v dtype=%s>", a.Path(), a.meta.Shape, a.meta.Chunks, a.meta.Dtype)
}

func (a *Array) Path() string {
	return a.path.String()
}

func (a *Array) Meta() *ArrayMeta { return a.meta }

func (a *Array) Shape() []int { return append([]int(nil), a.meta.Shape...) }

// Read decodes the whole array into a C-order float64 slice. Chunks that are
// absent from the store read as the fill value.
func (a *Array) Read(ctx context.Context) ([]float64, error) {
	decode, err := a.meta.Dtype.decodeFunc()
	if err != nil {
		return nil, err
	}
	fill, err := a.meta.fillFloat()
	if err != nil {
		return nil, err
	}

	out := make([]float64, product(a.meta.Shape))
	itemSize := a.meta.Dtype.ByteSize
	chunkLen := product(a.meta.Chunks)
	grid := newChunkGrid(a.meta.Shape, a.meta.Chunks)

	err = grid.each(func(coords []int) error {
		proj := grid.project(coords)
		data, err := a.readChunk(ctx, coords)
		if errors.Is(err, ErrNotfound) {
			for _, o := range proj.OutSelection {
				out[o] = fill
			}
			return nil
		}
		if err != nil {
			return err
		}
		if len(data) != chunkLen*itemSize {
			return fmt.Errorf("chunk %s of %q: expected %d bytes, got %d", a.chunkKey(coords), a.Path(), chunkLen*itemSize, len(data))
		}
		for i, c := range proj.ChunkSelection {
			out[proj.OutSelection[i]] = decode(data[c*itemSize : (c+1)*itemSize])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Write encodes values, which must be C-order and sized to the array shape,
// into chunks. Edge chunks are padded with the fill value.
func (a *Array) Write(ctx context.Context, values []float64) error {
	if !a.mode.CanWrite() {
		return fmt.Errorf("array %q opened read-only", a.Path())
	}
	if len(values) != product(a.meta.Shape) {
		return fmt.Errorf("array %q: expected %d values, got %d", a.Path(), product(a.meta.Shape), len(values))
	}
	encode, err := a.meta.Dtype.encodeFunc()
	if err != nil {
		return err
	}
	fill, err := a.meta.fillFloat()
	if err != nil {
		return err
	}

	itemSize := a.meta.Dtype.ByteSize
	chunkLen := product(a.meta.Chunks)
	grid := newChunkGrid(a.meta.Shape, a.meta.Chunks)

	return grid.each(func(coords []int) error {
		proj := grid.project(coords)
		buf := make([]byte, chunkLen*itemSize)
		if len(proj.ChunkSelection) < chunkLen {
			for i := 0; i < chunkLen; i++ {
				encode(buf[i*itemSize:], fill)
			}
		}
		for i, c := range proj.ChunkSelection {
			encode(buf[c*itemSize:], values[proj.OutSelection[i]])
		}
		enc, err := a.meta.Compressor.Encode(buf)
		if err != nil {
			return fmt.Errorf("compressing chunk %s: %w", a.chunkKey(coords), err)
		}
		return a.store.Put(ctx, a.chunkPath(coords), bytes.NewReader(enc))
	})
}

func (a *Array) readChunk(ctx context.Context, coords []int) ([]byte, error) {
	f, err := a.openChunk(ctx, coords)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (a *Array) openChunk(ctx context.Context, coords []int) (io.ReadCloser, error) {
	f, err := a.store.Get(ctx, a.chunkPath(coords))
	if err != nil {
		return nil, err
	}
	return a.meta.Compressor.Decompressor(f)
}

func (a *Array) chunkKey(coords []int) string {
	if len(coords) == 0 {
		return "0"
	}
	sep := a.meta.DimensionSeparator
	if sep == "" {
		sep = "."
	}
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, sep)
}

func (a *Array) chunkPath(coords []int) string {
	return a.path.Key(a.chunkKey(coords))
}

// deleteChunks removes every non-metadata key directly owned by the array.
func deleteChunks(ctx context.Context, s Store, p Path) error {
	keys, err := s.List(ctx, p.Prefix())
	if err != nil {
		return err
	}
	for _, k := range keys {
		if _, ok := KeyMetaType(k); ok {
			continue
		}
		if err := s.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

type PersistenceMode string

const (
	// Persistence mode:
	// 'r' means read only (must exist);
	ModeRead PersistenceMode = "r"
	// 'r+' means read/write (must exist)
	ModeReadWrite PersistenceMode = "r+"
	// 'a' means read/write (create if doesn't exist)
	ModeReadWriteCreate PersistenceMode = "a"
	// 'w' means create (overwrite if exists)
	ModeWrite PersistenceMode = "w"
	// 'w-' means create (fail if exists).
	ModeWriteFail PersistenceMode = "w-"
)

// ErrExists is returned when ModeWriteFail meets existing data.
var ErrExists = errors.New("already exists")

func ParsePersistenceMode(s string) (PersistenceMode, error) {
	m := PersistenceMode(s)
	return m, m.Validate()
}

func (m PersistenceMode) Validate() error {
	switch m {
	case ModeRead, ModeReadWrite, ModeReadWriteCreate, ModeWrite, ModeWriteFail:
		return nil
	}
	return fmt.Errorf("invalid persistence mode %q", string(m))
}

func (m PersistenceMode) CanWrite() bool { return m != ModeRead }

func isNotFound(err error) bool { return errors.Is(err, ErrNotfound) }
