package zarr

// chunkGrid divides an array shape into regular chunks.
type chunkGrid struct {
	shape  []int
	chunks []int
	// number of chunks along each dimension
	counts []int
}

func newChunkGrid(shape, chunks []int) chunkGrid {
	g := chunkGrid{shape: shape, chunks: chunks, counts: make([]int, len(shape))}
	for i := range shape {
		g.counts[i] = (shape[i] + chunks[i] - 1) / chunks[i]
	}
	return g
}

// empty reports whether the array has no elements and so no chunks.
func (g chunkGrid) empty() bool {
	for _, n := range g.shape {
		if n == 0 {
			return true
		}
	}
	return false
}

// each calls fn for every chunk in C order.
func (g chunkGrid) each(fn func(coords []int) error) error {
	if g.empty() {
		return nil
	}
	coords := make([]int, len(g.shape))
	for {
		if err := fn(coords); err != nil {
			return err
		}
		i := len(coords) - 1
		for ; i >= 0; i-- {
			coords[i]++
			if coords[i] < g.counts[i] {
				break
			}
			coords[i] = 0
		}
		if i < 0 {
			return nil
		}
	}
}

// A mapping of items from chunk to output array. Can be used to extract items
// from the chunk array for loading into an output array. Can also be used to
// extract items from a value array for setting/updating in a chunk array.
type chunkProjection struct {
	// Indices of chunk
	ChunkCoords []int
	// Flat offsets of selected items within the chunk array.
	ChunkSelection []int
	// Flat offsets of the same items in the target (output) array.
	OutSelection []int
}

// project maps the in-bounds items of the chunk at coords to flat offsets in
// both the chunk and the full array.
func (g chunkGrid) project(coords []int) chunkProjection {
	nd := len(g.shape)
	p := chunkProjection{ChunkCoords: append([]int(nil), coords...)}
	if nd == 0 {
		p.ChunkSelection = []int{0}
		p.OutSelection = []int{0}
		return p
	}

	start := make([]int, nd)
	extent := make([]int, nd)
	for i := range coords {
		start[i] = coords[i] * g.chunks[i]
		extent[i] = g.chunks[i]
		if start[i]+extent[i] > g.shape[i] {
			extent[i] = g.shape[i] - start[i]
		}
	}
	chunkStrides := strides(g.chunks)
	outStrides := strides(g.shape)

	idx := make([]int, nd)
	for {
		c, o := 0, 0
		for i := range idx {
			c += idx[i] * chunkStrides[i]
			o += (start[i] + idx[i]) * outStrides[i]
		}
		p.ChunkSelection = append(p.ChunkSelection, c)
		p.OutSelection = append(p.OutSelection, o)

		i := nd - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < extent[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return p
		}
	}
}

// strides returns C-order element strides for shape.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
