package xcollection

import (
	"fmt"
	"math"
	"sort"
)

// CollectionWeighted applies weighted reductions to every dataset of a
// collection. Build one with Collection.Weighted.
type CollectionWeighted struct {
	obj       *Collection
	weights   *DataArray
	skipNA    bool
	keepAttrs bool
}

// WeightedOption configures a CollectionWeighted.
type WeightedOption func(*CollectionWeighted)

// WithSkipNA controls whether NaN values are skipped (the default) or
// propagate into the result.
func WithSkipNA(skip bool) WeightedOption {
	return func(w *CollectionWeighted) { w.skipNA = skip }
}

// WithKeepAttrs keeps dataset and variable attributes on results.
func WithKeepAttrs(keep bool) WeightedOption {
	return func(w *CollectionWeighted) { w.keepAttrs = keep }
}

// Weighted wraps the collection with weights for weighted reductions.
func (c *Collection) Weighted(weights *DataArray, opts ...WeightedOption) (*CollectionWeighted, error) {
	if weights == nil || weights.Variable == nil {
		return nil, fmt.Errorf("weights must be a DataArray")
	}
	if err := weights.Variable.Validate(); err != nil {
		return nil, fmt.Errorf("weights: %w", err)
	}
	if weights.Variable.HasNaN() {
		return nil, ErrWeightsMissingValues
	}
	w := &CollectionWeighted{obj: c, weights: weights, skipNA: true}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Weights returns the weights the reductions use.
func (w *CollectionWeighted) Weights() *DataArray { return w.weights }

// SumOfWeights sums the weights where data is present.
func (w *CollectionWeighted) SumOfWeights(dims ...string) (*Collection, error) {
	return w.implementation(reduceSumOfWeights, dims)
}

// Sum computes the weighted sum.
func (w *CollectionWeighted) Sum(dims ...string) (*Collection, error) {
	return w.implementation(reduceSum, dims)
}

// Mean computes the weighted mean.
func (w *CollectionWeighted) Mean(dims ...string) (*Collection, error) {
	return w.implementation(reduceMean, dims)
}

// SumOfSquares computes the weighted sum of squared deviations from the
// weighted mean.
func (w *CollectionWeighted) SumOfSquares(dims ...string) (*Collection, error) {
	return w.implementation(reduceSumOfSquares, dims)
}

// Var computes the weighted variance.
func (w *CollectionWeighted) Var(dims ...string) (*Collection, error) {
	return w.implementation(reduceVar, dims)
}

// Std computes the weighted standard deviation.
func (w *CollectionWeighted) Std(dims ...string) (*Collection, error) {
	return w.implementation(reduceStd, dims)
}

// checkDims fails if any requested dimension is absent from both a dataset
// and the weights, or if the weights disagree with a dataset on a length.
func (w *CollectionWeighted) checkDims(dims []string) error {
	wv := w.weights.Variable
	for _, it := range w.obj.Items() {
		var missing []string
		for _, d := range dims {
			if !it.Dataset.HasDim(d) && wv.Axis(d) < 0 {
				missing = append(missing, d)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("%w: Dataset %q does not contain the dimensions: %v", ErrMissingDimensions, it.Key, missing)
		}
		for i, d := range wv.Dims {
			if n, ok := it.Dataset.DimSize(d); ok && n != wv.Shape[i] {
				return fmt.Errorf("%w: dimension %q has length %d in weights but %d in dataset %q", ErrDimensionMismatch, d, wv.Shape[i], n, it.Key)
			}
		}
	}
	return nil
}

func (w *CollectionWeighted) implementation(kind reduceKind, dims []string) (*Collection, error) {
	if err := w.checkDims(dims); err != nil {
		return nil, err
	}

	out := &Collection{datasets: map[string]*Dataset{}}
	for _, it := range w.obj.Items() {
		ds, err := w.reduceDataset(it.Dataset, kind, dims)
		if err != nil {
			return nil, fmt.Errorf("reducing %q: %w", it.Key, err)
		}
		out.set(it.Key, ds)
	}
	return out, nil
}

func (w *CollectionWeighted) reduceDataset(ds *Dataset, kind reduceKind, dims []string) (*Dataset, error) {
	out := NewDataset()
	if w.keepAttrs {
		out.Attrs = ds.Attrs.Copy()
	}

	kept := map[string]bool{}
	for _, n := range ds.DataVars() {
		v, _ := ds.Var(n)
		res, err := weightedReduce(v, w.weights.Variable, dims, kind, w.skipNA)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", n, err)
		}
		if w.keepAttrs {
			res.Attrs = v.Attrs.Copy()
		}
		for _, d := range res.Dims {
			kept[d] = true
		}
		if err := out.SetDataVar(n, res); err != nil {
			return nil, err
		}
	}

	for _, c := range ds.Coords() {
		v, _ := ds.Var(c)
		survives := true
		for _, d := range v.Dims {
			if !kept[d] {
				survives = false
				break
			}
		}
		if survives {
			if err := out.SetCoord(c, v); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

type reduceKind int

const (
	reduceSumOfWeights reduceKind = iota
	reduceSum
	reduceMean
	reduceSumOfSquares
	reduceVar
	reduceStd
)

// reducePlan maps every position of the broadcast of data and weights to
// offsets in data, weights and the reduced output.
type reducePlan struct {
	outDims  []string
	outShape []int
	dataIdx  []int
	wIdx     []int
	outIdx   []int
}

func newReducePlan(data, weights *Variable, dims []string) (*reducePlan, error) {
	union := append([]string{}, data.Dims...)
	sizes := append([]int{}, data.Shape...)
	for i, d := range weights.Dims {
		if ax := data.Axis(d); ax >= 0 {
			if data.Shape[ax] != weights.Shape[i] {
				return nil, fmt.Errorf("%w: dimension %q has length %d in data but %d in weights", ErrDimensionMismatch, d, data.Shape[ax], weights.Shape[i])
			}
			continue
		}
		union = append(union, d)
		sizes = append(sizes, weights.Shape[i])
	}

	reduce := map[string]bool{}
	if len(dims) == 0 {
		for _, d := range union {
			reduce[d] = true
		}
	}
	for _, d := range dims {
		reduce[d] = true
	}

	p := &reducePlan{outDims: []string{}, outShape: []int{}}
	for i, d := range union {
		if !reduce[d] {
			p.outDims = append(p.outDims, d)
			p.outShape = append(p.outShape, sizes[i])
		}
	}

	dataSt := axisStrides(union, data.Dims, data.Shape)
	wSt := axisStrides(union, weights.Dims, weights.Shape)
	outSt := axisStrides(union, p.outDims, p.outShape)

	n := product(sizes)
	p.dataIdx = make([]int, n)
	p.wIdx = make([]int, n)
	p.outIdx = make([]int, n)
	if n == 0 {
		return p, nil
	}

	idx := make([]int, len(union))
	for flat := 0; flat < n; flat++ {
		var a, b, o int
		for i, x := range idx {
			a += x * dataSt[i]
			b += x * wSt[i]
			o += x * outSt[i]
		}
		p.dataIdx[flat], p.wIdx[flat], p.outIdx[flat] = a, b, o

		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < sizes[i] {
				break
			}
			idx[i] = 0
		}
	}
	return p, nil
}

// axisStrides gives, for each dim of union, the stride of that dim in a
// variable with the given dims and shape, or 0 when it lacks the dim.
func axisStrides(union, dims []string, shape []int) []int {
	st := strides(shape)
	out := make([]int, len(union))
	for i, u := range union {
		for j, d := range dims {
			if d == u {
				out[i] = st[j]
				break
			}
		}
	}
	return out
}

func (p *reducePlan) newOutput() []float64 {
	return make([]float64, product(p.outShape))
}

func (p *reducePlan) sumOfWeights(data, weights []float64) []float64 {
	out := p.newOutput()
	for i := range p.dataIdx {
		if !math.IsNaN(data[p.dataIdx[i]]) {
			out[p.outIdx[i]] += weights[p.wIdx[i]]
		}
	}
	for i, s := range out {
		if s == 0 {
			out[i] = math.NaN()
		}
	}
	return out
}

func (p *reducePlan) weightedSum(data, weights []float64, skipNA bool) []float64 {
	out := p.newOutput()
	for i := range p.dataIdx {
		x := data[p.dataIdx[i]]
		if skipNA && math.IsNaN(x) {
			continue
		}
		out[p.outIdx[i]] += x * weights[p.wIdx[i]]
	}
	return out
}

func (p *reducePlan) mean(data, weights []float64, skipNA bool) []float64 {
	sum := p.weightedSum(data, weights, skipNA)
	sw := p.sumOfWeights(data, weights)
	for i := range sum {
		sum[i] /= sw[i]
	}
	return sum
}

func (p *reducePlan) sumOfSquares(data, weights []float64, skipNA bool) []float64 {
	mean := p.mean(data, weights, skipNA)
	out := p.newOutput()
	for i := range p.dataIdx {
		x := data[p.dataIdx[i]]
		if skipNA && math.IsNaN(x) {
			continue
		}
		d := x - mean[p.outIdx[i]]
		out[p.outIdx[i]] += d * d * weights[p.wIdx[i]]
	}
	return out
}

func weightedReduce(data, weights *Variable, dims []string, kind reduceKind, skipNA bool) (*Variable, error) {
	p, err := newReducePlan(data, weights, dims)
	if err != nil {
		return nil, err
	}

	var res []float64
	switch kind {
	case reduceSumOfWeights:
		res = p.sumOfWeights(data.Data, weights.Data)
	case reduceSum:
		res = p.weightedSum(data.Data, weights.Data, skipNA)
	case reduceMean:
		res = p.mean(data.Data, weights.Data, skipNA)
	case reduceSumOfSquares:
		res = p.sumOfSquares(data.Data, weights.Data, skipNA)
	case reduceVar, reduceStd:
		res = p.sumOfSquares(data.Data, weights.Data, skipNA)
		sw := p.sumOfWeights(data.Data, weights.Data)
		for i := range res {
			res[i] /= sw[i]
			if kind == reduceStd {
				res[i] = math.Sqrt(res[i])
			}
		}
	default:
		return nil, fmt.Errorf("unknown reduction %d", kind)
	}

	return NewVariable(p.outDims, p.outShape, res, nil)
}
