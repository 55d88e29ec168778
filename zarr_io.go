package xcollection

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/qri-io/xcollection/zarr"
)

const (
	// attrArrayDims names the dimensions of a zarr array, as xarray does.
	attrArrayDims = "_ARRAY_DIMENSIONS"
	// attrCoordinates lists non-dimension coordinates, space separated.
	attrCoordinates = "coordinates"
)

// ToZarr writes every entry of the collection as a child group of the store
// root, named by its key.
func (c *Collection) ToZarr(ctx context.Context, store zarr.Store, opts ...Option) error {
	o, err := applyOptions(opts)
	if err != nil {
		return err
	}
	if o.group != nil {
		return fmt.Errorf("%w: specifying a root group for the collection", ErrNotImplemented)
	}
	if !o.mode.CanWrite() {
		return fmt.Errorf("%w: cannot write in mode %q", ErrInvalidMode, o.mode)
	}
	for _, k := range c.keys {
		if err := validateStoreName(k); err != nil {
			return err
		}
	}

	if o.mode != zarr.ModeReadWrite {
		if err := ensureRootGroup(ctx, store); err != nil {
			return err
		}
	}
	for _, it := range c.Items() {
		o.logger.Debug("writing dataset", zap.String("key", it.Key), zap.String("store", store.Type()), zap.String("mode", string(o.mode)))
		if err := writeDataset(ctx, store, it.Key, it.Dataset, o); err != nil {
			return fmt.Errorf("writing %q: %w", it.Key, err)
		}
	}

	if err := finishMetadata(ctx, store, o); err != nil {
		return err
	}
	o.logger.Info("wrote collection", zap.Int("keys", c.Len()), zap.String("store", store.Type()))
	return nil
}

// WriteDataset writes ds as the group named group. The store root is
// always made a group so the result opens as a collection.
func WriteDataset(ctx context.Context, store zarr.Store, group string, ds *Dataset, opts ...Option) error {
	o, err := applyOptions(opts)
	if err != nil {
		return err
	}
	if !o.mode.CanWrite() {
		return fmt.Errorf("%w: cannot write in mode %q", ErrInvalidMode, o.mode)
	}
	if err := validateStoreName(group); err != nil {
		return err
	}
	if ds == nil {
		return fmt.Errorf("%w, got nil *Dataset", ErrInvalidType)
	}
	if o.mode != zarr.ModeReadWrite {
		if err := ensureRootGroup(ctx, store); err != nil {
			return err
		}
	}
	if err := writeDataset(ctx, store, group, ds, o); err != nil {
		return err
	}
	return finishMetadata(ctx, store, o)
}

// finishMetadata consolidates the store, or drops a .zmetadata document an
// earlier write left behind that no longer covers every group.
func finishMetadata(ctx context.Context, store zarr.Store, o *ioOptions) error {
	if !o.consolidated {
		if err := zarr.RemoveConsolidated(ctx, store); err != nil {
			return fmt.Errorf("removing consolidated metadata: %w", err)
		}
		return nil
	}
	if _, err := zarr.Consolidate(ctx, store); err != nil {
		return fmt.Errorf("consolidating metadata: %w", err)
	}
	return nil
}

// validateStoreName rejects names that cannot be a single path segment.
func validateStoreName(name string) error {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, `\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q cannot be used as a group or array name", ErrInvalidKey, name)
	}
	return nil
}

func ensureRootGroup(ctx context.Context, store zarr.Store) error {
	ok, err := zarr.GroupExists(ctx, store, "")
	if err != nil || ok {
		return err
	}
	return zarr.CreateGroup(ctx, store, "", nil)
}

func writeDataset(ctx context.Context, store zarr.Store, group string, ds *Dataset, o *ioOptions) error {
	exists, err := zarr.GroupExists(ctx, store, group)
	if err != nil {
		return err
	}

	switch o.mode {
	case zarr.ModeWriteFail:
		if exists {
			return fmt.Errorf("group %q: %w", group, zarr.ErrExists)
		}
	case zarr.ModeWrite:
		switch {
		case exists && group == "":
			if err := zarr.DeletePrefix(ctx, store, ""); err != nil {
				return err
			}
		case exists:
			if err := zarr.RemoveGroup(ctx, store, group); err != nil {
				return err
			}
		}
	case zarr.ModeReadWrite:
		if !exists {
			return fmt.Errorf("group %q: %w", group, zarr.ErrNotfound)
		}
		return rewriteValues(ctx, store, group, ds)
	}

	for _, n := range ds.names {
		if err := validateStoreName(n); err != nil {
			return err
		}
	}

	groupAttrs, varAttrs := encodeAttributes(ds)
	if err := zarr.CreateGroup(ctx, store, group, groupAttrs); err != nil {
		return err
	}

	for _, n := range ds.names {
		v := ds.vars[n]
		path := group + "/" + n
		meta := &zarr.ArrayMeta{
			Shape:      append([]int{}, v.Shape...),
			Chunks:     chunkShape(v, o.chunks),
			Dtype:      zarr.Float64,
			Compressor: o.compressor,
			FillValue:  zarr.FillValueNaN,
		}
		arr, err := zarr.CreateArray(ctx, store, path, meta, zarr.ModeWrite)
		if err != nil {
			return err
		}
		if err := arr.Write(ctx, v.Data); err != nil {
			return err
		}
		p, err := zarr.NewPath(path)
		if err != nil {
			return err
		}
		if err := zarr.WriteAttributes(ctx, store, p, varAttrs[n]); err != nil {
			return err
		}
		o.logger.Debug("wrote variable", zap.String("path", path), zap.Ints("shape", v.Shape), zap.Ints("chunks", meta.Chunks))
	}
	return nil
}

// rewriteValues overwrites the values of existing arrays, which must match
// the dataset's variables in shape and dimensions.
func rewriteValues(ctx context.Context, store zarr.Store, group string, ds *Dataset) error {
	for _, n := range ds.names {
		v := ds.vars[n]
		path := group + "/" + n
		arr, err := zarr.OpenArray(ctx, store, path, zarr.ModeReadWrite)
		if err != nil {
			return err
		}
		p, err := zarr.NewPath(path)
		if err != nil {
			return err
		}
		attrs, err := zarr.ReadAttributes(ctx, store, p)
		if err != nil {
			return err
		}
		dims := stringList(attrs[attrArrayDims])
		if !equalInts(arr.Shape(), v.Shape) || !equalStrings(dims, v.Dims) {
			return fmt.Errorf("variable %q: stored shape %v %v does not match %v %v", n, dims, arr.Shape(), v.Dims, v.Shape)
		}
		if err := arr.Write(ctx, v.Data); err != nil {
			return err
		}
	}
	return nil
}

// encodeAttributes builds the group attributes and per-variable attributes
// following xarray's conventions for dimensions and coordinates.
func encodeAttributes(ds *Dataset) (zarr.Attributes, map[string]zarr.Attributes) {
	groupAttrs := zarr.Attributes(ds.Attrs.Copy())
	if groupAttrs == nil {
		groupAttrs = zarr.Attributes{}
	}
	varAttrs := map[string]zarr.Attributes{}

	var nonDim []string
	for _, c := range ds.Coords() {
		if !isDimensionCoord(c, ds.vars[c]) {
			nonDim = append(nonDim, c)
		}
	}

	claimed := map[string]bool{}
	for _, n := range ds.names {
		v := ds.vars[n]
		attrs := zarr.Attributes(v.Attrs.Copy())
		if attrs == nil {
			attrs = zarr.Attributes{}
		}
		attrs[attrArrayDims] = append([]string{}, v.Dims...)

		if !ds.isCoord[n] {
			var coords []string
			for _, c := range nonDim {
				if dimsSubset(ds.vars[c].Dims, v.Dims) {
					coords = append(coords, c)
					claimed[c] = true
				}
			}
			if len(coords) > 0 {
				attrs[attrCoordinates] = strings.Join(coords, " ")
			}
		}
		varAttrs[n] = attrs
	}

	var unclaimed []string
	for _, c := range nonDim {
		if !claimed[c] {
			unclaimed = append(unclaimed, c)
		}
	}
	if len(unclaimed) > 0 {
		groupAttrs[attrCoordinates] = strings.Join(unclaimed, " ")
	}
	return groupAttrs, varAttrs
}

func isDimensionCoord(name string, v *Variable) bool {
	return len(v.Dims) == 1 && v.Dims[0] == name
}

func dimsSubset(sub, of []string) bool {
	for _, d := range sub {
		found := false
		for _, e := range of {
			if d == e {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func chunkShape(v *Variable, chunks map[string]int) []int {
	out := make([]int, len(v.Shape))
	for i, n := range v.Shape {
		c := n
		if want, ok := chunks[v.Dims[i]]; ok && want < n {
			c = want
		}
		if c < 1 {
			c = 1
		}
		out[i] = c
	}
	return out
}

// OpenDataset loads the group named group as a dataset.
func OpenDataset(ctx context.Context, store zarr.Store, group string, opts ...Option) (*Dataset, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return openDataset(ctx, store, group, o)
}

func openDataset(ctx context.Context, store zarr.Store, group string, o *ioOptions) (*Dataset, error) {
	ok, err := zarr.GroupExists(ctx, store, group)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("group %q: %w", group, zarr.ErrNotfound)
	}

	gp, err := zarr.NewPath(group)
	if err != nil {
		return nil, err
	}
	groupAttrs, err := zarr.ReadAttributes(ctx, store, gp)
	if err != nil {
		return nil, err
	}
	coordNames := map[string]bool{}
	for _, c := range strings.Fields(stringAttr(groupAttrs[attrCoordinates])) {
		coordNames[c] = true
	}
	delete(groupAttrs, attrCoordinates)

	names, err := zarr.ChildArrays(ctx, store, group)
	if err != nil {
		return nil, err
	}

	vars := map[string]*Variable{}
	for _, n := range names {
		arr, err := zarr.OpenArray(ctx, store, gp.Key(n), zarr.ModeRead)
		if err != nil {
			return nil, err
		}
		data, err := arr.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", arr.Path(), err)
		}
		attrs, err := zarr.ReadAttributes(ctx, store, gp.Join(n))
		if err != nil {
			return nil, err
		}
		raw, ok := attrs[attrArrayDims]
		if !ok {
			return nil, fmt.Errorf("array %q has no %s attribute", arr.Path(), attrArrayDims)
		}
		dims := stringList(raw)
		for _, c := range strings.Fields(stringAttr(attrs[attrCoordinates])) {
			coordNames[c] = true
		}
		delete(attrs, attrArrayDims)
		delete(attrs, attrCoordinates)

		v, err := NewVariable(dims, arr.Shape(), data, decodeAttributes(attrs))
		if err != nil {
			return nil, fmt.Errorf("array %q: %w", arr.Path(), err)
		}
		vars[n] = v
		o.logger.Debug("read variable", zap.String("path", arr.Path()), zap.Strings("dims", dims))
	}

	ds := NewDataset()
	ds.Attrs = decodeAttributes(groupAttrs)
	// coordinates go first so data variables are checked against them
	for _, n := range names {
		v := vars[n]
		if coordNames[n] || isDimensionCoord(n, v) {
			if err := ds.SetCoord(n, v); err != nil {
				return nil, err
			}
		}
	}
	for _, n := range names {
		if !ds.IsCoord(n) {
			if err := ds.SetDataVar(n, vars[n]); err != nil {
				return nil, err
			}
		}
	}
	return ds, nil
}

// OpenCollection loads every child group of the store root. Consolidated
// metadata is used to find the groups when present.
func OpenCollection(ctx context.Context, store zarr.Store, opts ...Option) (*Collection, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	ok, err := zarr.GroupExists(ctx, store, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("store root is not a group: %w", zarr.ErrNotfound)
	}
	// the store listing is authoritative; .zmetadata may predate later writes
	keys, err := zarr.ChildGroups(ctx, store, "")
	if err != nil {
		return nil, err
	}

	c := &Collection{datasets: map[string]*Dataset{}}
	for _, k := range keys {
		ds, err := openDataset(ctx, store, k, o)
		if err != nil {
			return nil, fmt.Errorf("opening %q: %w", k, err)
		}
		c.set(k, ds)
	}
	o.logger.Info("opened collection", zap.Int("keys", c.Len()), zap.String("store", store.Type()))
	return c, nil
}

// decodeAttributes converts attributes read from JSON, turning lists of
// strings back into []string.
func decodeAttributes(in zarr.Attributes) Attributes {
	out := Attributes{}
	for k, v := range in {
		if l, ok := v.([]interface{}); ok {
			if s, ok := asStrings(l); ok {
				out[k] = s
				continue
			}
		}
		out[k] = v
	}
	return out
}

func asStrings(l []interface{}) ([]string, bool) {
	out := make([]string, len(l))
	for i, x := range l {
		s, ok := x.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, len(l) > 0
}

func stringList(v interface{}) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []interface{}:
		out := make([]string, 0, len(l))
		for _, x := range l {
			out = append(out, fmt.Sprint(x))
		}
		return out
	}
	return []string{}
}

func stringAttr(v interface{}) string {
	s, _ := v.(string)
	return s
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
