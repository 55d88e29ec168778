package xcollection

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// identicalView is the order-insensitive shape two datasets are compared by.
type identicalView struct {
	DataVars map[string]*Variable
	Coords   map[string]*Variable
	Attrs    Attributes
}

func (ds *Dataset) view() identicalView {
	v := identicalView{
		DataVars: map[string]*Variable{},
		Coords:   map[string]*Variable{},
		Attrs:    ds.Attrs,
	}
	for _, n := range ds.names {
		if ds.isCoord[n] {
			v.Coords[n] = ds.vars[n]
		} else {
			v.DataVars[n] = ds.vars[n]
		}
	}
	return v
}

var identicalOpts = cmp.Options{
	cmpopts.EquateNaNs(),
	cmpopts.EquateEmpty(),
}

// Identical reports whether ds and other hold the same variables (by name
// and kind), dimensions, values and attributes. NaN equals NaN, and nil
// attributes equal empty ones. Variable order is irrelevant.
func (ds *Dataset) Identical(other *Dataset) bool {
	if ds == nil || other == nil {
		return ds == other
	}
	return cmp.Equal(ds.view(), other.view(), identicalOpts)
}

// Diff returns a human-readable report of how ds and other differ, or ""
// when they are identical.
func (ds *Dataset) Diff(other *Dataset) string {
	if ds == nil || other == nil {
		if ds == other {
			return ""
		}
		return "one dataset is nil"
	}
	return cmp.Diff(ds.view(), other.view(), identicalOpts)
}
