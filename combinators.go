package xcollection

import (
	"fmt"
)

// ChooseMode selects how Choose treats datasets lacking requested variables.
type ChooseMode string

const (
	// ChooseAny keeps, unchanged, the datasets holding the variables and
	// drops the rest.
	ChooseAny ChooseMode = "any"
	// ChooseAll narrows every dataset to the variables and fails if any
	// dataset lacks one.
	ChooseAll ChooseMode = "all"
)

// FilterBy names what a Filter predicate receives.
type FilterBy string

const (
	FilterByKey   FilterBy = "key"
	FilterByValue FilterBy = "value"
	FilterByItem  FilterBy = "item"
)

// Kwargs are keyword arguments curried into a MapFunc.
type Kwargs map[string]interface{}

// MapFunc transforms a dataset. It may return a *Dataset, a Dataset, or a
// named *DataArray.
type MapFunc func(ds *Dataset, args []interface{}, kwargs Kwargs) (interface{}, error)

// Choose returns a collection built from the datasets that hold dataVars.
// See ChooseAny and ChooseAll.
func (c *Collection) Choose(dataVars []string, mode ChooseMode) (*Collection, error) {
	switch mode {
	case ChooseAny, ChooseAll:
	default:
		return nil, fmt.Errorf("%w: %q. Accepted modes are [all any]", ErrInvalidMode, mode)
	}

	out := &Collection{datasets: map[string]*Dataset{}}
	for _, it := range c.Items() {
		sel, err := it.Dataset.Select(dataVars...)
		if err != nil || sel.Len() == 0 {
			if mode == ChooseAll {
				if err == nil {
					err = missingVarsError(dataVars)
				}
				return nil, fmt.Errorf("key %q: %w", it.Key, err)
			}
			continue
		}
		if mode == ChooseAll {
			out.set(it.Key, sel)
		} else {
			out.set(it.Key, it.Dataset)
		}
	}
	return out, nil
}

// Filter returns the entries accepted by fn. fn must be a func(string) bool
// for FilterByKey, a func(*Dataset) bool for FilterByValue, or a
// func(Item) bool for FilterByItem.
func (c *Collection) Filter(by FilterBy, fn interface{}) (*Collection, error) {
	switch by {
	case FilterByKey:
		f, ok := fn.(func(string) bool)
		if !ok || f == nil {
			return nil, fmt.Errorf("%w: filtering by key needs func(string) bool, got %T", ErrNotCallable, fn)
		}
		return c.FilterKeys(f), nil
	case FilterByValue:
		f, ok := fn.(func(*Dataset) bool)
		if !ok || f == nil {
			return nil, fmt.Errorf("%w: filtering by value needs func(*Dataset) bool, got %T", ErrNotCallable, fn)
		}
		return c.FilterValues(f), nil
	case FilterByItem:
		f, ok := fn.(func(Item) bool)
		if !ok || f == nil {
			return nil, fmt.Errorf("%w: filtering by item needs func(Item) bool, got %T", ErrNotCallable, fn)
		}
		return c.FilterItems(f), nil
	}
	return nil, fmt.Errorf("%w: %q. Accepted by are [key value item]", ErrInvalidFilterBy, by)
}

// FilterKeys keeps the entries whose key satisfies fn.
func (c *Collection) FilterKeys(fn func(key string) bool) *Collection {
	return c.FilterItems(func(it Item) bool { return fn(it.Key) })
}

// FilterValues keeps the entries whose dataset satisfies fn.
func (c *Collection) FilterValues(fn func(ds *Dataset) bool) *Collection {
	return c.FilterItems(func(it Item) bool { return fn(it.Dataset) })
}

// FilterItems keeps the entries for which fn returns true, in order. The
// kept datasets are shared with the receiver, not copied.
func (c *Collection) FilterItems(fn func(it Item) bool) *Collection {
	out := &Collection{datasets: map[string]*Dataset{}}
	for _, it := range c.Items() {
		if fn(it) {
			out.set(it.Key, it.Dataset)
		}
	}
	return out
}

// KeyMap renames every key with fn. When two keys map to the same name the
// later entry wins.
func (c *Collection) KeyMap(fn func(key string) string) (*Collection, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w, got nil", ErrNotCallable)
	}
	out := &Collection{datasets: map[string]*Dataset{}}
	for _, it := range c.Items() {
		if err := out.Set(fn(it.Key), it.Dataset); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Map applies fn to every dataset, passing args and kwargs along with it,
// and validates each result as Set would.
func (c *Collection) Map(fn MapFunc, args []interface{}, kwargs Kwargs) (*Collection, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w, got nil", ErrNotCallable)
	}
	if kwargs == nil {
		kwargs = Kwargs{}
	}
	out := &Collection{datasets: map[string]*Dataset{}}
	for _, it := range c.Items() {
		res, err := fn(it.Dataset, args, kwargs)
		if err != nil {
			return nil, fmt.Errorf("mapping %q: %w", it.Key, err)
		}
		if err := out.Set(it.Key, res); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MapDatasets is Map for functions that need no extra arguments.
func (c *Collection) MapDatasets(fn func(ds *Dataset) (*Dataset, error)) (*Collection, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w, got nil", ErrNotCallable)
	}
	return c.Map(func(ds *Dataset, _ []interface{}, _ Kwargs) (interface{}, error) {
		return fn(ds)
	}, nil, nil)
}

// set stores an already-validated dataset.
func (c *Collection) set(key string, ds *Dataset) {
	if _, ok := c.datasets[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.datasets[key] = ds
}
