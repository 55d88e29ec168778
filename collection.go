package xcollection

import (
	"fmt"
	"sort"
)

// Collection maps string keys to datasets. Values are validated on the way
// in: only datasets, and named data arrays (which are converted to
// datasets), are accepted. Iteration follows insertion order.
type Collection struct {
	keys     []string
	datasets map[string]*Dataset
}

// Item is a key/dataset pair.
type Item struct {
	Key     string
	Dataset *Dataset
}

// New validates values and builds a collection from them. Keys are inserted
// in sorted order. A nil map yields an empty collection.
func New(values map[string]interface{}) (*Collection, error) {
	c := &Collection{datasets: map[string]*Dataset{}}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := c.Set(k, values[k]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// FromDatasets builds a collection with keys in the given order.
func FromDatasets(keys []string, datasets []*Dataset) (*Collection, error) {
	if len(keys) != len(datasets) {
		return nil, fmt.Errorf("got %d keys for %d datasets", len(keys), len(datasets))
	}
	c := &Collection{datasets: map[string]*Dataset{}}
	for i, k := range keys {
		if err := c.Set(k, datasets[i]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Validate converts value into the dataset a collection would store for it.
func Validate(value interface{}) (*Dataset, error) {
	switch v := value.(type) {
	case *Dataset:
		if v == nil {
			return nil, fmt.Errorf("%w, got nil *Dataset", ErrInvalidType)
		}
		return v, nil
	case Dataset:
		return v.Copy(), nil
	case *DataArray:
		if v == nil {
			return nil, fmt.Errorf("%w, got nil *DataArray", ErrInvalidType)
		}
		return v.ToDataset()
	case DataArray:
		return v.ToDataset()
	default:
		return nil, fmt.Errorf("%w, got %T", ErrInvalidType, value)
	}
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: keys must be non-empty strings", ErrInvalidKey)
	}
	return nil
}

// Set validates value and stores it under key. Replacing a key keeps its
// position.
func (c *Collection) Set(key string, value interface{}) error {
	if err := validateKey(key); err != nil {
		return &ValidationError{Key: key, cause: err}
	}
	ds, err := Validate(value)
	if err != nil {
		return &ValidationError{Key: key, cause: err}
	}
	if c.datasets == nil {
		c.datasets = map[string]*Dataset{}
	}
	if _, ok := c.datasets[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.datasets[key] = ds
	return nil
}

// Get returns the dataset stored under key.
func (c *Collection) Get(key string) (*Dataset, error) {
	ds, ok := c.datasets[key]
	if !ok {
		return nil, newKeyError(key)
	}
	return ds, nil
}

// Delete removes key.
func (c *Collection) Delete(key string) error {
	if _, ok := c.datasets[key]; !ok {
		return newKeyError(key)
	}
	delete(c.datasets, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i:i], c.keys[i+1:]...)
			break
		}
	}
	return nil
}

func (c *Collection) Len() int { return len(c.keys) }

func (c *Collection) Contains(key string) bool {
	_, ok := c.datasets[key]
	return ok
}

// Keys returns the keys in insertion order.
func (c *Collection) Keys() []string { return append([]string{}, c.keys...) }

// Values returns the datasets in key order.
func (c *Collection) Values() []*Dataset {
	out := make([]*Dataset, len(c.keys))
	for i, k := range c.keys {
		out[i] = c.datasets[k]
	}
	return out
}

// Items returns key/dataset pairs in key order.
func (c *Collection) Items() []Item {
	out := make([]Item, len(c.keys))
	for i, k := range c.keys {
		out[i] = Item{Key: k, Dataset: c.datasets[k]}
	}
	return out
}

// Range calls fn for each entry in order until fn returns false.
func (c *Collection) Range(fn func(key string, ds *Dataset) bool) {
	for _, k := range c.Keys() {
		if !fn(k, c.datasets[k]) {
			return
		}
	}
}

// Equal reports whether both collections hold the same keys and each pair
// of datasets is Identical. Key order does not matter.
func (c *Collection) Equal(other *Collection) bool {
	if c == nil || other == nil {
		return false
	}
	if c.Len() != other.Len() {
		return false
	}
	keys := c.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		o, ok := other.datasets[k]
		if !ok || !c.datasets[k].Identical(o) {
			return false
		}
	}
	return true
}
