package zarr

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ConsolidatedFormat is the version of .zmetadata documents written by
// Consolidate.
const ConsolidatedFormat = 1

// CreateGroup writes the .zgroup document (and attributes, if any) at path.
func CreateGroup(ctx context.Context, s Store, path string, attrs Attributes) error {
	p, err := NewPath(path)
	if err != nil {
		return err
	}
	if err := putJSON(ctx, s, p.Key(string(MTGroup)), Group{ZarrFormat: FormatVersion}); err != nil {
		return err
	}
	if attrs != nil {
		return WriteAttributes(ctx, s, p, attrs)
	}
	return nil
}

// GroupExists reports whether a .zgroup document exists at path.
func GroupExists(ctx context.Context, s Store, path string) (bool, error) {
	p, err := NewPath(path)
	if err != nil {
		return false, err
	}
	return Exists(ctx, s, p.Key(string(MTGroup)))
}

// RemoveGroup deletes the group at path and everything beneath it.
func RemoveGroup(ctx context.Context, s Store, path string) error {
	p, err := NewPath(path)
	if err != nil {
		return err
	}
	if p.IsRoot() {
		return fmt.Errorf("refusing to remove the root group")
	}
	return DeletePrefix(ctx, s, p.Prefix())
}

// ChildGroups lists the names of groups directly beneath path, sorted.
func ChildGroups(ctx context.Context, s Store, path string) ([]string, error) {
	return children(ctx, s, path, MTGroup)
}

// ChildArrays lists the names of arrays directly beneath path, sorted.
func ChildArrays(ctx context.Context, s Store, path string) ([]string, error) {
	return children(ctx, s, path, MTArray)
}

func children(ctx context.Context, s Store, path string, mt MetaType) ([]string, error) {
	p, err := NewPath(path)
	if err != nil {
		return nil, err
	}
	keys, err := s.List(ctx, p.Prefix())
	if err != nil {
		return nil, err
	}
	return childNames(p, keys, mt), nil
}

func childNames(p Path, keys []string, mt MetaType) []string {
	prefix := p.Prefix()
	suffix := "/" + string(mt)
	var names []string
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		// the group's own metadata document is not a child
		rel := strings.TrimPrefix(k, prefix)
		if !strings.HasSuffix(rel, suffix) {
			continue
		}
		name := rel[:len(rel)-len(suffix)]
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Consolidate gathers every metadata document in the store into a single
// .zmetadata document at the root, so readers can discover the hierarchy
// without listing the store.
func Consolidate(ctx context.Context, s Store) (*ConsolidatedMetadata, error) {
	keys, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}

	raw := map[string]json.RawMessage{}
	for _, k := range keys {
		if _, ok := KeyMetaType(k); !ok {
			continue
		}
		var doc json.RawMessage
		if err := getJSON(ctx, s, k, &doc); err != nil {
			return nil, err
		}
		raw[k] = doc
	}

	if err := putJSON(ctx, s, string(MTMetadata), consolidatedMetaDecoder{
		ConsolidatedFormat: ConsolidatedFormat,
		Metadata:           raw,
	}); err != nil {
		return nil, err
	}
	return ReadConsolidated(ctx, s)
}

// RemoveConsolidated deletes the root .zmetadata document, if any. Writers
// that skip Consolidate call it so readers never see stale metadata.
func RemoveConsolidated(ctx context.Context, s Store) error {
	return s.Delete(ctx, string(MTMetadata))
}

// ReadConsolidated loads the root .zmetadata document. It returns an error
// satisfying errors.Is(err, ErrNotfound) when the store is not consolidated.
func ReadConsolidated(ctx context.Context, s Store) (*ConsolidatedMetadata, error) {
	cm := &ConsolidatedMetadata{}
	if err := getJSON(ctx, s, string(MTMetadata), cm); err != nil {
		return nil, err
	}
	return cm, nil
}

// ChildGroups lists the groups directly beneath path according to the
// consolidated metadata.
func (m *ConsolidatedMetadata) ChildGroups(path string) ([]string, error) {
	p, err := NewPath(path)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(m.Metadata))
	for k := range m.Metadata {
		keys = append(keys, k)
	}
	return childNames(p, keys, MTGroup), nil
}
