package zarr

import (
	"fmt"
	"strings"
)

type Path []string

// NewPath normalizes a logical path so that keys are consistent across
// storage systems:
// * Replace all backward slash characters ("\") with forward slash characters ("/")
// * Strip any leading "/" characters
// * Strip any trailing "/" characters
// * Collapse any sequence of more than one "/" character into a single "/" character
//
// Segments of "." or ".." are rejected. The empty string is the root path.
func NewPath(posix string) (Path, error) {
	posix = strings.ReplaceAll(posix, `\`, "/")
	p := Path{}
	for _, seg := range strings.Split(posix, "/") {
		switch seg {
		case "":
			continue
		case ".", "..":
			return nil, fmt.Errorf("invalid path %q: relative segment %q", posix, seg)
		}
		p = append(p, seg)
	}
	return p, nil
}

func (p Path) String() string {
	return strings.Join(p, "/")
}

func (p Path) IsRoot() bool { return len(p) == 0 }

func (p Path) Shift() (head string, ch Path) {
	switch len(p) {
	case 0:
		return "", nil
	case 1:
		return p[0], nil
	default:
		return p[0], p[1:]
	}
}

// Join returns a new path with elems appended. p is not modified.
func (p Path) Join(elems ...string) Path {
	out := make(Path, 0, len(p)+len(elems))
	out = append(out, p...)
	return append(out, elems...)
}

// Key returns the store key for a metadata document or chunk under p.
func (p Path) Key(name string) string {
	return p.Join(name).String()
}

// Prefix returns the key prefix shared by everything beneath p.
func (p Path) Prefix() string {
	if p.IsRoot() {
		return ""
	}
	return p.String() + "/"
}
