package xcollection

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	keyMarker      = "\U0001F511"
	maxReprValues  = 4
	reprNameColumn = 9
)

func (ds *Dataset) String() string {
	b := &strings.Builder{}
	b.WriteString("<xcollection.Dataset>\n")

	dims := ds.Dims()
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = fmt.Sprintf("%s: %d", d.Name, d.Size)
	}
	fmt.Fprintf(b, "Dimensions:  (%s)\n", strings.Join(parts, ", "))

	if coords := ds.Coords(); len(coords) > 0 {
		b.WriteString("Coordinates:\n")
		for _, c := range coords {
			v := ds.vars[c]
			marker := " "
			if len(v.Dims) == 1 && v.Dims[0] == c {
				marker = "*"
			}
			writeVarLine(b, "  "+marker+" ", c, v)
		}
	}

	b.WriteString("Data variables:\n")
	vars := ds.DataVars()
	if len(vars) == 0 {
		b.WriteString("    *empty*\n")
	}
	for _, n := range vars {
		writeVarLine(b, "    ", n, ds.vars[n])
	}

	if len(ds.Attrs) > 0 {
		b.WriteString("Attributes:\n")
		for _, k := range ds.Attrs.Keys() {
			fmt.Fprintf(b, "    %-*s %v\n", reprNameColumn, k+":", ds.Attrs[k])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeVarLine(b *strings.Builder, indent, name string, v *Variable) {
	fmt.Fprintf(b, "%s%-*s (%s) float64 %s\n", indent, reprNameColumn-len(indent)+4, name, strings.Join(v.Dims, ", "), previewValues(v.Data))
}

func previewValues(data []float64) string {
	if len(data) == 0 {
		return ""
	}
	n := len(data)
	if n > maxReprValues {
		n = maxReprValues - 1
	}
	parts := make([]string, 0, n+2)
	for _, x := range data[:n] {
		parts = append(parts, strconv.FormatFloat(x, 'g', 4, 64))
	}
	if n < len(data) {
		parts = append(parts, "...", strconv.FormatFloat(data[len(data)-1], 'g', 4, 64))
	}
	return strings.Join(parts, " ")
}

func (da *DataArray) String() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "<xcollection.DataArray %q (%s)>\n", da.Name, strings.Join(da.Variable.Dims, ", "))
	b.WriteString(previewValues(da.Variable.Data))
	if len(da.coordNames) > 0 {
		b.WriteString("\nCoordinates:\n")
		for _, c := range da.coordNames {
			writeVarLine(b, "    ", c, da.coords[c])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// String renders the collection with each dataset under its key.
func (c *Collection) String() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "<Collection (%d keys)>\n", c.Len())
	for _, k := range c.keys {
		fmt.Fprintf(b, "%s %s\n%s\n\n", keyMarker, k, c.datasets[k])
	}
	return b.String()
}
