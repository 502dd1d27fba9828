package columnar

// DefaultMinItemsize is the width given to any column without an override.
const DefaultMinItemsize = 21

// ItemsizeHints are minimum storage widths, in bytes, per column name.
type ItemsizeHints struct {
	Default   int            `mapstructure:"default" yaml:"default" json:"default"`
	Overrides map[string]int `mapstructure:"overrides" yaml:"overrides" json:"overrides"`
}

// DefaultItemsizeHints returns the widths of the known master-file columns.
func DefaultItemsizeHints() ItemsizeHints {
	return ItemsizeHints{
		Default: DefaultMinItemsize,
		Overrides: map[string]int{
			"NAME":  60,
			"ITS":   4,
			"ICODE": 8,
			"UOT":   8,
			"DENOM": 4,
			"TYPE":  4,
		},
	}
}

// For returns the hinted width for a column name.
func (h ItemsizeHints) For(name string) int {
	if w, ok := h.Overrides[name]; ok {
		return w
	}
	return h.Default
}

// MaxByteLen returns the length in bytes of the longest value.
func MaxByteLen(values []string) int {
	m := 0
	for _, v := range values {
		if len(v) > m {
			m = len(v)
		}
	}
	return m
}

// ItemSizes returns the width each column needs: the hint, or the longest
// value when that is wider. Widths are at least 1.
func (f *Frame) ItemSizes(hints ItemsizeHints) []int {
	sizes := make([]int, len(f.names))
	for i, name := range f.names {
		w := hints.For(name)
		if l := MaxByteLen(f.columns[i]); l > w {
			w = l
		}
		if w < 1 {
			w = 1
		}
		sizes[i] = w
	}
	return sizes
}
