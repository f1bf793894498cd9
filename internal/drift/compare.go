package drift

import (
	"gridcfg/internal/document"
	"gridcfg/internal/rules"
)

// DefaultSeparator joins nested keys in a comparison
const DefaultSeparator = "."

// ValueDiff is a key present in both documents with different values
type ValueDiff struct {
	Key    string `json:"key"`
	First  string `json:"first"`
	Second string `json:"second"`
}

// Comparison is the difference between two arbitrary configuration documents.
type Comparison struct {
	First        string      `json:"first"`
	Second       string      `json:"second"`
	Separator    string      `json:"separator"`
	OnlyInFirst  []string    `json:"onlyInFirst"`
	OnlyInSecond []string    `json:"onlyInSecond"`
	Changed      []ValueDiff `json:"changed"`
}

// HasDifferences reports whether the documents differ at all
func (c Comparison) HasDifferences() bool {
	return len(c.OnlyInFirst) > 0 || len(c.OnlyInSecond) > 0 || len(c.Changed) > 0
}

// KeyDifference returns the symmetric difference of the flattened keys, sorted
func (c Comparison) KeyDifference() []string {
	out := make([]string, 0, len(c.OnlyInFirst)+len(c.OnlyInSecond))
	out = append(out, c.OnlyInFirst...)
	out = append(out, c.OnlyInSecond...)
	return sortedCopy(out)
}

// Compare flattens both documents with sep and reports the key symmetric
// difference plus value differences for the keys they share.
// Lists are compared as whole values.
func Compare(first, second *document.Document, sep string) Comparison {
	if sep == "" {
		sep = DefaultSeparator
	}
	a := first.FlattenAll(sep)
	b := second.FlattenAll(sep)

	c := Comparison{
		First:        first.Source(),
		Second:       second.Source(),
		Separator:    sep,
		OnlyInFirst:  []string{},
		OnlyInSecond: []string{},
		Changed:      []ValueDiff{},
	}

	for _, key := range unionKeys(a, b) {
		va, inA := a[key]
		vb, inB := b[key]
		switch {
		case inA && !inB:
			c.OnlyInFirst = append(c.OnlyInFirst, key)
		case !inA && inB:
			c.OnlyInSecond = append(c.OnlyInSecond, key)
		case !sameJSON(va, vb):
			c.Changed = append(c.Changed, ValueDiff{
				Key:    key,
				First:  rules.FormatValue(va),
				Second: rules.FormatValue(vb),
			})
		}
	}

	return c
}
