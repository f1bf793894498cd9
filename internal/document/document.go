// Package document holds a user configuration document: a nested mapping
// addressed by dotted paths, with the origin of every overridden value.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format identifies the serialization of a document
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported config format '%s' (expected .yaml, .yml, .json or .toml)", filepath.Ext(path))
}

// Document is an immutable configuration tree.
// Mutating operations return a new Document.
type Document struct {
	tree    map[string]any
	source  string
	origins map[string]string // dotted path -> origin of an override
}

// Entry is one flattened leaf of a document
type Entry struct {
	Path  string
	Value any
}

// Parse decodes content in the given format. source names the input in error reports.
func Parse(content []byte, format Format, source string) (*Document, error) {
	raw := map[string]any{}

	switch format {
	case FormatYAML, FormatJSON:
		// JSON is a subset of YAML
		var node any
		if err := yaml.Unmarshal(content, &node); err != nil {
			return nil, fmt.Errorf("invalid %s in %s: %w", format, source, err)
		}
		if node != nil {
			m, ok := normalize(node).(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s: document root must be a mapping", source)
			}
			raw = m
		}
	case FormatTOML:
		if err := toml.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("invalid toml in %s: %w", source, err)
		}
		raw = normalize(raw).(map[string]any)
	default:
		return nil, fmt.Errorf("unsupported config format '%s'", format)
	}

	return &Document{tree: raw, source: source, origins: map[string]string{}}, nil
}

// Load reads and parses a document file, choosing the format by extension
func Load(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(content, format, path)
}

// FromMap builds a document from an in-memory tree, which is deep-copied
func FromMap(tree map[string]any, source string) *Document {
	if tree == nil {
		tree = map[string]any{}
	}
	return &Document{
		tree:    normalize(tree).(map[string]any),
		source:  source,
		origins: map[string]string{},
	}
}

// Source names where the document was read from
func (d *Document) Source() string {
	return d.source
}

// Tree returns a deep copy of the nested values
func (d *Document) Tree() map[string]any {
	return normalize(d.tree).(map[string]any)
}

// Len returns the number of top-level keys
func (d *Document) Len() int {
	return len(d.tree)
}

// Section returns the subtree under a top-level mapping key, if there is one
func (d *Document) Section(name string) (*Document, bool) {
	sub, ok := d.tree[name].(map[string]any)
	if !ok {
		return nil, false
	}
	origins := map[string]string{}
	prefix := name + "."
	for p, o := range d.origins {
		if strings.HasPrefix(p, prefix) {
			origins[strings.TrimPrefix(p, prefix)] = o
		}
	}
	return &Document{tree: normalize(sub).(map[string]any), source: d.source, origins: origins}, true
}

// Get returns the value at a dotted path
func (d *Document) Get(path string) (any, bool) {
	var cur any = d.tree
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set returns a copy of the document with value stored at a dotted path.
// Missing or non-mapping intermediate nodes are replaced by mappings.
func (d *Document) Set(path string, value any, origin string) *Document {
	tree := d.Tree()
	parts := strings.Split(path, ".")
	cur := tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = normalize(value)

	origins := make(map[string]string, len(d.origins)+1)
	for p, o := range d.origins {
		if p != path && !strings.HasPrefix(p, path+".") {
			origins[p] = o
		}
	}
	if origin != "" {
		origins[path] = origin
	}

	return &Document{tree: tree, source: d.source, origins: origins}
}

// Origin names where the value at path came from: the nearest overridden
// ancestor-or-self, else the document source
func (d *Document) Origin(path string) string {
	for p := path; p != ""; {
		if o, ok := d.origins[p]; ok {
			return o
		}
		i := strings.LastIndex(p, ".")
		if i < 0 {
			break
		}
		p = p[:i]
	}
	return d.source
}

// Flatten walks the tree and returns leaves sorted by path.
// A mapping is descended into only when descend reports true for its path;
// otherwise the whole mapping is returned as a single leaf.
// A dotted key and a nested mapping can name the same path; both entries are
// kept, ordered by rendered value.
func (d *Document) Flatten(descend func(path string) bool) []Entry {
	var out []Entry
	flatten(d.tree, "", ".", descend, &out)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return fmt.Sprint(out[i].Value) < fmt.Sprint(out[j].Value)
	})
	return out
}

// FlattenAll descends into every mapping and joins keys with sep
func (d *Document) FlattenAll(sep string) map[string]any {
	var entries []Entry
	flatten(d.tree, "", sep, func(string) bool { return true }, &entries)
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		out[e.Path] = e.Value
	}
	return out
}

func flatten(m map[string]any, prefix, sep string, descend func(string) bool, out *[]Entry) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + sep + k
		}
		if sub, ok := v.(map[string]any); ok && len(sub) > 0 && descend(path) {
			flatten(sub, path, sep, descend, out)
			continue
		}
		*out = append(*out, Entry{Path: path, Value: v})
	}
}

// normalize deep-copies a decoded value and stringifies mapping keys
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]string, len(x))
		copy(out, x)
		return out
	case []float64:
		out := make([]float64, len(x))
		copy(out, x)
		return out
	case map[string]float64:
		out := make(map[string]float64, len(x))
		for k, f := range x {
			out[k] = f
		}
		return out
	}
	return v
}
