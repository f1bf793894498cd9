package schema

import (
	"fmt"
	"sort"
	"strings"

	"gridcfg/internal/rules"
)

// ValueType represents the declared type of an option value
type ValueType string

const (
	TypeBool       ValueType = "bool"
	TypeInt        ValueType = "int"
	TypeFloat      ValueType = "float"
	TypeString     ValueType = "string"
	TypeEnum       ValueType = "enum"
	TypePath       ValueType = "path"
	TypeStringList ValueType = "string_list"
	TypeFloatList  ValueType = "float_list"
	TypeFloatMap   ValueType = "float_map"
)

// knownTypes lists every ValueType accepted in a schema file
var knownTypes = map[ValueType]bool{
	TypeBool:       true,
	TypeInt:        true,
	TypeFloat:      true,
	TypeString:     true,
	TypeEnum:       true,
	TypePath:       true,
	TypeStringList: true,
	TypeFloatList:  true,
	TypeFloatMap:   true,
}

// IsList reports whether values of this type are sequences
func (t ValueType) IsList() bool {
	return t == TypeStringList || t == TypeFloatList
}

// IsText reports whether values of this type are single strings
func (t ValueType) IsText() bool {
	return t == TypeString || t == TypeEnum || t == TypePath
}

// IsNumeric reports whether min/max bounds apply to this type (element-wise for lists and maps)
func (t ValueType) IsNumeric() bool {
	switch t {
	case TypeInt, TypeFloat, TypeFloatList, TypeFloatMap:
		return true
	}
	return false
}

// OptionSpec describes one recognized configuration key
type OptionSpec struct {
	Path        string    // e.g., "operational_reserve.epsilon_load"
	Type        ValueType // declared type
	Required    bool
	Default     any      // normalized default, nil when the option has none
	Min         *float64 // inclusive lower bound for numeric types
	Max         *float64 // inclusive upper bound for numeric types
	Values      []any    // allowed values (enumeration, or subset domain for lists)
	AllowFalse  bool     // literal false is accepted as a "disabled" sentinel
	MustExist   bool     // path options only: file must exist
	Unit        string
	Description string
}

// HasDefault reports whether a default is injected when the key is absent
func (o OptionSpec) HasDefault() bool {
	return o.Default != nil
}

// Schema is the immutable, ordered set of options and dependency rules.
// It is safe for concurrent use once constructed.
type Schema struct {
	name    string
	options []OptionSpec
	index   map[string]int
	groups  map[string]int // group path -> declaration index of its first option
	rules   []rules.Rule
}

// New builds a Schema from options in declaration order.
// Rules must only reference declared option paths.
func New(name string, options []OptionSpec, ruleSet []rules.Rule) (*Schema, error) {
	s := &Schema{
		name:    name,
		options: make([]OptionSpec, len(options)),
		index:   make(map[string]int, len(options)),
		groups:  make(map[string]int),
		rules:   append([]rules.Rule(nil), ruleSet...),
	}
	copy(s.options, options)

	for i, opt := range s.options {
		if err := checkPath(opt.Path); err != nil {
			return nil, err
		}
		if _, dup := s.index[opt.Path]; dup {
			return nil, fmt.Errorf("duplicate option '%s'", opt.Path)
		}
		s.index[opt.Path] = i

		parts := strings.Split(opt.Path, ".")
		for j := 1; j < len(parts); j++ {
			group := strings.Join(parts[:j], ".")
			if _, seen := s.groups[group]; !seen {
				s.groups[group] = i
			}
		}
	}

	for path := range s.groups {
		if _, clash := s.index[path]; clash {
			return nil, fmt.Errorf("option '%s' is also a group of other options", path)
		}
	}

	paths := s.Paths()
	for _, r := range s.rules {
		if err := rules.ValidateRuleRefs(r.Expr, paths); err != nil {
			return nil, fmt.Errorf("rule '%s': %v", r.Name, err)
		}
	}

	return s, nil
}

// Name returns the schema name (the config section it describes)
func (s *Schema) Name() string {
	return s.name
}

// Options returns a copy of the option specs in declaration order
func (s *Schema) Options() []OptionSpec {
	out := make([]OptionSpec, len(s.options))
	copy(out, s.options)
	return out
}

// Rules returns a copy of the dependency rules in declaration order
func (s *Schema) Rules() []rules.Rule {
	return append([]rules.Rule(nil), s.rules...)
}

// Paths returns the option paths in declaration order
func (s *Schema) Paths() []string {
	paths := make([]string, len(s.options))
	for i, opt := range s.options {
		paths[i] = opt.Path
	}
	return paths
}

// Lookup returns the OptionSpec declared at path
func (s *Schema) Lookup(path string) (OptionSpec, bool) {
	i, ok := s.index[path]
	if !ok {
		return OptionSpec{}, false
	}
	return s.options[i], true
}

// IsGroup reports whether path is a strict prefix of some option path.
// The empty path (document root) is always a group.
func (s *Schema) IsGroup(path string) bool {
	if path == "" {
		return true
	}
	_, ok := s.groups[path]
	return ok
}

// Position returns the declaration index used to order errors.
// Groups sort with their first option; unknown paths sort after every option.
func (s *Schema) Position(path string) int {
	if i, ok := s.index[path]; ok {
		return i
	}
	if i, ok := s.groups[path]; ok {
		return i
	}
	return len(s.options)
}

// Groups returns all group paths, sorted
func (s *Schema) Groups() []string {
	out := make([]string, 0, len(s.groups))
	for g := range s.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
