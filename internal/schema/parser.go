package schema

import (
	"fmt"
	"os"
	"regexp"

	"gridcfg/internal/rules"

	"gopkg.in/yaml.v3"
)

// schemaFile represents the YAML file structure.
// Options is kept as a node so declaration order survives decoding.
type schemaFile struct {
	Section string      `yaml:"section,omitempty"`
	Options yaml.Node   `yaml:"options"`
	Rules   []ruleEntry `yaml:"rules,omitempty"`
}

// optionEntry represents a single option entry in YAML
type optionEntry struct {
	Type        string   `yaml:"type"`
	Required    bool     `yaml:"required,omitempty"`
	Default     any      `yaml:"default,omitempty"`
	Min         *float64 `yaml:"min,omitempty"`
	Max         *float64 `yaml:"max,omitempty"`
	Values      []any    `yaml:"values,omitempty"`
	AllowFalse  bool     `yaml:"allow_false,omitempty"`
	MustExist   bool     `yaml:"must_exist,omitempty"`
	Unit        string   `yaml:"unit,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// ruleEntry represents a single dependency rule entry in YAML
type ruleEntry struct {
	Name    string `yaml:"name"`
	Rule    string `yaml:"rule"`
	Message string `yaml:"message,omitempty"`
}

// ruleNameRegex validates rule names: alphanumeric, hyphens, underscores
var ruleNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// pathRegex validates option paths: dot-separated identifiers
var pathRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*(\.[A-Za-z_][A-Za-z0-9_-]*)*$`)

func checkPath(path string) error {
	if !pathRegex.MatchString(path) {
		return fmt.Errorf("invalid option path '%s'", path)
	}
	return nil
}

// ParseSchema parses YAML content into a Schema
func ParseSchema(content []byte) (*Schema, error) {
	var sf schemaFile
	if err := yaml.Unmarshal(content, &sf); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if sf.Options.Kind == 0 {
		return nil, fmt.Errorf("missing 'options' section")
	}
	if sf.Options.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("'options' must be a mapping of option paths")
	}

	options := make([]OptionSpec, 0, len(sf.Options.Content)/2)
	for i := 0; i+1 < len(sf.Options.Content); i += 2 {
		keyNode, valueNode := sf.Options.Content[i], sf.Options.Content[i+1]

		var entry optionEntry
		if err := valueNode.Decode(&entry); err != nil {
			return nil, fmt.Errorf("option '%s': %w", keyNode.Value, err)
		}

		spec, err := buildOption(keyNode.Value, entry)
		if err != nil {
			return nil, err
		}
		options = append(options, spec)
	}

	paths := make([]string, len(options))
	for i, o := range options {
		paths[i] = o.Path
	}

	ruleSet := make([]rules.Rule, 0, len(sf.Rules))
	seenNames := make(map[string]bool)
	for i, r := range sf.Rules {
		if r.Name == "" {
			return nil, fmt.Errorf("rule at index %d: missing required field 'name'", i)
		}
		if !ruleNameRegex.MatchString(r.Name) {
			return nil, fmt.Errorf("rule name '%s' contains invalid characters", r.Name)
		}
		if seenNames[r.Name] {
			return nil, fmt.Errorf("duplicate rule name: '%s'", r.Name)
		}
		seenNames[r.Name] = true

		if r.Rule == "" {
			return nil, fmt.Errorf("rule '%s': missing required field 'rule'", r.Name)
		}

		expr, err := rules.ParseRule(r.Rule, paths)
		if err != nil {
			return nil, fmt.Errorf("rule '%s': invalid rule syntax: %w", r.Name, err)
		}

		ruleSet = append(ruleSet, rules.Rule{
			Name:    r.Name,
			Rule:    r.Rule,
			Message: r.Message,
			Expr:    expr,
		})
	}

	name := sf.Section
	if name == "" {
		name = "custom"
	}
	return New(name, options, ruleSet)
}

// buildOption validates one YAML entry and normalizes its default and domain
func buildOption(path string, entry optionEntry) (OptionSpec, error) {
	if err := checkPath(path); err != nil {
		return OptionSpec{}, err
	}

	t := ValueType(entry.Type)
	if !knownTypes[t] {
		return OptionSpec{}, fmt.Errorf("unknown type '%s' for option '%s'", entry.Type, path)
	}

	if t == TypeEnum && len(entry.Values) == 0 {
		return OptionSpec{}, fmt.Errorf("enum type requires 'values' for option '%s'", path)
	}
	if len(entry.Values) > 0 && (t == TypeBool || t == TypePath || t == TypeFloatMap) {
		return OptionSpec{}, fmt.Errorf("'values' is not supported for %s option '%s'", t, path)
	}
	if (entry.Min != nil || entry.Max != nil) && !t.IsNumeric() {
		return OptionSpec{}, fmt.Errorf("'min'/'max' require a numeric type for option '%s'", path)
	}
	if entry.Min != nil && entry.Max != nil && *entry.Min > *entry.Max {
		return OptionSpec{}, fmt.Errorf("'min' exceeds 'max' for option '%s'", path)
	}
	if entry.MustExist && t != TypePath {
		return OptionSpec{}, fmt.Errorf("'must_exist' requires type path for option '%s'", path)
	}
	if entry.AllowFalse && t == TypeBool {
		return OptionSpec{}, fmt.Errorf("'allow_false' is meaningless for bool option '%s'", path)
	}

	spec := OptionSpec{
		Path:        path,
		Type:        t,
		Required:    entry.Required,
		Min:         entry.Min,
		Max:         entry.Max,
		AllowFalse:  entry.AllowFalse,
		MustExist:   entry.MustExist,
		Unit:        entry.Unit,
		Description: entry.Description,
	}

	for _, raw := range entry.Values {
		v, ok := Coerce(elementType(t), raw)
		if !ok {
			return OptionSpec{}, fmt.Errorf("value '%v' does not match type %s for option '%s'", raw, t, path)
		}
		spec.Values = append(spec.Values, v)
	}

	if entry.Default != nil {
		def, err := normalizeDefault(spec, entry.Default)
		if err != nil {
			return OptionSpec{}, fmt.Errorf("default for option '%s': %w", path, err)
		}
		spec.Default = def
	}

	return spec, nil
}

func normalizeDefault(spec OptionSpec, raw any) (any, error) {
	if spec.AllowFalse && IsFalseSentinel(raw) {
		return false, nil
	}
	v, ok := Coerce(spec.Type, raw)
	if !ok {
		return nil, fmt.Errorf("'%v' does not match type %s", raw, spec.Type)
	}
	if derr := CheckValue(spec, v); derr != nil {
		return nil, derr
	}
	return v, nil
}

// ToYAML serializes a Schema back to YAML bytes, preserving declaration order
func (s *Schema) ToYAML() ([]byte, error) {
	sf := schemaFile{
		Section: s.name,
		Options: yaml.Node{Kind: yaml.MappingNode},
	}

	for _, opt := range s.options {
		entry := optionEntry{
			Type:        string(opt.Type),
			Required:    opt.Required,
			Default:     opt.Default,
			Min:         opt.Min,
			Max:         opt.Max,
			Values:      opt.Values,
			AllowFalse:  opt.AllowFalse,
			MustExist:   opt.MustExist,
			Unit:        opt.Unit,
			Description: opt.Description,
		}

		var valueNode yaml.Node
		if err := valueNode.Encode(entry); err != nil {
			return nil, fmt.Errorf("option '%s': %w", opt.Path, err)
		}
		sf.Options.Content = append(sf.Options.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: opt.Path},
			&valueNode,
		)
	}

	for _, r := range s.rules {
		sf.Rules = append(sf.Rules, ruleEntry{
			Name:    r.Name,
			Rule:    r.Rule,
			Message: r.Message,
		})
	}

	return yaml.Marshal(&sf)
}

// LoadSchemaFromPath reads and parses a schema from the given file path
func LoadSchemaFromPath(path string) (*Schema, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	return ParseSchema(content)
}
