package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const jsonSchemaDraft = "https://json-schema.org/draft/2020-12/schema"

// JSONSchema renders the option set as a JSON Schema document.
// Dependency rules cannot be expressed and are listed in the description.
func (s *Schema) JSONSchema() ([]byte, error) {
	root := objectNode()
	root["$schema"] = jsonSchemaDraft
	root["title"] = "gridcfg " + s.name

	if len(s.rules) > 0 {
		var lines []string
		for _, r := range s.rules {
			lines = append(lines, fmt.Sprintf("%s: %s", r.Name, r.Rule))
		}
		root["description"] = "Dependency rules (checked by gridcfg, not by this schema):\n" + strings.Join(lines, "\n")
	}

	for _, opt := range s.options {
		parts := strings.Split(opt.Path, ".")
		parent := root
		for _, group := range parts[:len(parts)-1] {
			props := parent["properties"].(map[string]any)
			child, ok := props[group].(map[string]any)
			if !ok {
				child = objectNode()
				props[group] = child
			}
			if opt.Required {
				addRequired(parent, group)
			}
			parent = child
		}

		leaf := parts[len(parts)-1]
		parent["properties"].(map[string]any)[leaf] = optionJSONSchema(opt)
		if opt.Required {
			addRequired(parent, leaf)
		}
	}

	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON schema: %w", err)
	}
	return data, nil
}

// CompileJSONSchema compiles an exported JSON Schema, confirming it is well-formed
func CompileJSONSchema(data []byte) (*jsonschema.Schema, error) {
	compiled, err := jsonschema.CompileString("gridcfg.schema.json", string(data))
	if err != nil {
		return nil, fmt.Errorf("compile JSON schema: %w", err)
	}
	return compiled, nil
}

func objectNode() map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": false,
	}
}

func addRequired(node map[string]any, name string) {
	req, _ := node["required"].([]string)
	for _, r := range req {
		if r == name {
			return
		}
	}
	req = append(req, name)
	sort.Strings(req)
	node["required"] = req
}

func optionJSONSchema(opt OptionSpec) map[string]any {
	node := valueJSONSchema(opt)

	if opt.AllowFalse {
		node = map[string]any{
			"anyOf": []any{node, map[string]any{"const": false}},
		}
	}
	if opt.Description != "" {
		node["description"] = opt.Description
	}
	if opt.Default != nil {
		node["default"] = opt.Default
	}
	return node
}

func valueJSONSchema(opt OptionSpec) map[string]any {
	switch opt.Type {
	case TypeBool:
		return map[string]any{"type": "boolean"}
	case TypeInt:
		return scalarJSONSchema("integer", opt)
	case TypeFloat:
		return scalarJSONSchema("number", opt)
	case TypeString, TypeEnum:
		return scalarJSONSchema("string", opt)
	case TypePath:
		return map[string]any{"type": "string", "minLength": 1}
	case TypeStringList:
		return map[string]any{"type": "array", "items": scalarJSONSchema("string", opt)}
	case TypeFloatList:
		return map[string]any{"type": "array", "items": scalarJSONSchema("number", opt)}
	case TypeFloatMap:
		return map[string]any{"type": "object", "additionalProperties": scalarJSONSchema("number", opt)}
	}
	return map[string]any{}
}

func scalarJSONSchema(jsonType string, opt OptionSpec) map[string]any {
	node := map[string]any{"type": jsonType}
	if opt.Min != nil {
		node["minimum"] = *opt.Min
	}
	if opt.Max != nil {
		node["maximum"] = *opt.Max
	}
	if len(opt.Values) > 0 {
		node["enum"] = opt.Values
	}
	return node
}
