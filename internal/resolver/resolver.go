// Package resolver layers configuration overrides from .env files, the
// process environment and --set flags on top of a loaded document.
package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gridcfg/internal/document"
	"gridcfg/internal/schema"
)

// Override is one value that replaces the document's value at Path
type Override struct {
	Path   string // Dotted option path
	Raw    string // Unparsed value text
	Origin string // Where the override came from, for error reports
}

// ResolvedValue represents an option looked up in an environment
type ResolvedValue struct {
	Key     string // The config key path (e.g., "max_hours.H2")
	EnvVar  string // The environment variable name (e.g., "GRIDCFG_OPT_MAX_HOURS_H2")
	Value   string // The raw value (empty if not set)
	Present bool   // Whether the env var was set
}

// Resolve looks up every schema option in an environ slice (format: "KEY=VALUE").
// Results follow option declaration order.
func Resolve(s *schema.Schema, environ []string) []ResolvedValue {
	envMap := parseEnviron(environ)

	results := make([]ResolvedValue, 0, len(s.Paths()))
	for _, path := range s.Paths() {
		envVar := PathToEnvVar(path)
		value, present := envMap[envVar]

		results = append(results, ResolvedValue{
			Key:     path,
			EnvVar:  envVar,
			Value:   value,
			Present: present,
		})
	}

	return results
}

// FromEnviron returns overrides for every option set in environ
func FromEnviron(s *schema.Schema, environ []string, origin string) []Override {
	var out []Override
	for _, rv := range Resolve(s, environ) {
		if !rv.Present {
			continue
		}
		out = append(out, Override{
			Path:   rv.Key,
			Raw:    rv.Value,
			Origin: fmt.Sprintf("%s %s", origin, rv.EnvVar),
		})
	}
	return out
}

// ReadDotEnv reads a .env file into an environ slice, sorted by key
func ReadDotEnv(path string) ([]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	environ := make([]string, 0, len(vars))
	for k, v := range vars {
		environ = append(environ, k+"="+v)
	}
	sort.Strings(environ)
	return environ, nil
}

// ParseSet parses a --set argument of the form path=value
func ParseSet(arg string) (Override, error) {
	idx := strings.Index(arg, "=")
	if idx <= 0 {
		return Override{}, fmt.Errorf("invalid --set '%s': expected path=value", arg)
	}
	path := strings.TrimSpace(arg[:idx])
	if path == "" || strings.HasPrefix(path, ".") || strings.HasSuffix(path, ".") || strings.Contains(path, "..") {
		return Override{}, fmt.Errorf("invalid --set '%s': malformed path", arg)
	}
	return Override{Path: path, Raw: arg[idx+1:], Origin: "--set " + path}, nil
}

// DecodeValue interprets override text as a YAML scalar, flow sequence or
// flow mapping, so "[OCGT, CCGT]" becomes a list and "0.5" a number
func DecodeValue(raw string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("cannot decode '%s': %w", raw, err)
	}
	return v, nil
}

// DecodeFor decodes override text for one option. Text options keep plain
// scalar text verbatim, so 2024 stays the string "2024". Quoted scalars, flow
// collections, null and an accepted false sentinel are still decoded.
func DecodeFor(opt schema.OptionSpec, raw string) (any, error) {
	if !opt.Type.IsText() {
		return DecodeValue(raw)
	}
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "", trimmed == "null", trimmed == "~":
		return nil, nil
	case opt.AllowFalse && schema.IsFalseSentinel(trimmed):
		return false, nil
	case strings.ContainsAny(trimmed[:1], "[{\"'"):
		return DecodeValue(raw)
	}
	return raw, nil
}

// Apply stores each override in order; later overrides win.
// Paths the schema does not declare are decoded as plain YAML and left for
// validation to report.
func Apply(s *schema.Schema, doc *document.Document, overrides []Override) (*document.Document, error) {
	for _, o := range overrides {
		var v any
		var err error
		if opt, ok := s.Lookup(o.Path); ok {
			v, err = DecodeFor(opt, o.Raw)
		} else {
			v, err = DecodeValue(o.Raw)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", o.Origin, err)
		}
		doc = doc.Set(o.Path, v, o.Origin)
	}
	return doc, nil
}

// parseEnviron converts an environ slice (["KEY=VALUE", ...]) into a map.
// Handles edge cases like empty values ("KEY=") and values containing "=" ("KEY=a=b").
func parseEnviron(environ []string) map[string]string {
	result := make(map[string]string)
	for _, entry := range environ {
		// Split on first "=" only - values can contain "="
		idx := strings.Index(entry, "=")
		if idx == -1 {
			continue
		}
		result[entry[:idx]] = entry[idx+1:]
	}
	return result
}
