package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gridcfg/internal/document"
	"gridcfg/internal/rules"
	"gridcfg/internal/schema"
)

// ErrorKind classifies a validation failure
type ErrorKind string

const (
	KindUnknownKey      ErrorKind = "UnknownKeyError"
	KindTypeMismatch    ErrorKind = "TypeMismatchError"
	KindRange           ErrorKind = "RangeError"
	KindEnumeration     ErrorKind = "EnumerationError"
	KindDependency      ErrorKind = "DependencyError"
	KindMissingRequired ErrorKind = "MissingRequiredKeyError"
	KindPath            ErrorKind = "PathError"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Key     string    // Dotted option path (e.g., "operational_reserve.epsilon_load")
	Kind    ErrorKind // Failure class
	Source  string    // Where the offending value came from (file, env var, --set)
	Message string    // Human-readable error message
	Value   string    // The offending value, rendered (if present)
	Allowed []string  // For enumeration errors, the allowed values
	Rule    string    // For dependency errors, the violated rule name
}

func (e ValidationError) Error() string {
	return FormatError(e)
}

// ValidationResult contains all validation outcomes
type ValidationResult struct {
	Valid  bool
	Config *document.Document // Normalized config with defaults applied; nil unless Valid
	Values map[string]any     // Normalized values by option path; nil unless Valid
	Errors []ValidationError  // Ordered by option declaration; unknown keys last
}

// FileChecker reports whether a path option points at an existing file
type FileChecker interface {
	Exists(path string) bool
}

// FileCheckerFunc adapts a function to FileChecker
type FileCheckerFunc func(path string) bool

// Exists implements FileChecker
func (f FileCheckerFunc) Exists(path string) bool {
	return f(path)
}

// DirChecker resolves relative paths against a base directory and stats them
func DirChecker(base string) FileChecker {
	return FileCheckerFunc(func(path string) bool {
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		_, err := os.Stat(path)
		return err == nil
	})
}

// Option configures a validation run
type Option func(*options)

type options struct {
	files FileChecker
}

// WithFileChecker enables existence checks for must_exist path options
func WithFileChecker(fc FileChecker) Option {
	return func(o *options) {
		o.files = fc
	}
}

// Validate checks every key of doc against the schema, applies defaults and
// evaluates dependency rules. It collects all errors rather than stopping at
// the first one, and never touches the filesystem unless a FileChecker is given.
func Validate(s *schema.Schema, doc *document.Document, opts ...Option) ValidationResult {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var errs []ValidationError
	values := make(map[string]any)
	seen := make(map[string]bool)   // option paths present in the input
	failed := make(map[string]bool) // option paths whose value is unusable

	entries := doc.Flatten(s.IsGroup)
	count := make(map[string]int, len(entries))
	dup := make(map[string]bool)
	for _, entry := range entries {
		count[entry.Path]++
	}

	for _, entry := range entries {
		if n := count[entry.Path]; n > 1 {
			if !dup[entry.Path] {
				dup[entry.Path] = true
				errs = append(errs, ValidationError{
					Key:     entry.Path,
					Kind:    KindTypeMismatch,
					Source:  doc.Origin(entry.Path),
					Message: fmt.Sprintf("set more than once (%d times, as a dotted key and a nested mapping)", n),
				})
				failed[entry.Path] = true
				for _, p := range s.Paths() {
					if strings.HasPrefix(p, entry.Path+".") {
						failed[p] = true
					}
				}
			}
			continue
		}

		if s.IsGroup(entry.Path) {
			if isEmptyMapping(entry.Value) {
				continue
			}
			errs = append(errs, ValidationError{
				Key:     entry.Path,
				Kind:    KindTypeMismatch,
				Source:  doc.Origin(entry.Path),
				Message: fmt.Sprintf("expected a mapping, got %s", describe(entry.Value)),
				Value:   rules.FormatValue(entry.Value),
			})
			for _, p := range s.Paths() {
				if strings.HasPrefix(p, entry.Path+".") {
					failed[p] = true
				}
			}
			continue
		}

		opt, ok := s.Lookup(entry.Path)
		if !ok {
			errs = append(errs, ValidationError{
				Key:     entry.Path,
				Kind:    KindUnknownKey,
				Source:  doc.Origin(entry.Path),
				Message: "unknown option",
			})
			continue
		}

		if entry.Value == nil {
			continue
		}

		seen[opt.Path] = true
		v, verr := checkOption(opt, entry.Value, o.files)
		if verr != nil {
			verr.Source = doc.Origin(opt.Path)
			errs = append(errs, *verr)
			failed[opt.Path] = true
			continue
		}
		values[opt.Path] = v
	}

	for _, opt := range s.Options() {
		if seen[opt.Path] || failed[opt.Path] {
			continue
		}
		if opt.HasDefault() {
			values[opt.Path] = cloneValue(opt.Default)
			continue
		}
		if opt.Required {
			errs = append(errs, ValidationError{
				Key:     opt.Path,
				Kind:    KindMissingRequired,
				Source:  doc.Source(),
				Message: "required but not set",
			})
			failed[opt.Path] = true
		}
	}

	// rules over a failed option would only restate its error
	var active []rules.Rule
	for _, r := range s.Rules() {
		if !referencesAny(r.Expr, failed) {
			active = append(active, r)
		}
	}
	results := rules.EvaluateAll(active, rules.EvalContext{Values: values})
	for _, v := range rules.Violations(results) {
		errs = append(errs, ValidationError{
			Key:     v.Key,
			Kind:    KindDependency,
			Source:  doc.Origin(v.Key),
			Message: fmt.Sprintf("rule '%s' violated: %s", v.Name, v.Message),
			Value:   v.LeftValue,
			Rule:    v.Name,
		})
	}

	sortErrors(s, errs)

	if len(errs) > 0 {
		return ValidationResult{Valid: false, Errors: errs}
	}

	return ValidationResult{
		Valid:  true,
		Config: document.FromMap(nest(values), doc.Source()),
		Values: values,
	}
}

// checkOption coerces a raw value and checks it against the option's domain
func checkOption(opt schema.OptionSpec, raw any, files FileChecker) (any, *ValidationError) {
	if opt.AllowFalse && schema.IsFalseSentinel(raw) {
		return false, nil
	}

	if opt.AllowFalse && len(opt.Values) > 0 && schema.IsTrueLiteral(raw) {
		allowed := opt.AllowedStrings()
		return nil, &ValidationError{
			Key:     opt.Path,
			Kind:    KindEnumeration,
			Message: fmt.Sprintf("'true' is not valid, must be one of: %s", strings.Join(allowed, ", ")),
			Value:   "true",
			Allowed: allowed,
		}
	}

	v, ok := schema.Coerce(opt.Type, raw)
	if !ok {
		expected := string(opt.Type)
		if opt.AllowFalse {
			expected += " or false"
		}
		return nil, &ValidationError{
			Key:     opt.Path,
			Kind:    KindTypeMismatch,
			Message: fmt.Sprintf("expected %s, got %s", expected, describe(raw)),
			Value:   rules.FormatValue(raw),
		}
	}

	if derr := schema.CheckValue(opt, v); derr != nil {
		verr := &ValidationError{
			Key:     opt.Path,
			Message: derr.Message,
			Value:   rules.FormatValue(v),
		}
		switch derr.Violation {
		case schema.ViolationRange:
			verr.Kind = KindRange
		case schema.ViolationEnumeration:
			verr.Kind = KindEnumeration
			verr.Value = strings.Join(derr.Offending, ", ")
			verr.Allowed = opt.AllowedStrings()
		default:
			verr.Kind = KindPath
		}
		return nil, verr
	}

	if opt.MustExist && files != nil {
		if p, isPath := v.(string); isPath && !files.Exists(p) {
			return nil, &ValidationError{
				Key:     opt.Path,
				Kind:    KindPath,
				Message: fmt.Sprintf("file '%s' does not exist", p),
				Value:   p,
			}
		}
	}

	return v, nil
}

// sortErrors orders errors by option declaration, unknown keys last in
// lexical order, and per-key errors before dependency errors of the same key
func sortErrors(s *schema.Schema, errs []ValidationError) {
	sort.SliceStable(errs, func(i, j int) bool {
		pi, pj := s.Position(errs[i].Key), s.Position(errs[j].Key)
		if pi != pj {
			return pi < pj
		}
		if errs[i].Key != errs[j].Key {
			return errs[i].Key < errs[j].Key
		}
		return phase(errs[i].Kind) < phase(errs[j].Kind)
	})
}

func phase(k ErrorKind) int {
	if k == KindDependency {
		return 1
	}
	return 0
}

func referencesAny(expr rules.RuleExpr, paths map[string]bool) bool {
	for _, ref := range rules.Refs(expr) {
		if paths[ref] {
			return true
		}
	}
	return false
}

func isEmptyMapping(v any) bool {
	if v == nil {
		return true
	}
	m, ok := v.(map[string]any)
	return ok && len(m) == 0
}

// describe names the kind of a raw value for type mismatch messages
func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return fmt.Sprintf("bool %t", x)
	case string:
		return fmt.Sprintf("string %q", x)
	case int, int64, uint64:
		return fmt.Sprintf("integer %v", x)
	case float64:
		return "number " + schema.FormatNumber(x)
	case []any, []string, []float64:
		return "list " + rules.FormatValue(x)
	case map[string]any, map[string]float64:
		return "mapping"
	}
	return fmt.Sprintf("%T", v)
}

// nest rebuilds a nested tree from dotted option paths
func nest(values map[string]any) map[string]any {
	tree := make(map[string]any)
	for path, v := range values {
		parts := strings.Split(path, ".")
		cur := tree
		for _, part := range parts[:len(parts)-1] {
			next, ok := cur[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[part] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = v
	}
	return tree
}

func cloneValue(v any) any {
	switch x := v.(type) {
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
