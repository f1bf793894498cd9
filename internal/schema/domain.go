package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Violation classifies a domain check failure
type Violation string

const (
	ViolationRange       Violation = "range"
	ViolationEnumeration Violation = "enumeration"
	ViolationPath        Violation = "path"
)

// DomainError describes a normalized value outside its option's domain
type DomainError struct {
	Violation Violation
	Message   string
	Offending []string // enumeration: members outside the allowed set
}

func (e *DomainError) Error() string {
	return e.Message
}

// CheckValue checks a normalized value against the option's range and enumeration.
// The false sentinel of an allow_false option is always in domain.
func CheckValue(o OptionSpec, v any) *DomainError {
	if o.AllowFalse {
		if b, ok := v.(bool); ok && !b {
			return nil
		}
	}

	if o.Type == TypePath {
		if v.(string) == "" || strings.ContainsRune(v.(string), 0) {
			return &DomainError{Violation: ViolationPath, Message: "not a well-formed path"}
		}
	}

	if o.Type.IsNumeric() && (o.Min != nil || o.Max != nil) {
		for _, n := range Numbers(v) {
			if o.Min != nil && n < *o.Min {
				return &DomainError{Violation: ViolationRange, Message: fmt.Sprintf("%s is below minimum %s", FormatNumber(n), FormatNumber(*o.Min))}
			}
			if o.Max != nil && n > *o.Max {
				return &DomainError{Violation: ViolationRange, Message: fmt.Sprintf("%s is above maximum %s", FormatNumber(n), FormatNumber(*o.Max))}
			}
		}
	}

	if len(o.Values) > 0 {
		var offending []string
		for _, e := range Elements(v) {
			if !containsValue(o.Values, e) {
				offending = append(offending, FormatScalar(e))
			}
		}
		if len(offending) > 0 {
			msg := fmt.Sprintf("'%s' is not valid, must be one of: %s", strings.Join(offending, ", "), strings.Join(o.AllowedStrings(), ", "))
			if o.Type.IsList() {
				msg = fmt.Sprintf("'%s' not allowed, must be a subset of: %s", strings.Join(offending, ", "), strings.Join(o.AllowedStrings(), ", "))
			}
			return &DomainError{Violation: ViolationEnumeration, Message: msg, Offending: offending}
		}
	}

	return nil
}

// AllowedStrings renders the allowed values, including the false sentinel
func (o OptionSpec) AllowedStrings() []string {
	out := make([]string, 0, len(o.Values)+1)
	if o.AllowFalse {
		out = append(out, "false")
	}
	for _, v := range o.Values {
		out = append(out, FormatScalar(v))
	}
	return out
}

func containsValue(allowed []any, v any) bool {
	for _, a := range allowed {
		if SameValue(a, v) {
			return true
		}
	}
	return false
}

// FormatNumber renders a float without trailing zeros
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// FormatScalar renders a normalized scalar for messages
func FormatScalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return FormatNumber(x)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return "null"
	}
	return fmt.Sprint(v)
}
