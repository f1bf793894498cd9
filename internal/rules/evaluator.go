package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EvalContext provides values for rule evaluation
type EvalContext struct {
	Values map[string]any // Normalized config values by dotted path; absent keys are missing
}

// Evaluate evaluates a single rule against the context
func Evaluate(r Rule, ctx EvalContext) Result {
	result := Result{
		Name:   r.Name,
		Rule:   r.Rule,
		Key:    PrimaryKey(r.Expr),
		Passed: true,
	}

	passed, leftVal, rightVal, msg := evalExpr(r.Expr, ctx)
	result.Passed = passed
	result.LeftValue = leftVal
	result.RightValue = rightVal
	if !passed {
		result.Message = msg
		if r.Message != "" {
			result.Message = r.Message
		}
	}

	return result
}

// EvaluateAll evaluates all rules against the context, in declaration order
func EvaluateAll(ruleSet []Rule, ctx EvalContext) []Result {
	results := make([]Result, 0, len(ruleSet))
	for _, r := range ruleSet {
		results = append(results, Evaluate(r, ctx))
	}
	return results
}

// PrimaryKey returns the first config key a rule references, or "" for constant rules
func PrimaryKey(expr RuleExpr) string {
	refs := Refs(expr)
	if len(refs) == 0 {
		return ""
	}
	return refs[0]
}

// Violations returns only the failed rule results
func Violations(results []Result) []Result {
	var violations []Result
	for _, r := range results {
		if !r.Passed {
			violations = append(violations, r)
		}
	}
	return violations
}

// evalExpr evaluates a rule expression and returns:
// - passed: whether the expression evaluated to true
// - leftVal, rightVal: rendered operand values for reporting
// - message: human-readable explanation
func evalExpr(expr RuleExpr, ctx EvalContext) (passed bool, leftVal, rightVal, message string) {
	switch e := expr.(type) {
	case Implication:
		return evalImplication(e, ctx)
	case Comparison:
		return evalComparison(e, ctx)
	default:
		val := resolveValue(expr, ctx)
		passed = truthy(val)
		if !passed {
			message = fmt.Sprintf("'%s' is not set", FormatRule(expr))
		}
		return passed, FormatValue(val), "", message
	}
}

// evalImplication evaluates A => B, which holds when A is false or B is true
func evalImplication(impl Implication, ctx EvalContext) (passed bool, leftVal, rightVal, message string) {
	antPassed, antLeft, _, _ := evalExpr(impl.Antecedent, ctx)
	conPassed, conLeft, _, _ := evalExpr(impl.Consequent, ctx)

	passed = !antPassed || conPassed

	if !passed {
		message = fmt.Sprintf("condition '%s' is true but '%s' is false",
			FormatRule(impl.Antecedent), FormatRule(impl.Consequent))
	}

	return passed, antLeft, conLeft, message
}

// evalComparison evaluates a binary comparison over typed values
func evalComparison(comp Comparison, ctx EvalContext) (passed bool, leftVal, rightVal, message string) {
	left := resolveValue(comp.Left, ctx)
	right := resolveValue(comp.Right, ctx)
	leftVal = FormatValue(left)
	rightVal = FormatValue(right)

	switch comp.Operator {
	case OpEqual:
		passed = equalValues(left, right)
	case OpNotEqual:
		passed = !equalValues(left, right)
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		lf, lok := number(left)
		rf, rok := number(right)
		if !lok || !rok {
			return false, leftVal, rightVal, fmt.Sprintf("cannot order '%s' and '%s'", leftVal, rightVal)
		}
		switch comp.Operator {
		case OpLess:
			passed = lf < rf
		case OpLessEqual:
			passed = lf <= rf
		case OpGreater:
			passed = lf > rf
		case OpGreaterEqual:
			passed = lf >= rf
		}
	case OpContains:
		passed = contains(left, right)
	default:
		return false, leftVal, rightVal, fmt.Sprintf("unknown operator: %s", comp.Operator)
	}

	if !passed {
		message = fmt.Sprintf("'%s' %s '%s' does not hold", leftVal, comp.Operator, rightVal)
	}
	return passed, leftVal, rightVal, message
}

// resolveValue resolves an operand to its typed value; missing keys resolve to nil
func resolveValue(expr RuleExpr, ctx EvalContext) any {
	switch e := expr.(type) {
	case ConfigRef:
		return ctx.Values[e.Path]
	case StringLiteral:
		return e.Value
	case NumberLiteral:
		return e.Value
	case BoolLiteral:
		return e.Value
	case Comparison:
		passed, _, _, _ := evalComparison(e, ctx)
		return passed
	case Implication:
		passed, _, _, _ := evalImplication(e, ctx)
		return passed
	default:
		return nil
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case []string:
		return len(x) > 0
	case []float64:
		return len(x) > 0
	case []any:
		return len(x) > 0
	case map[string]float64:
		return len(x) > 0
	}
	if f, ok := number(v); ok {
		return f != 0
	}
	return true
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	return 0, false
}

func equalValues(a, b any) bool {
	if af, ok := number(a); ok {
		bf, ok := number(b)
		return ok && af == bf
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	}
	return FormatValue(a) == FormatValue(b)
}

func contains(container, elem any) bool {
	switch c := container.(type) {
	case []string:
		for _, s := range c {
			if equalValues(s, elem) {
				return true
			}
		}
	case []float64:
		for _, f := range c {
			if equalValues(f, elem) {
				return true
			}
		}
	case []any:
		for _, x := range c {
			if equalValues(x, elem) {
				return true
			}
		}
	case map[string]float64:
		if key, ok := elem.(string); ok {
			_, found := c[key]
			return found
		}
	case string:
		if sub, ok := elem.(string); ok {
			return strings.Contains(c, sub)
		}
	}
	return false
}

// FormatValue renders a typed value for reports
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "<unset>"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case []string:
		return "[" + strings.Join(x, ", ") + "]"
	case []float64:
		parts := make([]string, len(x))
		for i, f := range x {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]float64:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + strconv.FormatFloat(x[k], 'g', -1, 64)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + FormatValue(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	if f, ok := number(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}
