// Package rules implements the declarative cross-field dependency rules
// evaluated after per-key validation.
package rules

// RuleExpr represents a parsed rule expression in the AST
type RuleExpr interface {
	isRuleExpr()
}

// CompOp represents a comparison operator
type CompOp string

const (
	OpEqual        CompOp = "=="
	OpNotEqual     CompOp = "!="
	OpLess         CompOp = "<"
	OpLessEqual    CompOp = "<="
	OpGreater      CompOp = ">"
	OpGreaterEqual CompOp = ">="
	OpContains     CompOp = "contains"
)

// Implication represents an implication expression: A => B (if A then B)
// The implication is true if the antecedent is false OR the consequent is true
type Implication struct {
	Antecedent RuleExpr // Left side (condition)
	Consequent RuleExpr // Right side (must be true if condition is true)
}

func (Implication) isRuleExpr() {}

// Comparison represents a binary comparison such as A == B or A contains B
type Comparison struct {
	Left     RuleExpr
	Right    RuleExpr
	Operator CompOp
}

func (Comparison) isRuleExpr() {}

// ConfigRef represents a reference to a config value using dot notation (e.g., "max_hours.H2")
type ConfigRef struct {
	Path string
}

func (ConfigRef) isRuleExpr() {}

// StringLiteral represents a quoted string value (e.g., "H2")
type StringLiteral struct {
	Value string
}

func (StringLiteral) isRuleExpr() {}

// NumberLiteral represents a numeric value (e.g., 0, 0.5)
type NumberLiteral struct {
	Value float64
}

func (NumberLiteral) isRuleExpr() {}

// BoolLiteral represents true or false
type BoolLiteral struct {
	Value bool
}

func (BoolLiteral) isRuleExpr() {}

// Rule represents a named dependency rule
type Rule struct {
	Name    string   // Unique identifier (e.g., "h2-pipeline-needs-h2-store")
	Rule    string   // Original rule string
	Message string   // Optional explanation shown on violation
	Expr    RuleExpr // Parsed expression
}

// Result represents the evaluation result of a rule
type Result struct {
	Name       string // Rule name
	Rule       string // Original rule expression
	Key        string // First config key the rule references
	Passed     bool   // Whether the rule held
	LeftValue  string // Evaluated left operand value
	RightValue string // Evaluated right operand value
	Message    string // Human-readable explanation
}
