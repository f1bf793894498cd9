package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// parser is a recursive-descent parser over a token slice.
//
//	rule       = comparison [ "=>" comparison ]
//	comparison = operand [ op operand ]
//	operand    = string | number | "true" | "false" | ref
//	ref        = ident { "." ident }
type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) next() token {
	tok := p.toks[p.i]
	if tok.kind != tokEnd {
		p.i++
	}
	return tok
}

// ParseRule parses a rule expression string into an AST.
// configKeys is used to validate that all config references exist; nil skips the check.
func ParseRule(rule string, configKeys []string) (RuleExpr, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return nil, fmt.Errorf("empty rule expression")
	}

	toks, err := tokenize(rule)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}

	expr, err := p.rule()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEnd {
		return nil, fmt.Errorf("unexpected token '%s' at position %d", tok.text, tok.pos)
	}

	if configKeys != nil {
		if err := ValidateRuleRefs(expr, configKeys); err != nil {
			return nil, err
		}
	}
	return expr, nil
}

func (p *parser) rule() (RuleExpr, error) {
	antecedent, err := p.comparison()
	if err != nil || p.peek().kind != tokImply {
		return antecedent, err
	}
	p.next()

	consequent, err := p.comparison()
	if err != nil {
		return nil, err
	}
	return Implication{Antecedent: antecedent, Consequent: consequent}, nil
}

func (p *parser) comparison() (RuleExpr, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	var op CompOp
	switch {
	case tok.kind == tokOp:
		op = CompOp(tok.text)
	case tok.kind == tokIdent && tok.text == string(OpContains):
		op = OpContains
	default:
		return left, nil
	}
	p.next()

	right, err := p.operand()
	if err != nil {
		return nil, err
	}
	return Comparison{Left: left, Right: right, Operator: op}, nil
}

func (p *parser) operand() (RuleExpr, error) {
	tok := p.next()
	switch tok.kind {
	case tokString:
		return StringLiteral{Value: tok.text}, nil
	case tokNumber:
		f, _ := strconv.ParseFloat(tok.text, 64)
		return NumberLiteral{Value: f}, nil
	case tokIdent:
		switch tok.text {
		case "true", "false":
			return BoolLiteral{Value: tok.text == "true"}, nil
		case string(OpContains):
			return nil, fmt.Errorf("expected operand at position %d, got 'contains'", tok.pos)
		}
		return p.ref(tok)
	case tokEnd:
		return nil, fmt.Errorf("expected operand at end of rule")
	}
	return nil, fmt.Errorf("expected operand at position %d, got '%s'", tok.pos, tok.text)
}

// ref continues a dotted config reference whose first segment is first
func (p *parser) ref(first token) (RuleExpr, error) {
	parts := []string{first.text}
	for p.peek().kind == tokDot {
		p.next()
		seg := p.next()
		if seg.kind != tokIdent {
			return nil, fmt.Errorf("expected identifier after '.' at position %d, got '%s'", seg.pos, seg.text)
		}
		parts = append(parts, seg.text)
	}
	return ConfigRef{Path: strings.Join(parts, ".")}, nil
}

// FormatRule formats a RuleExpr back to a string representation
func FormatRule(expr RuleExpr) string {
	switch e := expr.(type) {
	case Implication:
		return fmt.Sprintf("%s => %s", FormatRule(e.Antecedent), FormatRule(e.Consequent))
	case Comparison:
		return fmt.Sprintf("%s %s %s", FormatRule(e.Left), e.Operator, FormatRule(e.Right))
	case ConfigRef:
		return e.Path
	case StringLiteral:
		return fmt.Sprintf(`"%s"`, e.Value)
	case NumberLiteral:
		return strconv.FormatFloat(e.Value, 'g', -1, 64)
	case BoolLiteral:
		return strconv.FormatBool(e.Value)
	default:
		return "<unknown>"
	}
}

// ValidateRuleRefs validates that all config references in the expression exist in the schema
func ValidateRuleRefs(expr RuleExpr, configKeys []string) error {
	keySet := make(map[string]bool, len(configKeys))
	for _, k := range configKeys {
		keySet[k] = true
	}

	var undefined []string
	for _, ref := range Refs(expr) {
		if !keySet[ref] {
			undefined = append(undefined, ref)
		}
	}

	if len(undefined) > 0 {
		return fmt.Errorf("undefined config key(s): %s", strings.Join(undefined, ", "))
	}

	return nil
}

// Refs walks the AST and collects config reference paths in source order
func Refs(expr RuleExpr) []string {
	var refs []string

	switch e := expr.(type) {
	case Implication:
		refs = append(refs, Refs(e.Antecedent)...)
		refs = append(refs, Refs(e.Consequent)...)
	case Comparison:
		refs = append(refs, Refs(e.Left)...)
		refs = append(refs, Refs(e.Right)...)
	case ConfigRef:
		refs = append(refs, e.Path)
	}

	return refs
}
