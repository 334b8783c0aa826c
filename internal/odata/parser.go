package odata

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// ErrUnknownField is returned when a filter references a field outside the
// allowed set.
var ErrUnknownField = errors.New("unknown field")

// ---------------------------------------------------------------------------
// Expression tree
// ---------------------------------------------------------------------------

// Op is an expression operator.
type Op string

const (
	OpAnd        Op = "and"
	OpOr         Op = "or"
	OpNot        Op = "not"
	OpEq         Op = "eq"
	OpNe         Op = "ne"
	OpGt         Op = "gt"
	OpGe         Op = "ge"
	OpLt         Op = "lt"
	OpLe         Op = "le"
	OpIn         Op = "in"
	OpContains   Op = "contains"
	OpStartsWith Op = "startswith"
	OpEndsWith   Op = "endswith"
)

var sqlComparison = map[Op]string{
	OpEq: "=", OpNe: "<>", OpGt: ">", OpGe: ">=", OpLt: "<", OpLe: "<=",
}

var stringFunctions = map[string]Op{
	"contains":   OpContains,
	"startswith": OpStartsWith,
	"endswith":   OpEndsWith,
}

// Expr is one node of a parsed filter. Logical nodes (and, or, not) carry
// Args; comparisons carry Field and Value; "in" carries Field and Values.
// Literal values are string, int64, float64, bool or nil.
type Expr struct {
	Op     Op
	Field  string
	Value  any
	Values []any
	Args   []*Expr
}

// Fields returns the distinct field names referenced by e, in order of
// first appearance.
func (e *Expr) Fields() []string {
	var out []string
	var walk func(*Expr)
	walk = func(n *Expr) {
		if n == nil {
			return
		}
		if n.Field != "" && !slices.Contains(out, n.Field) {
			out = append(out, n.Field)
		}
		for _, a := range n.Args {
			walk(a)
		}
	}
	walk(e)
	return out
}

// String renders e back into canonical OData syntax.
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	switch e.Op {
	case OpAnd, OpOr:
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			s := a.String()
			if a.Op == OpAnd || a.Op == OpOr {
				s = "(" + s + ")"
			}
			parts[i] = s
		}
		return strings.Join(parts, " "+string(e.Op)+" ")
	case OpNot:
		return "not (" + e.Args[0].String() + ")"
	case OpIn:
		vals := make([]string, len(e.Values))
		for i, v := range e.Values {
			vals[i] = Literal(v)
		}
		return e.Field + " in (" + strings.Join(vals, ",") + ")"
	case OpContains, OpStartsWith, OpEndsWith:
		return string(e.Op) + "(" + e.Field + "," + Literal(e.Value) + ")"
	default:
		return e.Field + " " + string(e.Op) + " " + Literal(e.Value)
	}
}

// SQL renders e as a parameterized WHERE fragment with "?" placeholders and
// double-quoted column names. Every referenced field must be in allowed.
func (e *Expr) SQL(allowed []string) (string, []any, error) {
	if e == nil {
		return "", nil, nil
	}
	var args []any
	sql, err := e.sql(allowed, &args)
	if err != nil {
		return "", nil, err
	}
	return sql, args, nil
}

func (e *Expr) sql(allowed []string, args *[]any) (string, error) {
	switch e.Op {
	case OpAnd, OpOr:
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			s, err := a.sql(allowed, args)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, " "+strings.ToUpper(string(e.Op))+" ") + ")", nil
	case OpNot:
		s, err := e.Args[0].sql(allowed, args)
		if err != nil {
			return "", err
		}
		return "NOT (" + s + ")", nil
	}

	if !slices.Contains(allowed, e.Field) {
		return "", fmt.Errorf("%w %q", ErrUnknownField, e.Field)
	}
	col := QuoteColumn(e.Field)

	switch e.Op {
	case OpIn:
		phs := make([]string, len(e.Values))
		for i, v := range e.Values {
			phs[i] = "?"
			*args = append(*args, sqlValue(v))
		}
		return col + " IN (" + strings.Join(phs, ", ") + ")", nil
	case OpContains, OpStartsWith, OpEndsWith:
		s, ok := e.Value.(string)
		if !ok {
			return "", fmt.Errorf("%s requires a string value, got %T", e.Op, e.Value)
		}
		pattern := escapeLike(s)
		switch e.Op {
		case OpContains:
			pattern = "%" + pattern + "%"
		case OpStartsWith:
			pattern = pattern + "%"
		case OpEndsWith:
			pattern = "%" + pattern
		}
		*args = append(*args, pattern)
		return col + ` LIKE ? ESCAPE '\'`, nil
	}

	op, ok := sqlComparison[e.Op]
	if !ok {
		return "", fmt.Errorf("unsupported operator %q", e.Op)
	}
	if e.Value == nil {
		switch e.Op {
		case OpEq:
			return col + " IS NULL", nil
		case OpNe:
			return col + " IS NOT NULL", nil
		default:
			return "", fmt.Errorf("null cannot be compared with %s", e.Op)
		}
	}
	*args = append(*args, sqlValue(e.Value))
	return col + " " + op + " ?", nil
}

// QuoteColumn returns a double-quoted identifier.
func QuoteColumn(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ---------------------------------------------------------------------------
// Public API
// ---------------------------------------------------------------------------

// Parse parses an OData $filter expression. Supported: eq ne gt ge lt le,
// and or not, parentheses, "field in (v1,v2)", contains/startswith/endswith
// function calls, and literals ('text' with '' escaping, numbers, unquoted
// ISO dates, true, false, null). A bare word on the right-hand side of a
// comparison is read as a string, so "status ne CANCL" is accepted.
//
// Returns nil, nil for an empty filter.
func Parse(filter string) (*Expr, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil, nil
	}

	tokens, err := tokenize(filter)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	p := &parser{tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, fmt.Errorf("unexpected token %q at position %d", p.tokens[p.pos].value, p.tokens[p.pos].pos)
	}
	return expr, nil
}

// Validate parses filter and checks every referenced field against allowed.
func Validate(filter string, allowed []string) error {
	expr, err := Parse(filter)
	if err != nil {
		return err
	}
	for _, f := range expr.Fields() {
		if !slices.Contains(allowed, f) {
			return fmt.Errorf("%w %q", ErrUnknownField, f)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Tokenizer
// ---------------------------------------------------------------------------

type tokenType int

const (
	tokIdentifier tokenType = iota
	tokNumber
	tokString
	tokDate
	tokLParen
	tokRParen
	tokComma
	// Keywords.
	tokAND
	tokOR
	tokNOT
	tokIN
	tokCompare
	tokTRUE
	tokFALSE
	tokNULL
)

type token struct {
	typ   tokenType
	value string // keywords lowercased
	pos   int
}

var keywords = map[string]tokenType{
	"and":   tokAND,
	"or":    tokOR,
	"not":   tokNOT,
	"in":    tokIN,
	"eq":    tokCompare,
	"ne":    tokCompare,
	"gt":    tokCompare,
	"ge":    tokCompare,
	"lt":    tokCompare,
	"le":    tokCompare,
	"true":  tokTRUE,
	"false": tokFALSE,
	"null":  tokNULL,
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0
	n := len(input)

	for i < n {
		if unicode.IsSpace(rune(input[i])) {
			i++
			continue
		}

		ch := input[i]

		switch ch {
		case '(':
			tokens = append(tokens, token{typ: tokLParen, value: "(", pos: i})
			i++
			continue
		case ')':
			tokens = append(tokens, token{typ: tokRParen, value: ")", pos: i})
			i++
			continue
		case ',':
			tokens = append(tokens, token{typ: tokComma, value: ",", pos: i})
			i++
			continue
		}

		// String literal with '' escaping.
		if ch == '\'' {
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < n {
				if input[i] == '\'' {
					if i+1 < n && input[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(input[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string literal starting at position %d", start)
			}
			tokens = append(tokens, token{typ: tokString, value: sb.String(), pos: start})
			continue
		}

		// Numbers, negative numbers and unquoted ISO dates (2024-05-01,
		// 2024-05-01T08:00:00Z).
		if isDigit(ch) || (ch == '-' && i+1 < n && isDigit(input[i+1])) {
			start := i
			i++
			for i < n && isDigit(input[i]) {
				i++
			}
			if ch != '-' && i+1 < n && input[i] == '-' && isDigit(input[i+1]) {
				for i < n && (isDigit(input[i]) || strings.IndexByte("-:T.Z+", input[i]) >= 0) {
					i++
				}
				tokens = append(tokens, token{typ: tokDate, value: input[start:i], pos: start})
				continue
			}
			if i < n && input[i] == '.' {
				i++
				if i >= n || !isDigit(input[i]) {
					return nil, fmt.Errorf("invalid number at position %d: trailing decimal point", start)
				}
				for i < n && isDigit(input[i]) {
					i++
				}
			}
			tokens = append(tokens, token{typ: tokNumber, value: input[start:i], pos: start})
			continue
		}

		if isIdentStart(ch) {
			start := i
			for i < n && (isIdentStart(input[i]) || isDigit(input[i])) {
				i++
			}
			word := input[start:i]
			lower := strings.ToLower(word)
			if kt, ok := keywords[lower]; ok {
				tokens = append(tokens, token{typ: kt, value: lower, pos: start})
			} else {
				tokens = append(tokens, token{typ: tokIdentifier, value: word, pos: start})
			}
			continue
		}

		return nil, fmt.Errorf("unexpected character %q at position %d", string(ch), i)
	}

	return tokens, nil
}

// ---------------------------------------------------------------------------
// Parser (recursive descent)
// ---------------------------------------------------------------------------

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() *token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *parser) peekAt(offset int) *token {
	if p.pos+offset >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos+offset]
}

func (p *parser) advance() *token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	t := &p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) expect(typ tokenType) (*token, error) {
	t := p.advance()
	if t == nil {
		return nil, fmt.Errorf("unexpected end of filter, expected %v", tokenTypeName(typ))
	}
	if t.typ != typ {
		return nil, fmt.Errorf("expected %v but got %q at position %d", tokenTypeName(typ), t.value, t.pos)
	}
	return t, nil
}

// parseOr: or_expr → and_expr ( "or" and_expr )*
func (p *parser) parseOr() (*Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	args := []*Expr{left}
	for {
		t := p.peek()
		if t == nil || t.typ != tokOR {
			break
		}
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		args = append(args, right)
	}
	if len(args) == 1 {
		return left, nil
	}
	return &Expr{Op: OpOr, Args: args}, nil
}

// parseAnd: and_expr → not_expr ( "and" not_expr )*
func (p *parser) parseAnd() (*Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	args := []*Expr{left}
	for {
		t := p.peek()
		if t == nil || t.typ != tokAND {
			break
		}
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		args = append(args, right)
	}
	if len(args) == 1 {
		return left, nil
	}
	return &Expr{Op: OpAnd, Args: args}, nil
}

// parseNot: not_expr → "not" not_expr | primary
func (p *parser) parseNot() (*Expr, error) {
	t := p.peek()
	if t != nil && t.typ == tokNOT {
		p.advance()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Expr{Op: OpNot, Args: []*Expr{inner}}, nil
	}
	return p.parsePrimary()
}

// parsePrimary: "(" or_expr ")" | function | comparison
func (p *parser) parsePrimary() (*Expr, error) {
	t := p.peek()
	if t == nil {
		return nil, fmt.Errorf("unexpected end of filter expression")
	}

	if t.typ == tokLParen {
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	}

	if t.typ == tokIdentifier {
		if op, ok := stringFunctions[strings.ToLower(t.value)]; ok {
			if next := p.peekAt(1); next != nil && next.typ == tokLParen {
				return p.parseFunction(op)
			}
		}
	}

	return p.parseComparison()
}

// parseFunction: name "(" field "," 'value' ")"
func (p *parser) parseFunction(op Op) (*Expr, error) {
	p.advance() // name
	p.advance() // (

	field, err := p.parseField()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := p.expect(tokComma); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	val, err := p.parseValue()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, ok := val.(string); !ok {
		return nil, fmt.Errorf("%s requires a string value, got %T", op, val)
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Expr{Op: op, Field: field, Value: val}, nil
}

// parseComparison: field cmp value | field "in" "(" value ("," value)* ")"
func (p *parser) parseComparison() (*Expr, error) {
	field, err := p.parseField()
	if err != nil {
		return nil, err
	}

	opTok := p.peek()
	if opTok == nil {
		return nil, fmt.Errorf("unexpected end of filter after field %q", field)
	}

	switch opTok.typ {
	case tokCompare:
		p.advance()
		val, err := p.parseValue()
		if err != nil {
			return nil, fmt.Errorf("expected value after %s %s: %w", field, opTok.value, err)
		}
		return &Expr{Op: Op(opTok.value), Field: field, Value: val}, nil

	case tokIN:
		p.advance()
		if _, err := p.expect(tokLParen); err != nil {
			return nil, fmt.Errorf("expected '(' after %s in: %w", field, err)
		}
		var values []any
		for {
			val, err := p.parseValue()
			if err != nil {
				return nil, fmt.Errorf("expected value in %s in list: %w", field, err)
			}
			values = append(values, val)

			next := p.peek()
			if next == nil {
				return nil, fmt.Errorf("unexpected end of filter in %s in list", field)
			}
			if next.typ == tokComma {
				p.advance()
				continue
			}
			if next.typ == tokRParen {
				p.advance()
				break
			}
			return nil, fmt.Errorf("expected ',' or ')' in %s in list, got %q", field, next.value)
		}
		return &Expr{Op: OpIn, Field: field, Values: values}, nil

	default:
		return nil, fmt.Errorf("unexpected token %q after field %q at position %d", opTok.value, field, opTok.pos)
	}
}

func (p *parser) parseField() (string, error) {
	t, err := p.expect(tokIdentifier)
	if err != nil {
		return "", fmt.Errorf("expected field name: %w", err)
	}
	if err := ValidateIdentifier(t.value); err != nil {
		return "", fmt.Errorf("invalid field name: %w", err)
	}
	return t.value, nil
}

// parseValue consumes one literal.
func (p *parser) parseValue() (any, error) {
	t := p.advance()
	if t == nil {
		return nil, fmt.Errorf("unexpected end of filter, expected a value")
	}

	switch t.typ {
	case tokString, tokDate, tokIdentifier:
		return t.value, nil
	case tokNumber:
		return parseNumber(t.value)
	case tokTRUE:
		return true, nil
	case tokFALSE:
		return false, nil
	case tokNULL:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected a value, got %q at position %d", t.value, t.pos)
	}
}

func parseNumber(s string) (any, error) {
	if !strings.Contains(s, ".") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, nil
}

func tokenTypeName(t tokenType) string {
	switch t {
	case tokIdentifier:
		return "identifier"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokDate:
		return "date"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	case tokAND:
		return "and"
	case tokOR:
		return "or"
	case tokNOT:
		return "not"
	case tokIN:
		return "in"
	case tokCompare:
		return "comparison operator"
	case tokTRUE, tokFALSE:
		return "boolean"
	case tokNULL:
		return "null"
	default:
		return fmt.Sprintf("token(%d)", t)
	}
}
