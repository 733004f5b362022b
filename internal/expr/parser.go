package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tessera-io/tessera/model"
)

// Parse compiles an expression source string into its AST. A parse failure
// names the offending position and token.
func Parse(src string) (Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, p.errorf("unexpected %q after expression", p.peek().text)
	}
	return node, nil
}

// MustParse is Parse for expressions known valid at compile time. For tests.
func MustParse(src string) Node {
	n, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return n
}

type tokKind int

const (
	tokIdent tokKind = iota
	tokNumber
	tokString
	tokOp    // == != < <= > >= && || ! + - . ( ) ,
	tokEOF
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'':
			end := strings.IndexByte(src[i+1:], '\'')
			if end < 0 {
				return nil, fmt.Errorf("expr: unterminated string at offset %d in %q", i, src)
			}
			toks = append(toks, token{tokString, src[i+1 : i+1+end], i})
			i += end + 2
		case c >= '0' && c <= '9':
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j], i})
			i = j
		case isIdentStart(c):
			j := i
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, src[i:j], i})
			i = j
		default:
			// Two-character operators first.
			if i+1 < len(src) {
				two := src[i : i+2]
				switch two {
				case "==", "!=", "<=", ">=", "&&", "||":
					toks = append(toks, token{tokOp, two, i})
					i += 2
					continue
				}
			}
			switch c {
			case '<', '>', '!', '+', '-', '.', '(', ')', ',':
				toks = append(toks, token{tokOp, string(c), i})
				i++
			default:
				return nil, fmt.Errorf("expr: unexpected character %q at offset %d in %q", c, i, src)
			}
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }
func (p *parser) atEnd() bool { return p.peek().kind == tokEOF }

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("expr: %s at offset %d in %q",
		fmt.Sprintf(format, args...), p.peek().pos, p.src)
}

func (p *parser) acceptOp(op string) bool {
	if t := p.peek(); t.kind == tokOp && t.text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectOp(op string) error {
	if !p.acceptOp(op) {
		return p.errorf("expected %q, got %q", op, p.peek().text)
	}
	return nil
}

// parseOr := and ( "||" and )*
func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptOp("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "||", L: left, R: right}
	}
	return left, nil
}

// parseAnd := comparison ( "&&" comparison )*
func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.acceptOp("&&") {
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "&&", L: left, R: right}
	}
	return left, nil
}

// parseComparison := additive ( cmpOp additive )?
func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokOp {
		switch t.text {
		case "==", "!=", "<", "<=", ">", ">=":
			p.next()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &Binary{Op: t.text, L: left, R: right}, nil
		}
	}
	return left, nil
}

// parseAdditive := unary ( ("+"|"-") unary )*
func (p *parser) parseAdditive() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.text, L: left, R: right}
	}
}

// parseUnary := ("!"|"-") unary | primary
func (p *parser) parseUnary() (Node, error) {
	if p.acceptOp("!") {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "!", X: x}, nil
	}
	if p.acceptOp("-") {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "-", X: x}, nil
	}
	return p.parsePrimary()
}

// parsePrimary := literal | ref | has_role "(" string ")" | "(" expr ")"
func (p *parser) parsePrimary() (Node, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.next()
		return &Literal{Value: model.String(t.text)}, nil
	case tokNumber:
		p.next()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", t.text)
		}
		return &Literal{Value: model.Number(f)}, nil
	case tokIdent:
		switch t.text {
		case "true":
			p.next()
			return &Literal{Value: model.Bool(true)}, nil
		case "false":
			p.next()
			return &Literal{Value: model.Bool(false)}, nil
		case "null":
			p.next()
			return &Literal{Value: model.Null()}, nil
		case "has_role":
			p.next()
			return p.parseHasRole()
		case SourceProperty, SourceUser, SourceEvent:
			return p.parseRef()
		default:
			return nil, p.errorf("unknown identifier %q (sources are property, user, event)", t.text)
		}
	case tokOp:
		if t.text == "(" {
			p.next()
			inner, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
	}
	return nil, p.errorf("unexpected %q", t.text)
}

func (p *parser) parseHasRole() (Node, error) {
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	arg := p.peek()
	if arg.kind != tokString {
		return nil, p.errorf("has_role expects a quoted role name, got %q", arg.text)
	}
	p.next()
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return &HasRole{Role: arg.text}, nil
}

func (p *parser) parseRef() (Node, error) {
	source := p.next().text
	var path []string
	for p.acceptOp(".") {
		seg := p.peek()
		if seg.kind != tokIdent {
			return nil, p.errorf("expected identifier after '.', got %q", seg.text)
		}
		p.next()
		path = append(path, seg.text)
	}
	if len(path) == 0 {
		return nil, p.errorf("%s reference needs a path, e.g. %s.name", source, source)
	}
	return &Ref{Source: source, Path: path}, nil
}
