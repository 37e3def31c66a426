package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"oaiserver/internal/core/normalize"

	"github.com/gobwas/glob"
)

// Lucene parses a compact subset of the Lucene query string syntax:
//
//	title:physics              term on a dotted field path
//	"exact phrase"             phrase on any field
//	creator:Smi*               wildcard (* and ?) on a field
//	a AND b, a OR b, NOT a     boolean operators (also && || !)
//	+must -mustnot should      clause prefixes
//	subject:(math OR physics)  grouped values for one field
//
// Adjacent clauses combine like Lucene's default OR: every + clause must
// match, no - clause may match, and at least one plain clause must match
// when no + clause is present. Matching folds case, accents and width.
type Lucene struct{}

// NewLucene returns the lucene parser
func NewLucene() *Lucene { return &Lucene{} }

// Name implements Parser
func (*Lucene) Name() string { return "lucene" }

// Parse implements Parser
func (*Lucene) Parse(pattern string) (Query, error) {
	toks, err := lex(pattern)
	if err != nil {
		return nil, syntaxErr(pattern, err)
	}
	if len(toks) == 0 {
		return nil, syntaxErr(pattern, fmt.Errorf("empty pattern"))
	}
	p := &parser{toks: toks}
	root, err := p.parseOr("")
	if err == nil && p.pos < len(p.toks) {
		err = fmt.Errorf("unexpected %q at offset %d", p.peek().text, p.peek().off)
	}
	if err != nil {
		return nil, syntaxErr(pattern, err)
	}
	return &luceneQuery{src: pattern, root: root}, nil
}

type luceneQuery struct {
	src  string
	root node
}

func (q *luceneQuery) Source() string { return q.src }

func (q *luceneQuery) Match(ctx context.Context, doc Document) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return q.root.eval(doc), nil
}

type tokKind int

const (
	tWord tokKind = iota
	tPhrase
	tLParen
	tRParen
	tColon
	tAnd
	tOr
	tNot
	tPlus
	tMinus
)

type token struct {
	kind tokKind
	text string
	off  int
}

func lex(s string) ([]token, error) {
	var out []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			out = append(out, token{tLParen, "(", i})
			i++
		case r == ')':
			out = append(out, token{tRParen, ")", i})
			i++
		case r == ':':
			out = append(out, token{tColon, ":", i})
			i++
		case r == '"':
			start := i
			var b strings.Builder
			i++
			closed := false
			for i < len(rs) {
				if rs[i] == '\\' && i+1 < len(rs) {
					b.WriteRune(rs[i+1])
					i += 2
					continue
				}
				if rs[i] == '"' {
					closed = true
					i++
					break
				}
				b.WriteRune(rs[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated phrase at offset %d", start)
			}
			out = append(out, token{tPhrase, b.String(), start})
		case (r == '+' || r == '-' || r == '!') && i+1 < len(rs) && !unicode.IsSpace(rs[i+1]):
			k := map[rune]tokKind{'+': tPlus, '-': tMinus, '!': tNot}[r]
			out = append(out, token{k, string(r), i})
			i++
		default:
			start := i
			var b strings.Builder
			for i < len(rs) && !unicode.IsSpace(rs[i]) && !strings.ContainsRune(`():"`, rs[i]) {
				if rs[i] == '\\' && i+1 < len(rs) {
					b.WriteRune(rs[i+1])
					i += 2
					continue
				}
				b.WriteRune(rs[i])
				i++
			}
			w := b.String()
			switch w {
			case "AND", "&&":
				out = append(out, token{tAnd, w, start})
			case "OR", "||":
				out = append(out, token{tOr, w, start})
			case "NOT":
				out = append(out, token{tNot, w, start})
			default:
				out = append(out, token{tWord, w, start})
			}
		}
	}
	return out, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return token{kind: -1, off: -1}
}

func (p *parser) at(k tokKind) bool { return p.pos < len(p.toks) && p.toks[p.pos].kind == k }

func (p *parser) parseOr(field string) (node, error) {
	left, err := p.parseAnd(field)
	if err != nil {
		return nil, err
	}
	nodes := []node{left}
	for p.at(tOr) {
		p.pos++
		n, err := p.parseAnd(field)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 1 {
		return left, nil
	}
	return orNode(nodes), nil
}

func (p *parser) parseAnd(field string) (node, error) {
	left, err := p.parseClauses(field)
	if err != nil {
		return nil, err
	}
	nodes := []node{left}
	for p.at(tAnd) {
		p.pos++
		n, err := p.parseClauses(field)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 1 {
		return left, nil
	}
	return andNode(nodes), nil
}

func (p *parser) parseClauses(field string) (node, error) {
	var b boolNode
	for p.pos < len(p.toks) && !p.at(tOr) && !p.at(tAnd) && !p.at(tRParen) {
		occur := occurShould
		switch {
		case p.at(tPlus):
			occur = occurMust
			p.pos++
		case p.at(tMinus), p.at(tNot):
			occur = occurMustNot
			p.pos++
		}
		n, err := p.parsePrimary(field)
		if err != nil {
			return nil, err
		}
		switch occur {
		case occurMust:
			b.must = append(b.must, n)
		case occurMustNot:
			b.mustNot = append(b.mustNot, n)
		default:
			b.should = append(b.should, n)
		}
	}
	total := len(b.must) + len(b.mustNot) + len(b.should)
	if total == 0 {
		return nil, fmt.Errorf("expected a term at offset %d", p.peek().off)
	}
	if total == 1 && len(b.should) == 1 {
		return b.should[0], nil
	}
	return b, nil
}

func (p *parser) parsePrimary(field string) (node, error) {
	t := p.peek()
	switch t.kind {
	case tLParen:
		p.pos++
		n, err := p.parseOr(field)
		if err != nil {
			return nil, err
		}
		if !p.at(tRParen) {
			return nil, fmt.Errorf("missing ) for ( at offset %d", t.off)
		}
		p.pos++
		return n, nil
	case tPhrase:
		p.pos++
		return newPhrase(field, t.text), nil
	case tWord:
		p.pos++
		if p.at(tColon) {
			if field != "" {
				return nil, fmt.Errorf("nested field %q at offset %d", t.text, t.off)
			}
			p.pos++
			return p.parsePrimary(t.text)
		}
		return newTerm(field, t.text)
	default:
		if t.off < 0 {
			return nil, fmt.Errorf("unexpected end of pattern")
		}
		return nil, fmt.Errorf("unexpected %q at offset %d", t.text, t.off)
	}
}

type node interface {
	eval(doc Document) bool
}

type andNode []node

func (n andNode) eval(doc Document) bool {
	for _, c := range n {
		if !c.eval(doc) {
			return false
		}
	}
	return true
}

type orNode []node

func (n orNode) eval(doc Document) bool {
	for _, c := range n {
		if c.eval(doc) {
			return true
		}
	}
	return false
}

type occur int

const (
	occurShould occur = iota
	occurMust
	occurMustNot
)

type boolNode struct {
	must, mustNot, should []node
}

func (n boolNode) eval(doc Document) bool {
	for _, c := range n.mustNot {
		if c.eval(doc) {
			return false
		}
	}
	for _, c := range n.must {
		if !c.eval(doc) {
			return false
		}
	}
	if len(n.must) > 0 || len(n.should) == 0 {
		return true
	}
	for _, c := range n.should {
		if c.eval(doc) {
			return true
		}
	}
	return false
}

// termNode matches one word, wildcard or phrase against a field's values
type termNode struct {
	field  string
	words  []string
	phrase bool
	g      glob.Glob
}

func newTerm(field, text string) (node, error) {
	if strings.ContainsAny(text, "*?") {
		g, err := glob.Compile(normalize.Fold(text))
		if err != nil {
			return nil, fmt.Errorf("bad wildcard %q: %w", text, err)
		}
		return &termNode{field: field, g: g}, nil
	}
	words := tokenize(normalize.Fold(text))
	if len(words) == 0 {
		return nil, fmt.Errorf("term %q has no searchable characters", text)
	}
	return &termNode{field: field, words: words, phrase: len(words) > 1}, nil
}

func newPhrase(field, text string) node {
	return &termNode{field: field, words: tokenize(normalize.Fold(text)), phrase: true}
}

func (n *termNode) eval(doc Document) bool {
	for _, v := range Lookup(doc, n.field) {
		if n.matchValue(normalize.Fold(stringify(v))) {
			return true
		}
	}
	return false
}

func (n *termNode) matchValue(v string) bool {
	toks := tokenize(v)
	if n.g != nil {
		if n.g.Match(v) {
			return true
		}
		for _, t := range toks {
			if n.g.Match(t) {
				return true
			}
		}
		return false
	}
	if len(n.words) == 0 {
		return v == ""
	}
	if !n.phrase {
		for _, t := range toks {
			if t == n.words[0] {
				return true
			}
		}
		return false
	}
	for i := 0; i+len(n.words) <= len(toks); i++ {
		ok := true
		for j, w := range n.words {
			if toks[i+j] != w {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
