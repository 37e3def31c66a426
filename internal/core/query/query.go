// Package query compiles set search patterns and evaluates them against
// record documents
//
// Parsers are registered by name and picked once at startup. Two ship with
// the server: "lucene", a small field:value language, and "cel", Common
// Expression Language over a record variable.
package query

import (
	"context"
	stderrs "errors"
	"slices"
	"sort"
	"time"

	perr "oaiserver/internal/platform/errors"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// FieldPattern is the field name pattern errors are reported against
const FieldPattern = "search_pattern"

// Document is decoded record content
type Document = map[string]any

// Query is a compiled search pattern
type Query interface {
	Source() string
	Match(ctx context.Context, doc Document) (bool, error)
}

// Parser compiles patterns; syntax errors are validation errors on FieldPattern
type Parser interface {
	Name() string
	Parse(pattern string) (Query, error)
}

// Matcher decides a single document against a query
type Matcher interface {
	Matches(ctx context.Context, doc Document, q Query) (bool, error)
}

// Searcher returns ids of every stored record a query selects
type Searcher interface {
	Search(ctx context.Context, q Query) ([]int64, error)
}

// InProcess is the Matcher that evaluates compiled queries directly
type InProcess struct{}

// Matches implements Matcher
func (InProcess) Matches(ctx context.Context, doc Document, q Query) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, Transient(err)
	}
	ok, err := q.Match(ctx, doc)
	if err != nil && ctx.Err() != nil {
		return false, Transient(err)
	}
	return ok, err
}

// Transient marks err as a retryable capability failure
func Transient(err error) error {
	if err == nil || perr.IsCode(err, perr.ErrorCodeUnavailable) {
		return err
	}
	if stderrs.Is(err, context.DeadlineExceeded) {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "search timed out")
	}
	return perr.Wrap(err, perr.ErrorCodeUnavailable, "search unavailable")
}

// Registry maps parser names to parsers
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry registers ps; later duplicates replace earlier ones
func NewRegistry(ps ...Parser) *Registry {
	r := &Registry{parsers: make(map[string]Parser, len(ps))}
	for _, p := range ps {
		r.parsers[p.Name()] = p
	}
	return r
}

// Default returns a registry with the built-in parsers
func Default() (*Registry, error) {
	c, err := NewCEL()
	if err != nil {
		return nil, err
	}
	return NewRegistry(NewLucene(), c), nil
}

// Get resolves a parser by name
func (r *Registry) Get(name string) (Parser, error) {
	if p, ok := r.parsers[name]; ok {
		return p, nil
	}
	return nil, perr.InvalidArgf("unknown query parser %q (have %v)", name, r.Names())
}

// Names lists registered parser names, sorted
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.parsers))
	for n := range r.parsers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// memo caches compiled queries by source text
type memo struct {
	Parser
	lru *expirable.LRU[string, Query]
}

// Memo wraps p so repeated patterns compile once; failures are not cached
func Memo(p Parser, size int, ttl time.Duration) Parser {
	if size <= 0 {
		return p
	}
	return &memo{Parser: p, lru: expirable.NewLRU[string, Query](size, nil, ttl)}
}

func (m *memo) Parse(pattern string) (Query, error) {
	if q, ok := m.lru.Get(pattern); ok {
		return q, nil
	}
	q, err := m.Parser.Parse(pattern)
	if err != nil {
		return nil, err
	}
	m.lru.Add(pattern, q)
	return q, nil
}

func syntaxErr(pattern string, err error) error {
	return perr.WithField(perr.Wrapf(err, perr.ErrorCodeValidation, "invalid search pattern %q", pattern), FieldPattern)
}

// Lookup returns every leaf value stored under a dotted path; an empty
// path returns every leaf in doc
func Lookup(doc Document, path string) []any {
	if path == "" {
		return appendLeaves(nil, doc)
	}
	var cur []any = []any{doc}
	for _, seg := range splitPath(path) {
		var next []any
		for _, c := range cur {
			next = appendChild(next, c, seg)
		}
		if len(next) == 0 {
			return nil
		}
		cur = next
	}
	var leaves []any
	for _, c := range cur {
		leaves = appendLeaves(leaves, c)
	}
	return leaves
}

func appendChild(dst []any, v any, seg string) []any {
	switch t := v.(type) {
	case map[string]any:
		if c, ok := t[seg]; ok {
			dst = append(dst, c)
		}
	case []any:
		for _, e := range t {
			dst = appendChild(dst, e, seg)
		}
	}
	return dst
}

func appendLeaves(dst []any, v any) []any {
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			dst = appendLeaves(dst, e)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			dst = appendLeaves(dst, t[k])
		}
	default:
		dst = append(dst, t)
	}
	return dst
}

func splitPath(p string) []string {
	var out []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '.' {
			out = append(out, p[start:i])
			start = i + 1
		}
	}
	return append(out, p[start:])
}
