package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// VarRecord is the CEL variable bound to the record document
const VarRecord = "record"

// CEL compiles Common Expression Language patterns such as
// record.type == "article" && "physics" in record.subjects
type CEL struct {
	env *cel.Env
}

// NewCEL builds the CEL parser environment
func NewCEL() (*CEL, error) {
	env, err := cel.NewEnv(cel.Variable(VarRecord, cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("building CEL env: %w", err)
	}
	return &CEL{env: env}, nil
}

// Name implements Parser
func (*CEL) Name() string { return "cel" }

// Parse implements Parser; the expression must produce a bool
func (c *CEL) Parse(pattern string) (Query, error) {
	ast, issues := c.env.Compile(pattern)
	if issues.Err() != nil {
		return nil, syntaxErr(pattern, issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, syntaxErr(pattern, fmt.Errorf("expression yields %s, want bool", t))
	}
	prg, err := c.env.Program(ast, cel.InterruptCheckFrequency(64))
	if err != nil {
		return nil, syntaxErr(pattern, err)
	}
	return &celQuery{src: pattern, prg: prg}, nil
}

type celQuery struct {
	src string
	prg cel.Program
}

func (q *celQuery) Source() string { return q.src }

// Match treats a path that is absent from the document as a non match,
// the way the Lucene parser does; other evaluation errors are returned
func (q *celQuery) Match(ctx context.Context, doc Document) (bool, error) {
	out, _, err := q.prg.ContextEval(ctx, map[string]any{VarRecord: doc})
	if err != nil {
		if missingKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("evaluating %q: %w", q.src, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("evaluating %q: got %T, want bool", q.src, out.Value())
	}
	return b, nil
}

func missingKey(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such key") || strings.Contains(msg, "no such attribute")
}
