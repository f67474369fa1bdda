package queue

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/haywire/pkg/message"
)

// Filter is a compiled CEL predicate over stored messages. The zero Filter
// matches everything.
//
// Variables: sequence, enqueued_ms, now_ms, size (int); id, correlation_id,
// text (string); headers (map<string,string>); json (the body parsed as
// JSON, or null).
type Filter struct {
	prog cel.Program
}

// CompileFilter parses and type-checks expr. Blank expressions match all.
func CompileFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("sequence", cel.IntType),
		cel.Variable("enqueued_ms", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("id", cel.StringType),
		cel.Variable("correlation_id", cel.StringType),
		cel.Variable("text", cel.StringType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("json", cel.DynType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return Filter{}, errFilterNotBool{expr: expr}
	}
	prog, err := env.Program(ast)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog}, nil
}

type errFilterNotBool struct{ expr string }

func (e errFilterNotBool) Error() string {
	return "filter must evaluate to a bool: " + e.expr
}

// Match evaluates the filter. Evaluation errors count as no match.
func (f Filter) Match(m *message.Message) bool {
	if f.prog == nil {
		return true
	}
	var body any
	if err := json.Unmarshal(m.Body, &body); err != nil {
		body = nil
	}
	headers := m.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	out, _, err := f.prog.Eval(map[string]any{
		"sequence":       int64(m.Sequence),
		"enqueued_ms":    m.EnqueuedAt.UnixMilli(),
		"now_ms":         time.Now().UnixMilli(),
		"size":           int64(len(m.Body)),
		"id":             m.ID,
		"correlation_id": m.CorrelationID,
		"text":           string(m.Body),
		"headers":        headers,
		"json":           body,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
