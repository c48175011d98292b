// Package filter matches document values against jq expressions.
package filter

import (
	"context"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
)

// ErrEmptyExpression is returned by Compile for a blank expression.
var ErrEmptyExpression = errors.New("filter: expression is empty")

// Predicate is a compiled jq expression. It is safe for concurrent use.
type Predicate struct {
	expr string
	code *gojq.Code
}

// Compile parses and compiles expr.
func Compile(expr string) (*Predicate, error) {
	if expr == "" {
		return nil, ErrEmptyExpression
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("filter: invalid jq expression %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("filter: compile %q: %w", expr, err)
	}
	return &Predicate{expr: expr, code: code}, nil
}

// String returns the source expression.
func (p *Predicate) String() string {
	return p.expr
}

// Match runs the expression on value and reports whether its first output
// is truthy, i.e. neither false nor null. An expression that produces no
// output does not match.
func (p *Predicate) Match(ctx context.Context, value any) (bool, error) {
	iter := p.code.RunWithContext(ctx, normalize(value))
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, ok := v.(error); ok {
		return false, fmt.Errorf("filter: %s: %w", p.expr, err)
	}
	return truthy(v), nil
}

func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	}
	return true
}

// normalize converts decoded YAML into the value shapes gojq accepts:
// string-keyed maps and float64 for integer widths gojq does not know.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case int32:
		return int(t)
	case float32:
		return float64(t)
	}
	return v
}
