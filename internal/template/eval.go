package template

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Value is the result of evaluating one expression. Most expressions
// produce a scalar (Bytes); array literals additionally populate Elements
// so callers that care about structure (function arguments, JSON body
// construction) don't have to re-parse a flattened string.
type Value struct {
	Bytes     []byte
	Sensitive bool
	Elements  []Value // non-nil only for array-kind values
}

func (v Value) String() string { return string(v.Bytes) }

func stringValue(s string) Value { return Value{Bytes: []byte(s)} }

// Render evaluates every expression chunk in tmpl and concatenates the
// result with the raw text, producing the template's final string form.
func Render(ctx context.Context, tctx *Context, tmpl Template) (string, error) {
	v, err := RenderValue(ctx, tctx, tmpl)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// RenderValue is like Render but preserves whether any contributing chunk
// was sensitive, so callers (e.g. the HTTP engine's request log) can
// decide whether to mask the result.
func RenderValue(ctx context.Context, tctx *Context, tmpl Template) (Value, error) {
	if len(tmpl.Chunks) == 0 {
		return Value{}, nil
	}
	if len(tmpl.Chunks) == 1 && tmpl.Chunks[0].IsRaw() {
		return stringValue(tmpl.Chunks[0].Raw), nil
	}

	results := make([]Value, len(tmpl.Chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range tmpl.Chunks {
		i, chunk := i, chunk
		if chunk.IsRaw() {
			results[i] = stringValue(chunk.Raw)
			continue
		}
		g.Go(func() error {
			v, err := tctx.memoize(chunk.Expr, func() (Value, error) {
				return evalExpression(gctx, tctx, chunk.Expr)
			})
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Value{}, err
	}

	var sb strings.Builder
	sensitive := false
	for _, r := range results {
		sb.Write(r.Bytes)
		sensitive = sensitive || r.Sensitive
	}
	return Value{Bytes: []byte(sb.String()), Sensitive: sensitive}, nil
}

func evalExpression(ctx context.Context, tctx *Context, expr *Expression) (Value, error) {
	switch expr.Kind {
	case ExprLiteral:
		return evalLiteral(expr.Literal), nil

	case ExprField:
		return evalField(ctx, tctx, expr.Field)

	case ExprArray:
		elems := make([]Value, len(expr.Array))
		var sb strings.Builder
		sb.WriteByte('[')
		sensitive := false
		for i := range expr.Array {
			v, err := evalExpression(ctx, tctx, &expr.Array[i])
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.Write(v.Bytes)
			sensitive = sensitive || v.Sensitive
		}
		sb.WriteByte(']')
		return Value{Bytes: []byte(sb.String()), Sensitive: sensitive, Elements: elems}, nil

	case ExprCall:
		return evalCall(ctx, tctx, expr.Call)

	case ExprPipe:
		inner, err := evalExpression(ctx, tctx, expr.Inner)
		if err != nil {
			return Value{}, err
		}
		return evalCallWithPiped(ctx, tctx, expr.Pipe, inner)

	default:
		return Value{}, fmt.Errorf("template: unhandled expression kind %d", expr.Kind)
	}
}

func evalLiteral(lit Literal) Value {
	switch lit.Kind {
	case LiteralNull:
		return Value{}
	case LiteralBool:
		if lit.Bool {
			return stringValue("true")
		}
		return stringValue("false")
	case LiteralInt:
		return stringValue(strconv.FormatInt(lit.Int, 10))
	case LiteralFloat:
		return stringValue(strconv.FormatFloat(lit.Float, 'g', -1, 64))
	case LiteralString:
		return stringValue(lit.Str)
	default:
		return Value{}
	}
}

func evalField(ctx context.Context, tctx *Context, name Identifier) (Value, error) {
	if raw, ok := tctx.Overrides[name]; ok {
		return stringValue(raw), nil
	}
	if tctx.Fields != nil {
		if nested, ok := tctx.Fields.Field(name); ok {
			v, err := RenderValue(ctx, tctx, nested)
			if err != nil {
				return Value{}, &NestedRenderError{Context: string(name), Cause: err}
			}
			return v, nil
		}
	}
	return Value{}, &UnknownFieldError{Field: name}
}

func evalCall(ctx context.Context, tctx *Context, call FunctionCall) (Value, error) {
	pos, kw, err := evalArgs(ctx, tctx, call)
	if err != nil {
		return Value{}, err
	}
	return dispatch(ctx, tctx, call.Function, pos, kw)
}

// evalCallWithPiped evaluates a pipe stage: the piped-in value is prepended
// to the call's own positional arguments, matching `x | f(a)` meaning
// `f(x, a)`.
func evalCallWithPiped(ctx context.Context, tctx *Context, call FunctionCall, piped Value) (Value, error) {
	pos, kw, err := evalArgs(ctx, tctx, call)
	if err != nil {
		return Value{}, err
	}
	pos = append([]Value{piped}, pos...)
	return dispatch(ctx, tctx, call.Function, pos, kw)
}

func evalArgs(ctx context.Context, tctx *Context, call FunctionCall) ([]Value, map[Identifier]Value, error) {
	pos := make([]Value, len(call.Position))
	for i := range call.Position {
		v, err := evalExpression(ctx, tctx, &call.Position[i])
		if err != nil {
			return nil, nil, err
		}
		pos[i] = v
	}
	var kw map[Identifier]Value
	if len(call.Keyword) > 0 {
		kw = make(map[Identifier]Value, len(call.Keyword))
		for _, k := range call.Keyword {
			v, err := evalExpression(ctx, tctx, &k.Expr)
			if err != nil {
				return nil, nil, err
			}
			kw[k.Name] = v
		}
	}
	return pos, kw, nil
}

func dispatch(ctx context.Context, tctx *Context, name Identifier, pos []Value, kw map[Identifier]Value) (Value, error) {
	fn, ok := builtins[name]
	if !ok {
		return Value{}, &UnknownFunctionError{Function: name}
	}
	if len(pos) < fn.minArgs || (fn.maxArgs >= 0 && len(pos) > fn.maxArgs) {
		return Value{}, &ArityMismatchError{
			Function: name,
			Message:  fmt.Sprintf("expected between %d and %d positional arguments, got %d", fn.minArgs, fn.maxArgs, len(pos)),
		}
	}
	return fn.run(ctx, tctx, pos, kw)
}
