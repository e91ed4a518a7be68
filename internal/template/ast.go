package template

import "fmt"

// Identifier is a field name, function name, or kwarg name. Only
// alphanumerics, '-' and '_' are allowed.
type Identifier string

func (id Identifier) String() string { return string(id) }

// Literal is a parsed literal value: null, bool, int, float, or string.
type Literal struct {
	Kind  LiteralKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

// LiteralKind discriminates the Literal union.
type LiteralKind int

const (
	LiteralNull LiteralKind = iota
	LiteralBool
	LiteralInt
	LiteralFloat
	LiteralString
)

// KeywordArg is a single `name = expr` call argument.
type KeywordArg struct {
	Name Identifier
	Expr Expression
}

// FunctionCall is a parsed call: `name(pos..., kw=val...)`.
type FunctionCall struct {
	Function  Identifier
	Position  []Expression
	Keyword   []KeywordArg
}

// Expression is the AST of the contents of one `{{ }}`. Exactly one of
// the fields is meaningful, selected by Kind.
type Expression struct {
	Kind ExpressionKind

	Literal Literal
	Field   Identifier
	Array   []Expression
	Call    FunctionCall

	// Pipe: Inner | Call
	Inner *Expression
	Pipe  FunctionCall
}

// ExpressionKind discriminates the Expression union.
type ExpressionKind int

const (
	ExprLiteral ExpressionKind = iota
	ExprField
	ExprArray
	ExprCall
	ExprPipe
)

// Chunk is one element of a parsed Template: either raw text or a parsed
// expression.
type Chunk struct {
	Raw  string
	Expr *Expression
}

// IsRaw reports whether this chunk is raw text rather than an expression.
func (c Chunk) IsRaw() bool { return c.Expr == nil }

// Template is a parsed sequence of chunks. Templates compare and persist
// by their source form, so Template itself carries no cached render
// state.
type Template struct {
	Chunks []Chunk
}

// FromField builds a template equivalent to `{{ field }}`.
func FromField(field Identifier) Template {
	return Template{Chunks: []Chunk{{Expr: &Expression{Kind: ExprField, Field: field}}}}
}

// Raw builds a template that renders literally to s. s is stored as is;
// String escapes any `{{` sequences in it when writing the source form.
func Raw(s string) Template {
	if s == "" {
		return Template{}
	}
	return Template{Chunks: []Chunk{{Raw: s}}}
}

// String reconstructs the template's source form (not necessarily
// byte-identical to the original source if whitespace inside `{{ }}`
// differed).
func (t Template) String() string {
	var out []byte
	for _, c := range t.Chunks {
		if c.IsRaw() {
			out = append(out, escapeRaw(c.Raw)...)
		} else {
			out = append(out, '{', '{', ' ')
			out = append(out, c.Expr.String()...)
			out = append(out, ' ', '}', '}')
		}
	}
	return string(out)
}

// escapeRaw re-escapes any literal "{{" sequences so the string round
// trips through Parse.
func escapeRaw(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		out = append(out, s[i])
		if s[i] != '{' {
			continue
		}
		j := i + 1
		for j < len(s) && s[j] == '_' {
			j++
		}
		if j < len(s) && s[j] == '{' {
			out = append(out, '_')
		}
	}
	return string(out)
}

func (e Expression) String() string {
	switch e.Kind {
	case ExprLiteral:
		return e.Literal.String()
	case ExprField:
		return string(e.Field)
	case ExprArray:
		s := "["
		for i, child := range e.Array {
			if i > 0 {
				s += ", "
			}
			s += child.String()
		}
		return s + "]"
	case ExprCall:
		return e.Call.String()
	case ExprPipe:
		return e.Inner.String() + " | " + e.Pipe.String()
	default:
		return ""
	}
}

func (l Literal) String() string {
	switch l.Kind {
	case LiteralNull:
		return "null"
	case LiteralBool:
		if l.Bool {
			return "true"
		}
		return "false"
	case LiteralInt:
		return fmt.Sprintf("%d", l.Int)
	case LiteralFloat:
		return fmt.Sprintf("%g", l.Float)
	case LiteralString:
		return "\"" + l.Str + "\""
	default:
		return ""
	}
}

func (f FunctionCall) String() string {
	s := string(f.Function) + "("
	first := true
	for _, p := range f.Position {
		if !first {
			s += ", "
		}
		s += p.String()
		first = false
	}
	for _, kw := range f.Keyword {
		if !first {
			s += ", "
		}
		s += string(kw.Name) + "=" + kw.Expr.String()
		first = false
	}
	return s + ")"
}
