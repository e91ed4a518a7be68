package template

import (
	"testing"
)

func TestParseRaw(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"single_escape", "{_{hello {_{_{", "{{hello {{{"},
		{"unescaped_underscore_run", "{_a {_ _{", "{_a {_ _{"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tmpl, err := Parse(c.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", c.in, err)
			}
			if len(tmpl.Chunks) != 1 || !tmpl.Chunks[0].IsRaw() {
				t.Fatalf("Parse(%q) = %#v, want single raw chunk", c.in, tmpl)
			}
			if tmpl.Chunks[0].Raw != c.want {
				t.Errorf("Parse(%q).Raw = %q, want %q", c.in, tmpl.Chunks[0].Raw, c.want)
			}
		})
	}
}

func TestParseField(t *testing.T) {
	tmpl, err := Parse("{{ user_id }}")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tmpl.Chunks) != 1 || tmpl.Chunks[0].IsRaw() {
		t.Fatalf("got %#v", tmpl)
	}
	expr := tmpl.Chunks[0].Expr
	if expr.Kind != ExprField || expr.Field != "user_id" {
		t.Errorf("got %#v", expr)
	}
}

func TestParseLiterals(t *testing.T) {
	cases := []struct {
		in   string
		kind LiteralKind
	}{
		{"null", LiteralNull},
		{"true", LiteralBool},
		{"false", LiteralBool},
		{"42", LiteralInt},
		{"-7", LiteralInt},
		{"3.14", LiteralFloat},
		{"-1.5e2", LiteralFloat},
		{`"hello"`, LiteralString},
		{"'hello'", LiteralString},
	}
	for _, c := range cases {
		expr, err := ParseExpression(c.in)
		if err != nil {
			t.Fatalf("ParseExpression(%q): %v", c.in, err)
		}
		if expr.Kind != ExprLiteral {
			t.Fatalf("ParseExpression(%q) kind = %v, want literal", c.in, expr.Kind)
		}
		if expr.Literal.Kind != c.kind {
			t.Errorf("ParseExpression(%q) literal kind = %v, want %v", c.in, expr.Literal.Kind, c.kind)
		}
	}
}

func TestParseStringEscapes(t *testing.T) {
	expr, err := ParseExpression(`"a\nb\"c"`)
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	want := "a\nb\"c"
	if expr.Literal.Str != want {
		t.Errorf("got %q, want %q", expr.Literal.Str, want)
	}
}

func TestParseArray(t *testing.T) {
	expr, err := ParseExpression("[1, 2, 3]")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	if expr.Kind != ExprArray || len(expr.Array) != 3 {
		t.Fatalf("got %#v", expr)
	}
}

func TestParseEmptyArray(t *testing.T) {
	expr, err := ParseExpression("[]")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	if expr.Kind != ExprArray || len(expr.Array) != 0 {
		t.Fatalf("got %#v", expr)
	}
}

func TestParseCall(t *testing.T) {
	expr, err := ParseExpression(`env("HOME")`)
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	if expr.Kind != ExprCall || expr.Call.Function != "env" {
		t.Fatalf("got %#v", expr)
	}
	if len(expr.Call.Position) != 1 {
		t.Fatalf("got %d positional args, want 1", len(expr.Call.Position))
	}
}

func TestParseCallKeywordArgs(t *testing.T) {
	expr, err := ParseExpression(`prompt("token", sensitive=true)`)
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	if len(expr.Call.Position) != 1 || len(expr.Call.Keyword) != 1 {
		t.Fatalf("got %#v", expr.Call)
	}
	if expr.Call.Keyword[0].Name != "sensitive" {
		t.Errorf("got keyword %q", expr.Call.Keyword[0].Name)
	}
}

func TestParseCallDuplicateKeywordIsError(t *testing.T) {
	_, err := ParseExpression(`prompt("x", default="a", default="b")`)
	if err == nil {
		t.Fatal("expected error for duplicate keyword argument")
	}
}

func TestParseCallPositionalAfterKeywordIsError(t *testing.T) {
	_, err := ParseExpression(`f(a=1, 2)`)
	if err == nil {
		t.Fatal("expected error for positional argument after keyword argument")
	}
}

func TestParsePipeLeftAssociative(t *testing.T) {
	expr, err := ParseExpression(`x | trim() | base64_encode()`)
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	// (x | trim()) | base64_encode(): outer call is base64_encode.
	if expr.Kind != ExprPipe || expr.Pipe.Function != "base64_encode" {
		t.Fatalf("got %#v", expr)
	}
	inner := expr.Inner
	if inner.Kind != ExprPipe || inner.Pipe.Function != "trim" {
		t.Fatalf("got inner %#v", inner)
	}
	if inner.Inner.Kind != ExprField || inner.Inner.Field != "x" {
		t.Fatalf("got innermost %#v", inner.Inner)
	}
}

func TestParseUnterminatedExpressionIsError(t *testing.T) {
	_, err := Parse("{{ user_id ")
	if err == nil {
		t.Fatal("expected parse error for missing closing }}")
	}
	var perr *ParseError
	if !asParseError(err, &perr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestParseMixedRawAndExpression(t *testing.T) {
	tmpl, err := Parse("hello {{ name }}, welcome")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tmpl.Chunks) != 3 {
		t.Fatalf("got %d chunks, want 3: %#v", len(tmpl.Chunks), tmpl.Chunks)
	}
	if tmpl.Chunks[0].Raw != "hello " {
		t.Errorf("chunk 0 = %q", tmpl.Chunks[0].Raw)
	}
	if tmpl.Chunks[1].IsRaw() || tmpl.Chunks[1].Expr.Field != "name" {
		t.Errorf("chunk 1 = %#v", tmpl.Chunks[1])
	}
	if tmpl.Chunks[2].Raw != ", welcome" {
		t.Errorf("chunk 2 = %q", tmpl.Chunks[2].Raw)
	}
}

func TestDisplayRoundTrip(t *testing.T) {
	cases := []string{
		"plain text",
		"{{ field }}",
		"prefix {{ field }} suffix",
		"{{ env(\"HOME\") }}",
	}
	for _, in := range cases {
		tmpl, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		out := tmpl.String()
		tmpl2, err := Parse(out)
		if err != nil {
			t.Fatalf("re-Parse(%q): %v", out, err)
		}
		if tmpl2.String() != out {
			t.Errorf("round trip unstable: %q -> %q -> %q", in, out, tmpl2.String())
		}
	}
}

func asParseError(err error, target **ParseError) bool {
	if pe, ok := err.(*ParseError); ok {
		*target = pe
		return true
	}
	return false
}
