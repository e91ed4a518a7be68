package template

import (
	"context"
	"sync/atomic"
	"testing"
)

type mapFields map[Identifier]Template

func (m mapFields) Field(name Identifier) (Template, bool) {
	t, ok := m[name]
	return t, ok
}

func TestRenderLiteralAndField(t *testing.T) {
	fields := mapFields{"name": Raw("world")}
	tctx := NewContext(fields, nil, nil, nil, "", false)

	tmpl, err := Parse("hello {{ name }}!")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := Render(context.Background(), tctx, tmpl)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "hello world!" {
		t.Errorf("got %q", got)
	}
}

func TestRenderUnknownFieldError(t *testing.T) {
	tctx := NewContext(mapFields{}, nil, nil, nil, "", false)
	tmpl := FromField("missing")
	_, err := Render(context.Background(), tctx, tmpl)
	if _, ok := err.(*UnknownFieldError); !ok {
		t.Fatalf("got %T: %v", err, err)
	}
}

func TestRenderOverrideTakesPrecedence(t *testing.T) {
	fields := mapFields{"host": Raw("profile-value")}
	tctx := NewContext(fields, map[Identifier]string{"host": "override-value"}, nil, nil, "", false)
	got, err := Render(context.Background(), tctx, FromField("host"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "override-value" {
		t.Errorf("got %q, want override-value", got)
	}
}

// countingFields counts how many times a field's underlying template is
// evaluated, so tests can assert on the per-render memoization cache.
type countingFields struct {
	tmpl  Template
	calls *int64
}

func (c countingFields) Field(name Identifier) (Template, bool) {
	atomic.AddInt64(c.calls, 1)
	return c.tmpl, true
}

func TestRenderCachesRepeatedField(t *testing.T) {
	var calls int64
	// A template whose body is rendered by file() would be expensive to
	// recompute; model that here with a plain counting field instead.
	shared := FromField("expensive")
	fields := countingFields{tmpl: Raw("value"), calls: &calls}
	tctx := NewContext(fields, nil, nil, nil, "", false)

	tmpl := Template{Chunks: []Chunk{
		{Expr: shared.Chunks[0].Expr},
		{Raw: " / "},
		{Expr: shared.Chunks[0].Expr},
	}}

	got, err := Render(context.Background(), tctx, tmpl)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "value / value" {
		t.Errorf("got %q", got)
	}
	if calls != 1 {
		t.Errorf("field resolved %d times, want exactly 1 (memoized)", calls)
	}
}

func TestRenderPipeChain(t *testing.T) {
	fields := mapFields{"raw": Raw("  hello  ")}
	tctx := NewContext(fields, nil, nil, nil, "", false)

	tmpl, err := Parse("{{ raw | trim() }}")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := Render(context.Background(), tctx, tmpl)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestRenderEnvFunction(t *testing.T) {
	t.Setenv("SLUMBER_TEST_VAR", "configured")
	tctx := NewContext(mapFields{}, nil, nil, nil, "", false)
	tmpl, err := Parse(`{{ env("SLUMBER_TEST_VAR") }}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := Render(context.Background(), tctx, tmpl)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "configured" {
		t.Errorf("got %q", got)
	}
}

func TestRenderUnknownFunction(t *testing.T) {
	tctx := NewContext(mapFields{}, nil, nil, nil, "", false)
	tmpl, err := Parse(`{{ nope() }}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = Render(context.Background(), tctx, tmpl)
	if _, ok := err.(*UnknownFunctionError); !ok {
		t.Fatalf("got %T: %v", err, err)
	}
}

type cancelingPrompter struct{}

func (cancelingPrompter) Prompt(ctx context.Context, opts PromptOptions) (string, error) {
	return "", &PromptCancelledError{Label: opts.Label}
}

func TestRenderPromptCancelled(t *testing.T) {
	tctx := NewContext(mapFields{}, nil, cancelingPrompter{}, nil, "", false)
	tmpl, err := Parse(`{{ prompt("token") }}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = Render(context.Background(), tctx, tmpl)
	if _, ok := err.(*PromptCancelledError); !ok {
		t.Fatalf("got %T: %v", err, err)
	}
}
