package template

import (
	"context"
	"sync"
)

// FieldSource resolves a bare `{{ field }}` reference to the template that
// defines it (typically a profile's data map). Implemented by the
// collection package so this package never has to import it.
type FieldSource interface {
	Field(name Identifier) (Template, bool)
}

// PromptOptions describes a single prompt() rendezvous with the user.
type PromptOptions struct {
	Label     string
	Default   string
	Sensitive bool
}

// Prompter services a prompt() call. The TUI controller implements this by
// popping a modal and blocking the render until the user answers or
// cancels; a headless CLI mode can implement it by reading stdin or
// returning PromptCancelledError outright.
type Prompter interface {
	Prompt(ctx context.Context, opts PromptOptions) (string, error)
}

// ResponseSource resolves the request() chaining function to a previously
// recorded response body, keyed by recipe ID.
type ResponseSource interface {
	LatestResponseBody(recipeID string) ([]byte, error)
}

// Context carries everything a render needs beyond the template's own
// text: where field values and prompt answers come from, whether
// sensitive values should be masked in the output, and the per-render
// memoization cache.
//
// A Context is built fresh for each render (e.g. each time the HTTP
// engine builds one request) and must not be reused across renders: the
// cache's whole purpose is to make every field in that one render see a
// consistent value, not to persist across independent renders.
type Context struct {
	Fields    FieldSource
	Overrides map[Identifier]string
	Prompter  Prompter
	Responses ResponseSource

	RootDir       string
	ShowSensitive bool

	cache sync.Map // *Expression -> *onceEntry
}

// NewContext builds a render Context. Prompter and Responses may be nil if
// the template is known not to use prompt()/request().
func NewContext(fields FieldSource, overrides map[Identifier]string, prompter Prompter, responses ResponseSource, rootDir string, showSensitive bool) *Context {
	return &Context{
		Fields:        fields,
		Overrides:     overrides,
		Prompter:      prompter,
		Responses:     responses,
		RootDir:       rootDir,
		ShowSensitive: showSensitive,
	}
}

// previewPlaceholder is what a prompt() call resolves to when rendered
// through Preview, so a recipe with a prompt() in its URL, headers, or
// body still has something to show without popping a modal.
const previewPlaceholder = "<prompt>"

// NoninteractivePrompter answers every prompt() call with a fixed
// placeholder immediately, never blocking. Used for preview rendering,
// where there is no modal to pop and no answer to wait for.
type NoninteractivePrompter struct{}

func (NoninteractivePrompter) Prompt(_ context.Context, opts PromptOptions) (string, error) {
	if opts.Default != "" {
		return opts.Default, nil
	}
	return previewPlaceholder, nil
}

type onceEntry struct {
	once sync.Once
	val  Value
	err  error
}

// memoize runs fn at most once per (Context, expr) pair and returns the
// cached result on subsequent calls, even after the first call returns.
// Keying on the *Expression pointer means two textually identical but
// distinct expressions are evaluated independently, while the same
// Template reused by both a header and the body (the common case for
// multi-use profile fields) is evaluated exactly once.
func (c *Context) memoize(expr *Expression, fn func() (Value, error)) (Value, error) {
	actual, _ := c.cache.LoadOrStore(expr, &onceEntry{})
	entry := actual.(*onceEntry)
	entry.once.Do(func() {
		entry.val, entry.err = fn()
	})
	return entry.val, entry.err
}
