package template

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
)

// StreamSource names where a streamed body's bytes ultimately came from,
// so callers (the HTTP engine's request log) can describe a large body
// without holding it in memory twice.
type StreamSource struct {
	// Path is set when the body is a single `{{ file(...) }}` template,
	// letting the HTTP engine stream the file directly instead of
	// buffering it through Render.
	Path string
}

// RenderedOutput is a template's rendered body in streaming form: either a
// single file on disk (Source.Path set, Reader opened lazily by the
// caller) or materialized bytes for everything else. Sensitive is only
// meaningful when Source is nil, since a file's contents carry no
// sensitivity flag of their own.
type RenderedOutput struct {
	Reader    io.Reader
	Source    *StreamSource
	Sensitive bool
}

// RenderStream renders tmpl the same as Render, but recognizes the single
// common "whole body is one file() call" shape and reports it via Source
// instead of eagerly reading the file into memory. Every other shape
// falls back to a fully materialized Reader.
func RenderStream(ctx context.Context, tctx *Context, tmpl Template) (RenderedOutput, error) {
	if path, ok := soleFileCall(tmpl); ok {
		if !filepath.IsAbs(path) && tctx.RootDir != "" {
			path = filepath.Join(tctx.RootDir, path)
		}
		return RenderedOutput{Source: &StreamSource{Path: path}}, nil
	}
	v, err := RenderValue(ctx, tctx, tmpl)
	if err != nil {
		return RenderedOutput{}, err
	}
	return RenderedOutput{Reader: bytes.NewReader(v.Bytes), Sensitive: v.Sensitive}, nil
}

// soleFileCall reports whether tmpl is exactly one `{{ file("...") }}`
// expression chunk with a literal string argument, with no surrounding raw
// text.
func soleFileCall(tmpl Template) (string, bool) {
	if len(tmpl.Chunks) != 1 || tmpl.Chunks[0].IsRaw() {
		return "", false
	}
	expr := tmpl.Chunks[0].Expr
	if expr.Kind != ExprCall || expr.Call.Function != "file" {
		return "", false
	}
	if len(expr.Call.Position) != 1 || len(expr.Call.Keyword) != 0 {
		return "", false
	}
	arg := expr.Call.Position[0]
	if arg.Kind != ExprLiteral || arg.Literal.Kind != LiteralString {
		return "", false
	}
	return arg.Literal.Str, true
}
