package template

import "context"

// maskPlaceholder replaces a sensitive rendered value in previews and logs.
const maskPlaceholder = "[hidden]"

// Preview renders tmpl for display purposes: identical to Render, except a
// result built from any sensitive chunk (a prompt(sensitive=true) answer,
// or anything derived from one) is replaced with a placeholder unless
// tctx.ShowSensitive is set. Request sending always uses Render/RenderValue
// directly so a hidden preview never changes what goes over the wire.
//
// Preview always renders with a NoninteractivePrompter regardless of
// whatever Prompter tctx carries, so a prompt() call never blocks a
// preview waiting on a modal that isn't there. It renders against a fresh
// Context (same fields, same cache-free start) rather than tctx itself, so
// the placeholder answer never gets memoized into tctx's cache and served
// back to the real request this preview stands in for.
func Preview(ctx context.Context, tctx *Context, tmpl Template) (string, error) {
	previewCtx := NewContext(tctx.Fields, tctx.Overrides, NoninteractivePrompter{}, tctx.Responses, tctx.RootDir, tctx.ShowSensitive)

	v, err := RenderValue(ctx, previewCtx, tmpl)
	if err != nil {
		return "", err
	}
	if v.Sensitive && !tctx.ShowSensitive {
		return maskPlaceholder, nil
	}
	return v.String(), nil
}
