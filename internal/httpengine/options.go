package httpengine

import (
	"github.com/slumberhq/slumber/internal/collection"
	"github.com/slumberhq/slumber/internal/template"
)

// BuildOptions carries per-request overrides applied on top of a recipe
// before rendering. Query parameters and headers are addressed by their
// index in the recipe's authored order rather than by name. Recipe.Query
// and Recipe.Headers are ordered maps, so each name appears there at most
// once; repeated query parameter names are not supported. The body is
// replaced wholesale since it has no index/key shape
// shared across its Raw/JSON/form/stream kinds. A nil *BuildOptions (or
// the zero value) applies no overrides at all.
type BuildOptions struct {
	Query   map[int]template.Template
	Headers map[int]template.Template
	Body    *collection.RecipeBody
}

func (o *BuildOptions) queryOverride(i int) (template.Template, bool) {
	if o == nil || o.Query == nil {
		return template.Template{}, false
	}
	t, ok := o.Query[i]
	return t, ok
}

func (o *BuildOptions) headerOverride(i int) (template.Template, bool) {
	if o == nil || o.Headers == nil {
		return template.Template{}, false
	}
	t, ok := o.Headers[i]
	return t, ok
}

// body returns the body that should actually be rendered: the override if
// one is set, otherwise recipe's own body.
func (o *BuildOptions) body(recipe *collection.RecipeBody) *collection.RecipeBody {
	if o == nil || o.Body == nil {
		return recipe
	}
	return o.Body
}
