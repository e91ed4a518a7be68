package main

import (
	"fmt"

	"github.com/slumberhq/slumber/internal/collection"
	"github.com/slumberhq/slumber/internal/db"
	"github.com/slumberhq/slumber/internal/editabletemplate"
	"github.com/slumberhq/slumber/internal/httpengine"
	"github.com/slumberhq/slumber/internal/reqstate"
	"github.com/slumberhq/slumber/internal/template"
)

// storeResponseSource adapts a *reqstate.Store into a template.ResponseSource
// so the request() template function can read back the most recent response
// body recorded for a recipe, regardless of whether that response is still
// only in memory or has already been persisted.
type storeResponseSource struct {
	states *reqstate.Store
}

func (s storeResponseSource) LatestResponseBody(recipeID string) ([]byte, error) {
	st, ok, err := s.states.LoadLatest(recipeID, db.AnyProfile, "")
	if err != nil {
		return nil, fmt.Errorf("load latest response for %q: %w", recipeID, err)
	}
	if !ok || st.Exchange == nil {
		return nil, fmt.Errorf("no recorded response for recipe %q", recipeID)
	}
	return st.Exchange.Body, nil
}

// buildContextFn returns the tui.ContextBuilder closure wired against one
// open collection: field lookups use the selected profile (profileID),
// falling back to the collection's default profile when none is selected
// or it is not found, and request() chaining reads from states.
func buildContextFn(col *collection.Collection, states *reqstate.Store, rootDir string, showSensitive bool) func(recipe *collection.Recipe, profileID *collection.ProfileId) *template.Context {
	responses := storeResponseSource{states: states}

	return func(recipe *collection.Recipe, profileID *collection.ProfileId) *template.Context {
		var fields template.FieldSource
		if profileID != nil {
			if p, ok := col.Profiles.Get(*profileID); ok {
				fields = p
			}
		}
		if fields == nil {
			if p, ok := col.DefaultProfile(); ok {
				fields = p
			}
		}
		return template.NewContext(fields, nil, nil, responses, rootDir, showSensitive)
	}
}

// buildOptionsFn returns the tui.BuildOptionsFor closure wired against a
// collection's editable-template overrides: any header, query, or raw
// body field with a stored override gets it substituted in by index
// before httpengine.Build renders the recipe. Query/header override keys
// are addressed by the field's index in the recipe's authored order; the
// body override only applies to BodyRaw recipes, since editabletemplate's
// State wraps a single template and has no sub-field shape to address a
// JSON or form body's individual pieces.
func buildOptionsFn(store *editabletemplate.Store) func(recipe *collection.Recipe) *httpengine.BuildOptions {
	return func(recipe *collection.Recipe) *httpengine.BuildOptions {
		opts := &httpengine.BuildOptions{}

		i := 0
		for pair := recipe.Headers.Oldest(); pair != nil; pair = pair.Next() {
			key := fmt.Sprintf("recipe:%s:header:%d", recipe.ID, i)
			if st, err := store.Load(pair.Value, key, false); err == nil && st.HasOverride() {
				if opts.Headers == nil {
					opts.Headers = map[int]template.Template{}
				}
				opts.Headers[i] = st.Active()
			}
			i++
		}

		i = 0
		for pair := recipe.Query.Oldest(); pair != nil; pair = pair.Next() {
			key := fmt.Sprintf("recipe:%s:query:%d", recipe.ID, i)
			if st, err := store.Load(pair.Value, key, false); err == nil && st.HasOverride() {
				if opts.Query == nil {
					opts.Query = map[int]template.Template{}
				}
				opts.Query[i] = st.Active()
			}
			i++
		}

		if recipe.Body != nil && recipe.Body.Kind == collection.BodyRaw {
			key := fmt.Sprintf("recipe:%s:body", recipe.ID)
			if st, err := store.Load(recipe.Body.Raw, key, false); err == nil && st.HasOverride() {
				opts.Body = &collection.RecipeBody{Kind: collection.BodyRaw, Raw: st.Active()}
			}
		}

		if opts.Headers == nil && opts.Query == nil && opts.Body == nil {
			return nil
		}
		return opts
	}
}
