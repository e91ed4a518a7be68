// Package collection holds the declarative data model loaded from a
// collection file: profiles, recipes, and the folders that group them.
package collection

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/slumberhq/slumber/internal/template"
)

type ProfileId string
type RecipeId string
type FolderId string

// HTTPMethod is one of the methods slumber's recipes can issue.
type HTTPMethod string

const (
	MethodGet     HTTPMethod = "GET"
	MethodPost    HTTPMethod = "POST"
	MethodPut     HTTPMethod = "PUT"
	MethodPatch   HTTPMethod = "PATCH"
	MethodDelete  HTTPMethod = "DELETE"
	MethodHead    HTTPMethod = "HEAD"
	MethodOptions HTTPMethod = "OPTIONS"
)

// Profile is a named set of template field values (a base URL, auth
// tokens, environment-specific constants) that recipes reference by
// field name.
type Profile struct {
	ID      ProfileId
	Name    string
	Default bool
	Data    *orderedmap.OrderedMap[string, template.Template]
}

// Field implements template.FieldSource: it looks up a field in this
// profile's data map.
func (p *Profile) Field(name template.Identifier) (template.Template, bool) {
	if p == nil || p.Data == nil {
		return template.Template{}, false
	}
	return p.Data.Get(string(name))
}

// AuthKind discriminates the Authentication union.
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthBasic
	AuthBearer
)

// Authentication is a recipe's auth configuration: exactly one of the
// fields beyond Kind is meaningful.
type Authentication struct {
	Kind     AuthKind
	Username template.Template // AuthBasic
	Password template.Template // AuthBasic
	Token    template.Template // AuthBearer
}

// BodyKind discriminates the RecipeBody union.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyRaw
	BodyJSON
	BodyFormURLEncoded
	BodyFormMultipart
	// BodyStream is a body whose template is rendered through
	// template.RenderStream rather than buffered, so a recipe that reads
	// its body from a single file() call can upload it without holding
	// the whole thing in memory.
	BodyStream
)

// RecipeBody is a recipe's request body. Exactly one field beyond Kind is
// meaningful, selected by Kind.
type RecipeBody struct {
	Kind BodyKind

	// Raw holds the body template for both BodyRaw and BodyStream; the
	// two differ only in how the HTTP engine renders it (buffered vs.
	// template.RenderStream).
	Raw  template.Template
	JSON JSONValue

	// Form holds field name -> value template pairs for both
	// form_urlencoded and form_multipart bodies; the distinction only
	// matters for how the HTTP engine serializes it on the wire.
	Form *orderedmap.OrderedMap[string, template.Template]
}

// JSONValue is a JSON document tree whose string leaves may themselves be
// templates, e.g. `{"token": "{{ auth_token }}"}`. Rendering walks the
// tree and renders every string leaf, leaving object/array structure and
// non-string scalars untouched.
type JSONValue struct {
	Kind     JSONKind
	Bool     bool
	Number   float64
	Template template.Template // JSONString
	Array    []JSONValue
	Object   *orderedmap.OrderedMap[string, JSONValue]
}

type JSONKind int

const (
	JSONNull JSONKind = iota
	JSONBool
	JSONNumber
	JSONString
	JSONArray
	JSONObject
)

// Recipe is one request definition: method, URL, and the templated
// pieces (headers, query params, auth, body) the HTTP engine renders and
// sends.
type Recipe struct {
	ID      RecipeId
	Name    string
	Method  HTTPMethod
	URL     template.Template
	Headers *orderedmap.OrderedMap[string, template.Template]
	Query   *orderedmap.OrderedMap[string, template.Template]
	Auth    Authentication
	Body    *RecipeBody

	// Persist is the recipe-level opt-in for exchange history. The
	// config-level PersistRequests flag must also be true; both are
	// required for an exchange to be written to the requests table.
	Persist bool
}

// Folder groups recipes and sub-folders for display purposes; it carries
// no template data of its own.
type Folder struct {
	ID       FolderId
	Name     string
	Folders  []*Folder
	Recipes  []*Recipe
}

// Collection is the full parsed tree loaded from one collection file.
type Collection struct {
	// Path is the canonicalized filesystem path this collection was
	// loaded from, used as the key into the persistence store.
	Path string

	// Name is the collection's display name, persisted alongside its path
	// so a history view can show "Payments API" instead of a filesystem
	// path. Empty if the file never set one.
	Name string

	Profiles *orderedmap.OrderedMap[ProfileId, *Profile]
	Root     Folder

	// recipesByID indexes every recipe in the tree for O(1) lookup by
	// ID; built once at load time since recipe IDs are required to be
	// unique across the whole collection.
	recipesByID map[RecipeId]*Recipe
}

// Recipe looks up a recipe anywhere in the collection's folder tree by ID.
func (c *Collection) Recipe(id RecipeId) (*Recipe, bool) {
	r, ok := c.recipesByID[id]
	return r, ok
}

// DefaultProfile returns the profile marked Default, if any.
func (c *Collection) DefaultProfile() (*Profile, bool) {
	if c.Profiles == nil {
		return nil, false
	}
	for pair := c.Profiles.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Default {
			return pair.Value, true
		}
	}
	return nil, false
}
