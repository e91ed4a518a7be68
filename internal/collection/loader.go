package collection

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/slumberhq/slumber/internal/template"
)

// Load reads and parses a collection file at path. Every templated string
// in the file is parsed immediately (so a malformed template is caught at
// load time, not the first time a recipe is sent), and every recipe ID in
// the tree is checked for uniqueness; both kinds of error are collected
// and returned together via multierr rather than stopping at the first
// one, so a user fixing a collection file sees every problem in one pass.
func Load(path string) (*Collection, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve collection path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read collection file: %w", err)
	}

	var raw yamlCollection
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse collection yaml: %w", err)
	}

	col := &Collection{
		Path:        abs,
		Name:        raw.Name,
		Profiles:    orderedmap.New[ProfileId, *Profile](),
		recipesByID: map[RecipeId]*Recipe{},
	}

	var errs error
	for _, id := range raw.profileOrder {
		p, err := raw.Profiles[id].toProfile(id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("profile %q: %w", id, err))
			continue
		}
		col.Profiles.Set(ProfileId(id), p)
	}

	root, err := convertFolder("", raw.Recipes, col.recipesByID)
	errs = multierr.Append(errs, err)
	col.Root = root

	if errs != nil {
		return nil, errs
	}
	return col, nil
}

// --- YAML intermediate shape ---
//
// Every *_order slice records the order keys appeared in the file so
// insertion order survives into the orderedmap.OrderedMap fields of the
// real data model, since encoding/yaml unmarshals mappings into Go maps
// by default, which do not preserve order.

type yamlCollection struct {
	Name         string
	Profiles     map[string]yamlProfile
	profileOrder []string
	Recipes      []yamlNode
}

func (c *yamlCollection) UnmarshalYAML(value *yaml.Node) error {
	type alias struct {
		Name     string     `yaml:"name"`
		Profiles yaml.Node  `yaml:"profiles"`
		Recipes  []yamlNode `yaml:"recipes"`
	}
	var a alias
	if err := value.Decode(&a); err != nil {
		return err
	}
	c.Name = a.Name
	c.Recipes = a.Recipes
	c.Profiles = map[string]yamlProfile{}
	if a.Profiles.Kind == 0 {
		return nil
	}
	for i := 0; i+1 < len(a.Profiles.Content); i += 2 {
		key := a.Profiles.Content[i].Value
		var p yamlProfile
		if err := a.Profiles.Content[i+1].Decode(&p); err != nil {
			return fmt.Errorf("profile %q: %w", key, err)
		}
		c.Profiles[key] = p
		c.profileOrder = append(c.profileOrder, key)
	}
	return nil
}

type yamlProfile struct {
	Name    string   `yaml:"name"`
	Default bool     `yaml:"default"`
	Data    yaml.Node `yaml:"data"`
}

func (p yamlProfile) toProfile(id string) (*Profile, error) {
	data := orderedmap.New[string, template.Template]()
	var errs error
	err := eachMappingPair(p.Data, func(key string, val *yaml.Node) error {
		tmpl, err := parseTemplateScalar(val)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		data.Set(key, tmpl)
		return nil
	})
	errs = multierr.Append(errs, err)
	if errs != nil {
		return nil, errs
	}
	return &Profile{ID: ProfileId(id), Name: p.Name, Default: p.Default, Data: data}, nil
}

type yamlNode struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	Method   string     `yaml:"method"`
	URL      string     `yaml:"url"`
	Headers  yaml.Node  `yaml:"headers"`
	Query    yaml.Node  `yaml:"query"`
	Auth     *yamlAuth  `yaml:"authentication"`
	Body     *yamlBody  `yaml:"body"`
	Persist  bool       `yaml:"persist"`
	Children []yamlNode `yaml:"children"`
}

func (n yamlNode) isFolder() bool { return n.Method == "" }

type yamlAuth struct {
	Basic  *yamlBasicAuth `yaml:"basic"`
	Bearer string         `yaml:"bearer"`
}

type yamlBasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type yamlBody struct {
	Raw            string    `yaml:"raw"`
	Stream         string    `yaml:"stream"`
	JSON           yaml.Node `yaml:"json"`
	FormURLEncoded yaml.Node `yaml:"form_urlencoded"`
	FormMultipart  yaml.Node `yaml:"form_multipart"`
}

// convertFolder converts a slice of sibling yamlNodes into a Folder,
// recursing into any children and registering every recipe it finds (by
// ID) into seen, erroring on a duplicate.
func convertFolder(name string, nodes []yamlNode, seen map[RecipeId]*Recipe) (Folder, error) {
	folder := Folder{ID: FolderId(name), Name: name}
	var errs error

	for _, n := range nodes {
		if n.isFolder() {
			child, err := convertFolder(n.ID, n.Children, seen)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			child.Name = n.Name
			folder.Folders = append(folder.Folders, &child)
			continue
		}

		recipe, err := n.toRecipe()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("recipe %q: %w", n.ID, err))
			continue
		}
		if _, dup := seen[recipe.ID]; dup {
			errs = multierr.Append(errs, fmt.Errorf("duplicate recipe id %q", recipe.ID))
			continue
		}
		seen[recipe.ID] = recipe
		folder.Recipes = append(folder.Recipes, recipe)
	}

	return folder, errs
}

func (n yamlNode) toRecipe() (*Recipe, error) {
	var errs error

	url, err := template.Parse(n.URL)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("url: %w", err))
	}

	headers := orderedmap.New[string, template.Template]()
	errs = multierr.Append(errs, eachMappingPair(n.Headers, func(key string, val *yaml.Node) error {
		t, err := parseTemplateScalar(val)
		if err != nil {
			return fmt.Errorf("header %q: %w", key, err)
		}
		headers.Set(key, t)
		return nil
	}))

	query := orderedmap.New[string, template.Template]()
	errs = multierr.Append(errs, eachMappingPair(n.Query, func(key string, val *yaml.Node) error {
		t, err := parseTemplateScalar(val)
		if err != nil {
			return fmt.Errorf("query param %q: %w", key, err)
		}
		query.Set(key, t)
		return nil
	}))

	auth, err := n.Auth.toAuthentication()
	errs = multierr.Append(errs, err)

	body, err := n.Body.toRecipeBody()
	errs = multierr.Append(errs, err)

	if errs != nil {
		return nil, errs
	}

	return &Recipe{
		ID:      RecipeId(n.ID),
		Name:    n.Name,
		Method:  HTTPMethod(n.Method),
		URL:     url,
		Headers: headers,
		Query:   query,
		Auth:    auth,
		Body:    body,
		Persist: n.Persist,
	}, nil
}

func (a *yamlAuth) toAuthentication() (Authentication, error) {
	if a == nil {
		return Authentication{}, nil
	}
	if a.Basic != nil {
		user, err1 := template.Parse(a.Basic.Username)
		pass, err2 := template.Parse(a.Basic.Password)
		if err := multierr.Combine(err1, err2); err != nil {
			return Authentication{}, fmt.Errorf("basic auth: %w", err)
		}
		return Authentication{Kind: AuthBasic, Username: user, Password: pass}, nil
	}
	if a.Bearer != "" {
		tok, err := template.Parse(a.Bearer)
		if err != nil {
			return Authentication{}, fmt.Errorf("bearer auth: %w", err)
		}
		return Authentication{Kind: AuthBearer, Token: tok}, nil
	}
	return Authentication{}, nil
}

func (b *yamlBody) toRecipeBody() (*RecipeBody, error) {
	if b == nil {
		return nil, nil
	}
	switch {
	case b.Raw != "":
		t, err := template.Parse(b.Raw)
		if err != nil {
			return nil, fmt.Errorf("raw body: %w", err)
		}
		return &RecipeBody{Kind: BodyRaw, Raw: t}, nil

	case b.Stream != "":
		t, err := template.Parse(b.Stream)
		if err != nil {
			return nil, fmt.Errorf("stream body: %w", err)
		}
		return &RecipeBody{Kind: BodyStream, Raw: t}, nil

	case b.JSON.Kind != 0:
		v, err := nodeToJSONValue(&b.JSON)
		if err != nil {
			return nil, fmt.Errorf("json body: %w", err)
		}
		return &RecipeBody{Kind: BodyJSON, JSON: v}, nil

	case b.FormURLEncoded.Kind != 0:
		m := orderedmap.New[string, template.Template]()
		if err := eachMappingPair(b.FormURLEncoded, func(key string, val *yaml.Node) error {
			t, err := parseTemplateScalar(val)
			if err != nil {
				return fmt.Errorf("form field %q: %w", key, err)
			}
			m.Set(key, t)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("form_urlencoded body: %w", err)
		}
		return &RecipeBody{Kind: BodyFormURLEncoded, Form: m}, nil

	case b.FormMultipart.Kind != 0:
		m := orderedmap.New[string, template.Template]()
		if err := eachMappingPair(b.FormMultipart, func(key string, val *yaml.Node) error {
			t, err := parseTemplateScalar(val)
			if err != nil {
				return fmt.Errorf("form field %q: %w", key, err)
			}
			m.Set(key, t)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("form_multipart body: %w", err)
		}
		return &RecipeBody{Kind: BodyFormMultipart, Form: m}, nil
	}
	return nil, nil
}

// eachMappingPair walks a YAML mapping node's key/value pairs in file
// order, calling fn for each. A zero-value (absent) node is a no-op.
func eachMappingPair(n yaml.Node, fn func(key string, val *yaml.Node) error) error {
	if n.Kind == 0 {
		return nil
	}
	var errs error
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if err := fn(key, n.Content[i+1]); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func parseTemplateScalar(n *yaml.Node) (template.Template, error) {
	return template.Parse(n.Value)
}

// nodeToJSONValue recursively converts a YAML node (the `body.json` key)
// into a JSONValue tree, parsing every string scalar as a template so
// e.g. `{"token": "{{ auth_token }}"}` renders correctly.
func nodeToJSONValue(n *yaml.Node) (JSONValue, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!null":
			return JSONValue{Kind: JSONNull}, nil
		case "!!bool":
			b, err := strconv.ParseBool(n.Value)
			if err != nil {
				return JSONValue{}, err
			}
			return JSONValue{Kind: JSONBool, Bool: b}, nil
		case "!!int", "!!float":
			f, err := strconv.ParseFloat(n.Value, 64)
			if err != nil {
				return JSONValue{}, err
			}
			return JSONValue{Kind: JSONNumber, Number: f}, nil
		default:
			t, err := template.Parse(n.Value)
			if err != nil {
				return JSONValue{}, err
			}
			return JSONValue{Kind: JSONString, Template: t}, nil
		}

	case yaml.SequenceNode:
		items := make([]JSONValue, len(n.Content))
		var errs error
		for i, child := range n.Content {
			v, err := nodeToJSONValue(child)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			items[i] = v
		}
		return JSONValue{Kind: JSONArray, Array: items}, errs

	case yaml.MappingNode:
		obj := orderedmap.New[string, JSONValue]()
		var errs error
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			v, err := nodeToJSONValue(n.Content[i+1])
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("key %q: %w", key, err))
				continue
			}
			obj.Set(key, v)
		}
		return JSONValue{Kind: JSONObject, Object: obj}, errs

	default:
		return JSONValue{Kind: JSONNull}, nil
	}
}
