package httpengine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/pretty"
	"golang.org/x/sync/errgroup"

	"github.com/slumberhq/slumber/internal/collection"
	"github.com/slumberhq/slumber/internal/template"
)

// Build renders recipe's URL, headers, query parameters and authentication
// concurrently, then renders the body once those finish. Body is always
// rendered last: a multi-use profile field (an auth token referenced by
// both a header and the body, say) must finish evaluating for the header
// before the body stage starts reading it from the shared per-render
// cache, or a streamed body could race ahead of a field it depends on.
func Build(ctx context.Context, tctx *template.Context, recipe *collection.Recipe, opts *BuildOptions) (*BuiltRequest, error) {
	built := &BuiltRequest{ID: uuid.New(), Method: string(recipe.Method)}

	g, gctx := errgroup.WithContext(ctx)

	var urlValue template.Value
	g.Go(func() error {
		v, err := renderURL(gctx, tctx, recipe)
		if err != nil {
			return &RequestBuildError{Field: "url", Cause: err}
		}
		urlValue = v
		return nil
	})

	headers := make([]HeaderPair, recipe.Headers.Len())
	i := 0
	for pair := recipe.Headers.Oldest(); pair != nil; pair = pair.Next() {
		idx, name, tmpl := i, pair.Key, pair.Value
		if override, ok := opts.headerOverride(idx); ok {
			tmpl = override
		}
		i++
		g.Go(func() error {
			v, err := template.RenderValue(gctx, tctx, tmpl)
			if err != nil {
				return &RequestBuildError{Field: fmt.Sprintf("header %q", name), Cause: err}
			}
			headers[idx] = HeaderPair{Name: name, Value: trimHeaderValue(v.String())}
			return nil
		})
	}

	query := make([]HeaderPair, recipe.Query.Len())
	i = 0
	for pair := recipe.Query.Oldest(); pair != nil; pair = pair.Next() {
		idx, name, tmpl := i, pair.Key, pair.Value
		if override, ok := opts.queryOverride(idx); ok {
			tmpl = override
		}
		i++
		g.Go(func() error {
			v, err := template.RenderValue(gctx, tctx, tmpl)
			if err != nil {
				return &RequestBuildError{Field: fmt.Sprintf("query param %q", name), Cause: err}
			}
			query[idx] = HeaderPair{Name: name, Value: v.String()}
			return nil
		})
	}

	var auth renderedAuth
	g.Go(func() error {
		a, err := renderAuthentication(gctx, tctx, recipe.Auth)
		if err != nil {
			return &RequestBuildError{Field: "authentication", Cause: err}
		}
		auth = a
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	fullURL := urlValue.String()
	if len(query) > 0 {
		fullURL = appendQuery(fullURL, query)
	}
	built.URL = fullURL
	built.Headers = headers
	built.AuthKind = recipe.Auth.Kind
	built.BasicUser = auth.user
	built.BasicPass = auth.pass
	built.BearerToken = auth.token
	if auth.header != nil {
		built.Headers = append(built.Headers, *auth.header)
	}
	built.Sensitive = urlValue.Sensitive

	body := opts.body(recipe.Body)
	if body != nil {
		built.BodyKind = body.Kind
		rb, err := renderBody(ctx, tctx, body)
		if err != nil {
			return nil, &RequestBuildError{Field: "body", Cause: err}
		}
		built.Body = rb.Bytes
		built.BodyPath = rb.Path
		built.FormFields = rb.Fields
		built.Sensitive = built.Sensitive || rb.Sensitive
		if rb.ContentType != "" && !hasHeader(built.Headers, "Content-Type") {
			built.Headers = append(built.Headers, HeaderPair{Name: "Content-Type", Value: rb.ContentType})
		}
	}

	return built, nil
}

// BuildURL renders only the URL and query string, for previews that don't
// need headers, auth or body (e.g. an address-bar-style display).
func BuildURL(ctx context.Context, tctx *template.Context, recipe *collection.Recipe, opts *BuildOptions) (string, error) {
	v, err := renderURL(ctx, tctx, recipe)
	if err != nil {
		return "", &RequestBuildError{Field: "url", Cause: err}
	}
	s := v.String()
	if recipe.Query.Len() > 0 {
		pairs := make([]HeaderPair, 0, recipe.Query.Len())
		i := 0
		for pair := recipe.Query.Oldest(); pair != nil; pair = pair.Next() {
			idx, name, tmpl := i, pair.Key, pair.Value
			if override, ok := opts.queryOverride(idx); ok {
				tmpl = override
			}
			i++
			rv, err := template.RenderValue(ctx, tctx, tmpl)
			if err != nil {
				return "", &RequestBuildError{Field: fmt.Sprintf("query param %q", name), Cause: err}
			}
			pairs = append(pairs, HeaderPair{Name: name, Value: rv.String()})
		}
		s = appendQuery(s, pairs)
	}
	return s, nil
}

// BuildBody renders only the body, for a standalone body preview pane.
func BuildBody(ctx context.Context, tctx *template.Context, recipe *collection.Recipe, opts *BuildOptions) ([]byte, error) {
	body := opts.body(recipe.Body)
	if body == nil {
		return nil, nil
	}
	rb, err := renderBody(ctx, tctx, body)
	if err != nil {
		return nil, &RequestBuildError{Field: "body", Cause: err}
	}
	return rb.Bytes, nil
}

func renderURL(ctx context.Context, tctx *template.Context, recipe *collection.Recipe) (template.Value, error) {
	return template.RenderValue(ctx, tctx, recipe.URL)
}

// renderedAuth carries both the Authorization header actually sent on the
// wire and the raw, unencoded credentials BuildCurl needs to emit
// --user/--oauth2-bearer instead of a pre-encoded header value.
type renderedAuth struct {
	header *HeaderPair
	user   string
	pass   string
	token  string
}

func renderAuthentication(ctx context.Context, tctx *template.Context, auth collection.Authentication) (renderedAuth, error) {
	switch auth.Kind {
	case collection.AuthNone:
		return renderedAuth{}, nil
	case collection.AuthBasic:
		user, err := template.Render(ctx, tctx, auth.Username)
		if err != nil {
			return renderedAuth{}, err
		}
		pass, err := template.Render(ctx, tctx, auth.Password)
		if err != nil {
			return renderedAuth{}, err
		}
		encoded := basicAuthValue(user, pass)
		return renderedAuth{
			header: &HeaderPair{Name: "Authorization", Value: "Basic " + encoded},
			user:   user,
			pass:   pass,
		}, nil
	case collection.AuthBearer:
		token, err := template.Render(ctx, tctx, auth.Token)
		if err != nil {
			return renderedAuth{}, err
		}
		return renderedAuth{
			header: &HeaderPair{Name: "Authorization", Value: "Bearer " + token},
			token:  token,
		}, nil
	default:
		return renderedAuth{}, nil
	}
}

// renderedBody is renderBody's result: the wire bytes (or, for a streamed
// body sourced from a single file, the path to stream from instead), the
// Content-Type the body implies (empty if the recipe should decide its
// own, e.g. a raw body with an explicit header), the rendered form fields
// for form_urlencoded/multipart bodies (nil otherwise, used only by
// BuildCurl), and whether any rendered value was sensitive.
type renderedBody struct {
	Bytes       []byte
	Path        string
	ContentType string
	Fields      []FormField
	Sensitive   bool
}

func renderBody(ctx context.Context, tctx *template.Context, body *collection.RecipeBody) (renderedBody, error) {
	switch body.Kind {
	case collection.BodyRaw:
		v, err := template.RenderValue(ctx, tctx, body.Raw)
		if err != nil {
			return renderedBody{}, err
		}
		return renderedBody{Bytes: v.Bytes, Sensitive: v.Sensitive}, nil

	case collection.BodyStream:
		out, err := template.RenderStream(ctx, tctx, body.Raw)
		if err != nil {
			return renderedBody{}, err
		}
		if out.Source != nil {
			return renderedBody{Path: out.Source.Path}, nil
		}
		b, err := io.ReadAll(out.Reader)
		if err != nil {
			return renderedBody{}, err
		}
		return renderedBody{Bytes: b, Sensitive: out.Sensitive}, nil

	case collection.BodyJSON:
		var buf bytes.Buffer
		sensitive, err := renderJSONValue(ctx, tctx, body.JSON, &buf)
		if err != nil {
			return renderedBody{}, err
		}
		return renderedBody{Bytes: pretty.Pretty(buf.Bytes()), ContentType: "application/json", Sensitive: sensitive}, nil

	case collection.BodyFormURLEncoded:
		values := url.Values{}
		var fields []FormField
		sensitive := false
		for pair := body.Form.Oldest(); pair != nil; pair = pair.Next() {
			v, err := template.RenderValue(ctx, tctx, pair.Value)
			if err != nil {
				return renderedBody{}, fmt.Errorf("field %q: %w", pair.Key, err)
			}
			values.Add(pair.Key, v.String())
			fields = append(fields, FormField{Name: pair.Key, Value: v.String()})
			sensitive = sensitive || v.Sensitive
		}
		return renderedBody{Bytes: []byte(values.Encode()), ContentType: "application/x-www-form-urlencoded", Fields: fields, Sensitive: sensitive}, nil

	case collection.BodyFormMultipart:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		var fields []FormField
		sensitive := false
		for pair := body.Form.Oldest(); pair != nil; pair = pair.Next() {
			out, err := template.RenderStream(ctx, tctx, pair.Value)
			if err != nil {
				return renderedBody{}, fmt.Errorf("field %q: %w", pair.Key, err)
			}
			if out.Source != nil {
				if err := writeMultipartFile(w, pair.Key, out.Source.Path); err != nil {
					return renderedBody{}, fmt.Errorf("field %q: %w", pair.Key, err)
				}
				fields = append(fields, FormField{Name: pair.Key, Value: out.Source.Path, IsFile: true})
				continue
			}
			v, err := io.ReadAll(out.Reader)
			if err != nil {
				return renderedBody{}, fmt.Errorf("field %q: %w", pair.Key, err)
			}
			if err := w.WriteField(pair.Key, string(v)); err != nil {
				return renderedBody{}, fmt.Errorf("field %q: %w", pair.Key, err)
			}
			fields = append(fields, FormField{Name: pair.Key, Value: string(v)})
			sensitive = sensitive || out.Sensitive
		}
		if err := w.Close(); err != nil {
			return renderedBody{}, err
		}
		return renderedBody{Bytes: buf.Bytes(), ContentType: w.FormDataContentType(), Fields: fields, Sensitive: sensitive}, nil

	default:
		return renderedBody{}, nil
	}
}

// writeMultipartFile streams a multipart field's value directly from disk
// via CreateFormFile + io.Copy, mirroring reqwest's Part::file instead of
// buffering the file's contents into a string field.
func writeMultipartFile(w *multipart.Writer, fieldName, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	part, err := w.CreateFormFile(fieldName, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// renderJSONValue writes v's rendered JSON form into buf in authored key
// order, returning whether any string leaf rendered a sensitive value.
func renderJSONValue(ctx context.Context, tctx *template.Context, v collection.JSONValue, buf *bytes.Buffer) (bool, error) {
	switch v.Kind {
	case collection.JSONNull:
		buf.WriteString("null")
		return false, nil
	case collection.JSONBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return false, nil
	case collection.JSONNumber:
		buf.WriteString(strconv.FormatFloat(v.Number, 'g', -1, 64))
		return false, nil
	case collection.JSONString:
		rv, err := template.RenderValue(ctx, tctx, v.Template)
		if err != nil {
			return false, err
		}
		encoded, err := json.Marshal(rv.String())
		if err != nil {
			return false, err
		}
		buf.Write(encoded)
		return rv.Sensitive, nil
	case collection.JSONArray:
		buf.WriteByte('[')
		sensitive := false
		for i, item := range v.Array {
			if i > 0 {
				buf.WriteByte(',')
			}
			s, err := renderJSONValue(ctx, tctx, item, buf)
			if err != nil {
				return false, err
			}
			sensitive = sensitive || s
		}
		buf.WriteByte(']')
		return sensitive, nil
	case collection.JSONObject:
		buf.WriteByte('{')
		sensitive := false
		first := true
		for pair := v.Object.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			keyJSON, err := json.Marshal(pair.Key)
			if err != nil {
				return false, err
			}
			buf.Write(keyJSON)
			buf.WriteByte(':')
			s, err := renderJSONValue(ctx, tctx, pair.Value, buf)
			if err != nil {
				return false, err
			}
			sensitive = sensitive || s
		}
		buf.WriteByte('}')
		return sensitive, nil
	default:
		return false, nil
	}
}

// trimHeaderValue trims leading/trailing CR/LF runs only, preserving any
// interior whitespace the template produced. It does not guard against
// response splitting via interior CR/LF — a value containing one is sent
// as authored.
func trimHeaderValue(s string) string {
	return strings.Trim(s, "\r\n")
}

func hasHeader(headers []HeaderPair, name string) bool {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}

func basicAuthValue(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

func appendQuery(rawURL string, pairs []HeaderPair) string {
	if len(pairs) == 0 {
		return rawURL
	}
	var sb strings.Builder
	sb.WriteString(rawURL)
	if strings.Contains(rawURL, "?") {
		sb.WriteByte('&')
	} else {
		sb.WriteByte('?')
	}
	for i, p := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.Name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
	}
	return sb.String()
}
