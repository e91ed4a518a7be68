package httpengine

import (
	"context"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/slumberhq/slumber/internal/collection"
	"github.com/slumberhq/slumber/internal/template"
)

type testFields map[template.Identifier]template.Template

func (f testFields) Field(name template.Identifier) (template.Template, bool) {
	t, ok := f[name]
	return t, ok
}

func mustParse(t *testing.T, s string) template.Template {
	t.Helper()
	tmpl, err := template.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return tmpl
}

func TestBuildRendersURLHeadersQueryAndAuth(t *testing.T) {
	fields := testFields{"host": template.Raw("https://api.example.com")}
	tctx := template.NewContext(fields, nil, nil, nil, "", false)

	headers := orderedmap.New[string, template.Template]()
	headers.Set("Accept", template.Raw("application/json"))

	query := orderedmap.New[string, template.Template]()
	query.Set("verbose", template.Raw("true"))

	recipe := &collection.Recipe{
		Method:  collection.MethodGet,
		URL:     mustParse(t, "{{ host }}/users/1"),
		Headers: headers,
		Query:   query,
		Auth:    collection.Authentication{Kind: collection.AuthBearer, Token: template.Raw("secret-token")},
	}

	built, err := Build(context.Background(), tctx, recipe, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.URL != "https://api.example.com/users/1?verbose=true" {
		t.Errorf("got url %q", built.URL)
	}
	if !hasHeader(built.Headers, "Accept") {
		t.Errorf("expected Accept header, got %+v", built.Headers)
	}
	var authVal string
	for _, h := range built.Headers {
		if h.Name == "Authorization" {
			authVal = h.Value
		}
	}
	if authVal != "Bearer secret-token" {
		t.Errorf("got Authorization %q", authVal)
	}
}

func TestBuildHeaderValueTrimsOnlyLeadingTrailingCRLF(t *testing.T) {
	fields := testFields{"v": template.Raw("\r\na\nb\r\n")}
	tctx := template.NewContext(fields, nil, nil, nil, "", false)

	headers := orderedmap.New[string, template.Template]()
	headers.Set("X-Value", mustParse(t, "{{ v }}"))

	recipe := &collection.Recipe{
		Method:  collection.MethodGet,
		URL:     mustParse(t, "https://api.example.com"),
		Headers: headers,
		Query:   orderedmap.New[string, template.Template](),
	}

	built, err := Build(context.Background(), tctx, recipe, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var got string
	for _, h := range built.Headers {
		if h.Name == "X-Value" {
			got = h.Value
		}
	}
	if got != "a\nb" {
		t.Errorf("got header value %q, want %q (interior CR/LF preserved)", got, "a\nb")
	}
}

func TestBuildStreamBodyReadsFromDiskByPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "payload.bin"), []byte("streamed-bytes"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	tctx := template.NewContext(testFields{}, nil, nil, nil, dir, false)

	recipe := &collection.Recipe{
		Method:  collection.MethodPost,
		URL:     template.Raw("https://api.example.com/upload"),
		Headers: orderedmap.New[string, template.Template](),
		Query:   orderedmap.New[string, template.Template](),
		Body:    &collection.RecipeBody{Kind: collection.BodyStream, Raw: mustParse(t, `{{ file("payload.bin") }}`)},
	}

	built, err := Build(context.Background(), tctx, recipe, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Body != nil {
		t.Errorf("expected a streamed body to leave Body nil, got %q", built.Body)
	}
	if built.BodyPath != filepath.Join(dir, "payload.bin") {
		t.Errorf("got BodyPath %q", built.BodyPath)
	}
}

func TestBuildMultipartStreamsFileFieldFromDisk(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "avatar.png"), []byte("fake-png-bytes"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	tctx := template.NewContext(testFields{}, nil, nil, nil, dir, false)

	form := orderedmap.New[string, template.Template]()
	form.Set("name", template.Raw("ferris"))
	form.Set("avatar", mustParse(t, `{{ file("avatar.png") }}`))

	recipe := &collection.Recipe{
		Method:  collection.MethodPost,
		URL:     template.Raw("https://api.example.com/upload"),
		Headers: orderedmap.New[string, template.Template](),
		Query:   orderedmap.New[string, template.Template](),
		Body:    &collection.RecipeBody{Kind: collection.BodyFormMultipart, Form: form},
	}

	built, err := Build(context.Background(), tctx, recipe, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var contentType string
	for _, h := range built.Headers {
		if strings.EqualFold(h.Name, "Content-Type") {
			contentType = h.Value
		}
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("parse content type %q: %v", contentType, err)
	}

	mr := multipart.NewReader(strings.NewReader(string(built.Body)), params["boundary"])
	var sawFile bool
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		if part.FormName() == "avatar" {
			sawFile = true
			if part.FileName() != "avatar.png" {
				t.Errorf("got file part filename %q, want %q", part.FileName(), "avatar.png")
			}
		}
	}
	if !sawFile {
		t.Errorf("expected a file part for the avatar field, got %q", built.Body)
	}
}

// countingPrompter counts how many times Prompt is actually invoked, so
// the test can assert a field shared by a header and the body is only
// prompted for once.
type countingPrompter struct {
	calls int64
}

func (p *countingPrompter) Prompt(ctx context.Context, opts template.PromptOptions) (string, error) {
	atomic.AddInt64(&p.calls, 1)
	return "typed-value", nil
}

func TestBuildSharesFieldBetweenHeaderAndBody(t *testing.T) {
	shared := mustParse(t, `{{ prompt("token") }}`)
	fields := testFields{"token": shared}
	prompter := &countingPrompter{}
	tctx := template.NewContext(fields, nil, prompter, nil, "", false)

	headers := orderedmap.New[string, template.Template]()
	headers.Set("Authorization", mustParse(t, "Bearer {{ token }}"))

	recipe := &collection.Recipe{
		Method:  collection.MethodPost,
		URL:     template.Raw("https://api.example.com/login"),
		Headers: headers,
		Query:   orderedmap.New[string, template.Template](),
		Body:    &collection.RecipeBody{Kind: collection.BodyRaw, Raw: mustParse(t, "token={{ token }}")},
	}

	built, err := Build(context.Background(), tctx, recipe, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if string(built.Body) != "token=typed-value" {
		t.Errorf("got body %q", built.Body)
	}
	if prompter.calls != 1 {
		t.Errorf("prompt() invoked %d times, want exactly 1", prompter.calls)
	}
}

func TestBuildOptionsOverridesHeaderQueryAndBodyByIndex(t *testing.T) {
	tctx := template.NewContext(testFields{}, nil, nil, nil, "", false)

	headers := orderedmap.New[string, template.Template]()
	headers.Set("X-Env", template.Raw("staging"))

	query := orderedmap.New[string, template.Template]()
	query.Set("page", template.Raw("1"))

	recipe := &collection.Recipe{
		Method:  collection.MethodGet,
		URL:     template.Raw("https://api.example.com/items"),
		Headers: headers,
		Query:   query,
		Body:    &collection.RecipeBody{Kind: collection.BodyRaw, Raw: template.Raw("original")},
	}

	opts := &BuildOptions{
		Headers: map[int]template.Template{0: template.Raw("production")},
		Query:   map[int]template.Template{0: template.Raw("2")},
		Body:    &collection.RecipeBody{Kind: collection.BodyRaw, Raw: template.Raw("overridden")},
	}

	built, err := Build(context.Background(), tctx, recipe, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var headerVal string
	for _, h := range built.Headers {
		if h.Name == "X-Env" {
			headerVal = h.Value
		}
	}
	if headerVal != "production" {
		t.Errorf("got header X-Env %q, want %q", headerVal, "production")
	}
	if built.URL != "https://api.example.com/items?page=2" {
		t.Errorf("got url %q", built.URL)
	}
	if string(built.Body) != "overridden" {
		t.Errorf("got body %q", built.Body)
	}
}

func TestBuildJSONBodyPreservesKeyOrder(t *testing.T) {
	tctx := template.NewContext(testFields{}, nil, nil, nil, "", false)

	obj := orderedmap.New[string, collection.JSONValue]()
	obj.Set("zeta", collection.JSONValue{Kind: collection.JSONString, Template: template.Raw("z")})
	obj.Set("alpha", collection.JSONValue{Kind: collection.JSONString, Template: template.Raw("a")})

	recipe := &collection.Recipe{
		Method:  collection.MethodPost,
		URL:     template.Raw("https://api.example.com/data"),
		Headers: orderedmap.New[string, template.Template](),
		Query:   orderedmap.New[string, template.Template](),
		Body:    &collection.RecipeBody{Kind: collection.BodyJSON, JSON: collection.JSONValue{Kind: collection.JSONObject, Object: obj}},
	}

	built, err := Build(context.Background(), tctx, recipe, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	zetaIdx := indexOf(string(built.Body), `"zeta"`)
	alphaIdx := indexOf(string(built.Body), `"alpha"`)
	if zetaIdx < 0 || alphaIdx < 0 || zetaIdx > alphaIdx {
		t.Errorf("expected authored key order (zeta before alpha), got body %s", built.Body)
	}
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func TestBuildCurlDeterministic(t *testing.T) {
	built := &BuiltRequest{
		Method:   "POST",
		URL:      "https://api.example.com/users",
		Headers:  []HeaderPair{{Name: "Content-Type", Value: "application/json"}},
		Body:     []byte(`{"name":"a"}`),
		BodyKind: collection.BodyJSON,
	}
	got := BuildCurl(built)
	want := `curl --request 'POST' --url 'https://api.example.com/users' --header 'Content-Type: application/json' --data-raw '{"name":"a"}'`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildCurlOmitsAuthorizationHeaderInFavorOfAuthFlag(t *testing.T) {
	built := &BuiltRequest{
		Method:      "GET",
		URL:         "https://api.example.com/me",
		Headers:     []HeaderPair{{Name: "Authorization", Value: "Bearer secret-token"}},
		AuthKind:    collection.AuthBearer,
		BearerToken: "secret-token",
	}
	got := BuildCurl(built)
	want := `curl --request 'GET' --url 'https://api.example.com/me' --oauth2-bearer 'secret-token'`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildCurlEmitsAtPathForMultipartFileField(t *testing.T) {
	built := &BuiltRequest{
		Method:   "POST",
		URL:      "https://api.example.com/upload",
		BodyKind: collection.BodyFormMultipart,
		FormFields: []FormField{
			{Name: "title", Value: "vacation"},
			{Name: "avatar", Value: "/tmp/avatar.png", IsFile: true},
		},
	}
	got := BuildCurl(built)
	want := `curl --request 'POST' --url 'https://api.example.com/upload' --form 'title=vacation' --form 'avatar=@/tmp/avatar.png'`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildCurlStreamBodyEmitsAtPath(t *testing.T) {
	built := &BuiltRequest{
		Method:   "PUT",
		URL:      "https://api.example.com/blobs/1",
		BodyKind: collection.BodyStream,
		BodyPath: "/tmp/payload.bin",
	}
	got := BuildCurl(built)
	want := `curl --request 'PUT' --url 'https://api.example.com/blobs/1' --data-binary '@/tmp/payload.bin'`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
