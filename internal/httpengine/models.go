// Package httpengine builds recipes into concrete HTTP requests, sends
// them, and reports the result. Building and sending are separate steps
// (Build then Send) so the TUI can show a rendered request — method, URL,
// headers, body — before committing to the network call, and so a build
// failure (an unknown template field, say) never touches the network at
// all.
package httpengine

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/slumberhq/slumber/internal/collection"
)

// HeaderPair is one rendered header, kept in authored order for display
// and cURL export even though the net/http.Header map the request
// actually uses does not preserve it.
type HeaderPair struct {
	Name  string
	Value string
}

// FormField is one rendered multipart/form_urlencoded field. IsFile marks
// a multipart field whose value is a filesystem path streamed from disk
// rather than a literal value, so BuildCurl can emit curl's `@path` form
// upload syntax instead of quoting the path as a plain string.
type FormField struct {
	Name   string
	Value  string
	IsFile bool
}

// BuiltRequest is a recipe rendered into a concrete, sendable request.
type BuiltRequest struct {
	ID      uuid.UUID
	Method  string
	URL     string
	Headers []HeaderPair
	Body    []byte

	// BodyPath is set instead of Body for a BodyStream body sourced from a
	// single file() call: Send opens it lazily rather than holding the
	// whole thing in memory.
	BodyPath string

	// BodyKind and FormFields let BuildCurl reproduce the body using the
	// same shape the recipe authored it in (--data-raw, --data-urlencode,
	// or --form) rather than flattening every body kind into one form.
	BodyKind   collection.BodyKind
	FormFields []FormField

	// AuthKind and the fields below carry the rendered, unencoded
	// credentials so BuildCurl can
	// emit --user/--oauth2-bearer directly; the Authorization header
	// used to actually send the request is derived from these and kept
	// out of the --header list when exporting curl.
	AuthKind    collection.AuthKind
	BasicUser   string
	BasicPass   string
	BearerToken string

	// Sensitive is true if any rendered field (a prompt() answer marked
	// sensitive, or a profile field flagged as such) contributed to this
	// request, so displays can mask it by default.
	Sensitive bool
}

func (b *BuiltRequest) httpHeader() http.Header {
	h := make(http.Header, len(b.Headers))
	for _, p := range b.Headers {
		h.Add(p.Name, p.Value)
	}
	return h
}

// RequestBuildError reports which part of a recipe (url, a specific
// header, query, authentication, or body) failed to render, and why.
type RequestBuildError struct {
	Field string
	Cause error
}

func (e *RequestBuildError) Error() string {
	return "build " + e.Field + ": " + e.Cause.Error()
}

func (e *RequestBuildError) Unwrap() error { return e.Cause }

// RequestError is a request that built successfully but failed to
// complete on the wire (DNS, TCP, TLS, timeout, or a body stream error).
type RequestError struct {
	Request *BuiltRequest
	Cause   error
}

func (e *RequestError) Error() string {
	return "send request: " + e.Cause.Error()
}

func (e *RequestError) Unwrap() error { return e.Cause }

// Exchange is a completed HTTP round trip.
type Exchange struct {
	Request     *BuiltRequest
	StatusCode  int
	Headers     http.Header
	Body        []byte
	HTTPVersion string
	StartTime   time.Time
	EndTime     time.Time
}

func (e *Exchange) Duration() time.Duration { return e.EndTime.Sub(e.StartTime) }
