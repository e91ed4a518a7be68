package tui

import (
	"github.com/google/uuid"

	"github.com/slumberhq/slumber/internal/collection"
	"github.com/slumberhq/slumber/internal/httpengine"
)

// Msg is anything the controller's message loop can process. Every
// background task (an HTTP send, a collection reload, an editor
// subprocess finishing) reports its result as a Msg posted back through
// the controller's queue rather than mutating shared state directly.
type Msg interface {
	isMsg()
}

type baseMsg struct{}

func (baseMsg) isMsg() {}

// CollectionStartReload is posted by the file watcher the instant it
// sees a data-modifying event, before parsing has even started, so the
// view can show a "reloading" indicator immediately.
type CollectionStartReload struct {
	baseMsg
	Path string
}

// CollectionEndReload carries the parse result of a reload kicked off by
// a prior CollectionStartReload.
type CollectionEndReload struct {
	baseMsg
	Path       string
	Collection *collection.Collection
	Err        error
}

// CollectionEdit requests that the collection file be opened in the
// user's editor.
type CollectionEdit struct {
	baseMsg
	Path string
}

// CopyRequestUrl/Body/Curl copy a rendered request's respective
// representation to the system clipboard.
type CopyRequestUrl struct {
	baseMsg
	Built *httpengine.BuiltRequest
}

type CopyRequestBody struct {
	baseMsg
	Built *httpengine.BuiltRequest
}

type CopyRequestCurl struct {
	baseMsg
	Built *httpengine.BuiltRequest
}

// CopyText copies an arbitrary string to the clipboard (a response
// body, a header value, an override's source text).
type CopyText struct {
	baseMsg
	Text string
}

// SaveFile writes Data to Path, reporting failure via Err.
type SaveFile struct {
	baseMsg
	Path string
	Data []byte
	Err  error
}

// EditFile yields the terminal to an external editor for Path, then
// drains the input buffer and redraws on return. Err is populated once
// the editor subprocess completes (or fails to start).
type EditFile struct {
	baseMsg
	Path string
	Err  error
}

// HttpBeginRequest starts a send for one recipe against one profile.
// The controller spawns a background task for it; the task's progress
// is reported back as HttpLoading then HttpComplete.
type HttpBeginRequest struct {
	baseMsg
	RecipeID  collection.RecipeId
	Recipe    *collection.Recipe
	ProfileID *collection.ProfileId
}

// HttpBuildError is posted when rendering the recipe into a request
// fails before anything is sent over the network.
type HttpBuildError struct {
	baseMsg
	RequestID uuid.UUID
	RecipeID  collection.RecipeId
	Err       *httpengine.RequestBuildError
}

// HttpLoading is posted once a request has been built and the send is
// in flight.
type HttpLoading struct {
	baseMsg
	RequestID uuid.UUID
	RecipeID  collection.RecipeId
	Built     *httpengine.BuiltRequest
}

// HttpComplete is posted when a send finishes, successfully or not.
// Exactly one of Exchange/Err is set.
type HttpComplete struct {
	baseMsg
	RequestID uuid.UUID
	RecipeID  collection.RecipeId
	Exchange  *httpengine.Exchange
	Err       *httpengine.RequestError
}

// Input carries one translated keybinding Action plus the raw event it
// came from, for components that want the raw event (text entry)
// alongside the high-level action.
type Input struct {
	baseMsg
	Action string
	Raw    any
}

// Notify posts a toast-style message to the UI.
type Notify struct {
	baseMsg
	Level   string // "info", "warning", "error"
	Message string
}

// PromptStart/ConfirmStart/SelectStart open the corresponding modal.
type PromptStart struct {
	baseMsg
	Label     string
	Default   string
	Sensitive bool
	Respond   func(answer string, cancelled bool)
}

type ConfirmStart struct {
	baseMsg
	Message string
	Respond func(confirmed bool)
}

type SelectStart struct {
	baseMsg
	Label   string
	Options []string
	Respond func(index int, cancelled bool)
}

// TemplatePreview is posted when a field's rendered preview should be
// refreshed (a RefreshPreviews broadcast from an editabletemplate
// submit, or a periodic re-render of a preview that embeds request()).
type TemplatePreview struct {
	baseMsg
	Key string
}

// Quit requests a graceful shutdown: in-flight requests are allowed to
// finish.
type Quit struct{ baseMsg }

// ForceQuit requests immediate shutdown, short-circuiting straight to a
// final redraw.
type ForceQuit struct{ baseMsg }
