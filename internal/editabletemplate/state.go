// Package editabletemplate holds the state contract for presenting a
// single templated recipe field (a URL, a header value, a form field, a
// profile field) as static preview text while letting the user supply a
// temporary override, inline or via an external editor. It is the state
// layer only — the terminal rendering of that state stays out of scope
// here: a pure data-shaping layer sitting between storage and whatever
// draws it.
package editabletemplate

import (
	"github.com/slumberhq/slumber/internal/template"
)

// uiKeyType is the ui_state key_type every override is stored under.
const uiKeyType = "template_override"

// UIStore is the persistence dependency: *db.DB satisfies this directly.
type UIStore interface {
	GetUI(collectionID, keyType, key string) (value string, ok bool, err error)
	SetUI(collectionID, keyType, key, value string) error
	DeleteUI(collectionID, keyType, key string) error
}

// State is one field's override state: the original template, and
// (if present) a user-supplied override source, which may or may not
// currently parse.
type State struct {
	Original template.Template

	// Key identifies this field within its collection for session
	// persistence, e.g. "recipe:get-user:url" or
	// "recipe:get-user:header:0" (headers and query params by index).
	Key string

	// RefreshOnEdit marks components whose successful submit should
	// broadcast RefreshPreviews (a header used by many other fields'
	// previews, say), per the per-component refresh policy.
	RefreshOnEdit bool

	OverrideSource string
	OverrideParsed *template.Template
	ParseErr       error
}

// HasOverride reports whether a (possibly invalid) override is present.
func (s *State) HasOverride() bool {
	return s.OverrideSource != ""
}

// Active returns the template that should actually be rendered: the
// override if one is present and parses, otherwise the original.
func (s *State) Active() template.Template {
	if s.OverrideParsed != nil {
		return *s.OverrideParsed
	}
	return s.Original
}

func (s *State) applySource(source string) {
	s.OverrideSource = source
	parsed, err := template.Parse(source)
	if err != nil {
		s.ParseErr = err
		s.OverrideParsed = nil
		return
	}
	s.ParseErr = nil
	s.OverrideParsed = &parsed
}

func (s *State) clear() {
	s.OverrideSource = ""
	s.OverrideParsed = nil
	s.ParseErr = nil
}

// Store loads and persists override state for one open collection.
type Store struct {
	ui           UIStore
	collectionID string
}

// NewStore creates a Store scoped to one collection's UI state rows.
func NewStore(ui UIStore, collectionID string) *Store {
	return &Store{ui: ui, collectionID: collectionID}
}

// Load constructs a State for a field, reading any persisted override
// source and attempting to parse it. A parse failure is retained (both
// the source and the error) rather than discarded, so an invalid
// in-progress edit survives a restart for the user to keep fixing.
func (s *Store) Load(original template.Template, key string, refreshOnEdit bool) (*State, error) {
	st := &State{Original: original, Key: key, RefreshOnEdit: refreshOnEdit}

	source, ok, err := s.ui.GetUI(s.collectionID, uiKeyType, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return st, nil
	}
	st.applySource(source)
	return st, nil
}

// Submit persists a new override source for st and updates its parsed
// form in place. If source is identical to the original template's
// source form, the override is silently dropped instead of being
// persisted as a redundant copy of the original. A source that fails to
// parse is still persisted and retained on st alongside its ParseErr, and
// that parse error is returned. Otherwise returns whether this submission
// should trigger a RefreshPreviews broadcast.
func (s *Store) Submit(st *State, source string) (broadcast bool, err error) {
	if source == st.Original.String() {
		return s.Reset(st)
	}
	if err := s.ui.SetUI(s.collectionID, uiKeyType, st.Key, source); err != nil {
		return false, err
	}
	st.applySource(source)
	if st.ParseErr != nil {
		return false, st.ParseErr
	}
	return st.RefreshOnEdit, nil
}

// Reset removes any override for st, reverting it to the original.
func (s *Store) Reset(st *State) (broadcast bool, err error) {
	hadOverride := st.HasOverride()
	if err := s.ui.DeleteUI(s.collectionID, uiKeyType, st.Key); err != nil {
		return false, err
	}
	st.clear()
	return hadOverride && st.RefreshOnEdit, nil
}
