package editabletemplate

import (
	"testing"

	"github.com/slumberhq/slumber/internal/template"
)

// memUIStore is an in-memory UIStore double, keyed the same way db.DB
// keys its ui_state table.
type memUIStore struct {
	values map[string]string
}

func newMemUIStore() *memUIStore {
	return &memUIStore{values: map[string]string{}}
}

func (m *memUIStore) rowKey(collectionID, keyType, key string) string {
	return collectionID + "\x00" + keyType + "\x00" + key
}

func (m *memUIStore) GetUI(collectionID, keyType, key string) (string, bool, error) {
	v, ok := m.values[m.rowKey(collectionID, keyType, key)]
	return v, ok, nil
}

func (m *memUIStore) SetUI(collectionID, keyType, key, value string) error {
	m.values[m.rowKey(collectionID, keyType, key)] = value
	return nil
}

func (m *memUIStore) DeleteUI(collectionID, keyType, key string) error {
	delete(m.values, m.rowKey(collectionID, keyType, key))
	return nil
}

func mustParseTemplate(t *testing.T, src string) template.Template {
	t.Helper()
	tpl, err := template.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return tpl
}

func TestLoadWithNoOverrideReturnsOriginal(t *testing.T) {
	ui := newMemUIStore()
	store := NewStore(ui, "col1")
	original := mustParseTemplate(t, "{{ host }}/users")

	st, err := store.Load(original, "recipe.url", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.HasOverride() {
		t.Fatalf("expected no override, got %+v", st)
	}
	if st.Active().String() != original.String() {
		t.Errorf("Active() = %q, want original %q", st.Active().String(), original.String())
	}
}

func TestSubmitPersistsAndActivatesOverride(t *testing.T) {
	ui := newMemUIStore()
	store := NewStore(ui, "col1")
	original := mustParseTemplate(t, "{{ host }}/users")

	st, err := store.Load(original, "recipe.url", true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	broadcast, err := store.Submit(st, "{{ host }}/v2/users")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !broadcast {
		t.Errorf("expected RefreshOnEdit component to request a broadcast on submit")
	}
	if !st.HasOverride() || st.ParseErr != nil {
		t.Fatalf("expected a valid override, got %+v", st)
	}
	if st.Active().String() != "{{ host }}/v2/users" {
		t.Errorf("Active() = %q, want the override", st.Active().String())
	}

	// Reloading a fresh State should recover the persisted override.
	reloaded, err := store.Load(original, "recipe.url", true)
	if err != nil {
		t.Fatalf("Load (reload): %v", err)
	}
	if reloaded.Active().String() != "{{ host }}/v2/users" {
		t.Errorf("reloaded Active() = %q, want the override", reloaded.Active().String())
	}
}

func TestSubmitEqualToOriginalSilentlyDropsOverride(t *testing.T) {
	ui := newMemUIStore()
	store := NewStore(ui, "col1")
	original := mustParseTemplate(t, "{{ host }}/users")

	st, err := store.Load(original, "recipe.url", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := store.Submit(st, "{{ host }}/v2/users"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !st.HasOverride() {
		t.Fatalf("expected an override to be set up before re-submitting the original")
	}

	if _, err := store.Submit(st, original.String()); err != nil {
		t.Fatalf("Submit (back to original): %v", err)
	}
	if st.HasOverride() {
		t.Errorf("expected override to be silently dropped when resubmitted as the original, got %+v", st)
	}
	if _, ok, _ := ui.GetUI("col1", uiKeyType, "recipe.url"); ok {
		t.Errorf("expected the persisted row to be removed, not just the in-memory state")
	}
}

func TestSubmitInvalidSourceRetainsSourceAndError(t *testing.T) {
	ui := newMemUIStore()
	store := NewStore(ui, "col1")
	original := mustParseTemplate(t, "{{ host }}/users")

	st, err := store.Load(original, "recipe.url", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	bad := "{{ unterminated"
	if _, err := store.Submit(st, bad); err == nil {
		t.Fatalf("expected Submit to surface the parse error for %q", bad)
	}
	if st.OverrideSource != bad {
		t.Errorf("expected the invalid source to be retained, got %q", st.OverrideSource)
	}
	if st.ParseErr == nil {
		t.Errorf("expected ParseErr to be set for an invalid override")
	}
	if st.OverrideParsed != nil {
		t.Errorf("expected no parsed override while invalid")
	}
	// An invalid override still isn't usable for rendering, so Active
	// falls back to the original.
	if st.Active().String() != original.String() {
		t.Errorf("Active() with an invalid override = %q, want original", st.Active().String())
	}
}

func TestResetRemovesOverrideAndBroadcastsOnlyIfOneExisted(t *testing.T) {
	ui := newMemUIStore()
	store := NewStore(ui, "col1")
	original := mustParseTemplate(t, "{{ host }}/users")

	st, err := store.Load(original, "recipe.url", true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Resetting with no override present should be a no-op, no broadcast.
	broadcast, err := store.Reset(st)
	if err != nil {
		t.Fatalf("Reset (no-op): %v", err)
	}
	if broadcast {
		t.Errorf("expected no broadcast when resetting a State with no override")
	}

	if _, err := store.Submit(st, "{{ host }}/v2/users"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	broadcast, err = store.Reset(st)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !broadcast {
		t.Errorf("expected a broadcast when removing a live override on a RefreshOnEdit component")
	}
	if st.HasOverride() {
		t.Errorf("expected override cleared after Reset")
	}
	if st.Active().String() != original.String() {
		t.Errorf("Active() after Reset = %q, want original", st.Active().String())
	}
	if _, ok, _ := ui.GetUI("col1", uiKeyType, "recipe.url"); ok {
		t.Errorf("expected the persisted row removed after Reset")
	}
}

func TestLoadRetainsPreviouslyPersistedInvalidOverride(t *testing.T) {
	ui := newMemUIStore()
	if err := ui.SetUI("col1", uiKeyType, "recipe.url", "{{ unterminated"); err != nil {
		t.Fatalf("SetUI: %v", err)
	}
	store := NewStore(ui, "col1")
	original := mustParseTemplate(t, "{{ host }}/users")

	st, err := store.Load(original, "recipe.url", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.OverrideSource != "{{ unterminated" {
		t.Errorf("expected the invalid source to be loaded back, got %q", st.OverrideSource)
	}
	if st.ParseErr == nil {
		t.Errorf("expected ParseErr to be set after loading an invalid persisted override")
	}
}

func TestStoreIsScopedPerCollection(t *testing.T) {
	ui := newMemUIStore()
	original := mustParseTemplate(t, "{{ host }}/users")

	storeA := NewStore(ui, "colA")
	stA, err := storeA.Load(original, "recipe.url", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := storeA.Submit(stA, "{{ host }}/a"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	storeB := NewStore(ui, "colB")
	stB, err := storeB.Load(original, "recipe.url", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stB.HasOverride() {
		t.Errorf("expected collection colB to see no override set for colA, got %+v", stB)
	}
}
