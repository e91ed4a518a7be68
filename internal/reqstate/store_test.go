package reqstate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/slumberhq/slumber/internal/db"
	"github.com/slumberhq/slumber/internal/httpengine"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slumber.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestUpdateReportsWhetherEntryIsNew(t *testing.T) {
	store := New(openTestDB(t), "col-1")
	id := uuid.New()
	state := NewBuilding(id, "ping", nil, time.Now())

	if isNew := store.Update(state); !isNew {
		t.Errorf("first Update should report isNew=true")
	}
	if isNew := store.Update(state); isNew {
		t.Errorf("second Update for the same ID should report isNew=false")
	}

	got, ok := store.Get(id)
	if !ok || got.Kind != Building {
		t.Errorf("Get returned %+v, ok=%v", got, ok)
	}
}

func TestLoadFallsBackToDatabaseAndCaches(t *testing.T) {
	database := openTestDB(t)
	col, err := database.EnsureCollection("./slumber.yaml", "")
	if err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	id := uuid.New()
	status := 200
	now := time.Now().UTC()
	end := now.Add(50 * time.Millisecond)
	if err := database.InsertExchange(&db.RequestRecord{
		ID:           id,
		CollectionID: col.ID,
		RecipeID:     "get-user",
		StartTime:    now,
		EndTime:      &end,
		Method:       "GET",
		URL:          "https://example.com/users/1",
		StatusCode:   &status,
		ResponseBody: []byte(`{"id":1,"name":"ada"}`),
	}); err != nil {
		t.Fatalf("InsertExchange: %v", err)
	}

	store := New(database, col.ID)
	if _, ok := store.Get(id); ok {
		t.Fatalf("expected no in-memory entry before Load")
	}

	st, ok, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok || st.Kind != Response {
		t.Fatalf("expected cached Response state, got %+v ok=%v", st, ok)
	}
	if st.Exchange.StatusCode != 200 {
		t.Errorf("got status %d", st.Exchange.StatusCode)
	}
	if m, ok := st.ParsedBody.(map[string]any); !ok || m["name"] != "ada" {
		t.Errorf("expected ParsedBody decoded eagerly, got %#v", st.ParsedBody)
	}

	cached, ok := store.Get(id)
	if !ok || cached.Kind != Response {
		t.Errorf("expected Load to populate the in-memory cache, got %+v ok=%v", cached, ok)
	}
}

func TestLoadLatestPrefersNewerInMemoryEntry(t *testing.T) {
	database := openTestDB(t)
	col, err := database.EnsureCollection("./slumber.yaml", "")
	if err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	base := time.Now().UTC()
	status := 200
	if err := database.InsertExchange(&db.RequestRecord{
		ID:           uuid.New(),
		CollectionID: col.ID,
		RecipeID:     "ping",
		StartTime:    base,
		EndTime:      &base,
		Method:       "GET",
		URL:          "https://example.com/ping",
		StatusCode:   &status,
	}); err != nil {
		t.Fatalf("InsertExchange: %v", err)
	}

	store := New(database, col.ID)

	inFlightID := uuid.New()
	store.Update(NewBuilding(inFlightID, "ping", nil, base.Add(time.Second)))

	latest, ok, err := store.LoadLatest("ping", db.AnyProfile, "")
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if !ok || latest.ID != inFlightID || latest.Kind != Building {
		t.Errorf("expected the newer in-memory Building entry to win, got %+v ok=%v", latest, ok)
	}
}

func TestLoadSummariesMergesAndDedupesByID(t *testing.T) {
	database := openTestDB(t)
	col, err := database.EnsureCollection("./slumber.yaml", "")
	if err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	persistedID := uuid.New()
	base := time.Now().UTC()
	status := 200
	if err := database.InsertExchange(&db.RequestRecord{
		ID:           persistedID,
		CollectionID: col.ID,
		RecipeID:     "ping",
		StartTime:    base,
		EndTime:      &base,
		Method:       "GET",
		URL:          "https://example.com/ping",
		StatusCode:   &status,
	}); err != nil {
		t.Fatalf("InsertExchange: %v", err)
	}

	store := New(database, col.ID)

	liveID := uuid.New()
	store.Update(NewLoading(liveID, "ping", nil, base.Add(time.Second), &httpengine.BuiltRequest{Method: "GET", URL: "https://example.com/ping"}))

	// Also stash an in-memory Response entry for the *same* ID the DB
	// already has, overriding the DB's projection with the richer one.
	status2 := 404
	store.Update(RequestState{
		Kind:      Response,
		ID:        persistedID,
		RecipeID:  "ping",
		StartTime: base,
		Exchange: &httpengine.Exchange{
			Request:    &httpengine.BuiltRequest{Method: "GET", URL: "https://example.com/ping"},
			StatusCode: status2,
			StartTime:  base,
			EndTime:    base,
		},
	})

	summaries, err := store.LoadSummaries("ping", db.AnyProfile, "", 10)
	if err != nil {
		t.Fatalf("LoadSummaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 deduped summaries, got %d: %+v", len(summaries), summaries)
	}
	if summaries[0].ID != liveID {
		t.Errorf("expected the newest (in-flight) entry first, got %+v", summaries[0])
	}
	for _, s := range summaries {
		if s.ID == persistedID && (s.StatusCode == nil || *s.StatusCode != 404) {
			t.Errorf("expected the in-memory override (404) to win over the DB row, got %+v", s)
		}
	}
}
