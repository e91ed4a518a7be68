package reqstate

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/slumberhq/slumber/internal/db"
	"github.com/slumberhq/slumber/internal/httpengine"
)

// Store is the request-state cache for one open collection. It is
// single-owner (held by the TUI controller) and guarded by one mutex: a
// mutex-protected map keyed by ID with a getOrCreate-shaped lookup,
// serving as a merge-on-read cache in front of SQLite.
type Store struct {
	mu           sync.Mutex
	entries      map[uuid.UUID]RequestState
	db           *db.DB
	collectionID string
}

// New creates a Store backed by database, scoped to one collection.
func New(database *db.DB, collectionID string) *Store {
	return &Store{
		entries:      make(map[uuid.UUID]RequestState),
		db:           database,
		collectionID: collectionID,
	}
}

// Get returns the in-memory state for id, without consulting the database.
func (s *Store) Get(id uuid.UUID) (RequestState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entries[id]
	return st, ok
}

// Update inserts or overwrites the state for state.ID, returning true iff
// no entry previously existed for that ID.
func (s *Store) Update(state RequestState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.entries[state.ID]
	s.entries[state.ID] = state
	return !existed
}

// Load returns the state for id, checking memory first and falling back
// to the database on miss. A DB hit is cached as Response before being
// returned, with its body parsed once here rather than on every redraw.
func (s *Store) Load(id uuid.UUID) (RequestState, bool, error) {
	if st, ok := s.Get(id); ok {
		return st, true, nil
	}

	record, err := s.db.GetRequest(id)
	if err != nil {
		return RequestState{}, false, err
	}
	if record == nil {
		return RequestState{}, false, nil
	}

	st, err := stateFromRecord(record)
	if err != nil {
		return RequestState{}, false, err
	}

	s.mu.Lock()
	s.entries[id] = st
	s.mu.Unlock()
	return st, true, nil
}

// LoadLatest returns the most recently started request for a recipe under
// filter, considering both the database's most recent finished exchange
// and any in-memory entry — the latter may be newer (a request still
// building or loading, not yet persisted) than anything in the database.
func (s *Store) LoadLatest(recipeID string, filter db.ProfileFilter, profileID string) (RequestState, bool, error) {
	var dbFilterID string
	if filter == db.ExactProfile {
		dbFilterID = profileID
	}
	record, err := s.db.GetLatestRequest(s.collectionID, recipeID, filter, dbFilterID)
	if err != nil {
		return RequestState{}, false, err
	}

	var fromDB RequestState
	haveDB := false
	if record != nil {
		fromDB, err = stateFromRecord(record)
		if err != nil {
			return RequestState{}, false, err
		}
		haveDB = true
		s.mu.Lock()
		s.entries[fromDB.ID] = fromDB
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	best := fromDB
	haveBest := haveDB
	for _, st := range s.entries {
		if st.RecipeID != recipeID || !matchesProfileFilter(st.ProfileID, filter, profileID) {
			continue
		}
		if !haveBest || st.StartTime.After(best.StartTime) {
			best = st
			haveBest = true
		}
	}
	return best, haveBest, nil
}

// LoadSummaries merges database history with in-memory entries for a
// recipe, deduped by ID (in-memory wins, since it reflects the freshest
// state for requests still building or loading), sorted most recent first.
func (s *Store) LoadSummaries(recipeID string, filter db.ProfileFilter, profileID string, limit int) ([]RequestStateSummary, error) {
	records, err := s.db.ListRequestSummaries(s.collectionID, recipeID, limit)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]RequestStateSummary, len(records)+8)
	for _, r := range records {
		byID[r.ID] = summaryFromRecord(r)
	}

	s.mu.Lock()
	for _, st := range s.entries {
		if st.RecipeID != recipeID || !matchesProfileFilter(st.ProfileID, filter, profileID) {
			continue
		}
		byID[st.ID] = summaryFromState(st)
	}
	s.mu.Unlock()

	out := make([]RequestStateSummary, 0, len(byID))
	for _, sum := range byID {
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesProfileFilter(profileID *string, filter db.ProfileFilter, wantProfileID string) bool {
	switch filter {
	case db.NoProfile:
		return profileID == nil
	case db.ExactProfile:
		return profileID != nil && *profileID == wantProfileID
	default:
		return true
	}
}

// stateFromRecord converts a persisted exchange into a Response state,
// decoding the header blobs InsertExchange wrote as JSON-encoded
// map[string][]string.
func stateFromRecord(r *db.RequestRecord) (RequestState, error) {
	reqHeaders, err := decodeHeaders(r.RequestHeaders)
	if err != nil {
		return RequestState{}, err
	}
	respHeaders, err := decodeHeaders(r.ResponseHeaders)
	if err != nil {
		return RequestState{}, err
	}

	built := &httpengine.BuiltRequest{
		ID:     r.ID,
		Method: r.Method,
		URL:    r.URL,
		Body:   r.RequestBody,
	}
	for name, values := range reqHeaders {
		for _, v := range values {
			built.Headers = append(built.Headers, httpengine.HeaderPair{Name: name, Value: v})
		}
	}

	if r.EndTime == nil || r.StatusCode == nil {
		return NewLoading(r.ID, r.RecipeID, r.ProfileID, r.StartTime, built), nil
	}

	var httpVersion string
	if r.HTTPVersion != nil {
		httpVersion = *r.HTTPVersion
	}

	exchange := &httpengine.Exchange{
		Request:     built,
		StatusCode:  *r.StatusCode,
		Headers:     respHeaders,
		Body:        r.ResponseBody,
		HTTPVersion: httpVersion,
		StartTime:   r.StartTime,
		EndTime:     *r.EndTime,
	}
	return NewResponse(r.ID, r.RecipeID, r.ProfileID, exchange), nil
}

func decodeHeaders(blob []byte) (http.Header, error) {
	if len(blob) == 0 {
		return http.Header{}, nil
	}
	var h http.Header
	if err := json.Unmarshal(blob, &h); err != nil {
		return nil, err
	}
	return h, nil
}

// EncodeHeaders is the inverse of decodeHeaders, used when building a
// db.RequestRecord to persist a completed exchange.
func EncodeHeaders(h http.Header) ([]byte, error) {
	if len(h) == 0 {
		return nil, nil
	}
	return json.Marshal(h)
}
