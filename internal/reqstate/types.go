// Package reqstate holds the in-memory view over in-flight and historical
// HTTP exchanges that the TUI renders from. It is a merge-on-read cache in
// front of internal/db: live requests only ever live in memory, completed
// ones get cached there on first lookup so the UI doesn't re-query SQLite
// every frame.
package reqstate

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/slumberhq/slumber/internal/db"
	"github.com/slumberhq/slumber/internal/httpengine"
)

// Kind discriminates the RequestState union. Transitions are one-way:
// Building -> Loading -> (Response | RequestError), with BuildError
// reachable only from Building and terminal.
type Kind int

const (
	Building Kind = iota
	BuildError
	Loading
	Response
	RequestError
)

func (k Kind) String() string {
	switch k {
	case Building:
		return "building"
	case BuildError:
		return "build_error"
	case Loading:
		return "loading"
	case Response:
		return "response"
	case RequestError:
		return "request_error"
	default:
		return "unknown"
	}
}

// RequestState is one request's lifecycle, from the moment a build starts
// to its eventual outcome. Only the fields meaningful for Kind are set.
type RequestState struct {
	Kind Kind

	ID        uuid.UUID
	StartTime time.Time
	ProfileID *string
	RecipeID  string

	BuildErr *httpengine.RequestBuildError
	Built    *httpengine.BuiltRequest
	Exchange *httpengine.Exchange
	SendErr  *httpengine.RequestError

	// ParsedBody holds the response body decoded as a JSON tree, computed
	// once when the state enters Response (never re-decoded per frame).
	// Nil if the body isn't valid JSON.
	ParsedBody any
}

// NewBuilding starts a fresh request lifecycle.
func NewBuilding(id uuid.UUID, recipeID string, profileID *string, startTime time.Time) RequestState {
	return RequestState{Kind: Building, ID: id, RecipeID: recipeID, ProfileID: profileID, StartTime: startTime}
}

// NewBuildError terminates a lifecycle at the build stage.
func NewBuildError(id uuid.UUID, recipeID string, profileID *string, startTime time.Time, err *httpengine.RequestBuildError) RequestState {
	return RequestState{Kind: BuildError, ID: id, RecipeID: recipeID, ProfileID: profileID, StartTime: startTime, BuildErr: err}
}

// NewLoading marks a request as built and sent, awaiting a response.
func NewLoading(id uuid.UUID, recipeID string, profileID *string, startTime time.Time, built *httpengine.BuiltRequest) RequestState {
	return RequestState{Kind: Loading, ID: id, RecipeID: recipeID, ProfileID: profileID, StartTime: startTime, Built: built}
}

// NewResponse completes a lifecycle with a successful exchange.
func NewResponse(id uuid.UUID, recipeID string, profileID *string, exchange *httpengine.Exchange) RequestState {
	return RequestState{
		Kind:       Response,
		ID:         id,
		RecipeID:   recipeID,
		ProfileID:  profileID,
		StartTime:  exchange.StartTime,
		Exchange:   exchange,
		ParsedBody: parseJSONBody(exchange.Body),
	}
}

// NewRequestError completes a lifecycle with a send failure.
func NewRequestError(id uuid.UUID, recipeID string, profileID *string, startTime time.Time, err *httpengine.RequestError) RequestState {
	return RequestState{Kind: RequestError, ID: id, RecipeID: recipeID, ProfileID: profileID, StartTime: startTime, SendErr: err}
}

func parseJSONBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil
	}
	return v
}

// RequestStateSummary is the lightweight projection used for history
// lists, merged from in-memory entries and db.RequestSummary rows.
type RequestStateSummary struct {
	ID         uuid.UUID
	Kind       Kind
	StartTime  time.Time
	EndTime    *time.Time
	Method     string
	URL        string
	StatusCode *int
	Error      *string
}

func summaryFromState(s RequestState) RequestStateSummary {
	out := RequestStateSummary{ID: s.ID, Kind: s.Kind, StartTime: s.StartTime}
	switch s.Kind {
	case Loading:
		if s.Built != nil {
			out.Method = s.Built.Method
			out.URL = s.Built.URL
		}
	case Response:
		if s.Exchange != nil {
			out.Method = s.Exchange.Request.Method
			out.URL = s.Exchange.Request.URL
			out.StatusCode = &s.Exchange.StatusCode
			endTime := s.Exchange.EndTime
			out.EndTime = &endTime
		}
	case RequestError:
		if s.SendErr != nil {
			if s.SendErr.Request != nil {
				out.Method = s.SendErr.Request.Method
				out.URL = s.SendErr.Request.URL
			}
			msg := s.SendErr.Error()
			out.Error = &msg
		}
	}
	return out
}

func summaryFromRecord(r db.RequestSummary) RequestStateSummary {
	return RequestStateSummary{
		ID:         r.ID,
		Kind:       Response,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Method:     r.Method,
		URL:        r.URL,
		StatusCode: r.StatusCode,
		Error:      r.Error,
	}
}
