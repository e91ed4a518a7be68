// Package db is the SQLite-backed persistence layer: one row per
// collection file slumber has ever opened, one row per HTTP exchange
// recorded against a recipe, and a small key/value table for
// per-collection UI state (selected profile, pane layout, and the like).
package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// DB wraps a connection to the SQLite database. SetMaxOpenConns(1) makes
// the single *sql.DB connection a de facto mutex, which is what lets
// MergeCollections run as one transaction without worrying about another
// goroutine's statements interleaving.
type DB struct {
	conn *sql.DB
}

// Open creates (or opens) the SQLite database at path, enables WAL mode so
// concurrent TUI reads don't block the HTTP engine's writes, and brings
// the schema up to date via embedded goose migrations.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	migrationsFS, err := fs.Sub(MigrationFS, "migrations")
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations sub-fs: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, migrationsFS)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying *sql.DB for packages that need raw access
// (tests mostly).
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// --- Collections ---

// Collection is a row in the collections table: one per collection file
// slumber has opened, keyed by its canonicalized filesystem path.
type Collection struct {
	ID        string
	Path      string
	Name      string
	CreatedAt string
}

// canonicalID derives a stable collection ID from its absolute path. Using
// a content hash of the path (rather than a random UUID) means re-running
// EnsureCollection for the same file is idempotent without a read before
// the insert.
func canonicalID(absPath string) string {
	sum := sha256.Sum256([]byte(absPath))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(hex.EncodeToString(sum[:16]))).String()
}

// EnsureCollection resolves path to an absolute form and returns the
// collection row for it, inserting one if this is the first time this
// file has been opened. name is the collection's current display name
// (may be empty); re-opening the same file with a new name refreshes the
// stored one rather than leaving the first name it was ever opened with.
func (d *DB) EnsureCollection(path, name string) (*Collection, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve collection path: %w", err)
	}
	id := canonicalID(abs)

	_, err = d.conn.Exec(
		`INSERT INTO collections (id, path, name) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET name = excluded.name`,
		id, abs, name,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	row := d.conn.QueryRow(`SELECT id, path, name, created_at FROM collections WHERE path = ?`, abs)
	c := &Collection{}
	var storedName *string
	if err := row.Scan(&c.ID, &c.Path, &storedName, &c.CreatedAt); err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	if storedName != nil {
		c.Name = *storedName
	}
	return c, nil
}

// DeleteCollection removes a collection and, via ON DELETE CASCADE, all
// requests and ui_state rows scoped to it.
func (d *DB) DeleteCollection(collectionID string) error {
	_, err := d.conn.Exec(`DELETE FROM collections WHERE id = ?`, collectionID)
	if err != nil {
		return fmt.Errorf("delete collection %s: %w", collectionID, err)
	}
	return nil
}

// MergeCollections moves every request and ui_state row from src to dst,
// then deletes src, all in one transaction. Used when a collection file
// is renamed or moved: slumber notices the old path is gone and a new one
// has appeared with the same content, and folds the old collection's
// history into the new row rather than starting it over.
//
// ui_state rows use INSERT OR REPLACE on the move: dst may already hold a
// value for a (key_type, key) pair src also has (e.g. both recall a
// "selected profile"), and the composite primary key would otherwise
// collide. src's value wins, matching "the collection being merged away
// was the one just used."
func (d *DB) MergeCollections(dstID, srcID string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`UPDATE requests SET collection_id = ? WHERE collection_id = ?`, dstID, srcID); err != nil {
		return fmt.Errorf("merge requests: %w", err)
	}

	rows, err := tx.Query(`SELECT key_type, key, value FROM ui_state WHERE collection_id = ?`, srcID)
	if err != nil {
		return fmt.Errorf("read src ui_state: %w", err)
	}
	type kv struct{ keyType, key, value string }
	var moved []kv
	for rows.Next() {
		var r kv
		if err := rows.Scan(&r.keyType, &r.key, &r.value); err != nil {
			rows.Close() //nolint:errcheck
			return fmt.Errorf("scan src ui_state: %w", err)
		}
		moved = append(moved, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close() //nolint:errcheck
		return fmt.Errorf("read src ui_state: %w", err)
	}
	rows.Close() //nolint:errcheck

	for _, r := range moved {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO ui_state (collection_id, key_type, key, value) VALUES (?, ?, ?, ?)`,
			dstID, r.keyType, r.key, r.value,
		); err != nil {
			return fmt.Errorf("merge ui_state: %w", err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM ui_state WHERE collection_id = ?`, srcID); err != nil {
		return fmt.Errorf("clear src ui_state: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM collections WHERE id = ?`, srcID); err != nil {
		return fmt.Errorf("delete src collection: %w", err)
	}

	return tx.Commit()
}

// --- Requests (recorded HTTP exchanges) ---

// RequestRecord is one recorded HTTP exchange: a request that was built
// and sent, plus its response or error if the exchange has finished.
type RequestRecord struct {
	ID              uuid.UUID
	CollectionID    string
	RecipeID        string
	ProfileID       *string
	StartTime       time.Time
	EndTime         *time.Time
	Method          string
	URL             string
	RequestHeaders  []byte // JSON-encoded map[string][]string
	RequestBody     []byte
	StatusCode      *int
	ResponseHeaders []byte
	ResponseBody    []byte
	HTTPVersion     *string
	Error           *string
}

const requestColumns = `id, collection_id, recipe_id, profile_id, start_time, end_time, method, url, request_headers, request_body, status_code, response_headers, response_body, http_version, error`

func scanRequest(scanner interface{ Scan(...any) error }, r *RequestRecord) error {
	var id string
	var startTime string
	var endTime *string
	if err := scanner.Scan(
		&id, &r.CollectionID, &r.RecipeID, &r.ProfileID, &startTime, &endTime, &r.Method, &r.URL,
		&r.RequestHeaders, &r.RequestBody, &r.StatusCode, &r.ResponseHeaders, &r.ResponseBody, &r.HTTPVersion, &r.Error,
	); err != nil {
		return err
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("parse request id: %w", err)
	}
	r.ID = parsedID
	r.StartTime, err = time.Parse(time.RFC3339Nano, startTime)
	if err != nil {
		return fmt.Errorf("parse start_time: %w", err)
	}
	if endTime != nil {
		t, err := time.Parse(time.RFC3339Nano, *endTime)
		if err != nil {
			return fmt.Errorf("parse end_time: %w", err)
		}
		r.EndTime = &t
	}
	return nil
}

// InsertExchange records a new exchange (request built, not yet sent, or
// already finished — EndTime nil means still in flight).
func (d *DB) InsertExchange(r *RequestRecord) error {
	var endTime *string
	if r.EndTime != nil {
		s := r.EndTime.Format(time.RFC3339Nano)
		endTime = &s
	}
	_, err := d.conn.Exec(
		`INSERT INTO requests (id, collection_id, recipe_id, profile_id, start_time, end_time, method, url, request_headers, request_body, status_code, response_headers, response_body, http_version, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.CollectionID, r.RecipeID, r.ProfileID, r.StartTime.Format(time.RFC3339Nano), endTime,
		r.Method, r.URL, r.RequestHeaders, r.RequestBody, r.StatusCode, r.ResponseHeaders, r.ResponseBody, r.HTTPVersion, r.Error,
	)
	if err != nil {
		return fmt.Errorf("insert request %s: %w", r.ID, err)
	}
	return nil
}

// GetRequest fetches one exchange by ID.
func (d *DB) GetRequest(id uuid.UUID) (*RequestRecord, error) {
	row := d.conn.QueryRow(`SELECT `+requestColumns+` FROM requests WHERE id = ?`, id.String())
	r := &RequestRecord{}
	if err := scanRequest(row, r); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("get request %s: %w", id, err)
	}
	return r, nil
}

// ProfileFilter selects how GetLatestRequest matches a request's profile.
type ProfileFilter int

const (
	// AnyProfile matches the most recent request for the recipe
	// regardless of which profile (if any) was selected when it ran.
	AnyProfile ProfileFilter = iota
	// NoProfile matches only requests sent with no profile selected.
	NoProfile
	// ExactProfile matches only requests sent with the given profile ID.
	ExactProfile
)

// GetLatestRequest returns the most recently started exchange for a
// recipe, optionally narrowed to a specific profile. This backs the
// response preview shown for a recipe in the TUI, and the request()
// template function.
func (d *DB) GetLatestRequest(collectionID, recipeID string, filter ProfileFilter, profileID string) (*RequestRecord, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE collection_id = ? AND recipe_id = ?`
	args := []any{collectionID, recipeID}
	switch filter {
	case NoProfile:
		query += ` AND profile_id IS NULL`
	case ExactProfile:
		query += ` AND profile_id = ?`
		args = append(args, profileID)
	}
	query += ` ORDER BY start_time DESC LIMIT 1`

	row := d.conn.QueryRow(query, args...)
	r := &RequestRecord{}
	if err := scanRequest(row, r); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("get latest request for recipe %s: %w", recipeID, err)
	}
	return r, nil
}

// RequestSummary is the lightweight projection of a RequestRecord used for
// history lists, omitting the (potentially large) header/body blobs.
type RequestSummary struct {
	ID         uuid.UUID
	StartTime  time.Time
	EndTime    *time.Time
	Method     string
	URL        string
	StatusCode *int
	Error      *string
}

// ListRequestSummaries returns recent exchanges for a recipe, most recent
// first.
func (d *DB) ListRequestSummaries(collectionID, recipeID string, limit int) ([]RequestSummary, error) {
	rows, err := d.conn.Query(
		`SELECT id, start_time, end_time, method, url, status_code, error
		 FROM requests WHERE collection_id = ? AND recipe_id = ?
		 ORDER BY start_time DESC LIMIT ?`,
		collectionID, recipeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list request summaries: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var summaries []RequestSummary
	for rows.Next() {
		var s RequestSummary
		var id, startTime string
		var endTime *string
		if err := rows.Scan(&id, &startTime, &endTime, &s.Method, &s.URL, &s.StatusCode, &s.Error); err != nil {
			return nil, fmt.Errorf("scan request summary: %w", err)
		}
		s.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse summary id: %w", err)
		}
		s.StartTime, err = time.Parse(time.RFC3339Nano, startTime)
		if err != nil {
			return nil, fmt.Errorf("parse summary start_time: %w", err)
		}
		if endTime != nil {
			t, err := time.Parse(time.RFC3339Nano, *endTime)
			if err != nil {
				return nil, fmt.Errorf("parse summary end_time: %w", err)
			}
			s.EndTime = &t
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// --- UI state ---

// GetUI fetches one piece of per-collection UI state (e.g. the selected
// profile ID, under key_type "selected_profile"). ok is false if no value
// has ever been set.
func (d *DB) GetUI(collectionID, keyType, key string) (value string, ok bool, err error) {
	row := d.conn.QueryRow(
		`SELECT value FROM ui_state WHERE collection_id = ? AND key_type = ? AND key = ?`,
		collectionID, keyType, key,
	)
	if err := row.Scan(&value); err == sql.ErrNoRows {
		return "", false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("get ui_state %s/%s: %w", keyType, key, err)
	}
	return value, true, nil
}

// SetUI upserts one piece of per-collection UI state.
func (d *DB) SetUI(collectionID, keyType, key, value string) error {
	_, err := d.conn.Exec(
		`INSERT INTO ui_state (collection_id, key_type, key, value) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection_id, key_type, key) DO UPDATE SET value = excluded.value`,
		collectionID, keyType, key, value,
	)
	if err != nil {
		return fmt.Errorf("set ui_state %s/%s: %w", keyType, key, err)
	}
	return nil
}

// DeleteUI removes one piece of per-collection UI state entirely, as
// opposed to SetUI with an empty value (which would leave a row behind
// recording an intentionally-empty value).
func (d *DB) DeleteUI(collectionID, keyType, key string) error {
	_, err := d.conn.Exec(
		`DELETE FROM ui_state WHERE collection_id = ? AND key_type = ? AND key = ?`,
		collectionID, keyType, key,
	)
	if err != nil {
		return fmt.Errorf("delete ui_state %s/%s: %w", keyType, key, err)
	}
	return nil
}
