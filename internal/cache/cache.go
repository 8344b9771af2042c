// Package cache persists resolved bake-block results across process runs, a
// sqlite-backed content-addressed store keyed by the bake block's own
// source text. Bake resolution is deterministic: the same bake block
// source always resolves to the same literal sequence, so a cache hit can
// skip re-running it on the ephemeral VM entirely.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alekratz/sbl/internal/value"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Cache wraps the sqlite-backed bake-result store.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures its schema exists. path may be ":memory:" for an ephemeral,
// process-local cache (e.g. in tests).
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening bake cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing bake cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS bake_results (
	hash       TEXT PRIMARY KEY,
	row_id     TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	hits       INTEGER NOT NULL DEFAULT 0
);
`

// Key hashes a bake block's source text to its content-addressed cache key.
func Key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// encoded mirrors value.Value in a JSON-friendly shape; value.Value itself
// carries no JSON tags, since the VM's hot path never marshals it.
type encoded struct {
	Kind value.Kind `json:"kind"`
	I    int64      `json:"i,omitempty"`
	C    rune       `json:"c,omitempty"`
	S    string     `json:"s,omitempty"`
	B    bool       `json:"b,omitempty"`
	Elts []encoded  `json:"elts,omitempty"`
}

func toEncoded(v value.Value) encoded {
	e := encoded{Kind: v.Kind, I: v.I, C: v.C, S: v.S, B: v.B}
	if len(v.Elts) > 0 {
		e.Elts = make([]encoded, len(v.Elts))
		for i, elt := range v.Elts {
			e.Elts[i] = toEncoded(elt)
		}
	}
	return e
}

func (e encoded) toValue() value.Value {
	v := value.Value{Kind: e.Kind, I: e.I, C: e.C, S: e.S, B: e.B}
	if len(e.Elts) > 0 {
		v.Elts = make([]value.Value, len(e.Elts))
		for i, elt := range e.Elts {
			v.Elts[i] = elt.toValue()
		}
	}
	return v
}

// Lookup returns the cached result for a bake block whose source hashes to
// key, incrementing its hit counter on success.
func (c *Cache) Lookup(key string) ([]value.Value, bool, error) {
	var raw string
	err := c.db.QueryRow(`SELECT result FROM bake_results WHERE hash = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var enc []encoded
	if err := json.Unmarshal([]byte(raw), &enc); err != nil {
		return nil, false, err
	}
	out := make([]value.Value, len(enc))
	for i, e := range enc {
		out[i] = e.toValue()
	}

	if _, err := c.db.Exec(`UPDATE bake_results SET hits = hits + 1 WHERE hash = ?`, key); err != nil {
		return out, true, err
	}
	return out, true, nil
}

// Store records result under key. row_id is a fresh uuid identifying this
// particular write, so two distinct sessions writing the same key (a
// harmless race, since content-addressed writes are idempotent in value)
// remain individually traceable in `sbl cache stats`.
func (c *Cache) Store(key string, result []value.Value) error {
	enc := make([]encoded, len(result))
	for i, v := range result {
		enc[i] = toEncoded(v)
	}
	raw, err := json.Marshal(enc)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(
		`INSERT INTO bake_results (hash, row_id, result, created_at, hits) VALUES (?, ?, ?, ?, 0)
		 ON CONFLICT(hash) DO UPDATE SET result = excluded.result, row_id = excluded.row_id`,
		key, uuid.NewString(), string(raw), time.Now().Unix(),
	)
	return err
}

// Stat is one row of `sbl cache stats` output.
type Stat struct {
	Hash      string
	RowID     string
	CreatedAt time.Time
	Hits      int64
	Size      int64 // bytes of serialized result
}

// Stats lists every cached entry, most-recently-created first.
func (c *Cache) Stats() ([]Stat, error) {
	rows, err := c.db.Query(`SELECT hash, row_id, result, created_at, hits FROM bake_results ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stat
	for rows.Next() {
		var hash, rowID, result string
		var createdAt, hits int64
		if err := rows.Scan(&hash, &rowID, &result, &createdAt, &hits); err != nil {
			return nil, err
		}
		out = append(out, Stat{
			Hash:      hash,
			RowID:     rowID,
			CreatedAt: time.Unix(createdAt, 0),
			Hits:      hits,
			Size:      int64(len(result)),
		})
	}
	return out, rows.Err()
}

// Clear removes every cached entry.
func (c *Cache) Clear() error {
	_, err := c.db.Exec(`DELETE FROM bake_results`)
	return err
}
