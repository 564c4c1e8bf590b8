package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"chatbank/pkg/banktypes"
)

// SQLiteRepository persists the session collection as a JSON blob in a
// key/value table, keeping the same key→blob layout as the file adapter.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLiteRepository opens (creating if needed) a SQLite-backed repository.
func OpenSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS bank_kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bank_kv table: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Load reads the session blob. An absent row is an empty collection.
func (r *SQLiteRepository) Load() ([]*banktypes.Session, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM bank_kv WHERE key = ?", StorageKey).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var blob storageBlob
	if err := json.Unmarshal([]byte(value), &blob); err != nil {
		return nil, fmt.Errorf("session store corrupt: %w", err)
	}
	return blob.Sessions, nil
}

// Save upserts the whole collection under the storage key.
func (r *SQLiteRepository) Save(sessions []*banktypes.Session) error {
	data, err := json.Marshal(storageBlob{Sessions: sessions})
	if err != nil {
		return fmt.Errorf("failed to serialize sessions: %w", err)
	}

	_, err = r.db.Exec(
		"INSERT INTO bank_kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		StorageKey, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to write session store: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
