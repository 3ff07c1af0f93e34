package manifest

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is the embedded-database manifest backend. It satisfies the
// same Store contract as FileStore; SQLite's single connection plus busy
// timeout provides the serialized-writer guarantee.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the manifest database in dataDir and runs
// pending migrations. Pass ":memory:" for an in-memory database (tests).
func OpenSQLite(dataDir string) (*SQLiteStore, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "cvsift.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// ReadAll returns the full filename→label view.
func (s *SQLiteStore) ReadAll() (map[string]Status, error) {
	rows, err := s.db.Query("SELECT filename, label FROM manifest")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]Status)
	for rows.Next() {
		var name, label string
		if err := rows.Scan(&name, &label); err != nil {
			return nil, err
		}
		result[name] = Status(label)
	}
	return result, rows.Err()
}

// List returns all entries sorted by filename.
func (s *SQLiteStore) List() ([]Entry, error) {
	rows, err := s.db.Query("SELECT filename, label FROM manifest ORDER BY filename ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		var label string
		if err := rows.Scan(&e.Filename, &label); err != nil {
			return nil, err
		}
		e.Label = Status(label)
		result = append(result, e)
	}
	return result, rows.Err()
}

// Upsert creates or replaces the entry for filename.
func (s *SQLiteStore) Upsert(filename string, label Status) error {
	_, err := s.db.Exec(`
		INSERT INTO manifest (filename, label) VALUES (?, ?)
		ON CONFLICT(filename) DO UPDATE SET label = excluded.label`,
		filename, string(label),
	)
	return err
}

// AppendIfMissing inserts filename as pending only when absent and returns
// the label now on record.
func (s *SQLiteStore) AppendIfMissing(filename string) (Status, error) {
	if _, err := s.db.Exec(
		`INSERT INTO manifest (filename, label) VALUES (?, ?) ON CONFLICT(filename) DO NOTHING`,
		filename, string(StatusPending),
	); err != nil {
		return "", err
	}
	var label string
	if err := s.db.QueryRow("SELECT label FROM manifest WHERE filename = ?", filename).Scan(&label); err != nil {
		return "", err
	}
	return Status(label), nil
}

// Remove deletes the entry for filename, reporting whether it existed.
func (s *SQLiteStore) Remove(filename string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM manifest WHERE filename = ?", filename)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
