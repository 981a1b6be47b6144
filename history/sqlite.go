package history

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS history (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	line TEXT NOT NULL,
	time INTEGER NOT NULL
)`

// SQLiteStore keeps the history in a SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	limit int
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, limit int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening history database")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "setting busy timeout")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating history table")
	}
	return &SQLiteStore{db: db, limit: limit}, nil
}

func (s *SQLiteStore) Append(line string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "append history")
	}
	defer tx.Rollback()
	if err := insert(tx, Entry{Line: line, Time: time.Now()}); err != nil {
		return err
	}
	if err := s.trim(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "append history")
}

func insert(tx *sql.Tx, e Entry) error {
	_, err := tx.Exec("INSERT INTO history (line, time) VALUES (?, ?)", e.Line, e.Time.UnixNano())
	return errors.Wrap(err, "insert history")
}

// trim drops the entries beyond the limit.
func (s *SQLiteStore) trim(tx *sql.Tx) error {
	if s.limit <= 0 {
		return nil
	}
	_, err := tx.Exec(`DELETE FROM history WHERE id NOT IN (
		SELECT id FROM history ORDER BY id DESC LIMIT ?)`, s.limit)
	return errors.Wrap(err, "trim history")
}

func (s *SQLiteStore) Entries(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT line, time FROM (
		SELECT id, line, time FROM history ORDER BY id DESC LIMIT ?)
		ORDER BY id ASC`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query history")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			line string
			nano int64
		)
		if err := rows.Scan(&line, &nano); err != nil {
			return nil, errors.Wrap(err, "scan history")
		}
		entries = append(entries, Entry{Line: line, Time: time.Unix(0, nano)})
	}
	return entries, errors.Wrap(rows.Err(), "query history")
}

func (s *SQLiteStore) Save(path string) error {
	entries, err := s.Entries(0)
	if err != nil {
		return err
	}
	return writeFile(path, entries)
}

func (s *SQLiteStore) Load(path string) error {
	entries, err := readFile(path)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "load history")
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM history"); err != nil {
		return errors.Wrap(err, "clear history")
	}
	for _, e := range newest(entries, s.limit) {
		if err := insert(tx, e); err != nil {
			return err
		}
	}
	log.Debugf("loaded %d history entries from %s", len(entries), path)
	return errors.Wrap(tx.Commit(), "load history")
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
