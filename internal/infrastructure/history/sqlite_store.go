// Package history persists conversation transcripts for later inspection.
package history

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/ports"
)

// SQLiteStore persists transcripts in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteStore creates (or opens) the ~/.chatwork/history/transcripts.db
// database. On open failure it degrades to the jsonl file store.
func NewSQLiteStore() *SQLiteStore {
	path := filepath.Join(userHome(), ".chatwork", "history", "transcripts.db")
	_ = os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return &SQLiteStore{path: path}
	}
	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		return &SQLiteStore{path: path}
	}
	return store
}

func (s *SQLiteStore) init() error {
	if s.db == nil {
		return os.ErrInvalid
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS transcripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT,
		session_key TEXT,
		role TEXT,
		content TEXT,
		action TEXT,
		action_ok INTEGER
	);`)
	return err
}

// Save inserts a new record.
func (s *SQLiteStore) Save(rec domain.TranscriptRecord) error {
	if s.db == nil {
		return (&FileStore{path: s.path}).Save(rec)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO transcripts
		(timestamp, session_key, role, content, action, action_ok)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Format(time.RFC3339),
		rec.SessionKey,
		string(rec.Role),
		rec.Content,
		rec.Action,
		boolToInt(rec.ActionOK),
	)
	return err
}

// Records returns transcript entries, newest first (limit/search optional).
func (s *SQLiteStore) Records(limit int, search string) ([]domain.TranscriptRecord, error) {
	if s.db == nil {
		return (&FileStore{path: s.path}).Records(limit, search)
	}
	builder := strings.Builder{}
	builder.WriteString("SELECT timestamp, session_key, role, content, action, action_ok FROM transcripts")
	var args []interface{}
	if search != "" {
		builder.WriteString(" WHERE content LIKE ? OR session_key LIKE ?")
		args = append(args, "%"+search+"%", "%"+search+"%")
	}
	builder.WriteString(" ORDER BY datetime(timestamp) DESC")
	if limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	rows, err := s.db.Query(builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []domain.TranscriptRecord
	for rows.Next() {
		var rec domain.TranscriptRecord
		var ts, role string
		var actionOK int
		if err := rows.Scan(&ts, &rec.SessionKey, &role, &rec.Content, &rec.Action, &actionOK); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			rec.Timestamp = t
		}
		rec.Role = domain.Role(role)
		rec.ActionOK = actionOK == 1
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Clear deletes all transcript entries.
func (s *SQLiteStore) Clear() error {
	if s.db == nil {
		return (&FileStore{path: s.path}).Clear()
	}
	_, err := s.db.Exec("DELETE FROM transcripts")
	return err
}

// ExportJSON writes the transcript table to a jsonl file.
func (s *SQLiteStore) ExportJSON(dest string) error {
	records, err := s.Records(0, "")
	if err != nil {
		return err
	}
	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer file.Close()
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := file.Write(append(b, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.TranscriptStore = (*SQLiteStore)(nil)
