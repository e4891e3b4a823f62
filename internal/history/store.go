package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rickyjim626/interpreter-client/internal/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	source_language TEXT NOT NULL DEFAULT '',
	target_language TEXT NOT NULL DEFAULT '',
	started_at      REAL NOT NULL,
	total_duration  REAL NOT NULL,
	segment_count   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS segments (
	session_id      TEXT NOT NULL,
	idx             INTEGER NOT NULL,
	start_time      REAL NOT NULL,
	end_time        REAL NOT NULL,
	original_text   TEXT NOT NULL DEFAULT '',
	translated_text TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	is_duplicate    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, idx),
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);
`

// SessionRecord is one row of the session listing.
type SessionRecord struct {
	ID             string
	SourceLanguage string
	TargetLanguage string
	StartedAt      time.Time
	TotalDuration  time.Duration
	SegmentCount   int
}

// Store persists finished sessions and their transcripts to a local SQLite
// database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// The store is written from one goroutine at a time; a single
	// connection sidesteps SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession writes a finished session and its transcript in one
// transaction. Saving the same session id again replaces the prior record.
func (s *Store) SaveSession(session *pipeline.Session) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (id, source_language, target_language, started_at, total_duration, segment_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_language = excluded.source_language,
			target_language = excluded.target_language,
			started_at      = excluded.started_at,
			total_duration  = excluded.total_duration,
			segment_count   = excluded.segment_count`,
		session.ID,
		session.SourceLanguage,
		session.TargetLanguage,
		float64(session.StartedAt.UnixMilli())/1000.0,
		session.TotalDuration.Seconds(),
		len(session.Segments),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM segments WHERE session_id = ?`, session.ID); err != nil {
		return fmt.Errorf("failed to clear prior segments: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO segments (session_id, idx, start_time, end_time, original_text, translated_text, status, is_duplicate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare segment insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range session.Segments {
		_, err := stmt.Exec(
			session.ID,
			entry.Index,
			entry.StartTime,
			entry.EndTime,
			entry.OriginalText,
			entry.TranslatedText,
			string(entry.Status),
			boolToInt(entry.IsDuplicate),
		)
		if err != nil {
			return fmt.Errorf("failed to save segment %d: %w", entry.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// ListSessions returns saved sessions, most recent first.
func (s *Store) ListSessions(limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, source_language, target_language, started_at, total_duration, segment_count
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var r SessionRecord
		var startedAt, totalDuration float64
		if err := rows.Scan(&r.ID, &r.SourceLanguage, &r.TargetLanguage, &startedAt, &totalDuration, &r.SegmentCount); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		r.StartedAt = time.UnixMilli(int64(startedAt * 1000))
		r.TotalDuration = time.Duration(totalDuration * float64(time.Second))
		records = append(records, r)
	}
	return records, rows.Err()
}

// SegmentsForSession returns the stored transcript for one session in
// segment order.
func (s *Store) SegmentsForSession(sessionID string) ([]pipeline.Entry, error) {
	rows, err := s.db.Query(`
		SELECT idx, start_time, end_time, original_text, translated_text, status, is_duplicate
		FROM segments
		WHERE session_id = ?
		ORDER BY idx`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load segments: %w", err)
	}
	defer rows.Close()

	var entries []pipeline.Entry
	for rows.Next() {
		var e pipeline.Entry
		var status string
		var isDuplicate int
		if err := rows.Scan(&e.Index, &e.StartTime, &e.EndTime, &e.OriginalText, &e.TranslatedText, &status, &isDuplicate); err != nil {
			return nil, fmt.Errorf("failed to scan segment row: %w", err)
		}
		e.Status = pipeline.EntryStatus(status)
		e.IsDuplicate = isDuplicate != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
