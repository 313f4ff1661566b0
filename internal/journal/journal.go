// internal/journal/journal.go
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"deckhand/internal/types/options"
)

// Entry statuses. The journal is an audit trail only: the engine's own
// container/name registry stays the single durability mechanism for
// rollover-conflict detection.
const (
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
	StatusCancelled = "cancelled"
	StatusConflict  = "conflict"
)

// Entry is one recorded install or update attempt.
type Entry struct {
	ID        int64     `json:"id"`
	Container string    `json:"container"`
	Operation string    `json:"operation"` // install | update
	Stage     string    `json:"stage,omitempty"`
	FromImage string    `json:"from_image,omitempty"`
	ToImage   string    `json:"to_image,omitempty"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal persists install/update attempts in a local sqlite database.
type Journal struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Open initializes the journal, creating directory and schema as needed.
func Open(dbPath string, logger *logrus.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db, logger: logger}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS rollover_events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            container_name TEXT NOT NULL,
            operation TEXT NOT NULL,
            stage TEXT,
            from_image TEXT,
            to_image TEXT,
            status TEXT NOT NULL,
            message TEXT,
            created_at TEXT NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_events_container ON rollover_events(container_name);
        CREATE INDEX IF NOT EXISTS idx_events_created_at ON rollover_events(created_at);
    `)
	if err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	return nil
}

// Record appends an entry and fills in its ID and timestamp.
func (j *Journal) Record(e *Entry) error {
	e.CreatedAt = time.Now().UTC()

	result, err := j.db.Exec(`
        INSERT INTO rollover_events (
            container_name, operation, stage, from_image, to_image, status, message, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Container,
		e.Operation,
		e.Stage,
		e.FromImage,
		e.ToImage,
		e.Status,
		e.Message,
		e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record journal entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	e.ID = id

	j.logger.Debugf("recorded journal entry %d: %s %s (%s)", id, e.Operation, e.Container, e.Status)
	return nil
}

// History returns entries matching the options, newest first.
func (j *Journal) History(opts options.HistoryOptions) ([]Entry, error) {
	query := `
        SELECT id, container_name, operation, stage, from_image, to_image, status, message, created_at
        FROM rollover_events WHERE 1=1`
	var args []any

	if opts.Container != "" {
		query += " AND container_name = ?"
		args = append(args, opts.Container)
	}
	if !opts.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, opts.Since.UTC().Format(time.RFC3339))
	}

	query += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(
			&e.ID, &e.Container, &e.Operation, &e.Stage,
			&e.FromImage, &e.ToImage, &e.Status, &e.Message, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
