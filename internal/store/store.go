// Package store provides SQLite-backed persistence for projects, documents,
// and notifications.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ravenlake/draftforge/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'created',
	total_documents INTEGER NOT NULL DEFAULT 0,
	input           TEXT NOT NULL DEFAULT '',
	input_type      TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id                 TEXT PRIMARY KEY,
	project_id         TEXT NOT NULL REFERENCES projects(id),
	type               TEXT NOT NULL,
	content            TEXT NOT NULL,
	checksum           TEXT NOT NULL DEFAULT '',
	version            INTEGER NOT NULL,
	parent_document_id TEXT,
	created_at         DATETIME NOT NULL,
	UNIQUE(project_id, type, version)
);

CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id);
CREATE INDEX IF NOT EXISTS idx_documents_lineage ON documents(project_id, type);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	type       TEXT NOT NULL,
	title      TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	priority   TEXT NOT NULL DEFAULT 'medium',
	status     TEXT NOT NULL DEFAULT 'unread',
	created_at DATETIME NOT NULL,
	read_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status);
`

// Store defines the persistence operations the rest of the service depends
// on. Consumers should depend on this interface rather than the concrete
// *DB type to facilitate testing with fakes.
type Store interface {
	CreateProject(p models.Project, input models.Content) (models.Project, models.Document, error)
	GetProject(id string) (*models.Project, error)
	ListProjects(limit, offset int, status models.ProjectStatus) ([]models.Project, int, error)
	SetProjectStatus(id string, status models.ProjectStatus) error
	EnsureProject(id, name string) (*models.Project, error)

	CreateInitial(projectID string, typ models.DocumentType, raw []byte) (models.Document, error)
	CreateVersion(projectID, parentDocumentID string, raw []byte) (models.Document, error)
	Latest(projectID string, typ models.DocumentType) (*models.Document, error)
	GetDocument(projectID, documentID string) (*models.Document, error)
	ListByProject(projectID string) ([]models.Document, error)
	UpdateDocumentContent(projectID, documentID string, raw []byte, ifMatch string) (models.Document, error)

	InsertNotification(n models.Notification) (models.Notification, error)
	GetNotification(id string) (*models.Notification, error)
	ListNotifications(limit, offset int, includeArchived bool) ([]models.Notification, int, error)
	UnreadCount() (int, error)
	MarkRead(id string) (*models.Notification, error)
	MarkAllRead() (int64, error)
	Archive(id string) (*models.Notification, error)
	CleanupArchived(olderThan time.Time) (int64, error)

	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

// DB wraps a sql.DB with draftforge-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	// _txlock=immediate makes transactions take the write lock at Begin, so
	// concurrent version writers queue on the busy timeout instead of
	// failing a deferred read-to-write upgrade.
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
