package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ravenlake/draftforge/internal/apperr"
	"github.com/ravenlake/draftforge/internal/models"
)

// CreateInitial persists the first document of a lineage at version 1 and
// increments the owning project's document counter. Inserting into a lineage
// that already has a version 1 fails with ErrDuplicate.
func (db *DB) CreateInitial(projectID string, typ models.DocumentType, raw []byte) (models.Document, error) {
	content, err := models.ParseContent(typ, raw)
	if err != nil {
		return models.Document{}, err
	}
	if _, err := db.GetProject(projectID); err != nil {
		return models.Document{}, err
	}

	doc := models.Document{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Type:      typ,
		Content:   content,
		Checksum:  contentChecksum(content),
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return models.Document{}, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertDocument(tx, doc); err != nil {
		return models.Document{}, err
	}
	if err := bumpDocumentCount(tx, projectID, doc.CreatedAt); err != nil {
		return models.Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Document{}, fmt.Errorf("store: commit document: %w", err)
	}
	return doc, nil
}

// CreateVersion persists a new document at max(version)+1 for the parent's
// lineage, with the parent recorded for branch tracking. The version is
// assigned inside the insert statement itself, so concurrent callers can
// never observe the same maximum; the UNIQUE(project_id, type, version)
// constraint backstops the invariant.
func (db *DB) CreateVersion(projectID, parentDocumentID string, raw []byte) (models.Document, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return models.Document{}, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	parent, err := getDocumentTx(tx, projectID, parentDocumentID)
	if err != nil {
		return models.Document{}, err
	}
	content, err := models.ParseContent(parent.Type, raw)
	if err != nil {
		return models.Document{}, err
	}

	doc := models.Document{
		ID:               uuid.NewString(),
		ProjectID:        projectID,
		Type:             parent.Type,
		Content:          content,
		Checksum:         contentChecksum(content),
		ParentDocumentID: parentDocumentID,
		CreatedAt:        time.Now().UTC(),
	}

	_, err = tx.Exec(`
		INSERT INTO documents (id, project_id, type, content, checksum, version, parent_document_id, created_at)
		SELECT ?, ?, ?, ?, ?, COALESCE(MAX(version), 0) + 1, ?, ?
		FROM documents WHERE project_id = ? AND type = ?
	`, doc.ID, doc.ProjectID, doc.Type, string(doc.Content.Bytes()), doc.Checksum,
		doc.ParentDocumentID, doc.CreatedAt, doc.ProjectID, doc.Type)
	if err != nil {
		return models.Document{}, translateInsertErr("insert version", err)
	}

	if err := tx.QueryRow(`SELECT version FROM documents WHERE id = ?`, doc.ID).Scan(&doc.Version); err != nil {
		return models.Document{}, fmt.Errorf("store: read assigned version: %w", err)
	}
	if err := bumpDocumentCount(tx, projectID, doc.CreatedAt); err != nil {
		return models.Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Document{}, fmt.Errorf("store: commit version: %w", err)
	}
	return doc, nil
}

// Latest returns the highest version for a lineage, ties broken by most
// recent creation time, or ErrNotFound when the lineage is empty.
func (db *DB) Latest(projectID string, typ models.DocumentType) (*models.Document, error) {
	row := db.conn.QueryRow(`
		SELECT id, project_id, type, content, checksum, version, COALESCE(parent_document_id, ''), created_at
		FROM documents
		WHERE project_id = ? AND type = ?
		ORDER BY version DESC, created_at DESC
		LIMIT 1
	`, projectID, typ)
	return scanDocument(row)
}

// GetDocument returns a single document scoped to its project.
func (db *DB) GetDocument(projectID, documentID string) (*models.Document, error) {
	row := db.conn.QueryRow(`
		SELECT id, project_id, type, content, checksum, version, COALESCE(parent_document_id, ''), created_at
		FROM documents
		WHERE project_id = ? AND id = ?
	`, projectID, documentID)
	return scanDocument(row)
}

// ListByProject returns all documents owned by a project, newest first.
func (db *DB) ListByProject(projectID string) ([]models.Document, error) {
	rows, err := db.conn.Query(`
		SELECT id, project_id, type, content, checksum, version, COALESCE(parent_document_id, ''), created_at
		FROM documents
		WHERE project_id = ?
		ORDER BY created_at DESC, version DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDocumentContent overwrites a document's content in place. This is a
// maintenance escape hatch; the primary path for content changes is
// CreateVersion. When ifMatch is non-empty it must equal the stored
// checksum, otherwise ErrConflict is returned.
func (db *DB) UpdateDocumentContent(projectID, documentID string, raw []byte, ifMatch string) (models.Document, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return models.Document{}, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	doc, err := getDocumentTx(tx, projectID, documentID)
	if err != nil {
		return models.Document{}, err
	}
	if ifMatch != "" && ifMatch != doc.Checksum {
		return models.Document{}, apperr.ErrConflict
	}
	content, err := models.ParseContent(doc.Type, raw)
	if err != nil {
		return models.Document{}, err
	}

	doc.Content = content
	doc.Checksum = contentChecksum(content)
	if _, err := tx.Exec(`UPDATE documents SET content = ?, checksum = ? WHERE id = ?`,
		string(content.Bytes()), doc.Checksum, doc.ID); err != nil {
		return models.Document{}, fmt.Errorf("store: update document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Document{}, fmt.Errorf("store: commit update: %w", err)
	}
	return *doc, nil
}

func insertDocument(tx *sql.Tx, doc models.Document) error {
	var parent any
	if doc.ParentDocumentID != "" {
		parent = doc.ParentDocumentID
	}
	_, err := tx.Exec(`
		INSERT INTO documents (id, project_id, type, content, checksum, version, parent_document_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.ProjectID, doc.Type, string(doc.Content.Bytes()), doc.Checksum, doc.Version, parent, doc.CreatedAt)
	if err != nil {
		return translateInsertErr("insert document", err)
	}
	return nil
}

func bumpDocumentCount(tx *sql.Tx, projectID string, now time.Time) error {
	res, err := tx.Exec(`UPDATE projects SET total_documents = total_documents + 1, updated_at = ? WHERE id = ?`,
		now, projectID)
	if err != nil {
		return fmt.Errorf("store: bump document count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func getDocumentTx(tx *sql.Tx, projectID, documentID string) (*models.Document, error) {
	row := tx.QueryRow(`
		SELECT id, project_id, type, content, checksum, version, COALESCE(parent_document_id, ''), created_at
		FROM documents
		WHERE project_id = ? AND id = ?
	`, projectID, documentID)
	return scanDocument(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	d, err := scanDocumentRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDocumentRows(row rowScanner) (models.Document, error) {
	var d models.Document
	var content string
	if err := row.Scan(&d.ID, &d.ProjectID, &d.Type, &content, &d.Checksum, &d.Version, &d.ParentDocumentID, &d.CreatedAt); err != nil {
		return models.Document{}, err
	}
	d.Content = models.RawContent([]byte(content))
	return d, nil
}

// contentChecksum is the SHA-256 hex digest of the canonical content bytes.
// It doubles as the If-Match token for the in-place update path.
func contentChecksum(c models.Content) string {
	h := sha256.Sum256(c.Bytes())
	return hex.EncodeToString(h[:])
}
