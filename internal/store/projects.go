package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/ravenlake/draftforge/internal/apperr"
	"github.com/ravenlake/draftforge/internal/models"
)

// CreateProject inserts a project together with its RAW_INPUT v1 document in
// a single transaction, so the initial status and the first document are
// assigned atomically.
func (db *DB) CreateProject(p models.Project, input models.Content) (models.Project, models.Document, error) {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = models.StatusCreated
	p.TotalDocuments = 1
	p.CreatedAt = now
	p.UpdatedAt = now

	doc := models.Document{
		ID:        uuid.NewString(),
		ProjectID: p.ID,
		Type:      models.DocRawInput,
		Content:   input,
		Checksum:  contentChecksum(input),
		Version:   1,
		CreatedAt: now,
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return models.Project{}, models.Document{}, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO projects (id, name, description, status, total_documents, input, input_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Description, p.Status, p.TotalDocuments, p.Input, p.InputType, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return models.Project{}, models.Document{}, translateInsertErr("insert project", err)
	}

	if err := insertDocument(tx, doc); err != nil {
		return models.Project{}, models.Document{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Project{}, models.Document{}, fmt.Errorf("store: commit project: %w", err)
	}
	return p, doc, nil
}

// EnsureProject returns the named project, auto-provisioning a minimal
// placeholder in created status when it does not exist. This tolerates a
// completion ingest arriving without an explicit prior project creation.
func (db *DB) EnsureProject(id, name string) (*models.Project, error) {
	p, err := db.GetProject(id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	placeholder := models.Project{
		ID:        id,
		Name:      name,
		Status:    models.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = db.conn.Exec(`
		INSERT INTO projects (id, name, status, total_documents, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`, placeholder.ID, placeholder.Name, placeholder.Status, placeholder.CreatedAt, placeholder.UpdatedAt)
	if err != nil {
		// A concurrent ingest may have provisioned it first.
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return db.GetProject(id)
		}
		return nil, fmt.Errorf("store: provision placeholder project: %w", err)
	}
	return &placeholder, nil
}

// GetProject returns a project by ID.
func (db *DB) GetProject(id string) (*models.Project, error) {
	var p models.Project
	err := db.conn.QueryRow(`
		SELECT id, name, description, status, total_documents, input, input_type, created_at, updated_at
		FROM projects WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.TotalDocuments, &p.Input, &p.InputType, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get project: %w", err)
	}
	return &p, nil
}

// ListProjects returns a page of projects, newest first, optionally filtered
// by status, along with the total row count for the filter.
func (db *DB) ListProjects(limit, offset int, status models.ProjectStatus) ([]models.Project, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if status != "" {
		where = "WHERE status = ?"
		args = append(args, status)
	}

	var total int
	if err := db.conn.QueryRow("SELECT count(*) FROM projects "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count projects: %w", err)
	}

	query := strings.Join([]string{
		`SELECT id, name, description, status, total_documents, input, input_type, created_at, updated_at FROM projects`,
		where,
		`ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
	}, " ")
	rows, err := db.conn.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.TotalDocuments, &p.Input, &p.InputType, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// SetProjectStatus updates the status field only. Documents counters and the
// rest of the row are untouched to minimise lost-update risk.
func (db *DB) SetProjectStatus(id string, status models.ProjectStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, status)
	}
	res, err := db.conn.Exec(`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: set project status: %w", err)
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

func translateInsertErr(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %s", apperr.ErrDuplicate, op)
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
