package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ravenlake/draftforge/internal/apperr"
	"github.com/ravenlake/draftforge/internal/models"
)

// InsertNotification appends a notification row. Missing fields are filled
// with defaults (unread, medium priority, fresh ID and timestamp).
func (db *DB) InsertNotification(n models.Notification) (models.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = models.NotifUnread
	}
	if n.Priority == "" {
		n.Priority = models.PriorityMedium
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.Exec(`
		INSERT INTO notifications (id, project_id, type, title, message, priority, status, created_at, read_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.ProjectID, n.Type, n.Title, n.Message, n.Priority, n.Status, n.CreatedAt, n.ReadAt)
	if err != nil {
		return models.Notification{}, translateInsertErr("insert notification", err)
	}
	return n, nil
}

// GetNotification returns a notification by ID.
func (db *DB) GetNotification(id string) (*models.Notification, error) {
	row := db.conn.QueryRow(`
		SELECT id, project_id, type, title, message, priority, status, created_at, read_at
		FROM notifications WHERE id = ?
	`, id)
	return scanNotification(row)
}

// ListNotifications returns a page of notifications, newest first. Archived
// rows are excluded from the default view but retained in storage.
func (db *DB) ListNotifications(limit, offset int, includeArchived bool) ([]models.Notification, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	where := "WHERE status != ?"
	args := []any{models.NotifArchived}
	if includeArchived {
		where = ""
		args = nil
	}

	var total int
	if err := db.conn.QueryRow("SELECT count(*) FROM notifications "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count notifications: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, project_id, type, title, message, priority, status, created_at, read_at
		FROM notifications `+where+`
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotificationRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// UnreadCount returns the number of unread notifications.
func (db *DB) UnreadCount() (int, error) {
	var count int
	err := db.conn.QueryRow(`SELECT count(*) FROM notifications WHERE status = ?`, models.NotifUnread).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: unread count: %w", err)
	}
	return count, nil
}

// MarkRead marks a notification read and stamps read_at. Re-marking an
// already-read notification is a no-op and keeps the original read_at, so
// the unread count is decremented exactly once.
func (db *DB) MarkRead(id string) (*models.Notification, error) {
	_, err := db.conn.Exec(`
		UPDATE notifications SET status = ?, read_at = ?
		WHERE id = ? AND status = ?
	`, models.NotifRead, time.Now().UTC(), id, models.NotifUnread)
	if err != nil {
		return nil, fmt.Errorf("store: mark read: %w", err)
	}
	return db.GetNotification(id)
}

// MarkAllRead marks every unread notification read with a shared read_at.
func (db *DB) MarkAllRead() (int64, error) {
	res, err := db.conn.Exec(`
		UPDATE notifications SET status = ?, read_at = ?
		WHERE status = ?
	`, models.NotifRead, time.Now().UTC(), models.NotifUnread)
	if err != nil {
		return 0, fmt.Errorf("store: mark all read: %w", err)
	}
	return res.RowsAffected()
}

// Archive removes a notification from the default list view while keeping
// the row. Archiving twice is a no-op.
func (db *DB) Archive(id string) (*models.Notification, error) {
	_, err := db.conn.Exec(`
		UPDATE notifications SET status = ? WHERE id = ? AND status != ?
	`, models.NotifArchived, id, models.NotifArchived)
	if err != nil {
		return nil, fmt.Errorf("store: archive: %w", err)
	}
	return db.GetNotification(id)
}

// CleanupArchived hard-deletes archived notifications created before the
// cutoff and reports how many were removed.
func (db *DB) CleanupArchived(olderThan time.Time) (int64, error) {
	res, err := db.conn.Exec(`
		DELETE FROM notifications WHERE status = ? AND created_at < ?
	`, models.NotifArchived, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("store: cleanup archived: %w", err)
	}
	return res.RowsAffected()
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	n, err := scanNotificationRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func scanNotificationRow(row rowScanner) (models.Notification, error) {
	var n models.Notification
	var readAt sql.NullTime
	if err := row.Scan(&n.ID, &n.ProjectID, &n.Type, &n.Title, &n.Message, &n.Priority, &n.Status, &n.CreatedAt, &readAt); err != nil {
		return models.Notification{}, err
	}
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	return n, nil
}
