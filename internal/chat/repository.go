package chat

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"murmur/internal/apperr"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const messageColumns = `m.id, m.sender_id, m.receiver_id, m.group_id,
    m.text, m.image, m.audio, m.file_url, m.file_name, m.file_type,
    m.seen_at, m.expire_at, m.is_deleted, m.created_at`

// notDeletedFor excludes hard-deleted messages and messages the viewer hid
// for themselves. The caller appends the viewer placeholder and closes the
// parenthesis.
const notDeletedFor = `m.is_deleted = FALSE
    AND NOT EXISTS (
        SELECT 1 FROM message_deletions d
        WHERE d.message_id = m.id AND d.user_id = `

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	m := &Message{}
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.GroupID,
		&m.Text, &m.Image, &m.Audio, &m.FileURL, &m.FileName, &m.FileType,
		&m.SeenAt, &m.ExpireAt, &m.IsDeleted, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("message not found")
		}
		return nil, err
	}
	return m, nil
}

func (r *Repository) Insert(ctx context.Context, m *Message) (*Message, error) {
	query := `INSERT INTO messages
              (sender_id, receiver_id, group_id, text, image, audio, file_url, file_name, file_type)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
              RETURNING ` + messageColumns
	return scanMessage(r.db.QueryRowContext(ctx, query,
		m.SenderID, m.ReceiverID, m.GroupID,
		m.Text, m.Image, m.Audio, m.FileURL, m.FileName, m.FileType))
}

func (r *Repository) ByID(ctx context.Context, id int64) (*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m WHERE m.id = $1`
	return scanMessage(r.db.QueryRowContext(ctx, query, id))
}

// Conversation returns the direct messages between two users visible to the
// viewer, oldest first.
func (r *Repository) Conversation(ctx context.Context, viewerID, otherID int64) ([]Message, error) {
	query := `SELECT ` + messageColumns + `, '', '' FROM messages m
              WHERE ((m.sender_id = $1 AND m.receiver_id = $2)
                  OR (m.sender_id = $2 AND m.receiver_id = $1))
                AND ` + notDeletedFor + `$1)
              ORDER BY m.created_at ASC`
	return r.queryMessages(ctx, query, viewerID, otherID)
}

// GroupMessages returns a group's messages visible to the viewer, oldest
// first, with sender display fields joined in.
func (r *Repository) GroupMessages(ctx context.Context, groupID, viewerID int64) ([]Message, error) {
	query := `SELECT ` + messageColumns + `, u.full_name, u.profile_pic
              FROM messages m
              JOIN users u ON u.id = m.sender_id
              WHERE m.group_id = $1
                AND ` + notDeletedFor + `$2)
              ORDER BY m.created_at ASC`
	return r.queryMessages(ctx, query, groupID, viewerID)
}

func (r *Repository) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m := Message{}
		err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.GroupID,
			&m.Text, &m.Image, &m.Audio, &m.FileURL, &m.FileName, &m.FileType,
			&m.SeenAt, &m.ExpireAt, &m.IsDeleted, &m.CreatedAt,
			&m.SenderName, &m.SenderPic)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkSeen stamps every unseen qualifying message in one batch. The
// seen_at IS NULL predicate makes re-invocation a no-op for already-marked
// rows, so the timestamps never move.
func (r *Repository) MarkSeen(ctx context.Context, viewerID int64, t Target, seenAt, expireAt time.Time) (int64, error) {
	var query string
	var args []any
	if t.IsGroup() {
		query = `UPDATE messages
                 SET seen_at = $3, expire_at = $4
                 WHERE group_id = $1 AND sender_id <> $2 AND seen_at IS NULL`
		args = []any{t.ID, viewerID, seenAt, expireAt}
	} else {
		query = `UPDATE messages
                 SET seen_at = $3, expire_at = $4
                 WHERE sender_id = $1 AND receiver_id = $2 AND seen_at IS NULL`
		args = []any{t.ID, viewerID, seenAt, expireAt}
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// HardDelete removes the row; cascades clear its per-user deletions.
func (r *Repository) HardDelete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	return err
}

// AddDeletion hides the message for one user. Set semantics: repeating the
// call changes nothing.
func (r *Repository) AddDeletion(ctx context.Context, messageID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO message_deletions (message_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		messageID, userID)
	return err
}

// PartnerIDs lists the distinct users this user has exchanged direct
// messages with.
func (r *Repository) PartnerIDs(ctx context.Context, userID int64) ([]int64, error) {
	query := `SELECT DISTINCT CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END
              FROM messages m
              WHERE m.receiver_id IS NOT NULL
                AND (m.sender_id = $1 OR m.receiver_id = $1)`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
