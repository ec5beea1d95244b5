package group

import (
	"context"
	"database/sql"
	"errors"

	"murmur/internal/apperr"
	"murmur/internal/user"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const groupColumns = `id, name, description, profile_pic, admin_id, created_at, updated_at`

func scanGroup(row interface{ Scan(...any) error }) (*Group, error) {
	g := &Group{}
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.ProfilePic, &g.AdminID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("group not found")
		}
		return nil, err
	}
	return g, nil
}

// Create inserts the group and its initial member set in one transaction.
func (r *Repository) Create(ctx context.Context, g *Group, memberIDs []int64) (*Group, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `INSERT INTO groups (name, description, profile_pic, admin_id)
              VALUES ($1, $2, $3, $4)
              RETURNING ` + groupColumns
	created, err := scanGroup(tx.QueryRowContext(ctx, query, g.Name, g.Description, g.ProfilePic, g.AdminID))
	if err != nil {
		return nil, err
	}

	for _, id := range memberIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			created.ID, id); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *Repository) ByID(ctx context.Context, id int64) (*Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`
	return scanGroup(r.db.QueryRowContext(ctx, query, id))
}

func (r *Repository) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`,
		groupID, userID).Scan(&exists)
	return exists, err
}

func (r *Repository) MemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = $1`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// IDsForMember answers the connect-time room resolution query: every group
// the user currently belongs to.
func (r *Repository) IDsForMember(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT group_id FROM group_members WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ForMember returns the user's groups with members populated, most recently
// updated first.
func (r *Repository) ForMember(ctx context.Context, userID int64) ([]Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups
              WHERE id IN (SELECT group_id FROM group_members WHERE user_id = $1)
              ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		members, err := r.membersOf(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Members = members
	}
	return groups, nil
}

func (r *Repository) membersOf(ctx context.Context, groupID int64) ([]user.User, error) {
	query := `SELECT u.id, u.email, u.full_name, u.profile_pic, u.status, u.created_at, u.updated_at
              FROM users u
              JOIN group_members gm ON gm.user_id = u.id
              WHERE gm.group_id = $1
              ORDER BY u.full_name`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.ProfilePic, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, u)
	}
	return members, rows.Err()
}

func (r *Repository) AddMembers(ctx context.Context, groupID int64, userIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range userIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			groupID, id); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE groups SET updated_at = now() WHERE id = $1`, groupID); err != nil {
		return err
	}
	return tx.Commit()
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
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
