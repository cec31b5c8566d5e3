package group

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository handles group data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new group and its creator as the ADMIN member
func (r *Repository) Create(ctx context.Context, name string, description *string, inviteCode string, createdBy int64) (*Group, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO groups (name, description, invite_code, created_by_user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, description, invite_code, created_by_user_id, created_at
	`

	group := &Group{}
	err = tx.QueryRowContext(ctx, query, name, description, inviteCode, createdBy).Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.InviteCode,
		&group.CreatedByUserID,
		&group.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)`,
		group.ID, createdBy, MemberRoleAdmin,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add group creator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group: %w", err)
	}

	return group, nil
}

// GetByID retrieves a group by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Group, error) {
	query := `
		SELECT id, name, description, invite_code, created_by_user_id, created_at
		FROM groups
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByInviteCode retrieves a group by its invite code
func (r *Repository) GetByInviteCode(ctx context.Context, code string) (*Group, error) {
	query := `
		SELECT id, name, description, invite_code, created_by_user_id, created_at
		FROM groups
		WHERE invite_code = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, code))
}

func (r *Repository) scanOne(row *sql.Row) (*Group, error) {
	group := &Group{}
	err := row.Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.InviteCode,
		&group.CreatedByUserID,
		&group.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// ListByUserID retrieves all groups a user belongs to
func (r *Repository) ListByUserID(ctx context.Context, userID int64) ([]*Group, error) {
	query := `
		SELECT g.id, g.name, g.description, g.invite_code, g.created_by_user_id, g.created_at
		FROM groups g
		JOIN group_members gm ON g.id = gm.group_id
		WHERE gm.user_id = $1
		ORDER BY g.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		group := &Group{}
		if err := rows.Scan(
			&group.ID,
			&group.Name,
			&group.Description,
			&group.InviteCode,
			&group.CreatedByUserID,
			&group.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	return groups, rows.Err()
}

// AddMember inserts a membership row
func (r *Repository) AddMember(ctx context.Context, groupID, userID int64, role MemberRole) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)`,
		groupID, userID, role,
	)
	if err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// IsMember reports whether the user belongs to the group
func (r *Repository) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`,
		groupID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// GetMemberRole returns the user's role in the group, or "" if not a member
func (r *Repository) GetMemberRole(ctx context.Context, groupID, userID int64) (MemberRole, error) {
	var role MemberRole
	err := r.db.QueryRowContext(ctx,
		`SELECT role FROM group_members WHERE group_id = $1 AND user_id = $2`,
		groupID, userID,
	).Scan(&role)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to get member role: %w", err)
	}
	return role, nil
}

// ListMembers retrieves a group's members with names
func (r *Repository) ListMembers(ctx context.Context, groupID int64) ([]*GroupMember, error) {
	query := `
		SELECT gm.group_id, gm.user_id, gm.role, gm.joined_at, u.name, u.email
		FROM group_members gm
		JOIN users u ON gm.user_id = u.id
		WHERE gm.group_id = $1
		ORDER BY gm.joined_at
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*GroupMember
	for rows.Next() {
		member := &GroupMember{}
		if err := rows.Scan(
			&member.GroupID,
			&member.UserID,
			&member.Role,
			&member.JoinedAt,
			&member.Name,
			&member.Email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

// GetMemberIDs retrieves the user IDs of a group's members
func (r *Repository) GetMemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY user_id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list member ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// SetPeriod upserts a group's settlement cadence and schedules the next run
func (r *Repository) SetPeriod(ctx context.Context, groupID int64, period Period, next time.Time) (*SettlementPeriod, error) {
	query := `
		INSERT INTO settlement_periods (group_id, period_value, period_unit, next_finalize_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id) DO UPDATE
		SET period_value = EXCLUDED.period_value,
		    period_unit = EXCLUDED.period_unit,
		    next_finalize_at = EXCLUDED.next_finalize_at
		RETURNING group_id, period_value, period_unit, last_finalized_at, next_finalize_at
	`
	return scanPeriod(r.db.QueryRowContext(ctx, query, groupID, period.Value, string(period.Unit), next))
}

// GetPeriod retrieves a group's settlement period, nil if unset
func (r *Repository) GetPeriod(ctx context.Context, groupID int64) (*SettlementPeriod, error) {
	query := `
		SELECT group_id, period_value, period_unit, last_finalized_at, next_finalize_at
		FROM settlement_periods
		WHERE group_id = $1
	`
	sp, err := scanPeriod(r.db.QueryRowContext(ctx, query, groupID))
	if err != nil {
		return nil, err
	}
	return sp, nil
}

// ListDueGroups returns the IDs of groups whose next finalization is due
func (r *Repository) ListDueGroups(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT group_id FROM settlement_periods WHERE next_finalize_at IS NOT NULL AND next_finalize_at <= $1`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due groups: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan due group: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func scanPeriod(row *sql.Row) (*SettlementPeriod, error) {
	sp := &SettlementPeriod{}
	var unit string
	err := row.Scan(&sp.GroupID, &sp.Period.Value, &unit, &sp.LastFinalizedAt, &sp.NextFinalizeAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settlement period: %w", err)
	}
	if len(unit) > 0 {
		sp.Period.Unit = PeriodUnit(unit[0])
	}
	return sp, nil
}
