package settlement

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fairsplit/fairsplit/internal/group"
)

// Repository handles settlement data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new settlement repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const settlementColumns = `
	s.id, s.group_id, s.payer_user_id, s.receiver_user_id, s.amount,
	s.status, s.due_date, s.payment_date, s.payment_method, s.created_at,
	p.name, recv.name
`

const settlementJoins = `
	FROM settlements s
	JOIN users p ON s.payer_user_id = p.id
	JOIN users recv ON s.receiver_user_id = recv.id
`

func scanSettlement(row interface{ Scan(...interface{}) error }) (*Settlement, error) {
	s := &Settlement{}
	err := row.Scan(
		&s.ID,
		&s.GroupID,
		&s.PayerUserID,
		&s.ReceiverUserID,
		&s.Amount,
		&s.Status,
		&s.DueDate,
		&s.PaymentDate,
		&s.PaymentMethod,
		&s.CreatedAt,
		&s.PayerName,
		&s.ReceiverName,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// PersistPlan persists planned transfers as Pending settlements inside a
// single transaction serialized per group.
//
// The transaction takes pg_advisory_xact_lock on the group ID so concurrent
// Finalize calls for the same group, from any service instance, are applied
// one at a time. Transfers whose pair already has a Confirmed settlement in
// the open round are discarded; the rest are upserted against the partial
// unique index on Pending pairs, refreshing the amount of a pre-existing
// Pending row rather than duplicating it. The group's last_planned_at is
// stamped so a later full confirmation knows which expenses the round covers.
// Returns the group's Confirmed and Pending settlements.
func (r *Repository) PersistPlan(ctx context.Context, groupID int64, transfers []Transfer, dueDate time.Time) ([]*Settlement, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, groupID); err != nil {
		return nil, fmt.Errorf("failed to lock group: %w", err)
	}

	confirmed, err := confirmedPairs(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}

	insertQuery := `
		INSERT INTO settlements (group_id, payer_user_id, receiver_user_id, amount, status, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (group_id, payer_user_id, receiver_user_id) WHERE status = 'Pending'
		DO UPDATE SET amount = EXCLUDED.amount, due_date = EXCLUDED.due_date
	`
	for _, t := range filterConfirmed(transfers, confirmed) {
		_, err := tx.ExecContext(ctx, insertQuery,
			groupID, t.PayerUserID, t.ReceiverUserID, t.Amount, StatusPending, dueDate)
		if err != nil {
			return nil, fmt.Errorf("failed to persist settlement: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE groups SET last_planned_at = now() WHERE id = $1`, groupID,
	); err != nil {
		return nil, fmt.Errorf("failed to stamp plan time: %w", err)
	}

	if err := r.advancePeriod(ctx, tx, groupID); err != nil {
		return nil, err
	}

	listQuery := `SELECT ` + settlementColumns + settlementJoins + `
		WHERE s.group_id = $1
		ORDER BY s.created_at, s.id
	`
	rows, err := tx.QueryContext(ctx, listQuery, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit finalize: %w", err)
	}

	return settlements, nil
}

// confirmedPairs loads the directed pairs confirmed since the group last
// reached full settlement. Confirmed settlements from before that instant
// belong to closed rounds whose expenses already left the ledger; treating
// them as settled would swallow any new debt between the same pair.
func confirmedPairs(ctx context.Context, tx *sql.Tx, groupID int64) (map[Pair]bool, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT s.payer_user_id, s.receiver_user_id
		FROM settlements s
		JOIN groups g ON g.id = s.group_id
		WHERE s.group_id = $1 AND s.status = $2
		  AND (g.last_settled_at IS NULL OR s.created_at > g.last_settled_at)
	`, groupID, StatusConfirmed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load confirmed pairs: %w", err)
	}
	defer rows.Close()

	pairs := make(map[Pair]bool)
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.PayerUserID, &p.ReceiverUserID); err != nil {
			return nil, fmt.Errorf("failed to scan confirmed pair: %w", err)
		}
		pairs[p] = true
	}
	return pairs, rows.Err()
}

// advancePeriod records the finalization run on the group's settlement
// period, when one is configured, so the scheduler does not re-fire.
func (r *Repository) advancePeriod(ctx context.Context, tx *sql.Tx, groupID int64) error {
	var value int
	var unit string
	err := tx.QueryRowContext(ctx,
		`SELECT period_value, period_unit FROM settlement_periods WHERE group_id = $1 FOR UPDATE`,
		groupID,
	).Scan(&value, &unit)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("failed to load settlement period: %w", err)
	}

	now := time.Now().UTC()
	period := group.Period{Value: value, Unit: group.PeriodUnit(unit[0])}
	_, err = tx.ExecContext(ctx,
		`UPDATE settlement_periods SET last_finalized_at = $2, next_finalize_at = $3 WHERE group_id = $1`,
		groupID, now, period.NextAfter(now),
	)
	if err != nil {
		return fmt.Errorf("failed to advance settlement period: %w", err)
	}
	return nil
}

// GetByID retrieves a settlement by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Settlement, error) {
	query := `SELECT ` + settlementColumns + settlementJoins + ` WHERE s.id = $1`

	s, err := scanSettlement(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return s, nil
}

// Confirm transitions a settlement from Pending to Confirmed. The WHERE
// clause on status makes the update a compare-and-swap: the second of two
// concurrent confirms matches zero rows and reports transitioned=false.
// When the confirm leaves the group with no Pending settlements the round is
// closed in the same transaction: expenses that existed when the round was
// planned are flagged settled (a row created after planning, whatever its
// spent_at says, never entered the plan and stays in the ledger), and
// last_settled_at is stamped so the round's Confirmed pairs stop shielding
// future debts.
func (r *Repository) Confirm(ctx context.Context, id int64, method string) (*Settlement, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE settlements s
		SET status = $2, payment_date = now(), payment_method = $3
		FROM users p, users recv
		WHERE s.id = $1 AND s.status = $4
		  AND p.id = s.payer_user_id AND recv.id = s.receiver_user_id
		RETURNING ` + settlementColumns

	s, err := scanSettlement(tx.QueryRowContext(ctx, query, id, StatusConfirmed, method, StatusPending))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to confirm settlement: %w", err)
	}

	var pendingLeft int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM settlements WHERE group_id = $1 AND status = $2`,
		s.GroupID, StatusPending,
	).Scan(&pendingLeft)
	if err != nil {
		return nil, false, fmt.Errorf("failed to count pending settlements: %w", err)
	}

	if pendingLeft == 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE expenses
			SET is_settled = TRUE
			WHERE group_id = $1
			  AND NOT is_settled
			  AND created_at <= (SELECT last_planned_at FROM groups WHERE id = $1)
		`, s.GroupID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to mark expenses settled: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE groups SET last_settled_at = now() WHERE id = $1`, s.GroupID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to close settlement round: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit confirm: %w", err)
	}

	return s, true, nil
}

// ListByGroup retrieves all settlements for a group, oldest first
func (r *Repository) ListByGroup(ctx context.Context, groupID int64) ([]*Settlement, error) {
	query := `SELECT ` + settlementColumns + settlementJoins + `
		WHERE s.group_id = $1
		ORDER BY s.created_at, s.id
	`
	return r.list(ctx, query, groupID)
}

// ListByUser retrieves the settlement history a user participates in
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]*Settlement, error) {
	query := `SELECT ` + settlementColumns + settlementJoins + `
		WHERE s.payer_user_id = $1 OR s.receiver_user_id = $1
		ORDER BY s.created_at DESC, s.id DESC
	`
	return r.list(ctx, query, userID)
}

func (r *Repository) list(ctx context.Context, query string, arg interface{}) ([]*Settlement, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}
