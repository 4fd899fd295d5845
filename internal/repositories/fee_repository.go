package repositories

import (
	"context"
	"database/sql"
	"time"

	"gigBack/internal/models"
)

// FeeRepository keeps the fee ledger. Rows are never deleted; only the status
// and its bookkeeping columns change.
type FeeRepository struct {
	db *sql.DB
}

func NewFeeRepository(db *sql.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

const feeColumns = `id, performer_id, engagement_id, venue_id, amount, status, clear_at, clear_task,
	dispute_reason, void_reason, created_at, status_change_at`

func (r *FeeRepository) Create(ctx context.Context, f models.Fee) (models.Fee, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO fees (`+feeColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		f.ID, f.PerformerID, f.EngagementID, f.VenueID, f.Amount, f.Status, f.ClearAt.UTC(), f.ClearTask,
		f.DisputeReason, f.VoidReason, f.CreatedAt.UTC(), nullTime(f.StatusChangeAt))
	if err != nil {
		return f, mapWriteErr(err, &models.Error{Kind: models.ErrConflict, Code: "FeeExists", Message: "fee already recorded"})
	}
	return f, nil
}

func (r *FeeRepository) Get(ctx context.Context, id string) (models.Fee, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feeColumns+` FROM fees WHERE id = ?`, id)
	f, err := scanFee(row)
	return f, mapNoRows(err, models.ErrFeeNotFound)
}

func (r *FeeRepository) ListByEngagement(ctx context.Context, engagementID string) ([]models.Fee, error) {
	return r.list(ctx, `SELECT `+feeColumns+` FROM fees WHERE engagement_id = ? ORDER BY created_at ASC, id ASC`, engagementID)
}

func (r *FeeRepository) ListByPerformer(ctx context.Context, performerID string) ([]models.Fee, error) {
	return r.list(ctx, `SELECT `+feeColumns+` FROM fees WHERE performer_id = ? ORDER BY created_at DESC, id ASC`, performerID)
}

// ListDue returns pending fees whose clearing time has passed.
func (r *FeeRepository) ListDue(ctx context.Context, before time.Time, limit int) ([]models.Fee, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, `SELECT `+feeColumns+` FROM fees WHERE status = ? AND clear_at <= ?
		ORDER BY clear_at ASC LIMIT ?`, models.FeePending, before.UTC(), limit)
}

// UpdateStatus moves a fee between statuses with a compare-and-set on the
// stored status.
func (r *FeeRepository) UpdateStatus(ctx context.Context, id, from, to, reason string) error {
	var disputeReason, voidReason interface{}
	switch to {
	case models.FeeInDispute:
		disputeReason = reason
	case models.FeeVoid:
		voidReason = reason
	}
	res, err := r.db.ExecContext(ctx, `UPDATE fees SET status = ?,
		dispute_reason = COALESCE(?, dispute_reason), void_reason = COALESCE(?, void_reason), status_change_at = ?
		WHERE id = ? AND status = ?`, to, disputeReason, voidReason, time.Now().UTC(), id, from)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return models.ErrFeeNotPending
}

func (r *FeeRepository) CreateWithdrawal(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO withdrawals (id, performer_id, amount, destination, payout_ref, created_at)
		VALUES (?,?,?,?,?,?)`, w.ID, w.PerformerID, w.Amount, w.Destination, w.PayoutRef, w.CreatedAt.UTC())
	return w, mapWriteErr(err, nil)
}

func (r *FeeRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Fee, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Fee
	for rows.Next() {
		f, err := scanFee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanFee(row scanner) (models.Fee, error) {
	var (
		f       models.Fee
		changed sql.NullTime
	)
	err := row.Scan(&f.ID, &f.PerformerID, &f.EngagementID, &f.VenueID, &f.Amount, &f.Status, &f.ClearAt, &f.ClearTask,
		&f.DisputeReason, &f.VoidReason, &f.CreatedAt, &changed)
	if err != nil {
		return models.Fee{}, err
	}
	f.ClearAt = f.ClearAt.UTC()
	f.CreatedAt = f.CreatedAt.UTC()
	if changed.Valid {
		t := changed.Time.UTC()
		f.StatusChangeAt = &t
	}
	return f, nil
}
