package repositories

import (
	"context"
	"database/sql"
	"time"

	"gigBack/internal/models"
)

// EngagementRepository stores engagements with their application list as JSON.
// Writes are guarded by the version column.
type EngagementRepository struct {
	db *sql.DB
}

func NewEngagementRepository(db *sql.DB) *EngagementRepository {
	return &EngagementRepository{db: db}
}

const engagementColumns = `id, venue_id, kind, budget, start_at, applications, agreed_fee, paid, status,
	booked_performer_id, cancellation_reason, dispute_logged, dispute_clearing_at, fee_status,
	clear_fee_task, auto_message_task, payment_ref, payment_status, payout_config,
	venue_has_reviewed, performer_has_reviewed, version, created_at, updated_at, booked_at`

func (r *EngagementRepository) Create(ctx context.Context, e models.Engagement) (models.Engagement, error) {
	apps, payout, err := encodeEngagement(e)
	if err != nil {
		return e, err
	}
	e.Version = 1
	_, err = r.db.ExecContext(ctx, `INSERT INTO engagements (`+engagementColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.VenueID, e.Kind, e.Budget, e.StartAt.UTC(), apps, nullInt(e.AgreedFee), e.Paid, e.Status,
		e.BookedPerformerID, e.CancellationReason, e.DisputeLogged, nullTime(e.DisputeClearingAt), e.FeeStatus,
		e.ClearFeeTask, e.AutoMessageTask, e.PaymentRef, e.PaymentStatus, payout,
		e.VenueHasReviewed, e.PerformerHasReviewed, e.Version, e.CreatedAt.UTC(), e.UpdatedAt.UTC(), nullTime(e.BookedAt))
	if err != nil {
		return e, mapWriteErr(err, nil)
	}
	return e, nil
}

func (r *EngagementRepository) Get(ctx context.Context, id string) (models.Engagement, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+engagementColumns+` FROM engagements WHERE id = ?`, id)
	e, err := scanEngagement(row)
	return e, mapNoRows(err, models.ErrEngagementNotFound)
}

func (r *EngagementRepository) GetByPaymentRef(ctx context.Context, ref string) (models.Engagement, error) {
	if ref == "" {
		return models.Engagement{}, models.ErrEngagementNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+engagementColumns+` FROM engagements WHERE payment_ref = ?`, ref)
	e, err := scanEngagement(row)
	return e, mapNoRows(err, models.ErrEngagementNotFound)
}

// Update writes e when the stored version still equals e.Version.
func (r *EngagementRepository) Update(ctx context.Context, e models.Engagement) (models.Engagement, error) {
	return r.write(ctx, e, false)
}

// Book is Update that also requires the stored booking marker to be empty.
func (r *EngagementRepository) Book(ctx context.Context, e models.Engagement) (models.Engagement, error) {
	return r.write(ctx, e, true)
}

func (r *EngagementRepository) write(ctx context.Context, e models.Engagement, book bool) (models.Engagement, error) {
	apps, payout, err := encodeEngagement(e)
	if err != nil {
		return e, err
	}
	query := `UPDATE engagements SET kind = ?, budget = ?, start_at = ?, applications = ?, agreed_fee = ?, paid = ?,
		status = ?, booked_performer_id = ?, cancellation_reason = ?, dispute_logged = ?, dispute_clearing_at = ?,
		fee_status = ?, clear_fee_task = ?, auto_message_task = ?, payment_ref = ?, payment_status = ?,
		payout_config = ?, venue_has_reviewed = ?, performer_has_reviewed = ?, booked_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`
	if book {
		query += ` AND booked_performer_id = ''`
	}
	res, err := r.db.ExecContext(ctx, query,
		e.Kind, e.Budget, e.StartAt.UTC(), apps, nullInt(e.AgreedFee), e.Paid,
		e.Status, e.BookedPerformerID, e.CancellationReason, e.DisputeLogged, nullTime(e.DisputeClearingAt),
		e.FeeStatus, e.ClearFeeTask, e.AutoMessageTask, e.PaymentRef, e.PaymentStatus,
		payout, e.VenueHasReviewed, e.PerformerHasReviewed, nullTime(e.BookedAt), e.UpdatedAt.UTC(),
		e.ID, e.Version)
	if err != nil {
		return e, mapWriteErr(err, nil)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return e, err
	}
	if rows == 0 {
		return e, r.writeConflict(ctx, e.ID, book)
	}
	e.Version++
	return e, nil
}

// writeConflict explains why a guarded write matched no row.
func (r *EngagementRepository) writeConflict(ctx context.Context, id string, book bool) error {
	var booked string
	err := r.db.QueryRowContext(ctx, `SELECT booked_performer_id FROM engagements WHERE id = ?`, id).Scan(&booked)
	if err != nil {
		return mapNoRows(err, models.ErrEngagementNotFound)
	}
	if book && booked != "" {
		return models.ErrAlreadyBooked
	}
	return models.ErrVersionConflict
}

func (r *EngagementRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM engagements WHERE id = ?`, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrEngagementNotFound
	}
	return nil
}

// ListAwaitingPayment returns unpaid engagements booked before the cutoff
// whose winner is still accepted or waiting on a charge.
func (r *EngagementRepository) ListAwaitingPayment(ctx context.Context, bookedBefore time.Time, limit int) ([]models.Engagement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+engagementColumns+` FROM engagements
		WHERE booked_performer_id <> '' AND paid = ? AND booked_at IS NOT NULL AND booked_at <= ?
		ORDER BY booked_at ASC LIMIT ?`, false, bookedBefore.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Engagement
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, err
		}
		app, _ := e.Latest(e.BookedPerformerID)
		if app == nil || (app.Status != models.ApplicationAccepted && app.Status != models.ApplicationPaymentProcessing) {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func encodeEngagement(e models.Engagement) (string, interface{}, error) {
	if e.Applications == nil {
		e.Applications = []models.Application{}
	}
	apps, err := encodeJSON(e.Applications)
	if err != nil {
		return "", nil, err
	}
	var payout interface{}
	if e.PayoutConfig != nil {
		s, err := encodeJSON(e.PayoutConfig)
		if err != nil {
			return "", nil, err
		}
		payout = s
	}
	return apps, payout, nil
}

func scanEngagement(row scanner) (models.Engagement, error) {
	var (
		e         models.Engagement
		apps      sql.NullString
		payout    sql.NullString
		agreedFee sql.NullInt64
		clearing  sql.NullTime
		bookedAt  sql.NullTime
	)
	err := row.Scan(&e.ID, &e.VenueID, &e.Kind, &e.Budget, &e.StartAt, &apps, &agreedFee, &e.Paid, &e.Status,
		&e.BookedPerformerID, &e.CancellationReason, &e.DisputeLogged, &clearing, &e.FeeStatus,
		&e.ClearFeeTask, &e.AutoMessageTask, &e.PaymentRef, &e.PaymentStatus, &payout,
		&e.VenueHasReviewed, &e.PerformerHasReviewed, &e.Version, &e.CreatedAt, &e.UpdatedAt, &bookedAt)
	if err != nil {
		return models.Engagement{}, err
	}
	e.Applications = []models.Application{}
	if err := decodeJSON(apps, &e.Applications); err != nil {
		return models.Engagement{}, err
	}
	if payout.Valid && payout.String != "" {
		e.PayoutConfig = &models.PayoutConfig{}
		if err := decodeJSON(payout, e.PayoutConfig); err != nil {
			return models.Engagement{}, err
		}
	}
	if agreedFee.Valid {
		v := agreedFee.Int64
		e.AgreedFee = &v
	}
	if clearing.Valid {
		t := clearing.Time.UTC()
		e.DisputeClearingAt = &t
	}
	if bookedAt.Valid {
		t := bookedAt.Time.UTC()
		e.BookedAt = &t
	}
	e.StartAt = e.StartAt.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}
