package repositories

import (
	"context"
	"database/sql"

	"gigBack/internal/models"
)

type DisputeRepository struct {
	db *sql.DB
}

func NewDisputeRepository(db *sql.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

func (r *DisputeRepository) Create(ctx context.Context, d models.Dispute) (models.Dispute, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO disputes (id, engagement_id, performer_id, venue_id, reason, detail, status, created_at)
		VALUES (?,?,?,?,?,?,?,?)`, d.ID, d.EngagementID, d.PerformerID, d.VenueID, d.Reason, d.Detail, d.Status, d.CreatedAt.UTC())
	return d, mapWriteErr(err, nil)
}

func (r *DisputeRepository) ListByEngagement(ctx context.Context, engagementID string) ([]models.Dispute, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, engagement_id, performer_id, venue_id, reason, detail, status, created_at
		FROM disputes WHERE engagement_id = ? ORDER BY created_at ASC`, engagementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Dispute
	for rows.Next() {
		var d models.Dispute
		if err := rows.Scan(&d.ID, &d.EngagementID, &d.PerformerID, &d.VenueID, &d.Reason, &d.Detail, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.CreatedAt = d.CreatedAt.UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// CancellationRepository logs cancellations for later review.
type CancellationRepository struct {
	db *sql.DB
}

func NewCancellationRepository(db *sql.DB) *CancellationRepository {
	return &CancellationRepository{db: db}
}

func (r *CancellationRepository) Create(ctx context.Context, c models.Cancellation) (models.Cancellation, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO cancellations (id, engagement_id, performer_id, venue_id, reason, cancelling_party, created_at)
		VALUES (?,?,?,?,?,?,?)`, c.ID, c.EngagementID, c.PerformerID, c.VenueID, c.Reason, c.CancellingParty, c.CreatedAt.UTC())
	return c, mapWriteErr(err, nil)
}

func (r *CancellationRepository) ListByEngagement(ctx context.Context, engagementID string) ([]models.Cancellation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, engagement_id, performer_id, venue_id, reason, cancelling_party, created_at
		FROM cancellations WHERE engagement_id = ? ORDER BY created_at ASC`, engagementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Cancellation
	for rows.Next() {
		var c models.Cancellation
		if err := rows.Scan(&c.ID, &c.EngagementID, &c.PerformerID, &c.VenueID, &c.Reason, &c.CancellingParty, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}
