package repositories

import (
	"context"
	"database/sql"

	"gigBack/internal/models"
)

// ReviewRepository stores post-engagement reviews. The unique key on
// (engagement_id, written_by) keeps one review per side.
type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) Create(ctx context.Context, rev models.Review) (models.Review, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO reviews (id, engagement_id, performer_id, venue_id, written_by, rating, text, created_at)
		VALUES (?,?,?,?,?,?,?,?)`, rev.ID, rev.EngagementID, rev.PerformerID, rev.VenueID, rev.WrittenBy, rev.Rating, rev.Text, rev.CreatedAt.UTC())
	if err != nil {
		return models.Review{}, mapWriteErr(err, models.ErrDuplicateReview)
	}
	return rev, nil
}

func (r *ReviewRepository) ListByPerformer(ctx context.Context, performerID string) ([]models.Review, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, engagement_id, performer_id, venue_id, written_by, rating, text, created_at
		FROM reviews WHERE performer_id = ? ORDER BY created_at DESC`, performerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Review
	for rows.Next() {
		var rev models.Review
		if err := rows.Scan(&rev.ID, &rev.EngagementID, &rev.PerformerID, &rev.VenueID, &rev.WrittenBy, &rev.Rating, &rev.Text, &rev.CreatedAt); err != nil {
			return nil, err
		}
		rev.CreatedAt = rev.CreatedAt.UTC()
		out = append(out, rev)
	}
	return out, rows.Err()
}
