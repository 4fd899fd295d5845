package repositories

import (
	"context"
	"database/sql"

	"gigBack/internal/models"
)

type PerformerRepository struct {
	db *sql.DB
}

func NewPerformerRepository(db *sql.DB) *PerformerRepository {
	return &PerformerRepository{db: db}
}

const performerColumns = `id, kind, name, image, user_id, email, gig_applications, withdrawable_earnings,
	total_earnings, payout_destination, join_password_hash, reviews_total, reviews_positive, version, created_at`

func (r *PerformerRepository) Create(ctx context.Context, p models.Performer) (models.Performer, error) {
	if p.GigApplications == nil {
		p.GigApplications = []string{}
	}
	apps, err := encodeJSON(p.GigApplications)
	if err != nil {
		return p, err
	}
	p.Version = 1
	_, err = r.db.ExecContext(ctx, `INSERT INTO performers (`+performerColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Kind, p.Name, p.Image, p.UserID, p.Email, apps, p.WithdrawableEarnings,
		p.TotalEarnings, p.PayoutDestination, p.JoinPasswordHash, p.ReviewsTotal, p.ReviewsPositive, p.Version, p.CreatedAt.UTC())
	if err != nil {
		return p, mapWriteErr(err, &models.Error{Kind: models.ErrConflict, Code: "PerformerExists", Message: "performer already exists"})
	}
	return p, nil
}

func (r *PerformerRepository) Get(ctx context.Context, id string) (models.Performer, error) {
	var (
		p    models.Performer
		apps sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `SELECT `+performerColumns+` FROM performers WHERE id = ?`, id).Scan(
		&p.ID, &p.Kind, &p.Name, &p.Image, &p.UserID, &p.Email, &apps, &p.WithdrawableEarnings,
		&p.TotalEarnings, &p.PayoutDestination, &p.JoinPasswordHash, &p.ReviewsTotal, &p.ReviewsPositive, &p.Version, &p.CreatedAt)
	if err != nil {
		return models.Performer{}, mapNoRows(err, models.ErrPerformerNotFound)
	}
	p.GigApplications = []string{}
	if err := decodeJSON(apps, &p.GigApplications); err != nil {
		return models.Performer{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (r *PerformerRepository) AddApplication(ctx context.Context, performerID, engagementID string) error {
	return editList(ctx, r.db, "performers", "gig_applications", performerID, models.ErrPerformerNotFound, func(ids []string) []string {
		for _, id := range ids {
			if id == engagementID {
				return ids
			}
		}
		return append(ids, engagementID)
	})
}

func (r *PerformerRepository) RemoveApplication(ctx context.Context, performerID, engagementID string) error {
	return editList(ctx, r.db, "performers", "gig_applications", performerID, models.ErrPerformerNotFound, func(ids []string) []string {
		return without(ids, engagementID)
	})
}

// AdjustEarnings applies both deltas in one statement guarded against a
// negative withdrawable balance.
func (r *PerformerRepository) AdjustEarnings(ctx context.Context, performerID string, withdrawable, total int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE performers
		SET withdrawable_earnings = withdrawable_earnings + ?, total_earnings = total_earnings + ?, version = version + 1
		WHERE id = ? AND withdrawable_earnings + ? >= 0`, withdrawable, total, performerID, withdrawable)
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
	if _, err := r.Get(ctx, performerID); err != nil {
		return err
	}
	return models.ErrInsufficientEarnings
}

func (r *PerformerRepository) SetPayoutDestination(ctx context.Context, performerID, destination string) error {
	return r.setColumn(ctx, performerID, "payout_destination", destination)
}

func (r *PerformerRepository) SetJoinPassword(ctx context.Context, performerID, hash string) error {
	return r.setColumn(ctx, performerID, "join_password_hash", hash)
}

func (r *PerformerRepository) setColumn(ctx context.Context, id, column, value string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE performers SET `+column+` = ?, version = version + 1 WHERE id = ?`, value, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrPerformerNotFound
	}
	return nil
}

func (r *PerformerRepository) AddReview(ctx context.Context, performerID string, positive bool) error {
	return bumpReviews(ctx, r.db, "performers", performerID, positive, models.ErrPerformerNotFound)
}

func (r *PerformerRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM performers WHERE id = ?`, id)
	return err
}
