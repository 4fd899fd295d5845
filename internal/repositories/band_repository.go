package repositories

import (
	"context"
	"database/sql"

	"gigBack/internal/models"
)

type BandRepository struct {
	db *sql.DB
}

func NewBandRepository(db *sql.DB) *BandRepository {
	return &BandRepository{db: db}
}

func (r *BandRepository) Members(ctx context.Context, bandID string) ([]models.BandMember, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT band_id, performer_id, user_id, name, image, role, is_admin, split_bp, joined_at
		FROM band_members WHERE band_id = ? ORDER BY joined_at ASC, seq ASC`, bandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.BandMember
	for rows.Next() {
		var m models.BandMember
		if err := rows.Scan(&m.BandID, &m.PerformerID, &m.UserID, &m.Name, &m.Image, &m.Role, &m.IsAdmin, &m.SplitBP, &m.JoinedAt); err != nil {
			return nil, err
		}
		m.JoinedAt = m.JoinedAt.UTC()
		members = append(members, m)
	}
	return members, rows.Err()
}

// ReplaceMembers swaps the band's whole member set inside one transaction.
func (r *BandRepository) ReplaceMembers(ctx context.Context, bandID string, members []models.BandMember) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM band_members WHERE band_id = ?`, bandID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO band_members (band_id, performer_id, user_id, name, image, role, is_admin, split_bp, joined_at, seq)
		VALUES (?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, m := range members {
		if _, err = stmt.ExecContext(ctx, bandID, m.PerformerID, m.UserID, m.Name, m.Image, m.Role, m.IsAdmin, m.SplitBP, m.JoinedAt.UTC(), i); err != nil {
			return mapWriteErr(err, models.ErrAlreadyMember)
		}
	}
	return tx.Commit()
}

func (r *BandRepository) CreateInvite(ctx context.Context, inv models.BandInvite) (models.BandInvite, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO band_invites (id, band_id, invited_by, invited_email, status, created_at, expires_at)
		VALUES (?,?,?,?,?,?,?)`, inv.ID, inv.BandID, inv.InvitedBy, inv.InvitedEmail, inv.Status, inv.CreatedAt.UTC(), inv.ExpiresAt.UTC())
	return inv, mapWriteErr(err, nil)
}

func (r *BandRepository) GetInvite(ctx context.Context, id string) (models.BandInvite, error) {
	var inv models.BandInvite
	err := r.db.QueryRowContext(ctx, `SELECT id, band_id, invited_by, invited_email, status, created_at, expires_at
		FROM band_invites WHERE id = ?`, id).Scan(&inv.ID, &inv.BandID, &inv.InvitedBy, &inv.InvitedEmail, &inv.Status, &inv.CreatedAt, &inv.ExpiresAt)
	if err != nil {
		return models.BandInvite{}, mapNoRows(err, models.ErrInviteNotFound)
	}
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	return inv, nil
}

// MarkInviteAccepted flips a pending invite; an invite can be used once.
func (r *BandRepository) MarkInviteAccepted(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE band_invites SET status = ? WHERE id = ? AND status = ?`, models.InviteAccepted, id, models.InvitePending)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := r.GetInvite(ctx, id); err != nil {
			return err
		}
		return models.ErrInviteUsed
	}
	return nil
}

func (r *BandRepository) DeleteBand(ctx context.Context, bandID string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM band_members WHERE band_id = ?`, bandID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM band_invites WHERE band_id = ?`, bandID); err != nil {
		return err
	}
	return tx.Commit()
}
