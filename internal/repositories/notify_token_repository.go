package repositories

import (
	"context"
	"database/sql"
)

// NotifyTokenRepository keeps the push device tokens of each account.
type NotifyTokenRepository struct {
	db *sql.DB
}

func NewNotifyTokenRepository(db *sql.DB) *NotifyTokenRepository {
	return &NotifyTokenRepository{db: db}
}

func (r *NotifyTokenRepository) Tokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT token FROM notify_tokens WHERE user_id = ? ORDER BY token`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// Register stores the token; registering the same token twice is a no-op.
func (r *NotifyTokenRepository) Register(ctx context.Context, userID, token string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO notify_tokens (user_id, token) VALUES (?, ?)`, userID, token)
	if err != nil && isDuplicateKey(err) {
		return nil
	}
	return err
}

func (r *NotifyTokenRepository) Delete(ctx context.Context, userID, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notify_tokens WHERE user_id = ? AND token = ?`, userID, token)
	return err
}
