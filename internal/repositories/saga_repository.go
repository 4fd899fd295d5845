package repositories

import (
	"context"
	"database/sql"
	"time"

	"gigBack/internal/models"
)

// maxStepAttempts parks a journaled step as failed for manual follow-up.
const maxStepAttempts = 10

type SagaRepository struct {
	db *sql.DB
}

func NewSagaRepository(db *sql.DB) *SagaRepository {
	return &SagaRepository{db: db}
}

func (r *SagaRepository) Create(ctx context.Context, s models.SagaStep) (models.SagaStep, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO saga_steps (id, kind, engagement_id, payload, last_error, attempts, status, next_attempt_at, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`, s.ID, s.Kind, s.EngagementID, string(s.Payload), s.LastError, s.Attempts, s.Status,
		s.NextAttemptAt.UTC(), s.CreatedAt.UTC())
	return s, mapWriteErr(err, nil)
}

func (r *SagaRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.SagaStep, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, kind, engagement_id, payload, last_error, attempts, status, next_attempt_at, created_at
		FROM saga_steps WHERE status = ? AND next_attempt_at <= ? ORDER BY next_attempt_at ASC LIMIT ?`,
		models.StepPending, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SagaStep
	for rows.Next() {
		var (
			s       models.SagaStep
			payload string
		)
		if err := rows.Scan(&s.ID, &s.Kind, &s.EngagementID, &payload, &s.LastError, &s.Attempts, &s.Status, &s.NextAttemptAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Payload = []byte(payload)
		s.NextAttemptAt = s.NextAttemptAt.UTC()
		s.CreatedAt = s.CreatedAt.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SagaRepository) MarkDone(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE saga_steps SET status = ? WHERE id = ?`, models.StepDone, id)
	return err
}

// MarkFailed records another failed attempt and reschedules the step.
func (r *SagaRepository) MarkFailed(ctx context.Context, id, lastError string, next time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE saga_steps SET status = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END,
		attempts = attempts + 1, last_error = ?, next_attempt_at = ?
		WHERE id = ?`, maxStepAttempts, models.StepFailed, lastError, next.UTC(), id)
	return err
}
