package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gigBack/internal/models"
)

// StepHandler replays one journaled step from its payload.
type StepHandler func(ctx context.Context, payload []byte) error

// Journal records follow-up steps that failed after the primary write so they
// can be replayed later instead of being silently lost.
type Journal struct {
	repo    SagaRepository
	clock   Clock
	log     Logger
	backoff time.Duration

	mu       sync.RWMutex
	handlers map[string]StepHandler
}

func NewJournal(repo SagaRepository, clock Clock, log Logger, backoff time.Duration) *Journal {
	return &Journal{
		repo:     repo,
		clock:    clock,
		log:      log,
		backoff:  backoff,
		handlers: make(map[string]StepHandler),
	}
}

// Register binds a step kind to its replay handler.
func (j *Journal) Register(kind string, h StepHandler) {
	j.mu.Lock()
	j.handlers[kind] = h
	j.mu.Unlock()
}

// Record stores a failed step. It never fails the caller; a journal write
// error is only logged.
func (j *Journal) Record(ctx context.Context, kind, engagementID string, payload interface{}, cause error) {
	j.log.Errorf("saga step %s for engagement %s failed: %v", kind, engagementID, cause)
	body, err := json.Marshal(payload)
	if err != nil {
		j.log.Errorf("saga step %s: encode payload: %v", kind, err)
		return
	}
	now := j.clock.Now()
	step := models.SagaStep{
		ID:            uuid.NewString(),
		Kind:          kind,
		EngagementID:  engagementID,
		Payload:       body,
		LastError:     cause.Error(),
		Attempts:      1,
		Status:        models.StepPending,
		NextAttemptAt: now.Add(j.backoff),
		CreatedAt:     now,
	}
	if _, err := j.repo.Create(ctx, step); err != nil {
		j.log.Errorf("saga step %s: journal write: %v", kind, err)
	}
}

// Replay runs due steps and returns how many completed.
func (j *Journal) Replay(ctx context.Context, limit int) (int, error) {
	now := j.clock.Now()
	steps, err := j.repo.ListDue(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list due saga steps: %w", err)
	}
	done := 0
	for _, step := range steps {
		j.mu.RLock()
		h, ok := j.handlers[step.Kind]
		j.mu.RUnlock()
		if !ok {
			j.log.Errorf("saga step %s: no handler for kind %s", step.ID, step.Kind)
			continue
		}
		if err := h(ctx, step.Payload); err != nil {
			next := now.Add(j.backoff * time.Duration(step.Attempts+1))
			if mErr := j.repo.MarkFailed(ctx, step.ID, err.Error(), next); mErr != nil {
				j.log.Errorf("saga step %s: mark failed: %v", step.ID, mErr)
			}
			continue
		}
		if err := j.repo.MarkDone(ctx, step.ID); err != nil {
			j.log.Errorf("saga step %s: mark done: %v", step.ID, err)
			continue
		}
		done++
	}
	return done, nil
}

// decodeStep unmarshals a journaled payload.
func decodeStep(payload []byte, v interface{}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode saga payload: %w", err)
	}
	return nil
}
