package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"gigBack/internal/models"
)

// Local keeps triggers in memory. It is used by tests and single-node setups.
type Local struct {
	mu    sync.Mutex
	items map[string]models.Trigger
}

func NewLocal() *Local {
	return &Local{items: make(map[string]models.Trigger)}
}

func (l *Local) Schedule(ctx context.Context, t models.Trigger) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	l.mu.Lock()
	l.items[t.ID] = t
	l.mu.Unlock()
	return t.ID, nil
}

func (l *Local) Cancel(ctx context.Context, id string) error {
	l.mu.Lock()
	delete(l.items, id)
	l.mu.Unlock()
	return nil
}

// Pending returns the scheduled triggers ordered by due time.
func (l *Local) Pending() []models.Trigger {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Trigger, 0, len(l.items))
	for _, t := range l.items {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Due removes and returns triggers due at now.
func (l *Local) Due(ctx context.Context, now time.Time, limit int) ([]models.Trigger, error) {
	var out []models.Trigger
	for _, t := range l.Pending() {
		if t.At.After(now) || (limit > 0 && len(out) >= limit) {
			break
		}
		out = append(out, t)
	}
	l.mu.Lock()
	for _, t := range out {
		delete(l.items, t.ID)
	}
	l.mu.Unlock()
	return out, nil
}

// Redis keeps trigger ids in a sorted set scored by due time and their bodies in a hash.
type Redis struct {
	client *redis.Client
	queue  string
	data   string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "gig:triggers"
	}
	return &Redis{client: client, queue: prefix, data: prefix + ":data"}
}

func (r *Redis) Schedule(ctx context.Context, t models.Trigger) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	body, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshal trigger: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.data, t.ID, body)
	pipe.ZAdd(ctx, r.queue, redis.Z{Score: float64(t.At.Unix()), Member: t.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("schedule trigger: %w", err)
	}
	return t.ID, nil
}

func (r *Redis) Cancel(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	pipe.ZRem(ctx, r.queue, id)
	pipe.HDel(ctx, r.data, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cancel trigger: %w", err)
	}
	return nil
}

// Due claims triggers due at now. A trigger is returned to exactly one caller:
// whoever removes it from the sorted set owns it.
func (r *Redis) Due(ctx context.Context, now time.Time, limit int) ([]models.Trigger, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.queue, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list due triggers: %w", err)
	}
	out := make([]models.Trigger, 0, len(ids))
	for _, id := range ids {
		removed, err := r.client.ZRem(ctx, r.queue, id).Result()
		if err != nil {
			return out, fmt.Errorf("claim trigger %s: %w", id, err)
		}
		if removed == 0 {
			continue
		}
		body, err := r.client.HGet(ctx, r.data, id).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("load trigger %s: %w", id, err)
		}
		r.client.HDel(ctx, r.data, id)
		var t models.Trigger
		if err := json.Unmarshal(body, &t); err != nil {
			return out, fmt.Errorf("decode trigger %s: %w", id, err)
		}
		out = append(out, t)
	}
	return out, nil
}
