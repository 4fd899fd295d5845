package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalReplayBacksOff(t *testing.T) {
	repo := newMemSaga()
	clock := &fakeClock{now: gigStart}
	j := NewJournal(repo, clock, testLogger{}, time.Minute)

	calls := 0
	j.Register("ping", func(ctx context.Context, payload []byte) error {
		var p sagaPayload
		require.NoError(t, decodeStep(payload, &p))
		assert.Equal(t, "e1", p.EngagementID)
		calls++
		if calls < 2 {
			return errors.New("still down")
		}
		return nil
	})
	ctx := context.Background()
	j.Record(ctx, "ping", "e1", sagaPayload{EngagementID: "e1"}, errors.New("down"))
	j.Record(ctx, "orphan", "e1", sagaPayload{EngagementID: "e1"}, errors.New("down"))

	done, err := j.Replay(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, done, "nothing is due before the backoff")

	clock.Set(gigStart.Add(time.Minute))
	done, err = j.Replay(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, done)
	assert.Equal(t, 1, calls)

	var pingID string
	for id, s := range repo.steps {
		if s.Kind == "ping" {
			pingID = id
			assert.Equal(t, 2, s.Attempts)
			assert.Equal(t, "still down", s.LastError)
			assert.Equal(t, gigStart.Add(3*time.Minute), s.NextAttemptAt)
		}
	}
	require.NotEmpty(t, pingID)

	clock.Set(gigStart.Add(3 * time.Minute))
	done, err = j.Replay(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.Len(t, repo.pending(), 1, "the step without a handler stays pending")
}
