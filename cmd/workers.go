package main

import (
	"context"
	"time"

	"gigBack/internal/models"
)

const (
	workerRunTimeout = time.Minute
	triggerRetry     = 5 * time.Minute
)

func (app *application) startWorkers(ctx context.Context) {
	b := app.cfg.Booking
	app.every(ctx, "triggers", b.TriggerTick, app.runTriggers)
	app.every(ctx, "saga", b.SagaTick, func(ctx context.Context) (int, error) {
		return app.core.Journal.Replay(ctx, b.BatchSize)
	})
	app.every(ctx, "fee clearing", b.ExpiryTick, func(ctx context.Context) (int, error) {
		return app.core.Fees.ClearDue(ctx, b.BatchSize)
	})
	app.every(ctx, "offer expiry", b.ExpiryTick, func(ctx context.Context) (int, error) {
		return app.core.Engagements.ExpireStaleOffers(ctx, b.BatchSize)
	})
}

// every runs fn once at startup and then on each tick until ctx ends.
func (app *application) every(ctx context.Context, name string, interval time.Duration, fn func(context.Context) (int, error)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		runOnce := func() {
			runCtx, cancel := context.WithTimeout(ctx, workerRunTimeout)
			processed, err := fn(runCtx)
			cancel()
			if err != nil {
				app.log.Errorf("%s worker: %v", name, err)
			} else if processed > 0 {
				app.log.Infof("%s worker: processed %d", name, processed)
			}
		}

		runOnce()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runOnce()
			}
		}
	}()
}

// runTriggers claims due triggers and hands them to the core. Retryable
// failures go back on the queue.
func (app *application) runTriggers(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	due, err := app.queue.Due(ctx, now, app.cfg.Booking.BatchSize)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, t := range due {
		err := app.core.HandleTrigger(ctx, t)
		if err == nil {
			done++
			continue
		}
		app.log.Errorf("trigger %s (%s) for engagement %s: %v", t.ID, t.Kind, t.EngagementID, err)
		if !models.IsRetryable(err) {
			continue
		}
		t.At = now.Add(triggerRetry)
		if _, err := app.queue.Schedule(ctx, t); err != nil {
			app.log.Errorf("requeue trigger %s: %v", t.ID, err)
		}
	}
	return done, nil
}
