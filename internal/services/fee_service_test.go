package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigBack/internal/models"
)

func TestClearFeeCreditsOnce(t *testing.T) {
	env := newEnv(nil)
	ctx := context.Background()

	fee, err := env.core.Fees.RecordPendingFee(ctx, "p1", "e1", "v1", 25000, gigStart.Add(48*time.Hour))
	require.NoError(t, err)
	assert.NotEmpty(t, fee.ClearTask)

	require.NoError(t, env.core.Fees.ClearFee(ctx, "p1", fee.ID))
	require.NoError(t, env.core.Fees.ClearFee(ctx, "p1", fee.ID))

	p, _ := env.performers.Get(ctx, "p1")
	assert.Equal(t, int64(25000), p.WithdrawableEarnings)
	assert.Equal(t, int64(25000), p.TotalEarnings)

	got, _ := env.fees.Get(ctx, fee.ID)
	assert.Equal(t, models.FeeCleared, got.Status)

	err = env.core.Fees.ClearFee(ctx, "p2", fee.ID)
	assert.ErrorIs(t, err, models.ErrFeeNotFound)
}

func TestClearFeeMarksBookingPaid(t *testing.T) {
	env, eng := paidEnv(t)
	ctx := context.Background()
	assert.Equal(t, models.FeeStatusPending, eng.FeeStatus)

	env.clock.Set(gigStart.Add(49 * time.Hour))
	n, err := env.core.Fees.ClearDue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := env.engagements.Get(ctx, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusCleared, got.FeeStatus)
	assert.Equal(t, models.ApplicationPaid, statusOf(got, "p1"))

	p, _ := env.performers.Get(ctx, "p1")
	assert.Equal(t, int64(10000), p.WithdrawableEarnings)

	// a replayed trigger changes nothing
	fees, _ := env.fees.ListByEngagement(ctx, eng.ID)
	require.Len(t, fees, 1)
	require.NoError(t, env.core.Fees.ClearFee(ctx, "p1", fees[0].ID))
	p, _ = env.performers.Get(ctx, "p1")
	assert.Equal(t, int64(10000), p.TotalEarnings)
}

func TestClearFeeSplitsBandFee(t *testing.T) {
	env := newEnv(nil)
	ctx := context.Background()
	creator, _ := env.performers.Get(ctx, "p1")
	band, _, err := env.core.Bands.CreateBand(ctx, "The Fixtures", creator)
	require.NoError(t, err)
	_, err = env.core.Bands.AddMember(ctx, band.ID, "p2")
	require.NoError(t, err)
	_, err = env.core.Bands.SetSplits(ctx, band.ID, map[string]float64{"p1": 33.33, "p2": 66.67})
	require.NoError(t, err)

	eng := env.post(20001)
	_, err = env.core.Engagements.Apply(ctx, eng.ID, band.ID, 20001)
	require.NoError(t, err)
	_, err = env.core.Engagements.AcceptOffer(ctx, eng.ID, band.ID, true)
	require.NoError(t, err)
	started, err := env.core.Engagements.StartPayment(ctx, eng.ID, band.ID, "pm_card")
	require.NoError(t, err)
	require.NoError(t, env.core.Engagements.HandleSettlement(ctx, started.PaymentRef, models.PaymentSucceeded))

	env.clock.Set(gigStart.Add(49 * time.Hour))
	n, err := env.core.Fees.ClearDue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p1, _ := env.performers.Get(ctx, "p1")
	p2, _ := env.performers.Get(ctx, "p2")
	b, _ := env.performers.Get(ctx, band.ID)
	assert.Equal(t, int64(6667), p1.WithdrawableEarnings)
	assert.Equal(t, int64(13334), p2.WithdrawableEarnings)
	assert.Equal(t, int64(20001), p1.WithdrawableEarnings+p2.WithdrawableEarnings)
	assert.Equal(t, int64(6667), p1.TotalEarnings)
	assert.Zero(t, b.WithdrawableEarnings)
	assert.Equal(t, int64(20001), b.TotalEarnings)

	got, _ := env.engagements.Get(ctx, eng.ID)
	assert.Equal(t, models.ApplicationPaid, statusOf(got, band.ID))
	assert.Equal(t, models.FeeStatusCleared, got.FeeStatus)
}

func TestFeeCreditsPreserveAmount(t *testing.T) {
	fee := models.Fee{PerformerID: "b1", Amount: 10001}

	solo := feeCredits(fee, nil)
	assert.Equal(t, []feeCredit{{PerformerID: "b1", Amount: 10001}}, solo)

	other := feeCredits(fee, &models.PayoutConfig{PerformerID: "b2", Shares: []models.PayoutShare{{PerformerID: "p1", SplitBP: 10000}}})
	assert.Equal(t, solo, other)

	credits := feeCredits(fee, &models.PayoutConfig{PerformerID: "b1", Shares: []models.PayoutShare{
		{PerformerID: "p1", SplitBP: 3334},
		{PerformerID: "p2", SplitBP: 3333},
		{PerformerID: "p3", SplitBP: 3333},
	}})
	require.Len(t, credits, 4)
	assert.True(t, credits[0].TotalOnly)
	assert.Zero(t, credits[0].withdrawable())
	var sum int64
	for _, c := range credits[1:] {
		sum += c.withdrawable()
	}
	assert.Equal(t, fee.Amount, sum)
	assert.Equal(t, int64(3335), credits[1].Amount)
}

func TestClearDueUsesClock(t *testing.T) {
	env := newEnv(nil)
	ctx := context.Background()
	_, err := env.core.Fees.RecordPendingFee(ctx, "p1", "e1", "v1", 1000, gigStart.Add(48*time.Hour))
	require.NoError(t, err)
	_, err = env.core.Fees.RecordPendingFee(ctx, "p2", "e2", "v1", 2000, gigStart.Add(96*time.Hour))
	require.NoError(t, err)

	n, err := env.core.Fees.ClearDue(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	env.clock.Set(gigStart.Add(50 * time.Hour))
	n, err = env.core.Fees.ClearDue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p1, _ := env.performers.Get(ctx, "p1")
	p2, _ := env.performers.Get(ctx, "p2")
	assert.Equal(t, int64(1000), p1.WithdrawableEarnings)
	assert.Zero(t, p2.WithdrawableEarnings)
}

func TestClearTriggerThroughCore(t *testing.T) {
	env, eng := paidEnv(t)
	ctx := context.Background()

	env.clock.Set(gigStart.Add(49 * time.Hour))
	due, err := env.scheduler.Due(ctx, env.clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	for _, tr := range due {
		require.NoError(t, env.core.HandleTrigger(ctx, tr))
	}

	p, _ := env.performers.Get(ctx, "p1")
	assert.Equal(t, int64(10000), p.WithdrawableEarnings)
	_, msgs := env.messages(eng.ID, "p1")
	assert.Equal(t, models.MessageReview, msgs[len(msgs)-1].Type)
	assert.Equal(t, textReviewPrompt, msgs[len(msgs)-1].Text)
}

func TestPayout(t *testing.T) {
	env := newEnv(nil)
	ctx := context.Background()
	fee, err := env.core.Fees.RecordPendingFee(ctx, "p1", "e1", "v1", 5000, gigStart)
	require.NoError(t, err)
	require.NoError(t, env.core.Fees.ClearFee(ctx, "p1", fee.ID))

	_, err = env.core.Fees.Payout(ctx, "p1", 0)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = env.core.Fees.Payout(ctx, "p1", 6000)
	assert.ErrorIs(t, err, models.ErrInsufficientEarnings)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	_, err = env.core.Fees.Payout(ctx, "p1", 1000)
	assert.ErrorIs(t, err, models.ErrNoPayoutDestination)

	require.NoError(t, env.core.Fees.SetPayoutDestination(ctx, "p1", "acct_123"))

	env.payments.payoutErr = errors.New("bank offline")
	_, err = env.core.Fees.Payout(ctx, "p1", 1000)
	assert.ErrorIs(t, err, models.ErrExternalFailure)
	p, _ := env.performers.Get(ctx, "p1")
	assert.Equal(t, int64(5000), p.WithdrawableEarnings)

	env.payments.payoutErr = nil
	w, err := env.core.Fees.Payout(ctx, "p1", 1500)
	require.NoError(t, err)
	assert.Equal(t, "acct_123", w.Destination)
	assert.Equal(t, "po_1", w.PayoutRef)

	p, _ = env.performers.Get(ctx, "p1")
	assert.Equal(t, int64(3500), p.WithdrawableEarnings)
	assert.Equal(t, int64(5000), p.TotalEarnings)
	assert.Len(t, env.fees.withdrawals, 1)
}

func TestVoidPendingFeesSkipsCleared(t *testing.T) {
	env := newEnv(nil)
	ctx := context.Background()
	a, err := env.core.Fees.RecordPendingFee(ctx, "p1", "e1", "v1", 1000, gigStart)
	require.NoError(t, err)
	require.NoError(t, env.core.Fees.ClearFee(ctx, "p1", a.ID))
	b, err := env.core.Fees.RecordPendingFee(ctx, "p2", "e1", "v1", 2000, gigStart)
	require.NoError(t, err)

	require.NoError(t, env.core.Fees.VoidPendingFees(ctx, "e1", "cancelled"))

	ga, _ := env.fees.Get(ctx, a.ID)
	gb, _ := env.fees.Get(ctx, b.ID)
	assert.Equal(t, models.FeeCleared, ga.Status)
	assert.Equal(t, models.FeeVoid, gb.Status)
	// only the cleared fee's trigger is left
	pending := env.scheduler.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].FeeID)
}
