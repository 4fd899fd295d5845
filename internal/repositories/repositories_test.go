package repositories

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"gigBack/internal/models"
)

var t0 = time.Date(2026, 6, 10, 18, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "booking.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(context.Background(), db, DialectSQLite))
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(context.Background(), db, DialectSQLite))

	var applied int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 2, applied)

	assert.Error(t, Migrate(context.Background(), db, "postgres"))
}

func TestUpSectionDropsDown(t *testing.T) {
	stmts := splitStatements(upSection("-- +migrate Up\nCREATE TABLE a (id INT);\nCREATE TABLE b (id INT);\n-- +migrate Down\nDROP TABLE a;"))
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, stmts)
}

func newEngagement(id string) models.Engagement {
	return models.Engagement{
		ID:        id,
		VenueID:   "v1",
		Kind:      "Live Music",
		Budget:    20000,
		StartAt:   t0.Add(48 * time.Hour),
		Status:    models.EngagementOpen,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
}

func TestEngagementRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewEngagementRepository(openTestDB(t))

	e := newEngagement("e1")
	e.Applications = []models.Application{{PerformerID: "p1", PerformerKind: models.PerformerSolo, Fee: 15000, Status: models.ApplicationPending, Timestamp: t0}}
	created, err := repo.Create(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)

	got, err := repo.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, e.StartAt, got.StartAt)
	require.Len(t, got.Applications, 1)
	assert.Equal(t, int64(15000), got.Applications[0].Fee)
	assert.Nil(t, got.AgreedFee)
	assert.Nil(t, got.PayoutConfig)

	fee := int64(15000)
	clearing := got.StartAt.Add(48 * time.Hour)
	got.AgreedFee = &fee
	got.DisputeClearingAt = &clearing
	got.PaymentRef = "pay_e1"
	got.BookedAt = &t0
	got.PayoutConfig = &models.PayoutConfig{PerformerID: "b1", TotalFee: fee, Shares: []models.PayoutShare{{PerformerID: "p1", UserID: "u-p1", SplitBP: 10000}}}
	updated, err := repo.Update(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	byRef, err := repo.GetByPaymentRef(ctx, "pay_e1")
	require.NoError(t, err)
	require.NotNil(t, byRef.AgreedFee)
	assert.Equal(t, fee, *byRef.AgreedFee)
	require.NotNil(t, byRef.DisputeClearingAt)
	assert.Equal(t, clearing, *byRef.DisputeClearingAt)
	require.NotNil(t, byRef.PayoutConfig)
	assert.Equal(t, int64(10000), byRef.PayoutConfig.Shares[0].SplitBP)
	assert.Equal(t, "p1", byRef.PayoutConfig.Shares[0].PerformerID)
	require.NotNil(t, byRef.BookedAt)
	assert.True(t, byRef.BookedAt.Equal(t0))

	_, err = repo.GetByPaymentRef(ctx, "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEngagementStaleWriteConflicts(t *testing.T) {
	ctx := context.Background()
	repo := NewEngagementRepository(openTestDB(t))
	e, err := repo.Create(ctx, newEngagement("e1"))
	require.NoError(t, err)

	first := e
	first.Budget = 25000
	_, err = repo.Update(ctx, first)
	require.NoError(t, err)

	stale := e
	stale.Budget = 30000
	_, err = repo.Update(ctx, stale)
	assert.ErrorIs(t, err, models.ErrVersionConflict)
	assert.True(t, models.IsRetryable(err))

	got, err := repo.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(25000), got.Budget)
}

func TestEngagementBookOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewEngagementRepository(openTestDB(t))
	e, err := repo.Create(ctx, newEngagement("e1"))
	require.NoError(t, err)

	a := e
	a.BookedPerformerID = "p1"
	_, err = repo.Book(ctx, a)
	require.NoError(t, err)

	b := e
	b.BookedPerformerID = "p2"
	_, err = repo.Book(ctx, b)
	assert.Equal(t, models.ErrAlreadyBooked, err)

	got, err := repo.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.BookedPerformerID)

	_, err = repo.Update(ctx, models.Engagement{ID: "missing", Version: 1})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEngagementDeleteAndAwaitingPayment(t *testing.T) {
	ctx := context.Background()
	repo := NewEngagementRepository(openTestDB(t))
	bookedAt := t0

	booked := newEngagement("e1")
	booked.BookedPerformerID = "p1"
	booked.BookedAt = &bookedAt
	booked.Applications = []models.Application{{PerformerID: "p1", Status: models.ApplicationAccepted, Timestamp: t0}}
	_, err := repo.Create(ctx, booked)
	require.NoError(t, err)

	confirmed := newEngagement("e2")
	confirmed.BookedPerformerID = "p2"
	confirmed.BookedAt = &bookedAt
	confirmed.Applications = []models.Application{{PerformerID: "p2", Status: models.ApplicationConfirmed, Timestamp: t0}}
	_, err = repo.Create(ctx, confirmed)
	require.NoError(t, err)

	_, err = repo.Create(ctx, newEngagement("e3"))
	require.NoError(t, err)

	charging := newEngagement("e4")
	charging.BookedPerformerID = "p3"
	charging.BookedAt = &bookedAt
	charging.PaymentRef = "pi_4"
	charging.Applications = []models.Application{{PerformerID: "p3", Status: models.ApplicationPaymentProcessing, Timestamp: t0}}
	created, err := repo.Create(ctx, charging)
	require.NoError(t, err)
	// a later write moves updated_at but not the booking time
	created.UpdatedAt = t0.Add(5 * time.Hour)
	_, err = repo.Update(ctx, created)
	require.NoError(t, err)

	late := newEngagement("e5")
	late.BookedPerformerID = "p4"
	lateAt := t0.Add(2 * time.Hour)
	late.BookedAt = &lateAt
	late.Applications = []models.Application{{PerformerID: "p4", Status: models.ApplicationAccepted, Timestamp: t0}}
	_, err = repo.Create(ctx, late)
	require.NoError(t, err)

	stale, err := repo.ListAwaitingPayment(ctx, t0.Add(time.Hour), 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(stale))
	for _, e := range stale {
		ids = append(ids, e.ID)
		require.NotNil(t, e.BookedAt)
		assert.True(t, e.BookedAt.Equal(t0))
	}
	assert.ElementsMatch(t, []string{"e1", "e4"}, ids)

	none, err := repo.ListAwaitingPayment(ctx, t0.Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, repo.Delete(ctx, "e3"))
	assert.ErrorIs(t, repo.Delete(ctx, "e3"), models.ErrNotFound)
}

func TestVenueGigList(t *testing.T) {
	ctx := context.Background()
	repo := NewVenueRepository(openTestDB(t))
	_, err := repo.Create(ctx, models.Venue{ID: "v1", Name: "The Lantern", OwnerID: "u-owner",
		Members: []models.VenueMember{{UserID: "u-staff", Name: "Sam", Status: models.VenueMemberActive}}})
	require.NoError(t, err)

	require.NoError(t, repo.AddGig(ctx, "v1", "e1"))
	require.NoError(t, repo.AddGig(ctx, "v1", "e2"))
	require.NoError(t, repo.AddGig(ctx, "v1", "e1"))
	require.NoError(t, repo.RemoveGig(ctx, "v1", "e1"))
	require.NoError(t, repo.RemoveGig(ctx, "v1", "e9"))
	require.NoError(t, repo.AddReview(ctx, "v1", true))
	require.NoError(t, repo.AddReview(ctx, "v1", false))

	v, err := repo.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"e2"}, v.GigIDs)
	require.Len(t, v.Members, 1)
	assert.Equal(t, "u-staff", v.Members[0].UserID)
	assert.Equal(t, 2, v.ReviewsTotal)
	assert.Equal(t, 1, v.ReviewsPositive)

	assert.ErrorIs(t, repo.AddGig(ctx, "missing", "e1"), models.ErrNotFound)
	assert.ErrorIs(t, repo.AddReview(ctx, "missing", true), models.ErrNotFound)
}

func TestPerformerEarnings(t *testing.T) {
	ctx := context.Background()
	repo := NewPerformerRepository(openTestDB(t))
	_, err := repo.Create(ctx, models.Performer{ID: "p1", Kind: models.PerformerSolo, Name: "Ana", UserID: "u-p1", CreatedAt: t0})
	require.NoError(t, err)

	require.NoError(t, repo.AdjustEarnings(ctx, "p1", 15000, 15000))
	require.NoError(t, repo.AdjustEarnings(ctx, "p1", -5000, 0))
	err = repo.AdjustEarnings(ctx, "p1", -20000, 0)
	assert.Equal(t, models.ErrInsufficientEarnings, err)
	assert.ErrorIs(t, repo.AdjustEarnings(ctx, "nobody", 1, 1), models.ErrNotFound)

	require.NoError(t, repo.AddApplication(ctx, "p1", "e1"))
	require.NoError(t, repo.AddApplication(ctx, "p1", "e1"))
	require.NoError(t, repo.SetPayoutDestination(ctx, "p1", "acct_1"))

	p, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), p.WithdrawableEarnings)
	assert.Equal(t, int64(15000), p.TotalEarnings)
	assert.Equal(t, []string{"e1"}, p.GigApplications)
	assert.Equal(t, "acct_1", p.PayoutDestination)

	require.NoError(t, repo.RemoveApplication(ctx, "p1", "e1"))
	p, err = repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, p.GigApplications)

	_, err = repo.Create(ctx, models.Performer{ID: "p1", Kind: models.PerformerSolo, UserID: "u-p1", CreatedAt: t0})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestBandMembersKeepOrder(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	bands := NewBandRepository(db)

	members := []models.BandMember{
		{PerformerID: "p1", UserID: "u-p1", Name: "Ana", Role: models.RoleBandLeader, IsAdmin: true, SplitBP: 5050, JoinedAt: t0},
		{PerformerID: "p3", UserID: "u-p3", Name: "Cy", Role: models.RoleBandMember, SplitBP: 4950, JoinedAt: t0},
	}
	require.NoError(t, bands.ReplaceMembers(ctx, "b1", members))

	got, err := bands.Members(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].PerformerID)
	assert.True(t, got[0].IsAdmin)
	assert.Equal(t, int64(4950), got[1].SplitBP)

	dup := append(members, members[0])
	assert.Equal(t, models.ErrAlreadyMember, bands.ReplaceMembers(ctx, "b1", dup))
	got, err = bands.Members(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, got, 2, "failed replace must roll back")

	performers := NewPerformerRepository(db)
	_, err = performers.Create(ctx, models.Performer{ID: "b1", Kind: models.PerformerBand, Name: "The Tides", UserID: "u-p1", CreatedAt: t0})
	require.NoError(t, err)
	_, err = performers.Create(ctx, models.Performer{ID: "p1", Kind: models.PerformerSolo, Name: "Ana", UserID: "u-p1", CreatedAt: t0})
	require.NoError(t, err)

	identity := &IdentityResolver{Venues: NewVenueRepository(db), Performers: performers, Bands: bands}
	_, bandMembers, err := identity.Performer(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, bandMembers, 2)
	_, soloMembers, err := identity.Performer(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, soloMembers)

	require.NoError(t, bands.DeleteBand(ctx, "b1"))
	got, err = bands.Members(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBandInviteUsedOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewBandRepository(openTestDB(t))
	_, err := repo.CreateInvite(ctx, models.BandInvite{ID: "i1", BandID: "b1", InvitedBy: "p1", Status: models.InvitePending,
		CreatedAt: t0, ExpiresAt: t0.Add(7 * 24 * time.Hour)})
	require.NoError(t, err)

	inv, err := repo.GetInvite(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(7*24*time.Hour), inv.ExpiresAt)

	require.NoError(t, repo.MarkInviteAccepted(ctx, "i1"))
	assert.Equal(t, models.ErrInviteUsed, repo.MarkInviteAccepted(ctx, "i1"))
	assert.Equal(t, models.ErrInviteNotFound, repo.MarkInviteAccepted(ctx, "i2"))
}

func TestConversationPerPair(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(openTestDB(t))

	c := models.Conversation{
		ID:                "c1",
		EngagementID:      "e1",
		VenueID:           "v1",
		PerformerID:       "p1",
		Participants:      []string{"v1", "p1"},
		AccountNames:      []models.AccountName{{ParticipantID: "v1", AccountID: "u-owner", AccountName: "The Lantern", Role: models.RoleVenue}},
		AuthorizedUserIDs: []string{"u-owner", "u-p1"},
		Status:            models.ConversationOpen,
		CreatedAt:         t0,
	}
	created, err := repo.Create(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "c1", created.ID)

	again := c
	again.ID = "c2"
	existing, err := repo.Create(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, "c1", existing.ID)

	msg := models.Message{ID: "m1", ConversationID: "c1", SenderID: "p1", Type: models.MessageApplication,
		Status: models.ApplicationPending, Text: "Applied for £150.00", Fee: 15000, CreatedAt: t0.Add(time.Minute)}
	_, err = repo.AddMessage(ctx, msg)
	require.NoError(t, err)
	_, err = repo.AddMessage(ctx, models.Message{ID: "m2", ConversationID: "c1", SenderID: models.SystemSender,
		Type: models.MessageAnnouncement, Status: models.MessageOpen, Text: "hello", CreatedAt: t0.Add(2 * time.Minute)})
	require.NoError(t, err)

	n, err := repo.SetMessageStatus(ctx, "c1", []string{models.MessageApplication, models.MessageInvitation},
		[]string{models.ApplicationPending}, models.MessageAppsClosed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = repo.SetMessageStatus(ctx, "c1", nil, []string{models.ApplicationPending}, models.MessageAppsClosed)
	require.NoError(t, err)
	assert.Zero(t, n)

	msgs, err := repo.Messages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.MessageAppsClosed, msgs[0].Status)
	assert.Equal(t, models.MessageOpen, msgs[1].Status)

	created.Touch(msgs[1])
	created.Status = models.ConversationClosed
	created.AuthorizedUserIDs = []string{"u-owner", "u-staff", "u-p1"}
	require.NoError(t, repo.Save(ctx, created))

	found, err := repo.Find(ctx, "e1", "p1")
	require.NoError(t, err)
	assert.Equal(t, models.ConversationClosed, found.Status)
	assert.Equal(t, "hello", found.LastMessage)
	assert.Equal(t, t0.Add(2*time.Minute), found.LastMessageAt)
	require.Len(t, found.AccountNames, 1)
	assert.Equal(t, "The Lantern", found.AccountNames[0].AccountName)

	staff, err := repo.ListForUser(ctx, "u-staff", 0)
	require.NoError(t, err)
	assert.Len(t, staff, 1)

	list, err := repo.ListByEngagement(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = repo.Find(ctx, "e1", "p2")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, repo.Save(ctx, models.Conversation{ID: "nope"}), models.ErrNotFound)
}

func TestFeeStatusCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewFeeRepository(openTestDB(t))
	for _, f := range []models.Fee{
		{ID: "f1", PerformerID: "p1", EngagementID: "e1", VenueID: "v1", Amount: 15000, Status: models.FeePending, ClearAt: t0.Add(time.Hour), CreatedAt: t0},
		{ID: "f2", PerformerID: "p1", EngagementID: "e2", VenueID: "v1", Amount: 5000, Status: models.FeePending, ClearAt: t0.Add(72 * time.Hour), CreatedAt: t0},
	} {
		_, err := repo.Create(ctx, f)
		require.NoError(t, err)
	}

	due, err := repo.ListDue(ctx, t0.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "f1", due[0].ID)

	require.NoError(t, repo.UpdateStatus(ctx, "f1", models.FeePending, models.FeeInDispute, "no show"))
	err = repo.UpdateStatus(ctx, "f1", models.FeePending, models.FeeCleared, "")
	assert.Equal(t, models.ErrFeeNotPending, err)
	assert.Equal(t, models.ErrFeeNotFound, repo.UpdateStatus(ctx, "f9", models.FeePending, models.FeeCleared, ""))

	f1, err := repo.Get(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, models.FeeInDispute, f1.Status)
	assert.Equal(t, "no show", f1.DisputeReason)
	assert.NotNil(t, f1.StatusChangeAt)

	due, err = repo.ListDue(ctx, t0.Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	byPerformer, err := repo.ListByPerformer(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, byPerformer, 2)

	_, err = repo.CreateWithdrawal(ctx, models.Withdrawal{ID: "w1", PerformerID: "p1", Amount: 5000, Destination: "acct_1", PayoutRef: "po_1", CreatedAt: t0})
	require.NoError(t, err)
}

func TestReviewOncePerSide(t *testing.T) {
	ctx := context.Background()
	repo := NewReviewRepository(openTestDB(t))
	rev := models.Review{ID: "r1", EngagementID: "e1", PerformerID: "p1", VenueID: "v1", WrittenBy: models.RoleVenue, Rating: models.RatingPositive, CreatedAt: t0}
	_, err := repo.Create(ctx, rev)
	require.NoError(t, err)

	rev.ID = "r2"
	_, err = repo.Create(ctx, rev)
	assert.Equal(t, models.ErrDuplicateReview, err)

	rev.ID = "r3"
	rev.WrittenBy = models.RolePerformer
	_, err = repo.Create(ctx, rev)
	require.NoError(t, err)

	list, err := repo.ListByPerformer(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestDisputeAndCancellationLogs(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	disputes := NewDisputeRepository(db)
	cancellations := NewCancellationRepository(db)

	_, err := disputes.Create(ctx, models.Dispute{ID: "d1", EngagementID: "e1", PerformerID: "p1", VenueID: "v1", Reason: "no show", Status: models.DisputeOpen, CreatedAt: t0})
	require.NoError(t, err)
	_, err = cancellations.Create(ctx, models.Cancellation{ID: "x1", EngagementID: "e1", PerformerID: "p1", VenueID: "v1", Reason: "ill", CancellingParty: models.CancelledByPerformer, CreatedAt: t0})
	require.NoError(t, err)

	ds, err := disputes.ListByEngagement(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "no show", ds[0].Reason)

	cs, err := cancellations.ListByEngagement(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, models.CancelledByPerformer, cs[0].CancellingParty)
}

func TestSagaStepsParkAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	repo := NewSagaRepository(openTestDB(t))
	_, err := repo.Create(ctx, models.SagaStep{ID: "s1", Kind: "close-sibling", EngagementID: "e1", Payload: []byte(`{"performer_id":"p2"}`),
		LastError: "boom", Attempts: 1, Status: models.StepPending, NextAttemptAt: t0, CreatedAt: t0})
	require.NoError(t, err)

	due, err := repo.ListDue(ctx, t0, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.JSONEq(t, `{"performer_id":"p2"}`, string(due[0].Payload))

	next := t0.Add(time.Minute)
	require.NoError(t, repo.MarkFailed(ctx, "s1", "boom again", next))
	due, err = repo.ListDue(ctx, t0, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
	due, err = repo.ListDue(ctx, next, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 2, due[0].Attempts)
	assert.Equal(t, "boom again", due[0].LastError)

	for i := 2; i < maxStepAttempts; i++ {
		require.NoError(t, repo.MarkFailed(ctx, "s1", "still failing", next))
	}
	due, err = repo.ListDue(ctx, next, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "step should be parked as failed")

	_, err = repo.Create(ctx, models.SagaStep{ID: "s2", Kind: "unlink-venue", EngagementID: "e1", Payload: []byte(`{}`), Status: models.StepPending, NextAttemptAt: t0, CreatedAt: t0})
	require.NoError(t, err)
	require.NoError(t, repo.MarkDone(ctx, "s2"))
	due, err = repo.ListDue(ctx, next, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMapWriteErrPassesThrough(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, plain, mapWriteErr(plain, models.ErrDuplicateReview))
	assert.NoError(t, mapWriteErr(nil, models.ErrDuplicateReview))
}

func TestNotifyTokens(t *testing.T) {
	ctx := context.Background()
	repo := NewNotifyTokenRepository(openTestDB(t))
	require.NoError(t, repo.Register(ctx, "u-p1", "phone"))
	require.NoError(t, repo.Register(ctx, "u-p1", "phone"))
	require.NoError(t, repo.Register(ctx, "u-p1", "tablet"))

	tokens, err := repo.Tokens(ctx, "u-p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"phone", "tablet"}, tokens)

	require.NoError(t, repo.Delete(ctx, "u-p1", "phone"))
	tokens, err = repo.Tokens(ctx, "u-p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tablet"}, tokens)
}
