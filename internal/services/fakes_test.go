package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gigBack/internal/lock"
	"gigBack/internal/models"
	"gigBack/internal/scheduler"
)

type testLogger struct{}

func (testLogger) Infof(string, ...interface{})  {}
func (testLogger) Errorf(string, ...interface{}) {}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func copyEngagement(e models.Engagement) models.Engagement {
	e.Applications = append([]models.Application(nil), e.Applications...)
	return e
}

type memEngagements struct {
	mu   sync.Mutex
	rows map[string]models.Engagement
	// failBook forces the next N Book calls to report a version conflict.
	failBook int
}

func newMemEngagements() *memEngagements {
	return &memEngagements{rows: make(map[string]models.Engagement)}
}

func (m *memEngagements) Create(ctx context.Context, e models.Engagement) (models.Engagement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Version = 1
	m.rows[e.ID] = copyEngagement(e)
	return copyEngagement(e), nil
}

func (m *memEngagements) Get(ctx context.Context, id string) (models.Engagement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return models.Engagement{}, models.ErrEngagementNotFound
	}
	return copyEngagement(e), nil
}

func (m *memEngagements) GetByPaymentRef(ctx context.Context, ref string) (models.Engagement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if e.PaymentRef == ref {
			return copyEngagement(e), nil
		}
	}
	return models.Engagement{}, models.ErrEngagementNotFound
}

func (m *memEngagements) Update(ctx context.Context, e models.Engagement) (models.Engagement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(e, false)
}

func (m *memEngagements) Book(ctx context.Context, e models.Engagement) (models.Engagement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failBook > 0 {
		m.failBook--
		return models.Engagement{}, models.ErrVersionConflict
	}
	return m.write(e, true)
}

func (m *memEngagements) write(e models.Engagement, book bool) (models.Engagement, error) {
	cur, ok := m.rows[e.ID]
	if !ok {
		return models.Engagement{}, models.ErrEngagementNotFound
	}
	if book && cur.BookedPerformerID != "" {
		return models.Engagement{}, models.ErrAlreadyBooked
	}
	if cur.Version != e.Version {
		return models.Engagement{}, models.ErrVersionConflict
	}
	e.Version++
	m.rows[e.ID] = copyEngagement(e)
	return copyEngagement(e), nil
}

func (m *memEngagements) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return models.ErrEngagementNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memEngagements) ListAwaitingPayment(ctx context.Context, before time.Time, limit int) ([]models.Engagement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Engagement
	for _, e := range m.rows {
		if !e.Booked() || e.Paid || e.BookedAt == nil || e.BookedAt.After(before) {
			continue
		}
		app, _ := e.Latest(e.BookedPerformerID)
		if app != nil && (app.Status == models.ApplicationAccepted || app.Status == models.ApplicationPaymentProcessing) {
			out = append(out, copyEngagement(e))
		}
	}
	return out, nil
}

type memVenues struct {
	mu   sync.Mutex
	rows map[string]models.Venue
	// failRemove makes RemoveGig fail once.
	failRemove bool
}

func (m *memVenues) Get(ctx context.Context, id string) (models.Venue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[id]
	if !ok {
		return v, &models.Error{Kind: models.ErrNotFound, Code: "VenueNotFound"}
	}
	v.GigIDs = append([]string(nil), v.GigIDs...)
	return v, nil
}

func (m *memVenues) AddGig(ctx context.Context, venueID, engagementID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.rows[venueID]
	v.GigIDs = append(v.GigIDs, engagementID)
	m.rows[venueID] = v
	return nil
}

func (m *memVenues) RemoveGig(ctx context.Context, venueID, engagementID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRemove {
		m.failRemove = false
		return errors.New("store unavailable")
	}
	v := m.rows[venueID]
	v.GigIDs = removeString(v.GigIDs, engagementID)
	m.rows[venueID] = v
	return nil
}

func (m *memVenues) AddReview(ctx context.Context, venueID string, positive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.rows[venueID]
	v.ReviewsTotal++
	if positive {
		v.ReviewsPositive++
	}
	m.rows[venueID] = v
	return nil
}

type memPerformers struct {
	mu   sync.Mutex
	rows map[string]models.Performer
}

func (m *memPerformers) Get(ctx context.Context, id string) (models.Performer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return p, models.ErrPerformerNotFound
	}
	p.GigApplications = append([]string(nil), p.GigApplications...)
	return p, nil
}

func (m *memPerformers) Create(ctx context.Context, p models.Performer) (models.Performer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.ID] = p
	return p, nil
}

func (m *memPerformers) AddApplication(ctx context.Context, performerID, engagementID string) error {
	return m.edit(performerID, func(p *models.Performer) error {
		p.GigApplications = append(p.GigApplications, engagementID)
		return nil
	})
}

func (m *memPerformers) RemoveApplication(ctx context.Context, performerID, engagementID string) error {
	return m.edit(performerID, func(p *models.Performer) error {
		p.GigApplications = removeString(p.GigApplications, engagementID)
		return nil
	})
}

func (m *memPerformers) AdjustEarnings(ctx context.Context, performerID string, withdrawable, total int64) error {
	return m.edit(performerID, func(p *models.Performer) error {
		if p.WithdrawableEarnings+withdrawable < 0 {
			return models.ErrInsufficientEarnings
		}
		p.WithdrawableEarnings += withdrawable
		p.TotalEarnings += total
		return nil
	})
}

func (m *memPerformers) SetPayoutDestination(ctx context.Context, performerID, destination string) error {
	return m.edit(performerID, func(p *models.Performer) error {
		p.PayoutDestination = destination
		return nil
	})
}

func (m *memPerformers) SetJoinPassword(ctx context.Context, performerID, hash string) error {
	return m.edit(performerID, func(p *models.Performer) error {
		p.JoinPasswordHash = hash
		return nil
	})
}

func (m *memPerformers) AddReview(ctx context.Context, performerID string, positive bool) error {
	return m.edit(performerID, func(p *models.Performer) error {
		p.ReviewsTotal++
		if positive {
			p.ReviewsPositive++
		}
		return nil
	})
}

func (m *memPerformers) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memPerformers) edit(id string, fn func(p *models.Performer) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return models.ErrPerformerNotFound
	}
	if err := fn(&p); err != nil {
		return err
	}
	m.rows[id] = p
	return nil
}

type memBands struct {
	mu      sync.Mutex
	members map[string][]models.BandMember
	invites map[string]models.BandInvite
}

func newMemBands() *memBands {
	return &memBands{members: make(map[string][]models.BandMember), invites: make(map[string]models.BandInvite)}
}

func (m *memBands) Members(ctx context.Context, bandID string) ([]models.BandMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.BandMember(nil), m.members[bandID]...), nil
}

func (m *memBands) ReplaceMembers(ctx context.Context, bandID string, members []models.BandMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[bandID] = append([]models.BandMember(nil), members...)
	return nil
}

func (m *memBands) CreateInvite(ctx context.Context, inv models.BandInvite) (models.BandInvite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invites[inv.ID] = inv
	return inv, nil
}

func (m *memBands) GetInvite(ctx context.Context, id string) (models.BandInvite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[id]
	if !ok {
		return inv, models.ErrInviteNotFound
	}
	return inv, nil
}

func (m *memBands) MarkInviteAccepted(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := m.invites[id]
	inv.Status = models.InviteAccepted
	m.invites[id] = inv
	return nil
}

func (m *memBands) DeleteBand(ctx context.Context, bandID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, bandID)
	return nil
}

type memConversations struct {
	mu    sync.Mutex
	convs map[string]models.Conversation
	msgs  map[string][]models.Message
	// failFor makes writes to the named performer's conversation fail.
	failFor map[string]bool
	// failList makes that many ListByEngagement calls fail.
	failList int
}

func newMemConversations() *memConversations {
	return &memConversations{
		convs:   make(map[string]models.Conversation),
		msgs:    make(map[string][]models.Message),
		failFor: make(map[string]bool),
	}
}

func (m *memConversations) Create(ctx context.Context, c models.Conversation) (models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[c.ID] = c
	return c, nil
}

func (m *memConversations) Find(ctx context.Context, engagementID, performerID string) (models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.convs {
		if c.EngagementID == engagementID && c.PerformerID == performerID {
			return c, nil
		}
	}
	return models.Conversation{}, models.ErrConversationNotFound
}

func (m *memConversations) ListByEngagement(ctx context.Context, engagementID string) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList > 0 {
		m.failList--
		return nil, errors.New("conversation store unavailable")
	}
	var out []models.Conversation
	for _, c := range m.convs {
		if c.EngagementID == engagementID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PerformerID < out[j].PerformerID })
	return out, nil
}

func (m *memConversations) Save(ctx context.Context, c models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[c.PerformerID] {
		return errors.New("store unavailable")
	}
	m.convs[c.ID] = c
	return nil
}

func (m *memConversations) AddMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.convs[msg.ConversationID]; ok && m.failFor[c.PerformerID] {
		return msg, errors.New("store unavailable")
	}
	m.msgs[msg.ConversationID] = append(m.msgs[msg.ConversationID], msg)
	return msg, nil
}

func (m *memConversations) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message(nil), m.msgs[conversationID]...), nil
}

func (m *memConversations) SetMessageStatus(ctx context.Context, conversationID string, types, from []string, to string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.convs[conversationID]; ok && m.failFor[c.PerformerID] {
		return 0, errors.New("store unavailable")
	}
	var n int64
	list := m.msgs[conversationID]
	for i := range list {
		if contains(types, list[i].Type) && contains(from, list[i].Status) {
			list[i].Status = to
			n++
		}
	}
	return n, nil
}

type memFees struct {
	mu          sync.Mutex
	rows        map[string]models.Fee
	withdrawals []models.Withdrawal
}

func newMemFees() *memFees { return &memFees{rows: make(map[string]models.Fee)} }

func (m *memFees) Create(ctx context.Context, f models.Fee) (models.Fee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[f.ID] = f
	return f, nil
}

func (m *memFees) Get(ctx context.Context, id string) (models.Fee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.rows[id]
	if !ok {
		return f, models.ErrFeeNotFound
	}
	return f, nil
}

func (m *memFees) ListByEngagement(ctx context.Context, engagementID string) ([]models.Fee, error) {
	return m.list(func(f models.Fee) bool { return f.EngagementID == engagementID }), nil
}

func (m *memFees) ListByPerformer(ctx context.Context, performerID string) ([]models.Fee, error) {
	return m.list(func(f models.Fee) bool { return f.PerformerID == performerID }), nil
}

func (m *memFees) ListDue(ctx context.Context, before time.Time, limit int) ([]models.Fee, error) {
	return m.list(func(f models.Fee) bool { return f.Status == models.FeePending && !f.ClearAt.After(before) }), nil
}

func (m *memFees) list(keep func(models.Fee) bool) []models.Fee {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Fee
	for _, f := range m.rows {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memFees) UpdateStatus(ctx context.Context, id, from, to, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.rows[id]
	if !ok {
		return models.ErrFeeNotFound
	}
	if f.Status != from {
		return models.ErrFeeNotPending
	}
	f.Status = to
	switch to {
	case models.FeeInDispute:
		f.DisputeReason = reason
	case models.FeeVoid:
		f.VoidReason = reason
	}
	m.rows[id] = f
	return nil
}

func (m *memFees) CreateWithdrawal(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.withdrawals = append(m.withdrawals, w)
	return w, nil
}

type memDisputes struct {
	mu   sync.Mutex
	rows []models.Dispute
}

func (m *memDisputes) Create(ctx context.Context, d models.Dispute) (models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, d)
	return d, nil
}

func (m *memDisputes) ListByEngagement(ctx context.Context, engagementID string) ([]models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Dispute
	for _, d := range m.rows {
		if d.EngagementID == engagementID {
			out = append(out, d)
		}
	}
	return out, nil
}

type memCancellations struct {
	mu   sync.Mutex
	rows []models.Cancellation
}

func (m *memCancellations) Create(ctx context.Context, c models.Cancellation) (models.Cancellation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, c)
	return c, nil
}

type memReviews struct {
	mu   sync.Mutex
	rows []models.Review
}

func (m *memReviews) Create(ctx context.Context, r models.Review) (models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, r)
	return r, nil
}

type memSaga struct {
	mu    sync.Mutex
	steps map[string]models.SagaStep
}

func newMemSaga() *memSaga { return &memSaga{steps: make(map[string]models.SagaStep)} }

func (m *memSaga) Create(ctx context.Context, s models.SagaStep) (models.SagaStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[s.ID] = s
	return s, nil
}

func (m *memSaga) ListDue(ctx context.Context, now time.Time, limit int) ([]models.SagaStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SagaStep
	for _, s := range m.steps {
		if s.Status == models.StepPending && !s.NextAttemptAt.After(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSaga) MarkDone(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.steps[id]
	s.Status = models.StepDone
	m.steps[id] = s
	return nil
}

func (m *memSaga) MarkFailed(ctx context.Context, id, lastError string, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.steps[id]
	s.Attempts++
	s.LastError = lastError
	s.NextAttemptAt = next
	m.steps[id] = s
	return nil
}

func (m *memSaga) pending() []models.SagaStep {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SagaStep
	for _, s := range m.steps {
		if s.Status == models.StepPending {
			out = append(out, s)
		}
	}
	return out
}

type fakePayments struct {
	mu        sync.Mutex
	charges   int
	payouts   int
	chargeErr error
	payoutErr error
}

func (f *fakePayments) Charge(ctx context.Context, amount int64, destination string, metadata map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chargeErr != nil {
		return "", f.chargeErr
	}
	f.charges++
	return "pay_" + metadata["engagement_id"], nil
}

func (f *fakePayments) Payout(ctx context.Context, amount int64, destination string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.payoutErr != nil {
		return "", f.payoutErr
	}
	f.payouts++
	return "po_1", nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	pushes int
	emails []string
	err    error
}

func (f *fakeNotifier) SendMessage(ctx context.Context, userID, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes++
	return f.err
}

func (f *fakeNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, to)
	return f.err
}

// memIdentity resolves from the same maps the repositories use.
type memIdentity struct {
	venues     *memVenues
	performers *memPerformers
	bands      *memBands
}

func (m *memIdentity) Venue(ctx context.Context, id string) (models.Venue, error) {
	return m.venues.Get(ctx, id)
}

func (m *memIdentity) Performer(ctx context.Context, id string) (models.Performer, []models.BandMember, error) {
	p, err := m.performers.Get(ctx, id)
	if err != nil {
		return p, nil, err
	}
	members, _ := m.bands.Members(ctx, id)
	return p, members, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, ev models.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// nopLocker lets the version compare-and-set alone guard concurrent writers.
type nopLocker struct{}

func (nopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

type env struct {
	core          *Core
	clock         *fakeClock
	engagements   *memEngagements
	venues        *memVenues
	performers    *memPerformers
	bands         *memBands
	conversations *memConversations
	fees          *memFees
	disputes      *memDisputes
	cancellations *memCancellations
	saga          *memSaga
	scheduler     *scheduler.Local
	payments      *fakePayments
	notifier      *fakeNotifier
	events        *recordingPublisher
}

var gigStart = time.Date(2026, 6, 12, 20, 0, 0, 0, time.UTC)

func newEnv(locker Locker) *env {
	clock := &fakeClock{now: gigStart.Add(-72 * time.Hour)}
	venues := &memVenues{rows: map[string]models.Venue{
		"v1": {
			ID: "v1", Name: "The Lantern", OwnerID: "u-owner", Email: "venue@example.com",
			Members: []models.VenueMember{
				{UserID: "u-owner", Name: "Owner", Status: models.VenueMemberActive},
				{UserID: "u-staff", Name: "Staff", Status: models.VenueMemberActive},
				{UserID: "u-gone", Name: "Former", Status: "removed"},
			},
		},
	}}
	performers := &memPerformers{rows: map[string]models.Performer{}}
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		performers.rows[id] = models.Performer{ID: id, Kind: models.PerformerSolo, Name: "Solo " + id, UserID: "u-" + id, Email: id + "@example.com"}
	}
	bands := newMemBands()
	e := &env{
		clock:         clock,
		engagements:   newMemEngagements(),
		venues:        venues,
		performers:    performers,
		bands:         bands,
		conversations: newMemConversations(),
		fees:          newMemFees(),
		disputes:      &memDisputes{},
		cancellations: &memCancellations{},
		saga:          newMemSaga(),
		scheduler:     scheduler.NewLocal(),
		payments:      &fakePayments{},
		notifier:      &fakeNotifier{},
		events:        &recordingPublisher{},
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	core, err := NewCore(Deps{
		Engagements:   e.engagements,
		Venues:        venues,
		Performers:    performers,
		Bands:         bands,
		Conversations: e.conversations,
		Fees:          e.fees,
		Disputes:      e.disputes,
		Cancellations: e.cancellations,
		Reviews:       &memReviews{},
		Saga:          e.saga,
		Locker:        locker,
		Scheduler:     e.scheduler,
		Payments:      e.payments,
		Notifier:      e.notifier,
		Identity:      &memIdentity{venues: venues, performers: performers, bands: bands},
		Events:        e.events,
		Clock:         clock,
		Logger:        testLogger{},
	})
	if err != nil {
		panic(err)
	}
	e.core = core
	return e
}

func (e *env) post(budget int64) models.Engagement {
	eng, err := e.core.Engagements.PostEngagement(context.Background(), models.Engagement{
		VenueID: "v1",
		Kind:    "Live Music",
		Budget:  budget,
		StartAt: gigStart,
	})
	if err != nil {
		panic(err)
	}
	return eng
}

func (e *env) messages(engagementID, performerID string) (models.Conversation, []models.Message) {
	c, msgs, err := e.core.Correspondence.Messages(context.Background(), engagementID, performerID)
	if err != nil {
		panic(err)
	}
	return c, msgs
}

func countBooked(e models.Engagement) int {
	n := 0
	for _, pid := range e.PerformerIDs() {
		app, _ := e.Latest(pid)
		switch app.Status {
		case models.ApplicationAccepted, models.ApplicationConfirmed, models.ApplicationPaid:
			n++
		}
	}
	return n
}

func countAnnouncements(msgs []models.Message, status string) int {
	n := 0
	for _, m := range msgs {
		if m.Type == models.MessageAnnouncement && m.Status == status {
			n++
		}
	}
	return n
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func removeString(list []string, v string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
