package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gigBack/internal/models"
)

const (
	textSiblingConfirmed = "This gig has been confirmed with another musician. Applications are now closed."
	textReopened         = "This gig has reopened. Applications are open again."
	textDeleted          = "This gig has been deleted by the venue."
	textPaymentFailed    = "The payment for this gig failed. Please try again or contact support."
	textPaid             = "The fee has been paid. This gig is confirmed."
	textReviewPrompt     = "How was the gig? Please let us know if you had any issues within 48 hours."
)

var offerTypes = []string{models.MessageApplication, models.MessageInvitation, models.MessageNegotiation}

// CorrespondenceService mirrors engagement transitions into the conversation
// between the venue and each performer.
type CorrespondenceService struct {
	conversations ConversationRepository
	identity      IdentityResolver
	notifier      Notifier
	events        Publisher
	journal       *Journal
	clock         Clock
	log           Logger
}

// OnApply records an application message.
func (s *CorrespondenceService) OnApply(ctx context.Context, e models.Engagement, app models.Application) error {
	c, err := s.ensure(ctx, e, app.PerformerID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("%s applied to the gig on %s.", s.performerName(c), formatDate(e))
	return s.offer(ctx, c, app.PerformerID, models.MessageApplication, text, app.Fee)
}

// OnInvite records an invitation message from the venue.
func (s *CorrespondenceService) OnInvite(ctx context.Context, e models.Engagement, app models.Application) error {
	c, err := s.ensure(ctx, e, app.PerformerID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("%s invited %s to play at their gig on %s.", c.VenueName, s.performerName(c), formatDate(e))
	return s.offer(ctx, c, e.VenueID, models.MessageInvitation, text, app.Fee)
}

// OnNegotiate records a counter-offer from either side.
func (s *CorrespondenceService) OnNegotiate(ctx context.Context, e models.Engagement, app models.Application) error {
	c, err := s.ensure(ctx, e, app.PerformerID)
	if err != nil {
		return err
	}
	sender := app.PerformerID
	text := fmt.Sprintf("%s wants to negotiate the fee on %s.", s.performerName(c), formatDate(e))
	if app.SentBy == models.SentByVenue {
		sender = e.VenueID
		text = fmt.Sprintf("The venue proposes a new fee: %s", formatFee(app.Fee))
	}
	// the previous offer in this thread is superseded
	if _, err := s.conversations.SetMessageStatus(ctx, c.ID, offerTypes, []string{models.ApplicationPending}, models.ApplicationDeclined); err != nil {
		return err
	}
	return s.offer(ctx, c, sender, models.MessageNegotiation, text, app.Fee)
}

// OnDecline marks the performer's pending offers declined.
func (s *CorrespondenceService) OnDecline(ctx context.Context, e models.Engagement, performerID string) error {
	c, err := s.conversations.Find(ctx, e.ID, performerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	_, err = s.conversations.SetMessageStatus(ctx, c.ID, offerTypes, []string{models.ApplicationPending, models.ApplicationAccepted}, models.ApplicationDeclined)
	return err
}

// OnAccept updates the winner's thread and then closes every sibling thread.
// Sibling failures are journaled and do not fail the booking.
func (s *CorrespondenceService) OnAccept(ctx context.Context, e models.Engagement, winnerID string, payable bool) error {
	if err := s.acceptWinner(ctx, e, winnerID, payable); err != nil {
		s.journal.Record(ctx, stepWinnerAccepted, e.ID, sagaPayload{EngagementID: e.ID, PerformerID: winnerID, Payable: payable}, err)
	}
	if err := s.closeSiblings(ctx, e, winnerID); err != nil {
		s.journal.Record(ctx, stepAcceptFanout, e.ID, sagaPayload{EngagementID: e.ID, PerformerID: winnerID}, err)
		return err
	}
	return nil
}

// closeSiblings closes every open thread but the winner's. Only a failed
// listing is returned; single thread failures are journaled one by one.
func (s *CorrespondenceService) closeSiblings(ctx context.Context, e models.Engagement, winnerID string) error {
	convs, err := s.conversations.ListByEngagement(ctx, e.ID)
	if err != nil {
		return err
	}
	for _, c := range convs {
		if c.PerformerID == winnerID || c.Status == models.ConversationClosed {
			continue
		}
		if err := s.closeSibling(ctx, c); err != nil {
			s.journal.Record(ctx, stepCloseSibling, e.ID, sagaPayload{EngagementID: e.ID, PerformerID: c.PerformerID}, err)
		}
	}
	return nil
}

func (s *CorrespondenceService) acceptWinner(ctx context.Context, e models.Engagement, winnerID string, payable bool) error {
	c, err := s.ensure(ctx, e, winnerID)
	if err != nil {
		return err
	}
	if _, err := s.conversations.SetMessageStatus(ctx, c.ID, offerTypes, []string{models.ApplicationPending}, models.ApplicationAccepted); err != nil {
		return err
	}
	status := models.MessageAwaitingPayment
	if !payable {
		status = models.MessageGigConfirmed
	}
	var fee int64
	if e.AgreedFee != nil {
		fee = *e.AgreedFee
	}
	text := fmt.Sprintf("The venue has accepted the gig for a fee of %s.", formatFee(fee))
	return s.announce(ctx, &c, status, text, models.ConversationOpen)
}

func (s *CorrespondenceService) closeSibling(ctx context.Context, c models.Conversation) error {
	if _, err := s.conversations.SetMessageStatus(ctx, c.ID, offerTypes, []string{models.ApplicationPending}, models.ApplicationDeclined); err != nil {
		return err
	}
	return s.announce(ctx, &c, models.MessageGigConfirmed, textSiblingConfirmed, models.ConversationClosed)
}

// OnPaid marks the winner's awaiting-payment announcement settled.
func (s *CorrespondenceService) OnPaid(ctx context.Context, e models.Engagement, performerID string) error {
	c, err := s.ensure(ctx, e, performerID)
	if err != nil {
		return err
	}
	if _, err := s.conversations.SetMessageStatus(ctx, c.ID, []string{models.MessageAnnouncement}, []string{models.MessageAwaitingPayment}, models.MessageGigBooked); err != nil {
		return err
	}
	return s.announce(ctx, &c, models.MessageGigConfirmed, textPaid, models.ConversationOpen)
}

// OnPaymentFailed tells the pair the charge did not settle.
func (s *CorrespondenceService) OnPaymentFailed(ctx context.Context, e models.Engagement, performerID string) error {
	c, err := s.ensure(ctx, e, performerID)
	if err != nil {
		return err
	}
	if _, err := s.conversations.SetMessageStatus(ctx, c.ID, []string{models.MessageAnnouncement}, []string{models.MessageAwaitingPayment}, models.MessagePaymentFailed); err != nil {
		return err
	}
	return s.announce(ctx, &c, models.MessagePaymentFailed, textPaymentFailed, models.ConversationClosed)
}

// OnReopen re-opens the thread of every applicant except the removed one.
func (s *CorrespondenceService) OnReopen(ctx context.Context, e models.Engagement, removedPerformerID string) error {
	if err := s.reopenAll(ctx, e, removedPerformerID); err != nil {
		s.journal.Record(ctx, stepReopenFanout, e.ID, sagaPayload{EngagementID: e.ID, PerformerID: removedPerformerID}, err)
		return err
	}
	return nil
}

func (s *CorrespondenceService) reopenAll(ctx context.Context, e models.Engagement, removedPerformerID string) error {
	convs, err := s.conversations.ListByEngagement(ctx, e.ID)
	if err != nil {
		return err
	}
	for _, c := range convs {
		if c.PerformerID == removedPerformerID {
			continue
		}
		if err := s.reopen(ctx, c); err != nil {
			s.journal.Record(ctx, stepReopenConversation, e.ID, sagaPayload{EngagementID: e.ID, PerformerID: c.PerformerID}, err)
		}
	}
	return nil
}

func (s *CorrespondenceService) reopen(ctx context.Context, c models.Conversation) error {
	from := []string{models.ApplicationDeclined, models.ApplicationAccepted, models.MessageAppsClosed}
	if _, err := s.conversations.SetMessageStatus(ctx, c.ID, offerTypes, from, models.ApplicationPending); err != nil {
		return err
	}
	return s.announce(ctx, &c, models.MessageReopened, textReopened, models.ConversationOpen)
}

// OnCancelled closes the thread of the performer who lost the booking.
func (s *CorrespondenceService) OnCancelled(ctx context.Context, e models.Engagement, performerID, party string) error {
	c, err := s.conversations.Find(ctx, e.ID, performerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	if _, err := s.conversations.SetMessageStatus(ctx, c.ID, offerTypes, []string{models.ApplicationPending, models.ApplicationAccepted}, models.MessageCancelled); err != nil {
		return err
	}
	who := "The venue"
	if party == models.CancelledByPerformer {
		who = c.PerformerName
		if who == "" {
			who = "The musician"
		}
	}
	return s.announce(ctx, &c, models.MessageCancelled, who+" has cancelled this gig.", models.ConversationClosed)
}

// OnDelete closes the thread of every applicant of a deleted engagement.
func (s *CorrespondenceService) OnDelete(ctx context.Context, engagementID string) error {
	if err := s.closeAllDeleted(ctx, engagementID); err != nil {
		s.journal.Record(ctx, stepDeleteFanout, engagementID, sagaPayload{EngagementID: engagementID}, err)
		return err
	}
	return nil
}

func (s *CorrespondenceService) closeAllDeleted(ctx context.Context, engagementID string) error {
	convs, err := s.conversations.ListByEngagement(ctx, engagementID)
	if err != nil {
		return err
	}
	for _, c := range convs {
		if err := s.closeDeleted(ctx, c); err != nil {
			s.journal.Record(ctx, stepDeleteConversation, engagementID, sagaPayload{EngagementID: engagementID, PerformerID: c.PerformerID}, err)
		}
	}
	return nil
}

func (s *CorrespondenceService) closeDeleted(ctx context.Context, c models.Conversation) error {
	if _, err := s.conversations.SetMessageStatus(ctx, c.ID, offerTypes, []string{models.ApplicationPending}, models.MessageAppsClosed); err != nil {
		return err
	}
	return s.announce(ctx, &c, models.MessageAppsClosed, textDeleted, models.ConversationClosed)
}

// OnDispute posts the dispute notice into the pair's thread.
func (s *CorrespondenceService) OnDispute(ctx context.Context, e models.Engagement, performerID string) error {
	c, err := s.ensure(ctx, e, performerID)
	if err != nil {
		return err
	}
	venue := c.VenueName
	if venue == "" {
		venue = "The venue"
	}
	text := fmt.Sprintf("%s has reported this gig. We have withheld the gig fee until the dispute is resolved. We will be in touch shortly.", venue)
	return s.announce(ctx, &c, models.MessageDisputeLogged, text, models.ConversationOpen)
}

// OnReviewDue posts the post-gig review prompt.
func (s *CorrespondenceService) OnReviewDue(ctx context.Context, e models.Engagement, performerID string) error {
	c, err := s.ensure(ctx, e, performerID)
	if err != nil {
		return err
	}
	msg := models.Message{
		ConversationID: c.ID,
		SenderID:       models.SystemSender,
		Type:           models.MessageReview,
		Status:         models.MessageOpen,
		Text:           textReviewPrompt,
	}
	return s.post(ctx, &c, msg)
}

// Messages lists a conversation's messages.
func (s *CorrespondenceService) Messages(ctx context.Context, engagementID, performerID string) (models.Conversation, []models.Message, error) {
	c, err := s.conversations.Find(ctx, engagementID, performerID)
	if err != nil {
		return models.Conversation{}, nil, err
	}
	msgs, err := s.conversations.Messages(ctx, c.ID)
	if err != nil {
		return c, nil, err
	}
	return c, msgs, nil
}

func (s *CorrespondenceService) offer(ctx context.Context, c models.Conversation, sender, msgType, text string, fee int64) error {
	if c.Status == models.ConversationClosed {
		c.Status = models.ConversationOpen
	}
	msg := models.Message{
		ConversationID: c.ID,
		SenderID:       sender,
		Type:           msgType,
		Status:         models.ApplicationPending,
		Text:           text,
		Fee:            fee,
	}
	if err := s.post(ctx, &c, msg); err != nil {
		return err
	}
	s.push(ctx, c, sender, text)
	return nil
}

func (s *CorrespondenceService) announce(ctx context.Context, c *models.Conversation, status, text, convStatus string) error {
	c.Status = convStatus
	msg := models.Message{
		ConversationID: c.ID,
		SenderID:       models.SystemSender,
		Type:           models.MessageAnnouncement,
		Status:         status,
		Text:           text,
	}
	return s.post(ctx, c, msg)
}

func (s *CorrespondenceService) post(ctx context.Context, c *models.Conversation, msg models.Message) error {
	msg.ID = uuid.NewString()
	msg.CreatedAt = s.clock.Now()
	saved, err := s.conversations.AddMessage(ctx, msg)
	if err != nil {
		return err
	}
	c.Touch(saved)
	if err := s.conversations.Save(ctx, *c); err != nil {
		return err
	}
	s.events.Publish(ctx, models.Event{
		Type:         models.EventConversationUpdate,
		EngagementID: c.EngagementID,
		PerformerID:  c.PerformerID,
		VenueID:      c.VenueID,
		SubjectID:    c.ID,
		Status:       msg.Status,
		At:           msg.CreatedAt,
	})
	return nil
}

// push notifies every other authorized account; failures are only logged.
func (s *CorrespondenceService) push(ctx context.Context, c models.Conversation, sender, text string) {
	for _, acc := range c.AccountNames {
		if acc.ParticipantID == sender {
			continue
		}
		if err := s.notifier.SendMessage(ctx, acc.AccountID, "New message", text); err != nil {
			s.log.Errorf("push to %s failed: %v", acc.AccountID, err)
		}
	}
}

// ensure returns the (engagement, performer) conversation, creating it with
// identities resolved now. Identity lookups never block creation.
func (s *CorrespondenceService) ensure(ctx context.Context, e models.Engagement, performerID string) (models.Conversation, error) {
	c, err := s.conversations.Find(ctx, e.ID, performerID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return c, err
	}

	c = models.Conversation{
		ID:           uuid.NewString(),
		EngagementID: e.ID,
		VenueID:      e.VenueID,
		PerformerID:  performerID,
		Participants: []string{e.VenueID, performerID},
		Status:       models.ConversationOpen,
		CreatedAt:    s.clock.Now(),
	}

	venue, err := s.identity.Venue(ctx, e.VenueID)
	if err != nil {
		s.log.Errorf("resolve venue %s: %v", e.VenueID, err)
	} else {
		c.VenueName = venue.Name
		c.AccountNames = append(c.AccountNames, venueAccounts(venue)...)
	}
	performer, members, err := s.identity.Performer(ctx, performerID)
	if err != nil {
		s.log.Errorf("resolve performer %s: %v", performerID, err)
	} else {
		c.PerformerName = performer.Name
		c.AccountNames = append(c.AccountNames, performerAccounts(performer, members)...)
	}
	c.AuthorizedUserIDs = authorizedIDs(c.AccountNames)

	return s.conversations.Create(ctx, c)
}

func (s *CorrespondenceService) performerName(c models.Conversation) string {
	if c.PerformerName != "" {
		return c.PerformerName
	}
	return "A musician"
}

func venueAccounts(v models.Venue) []models.AccountName {
	out := []models.AccountName{}
	ownerSeen := false
	for _, m := range v.Members {
		if m.Status != models.VenueMemberActive {
			continue
		}
		if m.UserID == v.OwnerID {
			ownerSeen = true
		}
		out = append(out, models.AccountName{
			ParticipantID: v.ID,
			AccountID:     m.UserID,
			AccountName:   m.Name,
			AccountImg:    m.Image,
			Role:          models.RoleVenue,
		})
	}
	if !ownerSeen && v.OwnerID != "" {
		out = append(out, models.AccountName{
			ParticipantID: v.ID,
			AccountID:     v.OwnerID,
			AccountName:   v.Name,
			AccountImg:    v.Image,
			Role:          models.RoleVenue,
		})
	}
	return out
}

func performerAccounts(p models.Performer, members []models.BandMember) []models.AccountName {
	if p.Kind != models.PerformerBand || len(members) == 0 {
		return []models.AccountName{{
			ParticipantID: p.ID,
			AccountID:     p.UserID,
			AccountName:   p.Name,
			AccountImg:    p.Image,
			Role:          models.RolePerformer,
		}}
	}
	out := make([]models.AccountName, 0, len(members))
	for _, m := range members {
		out = append(out, models.AccountName{
			ParticipantID: p.ID,
			AccountID:     m.UserID,
			AccountName:   m.Name,
			AccountImg:    m.Image,
			Role:          models.RolePerformer,
		})
	}
	return out
}

func authorizedIDs(accounts []models.AccountName) []string {
	seen := make(map[string]struct{}, len(accounts))
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if a.AccountID == "" {
			continue
		}
		if _, ok := seen[a.AccountID]; ok {
			continue
		}
		seen[a.AccountID] = struct{}{}
		ids = append(ids, a.AccountID)
	}
	return ids
}

func formatDate(e models.Engagement) string {
	if e.StartAt.IsZero() {
		return "the scheduled date"
	}
	return e.StartAt.Format("2 January 2006")
}

func formatFee(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s£%d.%02d", sign, minor/100, minor%100)
}
