package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders, makeResponseJSON)
	authMiddleware := standardMiddleware.Append(app.JWTMiddlewareWithRole(""))
	adminMiddleware := standardMiddleware.Append(app.JWTMiddlewareWithRole("admin"))

	mux := pat.New()

	// Engagements
	mux.Post("/engagements", authMiddleware.ThenFunc(app.engagementHandler.PostEngagement))
	mux.Get("/engagements/:id", authMiddleware.ThenFunc(app.engagementHandler.GetEngagement))
	mux.Del("/engagements/:id", authMiddleware.ThenFunc(app.cancellationHandler.DeleteEngagement))
	mux.Post("/engagements/:id/duplicate", authMiddleware.ThenFunc(app.engagementHandler.DuplicateEngagement))
	mux.Post("/engagements/:id/apply", authMiddleware.ThenFunc(app.engagementHandler.Apply))
	mux.Post("/engagements/:id/invite", authMiddleware.ThenFunc(app.engagementHandler.Invite))
	mux.Post("/engagements/:id/negotiate", authMiddleware.ThenFunc(app.engagementHandler.Negotiate))
	mux.Post("/engagements/:id/accept", authMiddleware.ThenFunc(app.engagementHandler.AcceptOffer))
	mux.Post("/engagements/:id/decline", authMiddleware.ThenFunc(app.engagementHandler.DeclineApplication))
	mux.Post("/engagements/:id/payment", authMiddleware.ThenFunc(app.engagementHandler.StartPayment))
	mux.Post("/engagements/:id/confirm", adminMiddleware.ThenFunc(app.engagementHandler.ConfirmPayment))
	mux.Post("/engagements/:id/viewed", authMiddleware.ThenFunc(app.engagementHandler.MarkViewed))
	mux.Post("/engagements/:id/cancel", authMiddleware.ThenFunc(app.cancellationHandler.Cancel))
	mux.Get("/engagements/:id/cancellations", authMiddleware.ThenFunc(app.cancellationHandler.Cancellations))

	// Disputes and reviews
	mux.Post("/engagements/:id/disputes", authMiddleware.ThenFunc(app.disputeHandler.OpenDispute))
	mux.Get("/engagements/:id/disputes", authMiddleware.ThenFunc(app.disputeHandler.Disputes))
	mux.Post("/engagements/:id/reviews", authMiddleware.ThenFunc(app.reviewHandler.Submit))
	mux.Get("/performers/:id/reviews", authMiddleware.ThenFunc(app.reviewHandler.PerformerReviews))

	// Conversations
	mux.Get("/conversations", authMiddleware.ThenFunc(app.conversationHandler.Inbox))
	mux.Get("/engagements/:id/conversations/:performer_id", authMiddleware.ThenFunc(app.conversationHandler.Thread))

	// Earnings
	mux.Get("/performers/:id/earnings", authMiddleware.ThenFunc(app.feeHandler.Earnings))
	mux.Put("/performers/:id/payout_destination", authMiddleware.ThenFunc(app.feeHandler.SetPayoutDestination))
	mux.Post("/performers/:id/payouts", authMiddleware.ThenFunc(app.feeHandler.Payout))

	// Bands
	mux.Post("/bands", authMiddleware.ThenFunc(app.bandHandler.CreateBand))
	mux.Get("/bands/:id/members", authMiddleware.ThenFunc(app.bandHandler.Members))
	mux.Post("/bands/:id/members", authMiddleware.ThenFunc(app.bandHandler.AddMember))
	mux.Del("/bands/:id/members/:performer_id", authMiddleware.ThenFunc(app.bandHandler.RemoveMember))
	mux.Put("/bands/:id/splits", authMiddleware.ThenFunc(app.bandHandler.SetSplits))
	mux.Put("/bands/:id/roles", authMiddleware.ThenFunc(app.bandHandler.UpdateRoles))
	mux.Post("/bands/:id/invites", authMiddleware.ThenFunc(app.bandHandler.CreateInvite))
	mux.Post("/bands/invites/:invite_id/accept", authMiddleware.ThenFunc(app.bandHandler.AcceptInvite))
	mux.Put("/bands/:id/join_password", authMiddleware.ThenFunc(app.bandHandler.SetJoinPassword))
	mux.Post("/bands/:id/join", authMiddleware.ThenFunc(app.bandHandler.Join))
	mux.Del("/bands/:id", authMiddleware.ThenFunc(app.bandHandler.DeleteBand))

	// Push tokens
	mux.Post("/notify/tokens", authMiddleware.ThenFunc(app.notifyHandler.RegisterToken))
	mux.Del("/notify/tokens/:token", authMiddleware.ThenFunc(app.notifyHandler.DeleteToken))

	// Processor callbacks are authenticated by signature, not by token.
	mux.Post("/payments/webhook", standardMiddleware.ThenFunc(app.webhookHandler.Settlement))

	// Event stream
	mux.Get("/ws/events", authMiddleware.ThenFunc(app.hub.ServeWS))

	return mux
}
