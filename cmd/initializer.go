package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"gigBack/internal/config"
	"gigBack/internal/events"
	"gigBack/internal/handlers"
	"gigBack/internal/lock"
	"gigBack/internal/models"
	"gigBack/internal/notify"
	"gigBack/internal/pay"
	"gigBack/internal/repositories"
	"gigBack/internal/scheduler"
	"gigBack/internal/services"
	"gigBack/internal/ws"
)

// triggerQueue is a scheduler the trigger worker can drain.
type triggerQueue interface {
	services.Scheduler
	Due(ctx context.Context, now time.Time, limit int) ([]models.Trigger, error)
}

type application struct {
	log     *logrus.Logger
	cfg     config.Config
	db      *sql.DB
	core    *services.Core
	queue   triggerQueue
	bus     *events.Bus
	hub     *ws.EventHub
	closers []func() error

	engagementHandler   *handlers.EngagementHandler
	cancellationHandler *handlers.CancellationHandler
	bandHandler         *handlers.BandHandler
	feeHandler          *handlers.FeeHandler
	disputeHandler      *handlers.DisputeHandler
	reviewHandler       *handlers.ReviewHandler
	conversationHandler *handlers.ConversationHandler
	notifyHandler       *handlers.NotifyHandler
	webhookHandler      *handlers.PaymentWebhookHandler
}

func initializeApp(ctx context.Context, cfg config.Config, db *sql.DB, logger *logrus.Logger) (*application, error) {
	app := &application{log: logger, cfg: cfg, db: db}

	// Repositories
	engagementRepo := repositories.NewEngagementRepository(db)
	venueRepo := repositories.NewVenueRepository(db)
	performerRepo := repositories.NewPerformerRepository(db)
	bandRepo := repositories.NewBandRepository(db)
	conversationRepo := repositories.NewConversationRepository(db)
	feeRepo := repositories.NewFeeRepository(db)
	disputeRepo := repositories.NewDisputeRepository(db)
	cancellationRepo := repositories.NewCancellationRepository(db)
	reviewRepo := repositories.NewReviewRepository(db)
	sagaRepo := repositories.NewSagaRepository(db)
	tokenRepo := repositories.NewNotifyTokenRepository(db)

	// Locks and triggers
	var locker services.Locker
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		app.closers = append(app.closers, rdb.Close)
		locker = lock.NewRedis(rdb, 30*time.Second)
		app.queue = scheduler.NewRedis(rdb, "gig:triggers")
	} else {
		logger.Warn("redis not configured, using in-process locks and triggers")
		locker = lock.NewLocal()
		app.queue = scheduler.NewLocal()
	}

	// Notifications
	notifier := &notify.Notifier{Log: logger}
	if cfg.Firebase.CredentialsFile != "" {
		client, err := notify.NewFCMClient(ctx, cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, err
		}
		notifier.Push = notify.NewFCMNotifier(client, tokenRepo, logger)
	}
	if cfg.SMTP.Host != "" {
		notifier.Mail = notify.NewMailer(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	// Events
	app.bus = events.NewBus(logger)
	app.hub = ws.NewEventHub(logger)
	stream, _ := app.bus.Subscribe(256)
	go app.hub.Run(ctx, stream)
	if cfg.AMQP.URL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, publisher.Close)
		outbox, _ := app.bus.Subscribe(1024)
		go events.Forward(ctx, outbox, publisher, logger)
	}

	payments := pay.NewClient(&http.Client{Timeout: 15 * time.Second},
		cfg.Payments.BaseURL, cfg.Payments.MerchantID, cfg.Payments.Secret, cfg.Payments.Callback)

	core, err := services.NewCore(services.Deps{
		Engagements:   engagementRepo,
		Venues:        venueRepo,
		Performers:    performerRepo,
		Bands:         bandRepo,
		Conversations: conversationRepo,
		Fees:          feeRepo,
		Disputes:      disputeRepo,
		Cancellations: cancellationRepo,
		Reviews:       reviewRepo,
		Saga:          sagaRepo,
		Locker:        locker,
		Scheduler:     app.queue,
		Payments:      payments,
		Notifier:      notifier,
		Identity:      &repositories.IdentityResolver{Venues: venueRepo, Performers: performerRepo, Bands: bandRepo},
		Events:        app.bus,
		Clock:         services.SystemClock{},
		Logger:        logger,
		Config: services.Config{
			DisputeWindow:    cfg.Booking.DisputeWindow,
			AutoMessageDelay: cfg.Booking.AutoMessageDelay,
			OfferTTL:         cfg.Booking.OfferTTL,
			InviteTTL:        cfg.Booking.InviteTTL,
			SagaBackoff:      cfg.Booking.SagaTick,
		},
	})
	if err != nil {
		return nil, err
	}
	app.core = core

	// Handlers
	access := &handlers.Access{Engagements: engagementRepo, Venues: venueRepo, Performers: performerRepo, Bands: bandRepo}
	app.engagementHandler = &handlers.EngagementHandler{Service: core.Engagements, Access: access, Log: logger}
	app.cancellationHandler = &handlers.CancellationHandler{Service: core.Cancellations, History: cancellationRepo, Access: access, Log: logger}
	app.bandHandler = &handlers.BandHandler{Service: core.Bands, Performers: performerRepo, Access: access, Log: logger}
	app.feeHandler = &handlers.FeeHandler{Service: core.Fees, Performers: performerRepo, Access: access, Log: logger}
	app.disputeHandler = &handlers.DisputeHandler{Service: core.Disputes, Access: access, Log: logger}
	app.reviewHandler = &handlers.ReviewHandler{Service: core.Reviews, Reviews: reviewRepo, Access: access, Log: logger}
	app.conversationHandler = &handlers.ConversationHandler{Service: core.Correspondence, Threads: conversationRepo, Log: logger}
	app.notifyHandler = &handlers.NotifyHandler{Tokens: tokenRepo, Log: logger}
	app.webhookHandler = &handlers.PaymentWebhookHandler{Engagements: core.Engagements, Secret: cfg.Payments.Secret, Log: logger}

	return app, nil
}

func (app *application) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.log.Errorf("close: %v", err)
		}
	}
}
