package services

import "time"

const (
	defaultDisputeWindow    = 48 * time.Hour
	defaultAutoMessageDelay = 3 * time.Hour
	defaultOfferTTL         = 24 * time.Hour
	defaultInviteTTL        = 7 * 24 * time.Hour
	defaultSagaBackoff      = time.Minute
	defaultMaxAttempts      = 3
)

// Config holds booking timings.
type Config struct {
	// DisputeWindow is measured from the engagement start. The fee clears when it ends.
	DisputeWindow time.Duration
	// AutoMessageDelay is measured from the engagement start.
	AutoMessageDelay time.Duration
	// OfferTTL bounds how long an accepted offer may wait for payment.
	OfferTTL    time.Duration
	InviteTTL   time.Duration
	SagaBackoff time.Duration
	// MaxAttempts bounds compare-and-set retries on a version conflict.
	MaxAttempts int
}

func (c *Config) applyDefaults() {
	if c.DisputeWindow <= 0 {
		c.DisputeWindow = defaultDisputeWindow
	}
	if c.AutoMessageDelay <= 0 {
		c.AutoMessageDelay = defaultAutoMessageDelay
	}
	if c.OfferTTL <= 0 {
		c.OfferTTL = defaultOfferTTL
	}
	if c.InviteTTL <= 0 {
		c.InviteTTL = defaultInviteTTL
	}
	if c.SagaBackoff <= 0 {
		c.SagaBackoff = defaultSagaBackoff
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
}
