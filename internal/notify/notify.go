// Package notify delivers chat pushes and emails for the booking core.
package notify

import "context"

// Logger is the logging surface the notifiers need.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type pusher interface {
	SendMessage(ctx context.Context, userID, title, body string) error
}

type mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Notifier joins a push channel and a mail channel. Either may be nil when
// the deployment has no credentials for it; sends are then logged and dropped.
type Notifier struct {
	Push pusher
	Mail mailer
	Log  Logger
}

func (n *Notifier) SendMessage(ctx context.Context, userID, title, body string) error {
	if n.Push == nil {
		n.Log.Infof("push disabled, dropping message for %s: %s", userID, title)
		return nil
	}
	return n.Push.SendMessage(ctx, userID, title, body)
}

func (n *Notifier) SendEmail(ctx context.Context, to, subject, body string) error {
	if n.Mail == nil {
		n.Log.Infof("mail disabled, dropping email to %s: %s", to, subject)
		return nil
	}
	return n.Mail.SendEmail(ctx, to, subject, body)
}
