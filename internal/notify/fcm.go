package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"
)

// TokenStore lists the device tokens registered for an account.
type TokenStore interface {
	Tokens(ctx context.Context, userID string) ([]string, error)
}

// sender is the part of *messaging.Client the notifier uses.
type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier pushes chat notifications to every device of the recipient.
type FCMNotifier struct {
	client sender
	tokens TokenStore
	log    Logger
}

// NewFCMClient builds a messaging client from a service account file.
func NewFCMClient(ctx context.Context, credentialsFile string) (*messaging.Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return client, nil
}

func NewFCMNotifier(client *messaging.Client, tokens TokenStore, log Logger) *FCMNotifier {
	return &FCMNotifier{client: client, tokens: tokens, log: log}
}

// SendMessage pushes to all of the user's devices. It fails only when no
// device accepted the message.
func (n *FCMNotifier) SendMessage(ctx context.Context, userID, title, body string) error {
	tokens, err := n.tokens.Tokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("load tokens for %s: %w", userID, err)
	}
	if len(tokens) == 0 {
		return nil
	}
	var lastErr error
	sent := 0
	for _, token := range tokens {
		if _, err := n.client.Send(ctx, pushMessage(token, title, body)); err != nil {
			n.log.Errorf("push to %s failed: %v", userID, err)
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 {
		return lastErr
	}
	return nil
}

func pushMessage(token, title, body string) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{"link": "messages"},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "high_priority_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{Title: title, Body: body},
					Sound: "default",
				},
			},
		},
	}
}
