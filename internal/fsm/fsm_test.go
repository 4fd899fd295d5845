package fsm

import (
	"errors"
	"testing"

	"gigBack/internal/models"
)

func TestCanTransition(t *testing.T) {
	if !CanTransition(models.ApplicationPending, models.ApplicationAccepted) {
		t.Fatal("expected pending -> accepted to be allowed")
	}
	if !CanTransition(models.ApplicationPending, models.ApplicationConfirmed) {
		t.Fatal("expected pending -> confirmed to be allowed")
	}
	if !CanTransition(models.ApplicationAccepted, models.ApplicationPaymentProcessing) {
		t.Fatal("expected accepted -> payment processing to be allowed")
	}
	if !CanTransition(models.ApplicationConfirmed, models.ApplicationInDispute) {
		t.Fatal("expected confirmed -> in dispute to be allowed")
	}
	if CanTransition(models.ApplicationDeclined, models.ApplicationAccepted) {
		t.Fatal("declined must be terminal")
	}
	if CanTransition(models.ApplicationPaid, models.ApplicationInDispute) {
		t.Fatal("paid must be terminal")
	}
	if CanTransition(models.ApplicationInDispute, models.ApplicationConfirmed) {
		t.Fatal("in dispute must not return to confirmed")
	}
	if !CanTransition(models.ApplicationDeclined, models.ApplicationDeclined) {
		t.Fatal("self transition must be allowed")
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []string{models.ApplicationDeclined, models.ApplicationPaid, models.ApplicationInDispute} {
		if !Terminal(s) {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	if Terminal(models.ApplicationPending) {
		t.Fatal("pending is not terminal")
	}
}

func TestApply(t *testing.T) {
	app := &models.Application{Status: models.ApplicationConfirmed}
	err := Apply(app, models.ApplicationPending)
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("expected invalid state kind, got %v", err)
	}
	if app.Status != models.ApplicationConfirmed {
		t.Fatalf("status changed on rejected transition: %s", app.Status)
	}
	if err := Apply(app, models.ApplicationPaid); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}
