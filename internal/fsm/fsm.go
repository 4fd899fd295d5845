package fsm

import (
	"fmt"

	"gigBack/internal/models"
)

var transitions = map[string]map[string]struct{}{
	models.ApplicationPending: {
		models.ApplicationAccepted:  {},
		models.ApplicationConfirmed: {},
		models.ApplicationDeclined:  {},
	},
	models.ApplicationAccepted: {
		models.ApplicationPaymentProcessing: {},
		models.ApplicationConfirmed:         {},
		models.ApplicationDeclined:          {},
	},
	models.ApplicationPaymentProcessing: {
		models.ApplicationConfirmed: {},
		models.ApplicationDeclined:  {},
	},
	models.ApplicationConfirmed: {
		models.ApplicationInDispute: {},
		models.ApplicationPaid:      {},
	},
	models.ApplicationDeclined:  {},
	models.ApplicationPaid:      {},
	models.ApplicationInDispute: {},
}

// CanTransition returns whether an application can move from the current status to the target status.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// Terminal reports whether no further transition leaves the status.
func Terminal(status string) bool {
	allowed, ok := transitions[status]
	return ok && len(allowed) == 0
}

// Apply moves app to the target status or returns models.ErrInvalidTransition.
func Apply(app *models.Application, to string) error {
	if !CanTransition(app.Status, to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, app.Status, to)
	}
	app.Status = to
	return nil
}
