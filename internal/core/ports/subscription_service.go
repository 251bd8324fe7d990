package ports

import (
	"context"
	"time"
)

// Payment event types accepted by the webhook.
const (
	PaymentEventCheckoutCompleted       = "checkout.completed"
	PaymentEventSubscriptionUpdated     = "subscription.updated"
	PaymentEventSubscriptionDeleted     = "subscription.deleted"
	PaymentEventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	PaymentEventInvoicePaymentFailed    = "invoice.payment_failed"
)

// PaymentEventInput is the DTO passed from the webhook handler to
// SubscriptionService. UserID is only known for checkout events; later
// events identify the account through CustomerID.
type PaymentEventInput struct {
	ID               string
	Type             string
	UserID           string
	CustomerID       string
	SubscriptionID   string
	Status           string
	PlanID           string
	CurrentPeriodEnd time.Time
}

// ProcessOutcome says what Process did with an event that did not fail.
type ProcessOutcome string

const (
	OutcomeApplied   ProcessOutcome = "applied"
	OutcomeDuplicate ProcessOutcome = "duplicate"
	OutcomeIgnored   ProcessOutcome = "ignored"
)

// SubscriptionService applies payment provider events to user accounts.
type SubscriptionService interface {
	Process(ctx context.Context, event PaymentEventInput) (ProcessOutcome, error)
}
