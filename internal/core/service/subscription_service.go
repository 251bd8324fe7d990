package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
)

// DedupChecker abstracts the idempotency store (Redis).
type DedupChecker interface {
	IsDuplicate(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type subscriptionService struct {
	users ports.UserRepository
	dedup DedupChecker
	now   func() time.Time
	log   zerolog.Logger
}

// NewSubscriptionService returns a SubscriptionService implementation.
func NewSubscriptionService(users ports.UserRepository, dedup DedupChecker, log zerolog.Logger) ports.SubscriptionService {
	return &subscriptionService{users: users, dedup: dedup, now: time.Now, log: log}
}

// Process deduplicates a payment event and applies it to the account it
// refers to. Events for unknown accounts or of unknown types are logged and
// acknowledged so the provider stops retrying them.
func (s *subscriptionService) Process(ctx context.Context, in ports.PaymentEventInput) (ports.ProcessOutcome, error) {
	log := s.log.With().Str("event_id", in.ID).Str("type", in.Type).Logger()

	// 1. Idempotency check; a broken dedup store does not block payments.
	if in.ID != "" {
		isDup, err := s.dedup.IsDuplicate(ctx, in.ID)
		if err != nil {
			log.Warn().Err(err).Msg("dedup check failed, processing anyway")
		} else if isDup {
			log.Debug().Msg("duplicate payment event skipped")
			return ports.OutcomeDuplicate, nil
		}
	}

	// 2. Build the mutation before touching the store.
	apply, ok := s.mutation(in)
	if !ok {
		log.Info().Str("status", in.Status).Msg("unhandled payment event")
		return ports.OutcomeIgnored, nil
	}

	// 3. Resolve the account.
	user, err := s.resolveUser(ctx, in)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			log.Error().Str("user_id", in.UserID).Str("customer_id", in.CustomerID).Msg("payment event for unknown user")
			return ports.OutcomeIgnored, nil
		}
		return "", fmt.Errorf("process payment event: %w", err)
	}

	// 4. Apply and persist.
	if !apply(user) {
		log.Debug().Str("user_id", user.ID).Msg("payment event left account unchanged")
	} else {
		user.UpdatedAt = s.now().UTC()
		if err := s.users.Save(ctx, user); err != nil {
			return "", fmt.Errorf("process payment event: save user: %w", err)
		}
	}

	// 5. Mark only once the write succeeded so provider retries can recover.
	if in.ID != "" {
		if markErr := s.dedup.Mark(ctx, in.ID); markErr != nil {
			log.Warn().Err(markErr).Msg("failed to set dedup key")
		}
	}

	log.Info().
		Str("user_id", user.ID).
		Str("subscription_status", string(user.SubscriptionStatus)).
		Msg("payment event processed")

	return ports.OutcomeApplied, nil
}

func (s *subscriptionService) resolveUser(ctx context.Context, in ports.PaymentEventInput) (*domain.User, error) {
	if in.UserID != "" {
		return s.users.FindByID(ctx, in.UserID)
	}
	if in.CustomerID != "" {
		return s.users.FindByPaymentCustomerID(ctx, in.CustomerID)
	}
	return nil, domain.ErrUserNotFound
}

// mutation returns the change an event makes to a user; the change reports
// whether anything was modified. ok is false for events that are not handled.
func (s *subscriptionService) mutation(in ports.PaymentEventInput) (func(*domain.User) bool, bool) {
	linkProvider := func(u *domain.User) {
		if in.CustomerID != "" {
			u.PaymentCustomerID = in.CustomerID
		}
		if in.SubscriptionID != "" {
			u.PaymentSubscriptionID = in.SubscriptionID
		}
	}

	switch in.Type {
	case ports.PaymentEventCheckoutCompleted:
		return func(u *domain.User) bool {
			linkProvider(u)
			if in.SubscriptionID != "" {
				u.SubscriptionStatus = domain.SubscriptionTrialing
			}
			return true
		}, true

	case ports.PaymentEventSubscriptionUpdated:
		status := domain.SubscriptionStatus(in.Status)
		if !status.Valid() {
			return nil, false
		}
		return func(u *domain.User) bool {
			linkProvider(u)
			u.SubscriptionStatus = status
			if !in.CurrentPeriodEnd.IsZero() {
				u.SubscriptionCurrentPeriodEnd = in.CurrentPeriodEnd.UTC()
			}
			return true
		}, true

	case ports.PaymentEventSubscriptionDeleted:
		return func(u *domain.User) bool {
			u.SubscriptionStatus = domain.SubscriptionCanceled
			return true
		}, true

	case ports.PaymentEventInvoicePaymentSucceeded:
		return func(u *domain.User) bool {
			if u.SubscriptionStatus == domain.SubscriptionActive {
				return false
			}
			u.SubscriptionStatus = domain.SubscriptionActive
			return true
		}, true

	case ports.PaymentEventInvoicePaymentFailed:
		return func(u *domain.User) bool {
			u.SubscriptionStatus = domain.SubscriptionPastDue
			return true
		}, true
	}

	return nil, false
}
