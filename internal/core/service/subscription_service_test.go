package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubDedup struct {
	dupResult bool
	dupErr    error
	markErr   error
	marked    []string
}

func (d *stubDedup) IsDuplicate(_ context.Context, eventID string) (bool, error) {
	return d.dupResult, d.dupErr
}

func (d *stubDedup) Mark(_ context.Context, eventID string) error {
	if d.markErr != nil {
		return d.markErr
	}
	d.marked = append(d.marked, eventID)
	return nil
}

// ---------------------------------------------------------------------------
// Helper: a repo holding one approved account waiting for payment.
// ---------------------------------------------------------------------------

func awaitingPayment() (*stubUserRepo, *domain.User) {
	repo := newStubUserRepo()
	plan, _ := domain.PlanByID("piva-forfettari-annual")
	u := &domain.User{
		Email:                      "mario@taxflow.it",
		Role:                       domain.RoleBusiness,
		RegistrationApprovalStatus: domain.ApprovalApproved,
		PivaFormSubmitted:          true,
		PivaApprovalStatus:         domain.ApprovalApproved,
		SelectedPlan:               &plan,
		SubscriptionStatus:         domain.SubscriptionPendingPayment,
	}
	repo.seed(u)
	return repo, u
}

func newSubscriptionSvc(repo *stubUserRepo, dedup *stubDedup) ports.SubscriptionService {
	return NewSubscriptionService(repo, dedup, zerolog.Nop())
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestSubscriptionService_Process_CheckoutThenInvoice(t *testing.T) {
	repo, u := awaitingPayment()
	dedup := &stubDedup{}
	svc := newSubscriptionSvc(repo, dedup)
	ctx := context.Background()

	out, err := svc.Process(ctx, ports.PaymentEventInput{
		ID:             "evt_1",
		Type:           ports.PaymentEventCheckoutCompleted,
		UserID:         u.ID,
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
	})
	if err != nil || out != ports.OutcomeApplied {
		t.Fatalf("checkout: got %q, %v", out, err)
	}
	if got := repo.get(u.ID); got.PaymentCustomerID != "cus_1" || got.View() != domain.ScreenPayment {
		t.Fatalf("checkout should link the customer and keep the payment screen, got %+v", got)
	}

	out, err = svc.Process(ctx, ports.PaymentEventInput{
		ID:         "evt_2",
		Type:       ports.PaymentEventInvoicePaymentSucceeded,
		CustomerID: "cus_1",
	})
	if err != nil || out != ports.OutcomeApplied {
		t.Fatalf("invoice: got %q, %v", out, err)
	}
	if got := repo.get(u.ID); got.View() != domain.ScreenDashboard {
		t.Fatalf("paid account should reach the dashboard, got %q", got.View())
	}
	if len(dedup.marked) != 2 {
		t.Errorf("expected both events marked, got %v", dedup.marked)
	}
}

func TestSubscriptionService_Process_DuplicateSkipped(t *testing.T) {
	repo, u := awaitingPayment()
	dedup := &stubDedup{dupResult: true}
	svc := newSubscriptionSvc(repo, dedup)

	out, err := svc.Process(context.Background(), ports.PaymentEventInput{
		ID:     "evt_1",
		Type:   ports.PaymentEventInvoicePaymentSucceeded,
		UserID: u.ID,
	})
	if err != nil {
		t.Fatalf("expected no error for duplicate, got: %v", err)
	}
	if out != ports.OutcomeDuplicate {
		t.Errorf("expected duplicate outcome, got %q", out)
	}
	if repo.saves != 0 {
		t.Errorf("expected no write for duplicate event")
	}
}

func TestSubscriptionService_Process_UnknownUserIgnored(t *testing.T) {
	repo := newStubUserRepo()
	dedup := &stubDedup{}
	svc := newSubscriptionSvc(repo, dedup)

	out, err := svc.Process(context.Background(), ports.PaymentEventInput{
		ID:         "evt_1",
		Type:       ports.PaymentEventInvoicePaymentFailed,
		CustomerID: "cus_missing",
	})
	if err != nil {
		t.Fatalf("unknown user should be acknowledged, got: %v", err)
	}
	if out != ports.OutcomeIgnored {
		t.Errorf("expected ignored outcome, got %q", out)
	}
	if len(dedup.marked) != 0 {
		t.Errorf("ignored events are not marked")
	}
}

func TestSubscriptionService_Process_UnhandledEvents(t *testing.T) {
	repo, u := awaitingPayment()
	svc := newSubscriptionSvc(repo, &stubDedup{})

	tests := []ports.PaymentEventInput{
		{ID: "evt_1", Type: "customer.created", UserID: u.ID},
		{ID: "evt_2", Type: ports.PaymentEventSubscriptionUpdated, UserID: u.ID, Status: "exploded"},
	}
	for _, in := range tests {
		out, err := svc.Process(context.Background(), in)
		if err != nil || out != ports.OutcomeIgnored {
			t.Errorf("%s: got %q, %v", in.Type, out, err)
		}
	}
	if repo.saves != 0 {
		t.Errorf("unhandled events must not write")
	}
}

func TestSubscriptionService_Process_StatusTransitions(t *testing.T) {
	periodEnd := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   ports.PaymentEventInput
		want domain.SubscriptionStatus
	}{
		{
			name: "updated",
			in:   ports.PaymentEventInput{Type: ports.PaymentEventSubscriptionUpdated, Status: "active", CurrentPeriodEnd: periodEnd},
			want: domain.SubscriptionActive,
		},
		{name: "deleted", in: ports.PaymentEventInput{Type: ports.PaymentEventSubscriptionDeleted}, want: domain.SubscriptionCanceled},
		{name: "invoice failed", in: ports.PaymentEventInput{Type: ports.PaymentEventInvoicePaymentFailed}, want: domain.SubscriptionPastDue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, u := awaitingPayment()
			svc := newSubscriptionSvc(repo, &stubDedup{})
			tt.in.ID = "evt_" + tt.name
			tt.in.UserID = u.ID

			if _, err := svc.Process(context.Background(), tt.in); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := repo.get(u.ID)
			if got.SubscriptionStatus != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got.SubscriptionStatus)
			}
			if tt.want != domain.SubscriptionActive && got.View() != domain.ScreenPayment {
				t.Errorf("lapsed subscription should route to payment, got %q", got.View())
			}
			if !tt.in.CurrentPeriodEnd.IsZero() && !got.SubscriptionCurrentPeriodEnd.Equal(periodEnd) {
				t.Errorf("period end not stored: %v", got.SubscriptionCurrentPeriodEnd)
			}
		})
	}
}

func TestSubscriptionService_Process_DedupCheckError_ProcessesAnyway(t *testing.T) {
	repo, u := awaitingPayment()
	dedup := &stubDedup{dupErr: errors.New("redis timeout")}
	svc := newSubscriptionSvc(repo, dedup)

	out, err := svc.Process(context.Background(), ports.PaymentEventInput{
		ID:     "evt_1",
		Type:   ports.PaymentEventInvoicePaymentSucceeded,
		UserID: u.ID,
	})
	if err != nil || out != ports.OutcomeApplied {
		t.Fatalf("expected event applied despite dedup error, got %q, %v", out, err)
	}
	if repo.get(u.ID).SubscriptionStatus != domain.SubscriptionActive {
		t.Errorf("expected update to proceed when dedup check errors")
	}
}

func TestSubscriptionService_Process_SaveFailureNotMarked(t *testing.T) {
	repo, u := awaitingPayment()
	repo.saveErr = domain.ErrStoreUnavailable
	dedup := &stubDedup{}
	svc := newSubscriptionSvc(repo, dedup)

	_, err := svc.Process(context.Background(), ports.PaymentEventInput{
		ID:     "evt_1",
		Type:   ports.PaymentEventInvoicePaymentSucceeded,
		UserID: u.ID,
	})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if len(dedup.marked) != 0 {
		t.Errorf("failed writes must stay retryable")
	}
}
