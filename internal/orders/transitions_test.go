package orders

import (
	"testing"

	"github.com/shopora/shopora-backend/pkg/enums"
)

// The full edge list, spelled out independently of the production table so a
// stray edit to either side fails the test.
var expectedEdges = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:         {enums.OrderStatusAwaitingPayment, enums.OrderStatusProcessing, enums.OrderStatusCanceled},
	enums.OrderStatusAwaitingPayment: {enums.OrderStatusProcessing, enums.OrderStatusPaymentFailed, enums.OrderStatusCanceled},
	enums.OrderStatusProcessing:      {enums.OrderStatusDelivering, enums.OrderStatusOnHold, enums.OrderStatusCanceled},
	enums.OrderStatusDelivering:      {enums.OrderStatusShipped, enums.OrderStatusDeliveryFailed, enums.OrderStatusDeliveringRetry},
	enums.OrderStatusDeliveryFailed:  {enums.OrderStatusDeliveringRetry, enums.OrderStatusOnHold, enums.OrderStatusReturning},
	enums.OrderStatusOnHold:          {enums.OrderStatusDelivering, enums.OrderStatusCanceled},
	enums.OrderStatusDeliveringRetry: {enums.OrderStatusDelivering, enums.OrderStatusShipped, enums.OrderStatusReturning},
	enums.OrderStatusShipped:         {enums.OrderStatusClosed, enums.OrderStatusReturning, enums.OrderStatusRefundRequested},
	enums.OrderStatusPaymentFailed:   {enums.OrderStatusCanceled},
	enums.OrderStatusCanceled:        {enums.OrderStatusRefundRequested},
	enums.OrderStatusRefundRequested: {enums.OrderStatusRefundApprove, enums.OrderStatusRefundDenied},
	enums.OrderStatusRefundApprove:   {enums.OrderStatusRefunded},
	enums.OrderStatusRefundDenied:    {enums.OrderStatusShipped, enums.OrderStatusClosed},
	enums.OrderStatusReturning:       {enums.OrderStatusReturned, enums.OrderStatusReturnFailed},
	enums.OrderStatusReturnFailed:    {enums.OrderStatusReturning, enums.OrderStatusShipped},
	enums.OrderStatusClosed:          {},
	enums.OrderStatusRefunded:        {},
	enums.OrderStatusReturned:        {},
}

func TestTransitionTableIsExhaustive(t *testing.T) {
	t.Parallel()

	for _, from := range enums.AllOrderStatuses() {
		expected, ok := expectedEdges[from]
		if !ok {
			t.Fatalf("no expectation defined for status %q", from)
		}
		allowed := map[enums.OrderStatus]bool{}
		for _, to := range expected {
			allowed[to] = true
		}

		for _, to := range enums.AllOrderStatuses() {
			got := CanTransition(from, to)
			if got != allowed[to] {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", from, to, got, allowed[to])
			}
		}
	}
}

func TestTerminalStatusesHaveNoTargets(t *testing.T) {
	t.Parallel()

	for _, status := range enums.AllOrderStatuses() {
		targets := AllowedTargets(status)
		if status.IsTerminal() && len(targets) != 0 {
			t.Errorf("terminal status %q has targets %v", status, targets)
		}
		if !status.IsTerminal() && len(targets) == 0 {
			t.Errorf("non-terminal status %q has no targets", status)
		}
	}
}

func TestShippedCannotBeCanceled(t *testing.T) {
	t.Parallel()

	if CanTransition(enums.OrderStatusShipped, enums.OrderStatusCanceled) {
		t.Fatal("shipped orders must not be cancellable")
	}
	if !CanTransition(enums.OrderStatusShipped, enums.OrderStatusReturning) {
		t.Fatal("shipped orders must be returnable")
	}
}

func TestTargetsReferenceKnownStatuses(t *testing.T) {
	t.Parallel()

	for from, targets := range transitions {
		if !from.IsValid() {
			t.Errorf("table keys unknown status %q", from)
		}
		for _, to := range targets {
			if !to.IsValid() {
				t.Errorf("%q maps to unknown status %q", from, to)
			}
			if to.IsTerminal() {
				continue
			}
			if _, ok := transitions[to]; !ok {
				t.Errorf("%q maps to %q which has no row", from, to)
			}
		}
	}
}
