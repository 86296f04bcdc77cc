package orders

import "github.com/shopora/shopora-backend/pkg/enums"

// transitions is the order status adjacency table. A status maps to the full
// set of statuses an order may move to next; terminal statuses map to nil.
// Changing an edge here is a contract change for every API consumer.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusAwaitingPayment,
		enums.OrderStatusProcessing,
		enums.OrderStatusCanceled,
	},
	enums.OrderStatusAwaitingPayment: {
		enums.OrderStatusProcessing,
		enums.OrderStatusPaymentFailed,
		enums.OrderStatusCanceled,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusDelivering,
		enums.OrderStatusOnHold,
		enums.OrderStatusCanceled,
	},
	enums.OrderStatusDelivering: {
		enums.OrderStatusShipped,
		enums.OrderStatusDeliveryFailed,
		enums.OrderStatusDeliveringRetry,
	},
	enums.OrderStatusDeliveryFailed: {
		enums.OrderStatusDeliveringRetry,
		enums.OrderStatusOnHold,
		enums.OrderStatusReturning,
	},
	enums.OrderStatusOnHold: {
		enums.OrderStatusDelivering,
		enums.OrderStatusCanceled,
	},
	enums.OrderStatusDeliveringRetry: {
		enums.OrderStatusDelivering,
		enums.OrderStatusShipped,
		enums.OrderStatusReturning,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusClosed,
		enums.OrderStatusReturning,
		enums.OrderStatusRefundRequested,
	},
	enums.OrderStatusPaymentFailed: {
		enums.OrderStatusCanceled,
	},
	enums.OrderStatusCanceled: {
		enums.OrderStatusRefundRequested,
	},
	enums.OrderStatusRefundRequested: {
		enums.OrderStatusRefundApprove,
		enums.OrderStatusRefundDenied,
	},
	enums.OrderStatusRefundApprove: {
		enums.OrderStatusRefunded,
	},
	enums.OrderStatusRefundDenied: {
		enums.OrderStatusShipped,
		enums.OrderStatusClosed,
	},
	enums.OrderStatusReturning: {
		enums.OrderStatusReturned,
		enums.OrderStatusReturnFailed,
	},
	enums.OrderStatusReturnFailed: {
		enums.OrderStatusReturning,
		enums.OrderStatusShipped,
	},
	enums.OrderStatusClosed:   nil,
	enums.OrderStatusRefunded: nil,
	enums.OrderStatusReturned: nil,
}

// CanTransition reports whether the edge from -> to exists.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// AllowedTargets returns the statuses reachable from the given status.
func AllowedTargets(from enums.OrderStatus) []enums.OrderStatus {
	targets := transitions[from]
	out := make([]enums.OrderStatus, len(targets))
	copy(out, targets)
	return out
}

// isCancellationTarget reports whether the target begins a cancellation or
// refund branch, which the order's owner may request without a privileged
// role.
func isCancellationTarget(target enums.OrderStatus) bool {
	switch target {
	case enums.OrderStatusCanceled, enums.OrderStatusRefundRequested, enums.OrderStatusReturning:
		return true
	default:
		return false
	}
}

// stockHeld reports whether reservations made at checkout are still pending
// for an order in the given status. Stock is committed when the order ships
// and released when payment fails or the order is cancelled.
func stockHeld(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusPending,
		enums.OrderStatusAwaitingPayment,
		enums.OrderStatusProcessing,
		enums.OrderStatusDelivering,
		enums.OrderStatusDeliveryFailed,
		enums.OrderStatusOnHold,
		enums.OrderStatusDeliveringRetry:
		return true
	default:
		return false
	}
}
