package enums

import "fmt"

// OrderStatus tracks the lifecycle of an order. Values persist as the literal
// strings external callers filter on, so they are never renumbered or renamed.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "Pending"
	OrderStatusAwaitingPayment OrderStatus = "Awaiting Payment"
	OrderStatusProcessing      OrderStatus = "Processing"
	OrderStatusDelivering      OrderStatus = "Delivering"
	OrderStatusShipped         OrderStatus = "Shipped"
	OrderStatusClosed          OrderStatus = "Closed"
	OrderStatusDeliveryFailed  OrderStatus = "Delivery Failed"
	OrderStatusOnHold          OrderStatus = "On Hold"
	OrderStatusDeliveringRetry OrderStatus = "Delivering Retry"
	OrderStatusRefundRequested OrderStatus = "Refund Requested"
	OrderStatusRefundApprove   OrderStatus = "Refund Approve"
	OrderStatusRefundDenied    OrderStatus = "Refund Denied"
	OrderStatusRefunded        OrderStatus = "Refunded"
	OrderStatusCanceled        OrderStatus = "Canceled"
	OrderStatusPaymentFailed   OrderStatus = "Payment Failed"
	OrderStatusReturning       OrderStatus = "Returning"
	OrderStatusReturnFailed    OrderStatus = "Return Failed"
	OrderStatusReturned        OrderStatus = "Returned"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusAwaitingPayment,
	OrderStatusProcessing,
	OrderStatusDelivering,
	OrderStatusShipped,
	OrderStatusClosed,
	OrderStatusDeliveryFailed,
	OrderStatusOnHold,
	OrderStatusDeliveringRetry,
	OrderStatusRefundRequested,
	OrderStatusRefundApprove,
	OrderStatusRefundDenied,
	OrderStatusRefunded,
	OrderStatusCanceled,
	OrderStatusPaymentFailed,
	OrderStatusReturning,
	OrderStatusReturnFailed,
	OrderStatusReturned,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusClosed, OrderStatusRefunded, OrderStatusReturned:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// AllOrderStatuses returns the closed status vocabulary.
func AllOrderStatuses() []OrderStatus {
	statuses := make([]OrderStatus, len(validOrderStatuses))
	copy(statuses, validOrderStatuses)
	return statuses
}
