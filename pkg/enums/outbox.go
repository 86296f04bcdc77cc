package enums

// OutboxEventType names the domain events persisted to the outbox.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order.created"
	EventOrderStatusChanged OutboxEventType = "order.status_changed"
	EventPaymentCreated     OutboxEventType = "payment.created"
	EventPaymentExpired     OutboxEventType = "payment.expired"
	EventPromotionExpired   OutboxEventType = "promotion.expired"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder     OutboxAggregateType = "order"
	AggregatePayment   OutboxAggregateType = "payment"
	AggregatePromotion OutboxAggregateType = "promotion"
)
