package enums

import "fmt"

// OrderStatus tracks the kitchen/delivery lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusPreparing  OrderStatus = "preparing"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusDelivering,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// orderTransitions is the complete set of legal moves. Anything absent is rejected.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:  {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:      {OrderStatusDelivering, OrderStatusDelivered},
	OrderStatusDelivering: {OrderStatusDelivered},
}

var orderStatusLabels = map[OrderStatus]string{
	OrderStatusPending:    "Aguardando confirmação",
	OrderStatusConfirmed:  "Confirmado",
	OrderStatusPreparing:  "Em preparo",
	OrderStatusReady:      "Pronto",
	OrderStatusDelivering: "Saiu para entrega",
	OrderStatusDelivered:  "Entregue",
	OrderStatusCancelled:  "Cancelado",
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CanBeCancelled holds until the kitchen hands the order over.
func (s OrderStatus) CanBeCancelled() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

// IsTerminal reports states with no outgoing transitions.
func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(orderTransitions[s]) == 0
}

// Label returns the customer-facing status text.
func (s OrderStatus) Label() string {
	if label, ok := orderStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// OrderStatusesFrom lists the states that may legally move to next.
func OrderStatusesFrom(next OrderStatus) []OrderStatus {
	var out []OrderStatus
	for _, candidate := range validOrderStatuses {
		if candidate.CanTransitionTo(next) {
			out = append(out, candidate)
		}
	}
	return out
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
