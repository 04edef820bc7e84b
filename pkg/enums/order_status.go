package enums

import "fmt"

// OrderStatus tracks the lifecycle of a shop order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefused   OrderStatus = "refused"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefused,
}

// orderTransitions is the single source of truth for reachable statuses.
// Terminal statuses have no outgoing edges.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPreparing, OrderStatusCancelled, OrderStatusRefused},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusCancelled, OrderStatusRefused},
	OrderStatusReady:     {OrderStatusDelivered},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
	OrderStatusRefused:   {},
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

// IsTerminal reports whether the status has no outgoing transitions.
func (o OrderStatus) IsTerminal() bool {
	return len(orderTransitions[o]) == 0 && o.IsValid()
}

// CanTransitionTo reports whether the target status is reachable in one step.
func (o OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, candidate := range orderTransitions[o] {
		if candidate == target {
			return true
		}
	}
	return false
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
