package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
	NotificationInfo    NotificationType = "info"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationSuccess, NotificationWarning, NotificationError, NotificationInfo:
		return true
	}
	return false
}

// Notification is an admin-facing record. Only the Read flag ever changes.
type Notification struct {
	ID        uuid.UUID
	Message   string
	Type      NotificationType
	OrderID   string
	Read      bool
	CreatedAt time.Time
}

type EventKind string

const (
	EventOrderCreated          EventKind = "order.created"
	EventOrderStatusChanged    EventKind = "order.status_changed"
	EventOrderPaymentInitiated EventKind = "order.payment_initiated"
	EventOrderPaymentMismatch  EventKind = "order.payment_mismatch"
	EventProductCreated        EventKind = "product.created"
	EventProductUpdated        EventKind = "product.updated"
	EventProductDeleted        EventKind = "product.deleted"
)

// Event is published on every order and product mutation.
type Event struct {
	ID         uuid.UUID        `json:"id"`
	Kind       EventKind        `json:"kind"`
	OrderID    string           `json:"order_id,omitempty"`
	ProductID  string           `json:"product_id,omitempty"`
	Status     OrderStatus      `json:"status,omitempty"`
	Message    string           `json:"message"`
	Severity   NotificationType `json:"severity"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func NewEvent(kind EventKind, message string, severity NotificationType) Event {
	return Event{
		ID:         uuid.New(),
		Kind:       kind,
		Message:    message,
		Severity:   severity,
		OccurredAt: time.Now().UTC(),
	}
}
