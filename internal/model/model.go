package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const RoleAdmin = "admin"

type User struct {
	ID        uuid.UUID
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Product struct {
	ID            uuid.UUID
	Name          string
	Brand         string
	Description   string
	Price         decimal.Decimal
	OriginalPrice decimal.NullDecimal
	Image         string
	Features      []string
	InStock       bool
	IsNew         bool
	IsBestSeller  bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Stats is the back-office dashboard summary. Revenue counts paid and
// delivered orders; Pending counts both pending and payment_pending.
type Stats struct {
	TotalOrders        int
	PendingOrders      int
	PaidOrders         int
	DeliveredOrders    int
	CancelledOrders    int
	FailedOrders       int
	Revenue            decimal.Decimal
	TotalProducts      int
	InStockProducts    int
	OutOfStockProducts int
	UnreadAlerts       int
}
