package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crestrock/storefront/internal/model"
)

// --- Auth ---

type CreateAdminRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type SessionResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
}

// --- Product ---

type CreateProductRequest struct {
	Name          string           `json:"name" binding:"required"`
	Brand         string           `json:"brand" binding:"required"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price" binding:"required"`
	OriginalPrice *decimal.Decimal `json:"original_price"`
	Image         string           `json:"image"`
	Features      []string         `json:"features"`
	InStock       *bool            `json:"in_stock"`
	IsNew         bool             `json:"is_new"`
	IsBestSeller  bool             `json:"is_best_seller"`
}

type UpdateProductRequest struct {
	Name          *string          `json:"name"`
	Brand         *string          `json:"brand"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price"`
	Image         *string          `json:"image"`
	Features      []string         `json:"features"`
	InStock       *bool            `json:"in_stock"`
	IsNew         *bool            `json:"is_new"`
	IsBestSeller  *bool            `json:"is_best_seller"`
}

type ListProductsRequest struct {
	Page        int    `form:"page,default=1" binding:"min=1"`
	Limit       int    `form:"limit,default=20" binding:"min=1,max=100"`
	Search      string `form:"search"`
	Brand       string `form:"brand"`
	InStockOnly bool   `form:"in_stock"`
	Sort        string `form:"sort,default=created_at" binding:"oneof=name price created_at"`
	Order       string `form:"order,default=desc" binding:"oneof=asc desc"`
}

type ProductResponse struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Brand         string           `json:"brand"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	Image         string           `json:"image"`
	Features      []string         `json:"features"`
	InStock       bool             `json:"in_stock"`
	IsNew         bool             `json:"is_new"`
	IsBestSeller  bool             `json:"is_best_seller"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// --- Cart ---

// CartLine is one entry of the shopper's client-side cart.
type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type QuoteRequest struct {
	Items []CartLine `json:"items"`
}

type QuoteResponse struct {
	Items []LineItemDTO   `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// --- Order ---

type LineItemDTO struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Brand     string          `json:"brand"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

type CustomerDTO struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Email           string `json:"email,omitempty"`
	DeliveryAddress string `json:"delivery_address"`
}

type CreateOrderRequest struct {
	Items         []LineItemDTO       `json:"items"`
	Customer      CustomerDTO         `json:"customer"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
}

type CheckoutRequest struct {
	Items         []CartLine          `json:"items"`
	Customer      CustomerDTO         `json:"customer"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	// PaymentPhone overrides the customer phone for the M-Pesa prompt.
	PaymentPhone string `json:"payment_phone,omitempty"`
}

type CheckoutResponse struct {
	Order           OrderResponse `json:"order"`
	Reference       string        `json:"reference"`
	PaymentStarted  bool          `json:"payment_started"`
	CustomerMessage string        `json:"customer_message,omitempty"`
	PaymentError    string        `json:"payment_error,omitempty"`
	// WhatsAppURL opens the shop chat prefilled with the order, for
	// WhatsApp and cash-on-delivery orders.
	WhatsAppURL string `json:"whatsapp_url,omitempty"`
}

type PaymentRequestDTO struct {
	MerchantRequestID string `json:"merchant_request_id"`
	CheckoutRequestID string `json:"checkout_request_id" binding:"required"`
}

type PaymentDataDTO struct {
	ReceiptNumber string          `json:"receipt_number"`
	Amount        decimal.Decimal `json:"amount"`
	PayerPhone    string          `json:"payer_phone"`
	CompletedAt   time.Time       `json:"completed_at"`
}

type UpdateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required"`
}

type ListOrdersRequest struct {
	Status model.OrderStatus `form:"status"`
	Page   int               `form:"page,default=1" binding:"min=1"`
	Limit  int               `form:"limit,default=50" binding:"min=1,max=200"`
}

type OrderResponse struct {
	ID             string              `json:"id"`
	Reference      string              `json:"reference"`
	Status         model.OrderStatus   `json:"status"`
	Total          decimal.Decimal     `json:"total"`
	Items          []LineItemDTO       `json:"items"`
	Customer       CustomerDTO         `json:"customer"`
	PaymentMethod  model.PaymentMethod `json:"payment_method"`
	PaymentRequest *PaymentRequestDTO  `json:"payment_request,omitempty"`
	PaymentData    *PaymentDataDTO     `json:"payment_data,omitempty"`
	FailReason     string              `json:"fail_reason,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}

// --- Notification ---

type NotificationResponse struct {
	ID        uuid.UUID              `json:"id"`
	Message   string                 `json:"message"`
	Type      model.NotificationType `json:"type"`
	OrderID   string                 `json:"order_id,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
}

type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Unread        int                    `json:"unread"`
}

type StatsResponse struct {
	TotalOrders        int             `json:"total_orders"`
	PendingOrders      int             `json:"pending_orders"`
	PaidOrders         int             `json:"paid_orders"`
	DeliveredOrders    int             `json:"delivered_orders"`
	CancelledOrders    int             `json:"cancelled_orders"`
	FailedOrders       int             `json:"failed_orders"`
	Revenue            decimal.Decimal `json:"revenue"`
	TotalProducts      int             `json:"total_products"`
	InStockProducts    int             `json:"in_stock_products"`
	OutOfStockProducts int             `json:"out_of_stock_products"`
	UnreadAlerts       int             `json:"unread_alerts"`
}
