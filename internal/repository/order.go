package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/crestrock/storefront/internal/model"
)

type OrderFilter struct {
	Status model.OrderStatus
	Limit  int
	Offset int
}

// OrderSummary aggregates orders for the dashboard.
type OrderSummary struct {
	ByStatus map[model.OrderStatus]int
	Revenue  decimal.Decimal
}

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]model.Order, int, error)
	UpdateStatus(ctx context.Context, id string, status model.OrderStatus) error
	AttachPaymentRequest(ctx context.Context, id string, req model.PaymentRequest) error
	FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.Order, error)
	RecordPaymentResult(ctx context.Context, id string, status model.OrderStatus, data *model.PaymentData, failReason string) error
	Summary(ctx context.Context) (*OrderSummary, error)
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

const orderColumns = `id, status, total, payment_method, customer_name, customer_phone, customer_email,
	delivery_address, merchant_request_id, checkout_request_id, receipt_number, amount_paid, payer_phone,
	paid_at, fail_reason, created_at, updated_at`

// Create inserts the order and its items in one transaction and assigns
// the order id.
func (r *pgOrderRepo) Create(ctx context.Context, order *model.Order) error {
	id := uuid.New()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c := order.Customer
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (id, status, total, payment_method, customer_name, customer_phone, customer_email,
		                     delivery_address, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()) RETURNING created_at, updated_at`,
		id, order.Status, order.Total, order.PaymentMethod, c.Name, c.Phone, c.Email, c.DeliveryAddress,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, position, product_id, name, brand, unit_price, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New(), id, i, item.ProductID, item.Name, item.Brand, item.UnitPrice, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	order.ID = id.String()
	return nil
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	oid, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, oid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *pgOrderRepo) FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE checkout_request_id = $1`, checkoutRequestID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find order by checkout request: %w", err)
	}
	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *pgOrderRepo) loadItems(ctx context.Context, order *model.Order) error {
	rows, err := r.pool.Query(ctx,
		`SELECT product_id, name, brand, unit_price, quantity FROM order_items WHERE order_id = $1 ORDER BY position`,
		uuid.MustParse(order.ID),
	)
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.LineItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Brand, &item.UnitPrice, &item.Quantity); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

// List returns orders newest first without their items, plus the total
// number of matching orders.
func (r *pgOrderRepo) List(ctx context.Context, f OrderFilter) ([]model.Order, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE ($1 = '' OR status = $1)`, string(f.Status),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		string(f.Status), f.Limit, f.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, total, rows.Err()
}

func (r *pgOrderRepo) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) error {
	oid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, oid, status,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgOrderRepo) AttachPaymentRequest(ctx context.Context, id string, req model.PaymentRequest) error {
	oid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET merchant_request_id = $2, checkout_request_id = $3, updated_at = NOW() WHERE id = $1`,
		oid, req.MerchantRequestID, req.CheckoutRequestID,
	)
	if err != nil {
		return fmt.Errorf("attach payment request: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordPaymentResult writes the status together with the receipt (or
// failure reason) so readers never see one without the other.
func (r *pgOrderRepo) RecordPaymentResult(ctx context.Context, id string, status model.OrderStatus, data *model.PaymentData, failReason string) error {
	oid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}

	var receipt, payer *string
	var amount decimal.NullDecimal
	var paidAt *time.Time
	if data != nil {
		receipt, payer = &data.ReceiptNumber, &data.PayerPhone
		amount = decimal.NewNullDecimal(data.Amount)
		paidAt = &data.CompletedAt
	}

	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, receipt_number = $3, amount_paid = $4, payer_phone = $5, paid_at = $6,
		        fail_reason = $7, updated_at = NOW()
		 WHERE id = $1`,
		oid, status, receipt, amount, payer, paidAt, failReason,
	)
	if err != nil {
		return fmt.Errorf("record payment result: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgOrderRepo) Summary(ctx context.Context) (*OrderSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(total), 0) FROM orders GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize orders: %w", err)
	}
	defer rows.Close()

	s := &OrderSummary{ByStatus: make(map[model.OrderStatus]int)}
	for rows.Next() {
		var status model.OrderStatus
		var count int
		var sum decimal.Decimal
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, fmt.Errorf("scan order summary: %w", err)
		}
		s.ByStatus[status] = count
		if status == model.OrderStatusPaid || status == model.OrderStatusDelivered {
			s.Revenue = s.Revenue.Add(sum)
		}
	}
	return s, rows.Err()
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o                   model.Order
		id                  uuid.UUID
		merchantID, checkID *string
		receipt, payer      *string
		amount              decimal.NullDecimal
		paidAt              *time.Time
	)
	err := row.Scan(
		&id, &o.Status, &o.Total, &o.PaymentMethod,
		&o.Customer.Name, &o.Customer.Phone, &o.Customer.Email, &o.Customer.DeliveryAddress,
		&merchantID, &checkID, &receipt, &amount, &payer, &paidAt,
		&o.FailReason, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.ID = id.String()

	if checkID != nil {
		o.PaymentRequest = &model.PaymentRequest{CheckoutRequestID: *checkID}
		if merchantID != nil {
			o.PaymentRequest.MerchantRequestID = *merchantID
		}
	}
	if receipt != nil {
		o.PaymentData = &model.PaymentData{ReceiptNumber: *receipt, Amount: amount.Decimal}
		if payer != nil {
			o.PaymentData.PayerPhone = *payer
		}
		if paidAt != nil {
			o.PaymentData.CompletedAt = *paidAt
		}
	}
	return &o, nil
}
