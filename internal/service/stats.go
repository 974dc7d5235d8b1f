package service

import (
	"context"
	"fmt"

	"github.com/crestrock/storefront/internal/model"
	"github.com/crestrock/storefront/internal/repository"
)

// StatsService builds the back-office dashboard summary.
type StatsService struct {
	orderRepo        repository.OrderRepository
	productRepo      repository.ProductRepository
	notificationRepo repository.NotificationRepository
}

func NewStatsService(orderRepo repository.OrderRepository, productRepo repository.ProductRepository, notificationRepo repository.NotificationRepository) *StatsService {
	return &StatsService{orderRepo: orderRepo, productRepo: productRepo, notificationRepo: notificationRepo}
}

func (s *StatsService) Stats(ctx context.Context) (*model.Stats, error) {
	orders, err := s.orderRepo.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("order summary: %w", err)
	}
	stock, err := s.productRepo.StockSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("stock summary: %w", err)
	}
	unread, err := s.notificationRepo.CountUnread(ctx)
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}

	stats := &model.Stats{
		PendingOrders:      orders.ByStatus[model.OrderStatusPending] + orders.ByStatus[model.OrderStatusPaymentPending],
		PaidOrders:         orders.ByStatus[model.OrderStatusPaid],
		DeliveredOrders:    orders.ByStatus[model.OrderStatusDelivered],
		CancelledOrders:    orders.ByStatus[model.OrderStatusCancelled],
		FailedOrders:       orders.ByStatus[model.OrderStatusPaymentFailed],
		Revenue:            orders.Revenue,
		TotalProducts:      stock.Total,
		InStockProducts:    stock.InStock,
		OutOfStockProducts: stock.OutOfStock,
		UnreadAlerts:       unread,
	}
	for _, n := range orders.ByStatus {
		stats.TotalOrders += n
	}
	return stats, nil
}
