package dto

import (
	"github.com/crestrock/storefront/internal/model"
)

func NewOrderResponse(o *model.Order) OrderResponse {
	resp := OrderResponse{
		ID:            o.ID,
		Reference:     o.Reference(),
		Status:        o.Status,
		Total:         o.Total,
		Items:         NewLineItems(o.Items),
		Customer:      NewCustomer(o.Customer),
		PaymentMethod: o.PaymentMethod,
		FailReason:    o.FailReason,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if pr := o.PaymentRequest; pr != nil {
		resp.PaymentRequest = &PaymentRequestDTO{
			MerchantRequestID: pr.MerchantRequestID,
			CheckoutRequestID: pr.CheckoutRequestID,
		}
	}
	if pd := o.PaymentData; pd != nil {
		resp.PaymentData = &PaymentDataDTO{
			ReceiptNumber: pd.ReceiptNumber,
			Amount:        pd.Amount,
			PayerPhone:    pd.PayerPhone,
			CompletedAt:   pd.CompletedAt,
		}
	}
	return resp
}

// Model is the inverse of NewOrderResponse.
func (r OrderResponse) Model() *model.Order {
	o := &model.Order{
		ID:            r.ID,
		Status:        r.Status,
		Total:         r.Total,
		Items:         LineItemModels(r.Items),
		Customer:      r.Customer.Model(),
		PaymentMethod: r.PaymentMethod,
		FailReason:    r.FailReason,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if pr := r.PaymentRequest; pr != nil {
		o.PaymentRequest = &model.PaymentRequest{
			MerchantRequestID: pr.MerchantRequestID,
			CheckoutRequestID: pr.CheckoutRequestID,
		}
	}
	if pd := r.PaymentData; pd != nil {
		o.PaymentData = &model.PaymentData{
			ReceiptNumber: pd.ReceiptNumber,
			Amount:        pd.Amount,
			PayerPhone:    pd.PayerPhone,
			CompletedAt:   pd.CompletedAt,
		}
	}
	return o
}

func NewLineItems(items []model.LineItem) []LineItemDTO {
	out := make([]LineItemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, LineItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Brand:     it.Brand,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return out
}

func LineItemModels(items []LineItemDTO) []model.LineItem {
	out := make([]model.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, model.LineItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Brand:     it.Brand,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return out
}

func NewCustomer(c model.CustomerInfo) CustomerDTO {
	return CustomerDTO{Name: c.Name, Phone: c.Phone, Email: c.Email, DeliveryAddress: c.DeliveryAddress}
}

func (c CustomerDTO) Model() model.CustomerInfo {
	return model.CustomerInfo{Name: c.Name, Phone: c.Phone, Email: c.Email, DeliveryAddress: c.DeliveryAddress}
}

func NewProductResponse(p *model.Product) ProductResponse {
	resp := ProductResponse{
		ID:           p.ID,
		Name:         p.Name,
		Brand:        p.Brand,
		Description:  p.Description,
		Price:        p.Price,
		Image:        p.Image,
		Features:     p.Features,
		InStock:      p.InStock,
		IsNew:        p.IsNew,
		IsBestSeller: p.IsBestSeller,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.OriginalPrice.Valid {
		op := p.OriginalPrice.Decimal
		resp.OriginalPrice = &op
	}
	if resp.Features == nil {
		resp.Features = []string{}
	}
	return resp
}

func NewNotificationResponse(n *model.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Message:   n.Message,
		Type:      n.Type,
		OrderID:   n.OrderID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func NewStatsResponse(s *model.Stats) StatsResponse {
	return StatsResponse{
		TotalOrders:        s.TotalOrders,
		PendingOrders:      s.PendingOrders,
		PaidOrders:         s.PaidOrders,
		DeliveredOrders:    s.DeliveredOrders,
		CancelledOrders:    s.CancelledOrders,
		FailedOrders:       s.FailedOrders,
		Revenue:            s.Revenue,
		TotalProducts:      s.TotalProducts,
		InStockProducts:    s.InStockProducts,
		OutOfStockProducts: s.OutOfStockProducts,
		UnreadAlerts:       s.UnreadAlerts,
	}
}
