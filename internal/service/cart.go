package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/crestrock/storefront/internal/dto"
	"github.com/crestrock/storefront/internal/model"
	"github.com/crestrock/storefront/internal/repository"
)

var ErrProductUnavailable = errors.New("product is out of stock")

// CartService prices a client-side cart against the catalog. The cart
// itself lives with the shopper; only the snapshot taken at checkout is
// stored, on the order.
type CartService struct {
	productRepo repository.ProductRepository
}

func NewCartService(productRepo repository.ProductRepository) *CartService {
	return &CartService{productRepo: productRepo}
}

// Snapshot turns cart lines into priced line items. Unknown products
// wrap ErrProductNotFound and sold-out ones ErrProductUnavailable.
// Quantities are passed through for order validation to judge.
func (s *CartService) Snapshot(ctx context.Context, lines []dto.CartLine) ([]model.LineItem, error) {
	items := make([]model.LineItem, 0, len(lines))
	for _, line := range lines {
		id, err := uuid.Parse(line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
		}
		product, err := s.productRepo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		if product == nil {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
		}
		if !product.InStock {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, product.Name)
		}
		items = append(items, model.LineItem{
			ProductID: product.ID.String(),
			Name:      product.Name,
			Brand:     product.Brand,
			UnitPrice: product.Price,
			Quantity:  line.Quantity,
		})
	}
	return items, nil
}

func (s *CartService) Quote(ctx context.Context, req dto.QuoteRequest) (*dto.QuoteResponse, error) {
	items, err := s.Snapshot(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	return &dto.QuoteResponse{Items: dto.NewLineItems(items), Total: model.SumItems(items)}, nil
}
