package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/crestrock/storefront/internal/dto"
)

//go:embed sample_products.json
var sampleProducts []byte

// SampleProducts is the starter catalog loaded into an empty store.
func SampleProducts() ([]dto.CreateProductRequest, error) {
	var products []dto.CreateProductRequest
	if err := json.Unmarshal(sampleProducts, &products); err != nil {
		return nil, fmt.Errorf("decode sample products: %w", err)
	}
	return products, nil
}

// SeedIfEmpty loads the sample catalog when the store has no products and
// reports how many were added. A catalog with any product is left alone.
// Seeding goes straight to the repository, so no events are published.
func (s *ProductService) SeedIfEmpty(ctx context.Context, products []dto.CreateProductRequest) (int, error) {
	stock, err := s.productRepo.StockSummary(ctx)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	if stock.Total > 0 {
		s.log.Info("catalog already populated, skipping seed", "products", stock.Total)
		return 0, nil
	}

	added := 0
	for _, req := range products {
		if req.Price.IsNegative() {
			return added, fmt.Errorf("seed product %q: %w", req.Name, ErrInvalidPrice)
		}
		if err := s.productRepo.Create(ctx, newProduct(req)); err != nil {
			return added, fmt.Errorf("seed product %q: %w", req.Name, err)
		}
		added++
	}
	s.log.Info("catalog seeded", "products", added)
	return added, nil
}
