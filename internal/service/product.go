package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/crestrock/storefront/internal/dto"
	"github.com/crestrock/storefront/internal/email"
	"github.com/crestrock/storefront/internal/model"
	"github.com/crestrock/storefront/internal/repository"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidPrice    = errors.New("price must not be negative")
)

const productCacheTTL = 60 * time.Second

type ProductService struct {
	productRepo repository.ProductRepository
	redisClient *redis.Client
	events      EventPublisher
	log         *slog.Logger
}

func NewProductService(productRepo repository.ProductRepository, redisClient *redis.Client, events EventPublisher, log *slog.Logger) *ProductService {
	events, log = orDefault(events, log)
	return &ProductService{productRepo: productRepo, redisClient: redisClient, events: events, log: log}
}

func (s *ProductService) Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if req.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	product := newProduct(req)
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.publishProduct(ctx, model.EventProductCreated, product,
		fmt.Sprintf("📦 New product %q added (KSh %s)", product.Name, email.FormatAmount(product.Price)),
		model.NotificationSuccess)
	resp := dto.NewProductResponse(product)
	return &resp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	cacheKey := productCacheKey(id)

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var resp dto.ProductResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return &resp, nil
			}
		}
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	resp := dto.NewProductResponse(product)

	if s.redisClient != nil {
		if data, err := json.Marshal(resp); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, productCacheTTL)
		}
	}

	return &resp, nil
}

func (s *ProductService) List(ctx context.Context, req dto.ListProductsRequest) (*dto.ProductListResponse, error) {
	products, total, err := s.productRepo.List(ctx, repository.ProductFilter{
		Search:      req.Search,
		Brand:       req.Brand,
		InStockOnly: req.InStockOnly,
		Sort:        req.Sort,
		Order:       req.Order,
		Limit:       req.Limit,
		Offset:      (req.Page - 1) * req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	items := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, dto.NewProductResponse(&products[i]))
	}

	return &dto.ProductListResponse{Products: items, Total: total, Page: req.Page, Limit: req.Limit}, nil
}

func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Brand != nil {
		product.Brand = *req.Brand
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
		product.Price = *req.Price
	}
	if req.OriginalPrice != nil {
		product.OriginalPrice = decimal.NewNullDecimal(*req.OriginalPrice)
	}
	if req.Image != nil {
		product.Image = *req.Image
	}
	if req.Features != nil {
		product.Features = req.Features
	}
	if req.InStock != nil {
		product.InStock = *req.InStock
	}
	if req.IsNew != nil {
		product.IsNew = *req.IsNew
	}
	if req.IsBestSeller != nil {
		product.IsBestSeller = *req.IsBestSeller
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.invalidateCache(ctx, id)
	s.publishProduct(ctx, model.EventProductUpdated, product,
		fmt.Sprintf("📦 Product %q updated", product.Name), model.NotificationSuccess)
	resp := dto.NewProductResponse(product)
	return &resp, nil
}

func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return ErrProductNotFound
	}
	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidateCache(ctx, id)
	s.publishProduct(ctx, model.EventProductDeleted, product,
		fmt.Sprintf("🗑️ Product %q deleted", product.Name), model.NotificationWarning)
	return nil
}

func (s *ProductService) invalidateCache(ctx context.Context, id uuid.UUID) {
	if s.redisClient != nil {
		s.redisClient.Del(ctx, productCacheKey(id))
	}
}

func (s *ProductService) publishProduct(ctx context.Context, kind model.EventKind, p *model.Product, msg string, severity model.NotificationType) {
	event := model.NewEvent(kind, msg, severity)
	event.ProductID = p.ID.String()
	publish(ctx, s.events, s.log, event)
}

// newProduct builds a catalog entry; products are in stock unless the
// request says otherwise.
func newProduct(req dto.CreateProductRequest) *model.Product {
	product := &model.Product{
		Name:         req.Name,
		Brand:        req.Brand,
		Description:  req.Description,
		Price:        req.Price,
		Image:        req.Image,
		Features:     req.Features,
		InStock:      true,
		IsNew:        req.IsNew,
		IsBestSeller: req.IsBestSeller,
	}
	if req.OriginalPrice != nil {
		product.OriginalPrice = decimal.NewNullDecimal(*req.OriginalPrice)
	}
	if req.InStock != nil {
		product.InStock = *req.InStock
	}
	return product
}

func productCacheKey(id uuid.UUID) string { return "product:" + id.String() }
