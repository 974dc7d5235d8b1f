package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestrock/storefront/internal/dto"
	"github.com/crestrock/storefront/internal/model"
)

func seedProduct(repo *mockProductRepo, name string, price int64, inStock bool) uuid.UUID {
	id := uuid.New()
	repo.products[id] = &model.Product{ID: id, Name: name, Brand: "Nike", Price: decimal.NewFromInt(price), InStock: inStock}
	return id
}

func TestCartService_Quote(t *testing.T) {
	repo := newMockProductRepo()
	a := seedProduct(repo, "Air Max", 20000, true)
	b := seedProduct(repo, "Cap", 10000, true)
	svc := NewCartService(repo)

	resp, err := svc.Quote(context.Background(), dto.QuoteRequest{Items: []dto.CartLine{
		{ProductID: a.String(), Quantity: 2},
		{ProductID: b.String(), Quantity: 1},
	}})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "Air Max", resp.Items[0].Name)
	assert.True(t, decimal.NewFromInt(50000).Equal(resp.Total))
}

func TestCartService_Snapshot_UnknownProduct(t *testing.T) {
	svc := NewCartService(newMockProductRepo())

	_, err := svc.Snapshot(context.Background(), []dto.CartLine{{ProductID: uuid.NewString(), Quantity: 1}})
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = svc.Snapshot(context.Background(), []dto.CartLine{{ProductID: "not-a-uuid", Quantity: 1}})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCartService_Snapshot_OutOfStock(t *testing.T) {
	repo := newMockProductRepo()
	id := seedProduct(repo, "Jordan 1", 30000, false)
	svc := NewCartService(repo)

	_, err := svc.Snapshot(context.Background(), []dto.CartLine{{ProductID: id.String(), Quantity: 1}})
	assert.ErrorIs(t, err, ErrProductUnavailable)
}

func TestCartService_Snapshot_UsesCatalogPrice(t *testing.T) {
	repo := newMockProductRepo()
	id := seedProduct(repo, "Air Max", 20000, true)
	svc := NewCartService(repo)

	items, err := svc.Snapshot(context.Background(), []dto.CartLine{{ProductID: id.String(), Quantity: 3}})
	require.NoError(t, err)
	repo.products[id].Price = decimal.NewFromInt(1)

	assert.True(t, decimal.NewFromInt(20000).Equal(items[0].UnitPrice))
	assert.Equal(t, 3, items[0].Quantity)
}
