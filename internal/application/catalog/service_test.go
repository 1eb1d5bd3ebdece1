package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcatalog "github.com/zynvolt/storefront/internal/application/catalog"
	domain "github.com/zynvolt/storefront/internal/domain/catalog"
	"github.com/zynvolt/storefront/internal/domain/inventory"
	domainorder "github.com/zynvolt/storefront/internal/domain/order"
	"github.com/zynvolt/storefront/internal/infrastructure/id"
	"github.com/zynvolt/storefront/internal/infrastructure/memory"
)

type fixture struct {
	svc        *appcatalog.Service
	stores     *memory.Stores
	docs       *memory.CatalogRepository
	categories *memory.CategoryRepository
	cache      *fakeCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stores := memory.NewStores()
	docs := memory.NewCatalogRepository()
	categories := memory.NewCategoryRepository(domain.Category{CategoryID: "cat_1", Name: "Electronics"})
	cache := newFakeCache()
	svc := appcatalog.NewService(stores, docs, categories, cache, id.NewUUIDGenerator(), nil)
	return &fixture{svc: svc, stores: stores, docs: docs, categories: categories, cache: cache}
}

type fakeCache struct {
	entries map[string]*domain.Product
	sets    int
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*domain.Product)}
}

func (c *fakeCache) Get(_ context.Context, productID string) (*domain.Product, error) {
	p, ok := c.entries[productID]
	if !ok {
		return nil, appcatalog.ErrCacheMiss
	}
	c.hits++
	return p, nil
}

func (c *fakeCache) Set(_ context.Context, p *domain.Product) error {
	c.entries[p.ProductID] = p
	c.sets++
	return nil
}

func (c *fakeCache) Delete(_ context.Context, productID string) error {
	delete(c.entries, productID)
	return nil
}

func createInput(productID string) appcatalog.CreateProductInput {
	return appcatalog.CreateProductInput{
		ProductID:    productID,
		SKU:          "SKU-" + productID,
		StockLevel:   10,
		CurrentPrice: decimal.NewFromInt(100),
		CategoryID:   "cat_1",
		Name:         "Noise-Cancelling Headphones",
		Description:  "Over-ear, 30h battery",
	}
}

func TestCreateProductWritesBothStores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.CreateProduct(ctx, createInput("prod_1"))
	require.NoError(t, err)
	assert.Equal(t, "prod_1", result.Product.ProductID)
	assert.Equal(t, 10, result.Inventory.StockLevel)

	ledger, err := f.stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, "SKU-prod_1", ledger.SKU)

	doc, err := f.docs.Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, "Noise-Cancelling Headphones", doc.Name)
	assert.InDelta(t, 100.0, doc.DisplayPrice, 0.001)
	assert.NotNil(t, doc.Images)
	assert.NotNil(t, doc.Reviews)
}

func TestCreateProductGeneratesID(t *testing.T) {
	f := newFixture(t)
	input := createInput("")

	result, err := f.svc.CreateProduct(context.Background(), input)
	require.NoError(t, err)
	assert.Contains(t, result.Product.ProductID, "prod_")
}

func TestCreateProductUnknownCategory(t *testing.T) {
	f := newFixture(t)
	input := createInput("prod_1")
	input.CategoryID = "cat_missing"

	_, err := f.svc.CreateProduct(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrUnknownCategory)
}

func TestCreateProductDocumentFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.docs.FailInsert = errors.New("document store unavailable")

	_, err := f.svc.CreateProduct(ctx, createInput("prod_1"))
	assert.ErrorIs(t, err, appcatalog.ErrPartialFailure)

	// Both-or-neither: the relational insert must have rolled back.
	_, err = f.stores.Repos().Inventory().Get(ctx, "prod_1")
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	_, err = f.docs.Get(ctx, "prod_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateProductCommitFailureCompensatesDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.stores.CommitErr = errors.New("connection reset during commit")

	_, err := f.svc.CreateProduct(ctx, createInput("prod_1"))
	assert.ErrorIs(t, err, appcatalog.ErrPartialFailure)

	// The compensating delete removed the already-written document.
	_, err = f.docs.Get(ctx, "prod_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.stores.Repos().Inventory().Get(ctx, "prod_1")
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestCreateProductCompensationFailureLeavesOrphan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.stores.CommitErr = errors.New("connection reset during commit")
	f.docs.FailDelete = errors.New("document store unavailable")

	_, err := f.svc.CreateProduct(ctx, createInput("prod_1"))
	assert.ErrorIs(t, err, appcatalog.ErrPartialFailure)

	// Compensation could not run: the document survives as a known orphan.
	doc, derr := f.docs.Get(ctx, "prod_1")
	require.NoError(t, derr)
	assert.Equal(t, "prod_1", doc.ProductID)
}

func TestDeleteProductRefusedWithActiveOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateProduct(ctx, createInput("prod_1"))
	require.NoError(t, err)

	items := []domainorder.Item{{
		ID: "oi_1", OrderID: "ord_1", ProductID: "prod_1", Quantity: 1,
		UnitPrice: decimal.NewFromInt(100),
	}}
	entity, err := domainorder.New("ord_1", "user_1", domainorder.ShippingAddress{
		Name: "Asha Rao", Line1: "14 MG Road", City: "Bengaluru", State: "Karnataka", Pincode: "560001",
	}, items)
	require.NoError(t, err)
	require.NoError(t, f.stores.Repos().Orders().Insert(ctx, entity, items))

	err = f.svc.DeleteProduct(ctx, "prod_1")
	assert.ErrorIs(t, err, appcatalog.ErrActiveOrderRefs)

	// Nothing was removed.
	_, err = f.stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	_, err = f.docs.Get(ctx, "prod_1")
	require.NoError(t, err)
}

func TestDeleteProductAllowedAfterTerminalOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateProduct(ctx, createInput("prod_1"))
	require.NoError(t, err)

	items := []domainorder.Item{{
		ID: "oi_1", OrderID: "ord_1", ProductID: "prod_1", Quantity: 1,
		UnitPrice: decimal.NewFromInt(100),
	}}
	entity, err := domainorder.New("ord_1", "user_1", domainorder.ShippingAddress{
		Name: "Asha Rao", Line1: "14 MG Road", City: "Bengaluru", State: "Karnataka", Pincode: "560001",
	}, items)
	require.NoError(t, err)
	require.NoError(t, entity.Transition(domainorder.StatusCancelled))
	require.NoError(t, f.stores.Repos().Orders().Insert(ctx, entity, items))

	require.NoError(t, f.svc.DeleteProduct(ctx, "prod_1"))

	_, err = f.stores.Repos().Inventory().Get(ctx, "prod_1")
	assert.ErrorIs(t, err, inventory.ErrNotFound)
	_, err = f.docs.Get(ctx, "prod_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteProductDocumentFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateProduct(ctx, createInput("prod_1"))
	require.NoError(t, err)

	f.docs.FailDelete = errors.New("document store unavailable")
	err = f.svc.DeleteProduct(ctx, "prod_1")
	assert.ErrorIs(t, err, appcatalog.ErrPartialFailure)

	// The ledger delete rolled back with the transaction.
	_, err = f.stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
}

func TestUpdateInventoryRefreshesMirrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateProduct(ctx, createInput("prod_1"))
	require.NoError(t, err)

	newStock := 42
	newPrice := decimal.NewFromFloat(79.50)
	ledger, err := f.svc.UpdateInventory(ctx, "prod_1", appcatalog.UpdateInventoryInput{
		StockLevel:   &newStock,
		CurrentPrice: &newPrice,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, ledger.StockLevel)

	doc, err := f.docs.Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 42, doc.StockLevel)
	assert.InDelta(t, 79.50, doc.DisplayPrice, 0.001)
}

func TestUpdateInventoryValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateProduct(ctx, createInput("prod_1"))
	require.NoError(t, err)

	negative := -1
	_, err = f.svc.UpdateInventory(ctx, "prod_1", appcatalog.UpdateInventoryInput{StockLevel: &negative})
	assert.ErrorIs(t, err, appcatalog.ErrValidation)

	badPrice := decimal.NewFromInt(-5)
	_, err = f.svc.UpdateInventory(ctx, "prod_1", appcatalog.UpdateInventoryInput{CurrentPrice: &badPrice})
	assert.ErrorIs(t, err, appcatalog.ErrValidation)
}

func TestUpdateProductDisplayOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateProduct(ctx, createInput("prod_1"))
	require.NoError(t, err)

	name := "Renamed Headphones"
	doc, err := f.svc.UpdateProduct(ctx, "prod_1", domain.Update{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Headphones", doc.Name)

	// Display edits never touch the ledger.
	ledger, err := f.stores.Repos().Inventory().Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 10, ledger.StockLevel)
}

func TestGetProductCacheAside(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateProduct(ctx, createInput("prod_1"))
	require.NoError(t, err)

	// Create invalidates; the first read misses and backfills.
	doc, err := f.svc.GetProduct(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, "prod_1", doc.ProductID)
	assert.Equal(t, 1, f.cache.sets)

	_, err = f.svc.GetProduct(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)
	assert.Equal(t, 1, f.cache.sets, "a hit must not rewrite the cache")
}

func TestSyncStockMirror(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateProduct(ctx, createInput("prod_1"))
	require.NoError(t, err)

	require.NoError(t, f.stores.Repos().Inventory().Decrement(ctx, "prod_1", 4))
	require.NoError(t, f.svc.SyncStockMirror(ctx, []string{"prod_1", "prod_deleted"}))

	doc, err := f.docs.Get(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, 6, doc.StockLevel)
}
