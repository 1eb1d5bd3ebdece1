package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/zynvolt/storefront/internal/domain/catalog"
)

// CatalogRepository is the in-memory document store. FailInsert and FailDelete
// let tests force the document-side write to fail, which is the only way to
// reach the dual-write compensation paths.
type CatalogRepository struct {
	mu       sync.Mutex
	products map[string]*domain.Product

	FailInsert error
	FailDelete error
}

func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{products: make(map[string]*domain.Product)}
}

func (r *CatalogRepository) Insert(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailInsert != nil {
		return r.FailInsert
	}
	if _, exists := r.products[p.ProductID]; exists {
		return domain.ErrConflict
	}
	r.products[p.ProductID] = cloneProduct(p)
	return nil
}

func (r *CatalogRepository) Get(_ context.Context, productID string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (r *CatalogRepository) List(_ context.Context, f domain.Filter) ([]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Product
	for _, p := range r.products {
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if f.Flag != "" && !hasFlag(p, f.Flag) {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	return out, nil
}

func (r *CatalogRepository) Update(_ context.Context, productID string, u domain.Update) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.CategoryID != nil {
		p.CategoryID = *u.CategoryID
	}
	if u.Images != nil {
		p.Images = append([]string(nil), u.Images...)
	}
	if u.TechnicalSpecs != nil {
		p.TechnicalSpecs = copySpecs(u.TechnicalSpecs)
	}
	if u.DisplayFlags != nil {
		p.DisplayFlags = append([]string(nil), u.DisplayFlags...)
	}
	p.UpdatedAt = time.Now().UTC()
	return cloneProduct(p), nil
}

func (r *CatalogRepository) Delete(_ context.Context, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailDelete != nil {
		return r.FailDelete
	}
	if _, ok := r.products[productID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.products, productID)
	return nil
}

func (r *CatalogRepository) SetStockLevel(_ context.Context, productID string, level int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	p.StockLevel = level
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *CatalogRepository) SetDisplayPrice(_ context.Context, productID string, price float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	p.DisplayPrice = price
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func hasFlag(p *domain.Product, flag string) bool {
	for _, f := range p.DisplayFlags {
		if f == flag {
			return true
		}
	}
	return false
}

func copySpecs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneProduct(p *domain.Product) *domain.Product {
	c := *p
	c.Images = append([]string(nil), p.Images...)
	c.TechnicalSpecs = copySpecs(p.TechnicalSpecs)
	c.DisplayFlags = append([]string(nil), p.DisplayFlags...)
	c.Reviews = append([]domain.Review(nil), p.Reviews...)
	return &c
}

// CategoryRepository is a fixed in-memory category set.
type CategoryRepository struct {
	mu         sync.Mutex
	categories map[string]domain.Category
}

func NewCategoryRepository(cats ...domain.Category) *CategoryRepository {
	r := &CategoryRepository{categories: make(map[string]domain.Category)}
	for _, c := range cats {
		r.categories[c.CategoryID] = c
	}
	return r
}

func (r *CategoryRepository) Add(c domain.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[c.CategoryID] = c
}

func (r *CategoryRepository) Exists(_ context.Context, categoryID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.categories[categoryID]
	return ok, nil
}
