package catalog

import "context"

// Filter narrows catalog listings. Zero values mean "no constraint".
type Filter struct {
	CategoryID string
	Flag       string
}

// Update carries the admin-editable display fields. Nil pointers leave the
// stored value untouched.
type Update struct {
	Name           *string
	Description    *string
	CategoryID     *string
	Images         []string
	TechnicalSpecs map[string]string
	DisplayFlags   []string
}

type Repository interface {
	Insert(ctx context.Context, p *Product) error
	Get(ctx context.Context, productID string) (*Product, error)
	List(ctx context.Context, f Filter) ([]*Product, error)
	Update(ctx context.Context, productID string, u Update) (*Product, error)
	Delete(ctx context.Context, productID string) error
	// SetStockLevel refreshes the derived stock mirror. Absolute set, not a
	// delta, so re-applying is harmless.
	SetStockLevel(ctx context.Context, productID string, level int) error
	SetDisplayPrice(ctx context.Context, productID string, price float64) error
}

type CategoryRepository interface {
	Exists(ctx context.Context, categoryID string) (bool, error)
}
