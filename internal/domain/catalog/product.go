package catalog

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("catalog: product not found")
	ErrConflict        = errors.New("catalog: product already exists")
	ErrUnknownCategory = errors.New("catalog: unknown category")
	ErrNameRequired    = errors.New("catalog: product name is required")
)

// Review is embedded in the product document for fast read access.
type Review struct {
	UserID  string    `bson:"user_id" json:"user_id"`
	Rating  int       `bson:"rating" json:"rating"`
	Comment string    `bson:"comment" json:"comment"`
	Date    time.Time `bson:"date" json:"date"`
}

// Product is the display document. ProductID is the stable join key shared
// with the inventory ledger. StockLevel and DisplayPrice are derived mirrors
// of the ledger; they are cosmetic and never authoritative.
type Product struct {
	ProductID      string            `bson:"product_id" json:"product_id"`
	CategoryID     string            `bson:"category_id" json:"category_id"`
	Name           string            `bson:"name" json:"name"`
	Description    string            `bson:"description" json:"description"`
	DisplayPrice   float64           `bson:"price_display" json:"price_display"`
	StockLevel     int               `bson:"stock_level" json:"stock_level"`
	Images         []string          `bson:"images" json:"images"`
	TechnicalSpecs map[string]string `bson:"technical_specs" json:"technical_specs"`
	DisplayFlags   []string          `bson:"display_flags" json:"display_flags"`
	Reviews        []Review          `bson:"reviews" json:"reviews"`
	CreatedAt      time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `bson:"updated_at" json:"updated_at"`
}

// Normalize fills defaults so a sparse admin payload does not produce a
// document with nil collections.
func (p *Product) Normalize() error {
	if p.Name == "" {
		return ErrNameRequired
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.TechnicalSpecs == nil {
		p.TechnicalSpecs = map[string]string{}
	}
	if p.DisplayFlags == nil {
		p.DisplayFlags = []string{}
	}
	if p.Reviews == nil {
		p.Reviews = []Review{}
	}
	return nil
}

type Category struct {
	CategoryID string `bson:"category_id" json:"category_id"`
	Name       string `bson:"name" json:"name"`
}
