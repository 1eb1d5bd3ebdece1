package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/zynvolt/storefront/internal/domain/catalog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CatalogRepository struct {
	collection *mongo.Collection
}

func NewCatalogRepository(db *mongo.Database) *CatalogRepository {
	return &CatalogRepository{collection: db.Collection("products")}
}

// CreateIndexes enforces the product_id join key and speeds up the two
// listing filters.
func (r *CatalogRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "product_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "category_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "display_flags", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *CatalogRepository) Insert(ctx context.Context, p *domain.Product) error {
	_, err := r.collection.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (r *CatalogRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := r.collection.FindOne(ctx, bson.M{"product_id": productID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (r *CatalogRepository) List(ctx context.Context, f domain.Filter) ([]*domain.Product, error) {
	filter := bson.M{}
	if f.CategoryID != "" {
		filter["category_id"] = f.CategoryID
	}
	if f.Flag != "" {
		filter["display_flags"] = f.Flag
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*domain.Product
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return out, nil
}

func (r *CatalogRepository) Update(ctx context.Context, productID string, u domain.Update) (*domain.Product, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.CategoryID != nil {
		set["category_id"] = *u.CategoryID
	}
	if u.Images != nil {
		set["images"] = u.Images
	}
	if u.TechnicalSpecs != nil {
		set["technical_specs"] = u.TechnicalSpecs
	}
	if u.DisplayFlags != nil {
		set["display_flags"] = u.DisplayFlags
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p domain.Product
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"product_id": productID},
		bson.M{"$set": set},
		opts,
	).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &p, nil
}

func (r *CatalogRepository) Delete(ctx context.Context, productID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"product_id": productID})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CatalogRepository) SetStockLevel(ctx context.Context, productID string, level int) error {
	return r.setField(ctx, productID, "stock_level", level)
}

func (r *CatalogRepository) SetDisplayPrice(ctx context.Context, productID string, price float64) error {
	return r.setField(ctx, productID, "price_display", price)
}

func (r *CatalogRepository) setField(ctx context.Context, productID, field string, value any) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"product_id": productID},
		bson.M{"$set": bson.M{field: value, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", field, err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
