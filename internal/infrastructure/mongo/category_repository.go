package mongo

import (
	"context"
	"fmt"

	domain "github.com/zynvolt/storefront/internal/domain/catalog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CategoryRepository struct {
	collection *mongo.Collection
}

func NewCategoryRepository(db *mongo.Database) *CategoryRepository {
	return &CategoryRepository{collection: db.Collection("categories")}
}

func (r *CategoryRepository) Exists(ctx context.Context, categoryID string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"category_id": categoryID})
	if err != nil {
		return false, fmt.Errorf("failed to count categories: %w", err)
	}
	return count > 0, nil
}

// Seed inserts the given categories if missing. Used at startup so a fresh
// deployment has a usable category set.
func (r *CategoryRepository) Seed(ctx context.Context, cats []domain.Category) error {
	for _, c := range cats {
		_, err := r.collection.UpdateOne(ctx,
			bson.M{"category_id": c.CategoryID},
			bson.M{"$setOnInsert": c},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("failed to seed category %s: %w", c.CategoryID, err)
		}
	}
	return nil
}
