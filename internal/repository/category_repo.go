package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"meetspot/internal/model"
)

type CategoryRepo interface {
	// ListByRoom returns the room's categories ordered by orderIndex
	// ascending.
	ListByRoom(ctx context.Context, roomID string) ([]model.Category, error)
	Insert(ctx context.Context, category *model.Category) error
	// Delete removes one category by id; the bool reports whether a
	// document was actually deleted.
	Delete(ctx context.Context, categoryID string) (bool, error)
	DeleteByRoom(ctx context.Context, roomID string) error
}

type categoryRepo struct {
	collection *mongo.Collection
}

func NewCategoryRepo(db *mongo.Database) CategoryRepo {
	return &categoryRepo{
		collection: db.Collection("categories"),
	}
}

func (r *categoryRepo) ListByRoom(ctx context.Context, roomID string) ([]model.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "orderIndex", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"roomId": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	categories := []model.Category{}
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepo) Insert(ctx context.Context, category *model.Category) error {
	_, err := r.collection.InsertOne(ctx, category)
	return err
}

func (r *categoryRepo) Delete(ctx context.Context, categoryID string) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": categoryID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *categoryRepo) DeleteByRoom(ctx context.Context, roomID string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"roomId": roomID})
	return err
}
