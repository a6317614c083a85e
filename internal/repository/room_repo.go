package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"meetspot/internal/model"
)

type RoomRepo interface {
	Create(ctx context.Context, room *model.Room) error
	// Resolve looks a room up by canonical id or human-readable slug.
	// Returns nil without error when no room matches.
	Resolve(ctx context.Context, ref string) (*model.Room, error)
	Delete(ctx context.Context, roomID string) error
}

type roomRepo struct {
	collection *mongo.Collection
}

func NewRoomRepo(db *mongo.Database) RoomRepo {
	return &roomRepo{
		collection: db.Collection("rooms"),
	}
}

func (r *roomRepo) Create(ctx context.Context, room *model.Room) error {
	_, err := r.collection.InsertOne(ctx, room)
	return err
}

func (r *roomRepo) Resolve(ctx context.Context, ref string) (*model.Room, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"_id": ref},
		bson.M{"slug": ref},
	}}

	var room model.Room
	err := r.collection.FindOne(ctx, filter).Decode(&room)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

func (r *roomRepo) Delete(ctx context.Context, roomID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": roomID})
	return err
}
