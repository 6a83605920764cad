package repositories

import (
	"context"
	"time"

	"github.com/anonto42/pulse/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LikeRepository is the like ledger. Implementations must reject a second
// edge for the same (user, post) pair with ErrDuplicate.
type LikeRepository interface {
	CreateLike(ctx context.Context, like *models.Like) error
	DeleteLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, error)
	HasUserLikedPost(ctx context.Context, postID, userID primitive.ObjectID) (bool, error)
	GetLikerIDs(ctx context.Context, postID primitive.ObjectID) ([]primitive.ObjectID, error)
	DeleteLikesByPostID(ctx context.Context, postID primitive.ObjectID) error
}

// MongoLikeRepository implements LikeRepository for MongoDB
type MongoLikeRepository struct {
	collection *mongo.Collection
}

// NewMongoLikeRepository creates a new MongoLikeRepository
func NewMongoLikeRepository(db *mongo.Database) *MongoLikeRepository {
	return &MongoLikeRepository{collection: db.Collection("likes")}
}

// EnsureIndexes creates the (user_id, post_id) unique index the toggle relies on
func (r *MongoLikeRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "post_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_like_user_post"),
		},
		{Keys: bson.D{{Key: "post_id", Value: 1}}},
	})
	return err
}

// CreateLike inserts the edge, returning ErrDuplicate if it already exists
func (r *MongoLikeRepository) CreateLike(ctx context.Context, like *models.Like) error {
	if like.ID.IsZero() {
		like.ID = primitive.NewObjectID()
	}
	if like.CreatedAt.IsZero() {
		like.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, like)
	return translateMongoError(err)
}

// DeleteLike removes the edge and reports whether one was removed
func (r *MongoLikeRepository) DeleteLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"post_id": postID, "user_id": userID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// HasUserLikedPost checks if a user has liked a specific post
func (r *MongoLikeRepository) HasUserLikedPost(ctx context.Context, postID, userID primitive.ObjectID) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"post_id": postID, "user_id": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetLikerIDs returns the ids of every user with a like edge on the post
func (r *MongoLikeRepository) GetLikerIDs(ctx context.Context, postID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"post_id": postID},
		options.Find().SetProjection(bson.M{"user_id": 1}).SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var likes []models.Like
	if err := cursor.All(ctx, &likes); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(likes))
	for _, l := range likes {
		ids = append(ids, l.UserID)
	}
	return ids, nil
}

// DeleteLikesByPostID removes every edge pointing at the post
func (r *MongoLikeRepository) DeleteLikesByPostID(ctx context.Context, postID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"post_id": postID})
	return err
}
