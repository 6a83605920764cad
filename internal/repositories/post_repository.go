package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/pulse/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	GetPostsByAuthor(ctx context.Context, authorID primitive.ObjectID, skip, limit int64) ([]models.Post, error)
	GetFeed(ctx context.Context, authorIDs []primitive.ObjectID, skip, limit int64) ([]models.Post, error)
	UpdateContent(ctx context.Context, id primitive.ObjectID, content string) (*models.Post, error)
	DeletePost(ctx context.Context, id primitive.ObjectID) error
	AddLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, error)
	RemoveLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, error)
	IncrementCommentsCount(ctx context.Context, postID primitive.ObjectID) error
	DecrementCommentsCount(ctx context.Context, postID primitive.ObjectID) error
	SetLikeState(ctx context.Context, postID primitive.ObjectID, likedBy []primitive.ObjectID) error
	SetCommentsCount(ctx context.Context, postID primitive.ObjectID, count int) error
	ForEachPostID(ctx context.Context, fn func(primitive.ObjectID) error) error
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	post.LikesCount = 0
	post.CommentsCount = 0
	post.LikedBy = []primitive.ObjectID{}
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		return nil, translateMongoError(err)
	}
	return &post, nil
}

// GetPostsByAuthor retrieves posts by a specific user, newest first
func (r *MongoPostRepository) GetPostsByAuthor(ctx context.Context, authorID primitive.ObjectID, skip, limit int64) ([]models.Post, error) {
	return r.find(ctx, bson.M{"author_id": authorID}, skip, limit)
}

// GetFeed retrieves posts written by any of authorIDs, newest first
func (r *MongoPostRepository) GetFeed(ctx context.Context, authorIDs []primitive.ObjectID, skip, limit int64) ([]models.Post, error) {
	return r.find(ctx, bson.M{"author_id": bson.M{"$in": authorIDs}}, skip, limit)
}

func (r *MongoPostRepository) find(ctx context.Context, filter bson.M, skip, limit int64) ([]models.Post, error) {
	posts := []models.Post{}
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// UpdateContent replaces the post body
func (r *MongoPostRepository) UpdateContent(ctx context.Context, id primitive.ObjectID, content string) (*models.Post, error) {
	update := bson.M{"$set": bson.M{"content": content, "updated_at": time.Now()}}
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

// DeletePost deletes a post by ID from MongoDB
func (r *MongoPostRepository) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddLike puts userID into liked_by and increments likes_count in one document update.
// If userID is already a member nothing changes and the current post is returned.
func (r *MongoPostRepository) AddLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, error) {
	filter := bson.M{"_id": postID, "liked_by": bson.M{"$ne": userID}}
	update := bson.M{
		"$addToSet": bson.M{"liked_by": userID},
		"$inc":      bson.M{"likes_count": 1},
	}
	post, err := r.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, ErrNotFound) {
		return r.GetPostByID(ctx, postID)
	}
	return post, err
}

// RemoveLike pulls userID from liked_by and decrements likes_count, clamped at zero.
// If userID is not a member nothing changes and the current post is returned.
func (r *MongoPostRepository) RemoveLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, error) {
	filter := bson.M{"_id": postID, "liked_by": userID}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "liked_by", Value: bson.D{{Key: "$setDifference", Value: bson.A{"$liked_by", bson.A{userID}}}}},
			{Key: "likes_count", Value: bson.D{{Key: "$max", Value: bson.A{
				0,
				bson.D{{Key: "$subtract", Value: bson.A{"$likes_count", 1}}},
			}}}},
		}}},
	}
	post, err := r.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, ErrNotFound) {
		return r.GetPostByID(ctx, postID)
	}
	return post, err
}

func (r *MongoPostRepository) findOneAndUpdate(ctx context.Context, filter, update interface{}) (*models.Post, error) {
	var post models.Post
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&post); err != nil {
		return nil, translateMongoError(err)
	}
	return &post, nil
}

// IncrementCommentsCount increments the comments count of a post
func (r *MongoPostRepository) IncrementCommentsCount(ctx context.Context, postID primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": postID}, bson.M{"$inc": bson.M{"comments_count": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementCommentsCount decrements the comments count of a post, never below zero
func (r *MongoPostRepository) DecrementCommentsCount(ctx context.Context, postID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": postID, "comments_count": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"comments_count": -1}})
	return err
}

// SetLikeState overwrites liked_by and sets likes_count to its size
func (r *MongoPostRepository) SetLikeState(ctx context.Context, postID primitive.ObjectID, likedBy []primitive.ObjectID) error {
	likedBy = nonNilIDs(likedBy)
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": postID}, bson.M{"$set": bson.M{
		"liked_by":    likedBy,
		"likes_count": len(likedBy),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCommentsCount overwrites comments_count
func (r *MongoPostRepository) SetCommentsCount(ctx context.Context, postID primitive.ObjectID, count int) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": postID}, bson.M{"$set": bson.M{"comments_count": count}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ForEachPostID streams every post id to fn
func (r *MongoPostRepository) ForEachPostID(ctx context.Context, fn func(primitive.ObjectID) error) error {
	return forEachID(ctx, r.collection, fn)
}
