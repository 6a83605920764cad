package repositories

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/anonto42/pulse/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	SearchUsers(ctx context.Context, query string, limit int64) ([]models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, bio, avatarURL *string) (*models.User, error)
	LinkFirebaseUID(ctx context.Context, id primitive.ObjectID, firebaseUID string) error
	AddFollowRelation(ctx context.Context, followerID, followingID primitive.ObjectID) (*models.User, error)
	RemoveFollowRelation(ctx context.Context, followerID, followingID primitive.ObjectID) (*models.User, error)
	SetRelations(ctx context.Context, id primitive.ObjectID, followers, following []primitive.ObjectID) error
	ForEachUserID(ctx context.Context, fn func(primitive.ObjectID) error) error
}

// MongoUserRepository implements UserRepository for MongoDB
type MongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new MongoUserRepository
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{collection: db.Collection("users")}
}

// EnsureIndexes creates the unique indexes that back username/email uniqueness
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "firebase_uid", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"firebase_uid": bson.M{"$type": "string"}}),
		},
	})
	return err
}

// CreateUser inserts a new user; a username or email clash yields ErrDuplicate
func (r *MongoUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	if user.Followers == nil {
		user.Followers = []primitive.ObjectID{}
	}
	if user.Following == nil {
		user.Following = []primitive.ObjectID{}
	}
	_, err := r.collection.InsertOne(ctx, user)
	return translateMongoError(err)
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translateMongoError(err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (r *MongoUserRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetUserByUsername retrieves a user by username
func (r *MongoUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

// GetUserByEmail retrieves a user by email
func (r *MongoUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetUserByFirebaseUID retrieves a user by Firebase UID
func (r *MongoUserRepository) GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"firebase_uid": firebaseUID})
}

// GetUsersByIDs retrieves every user in ids; missing ids are skipped
func (r *MongoUserRepository) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SearchUsers finds users whose username contains query, case-insensitively.
// query is matched literally.
func (r *MongoUserRepository) SearchUsers(ctx context.Context, query string, limit int64) ([]models.User, error) {
	users := []models.User{}
	filter := bson.M{"username": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}}
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateProfile sets the non-nil profile fields
func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, bio, avatarURL *string) (*models.User, error) {
	set := bson.M{"updated_at": time.Now()}
	if bio != nil {
		set["bio"] = *bio
	}
	if avatarURL != nil {
		set["avatar_url"] = *avatarURL
	}

	var user models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		return nil, translateMongoError(err)
	}
	return &user, nil
}

// LinkFirebaseUID attaches a Firebase UID to an existing user
func (r *MongoUserRepository) LinkFirebaseUID(ctx context.Context, id primitive.ObjectID, firebaseUID string) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"firebase_uid": firebaseUID, "updated_at": time.Now()}})
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddFollowRelation adds the pair to both cached sets and returns the followed user.
// Each side is a single-document update; the two are not atomic together.
func (r *MongoUserRepository) AddFollowRelation(ctx context.Context, followerID, followingID primitive.ObjectID) (*models.User, error) {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": followerID},
		bson.M{"$addToSet": bson.M{"following": followingID}})
	if err != nil {
		return nil, fmt.Errorf("add to following: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return r.updateFollowers(ctx, followingID, bson.M{"$addToSet": bson.M{"followers": followerID}})
}

// RemoveFollowRelation pulls the pair from both cached sets and returns the followed user
func (r *MongoUserRepository) RemoveFollowRelation(ctx context.Context, followerID, followingID primitive.ObjectID) (*models.User, error) {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": followerID},
		bson.M{"$pull": bson.M{"following": followingID}})
	if err != nil {
		return nil, fmt.Errorf("pull from following: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return r.updateFollowers(ctx, followingID, bson.M{"$pull": bson.M{"followers": followerID}})
}

func (r *MongoUserRepository) updateFollowers(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.User, error) {
	var user models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user); err != nil {
		return nil, translateMongoError(err)
	}
	return &user, nil
}

// SetRelations overwrites both cached sets. Used by reconciliation only.
func (r *MongoUserRepository) SetRelations(ctx context.Context, id primitive.ObjectID, followers, following []primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"followers": nonNilIDs(followers),
		"following": nonNilIDs(following),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ForEachUserID streams every user id to fn, stopping at the first error
func (r *MongoUserRepository) ForEachUserID(ctx context.Context, fn func(primitive.ObjectID) error) error {
	return forEachID(ctx, r.collection, fn)
}

func forEachID(ctx context.Context, collection *mongo.Collection, fn func(primitive.ObjectID) error) error {
	cursor, err := collection.Find(ctx, bson.D{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return err
		}
		if err := fn(doc.ID); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func nonNilIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	if ids == nil {
		return []primitive.ObjectID{}
	}
	return ids
}
