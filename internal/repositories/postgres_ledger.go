package repositories

import (
	"context"
	"time"

	"github.com/anonto42/pulse/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
)

// likeRecord is the PostgreSQL row for a like edge. Post and user ids are
// MongoDB ObjectIDs stored as hex strings.
type likeRecord struct {
	ID        uint      `gorm:"primaryKey"`
	EdgeID    string    `gorm:"size:24;uniqueIndex"`
	UserID    string    `gorm:"size:24;uniqueIndex:idx_like_user_post"`
	PostID    string    `gorm:"size:24;uniqueIndex:idx_like_user_post;index"`
	CreatedAt time.Time
}

func (likeRecord) TableName() string { return "likes" }

type followRecord struct {
	ID          uint      `gorm:"primaryKey"`
	EdgeID      string    `gorm:"size:24;uniqueIndex"`
	FollowerID  string    `gorm:"size:24;uniqueIndex:idx_follower_following"`
	FollowingID string    `gorm:"size:24;uniqueIndex:idx_follower_following;index"`
	CreatedAt   time.Time
}

func (followRecord) TableName() string { return "follows" }

// AutoMigrateLedger creates the ledger tables and their unique indexes
func AutoMigrateLedger(db *gorm.DB) error {
	return db.AutoMigrate(&likeRecord{}, &followRecord{})
}

// PostgresLikeRepository implements LikeRepository for PostgreSQL.
// The gorm.DB must be opened with TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
type PostgresLikeRepository struct {
	db *gorm.DB
}

// NewPostgresLikeRepository creates a new PostgresLikeRepository
func NewPostgresLikeRepository(db *gorm.DB) *PostgresLikeRepository {
	return &PostgresLikeRepository{db: db}
}

// CreateLike creates a new like in PostgreSQL
func (r *PostgresLikeRepository) CreateLike(ctx context.Context, like *models.Like) error {
	if like.ID.IsZero() {
		like.ID = primitive.NewObjectID()
	}
	if like.CreatedAt.IsZero() {
		like.CreatedAt = time.Now()
	}
	rec := &likeRecord{
		EdgeID:    like.ID.Hex(),
		UserID:    like.UserID.Hex(),
		PostID:    like.PostID.Hex(),
		CreatedAt: like.CreatedAt,
	}
	return translateGormError(r.db.WithContext(ctx).Create(rec).Error)
}

// DeleteLike deletes a like from PostgreSQL
func (r *PostgresLikeRepository) DeleteLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, error) {
	res := r.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID.Hex(), userID.Hex()).Delete(&likeRecord{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// HasUserLikedPost checks if a user has liked a specific post
func (r *PostgresLikeRepository) HasUserLikedPost(ctx context.Context, postID, userID primitive.ObjectID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&likeRecord{}).
		Where("post_id = ? AND user_id = ?", postID.Hex(), userID.Hex()).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresLikeRepository) GetLikerIDs(ctx context.Context, postID primitive.ObjectID) ([]primitive.ObjectID, error) {
	var hexIDs []string
	err := r.db.WithContext(ctx).Model(&likeRecord{}).
		Where("post_id = ?", postID.Hex()).Order("created_at ASC").Pluck("user_id", &hexIDs).Error
	if err != nil {
		return nil, err
	}
	return parseHexIDs(hexIDs)
}

func (r *PostgresLikeRepository) DeleteLikesByPostID(ctx context.Context, postID primitive.ObjectID) error {
	return r.db.WithContext(ctx).Where("post_id = ?", postID.Hex()).Delete(&likeRecord{}).Error
}

// PostgresFollowRepository implements FollowRepository for PostgreSQL
type PostgresFollowRepository struct {
	db *gorm.DB
}

// NewPostgresFollowRepository creates a new PostgresFollowRepository
func NewPostgresFollowRepository(db *gorm.DB) *PostgresFollowRepository {
	return &PostgresFollowRepository{db: db}
}

func (r *PostgresFollowRepository) CreateFollow(ctx context.Context, follow *models.Follow) error {
	if follow.ID.IsZero() {
		follow.ID = primitive.NewObjectID()
	}
	if follow.CreatedAt.IsZero() {
		follow.CreatedAt = time.Now()
	}
	rec := &followRecord{
		EdgeID:      follow.ID.Hex(),
		FollowerID:  follow.FollowerID.Hex(),
		FollowingID: follow.FollowingID.Hex(),
		CreatedAt:   follow.CreatedAt,
	}
	return translateGormError(r.db.WithContext(ctx).Create(rec).Error)
}

func (r *PostgresFollowRepository) DeleteFollow(ctx context.Context, followerID, followingID primitive.ObjectID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID.Hex(), followingID.Hex()).
		Delete(&followRecord{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresFollowRepository) IsFollowing(ctx context.Context, followerID, followingID primitive.ObjectID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&followRecord{}).
		Where("follower_id = ? AND following_id = ?", followerID.Hex(), followingID.Hex()).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresFollowRepository) GetFollowerIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	var hexIDs []string
	err := r.db.WithContext(ctx).Model(&followRecord{}).
		Where("following_id = ?", userID.Hex()).Order("created_at ASC").Pluck("follower_id", &hexIDs).Error
	if err != nil {
		return nil, err
	}
	return parseHexIDs(hexIDs)
}

func (r *PostgresFollowRepository) GetFollowingIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	var hexIDs []string
	err := r.db.WithContext(ctx).Model(&followRecord{}).
		Where("follower_id = ?", userID.Hex()).Order("created_at ASC").Pluck("following_id", &hexIDs).Error
	if err != nil {
		return nil, err
	}
	return parseHexIDs(hexIDs)
}

func parseHexIDs(hexIDs []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(hexIDs))
	for _, h := range hexIDs {
		id, err := primitive.ObjectIDFromHex(h)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
