package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post represents a social media post stored in MongoDB.
// LikesCount and LikedBy are caches over the like ledger and always move together.
type Post struct {
	ID            primitive.ObjectID   `json:"id,omitempty" bson:"_id,omitempty"`
	AuthorID      primitive.ObjectID   `json:"author_id" bson:"author_id"`
	Content       string               `json:"content" bson:"content"`
	ImageRef      string               `json:"image_ref,omitempty" bson:"image_ref,omitempty"`
	LikesCount    int                  `json:"likes_count" bson:"likes_count"`
	CommentsCount int                  `json:"comments_count" bson:"comments_count"`
	LikedBy       []primitive.ObjectID `json:"liked_by" bson:"liked_by"`
	CreatedAt     time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at" bson:"updated_at"`
}

// IsLikedBy reports whether userID is in the cached membership set
func (p *Post) IsLikedBy(userID primitive.ObjectID) bool {
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Content  string `json:"content" validate:"required,min=1,max=280"`
	ImageRef string `json:"image_ref,omitempty" validate:"omitempty,max=512"`
}

// UpdatePostRequest defines the request body for updating an existing post
type UpdatePostRequest struct {
	Content string `json:"content" validate:"required,min=1,max=280"`
}
