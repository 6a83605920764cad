package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Like is a (user, post) edge. At most one exists per pair.
type Like struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	UserID    primitive.ObjectID `json:"user_id" bson:"user_id"`
	PostID    primitive.ObjectID `json:"post_id" bson:"post_id"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// LikeResult is the outcome of a like toggle
type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likesCount"`
}
