package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Follow is a directed (follower, following) edge. FollowerID never equals FollowingID.
type Follow struct {
	ID          primitive.ObjectID `json:"id" bson:"_id"`
	FollowerID  primitive.ObjectID `json:"follower_id" bson:"follower_id"`
	FollowingID primitive.ObjectID `json:"following_id" bson:"following_id"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
}

// FollowResult is the outcome of a follow toggle
type FollowResult struct {
	Following      bool `json:"following"`
	FollowersCount int  `json:"followersCount"`
}
