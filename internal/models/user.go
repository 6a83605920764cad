package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an identity document stored in MongoDB.
// Followers and Following are caches over the follow ledger.
type User struct {
	ID           primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Username     string               `json:"username" bson:"username"`
	Email        string               `json:"email" bson:"email"`
	PasswordHash string               `json:"-" bson:"password_hash"`
	FirebaseUID  string               `json:"-" bson:"firebase_uid,omitempty"`
	Bio          string               `json:"bio,omitempty" bson:"bio,omitempty"`
	AvatarURL    string               `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
	Followers    []primitive.ObjectID `json:"followers" bson:"followers"`
	Following    []primitive.ObjectID `json:"following" bson:"following"`
	CreatedAt    time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at" bson:"updated_at"`
}

// UserCompact is the public subset of a user embedded in other responses
type UserCompact struct {
	ID        primitive.ObjectID `json:"id"`
	Username  string             `json:"username"`
	AvatarURL string             `json:"avatar_url,omitempty"`
}

// ToCompact returns the public subset of the user
func (u *User) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}

// Profile is a user with derived relationship counts
type Profile struct {
	UserCompact
	Bio            string    `json:"bio,omitempty"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToProfile returns the user's public profile
func (u *User) ToProfile() Profile {
	return Profile{
		UserCompact:    u.ToCompact(),
		Bio:            u.Bio,
		FollowersCount: len(u.Followers),
		FollowingCount: len(u.Following),
		CreatedAt:      u.CreatedAt,
	}
}

type SignupRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Bio       *string `json:"bio,omitempty" validate:"omitempty,max=280"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
