package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationFollow  NotificationType = "follow"
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
)

// Notification represents a user notification (MongoDB).
// Only IsRead ever changes after insert, and only from false to true.
type Notification struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RecipientID    primitive.ObjectID `json:"recipient_id" bson:"recipient_id"`
	ActorID        primitive.ObjectID `json:"actor_id" bson:"actor_id"`
	Type           NotificationType   `json:"type" bson:"type"`
	SourceEntityID primitive.ObjectID `json:"source_entity_id" bson:"source_entity_id"` // like/follow edge or comment
	TargetID       primitive.ObjectID `json:"target_id,omitempty" bson:"target_id,omitempty"`
	Message        string             `json:"message" bson:"message"`
	IsRead         bool               `json:"is_read" bson:"is_read"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}
