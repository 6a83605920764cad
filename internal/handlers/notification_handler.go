package handlers

import (
	"context"
	"math"
	"net/http"

	"github.com/anonto42/pulse/backend/internal/models"
	"github.com/anonto42/pulse/backend/internal/repositories"
	"github.com/anonto42/pulse/backend/internal/services"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationInbox interface {
	ListForUser(ctx context.Context, userID primitive.ObjectID, page, limit int) (*services.NotificationPage, error)
	MarkRead(ctx context.Context, recipientID, notificationID primitive.ObjectID) error
	UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	inbox          NotificationInbox
	userRepository repositories.UserRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(inbox NotificationInbox, userRepo repositories.UserRepository) *NotificationHandler {
	return &NotificationHandler{inbox: inbox, userRepository: userRepo}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
}

// EnrichedNotification includes actor info
type EnrichedNotification struct {
	models.Notification
	Actor *models.UserCompact `json:"actor,omitempty"`
}

func (h *NotificationHandler) enrichNotifications(ctx context.Context, notifications []models.Notification) []EnrichedNotification {
	ids := make([]primitive.ObjectID, 0, len(notifications))
	for _, n := range notifications {
		ids = append(ids, n.ActorID)
	}
	actors := map[primitive.ObjectID]models.UserCompact{}
	if users, err := h.userRepository.GetUsersByIDs(ctx, ids); err == nil {
		for i := range users {
			actors[users[i].ID] = users[i].ToCompact()
		}
	}

	enriched := make([]EnrichedNotification, len(notifications))
	for i, n := range notifications {
		enriched[i] = EnrichedNotification{Notification: n}
		if actor, ok := actors[n.ActorID]; ok {
			enriched[i].Actor = &actor
		}
	}
	return enriched
}

// GetNotifications returns a page of the inbox and marks the returned unread items as read.
// Items keep the is_read value they had before this call.
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 20, 100)

	ctx := c.Request().Context()
	result, err := h.inbox.ListForUser(ctx, currentUserID, page, limit)
	if err != nil {
		return toHTTPError(err)
	}

	totalPages := int(math.Ceil(float64(result.Total) / float64(result.Limit)))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": h.enrichNotifications(ctx, result.Notifications),
		},
		"meta": echo.Map{
			"currentPage":     result.Page,
			"totalPages":      totalPages,
			"totalItems":      result.Total,
			"itemsPerPage":    result.Limit,
			"hasNextPage":     result.Page < totalPages,
			"hasPreviousPage": result.Page > 1,
		},
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}

	count, err := h.inbox.UnreadCount(c.Request().Context(), currentUserID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}
	notifID, err := parseObjectIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.inbox.MarkRead(c.Request().Context(), currentUserID, notifID); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"success": true}})
}
