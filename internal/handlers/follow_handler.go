package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/pulse/backend/internal/models"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FollowToggler interface {
	ToggleFollow(ctx context.Context, actorID primitive.ObjectID, targetUsername string) (*models.FollowResult, error)
}

// FollowHandler handles follow-related HTTP requests
type FollowHandler struct {
	toggler FollowToggler
}

func NewFollowHandler(toggler FollowToggler) *FollowHandler {
	return &FollowHandler{toggler: toggler}
}

// RegisterFollowRoutes registers follow routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:username/follow", h.ToggleFollow)
}

// ToggleFollow follows the user, or unfollows if the caller already follows them
func (h *FollowHandler) ToggleFollow(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	username := c.Param("username")
	if username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Username is required")
	}

	result, err := h.toggler.ToggleFollow(c.Request().Context(), userID, username)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}
