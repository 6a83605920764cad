package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/pulse/backend/internal/models"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LikeToggler interface {
	ToggleLike(ctx context.Context, actorID, postID primitive.ObjectID) (*models.LikeResult, error)
}

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	toggler LikeToggler
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(toggler LikeToggler) *LikeHandler {
	return &LikeHandler{toggler: toggler}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/like", h.ToggleLike)
}

// ToggleLike likes the post, or unlikes it if the caller already liked it
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	postID, err := parseObjectIDParam(c, "post_id")
	if err != nil {
		return err
	}

	result, err := h.toggler.ToggleLike(c.Request().Context(), userID, postID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}
