package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/pulse/backend/internal/models"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PostManager interface {
	CreatePost(ctx context.Context, authorID primitive.ObjectID, req models.CreatePostRequest) (*models.Post, error)
	GetPost(ctx context.Context, postID primitive.ObjectID) (*models.Post, error)
	ListByAuthor(ctx context.Context, username string, skip, limit int64) ([]models.Post, error)
	Feed(ctx context.Context, userID primitive.ObjectID, skip, limit int64) ([]models.Post, error)
	UpdatePost(ctx context.Context, actorID, postID primitive.ObjectID, content string) (*models.Post, error)
	DeletePost(ctx context.Context, actorID, postID primitive.ObjectID) error
}

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	posts PostManager
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(posts PostManager) *PostHandler {
	return &PostHandler{posts: posts}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:post_id", h.GetPost)
	g.GET("/users/:username/posts", h.GetPostsByUser)
	g.PUT("/posts/:post_id", h.UpdatePost)
	g.DELETE("/posts/:post_id", h.DeletePost)
}

// CreatePost creates a new post
func (h *PostHandler) CreatePost(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	post, err := h.posts.CreatePost(c.Request().Context(), userID, req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, post)
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	postID, err := parseObjectIDParam(c, "post_id")
	if err != nil {
		return err
	}

	post, err := h.posts.GetPost(c.Request().Context(), postID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, post)
}

// GetPostsByUser lists a user's posts, newest first
func (h *PostHandler) GetPostsByUser(c echo.Context) error {
	page, limit := pagination(c, 10, 50)
	skip := int64((page - 1) * limit)

	posts, err := h.posts.ListByAuthor(c.Request().Context(), c.Param("username"), skip, int64(limit))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, posts)
}

// UpdatePost updates an existing post
func (h *PostHandler) UpdatePost(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	postID, err := parseObjectIDParam(c, "post_id")
	if err != nil {
		return err
	}

	var req models.UpdatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	post, err := h.posts.UpdatePost(c.Request().Context(), userID, postID, req.Content)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, post)
}

// DeletePost deletes a post owned by the caller
func (h *PostHandler) DeletePost(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	postID, err := parseObjectIDParam(c, "post_id")
	if err != nil {
		return err
	}

	if err := h.posts.DeletePost(c.Request().Context(), userID, postID); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
