package handlers

import (
	"net/http"

	"github.com/anonto42/pulse/backend/internal/models"
	"github.com/anonto42/pulse/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeedHandler handles feed-related HTTP requests
type FeedHandler struct {
	posts          PostManager
	userRepository repositories.UserRepository
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(posts PostManager, userRepo repositories.UserRepository) *FeedHandler {
	return &FeedHandler{posts: posts, userRepository: userRepo}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
}

// EnrichedPost is a post with author info and the caller's like state
type EnrichedPost struct {
	models.Post
	Author  *models.UserCompact `json:"author,omitempty"`
	IsLiked bool                `json:"is_liked"`
}

// GetFeed returns posts by the caller and the users they follow
func (h *FeedHandler) GetFeed(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 10, 50)
	skip := int64((page - 1) * limit)

	ctx := c.Request().Context()
	posts, err := h.posts.Feed(ctx, currentUserID, skip, int64(limit))
	if err != nil {
		return toHTTPError(err)
	}

	authorIDs := make([]primitive.ObjectID, 0, len(posts))
	for _, p := range posts {
		authorIDs = append(authorIDs, p.AuthorID)
	}
	authors := map[primitive.ObjectID]models.UserCompact{}
	if users, err := h.userRepository.GetUsersByIDs(ctx, authorIDs); err == nil {
		for i := range users {
			authors[users[i].ID] = users[i].ToCompact()
		}
	}

	enriched := make([]EnrichedPost, len(posts))
	for i := range posts {
		enriched[i] = EnrichedPost{Post: posts[i], IsLiked: posts[i].IsLikedBy(currentUserID)}
		if author, ok := authors[posts[i].AuthorID]; ok {
			enriched[i].Author = &author
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"posts": enriched},
		"meta": echo.Map{
			"currentPage":  page,
			"itemsPerPage": limit,
			"hasNextPage":  len(posts) == limit,
		},
	})
}
