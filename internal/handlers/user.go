package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/anonto42/pulse/backend/internal/models"
	"github.com/anonto42/pulse/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository repositories.UserRepository
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository) *UserHandler {
	return &UserHandler{userRepository: userRepo}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.GET("/users", h.SearchUsers)
	g.GET("/users/:username", h.GetUser)
	g.GET("/users/:username/followers", h.GetFollowers)
	g.GET("/users/:username/following", h.GetFollowing)
}

func (h *UserHandler) lookup(c echo.Context) (*models.User, error) {
	user, err := h.userRepository.GetUserByUsername(c.Request().Context(), c.Param("username"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return user, nil
}

// SearchUsers finds users whose username contains the query string q
func (h *UserHandler) SearchUsers(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Search query 'q' is required")
	}
	_, limit := pagination(c, 20, 50)

	users, err := h.userRepository.SearchUsers(c.Request().Context(), query, int64(limit))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respondUsers(c, users)
}

// GetUser returns another user's public profile and whether the caller follows them
func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := h.lookup(c)
	if err != nil {
		return err
	}

	currentUserID := getUserIDFromContext(c)
	isFollowing := false
	for _, id := range user.Followers {
		if id == currentUserID {
			isFollowing = true
			break
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"profile": user.ToProfile(), "is_following": isFollowing})
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateProfile updates the bio and avatar of the authenticated user
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.userRepository.UpdateProfile(c.Request().Context(), userID, req.Bio, req.AvatarURL)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

// GetFollowers lists the users following :username
func (h *UserHandler) GetFollowers(c echo.Context) error {
	user, err := h.lookup(c)
	if err != nil {
		return err
	}
	return h.respondCompact(c, user.Followers)
}

// GetFollowing lists the users :username follows
func (h *UserHandler) GetFollowing(c echo.Context) error {
	user, err := h.lookup(c)
	if err != nil {
		return err
	}
	return h.respondCompact(c, user.Following)
}

func (h *UserHandler) respondCompact(c echo.Context, ids []primitive.ObjectID) error {
	users, err := h.userRepository.GetUsersByIDs(c.Request().Context(), ids)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respondUsers(c, users)
}

func respondUsers(c echo.Context, users []models.User) error {
	compact := make([]models.UserCompact, 0, len(users))
	for i := range users {
		compact = append(compact, users[i].ToCompact())
	}
	return c.JSON(http.StatusOK, echo.Map{"users": compact, "count": len(compact)})
}
