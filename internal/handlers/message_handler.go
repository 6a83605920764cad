package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/pulse/backend/internal/models"
	"github.com/anonto42/pulse/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

const maxConversationLimit = 200

// MessageHandler handles direct messages between users
type MessageHandler struct {
	messageRepository repositories.MessageRepository
	userRepository    repositories.UserRepository
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messageRepo repositories.MessageRepository, userRepo repositories.UserRepository) *MessageHandler {
	return &MessageHandler{messageRepository: messageRepo, userRepository: userRepo}
}

// RegisterMessageRoutes registers message-related routes
func (h *MessageHandler) RegisterMessageRoutes(g *echo.Group) {
	g.POST("/messages/:username", h.SendMessage)
	g.GET("/messages/:username", h.GetConversation)
	g.DELETE("/messages/:id", h.DeleteMessage)
}

func (h *MessageHandler) peer(c echo.Context) (*models.User, error) {
	peer, err := h.userRepository.GetUserByUsername(c.Request().Context(), c.Param("username"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return peer, nil
}

// SendMessage sends a direct message to :username
func (h *MessageHandler) SendMessage(c echo.Context) error {
	senderID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	receiver, err := h.peer(c)
	if err != nil {
		return err
	}
	if receiver.ID == senderID {
		return echo.NewHTTPError(http.StatusBadRequest, "You cannot message yourself")
	}

	message := &models.Message{SenderID: senderID, ReceiverID: receiver.ID, Content: req.Content}
	if err := h.messageRepository.CreateMessage(c.Request().Context(), message); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to send message").SetInternal(err)
	}
	return c.JSON(http.StatusCreated, message)
}

// GetConversation returns the messages exchanged with :username, oldest first
func (h *MessageHandler) GetConversation(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	peer, err := h.peer(c)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > maxConversationLimit {
		limit = 50
	}

	messages, err := h.messageRepository.GetConversation(c.Request().Context(), userID, peer.ID, int64(limit))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load conversation").SetInternal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": messages, "count": len(messages)})
}

// DeleteMessage unsends one of the caller's messages
func (h *MessageHandler) DeleteMessage(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	messageID, err := parseObjectIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.messageRepository.DeleteMessage(c.Request().Context(), messageID, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Message not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
