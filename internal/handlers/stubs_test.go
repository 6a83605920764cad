package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/pulse/backend/internal/middleware"
	"github.com/anonto42/pulse/backend/internal/models"
	"github.com/anonto42/pulse/backend/internal/repositories"
	"github.com/anonto42/pulse/backend/validators"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testUserHeader = "X-Test-User"

// newTestAPI returns an echo instance and an /api/v1 group that authenticates
// callers from the X-Test-User header instead of a JWT.
func newTestAPI() (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.Validator = validators.NewValidator()
	g := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if hex := c.Request().Header.Get(testUserHeader); hex != "" {
				id, _ := primitive.ObjectIDFromHex(hex)
				c.Set(middleware.ContextUserID, id)
			}
			return next(c)
		}
	})
	return e, g
}

func doRequest(e *echo.Echo, method, path, body string, userID primitive.ObjectID) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if !userID.IsZero() {
		req.Header.Set(testUserHeader, userID.Hex())
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	return doRequest(e, method, path, body, primitive.NilObjectID)
}

// stubUsers implements the parts of UserRepository the handlers use
type stubUsers struct {
	repositories.UserRepository

	mu    sync.Mutex
	users []*models.User
}

func (s *stubUsers) add(u models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.users = append(s.users, &u)
	return &u
}

func (s *stubUsers) find(match func(*models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *stubUsers) CreateUser(_ context.Context, user *models.User) error {
	if _, err := s.find(func(u *models.User) bool { return u.Username == user.Username || u.Email == user.Email }); err == nil {
		return repositories.ErrDuplicate
	}
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now()
	s.add(*user)
	return nil
}

func (s *stubUsers) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.ID == id })
}

func (s *stubUsers) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Username == username })
}

func (s *stubUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Email == email })
}

func (s *stubUsers) GetUserByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.FirebaseUID != "" && u.FirebaseUID == uid })
}

func (s *stubUsers) GetUsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, err := s.find(func(u *models.User) bool { return u.ID == id }); err == nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *stubUsers) SearchUsers(_ context.Context, query string, limit int64) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.User{}
	for _, u := range s.users {
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(query)) && int64(len(out)) < limit {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *stubUsers) LinkFirebaseUID(_ context.Context, id primitive.ObjectID, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			u.FirebaseUID = uid
			return nil
		}
	}
	return repositories.ErrNotFound
}

type stubMessages struct {
	created []*models.Message
	delErr  error
}

func (s *stubMessages) CreateMessage(_ context.Context, m *models.Message) error {
	m.ID = primitive.NewObjectID()
	m.CreatedAt = time.Now()
	s.created = append(s.created, m)
	return nil
}

func (s *stubMessages) GetConversation(_ context.Context, a, b primitive.ObjectID, limit int64) ([]models.Message, error) {
	var out []models.Message
	for _, m := range s.created {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *stubMessages) DeleteMessage(context.Context, primitive.ObjectID, primitive.ObjectID) error {
	return s.delErr
}
