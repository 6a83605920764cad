package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/anonto42/pulse/backend/internal/middleware"
	"github.com/anonto42/pulse/backend/internal/models"
	"github.com/anonto42/pulse/backend/internal/repositories"
	"github.com/anonto42/pulse/backend/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestToHTTPError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not found", &services.NotFoundError{Entity: "post"}, http.StatusNotFound},
		{"validation", &services.ValidationError{Field: "username", Message: "you cannot follow yourself"}, http.StatusBadRequest},
		{"forbidden", &services.ForbiddenError{Entity: "post"}, http.StatusForbidden},
		{"conflict", &services.ConflictError{Op: "like"}, http.StatusConflict},
		{"storage", &services.StorageError{Op: "add like", Err: errors.New("boom")}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var he *echo.HTTPError
			require.ErrorAs(t, toHTTPError(tc.err), &he)
			assert.Equal(t, tc.code, he.Code)
		})
	}
}

func TestToHTTPError_StorageHidesCause(t *testing.T) {
	cause := errors.New("connection reset")
	var he *echo.HTTPError
	require.ErrorAs(t, toHTTPError(&services.StorageError{Op: "add like", Err: cause}), &he)
	assert.Equal(t, "Internal server error", he.Message)
	assert.ErrorIs(t, he.Internal, cause)
}

type stubLikeToggler struct {
	result *models.LikeResult
	err    error
	actor  primitive.ObjectID
	post   primitive.ObjectID
}

func (s *stubLikeToggler) ToggleLike(_ context.Context, actorID, postID primitive.ObjectID) (*models.LikeResult, error) {
	s.actor, s.post = actorID, postID
	return s.result, s.err
}

func TestLikeHandler_ToggleLike(t *testing.T) {
	toggler := &stubLikeToggler{result: &models.LikeResult{Liked: true, LikesCount: 1}}
	e, g := newTestAPI()
	NewLikeHandler(toggler).RegisterLikeRoutes(g)

	actor, post := primitive.NewObjectID(), primitive.NewObjectID()
	rec := doRequest(e, http.MethodPost, "/api/v1/posts/"+post.Hex()+"/like", "", actor)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"liked":true,"likesCount":1}`, rec.Body.String())
	assert.Equal(t, actor, toggler.actor)
	assert.Equal(t, post, toggler.post)
}

func TestLikeHandler_Errors(t *testing.T) {
	post := primitive.NewObjectID()

	t.Run("unauthenticated", func(t *testing.T) {
		e, g := newTestAPI()
		NewLikeHandler(&stubLikeToggler{}).RegisterLikeRoutes(g)
		rec := doJSON(e, http.MethodPost, "/api/v1/posts/"+post.Hex()+"/like", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		e, g := newTestAPI()
		NewLikeHandler(&stubLikeToggler{}).RegisterLikeRoutes(g)
		rec := doRequest(e, http.MethodPost, "/api/v1/posts/not-an-id/like", "", primitive.NewObjectID())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing post", func(t *testing.T) {
		e, g := newTestAPI()
		NewLikeHandler(&stubLikeToggler{err: &services.NotFoundError{Entity: "post", ID: post.Hex()}}).RegisterLikeRoutes(g)
		rec := doRequest(e, http.MethodPost, "/api/v1/posts/"+post.Hex()+"/like", "", primitive.NewObjectID())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("storage", func(t *testing.T) {
		e, g := newTestAPI()
		NewLikeHandler(&stubLikeToggler{err: &services.StorageError{Op: "add like", Err: errors.New("down")}}).RegisterLikeRoutes(g)
		rec := doRequest(e, http.MethodPost, "/api/v1/posts/"+post.Hex()+"/like", "", primitive.NewObjectID())
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

type stubFollowToggler struct {
	result   *models.FollowResult
	err      error
	username string
}

func (s *stubFollowToggler) ToggleFollow(_ context.Context, _ primitive.ObjectID, username string) (*models.FollowResult, error) {
	s.username = username
	return s.result, s.err
}

func TestFollowHandler_ToggleFollow(t *testing.T) {
	toggler := &stubFollowToggler{result: &models.FollowResult{Following: true, FollowersCount: 3}}
	e, g := newTestAPI()
	NewFollowHandler(toggler).RegisterFollowRoutes(g)

	rec := doRequest(e, http.MethodPost, "/api/v1/users/bob/follow", "", primitive.NewObjectID())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"following":true,"followersCount":3}`, rec.Body.String())
	assert.Equal(t, "bob", toggler.username)
}

func TestFollowHandler_SelfFollow(t *testing.T) {
	toggler := &stubFollowToggler{err: &services.ValidationError{Field: "username", Message: "you cannot follow yourself"}}
	e, g := newTestAPI()
	NewFollowHandler(toggler).RegisterFollowRoutes(g)

	rec := doRequest(e, http.MethodPost, "/api/v1/users/alice/follow", "", primitive.NewObjectID())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "you cannot follow yourself")
}

type stubInbox struct {
	page   *services.NotificationPage
	unread int64
	err    error
}

func (s *stubInbox) ListForUser(_ context.Context, _ primitive.ObjectID, page, limit int) (*services.NotificationPage, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.page.Page, s.page.Limit = page, limit
	return s.page, nil
}

func (s *stubInbox) MarkRead(context.Context, primitive.ObjectID, primitive.ObjectID) error {
	return s.err
}

func (s *stubInbox) UnreadCount(context.Context, primitive.ObjectID) (int64, error) {
	return s.unread, s.err
}

func TestNotificationHandler_GetNotifications(t *testing.T) {
	users := &stubUsers{}
	actor := users.add(models.User{Username: "alice"})
	recipient := primitive.NewObjectID()

	inbox := &stubInbox{page: &services.NotificationPage{
		Notifications: []models.Notification{{
			ID:          primitive.NewObjectID(),
			RecipientID: recipient,
			ActorID:     actor.ID,
			Type:        models.NotificationLike,
			Message:     "alice liked your post.",
		}},
		Total: 3,
	}}
	e, g := newTestAPI()
	NewNotificationHandler(inbox, users).RegisterNotificationRoutes(g)

	rec := doRequest(e, http.MethodGet, "/api/v1/notifications?page=1&limit=2", "", recipient)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Notifications []struct {
				Type   string `json:"type"`
				IsRead bool   `json:"is_read"`
				Actor  struct {
					Username string `json:"username"`
				} `json:"actor"`
			} `json:"notifications"`
		} `json:"data"`
		Meta struct {
			TotalPages  int  `json:"totalPages"`
			HasNextPage bool `json:"hasNextPage"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Notifications, 1)
	assert.Equal(t, "like", body.Data.Notifications[0].Type)
	assert.Equal(t, "alice", body.Data.Notifications[0].Actor.Username)
	assert.Equal(t, 2, body.Meta.TotalPages)
	assert.True(t, body.Meta.HasNextPage)
}

func TestNotificationHandler_UnreadAndMarkRead(t *testing.T) {
	inbox := &stubInbox{unread: 4}
	e, g := newTestAPI()
	NewNotificationHandler(inbox, &stubUsers{}).RegisterNotificationRoutes(g)
	user := primitive.NewObjectID()

	rec := doRequest(e, http.MethodGet, "/api/v1/notifications/unread-count", "", user)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"count":4}}`, rec.Body.String())

	rec = doRequest(e, http.MethodPut, "/api/v1/notifications/"+primitive.NewObjectID().Hex()+"/read", "", user)
	assert.Equal(t, http.StatusOK, rec.Code)

	inbox.err = &services.NotFoundError{Entity: "notification"}
	rec = doRequest(e, http.MethodPut, "/api/v1/notifications/"+primitive.NewObjectID().Hex()+"/read", "", user)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type stubReconciler struct {
	err error
}

func (s *stubReconciler) RecomputeCounters(_ context.Context, postID primitive.ObjectID) (*services.PostReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.PostReport{PostID: postID, LikeEdges: 2}, nil
}

func (s *stubReconciler) RecomputeRelations(_ context.Context, userID primitive.ObjectID) (*services.UserReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.UserReport{UserID: userID}, nil
}

func TestAdminHandler_Reconcile(t *testing.T) {
	e, g := newTestAPI()
	reconciler := &stubReconciler{}
	NewAdminHandler(reconciler).RegisterAdminRoutes(g)
	caller := primitive.NewObjectID()

	rec := doRequest(e, http.MethodPost, "/api/v1/admin/reconcile/posts/"+primitive.NewObjectID().Hex(), "", caller)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"like_edges":2`)

	rec = doRequest(e, http.MethodPost, "/api/v1/admin/reconcile/users/"+primitive.NewObjectID().Hex(), "", caller)
	assert.Equal(t, http.StatusOK, rec.Code)

	reconciler.err = &services.NotFoundError{Entity: "post"}
	rec = doRequest(e, http.MethodPost, "/api/v1/admin/reconcile/posts/"+primitive.NewObjectID().Hex(), "", caller)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMessageHandler(t *testing.T) {
	users := &stubUsers{}
	alice := users.add(models.User{Username: "alice"})
	bob := users.add(models.User{Username: "bob"})
	messages := &stubMessages{}

	e, g := newTestAPI()
	NewMessageHandler(messages, users).RegisterMessageRoutes(g)

	rec := doRequest(e, http.MethodPost, "/api/v1/messages/bob", `{"content":"hi bob"}`, alice.ID)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, messages.created, 1)
	assert.Equal(t, bob.ID, messages.created[0].ReceiverID)

	rec = doRequest(e, http.MethodGet, "/api/v1/messages/alice", "", bob.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = doRequest(e, http.MethodPost, "/api/v1/messages/alice", `{"content":"note to self"}`, alice.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/messages/bob", `{"content":""}`, alice.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/messages/nobody", `{"content":"hello?"}`, alice.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	messages.delErr = repositories.ErrNotFound
	rec = doRequest(e, http.MethodDelete, "/api/v1/messages/"+primitive.NewObjectID().Hex(), "", alice.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	messages.delErr = nil
	rec = doRequest(e, http.MethodDelete, "/api/v1/messages/"+messages.created[0].ID.Hex(), "", alice.ID)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUserHandler_GetUser(t *testing.T) {
	users := &stubUsers{}
	viewer := primitive.NewObjectID()
	users.add(models.User{Username: "bob", Followers: []primitive.ObjectID{viewer}})

	e, g := newTestAPI()
	NewUserHandler(users).RegisterProfileRoutes(g)

	rec := doRequest(e, http.MethodGet, "/api/v1/users/bob", "", viewer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_following":true`)
	assert.Contains(t, rec.Body.String(), `"followers_count":1`)

	rec = doRequest(e, http.MethodGet, "/api/v1/users/ghost", "", viewer)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserHandler_Followers(t *testing.T) {
	users := &stubUsers{}
	alice := users.add(models.User{Username: "alice"})
	users.add(models.User{Username: "bob", Followers: []primitive.ObjectID{alice.ID}})

	e, g := newTestAPI()
	NewUserHandler(users).RegisterProfileRoutes(g)

	rec := doRequest(e, http.MethodGet, "/api/v1/users/bob/followers", "", alice.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestUserHandler_SearchUsers(t *testing.T) {
	users := &stubUsers{}
	alice := users.add(models.User{Username: "alice"})
	users.add(models.User{Username: "malia"})
	users.add(models.User{Username: "bob"})

	e, g := newTestAPI()
	NewUserHandler(users).RegisterProfileRoutes(g)

	rec := doRequest(e, http.MethodGet, "/api/v1/users?q=AL", "", alice.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Users []models.UserCompact `json:"users"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	names := []string{body.Users[0].Username, body.Users[1].Username}
	assert.ElementsMatch(t, []string{"alice", "malia"}, names)

	rec = doRequest(e, http.MethodGet, "/api/v1/users?q=al&limit=1", "", alice.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = doRequest(e, http.MethodGet, "/api/v1/users?q=zz", "", alice.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"users":[],"count":0}`, rec.Body.String())

	rec = doRequest(e, http.MethodGet, "/api/v1/users?q=%20", "", alice.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUserIDFromContext(t *testing.T) {
	e := echo.New()
	id := primitive.NewObjectID()
	c := e.NewContext(nil, nil)
	c.Set(middleware.ContextUserID, id)
	assert.Equal(t, id, getUserIDFromContext(c))

	c.Set(middleware.ContextUserID, "not-an-id")
	assert.True(t, getUserIDFromContext(c).IsZero())
}
