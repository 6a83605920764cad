package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/pulse/backend/internal/services"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CounterReconciler interface {
	RecomputeCounters(ctx context.Context, postID primitive.ObjectID) (*services.PostReport, error)
	RecomputeRelations(ctx context.Context, userID primitive.ObjectID) (*services.UserReport, error)
}

// AdminHandler exposes maintenance operations over HTTP
type AdminHandler struct {
	reconciler CounterReconciler
}

func NewAdminHandler(reconciler CounterReconciler) *AdminHandler {
	return &AdminHandler{reconciler: reconciler}
}

func (h *AdminHandler) RegisterAdminRoutes(g *echo.Group) {
	g.POST("/admin/reconcile/posts/:post_id", h.ReconcilePost)
	g.POST("/admin/reconcile/users/:user_id", h.ReconcileUser)
}

// ReconcilePost recomputes a post's like and comment counters from the ledger
func (h *AdminHandler) ReconcilePost(c echo.Context) error {
	postID, err := parseObjectIDParam(c, "post_id")
	if err != nil {
		return err
	}
	report, err := h.reconciler.RecomputeCounters(c.Request().Context(), postID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, report)
}

// ReconcileUser recomputes a user's follower and following sets from the ledger
func (h *AdminHandler) ReconcileUser(c echo.Context) error {
	userID, err := parseObjectIDParam(c, "user_id")
	if err != nil {
		return err
	}
	report, err := h.reconciler.RecomputeRelations(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, report)
}
