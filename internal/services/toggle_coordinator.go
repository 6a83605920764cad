package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anonto42/pulse/backend/internal/models"
	"github.com/anonto42/pulse/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxToggleAttempts bounds how many times a toggle re-reads state after losing
// a race on the ledger's unique index.
const maxToggleAttempts = 5

// ToggleCoordinator flips like and follow edges and keeps the cached counters
// and notification log in step with the ledger.
type ToggleCoordinator struct {
	users    repositories.UserRepository
	posts    repositories.PostRepository
	likes    repositories.LikeRepository
	follows  repositories.FollowRepository
	notifier Notifier
	metrics  *Metrics
	logger   *slog.Logger
}

func NewToggleCoordinator(
	users repositories.UserRepository,
	posts repositories.PostRepository,
	likes repositories.LikeRepository,
	follows repositories.FollowRepository,
	notifier Notifier,
	metrics *Metrics,
	logger *slog.Logger,
) *ToggleCoordinator {
	return &ToggleCoordinator{
		users:    users,
		posts:    posts,
		likes:    likes,
		follows:  follows,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// ToggleLike likes the post if actorID has not liked it yet, otherwise unlikes it.
func (c *ToggleCoordinator) ToggleLike(ctx context.Context, actorID, postID primitive.ObjectID) (*models.LikeResult, error) {
	post, err := c.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr("post", postID.Hex(), "load post", err)
	}
	actor, err := c.users.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, notFoundOr("user", actorID.Hex(), "load actor", err)
	}

	for attempt := 0; attempt < maxToggleAttempts; attempt++ {
		result, err := c.toggleLikeOnce(ctx, actor, post)
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			c.metrics.ToggleConflicts.WithLabelValues("like").Inc()
			continue
		}
		if err != nil {
			return nil, err
		}
		c.metrics.Toggles.WithLabelValues("like", likeState(result.Liked)).Inc()
		return result, nil
	}
	return nil, storageErr("toggle like", fmt.Errorf("still conflicting after %d attempts", maxToggleAttempts))
}

func (c *ToggleCoordinator) toggleLikeOnce(ctx context.Context, actor *models.User, post *models.Post) (*models.LikeResult, error) {
	liked, err := c.likes.HasUserLikedPost(ctx, post.ID, actor.ID)
	if err != nil {
		return nil, storageErr("read like edge", err)
	}

	if liked {
		removed, err := c.likes.DeleteLike(ctx, post.ID, actor.ID)
		if err != nil {
			return nil, storageErr("delete like edge", err)
		}
		if !removed {
			// a concurrent unlike already took the edge and owns the counter update
			current, err := c.posts.GetPostByID(ctx, post.ID)
			if err != nil {
				return nil, notFoundOr("post", post.ID.Hex(), "reload post", err)
			}
			return &models.LikeResult{Liked: false, LikesCount: current.LikesCount}, nil
		}
		updated, err := c.posts.RemoveLike(ctx, post.ID, actor.ID)
		if err != nil {
			return nil, notFoundOr("post", post.ID.Hex(), "decrement likes", err)
		}
		if updated, err = c.settleLike(ctx, updated, actor.ID); err != nil {
			return nil, err
		}
		return &models.LikeResult{Liked: false, LikesCount: updated.LikesCount}, nil
	}

	like := &models.Like{
		ID:        primitive.NewObjectID(),
		UserID:    actor.ID,
		PostID:    post.ID,
		CreatedAt: time.Now(),
	}
	if err := c.likes.CreateLike(ctx, like); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, &ConflictError{Op: "create like edge"}
		}
		return nil, storageErr("create like edge", err)
	}
	updated, err := c.posts.AddLike(ctx, post.ID, actor.ID)
	if err != nil {
		return nil, notFoundOr("post", post.ID.Hex(), "increment likes", err)
	}
	if updated, err = c.settleLike(ctx, updated, actor.ID); err != nil {
		return nil, err
	}

	if post.AuthorID != actor.ID {
		c.notify(ctx, EmitRequest{
			RecipientID:    post.AuthorID,
			ActorID:        actor.ID,
			Type:           models.NotificationLike,
			SourceEntityID: like.ID,
			TargetID:       post.ID,
			Message:        actor.Username + " liked your post.",
		})
	}
	return &models.LikeResult{Liked: true, LikesCount: updated.LikesCount}, nil
}

// ToggleFollow makes actorID follow targetUsername, or unfollow if already following.
func (c *ToggleCoordinator) ToggleFollow(ctx context.Context, actorID primitive.ObjectID, targetUsername string) (*models.FollowResult, error) {
	actor, err := c.users.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, notFoundOr("user", actorID.Hex(), "load actor", err)
	}
	if targetUsername == actor.Username {
		return nil, &ValidationError{Field: "username", Message: "you cannot follow yourself"}
	}
	target, err := c.users.GetUserByUsername(ctx, targetUsername)
	if err != nil {
		return nil, notFoundOr("user", targetUsername, "load target", err)
	}
	if target.ID == actor.ID {
		return nil, &ValidationError{Field: "username", Message: "you cannot follow yourself"}
	}

	for attempt := 0; attempt < maxToggleAttempts; attempt++ {
		result, err := c.toggleFollowOnce(ctx, actor, target)
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			c.metrics.ToggleConflicts.WithLabelValues("follow").Inc()
			continue
		}
		if err != nil {
			return nil, err
		}
		c.metrics.Toggles.WithLabelValues("follow", followState(result.Following)).Inc()
		return result, nil
	}
	return nil, storageErr("toggle follow", fmt.Errorf("still conflicting after %d attempts", maxToggleAttempts))
}

func (c *ToggleCoordinator) toggleFollowOnce(ctx context.Context, actor, target *models.User) (*models.FollowResult, error) {
	following, err := c.follows.IsFollowing(ctx, actor.ID, target.ID)
	if err != nil {
		return nil, storageErr("read follow edge", err)
	}

	if following {
		removed, err := c.follows.DeleteFollow(ctx, actor.ID, target.ID)
		if err != nil {
			return nil, storageErr("delete follow edge", err)
		}
		if !removed {
			current, err := c.users.GetUserByID(ctx, target.ID)
			if err != nil {
				return nil, notFoundOr("user", target.Username, "reload target", err)
			}
			return &models.FollowResult{Following: false, FollowersCount: len(current.Followers)}, nil
		}
		updated, err := c.users.RemoveFollowRelation(ctx, actor.ID, target.ID)
		if err != nil {
			return nil, notFoundOr("user", target.Username, "remove follow relation", err)
		}
		if updated, err = c.settleFollow(ctx, actor.ID, updated); err != nil {
			return nil, err
		}
		return &models.FollowResult{Following: false, FollowersCount: len(updated.Followers)}, nil
	}

	follow := &models.Follow{
		ID:          primitive.NewObjectID(),
		FollowerID:  actor.ID,
		FollowingID: target.ID,
		CreatedAt:   time.Now(),
	}
	if err := c.follows.CreateFollow(ctx, follow); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, &ConflictError{Op: "create follow edge"}
		}
		return nil, storageErr("create follow edge", err)
	}
	updated, err := c.users.AddFollowRelation(ctx, actor.ID, target.ID)
	if err != nil {
		return nil, notFoundOr("user", target.Username, "add follow relation", err)
	}
	if updated, err = c.settleFollow(ctx, actor.ID, updated); err != nil {
		return nil, err
	}

	c.notify(ctx, EmitRequest{
		RecipientID:    target.ID,
		ActorID:        actor.ID,
		Type:           models.NotificationFollow,
		SourceEntityID: follow.ID,
		Message:        actor.Username + " started following you.",
	})
	return &models.FollowResult{Following: true, FollowersCount: len(updated.Followers)}, nil
}

// settleLike re-reads the like edge after a cache write and replays the
// guarded update until post.LikedBy agrees with it. Whichever toggle writes
// the cache last sees the final edge state here, so the pair cannot stay
// skewed. Gives up after maxToggleAttempts and leaves the rest to the Reconciler.
func (c *ToggleCoordinator) settleLike(ctx context.Context, post *models.Post, actorID primitive.ObjectID) (*models.Post, error) {
	postID := post.ID
	for attempt := 0; attempt < maxToggleAttempts; attempt++ {
		liked, err := c.likes.HasUserLikedPost(ctx, postID, actorID)
		if err != nil {
			return nil, storageErr("re-read like edge", err)
		}
		if liked == hasID(post.LikedBy, actorID) {
			return post, nil
		}

		c.metrics.ToggleRepairs.WithLabelValues("like").Inc()
		c.logger.Info("like cache out of step with ledger, replaying",
			"post_id", postID.Hex(), "user_id", actorID.Hex(), "edge", liked)
		if liked {
			post, err = c.posts.AddLike(ctx, postID, actorID)
		} else {
			post, err = c.posts.RemoveLike(ctx, postID, actorID)
		}
		if err != nil {
			return nil, notFoundOr("post", postID.Hex(), "replay like state", err)
		}
	}
	c.logger.Warn("like cache still unsettled", "post_id", postID.Hex(), "user_id", actorID.Hex())
	return post, nil
}

// settleFollow is settleLike for the followers/following sets of both users
func (c *ToggleCoordinator) settleFollow(ctx context.Context, actorID primitive.ObjectID, target *models.User) (*models.User, error) {
	targetID := target.ID
	for attempt := 0; attempt < maxToggleAttempts; attempt++ {
		following, err := c.follows.IsFollowing(ctx, actorID, targetID)
		if err != nil {
			return nil, storageErr("re-read follow edge", err)
		}
		actor, err := c.users.GetUserByID(ctx, actorID)
		if err != nil {
			return nil, notFoundOr("user", actorID.Hex(), "reload actor", err)
		}
		target, err = c.users.GetUserByID(ctx, targetID)
		if err != nil {
			return nil, notFoundOr("user", targetID.Hex(), "reload target", err)
		}
		if following == hasID(target.Followers, actorID) && following == hasID(actor.Following, targetID) {
			return target, nil
		}

		c.metrics.ToggleRepairs.WithLabelValues("follow").Inc()
		c.logger.Info("follow sets out of step with ledger, replaying",
			"follower_id", actorID.Hex(), "following_id", targetID.Hex(), "edge", following)
		if following {
			_, err = c.users.AddFollowRelation(ctx, actorID, targetID)
		} else {
			_, err = c.users.RemoveFollowRelation(ctx, actorID, targetID)
		}
		if err != nil {
			return nil, notFoundOr("user", targetID.Hex(), "replay follow relation", err)
		}
	}
	c.logger.Warn("follow sets still unsettled", "follower_id", actorID.Hex(), "following_id", targetID.Hex())
	return target, nil
}

func hasID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// notify emits best-effort; a failure never fails the toggle that caused it
func (c *ToggleCoordinator) notify(ctx context.Context, req EmitRequest) {
	if _, err := c.notifier.Emit(ctx, req); err != nil {
		c.logger.Warn("notification emit failed",
			"type", string(req.Type),
			"recipient_id", req.RecipientID.Hex(),
			"source_entity_id", req.SourceEntityID.Hex(),
			"error", err)
	}
}

func likeState(liked bool) string {
	if liked {
		return "liked"
	}
	return "unliked"
}

func followState(following bool) string {
	if following {
		return "following"
	}
	return "unfollowed"
}
