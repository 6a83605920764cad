package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/anonto42/pulse/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostReport describes what RecomputeCounters found and fixed for one post
type PostReport struct {
	PostID                primitive.ObjectID `json:"post_id"`
	LikeEdges             int                `json:"like_edges"`
	Comments              int                `json:"comments"`
	LikesCorrected        bool               `json:"likes_corrected"`
	CommentsCorrected     bool               `json:"comments_corrected"`
	PreviousLikesCount    int                `json:"previous_likes_count"`
	PreviousCommentsCount int                `json:"previous_comments_count"`
}

// UserReport describes what RecomputeRelations found and fixed for one user
type UserReport struct {
	UserID             primitive.ObjectID `json:"user_id"`
	Followers          int                `json:"followers"`
	Following          int                `json:"following"`
	FollowersCorrected bool               `json:"followers_corrected"`
	FollowingCorrected bool               `json:"following_corrected"`
}

// Summary totals a ReconcileAll run
type Summary struct {
	PostsScanned   int `json:"posts_scanned"`
	PostsCorrected int `json:"posts_corrected"`
	UsersScanned   int `json:"users_scanned"`
	UsersCorrected int `json:"users_corrected"`
}

// Reconciler rebuilds cached counters and membership sets from the ledger.
// Running it when nothing has drifted writes nothing.
type Reconciler struct {
	users    repositories.UserRepository
	posts    repositories.PostRepository
	likes    repositories.LikeRepository
	follows  repositories.FollowRepository
	comments repositories.CommentRepository
	metrics  *Metrics
	logger   *slog.Logger
}

func NewReconciler(
	users repositories.UserRepository,
	posts repositories.PostRepository,
	likes repositories.LikeRepository,
	follows repositories.FollowRepository,
	comments repositories.CommentRepository,
	metrics *Metrics,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		users:    users,
		posts:    posts,
		likes:    likes,
		follows:  follows,
		comments: comments,
		metrics:  metrics,
		logger:   logger,
	}
}

// RecomputeCounters recounts like edges and comments for postID and corrects
// likes_count, liked_by and comments_count where they disagree.
func (r *Reconciler) RecomputeCounters(ctx context.Context, postID primitive.ObjectID) (*PostReport, error) {
	post, err := r.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr("post", postID.Hex(), "load post", err)
	}
	likers, err := r.likes.GetLikerIDs(ctx, postID)
	if err != nil {
		return nil, storageErr("list like edges", err)
	}
	commentCount, err := r.comments.CountByPostID(ctx, postID)
	if err != nil {
		return nil, storageErr("count comments", err)
	}

	report := &PostReport{
		PostID:                postID,
		LikeEdges:             len(likers),
		Comments:              int(commentCount),
		PreviousLikesCount:    post.LikesCount,
		PreviousCommentsCount: post.CommentsCount,
	}

	if post.LikesCount != len(likers) || !sameIDSet(post.LikedBy, likers) {
		if err := r.posts.SetLikeState(ctx, postID, likers); err != nil {
			return nil, notFoundOr("post", postID.Hex(), "rewrite like state", err)
		}
		report.LikesCorrected = true
		r.metrics.ReconcileCorrections.WithLabelValues("likes").Inc()
		r.logger.Info("corrected like state", "post_id", postID.Hex(), "was", post.LikesCount, "now", len(likers))
	}
	if post.CommentsCount != int(commentCount) {
		if err := r.posts.SetCommentsCount(ctx, postID, int(commentCount)); err != nil {
			return nil, notFoundOr("post", postID.Hex(), "rewrite comments count", err)
		}
		report.CommentsCorrected = true
		r.metrics.ReconcileCorrections.WithLabelValues("comments").Inc()
		r.logger.Info("corrected comments count", "post_id", postID.Hex(), "was", post.CommentsCount, "now", commentCount)
	}
	return report, nil
}

// RecomputeRelations rebuilds a user's followers and following sets from follow edges
func (r *Reconciler) RecomputeRelations(ctx context.Context, userID primitive.ObjectID) (*UserReport, error) {
	user, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr("user", userID.Hex(), "load user", err)
	}
	followers, err := r.follows.GetFollowerIDs(ctx, userID)
	if err != nil {
		return nil, storageErr("list followers", err)
	}
	following, err := r.follows.GetFollowingIDs(ctx, userID)
	if err != nil {
		return nil, storageErr("list following", err)
	}

	report := &UserReport{
		UserID:             userID,
		Followers:          len(followers),
		Following:          len(following),
		FollowersCorrected: !sameIDSet(user.Followers, followers),
		FollowingCorrected: !sameIDSet(user.Following, following),
	}
	if !report.FollowersCorrected && !report.FollowingCorrected {
		return report, nil
	}

	if err := r.users.SetRelations(ctx, userID, followers, following); err != nil {
		return nil, notFoundOr("user", userID.Hex(), "rewrite relations", err)
	}
	if report.FollowersCorrected {
		r.metrics.ReconcileCorrections.WithLabelValues("followers").Inc()
	}
	if report.FollowingCorrected {
		r.metrics.ReconcileCorrections.WithLabelValues("following").Inc()
	}
	r.logger.Info("corrected relations", "user_id", userID.Hex(),
		"followers", len(followers), "following", len(following))
	return report, nil
}

// ReconcileAll walks every post and every user. Entities deleted mid-walk are skipped.
func (r *Reconciler) ReconcileAll(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	err := r.posts.ForEachPostID(ctx, func(id primitive.ObjectID) error {
		report, err := r.RecomputeCounters(ctx, id)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		summary.PostsScanned++
		if report.LikesCorrected || report.CommentsCorrected {
			summary.PostsCorrected++
		}
		return nil
	})
	if err != nil {
		return summary, wrapWalkErr("walk posts", err)
	}

	err = r.users.ForEachUserID(ctx, func(id primitive.ObjectID) error {
		report, err := r.RecomputeRelations(ctx, id)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		summary.UsersScanned++
		if report.FollowersCorrected || report.FollowingCorrected {
			summary.UsersCorrected++
		}
		return nil
	})
	if err != nil {
		return summary, wrapWalkErr("walk users", err)
	}
	return summary, nil
}

func isNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// wrapWalkErr leaves typed service errors from the callback untouched
func wrapWalkErr(op string, err error) error {
	switch err.(type) {
	case *NotFoundError, *StorageError:
		return err
	}
	return storageErr(op, err)
}

func sameIDSet(a, b []primitive.ObjectID) bool {
	if len(a) != len(b) {
		return false
	}
	x := sortedHex(a)
	y := sortedHex(b)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func sortedHex(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	sort.Strings(out)
	return out
}
