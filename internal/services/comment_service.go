package services

import (
	"context"
	"log/slog"

	"github.com/anonto42/pulse/backend/internal/models"
	"github.com/anonto42/pulse/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CommentService writes comments and keeps the post's comments_count in step
type CommentService struct {
	comments repositories.CommentRepository
	posts    repositories.PostRepository
	users    repositories.UserRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewCommentService(comments repositories.CommentRepository, posts repositories.PostRepository, users repositories.UserRepository, notifier Notifier, logger *slog.Logger) *CommentService {
	return &CommentService{comments: comments, posts: posts, users: users, notifier: notifier, logger: logger}
}

// AddComment stores the comment, increments comments_count and notifies the post author
func (s *CommentService) AddComment(ctx context.Context, actorID, postID primitive.ObjectID, content string) (*models.Comment, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr("post", postID.Hex(), "load post", err)
	}
	actor, err := s.users.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, notFoundOr("user", actorID.Hex(), "load actor", err)
	}

	comment := &models.Comment{PostID: post.ID, AuthorID: actor.ID, Content: content}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, storageErr("create comment", err)
	}
	if err := s.posts.IncrementCommentsCount(ctx, post.ID); err != nil {
		return nil, notFoundOr("post", post.ID.Hex(), "increment comments", err)
	}

	if post.AuthorID != actor.ID {
		_, err := s.notifier.Emit(ctx, EmitRequest{
			RecipientID:    post.AuthorID,
			ActorID:        actor.ID,
			Type:           models.NotificationComment,
			SourceEntityID: comment.ID,
			TargetID:       post.ID,
			Message:        actor.Username + " commented on your post.",
		})
		if err != nil {
			s.logger.Warn("notification emit failed", "type", "comment", "comment_id", comment.ID.Hex(), "error", err)
		}
	}
	return comment, nil
}

func (s *CommentService) ListComments(ctx context.Context, postID primitive.ObjectID) ([]models.Comment, error) {
	if _, err := s.posts.GetPostByID(ctx, postID); err != nil {
		return nil, notFoundOr("post", postID.Hex(), "load post", err)
	}
	comments, err := s.comments.GetCommentsByPostID(ctx, postID)
	if err != nil {
		return nil, storageErr("list comments", err)
	}
	return comments, nil
}

// DeleteComment removes the actor's own comment and decrements comments_count, never below zero
func (s *CommentService) DeleteComment(ctx context.Context, actorID, commentID primitive.ObjectID) error {
	comment, err := s.comments.GetCommentByID(ctx, commentID)
	if err != nil {
		return notFoundOr("comment", commentID.Hex(), "load comment", err)
	}
	if comment.AuthorID != actorID {
		return &ForbiddenError{Entity: "comment"}
	}

	removed, err := s.comments.DeleteComment(ctx, commentID)
	if err != nil {
		return storageErr("delete comment", err)
	}
	if !removed {
		return nil
	}
	if err := s.posts.DecrementCommentsCount(ctx, comment.PostID); err != nil {
		return storageErr("decrement comments", err)
	}
	return nil
}
