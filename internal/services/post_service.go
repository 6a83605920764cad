package services

import (
	"context"
	"log/slog"

	"github.com/anonto42/pulse/backend/internal/models"
	"github.com/anonto42/pulse/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PostService struct {
	posts    repositories.PostRepository
	users    repositories.UserRepository
	likes    repositories.LikeRepository
	comments repositories.CommentRepository
	logger   *slog.Logger
}

func NewPostService(posts repositories.PostRepository, users repositories.UserRepository, likes repositories.LikeRepository, comments repositories.CommentRepository, logger *slog.Logger) *PostService {
	return &PostService{posts: posts, users: users, likes: likes, comments: comments, logger: logger}
}

func (s *PostService) CreatePost(ctx context.Context, authorID primitive.ObjectID, req models.CreatePostRequest) (*models.Post, error) {
	if _, err := s.users.GetUserByID(ctx, authorID); err != nil {
		return nil, notFoundOr("user", authorID.Hex(), "load author", err)
	}
	post := &models.Post{AuthorID: authorID, Content: req.Content, ImageRef: req.ImageRef}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, storageErr("create post", err)
	}
	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, postID primitive.ObjectID) (*models.Post, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr("post", postID.Hex(), "load post", err)
	}
	return post, nil
}

func (s *PostService) ListByAuthor(ctx context.Context, username string, skip, limit int64) ([]models.Post, error) {
	author, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, notFoundOr("user", username, "load author", err)
	}
	posts, err := s.posts.GetPostsByAuthor(ctx, author.ID, skip, limit)
	if err != nil {
		return nil, storageErr("list posts", err)
	}
	return posts, nil
}

// Feed returns posts by the users userID follows and by userID itself, newest first
func (s *PostService) Feed(ctx context.Context, userID primitive.ObjectID, skip, limit int64) ([]models.Post, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr("user", userID.Hex(), "load user", err)
	}
	authors := append([]primitive.ObjectID{user.ID}, user.Following...)
	posts, err := s.posts.GetFeed(ctx, authors, skip, limit)
	if err != nil {
		return nil, storageErr("load feed", err)
	}
	return posts, nil
}

func (s *PostService) UpdatePost(ctx context.Context, actorID, postID primitive.ObjectID, content string) (*models.Post, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr("post", postID.Hex(), "load post", err)
	}
	if post.AuthorID != actorID {
		return nil, &ForbiddenError{Entity: "post"}
	}
	updated, err := s.posts.UpdateContent(ctx, postID, content)
	if err != nil {
		return nil, notFoundOr("post", postID.Hex(), "update post", err)
	}
	return updated, nil
}

// DeletePost removes the actor's own post together with its like edges and comments
func (s *PostService) DeletePost(ctx context.Context, actorID, postID primitive.ObjectID) error {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return notFoundOr("post", postID.Hex(), "load post", err)
	}
	if post.AuthorID != actorID {
		return &ForbiddenError{Entity: "post"}
	}
	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return notFoundOr("post", postID.Hex(), "delete post", err)
	}
	if err := s.likes.DeleteLikesByPostID(ctx, postID); err != nil {
		s.logger.Error("orphaned like edges", "post_id", postID.Hex(), "error", err)
		return storageErr("delete like edges", err)
	}
	if err := s.comments.DeleteCommentsByPostID(ctx, postID); err != nil {
		s.logger.Error("orphaned comments", "post_id", postID.Hex(), "error", err)
		return storageErr("delete comments", err)
	}
	return nil
}
