package router

import (
	"context"
	"fmt"
	"log"

	"github.com/anonto42/pulse/backend/internal/repositories"
	"github.com/anonto42/pulse/backend/pkg/config"
)

// Stores groups the repositories the services are built from
type Stores struct {
	Users         repositories.UserRepository
	Posts         repositories.PostRepository
	Likes         repositories.LikeRepository
	Follows       repositories.FollowRepository
	Comments      repositories.CommentRepository
	Notifications repositories.NotificationRepository
	Messages      repositories.MessageRepository
}

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// NewStores builds every repository and makes sure their indexes exist.
// The like/follow ledger lives in Postgres when LEDGER_DRIVER=postgres, in MongoDB otherwise.
func NewStores(ctx context.Context, cfg *config.Config, db *config.DB) (*Stores, error) {
	userRepo := repositories.NewMongoUserRepository(db.Database)
	postRepo := repositories.NewMongoPostRepository(db.Database)
	commentRepo := repositories.NewMongoCommentRepository(db.Database)
	notificationRepo := repositories.NewMongoNotificationRepository(db.Database)
	messageRepo := repositories.NewMongoMessageRepository(db.Database)

	stores := &Stores{
		Users:         userRepo,
		Posts:         postRepo,
		Comments:      commentRepo,
		Notifications: notificationRepo,
		Messages:      messageRepo,
	}
	indexed := []indexer{userRepo, postRepo, commentRepo, notificationRepo, messageRepo}

	switch cfg.LedgerDriver {
	case config.LedgerPostgres:
		if err := repositories.AutoMigrateLedger(db.Postgres); err != nil {
			return nil, fmt.Errorf("migrate ledger: %w", err)
		}
		stores.Likes = repositories.NewPostgresLikeRepository(db.Postgres)
		stores.Follows = repositories.NewPostgresFollowRepository(db.Postgres)
		log.Println("PostgreSQL ledger migrated.")
	case config.LedgerMongo:
		likeRepo := repositories.NewMongoLikeRepository(db.Database)
		followRepo := repositories.NewMongoFollowRepository(db.Database)
		stores.Likes = likeRepo
		stores.Follows = followRepo
		indexed = append(indexed, likeRepo, followRepo)
	default:
		return nil, fmt.Errorf("unknown LEDGER_DRIVER %q", cfg.LedgerDriver)
	}

	for _, repo := range indexed {
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
	}
	log.Printf("Repositories ready (ledger: %s).", cfg.LedgerDriver)
	return stores, nil
}
