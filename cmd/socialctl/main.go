// Package main provides socialctl, the maintenance CLI for the pulse backend.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anonto42/pulse/backend/internal/router"
	"github.com/anonto42/pulse/backend/internal/services"
	"github.com/anonto42/pulse/backend/pkg/config"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	logLevel string
	timeout  time.Duration
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "socialctl",
		Short:         "Maintenance tasks for the pulse backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(opts.logLevel)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Abort after this long")

	cmd.AddCommand(reconcileCmd(opts))
	return cmd
}

func reconcileCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild cached counters and follower sets from the ledger",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "post <post-id>",
		Short: "Recompute likes_count, liked_by and comments_count for one post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := primitive.ObjectIDFromHex(args[0])
			if err != nil {
				return fmt.Errorf("invalid post id %q", args[0])
			}
			return withReconciler(opts, func(ctx context.Context, r *services.Reconciler) (any, error) {
				return r.RecomputeCounters(ctx, id)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "user <user-id>",
		Short: "Recompute followers and following for one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := primitive.ObjectIDFromHex(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return withReconciler(opts, func(ctx context.Context, r *services.Reconciler) (any, error) {
				return r.RecomputeRelations(ctx, id)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Walk every post and user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReconciler(opts, func(ctx context.Context, r *services.Reconciler) (any, error) {
				return r.ReconcileAll(ctx)
			})
		},
	})

	return cmd
}

func withReconciler(opts *options, fn func(context.Context, *services.Reconciler) (any, error)) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	cfg := config.Load()
	db, err := config.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.CloseDB()

	reconciler, err := router.NewReconciler(ctx, cfg, db)
	if err != nil {
		return err
	}

	result, err := fn(ctx, reconciler)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func configureLogging(logLevel string) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
