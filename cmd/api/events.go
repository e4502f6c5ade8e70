package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/patient-api/pkg/messaging/redis"
)

// eventsCmd prints patient.updated events as they are published.
func eventsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Follow patient update events on the configured Redis channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			if !cfg.Redis.Enabled() {
				return fmt.Errorf("redis.url is not configured")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			broker, err := redis.NewRedisBroker(ctx, redis.Config{
				URL:        cfg.Redis.URL,
				MaxRetries: cfg.Redis.MaxRetries,
				PoolSize:   cfg.Redis.PoolSize,
			}, &logger)
			if err != nil {
				return err
			}
			defer broker.Close()

			messages, err := broker.Subscribe(ctx, cfg.Redis.Channel)
			if err != nil {
				return err
			}
			logger.Info().Str("channel", cfg.Redis.Channel).Msg("Following events")

			out := cmd.OutOrStdout()
			for msg := range messages {
				fmt.Fprintln(out, string(msg))
			}
			if err := ctx.Err(); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
}
