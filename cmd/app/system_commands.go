package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	"github.com/allisson/leasemq/cmd/app/commands"
	"github.com/allisson/leasemq/internal/app"
	"github.com/allisson/leasemq/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP API, the metrics server and the reclaimer",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				gin.SetMode(cfg.GetGinMode())

				container := app.NewContainer(cfg)
				logger := container.Logger()
				defer commands.CloseContainer(container, logger)

				logger.Info("starting server", slog.String("version", version))

				server, err := container.HTTPServer(ctx)
				if err != nil {
					return fmt.Errorf("failed to initialize HTTP server: %w", err)
				}
				services := []commands.Service{server}

				if cfg.MetricsEnabled {
					metricsServer, err := container.MetricsServer()
					if err != nil {
						return fmt.Errorf("failed to initialize metrics server: %w", err)
					}
					services = append(services, metricsServer)
				}

				var reclaimer commands.Starter
				if cfg.ReclaimerEnabled {
					reclaimerUseCase, err := container.ReclaimerUseCase()
					if err != nil {
						return fmt.Errorf("failed to initialize reclaimer: %w", err)
					}
					reclaimer = reclaimerUseCase
				}

				return commands.RunServer(ctx, logger, services, reclaimer, cfg.DBConnMaxLifetime)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
	}
}
