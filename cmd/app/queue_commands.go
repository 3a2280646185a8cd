package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/leasemq/cmd/app/commands"
	"github.com/allisson/leasemq/internal/app"
	"github.com/allisson/leasemq/internal/config"
)

func getQueueCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "worker",
			Usage: "Process messages as they are published",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "concurrency",
					Aliases: []string{"c"},
					Usage:   "Maximum messages processed at the same time (overrides WORKER_CONCURRENCY)",
				},
				&cli.BoolFlag{
					Name:  "with-reclaimer",
					Value: false,
					Usage: "Run the reclaimer sweeps in the worker process",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				if concurrency := cmd.Int("concurrency"); concurrency > 0 {
					cfg.WorkerConcurrency = int(concurrency)
				}

				container := app.NewContainer(cfg)
				logger := container.Logger()
				defer commands.CloseContainer(container, logger)

				worker, err := container.Worker()
				if err != nil {
					return err
				}

				var reclaimer commands.Starter
				if cmd.Bool("with-reclaimer") {
					reclaimerUseCase, err := container.ReclaimerUseCase()
					if err != nil {
						return err
					}
					reclaimer = reclaimerUseCase
				}

				return commands.RunWorker(ctx, logger, worker, reclaimer)
			},
		},
		{
			Name:  "reclaimer",
			Usage: "Archive expired leases and re-notify stale messages",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "once",
					Value: false,
					Usage: "Run a single pass of each sweep and exit",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				logger := container.Logger()
				defer commands.CloseContainer(container, logger)

				reclaimerUseCase, err := container.ReclaimerUseCase()
				if err != nil {
					return err
				}

				return commands.RunReclaimer(
					ctx,
					reclaimerUseCase,
					logger,
					commands.DefaultIO().Writer,
					cmd.Bool("once"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "publish",
			Usage: "Publish a message",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "payload",
					Aliases:  []string{"p"},
					Required: true,
					Usage:    `JSON payload, e.g. '["fail"]'`,
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				logger := container.Logger()
				defer commands.CloseContainer(container, logger)

				publishUseCase, err := container.PublishUseCase()
				if err != nil {
					return err
				}

				return commands.RunPublish(
					ctx,
					publishUseCase,
					logger,
					commands.DefaultIO().Writer,
					cmd.String("payload"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "clear",
			Usage: "Delete every message and archive record",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:    "yes",
					Aliases: []string{"y"},
					Value:   false,
					Usage:   "Skip the confirmation prompt",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				logger := container.Logger()
				defer commands.CloseContainer(container, logger)

				adminUseCase, err := container.AdminUseCase()
				if err != nil {
					return err
				}

				return commands.RunClear(
					ctx,
					adminUseCase,
					logger,
					commands.DefaultIO(),
					cmd.Bool("yes"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "archive",
			Usage: "List archive records",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "outcome",
					Aliases: []string{"o"},
					Usage:   "Only records with this outcome (success, failed, rejected, lease_expired)",
				},
				&cli.IntFlag{
					Name:  "offset",
					Value: 0,
					Usage: "Number of records to skip",
				},
				&cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"l"},
					Value:   50,
					Usage:   "Maximum number of records to list",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				logger := container.Logger()
				defer commands.CloseContainer(container, logger)

				adminUseCase, err := container.AdminUseCase()
				if err != nil {
					return err
				}

				return commands.RunListArchive(
					ctx,
					adminUseCase,
					commands.DefaultIO().Writer,
					cmd.String("outcome"),
					int(cmd.Int("offset")),
					int(cmd.Int("limit")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "stats",
			Usage: "Show message counts per state and archive counts per outcome",
			Flags: []cli.Flag{
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				logger := container.Logger()
				defer commands.CloseContainer(container, logger)

				adminUseCase, err := container.AdminUseCase()
				if err != nil {
					return err
				}

				return commands.RunStats(ctx, adminUseCase, commands.DefaultIO().Writer, cmd.String("format"))
			},
		},
	}
}
