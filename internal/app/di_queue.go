package app

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	messageHTTP "github.com/allisson/leasemq/internal/message/http"
	messageRepository "github.com/allisson/leasemq/internal/message/repository"
	messageUseCase "github.com/allisson/leasemq/internal/message/usecase"
	"github.com/allisson/leasemq/internal/notifier"
	"github.com/allisson/leasemq/internal/worker"
)

// memoryBufferSize is the per-subscriber buffer of the in-process notifier.
const memoryBufferSize = 256

// RedisClient returns the redis client used by the redis notifier.
func (c *Container) RedisClient() redis.UniversalClient {
	c.redisClientInit.Do(func() {
		c.redisClient = redis.NewClient(&redis.Options{
			Addr:     c.config.RedisAddr,
			Password: c.config.RedisPassword,
			DB:       c.config.RedisDB,
		})
	})
	return c.redisClient
}

// Notifier returns the wake-up signal publisher selected by configuration.
func (c *Container) Notifier() (notifier.Notifier, error) {
	var err error
	c.notifierInit.Do(func() {
		c.notifier, err = c.initNotifier()
		if err != nil {
			c.initErrors["notifier"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["notifier"]; exists {
		return nil, storedErr
	}
	return c.notifier, nil
}

// Listener returns the wake-up signal subscriber matching the configured notifier.
func (c *Container) Listener() (notifier.Listener, error) {
	var err error
	c.listenerInit.Do(func() {
		c.listener, err = c.initListener()
		if err != nil {
			c.initErrors["listener"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["listener"]; exists {
		return nil, storedErr
	}
	return c.listener, nil
}

// MessageRepository returns the message store for the configured database driver.
func (c *Container) MessageRepository() (messageUseCase.MessageRepository, error) {
	var err error
	c.messageRepositoryInit.Do(func() {
		c.messageRepository, err = c.initMessageRepository()
		if err != nil {
			c.initErrors["messageRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["messageRepository"]; exists {
		return nil, storedErr
	}
	return c.messageRepository, nil
}

// ArchiveRepository returns the archive store for the configured database driver.
func (c *Container) ArchiveRepository() (messageUseCase.ArchiveRepository, error) {
	var err error
	c.archiveRepositoryInit.Do(func() {
		c.archiveRepository, err = c.initArchiveRepository()
		if err != nil {
			c.initErrors["archiveRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["archiveRepository"]; exists {
		return nil, storedErr
	}
	return c.archiveRepository, nil
}

// PublishUseCase returns the publish use case.
func (c *Container) PublishUseCase() (messageUseCase.PublishUseCase, error) {
	var err error
	c.publishUseCaseInit.Do(func() {
		c.publishUseCase, err = c.initPublishUseCase()
		if err != nil {
			c.initErrors["publishUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["publishUseCase"]; exists {
		return nil, storedErr
	}
	return c.publishUseCase, nil
}

// LeaseUseCase returns the lease use case.
func (c *Container) LeaseUseCase() (messageUseCase.LeaseUseCase, error) {
	var err error
	c.leaseUseCaseInit.Do(func() {
		c.leaseUseCase, err = c.initLeaseUseCase()
		if err != nil {
			c.initErrors["leaseUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["leaseUseCase"]; exists {
		return nil, storedErr
	}
	return c.leaseUseCase, nil
}

// ReclaimerUseCase returns the reclaimer use case.
func (c *Container) ReclaimerUseCase() (messageUseCase.ReclaimerUseCase, error) {
	var err error
	c.reclaimerUseCaseInit.Do(func() {
		c.reclaimerUseCase, err = c.initReclaimerUseCase()
		if err != nil {
			c.initErrors["reclaimerUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["reclaimerUseCase"]; exists {
		return nil, storedErr
	}
	return c.reclaimerUseCase, nil
}

// AdminUseCase returns the admin use case.
func (c *Container) AdminUseCase() (messageUseCase.AdminUseCase, error) {
	var err error
	c.adminUseCaseInit.Do(func() {
		c.adminUseCase, err = c.initAdminUseCase()
		if err != nil {
			c.initErrors["adminUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["adminUseCase"]; exists {
		return nil, storedErr
	}
	return c.adminUseCase, nil
}

// MessageHandler returns the HTTP handler for messages and leases.
func (c *Container) MessageHandler() (*messageHTTP.MessageHandler, error) {
	var err error
	c.messageHandlerInit.Do(func() {
		c.messageHandler, err = c.initMessageHandler()
		if err != nil {
			c.initErrors["messageHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["messageHandler"]; exists {
		return nil, storedErr
	}
	return c.messageHandler, nil
}

// ArchiveHandler returns the HTTP handler for the archive and stats.
func (c *Container) ArchiveHandler() (*messageHTTP.ArchiveHandler, error) {
	var err error
	c.archiveHandlerInit.Do(func() {
		c.archiveHandler, err = c.initArchiveHandler()
		if err != nil {
			c.initErrors["archiveHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["archiveHandler"]; exists {
		return nil, storedErr
	}
	return c.archiveHandler, nil
}

// Worker returns the queue worker running the instruction handler.
func (c *Container) Worker() (*worker.Worker, error) {
	var err error
	c.workerInit.Do(func() {
		c.worker, err = c.initWorker()
		if err != nil {
			c.initErrors["worker"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["worker"]; exists {
		return nil, storedErr
	}
	return c.worker, nil
}

func (c *Container) initNotifier() (notifier.Notifier, error) {
	var n notifier.Notifier
	switch driver := c.config.GetNotifierDriver(); driver {
	case "postgres":
		if c.config.DBDriver != "postgres" {
			return nil, fmt.Errorf("postgres notifier requires the postgres database driver")
		}
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for notifier: %w", err)
		}
		n = notifier.NewPostgresNotifier(db)
	case "redis":
		n = notifier.NewRedisNotifier(c.RedisClient(), notifier.DefaultRedisPrefix, c.Logger())
	case "memory":
		n = notifier.NewMemory(memoryBufferSize)
	default:
		return nil, fmt.Errorf("unsupported notifier driver: %s", driver)
	}

	if c.config.NotifierDropRate > 0 {
		// Insert hints from database triggers bypass the wrapper, so dropping would only
		// thin out the stale sweep's re-notifies.
		if notifier.EmitsOnInsert(n) {
			return nil, fmt.Errorf("notifier drop rate is not supported with the %s notifier", c.config.GetNotifierDriver())
		}
		n = notifier.NewDropping(n, c.config.NotifierDropRate)
	}
	return n, nil
}

func (c *Container) initListener() (notifier.Listener, error) {
	switch driver := c.config.GetNotifierDriver(); driver {
	case "postgres":
		return notifier.NewPostgresListener(
			c.config.DBConnectionString,
			c.config.ListenerMinReconnect,
			c.config.ListenerMaxReconnect,
			c.Logger(),
		), nil
	case "redis":
		return notifier.NewRedisListener(c.RedisClient(), notifier.DefaultRedisPrefix, c.Logger()), nil
	case "memory":
		n, err := c.Notifier()
		if err != nil {
			return nil, fmt.Errorf("failed to get notifier for listener: %w", err)
		}
		if dropping, ok := n.(*notifier.Dropping); ok {
			n = dropping.Unwrap()
		}
		memory, ok := n.(*notifier.Memory)
		if !ok {
			return nil, fmt.Errorf("memory listener requires the memory notifier")
		}
		return memory, nil
	default:
		return nil, fmt.Errorf("unsupported notifier driver: %s", driver)
	}
}

func (c *Container) initMessageRepository() (messageUseCase.MessageRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for message repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return messageRepository.NewPostgreSQLMessageRepository(db), nil
	case "mysql":
		return messageRepository.NewMySQLMessageRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initArchiveRepository() (messageUseCase.ArchiveRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for archive repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return messageRepository.NewPostgreSQLArchiveRepository(db), nil
	case "mysql":
		return messageRepository.NewMySQLArchiveRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initPublishUseCase() (messageUseCase.PublishUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for publish use case: %w", err)
	}
	messageRepo, err := c.MessageRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get message repository for publish use case: %w", err)
	}
	n, err := c.Notifier()
	if err != nil {
		return nil, fmt.Errorf("failed to get notifier for publish use case: %w", err)
	}

	useCase := messageUseCase.NewPublishUseCase(txManager, messageRepo, n, c.Logger())

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for publish use case: %w", err)
		}
		useCase = messageUseCase.NewPublishUseCaseWithMetrics(useCase, businessMetrics)
	}
	return useCase, nil
}

func (c *Container) initLeaseUseCase() (messageUseCase.LeaseUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for lease use case: %w", err)
	}
	messageRepo, err := c.MessageRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get message repository for lease use case: %w", err)
	}
	archiveRepo, err := c.ArchiveRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get archive repository for lease use case: %w", err)
	}
	n, err := c.Notifier()
	if err != nil {
		return nil, fmt.Errorf("failed to get notifier for lease use case: %w", err)
	}

	useCase := messageUseCase.NewLeaseUseCase(txManager, messageRepo, archiveRepo, n, c.Logger())

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for lease use case: %w", err)
		}
		useCase = messageUseCase.NewLeaseUseCaseWithMetrics(useCase, businessMetrics)
	}
	return useCase, nil
}

func (c *Container) initReclaimerUseCase() (messageUseCase.ReclaimerUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for reclaimer use case: %w", err)
	}
	messageRepo, err := c.MessageRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get message repository for reclaimer use case: %w", err)
	}
	archiveRepo, err := c.ArchiveRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get archive repository for reclaimer use case: %w", err)
	}
	n, err := c.Notifier()
	if err != nil {
		return nil, fmt.Errorf("failed to get notifier for reclaimer use case: %w", err)
	}

	useCase := messageUseCase.NewReclaimerUseCase(
		messageUseCase.ReclaimerConfig{
			LeaseSweepInterval: c.config.ReclaimerLeaseSweepInterval,
			StaleSweepInterval: c.config.ReclaimerStaleSweepInterval,
			StaleThreshold:     c.config.ReclaimerStaleThreshold,
			BatchSize:          c.config.ReclaimerBatchSize,
		},
		txManager,
		messageRepo,
		archiveRepo,
		n,
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for reclaimer use case: %w", err)
		}
		useCase = messageUseCase.NewReclaimerUseCaseWithMetrics(useCase, businessMetrics)
	}
	return useCase, nil
}

func (c *Container) initAdminUseCase() (messageUseCase.AdminUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for admin use case: %w", err)
	}
	messageRepo, err := c.MessageRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get message repository for admin use case: %w", err)
	}
	archiveRepo, err := c.ArchiveRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get archive repository for admin use case: %w", err)
	}
	return messageUseCase.NewAdminUseCase(txManager, messageRepo, archiveRepo), nil
}

func (c *Container) initMessageHandler() (*messageHTTP.MessageHandler, error) {
	publishUseCase, err := c.PublishUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get publish use case for message handler: %w", err)
	}
	leaseUseCase, err := c.LeaseUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get lease use case for message handler: %w", err)
	}
	adminUseCase, err := c.AdminUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get admin use case for message handler: %w", err)
	}
	return messageHTTP.NewMessageHandler(publishUseCase, leaseUseCase, adminUseCase, c.Logger()), nil
}

func (c *Container) initArchiveHandler() (*messageHTTP.ArchiveHandler, error) {
	adminUseCase, err := c.AdminUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get admin use case for archive handler: %w", err)
	}
	return messageHTTP.NewArchiveHandler(adminUseCase, c.Logger()), nil
}

func (c *Container) initWorker() (*worker.Worker, error) {
	listener, err := c.Listener()
	if err != nil {
		return nil, fmt.Errorf("failed to get listener for worker: %w", err)
	}
	messageRepo, err := c.MessageRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get message repository for worker: %w", err)
	}
	leaseUseCase, err := c.LeaseUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get lease use case for worker: %w", err)
	}

	return worker.New(
		worker.Config{
			ID:            c.config.WorkerID,
			Concurrency:   c.config.WorkerConcurrency,
			LeaseDuration: c.config.LeaseDuration,
			SafetyMargin:  c.config.LeaseSafetyMargin,
			RescanLimit:   c.config.WorkerRescanLimit,
		},
		listener,
		messageRepo,
		leaseUseCase,
		worker.NewInstructionHandler(),
		c.Logger(),
	), nil
}
