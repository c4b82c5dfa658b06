package backend

import (
	"context"
	"fmt"

	"expenses/internal/amqp"
	"expenses/internal/log"
	"expenses/internal/services"
	"expenses/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	dial   func(url, exchange, queue string) (*amqp.Client, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentApp),
		dial:   amqp.NewClient,
	}
}

// CreateBackend opens the store and, when configured, the event publisher.
// A broker that cannot be reached is logged and the backend runs without events.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := storage.Open(ctx, storage.Options{
		Driver:       config.Driver,
		DSN:          config.DSN,
		MaxOpenConns: config.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", config.Driver, err)
	}

	var (
		publisher  services.EventPublisher
		amqpClient *amqp.Client
	)
	if config.AMQPURL != "" {
		amqpClient, err = f.dial(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
			amqpClient = nil
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.Info("Initialized expenses backend",
		"driver", config.Driver,
		"events_enabled", publisher != nil)

	cleanup := func() error {
		var firstErr error
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				firstErr = fmt.Errorf("close AMQP client: %w", err)
			}
		}
		if err := repo.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close repository: %w", err)
		}
		return firstErr
	}

	return &BackendResult{
		Service: services.NewExpenseService(repo, publisher),
		Store:   repo,
		Events:  publisher != nil,
		Cleanup: cleanup,
	}, nil
}
