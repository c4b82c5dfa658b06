package backend

import (
	"context"

	"expenses/internal/services"
	"expenses/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the wired service, the store for readiness checks,
// and a cleanup that releases both the pool and the broker connection.
type BackendResult struct {
	Service *services.ExpenseService
	Store   *storage.Repository
	Events  bool
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Driver       storage.Driver
	DSN          string
	MaxOpenConns int

	// AMQP; empty URL disables change events.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}
