package backend

import (
	"fmt"

	"expenses/internal/config"
	"expenses/internal/storage"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	driver := storage.Driver(appConfig.DBDriver)
	if !driver.IsValid() {
		return Config{}, fmt.Errorf("invalid database driver in config: %s", appConfig.DBDriver)
	}

	return Config{
		Driver:       driver,
		DSN:          appConfig.DSN(),
		MaxOpenConns: appConfig.DBMaxOpenConns,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Driver.IsValid() {
		return fmt.Errorf("invalid database driver: %s", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("data source is required for the %s driver", c.Driver)
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}
	return nil
}
