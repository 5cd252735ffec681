// Package bootstrap builds the backends selected by configuration. Both the
// server and the admin CLI open storage the same way.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"guildgate/internal/config"
	"guildgate/internal/identity"
	"guildgate/internal/logger"
	"guildgate/internal/queue"
	"guildgate/internal/repository"
	"guildgate/internal/repository/jsonfile"
	"guildgate/internal/repository/postgres"
	"guildgate/internal/security"
)

// Stores groups the repositories used by the services
type Stores struct {
	GuildConfigs repository.GuildConfigRepository
	Records      repository.VerificationRecordRepository
	close        func() error
}

// Close releases the underlying database handle, if any
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStores opens the configured storage backend
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Storage.Type {
	case config.StorageFile:
		logger.Info("Using file storage", "config_path", cfg.Storage.ConfigPath, "audit_path", cfg.Storage.AuditPath)
		store, err := jsonfile.NewStore(cfg.Storage.ConfigPath, cfg.Storage.AuditPath)
		if err != nil {
			return nil, err
		}
		return &Stores{GuildConfigs: store.GuildConfigRepository, Records: store.VerificationRecordRepository}, nil

	case config.StoragePostgres:
		logger.Info("Using postgres storage", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
		db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		logger.Info("Database connection established")

		store := postgres.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
		return &Stores{GuildConfigs: store.GuildConfigRepository, Records: store.VerificationRecordRepository, close: db.Close}, nil
	}
	return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
}

// OpenQueue opens the configured verification queue
func OpenQueue(cfg *config.Config) (queue.Queue, func() error, error) {
	switch cfg.Queue.Type {
	case config.QueueMemory:
		logger.Info("Using in-memory verification queue")
		return queue.NewMemoryQueue(), func() error { return nil }, nil
	case config.QueueRedis:
		logger.Info("Using redis verification queue", "key", cfg.Queue.Key)
		q, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Key)
		if err != nil {
			return nil, nil, err
		}
		return q, q.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported queue type: %s", cfg.Queue.Type)
}

// StateCodec returns the signed codec when a state secret is configured
func StateCodec(cfg *config.Config) security.StateCodec {
	if cfg.OAuth.StateSecret == "" {
		return security.NewPlainStateCodec()
	}
	return security.NewSignedStateCodec(cfg.OAuth.StateSecret, cfg.StateTTL())
}

// IdentityProvider builds the OAuth2 identity client from configuration
func IdentityProvider(cfg *config.Config) identity.Provider {
	return identity.NewClient(identity.Config{
		ClientID:     cfg.Discord.ClientID,
		ClientSecret: cfg.Discord.ClientSecret,
		RedirectURI:  cfg.Discord.RedirectURI,
		APIBaseURL:   cfg.Discord.APIBaseURL,
		Scopes:       cfg.Discord.Scopes,
	}, nil)
}
