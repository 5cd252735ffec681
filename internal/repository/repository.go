package repository

import (
	"context"
	"errors"

	"guildgate/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// GuildConfigMutator edits a loaded configuration in memory. Returning an
// error aborts the update and nothing is persisted.
type GuildConfigMutator func(cfg *domain.GuildConfig) error

type GuildConfigRepository interface {
	// GetOrCreate returns the guild's configuration, creating and persisting
	// the all-empty default on first access.
	GetOrCreate(ctx context.Context, guildID domain.Snowflake) (*domain.GuildConfig, error)
	// Update loads (or creates) the configuration, applies mutate and persists
	// the result as one guarded read-modify-write.
	Update(ctx context.Context, guildID domain.Snowflake, mutate GuildConfigMutator) (*domain.GuildConfig, error)
}

type VerificationRecordRepository interface {
	// Record overwrites the snapshot for (record.GuildID, record.UserID)
	Record(ctx context.Context, record *domain.VerificationRecord) error
	Get(ctx context.Context, guildID, userID domain.Snowflake) (*domain.VerificationRecord, error)
}
