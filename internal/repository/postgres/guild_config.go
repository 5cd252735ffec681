package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"guildgate/internal/domain"
	"guildgate/internal/logger"
	"guildgate/internal/repository"
)

type guildConfigRepository struct {
	db *sql.DB
}

func NewGuildConfigRepository(db *sql.DB) repository.GuildConfigRepository {
	return &guildConfigRepository{db: db}
}

const (
	insertDefaultGuildConfig = `INSERT INTO guild_configs (guild_id, blacklisted_servers) VALUES ($1, '{}'::jsonb)
	          ON CONFLICT (guild_id) DO NOTHING`
	selectGuildConfig = `SELECT guild_id, flag_channel_id, verified_role_id, unverified_role_id, log_channel_id, blacklisted_servers
	          FROM guild_configs WHERE guild_id = $1`
	updateGuildConfig = `UPDATE guild_configs SET flag_channel_id = $1, verified_role_id = $2, unverified_role_id = $3,
	          log_channel_id = $4, blacklisted_servers = $5 WHERE guild_id = $6`
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *guildConfigRepository) GetOrCreate(ctx context.Context, guildID domain.Snowflake) (*domain.GuildConfig, error) {
	logger.DatabaseCall("GetOrCreate", "guild_configs", "guild_id", guildID)
	if _, err := r.db.ExecContext(ctx, insertDefaultGuildConfig, guildID.String()); err != nil {
		logger.DatabaseResult("GetOrCreate", 0, err, "guild_id", guildID)
		return nil, err
	}
	cfg, err := scanGuildConfig(ctx, r.db, selectGuildConfig, guildID)
	logger.DatabaseResult("GetOrCreate", 1, err, "guild_id", guildID)
	return cfg, err
}

func (r *guildConfigRepository) Update(ctx context.Context, guildID domain.Snowflake, mutate repository.GuildConfigMutator) (*domain.GuildConfig, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insertDefaultGuildConfig, guildID.String()); err != nil {
		return nil, err
	}
	// Row lock serialises concurrent administrative mutations on one guild
	cfg, err := scanGuildConfig(ctx, tx, selectGuildConfig+" FOR UPDATE", guildID)
	if err != nil {
		return nil, err
	}

	if err := mutate(cfg); err != nil {
		return nil, err
	}

	blacklist, err := json.Marshal(cfg.BlacklistedServers)
	if err != nil {
		return nil, fmt.Errorf("encode blacklist: %w", err)
	}
	logger.DatabaseCall("Update", "guild_configs", "guild_id", guildID)
	res, err := tx.ExecContext(ctx, updateGuildConfig,
		nullable(cfg.FlagChannelID.String()),
		nullable(cfg.VerifiedRoleID.String()),
		nullable(cfg.UnverifiedRoleID.String()),
		nullable(cfg.LogChannelID.String()),
		blacklist,
		guildID.String(),
	)
	if err != nil {
		logger.DatabaseResult("Update", 0, err, "guild_id", guildID)
		return nil, err
	}
	rows, _ := res.RowsAffected()
	logger.DatabaseResult("Update", rows, nil, "guild_id", guildID)

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func scanGuildConfig(ctx context.Context, q queryer, query string, guildID domain.Snowflake) (*domain.GuildConfig, error) {
	var (
		id         string
		flag       sql.NullString
		verified   sql.NullString
		unverified sql.NullString
		logChannel sql.NullString
		blacklist  []byte
	)
	err := q.QueryRowContext(ctx, query, guildID.String()).
		Scan(&id, &flag, &verified, &unverified, &logChannel, &blacklist)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg := domain.NewGuildConfig(domain.Snowflake(id))
	cfg.FlagChannelID = domain.Snowflake(flag.String)
	cfg.VerifiedRoleID = domain.Snowflake(verified.String)
	cfg.UnverifiedRoleID = domain.Snowflake(unverified.String)
	cfg.LogChannelID = domain.Snowflake(logChannel.String)
	if len(blacklist) > 0 {
		if err := json.Unmarshal(blacklist, &cfg.BlacklistedServers); err != nil {
			return nil, fmt.Errorf("decode blacklist for guild %s: %w", id, err)
		}
	}
	if cfg.BlacklistedServers == nil {
		cfg.BlacklistedServers = map[string]string{}
	}
	return cfg, nil
}
