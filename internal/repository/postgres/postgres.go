package postgres

import (
	"context"
	"database/sql"

	"guildgate/internal/logger"
	"guildgate/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.GuildConfigRepository
	repository.VerificationRecordRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                           db,
		GuildConfigRepository:        NewGuildConfigRepository(db),
		VerificationRecordRepository: NewVerificationRecordRepository(db),
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS guild_configs (
	guild_id            TEXT PRIMARY KEY,
	flag_channel_id     TEXT,
	verified_role_id    TEXT,
	unverified_role_id  TEXT,
	log_channel_id      TEXT,
	blacklisted_servers JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE TABLE IF NOT EXISTS verification_records (
	guild_id   TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	username   TEXT NOT NULL,
	guild_ids  TEXT[] NOT NULL,
	decided_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (guild_id, user_id)
);`

// EnsureSchema creates the tables used by the store if they are missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	logger.DatabaseCall("EnsureSchema", "CREATE TABLE IF NOT EXISTS")
	_, err := s.db.ExecContext(ctx, schema)
	logger.DatabaseResult("EnsureSchema", 0, err)
	return err
}

func nullable(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}
