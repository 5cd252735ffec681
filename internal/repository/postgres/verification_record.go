package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"guildgate/internal/domain"
	"guildgate/internal/logger"
	"guildgate/internal/repository"
)

type verificationRecordRepository struct {
	db *sql.DB
}

func NewVerificationRecordRepository(db *sql.DB) repository.VerificationRecordRepository {
	return &verificationRecordRepository{db: db}
}

func (r *verificationRecordRepository) Record(ctx context.Context, rec *domain.VerificationRecord) error {
	query := `INSERT INTO verification_records (guild_id, user_id, username, guild_ids, decided_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (guild_id, user_id) DO UPDATE
	          SET username = EXCLUDED.username, guild_ids = EXCLUDED.guild_ids, decided_at = EXCLUDED.decided_at`
	guildIDs := rec.ObservedCommunityIDs
	if guildIDs == nil {
		guildIDs = []string{}
	}

	logger.DatabaseCall("Record", "verification_records", "guild_id", rec.GuildID, "user_id", rec.UserID)
	res, err := r.db.ExecContext(ctx, query, rec.GuildID.String(), rec.UserID.String(), rec.Username, pq.Array(guildIDs), rec.DecidedAt)
	if err != nil {
		logger.DatabaseResult("Record", 0, err)
		return err
	}
	rows, _ := res.RowsAffected()
	logger.DatabaseResult("Record", rows, nil)
	return nil
}

func (r *verificationRecordRepository) Get(ctx context.Context, guildID, userID domain.Snowflake) (*domain.VerificationRecord, error) {
	rec := &domain.VerificationRecord{GuildID: guildID, UserID: userID}
	query := `SELECT username, guild_ids, decided_at FROM verification_records WHERE guild_id = $1 AND user_id = $2`
	err := r.db.QueryRowContext(ctx, query, guildID.String(), userID.String()).
		Scan(&rec.Username, pq.Array(&rec.ObservedCommunityIDs), &rec.DecidedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
