package jsonfile

import (
	"context"

	"guildgate/internal/domain"
	"guildgate/internal/repository"
)

type verificationRecordRepository struct {
	doc *document
}

func NewVerificationRecordRepository(path string) repository.VerificationRecordRepository {
	return &verificationRecordRepository{doc: newDocument(path)}
}

// auditDocument maps guild id -> user id -> snapshot
type auditDocument map[string]map[string]*domain.VerificationRecord

func (r *verificationRecordRepository) Record(ctx context.Context, rec *domain.VerificationRecord) error {
	unlock, err := r.doc.lock()
	if err != nil {
		return err
	}
	defer unlock()

	records := auditDocument{}
	if err := r.doc.load(&records); err != nil {
		return err
	}
	users, ok := records[rec.GuildID.String()]
	if !ok || users == nil {
		users = map[string]*domain.VerificationRecord{}
		records[rec.GuildID.String()] = users
	}
	snapshot := *rec
	if snapshot.ObservedCommunityIDs == nil {
		snapshot.ObservedCommunityIDs = []string{}
	}
	users[rec.UserID.String()] = &snapshot

	return r.doc.save(records)
}

func (r *verificationRecordRepository) Get(ctx context.Context, guildID, userID domain.Snowflake) (*domain.VerificationRecord, error) {
	unlock, err := r.doc.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	records := auditDocument{}
	if err := r.doc.load(&records); err != nil {
		return nil, err
	}
	rec, ok := records[guildID.String()][userID.String()]
	if !ok || rec == nil {
		return nil, repository.ErrNotFound
	}
	rec.GuildID = guildID
	rec.UserID = userID
	return rec, nil
}
