package domain

import "time"

// VerificationRequest is produced by the OAuth callback and consumed exactly
// once by the verification job. It only lives in the queue.
type VerificationRequest struct {
	ID                   string    `json:"id"`
	UserID               Snowflake `json:"user_id"`
	Username             string    `json:"username"`
	Discriminator        string    `json:"discriminator"`
	ObservedCommunityIDs []string  `json:"guild_ids"`
	TargetCommunityID    Snowflake `json:"target_guild_id"`
	EnqueuedAt           time.Time `json:"enqueued_at"`
}

// VerificationRecord is the last known verification snapshot for a
// (guild, user) pair. Every attempt overwrites it.
type VerificationRecord struct {
	GuildID              Snowflake `json:"-"`
	UserID               Snowflake `json:"-"`
	Username             string    `json:"username"`
	ObservedCommunityIDs []string  `json:"guild_ids"`
	DecidedAt            time.Time `json:"timestamp"`
}

// Outcome is the terminal state of processing one request
type Outcome string

const (
	OutcomeFlagged              Outcome = "FLAGGED"
	OutcomeVerified             Outcome = "VERIFIED"
	OutcomeCommunityUnavailable Outcome = "COMMUNITY_UNAVAILABLE"
	OutcomeMemberUnavailable    Outcome = "MEMBER_UNAVAILABLE"
	OutcomeConfigUnavailable    Outcome = "CONFIG_UNAVAILABLE"
)
