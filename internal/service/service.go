package service

import (
	"context"

	"guildgate/internal/domain"
)

type VerificationService interface {
	// Process consumes one queued request. The returned error is non-nil only
	// when the request could not be evaluated at all.
	Process(ctx context.Context, req *domain.VerificationRequest) (domain.Outcome, error)
}

type GuildConfigService interface {
	GetConfig(ctx context.Context, guildID domain.Snowflake) (*domain.GuildConfig, error)
	SetFlagChannel(ctx context.Context, guildID, channelID domain.Snowflake, actor string) (*domain.GuildConfig, error)
	SetLogChannel(ctx context.Context, guildID, channelID domain.Snowflake, actor string) (*domain.GuildConfig, error)
	SetRoles(ctx context.Context, guildID, verifiedRoleID, unverifiedRoleID domain.Snowflake, actor string) (*domain.GuildConfig, error)
	AddBlacklistedServer(ctx context.Context, guildID domain.Snowflake, serverID, label, actor string) (*domain.GuildConfig, error)
	RemoveBlacklistedServer(ctx context.Context, guildID domain.Snowflake, serverID, actor string) (string, error)
}
