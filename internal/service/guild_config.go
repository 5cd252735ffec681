package service

import (
	"context"
	"errors"
	"fmt"

	"guildgate/internal/domain"
	"guildgate/internal/logger"
	"guildgate/internal/platform"
	"guildgate/internal/repository"
)

// ErrNotBlacklisted is returned when removing an id that is not on the blacklist
var ErrNotBlacklisted = errors.New("server not found in blacklist")

const colorChange = 0x00FF00

type guildConfigService struct {
	configRepo repository.GuildConfigRepository
	platform   platform.Client // optional: action log messages
}

// NewGuildConfigService creates the administrative service. client may be nil,
// in which case no action log messages are posted.
func NewGuildConfigService(configRepo repository.GuildConfigRepository, client platform.Client) GuildConfigService {
	return &guildConfigService{configRepo: configRepo, platform: client}
}

func (s *guildConfigService) GetConfig(ctx context.Context, guildID domain.Snowflake) (*domain.GuildConfig, error) {
	return s.configRepo.GetOrCreate(ctx, guildID)
}

func (s *guildConfigService) SetFlagChannel(ctx context.Context, guildID, channelID domain.Snowflake, actor string) (*domain.GuildConfig, error) {
	cfg, err := s.configRepo.Update(ctx, guildID, func(cfg *domain.GuildConfig) error {
		cfg.FlagChannelID = channelID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAction(ctx, cfg, "Flag Channel Set", fmt.Sprintf("%s set the flag channel to <#%s>", actor, channelID), colorChange)
	return cfg, nil
}

func (s *guildConfigService) SetLogChannel(ctx context.Context, guildID, channelID domain.Snowflake, actor string) (*domain.GuildConfig, error) {
	cfg, err := s.configRepo.Update(ctx, guildID, func(cfg *domain.GuildConfig) error {
		cfg.LogChannelID = channelID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAction(ctx, cfg, "Log Channel Set", fmt.Sprintf("%s set the log channel to <#%s>", actor, channelID), colorChange)
	return cfg, nil
}

// SetRoles sets both roles together; the unverified role is the one removed
// on successful verification.
func (s *guildConfigService) SetRoles(ctx context.Context, guildID, verifiedRoleID, unverifiedRoleID domain.Snowflake, actor string) (*domain.GuildConfig, error) {
	if !verifiedRoleID.IsSet() || !unverifiedRoleID.IsSet() {
		return nil, fmt.Errorf("both verified and unverified roles are required")
	}
	cfg, err := s.configRepo.Update(ctx, guildID, func(cfg *domain.GuildConfig) error {
		cfg.VerifiedRoleID = verifiedRoleID
		cfg.UnverifiedRoleID = unverifiedRoleID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAction(ctx, cfg, "Verification Roles Updated",
		fmt.Sprintf("%s set verified role <@&%s> and unverified role <@&%s>", actor, verifiedRoleID, unverifiedRoleID), colorChange)
	return cfg, nil
}

func (s *guildConfigService) AddBlacklistedServer(ctx context.Context, guildID domain.Snowflake, serverID, label, actor string) (*domain.GuildConfig, error) {
	if _, err := domain.ParseSnowflake(serverID); err != nil {
		return nil, fmt.Errorf("invalid server id: %w", err)
	}
	if label == "" {
		label = serverID
	}
	cfg, err := s.configRepo.Update(ctx, guildID, func(cfg *domain.GuildConfig) error {
		cfg.BlacklistedServers[serverID] = label
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAction(ctx, cfg, "Server Blacklisted", fmt.Sprintf("%s added **%s** (`%s`) to the blacklist", actor, label, serverID), colorFlagged)
	return cfg, nil
}

// RemoveBlacklistedServer returns the label of the removed entry
func (s *guildConfigService) RemoveBlacklistedServer(ctx context.Context, guildID domain.Snowflake, serverID, actor string) (string, error) {
	var removed string
	cfg, err := s.configRepo.Update(ctx, guildID, func(cfg *domain.GuildConfig) error {
		label, ok := cfg.BlacklistedServers[serverID]
		if !ok {
			return ErrNotBlacklisted
		}
		delete(cfg.BlacklistedServers, serverID)
		removed = label
		return nil
	})
	if err != nil {
		return "", err
	}
	s.logAction(ctx, cfg, "Server Removed from Blacklist", fmt.Sprintf("%s removed **%s** (`%s`) from the blacklist", actor, removed, serverID), colorChange)
	return removed, nil
}

// logAction posts an administrative change to the guild's log channel. It is
// best-effort: failures are logged only.
func (s *guildConfigService) logAction(ctx context.Context, cfg *domain.GuildConfig, title, description string, color int) {
	logger.Info("Guild config updated", "guild_id", cfg.GuildID, "action", title)
	if s.platform == nil || !cfg.LogChannelID.IsSet() {
		return
	}
	msg := platform.Message{
		Title:       title,
		Description: description,
		Color:       color,
		Footer:      "Security Bot Logs",
	}
	if err := s.platform.SendChannelMessage(ctx, cfg.LogChannelID, msg); err != nil {
		logger.Warn("Failed to post action log", "guild_id", cfg.GuildID, "channel_id", cfg.LogChannelID, "error", err)
	}
}
