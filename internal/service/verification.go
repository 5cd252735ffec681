package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"guildgate/internal/domain"
	"guildgate/internal/logger"
	"guildgate/internal/platform"
	"guildgate/internal/repository"
)

const (
	colorFlagged  = 0xFF4444
	colorVerified = 0x00FF00

	flaggedDirectMessage = "Sorry, it seems like you could not verify. For further questions please contact our Staff Members!"
)

type verificationService struct {
	configRepo repository.GuildConfigRepository
	recordRepo repository.VerificationRecordRepository
	platform   platform.Client
	now        func() time.Time
}

func NewVerificationService(
	configRepo repository.GuildConfigRepository,
	recordRepo repository.VerificationRecordRepository,
	client platform.Client,
) VerificationService {
	return &verificationService{
		configRepo: configRepo,
		recordRepo: recordRepo,
		platform:   client,
		now:        time.Now,
	}
}

// Process runs one queued request through audit, guards, evaluation and the
// flagged or verified side effects. Side-effect failures are logged and do
// not stop the remaining steps.
func (s *verificationService) Process(ctx context.Context, req *domain.VerificationRequest) (domain.Outcome, error) {
	log := logger.WithVerification(req.ID, req.TargetCommunityID.String(), req.UserID.String())
	log.Info("Processing verification", "username", req.Username, "observed_guilds", len(req.ObservedCommunityIDs))

	// The audit snapshot is written before anything else can fail
	record := &domain.VerificationRecord{
		GuildID:              req.TargetCommunityID,
		UserID:               req.UserID,
		Username:             req.Username,
		ObservedCommunityIDs: req.ObservedCommunityIDs,
		DecidedAt:            s.now().UTC(),
	}
	if err := s.recordRepo.Record(ctx, record); err != nil {
		log.Error("Failed to record verification snapshot", "error", err)
	}

	guild, err := s.platform.FindCommunity(ctx, req.TargetCommunityID)
	if err != nil {
		log.Warn("Target guild unavailable, dropping request", "error", err)
		return domain.OutcomeCommunityUnavailable, nil
	}
	member, err := s.platform.FindMember(ctx, req.TargetCommunityID, req.UserID)
	if err != nil {
		log.Warn("Member not in target guild, dropping request", "error", err)
		return domain.OutcomeMemberUnavailable, nil
	}

	cfg, err := s.configRepo.GetOrCreate(ctx, req.TargetCommunityID)
	if err != nil {
		log.Error("Failed to load guild config", "error", err)
		return domain.OutcomeConfigUnavailable, fmt.Errorf("load guild config: %w", err)
	}

	matches := cfg.MatchBlacklist(req.ObservedCommunityIDs)
	if len(matches) > 0 {
		s.flag(ctx, log, req, cfg, member, matches)
		log.Info("Verification finished", "outcome", domain.OutcomeFlagged, "matches", len(matches))
		return domain.OutcomeFlagged, nil
	}

	s.verify(ctx, log, req, cfg, guild, member)
	log.Info("Verification finished", "outcome", domain.OutcomeVerified)
	return domain.OutcomeVerified, nil
}

func (s *verificationService) flag(
	ctx context.Context,
	log *slog.Logger,
	req *domain.VerificationRequest,
	cfg *domain.GuildConfig,
	member *platform.Member,
	matches []domain.BlacklistEntry,
) {
	if channelID := cfg.FlagNotificationChannel(); channelID.IsSet() {
		if err := s.platform.SendChannelMessage(ctx, channelID, s.flagNotice(req, member, matches)); err != nil {
			log.Warn("Failed to send flag notification", "channel_id", channelID, "error", err)
		}
	} else {
		log.Warn("No flag channel configured")
	}

	notice := platform.Message{
		Title:       "Verification Failed",
		Description: flaggedDirectMessage,
		Color:       colorFlagged,
	}
	if err := s.platform.SendDirectMessage(ctx, req.UserID, notice); err != nil {
		log.Warn("Could not send direct message to flagged user", "error", err)
	}
}

func (s *verificationService) flagNotice(req *domain.VerificationRequest, member *platform.Member, matches []domain.BlacklistEntry) platform.Message {
	labels := make([]string, 0, len(matches))
	for _, m := range matches {
		labels = append(labels, m.Label)
	}
	return platform.Message{
		Title:       "Security Alert - User Flagged",
		Description: fmt.Sprintf("**User:** %s\n**Status:** Flagged during verification\n**Reason:** Member of blacklisted servers", member.Mention()),
		Color:       colorFlagged,
		Fields: []platform.Field{
			{Name: "Blacklisted Servers", Value: "```\n" + strings.Join(labels, "\n") + "```"},
			{
				Name:   "User Info",
				Value:  fmt.Sprintf("**Username:** %s\n**Display Name:** %s\n**ID:** %s\n**Mention:** %s", req.Username, member.DisplayName, req.UserID, member.Mention()),
				Inline: true,
			},
			{
				Name:   "Server Count",
				Value:  fmt.Sprintf("**Total Servers:** %d\n**Flagged:** %d", len(req.ObservedCommunityIDs), len(matches)),
				Inline: true,
			},
		},
		Footer:    "Security Verification System",
		Timestamp: s.now(),
	}
}

func (s *verificationService) verify(
	ctx context.Context,
	log *slog.Logger,
	req *domain.VerificationRequest,
	cfg *domain.GuildConfig,
	guild *platform.Community,
	member *platform.Member,
) {
	if cfg.VerifiedRoleID.IsSet() {
		if _, err := s.platform.FindRole(ctx, guild.ID, cfg.VerifiedRoleID); err != nil {
			log.Warn("Verified role not found", "role_id", cfg.VerifiedRoleID, "error", err)
		} else if err := s.platform.GrantRole(ctx, guild.ID, req.UserID, cfg.VerifiedRoleID); err != nil {
			logRoleFailure(log, "Failed to add verified role", cfg.VerifiedRoleID, err)
		}
	} else {
		log.Warn("No verified role configured")
	}

	if cfg.UnverifiedRoleID.IsSet() && member.HasRole(cfg.UnverifiedRoleID) {
		if _, err := s.platform.FindRole(ctx, guild.ID, cfg.UnverifiedRoleID); err != nil {
			log.Warn("Unverified role not found", "role_id", cfg.UnverifiedRoleID, "error", err)
		} else if err := s.platform.RevokeRole(ctx, guild.ID, req.UserID, cfg.UnverifiedRoleID); err != nil {
			logRoleFailure(log, "Failed to remove unverified role", cfg.UnverifiedRoleID, err)
		}
	}

	notice := platform.Message{
		Title:       "Verification Successful!",
		Description: fmt.Sprintf("You've been verified in %s! You may continue on.", guild.Name),
		Color:       colorVerified,
	}
	if err := s.platform.SendDirectMessage(ctx, req.UserID, notice); err != nil {
		log.Warn("Could not send direct message to verified user", "error", err)
	}
}

func logRoleFailure(log *slog.Logger, msg string, roleID domain.Snowflake, err error) {
	if errors.Is(err, platform.ErrForbidden) {
		log.Warn(msg+": missing permissions", "role_id", roleID, "error", err)
		return
	}
	log.Error(msg, "role_id", roleID, "error", err)
}
