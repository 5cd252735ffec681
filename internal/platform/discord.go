package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"guildgate/internal/domain"
	"guildgate/internal/logger"
)

const serviceName = "discord"

// DiscordClient implements Client over a discordgo session. Guild and member
// lookups consult the gateway state cache first and fall back to REST.
type DiscordClient struct {
	session *discordgo.Session
}

// NewDiscordSession creates a bot session with the intents the pipeline needs
func NewDiscordSession(botToken string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	return s, nil
}

func NewDiscordClient(session *discordgo.Session) *DiscordClient {
	return &DiscordClient{session: session}
}

func (c *DiscordClient) FindCommunity(ctx context.Context, guildID domain.Snowflake) (*Community, error) {
	if g, err := c.session.State.Guild(guildID.String()); err == nil {
		return &Community{ID: guildID, Name: g.Name}, nil
	}

	logger.ExternalServiceCall(serviceName, "Guild", "guild_id", guildID)
	g, err := c.session.Guild(guildID.String())
	err = translate(err)
	logger.ExternalServiceResult(serviceName, "Guild", err, "guild_id", guildID)
	if err != nil {
		return nil, err
	}
	return &Community{ID: guildID, Name: g.Name}, nil
}

func (c *DiscordClient) FindMember(ctx context.Context, guildID, userID domain.Snowflake) (*Member, error) {
	m, err := c.session.State.Member(guildID.String(), userID.String())
	if err != nil {
		logger.ExternalServiceCall(serviceName, "GuildMember", "guild_id", guildID, "user_id", userID)
		m, err = c.session.GuildMember(guildID.String(), userID.String())
		err = translate(err)
		logger.ExternalServiceResult(serviceName, "GuildMember", err, "guild_id", guildID, "user_id", userID)
		if err != nil {
			return nil, err
		}
	}

	return toMember(userID, m), nil
}

// toMember prefers the guild nickname, then the global display name, then the username
func toMember(userID domain.Snowflake, m *discordgo.Member) *Member {
	member := &Member{UserID: userID, DisplayName: m.Nick}
	if member.DisplayName == "" && m.User != nil {
		member.DisplayName = m.User.GlobalName
	}
	if member.DisplayName == "" && m.User != nil {
		member.DisplayName = m.User.Username
	}
	for _, id := range m.Roles {
		member.RoleIDs = append(member.RoleIDs, domain.Snowflake(id))
	}
	return member
}

func (c *DiscordClient) FindRole(ctx context.Context, guildID, roleID domain.Snowflake) (*Role, error) {
	if r, err := c.session.State.Role(guildID.String(), roleID.String()); err == nil {
		return &Role{ID: roleID, Name: r.Name}, nil
	}

	logger.ExternalServiceCall(serviceName, "GuildRoles", "guild_id", guildID)
	roles, err := c.session.GuildRoles(guildID.String())
	err = translate(err)
	logger.ExternalServiceResult(serviceName, "GuildRoles", err, "guild_id", guildID)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if r.ID == roleID.String() {
			return &Role{ID: roleID, Name: r.Name}, nil
		}
	}
	return nil, ErrNotFound
}

func (c *DiscordClient) GrantRole(ctx context.Context, guildID, userID, roleID domain.Snowflake) error {
	logger.ExternalServiceCall(serviceName, "GuildMemberRoleAdd", "guild_id", guildID, "user_id", userID, "role_id", roleID)
	err := translate(c.session.GuildMemberRoleAdd(guildID.String(), userID.String(), roleID.String()))
	logger.ExternalServiceResult(serviceName, "GuildMemberRoleAdd", err, "guild_id", guildID, "user_id", userID, "role_id", roleID)
	return err
}

func (c *DiscordClient) RevokeRole(ctx context.Context, guildID, userID, roleID domain.Snowflake) error {
	logger.ExternalServiceCall(serviceName, "GuildMemberRoleRemove", "guild_id", guildID, "user_id", userID, "role_id", roleID)
	err := translate(c.session.GuildMemberRoleRemove(guildID.String(), userID.String(), roleID.String()))
	logger.ExternalServiceResult(serviceName, "GuildMemberRoleRemove", err, "guild_id", guildID, "user_id", userID, "role_id", roleID)
	return err
}

func (c *DiscordClient) SendDirectMessage(ctx context.Context, userID domain.Snowflake, msg Message) error {
	logger.ExternalServiceCall(serviceName, "UserChannelCreate", "user_id", userID)
	ch, err := c.session.UserChannelCreate(userID.String())
	if err != nil {
		err = translateDM(err)
		logger.ExternalServiceResult(serviceName, "UserChannelCreate", err, "user_id", userID)
		return err
	}

	_, err = c.session.ChannelMessageSendEmbed(ch.ID, toEmbed(msg))
	err = translateDM(err)
	logger.ExternalServiceResult(serviceName, "ChannelMessageSendEmbed", err, "user_id", userID)
	return err
}

func (c *DiscordClient) SendChannelMessage(ctx context.Context, channelID domain.Snowflake, msg Message) error {
	logger.ExternalServiceCall(serviceName, "ChannelMessageSendEmbed", "channel_id", channelID)
	_, err := c.session.ChannelMessageSendEmbed(channelID.String(), toEmbed(msg))
	err = translate(err)
	logger.ExternalServiceResult(serviceName, "ChannelMessageSendEmbed", err, "channel_id", channelID)
	return err
}

func toEmbed(msg Message) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       msg.Color,
	}
	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if msg.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: msg.Footer}
	}
	if !msg.Timestamp.IsZero() {
		embed.Timestamp = msg.Timestamp.UTC().Format(time.RFC3339)
	}
	return embed
}

// translate maps discordgo REST failures onto the package sentinels
func translate(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return err
	}

	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownGuild, discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownRole,
			discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownUser:
			return fmt.Errorf("%w: %s", ErrNotFound, restErr.Message.Message)
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return fmt.Errorf("%w: %s", ErrForbidden, restErr.Message.Message)
		case discordgo.ErrCodeCannotSendMessagesToThisUser:
			return fmt.Errorf("%w: %s", ErrUndeliverable, restErr.Message.Message)
		}
	}

	switch restErr.Response.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	return err
}

// translateDM treats any rejection of a direct message as undeliverable
func translateDM(err error) error {
	err = translate(err)
	if err == nil || errors.Is(err, ErrUndeliverable) {
		return err
	}
	if errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrUndeliverable, err)
	}
	return err
}
