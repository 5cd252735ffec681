// Package platform abstracts the chat platform operations the verification
// pipeline needs: guild/member/role lookup, role mutation and messaging.
package platform

import (
	"context"
	"errors"
	"time"

	"guildgate/internal/domain"
)

var (
	// ErrNotFound means the guild, member, role or channel does not exist
	// or is not visible to the bot.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the platform rejected the action for lack of permission
	ErrForbidden = errors.New("forbidden")
	// ErrUndeliverable means the recipient does not accept the message
	ErrUndeliverable = errors.New("message undeliverable")
)

type Community struct {
	ID   domain.Snowflake
	Name string
}

type Member struct {
	UserID      domain.Snowflake
	DisplayName string
	RoleIDs     []domain.Snowflake
}

// HasRole reports whether the member currently holds roleID
func (m *Member) HasRole(roleID domain.Snowflake) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Mention renders the platform mention markup for the member
func (m *Member) Mention() string {
	return "<@" + m.UserID.String() + ">"
}

type Role struct {
	ID   domain.Snowflake
	Name string
}

// Message is a rich notification rendered by the adapter (an embed on Discord)
type Message struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
	Footer      string
	Timestamp   time.Time
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Client is implemented by an adapter over the real platform SDK. Lookups
// return ErrNotFound for absent entities.
type Client interface {
	FindCommunity(ctx context.Context, guildID domain.Snowflake) (*Community, error)
	FindMember(ctx context.Context, guildID, userID domain.Snowflake) (*Member, error)
	FindRole(ctx context.Context, guildID, roleID domain.Snowflake) (*Role, error)
	GrantRole(ctx context.Context, guildID, userID, roleID domain.Snowflake) error
	RevokeRole(ctx context.Context, guildID, userID, roleID domain.Snowflake) error
	SendDirectMessage(ctx context.Context, userID domain.Snowflake, msg Message) error
	SendChannelMessage(ctx context.Context, channelID domain.Snowflake, msg Message) error
}
