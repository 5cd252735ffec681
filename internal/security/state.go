package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"guildgate/internal/domain"
)

var ErrInvalidState = errors.New("invalid oauth state")

// StateCodec converts between a target guild id and the OAuth state parameter
type StateCodec interface {
	Encode(guildID domain.Snowflake) (string, error)
	Decode(state string) (domain.Snowflake, error)
}

// plainStateCodec uses the guild id itself as the state. Anyone able to craft
// a callback URL can pick the target guild.
type plainStateCodec struct{}

func NewPlainStateCodec() StateCodec {
	return plainStateCodec{}
}

func (plainStateCodec) Encode(guildID domain.Snowflake) (string, error) {
	return guildID.String(), nil
}

func (plainStateCodec) Decode(state string) (domain.Snowflake, error) {
	id, err := domain.ParseSnowflake(state)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return id, nil
}

// StateClaims binds a verification link to one guild
type StateClaims struct {
	GuildID string `json:"guild_id"`
	jwt.RegisteredClaims
}

const stateAudience = "oauth-state"

type signedStateCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedStateCodec issues HS256 state tokens that expire after ttl
func NewSignedStateCodec(secret string, ttl time.Duration) StateCodec {
	return &signedStateCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (c *signedStateCodec) Encode(guildID domain.Snowflake) (string, error) {
	now := c.now()
	claims := StateClaims{
		GuildID: guildID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			Audience:  jwt.ClaimStrings{stateAudience},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

func (c *signedStateCodec) Decode(state string) (domain.Snowflake, error) {
	token, err := jwt.ParseWithClaims(state, &StateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithAudience(stateAudience), jwt.WithTimeFunc(c.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	claims, ok := token.Claims.(*StateClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidState
	}
	id, err := domain.ParseSnowflake(claims.GuildID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return id, nil
}
