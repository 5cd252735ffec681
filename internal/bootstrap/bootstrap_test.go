package bootstrap

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildgate/internal/config"
	"guildgate/internal/domain"
	"guildgate/internal/queue"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Discord.BotToken = "bot"
	cfg.Discord.ClientID = "client"
	cfg.Discord.ClientSecret = "secret"
	cfg.Discord.RedirectURI = "https://verify.example.com/oauth/callback"
	cfg.Storage.ConfigPath = filepath.Join(dir, "server_configs.json")
	cfg.Storage.AuditPath = filepath.Join(dir, "user_verification_data.json")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestOpenStores_File(t *testing.T) {
	cfg := testConfig(t)
	stores, err := OpenStores(context.Background(), cfg)
	require.NoError(t, err)
	defer stores.Close()

	got, err := stores.GuildConfigs.GetOrCreate(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, domain.Snowflake("100"), got.GuildID)
}

func TestOpenStores_Unsupported(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Type = "sqlite"
	_, err := OpenStores(context.Background(), cfg)
	assert.Error(t, err)
}

func TestOpenQueue(t *testing.T) {
	cfg := testConfig(t)

	q, closeQueue, err := OpenQueue(cfg)
	require.NoError(t, err)
	assert.IsType(t, &queue.MemoryQueue{}, q)
	assert.NoError(t, closeQueue())

	s := miniredis.RunT(t)
	cfg.Queue.Type = config.QueueRedis
	cfg.Queue.RedisURL = "redis://" + s.Addr()
	q, closeQueue, err = OpenQueue(cfg)
	require.NoError(t, err)
	assert.IsType(t, &queue.RedisQueue{}, q)
	assert.NoError(t, closeQueue())
}

func TestStateCodec(t *testing.T) {
	cfg := testConfig(t)

	state, err := StateCodec(cfg).Encode("100")
	require.NoError(t, err)
	assert.Equal(t, "100", state)

	cfg.OAuth.StateSecret = "0123456789abcdef0123456789abcdef"
	codec := StateCodec(cfg)
	state, err = codec.Encode("100")
	require.NoError(t, err)
	assert.NotEqual(t, "100", state)

	guildID, err := codec.Decode(state)
	require.NoError(t, err)
	assert.Equal(t, domain.Snowflake("100"), guildID)
}

func TestIdentityProvider_AuthCodeURL(t *testing.T) {
	cfg := testConfig(t)
	link, err := url.Parse(IdentityProvider(cfg).AuthCodeURL("100"))
	require.NoError(t, err)

	assert.Equal(t, "discord.com", link.Host)
	assert.Equal(t, "/api/oauth2/authorize", link.Path)
	q := link.Query()
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "identify guilds", q.Get("scope"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "100", q.Get("state"))
}
