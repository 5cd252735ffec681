package jsonfile

import (
	"context"

	"guildgate/internal/domain"
	"guildgate/internal/logger"
	"guildgate/internal/repository"
)

type guildConfigRepository struct {
	doc *document
}

func NewGuildConfigRepository(path string) repository.GuildConfigRepository {
	return &guildConfigRepository{doc: newDocument(path)}
}

func (r *guildConfigRepository) GetOrCreate(ctx context.Context, guildID domain.Snowflake) (*domain.GuildConfig, error) {
	unlock, err := r.doc.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	configs, cfg, created, err := r.loadGuild(guildID)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Debug("Creating default guild config", "guild_id", guildID, "path", r.doc.path)
		if err := r.doc.save(configs); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (r *guildConfigRepository) Update(ctx context.Context, guildID domain.Snowflake, mutate repository.GuildConfigMutator) (*domain.GuildConfig, error) {
	unlock, err := r.doc.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	configs, cfg, _, err := r.loadGuild(guildID)
	if err != nil {
		return nil, err
	}
	if err := mutate(cfg); err != nil {
		return nil, err
	}
	if cfg.BlacklistedServers == nil {
		cfg.BlacklistedServers = map[string]string{}
	}
	if err := r.doc.save(configs); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadGuild reads the whole document and returns it together with the entry
// for guildID, inserting a default entry when absent. Caller holds the lock.
func (r *guildConfigRepository) loadGuild(guildID domain.Snowflake) (map[string]*domain.GuildConfig, *domain.GuildConfig, bool, error) {
	configs := map[string]*domain.GuildConfig{}
	if err := r.doc.load(&configs); err != nil {
		return nil, nil, false, err
	}

	key := guildID.String()
	cfg, ok := configs[key]
	if !ok || cfg == nil {
		cfg = domain.NewGuildConfig(guildID)
		configs[key] = cfg
		return configs, cfg, true, nil
	}
	cfg.GuildID = guildID
	if cfg.BlacklistedServers == nil {
		cfg.BlacklistedServers = map[string]string{}
	}
	return configs, cfg, false, nil
}
