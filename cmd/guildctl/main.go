package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"guildgate/internal/bootstrap"
	"guildgate/internal/config"
	"guildgate/internal/logger"
	"guildgate/internal/platform"
	"guildgate/internal/service"
)

// cli holds the flags shared by every command
type cli struct {
	configPath string
	actor      string
	notify     bool
}

// env is what a command needs once configuration is loaded
type env struct {
	cfg      *config.Config
	stores   *bootstrap.Stores
	platform platform.Client // nil unless --notify
	guilds   service.GuildConfigService
	out      io.Writer
}

func (e *env) Close() {
	if err := e.stores.Close(); err != nil {
		logger.Warn("Failed to close storage", "error", err)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "guildctl",
		Short: "Administer guild verification settings",
		Long: `guildctl edits the per-guild verification configuration used by the
verification server: flag and log channels, verification roles and the
server blacklist. It reads the same configuration file as the server.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "config/config.dev.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&c.actor, "actor", "guildctl", "Name recorded in action log messages")
	rootCmd.PersistentFlags().BoolVar(&c.notify, "notify", false, "Post action log messages to the guild's log channel")

	blacklistCmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage the server blacklist",
		Long: `Manage the list of servers whose members are flagged instead of verified.

Available subcommands:
  add    - Blacklist a server
  remove - Remove a server from the blacklist
  list   - List blacklisted servers`,
	}
	blacklistCmd.AddCommand(
		c.blacklistAddCmd(),
		c.blacklistRemoveCmd(),
		c.blacklistListCmd(),
	)

	rootCmd.AddCommand(
		c.showCmd(),
		c.setFlagChannelCmd(),
		c.setLogChannelCmd(),
		c.setRolesCmd(),
		blacklistCmd,
		c.recordCmd(),
		c.linkCmd(),
		c.drainCmd(),
	)
	return rootCmd
}

// open loads configuration and storage for a single command invocation
func (c *cli) open(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.InitializeWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)

	stores, err := bootstrap.OpenStores(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, stores: stores, out: cmd.OutOrStdout()}
	if c.notify {
		// REST only: the gateway is not needed to post messages
		session, err := platform.NewDiscordSession(cfg.Discord.BotToken)
		if err != nil {
			stores.Close()
			return nil, err
		}
		e.platform = platform.NewDiscordClient(session)
	}
	e.guilds = service.NewGuildConfigService(stores.GuildConfigs, e.platform)
	return e, nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
