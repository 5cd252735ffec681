package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"guildgate/internal/bootstrap"
	"guildgate/internal/domain"
	"guildgate/internal/jobs"
	"guildgate/internal/platform"
	"guildgate/internal/repository"
	"guildgate/internal/service"
)

// withEnv opens the environment, parses the guild id argument and runs fn
func (c *cli) withEnv(fn func(cmd *cobra.Command, e *env, guildID domain.Snowflake, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		guildID, err := domain.ParseSnowflake(args[0])
		if err != nil {
			return fmt.Errorf("invalid guild id: %w", err)
		}
		e, err := c.open(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cmd, e, guildID, args[1:])
	}
}

func parseIDs(args ...string) ([]domain.Snowflake, error) {
	ids := make([]domain.Snowflake, 0, len(args))
	for _, arg := range args {
		id, err := domain.ParseSnowflake(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printConfig(e *env, cfg *domain.GuildConfig) {
	show := func(id domain.Snowflake) string {
		if !id.IsSet() {
			return "(not set)"
		}
		return id.String()
	}
	fmt.Fprintf(e.out, "Guild:            %s\n", cfg.GuildID)
	fmt.Fprintf(e.out, "Flag channel:     %s\n", show(cfg.FlagChannelID))
	fmt.Fprintf(e.out, "Log channel:      %s\n", show(cfg.LogChannelID))
	fmt.Fprintf(e.out, "Verified role:    %s\n", show(cfg.VerifiedRoleID))
	fmt.Fprintf(e.out, "Unverified role:  %s\n", show(cfg.UnverifiedRoleID))
	fmt.Fprintf(e.out, "Blacklisted:      %d server(s)\n", len(cfg.BlacklistedServers))
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <guild-id>",
		Short: "Show a guild's verification settings",
		Args:  cobra.ExactArgs(1),
		RunE: c.withEnv(func(cmd *cobra.Command, e *env, guildID domain.Snowflake, _ []string) error {
			cfg, err := e.guilds.GetConfig(cmd.Context(), guildID)
			if err != nil {
				return err
			}
			printConfig(e, cfg)
			return nil
		}),
	}
}

func (c *cli) setFlagChannelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-flag-channel <guild-id> <channel-id>",
		Short: "Set the channel that receives flagged-user alerts",
		Args:  cobra.ExactArgs(2),
		RunE: c.withEnv(func(cmd *cobra.Command, e *env, guildID domain.Snowflake, args []string) error {
			ids, err := parseIDs(args...)
			if err != nil {
				return fmt.Errorf("invalid channel id: %w", err)
			}
			cfg, err := e.guilds.SetFlagChannel(cmd.Context(), guildID, ids[0], c.actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "✅ Flag channel set to %s\n", cfg.FlagChannelID)
			return nil
		}),
	}
}

func (c *cli) setLogChannelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-log-channel <guild-id> <channel-id>",
		Short: "Set the channel that receives action logs",
		Args:  cobra.ExactArgs(2),
		RunE: c.withEnv(func(cmd *cobra.Command, e *env, guildID domain.Snowflake, args []string) error {
			ids, err := parseIDs(args...)
			if err != nil {
				return fmt.Errorf("invalid channel id: %w", err)
			}
			cfg, err := e.guilds.SetLogChannel(cmd.Context(), guildID, ids[0], c.actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "✅ Log channel set to %s\n", cfg.LogChannelID)
			return nil
		}),
	}
}

func (c *cli) setRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-roles <guild-id> <verified-role-id> <unverified-role-id>",
		Short: "Set the roles granted and removed on verification",
		Args:  cobra.ExactArgs(3),
		RunE: c.withEnv(func(cmd *cobra.Command, e *env, guildID domain.Snowflake, args []string) error {
			ids, err := parseIDs(args...)
			if err != nil {
				return fmt.Errorf("invalid role id: %w", err)
			}
			cfg, err := e.guilds.SetRoles(cmd.Context(), guildID, ids[0], ids[1], c.actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "✅ Verified role %s, unverified role %s\n", cfg.VerifiedRoleID, cfg.UnverifiedRoleID)
			return nil
		}),
	}
}

func (c *cli) blacklistAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <guild-id> <server-id> [label...]",
		Short: "Blacklist a server",
		Args:  cobra.MinimumNArgs(2),
		RunE: c.withEnv(func(cmd *cobra.Command, e *env, guildID domain.Snowflake, args []string) error {
			serverID := args[0]
			label := strings.Join(args[1:], " ")
			cfg, err := e.guilds.AddBlacklistedServer(cmd.Context(), guildID, serverID, label, c.actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "✅ Blacklisted %s (%s)\n", cfg.BlacklistedServers[serverID], serverID)
			return nil
		}),
	}
}

func (c *cli) blacklistRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <guild-id> <server-id>",
		Short: "Remove a server from the blacklist",
		Args:  cobra.ExactArgs(2),
		RunE: c.withEnv(func(cmd *cobra.Command, e *env, guildID domain.Snowflake, args []string) error {
			label, err := e.guilds.RemoveBlacklistedServer(cmd.Context(), guildID, args[0], c.actor)
			if errors.Is(err, service.ErrNotBlacklisted) {
				return fmt.Errorf("server %s is not blacklisted", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "✅ Removed %s (%s) from the blacklist\n", label, args[0])
			return nil
		}),
	}
}

func (c *cli) blacklistListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <guild-id>",
		Short: "List blacklisted servers",
		Args:  cobra.ExactArgs(1),
		RunE: c.withEnv(func(cmd *cobra.Command, e *env, guildID domain.Snowflake, _ []string) error {
			cfg, err := e.guilds.GetConfig(cmd.Context(), guildID)
			if err != nil {
				return err
			}
			entries := cfg.Blacklist()
			if len(entries) == 0 {
				fmt.Fprintln(e.out, "No blacklisted servers")
				return nil
			}
			for _, entry := range entries {
				fmt.Fprintf(e.out, "%s\t%s\n", entry.ServerID, entry.Label)
			}
			return nil
		}),
	}
}

func (c *cli) recordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record <guild-id> <user-id>",
		Short: "Show the last verification snapshot for a user",
		Args:  cobra.ExactArgs(2),
		RunE: c.withEnv(func(cmd *cobra.Command, e *env, guildID domain.Snowflake, args []string) error {
			ids, err := parseIDs(args...)
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			rec, err := e.stores.Records.Get(cmd.Context(), guildID, ids[0])
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("no verification record for user %s in guild %s", ids[0], guildID)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "User:       %s (%s)\n", rec.Username, rec.UserID)
			fmt.Fprintf(e.out, "Verified:   %s\n", rec.DecidedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Fprintf(e.out, "Servers:    %s\n", strings.Join(rec.ObservedCommunityIDs, ", "))
			return nil
		}),
	}
}

func (c *cli) linkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <guild-id>",
		Short: "Print the verification link for a guild",
		Long: `Print the provider consent URL for a guild. When server.base_url is set,
also print the server's /verify/<guild-id> link, which redirects to the same URL.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guildID, err := domain.ParseSnowflake(args[0])
			if err != nil {
				return fmt.Errorf("invalid guild id: %w", err)
			}
			e, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			state, err := bootstrap.StateCodec(e.cfg).Encode(guildID)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, bootstrap.IdentityProvider(e.cfg).AuthCodeURL(state))
			if base := strings.TrimRight(e.cfg.Server.BaseURL, "/"); base != "" {
				fmt.Fprintf(e.out, "Short link: %s/verify/%s\n", base, guildID)
			}
			return nil
		},
	}
}

func (c *cli) drainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Process the verification queue once and exit",
		Long: `Process every request waiting in the verification queue, then exit.
Only useful with the redis queue; the memory queue is private to the server.
The drain takes the same consumer lease as the server, so it does nothing
while the server is draining.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			q, closeQueue, err := bootstrap.OpenQueue(e.cfg)
			if err != nil {
				return err
			}
			defer closeQueue()

			client := e.platform
			if client == nil {
				session, err := platform.NewDiscordSession(e.cfg.Discord.BotToken)
				if err != nil {
					return err
				}
				client = platform.NewDiscordClient(session)
			}

			verification := service.NewVerificationService(e.stores.GuildConfigs, e.stores.Records, client)
			jobs.NewJobRunner(q, &jobs.Services{Verification: verification}, e.cfg).DrainVerificationQueue()
			return nil
		},
	}
}
