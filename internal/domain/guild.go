package domain

import "sort"

// GuildConfig holds per-guild verification settings. Only administrative
// actions mutate it; the verification pipeline reads it.
type GuildConfig struct {
	GuildID            Snowflake         `json:"-"`
	FlagChannelID      Snowflake         `json:"flag_channel_id"`
	VerifiedRoleID     Snowflake         `json:"verified_role_id"`
	UnverifiedRoleID   Snowflake         `json:"unverified_role_id"`
	LogChannelID       Snowflake         `json:"log_channel_id"`
	BlacklistedServers map[string]string `json:"blacklisted_servers"`
}

// NewGuildConfig returns the all-empty default record for a guild
func NewGuildConfig(guildID Snowflake) *GuildConfig {
	return &GuildConfig{
		GuildID:            guildID,
		BlacklistedServers: map[string]string{},
	}
}

// BlacklistEntry is a single blacklisted foreign guild
type BlacklistEntry struct {
	ServerID string
	Label    string
}

// MatchBlacklist returns the blacklist entries whose ids appear in observed,
// ordered by server id. Any single overlap is enough to flag a user.
func (c *GuildConfig) MatchBlacklist(observed []string) []BlacklistEntry {
	if len(c.BlacklistedServers) == 0 || len(observed) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(observed))
	for _, id := range observed {
		seen[id] = struct{}{}
	}

	var matches []BlacklistEntry
	for id, label := range c.BlacklistedServers {
		if _, ok := seen[id]; ok {
			matches = append(matches, BlacklistEntry{ServerID: id, Label: label})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ServerID < matches[j].ServerID })
	return matches
}

// Blacklist returns all entries ordered by server id
func (c *GuildConfig) Blacklist() []BlacklistEntry {
	entries := make([]BlacklistEntry, 0, len(c.BlacklistedServers))
	for id, label := range c.BlacklistedServers {
		entries = append(entries, BlacklistEntry{ServerID: id, Label: label})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ServerID < entries[j].ServerID })
	return entries
}

// FlagNotificationChannel is where flagged users are reported: the flag
// channel, or the log channel when no flag channel is set.
func (c *GuildConfig) FlagNotificationChannel() Snowflake {
	if c.FlagChannelID.IsSet() {
		return c.FlagChannelID
	}
	return c.LogChannelID
}
