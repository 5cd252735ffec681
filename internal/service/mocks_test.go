package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"guildgate/internal/domain"
	"guildgate/internal/platform"
	"guildgate/internal/repository"
)

// MockGuildConfigRepo
type MockGuildConfigRepo struct {
	mock.Mock
}

func (m *MockGuildConfigRepo) GetOrCreate(ctx context.Context, guildID domain.Snowflake) (*domain.GuildConfig, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GuildConfig), args.Error(1)
}

// Update applies the mutator to the config supplied via Return so tests can
// inspect the mutation.
func (m *MockGuildConfigRepo) Update(ctx context.Context, guildID domain.Snowflake, mutate repository.GuildConfigMutator) (*domain.GuildConfig, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	cfg := args.Get(0).(*domain.GuildConfig)
	if err := mutate(cfg); err != nil {
		return nil, err
	}
	return cfg, args.Error(1)
}

// MockVerificationRecordRepo
type MockVerificationRecordRepo struct {
	mock.Mock
}

func (m *MockVerificationRecordRepo) Record(ctx context.Context, rec *domain.VerificationRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockVerificationRecordRepo) Get(ctx context.Context, guildID, userID domain.Snowflake) (*domain.VerificationRecord, error) {
	args := m.Called(ctx, guildID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationRecord), args.Error(1)
}

// fakePlatform is an in-memory platform with one call log shared by all
// operations.
type fakePlatform struct {
	mu        sync.Mutex
	guilds    map[domain.Snowflake]*platform.Community
	members   map[domain.Snowflake]map[domain.Snowflake]*platform.Member
	roles     map[domain.Snowflake]map[domain.Snowflake]*platform.Role
	calls     []string
	channel   map[domain.Snowflake][]platform.Message
	dms       map[domain.Snowflake][]platform.Message
	grantErr  error
	revokeErr error
	dmErr     error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		guilds:  map[domain.Snowflake]*platform.Community{},
		members: map[domain.Snowflake]map[domain.Snowflake]*platform.Member{},
		roles:   map[domain.Snowflake]map[domain.Snowflake]*platform.Role{},
		channel: map[domain.Snowflake][]platform.Message{},
		dms:     map[domain.Snowflake][]platform.Message{},
	}
}

func (f *fakePlatform) addGuild(id domain.Snowflake, name string, roleIDs ...domain.Snowflake) {
	f.guilds[id] = &platform.Community{ID: id, Name: name}
	f.members[id] = map[domain.Snowflake]*platform.Member{}
	f.roles[id] = map[domain.Snowflake]*platform.Role{}
	for _, r := range roleIDs {
		f.roles[id][r] = &platform.Role{ID: r, Name: "role-" + r.String()}
	}
}

func (f *fakePlatform) addMember(guildID, userID domain.Snowflake, roleIDs ...domain.Snowflake) {
	f.members[guildID][userID] = &platform.Member{UserID: userID, DisplayName: "user-" + userID.String(), RoleIDs: roleIDs}
}

func (f *fakePlatform) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakePlatform) FindCommunity(ctx context.Context, guildID domain.Snowflake) (*platform.Community, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("FindCommunity %s", guildID)
	g, ok := f.guilds[guildID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return g, nil
}

func (f *fakePlatform) FindMember(ctx context.Context, guildID, userID domain.Snowflake) (*platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("FindMember %s %s", guildID, userID)
	m, ok := f.members[guildID][userID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return m, nil
}

func (f *fakePlatform) FindRole(ctx context.Context, guildID, roleID domain.Snowflake) (*platform.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("FindRole %s %s", guildID, roleID)
	r, ok := f.roles[guildID][roleID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return r, nil
}

func (f *fakePlatform) GrantRole(ctx context.Context, guildID, userID, roleID domain.Snowflake) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GrantRole %s %s %s", guildID, userID, roleID)
	if f.grantErr != nil {
		return f.grantErr
	}
	m := f.members[guildID][userID]
	if !m.HasRole(roleID) {
		m.RoleIDs = append(m.RoleIDs, roleID)
	}
	return nil
}

func (f *fakePlatform) RevokeRole(ctx context.Context, guildID, userID, roleID domain.Snowflake) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RevokeRole %s %s %s", guildID, userID, roleID)
	if f.revokeErr != nil {
		return f.revokeErr
	}
	m := f.members[guildID][userID]
	kept := m.RoleIDs[:0]
	for _, id := range m.RoleIDs {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	m.RoleIDs = kept
	return nil
}

func (f *fakePlatform) SendDirectMessage(ctx context.Context, userID domain.Snowflake, msg platform.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SendDirectMessage %s", userID)
	if f.dmErr != nil {
		return f.dmErr
	}
	f.dms[userID] = append(f.dms[userID], msg)
	return nil
}

func (f *fakePlatform) SendChannelMessage(ctx context.Context, channelID domain.Snowflake, msg platform.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SendChannelMessage %s", channelID)
	f.channel[channelID] = append(f.channel[channelID], msg)
	return nil
}

// mutations returns the role-changing calls in order
func (f *fakePlatform) mutations() []string {
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, "GrantRole") || strings.HasPrefix(c, "RevokeRole") {
			out = append(out, c)
		}
	}
	return out
}
