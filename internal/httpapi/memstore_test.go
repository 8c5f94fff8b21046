package httpapi

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gottabike.org/internal/auth"
	"gottabike.org/internal/guild"
	"gottabike.org/internal/roster"
	"gottabike.org/internal/tasks"
	"gottabike.org/internal/team"
	"gottabike.org/internal/verification"
)

// memStore backs every service in handler tests.
type memStore struct {
	mu           sync.Mutex
	accounts     map[string]auth.Account
	records      map[string]verification.Record
	leaderboard  map[string]roster.LeaderboardProfile
	ratings      map[string]roster.RatingProfile
	results      map[string]roster.RaceResult
	filters      map[uuid.UUID]roster.ChannelFilter
	members      map[string]guild.Member
	roles        map[string]guild.Role
	settings     map[string]string
	applications map[uuid.UUID]team.Application
	links        map[string]team.Link
}

func newMemStore() *memStore {
	return &memStore{
		accounts:     map[string]auth.Account{},
		records:      map[string]verification.Record{},
		leaderboard:  map[string]roster.LeaderboardProfile{},
		ratings:      map[string]roster.RatingProfile{},
		results:      map[string]roster.RaceResult{},
		filters:      map[uuid.UUID]roster.ChannelFilter{},
		members:      map[string]guild.Member{},
		roles:        map[string]guild.Role{},
		settings:     map[string]string{},
		applications: map[uuid.UUID]team.Application{},
		links:        map[string]team.Link{},
	}
}

// accounts

func (m *memStore) GetAccount(_ context.Context, id string) (auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return auth.Account{}, auth.ErrNotFound
	}
	return a, nil
}

func (m *memStore) findAccount(match func(auth.Account) bool) (auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if match(a) {
			return a, nil
		}
	}
	return auth.Account{}, auth.ErrNotFound
}

func (m *memStore) GetAccountByDiscordID(_ context.Context, discordID string) (auth.Account, error) {
	return m.findAccount(func(a auth.Account) bool { return a.DiscordID == discordID })
}

func (m *memStore) GetAccountByUsername(_ context.Context, username string) (auth.Account, error) {
	return m.findAccount(func(a auth.Account) bool { return a.Username == username })
}

func (m *memStore) ListAccounts(context.Context) ([]auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]auth.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateAccount(_ context.Context, acct auth.Account) (auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acct.ID]; ok {
		return auth.Account{}, auth.ErrConflict
	}
	m.accounts[acct.ID] = acct
	return acct, nil
}

func (m *memStore) mutate(id string, fn func(*auth.Account)) (auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return auth.Account{}, auth.ErrNotFound
	}
	fn(&a)
	m.accounts[id] = a
	return a, nil
}

func (m *memStore) UpdateDiscordIdentity(_ context.Context, id string, identity auth.DiscordIdentity) (auth.Account, error) {
	return m.mutate(id, func(a *auth.Account) {
		a.DiscordUsername = identity.Username
		a.DiscordNickname = identity.Nickname
		a.DiscordAvatar = identity.Avatar
	})
}

func (m *memStore) UpdateProfile(_ context.Context, id string, upd auth.ProfileUpdate) (auth.Account, error) {
	return m.mutate(id, func(a *auth.Account) {
		if upd.Zwid != nil {
			a.Zwid = *upd.Zwid
		}
		if upd.Gender != nil {
			a.Gender = *upd.Gender
		}
	})
}

func (m *memStore) SetDiscordRoles(_ context.Context, id string, roles map[string]string) (auth.Account, error) {
	return m.mutate(id, func(a *auth.Account) { a.DiscordRoles = roles })
}

func (m *memStore) SetOverrides(_ context.Context, id string, overrides map[auth.Capability]bool) (auth.Account, error) {
	return m.mutate(id, func(a *auth.Account) { a.Overrides = overrides })
}

func (m *memStore) SetRoles(_ context.Context, id string, roles []string) (auth.Account, error) {
	return m.mutate(id, func(a *auth.Account) { a.Roles = roles })
}

func (m *memStore) SetPassword(_ context.Context, id, hash string, superuser bool) (auth.Account, error) {
	return m.mutate(id, func(a *auth.Account) {
		a.PasswordHash = hash
		a.IsSuperuser = superuser
	})
}

// verification

func (m *memStore) CreateRecord(_ context.Context, rec verification.Record) (verification.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memStore) GetRecord(_ context.Context, id string) (verification.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return verification.Record{}, verification.ErrNotFound
	}
	return rec, nil
}

func (m *memStore) ListRecords(_ context.Context, accountID string) ([]verification.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []verification.Record
	for _, rec := range m.records {
		if rec.AccountID == accountID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListVerifiedRecords(context.Context) (map[string][]verification.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]verification.Record{}
	for _, rec := range m.records {
		if rec.Status == verification.StatusVerified {
			out[rec.AccountID] = append(out[rec.AccountID], rec)
		}
	}
	return out, nil
}

func (m *memStore) ReviewRecord(_ context.Context, id string, status verification.Status, reviewer string, at time.Time, reason string) (verification.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return verification.Record{}, verification.ErrNotFound
	}
	if rec.Status != verification.StatusPending {
		return verification.Record{}, verification.ErrConflict
	}
	rec.Status = status
	rec.ReviewedBy = reviewer
	rec.ReviewedAt = &at
	rec.RejectionReason = reason
	m.records[id] = rec
	return rec, nil
}

// profiles

func (m *memStore) ListLeaderboardProfiles(context.Context) ([]roster.LeaderboardProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]roster.LeaderboardProfile, 0, len(m.leaderboard))
	for _, p := range m.leaderboard {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) ListRatingProfiles(context.Context) ([]roster.RatingProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]roster.RatingProfile, 0, len(m.ratings))
	for _, p := range m.ratings {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) ResultCounts(context.Context) (map[int64]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]int{}
	for _, r := range m.results {
		id, err := roster.ParseRiderID(r.RiderID)
		if err != nil {
			return nil, err
		}
		out[id]++
	}
	return out, nil
}

func (m *memStore) UpsertRaceResults(_ context.Context, results []roster.RaceResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range results {
		m.results[r.RiderID+"/"+r.EventID] = r
	}
	return nil
}

func (m *memStore) UpsertLeaderboardProfiles(_ context.Context, profiles []roster.LeaderboardProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range profiles {
		m.leaderboard[p.RiderID] = p
	}
	return nil
}

func (m *memStore) UpsertRatingProfiles(_ context.Context, profiles []roster.RatingProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range profiles {
		m.ratings[p.RiderID] = p
	}
	return nil
}

func (m *memStore) MarkLeft(_ context.Context, source string, present []string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep := map[string]bool{}
	for _, id := range present {
		keep[id] = true
	}
	var n int64
	if source == roster.SourceLeaderboard {
		for id, p := range m.leaderboard {
			if !keep[id] && p.DateLeft == nil {
				p.DateLeft = &at
				m.leaderboard[id] = p
				n++
			}
		}
	}
	return n, nil
}

// filters

func (m *memStore) CreateChannelFilter(_ context.Context, f roster.ChannelFilter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters[f.ID] = f
	return nil
}

func (m *memStore) GetChannelFilter(_ context.Context, id uuid.UUID) (roster.ChannelFilter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.filters[id]
	if !ok {
		return roster.ChannelFilter{}, roster.ErrNotFound
	}
	return f, nil
}

func (m *memStore) DeleteExpiredFilters(_ context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// guild

func (m *memStore) ListMembers(context.Context) ([]guild.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]guild.Member, 0, len(m.members))
	for _, mem := range m.members {
		out = append(out, mem)
	}
	return out, nil
}

func (m *memStore) ApplyMemberPlan(_ context.Context, plan guild.MemberPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range append(append([]guild.Member{}, plan.Create...), plan.Update...) {
		m.members[mem.DiscordID] = mem
	}
	for _, id := range plan.Left {
		mem := m.members[id]
		at := plan.At
		mem.LeftAt = &at
		m.members[id] = mem
	}
	return nil
}

func (m *memStore) ListRoles(context.Context) ([]guild.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]guild.Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) ApplyRolePlan(_ context.Context, plan guild.RolePlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range plan.Upsert {
		m.roles[r.ID] = r
	}
	for _, id := range plan.Delete {
		delete(m.roles, id)
	}
	return nil
}

// settings

func (m *memStore) ListSettings(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) PutSetting(_ context.Context, key, value, _ string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// team

func (m *memStore) CreateApplication(_ context.Context, a team.Application) (team.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.applications {
		if cur.DiscordID == a.DiscordID {
			return team.Application{}, team.ErrConflict
		}
	}
	m.applications[a.ID] = a
	return a, nil
}

func (m *memStore) GetApplication(_ context.Context, id uuid.UUID) (team.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[id]
	if !ok {
		return team.Application{}, team.ErrNotFound
	}
	return a, nil
}

func (m *memStore) ApplicationByDiscordID(_ context.Context, discordID string) (team.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.applications {
		if a.DiscordID == discordID {
			return a, nil
		}
	}
	return team.Application{}, team.ErrNotFound
}

func (m *memStore) ListApplications(_ context.Context, status team.ApplicationStatus) ([]team.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []team.Application
	for _, a := range m.applications {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) UpdateApplication(_ context.Context, a team.Application) (team.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.applications[a.ID]; !ok {
		return team.Application{}, team.ErrNotFound
	}
	m.applications[a.ID] = a
	return a, nil
}

func (m *memStore) CreateLink(_ context.Context, l team.Link) (team.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[l.ID]; ok {
		return team.Link{}, team.ErrConflict
	}
	m.links[l.ID] = l
	return l, nil
}

func (m *memStore) GetLink(_ context.Context, id string) (team.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok {
		return team.Link{}, team.ErrNotFound
	}
	return l, nil
}

func (m *memStore) UpdateLink(_ context.Context, l team.Link) (team.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[l.ID]; !ok {
		return team.Link{}, team.ErrNotFound
	}
	m.links[l.ID] = l
	return l, nil
}

func (m *memStore) DeleteLink(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[id]; !ok {
		return team.ErrNotFound
	}
	delete(m.links, id)
	return nil
}

func (m *memStore) ListLinks(context.Context) ([]team.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]team.Link, 0, len(m.links))
	for _, l := range m.links {
		out = append(out, l)
	}
	return out, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	tasks []tasks.Task
}

func (p *recordingPublisher) Enqueue(_ context.Context, t tasks.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, t)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.tasks))
	for i, t := range p.tasks {
		out[i] = t.Name
	}
	return out
}

