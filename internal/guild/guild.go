// Package guild mirrors the Discord guild's members and roles.
package guild

import (
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidInput  = errors.New("guild: invalid input")
	ErrGuildMismatch = errors.New("guild: guild id mismatch")
)

// Member is a Discord guild member as last reported by the bot.
type Member struct {
	DiscordID   string     `json:"discord_id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	Nickname    string     `json:"nickname,omitempty"`
	Avatar      string     `json:"avatar_hash,omitempty"`
	Roles       []string   `json:"roles"`
	JoinedAt    *time.Time `json:"joined_at,omitempty"`
	IsBot       bool       `json:"is_bot"`
	AccountID   string     `json:"account_id,omitempty"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Active reports whether the member is still in the guild.
func (m Member) Active() bool { return m.LeftAt == nil }

// Role is a Discord guild role.
type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    int    `json:"color"`
	Position int    `json:"position"`
	Managed  bool   `json:"managed"`
}

// MemberCounts summarizes a member sync.
type MemberCounts struct {
	Received int `json:"received"`
	Skipped  int `json:"skipped"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Rejoined int `json:"rejoined"`
	Left     int `json:"left"`
	Linked   int `json:"linked"`
}

// MemberPlan is the set of writes that brings stored members in line with
// the bot's payload.
type MemberPlan struct {
	Create []Member
	Update []Member
	Left   []string
	At     time.Time
	Counts MemberCounts
}

// PlanMembers diffs received against existing. New ids are created, known
// ids updated (clearing left_at, counted as rejoined when it was set) and
// active members absent from received are marked left. accounts maps
// Discord ids to account ids.
func PlanMembers(existing, received []Member, accounts map[string]string, now time.Time) MemberPlan {
	plan := MemberPlan{At: now, Counts: MemberCounts{Received: len(received)}}

	current := make(map[string]Member, len(existing))
	for _, m := range existing {
		current[m.DiscordID] = m
	}

	incoming := make(map[string]Member, len(received))
	order := make([]string, 0, len(received))
	for _, m := range received {
		m.DiscordID = strings.TrimSpace(m.DiscordID)
		if !isSnowflake(m.DiscordID) {
			plan.Counts.Skipped++
			continue
		}
		if _, dup := incoming[m.DiscordID]; !dup {
			order = append(order, m.DiscordID)
		}
		incoming[m.DiscordID] = m
	}

	for _, id := range order {
		m := incoming[id]
		m.Roles = normalizeRoles(m.Roles)
		m.LeftAt = nil
		m.UpdatedAt = now
		m.AccountID = accounts[id]
		if m.AccountID != "" {
			plan.Counts.Linked++
		}
		prev, ok := current[id]
		switch {
		case !ok:
			plan.Create = append(plan.Create, m)
			plan.Counts.Created++
		default:
			if !prev.Active() {
				plan.Counts.Rejoined++
			}
			plan.Update = append(plan.Update, m)
			plan.Counts.Updated++
		}
	}

	for _, m := range existing {
		if _, ok := incoming[m.DiscordID]; ok || !m.Active() {
			continue
		}
		plan.Left = append(plan.Left, m.DiscordID)
		plan.Counts.Left++
	}
	sort.Strings(plan.Left)
	return plan
}

// RolePlan upserts every received role and deletes the rest.
type RolePlan struct {
	Upsert []Role
	Delete []string
}

// PlanRoles diffs received roles against existing.
func PlanRoles(existing, received []Role) RolePlan {
	var plan RolePlan
	seen := make(map[string]struct{}, len(received))
	for _, r := range received {
		r.ID = strings.TrimSpace(r.ID)
		if !isSnowflake(r.ID) {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		plan.Upsert = append(plan.Upsert, r)
	}
	for _, r := range existing {
		if _, ok := seen[r.ID]; !ok {
			plan.Delete = append(plan.Delete, r.ID)
		}
	}
	sort.Strings(plan.Delete)
	return plan
}

// RoleNames indexes roles by id.
func RoleNames(roles []Role) map[string]string {
	out := make(map[string]string, len(roles))
	for _, r := range roles {
		out[r.ID] = r.Name
	}
	return out
}

func normalizeRoles(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if !isSnowflake(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func isSnowflake(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
