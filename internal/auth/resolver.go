package auth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Decider is one rule of the permission chain. decided=false defers to the
// next rule; otherwise granted is final.
type Decider interface {
	Decide(acct Account, c Capability) (granted, decided bool)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(acct Account, c Capability) (granted, decided bool)

func (f DeciderFunc) Decide(acct Account, c Capability) (bool, bool) { return f(acct, c) }

// RoleGrants maps a capability to the Discord role ids that grant it.
type RoleGrants map[Capability][]string

// Superuser grants every capability to superusers.
func Superuser() Decider {
	return DeciderFunc(func(acct Account, _ Capability) (bool, bool) {
		if acct.IsSuperuser {
			return true, true
		}
		return false, false
	})
}

// Override applies an explicit per-account grant or revoke.
func Override() Decider {
	return DeciderFunc(func(acct Account, c Capability) (bool, bool) {
		v, ok := acct.Overrides[c]
		if !ok {
			return false, false
		}
		return v, true
	})
}

// DiscordRoles grants c when one of the account's synced roles is configured
// for it. Capabilities without configured roles are never granted here.
func DiscordRoles(grants RoleGrants) Decider {
	return DeciderFunc(func(acct Account, c Capability) (bool, bool) {
		for _, id := range grants[c] {
			if _, ok := acct.DiscordRoles[id]; ok {
				return true, true
			}
		}
		return false, false
	})
}

// LegacyRole grants c when the static role list has a role of the same name.
func LegacyRole() Decider {
	return DeciderFunc(func(acct Account, c Capability) (bool, bool) {
		if acct.HasRole(string(c)) {
			return true, true
		}
		return false, false
	})
}

// Resolver walks an ordered chain of deciders. It performs no I/O.
type Resolver struct {
	deciders []Decider
}

// NewResolver builds the standard chain: superuser, override, Discord role,
// legacy role.
func NewResolver(grants RoleGrants) *Resolver {
	return NewResolverWithDeciders(Superuser(), Override(), DiscordRoles(grants), LegacyRole())
}

// NewResolverWithDeciders builds a resolver from an explicit chain.
func NewResolverWithDeciders(deciders ...Decider) *Resolver {
	return &Resolver{deciders: append([]Decider(nil), deciders...)}
}

// Resolve reports whether acct holds c. Unknown capabilities are an error.
func (r *Resolver) Resolve(acct Account, c Capability) (bool, error) {
	if !c.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownCapability, string(c))
	}
	for _, d := range r.deciders {
		if granted, decided := d.Decide(acct, c); decided {
			return granted, nil
		}
	}
	return false, nil
}

// Granted lists every capability acct holds, in registry order.
func (r *Resolver) Granted(acct Account) []Capability {
	var out []Capability
	for _, c := range Capabilities() {
		if ok, _ := r.Resolve(acct, c); ok {
			out = append(out, c)
		}
	}
	return out
}

// ParseRoleIDs decodes a JSON array of Discord role ids. Entries may be
// strings or numbers. Malformed input yields nil so that nothing is granted.
func ParseRoleIDs(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		id, ok := roleIDFromJSON(item)
		if !ok {
			return nil
		}
		out = append(out, id)
	}
	return dedupeStrings(out)
}

func roleIDFromJSON(item json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(item, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, IsSnowflake(s)
	}
	var n json.Number
	dec := json.NewDecoder(strings.NewReader(string(item)))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", false
	}
	v, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatUint(v, 10), true
}

// FormatRoleIDs encodes role ids as the JSON array stored in settings.
func FormatRoleIDs(ids []string) string {
	ids = dedupeStrings(ids)
	if ids == nil {
		ids = []string{}
	}
	data, _ := json.Marshal(ids)
	return string(data)
}
