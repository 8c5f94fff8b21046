package auth

// Principal is an authenticated account with its resolved capabilities.
type Principal struct {
	Account      Account
	Capabilities map[Capability]struct{}
}

// NewPrincipal resolves every capability for acct once.
func NewPrincipal(acct Account, r *Resolver) Principal {
	granted := r.Granted(acct)
	set := make(map[Capability]struct{}, len(granted))
	for _, c := range granted {
		set[c] = struct{}{}
	}
	return Principal{Account: acct, Capabilities: set}
}

// HasPermission reports whether the principal holds c.
func (p Principal) HasPermission(c Capability) bool {
	_, ok := p.Capabilities[c]
	return ok
}

// List returns the granted capabilities in registry order.
func (p Principal) List() []Capability {
	out := make([]Capability, 0, len(p.Capabilities))
	for _, c := range Capabilities() {
		if p.HasPermission(c) {
			out = append(out, c)
		}
	}
	return out
}
