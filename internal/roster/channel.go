package roster

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultFilterTTL is how long a channel filter link stays usable.
const DefaultFilterTTL = 5 * time.Minute

// ChannelFilter is a short-lived roster view limited to the members of a
// Discord channel.
type ChannelFilter struct {
	ID          uuid.UUID `json:"id"`
	DiscordIDs  []string  `json:"discord_ids"`
	ChannelName string    `json:"channel_name"`
	CreatedBy   string    `json:"created_by_discord_id"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewChannelFilter validates input and stamps expiry.
func NewChannelFilter(discordIDs []string, channelName, createdBy string, now time.Time, ttl time.Duration) (ChannelFilter, error) {
	if ttl <= 0 {
		ttl = DefaultFilterTTL
	}
	seen := make(map[string]struct{}, len(discordIDs))
	ids := make([]string, 0, len(discordIDs))
	for _, id := range discordIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ChannelFilter{}, fmt.Errorf("%w: discord_ids must not be empty", ErrInvalidInput)
	}
	return ChannelFilter{
		ID:          uuid.New(),
		DiscordIDs:  ids,
		ChannelName: strings.TrimSpace(channelName),
		CreatedBy:   strings.TrimSpace(createdBy),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}, nil
}

// Expired reports whether the filter can no longer be used at now.
func (f ChannelFilter) Expired(now time.Time) bool {
	return now.After(f.ExpiresAt)
}

// Filter converts the channel filter into a roster filter.
func (f ChannelFilter) Filter() Filter {
	set := make(map[string]struct{}, len(f.DiscordIDs))
	for _, id := range f.DiscordIDs {
		set[id] = struct{}{}
	}
	return Filter{DiscordIDs: set}
}
