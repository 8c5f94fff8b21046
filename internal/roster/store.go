package roster

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gottabike.org/internal/auth"
)

// ProfileStore persists external profile snapshots.
type ProfileStore interface {
	ListLeaderboardProfiles(ctx context.Context) ([]LeaderboardProfile, error)
	ListRatingProfiles(ctx context.Context) ([]RatingProfile, error)
	ResultCounts(ctx context.Context) (map[int64]int, error)
	// Upserts clear date_left for every stored rider.
	UpsertLeaderboardProfiles(ctx context.Context, profiles []LeaderboardProfile) error
	UpsertRatingProfiles(ctx context.Context, profiles []RatingProfile) error
	// UpsertRaceResults replaces stored results with the same rider and event.
	UpsertRaceResults(ctx context.Context, results []RaceResult) error
	// MarkLeft stamps date_left on riders of source not listed in present.
	MarkLeft(ctx context.Context, source string, present []string, at time.Time) (int64, error)
}

// FilterStore persists channel filters.
type FilterStore interface {
	CreateChannelFilter(ctx context.Context, f ChannelFilter) error
	GetChannelFilter(ctx context.Context, id uuid.UUID) (ChannelFilter, error)
	DeleteExpiredFilters(ctx context.Context, before time.Time) (int64, error)
}

// AccountLister lists local accounts.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]auth.Account, error)
}

// ReadinessSource yields a race readiness check valid for one roster build.
type ReadinessSource interface {
	ReadinessFunc(ctx context.Context) (func(accountID, division string) bool, error)
}

// ReadinessFunc adapts a function to ReadinessSource.
type ReadinessFunc func(ctx context.Context) (func(accountID, division string) bool, error)

func (f ReadinessFunc) ReadinessFunc(ctx context.Context) (func(accountID, division string) bool, error) {
	return f(ctx)
}

// AccountRecordFrom projects an account onto the roster. Accounts without a
// rider id have no roster row and yield ok=false.
func AccountRecordFrom(a auth.Account) (AccountRecord, bool) {
	zwid := a.ZwidString()
	if zwid == "" {
		return AccountRecord{}, false
	}
	return AccountRecord{
		RiderID:         zwid,
		AccountID:       a.ID,
		Username:        a.Username,
		DisplayName:     a.DisplayName(),
		DiscordID:       a.DiscordID,
		DiscordUsername: a.DiscordUsername,
		Gender:          a.Gender,
		ZwidVerified:    a.ZwidVerified,
		SyncedAt:        a.UpdatedAt,
	}, true
}
