package roster

import (
	"sort"

	"go.uber.org/zap"
)

// Anomaly is a source record skipped because its rider id is unusable.
type Anomaly struct {
	Source string `json:"source"`
	RawID  string `json:"raw_id"`
	Reason string `json:"reason"`
}

// Result is the outcome of an aggregation.
type Result struct {
	Rows      []Row     `json:"rows"`
	Anomalies []Anomaly `json:"anomalies"`
}

type options struct {
	logger    *zap.Logger
	results   map[int64]int
	readiness func(accountID, division string) bool
}

// Option configures Aggregate.
type Option func(*options)

// WithLogger sets the logger used to report data-quality anomalies.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithResultCounts attaches race result counts per rider.
func WithResultCounts(counts map[int64]int) Option {
	return func(o *options) { o.results = counts }
}

// WithReadiness computes race readiness per account once the rider's
// division is known.
func WithReadiness(fn func(accountID, division string) bool) Option {
	return func(o *options) { o.readiness = fn }
}

// Aggregate joins the three sources on rider id. Every distinct valid id yields
// exactly one row; records with malformed ids are skipped and reported.
// Rows are returned in ascending rider id order.
func Aggregate(accounts []AccountRecord, leaderboard []LeaderboardProfile, ratings []RatingProfile, opts ...Option) Result {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	var res Result

	acctByID := index(SourceAccounts, accounts, func(a AccountRecord) (string, int64, error) {
		id, err := ParseRiderID(a.RiderID)
		return a.RiderID, id, err
	}, func(a AccountRecord) int64 { return a.SyncedAt.UnixNano() }, &res, o.logger)
	lbByID := index(SourceLeaderboard, leaderboard, func(p LeaderboardProfile) (string, int64, error) {
		id, err := ParseRiderID(p.RiderID)
		return p.RiderID, id, err
	}, func(p LeaderboardProfile) int64 { return p.SyncedAt.UnixNano() }, &res, o.logger)
	ratingByID := index(SourceRating, ratings, func(p RatingProfile) (string, int64, error) {
		id, err := ParseRiderID(p.RiderID)
		return p.RiderID, id, err
	}, func(p RatingProfile) int64 { return p.SyncedAt.UnixNano() }, &res, o.logger)

	ids := make(map[int64]struct{}, len(acctByID)+len(lbByID)+len(ratingByID))
	for id := range acctByID {
		ids[id] = struct{}{}
	}
	for id := range lbByID {
		ids[id] = struct{}{}
	}
	for id := range ratingByID {
		ids[id] = struct{}{}
	}

	res.Rows = make([]Row, 0, len(ids))
	for id := range ids {
		row := Row{RiderID: id, ResultCount: o.results[id]}
		if a, ok := acctByID[id]; ok {
			row.Account = &a
		}
		if p, ok := lbByID[id]; ok {
			row.Leaderboard = &p
		}
		if p, ok := ratingByID[id]; ok {
			row.Rating = &p
		}
		if row.Account != nil && o.readiness != nil {
			row.Account.RaceReady = o.readiness(row.Account.AccountID, row.Division())
		}
		res.Rows = append(res.Rows, row)
	}
	sort.Slice(res.Rows, func(i, j int) bool { return res.Rows[i].RiderID < res.Rows[j].RiderID })
	return res
}

func index[T any](source string, items []T, key func(T) (string, int64, error), synced func(T) int64, res *Result, log *zap.Logger) map[int64]T {
	out := make(map[int64]T, len(items))
	for _, item := range items {
		raw, id, err := key(item)
		if err != nil {
			res.Anomalies = append(res.Anomalies, Anomaly{Source: source, RawID: raw, Reason: err.Error()})
			log.Warn("roster_anomaly",
				zap.String("source", source),
				zap.String("raw_id", raw),
				zap.Error(err),
			)
			continue
		}
		if cur, ok := out[id]; ok && synced(cur) > synced(item) {
			continue
		}
		out[id] = item
	}
	return out
}
