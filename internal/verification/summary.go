package verification

import (
	"sort"
	"time"
)

// TypeStatus summarizes one verification type for an account.
type TypeStatus struct {
	Verified      bool       `json:"verified"`
	EvidenceDate  *time.Time `json:"verified_date"`
	DaysRemaining *int       `json:"days_remaining"`
	Expired       bool       `json:"is_expired"`
	Status        string     `json:"status"`
	HasPending    bool       `json:"has_pending"`
	PendingSince  *time.Time `json:"pending_date,omitempty"`
}

// Summarize reports the state of every verification type on asOf using the
// most recent verified and pending record of each type.
func Summarize(records []Record, windows Windows, asOf time.Time) map[Type]TypeStatus {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EvidenceDate.After(sorted[j].EvidenceDate)
	})

	out := make(map[Type]TypeStatus, len(Types))
	for _, t := range Types {
		var verified, pending *Record
		for i := range sorted {
			rec := &sorted[i]
			if rec.Type != t {
				continue
			}
			switch rec.Status {
			case StatusVerified:
				if verified == nil {
					verified = rec
				}
			case StatusPending:
				if pending == nil {
					pending = rec
				}
			}
		}
		out[t] = summarizeType(verified, pending, windows[t], asOf)
	}
	return out
}

func summarizeType(verified, pending *Record, days int, asOf time.Time) TypeStatus {
	var st TypeStatus
	if pending != nil {
		st.HasPending = true
		created := pending.CreatedAt
		st.PendingSince = &created
	}
	switch {
	case verified != nil:
		evidence := verified.EvidenceDate
		st.EvidenceDate = &evidence
		if remaining, ok := DaysRemaining(*verified, days, asOf); ok {
			st.DaysRemaining = &remaining
		}
		st.Expired = !IsValid(*verified, days, asOf)
		if st.Expired && pending != nil {
			st.Status = "Pending (expired)"
			return st
		}
		st.Verified = true
		st.Status = ValidityStatus(*verified, days, asOf)
	case pending != nil:
		st.Status = "Pending"
	default:
		st.Status = "No record"
	}
	return st
}
