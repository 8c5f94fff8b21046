package verification

import (
	"context"
	"time"
)

// Store persists verification records.
type Store interface {
	CreateRecord(ctx context.Context, rec Record) (Record, error)
	GetRecord(ctx context.Context, id string) (Record, error)
	ListRecords(ctx context.Context, accountID string) ([]Record, error)
	// ListVerifiedRecords returns verified records of every account keyed by account id.
	ListVerifiedRecords(ctx context.Context) (map[string][]Record, error)
	// ReviewRecord moves a pending record to status. It returns ErrConflict
	// when the record is no longer pending.
	ReviewRecord(ctx context.Context, id string, status Status, reviewer string, reviewedAt time.Time, reason string) (Record, error)
}

// Policy supplies the runtime validity windows and division requirements.
type Policy interface {
	VerificationPolicy(ctx context.Context) (Windows, RequirementMap, error)
}

// StaticPolicy is a fixed Policy.
type StaticPolicy struct {
	Windows      Windows
	Requirements RequirementMap
}

func (p StaticPolicy) VerificationPolicy(context.Context) (Windows, RequirementMap, error) {
	w := p.Windows
	if w == nil {
		w = DefaultWindows()
	}
	return w, p.Requirements, nil
}
