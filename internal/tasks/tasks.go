// Package tasks hands background work to external workers.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gottabike.org/internal/ids"
)

// Task names understood by the workers.
const (
	UpdateTeamRiders   = "zwiftpower.update_team_riders"
	UpdateTeamResults  = "zwiftpower.update_team_results"
	SyncRatingRiders   = "zwiftracing.sync_riders"
	RaceReadyChanged   = "discord.race_ready_changed"
	ApplicationUpdated = "discord.application_updated"
)

var known = map[string]struct{}{
	UpdateTeamRiders:   {},
	UpdateTeamResults:  {},
	SyncRatingRiders:   {},
	RaceReadyChanged:   {},
	ApplicationUpdated: {},
}

var ErrUnknownTask = errors.New("tasks: unknown task")

// Task is one unit of queued work.
type Task struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	RequestedBy string          `json:"requested_by,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// New builds a task with a fresh id. payload may be nil.
func New(name string, payload any, requestedBy string, now time.Time) (Task, error) {
	name = strings.TrimSpace(name)
	if _, ok := known[name]; !ok {
		return Task{}, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	t := Task{
		ID:          ids.NewAt(now),
		Name:        name,
		RequestedBy: requestedBy,
		EnqueuedAt:  now.UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Task{}, fmt.Errorf("encode payload: %w", err)
		}
		t.Payload = data
	}
	return t, nil
}

// Publisher enqueues tasks.
type Publisher interface {
	Enqueue(ctx context.Context, t Task) error
}
