package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SourceResults names race result batches in anomaly reports and metrics.
const SourceResults = "results"

const resultDateLayout = "2006-01-02"

// RaceResult is one rider's finish in a team race.
type RaceResult struct {
	RiderID   string `json:"zwid"`
	EventID   string `json:"event_id"`
	EventDate string `json:"event_date,omitempty"`
	Position  int    `json:"position"`
}

func (r *RaceResult) UnmarshalJSON(data []byte) error {
	type plain RaceResult
	aux := struct {
		*plain
		RiderID json.RawMessage `json:"zwid"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.RiderID = rawRiderID(aux.RiderID)
	return nil
}

var (
	errMissingEvent = errors.New("missing event id")
	errEventDate    = errors.New("event date is not YYYY-MM-DD")
	errBadPosition  = errors.New("position is negative")
)

// normalize returns the parsed rider id, or the reason the result is skipped.
func (r *RaceResult) normalize() (int64, error) {
	id, err := ParseRiderID(r.RiderID)
	if err != nil {
		return 0, err
	}
	r.EventID = strings.TrimSpace(r.EventID)
	if r.EventID == "" {
		return 0, errMissingEvent
	}
	r.EventDate = strings.TrimSpace(r.EventDate)
	if r.EventDate != "" {
		if _, err := time.Parse(resultDateLayout, r.EventDate); err != nil {
			return 0, errEventDate
		}
	}
	if r.Position < 0 {
		return 0, errBadPosition
	}
	return id, nil
}

type resultKey struct {
	rider int64
	event string
}

// IngestResults stores a batch of race results. Invalid records are reported
// as anomalies and skipped; a repeated rider and event pair keeps the last
// occurrence. A batch with records but none valid is rejected.
func (s *Service) IngestResults(ctx context.Context, results []RaceResult) (IngestReport, error) {
	rep := IngestReport{Source: SourceResults, Received: len(results)}
	if len(results) == 0 {
		return rep, fmt.Errorf("%w: no results", ErrInvalidInput)
	}
	seen := make(map[resultKey]int, len(results))
	batch := make([]RaceResult, 0, len(results))
	for _, r := range results {
		raw := r.RiderID
		id, err := r.normalize()
		if err != nil {
			rep.Anomalies = append(rep.Anomalies, Anomaly{Source: SourceResults, RawID: raw, Reason: err.Error()})
			s.log.Warn("roster_anomaly",
				zap.String("source", SourceResults),
				zap.String("raw_id", raw),
				zap.String("event_id", r.EventID),
				zap.Error(err),
			)
			continue
		}
		r.RiderID = strconv.FormatInt(id, 10)
		k := resultKey{rider: id, event: r.EventID}
		if i, ok := seen[k]; ok {
			batch[i] = r
			continue
		}
		seen[k] = len(batch)
		batch = append(batch, r)
	}
	s.report(rep.Anomalies)
	if len(batch) == 0 {
		return rep, fmt.Errorf("%w: no valid results among %d", ErrInvalidInput, rep.Received)
	}
	sort.SliceStable(batch, func(i, j int) bool {
		if batch[i].RiderID != batch[j].RiderID {
			return batch[i].RiderID < batch[j].RiderID
		}
		return batch[i].EventID < batch[j].EventID
	})
	if err := s.profiles.UpsertRaceResults(ctx, batch); err != nil {
		return rep, fmt.Errorf("upsert results: %w", err)
	}
	rep.Stored = len(batch)
	s.log.Info("roster_ingest",
		zap.String("source", rep.Source),
		zap.Int("received", rep.Received),
		zap.Int("stored", rep.Stored),
	)
	return rep, nil
}
