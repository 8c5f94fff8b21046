package verification

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultRequirements apply to divisions without an explicit entry.
var DefaultRequirements = []Type{TypeWeightFull, TypeHeight}

// RequirementMap maps a division (category letter) to the verification types
// it requires.
type RequirementMap map[string][]Type

// Required returns the types division must hold, falling back to
// DefaultRequirements when the division is empty or unmapped.
func (m RequirementMap) Required(division string) []Type {
	if reqs, ok := m[strings.ToUpper(strings.TrimSpace(division))]; ok && division != "" {
		return reqs
	}
	out := make([]Type, len(DefaultRequirements))
	copy(out, DefaultRequirements)
	return out
}

// ParseRequirements decodes {"A": ["weight_full", "height", "power"], ...}.
// An explicit empty list means the division has no requirements.
func ParseRequirements(raw string) (RequirementMap, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RequirementMap{}, nil
	}
	var decoded map[string][]string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("%w: requirements must be a JSON object of arrays: %v", ErrInvalidInput, err)
	}
	out := make(RequirementMap, len(decoded))
	for division, names := range decoded {
		key := strings.ToUpper(strings.TrimSpace(division))
		if key == "" {
			return nil, fmt.Errorf("%w: empty division name", ErrInvalidInput)
		}
		types := make([]Type, 0, len(names))
		for _, n := range names {
			t, err := ParseType(n)
			if err != nil {
				return nil, err
			}
			types = append(types, t)
		}
		out[key] = types
	}
	return out, nil
}

// Missing lists the required types that have no valid record on asOf.
func Missing(records []Record, required []Type, windows Windows, asOf time.Time) []Type {
	var missing []Type
	for _, t := range required {
		if !hasValid(records, t, windows[t], asOf) {
			missing = append(missing, t)
		}
	}
	return missing
}

// RaceReady reports whether every type required for division has at least
// one verified record that is still valid on asOf.
func RaceReady(records []Record, division string, reqs RequirementMap, windows Windows, asOf time.Time) bool {
	return len(Missing(records, reqs.Required(division), windows, asOf)) == 0
}

func hasValid(records []Record, t Type, days int, asOf time.Time) bool {
	for _, rec := range records {
		if rec.Type == t && IsValid(rec, days, asOf) {
			return true
		}
	}
	return false
}
