package verification

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func verified(t Type, evidence time.Time) Record {
	return Record{Type: t, Status: StatusVerified, EvidenceDate: evidence}
}

func TestRaceReadyRequiresEveryType(t *testing.T) {
	asOf := date(2024, 6, 1)
	windows := Windows{TypeWeightFull: 30, TypeHeight: 0}
	reqs := RequirementMap{}

	both := []Record{verified(TypeWeightFull, date(2024, 5, 20)), verified(TypeHeight, date(2020, 1, 1))}
	if !RaceReady(both, "B", reqs, windows, asOf) {
		t.Fatal("expected ready with both records")
	}

	onlyWeight := []Record{verified(TypeWeightFull, date(2024, 5, 20))}
	if RaceReady(onlyWeight, "B", reqs, windows, asOf) {
		t.Fatal("missing height must not be ready")
	}

	expiredWeight := []Record{verified(TypeWeightFull, date(2024, 1, 1)), verified(TypeHeight, date(2020, 1, 1))}
	if RaceReady(expiredWeight, "B", reqs, windows, asOf) {
		t.Fatal("expired weight must not be ready")
	}

	// Two weights do not stand in for a height.
	twoWeights := []Record{verified(TypeWeightFull, date(2024, 5, 20)), verified(TypeWeightFull, date(2024, 5, 21))}
	if RaceReady(twoWeights, "B", reqs, windows, asOf) {
		t.Fatal("existence of records is not enough")
	}
}

func TestRaceReadyUsesDivisionRequirements(t *testing.T) {
	asOf := date(2024, 6, 1)
	windows := DefaultWindows()
	reqs := RequirementMap{
		"A": {TypeWeightFull, TypeHeight, TypePower},
		"E": {},
	}
	records := []Record{verified(TypeWeightFull, date(2024, 5, 1)), verified(TypeHeight, date(2024, 5, 1))}

	if RaceReady(records, "A", reqs, windows, asOf) {
		t.Fatal("division A requires power")
	}
	if !RaceReady(records, "C", reqs, windows, asOf) {
		t.Fatal("unmapped division should use the fallback list")
	}
	if !RaceReady(nil, "E", reqs, windows, asOf) {
		t.Fatal("explicit empty requirement list means ready")
	}
	if !RaceReady(records, "", reqs, windows, asOf) {
		t.Fatal("absent division should use the fallback list")
	}
	got := Missing(records, reqs.Required("a"), windows, asOf)
	if diff := cmp.Diff([]Type{TypePower}, got); diff != "" {
		t.Fatalf("missing types mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRequirements(t *testing.T) {
	m, err := ParseRequirements(`{"a": ["weight_full", "power"], "B": []}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := RequirementMap{"A": {TypeWeightFull, TypePower}, "B": {}}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Fatalf("requirements mismatch (-want +got):\n%s", diff)
	}
	if _, err := ParseRequirements(`{"A": ["wingspan"]}`); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := ParseRequirements(`["A"]`); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestRequiredReturnsCopyOfFallback(t *testing.T) {
	var m RequirementMap
	got := m.Required("X")
	got[0] = TypePower
	if DefaultRequirements[0] != TypeWeightFull {
		t.Fatal("fallback list was mutated through Required")
	}
}
