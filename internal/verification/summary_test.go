package verification

import (
	"testing"
)

func TestSummarize(t *testing.T) {
	asOf := date(2024, 6, 1)
	windows := Windows{TypeWeightFull: 30, TypeWeightLight: 30, TypeHeight: 0, TypePower: 365}
	records := []Record{
		{Type: TypeWeightFull, Status: StatusVerified, EvidenceDate: date(2024, 1, 1)},
		{Type: TypeWeightFull, Status: StatusPending, EvidenceDate: date(2024, 5, 30), CreatedAt: date(2024, 5, 30)},
		{Type: TypeHeight, Status: StatusVerified, EvidenceDate: date(2021, 1, 1)},
		{Type: TypePower, Status: StatusPending, EvidenceDate: date(2024, 5, 1), CreatedAt: date(2024, 5, 1)},
		{Type: TypePower, Status: StatusRejected, EvidenceDate: date(2024, 4, 1)},
	}
	got := Summarize(records, windows, asOf)

	weight := got[TypeWeightFull]
	if weight.Verified || !weight.Expired || weight.Status != "Pending (expired)" || !weight.HasPending {
		t.Fatalf("unexpected weight_full summary %+v", weight)
	}
	height := got[TypeHeight]
	if !height.Verified || height.Status != "Never expires" || height.DaysRemaining != nil {
		t.Fatalf("unexpected height summary %+v", height)
	}
	power := got[TypePower]
	if power.Verified || power.Status != "Pending" || power.PendingSince == nil {
		t.Fatalf("unexpected power summary %+v", power)
	}
	light := got[TypeWeightLight]
	if light.Verified || light.Status != "No record" {
		t.Fatalf("unexpected weight_light summary %+v", light)
	}
}

func TestEmbedURL(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ?rel=0",
		"https://youtu.be/dQw4w9WgXcQ":                "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ?rel=0",
		"https://vimeo.com/12345":                     "https://player.vimeo.com/video/12345",
		"https://example.com/scale.jpg":               "",
	}
	for in, want := range cases {
		if got := (Record{URL: in}).EmbedURL(); got != want {
			t.Fatalf("EmbedURL(%q)=%q, want %q", in, got, want)
		}
	}
	if kind := (Record{URL: "https://example.com/scale.JPG"}).URLKind(); kind != "image" {
		t.Fatalf("unexpected kind %q", kind)
	}
}
