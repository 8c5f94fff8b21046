package verification

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Type is the physical attribute a record asserts.
type Type string

const (
	TypeWeightFull  Type = "weight_full"
	TypeWeightLight Type = "weight_light"
	TypeHeight      Type = "height"
	TypePower       Type = "power"
)

// Types lists every verification type in display order.
var Types = []Type{TypeWeightFull, TypeWeightLight, TypeHeight, TypePower}

// ParseType validates a verification type name.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown verification type %q", ErrInvalidInput, s)
}

// Status is the review state of a record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// MediaType describes the evidence.
type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaPhoto MediaType = "photo"
	MediaLink  MediaType = "link"
	MediaOther MediaType = "other"
)

func parseMediaType(s string) (MediaType, error) {
	switch m := MediaType(strings.ToLower(strings.TrimSpace(s))); m {
	case MediaVideo, MediaPhoto, MediaLink, MediaOther:
		return m, nil
	case "":
		return MediaLink, nil
	default:
		return "", fmt.Errorf("%w: unknown media type %q", ErrInvalidInput, s)
	}
}

// Record is evidence submitted by an account for one attribute.
type Record struct {
	ID              string     `json:"id"`
	AccountID       string     `json:"account_id"`
	Type            Type       `json:"verify_type"`
	MediaType       MediaType  `json:"media_type"`
	URL             string     `json:"url"`
	WeightKg        float64    `json:"weight,omitempty"`
	HeightCm        int        `json:"height,omitempty"`
	FTP             int        `json:"ftp,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	SameGender      bool       `json:"same_gender"`
	Status          Status     `json:"status"`
	EvidenceDate    time.Time  `json:"evidence_date"`
	ReviewedBy      string     `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

var (
	youtubeRe = regexp.MustCompile(`(?:youtube\.com/(?:watch\?v=|shorts/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)
	vimeoRe   = regexp.MustCompile(`vimeo\.com/(\d+)`)
)

// URLKind classifies the evidence link: youtube, vimeo, image or other.
func (r Record) URLKind() string {
	u := strings.ToLower(r.URL)
	switch {
	case u == "":
		return "other"
	case strings.Contains(u, "youtube.com/watch"), strings.Contains(u, "youtu.be/"):
		return "youtube"
	case strings.Contains(u, "vimeo.com/"):
		return "vimeo"
	}
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
		if strings.HasSuffix(u, ext) {
			return "image"
		}
	}
	return "other"
}

// EmbedURL returns a player URL for YouTube and Vimeo evidence.
func (r Record) EmbedURL() string {
	if m := youtubeRe.FindStringSubmatch(r.URL); m != nil {
		return "https://www.youtube-nocookie.com/embed/" + m[1] + "?rel=0"
	}
	if m := vimeoRe.FindStringSubmatch(r.URL); m != nil {
		return "https://player.vimeo.com/video/" + m[1]
	}
	return ""
}
