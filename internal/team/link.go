package team

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// LinkType tags a team link for filtering.
type LinkType string

const (
	LinkAvailability LinkType = "availability"
	LinkEvent        LinkType = "event"
	LinkForm         LinkType = "form"
	LinkFRR          LinkType = "frr"
	LinkSignup       LinkType = "signup"
	LinkSpreadsheet  LinkType = "spreadsheet"
	LinkTTT          LinkType = "ttt"
	LinkWebsite      LinkType = "website"
	LinkClubLadder   LinkType = "club_ladder"
	LinkZRL          LinkType = "zrl"
	LinkZwiftPower   LinkType = "zwiftpower"
	LinkZwiftRacing  LinkType = "zwiftracing"
	LinkOther        LinkType = "other"
)

var linkTypes = map[LinkType]struct{}{
	LinkAvailability: {},
	LinkEvent:        {},
	LinkForm:         {},
	LinkFRR:          {},
	LinkSignup:       {},
	LinkSpreadsheet:  {},
	LinkTTT:          {},
	LinkWebsite:      {},
	LinkClubLadder:   {},
	LinkZRL:          {},
	LinkZwiftPower:   {},
	LinkZwiftRacing:  {},
	LinkOther:        {},
}

// ParseLinkType accepts a known link type in any case.
func ParseLinkType(raw string) (LinkType, error) {
	t := LinkType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := linkTypes[t]; !ok {
		return "", fmt.Errorf("%w: unknown link type %q", ErrInvalidInput, raw)
	}
	return t, nil
}

const maxLinkURL = 500

// Link points members at a team resource, optionally within a time window.
type Link struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	Types       []LinkType `json:"link_types"`
	Active      bool       `json:"active"`
	OpenAt      *time.Time `json:"date_open"`
	CloseAt     *time.Time `json:"date_closed"`
	CreatedAt   time.Time  `json:"date_added"`
	UpdatedAt   time.Time  `json:"date_edited"`
}

// Visible reports whether the link is shown at now: it must be active, open
// at or before now and not yet closed. Missing bounds are unbounded.
func (l Link) Visible(now time.Time) bool {
	if !l.Active {
		return false
	}
	if l.OpenAt != nil && now.Before(*l.OpenAt) {
		return false
	}
	return l.CloseAt == nil || now.Before(*l.CloseAt)
}

func (l Link) HasType(t LinkType) bool {
	return slices.Contains(l.Types, t)
}

// LinkRequest creates or replaces a link. Active defaults to true.
type LinkRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	Types       []string   `json:"link_types"`
	Active      *bool      `json:"active"`
	OpenAt      *time.Time `json:"date_open"`
	CloseAt     *time.Time `json:"date_closed"`
}

func (r LinkRequest) apply(l *Link) error {
	title := strings.TrimSpace(r.Title)
	if title == "" || len(title) > 255 {
		return fmt.Errorf("%w: title must be 1-255 characters", ErrInvalidInput)
	}
	link := strings.TrimSpace(r.URL)
	if u, err := url.Parse(link); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an http(s) link", ErrInvalidInput)
	}
	if len(link) > maxLinkURL {
		return fmt.Errorf("%w: url is too long", ErrInvalidInput)
	}
	if r.OpenAt != nil && r.CloseAt != nil && !r.CloseAt.After(*r.OpenAt) {
		return fmt.Errorf("%w: date_closed must be after date_open", ErrInvalidInput)
	}
	types := make([]LinkType, 0, len(r.Types))
	for _, raw := range r.Types {
		t, err := ParseLinkType(raw)
		if err != nil {
			return err
		}
		if !slices.Contains(types, t) {
			types = append(types, t)
		}
	}
	l.Title = title
	l.Description = strings.TrimSpace(r.Description)
	l.URL = link
	l.Types = types
	l.Active = r.Active == nil || *r.Active
	l.OpenAt = utcPtr(r.OpenAt)
	l.CloseAt = utcPtr(r.CloseAt)
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
