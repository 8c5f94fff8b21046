package team

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gottabike.org/internal/auth"
)

// ApplicationStatus is the review state of a membership application.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

var statusLabels = map[ApplicationStatus]string{
	StatusPending:  "Pending",
	StatusApproved: "Approved",
	StatusRejected: "Rejected",
}

// ParseStatus accepts a known status in any case.
func ParseStatus(raw string) (ApplicationStatus, error) {
	s := ApplicationStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := statusLabels[s]; !ok {
		return "", fmt.Errorf("%w: unknown application status %q", ErrInvalidInput, raw)
	}
	return s, nil
}

func (s ApplicationStatus) Label() string { return statusLabels[s] }

// Application is a request to join the team, opened from Discord.
type Application struct {
	ID                uuid.UUID         `json:"id"`
	DiscordID         string            `json:"discord_id"`
	DiscordUsername   string            `json:"discord_username"`
	ServerNickname    string            `json:"server_nickname"`
	AvatarURL         string            `json:"avatar_url,omitempty"`
	GuildAvatarURL    string            `json:"guild_avatar_url,omitempty"`
	DiscordUserData   map[string]any    `json:"discord_user_data,omitempty"`
	DiscordMemberData map[string]any    `json:"discord_member_data,omitempty"`
	ModalFormData     map[string]any    `json:"modal_form_data,omitempty"`
	FirstName         string            `json:"first_name"`
	LastName          string            `json:"last_name"`
	AgreePrivacy      bool              `json:"agree_privacy"`
	AgreeTOS          bool              `json:"agree_tos"`
	ApplicantNotes    string            `json:"applicant_notes,omitempty"`
	AdminNotes        string            `json:"admin_notes,omitempty"`
	Status            ApplicationStatus `json:"status"`
	ModifiedBy        string            `json:"modified_by,omitempty"`
	CreatedAt         time.Time         `json:"date_created"`
	UpdatedAt         time.Time         `json:"date_modified"`
}

// Complete reports whether the applicant filled in everything required.
func (a Application) Complete() bool {
	return strings.TrimSpace(a.FirstName) != "" &&
		strings.TrimSpace(a.LastName) != "" &&
		a.AgreePrivacy && a.AgreeTOS
}

// Editable is true until an admin approves or rejects the application.
func (a Application) Editable() bool { return a.Status == StatusPending }

// DisplayName prefers the real name, then the server nickname.
func (a Application) DisplayName() string {
	if name := strings.TrimSpace(a.FirstName + " " + a.LastName); name != "" {
		return name
	}
	if a.ServerNickname != "" {
		return a.ServerNickname
	}
	return a.DiscordUsername
}

// ApplicationRequest is what the bot sends when a user submits the join form.
type ApplicationRequest struct {
	DiscordID         string         `json:"discord_id"`
	DiscordUsername   string         `json:"discord_username"`
	ServerNickname    string         `json:"server_nickname"`
	AvatarURL         string         `json:"avatar_url"`
	GuildAvatarURL    string         `json:"guild_avatar_url"`
	DiscordUserData   map[string]any `json:"discord_user_data"`
	DiscordMemberData map[string]any `json:"discord_member_data"`
	ModalFormData     map[string]any `json:"modal_form_data"`
	FirstName         string         `json:"first_name"`
	LastName          string         `json:"last_name"`
	ApplicantNotes    string         `json:"applicant_notes"`
}

func (r ApplicationRequest) validate() error {
	if !auth.IsSnowflake(strings.TrimSpace(r.DiscordID)) {
		return fmt.Errorf("%w: discord_id must be a discord id", ErrInvalidInput)
	}
	if strings.TrimSpace(r.DiscordUsername) == "" {
		return fmt.Errorf("%w: discord_username is required", ErrInvalidInput)
	}
	return nil
}

// ApplicationReview is an admin decision on an application.
type ApplicationReview struct {
	Status     string  `json:"status"`
	AdminNotes *string `json:"admin_notes"`
}

// ApplicantUpdate is what the applicant edits through their application link.
type ApplicantUpdate struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	AgreePrivacy   bool   `json:"agree_privacy"`
	AgreeTOS       bool   `json:"agree_tos"`
	ApplicantNotes string `json:"applicant_notes"`
}
