// Package team manages membership applications and shared team links.
package team

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gottabike.org/internal/ids"
)

type Service struct {
	apps  ApplicationStore
	links LinkStore
	log   *zap.Logger
	now   func() time.Time
}

func NewService(apps ApplicationStore, links LinkStore, log *zap.Logger, now func() time.Time) (*Service, error) {
	if apps == nil || links == nil {
		return nil, errors.New("team: application and link stores are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{apps: apps, links: links, log: log, now: now}, nil
}

// Apply opens an application for a Discord user. A user has at most one
// application; a repeated call returns the stored one with created false.
func (s *Service) Apply(ctx context.Context, req ApplicationRequest) (Application, bool, error) {
	if err := req.validate(); err != nil {
		return Application{}, false, err
	}
	discordID := strings.TrimSpace(req.DiscordID)
	existing, err := s.apps.ApplicationByDiscordID(ctx, discordID)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, ErrNotFound):
		return Application{}, false, err
	}
	now := s.now().UTC()
	app := Application{
		ID:                uuid.New(),
		DiscordID:         discordID,
		DiscordUsername:   strings.TrimSpace(req.DiscordUsername),
		ServerNickname:    strings.TrimSpace(req.ServerNickname),
		AvatarURL:         strings.TrimSpace(req.AvatarURL),
		GuildAvatarURL:    strings.TrimSpace(req.GuildAvatarURL),
		DiscordUserData:   req.DiscordUserData,
		DiscordMemberData: req.DiscordMemberData,
		ModalFormData:     req.ModalFormData,
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		ApplicantNotes:    strings.TrimSpace(req.ApplicantNotes),
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	created, err := s.apps.CreateApplication(ctx, app)
	if errors.Is(err, ErrConflict) {
		// Lost a race with a concurrent submit for the same user.
		existing, err := s.apps.ApplicationByDiscordID(ctx, discordID)
		return existing, false, err
	}
	if err != nil {
		return Application{}, false, err
	}
	s.log.Info("membership_application_created",
		zap.String("application_id", created.ID.String()),
		zap.String("discord_id", created.DiscordID),
	)
	return created, true, nil
}

// ApplicationFor returns the application of a Discord user.
func (s *Service) ApplicationFor(ctx context.Context, discordID string) (Application, error) {
	discordID = strings.TrimSpace(discordID)
	if discordID == "" {
		return Application{}, fmt.Errorf("%w: discord id is required", ErrInvalidInput)
	}
	return s.apps.ApplicationByDiscordID(ctx, discordID)
}

// Application loads an application by its id, which doubles as the
// applicant's link credential.
func (s *Service) Application(ctx context.Context, rawID string) (Application, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return Application{}, fmt.Errorf("%w: application id", ErrInvalidInput)
	}
	return s.apps.GetApplication(ctx, id)
}

// UpdateApplicant applies the applicant's own edits. Only pending
// applications can change, and both agreements must be accepted.
func (s *Service) UpdateApplicant(ctx context.Context, rawID string, upd ApplicantUpdate) (Application, error) {
	app, err := s.Application(ctx, rawID)
	if err != nil {
		return Application{}, err
	}
	if !app.Editable() {
		return Application{}, fmt.Errorf("%w: application is %s", ErrConflict, app.Status)
	}
	if !upd.AgreePrivacy || !upd.AgreeTOS {
		return Application{}, fmt.Errorf("%w: the privacy policy and terms of service must be accepted", ErrInvalidInput)
	}
	app.FirstName = strings.TrimSpace(upd.FirstName)
	app.LastName = strings.TrimSpace(upd.LastName)
	app.AgreePrivacy = upd.AgreePrivacy
	app.AgreeTOS = upd.AgreeTOS
	app.ApplicantNotes = strings.TrimSpace(upd.ApplicantNotes)
	app.UpdatedAt = s.now().UTC()
	updated, err := s.apps.UpdateApplication(ctx, app)
	if err != nil {
		return Application{}, err
	}
	s.log.Info("membership_application_updated",
		zap.String("application_id", updated.ID.String()),
		zap.Bool("complete", updated.Complete()),
	)
	return updated, nil
}

// Applications lists applications, newest first, optionally by status.
func (s *Service) Applications(ctx context.Context, rawStatus string) ([]Application, error) {
	var status ApplicationStatus
	if strings.TrimSpace(rawStatus) != "" {
		st, err := ParseStatus(rawStatus)
		if err != nil {
			return nil, err
		}
		status = st
	}
	apps, err := s.apps.ListApplications(ctx, status)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].CreatedAt.After(apps[j].CreatedAt) })
	return apps, nil
}

// ReviewApplication records an admin's status change or notes. It reports
// whether the status changed.
func (s *Service) ReviewApplication(ctx context.Context, rawID string, rev ApplicationReview, reviewer string) (Application, bool, error) {
	app, err := s.Application(ctx, rawID)
	if err != nil {
		return Application{}, false, err
	}
	old := app.Status
	if strings.TrimSpace(rev.Status) != "" {
		if app.Status, err = ParseStatus(rev.Status); err != nil {
			return Application{}, false, err
		}
	}
	if rev.AdminNotes != nil {
		app.AdminNotes = strings.TrimSpace(*rev.AdminNotes)
	}
	app.ModifiedBy = reviewer
	app.UpdatedAt = s.now().UTC()
	updated, err := s.apps.UpdateApplication(ctx, app)
	if err != nil {
		return Application{}, false, err
	}
	s.log.Info("membership_application_reviewed",
		zap.String("application_id", updated.ID.String()),
		zap.String("old_status", string(old)),
		zap.String("new_status", string(updated.Status)),
		zap.String("reviewer", reviewer),
	)
	return updated, old != updated.Status, nil
}

// CreateLink validates and stores a new link.
func (s *Service) CreateLink(ctx context.Context, req LinkRequest) (Link, error) {
	now := s.now().UTC()
	l := Link{ID: ids.NewAt(now), CreatedAt: now, UpdatedAt: now}
	if err := req.apply(&l); err != nil {
		return Link{}, err
	}
	return s.links.CreateLink(ctx, l)
}

// UpdateLink replaces the editable fields of a link.
func (s *Service) UpdateLink(ctx context.Context, id string, req LinkRequest) (Link, error) {
	l, err := s.links.GetLink(ctx, strings.TrimSpace(id))
	if err != nil {
		return Link{}, err
	}
	if err := req.apply(&l); err != nil {
		return Link{}, err
	}
	l.UpdatedAt = s.now().UTC()
	return s.links.UpdateLink(ctx, l)
}

func (s *Service) DeleteLink(ctx context.Context, id string) error {
	return s.links.DeleteLink(ctx, strings.TrimSpace(id))
}

// Links returns links ordered by title. Unless all is set only links visible
// now are returned. A non-empty rawType keeps links carrying that type.
func (s *Service) Links(ctx context.Context, rawType string, all bool) ([]Link, error) {
	var want LinkType
	if strings.TrimSpace(rawType) != "" {
		t, err := ParseLinkType(rawType)
		if err != nil {
			return nil, err
		}
		want = t
	}
	links, err := s.links.ListLinks(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]Link, 0, len(links))
	for _, l := range links {
		if !all && !l.Visible(now) {
			continue
		}
		if want != "" && !l.HasType(want) {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	return out, nil
}
