package team

import (
	"context"

	"github.com/google/uuid"
)

// ApplicationStore persists membership applications. Discord ids are unique;
// CreateApplication returns ErrConflict for a second application.
type ApplicationStore interface {
	CreateApplication(ctx context.Context, a Application) (Application, error)
	GetApplication(ctx context.Context, id uuid.UUID) (Application, error)
	ApplicationByDiscordID(ctx context.Context, discordID string) (Application, error)
	// ListApplications returns every application when status is empty.
	ListApplications(ctx context.Context, status ApplicationStatus) ([]Application, error)
	UpdateApplication(ctx context.Context, a Application) (Application, error)
}

// LinkStore persists team links.
type LinkStore interface {
	CreateLink(ctx context.Context, l Link) (Link, error)
	GetLink(ctx context.Context, id string) (Link, error)
	UpdateLink(ctx context.Context, l Link) (Link, error)
	DeleteLink(ctx context.Context, id string) error
	ListLinks(ctx context.Context) ([]Link, error)
}
