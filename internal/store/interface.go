package store

import (
	"context"

	"breachwatch/internal/models"
)

// MirrorStore abstracts the reference data store used by the sync engine.
type MirrorStore interface {
	CountIdentities(ctx context.Context) (int, error)
	InsertIdentities(ctx context.Context, emails []string) (int, error)
	ListIdentities(ctx context.Context) ([]models.Identity, error)
	InsertBreaches(ctx context.Context, breaches []models.Breach) (int, error)
	GetBreachByName(ctx context.Context, name string) (*models.Breach, error)
	InsertDataClasses(ctx context.Context, names []string) (int, error)
	ListIdentityBreachIDs(ctx context.Context, identityID int64) ([]int64, error)
	AddIdentityBreaches(ctx context.Context, identityID int64, breachIDs []int64) (int, error)
	ListIdentityPastes(ctx context.Context, identityID int64) ([]models.Paste, error)
	AddIdentityPastes(ctx context.Context, identityID int64, pastes []models.Paste) (PasteLinkResult, error)
}

var _ MirrorStore = (*Store)(nil)
