package dirauth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type profiles struct {
	repo repository.Repository[*Profile]
	db   *bun.DB
}

var _ ProfileStore = (*profiles)(nil)

// NewProfilesRepository returns a ProfileStore backed by the given database.
// Handle and email uniqueness is enforced by the schema; violations surface
// as ErrDuplicateIdentity.
func NewProfilesRepository(db *bun.DB) ProfileStore {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &profiles{
		repo: repo,
		db:   db,
	}
}

func (p *profiles) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	return p.getByColumn(ctx, "email", email)
}

func (p *profiles) GetByHandle(ctx context.Context, handle string) (*Profile, error) {
	return p.getByColumn(ctx, "handle", handle)
}

func (p *profiles) getByColumn(ctx context.Context, column, value string) (*Profile, error) {
	record := &Profile{}
	err := p.db.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrProfileNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query profile by "+column)
	}

	record.EnsureDefaults()
	return record, nil
}

// GetByConfirmationToken returns the profile holding the given outstanding
// confirmation token, provided the token has not expired at now.
func (p *profiles) GetByConfirmationToken(ctx context.Context, token string, now time.Time) (*Profile, error) {
	record := &Profile{}
	err := p.db.NewSelect().
		Model(record).
		Where("?TableAlias.confirmation_token = ?", token).
		Where("?TableAlias.confirmation_expires > ?", now).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrProfileNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query profile by confirmation token")
	}

	record.EnsureDefaults()
	return record, nil
}

func (p *profiles) Create(ctx context.Context, profile *Profile) (*Profile, error) {
	profile.EnsureDefaults()
	created, err := p.repo.Create(ctx, profile)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create profile")
	}
	return created, nil
}

func (p *profiles) Update(ctx context.Context, profile *Profile) (*Profile, error) {
	updated, err := p.repo.Update(ctx, profile)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrProfileNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not update profile")
	}
	return updated, nil
}

// MarkConfirmed flips the confirmation flag and erases the token pair in a
// single statement, so a redeemed token can never be replayed.
func (p *profiles) MarkConfirmed(ctx context.Context, profile *Profile) (*Profile, error) {
	if profile == nil || profile.ID == uuid.Nil {
		return nil, goerrors.New("profile with id is required", goerrors.CategoryBadInput)
	}

	_, err := p.db.NewUpdate().
		Model((*Profile)(nil)).
		Set("confirmed = ?", true).
		Set("confirmation_token = NULL").
		Set("confirmation_expires = NULL").
		Set("updated_at = ?", time.Now()).
		Where("?TableAlias.id = ?", profile.ID).
		Exec(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not mark profile confirmed")
	}

	profile.Confirmed = true
	profile.ConfirmationToken = ""
	profile.ConfirmationExpires = nil
	return profile, nil
}
