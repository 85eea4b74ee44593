package access

import (
	"context"
	"database/sql"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ClaimGrant is the one-shot mutation applied when a code is bound: usedAt
// set, deadline cleared, claimant and package snapshot written.
type ClaimGrant struct {
	At       time.Time
	Claimant Claimant
	Package  Package
}

// AccessCodes is the credential store for access code records. Implemented
// over bun; tests may substitute an in-memory stub since the interface stays
// narrow.
type AccessCodes interface {
	Create(ctx context.Context, record *AccessCode) (*AccessCode, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *AccessCode) (*AccessCode, error)
	GetByCode(ctx context.Context, code string) (*AccessCode, error)
	GetByCodeTx(ctx context.Context, tx bun.IDB, code string) (*AccessCode, error)

	// ClaimTx is the compare-and-swap claim: the update is conditioned on
	// used_at still being null and reports whether this caller won the bind.
	ClaimTx(ctx context.Context, tx bun.IDB, id uuid.UUID, grant ClaimGrant) (bool, error)

	// TouchTx refreshes last_access_at and, when non-empty, the two display
	// fields. Identity fields are never written here.
	TouchTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time, name, avatarURL string) error

	FindBinding(ctx context.Context, uid, server, packageID string) (*AccessCode, error)
	FindBindingTx(ctx context.Context, tx bun.IDB, uid, server, packageID string) (*AccessCode, error)

	ListClaimed(ctx context.Context) ([]*AccessCode, error)

	// PurgeExpired deletes unclaimed codes past their registration deadline.
	// Bound codes are never touched. Safe to run concurrently with itself.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	PurgeExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error)
}

type accessCodes struct {
	repository.Repository[*AccessCode]
	db *bun.DB
}

var _ AccessCodes = (*accessCodes)(nil)

// NewAccessCodesRepository builds the bun backed store.
func NewAccessCodesRepository(db *bun.DB) AccessCodes {
	repo := repository.NewRepository[*AccessCode](db, repository.ModelHandlers[*AccessCode]{
		NewRecord: func() *AccessCode { return &AccessCode{} },
		GetID: func(c *AccessCode) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *AccessCode, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
		GetIdentifier: func() string {
			return "code"
		},
	})

	return &accessCodes{
		Repository: repo,
		db:         db,
	}
}

func (a *accessCodes) Create(ctx context.Context, record *AccessCode) (*AccessCode, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *accessCodes) CreateTx(ctx context.Context, tx bun.IDB, record *AccessCode) (*AccessCode, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (a *accessCodes) GetByCode(ctx context.Context, code string) (*AccessCode, error) {
	return a.GetByCodeTx(ctx, a.db, code)
}

func (a *accessCodes) GetByCodeTx(ctx context.Context, tx bun.IDB, code string) (*AccessCode, error) {
	record := &AccessCode{}
	err := tx.NewSelect().Model(record).Where("ac.code = ?", code).Limit(1).Scan(ctx)
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up access code")
	}
	return record, nil
}

func (a *accessCodes) ClaimTx(ctx context.Context, tx bun.IDB, id uuid.UUID, grant ClaimGrant) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*AccessCode)(nil)).
		Set("used_at = ?", grant.At).
		Set("last_access_at = ?", grant.At).
		Set("expires_at = NULL").
		Set("claimant_uid = ?", grant.Claimant.UID).
		Set("claimant_name = ?", grant.Claimant.Name).
		Set("claimant_server = ?", grant.Claimant.Server).
		Set("claimant_avatar_url = ?", grant.Claimant.AvatarURL).
		Set("package_id = ?", grant.Package.ID).
		Set("package_name = ?", grant.Package.Name).
		Set("updated_at = ?", grant.At).
		Where("id = ?", id).
		Where("used_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to claim access code")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read claim result")
	}

	return affected > 0, nil
}

func (a *accessCodes) TouchTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time, name, avatarURL string) error {
	q := tx.NewUpdate().
		Model((*AccessCode)(nil)).
		Set("last_access_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("used_at IS NOT NULL")

	if name != "" {
		q = q.Set("claimant_name = ?", name)
	}
	if avatarURL != "" {
		q = q.Set("claimant_avatar_url = ?", avatarURL)
	}

	if _, err := q.Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to refresh access code")
	}
	return nil
}

func (a *accessCodes) FindBinding(ctx context.Context, uid, server, packageID string) (*AccessCode, error) {
	return a.FindBindingTx(ctx, a.db, uid, server, packageID)
}

func (a *accessCodes) FindBindingTx(ctx context.Context, tx bun.IDB, uid, server, packageID string) (*AccessCode, error) {
	record := &AccessCode{}
	err := tx.NewSelect().
		Model(record).
		Where("ac.claimant_uid = ?", uid).
		Where("ac.claimant_server = ?", server).
		Where("ac.package_id = ?", packageID).
		Where("ac.used_at IS NOT NULL").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccessNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up access binding")
	}
	return record, nil
}

func (a *accessCodes) ListClaimed(ctx context.Context) ([]*AccessCode, error) {
	var records []*AccessCode
	err := a.db.NewSelect().
		Model(&records).
		Where("ac.used_at IS NOT NULL").
		Order("ac.used_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list claimed access codes")
	}
	return records, nil
}

func (a *accessCodes) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return a.PurgeExpiredTx(ctx, a.db, now)
}

func (a *accessCodes) PurgeExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error) {
	res, err := tx.NewDelete().
		Model((*AccessCode)(nil)).
		Where("used_at IS NULL").
		Where("expires_at IS NOT NULL").
		Where("expires_at < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to purge expired access codes")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

// IsUniqueViolation reports whether an insert failed on the code uniqueness
// constraint, across the drivers we run against.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "Duplicate entry")
}
