package access

import (
	"context"
	"net/mail"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ResetAdminPasswordSQL rotates an admin credential in a single statement.
var ResetAdminPasswordSQL = `UPDATE "admin_users" AS "au"
SET
	"password_hash" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"au"."id" = ?
RETURNING *;`

// Admins is the staff account store. Identifier lookups accept an id, email,
// or username and try each plausible column in that order.
type Admins interface {
	Register(ctx context.Context, record *AdminUser) (*AdminUser, error)
	RegisterTx(ctx context.Context, tx bun.IDB, record *AdminUser) (*AdminUser, error)

	GetByIdentifier(ctx context.Context, identifier string) (*AdminUser, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*AdminUser, error)

	TrackAttemptedLogin(ctx context.Context, admin *AdminUser) error
	TrackSuccessfulLogin(ctx context.Context, admin *AdminUser) error

	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

type admins struct {
	repository.Repository[*AdminUser]
	db *bun.DB
}

var _ Admins = (*admins)(nil)

// NewAdminsRepository builds the bun backed admin store.
func NewAdminsRepository(db *bun.DB) Admins {
	repo := repository.NewRepository[*AdminUser](db, repository.ModelHandlers[*AdminUser]{
		NewRecord: func() *AdminUser { return &AdminUser{} },
		GetID: func(a *AdminUser) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *AdminUser, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &admins{
		Repository: repo,
		db:         db,
	}
}

func (a *admins) Register(ctx context.Context, record *AdminUser) (*AdminUser, error) {
	return a.RegisterTx(ctx, a.db, record)
}

func (a *admins) RegisterTx(ctx context.Context, tx bun.IDB, record *AdminUser) (*AdminUser, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Role == "" {
		record.Role = RoleViewer
	}
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (a *admins) GetByIdentifier(ctx context.Context, identifier string) (*AdminUser, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier)
}

func (a *admins) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*AdminUser, error) {
	for _, opt := range resolveAdminIdentifier(identifier) {
		record := &AdminUser{}
		err := tx.NewSelect().
			Model(record).
			Where("au."+opt.column+" = ?", opt.value).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up admin")
		}
		return record, nil
	}

	return nil, ErrIdentityNotFound
}

func (a *admins) TrackAttemptedLogin(ctx context.Context, admin *AdminUser) error {
	now := time.Now()
	_, err := a.db.NewUpdate().
		Model((*AdminUser)(nil)).
		Set("login_attempts = ?", admin.LoginAttempts+1).
		Set("login_attempt_at = ?", now).
		Where("id = ?", admin.ID).
		Exec(ctx)
	return err
}

func (a *admins) TrackSuccessfulLogin(ctx context.Context, admin *AdminUser) error {
	// NOTE: a zero value update wont reset login_attempt_at and
	// login_attempts through the ORM, so we issue raw SQL.
	loggedInAt := time.Now()
	_, err := a.db.NewRaw(`
		UPDATE "admin_users" AS "au"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("au".id = ?);
	`, loggedInAt, admin.ID).Exec(ctx)

	return err
}

func (a *admins) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *admins) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := tx.NewRaw(ResetAdminPasswordSQL, passwordHash, id.String()).Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reset admin password")
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrIdentityNotFound
	}

	return nil
}

type identifierOption struct {
	column string
	value  string
}

func resolveAdminIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{column: "id", value: trimmed})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{column: "email", value: trimmed})
	}

	options = append(options, identifierOption{column: "username", value: trimmed})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
