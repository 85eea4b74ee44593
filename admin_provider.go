package access

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AdminTracker is the slice of the admin store the provider needs.
type AdminTracker interface {
	GetByIdentifier(ctx context.Context, identifier string) (*AdminUser, error)
	TrackAttemptedLogin(ctx context.Context, admin *AdminUser) error
	TrackSuccessfulLogin(ctx context.Context, admin *AdminUser) error
}

// MaxLoginAttempts is the number of failed logins an admin gets inside the
// cool down window before we stop checking passwords.
var MaxLoginAttempts = 5

// CoolDownPeriod is the window over which failed logins accumulate.
var CoolDownPeriod = "24h"

// AdminProvider resolves admin identities for login. It hides whether an
// identifier exists: unknown accounts and bad passwords fail the same way.
type AdminProvider struct {
	store     AdminTracker
	Validator func(*AdminUser) error
	logger    Logger
}

var _ IdentityProvider = (*AdminProvider)(nil)

// NewAdminProvider will create a new AdminProvider
func NewAdminProvider(store AdminTracker) *AdminProvider {
	return &AdminProvider{
		store:     store,
		logger:    defLogger{},
		Validator: defaultAdminValidator,
	}
}

func (p *AdminProvider) WithLogger(l Logger) *AdminProvider {
	if l != nil {
		p.logger = l
	}
	return p
}

func (p *AdminProvider) validate(admin *AdminUser) error {
	if p.Validator != nil {
		return p.Validator(admin)
	}
	return defaultAdminValidator(admin)
}

// VerifyIdentity will find the admin, compare the password, and return the
// identity.
func (p *AdminProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	admin, err := p.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve admin during verification")
	}

	if admin == nil {
		return nil, ErrIdentityNotFound
	}

	if admin.LoginAttemptAt != nil {
		expired, err := isOutsideThresholdPeriod(*admin.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if expired {
			admin.LoginAttempts = 0
		}
	}

	if admin.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, admin.PasswordHash); err != nil {
		if err2 := p.store.TrackAttemptedLogin(ctx, admin); err2 != nil {
			return nil, goerrors.Wrap(err2, goerrors.CategoryInternal, "failed to track login attempt")
		}

		return nil, ErrMismatchedHashAndPassword
	}

	if err := p.store.TrackSuccessfulLogin(ctx, admin); err != nil {
		p.logger.Error("failed to track successful login: %v", err)
	}

	if err := p.validate(admin); err != nil {
		return nil, err
	}

	return NewIdentityFromAdmin(admin), nil
}

func (p *AdminProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	admin, err := p.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if admin == nil {
		return nil, ErrIdentityNotFound
	}

	if err := p.validate(admin); err != nil {
		return nil, err
	}

	return NewIdentityFromAdmin(admin), nil
}

func defaultAdminValidator(a *AdminUser) error {
	if ValidRole(a.Role) {
		return nil
	}
	return goerrors.New("admin has an unknown or invalid role", goerrors.CategoryAuth).
		WithTextCode("INVALID_ROLE").
		WithMetadata(map[string]any{"role": a.Role, "admin_id": a.ID.String()})
}

// isWithinThresholdPeriod checks if the given time is within the threshold.
func isWithinThresholdPeriod(t time.Time, pattern string) (bool, error) {
	duration, err := time.ParseDuration(pattern)
	if err != nil {
		return false, err
	}

	threshold := time.Now().Add(-duration)
	return t.After(threshold), nil
}

// isOutsideThresholdPeriod is the negation of isWithinThresholdPeriod.
func isOutsideThresholdPeriod(t time.Time, pattern string) (bool, error) {
	valid, err := isWithinThresholdPeriod(t, pattern)
	if err != nil {
		return false, err
	}
	return !valid, nil
}

// SeedAdmin inserts a staff account with a freshly hashed password. Intended
// for bootstrap scripts and tests.
func SeedAdmin(ctx context.Context, store Admins, tx bun.IDB, email, username, password, role string) (*AdminUser, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	return store.RegisterTx(ctx, tx, &AdminUser{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	})
}
