package access

import (
	"context"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

var packageIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// RedeemStatus tells a claimant whether this call bound the code or verified
// an existing binding.
type RedeemStatus string

const (
	// StatusRegistered means this call claimed a previously unclaimed code.
	StatusRegistered RedeemStatus = "registered"
	// StatusAllowed means the code was already bound to this exact claimant
	// and package.
	StatusAllowed RedeemStatus = "allowed"
)

// CreatedCode is the admin facing result of code creation.
type CreatedCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RedeemRequest is the claim-or-verify input.
type RedeemRequest struct {
	Code      string   `json:"code"`
	Claimant  Claimant `json:"claimant"`
	PackageID string   `json:"package_id"`
}

// Validate rejects missing fields and malformed package ids before any store
// access.
func (r RedeemRequest) Validate() error {
	err := validation.Errors{
		"code":       validation.Validate(r.Code, validation.Required),
		"uid":        validation.Validate(r.Claimant.UID, validation.Required),
		"name":       validation.Validate(r.Claimant.Name, validation.Required),
		"server":     validation.Validate(r.Claimant.Server, validation.Required),
		"package_id": validation.Validate(r.PackageID, validation.Required),
	}.Filter()
	if err != nil {
		return ErrMissingFields.WithMetadata(map[string]any{"fields": err.Error()})
	}

	if !packageIDPattern.MatchString(r.PackageID) {
		return ErrInvalidPackageID
	}

	return nil
}

// RedeemResult reports the outcome plus the package snapshot the code is
// bound to.
type RedeemResult struct {
	Status  RedeemStatus `json:"status"`
	Package Package      `json:"package"`
}

// CheckAccessRequest is the identity-only verification input used by
// returning clients that no longer carry the code.
type CheckAccessRequest struct {
	UID       string `json:"uid"`
	Server    string `json:"server"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	PackageID string `json:"package_id"`
}

// Validate rejects missing identity fields.
func (r CheckAccessRequest) Validate() error {
	err := validation.Errors{
		"uid":        validation.Validate(r.UID, validation.Required),
		"server":     validation.Validate(r.Server, validation.Required),
		"package_id": validation.Validate(r.PackageID, validation.Required),
	}.Filter()
	if err != nil {
		return ErrMissingFields.WithMetadata(map[string]any{"fields": err.Error()})
	}

	if !packageIDPattern.MatchString(r.PackageID) {
		return ErrInvalidPackageID
	}

	return nil
}

// AccessGrant is the CheckAccess result.
type AccessGrant struct {
	Allowed bool    `json:"allowed"`
	Package Package `json:"package"`
}

// AccessCodeService drives the access code state machine: create, redeem
// (claim or verify), check, list. The claim transition runs as a conditional
// update so two concurrent first-claims of one code can never both win.
type AccessCodeService struct {
	repo       RepositoryManager
	packages   PackageFinder
	generator  *CodeGenerator
	logger     Logger
	activity   ActivitySink
	now        Clock
	codeLength int
}

// NewAccessCodeService creates a service with sane defaults.
func NewAccessCodeService(repo RepositoryManager, packages PackageFinder) *AccessCodeService {
	return &AccessCodeService{
		repo:       repo,
		packages:   packages,
		generator:  NewCodeGenerator(),
		logger:     defLogger{},
		activity:   noopActivitySink{},
		now:        time.Now,
		codeLength: DefaultCodeLength,
	}
}

// WithLogger overrides the logger used by the service.
func (s *AccessCodeService) WithLogger(logger Logger) *AccessCodeService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink attaches an audit sink. Events are recorded after the
// transition commits; sink errors are logged and swallowed.
func (s *AccessCodeService) WithActivitySink(sink ActivitySink) *AccessCodeService {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithCodeGenerator overrides the code generator. Used by tests.
func (s *AccessCodeService) WithCodeGenerator(g *CodeGenerator) *AccessCodeService {
	if g != nil {
		s.generator = g
	}
	return s
}

// WithClock overrides the time source. Used by tests.
func (s *AccessCodeService) WithClock(now Clock) *AccessCodeService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithCodeLength overrides the generated code length.
func (s *AccessCodeService) WithCodeLength(length int) *AccessCodeService {
	if length > 0 {
		s.codeLength = length
	}
	return s
}

// CreateCode mints a new unclaimed code with a registration window of
// ttlMinutes. Any positive ttl is accepted; the transport layer owns
// clamping. Retries generation on uniqueness collision up to
// MaxGenerationAttempts.
func (s *AccessCodeService) CreateCode(ctx context.Context, ttlMinutes int, createdBy string) (*CreatedCode, error) {
	if ttlMinutes <= 0 {
		return nil, ErrMissingFields.WithMetadata(map[string]any{"fields": "ttl_minutes must be positive"})
	}

	s.purgeExpired(ctx)

	now := s.now()
	expiresAt := now.Add(time.Duration(ttlMinutes) * time.Minute)

	for attempt := 0; attempt < MaxGenerationAttempts; attempt++ {
		code, err := s.generator.Generate(s.codeLength)
		if err != nil {
			return nil, err
		}

		record := &AccessCode{
			Code:      code,
			ExpiresAt: &expiresAt,
			CreatedBy: createdBy,
			CreatedAt: &now,
		}

		if _, err := s.repo.AccessCodes().Create(ctx, record); err != nil {
			if IsUniqueViolation(err) {
				s.logger.Debug("access code collision, retrying", "attempt", attempt+1)
				continue
			}
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store access code")
		}

		s.record(ctx, ActivityEvent{
			EventType:  ActivityEventCodeCreated,
			Actor:      createdBy,
			Code:       code,
			OccurredAt: now,
		})

		return &CreatedCode{Code: code, ExpiresAt: expiresAt}, nil
	}

	s.logger.Error("access code generation exhausted after %d attempts", MaxGenerationAttempts)
	return nil, ErrCodeGenerationExhausted
}

// Redeem is the central transition. For an unclaimed code inside its
// registration window it binds claimant and package ("registered"); for a
// code already bound to the same claimant and package it refreshes
// last_access_at ("allowed"); every other combination is a typed rejection.
func (s *AccessCodeService) Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.purgeExpired(ctx)

	var result *RedeemResult

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.IDB) error {
		codes := s.repo.AccessCodes()

		record, err := codes.GetByCodeTx(ctx, tx, req.Code)
		if err != nil {
			return err
		}

		now := s.now()

		if !record.Claimed() {
			if !record.RegistrationOpen(now) {
				return ErrCodeExpired
			}

			pkg, err := s.packages.FindPackageByID(ctx, req.PackageID)
			if err != nil {
				return err
			}

			won, err := codes.ClaimTx(ctx, tx, record.ID, ClaimGrant{
				At:       now,
				Claimant: req.Claimant,
				Package:  *pkg,
			})
			if err != nil {
				return err
			}

			if won {
				result = &RedeemResult{Status: StatusRegistered, Package: *pkg}
				return nil
			}

			// lost the race: someone claimed between our read and the
			// conditional update, re-read and fall through to verification
			record, err = codes.GetByCodeTx(ctx, tx, req.Code)
			if err != nil {
				return err
			}
		}

		if !record.Claimant().Equal(req.Claimant) {
			return ErrCodeAlreadyUsed
		}

		if record.PackageID == "" || record.PackageID != req.PackageID {
			return ErrPackageMismatch
		}

		if err := codes.TouchTx(ctx, tx, record.ID, now, "", ""); err != nil {
			return err
		}

		result = &RedeemResult{Status: StatusAllowed, Package: record.Package()}
		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to redeem access code")
	}

	eventType := ActivityEventCodeVerified
	if result.Status == StatusRegistered {
		eventType = ActivityEventCodeRedeemed
	}
	s.record(ctx, ActivityEvent{
		EventType:  eventType,
		Actor:      req.Claimant.UID,
		Code:       req.Code,
		PackageID:  req.PackageID,
		OccurredAt: s.now(),
	})

	return result, nil
}

// CheckAccess verifies a returning claimant by identity alone: the unique
// bound code matching (uid, server, package). Refreshes last_access_at and,
// when supplied, the display fields; identity fields are never touched.
func (s *AccessCodeService) CheckAccess(ctx context.Context, req CheckAccessRequest) (*AccessGrant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var grant *AccessGrant

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.IDB) error {
		codes := s.repo.AccessCodes()

		record, err := codes.FindBindingTx(ctx, tx, req.UID, req.Server, req.PackageID)
		if err != nil {
			return err
		}

		if err := codes.TouchTx(ctx, tx, record.ID, s.now(), req.Name, req.AvatarURL); err != nil {
			return err
		}

		grant = &AccessGrant{Allowed: true, Package: record.Package()}
		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check access")
	}

	return grant, nil
}

// ListClaimed returns every bound code, most recently claimed first, for
// admin auditing.
func (s *AccessCodeService) ListClaimed(ctx context.Context) ([]*AccessCode, error) {
	return s.repo.AccessCodes().ListClaimed(ctx)
}

// purgeExpired is the opportunistic cleanup run before create and redeem.
// Best effort: a failing purge must never abort the primary operation.
func (s *AccessCodeService) purgeExpired(ctx context.Context) {
	n, err := s.repo.AccessCodes().PurgeExpired(ctx, s.now())
	if err != nil {
		s.logger.Warn("expired access code purge failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Debug("purged expired access codes", "count", n)
		s.record(ctx, ActivityEvent{
			EventType:  ActivityEventCodesPurged,
			Metadata:   map[string]any{"count": n},
			OccurredAt: s.now(),
		})
	}
}

func (s *AccessCodeService) record(ctx context.Context, event ActivityEvent) {
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error", "error", err)
	}
}
