package access

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Principal is the authenticated identity recovered from a request. User is
// only populated when the credential was a sealed session cookie; bearer
// tokens carry claims alone.
type Principal struct {
	Claims *JWTClaims
	User   *UserSnapshot
}

// Subject returns the principal's subject id.
func (p *Principal) Subject() string {
	if p == nil || p.Claims == nil {
		return ""
	}
	return p.Claims.UserID()
}

// Role returns the admin role claim; empty for members.
func (p *Principal) Role() string {
	if p == nil || p.Claims == nil {
		return ""
	}
	return p.Claims.Role()
}

// IsMember reports whether the principal belongs to the member audience.
func (p *Principal) IsMember() bool {
	return p != nil && p.Claims != nil && p.Claims.IsMember()
}

// HasRole checks role membership, see JWTClaims.HasRole.
func (p *Principal) HasRole(role string) bool {
	return p != nil && p.Claims != nil && p.Claims.HasRole(role)
}

// SessionResolver recovers a principal from the two possible credential
// carriers on an inbound request: the sealed session cookie and the
// Authorization bearer header. The cookie always wins; a cookie that fails to
// open or verify is treated as hostile, never as absent, so resolution fails
// without falling back to the header.
type SessionResolver struct {
	sealer SessionSealer
	tokens TokenValidator
	logger Logger
}

// NewSessionResolver builds a resolver over the session cipher and token
// validator.
func NewSessionResolver(sealer SessionSealer, tokens TokenValidator) *SessionResolver {
	return &SessionResolver{
		sealer: sealer,
		tokens: tokens,
		logger: defLogger{},
	}
}

func (r *SessionResolver) WithLogger(logger Logger) *SessionResolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Resolve authenticates the request carriers. Returns ErrMissingAuth when
// neither carrier is present and ErrInvalidAuth for any credential defect.
// Configuration errors (missing secrets) propagate as-is.
func (r *SessionResolver) Resolve(cookieValue, authorization string) (*Principal, error) {
	if cookieValue != "" {
		return r.resolveCookie(cookieValue)
	}

	if authorization != "" {
		return r.resolveBearer(authorization)
	}

	return nil, ErrMissingAuth
}

func (r *SessionResolver) resolveCookie(value string) (*Principal, error) {
	session, err := r.sealer.Open(value)
	if err != nil {
		if !goerrors.Is(err, ErrInvalidSession) {
			// configuration failure, not a credential problem
			return nil, err
		}
		r.logger.Debug("session cookie failed to open")
		return nil, ErrInvalidAuth
	}

	claims, err := r.tokens.Validate(session.Token)
	if err != nil {
		if isConfigError(err) {
			return nil, err
		}
		r.logger.Debug("session token failed validation", "error", err)
		return nil, ErrInvalidAuth
	}

	user := session.User
	return &Principal{Claims: claims, User: &user}, nil
}

func (r *SessionResolver) resolveBearer(authorization string) (*Principal, error) {
	raw, ok := parseBearer(authorization)
	if !ok {
		return nil, ErrInvalidAuth
	}

	claims, err := r.tokens.Validate(raw)
	if err != nil {
		if isConfigError(err) {
			return nil, err
		}
		r.logger.Debug("bearer token failed validation", "error", err)
		return nil, ErrInvalidAuth
	}

	return &Principal{Claims: claims}, nil
}

// parseBearer extracts the raw token from an Authorization header value.
func parseBearer(header string) (string, bool) {
	const scheme = "Bearer"
	if len(header) <= len(scheme)+1 {
		return "", false
	}
	if !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(scheme):])
	if raw == "" {
		return "", false
	}
	return raw, true
}

func isConfigError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeSessionConfigError ||
		richErr.TextCode == TextCodeSigningConfigError
}

// Authorize checks a resolved principal against a required-roles set. Runs
// strictly after resolution; it never substitutes for it. An empty set means
// any authenticated principal passes.
func Authorize(principal *Principal, roles ...string) error {
	if principal == nil || principal.Claims == nil {
		return ErrMissingAuth
	}

	if len(roles) == 0 {
		return nil
	}

	for _, role := range roles {
		if principal.HasRole(role) {
			return nil
		}
	}

	return ErrForbidden
}
