package access

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

const (
	// DefaultAdminTokenExpiration is the admin token lifetime in hours.
	DefaultAdminTokenExpiration = 24
	// DefaultMemberTokenExpiration is the member token lifetime in hours.
	DefaultMemberTokenExpiration = 168
)

// TokenService issues and validates the HMAC signed JWTs used by both the
// Authorization header and the sealed session cookie.
type TokenService interface {
	TokenValidator
	SignAdmin(subjectID, role string) (string, error)
	SignMember(subjectID string) (string, error)
	SignClaims(claims *JWTClaims, ttl time.Duration) (string, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey       []byte
	adminExpiration  int
	memberExpiration int
	issuer           string
	audience         jwt.ClaimStrings
	logger           Logger
	now              func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg Config, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}

	adminExp := cfg.GetAdminTokenExpiration()
	if adminExp <= 0 {
		adminExp = DefaultAdminTokenExpiration
	}

	memberExp := cfg.GetMemberTokenExpiration()
	if memberExp <= 0 {
		memberExp = DefaultMemberTokenExpiration
	}

	return &TokenServiceImpl{
		signingKey:       []byte(cfg.GetSigningKey()),
		adminExpiration:  adminExp,
		memberExpiration: memberExp,
		issuer:           cfg.GetIssuer(),
		audience:         cfg.GetAudience(),
		logger:           logger,
		now:              time.Now,
	}
}

// WithTimeFunc overrides the clock used for issue and validation times. Used
// by expiry tests.
func (ts *TokenServiceImpl) WithTimeFunc(now func() time.Time) *TokenServiceImpl {
	if now != nil {
		ts.now = now
	}
	return ts
}

// SignAdmin issues a token for the admin audience carrying a role claim.
func (ts *TokenServiceImpl) SignAdmin(subjectID, role string) (string, error) {
	claims := &JWTClaims{UserRole: role}
	ts.fillRegistered(claims, subjectID)
	return ts.SignClaims(claims, time.Duration(ts.adminExpiration)*time.Hour)
}

// SignMember issues a token for the member audience carrying type=member.
func (ts *TokenServiceImpl) SignMember(subjectID string) (string, error) {
	claims := &JWTClaims{TokenType: TokenTypeMember}
	ts.fillRegistered(claims, subjectID)
	return ts.SignClaims(claims, time.Duration(ts.memberExpiration)*time.Hour)
}

// SignClaims signs arbitrary claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims, ttl time.Duration) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	if len(ts.signingKey) == 0 {
		return "", goerrors.New("token signing key is not configured", goerrors.CategoryInternal).
			WithTextCode(TextCodeSigningConfigError)
	}

	now := ts.now()
	if claims.RegisteredClaims.IssuedAt == nil {
		claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.RegisteredClaims.ExpiresAt == nil {
		claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims.
// Failures are bucketed into ErrTokenExpired (clock based) and
// ErrTokenMalformed (signature, shape, audience).
func (ts *TokenServiceImpl) Validate(tokenString string) (*JWTClaims, error) {
	if len(ts.signingKey) == 0 {
		return nil, goerrors.New("token signing key is not configured", goerrors.CategoryInternal).
			WithTextCode(TextCodeSigningConfigError)
	}

	parserOptions := make([]jwt.ParserOption, 0, 3)
	parserOptions = append(parserOptions, jwt.WithTimeFunc(ts.now))
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode).
			WithCode(goerrors.CodeUnauthorized)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

func (ts *TokenServiceImpl) fillRegistered(claims *JWTClaims, subjectID string) {
	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims.RegisteredClaims.Issuer = ts.issuer
	claims.RegisteredClaims.Subject = subjectID
	claims.RegisteredClaims.Audience = aud
}

var _ TokenService = (*TokenServiceImpl)(nil)
