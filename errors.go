package access

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Stable machine readable codes surfaced in the HTTP error envelope. UIs
// branch on these rather than parsing the message.
const (
	TextCodeMissingFields       = "MISSING_FIELDS"
	TextCodeInvalidPackageID    = "INVALID_PACKAGE_ID"
	TextCodeCodeNotFound        = "CODE_NOT_FOUND"
	TextCodeCodeExpired         = "CODE_EXPIRED"
	TextCodePackageNotFound     = "PACKAGE_NOT_FOUND"
	TextCodeCodeAlreadyUsed     = "CODE_ALREADY_USED"
	TextCodePackageMismatch     = "PACKAGE_MISMATCH"
	TextCodeAccessNotFound      = "ACCESS_NOT_FOUND"
	TextCodeCodesExhausted      = "CODE_GENERATION_EXHAUSTED"
	TextCodeInvalidSession      = "INVALID_SESSION"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeMissingAuth         = "MISSING_AUTH"
	TextCodeInvalidAuth         = "INVALID_AUTH"
	TextCodeForbidden           = "FORBIDDEN"
	TextCodeInvalidCreds        = "INVALID_CREDENTIALS"
	TextCodeTooManyAttempts     = "TOO_MANY_ATTEMPTS"
	TextCodeEmptyPassword       = "EMPTY_PASSWORD"
	TextCodeSessionConfigError  = "SESSION_CONFIG_ERROR"
	TextCodeSigningConfigError  = "SIGNING_CONFIG_ERROR"
)

// ErrMissingFields is returned when a redeem or check payload omits a
// required field.
var ErrMissingFields = goerrors.New("required fields are missing", goerrors.CategoryValidation).
	WithTextCode(TextCodeMissingFields).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidPackageID is returned for a malformed package identifier.
var ErrInvalidPackageID = goerrors.New("package id is not a valid identifier", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidPackageID).
	WithCode(goerrors.CodeBadRequest)

// ErrCodeNotFound is returned when no access code row matches the given code.
var ErrCodeNotFound = goerrors.New("access code not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeCodeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrCodeExpired is returned when an unclaimed code is past its registration
// window. The HTTP layer surfaces this as 410 Gone, see ErrorStatus.
var ErrCodeExpired = goerrors.New("access code registration window has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeCodeExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrPackageNotFound is returned when the package id does not resolve.
var ErrPackageNotFound = goerrors.New("package not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodePackageNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrCodeAlreadyUsed is returned when a code is bound to a different claimant.
var ErrCodeAlreadyUsed = goerrors.New("access code is already bound to another identity", goerrors.CategoryConflict).
	WithTextCode(TextCodeCodeAlreadyUsed).
	WithCode(goerrors.CodeForbidden)

// ErrPackageMismatch is returned when a verification names a package other
// than the one bound at claim time.
var ErrPackageMismatch = goerrors.New("access code is bound to a different package", goerrors.CategoryConflict).
	WithTextCode(TextCodePackageMismatch).
	WithCode(goerrors.CodeForbidden)

// ErrAccessNotFound is returned by CheckAccess when no bound code matches the
// claimant identity and package.
var ErrAccessNotFound = goerrors.New("no access binding found for this identity", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccessNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrCodeGenerationExhausted is returned when code generation keeps colliding
// with existing rows. Fatal to the request, not to the process.
var ErrCodeGenerationExhausted = goerrors.New("unable to generate a unique access code", goerrors.CategoryOperation).
	WithTextCode(TextCodeCodesExhausted).
	WithCode(goerrors.CodeInternal)

// ErrInvalidSession is the single failure surfaced for any sealed session
// defect. Length, encoding, and authentication problems are deliberately
// indistinguishable.
var ErrInvalidSession = goerrors.New("invalid session", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidSession).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when a JWT is past its expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for any non-expiry JWT validation failure.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingAuth is returned when a request carries neither a session cookie
// nor a bearer header.
var ErrMissingAuth = goerrors.New("missing authentication credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeMissingAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidAuth is returned when a presented credential fails to resolve.
var ErrInvalidAuth = goerrors.New("invalid authentication credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when a resolved principal lacks a required role.
var ErrForbidden = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrIdentityNotFound is returned when login cannot resolve an identity.
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrMismatchedHashAndPassword wraps a bcrypt comparison failure.
var ErrMismatchedHashAndPassword = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned when an admin identity exceeds the
// login attempt budget inside the cool down window.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(http.StatusTooManyRequests)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrorResponse is the stable envelope the transport layer serializes for
// every core failure.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// NewErrorResponse maps any error into the envelope. Unknown errors are
// reported as internal without leaking detail.
func NewErrorResponse(err error) ErrorResponse {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ErrorResponse{
			Status:  http.StatusInternalServerError,
			Message: "An unexpected error occurred",
			Code:    "INTERNAL_ERROR",
		}
	}

	return ErrorResponse{
		Status:  ErrorStatus(richErr),
		Message: richErr.Message,
		Code:    richErr.TextCode,
	}
}

// ErrorStatus resolves the HTTP status hint for an error. A handful of text
// codes carry statuses go-errors has no named constant for.
func ErrorStatus(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	if richErr.TextCode == TextCodeCodeExpired {
		return http.StatusGone
	}

	if richErr.Code > 0 {
		return richErr.Code
	}

	return http.StatusInternalServerError
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
