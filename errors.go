package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// ErrMissingSigningKey is returned when the token engine is built without a secret.
var ErrMissingSigningKey = goerrors.New("signing key is not configured", goerrors.CategoryInternal).
	WithTextCode("MISSING_SIGNING_KEY").
	WithCode(goerrors.CodeInternal)

// ErrUserNotFound is the failure for identifiers that resolve to no account.
var ErrUserNotFound = goerrors.New("User does not exist", goerrors.CategoryNotFound).
	WithTextCode("USER_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrUserBanned blocks login for banned accounts regardless of credentials.
var ErrUserBanned = goerrors.New("User is banned", goerrors.CategoryAuth).
	WithTextCode("USER_BANNED").
	WithCode(goerrors.CodeUnauthorized)

// ErrUserSuspended blocks login for suspended accounts regardless of credentials.
var ErrUserSuspended = goerrors.New("User is suspended", goerrors.CategoryAuth).
	WithTextCode("USER_SUSPENDED").
	WithCode(goerrors.CodeUnauthorized)

// ErrPasswordMismatch is the credential verification failure.
var ErrPasswordMismatch = goerrors.New("Password does not match", goerrors.CategoryAuth).
	WithTextCode("PASSWORD_MISMATCH").
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenInvalid is returned when the presented value matches no row.
var ErrRefreshTokenInvalid = goerrors.New("invalid refresh token", goerrors.CategoryAuth).
	WithTextCode("REFRESH_TOKEN_INVALID").
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenExpired covers both aged-out and previously revoked tokens.
var ErrRefreshTokenExpired = goerrors.New("refresh token expired or revoked", goerrors.CategoryAuth).
	WithTextCode("REFRESH_TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenConsumed is returned when a concurrent redemption won the
// claim on the same token value.
var ErrRefreshTokenConsumed = goerrors.New("refresh token already redeemed", goerrors.CategoryAuth).
	WithTextCode("REFRESH_TOKEN_CONSUMED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for access tokens past their expiry.
var ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for undecodable or tampered access tokens.
var ErrTokenMalformed = goerrors.New("token malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeUnauthorized)

// ErrInsufficientRole is the authorization failure for guarded routes.
var ErrInsufficientRole = goerrors.New("insufficient role", goerrors.CategoryAuthz).
	WithTextCode("INSUFFICIENT_ROLE").
	WithCode(goerrors.CodeForbidden)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryBadInput).
	WithTextCode("EMPTY_STRING").
	WithCode(goerrors.CodeBadRequest)

// ConflictError builds a uniqueness violation failure, e.g. "Email already exists".
func ConflictError(field string) *goerrors.Error {
	return goerrors.New(field+" already exists", goerrors.CategoryConflict).
		WithTextCode("ALREADY_EXISTS").
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"field": field})
}

// HTTPStatus maps an error to the status code the boundary should respond with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return http.StatusInternalServerError
	}

	switch rich.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
