package auth

import (
	stderrors "errors"

	"github.com/goliatone/go-errors"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode("IDENTITY_NOT_FOUND").
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword is returned when credentials do not match
var ErrMismatchedHashAndPassword = errors.New("identity auth failed: credentials do not match", errors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString password must not be blank
var ErrNoEmptyString = errors.New("password can not be an empty string", errors.CategoryValidation).
	WithTextCode("EMPTY_PASSWORD").
	WithCode(errors.CodeBadRequest)

// ErrUserDisabled the local record exists but is not enabled
var ErrUserDisabled = errors.New("user account is disabled", errors.CategoryAuth).
	WithTextCode("USER_DISABLED").
	WithCode(errors.CodeForbidden)

// ErrTokenExpired token is past its expiration
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed token could not be parsed
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(errors.CodeUnauthorized)

// IsCredentialsMismatch reports whether err signals a plain credential rejection.
func IsCredentialsMismatch(err error) bool {
	return HasTextCode(err, ErrMismatchedHashAndPassword.TextCode)
}

// IsIdentityNotFound reports whether err signals a missing identity.
func IsIdentityNotFound(err error) bool {
	if err == nil {
		return false
	}
	return HasTextCode(err, ErrIdentityNotFound.TextCode) || errors.IsNotFound(err)
}

// HasTextCode walks the error chain looking for a rich error with the given text code.
func HasTextCode(err error, code string) bool {
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if richErr, ok := e.(*errors.Error); ok && richErr.TextCode == code {
			return true
		}
	}
	return false
}
