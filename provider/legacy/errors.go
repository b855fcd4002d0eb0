package legacy

import (
	"github.com/goliatone/go-auth-legacy"
	"github.com/goliatone/go-errors"
)

const (
	TextCodeNotFound              = "LEGACY_USER_NOT_FOUND"
	TextCodeTransport             = "LEGACY_TRANSPORT_ERROR"
	TextCodeMalformedID           = "LEGACY_MALFORMED_ID"
	TextCodeUnsupportedCredential = "LEGACY_UNSUPPORTED_CREDENTIAL"
	TextCodeUnknownLookupKind     = "LEGACY_UNKNOWN_LOOKUP_KIND"
)

// ErrNotFound the legacy facade confirmed the user does not exist.
var ErrNotFound = errors.New("legacy user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(errors.CodeNotFound)

// ErrTransport the legacy facade could not be reached or answered unexpectedly.
// It never means the user does not exist.
var ErrTransport = errors.New("legacy facade unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeTransport).
	WithCode(errors.CodeInternal)

// ErrMalformedID the opaque id does not carry an external identifier.
var ErrMalformedID = errors.New("malformed federated user id", errors.CategoryBadInput).
	WithTextCode(TextCodeMalformedID).
	WithCode(errors.CodeBadRequest)

// ErrUnsupportedCredentialType only password credentials are federated.
var ErrUnsupportedCredentialType = errors.New("unsupported credential type", errors.CategoryValidation).
	WithTextCode(TextCodeUnsupportedCredential).
	WithCode(errors.CodeBadRequest)

// ErrUnknownLookupKind lookup kind is not username, id or email.
var ErrUnknownLookupKind = errors.New("unknown lookup kind", errors.CategoryBadInput).
	WithTextCode(TextCodeUnknownLookupKind).
	WithCode(errors.CodeBadRequest)

// IsNotFound reports whether err is a definitive remote absence.
func IsNotFound(err error) bool {
	return auth.HasTextCode(err, TextCodeNotFound)
}

// IsTransport reports whether err is an indefinite remote failure.
func IsTransport(err error) bool {
	return auth.HasTextCode(err, TextCodeTransport)
}

// IsMalformedID reports whether err was caused by an undecodable id.
func IsMalformedID(err error) bool {
	return auth.HasTextCode(err, TextCodeMalformedID)
}

// transportError returns a per-call copy of ErrTransport carrying request metadata.
func transportError(cause error, op, target string, status int) error {
	var err *errors.Error
	if cause != nil {
		err = errors.Wrap(cause, errors.CategoryOperation, ErrTransport.Message)
	} else {
		err = errors.New(ErrTransport.Message, errors.CategoryOperation)
	}
	return err.
		WithTextCode(TextCodeTransport).
		WithCode(errors.CodeInternal).
		WithMetadata(map[string]any{
			"op":     op,
			"url":    target,
			"status": status,
		})
}

func notFoundError(username string) error {
	return errors.New(ErrNotFound.Message, errors.CategoryNotFound).
		WithTextCode(TextCodeNotFound).
		WithCode(errors.CodeNotFound).
		WithMetadata(map[string]any{
			"username": username,
		})
}
