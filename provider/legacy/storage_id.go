package legacy

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const storageIDPrefix = "f:"

// StorageID is the opaque federated id "f:<providerID>:<externalID>". The
// external id of a legacy user is its username.
type StorageID struct {
	ProviderID string
	ExternalID string
}

// EncodeStorageID builds the opaque id for externalID.
func EncodeStorageID(providerID, externalID string) string {
	return storageIDPrefix + providerID + ":" + externalID
}

// DecodeStorageID splits an opaque id. The external id may itself contain
// ':' characters, only the first separator after the provider is used.
func DecodeStorageID(id string) (StorageID, error) {
	rest, ok := strings.CutPrefix(id, storageIDPrefix)
	if !ok {
		return StorageID{}, malformedID(id, "missing federated prefix")
	}

	providerID, externalID, ok := strings.Cut(rest, ":")
	if !ok || providerID == "" {
		return StorageID{}, malformedID(id, "missing provider id")
	}

	if strings.TrimSpace(externalID) == "" {
		return StorageID{}, malformedID(id, "missing external id")
	}

	return StorageID{ProviderID: providerID, ExternalID: externalID}, nil
}

func (s StorageID) String() string {
	return EncodeStorageID(s.ProviderID, s.ExternalID)
}

func malformedID(id, reason string) error {
	return errors.New(ErrMalformedID.Message, errors.CategoryBadInput).
		WithTextCode(TextCodeMalformedID).
		WithCode(errors.CodeBadRequest).
		WithMetadata(map[string]any{
			"id":     id,
			"reason": reason,
		})
}
