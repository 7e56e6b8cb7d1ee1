package upload

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-marketplace-api/internal/domain"
)

// StorageKey returns the object key for fileName owned by ownerID:
// "{ownerID}/{ownerID}_{fileName}". The same inputs always yield the same key,
// so re-uploading a file overwrites it.
func StorageKey(ownerID, fileName string) (string, error) {
	if err := checkSegment("ownerId", ownerID); err != nil {
		return "", err
	}
	if err := checkSegment("fileName", fileName); err != nil {
		return "", err
	}
	return ownerID + "/" + ownerID + "_" + fileName, nil
}

// OwnerPrefix is the prefix shared by every key StorageKey yields for ownerID.
func OwnerPrefix(ownerID string) (string, error) {
	if err := checkSegment("ownerId", ownerID); err != nil {
		return "", err
	}
	return ownerID + "/", nil
}

func checkSegment(field, s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s required: %w", field, domain.ErrBadRequest)
	}
	if s == "." || strings.Contains(s, "..") || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("%s must not contain path separators or '..': %w", field, domain.ErrBadRequest)
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("%s contains control characters: %w", field, domain.ErrBadRequest)
		}
	}
	return nil
}
