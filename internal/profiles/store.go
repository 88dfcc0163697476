package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrUnknownRequester is returned by identity resolvers when no profile
	// exists for the requesting user.
	ErrUnknownRequester = errors.New("requester not found")
	// ErrInvalidRequester is returned when the requester id is not a UUID.
	ErrInvalidRequester = errors.New("requester id is not a valid uuid")
)

// Store is the read-only view of the external profile backend.
type Store interface {
	// ListSearchableProfiles returns every searchable profile except the one
	// owned by excluding, in a stable order.
	ListSearchableProfiles(ctx context.Context, excluding string) ([]*Profile, error)
}

// IdentityResolver confirms that a requester id belongs to a known user.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID string) error
}

// ValidateUserID checks that id is a canonical UUID as issued by the auth backend.
func ValidateUserID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRequester)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequester, err)
	}
	return nil
}
