package web

import (
	"context"
	"crypto/subtle"

	"github.com/lveselov/remedy/internal/healing"
)

// TokenAuth authorizes healing calls against a single shared service token.
// Implements healing.AccessChecker. Richer per-project policy belongs to the
// surrounding deployment platform, not this service.
type TokenAuth struct {
	Token string
}

// Authorize accepts the credential when it matches the configured token.
func (a TokenAuth) Authorize(_ context.Context, _ string, credential string) error {
	if a.Token == "" || subtle.ConstantTimeCompare([]byte(a.Token), []byte(credential)) != 1 {
		return healing.ErrUnauthorized
	}
	return nil
}
