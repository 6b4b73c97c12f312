package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
)

// ErrInvalidToken rejects a join with an unknown credential.
var ErrInvalidToken = errors.New("invalid access token")

// Verifier validates credentials for real, telephony-backed calls. Demo
// calls never reach it.
type Verifier interface {
	Verify(ctx context.Context, callID, token string) error
}

// Authorizer gates call joins. Demo joins carry a fixed shared token; any
// other credential is delegated to the configured verifier.
type Authorizer struct {
	demoToken string
	verifier  Verifier
}

func NewAuthorizer(demoToken string, verifier Verifier) *Authorizer {
	return &Authorizer{
		demoToken: strings.TrimSpace(demoToken),
		verifier:  verifier,
	}
}

func (a *Authorizer) AuthorizeJoin(ctx context.Context, callID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	if a.demoToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.demoToken)) == 1 {
		return nil
	}
	if a.verifier != nil {
		return a.verifier.Verify(ctx, callID, token)
	}
	return ErrInvalidToken
}
