package auth

import (
	"context"
	"errors"
	"testing"
)

type fakeVerifier struct {
	err   error
	calls int
}

func (v *fakeVerifier) Verify(_ context.Context, _, _ string) error {
	v.calls++
	return v.err
}

func TestAuthorizeJoinDemoToken(t *testing.T) {
	a := NewAuthorizer("demo-access", nil)

	if err := a.AuthorizeJoin(context.Background(), "call-1", "demo-access"); err != nil {
		t.Fatalf("demo token rejected: %v", err)
	}
	if err := a.AuthorizeJoin(context.Background(), "call-1", " demo-access "); err != nil {
		t.Fatalf("token should be trimmed: %v", err)
	}
	if err := a.AuthorizeJoin(context.Background(), "call-1", "wrong"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
	if err := a.AuthorizeJoin(context.Background(), "call-1", ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("empty token must fail")
	}
}

func TestAuthorizeJoinDelegatesToVerifier(t *testing.T) {
	v := &fakeVerifier{}
	a := NewAuthorizer("demo-access", v)

	if err := a.AuthorizeJoin(context.Background(), "call-1", "real-credential"); err != nil {
		t.Fatalf("verifier accept: %v", err)
	}
	if v.calls != 1 {
		t.Fatalf("verifier calls = %d, want 1", v.calls)
	}

	// Demo token short-circuits before the verifier.
	if err := a.AuthorizeJoin(context.Background(), "call-1", "demo-access"); err != nil {
		t.Fatalf("demo token: %v", err)
	}
	if v.calls != 1 {
		t.Fatalf("demo token must not hit the verifier")
	}

	v.err = errors.New("revoked")
	if err := a.AuthorizeJoin(context.Background(), "call-1", "real-credential"); err == nil {
		t.Fatalf("verifier rejection must propagate")
	}
}
