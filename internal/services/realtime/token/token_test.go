package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func testNow() time.Time {
	return time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewVerifier("  ", nil); err == nil {
		t.Fatal("expected empty secret error")
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	signed, err := Sign(testSecret, Identity{ID: 42, Username: "alice"}, time.Hour, testNow)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	verifier, err := NewVerifier(testSecret, testNow)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	identity, err := verifier.Verify(signed)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if identity.ID != 42 {
		t.Fatalf("identity id = %d, want 42", identity.ID)
	}
	if identity.Username != "alice" {
		t.Fatalf("identity username = %q, want %q", identity.Username, "alice")
	}
}

func TestVerifyMissingTokenReturnsErrMissingToken(t *testing.T) {
	t.Parallel()

	verifier, err := NewVerifier(testSecret, testNow)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := verifier.Verify("   "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("verify error = %v, want ErrMissingToken", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	signed, err := Sign("other-secret", Identity{ID: 1, Username: "alice"}, time.Hour, testNow)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	verifier, err := NewVerifier(testSecret, testNow)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("verify error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	signed, err := Sign(testSecret, Identity{ID: 1, Username: "alice"}, time.Minute, testNow)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	later := func() time.Time { return testNow().Add(2 * time.Hour) }
	verifier, err := NewVerifier(testSecret, later)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("verify error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsUnexpectedSigningMethod(t *testing.T) {
	t.Parallel()

	claims := identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(testNow().Add(time.Hour)),
		},
		UserID:   1,
		Username: "alice",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	verifier, err := NewVerifier(testSecret, testNow)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("verify error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsEmptyUsernameClaim(t *testing.T) {
	t.Parallel()

	claims := identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(testNow().Add(time.Hour)),
		},
		UserID: 1,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	verifier, err := NewVerifier(testSecret, testNow)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("verify error = %v, want ErrInvalidToken", err)
	}
}

func TestSignRequiresUsernameAndTTL(t *testing.T) {
	t.Parallel()

	if _, err := Sign(testSecret, Identity{ID: 1}, time.Hour, testNow); err == nil {
		t.Fatal("expected missing username error")
	}
	if _, err := Sign(testSecret, Identity{ID: 1, Username: "alice"}, 0, testNow); err == nil {
		t.Fatal("expected non-positive ttl error")
	}
}
