package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestAuthenticator(t *testing.T, opts ...Option) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(testSecret, opts...)
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	return a
}

func TestVerifyExtractsIdentity(t *testing.T) {
	a := newTestAuthenticator(t)

	tokenStr := signToken(t, jwt.MapClaims{
		"sub":   "cust-1",
		"email": "jo@example.com",
		"roles": []interface{}{"User", "admin"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	identity, err := a.Verify(tokenStr)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.Subject != "cust-1" {
		t.Fatalf("unexpected subject %q", identity.Subject)
	}
	if identity.Email != "jo@example.com" {
		t.Fatalf("unexpected email %q", identity.Email)
	}
	if !identity.HasRole(RoleUser) || !identity.IsAdmin() {
		t.Fatalf("unexpected roles %v", identity.Roles)
	}
}

func TestVerifyAppliesFallbackRole(t *testing.T) {
	a := newTestAuthenticator(t)

	tokenStr := signToken(t, jwt.MapClaims{
		"sub": "cust-2",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	identity, err := a.Verify(tokenStr)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(identity.Roles) != 1 || identity.Roles[0] != RoleUser {
		t.Fatalf("expected fallback user role, got %v", identity.Roles)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	a := newTestAuthenticator(t, WithLeeway(0))

	tokenStr := signToken(t, jwt.MapClaims{
		"sub": "cust-3",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := a.Verify(tokenStr); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	a := newTestAuthenticator(t)

	tokenStr := signToken(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := a.Verify(tokenStr); err == nil {
		t.Fatal("expected missing subject error")
	}
}

func TestVerifyEnforcesIssuerAndAudience(t *testing.T) {
	a := newTestAuthenticator(t, WithIssuer("oakmart"), WithAudience("api"))

	good := signToken(t, jwt.MapClaims{
		"sub": "cust-4",
		"iss": "oakmart",
		"aud": "api",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := a.Verify(good); err != nil {
		t.Fatalf("verify: %v", err)
	}

	badIssuer := signToken(t, jwt.MapClaims{
		"sub": "cust-4",
		"iss": "someone-else",
		"aud": "api",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := a.Verify(badIssuer); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestRequireAuthAttachesIdentity(t *testing.T) {
	a := newTestAuthenticator(t)

	var seen *Identity
	handler := a.RequireAuth(RoleUser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tokenStr := signToken(t, jwt.MapClaims{
		"sub":   "cust-5",
		"roles": "user",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if seen == nil || seen.Subject != "cust-5" {
		t.Fatalf("identity not attached: %+v", seen)
	}
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	a := newTestAuthenticator(t)

	handler := a.RequireAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestRequireAuthRejectsInsufficientRole(t *testing.T) {
	a := newTestAuthenticator(t)

	handler := a.RequireAuth(RoleAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))

	tokenStr := signToken(t, jwt.MapClaims{
		"sub":   "cust-6",
		"roles": "user",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodPut, "/admin/orders/o1/status", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestRequireAuthRejectsWrongSignature(t *testing.T) {
	a := newTestAuthenticator(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "cust-7",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	handler := a.RequireAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}
