package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-0123456789"

func newTestJWT(t *testing.T) *JWTAuthMiddleware {
	t.Helper()
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return NewJWTAuthMiddleware(&JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     "admin",
		AdminPasswordHash: hash,
		JWTSecret:         testSecret,
		JWTExpiryHours:    1,
		SkipPaths:         []string{"/health", "/auth/*"},
		QueryTokenPaths:   []string{"/ws/*"},
	})
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(Actor(r.Context())))
	})
}

func TestJWTAuth_TokenRoundTrip(t *testing.T) {
	m := newTestJWT(t)

	token, expires, err := m.GenerateToken("admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Errorf("expiry %v is not in the future", expires)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "admin" || claims.Issuer != TokenIssuer {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestJWTAuth_RejectsBadTokens(t *testing.T) {
	m := newTestJWT(t)

	other := NewJWTAuthMiddleware(&JWTAuthConfig{JWTSecret: "another-secret", JWTExpiryHours: 1})
	foreign, _, _ := other.GenerateToken("admin")

	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, _ := m.GenerateToken("admin")
	m.now = time.Now

	wrongIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		Username: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		Username:         "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: TokenIssuer},
	}).SignedString([]byte(testSecret))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"wrong issuer", wrongIssuer},
		{"no expiry", noExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.ValidateToken(tt.token); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestJWTAuth_ValidateCredentials(t *testing.T) {
	m := newTestJWT(t)

	tests := []struct {
		user, pass string
		want       bool
	}{
		{"admin", "s3cret", true},
		{"admin", "wrong", false},
		{"root", "s3cret", false},
		{"", "", false},
	}

	for _, tt := range tests {
		if got := m.ValidateCredentials(tt.user, tt.pass); got != tt.want {
			t.Errorf("ValidateCredentials(%q, %q) = %v, want %v", tt.user, tt.pass, got, tt.want)
		}
	}
}

func TestJWTAuth_Wrap(t *testing.T) {
	m := newTestJWT(t)
	token, _, _ := m.GenerateToken("alice")
	handler := m.Wrap(echoUser())

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"skip exact", "/health", "", http.StatusOK, AnonymousActor},
		{"skip prefix", "/auth/login", "", http.StatusOK, AnonymousActor},
		{"missing token", "/api/anomalies", "", http.StatusUnauthorized, ""},
		{"bad token", "/api/anomalies", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid header", "/api/anomalies", "Bearer " + token, http.StatusOK, "alice"},
		{"query token on ws", "/ws/anomalies?token=" + token, "", http.StatusOK, "alice"},
		{"query token elsewhere", "/api/anomalies?token=" + token, "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}

func TestJWTAuth_DisabledPassesThrough(t *testing.T) {
	m := NewJWTAuthMiddleware(&JWTAuthConfig{Enabled: false})
	req := httptest.NewRequest(http.MethodGet, "/api/anomalies", nil)
	w := httptest.NewRecorder()
	m.Wrap(echoUser()).ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != AnonymousActor {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestActor(t *testing.T) {
	if got := Actor(context.Background()); got != AnonymousActor {
		t.Errorf("Actor() = %q, want %q", got, AnonymousActor)
	}
	ctx := context.WithValue(context.Background(), UserContextKey, "bob")
	if got := Actor(ctx); got != "bob" {
		t.Errorf("Actor() = %q, want bob", got)
	}
}
