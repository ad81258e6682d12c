// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/reelhub/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func init() {
	bcryptCost = bcrypt.MinCost
}

func securityConfig(mode string) *config.SecurityConfig {
	return &config.SecurityConfig{
		AuthMode:       mode,
		JWTSecret:      testSecret,
		SessionTimeout: time.Hour,
		AdminUsername:  "admin",
		AdminPassword:  "correct-horse",
		DefaultUser:    "default",
	}
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m, err := NewJWTManager(securityConfig(config.AuthModeJWT))
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	token, err := m.GenerateToken("alice")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID() != "alice" || claims.Username != "alice" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestJWTManager_Rejects(t *testing.T) {
	m, _ := NewJWTManager(securityConfig(config.AuthModeJWT))
	other, _ := NewJWTManager(&config.SecurityConfig{JWTSecret: strings.Repeat("x", 32), SessionTimeout: time.Hour})

	wrongKey, _ := other.GenerateToken("alice")

	expiredMgr, _ := NewJWTManager(securityConfig(config.AuthModeJWT))
	expiredMgr.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredMgr.GenerateToken("alice")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Username: "alice"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{Username: "alice"})
	wrongAlg, _ := hs512.SignedString([]byte(testSecret))

	anon := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{})
	noSubject, _ := anon.SignedString([]byte(testSecret))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.jwt"},
		{"wrong key", wrongKey},
		{"expired", expired},
		{"alg none", unsigned},
		{"hs512", wrongAlg},
		{"no subject", noSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.ValidateToken(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestNewJWTManager_EmptySecret(t *testing.T) {
	if _, err := NewJWTManager(&config.SecurityConfig{}); err == nil {
		t.Error("NewJWTManager() with empty secret should fail")
	}
}

func TestBasicAuthManager(t *testing.T) {
	m, err := NewBasicAuthManager("admin", "correct-horse")
	if err != nil {
		t.Fatalf("NewBasicAuthManager() error = %v", err)
	}

	tests := []struct {
		name     string
		user     string
		pass     string
		setAuth  bool
		wantUser string
	}{
		{"valid", "admin", "correct-horse", true, "admin"},
		{"wrong password", "admin", "battery-staple", true, ""},
		{"wrong user", "root", "correct-horse", true, ""},
		{"missing header", "", "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.setAuth {
				r.SetBasicAuth(tt.user, tt.pass)
			}
			got, err := m.ValidateRequest(r)
			if tt.wantUser == "" {
				if !errors.Is(err, ErrInvalidCredentials) {
					t.Errorf("ValidateRequest() error = %v, want ErrInvalidCredentials", err)
				}
				return
			}
			if err != nil || got != tt.wantUser {
				t.Errorf("ValidateRequest() = %q, %v", got, err)
			}
		})
	}

	if _, err := NewBasicAuthManager("admin", "short"); err == nil {
		t.Error("short password should be rejected")
	}
}

func echoCaller(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := CallerFromContext(r.Context())
		if !ok {
			t.Error("handler reached without caller")
			return
		}
		w.Header().Set("X-User", c.UserID)
		w.Header().Set("X-Token", c.Token)
	})
}

func TestMiddleware_JWT(t *testing.T) {
	cfg := securityConfig(config.AuthModeJWT)
	mw, err := NewMiddleware(cfg, nil)
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}
	mgr, _ := NewJWTManager(cfg)
	token, _ := mgr.GenerateToken("alice")
	h := mw.Authenticate(echoCaller(t))

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantUser   string
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK, "alice"},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }, http.StatusOK, "alice"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: token}) }, http.StatusOK, "alice"},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, ""},
		{"basic scheme", func(r *http.Request) { r.SetBasicAuth("admin", "correct-horse") }, http.StatusUnauthorized, ""},
		{"tampered", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token+"x") }, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantUser != "" {
				if w.Header().Get("X-User") != tt.wantUser {
					t.Errorf("user = %q, want %q", w.Header().Get("X-User"), tt.wantUser)
				}
				if w.Header().Get("X-Token") != token {
					t.Error("caller token should be the presented bearer token")
				}
			}
		})
	}
}

func TestMiddleware_Basic(t *testing.T) {
	mw, err := NewMiddleware(securityConfig(config.AuthModeBasic), nil)
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}
	h := mw.Authenticate(echoCaller(t))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.SetBasicAuth("admin", "correct-horse")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK || w.Header().Get("X-User") != "admin" || w.Header().Get("X-Token") != "" {
		t.Errorf("valid basic: status %d headers %v", w.Code, w.Header())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("WWW-Authenticate"), "Basic ") {
		t.Errorf("WWW-Authenticate = %q", w.Header().Get("WWW-Authenticate"))
	}
}

func TestMiddleware_None(t *testing.T) {
	mw, err := NewMiddleware(securityConfig(config.AuthModeNone), nil)
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}
	w := httptest.NewRecorder()
	mw.Authenticate(echoCaller(t)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || w.Header().Get("X-User") != "default" {
		t.Errorf("status %d user %q", w.Code, w.Header().Get("X-User"))
	}
}

func TestMiddleware_CustomDeny(t *testing.T) {
	var denied string
	mw, _ := NewMiddleware(securityConfig(config.AuthModeJWT), func(w http.ResponseWriter, _ *http.Request, msg string) {
		denied = msg
		w.WriteHeader(http.StatusUnauthorized)
	})
	w := httptest.NewRecorder()
	mw.Authenticate(echoCaller(t)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized || denied == "" {
		t.Errorf("status %d, deny message %q", w.Code, denied)
	}
}

func TestNewMiddleware_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.SecurityConfig
	}{
		{"unknown mode", &config.SecurityConfig{AuthMode: "oidc"}},
		{"none without default user", &config.SecurityConfig{AuthMode: config.AuthModeNone}},
		{"jwt without secret", &config.SecurityConfig{AuthMode: config.AuthModeJWT}},
		{"basic without password", &config.SecurityConfig{AuthMode: config.AuthModeBasic, AdminUsername: "admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMiddleware(tt.cfg, nil); err == nil {
				t.Error("NewMiddleware() should fail")
			}
		})
	}
}

func TestCallerFromContext_Empty(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := CallerFromContext(r.Context()); ok {
		t.Error("empty context should have no caller")
	}
	if _, ok := CallerFromContext(ContextWithCaller(r.Context(), Caller{})); ok {
		t.Error("caller without user id should not count")
	}
}
