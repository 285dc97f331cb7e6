package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"program-enrollment/backend/internal/config"
)

// NoOpLogger for testing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, args ...any) {}
func (l *NoOpLogger) Info(msg string, args ...any)  {}
func (l *NoOpLogger) Error(msg string, args ...any) {}

// MockKeySet satisfies oidc.KeySet to bypass signature verification
type MockKeySet struct{}

func (m *MockKeySet) VerifySignature(ctx context.Context, jwtToken string) ([]byte, error) {
	parts := strings.Split(jwtToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed jwt")
	}
	return base64.RawURLEncoding.DecodeString(parts[1])
}

const (
	testIssuer   = "https://test-issuer.com"
	testClientID = "test-client"
)

func fakeToken(t *testing.T, extra map[string]any) string {
	t.Helper()
	claims := map[string]any{
		"iss": testIssuer,
		"aud": testClientID,
		"sub": "test-user",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Add(-1 * time.Minute).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	header, err := json.Marshal(map[string]any{"alg": "RS256", "typ": "JWT", "kid": "test-key"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString([]byte("fakesignature"))
}

func testAuth() *Auth {
	verifier := oidc.NewVerifier(testIssuer, &MockKeySet{}, &oidc.Config{
		ClientID:          testClientID,
		SkipClientIDCheck: true,
	})
	return &Auth{apiVerifier: verifier, verifier: verifier, logger: &NoOpLogger{}}
}

func TestRequireAuth_BearerToken_ExtractsPrincipal(t *testing.T) {
	a := testAuth()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/programs", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken(t, map[string]any{
		"email": "nurse@clinic.org",
		"scp":   []string{ScopeProgramRead},
	}))
	rec := httptest.NewRecorder()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		assert.True(t, ok, "principal should be in context")
		assert.Equal(t, "nurse@clinic.org", p.Email)
		assert.True(t, p.HasScope(ScopeProgramRead))
		assert.False(t, p.HasScope(ScopeProgramWrite))
		w.WriteHeader(http.StatusOK)
	})

	a.RequireAuth(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Logf("Response Body: %s", rec.Body.String())
	}
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_SpaceSeparatedScopeClaim(t *testing.T) {
	a := testAuth()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/programs", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken(t, map[string]any{
		"email": "nurse@clinic.org",
		"scope": "openid program:read program:write",
	}))
	rec := httptest.NewRecorder()

	var got *Principal
	a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFrom(r.Context())
	})).ServeHTTP(rec, req)

	require.NotNil(t, got)
	assert.Equal(t, []string{ScopeOpenID, ScopeProgramRead, ScopeProgramWrite}, got.Scopes)
}

func TestRequireAuth_InvalidEmail(t *testing.T) {
	a := testAuth()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/programs", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken(t, map[string]any{"email": "not-an-email"}))
	rec := httptest.NewRecorder()

	a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	a := testAuth()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/programs", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken(t, map[string]any{
		"email": "nurse@clinic.org",
		"exp":   time.Now().Add(-time.Hour).Unix(),
	}))
	rec := httptest.NewRecorder()

	a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_NoCredentialsRedirectsToLogin(t *testing.T) {
	a := testAuth()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/programs", nil)
	rec := httptest.NewRecorder()

	a.RequireAuth(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRequireAuth_BypassMode(t *testing.T) {
	cfg := &config.Config{
		Environment:   "DEV",
		DevModeBypass: true,
	}
	a, err := New(context.Background(), cfg, &NoOpLogger{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/enrollments", nil)
	rec := httptest.NewRecorder()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "dev@localhost", p.Email)
		assert.True(t, p.HasScope(ScopeProgramWrite))
		w.WriteHeader(http.StatusOK)
	})

	a.RequireAuth(RequireScope(ScopeProgramWrite, next)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNew_IncompleteConfig(t *testing.T) {
	_, err := New(context.Background(), &config.Config{Environment: "PROD"}, &NoOpLogger{})
	assert.Error(t, err)
}

func TestRequireScope(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name      string
		principal *Principal
		want      int
	}{
		{"no principal", nil, http.StatusUnauthorized},
		{"read only", &Principal{Email: "a@b.c", Scopes: []string{ScopeProgramRead}}, http.StatusForbidden},
		{"writer", &Principal{Email: "a@b.c", Scopes: []string{ScopeProgramWrite}}, http.StatusOK},
		{"session without scopes", &Principal{Email: "a@b.c", Session: true}, http.StatusOK},
		{"bearer without scopes", &Principal{Email: "a@b.c"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/enrollments", nil)
			if tt.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), tt.principal))
			}
			rec := httptest.NewRecorder()

			RequireScope(ScopeProgramWrite, ok).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireAuth_BearerWithoutScopesCannotWrite(t *testing.T) {
	a := testAuth()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/enrollments/e1/states/s1", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken(t, map[string]any{"email": "x@y.z"}))
	rec := httptest.NewRecorder()

	a.RequireAuth(RequireMethodScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAuth_SessionCookieMarksSession(t *testing.T) {
	a := testAuth()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/enrollments", nil)
	req.AddCookie(&http.Cookie{Name: "id_token", Value: fakeToken(t, map[string]any{"email": "nurse@clinic.org"})})
	rec := httptest.NewRecorder()

	var got *Principal
	a.RequireAuth(RequireMethodScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.True(t, got.Session)
}

func TestRequireMethodScope(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	reader := &Principal{Email: "a@b.c", Scopes: []string{ScopeProgramRead}}

	get := httptest.NewRequest(http.MethodGet, "/api/v1/programs", nil)
	rec := httptest.NewRecorder()
	RequireMethodScope(ok).ServeHTTP(rec, get.WithContext(WithPrincipal(get.Context(), reader)))
	assert.Equal(t, http.StatusOK, rec.Code)

	del := httptest.NewRequest(http.MethodDelete, "/api/v1/enrollments/e1/states/s1", nil)
	rec = httptest.NewRecorder()
	RequireMethodScope(ok).ServeHTTP(rec, del.WithContext(WithPrincipal(del.Context(), reader)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScopeFor(t *testing.T) {
	assert.Equal(t, ScopeProgramRead, ScopeFor(http.MethodGet))
	assert.Equal(t, ScopeProgramWrite, ScopeFor(http.MethodPost))
	assert.Equal(t, ScopeProgramWrite, ScopeFor(http.MethodDelete))
}

func TestLogoutHandler_ClearsCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	testAuth().LogoutHandler(rec, httptest.NewRequest(http.MethodGet, "/logout", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "id_token", cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
