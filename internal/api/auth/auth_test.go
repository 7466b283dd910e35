package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/leadintake/internal/contractors"
)

func newTestService(t *testing.T) (*Service, *contractors.InMemoryStore) {
	t.Helper()
	tokens, err := NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)
	store := contractors.NewInMemoryStore()
	svc := NewService(store, tokens)
	svc.BcryptCost = bcrypt.MinCost
	return svc, store
}

func strPtr(s string) *string { return &s }

func TestRegister(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c, err := svc.Register(ctx, strPtr("  Acme Remodeling "), " Owner@Acme.Test ", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "owner@acme.test", c.Email)
	require.NotNil(t, c.Name)
	assert.Equal(t, "Acme Remodeling", *c.Name)

	stored, err := store.GetByEmail(ctx, "owner@acme.test")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", stored.PasswordHash)
	assert.True(t, comparePasswords(stored.PasswordHash, "hunter22"))

	_, err = svc.Register(ctx, nil, "owner@acme.test", "different1")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	cases := []struct{ email, password string }{
		{"", "hunter22"},
		{"x@acme.test", ""},
		{"not-an-email", "hunter22"},
		{"short@acme.test", "short"},
	}
	for _, tc := range cases {
		_, err := svc.Register(ctx, nil, tc.email, tc.password)
		assert.ErrorIs(t, err, ErrValidation, "email=%q password=%q", tc.email, tc.password)
	}

	blank, err := svc.Register(ctx, strPtr("   "), "b@acme.test", "hunter22")
	require.NoError(t, err)
	assert.Nil(t, blank.Name)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Register(ctx, nil, "owner@acme.test", "hunter22")
	require.NoError(t, err)

	tok, err := svc.Login(ctx, "OWNER@acme.test", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.NotEmpty(t, tok.Token)

	id, err := svc.Tokens().Authenticate(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, c.ID, id)

	_, errWrong := svc.Login(ctx, "owner@acme.test", "wrong-password")
	_, errUnknown := svc.Login(ctx, "nobody@acme.test", "hunter22")
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())

	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenLifecycle(t *testing.T) {
	ts, err := NewTokenService("secret", time.Hour)
	require.NoError(t, err)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return now }

	tok, err := ts.Issue(7)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), tok.ExpiresAt)

	id, err := ts.Authenticate(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	// Two logins give independent sessions.
	other, err := ts.Issue(7)
	require.NoError(t, err)
	assert.NotEqual(t, tok.Token, other.Token)

	require.NoError(t, ts.Revoke(tok.Token))
	_, err = ts.Authenticate(tok.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, ts.Revoke(tok.Token), ErrUnauthenticated)

	_, err = ts.Authenticate(other.Token)
	assert.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = ts.Authenticate(other.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, 1, ts.CleanupExpiredTokens())
	assert.Equal(t, 0, ts.ActiveSessions())
}

func TestTokenRejectsForgeries(t *testing.T) {
	ts, err := NewTokenService("secret", time.Hour)
	require.NoError(t, err)
	tok, err := ts.Issue(1)
	require.NoError(t, err)

	for _, bad := range []string{"", "garbage", tok.Token + "x"} {
		_, err := ts.Authenticate(bad)
		assert.ErrorIs(t, err, ErrUnauthenticated, bad)
	}

	// Same session hash signed with another key.
	other, err := NewTokenService("other-secret", time.Hour)
	require.NoError(t, err)
	forged, err := other.Issue(1)
	require.NoError(t, err)
	_, err = ts.Authenticate(forged.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// Valid signature but a claim for another contractor.
	claims, err := ts.parseTokenClaims(tok.Token)
	require.NoError(t, err)
	claims.ContractorID = 2
	resigned, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ts.Authenticate(resigned)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = NewTokenService("", time.Hour)
	assert.Error(t, err)
}

func TestCleanupScheduler(t *testing.T) {
	ts, err := NewTokenService("secret", time.Millisecond)
	require.NoError(t, err)
	_, err = ts.Issue(1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ts.StartCleanupScheduler(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return ts.ActiveSessions() == 0 }, time.Second, 5*time.Millisecond)
}

func newEchoContext(method, body, authz string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandlers(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewAuthHandlers(svc)

	c, rec := newEchoContext(http.MethodPost, `{"name":"Acme","email":"owner@acme.test","password":"hunter22"}`, "")
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	var reg map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Equal(t, true, reg["success"])
	assert.EqualValues(t, 1, reg["contractorId"])

	c, _ = newEchoContext(http.MethodPost, `{"email":"owner@acme.test","password":"hunter22"}`, "")
	assert.ErrorIs(t, h.Register(c), ErrDuplicateEmail)

	c, _ = newEchoContext(http.MethodPost, `{not json`, "")
	var he *echo.HTTPError
	require.ErrorAs(t, h.Register(c), &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)

	c, rec = newEchoContext(http.MethodPost, `{"email":"owner@acme.test","password":"hunter22"}`, "")
	require.NoError(t, h.Login(c))
	var login struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.True(t, login.Success)
	require.NotEmpty(t, login.Token)

	c, _ = newEchoContext(http.MethodPost, `{"email":"owner@acme.test","password":"nope"}`, "")
	assert.ErrorIs(t, h.Login(c), ErrInvalidCredentials)

	// Logout through the middleware, once with the raw header form.
	mw := RequireAuth(svc.Tokens())
	c, rec = newEchoContext(http.MethodPost, ``, login.Token)
	require.NoError(t, mw(h.Logout)(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, _ = newEchoContext(http.MethodPost, ``, "Bearer "+login.Token)
	assert.ErrorIs(t, mw(h.Logout)(c), ErrUnauthenticated)
}

func TestRequireAuth(t *testing.T) {
	svc, _ := newTestService(t)
	tok, err := svc.Tokens().Issue(42)
	require.NoError(t, err)

	var seen int64
	next := func(c echo.Context) error {
		id, ok := ContractorID(c)
		require.True(t, ok)
		seen = id
		return c.NoContent(http.StatusNoContent)
	}
	mw := RequireAuth(svc.Tokens())

	c, rec := newEchoContext(http.MethodGet, "", "bearer "+tok.Token)
	require.NoError(t, mw(next)(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(42), seen)

	c, _ = newEchoContext(http.MethodGet, "", "")
	assert.ErrorIs(t, mw(next)(c), ErrUnauthenticated)

	c, _ = newEchoContext(http.MethodGet, "", "Bearer nonsense")
	assert.ErrorIs(t, mw(next)(c), ErrUnauthenticated)
}
