package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketstock/internal/auth"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEcho(iss *auth.Issuer) *echo.Echo {
	e := echo.New()
	whoami := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"user_id": c.Get(CtxUserIDKey),
			"role":    c.Get(CtxUserRoleKey),
		})
	}
	e.GET("/me", whoami, AuthJWT(iss))
	e.GET("/admin", whoami, AuthJWT(iss), AdminRoleGuard())
	e.POST("/hook", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, WebhookSecret("s3cret"))
	return e
}

func do(e *echo.Echo, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthJWT(t *testing.T) {
	iss := auth.NewIssuer("secret", time.Minute)
	e := newTestEcho(iss)
	tok, _, err := iss.Issue(7, auth.RoleUser, time.Now())
	require.NoError(t, err)

	rec := do(e, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + tok})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":7,"role":"USER"}`, rec.Body.String())

	for _, h := range []string{"", "Bearer", "Basic " + tok, "Bearer garbage"} {
		rec = do(e, http.MethodGet, "/me", map[string]string{"Authorization": h})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, h)
	}
}

func TestAdminRoleGuard(t *testing.T) {
	iss := auth.NewIssuer("secret", time.Minute)
	e := newTestEcho(iss)
	user, _, err := iss.Issue(7, auth.RoleUser, time.Now())
	require.NoError(t, err)
	admin, _, err := iss.Issue(1, auth.RoleAdmin, time.Now())
	require.NoError(t, err)

	rec := do(e, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer " + user})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(e, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer " + admin})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookSecret(t *testing.T) {
	e := newTestEcho(auth.NewIssuer("secret", time.Minute))

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodPost, "/hook", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodPost, "/hook", map[string]string{WebhookSecretHeader: "nope"}).Code)
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodPost, "/hook", map[string]string{WebhookSecretHeader: "s3cret"}).Code)
}
