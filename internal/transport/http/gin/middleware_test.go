package httpgin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketarena/ticketarena/internal/domain"
)

func identityRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(IdentityMiddleware())

	router.GET("/me", RequireAuth(), func(c *gin.Context) {
		actor, _ := actorFrom(c)
		c.JSON(http.StatusOK, gin.H{"user_id": actor.UserID, "role": string(actor.Role)})
	})

	router.GET("/admin", RequireAuth(), RequireAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	return router
}

func doReq(t *testing.T, router *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	router.ServeHTTP(w, req)

	return w
}

func TestIdentityMiddleware(t *testing.T) {
	router := identityRouter()

	t.Run("no identity is 401", func(t *testing.T) {
		w := doReq(t, router, "/me", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid identity passes", func(t *testing.T) {
		w := doReq(t, router, "/me", map[string]string{
			"X-User-ID":   "7",
			"X-User-Role": "user",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":7,"role":"user"}`, w.Body.String())
	})

	t.Run("unknown role downgrades to user", func(t *testing.T) {
		w := doReq(t, router, "/me", map[string]string{
			"X-User-ID":   "7",
			"X-User-Role": "superadmin",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":7,"role":"user"}`, w.Body.String())
	})

	t.Run("garbage id is 401", func(t *testing.T) {
		w := doReq(t, router, "/me", map[string]string{"X-User-ID": "seven"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	router := identityRouter()

	t.Run("plain user is 403", func(t *testing.T) {
		w := doReq(t, router, "/admin", map[string]string{
			"X-User-ID":   "7",
			"X-User-Role": "user",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin passes", func(t *testing.T) {
		w := doReq(t, router, "/admin", map[string]string{
			"X-User-ID":   "1",
			"X-User-Role": string(domain.RoleAdmin),
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestSeatCategories(t *testing.T) {
	got := seatCategories([]string{"vip", "standard", "vip"})
	assert.Equal(t, []domain.TicketCategoryID{
		domain.TicketVIP, domain.TicketStandard, domain.TicketVIP,
	}, got)
}

func TestPagesOf(t *testing.T) {
	assert.Equal(t, 0, pagesOf(10, 0))
	assert.Equal(t, 1, pagesOf(10, 10))
	assert.Equal(t, 2, pagesOf(11, 10))
}
