package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/staybase/staybase-backend/internal/auth"
)

func newAdminRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireAdmin())
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(CtxUserID),
			"email":   c.GetString(CtxUserEmail),
		})
	})
	return r
}

func serveWithAuth(t *testing.T, r *gin.Engine, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateJWT("user-123", "ops@staybase.io", auth.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	return token
}

func TestRequireAdmin_ValidToken(t *testing.T) {
	r := newAdminRouter()

	w := serveWithAuth(t, r, "Bearer "+adminToken(t))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
}

func TestRequireAdmin_MissingHeader(t *testing.T) {
	r := newAdminRouter()

	w := serveWithAuth(t, r, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireAdmin_NonBearerHeader(t *testing.T) {
	r := newAdminRouter()

	w := serveWithAuth(t, r, "Basic dXNlcjpwYXNz")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireAdmin_EmptyToken(t *testing.T) {
	r := newAdminRouter()

	w := serveWithAuth(t, r, "Bearer   ")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireAdmin_GarbageToken(t *testing.T) {
	r := newAdminRouter()

	w := serveWithAuth(t, r, "Bearer not.a.token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireAdmin_ExpiredToken(t *testing.T) {
	token, err := auth.GenerateJWT("user-123", "ops@staybase.io", auth.RoleAdmin, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	r := newAdminRouter()

	w := serveWithAuth(t, r, "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireAdmin_NonAdminRole(t *testing.T) {
	token, err := auth.GenerateJWT("user-456", "viewer@staybase.io", "viewer", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	r := newAdminRouter()

	w := serveWithAuth(t, r, "Bearer "+token)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRequireAdmin_SetsIdentityContext(t *testing.T) {
	r := newAdminRouter()

	w := serveWithAuth(t, r, "Bearer "+adminToken(t))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{`"user_id":"user-123"`, `"email":"ops@staybase.io"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body %s missing %s", body, want)
		}
	}
}
