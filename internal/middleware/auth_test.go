package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/widyaops/confdeploy/internal/config"
	"github.com/widyaops/confdeploy/internal/database"
	"github.com/widyaops/confdeploy/internal/middleware"
	"github.com/widyaops/confdeploy/internal/services"
)

func setupAuth(t *testing.T) *services.AuthService {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	cfg := &config.Config{}
	cfg.Auth.BcryptCost = 4
	cfg.Auth.SessionDuration = "1h"

	return services.NewAuthService(db, cfg, nil)
}

func protectedRouter(authService *services.AuthService) *gin.Engine {
	r := gin.New()
	r.GET("/protected", middleware.AuthRequired(authService), func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"username": user.Username})
	})
	return r
}

func TestAuthRequired_NoCookie(t *testing.T) {
	r := protectedRouter(setupAuth(t))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/protected", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthRequired_InvalidSession(t *testing.T) {
	r := protectedRouter(setupAuth(t))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "bogus"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthRequired_ValidSession(t *testing.T) {
	authService := setupAuth(t)
	r := protectedRouter(authService)

	if _, err := authService.CreateUser("admin", "secret", true); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	session, err := authService.Login("admin", "secret", "")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/protected", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: session.ID})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != `{"username":"admin"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestAdminRequired(t *testing.T) {
	authService := setupAuth(t)

	r := gin.New()
	r.GET("/admin", middleware.AuthRequired(authService), middleware.AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	if _, err := authService.CreateUser("viewer", "secret", false); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	session, err := authService.Login("viewer", "secret", "")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/admin", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: session.ID})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin, got %d", w.Code)
	}
}
