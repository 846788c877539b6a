package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/databridge/internal/model"
	jwtopts "github.com/kart-io/databridge/pkg/options/jwt"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newTestRouter(a *Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/protected", a.Auth(), func(c *gin.Context) {
		auth, ok := AuthFromContext(c)
		if !ok {
			c.JSON(500, gin.H{"error": "no auth context"})
			return
		}
		c.JSON(200, auth)
	})
	return engine
}

func TestAuthDevMode(t *testing.T) {
	opts := jwtopts.NewOptions()
	opts.DevMode = true
	opts.DevEntityID = "local-dev"
	engine := newTestRouter(NewAuthenticator(opts))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("dev mode request rejected: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "local-dev") {
		t.Errorf("dev identity not injected: %s", w.Body.String())
	}
}

func TestAuthMissingHeader(t *testing.T) {
	opts := jwtopts.NewOptions()
	opts.Key = testKey
	engine := newTestRouter(NewAuthenticator(opts))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthInvalidToken(t *testing.T) {
	opts := jwtopts.NewOptions()
	opts.Key = testKey
	engine := newTestRouter(NewAuthenticator(opts))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMintAndVerify(t *testing.T) {
	opts := jwtopts.NewOptions()
	opts.Key = testKey
	opts.Expired = time.Hour
	a := NewAuthenticator(opts)

	token, expiry, err := a.Mint("alice", "app-1", nil)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if expiry != time.Hour {
		t.Errorf("unexpected expiry: %v", expiry)
	}

	auth, err := a.verify(token)
	if err != nil {
		t.Fatalf("verify() error = %v", err)
	}
	if auth.EntityID != "alice" || auth.EntityType != model.EntityTypeDeveloper {
		t.Errorf("unexpected identity: %+v", auth)
	}
	if auth.AppID != "app-1" {
		t.Errorf("app id not carried: %q", auth.AppID)
	}
	// Default mint grants full permissions.
	for _, p := range []string{model.PermissionRead, model.PermissionWrite, model.PermissionAdmin} {
		if !auth.HasPermission(p) {
			t.Errorf("missing permission %s", p)
		}
	}
}

func TestMintScopedToken(t *testing.T) {
	opts := jwtopts.NewOptions()
	opts.Key = testKey
	a := NewAuthenticator(opts)

	token, _, err := a.Mint("bob", "", []string{model.PermissionRead})
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	auth, err := a.verify(token)
	if err != nil {
		t.Fatalf("verify() error = %v", err)
	}
	if !auth.HasPermission(model.PermissionRead) || auth.HasPermission(model.PermissionWrite) {
		t.Errorf("scopes not honored: %+v", auth.Permissions)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	mintOpts := jwtopts.NewOptions()
	mintOpts.Key = testKey
	token, _, err := NewAuthenticator(mintOpts).Mint("alice", "", nil)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	verifyOpts := jwtopts.NewOptions()
	verifyOpts.Key = "another-secret-key-of-32-chars!!"
	if _, err := NewAuthenticator(verifyOpts).verify(token); err == nil {
		t.Error("token signed with a different key must be rejected")
	}
}
