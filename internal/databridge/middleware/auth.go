// Package middleware provides gin middleware for the DataBridge API.
package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/kart-io/databridge/internal/model"
	jwtopts "github.com/kart-io/databridge/pkg/options/jwt"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

// authContextKey is the gin context key holding the caller identity.
const authContextKey = "databridge/auth"

// Authenticator verifies bearer tokens and injects the caller's
// AuthContext into the request context.
type Authenticator struct {
	opts *jwtopts.Options
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(opts *jwtopts.Options) *Authenticator {
	return &Authenticator{opts: opts}
}

// DevMode reports whether the authenticator runs in dev mode.
func (a *Authenticator) DevMode() bool {
	return a.opts.DevMode
}

// Auth returns the authentication middleware. In dev mode every
// request runs as a fixed developer identity with full permissions.
func (a *Authenticator) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.opts.DevMode {
			c.Set(authContextKey, model.AuthContext{
				EntityType: model.EntityTypeDeveloper,
				EntityID:   a.opts.DevEntityID,
				Permissions: map[string]bool{
					model.PermissionRead:  true,
					model.PermissionWrite: true,
					model.PermissionAdmin: true,
				},
			})
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, utilerrors.ErrUnauthorized.WithMessage("missing authorization header"))
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			abortWithError(c, utilerrors.ErrUnauthorized.WithMessage("invalid authorization header"))
			return
		}

		auth, err := a.verify(token)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(authContextKey, auth)
		c.Next()
	}
}

// verify parses and validates the token, returning the caller identity.
func (a *Authenticator) verify(tokenString string) (model.AuthContext, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(a.opts.Key), nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "expired") {
			return model.AuthContext{}, utilerrors.ErrTokenExpired
		}
		return model.AuthContext{}, utilerrors.ErrInvalidToken.WithCause(err)
	}
	if !token.Valid {
		return model.AuthContext{}, utilerrors.ErrInvalidToken
	}

	entityType, _ := claims["type"].(string)
	entityID, _ := claims["entity_id"].(string)
	if entityID == "" {
		return model.AuthContext{}, utilerrors.ErrInvalidToken.WithMessage("token missing entity_id")
	}
	appID, _ := claims["app_id"].(string)

	// Tokens without explicit permissions default to read-only.
	permissions := map[string]bool{model.PermissionRead: true}
	if raw, ok := claims["permissions"].([]any); ok {
		permissions = make(map[string]bool, len(raw))
		for _, p := range raw {
			if s, ok := p.(string); ok {
				permissions[s] = true
			}
		}
	}

	return model.AuthContext{
		EntityType:  model.EntityType(entityType),
		EntityID:    entityID,
		AppID:       appID,
		Permissions: permissions,
	}, nil
}

// Mint signs a developer token with full permissions.
func (a *Authenticator) Mint(entityID, appID string, scopes []string) (string, time.Duration, error) {
	permissions := scopes
	if len(permissions) == 0 {
		permissions = []string{model.PermissionRead, model.PermissionWrite, model.PermissionAdmin}
	}

	claims := jwt.MapClaims{
		"type":        string(model.EntityTypeDeveloper),
		"entity_id":   entityID,
		"permissions": permissions,
		"exp":         time.Now().Add(a.opts.Expired).Unix(),
	}
	if appID != "" {
		claims["app_id"] = appID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.opts.Key))
	if err != nil {
		return "", 0, utilerrors.ErrInternal.WithCause(err)
	}
	return signed, a.opts.Expired, nil
}

// AuthFromContext returns the caller identity set by Auth.
func AuthFromContext(c *gin.Context) (model.AuthContext, bool) {
	v, ok := c.Get(authContextKey)
	if !ok {
		return model.AuthContext{}, false
	}
	auth, ok := v.(model.AuthContext)
	return auth, ok
}

func abortWithError(c *gin.Context, err error) {
	e := utilerrors.FromError(err)
	c.AbortWithStatusJSON(e.HTTPStatus(), gin.H{
		"code":    e.Code,
		"message": e.MessageEN,
	})
}
