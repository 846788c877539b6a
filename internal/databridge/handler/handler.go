// Package handler provides HTTP handlers for the DataBridge API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/databridge/internal/databridge/biz"
	"github.com/kart-io/databridge/internal/databridge/middleware"
	"github.com/kart-io/databridge/internal/databridge/telemetry"
	"github.com/kart-io/databridge/internal/model"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

// Handler handles DataBridge HTTP requests.
type Handler struct {
	service biz.Service
	authn   *middleware.Authenticator
	usage   *telemetry.Tracker

	// components maps component role to the configured provider name,
	// reported by the readiness endpoint.
	components map[string]string
}

// New creates a new Handler.
func New(service biz.Service, authn *middleware.Authenticator, usage *telemetry.Tracker, components map[string]string) *Handler {
	return &Handler{
		service:    service,
		authn:      authn,
		usage:      usage,
		components: components,
	}
}

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respond(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessResponse{Code: utilerrors.OK.Code, Message: "success", Data: data})
}

func respondError(c *gin.Context, err error) {
	e := utilerrors.FromError(err)
	c.JSON(e.HTTPStatus(), ErrorResponse{Code: e.Code, Message: e.MessageEN})
}

// auth extracts the caller identity injected by the auth middleware.
func auth(c *gin.Context) (model.AuthContext, bool) {
	a, ok := middleware.AuthFromContext(c)
	if !ok {
		respondError(c, utilerrors.ErrUnauthorized)
	}
	return a, ok
}
