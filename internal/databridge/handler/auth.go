package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/databridge/internal/model"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

// MintDevToken signs a developer token with full permissions. The
// endpoint only exists in dev mode; outside it the route answers 404.
func (h *Handler) MintDevToken(c *gin.Context) {
	if !h.authn.DevMode() {
		respondError(c, utilerrors.ErrNotFound)
		return
	}

	var req model.DevTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utilerrors.ErrBadRequest.WithCause(err))
		return
	}
	if req.EntityID == "" {
		req.EntityID = "admin"
	}
	req.EntityID = strings.ToLower(strings.ReplaceAll(req.EntityID, " ", "_"))

	token, expiry, err := h.authn.Mint(req.EntityID, req.AppID, req.Scopes)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, model.DevTokenResponse{Token: token, ExpiresIn: int64(expiry.Seconds())})
}

// Healthz is the basic liveness check.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Ready reports the configured component providers.
func (h *Handler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": h.components})
}
