package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/databridge/internal/databridge/telemetry"
	"github.com/kart-io/databridge/internal/model"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

// UsageStats returns the aggregate usage counters for the caller.
func (h *Handler) UsageStats(c *gin.Context) {
	a, ok := auth(c)
	if !ok {
		return
	}
	respond(c, h.usage.UserUsage(a.EntityID))
}

// UsageRecent returns recent operation records. Non-admin callers only
// see their own records.
func (h *Handler) UsageRecent(c *gin.Context) {
	a, ok := auth(c)
	if !ok {
		return
	}

	filter := telemetry.Filter{
		OperationType: c.Query("operation_type"),
		Status:        c.Query("status"),
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(c, utilerrors.ErrInvalidParam.WithMessage("since must be RFC3339"))
			return
		}
		filter.Since = t
	}
	if !a.HasPermission(model.PermissionAdmin) {
		filter.UserID = a.EntityID
	}

	respond(c, h.usage.Recent(filter))
}
