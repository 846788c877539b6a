package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/databridge/internal/databridge/biz"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

// CreateCache builds and persists a named context cache.
func (h *Handler) CreateCache(c *gin.Context) {
	a, ok := auth(c)
	if !ok {
		return
	}

	var req biz.CreateCacheRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utilerrors.ErrBadRequest.WithCause(err))
		return
	}
	if req.Name == "" {
		respondError(c, utilerrors.ErrMissingParam.WithMessage("cache name is required"))
		return
	}

	meta, err := h.service.CreateCache(c.Request.Context(), a, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, meta)
}

// LoadCache loads a persisted cache into process memory.
func (h *Handler) LoadCache(c *gin.Context) {
	if _, ok := auth(c); !ok {
		return
	}

	if err := h.service.LoadCache(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"loaded": true})
}

// UpdateCache appends newly filter-matched documents to a cache.
func (h *Handler) UpdateCache(c *gin.Context) {
	a, ok := auth(c)
	if !ok {
		return
	}

	updated, err := h.service.UpdateCache(c.Request.Context(), a, c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"updated": updated})
}

// AddDocsRequest lists documents to append to a cache.
type AddDocsRequest struct {
	Docs []string `json:"docs" binding:"required"`
}

// AddDocsToCache appends explicitly listed documents to a cache.
func (h *Handler) AddDocsToCache(c *gin.Context) {
	a, ok := auth(c)
	if !ok {
		return
	}

	var req AddDocsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utilerrors.ErrBadRequest.WithCause(err))
		return
	}

	added, err := h.service.AddDocsToCache(c.Request.Context(), a, c.Param("name"), req.Docs)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"added": added})
}

// CacheQueryRequest is the body of a cache query.
type CacheQueryRequest struct {
	Query       string  `json:"query" binding:"required"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// QueryCache runs a completion against a loaded cache.
func (h *Handler) QueryCache(c *gin.Context) {
	a, ok := auth(c)
	if !ok {
		return
	}

	var req CacheQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utilerrors.ErrBadRequest.WithCause(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	start := time.Now()
	resp, err := h.service.QueryCache(ctx, c.Param("name"), req.Query, req.MaxTokens, req.Temperature)
	tokens := 0
	if resp != nil {
		tokens = resp.Usage.TotalTokens
	}
	h.usage.Observe("cache_query", a.EntityID, tokens, time.Since(start), err, map[string]any{"cache": c.Param("name")})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, resp)
}
