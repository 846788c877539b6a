package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/databridge/internal/databridge/biz"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

// queryTimeout bounds retrieval-plus-completion requests.
const queryTimeout = 60 * time.Second

// RetrieveChunks returns the chunks most relevant to a query.
func (h *Handler) RetrieveChunks(c *gin.Context) {
	a, ok := auth(c)
	if !ok {
		return
	}

	var req biz.RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utilerrors.ErrBadRequest.WithCause(err))
		return
	}

	start := time.Now()
	chunks, err := h.service.RetrieveChunks(c.Request.Context(), a, &req)
	h.usage.Observe("retrieve_chunks", a.EntityID, 0, time.Since(start), err, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, chunks)
}

// RetrieveDocs returns document-level retrieval results.
func (h *Handler) RetrieveDocs(c *gin.Context) {
	a, ok := auth(c)
	if !ok {
		return
	}

	var req biz.RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utilerrors.ErrBadRequest.WithCause(err))
		return
	}

	start := time.Now()
	docs, err := h.service.RetrieveDocs(c.Request.Context(), a, &req)
	h.usage.Observe("retrieve_docs", a.EntityID, 0, time.Since(start), err, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, docs)
}

// Query retrieves chunks and generates a grounded completion.
func (h *Handler) Query(c *gin.Context) {
	a, ok := auth(c)
	if !ok {
		return
	}

	var req biz.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utilerrors.ErrBadRequest.WithCause(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	start := time.Now()
	resp, err := h.service.Query(ctx, a, &req)
	tokens := 0
	if resp != nil {
		tokens = resp.Usage.TotalTokens
	}
	h.usage.Observe("query", a.EntityID, tokens, time.Since(start), err, map[string]any{
		"k":          req.K,
		"max_tokens": req.MaxTokens,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			respondError(c, utilerrors.ErrTimeout.WithMessage("query took too long to process"))
			return
		}
		respondError(c, err)
		return
	}
	respond(c, resp)
}
