package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/databridge/internal/databridge/biz"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

// IngestText ingests a text document.
func (h *Handler) IngestText(c *gin.Context) {
	a, ok := auth(c)
	if !ok {
		return
	}

	var req biz.IngestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utilerrors.ErrBadRequest.WithCause(err))
		return
	}

	start := time.Now()
	doc, err := h.service.IngestText(c.Request.Context(), a, &req)
	h.usage.Observe("ingest_text", a.EntityID, len(strings.Fields(req.Content)), time.Since(start), err, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, doc)
}

// IngestFile ingests a base64-encoded file, storing the original in
// blob storage.
func (h *Handler) IngestFile(c *gin.Context) {
	a, ok := auth(c)
	if !ok {
		return
	}

	var req biz.IngestFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utilerrors.ErrBadRequest.WithCause(err))
		return
	}

	start := time.Now()
	doc, err := h.service.IngestFile(c.Request.Context(), a, &req)
	h.usage.Observe("ingest_file", a.EntityID, 0, time.Since(start), err, map[string]any{
		"filename":     req.Filename,
		"content_type": req.ContentType,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, doc)
}

// ListDocumentsRequest carries the optional listing filters.
type ListDocumentsRequest struct {
	Filters map[string]any `json:"filters,omitempty"`
}

// ListDocuments lists documents the caller can read.
func (h *Handler) ListDocuments(c *gin.Context) {
	a, ok := auth(c)
	if !ok {
		return
	}

	skip, _ := strconv.ParseInt(c.DefaultQuery("skip", "0"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)

	var req ListDocumentsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, utilerrors.ErrBadRequest.WithCause(err))
			return
		}
	}

	docs, err := h.service.ListDocuments(c.Request.Context(), a, req.Filters, skip, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, docs)
}

// GetDocument fetches one document by id.
func (h *Handler) GetDocument(c *gin.Context) {
	a, ok := auth(c)
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, doc)
}

// UpdateMetadataRequest carries the metadata keys to merge.
type UpdateMetadataRequest struct {
	Metadata map[string]any `json:"metadata"`
}

// UpdateDocumentMetadata merges new user metadata into a document.
func (h *Handler) UpdateDocumentMetadata(c *gin.Context) {
	a, ok := auth(c)
	if !ok {
		return
	}

	var req UpdateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utilerrors.ErrBadRequest.WithCause(err))
		return
	}

	doc, err := h.service.UpdateDocumentMetadata(c.Request.Context(), a, c.Param("id"), req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, doc)
}

// DeleteDocument deletes a document, its chunks and its stored file.
func (h *Handler) DeleteDocument(c *gin.Context) {
	a, ok := auth(c)
	if !ok {
		return
	}

	if err := h.service.DeleteDocument(c.Request.Context(), a, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, nil)
}
