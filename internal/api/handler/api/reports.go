package api

import (
	"net/http"
	"path"
	"strings"

	"github.com/newthinker/tradecost/internal/api/response"
	"github.com/newthinker/tradecost/internal/storage/archive"
)

const reportsPrefix = "reports/"

// ReportsHandler serves archived report artifacts.
type ReportsHandler struct {
	archive archive.Storage
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(store archive.Storage) *ReportsHandler {
	return &ReportsHandler{archive: store}
}

// List handles GET /api/v1/reports?prefix=20250106 and returns archive keys.
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := reportsPrefix + strings.TrimPrefix(r.URL.Query().Get("prefix"), reportsPrefix)

	keys, err := h.archive.List(r.Context(), prefix)
	if err != nil {
		response.FromError(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"keys":  keys,
		"total": len(keys),
	})
}

// Get handles GET /api/v1/reports/{key...}, returning the artifact as stored.
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := reportsPrefix + r.PathValue("key")

	data, err := h.archive.Read(r.Context(), key)
	if err != nil {
		response.FromError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType(key))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	}
	return "application/octet-stream"
}
