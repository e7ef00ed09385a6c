package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cutlist/cutlist-agent/internal/export"
)

// maxEDLBytes bounds an uploaded EDL document.
const maxEDLBytes = 1 << 20

func importEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEDLBytes))
		if err != nil {
			WriteError(w, http.StatusRequestEntityTooLarge, "edl document too large", "BAD_REQUEST")
			return
		}

		edlPath := r.URL.Query().Get("path")
		if edlPath != "" && !filepath.IsAbs(edlPath) {
			WriteError(w, http.StatusBadRequest, "path must be absolute", "BAD_REQUEST")
			return
		}

		view, err := cfg.Sessions.ImportEDL(r.Context(), chi.URLParam(r, "id"), data, edlPath)
		writeView(w, view, err)
	}
}

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")

		data, err := cfg.Sessions.ExportEDL(ctx, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		name := "cutlist.edl"
		if view, err := cfg.Sessions.Get(ctx, id); err == nil {
			name = filepath.Base(view.DefaultEDLPath)
		}
		writeAttachment(w, "text/plain; charset=utf-8", name, data)
	}
}

func exportCMXHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")
		title := export.SanitizeName(r.URL.Query().Get("title"), 70)

		doc, err := cfg.Sessions.ExportCMX(ctx, id, title)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		name := "cutlist_cmx.edl"
		if view, err := cfg.Sessions.Get(ctx, id); err == nil {
			name = strings.TrimSuffix(filepath.Base(view.DefaultEDLPath), ".edl") + "_cmx.edl"
		}
		writeAttachment(w, "text/plain; charset=utf-8", name, []byte(doc))
	}
}

func writeAttachment(w http.ResponseWriter, contentType, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
