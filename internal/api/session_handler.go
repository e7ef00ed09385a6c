package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cutlist/cutlist-agent/internal/session"
)

func openSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.MediaPath == "" {
			WriteError(w, http.StatusBadRequest, "media_path is required", "BAD_REQUEST")
			return
		}

		view, err := cfg.Sessions.Open(r.Context(), req.MediaPath)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, view)
	}
}

func listSessionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := cfg.Sessions.List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list sessions", "INTERNAL_ERROR")
			return
		}
		if sessions == nil {
			sessions = []*session.Session{}
		}
		WriteJSON(w, http.StatusOK, SessionsResponse{Sessions: sessions})
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := cfg.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
		writeView(w, view, err)
	}
}

func closeSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Sessions.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func loadMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MediaPath == "" {
			WriteError(w, http.StatusBadRequest, "media_path is required", "BAD_REQUEST")
			return
		}
		view, err := cfg.Sessions.LoadMedia(r.Context(), chi.URLParam(r, "id"), req.MediaPath)
		writeView(w, view, err)
	}
}

func resetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := cfg.Sessions.StartNew(r.Context(), chi.URLParam(r, "id"))
		writeView(w, view, err)
	}
}

func markStartHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at, ok := decodeMark(w, r)
		if !ok {
			return
		}
		view, err := cfg.Sessions.MarkStart(r.Context(), chi.URLParam(r, "id"), at)
		writeView(w, view, err)
	}
}

func markEndHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at, ok := decodeMark(w, r)
		if !ok {
			return
		}
		view, err := cfg.Sessions.MarkEnd(r.Context(), chi.URLParam(r, "id"), at)
		writeView(w, view, err)
	}
}

func decodeMark(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	var req MarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return 0, false
	}
	if req.AtMs == nil {
		WriteError(w, http.StatusBadRequest, "at_ms is required", "BAD_REQUEST")
		return 0, false
	}
	return time.Duration(*req.AtMs) * time.Millisecond, true
}

func moveClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := clipIndex(w, r)
		if !ok {
			return
		}
		var req MoveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		ctx := r.Context()
		id := chi.URLParam(r, "id")
		var view *session.View
		var err error
		switch {
		case req.To != nil:
			view, err = cfg.Sessions.MoveTo(ctx, id, index, *req.To)
		case req.Direction == "up":
			view, err = cfg.Sessions.MoveUp(ctx, id, index)
		case req.Direction == "down":
			view, err = cfg.Sessions.MoveDown(ctx, id, index)
		default:
			WriteError(w, http.StatusBadRequest, "either to or direction (up, down) is required", "BAD_REQUEST")
			return
		}
		writeView(w, view, err)
	}
}

func removeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := clipIndex(w, r)
		if !ok {
			return
		}
		view, err := cfg.Sessions.RemoveAt(r.Context(), chi.URLParam(r, "id"), index)
		writeView(w, view, err)
	}
}

func clearClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := cfg.Sessions.Clear(r.Context(), chi.URLParam(r, "id"))
		writeView(w, view, err)
	}
}

func thumbnailHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := clipIndex(w, r)
		if !ok {
			return
		}
		path, err := cfg.Sessions.Thumbnail(r.Context(), chi.URLParam(r, "id"), index)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if err := cfg.PlaybackServer.ServeFile(w, r, path); err != nil {
			cfg.Logger.Error("thumbnail error", "error", err)
		}
	}
}

func saveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SaveRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
				return
			}
		}
		job, err := cfg.Sessions.RequestSave(r.Context(), chi.URLParam(r, "id"), req.DestPath)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, JobToResponse(job))
	}
}

func clipIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "clip index must be an integer", "BAD_REQUEST")
		return 0, false
	}
	return index, true
}

func writeView(w http.ResponseWriter, view *session.View, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}
