package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cutlist/cutlist-agent/internal/session"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	// Media elements cannot send an Authorization header, so playback is
	// limited to loopback callers instead.
	r.Group(func(r chi.Router) {
		r.Use(LoopbackGuard())

		r.Get("/sessions/{id}/media", sessionMediaHandler(cfg))
		r.Head("/sessions/{id}/media", sessionMediaHandler(cfg))
		r.Get("/jobs/{id}/output", jobOutputHandler(cfg))
		r.Head("/jobs/{id}/output", jobOutputHandler(cfg))
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Post("/sessions", openSessionHandler(cfg))
		r.Get("/sessions", listSessionsHandler(cfg))
		r.Get("/sessions/{id}", getSessionHandler(cfg))
		r.Delete("/sessions/{id}", closeSessionHandler(cfg))
		r.Post("/sessions/{id}/media", loadMediaHandler(cfg))
		r.Post("/sessions/{id}/reset", resetHandler(cfg))
		r.Post("/sessions/{id}/marks/start", markStartHandler(cfg))
		r.Post("/sessions/{id}/marks/end", markEndHandler(cfg))
		r.Delete("/sessions/{id}/clips", clearClipsHandler(cfg))
		r.Post("/sessions/{id}/clips/{index}/move", moveClipHandler(cfg))
		r.Delete("/sessions/{id}/clips/{index}", removeClipHandler(cfg))
		r.Get("/sessions/{id}/clips/{index}/thumbnail", thumbnailHandler(cfg))
		r.Put("/sessions/{id}/edl", importEDLHandler(cfg))
		r.Get("/sessions/{id}/edl", exportEDLHandler(cfg))
		r.Get("/sessions/{id}/edl/cmx", exportCMXHandler(cfg))
		r.Post("/sessions/{id}/save", saveHandler(cfg))

		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Post("/jobs/{id}/cancel", cancelJobHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		version := cfg.Version
		if version == "" {
			version = "dev"
		}
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sessions, _ := cfg.Sessions.List(ctx)
		jobs, _ := cfg.Repository.ListJobs(ctx, 10)

		state := "idle"
		var activeJob *JobResponse
		jobsRunning, jobsPending := 0, 0
		lastError := ""

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, j := range jobs {
			switch j.Status {
			case session.JobStatusRunning:
				state = "saving"
				resp := JobToResponse(j)
				activeJob = &resp
				jobsRunning++
			case session.JobStatusPending:
				jobsPending++
			case session.JobStatusFailed:
				if lastError == "" {
					lastError = j.Error
				}
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		resp := StatusResponse{
			State:         state,
			LastError:     lastError,
			SessionsCount: len(sessions),
			JobsRunning:   jobsRunning,
			JobsPending:   jobsPending,
			ActiveJob:     activeJob,
		}

		// Peek keeps status requests from spawning ffmpeg; the cache is filled
		// at startup and by save jobs.
		if cfg.Doctor != nil {
			if caps := cfg.Doctor.Peek(); caps != nil {
				resp.Media = &MediaStatusResponse{
					FFmpeg:      caps.FFmpeg,
					FFprobe:     caps.FFprobe,
					Ready:       caps.AllOK(),
					LastProbeAt: caps.ProbedAt.Format(time.RFC3339),
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Repository.ListJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func cancelJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "job runner not configured", "UNAVAILABLE")
			return
		}
		id := chi.URLParam(r, "id")
		if err := cfg.Runner.Cancel(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func sessionMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		path, err := cfg.Sessions.MediaPath(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if err := cfg.PlaybackServer.ServeFile(w, r, path); err != nil {
			cfg.Logger.Error("playback error", "error", err, "session_id", id)
		}
	}
}

func jobOutputHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if job == nil {
			writeServiceError(w, session.ErrJobNotFound)
			return
		}
		if job.Status != session.JobStatusCompleted || job.OutputPath == "" {
			WriteError(w, http.StatusConflict, "job has no output", "INVALID_STATE")
			return
		}
		if err := cfg.PlaybackServer.ServeFile(w, r, job.OutputPath); err != nil {
			cfg.Logger.Error("playback error", "error", err, "job_id", id)
		}
	}
}
