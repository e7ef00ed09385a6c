package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cutlist/cutlist-agent/internal/media"
	"github.com/cutlist/cutlist-agent/internal/playback"
	"github.com/cutlist/cutlist-agent/internal/session"
)

// SessionService is the session API the handlers drive.
type SessionService interface {
	Open(ctx context.Context, mediaPath string) (*session.View, error)
	Get(ctx context.Context, id string) (*session.View, error)
	List(ctx context.Context) ([]*session.Session, error)
	Close(ctx context.Context, id string) error
	LoadMedia(ctx context.Context, id, mediaPath string) (*session.View, error)
	StartNew(ctx context.Context, id string) (*session.View, error)
	MarkStart(ctx context.Context, id string, at time.Duration) (*session.View, error)
	MarkEnd(ctx context.Context, id string, at time.Duration) (*session.View, error)
	MoveUp(ctx context.Context, id string, index int) (*session.View, error)
	MoveDown(ctx context.Context, id string, index int) (*session.View, error)
	MoveTo(ctx context.Context, id string, from, to int) (*session.View, error)
	RemoveAt(ctx context.Context, id string, index int) (*session.View, error)
	Clear(ctx context.Context, id string) (*session.View, error)
	ImportEDL(ctx context.Context, id string, data []byte, edlPath string) (*session.View, error)
	ExportEDL(ctx context.Context, id string) ([]byte, error)
	ExportCMX(ctx context.Context, id, title string) (string, error)
	Thumbnail(ctx context.Context, id string, index int) (string, error)
	MediaPath(ctx context.Context, id string) (string, error)
	RequestSave(ctx context.Context, id, dest string) (*session.Job, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	Version        string
	Sessions       SessionService
	PlaybackServer playback.PlaybackService
	Repository     session.Repository
	Runner         *session.Runner
	Doctor         *media.CachedDoctor
	Logger         *slog.Logger
	StartTime      time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
