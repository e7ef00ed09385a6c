// Package playback streams session media, saved results and thumbnails to
// local players with byte-range support so they can seek.
package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type PlaybackService interface {
	ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// ServeFile writes filePath honoring a single Range header span. Client
// disconnects mid-copy are logged, not returned.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		http.Error(w, "not a file", http.StatusNotFound)
		return nil
	}

	size := stat.Size()
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType(filePath))
	w.Header().Set("Last-Modified", stat.ModTime().UTC().Format(http.TimeFormat))

	parsedRange, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrInvalidRange):
		// A malformed Range is ignored and the whole file is sent.
		parsedRange = nil
	case err != nil:
		return err
	}

	if parsedRange == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			s.copy(w, file, size, filePath)
		}
		return nil
	}

	w.Header().Set("Content-Length", strconv.FormatInt(parsedRange.ContentLength(), 10))
	w.Header().Set("Content-Range", parsedRange.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return nil
	}

	if _, err := file.Seek(parsedRange.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	s.copy(w, file, parsedRange.ContentLength(), filePath)
	return nil
}

func (s *Server) copy(w io.Writer, src io.Reader, n int64, path string) {
	start := time.Now()
	written, err := io.CopyN(w, src, n)
	if err != nil && s.logger != nil {
		s.logger.Debug("playback copy ended early",
			"file", filepath.Base(path),
			"written", written,
			"want", n,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
	}
}

func contentType(path string) string {
	ext := filepath.Ext(path)
	switch ext {
	case ".mkv":
		return "video/x-matroska"
	case ".ts", ".mts", ".m2ts":
		return "video/mp2t"
	case ".flv":
		return "video/x-flv"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
