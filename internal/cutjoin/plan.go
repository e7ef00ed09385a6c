package cutjoin

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Plan lists the files one save run creates besides its output.
type Plan struct {
	Intermediates []string
	Manifest      string
	Dest          string
}

// NewPlan derives intermediate and manifest names for n clips saved to dest.
// The names are hidden and carry a per-run token, so they cannot collide with
// the user's own files next to dest.
func NewPlan(dest string, n int) Plan {
	return newPlan(dest, uuid.NewString()[:8], n)
}

func newPlan(dest, token string, n int) Plan {
	p := Plan{Dest: dest, Intermediates: make([]string, n)}
	for i := range p.Intermediates {
		p.Intermediates[i] = DeriveName(dest, token, i+1)
	}
	if n > 1 {
		dir, base, _ := splitDest(dest)
		p.Manifest = filepath.Join(dir, fmt.Sprintf(".%s.%s.join.list", base, token))
	}
	return p
}

// DeriveName returns <dir>/.<base>.<token>_NN<ext> for the 1-based clip index.
func DeriveName(dest, token string, index int) string {
	dir, base, ext := splitDest(dest)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s_%02d%s", base, token, index, ext))
}

// Check refuses a plan whose temporary files would overwrite the source,
// the destination or any existing file. Cleanup removes every temporary
// path, so none of them may name something the run did not create.
func (p Plan) Check(source string) error {
	for _, path := range p.temporary() {
		clean := filepath.Clean(path)
		if clean == filepath.Clean(source) || clean == filepath.Clean(p.Dest) {
			return &IOError{Op: "plan", Path: path, Err: errors.New("temporary file would replace the source or destination")}
		}
		if _, err := os.Lstat(path); err == nil {
			return &IOError{Op: "plan", Path: path, Err: os.ErrExist}
		} else if !errors.Is(err, os.ErrNotExist) {
			return &IOError{Op: "stat", Path: path, Err: err}
		}
	}
	return nil
}

func (p Plan) temporary() []string {
	paths := append([]string{}, p.Intermediates...)
	if p.Manifest != "" {
		paths = append(paths, p.Manifest)
	}
	return paths
}

func splitDest(dest string) (dir, base, ext string) {
	dir = filepath.Dir(dest)
	ext = filepath.Ext(dest)
	base = strings.TrimSuffix(filepath.Base(dest), ext)
	return dir, base, ext
}

// Cleanup removes the manifest and intermediates. Failures are logged only.
func (p Plan) Cleanup(logger *slog.Logger) {
	for _, path := range p.temporary() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove temporary file", "path", path, "error", err)
		}
	}
}

// EscapeConcatPath quotes a path for a concat demuxer `file '...'` line.
// Each single quote is closed, emitted backslash-escaped, then reopened.
// The demuxer takes no escapes inside quotes, so a bare \' there would end
// the quoted string early.
func EscapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

// WriteManifest writes one `file '<path>'` line per file.
func WriteManifest(path string, files []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, file := range files {
		fmt.Fprintf(w, "file '%s'\n", EscapeConcatPath(file))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
