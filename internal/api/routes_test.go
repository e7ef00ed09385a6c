package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cutlist/cutlist-agent/internal/cliplist"
	"github.com/cutlist/cutlist-agent/internal/db"
	"github.com/cutlist/cutlist-agent/internal/media"
	"github.com/cutlist/cutlist-agent/internal/playback"
	"github.com/cutlist/cutlist-agent/internal/session"
	"github.com/cutlist/cutlist-agent/internal/watcher"
)

const testToken = "test-token"

type fakeMedia struct {
	thumbDir string
}

func (f *fakeMedia) Probe(ctx context.Context, source string) (*media.ProbeResult, error) {
	return &media.ProbeResult{Duration: time.Minute, FrameRate: 30, Width: 640, Height: 360}, nil
}

func (f *fakeMedia) Capturer(source string) cliplist.FrameCapturer {
	return fakeCapturer{dir: f.thumbDir}
}

func (f *fakeMedia) Cut(ctx context.Context, source, dest string, start, duration time.Duration) error {
	return os.WriteFile(dest, []byte("cut"), 0o644)
}

func (f *fakeMedia) Join(ctx context.Context, manifest, dest string) error {
	return os.WriteFile(dest, []byte("joined"), 0o644)
}

type fakeCapturer struct {
	dir string
}

func (c fakeCapturer) Capture(ctx context.Context, at time.Duration) (cliplist.ImageRef, error) {
	path := filepath.Join(c.dir, fmt.Sprintf("%d.jpg", at.Milliseconds()))
	if err := os.WriteFile(path, []byte("\xff\xd8\xff\xe0jpeg"), 0o644); err != nil {
		return "", err
	}
	return cliplist.ImageRef(path), nil
}

type fakeDoctorRunner struct {
	caps *media.Capabilities
}

func (f *fakeDoctorRunner) RunDoctor(ctx context.Context) (*media.Capabilities, error) {
	if f.caps == nil {
		return &media.Capabilities{}, nil
	}
	return f.caps, nil
}

type apiEnv struct {
	cfg    ServerConfig
	router http.Handler
	repo   session.Repository
	source string
	dir    string
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAPIEnv(t *testing.T, doctor *media.CachedDoctor) *apiEnv {
	t.Helper()
	dir := t.TempDir()

	database, err := db.New(filepath.Join(dir, "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := session.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), "auth_token", testToken); err != nil {
		t.Fatal(err)
	}

	source := filepath.Join(dir, "in.mp4")
	if err := os.WriteFile(source, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger := testLogger()
	backend := &fakeMedia{thumbDir: dir}
	manager := session.NewManager(repo, backend, watcher.NewStubWatcher(logger), logger)
	runner := session.NewRunner(manager, repo, backend, nil, logger)

	cfg := ServerConfig{
		Sessions:       manager,
		PlaybackServer: playback.NewServer(logger),
		Repository:     repo,
		Runner:         runner,
		Doctor:         doctor,
		Logger:         logger,
		StartTime:      time.Now().Add(-10 * time.Second),
		Version:        "test",
	}
	return &apiEnv{cfg: cfg, router: NewRouter(cfg), repo: repo, source: source, dir: dir}
}

func (e *apiEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *apiEnv) openSession(t *testing.T) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/sessions", fmt.Sprintf(`{"media_path":%q}`, e.source))
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST /sessions status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	return body["id"].(string)
}

func (e *apiEnv) addClip(t *testing.T, id string, startMs, endMs int) {
	t.Helper()
	if rr := e.do(t, http.MethodPost, "/sessions/"+id+"/marks/start", fmt.Sprintf(`{"at_ms":%d}`, startMs)); rr.Code != http.StatusOK {
		t.Fatalf("mark start status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if rr := e.do(t, http.MethodPost, "/sessions/"+id+"/marks/end", fmt.Sprintf(`{"at_ms":%d}`, endMs)); rr.Code != http.StatusOK {
		t.Fatalf("mark end status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}

	return body
}

func TestStatusHandler_NilDoctor(t *testing.T) {
	env := newAPIEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}

	body := decodeJSONBody(t, rr)
	if _, ok := body["media"]; ok {
		t.Fatal("media should be omitted when doctor is nil")
	}
	if body["state"] != "idle" {
		t.Errorf("state = %v, want idle", body["state"])
	}
}

func TestStatusHandler_EmptyCache(t *testing.T) {
	doctor := media.NewCachedDoctor(&fakeDoctorRunner{}, testLogger())
	env := newAPIEnv(t, doctor)

	body := decodeJSONBody(t, env.do(t, http.MethodGet, "/status", ""))
	if _, ok := body["media"]; ok {
		t.Fatal("media should be omitted when cache is empty")
	}
}

func TestStatusHandler_WithCachedCaps(t *testing.T) {
	doctor := media.NewCachedDoctor(&fakeDoctorRunner{
		caps: &media.Capabilities{
			FFmpeg:   media.DepInfo{Available: true, Version: "6.1"},
			FFprobe:  media.DepInfo{Available: true},
			ProbedAt: time.Now(),
		},
	}, testLogger())
	if _, err := doctor.Refresh(context.Background()); err != nil {
		t.Fatalf("doctor.Refresh() error = %v", err)
	}
	env := newAPIEnv(t, doctor)
	env.openSession(t)

	body := decodeJSONBody(t, env.do(t, http.MethodGet, "/status", ""))
	mediaMap, ok := body["media"].(map[string]interface{})
	if !ok {
		t.Fatal("media missing from response")
	}
	if ready, _ := mediaMap["ready"].(bool); !ready {
		t.Errorf("media.ready = %v, want true", mediaMap["ready"])
	}
	if body["sessions_count"] != float64(1) {
		t.Errorf("sessions_count = %v, want 1", body["sessions_count"])
	}
}

func TestRoutes_Auth(t *testing.T) {
	env := newAPIEnv(t, nil)

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", rr.Code)
	}

	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["version"] != "test" {
		t.Errorf("version = %v", body["version"])
	}
}

func TestSessionRoutes_MarkAndExport(t *testing.T) {
	env := newAPIEnv(t, nil)
	id := env.openSession(t)

	env.addClip(t, id, 1500, 3250)

	rr := env.do(t, http.MethodGet, "/sessions/"+id, "")
	body := decodeJSONBody(t, rr)
	if body["savable"] != true || body["state"] != "idle" {
		t.Errorf("session view = %v", body)
	}
	if body["notify_interval_ms"] != float64(33) {
		t.Errorf("notify_interval_ms = %v, want 33", body["notify_interval_ms"])
	}
	clips := body["clips"].([]interface{})
	if len(clips) != 1 || clips[0].(map[string]interface{})["has_thumbnail"] != true {
		t.Errorf("clips = %v", clips)
	}

	rr = env.do(t, http.MethodGet, "/sessions/"+id+"/edl", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET edl status = %d", rr.Code)
	}
	if rr.Body.String() != "1.500000\t3.250000\t0\n" {
		t.Errorf("edl body = %q", rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "in.edl") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rr = env.do(t, http.MethodGet, "/sessions/"+id+"/edl/cmx?title=My+Cut", "")
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Body.String(), "TITLE: My Cut") {
		t.Errorf("cmx status = %d body = %q", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/sessions/"+id+"/clips/0/thumbnail", "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("thumbnail status = %d type = %q", rr.Code, rr.Header().Get("Content-Type"))
	}
}

func TestSessionRoutes_ErrorMapping(t *testing.T) {
	env := newAPIEnv(t, nil)
	id := env.openSession(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"end while idle", http.MethodPost, "/sessions/" + id + "/marks/end", `{"at_ms":1000}`, http.StatusConflict, "INVALID_STATE"},
		{"missing at_ms", http.MethodPost, "/sessions/" + id + "/marks/start", `{}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"export empty list", http.MethodGet, "/sessions/" + id + "/edl", "", http.StatusConflict, "INVALID_STATE"},
		{"save empty list", http.MethodPost, "/sessions/" + id + "/save", "", http.StatusConflict, "INVALID_STATE"},
		{"malformed edl", http.MethodPut, "/sessions/" + id + "/edl", "not an edl\n", http.StatusUnprocessableEntity, "MALFORMED_EDL"},
		{"bad encoding", http.MethodPut, "/sessions/" + id + "/edl", "\xff\xfe1.0\t2.0\t0\n", http.StatusUnprocessableEntity, "EDL_ENCODING"},
		{"bad index", http.MethodDelete, "/sessions/" + id + "/clips/x", "", http.StatusBadRequest, "BAD_REQUEST"},
		{"index out of range", http.MethodDelete, "/sessions/" + id + "/clips/4", "", http.StatusConflict, "INVALID_STATE"},
		{"move without target", http.MethodPost, "/sessions/" + id + "/clips/0/move", `{}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown session", http.MethodGet, "/sessions/nope", "", http.StatusNotFound, "NOT_FOUND"},
		{"unknown job", http.MethodGet, "/jobs/nope", "", http.StatusNotFound, "NOT_FOUND"},
		{"open missing media", http.MethodPost, "/sessions", `{"media_path":"/does/not/exist.mp4"}`, http.StatusUnprocessableEntity, "INVALID_MEDIA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.status, rr.Body.String())
			}
			body := decodeJSONBody(t, rr)
			if body["code"] != tt.code {
				t.Errorf("code = %v, want %s", body["code"], tt.code)
			}
		})
	}
}

func TestSessionRoutes_InvalidRange(t *testing.T) {
	env := newAPIEnv(t, nil)
	id := env.openSession(t)

	env.do(t, http.MethodPost, "/sessions/"+id+"/marks/start", `{"at_ms":5000}`)
	rr := env.do(t, http.MethodPost, "/sessions/"+id+"/marks/end", `{"at_ms":4000}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["code"] != "INVALID_RANGE" {
		t.Errorf("code = %v, want INVALID_RANGE", body["code"])
	}
}

func TestSessionRoutes_ImportReportsLine(t *testing.T) {
	env := newAPIEnv(t, nil)
	id := env.openSession(t)

	rr := env.do(t, http.MethodPut, "/sessions/"+id+"/edl", "1.0\t2.0\t0\n3.0\tx\t0\n")
	body := decodeJSONBody(t, rr)
	if body["line"] != float64(2) {
		t.Errorf("line = %v, want 2", body["line"])
	}

	rr = env.do(t, http.MethodPut, "/sessions/"+id+"/edl?path="+filepath.Join(env.dir, "cuts.edl"), "1.0\t2.0\t0\n3.0\t4.5\t0\n")
	if rr.Code != http.StatusOK {
		t.Fatalf("import status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body = decodeJSONBody(t, rr)
	if clips := body["clips"].([]interface{}); len(clips) != 2 {
		t.Errorf("imported %d clips, want 2", len(clips))
	}
	if body["runtime_ms"] != float64(2500) {
		t.Errorf("runtime_ms = %v, want 2500", body["runtime_ms"])
	}
}

func TestSessionRoutes_MoveAndRemove(t *testing.T) {
	env := newAPIEnv(t, nil)
	id := env.openSession(t)
	env.addClip(t, id, 0, 1000)
	env.addClip(t, id, 2000, 3000)
	env.addClip(t, id, 4000, 5000)

	body := decodeJSONBody(t, env.do(t, http.MethodPost, "/sessions/"+id+"/clips/2/move", `{"direction":"up"}`))
	clips := body["clips"].([]interface{})
	if clips[1].(map[string]interface{})["start_ms"] != float64(4000) {
		t.Errorf("after move up clips = %v", clips)
	}

	body = decodeJSONBody(t, env.do(t, http.MethodPost, "/sessions/"+id+"/clips/0/move", `{"to":2}`))
	clips = body["clips"].([]interface{})
	if clips[2].(map[string]interface{})["start_ms"] != float64(0) {
		t.Errorf("after move to clips = %v", clips)
	}

	body = decodeJSONBody(t, env.do(t, http.MethodDelete, "/sessions/"+id+"/clips/0", ""))
	if clips := body["clips"].([]interface{}); len(clips) != 2 {
		t.Errorf("after remove %d clips, want 2", len(clips))
	}

	body = decodeJSONBody(t, env.do(t, http.MethodDelete, "/sessions/"+id+"/clips", ""))
	if clips := body["clips"].([]interface{}); len(clips) != 0 {
		t.Errorf("after clear %d clips, want 0", len(clips))
	}
}

func TestSaveAndCancel(t *testing.T) {
	env := newAPIEnv(t, nil)
	id := env.openSession(t)
	env.addClip(t, id, 0, 1000)

	rr := env.do(t, http.MethodPost, "/sessions/"+id+"/save", `{"dest_path":"relative/out.mp4"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("relative dest status = %d, want 400", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/sessions/"+id+"/save", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("save status = %d, body = %s", rr.Code, rr.Body.String())
	}
	job := decodeJSONBody(t, rr)
	jobID := job["id"].(string)
	if job["dest_path"] != filepath.Join(env.dir, "in_EDIT.mp4") {
		t.Errorf("dest_path = %v", job["dest_path"])
	}

	rr = env.do(t, http.MethodGet, "/jobs/"+jobID, "")
	if body := decodeJSONBody(t, rr); body["status"] != session.JobStatusPending {
		t.Errorf("job status = %v, want pending", body["status"])
	}

	if rr := env.do(t, http.MethodPost, "/jobs/"+jobID+"/cancel", ""); rr.Code != http.StatusAccepted {
		t.Fatalf("cancel status = %d, body = %s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, http.MethodGet, "/jobs/"+jobID, "")
	if body := decodeJSONBody(t, rr); body["status"] != session.JobStatusCancelled {
		t.Errorf("job status = %v, want cancelled", body["status"])
	}

	if rr := env.do(t, http.MethodPost, "/jobs/"+jobID+"/cancel", ""); rr.Code != http.StatusConflict {
		t.Errorf("second cancel status = %d, want 409", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/jobs/nope/cancel", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown cancel status = %d, want 404", rr.Code)
	}

	body := decodeJSONBody(t, env.do(t, http.MethodGet, "/jobs", ""))
	if jobs := body["jobs"].([]interface{}); len(jobs) != 1 {
		t.Errorf("jobs = %d, want 1", len(jobs))
	}
}

func TestCloseSession(t *testing.T) {
	env := newAPIEnv(t, nil)
	id := env.openSession(t)

	if rr := env.do(t, http.MethodDelete, "/sessions/"+id, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("close status = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/sessions/"+id, ""); rr.Code != http.StatusNotFound {
		t.Errorf("get closed status = %d, want 404", rr.Code)
	}

	body := decodeJSONBody(t, env.do(t, http.MethodGet, "/sessions", ""))
	if sessions := body["sessions"].([]interface{}); len(sessions) != 0 {
		t.Errorf("sessions = %d, want 0", len(sessions))
	}
}

func TestJobOutput_NotCompleted(t *testing.T) {
	env := newAPIEnv(t, nil)
	id := env.openSession(t)
	env.addClip(t, id, 0, 1000)
	job := decodeJSONBody(t, env.do(t, http.MethodPost, "/sessions/"+id+"/save", ""))

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job["id"].(string)+"/output", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}
