package server

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/aureum/internal/controller"
	"github.com/ayusman/aureum/internal/formation"
	"github.com/ayusman/aureum/internal/gesture"
	"github.com/ayusman/aureum/internal/texture"
)

// fakeEngine serves canned frames and previews.
type fakeEngine struct {
	mu       sync.Mutex
	frame    controller.Frame
	subs     []chan controller.Frame
	preview  []byte
	seq      uint64
	tracking bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{frame: controller.Frame{
		Seq:   7,
		State: formation.Closed,
		Photos: []controller.PhotoFrame{
			{ID: "p1", Source: "a.png", Texture: "t1", Scale: 1},
		},
	}}
}

func (e *fakeEngine) LatestFrame() controller.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

func (e *fakeEngine) Subscribe() (<-chan controller.Frame, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan controller.Frame, 1)
	e.subs = append(e.subs, ch)
	return ch, func() {}
}

func (e *fakeEngine) publish(f controller.Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- f:
		default:
		}
	}
}

func (e *fakeEngine) closeSubs() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		close(ch)
	}
	e.subs = nil
}

func (e *fakeEngine) subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

func (e *fakeEngine) Preview() ([]byte, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.preview, e.seq
}

func (e *fakeEngine) setPreview(img []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.preview = img
	e.seq++
}

func (e *fakeEngine) Upload(string, []byte) error { return nil }
func (e *fakeEngine) RemovePhoto(string) error { return nil }
func (e *fakeEngine) UploadStats() texture.Stats { return texture.Stats{} }
func (e *fakeEngine) Texture(string) ([]byte, bool, error) { return nil, false, nil }
func (e *fakeEngine) Replay(string) error { return nil }
func (e *fakeEngine) StopReplay() {}
func (e *fakeEngine) Replaying() bool { return false }

func (e *fakeEngine) SetTracking(enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracking = enabled
	return nil
}

func (e *fakeEngine) Tracking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracking
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		contentType := rec.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}

		var response map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}

		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
		if _, exists := response["state"]; exists {
			t.Error("expected no 'state' field without an engine")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

		for _, method := range methods {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_HealthWithEngine(t *testing.T) {
	s := New(Config{Engine: newFakeEngine()})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var response map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["state"] != "CLOSED" {
		t.Errorf("state = %v, want CLOSED", response["state"])
	}
	if response["photos"] != float64(1) {
		t.Errorf("photos = %v, want 1", response["photos"])
	}
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/nonexistent", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestServer_RoutesNeedEngine(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/photos", "/api/state", "/api/tracking", "/api/recordings", "/api/frames"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>Aureum</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	jsContent := "export const scene = {};"
	if err := os.WriteFile(filepath.Join(tmpDir, "scene.js"), []byte(jsContent), 0644); err != nil {
		t.Fatalf("failed to create test JS file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir, Engine: newFakeEngine()})

	t.Run("serves index.html at root path", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != testContent {
			t.Errorf("expected body %q, got %q", testContent, rec.Body.String())
		}
	})

	t.Run("serves static files from configured directory", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scene.js", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != jsContent {
			t.Errorf("expected body %q, got %q", jsContent, rec.Body.String())
		}
	})

	t.Run("api routes win over static files", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))

		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON from /api/state, got %s", ct)
		}
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nonexistent.html", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestServer_NoStaticDir(t *testing.T) {
	s := New(Config{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func TestFramesHandler_StreamsFrames(t *testing.T) {
	eng := newFakeEngine()
	ts := httptest.NewServer(NewFramesHandler(eng))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/api/frames"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitUntil(t, func() bool { return eng.subscribers() == 1 })
	eng.publish(controller.Frame{Seq: 11, State: formation.Exploded, Gesture: gesture.Open})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got controller.Frame
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if got.Seq != 11 || got.State != formation.Exploded || got.Gesture != gesture.Open {
		t.Errorf("got frame %+v", got)
	}

	eng.closeSubs()
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal closure, got %v", err)
	}
}

func TestFramesHandler_RejectsPlainHTTP(t *testing.T) {
	h := NewFramesHandler(newFakeEngine())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/frames", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestStreamHandler_SendsChangedPreviews(t *testing.T) {
	eng := newFakeEngine()
	eng.setPreview([]byte("jpeg-one"))

	h := NewStreamHandler(eng)
	h.interval = 5 * time.Millisecond
	ts := httptest.NewServer(h)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	mr := multipart.NewReader(resp.Body, params["boundary"])
	// Parts end only when the next boundary arrives, so read exactly the
	// expected length instead of to EOF.
	readPart := func(want string) string {
		t.Helper()
		part, err := mr.NextPart()
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		if ct := part.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("part Content-Type = %s, want image/jpeg", ct)
		}
		data := make([]byte, len(want))
		if _, err := io.ReadFull(part, data); err != nil {
			t.Fatalf("read part: %v", err)
		}
		return string(data)
	}

	if got := readPart("jpeg-one"); got != "jpeg-one" {
		t.Errorf("first part = %q", got)
	}

	eng.setPreview([]byte("jpeg-two"))
	if got := readPart("jpeg-two"); got != "jpeg-two" {
		t.Errorf("second part = %q, want the changed preview", got)
	}
}

func TestStreamHandler_MethodNotAllowed(t *testing.T) {
	h := NewStreamHandler(newFakeEngine())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestServer_ShutdownClosesStreams(t *testing.T) {
	eng := newFakeEngine()
	s := New(Config{Engine: eng})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- s.Serve(ln) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/frames", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitUntil(t, func() bool { return eng.subscribers() == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-served; err != nil {
		t.Errorf("Serve returned %v after shutdown", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going-away close, got %v", err)
	}
}
