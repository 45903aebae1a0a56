package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayusman/aureum/internal/app"
	"github.com/ayusman/aureum/internal/config"
	"github.com/ayusman/aureum/internal/detector"
	"github.com/ayusman/aureum/internal/store"
	"github.com/ayusman/aureum/internal/tracking"
)

func newIntegrationServer(t *testing.T) (*httptest.Server, *app.App) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.Gesture.Hold = 0
	cfg.Render.FPS = 120

	a, err := app.New(app.Options{
		Config:   cfg,
		Store:    st,
		Camera:   tracking.NewMockCamera(),
		Detector: detector.NewMockDetector(),
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(a.Stop)

	ts := httptest.NewServer(New(Config{Engine: a, Recorder: a.Recorder(), MaxUploadBytes: 8 << 20}))
	t.Cleanup(ts.Close)
	return ts, a
}

func getJSON(t *testing.T, client *http.Client, url string, v any) int {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		json.NewDecoder(resp.Body).Decode(v)
	}
	return resp.StatusCode
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestAPI_PhotoWorkflow(t *testing.T) {
	ts, _ := newIntegrationServer(t)
	client := ts.Client()

	// 1. Upload a photo
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("files", "harbour.png")
	fw.Write(pngBytes(t))
	mw.Close()

	resp, err := client.Post(ts.URL+"/api/photos", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /api/photos error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	// 2. Wait for it to join the formation
	var listed struct {
		Photos []struct {
			ID      string `json:"id"`
			Source  string `json:"source"`
			Texture string `json:"texture"`
		} `json:"photos"`
		Count int `json:"count"`
	}
	waitUntil(t, func() bool {
		getJSON(t, client, ts.URL+"/api/photos", &listed)
		return listed.Count == 1
	})
	photo := listed.Photos[0]
	if photo.Source != "harbour.png" {
		t.Errorf("source = %s, want harbour.png", photo.Source)
	}

	// 3. Fetch its texture
	resp, err = client.Get(ts.URL + "/api/textures/" + photo.Texture)
	if err != nil {
		t.Fatalf("GET texture error = %v", err)
	}
	var tex bytes.Buffer
	tex.ReadFrom(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET texture status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if !bytes.HasPrefix(tex.Bytes(), []byte("RIFF")) {
		t.Errorf("texture is not a RIFF/WebP container")
	}

	// 4. Remove it
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/photos/"+photo.ID, nil)
	resp, _ = client.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	waitUntil(t, func() bool {
		getJSON(t, client, ts.URL+"/api/photos", &listed)
		return listed.Count == 0
	})
	if code := getJSON(t, client, ts.URL+"/api/photos/"+photo.ID, nil); code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want %d", code, http.StatusNotFound)
	}
}

func TestAPI_RecordingReplayWorkflow(t *testing.T) {
	ts, a := newIntegrationServer(t)
	client := ts.Client()

	if err := a.Upload("a.png", pngBytes(t)); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	waitUntil(t, func() bool { return len(a.LatestFrame().Photos) == 1 })

	// 1. Import an open-hand session
	var samples []string
	for i := 0; i < 15; i++ {
		samples = append(samples, fmt.Sprintf(`{"offset_ms":%d,"pose":{"open":true}}`, i*20))
	}
	session := `{"name":"open hand","samples":[` + strings.Join(samples, ",") + `]}`

	resp, err := client.Post(ts.URL+"/api/recordings/import", "application/json", strings.NewReader(session))
	if err != nil {
		t.Fatalf("POST import error = %v", err)
	}
	var created struct {
		ID      string `json:"id"`
		Samples int    `json:"samples"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST import status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if created.Samples != 15 {
		t.Errorf("samples = %d, want 15", created.Samples)
	}

	// 2. It shows up in the list
	var listed struct {
		Recordings []struct {
			ID string `json:"id"`
		} `json:"recordings"`
	}
	getJSON(t, client, ts.URL+"/api/recordings", &listed)
	if len(listed.Recordings) != 1 || listed.Recordings[0].ID != created.ID {
		t.Fatalf("recordings = %+v, want the import", listed.Recordings)
	}

	// 3. Replay it and watch the formation open
	resp, err = client.Post(ts.URL+"/api/recordings/"+created.ID+"/replay", "application/json", nil)
	if err != nil {
		t.Fatalf("POST replay error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST replay status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	var state struct {
		State     string `json:"state"`
		Replaying bool   `json:"replaying"`
	}
	waitUntil(t, func() bool {
		getJSON(t, client, ts.URL+"/api/state", &state)
		return state.State == "EXPLODED"
	})
	waitUntil(t, func() bool {
		getJSON(t, client, ts.URL+"/api/state", &state)
		return !state.Replaying
	})
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	if code := getJSON(t, ts.Client(), ts.URL+"/api/health", &health); code != http.StatusOK {
		t.Fatalf("status = %d, want %d", code, http.StatusOK)
	}
	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
