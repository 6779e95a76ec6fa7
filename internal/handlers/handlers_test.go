package handlers

import (
	"bytes"
	"encoding/json"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/lehigh-university-libraries/img2pdf/internal/config"
	"github.com/lehigh-university-libraries/img2pdf/internal/converter"
	"github.com/lehigh-university-libraries/img2pdf/internal/models"
	"github.com/lehigh-university-libraries/img2pdf/internal/notify"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Geometry.Width = 200
	cfg.Geometry.Height = 300

	root := t.TempDir()
	h := New(converter.NewService(cfg, &notify.Recorder{}), filepath.Join(root, "uploads"), filepath.Join(root, "outputs"))

	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", h.HandleSessions)
	mux.HandleFunc("/api/sessions/", h.HandleSessionDetail)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func encodeImage(t *testing.T, format imaging.Format, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{G: 0xff, A: 0xff}), format); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type upload struct {
	name string
	data []byte
}

func uploadFiles(t *testing.T, url string, files ...upload) map[string]any {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatal(err)
		}
	}
	mw.Close()

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload returned %d", resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/sessions", `{"name":"scan"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session returned %d", resp.StatusCode)
	}
	var session models.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(session.ID, "scan_") {
		t.Errorf("unexpected session id %s", session.ID)
	}
	return session.ID
}

func convert(t *testing.T, url, body string) (int, models.Notification) {
	t.Helper()
	resp := postJSON(t, url, body)
	defer resp.Body.Close()
	var n models.Notification
	if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, n
}

func TestSessionWorkflow(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/api/sessions/" + id

	// converting an empty session is a warning
	code, n := convert(t, base+"/convert", `{}`)
	if code != http.StatusBadRequest || n.Kind != notify.Warning {
		t.Fatalf("Expected warning for empty session, got %d %+v", code, n)
	}

	png := encodeImage(t, imaging.PNG, 40, 30)
	bmp := encodeImage(t, imaging.BMP, 30, 40)
	out := uploadFiles(t, base+"/images",
		upload{"A.png", png},
		upload{"B.bmp", bmp},
		upload{"notes.txt", []byte("hello")},
	)
	if out["added"].(float64) != 2 || out["images"].(float64) != 2 {
		t.Errorf("Expected 2 images added, got %v", out)
	}
	if rejected := out["rejected"].([]any); len(rejected) != 1 {
		t.Errorf("Expected one rejected upload, got %v", rejected)
	}

	// the same content again is a duplicate
	out = uploadFiles(t, base+"/images", upload{"A-copy.png", png})
	if out["added"].(float64) != 0 || out["images"].(float64) != 2 {
		t.Errorf("Expected duplicate upload to be ignored, got %v", out)
	}

	resp, err := http.Get(base)
	if err != nil {
		t.Fatal(err)
	}
	var session models.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(session.Images) != 2 || session.Images[0].Name != "A.png" || session.Images[1].Name != "B.bmp" {
		t.Fatalf("unexpected working set %+v", session.Images)
	}
	if session.Images[0].Width != 40 || session.Images[0].Height != 30 {
		t.Errorf("Expected probed dimensions 40x30, got %dx%d", session.Images[0].Width, session.Images[0].Height)
	}

	// no output name yet
	code, n = convert(t, base+"/convert", `{}`)
	if code != http.StatusBadRequest || n.Kind != notify.Warning {
		t.Fatalf("Expected warning for missing name, got %d %+v", code, n)
	}

	// names that resolve to no file, or to one outside the session
	// directory, are refused and not remembered
	for _, name := range []string{"/", "..", "///"} {
		resp := postJSON(t, base+"/convert", `{"output_name":"`+name+`"}`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected output name %q to be rejected, got %d", name, resp.StatusCode)
		}
	}
	code, n = convert(t, base+"/convert", `{}`)
	if code != http.StatusBadRequest || n.Message != converter.ErrEmptyOutputName.Error() {
		t.Fatalf("Expected rejected name to leave the session unnamed, got %d %+v", code, n)
	}

	code, n = convert(t, base+"/convert", `{"output_name":"../../book"}`)
	if code != http.StatusOK || n.Kind != notify.Success {
		t.Fatalf("Expected success, got %d %+v", code, n)
	}

	// the name sticks for later conversions
	code, n = convert(t, base+"/convert", `{}`)
	if code != http.StatusOK || n.Kind != notify.Success {
		t.Fatalf("Expected the remembered name to be reused, got %d %+v", code, n)
	}
	if n.Path != "/api/sessions/"+id+"/document" {
		t.Errorf("unexpected document path %s", n.Path)
	}

	resp, err = http.Get(srv.URL + n.Path)
	if err != nil {
		t.Fatal(err)
	}
	var pdf bytes.Buffer
	if _, err := pdf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !bytes.HasPrefix(pdf.Bytes(), []byte("%PDF")) {
		t.Errorf("Expected PDF download, got %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "book.pdf") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}

	resp = postJSON(t, base+"/clear", "")
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(session.Images) != 0 {
		t.Errorf("Expected cleared working set, got %d images", len(session.Images))
	}
}

func TestCreateSession(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/sessions", `{"name":"scans/2024 batch?"}`)
	var session models.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if !strings.HasPrefix(session.ID, "scans2024batch_") {
		t.Fatalf("unexpected session id %s", session.ID)
	}

	resp, err := http.Get(srv.URL + "/api/sessions/" + session.ID)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected session %s to be reachable, got %d", session.ID, resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/sessions", `{"output_name":"/"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected invalid output name to be rejected, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/sessions", `{"name":"../..","output_name":"/etc/book"}`)
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if !strings.HasPrefix(session.ID, "session_") || session.OutputName != "book" {
		t.Errorf("Expected sanitized session, got id=%s output=%s", session.ID, session.OutputName)
	}
}

func TestConvertReportsBadImage(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/api/sessions/" + id

	// a truncated jpeg fails the header probe and never reaches the working set
	out := uploadFiles(t, base+"/images", upload{"broken.jpg", []byte("\xff\xd8\xff")})
	if out["added"].(float64) != 0 {
		t.Errorf("Expected undecodable upload to be rejected, got %v", out)
	}

	code, n := convert(t, base+"/convert", `{"output_name":"x"}`)
	if code != http.StatusBadRequest || n.Kind != notify.Warning {
		t.Errorf("Expected warning, got %d %+v", code, n)
	}
}

func TestSessionRouting(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)

	tests := []struct {
		name   string
		method string
		path   string
		code   int
	}{
		{"unknown session", "GET", "/api/sessions/nope", http.StatusNotFound},
		{"unknown action", "POST", "/api/sessions/" + id + "/rotate", http.StatusMethodNotAllowed},
		{"wrong method", "PUT", "/api/sessions/" + id, http.StatusMethodNotAllowed},
		{"no document yet", "GET", "/api/sessions/" + id + "/document", http.StatusNotFound},
		{"list", "GET", "/api/sessions", http.StatusOK},
		{"delete", "DELETE", "/api/sessions/" + id, http.StatusNoContent},
		{"deleted", "GET", "/api/sessions/" + id, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			if err != nil {
				t.Fatal(err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.code {
				t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.code, resp.StatusCode)
			}
		})
	}
}
