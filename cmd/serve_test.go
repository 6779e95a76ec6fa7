package cmd

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/img2pdf/internal/config"
	"github.com/lehigh-university-libraries/img2pdf/internal/converter"
	"github.com/lehigh-university-libraries/img2pdf/internal/handlers"
	"github.com/lehigh-university-libraries/img2pdf/internal/notify"
)

func testHandler(t *testing.T) *handlers.Handler {
	t.Helper()
	dir := t.TempDir()
	svc := converter.NewService(config.Default(), &notify.Recorder{})
	return handlers.New(svc, filepath.Join(dir, "uploads"), filepath.Join(dir, "outputs"))
}

func TestRoutes(t *testing.T) {
	srv := httptest.NewServer(routes(testHandler(t)))
	defer srv.Close()

	tests := []struct {
		method string
		path   string
		code   int
	}{
		{"GET", "/healthcheck", http.StatusOK},
		{"GET", "/api/sessions", http.StatusOK},
		{"POST", "/api/sessions", http.StatusCreated},
		{"GET", "/api/sessions/missing", http.StatusNotFound},
		{"GET", "/", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
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
				t.Errorf("expected %d, got %d", tt.code, resp.StatusCode)
			}
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	server := &http.Server{Handler: routes(testHandler(t))}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, server, ln, time.Second)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthcheck")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "OK" {
		t.Errorf("unexpected healthcheck body %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}

	if _, err := http.Get("http://" + ln.Addr().String() + "/healthcheck"); err == nil {
		t.Error("Expected server to refuse connections after shutdown")
	}
}
