package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/img2pdf/internal/config"
	"github.com/lehigh-university-libraries/img2pdf/internal/converter"
	"github.com/lehigh-university-libraries/img2pdf/internal/handlers"
	"github.com/lehigh-university-libraries/img2pdf/internal/notify"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	port            string
	uploadsDir      string
	outputsDir      string
	shutdownTimeout time.Duration
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start web server for interactive conversion sessions",
		Long: `Starts the img2pdf HTTP API on the specified port.

Each session holds a working set of uploaded images. Images can be added and
the set cleared, then converted into a PDF that is downloaded from the session.
Page settings come from IMG2PDF_* environment variables.`,
		Example: `  # Start server on default port 8888
  img2pdf serve

  # Create a session, add images, convert and download
  curl -X POST localhost:8888/api/sessions -d '{"name":"scans"}'
  curl -F files=@a.jpg -F files=@b.png localhost:8888/api/sessions/<id>/images
  curl -X POST localhost:8888/api/sessions/<id>/convert -d '{"output_name":"scans"}'
  curl -o scans.pdf localhost:8888/api/sessions/<id>/document`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			h := handlers.New(converter.NewService(cfg, notify.LogNotifier{}), opts.uploadsDir, opts.outputsDir)
			server := &http.Server{
				Addr:              ":" + opts.port,
				Handler:           routes(h),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ln, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
			}
			slog.Info("img2pdf API available", "addr", ln.Addr().String(), "uploads", opts.uploadsDir, "outputs", opts.outputsDir)

			return run(cmd.Context(), server, ln, opts.shutdownTimeout)
		},
	}

	cmd.Flags().StringVarP(&opts.port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().StringVar(&opts.uploadsDir, "uploads", "uploads", "Directory for uploaded images")
	cmd.Flags().StringVar(&opts.outputsDir, "outputs", "outputs", "Directory for created PDFs")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 5*time.Second, "Time allowed for in-flight requests when stopping")

	return cmd
}

func routes(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", h.HandleSessions)
	mux.HandleFunc("/api/sessions/", h.HandleSessionDetail)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	return mux
}

// run serves on ln until ctx is cancelled, then drains in-flight requests
// for at most timeout.
func run(ctx context.Context, server *http.Server, ln net.Listener, timeout time.Duration) error {
	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Stopping server", "timeout", timeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
