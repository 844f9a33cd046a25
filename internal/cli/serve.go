package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/conveyor/internal/adapters/httpapi"
	"github.com/example/conveyor/internal/wire"
)

// ServeCmd returns the serve command.
func ServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only HTTP API",
		Long: `Start the read-only HTTP API. Mutations stay in the CLI; the API
only reads workflow, progress, and cache state.

Endpoints:
  GET /healthz
  GET /api/workflows?limit=N
  GET /api/workflows/{ticket}
  GET /api/workflows/{ticket}/progress
  GET /api/cache/stats

Examples:
  conveyor serve
  conveyor serve --addr :8187`,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := wire.Services()
			if err != nil {
				return err
			}

			if addr == "" {
				addr = services.Config.Server.Listen
			}

			handler := httpapi.NewRouter(services.Workflows, services.Progress, services.Cache, slog.Default())
			srv := &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()

			fmt.Printf("Serving read-only API on %s (Ctrl+C to stop)\n", addr)

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}

			fmt.Println("Server stopped.")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from server.listen config)")

	return cmd
}
