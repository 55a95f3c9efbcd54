package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/Kerhoff/toyrent/internal/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(factory appFactory) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local state API and WebSocket feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, factory, func(a *App) error {
				if port == "" {
					port = a.Config.Port
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return serve(ctx, a, port)
			})
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (default from PORT)")
	return cmd
}

func serve(ctx context.Context, a *App, port string) error {
	hub := api.NewHub(a.Store, a.Logger, a.Metrics)
	a.SetNavigator(hub.Navigate)

	if a.Store.State().User != nil {
		go func() {
			if err := a.Service.Refresh(ctx); err != nil {
				a.Logger.WithError(err).Warn("Initial refresh failed, serving cached data")
			}
		}()
	}
	go a.Service.StartRefreshLoop(ctx, a.Config.RefreshInterval)

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: api.NewServer(a.Service, hub, a.Registry, a.Logger).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Infof("HTTP server listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var result *multierror.Error
	select {
	case <-ctx.Done():
		a.Logger.Info("Received shutdown signal...")
	case err := <-errCh:
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("HTTP server error: %w", err))
		}
	}

	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to shut down HTTP server: %w", err))
	}

	a.Logger.Info("toyrent stopped")
	return result.ErrorOrNil()
}
