package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/datallboy/gothumb/internal/api"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the thumbnail HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	appCtx, err := bootstrap()
	if err != nil {
		return err
	}
	defer appCtx.Logger.Sync()

	// Setup Signal Handling for Graceful Shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := appCtx.Build(ctx); err != nil {
		return err
	}
	if err := appCtx.Thumbnails.Start(ctx); err != nil {
		return err
	}

	e := echo.New()
	api.RegisterRoutes(e, appCtx)

	srv := &http.Server{
		Addr:              ":" + appCtx.Config.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appCtx.Logger.Info("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appCtx.Logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			appCtx.Logger.Warn("HTTP shutdown: %v", err)
		}
		return appCtx.Close(shutdownCtx)
	})

	return g.Wait()
}
