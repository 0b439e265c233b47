package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/mailcheck/internal/analyzer"
	"github.com/sells-group/mailcheck/internal/dashboard"
	"github.com/sells-group/mailcheck/internal/server"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analyzer and dashboard over a local JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		env := newAppEnv(cfg)
		return serve(ctx, env, fmt.Sprintf(":%d", port), cfg.Server.AllowedOrigins)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// serve runs the loop and the HTTP server until ctx is cancelled or the
// listener fails. The dashboard is active for the lifetime of the server.
func serve(ctx context.Context, env *appEnv, addr string, origins []string) error {
	a := analyzer.New(env.Loop, env.Risk, analyzer.WithMetrics(env.Metrics))
	dash := dashboard.New(env.Loop, env.Geo, env.Weather, dashboard.WithMetrics(env.Metrics))

	srv := &http.Server{
		Addr: addr,
		Handler: server.New(a, dash,
			server.WithGatherer(env.Registry),
			server.WithAllowedOrigins(origins),
		).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopLoop := startLoop(env.Loop)
	defer stopLoop()
	dash.Activate()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		dash.Deactivate()
		a.Close()
		return eris.Wrap(err, "server shutdown")
	})

	return g.Wait()
}
