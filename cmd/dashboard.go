package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mailcheck/internal/dashboard"
	"github.com/sells-group/mailcheck/internal/tui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show location, local weather and a live clock",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
		defer stop()

		// The program owns the terminal.
		restore := zap.ReplaceGlobals(zap.NewNop())
		defer restore()

		env := newAppEnv(cfg)
		bridge := tui.NewBridge()
		dash := dashboard.New(env.Loop, env.Geo, env.Weather,
			dashboard.WithMetrics(env.Metrics),
			dashboard.WithListener(bridge.OnSnapshot),
		)

		stopLoop := startLoop(env.Loop)
		defer stopLoop()

		return tui.Run(ctx, dash, bridge)
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
