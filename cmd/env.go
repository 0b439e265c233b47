package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/sells-group/mailcheck/internal/config"
	"github.com/sells-group/mailcheck/internal/eventloop"
	"github.com/sells-group/mailcheck/internal/monitoring"
	"github.com/sells-group/mailcheck/pkg/ipapi"
	"github.com/sells-group/mailcheck/pkg/openweather"
	"github.com/sells-group/mailcheck/pkg/riskscore"
)

// flushTimeout bounds how long shutdown waits for queued loop work.
const flushTimeout = 2 * time.Second

// appEnv holds the loop, metrics and service clients shared by the
// analyze, dashboard and serve commands.
type appEnv struct {
	Loop     *eventloop.Loop
	Registry *prometheus.Registry
	Metrics  *monitoring.Metrics
	Risk     riskscore.Client
	Geo      ipapi.Client
	Weather  openweather.Client
}

// newAppEnv builds the clients from c. Nothing runs until startLoop.
func newAppEnv(c *config.Config) *appEnv {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	timeout := c.HTTP.Timeout()
	return &appEnv{
		Loop:     eventloop.New(),
		Registry: reg,
		Metrics:  monitoring.NewMetrics(reg),
		Risk:     riskscore.NewClient(c.Analysis.Endpoint, riskscore.WithTimeout(timeout)),
		Geo: ipapi.NewClient(c.Geolocation.Endpoint,
			ipapi.WithTimeout(timeout),
			ipapi.WithRatePerMinute(c.Geolocation.RatePerMinute),
		),
		Weather: openweather.NewClient(c.Weather.Endpoint, c.Weather.APIKey,
			openweather.WithTimeout(timeout),
		),
	}
}

// startLoop runs loop on its own goroutine. The returned stop function lets
// already-queued work finish, then stops the loop and waits for it.
func startLoop(loop *eventloop.Loop) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := loop.Run(ctx); err != nil {
			zap.L().Error("event loop exited", zap.Error(err))
		}
	}()

	return func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), flushTimeout)
		defer flushCancel()
		if _, err := eventloop.Call(flushCtx, loop, func() struct{} { return struct{}{} }); err != nil {
			zap.L().Debug("event loop flush", zap.Error(err))
		}
		cancel()
		<-done
	}
}
