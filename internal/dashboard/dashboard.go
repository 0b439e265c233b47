// Package dashboard aggregates the caller's location, the local weather and a
// wall clock into one snapshot.
//
// Location and weather are fetched once per activation. The weather lookup is
// issued from the location continuation because it needs the resolved city.
// The clock ticks once per ClockInterval for as long as the dashboard is
// active.
package dashboard

import (
	"context"
	"strings"
	"time"

	"github.com/facebookgo/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sells-group/mailcheck/internal/eventloop"
	"github.com/sells-group/mailcheck/internal/monitoring"
	"github.com/sells-group/mailcheck/internal/outcome"
	"github.com/sells-group/mailcheck/pkg/ipapi"
	"github.com/sells-group/mailcheck/pkg/openweather"
)

// ClockInterval is the period of the clock task.
const ClockInterval = time.Second

var tracer = otel.Tracer("github.com/sells-group/mailcheck/internal/dashboard")

// Snapshot is the dashboard's observable state.
type Snapshot struct {
	Location outcome.Outcome[ipapi.Location]       `json:"location"`
	Weather  outcome.Outcome[openweather.Current] `json:"weather"`
	Clock    time.Time                            `json:"clock"`
	Loading  bool                                 `json:"loading"`
	Active   bool                                 `json:"active"`
}

// City returns the trimmed city of a resolved location.
func (s Snapshot) City() (string, bool) {
	loc, ok := s.Location.Value()
	if !ok {
		return "", false
	}
	city := strings.TrimSpace(loc.City)
	return city, city != ""
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithClock replaces the wall clock. Tests pass clock.NewMock().
func WithClock(clk clock.Clock) Option {
	return func(d *Dashboard) {
		d.clk = clk
	}
}

// WithMetrics records request outcomes and clock ticks.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(d *Dashboard) {
		d.metrics = m
	}
}

// WithListener registers fn to be called on the loop after every snapshot
// change.
func WithListener(fn func(Snapshot)) Option {
	return func(d *Dashboard) {
		d.listener = fn
	}
}

// session is the liveness token of one activation. Continuations compare
// their session with the dashboard's current one before writing.
type session struct {
	ctx       context.Context
	cancel    context.CancelFunc
	stopClock func()
}

// Dashboard owns the location, weather and clock slots. Fields below the
// options are touched only from loop callbacks.
type Dashboard struct {
	loop     *eventloop.Loop
	geo      ipapi.Client
	weather  openweather.Client
	clk      clock.Clock
	metrics  *monitoring.Metrics
	listener func(Snapshot)

	snap Snapshot
	sess *session
}

// New creates a Dashboard bound to loop.
func New(loop *eventloop.Loop, geo ipapi.Client, weather openweather.Client, opts ...Option) *Dashboard {
	d := &Dashboard{
		loop:    loop,
		geo:     geo,
		weather: weather,
		clk:     clock.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Activate starts the location lookup and the clock. Calling it while
// already active does nothing.
func (d *Dashboard) Activate() {
	d.loop.Post(d.activate)
}

// Deactivate stops the clock, cancels outstanding lookups and discards their
// responses.
func (d *Dashboard) Deactivate() {
	d.loop.Post(d.deactivate)
}

// Snapshot returns the current state.
func (d *Dashboard) Snapshot(ctx context.Context) (Snapshot, error) {
	return eventloop.Call(ctx, d.loop, func() Snapshot { return d.snap })
}

func (d *Dashboard) activate() {
	if d.sess != nil {
		zap.L().Debug("dashboard: already active")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{ctx: ctx, cancel: cancel}
	d.sess = sess

	d.snap = Snapshot{
		Location: outcome.Pending[ipapi.Location](),
		Clock:    d.clk.Now(),
		Loading:  true,
		Active:   true,
	}
	sess.stopClock = eventloop.Every(d.loop, d.clk, ClockInterval, func(now time.Time) {
		if d.sess != sess {
			return
		}
		d.snap.Clock = now
		d.metrics.ClockTick()
		d.notify()
	})

	zap.L().Info("dashboard: activated")
	d.notify()
	d.lookupLocation(sess)
}

func (d *Dashboard) deactivate() {
	sess := d.sess
	if sess == nil {
		return
	}
	d.sess = nil
	sess.stopClock()
	sess.cancel()

	d.snap.Active = false
	d.snap.Loading = false
	zap.L().Info("dashboard: deactivated")
	d.notify()
}

func (d *Dashboard) lookupLocation(sess *session) {
	ctx, span := tracer.Start(sess.ctx, "dashboard.location")
	started := d.clk.Now()
	d.metrics.RequestStarted(ipapi.ServiceName)

	eventloop.Await(ctx, d.loop, func(ctx context.Context) (*ipapi.Location, error) {
		loc, err := d.geo.Lookup(ctx)
		d.finish(ipapi.ServiceName, span, started, classify(ipapi.ServiceName, err, loc == nil))
		return loc, err
	}, func(loc *ipapi.Location, err error) {
		if d.sess != sess {
			zap.L().Debug("dashboard: discarding location for inactive session")
			return
		}

		cerr := classify(ipapi.ServiceName, err, loc == nil)
		if cerr != nil {
			zap.L().Warn("dashboard: location lookup failed",
				zap.String("kind", cerr.Kind.String()),
				zap.String("message", cerr.Message),
				zap.Error(err),
			)
			d.snap.Location = outcome.Failed[ipapi.Location](cerr)
			d.snap.Loading = false
			d.notify()
			return
		}

		d.snap.Location = outcome.Succeeded(*loc)
		city, ok := d.snap.City()
		if !ok {
			zap.L().Info("dashboard: location has no city, skipping weather", zap.String("country", loc.Country))
			d.snap.Loading = false
			d.notify()
			return
		}

		d.snap.Weather = outcome.Pending[openweather.Current]()
		d.notify()
		d.lookupWeather(sess, city)
	})
}

func (d *Dashboard) lookupWeather(sess *session, city string) {
	ctx, span := tracer.Start(sess.ctx, "dashboard.weather")
	span.SetAttributes(attribute.String("city", city))
	started := d.clk.Now()
	d.metrics.RequestStarted(openweather.ServiceName)

	eventloop.Await(ctx, d.loop, func(ctx context.Context) (*openweather.Current, error) {
		cur, err := d.weather.Current(ctx, city)
		d.finish(openweather.ServiceName, span, started, classify(openweather.ServiceName, err, cur == nil))
		return cur, err
	}, func(cur *openweather.Current, err error) {
		if d.sess != sess {
			zap.L().Debug("dashboard: discarding weather for inactive session")
			return
		}

		cerr := classify(openweather.ServiceName, err, cur == nil)
		if cerr != nil {
			zap.L().Warn("dashboard: weather lookup failed",
				zap.String("city", city),
				zap.String("kind", cerr.Kind.String()),
				zap.String("message", cerr.Message),
				zap.Error(err),
			)
			d.snap.Weather = outcome.Failed[openweather.Current](cerr)
		} else {
			d.snap.Weather = outcome.Succeeded(*cur)
		}
		d.snap.Loading = false
		d.notify()
	})
}

func classify(service string, err error, empty bool) *outcome.ClassifiedError {
	switch {
	case err != nil:
		return outcome.Classify(service, err)
	case empty:
		return &outcome.ClassifiedError{Kind: outcome.KindUnexpected, Message: service + ": empty response"}
	}
	return nil
}

// finish records a lookup and ends its span. It runs on the lookup goroutine,
// before the continuation is posted.
func (d *Dashboard) finish(service string, span trace.Span, started time.Time, cerr *outcome.ClassifiedError) {
	d.metrics.RequestFinished(service, cerr, d.clk.Now().Sub(started))
	if cerr != nil {
		span.SetStatus(codes.Error, cerr.Message)
	}
	span.End()
}

func (d *Dashboard) notify() {
	if d.listener != nil {
		d.listener(d.snap)
	}
}
