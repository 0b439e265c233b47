// Package analyzer drives the submit → pending → verdict state machine for
// the remote risk-scoring service.
package analyzer

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/sells-group/mailcheck/internal/eventloop"
	"github.com/sells-group/mailcheck/internal/monitoring"
	"github.com/sells-group/mailcheck/internal/outcome"
	"github.com/sells-group/mailcheck/pkg/riskscore"
)

// MsgInputRequired is the validation message for blank input.
const MsgInputRequired = "input required"

var tracer = otel.Tracer("github.com/sells-group/mailcheck/internal/analyzer")

// State is the analyzer's observable state.
type State struct {
	Outcome   outcome.Outcome[riskscore.Result] `json:"outcome"`
	RequestID string                            `json:"requestId,omitempty"`
}

// Pending reports whether a request is in flight. Presentation layers use it
// to disable the submit affordance.
func (s State) Pending() bool {
	return s.Outcome.IsPending()
}

// Severity returns the severity of a succeeded outcome.
func (s State) Severity() (Severity, bool) {
	r, ok := s.Outcome.Value()
	if !ok {
		return 0, false
	}
	return SeverityOf(r.RiskScore), true
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMetrics records request outcomes.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

// WithListener registers fn to be called on the loop after every state change.
func WithListener(fn func(State)) Option {
	return func(a *Analyzer) {
		a.listener = fn
	}
}

// request is the liveness token of one in-flight call. A continuation may
// write state only while its token is still the analyzer's current one.
type request struct {
	id      string
	cancel  context.CancelFunc
	started time.Time
}

// Analyzer owns a single outcome slot. All fields below the options are
// touched only from loop callbacks.
type Analyzer struct {
	loop     *eventloop.Loop
	client   riskscore.Client
	metrics  *monitoring.Metrics
	listener func(State)

	state    State
	inflight *request
	closed   bool
}

// New creates an Analyzer bound to loop.
func New(loop *eventloop.Loop, client riskscore.Client, opts ...Option) *Analyzer {
	a := &Analyzer{
		loop:   loop,
		client: client,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Submit asks for text to be scored. The result is observed through State or
// the listener. Submitting while a request is pending does nothing.
func (a *Analyzer) Submit(text string) {
	a.loop.Post(func() { a.submit(text) })
}

// TrySubmit is Submit that waits for the loop to handle the call. It returns
// the state as of the end of that loop turn, and reports false when the
// submission was ignored because a request is pending or the analyzer is
// closed.
func (a *Analyzer) TrySubmit(ctx context.Context, text string) (State, bool, error) {
	type submission struct {
		state    State
		accepted bool
	}
	sub, err := eventloop.Call(ctx, a.loop, func() submission {
		accepted := a.submit(text)
		return submission{state: a.state, accepted: accepted}
	})
	return sub.state, sub.accepted, err
}

// State returns a snapshot of the current state.
func (a *Analyzer) State(ctx context.Context) (State, error) {
	return eventloop.Call(ctx, a.loop, func() State { return a.state })
}

// Close cancels any in-flight request and discards its eventual response.
// Later submissions are ignored.
func (a *Analyzer) Close() {
	a.loop.Post(a.close)
}

func (a *Analyzer) submit(text string) bool {
	log := zap.L().With(zap.String("component", "analyzer"))

	if a.closed {
		log.Debug("analyzer: submit after close ignored")
		return false
	}
	if a.inflight != nil {
		log.Debug("analyzer: submit ignored, request pending", zap.String("request_id", a.inflight.id))
		a.metrics.SubmissionIgnored(riskscore.ServiceName)
		return false
	}

	if strings.TrimSpace(text) == "" {
		cerr := outcome.Validation(MsgInputRequired)
		a.state = State{Outcome: outcome.Failed[riskscore.Result](cerr)}
		a.metrics.Rejected(riskscore.ServiceName, cerr)
		a.notify()
		return true
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	ctx, span := tracer.Start(ctx, "analyzer.submit")
	span.SetAttributes(
		attribute.String("request.id", id),
		attribute.Int("email.length", len(text)),
	)

	req := &request{id: id, cancel: cancel, started: time.Now()}
	a.inflight = req
	a.state = State{Outcome: outcome.Pending[riskscore.Result](), RequestID: id}
	a.metrics.RequestStarted(riskscore.ServiceName)
	log.Info("analyzer: request issued", zap.String("request_id", id), zap.Int("length", len(text)))
	a.notify()

	// Metrics and the span are finished in op; the continuation is dropped
	// if the loop stops first.
	eventloop.Await(ctx, a.loop, func(ctx context.Context) (*riskscore.Result, error) {
		res, err := a.client.Analyze(ctx, riskscore.AnalyzeRequest{RequestID: id, EmailText: text})
		req.cancel()
		cerr := classify(res, err)
		a.metrics.RequestFinished(riskscore.ServiceName, cerr, time.Since(req.started))
		if cerr != nil {
			span.SetStatus(codes.Error, cerr.Message)
		}
		span.End()
		return res, err
	}, func(res *riskscore.Result, err error) {
		a.complete(req, res, err)
	})
	return true
}

func classify(res *riskscore.Result, err error) *outcome.ClassifiedError {
	if err != nil {
		return outcome.Classify(riskscore.ServiceName, err)
	}
	if res == nil {
		return &outcome.ClassifiedError{Kind: outcome.KindUnexpected, Message: riskscore.ServiceName + ": empty response"}
	}
	return nil
}

func (a *Analyzer) complete(req *request, res *riskscore.Result, err error) {
	log := zap.L().With(
		zap.String("component", "analyzer"),
		zap.String("request_id", req.id),
		zap.Duration("elapsed", time.Since(req.started)),
	)

	if a.inflight != req {
		log.Debug("analyzer: discarding response for inactive request")
		return
	}
	a.inflight = nil

	cerr := classify(res, err)
	if cerr != nil {
		log.Warn("analyzer: request failed",
			zap.String("kind", cerr.Kind.String()),
			zap.String("message", cerr.Message),
			zap.Error(err),
		)
		a.state.Outcome = outcome.Failed[riskscore.Result](cerr)
	} else {
		log.Info("analyzer: request succeeded", zap.Float64("risk_score", res.RiskScore), zap.String("verdict", res.Verdict))
		a.state.Outcome = outcome.Succeeded(*res)
	}
	a.notify()
}

func (a *Analyzer) close() {
	if a.closed {
		return
	}
	a.closed = true
	if a.inflight != nil {
		a.inflight.cancel()
		a.inflight = nil
	}
}

func (a *Analyzer) notify() {
	if a.listener != nil {
		a.listener(a.state)
	}
}
