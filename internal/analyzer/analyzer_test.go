package analyzer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mailcheck/internal/eventloop"
	"github.com/sells-group/mailcheck/internal/fetcher"
	"github.com/sells-group/mailcheck/internal/monitoring"
	"github.com/sells-group/mailcheck/internal/outcome"
	"github.com/sells-group/mailcheck/pkg/riskscore"
	"github.com/sells-group/mailcheck/pkg/riskscore/mocks"
)

func startLoop(t *testing.T) *eventloop.Loop {
	t.Helper()
	l := eventloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return l
}

// recorder collects every state the analyzer publishes.
func recorder() (func(State), <-chan State) {
	ch := make(chan State, 32)
	return func(s State) { ch <- s }, ch
}

func next(t *testing.T, ch <-chan State) State {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state change")
		return State{}
	}
}

func state(t *testing.T, a *Analyzer) State {
	t.Helper()
	s, err := a.State(context.Background())
	require.NoError(t, err)
	return s
}

func TestAnalyzer_InitiallyIdle(t *testing.T) {
	a := New(startLoop(t), mocks.NewMockClient(t))

	s := state(t, a)
	assert.True(t, s.Outcome.IsIdle())
	assert.False(t, s.Pending())
}

func TestAnalyzer_Success(t *testing.T) {
	client := mocks.NewMockClient(t)
	want := riskscore.Result{RiskScore: 82, Verdict: "phishing", Analysis: "Urgent tone and spoofed sender."}

	client.On("Analyze", mock.Anything, mock.MatchedBy(func(req riskscore.AnalyzeRequest) bool {
		return req.EmailText == "Dear customer, verify your account" && req.RequestID != ""
	})).Return(&want, nil).Once()

	listen, states := recorder()
	a := New(startLoop(t), client, WithListener(listen))
	a.Submit("Dear customer, verify your account")

	pending := next(t, states)
	assert.True(t, pending.Pending())
	assert.NotEmpty(t, pending.RequestID)

	done := next(t, states)
	got, ok := done.Outcome.Value()
	require.True(t, ok)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, pending.RequestID, done.RequestID)

	sev, ok := done.Severity()
	require.True(t, ok)
	assert.Equal(t, SeverityHigh, sev)
}

func TestAnalyzer_BlankInputIsValidationFailure(t *testing.T) {
	listen, states := recorder()
	a := New(startLoop(t), mocks.NewMockClient(t), WithListener(listen))

	got, accepted, err := a.TrySubmit(context.Background(), "  \n\t ")
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.True(t, got.Outcome.IsFailed())

	s := next(t, states)
	assert.True(t, s.Outcome.IsFailed())
	assert.Equal(t, outcome.KindValidation, s.Outcome.Err().Kind)
	assert.Equal(t, MsgInputRequired, s.Outcome.Err().Message)
	assert.Empty(t, s.RequestID)
}

func TestAnalyzer_WhitespaceNeverReachesService_Property(t *testing.T) {
	l := startLoop(t)
	blanks := []rune{' ', '\t', '\n', '\r', '\v', '\f', ' ', ' '}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("whitespace-only input fails validation without a request", prop.ForAll(
		func(idx []int) bool {
			var sb strings.Builder
			for _, i := range idx {
				sb.WriteRune(blanks[i])
			}
			// No expectations: any call to Analyze fails the test.
			a := New(l, mocks.NewMockClient(t))
			if _, _, err := a.TrySubmit(context.Background(), sb.String()); err != nil {
				return false
			}
			s := state(t, a)
			return s.Outcome.IsFailed() &&
				s.Outcome.Err().Kind == outcome.KindValidation &&
				s.Outcome.Err().Message == MsgInputRequired
		},
		gen.SliceOf(gen.IntRange(0, len(blanks)-1)),
	))

	properties.TestingRun(t)
}

func TestAnalyzer_SubmitWhilePendingIsIgnored(t *testing.T) {
	client := mocks.NewMockClient(t)
	release := make(chan struct{})
	client.On("Analyze", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&riskscore.Result{RiskScore: 10, Verdict: "safe"}, nil).
		Once()

	reg := prometheus.NewRegistry()
	listen, states := recorder()
	a := New(startLoop(t), client, WithListener(listen), WithMetrics(monitoring.NewMetrics(reg)))

	first, accepted, err := a.TrySubmit(context.Background(), "first")
	require.NoError(t, err)
	require.True(t, accepted)
	pending := next(t, states)
	assert.Equal(t, pending, first)

	second, accepted, err := a.TrySubmit(context.Background(), "second")
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, first.RequestID, second.RequestID)
	assert.True(t, second.Pending())
	a.Submit("third")

	s := state(t, a)
	assert.True(t, s.Pending())
	assert.Equal(t, pending.RequestID, s.RequestID)

	close(release)
	done := next(t, states)
	assert.True(t, done.Outcome.IsSucceeded())
	client.AssertNumberOfCalls(t, "Analyze", 1)
}

func TestAnalyzer_ResubmitReplacesOutcome(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Analyze", mock.Anything, mock.MatchedBy(func(r riskscore.AnalyzeRequest) bool { return r.EmailText == "one" })).
		Return(nil, &fetcher.StatusError{Service: riskscore.ServiceName, StatusCode: http.StatusBadGateway, Message: "model offline"}).Once()
	client.On("Analyze", mock.Anything, mock.MatchedBy(func(r riskscore.AnalyzeRequest) bool { return r.EmailText == "two" })).
		Return(&riskscore.Result{RiskScore: 55, Verdict: "suspicious"}, nil).Once()

	listen, states := recorder()
	a := New(startLoop(t), client, WithListener(listen))

	a.Submit("one")
	first := next(t, states)
	failed := next(t, states)
	assert.True(t, failed.Outcome.IsFailed())
	assert.Equal(t, outcome.KindServer, failed.Outcome.Err().Kind)
	assert.Equal(t, "model offline", failed.Outcome.Err().Message)

	a.Submit("two")
	second := next(t, states)
	assert.True(t, second.Pending())
	assert.NotEqual(t, first.RequestID, second.RequestID)

	done := next(t, states)
	sev, ok := done.Severity()
	require.True(t, ok)
	assert.Equal(t, SeverityMedium, sev)
}

func TestAnalyzer_FailureClassification(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    outcome.Kind
		message string
	}{
		{
			name:    "server status",
			err:     &fetcher.StatusError{Service: riskscore.ServiceName, StatusCode: http.StatusBadRequest, Message: "email too long"},
			kind:    outcome.KindServer,
			message: "email too long",
		},
		{
			name:    "server status without body",
			err:     &fetcher.StatusError{Service: riskscore.ServiceName, StatusCode: http.StatusInternalServerError},
			kind:    outcome.KindServer,
			message: "http error: status 500",
		},
		{
			name:    "unreachable",
			err:     &fetcher.TransportError{Service: riskscore.ServiceName, Err: errors.New("connection refused")},
			kind:    outcome.KindNetwork,
			message: "analysis: service unreachable",
		},
		{
			name:    "malformed body",
			err:     &fetcher.DecodeError{Service: riskscore.ServiceName, Err: errors.New("invalid character")},
			kind:    outcome.KindUnexpected,
			message: "analysis: unexpected response",
		},
		{
			name:    "anything else",
			err:     errors.New("boom"),
			kind:    outcome.KindUnexpected,
			message: "analysis: unexpected response",
		},
	}

	l := startLoop(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := mocks.NewMockClient(t)
			client.On("Analyze", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			listen, states := recorder()
			a := New(l, client, WithListener(listen))
			a.Submit("hello")

			next(t, states)
			s := next(t, states)
			require.True(t, s.Outcome.IsFailed())
			assert.Equal(t, tt.kind, s.Outcome.Err().Kind)
			assert.Equal(t, tt.message, s.Outcome.Err().Message)
		})
	}
}

func TestAnalyzer_NilResultIsUnexpected(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Analyze", mock.Anything, mock.Anything).Return(nil, nil).Once()

	listen, states := recorder()
	a := New(startLoop(t), client, WithListener(listen))
	a.Submit("hello")

	next(t, states)
	s := next(t, states)
	require.True(t, s.Outcome.IsFailed())
	assert.Equal(t, outcome.KindUnexpected, s.Outcome.Err().Kind)
}

func TestAnalyzer_CloseDiscardsLateResponse(t *testing.T) {
	client := mocks.NewMockClient(t)
	cancelled := make(chan struct{})
	release := make(chan struct{})
	client.On("Analyze", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
			close(cancelled)
			<-release
		}).
		Return(&riskscore.Result{RiskScore: 99, Verdict: "phishing"}, nil).
		Once()

	reg := prometheus.NewRegistry()
	listen, states := recorder()
	a := New(startLoop(t), client, WithListener(listen), WithMetrics(monitoring.NewMetrics(reg)))
	a.Submit("hello")
	next(t, states)

	a.Close()
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("request context was not cancelled")
	}
	close(release)

	// The finished request is still recorded.
	require.Eventually(t, func() bool {
		n, err := testutil.GatherAndCount(reg, "mailcheck_requests_total")
		return err == nil && n == 1
	}, 2*time.Second, 5*time.Millisecond)
	s := state(t, a)
	assert.False(t, s.Outcome.IsSucceeded())

	select {
	case s := <-states:
		t.Fatalf("unexpected state change after close: %v", s.Outcome.Status())
	case <-time.After(50 * time.Millisecond):
	}

	_, accepted, err := a.TrySubmit(context.Background(), "again")
	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestAnalyzer_StateAfterLoopStops(t *testing.T) {
	l := eventloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	cancel()
	<-errCh

	a := New(l, mocks.NewMockClient(t))
	_, err := a.State(context.Background())
	assert.ErrorIs(t, err, eventloop.ErrStopped)
}

func TestAnalyzer_TrySubmitReturnsItsOwnPendingState(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Analyze", mock.Anything, mock.Anything).
		Return(&riskscore.Result{RiskScore: 5, Verdict: "safe"}, nil).
		Once()

	listen, states := recorder()
	a := New(startLoop(t), client, WithListener(listen))

	got, accepted, err := a.TrySubmit(context.Background(), "hello")
	require.NoError(t, err)
	require.True(t, accepted)

	// The request may already have completed; the returned state is still
	// the one this submission produced.
	assert.True(t, got.Pending())
	pending := next(t, states)
	assert.Equal(t, pending.RequestID, got.RequestID)
	assert.NotEmpty(t, got.RequestID)

	done := next(t, states)
	assert.True(t, done.Outcome.IsSucceeded())
	assert.Equal(t, got.RequestID, done.RequestID)
}

func TestAnalyzer_MetricsSettleWhenLoopStopsFirst(t *testing.T) {
	client := mocks.NewMockClient(t)
	started := make(chan struct{})
	release := make(chan struct{})
	client.On("Analyze", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&riskscore.Result{RiskScore: 70, Verdict: "suspicious"}, nil).
		Once()

	l := eventloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	reg := prometheus.NewRegistry()
	a := New(l, client, WithMetrics(monitoring.NewMetrics(reg)))
	_, accepted, err := a.TrySubmit(context.Background(), "hello")
	require.NoError(t, err)
	require.True(t, accepted)
	<-started

	cancel()
	require.NoError(t, <-errCh)
	close(release)

	const inFlight = `
# HELP mailcheck_requests_in_flight Outbound requests currently pending, by service.
# TYPE mailcheck_requests_in_flight gauge
mailcheck_requests_in_flight{service="analysis"} 0
`
	require.Eventually(t, func() bool {
		n, err := testutil.GatherAndCount(reg, "mailcheck_requests_total")
		return err == nil && n == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(inFlight), "mailcheck_requests_in_flight"))
}
