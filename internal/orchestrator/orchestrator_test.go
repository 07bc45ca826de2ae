package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/dossier-cli/api/schemas"
	"github.com/xkilldash9x/dossier-cli/internal/config"
	"github.com/xkilldash9x/dossier-cli/internal/registry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeCollector is a scriptable collector for driving the dispatch loop.
type fakeCollector struct {
	name   string
	kinds  []schemas.TargetKind
	limit  schemas.RateLimit
	invoke func(ctx context.Context, target schemas.Target) schemas.AdapterResult
	calls  atomic.Int32
}

func (f *fakeCollector) Name() string { return f.name }

func (f *fakeCollector) Descriptor() schemas.CollectorDescriptor {
	return schemas.CollectorDescriptor{
		Name:      f.name,
		Kinds:     f.kinds,
		RateLimit: f.limit,
	}
}

func (f *fakeCollector) Invoke(ctx context.Context, target schemas.Target, _ schemas.CollectorSettings) schemas.AdapterResult {
	f.calls.Add(1)
	return f.invoke(ctx, target)
}

// recordingAggregator captures merged results in arrival order.
type recordingAggregator struct {
	mu      sync.Mutex
	results []schemas.AdapterResult
}

func (r *recordingAggregator) Merge(res schemas.AdapterResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recordingAggregator) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Engine.Deadline = 5 * time.Second
	cfg.Engine.CollectorTimeout = time.Second
	cfg.Engine.RetryBackoff = time.Millisecond
	return cfg
}

func domainTarget() schemas.Target {
	return schemas.Target{Kind: schemas.KindDomain, NormalizedValue: "example.com", RawInput: "example.com"}
}

func successFor(kind schemas.TargetKind, value string) func(context.Context, schemas.Target) schemas.AdapterResult {
	return func(_ context.Context, _ schemas.Target) schemas.AdapterResult {
		return schemas.AdapterResult{
			Outcome:    schemas.OutcomeSuccess,
			ObservedAt: time.Now().UTC(),
			Findings: []schemas.Finding{
				{Type: schemas.FindingSubdomain, Value: value, Confidence: 0.9},
			},
		}
	}
}

func newOrchestrator(t *testing.T, cfg *config.Config, collectors ...schemas.Collector) *Orchestrator {
	t.Helper()
	reg := registry.New(zap.NewNop())
	for _, c := range collectors {
		require.NoError(t, reg.Register(c))
	}
	o, err := New(cfg, zap.NewNop(), reg)
	require.NoError(t, err)
	return o
}

func TestRun_AllCollectorsComplete(t *testing.T) {
	a := &fakeCollector{name: "alpha", kinds: []schemas.TargetKind{schemas.KindDomain},
		invoke: successFor(schemas.KindDomain, "a.example.com")}
	b := &fakeCollector{name: "beta", kinds: []schemas.TargetKind{schemas.KindDomain},
		invoke: successFor(schemas.KindDomain, "b.example.com")}
	o := newOrchestrator(t, testConfig(), a, b)

	agg := &recordingAggregator{}
	inv, err := o.Run(context.Background(), domainTarget(), agg)
	require.NoError(t, err)

	assert.Equal(t, schemas.StatusCompleted, inv.Status)
	assert.NotEmpty(t, inv.ID)
	require.Len(t, inv.Results, 2)
	assert.Equal(t, 2, agg.len())

	names := map[string]schemas.Outcome{}
	for _, r := range inv.Results {
		names[r.CollectorName] = r.Outcome
		assert.False(t, r.ObservedAt.IsZero())
	}
	assert.Equal(t, schemas.OutcomeSuccess, names["alpha"])
	assert.Equal(t, schemas.OutcomeSuccess, names["beta"])
}

func TestRun_NoApplicableCollectors(t *testing.T) {
	c := &fakeCollector{name: "domains-only", kinds: []schemas.TargetKind{schemas.KindDomain},
		invoke: successFor(schemas.KindDomain, "x.example.com")}
	o := newOrchestrator(t, testConfig(), c)

	_, err := o.Run(context.Background(), schemas.Target{Kind: schemas.KindIPAddress, NormalizedValue: "192.0.2.1"}, &recordingAggregator{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoApplicableCollectors)
	assert.Zero(t, c.calls.Load())
}

func TestRun_DisabledCollectorSkipped(t *testing.T) {
	enabled := &fakeCollector{name: "kept", kinds: []schemas.TargetKind{schemas.KindDomain},
		invoke: successFor(schemas.KindDomain, "kept.example.com")}
	disabled := &fakeCollector{name: "dropped", kinds: []schemas.TargetKind{schemas.KindDomain},
		invoke: successFor(schemas.KindDomain, "dropped.example.com")}

	cfg := testConfig()
	off := false
	cfg.Collectors = map[string]config.CollectorConfig{
		"dropped": {Enabled: &off},
	}
	o := newOrchestrator(t, cfg, enabled, disabled)

	inv, err := o.Run(context.Background(), domainTarget(), &recordingAggregator{})
	require.NoError(t, err)

	require.Len(t, inv.Results, 1)
	assert.Equal(t, "kept", inv.Results[0].CollectorName)
	assert.Zero(t, disabled.calls.Load())
}

func TestRun_DeadlineMarksInvestigationTimedOut(t *testing.T) {
	slow := &fakeCollector{name: "slow", kinds: []schemas.TargetKind{schemas.KindDomain},
		invoke: func(ctx context.Context, _ schemas.Target) schemas.AdapterResult {
			<-ctx.Done()
			return schemas.AdapterResult{
				Outcome:     schemas.OutcomeTimeout,
				ObservedAt:  time.Now().UTC(),
				ErrorDetail: "deadline exceeded",
			}
		}}

	cfg := testConfig()
	cfg.Engine.Deadline = 50 * time.Millisecond
	o := newOrchestrator(t, cfg, slow)

	inv, err := o.Run(context.Background(), domainTarget(), &recordingAggregator{})
	require.NoError(t, err)

	assert.Equal(t, schemas.StatusTimedOut, inv.Status)
	require.Len(t, inv.Results, 1)
	assert.Equal(t, schemas.OutcomeTimeout, inv.Results[0].Outcome)
	assert.Empty(t, inv.Results[0].Findings)
}

func TestRun_RetriesNetworkErrorThenSucceeds(t *testing.T) {
	flaky := &fakeCollector{name: "flaky", kinds: []schemas.TargetKind{schemas.KindDomain}}
	flaky.invoke = func(_ context.Context, _ schemas.Target) schemas.AdapterResult {
		if flaky.calls.Load() < 3 {
			return schemas.AdapterResult{Outcome: schemas.OutcomeNetworkError, ObservedAt: time.Now().UTC()}
		}
		return schemas.AdapterResult{Outcome: schemas.OutcomeSuccess, ObservedAt: time.Now().UTC()}
	}

	o := newOrchestrator(t, testConfig(), flaky)
	inv, err := o.Run(context.Background(), domainTarget(), &recordingAggregator{})
	require.NoError(t, err)

	assert.Equal(t, int32(3), flaky.calls.Load())
	require.Len(t, inv.Results, 1)
	assert.Equal(t, schemas.OutcomeSuccess, inv.Results[0].Outcome)
	assert.Equal(t, schemas.StatusCompleted, inv.Status)
}

func TestRun_RetryBudgetExhausted(t *testing.T) {
	dead := &fakeCollector{name: "dead", kinds: []schemas.TargetKind{schemas.KindDomain},
		invoke: func(_ context.Context, _ schemas.Target) schemas.AdapterResult {
			return schemas.AdapterResult{Outcome: schemas.OutcomeNetworkError, ObservedAt: time.Now().UTC()}
		}}

	cfg := testConfig()
	cfg.Engine.MaxRetries = 2
	o := newOrchestrator(t, cfg, dead)

	inv, err := o.Run(context.Background(), domainTarget(), &recordingAggregator{})
	require.NoError(t, err)

	// Initial attempt plus two retries.
	assert.Equal(t, int32(3), dead.calls.Load())
	require.Len(t, inv.Results, 1)
	assert.Equal(t, schemas.OutcomeNetworkError, inv.Results[0].Outcome)
	assert.Equal(t, schemas.StatusCompleted, inv.Status)
}

func TestRun_NonTransientOutcomesNeverRetried(t *testing.T) {
	for _, outcome := range []schemas.Outcome{
		schemas.OutcomeTimeout,
		schemas.OutcomeAuthMissing,
		schemas.OutcomeNotAvailable,
		schemas.OutcomeParseError,
	} {
		t.Run(string(outcome), func(t *testing.T) {
			c := &fakeCollector{name: "once", kinds: []schemas.TargetKind{schemas.KindDomain},
				invoke: func(_ context.Context, _ schemas.Target) schemas.AdapterResult {
					return schemas.AdapterResult{Outcome: outcome, ObservedAt: time.Now().UTC()}
				}}
			o := newOrchestrator(t, testConfig(), c)

			inv, err := o.Run(context.Background(), domainTarget(), &recordingAggregator{})
			require.NoError(t, err)

			assert.Equal(t, int32(1), c.calls.Load())
			assert.Equal(t, outcome, inv.Results[0].Outcome)
		})
	}
}

func TestRun_PanicBecomesParseError(t *testing.T) {
	bomb := &fakeCollector{name: "bomb", kinds: []schemas.TargetKind{schemas.KindDomain},
		invoke: func(_ context.Context, _ schemas.Target) schemas.AdapterResult {
			panic("unexpected payload shape")
		}}
	calm := &fakeCollector{name: "calm", kinds: []schemas.TargetKind{schemas.KindDomain},
		invoke: successFor(schemas.KindDomain, "calm.example.com")}
	o := newOrchestrator(t, testConfig(), bomb, calm)

	inv, err := o.Run(context.Background(), domainTarget(), &recordingAggregator{})
	require.NoError(t, err)

	assert.Equal(t, schemas.StatusCompleted, inv.Status)
	require.Len(t, inv.Results, 2)

	byName := map[string]schemas.AdapterResult{}
	for _, r := range inv.Results {
		byName[r.CollectorName] = r
	}
	assert.Equal(t, schemas.OutcomeParseError, byName["bomb"].Outcome)
	assert.Contains(t, byName["bomb"].ErrorDetail, "panic")
	assert.Equal(t, schemas.OutcomeSuccess, byName["calm"].Outcome)
}

func TestRun_ConcurrencyBounded(t *testing.T) {
	var inFlight, peak atomic.Int32
	track := func(_ context.Context, _ schemas.Target) schemas.AdapterResult {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return schemas.AdapterResult{Outcome: schemas.OutcomeSuccess, ObservedAt: time.Now().UTC()}
	}

	cfg := testConfig()
	cfg.Engine.Concurrency = 1
	o := newOrchestrator(t, cfg,
		&fakeCollector{name: "one", kinds: []schemas.TargetKind{schemas.KindDomain}, invoke: track},
		&fakeCollector{name: "two", kinds: []schemas.TargetKind{schemas.KindDomain}, invoke: track},
		&fakeCollector{name: "three", kinds: []schemas.TargetKind{schemas.KindDomain}, invoke: track})

	inv, err := o.Run(context.Background(), domainTarget(), &recordingAggregator{})
	require.NoError(t, err)

	assert.Equal(t, schemas.StatusCompleted, inv.Status)
	assert.Len(t, inv.Results, 3)
	assert.Equal(t, int32(1), peak.Load())
}

func TestRun_RateLimitExhaustionWithoutContact(t *testing.T) {
	c := &fakeCollector{name: "scarce", kinds: []schemas.TargetKind{schemas.KindDomain},
		limit:  schemas.RateLimit{MaxCalls: 1, Per: time.Hour},
		invoke: successFor(schemas.KindDomain, "scarce.example.com")}

	cfg := testConfig()
	cfg.Engine.CollectorTimeout = 50 * time.Millisecond
	o := newOrchestrator(t, cfg, c)

	first, err := o.Run(context.Background(), domainTarget(), &recordingAggregator{})
	require.NoError(t, err)
	assert.Equal(t, schemas.OutcomeSuccess, first.Results[0].Outcome)

	// The bucket is empty for the next hour, so the second run must give up
	// without ever invoking the collector.
	second, err := o.Run(context.Background(), domainTarget(), &recordingAggregator{})
	require.NoError(t, err)
	assert.Equal(t, schemas.OutcomeRateLimited, second.Results[0].Outcome)
	assert.Empty(t, second.Results[0].Findings)
	assert.Equal(t, int32(1), c.calls.Load())
}
