// File: internal/orchestrator/orchestrator.go
// Description: Dispatches the applicable collectors for a target under a
// bounded worker pool, enforcing per-collector rate limits, timeouts and
// retries, and streams every result into the aggregator as it arrives.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/dossier-cli/api/schemas"
	"github.com/xkilldash9x/dossier-cli/internal/config"
	"github.com/xkilldash9x/dossier-cli/internal/registry"
)

// ErrNoApplicableCollectors is returned when no enabled collector accepts the
// target's kind. It is fatal: the run never starts.
var ErrNoApplicableCollectors = errors.New("no enabled collector accepts the target kind")

// Aggregator receives every collector result as it arrives. Merge must be
// safe for concurrent use.
type Aggregator interface {
	Merge(result schemas.AdapterResult)
}

// Orchestrator runs one investigation at a time. Collector goroutines share a
// weighted semaphore sized to the configured concurrency, so at most that
// many external calls are in flight regardless of how many collectors were
// selected.
type Orchestrator struct {
	cfg *config.Config
	log *zap.Logger
	reg *registry.Registry
	sem *semaphore.Weighted

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates an orchestrator bound to the given registry.
func New(cfg *config.Config, logger *zap.Logger, reg *registry.Registry) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("orchestrator requires a non-nil config")
	}
	if reg == nil {
		return nil, fmt.Errorf("orchestrator requires a non-nil registry")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		log:      logger.Named("orchestrator"),
		reg:      reg,
		sem:      semaphore.NewWeighted(int64(cfg.Engine.Concurrency)),
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

// Run executes a full investigation against the target and returns it sealed.
// The investigation itself never fails once dispatch begins: every collector
// terminates in a well-formed result, and a deadline overrun is reported as
// StatusTimedOut on whatever was gathered so far.
func (o *Orchestrator) Run(ctx context.Context, target schemas.Target, agg Aggregator) (*schemas.Investigation, error) {
	selected := o.applicable(target)
	if len(selected) == 0 {
		return nil, fmt.Errorf("target kind %q: %w", target.Kind, ErrNoApplicableCollectors)
	}

	now := time.Now().UTC()
	inv := &schemas.Investigation{
		ID:        uuid.NewString(),
		Target:    target,
		StartTime: now,
		Deadline:  now.Add(o.cfg.Engine.Deadline),
		Status:    schemas.StatusRunning,
	}

	o.log.Info("Investigation started",
		zap.String("investigation_id", inv.ID),
		zap.String("target_kind", string(target.Kind)),
		zap.String("target", target.NormalizedValue),
		zap.Int("collectors", len(selected)))

	runCtx, cancel := context.WithDeadline(ctx, inv.Deadline)
	defer cancel()

	// Buffered to the number of workers so a worker can always deliver its
	// result and exit, even after the deadline fired.
	results := make(chan schemas.AdapterResult, len(selected))
	for _, c := range selected {
		settings := o.cfg.SettingsFor(c.Name())
		go o.invokeOne(runCtx, c, target, settings, results)
	}

	// Every worker sends exactly one result, so a plain drain terminates.
	// Deadline expiry cancels runCtx, which unblocks the workers quickly.
	for received := 0; received < len(selected); received++ {
		res := <-results
		agg.Merge(res)
		inv.Results = append(inv.Results, res)
		o.log.Info("Collector finished",
			zap.String("investigation_id", inv.ID),
			zap.String("collector", res.CollectorName),
			zap.String("outcome", string(res.Outcome)),
			zap.Duration("duration", res.Duration),
			zap.Int("findings", len(res.Findings)))
	}

	inv.Status = schemas.StatusCompleted
	if runCtx.Err() == context.DeadlineExceeded {
		inv.Status = schemas.StatusTimedOut
	}

	o.log.Info("Investigation finished",
		zap.String("investigation_id", inv.ID),
		zap.String("status", string(inv.Status)),
		zap.Duration("elapsed", time.Since(inv.StartTime)),
		zap.Any("outcomes", outcomeCounts(inv.Results)))
	return inv, nil
}

func outcomeCounts(results []schemas.AdapterResult) map[string]int {
	counts := make(map[string]int, len(results))
	for _, r := range results {
		counts[string(r.Outcome)]++
	}
	return counts
}

// applicable returns the registry's selection for the target minus any
// collector the configuration disables.
func (o *Orchestrator) applicable(target schemas.Target) []schemas.Collector {
	var out []schemas.Collector
	for _, c := range o.reg.Select(target) {
		if !o.cfg.SettingsFor(c.Name()).Enabled {
			o.log.Debug("Collector disabled by configuration", zap.String("collector", c.Name()))
			continue
		}
		out = append(out, c)
	}
	return out
}

// invokeOne drives a single collector through queueing, rate limiting, the
// call itself and any retries. It always sends exactly one result.
func (o *Orchestrator) invokeOne(ctx context.Context, c schemas.Collector, target schemas.Target, settings schemas.CollectorSettings, out chan<- schemas.AdapterResult) {
	name := c.Name()
	started := time.Now().UTC()

	// The per-collector budget covers queueing, limiter waits and retries.
	attemptCtx, cancel := context.WithTimeout(ctx, settings.Timeout)
	defer cancel()

	if err := o.sem.Acquire(attemptCtx, 1); err != nil {
		out <- o.terminal(name, started, schemas.OutcomeTimeout,
			"deadline elapsed while queued for a worker slot")
		return
	}
	defer o.sem.Release(1)

	if err := o.limiterFor(c.Descriptor()).Wait(attemptCtx); err != nil {
		// No token before the budget ran out. Report Timeout when the
		// surrounding deadline fired, RateLimited otherwise: in both cases
		// the external source was never contacted.
		outcome := schemas.OutcomeRateLimited
		detail := "rate limit token unavailable within the collector timeout"
		if ctx.Err() != nil {
			outcome = schemas.OutcomeTimeout
			detail = "deadline elapsed while waiting for a rate limit token"
		}
		out <- o.terminal(name, started, outcome, detail)
		return
	}

	backoff := o.cfg.Engine.RetryBackoff
	var res schemas.AdapterResult
	for attempt := 0; ; attempt++ {
		res = o.safeInvoke(attemptCtx, c, target, settings)
		if res.Outcome != schemas.OutcomeNetworkError || attempt >= o.cfg.Engine.MaxRetries {
			break
		}
		o.log.Debug("Retrying collector after network error",
			zap.String("collector", name),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff))
		if !sleepCtx(attemptCtx, backoff) {
			// Budget exhausted mid-backoff; the network error stands.
			break
		}
		backoff *= 2
	}

	res.CollectorName = name
	res.Duration = time.Since(started)
	if res.ObservedAt.IsZero() {
		res.ObservedAt = time.Now().UTC()
	}
	out <- res
}

// safeInvoke calls the collector and converts a panic into a parse error
// result, so one misbehaving collector can never take down the run.
func (o *Orchestrator) safeInvoke(ctx context.Context, c schemas.Collector, target schemas.Target, settings schemas.CollectorSettings) (res schemas.AdapterResult) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("Collector panicked",
				zap.String("collector", c.Name()),
				zap.Any("panic", r))
			res = schemas.AdapterResult{
				CollectorName: c.Name(),
				Outcome:       schemas.OutcomeParseError,
				ObservedAt:    time.Now().UTC(),
				ErrorDetail:   fmt.Sprintf("collector panic: %v", r),
			}
		}
	}()
	return c.Invoke(ctx, target, settings)
}

// limiterFor returns the shared token bucket for a collector, creating it on
// first use. Buckets persist across investigations so the declared budget
// holds for the process lifetime.
func (o *Orchestrator) limiterFor(desc schemas.CollectorDescriptor) *rate.Limiter {
	o.mu.Lock()
	defer o.mu.Unlock()

	if lim, ok := o.limiters[desc.Name]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if desc.RateLimit.MaxCalls > 0 && desc.RateLimit.Per > 0 {
		interval := desc.RateLimit.Per / time.Duration(desc.RateLimit.MaxCalls)
		lim = rate.NewLimiter(rate.Every(interval), desc.RateLimit.MaxCalls)
	}
	o.limiters[desc.Name] = lim
	return lim
}

func (o *Orchestrator) terminal(name string, started time.Time, outcome schemas.Outcome, detail string) schemas.AdapterResult {
	return schemas.AdapterResult{
		CollectorName: name,
		Outcome:       outcome,
		Duration:      time.Since(started),
		ObservedAt:    time.Now().UTC(),
		ErrorDetail:   detail,
	}
}

// sleepCtx waits for d, returning false if the context expired first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
