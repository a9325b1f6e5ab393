package weather

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	perrors "github.com/harvestlink/advisor/internal/errors"
	"github.com/harvestlink/advisor/internal/logging"
	"github.com/harvestlink/advisor/internal/metrics"
)

// Options tunes the Resilient wrapper
type Options struct {
	Name             string
	Timeout          time.Duration
	CacheTTL         time.Duration // zero disables caching
	CacheSize        int
	FailureThreshold uint32        // consecutive failures before the breaker opens
	OpenTimeout      time.Duration // time spent open before probing again
}

// DefaultOptions returns the options used by the service
func DefaultOptions() Options {
	return Options{
		Name:             "weather-api",
		Timeout:          3 * time.Second,
		CacheTTL:         10 * time.Minute,
		CacheSize:        256,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Resilient wraps a Lookup with a per-call timeout, a short-lived cache,
// deduplication of concurrent lookups for the same district and a circuit
// breaker.
type Resilient struct {
	next    Lookup
	name    string
	timeout time.Duration
	cache   *expirable.LRU[string, Snapshot]
	group   singleflight.Group
	cb      *gobreaker.CircuitBreaker[Snapshot]
}

// NewResilient wraps next
func NewResilient(next Lookup, opts Options) *Resilient {
	def := DefaultOptions()
	if opts.Name == "" {
		opts.Name = def.Name
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = def.FailureThreshold
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = def.OpenTimeout
	}

	r := &Resilient{
		next:    next,
		name:    opts.Name,
		timeout: opts.Timeout,
	}
	if opts.CacheTTL > 0 {
		r.cache = expirable.NewLRU[string, Snapshot](opts.CacheSize, nil, opts.CacheTTL)
	}

	metrics.CircuitBreakerState.WithLabelValues(opts.Name).Set(0)
	threshold := opts.FailureThreshold
	r.cb = gobreaker.NewCircuitBreaker[Snapshot](gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	return r
}

// Lookup returns a cached snapshot when one is fresh, otherwise asks the
// wrapped Lookup under the configured timeout. Failures are returned as
// ExternalLookupError.
func (r *Resilient) Lookup(ctx context.Context, district string) (Snapshot, error) {
	key := normalize(district)
	if r.cache != nil {
		if snap, ok := r.cache.Get(key); ok {
			metrics.WeatherLookups.WithLabelValues("hit").Inc()
			return snap, nil
		}
	}

	ch := r.group.DoChan(key, func() (interface{}, error) {
		// detached so one caller giving up does not fail the others
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.fetch(callCtx, district)
	})

	select {
	case <-ctx.Done():
		return Snapshot{}, &perrors.ExternalLookupError{Service: serviceName, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

func (r *Resilient) fetch(ctx context.Context, district string) (Snapshot, error) {
	start := time.Now()
	snap, err := r.cb.Execute(func() (Snapshot, error) {
		return r.next.Lookup(ctx, district)
	})
	metrics.WeatherLookupDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.WeatherLookups.WithLabelValues("rejected").Inc()
		} else {
			metrics.WeatherLookups.WithLabelValues("error").Inc()
		}
		var lookupErr *perrors.ExternalLookupError
		if !errors.As(err, &lookupErr) {
			err = &perrors.ExternalLookupError{Service: serviceName, Err: err}
		}
		return Snapshot{}, err
	}

	metrics.WeatherLookups.WithLabelValues("miss").Inc()
	if r.cache != nil {
		r.cache.Add(normalize(district), snap)
	}
	return snap, nil
}

// State reports the breaker state, for health output
func (r *Resilient) State() string {
	return r.cb.State().String()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
