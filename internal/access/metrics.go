package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rh-console/rh-console/internal/identity"
)

const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeCanceled = "canceled"
)

// FetchMetrics observes grant fetches.
type FetchMetrics struct {
	fetches  *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewFetchMetrics registers the fetch collectors on reg. Collectors that are
// already registered are reused.
func NewFetchMetrics(reg prometheus.Registerer) (*FetchMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &FetchMetrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rh_permission_fetches_total",
			Help: "Permission grant fetches by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rh_permission_fetch_duration_seconds",
			Help:    "Duration of permission grant fetches.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if err := reg.Register(m.fetches); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("access: register fetch counter: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("access: unexpected collector type %T", already.ExistingCollector)
		}
		m.fetches = existing
	}
	if err := reg.Register(m.duration); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("access: register fetch histogram: %w", err)
		}
		existing, ok := already.ExistingCollector.(prometheus.Histogram)
		if !ok {
			return nil, fmt.Errorf("access: unexpected collector type %T", already.ExistingCollector)
		}
		m.duration = existing
	}
	return m, nil
}

// Instrument wraps next so every fetch is counted and timed. A nil m returns next.
func Instrument(next Fetcher, m *FetchMetrics) Fetcher {
	if m == nil {
		return next
	}
	return FetcherFunc(func(ctx context.Context, p identity.Principal) (*Grant, error) {
		start := time.Now()
		grant, err := next.Fetch(ctx, p)
		m.duration.Observe(time.Since(start).Seconds())
		m.fetches.WithLabelValues(outcome(err)).Inc()
		return grant, err
	})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, context.Canceled):
		return outcomeCanceled
	default:
		return outcomeError
	}
}
