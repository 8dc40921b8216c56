package deviceflags

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultError    = "error"
)

// StoreMetrics counts and times store operations.
type StoreMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewStoreMetrics creates the store collectors and registers them on reg.
func NewStoreMetrics(reg prometheus.Registerer) (*StoreMetrics, error) {
	m := &StoreMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "deviceflags",
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of device config store operations by operation and result",
			},
			[]string{"operation", "result"}, // result: ok, rejected, error
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "deviceflags",
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Duration of device config store operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}

	for _, c := range []prometheus.Collector{m.operations, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *StoreMetrics) observe(operation string, start time.Time, applied bool, err error) {
	result := resultOK
	switch {
	case err != nil:
		result = resultError
	case !applied:
		result = resultRejected
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

type instrumentedStore struct {
	store   Store
	metrics *StoreMetrics
}

// InstrumentStore wraps store so every call is recorded in metrics.
func InstrumentStore(store Store, metrics *StoreMetrics) Store {
	return &instrumentedStore{store: store, metrics: metrics}
}

func (s *instrumentedStore) GetBoolean(ctx context.Context, namespace, key string, def bool) (bool, error) {
	start := time.Now()
	value, err := s.store.GetBoolean(ctx, namespace, key, def)
	s.metrics.observe("get_boolean", start, true, err)
	return value, err
}

func (s *instrumentedStore) GetProperties(ctx context.Context, namespace string) (Properties, error) {
	start := time.Now()
	props, err := s.store.GetProperties(ctx, namespace)
	s.metrics.observe("get_properties", start, true, err)
	return props, err
}

func (s *instrumentedStore) SetProperty(ctx context.Context, namespace, key, value string, makeDefault bool) (bool, error) {
	start := time.Now()
	applied, err := s.store.SetProperty(ctx, namespace, key, value, makeDefault)
	s.metrics.observe("set_property", start, applied, err)
	return applied, err
}

func (s *instrumentedStore) SetProperties(ctx context.Context, props Properties) (bool, error) {
	start := time.Now()
	applied, err := s.store.SetProperties(ctx, props)
	s.metrics.observe("set_properties", start, applied, err)
	return applied, err
}
