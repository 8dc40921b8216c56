package deviceflags_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deviceflags "github.com/evo-company/deviceflags-go"
	"github.com/evo-company/deviceflags-go/memstore"
)

func TestInstrumentStore(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics, err := deviceflags.NewStoreMetrics(reg)
	require.NoError(t, err)

	store := memstore.New()
	flags := newFlags(deviceflags.InstrumentStore(store, metrics))

	require.NoError(t, flags.SetEnabled(ctx, true))
	_, err = flags.Enabled(ctx)
	require.NoError(t, err)
	_, err = flags.Snapshot(ctx)
	require.NoError(t, err)

	store.RejectWrites(true)
	assert.Error(t, flags.SetEnabled(ctx, false))

	expected := map[[2]string]float64{
		{"set_property", "ok"}:       1,
		{"set_property", "rejected"}: 1,
		{"get_boolean", "ok"}:        1,
		{"get_properties", "ok"}:     1,
		{"set_properties", "ok"}:     0,
	}
	for labels, want := range expected {
		got, err := counterValue(reg, labels[0], labels[1])
		require.NoError(t, err)
		assert.Equal(t, want, got, "%s/%s", labels[0], labels[1])
	}

	series, err := testutil.GatherAndCount(reg, "deviceflags_store_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, series)
}

func TestNewStoreMetricsTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := deviceflags.NewStoreMetrics(reg)
	require.NoError(t, err)
	_, err = deviceflags.NewStoreMetrics(reg)
	assert.Error(t, err)
}

func counterValue(reg *prometheus.Registry, operation, result string) (float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return 0, err
	}
	for _, family := range families {
		if family.GetName() != "deviceflags_store_operations_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["operation"] == operation && labels["result"] == result {
				return metric.GetCounter().GetValue(), nil
			}
		}
	}
	return 0, nil
}
