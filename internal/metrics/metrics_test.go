package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveOperation(t *testing.T) {
	m := New()

	m.ObserveOperation("refund", "ok")
	m.ObserveOperation("refund", "ok")
	m.ObserveOperation("refund", "AlreadyRefunded")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("refund", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("refund", "AlreadyRefunded")))
}

func TestObserveOperationNil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveOperation("confirm", "ok") })
}
