package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveTurn(t *testing.T) {
	before := testutil.ToFloat64(turnsTotal.WithLabelValues("answer"))

	ObserveTurn("answer", 1200*time.Millisecond)

	after := testutil.ToFloat64(turnsTotal.WithLabelValues("answer"))
	assert.Equal(t, before+1, after)
}

func TestObserveLLMCallStatus(t *testing.T) {
	okBefore := testutil.ToFloat64(llmCallsTotal.WithLabelValues("generate", "ok"))
	errBefore := testutil.ToFloat64(llmCallsTotal.WithLabelValues("generate", "error"))

	ObserveLLMCall("generate", nil, 300*time.Millisecond)
	ObserveLLMCall("generate", errors.New("quota exceeded"), 50*time.Millisecond)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(llmCallsTotal.WithLabelValues("generate", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(llmCallsTotal.WithLabelValues("generate", "error")))
}

func TestObserveWarehouseQuery(t *testing.T) {
	okBefore := testutil.ToFloat64(warehouseQueriesTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(warehouseQueriesTotal.WithLabelValues("error"))

	ObserveWarehouseQuery(42, nil, 80*time.Millisecond)
	ObserveWarehouseQuery(0, errors.New("syntax error"), 10*time.Millisecond)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(warehouseQueriesTotal.WithLabelValues("ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(warehouseQueriesTotal.WithLabelValues("error")))
}

func TestObserveHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/api/v1/ask", "200"))

	ObserveHTTPRequest("POST", "/api/v1/ask", 200, 900*time.Millisecond)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/api/v1/ask", "200"))
	assert.Equal(t, before+1, after)
}
