package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOperationsTotalCounts(t *testing.T) {
	before := testutil.ToFloat64(OperationsTotal.WithLabelValues("generate", "ok"))
	OperationsTotal.WithLabelValues("generate", "ok").Inc()
	after := testutil.ToFloat64(OperationsTotal.WithLabelValues("generate", "ok"))
	if after-before != 1 {
		t.Errorf("expected counter to grow by 1, got %v", after-before)
	}
}

func TestFetchTotalLabels(t *testing.T) {
	FetchTotal.WithLabelValues("invalid_url").Inc()
	if got := testutil.CollectAndCount(FetchTotal); got < 1 {
		t.Errorf("expected at least one series, got %d", got)
	}
}
