package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordExitClearsPositionsOpenGaugeAndSetsCumulativeProfit(t *testing.T) {
	PositionsOpen.WithLabelValues("KRW-TESTA").Set(1)

	RecordExit("KRW-TESTA", 42.5)
	require.Equal(t, 0.0, testutil.ToFloat64(PositionsOpen.WithLabelValues("KRW-TESTA")))
	require.Equal(t, 42.5, testutil.ToFloat64(CumulativeProfit))
}

func TestRecordRejectionIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(EntriesRejected.WithLabelValues("KRW-TESTB", "low_momentum"))
	RecordRejection("KRW-TESTB", "low_momentum")
	after := testutil.ToFloat64(EntriesRejected.WithLabelValues("KRW-TESTB", "low_momentum"))
	require.Equal(t, before+1, after)
}

func TestHandlerIsNotNil(t *testing.T) {
	require.NotNil(t, Handler())
}
