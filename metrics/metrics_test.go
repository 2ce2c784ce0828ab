package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRecommendation(t *testing.T) {
	before := testutil.ToFloat64(Recommendations.WithLabelValues("fallback"))
	RecordRecommendation("fallback", 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(Recommendations.WithLabelValues("fallback")))
}

func TestRecordMaintenance(t *testing.T) {
	ok := testutil.ToFloat64(MaintenanceRuns.WithLabelValues("refresh_prices", "success"))
	failed := testutil.ToFloat64(MaintenanceRuns.WithLabelValues("refresh_prices", "error"))

	RecordMaintenance("refresh_prices", nil)
	RecordMaintenance("refresh_prices", errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(MaintenanceRuns.WithLabelValues("refresh_prices", "success")))
	assert.Equal(t, failed+1, testutil.ToFloat64(MaintenanceRuns.WithLabelValues("refresh_prices", "error")))
}
