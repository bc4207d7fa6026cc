// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterHelpers(t *testing.T) {
	before := testutil.ToFloat64(JobsTotal.WithLabelValues("failed", "transcode"))
	IncJob("failed", "transcode")
	assert.Equal(t, before+1, testutil.ToFloat64(JobsTotal.WithLabelValues("failed", "transcode")))

	bytesBefore := testutil.ToFloat64(UploadedBytesTotal)
	RecordUpload("video/mp2t", 2048)
	RecordUpload("application/vnd.apple.mpegurl", 0)
	assert.Equal(t, bytesBefore+2048, testutil.ToFloat64(UploadedBytesTotal))
}

func TestObserveStage(t *testing.T) {
	ObserveStage("analyzing", 1500*time.Millisecond)

	var m dto.Metric
	obs, ok := StageDuration.WithLabelValues("analyzing").(interface{ Write(*dto.Metric) error })
	require.True(t, ok)
	require.NoError(t, obs.Write(&m))
	assert.GreaterOrEqual(t, m.GetHistogram().GetSampleCount(), uint64(1))
}

func TestSetBreakerStateIsExclusive(t *testing.T) {
	SetBreakerState("dispatch-ecs", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(breakerState.WithLabelValues("dispatch-ecs", "open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(breakerState.WithLabelValues("dispatch-ecs", "closed")))

	SetBreakerState("dispatch-ecs", "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(breakerState.WithLabelValues("dispatch-ecs", "open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(breakerState.WithLabelValues("dispatch-ecs", "closed")))
}

func TestIncBreakerRejection(t *testing.T) {
	before := testutil.ToFloat64(breakerRejections.WithLabelValues("dispatch-local"))
	IncBreakerRejection("dispatch-local")
	assert.Equal(t, before+1, testutil.ToFloat64(breakerRejections.WithLabelValues("dispatch-local")))
}
