package services

import (
	"testing"

	"lifeline/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSink(t *testing.T) {
	registry := prometheus.NewRegistry()
	sink, err := NewMetricsSink(registry)
	require.NoError(t, err)

	sink.Emit(models.CoordinatorEvent{Type: models.EventActivated})
	sink.Emit(models.CoordinatorEvent{Type: models.EventActivated})
	sink.Emit(models.CoordinatorEvent{Type: models.EventDurationTick})
	sink.Emit(models.CoordinatorEvent{Type: models.EventNotificationResult, Data: map[string]interface{}{"channel": "sms", "success": true}})
	sink.Emit(models.CoordinatorEvent{Type: models.EventNotificationResult, Data: map[string]interface{}{"channel": "call", "success": false}})
	sink.Emit(models.CoordinatorEvent{Type: models.EventLocationUnavailable, Data: map[string]interface{}{"reason": "timeout"}})

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.transitions.WithLabelValues(models.EventActivated)))
	assert.Equal(t, 0.0, testutil.ToFloat64(sink.transitions.WithLabelValues(models.EventDurationTick)))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.notifications.WithLabelValues("sms", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.notifications.WithLabelValues("call", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.locationFails.WithLabelValues("timeout")))

	_, err = NewMetricsSink(registry)
	assert.Error(t, err, "duplicate registration")
}

func TestLogSinkAndMultiSink(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)
	recorder := &recordingSink{}

	sink := MultiSink{NewLogSink(logger), nil, recorder}
	sink.Emit(models.CoordinatorEvent{Type: models.EventActivated, UserID: "u1", EpisodeID: "ep-1"})
	sink.Emit(models.CoordinatorEvent{Type: models.EventDurationTick, UserID: "u1"})

	assert.Equal(t, 1, recorder.Count(models.EventActivated))
	assert.Equal(t, 1, recorder.Count(models.EventDurationTick))

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "ep-1", entry.Data["episode_id"])
}
