package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lifeline/models"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// EventSink receives coordinator events. Implementations must not block.
type EventSink interface {
	Emit(event models.CoordinatorEvent)
}

// MultiSink forwards to every sink in order.
type MultiSink []EventSink

func (m MultiSink) Emit(event models.CoordinatorEvent) {
	for _, s := range m {
		if s != nil {
			s.Emit(event)
		}
	}
}

// =================== LOG ===================

type LogSink struct {
	logger *logrus.Logger
}

func NewLogSink(logger *logrus.Logger) *LogSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(event models.CoordinatorEvent) {
	entry := s.logger.WithFields(logrus.Fields{
		"event":      event.Type,
		"user_id":    event.UserID,
		"episode_id": event.EpisodeID,
		"state":      event.State,
	})
	for k, v := range event.Data {
		entry = entry.WithField(k, v)
	}

	switch event.Type {
	case models.EventDurationTick:
		entry.Debug("Emergency clock tick")
	case models.EventLocationUnavailable, models.EventDirectoryUnavailable:
		entry.Warn("Emergency degraded")
	case models.EventActivated:
		entry.Warn("🚨 Emergency activated")
	default:
		entry.Info("Emergency event")
	}
}

// =================== METRICS ===================

// MetricsSink counts transitions, notification outcomes and location failures.
type MetricsSink struct {
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	locationFails *prometheus.CounterVec
}

func NewMetricsSink(registerer prometheus.Registerer) (*MetricsSink, error) {
	s := &MetricsSink{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_emergency_transitions_total",
			Help: "Emergency coordinator lifecycle events by type.",
		}, []string{"type"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_notification_results_total",
			Help: "Per-channel notification outcomes.",
		}, []string{"channel", "result"}),
		locationFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_location_failures_total",
			Help: "Location acquisition failures by reason.",
		}, []string{"reason"}),
	}

	for _, c := range []prometheus.Collector{s.transitions, s.notifications, s.locationFails} {
		if err := registerer.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return s, nil
}

func (s *MetricsSink) Emit(event models.CoordinatorEvent) {
	switch event.Type {
	case models.EventDurationTick:
		return
	case models.EventNotificationResult, models.EventStandDownResult:
		channel, _ := event.Data["channel"].(string)
		result := "failure"
		if ok, _ := event.Data["success"].(bool); ok {
			result = "success"
		}
		s.notifications.WithLabelValues(channel, result).Inc()
	case models.EventLocationUnavailable:
		reason, _ := event.Data["reason"].(string)
		s.locationFails.WithLabelValues(reason).Inc()
	default:
		s.transitions.WithLabelValues(event.Type).Inc()
	}
}

// =================== REDIS ===================

// RedisSink publishes events on emergency:events:<userID> for other instances.
type RedisSink struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client, timeout: 2 * time.Second}
}

func EventChannel(userID string) string {
	return "emergency:events:" + userID
}

func (s *RedisSink) Emit(event models.CoordinatorEvent) {
	if event.Type == models.EventDurationTick {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.Errorf("Failed to encode emergency event: %v", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.client.Publish(ctx, EventChannel(event.UserID), payload).Err(); err != nil {
			logrus.Warnf("Failed to publish emergency event for user %s: %v", event.UserID, err)
		}
	}()
}
