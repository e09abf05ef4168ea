package dispatch

import (
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/go-logr/logr"
)

// SubscriptionsBuilderOption is a functional option for configuring a token set.
type SubscriptionsBuilderOption func(s *subscriptions)

// WithSubscriptionsLogger sets the logger used by the token set.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - SubscriptionsBuilderOption: option function to apply
func WithSubscriptionsLogger(logger logr.Logger) SubscriptionsBuilderOption {
	return func(s *subscriptions) {
		s.logger = logger.WithName("subscriptions")
	}
}

// WithSubscriptionsMetrics sets the collectors updated by the token set.
//
// Parameters:
//   - m: the collectors
//
// Returns:
//   - SubscriptionsBuilderOption: option function to apply
func WithSubscriptionsMetrics(m *metrics.Metrics) SubscriptionsBuilderOption {
	return func(s *subscriptions) {
		s.metrics = m
	}
}
