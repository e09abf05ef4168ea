// Package dispatch registers bridge callbacks with the host and routes structural scene events
// to the registries and the shading manager.
package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"
)

// subscriptions is the implementation of the Subscriptions interface.
type subscriptions struct {
	mu *sync.Mutex

	host    host.Host
	live    sets.Set[host.CallbackToken]
	revoked sets.Set[host.CallbackToken]

	logger  logr.Logger
	metrics *metrics.Metrics
}

// Subscriptions registers change callbacks on the host on behalf of bridge components and keeps
// the set of live tokens.
type Subscriptions interface {
	host.Subscriber

	// Live returns the number of registered tokens.
	Live() int

	// CancelAll deregisters every live token. Components cancelling a revoked token later get no error.
	//
	// Returns:
	//   - error: the joined deregistration failures
	CancelAll() error
}

var _ Subscriptions = &subscriptions{}

// NewSubscriptions creates an empty token set on top of a host.
//
// Parameters:
//   - h: the host callbacks are registered with
//   - options: functional options to configure the token set
//
// Returns:
//   - Subscriptions: the new token set
func NewSubscriptions(h host.Host, options ...SubscriptionsBuilderOption) Subscriptions {
	if h == nil {
		panic("dispatch: NewSubscriptions requires a host")
	}
	s := &subscriptions{
		mu:      &sync.Mutex{},
		host:    h,
		live:    sets.New[host.CallbackToken](),
		revoked: sets.New[host.CallbackToken](),
		logger:  logr.Discard(),
		metrics: metrics.Discard(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *subscriptions) Subscribe(entity host.Handle, handler host.ChangeHandler) (host.CallbackToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.host.RegisterChangeCallback(entity, handler)
	if err != nil {
		return host.CallbackToken{}, fmt.Errorf("dispatch: register callback on %s: %w", entity, err)
	}
	s.live.Insert(token)
	s.metrics.LiveTokens.Set(float64(s.live.Len()))
	s.logger.V(1).Info("callback registered", "entity", entity, "token", token.ID())
	return token, nil
}

func (s *subscriptions) Cancel(token host.CallbackToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.live.Has(token) {
		if s.revoked.Has(token) {
			s.revoked.Delete(token)
			return nil
		}
		return fmt.Errorf("dispatch: cancel token %d: %w", token.ID(), common.ErrNotFound)
	}
	if err := s.host.Deregister(token); err != nil {
		return fmt.Errorf("dispatch: cancel token %d: %w", token.ID(), err)
	}
	s.live.Delete(token)
	s.metrics.LiveTokens.Set(float64(s.live.Len()))
	return nil
}

func (s *subscriptions) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live.Len()
}

func (s *subscriptions) CancelAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, token := range s.live.UnsortedList() {
		if err := s.host.Deregister(token); err != nil {
			errs = append(errs, fmt.Errorf("token %d: %w", token.ID(), err))
		}
		s.live.Delete(token)
		s.revoked.Insert(token)
	}
	s.metrics.LiveTokens.Set(0)
	if len(errs) > 0 {
		return fmt.Errorf("dispatch: cancel all: %w", errors.Join(errs...))
	}
	return nil
}
