// Package network exposes the simulation to external collaborators over
// HTTP. The server side accepts control samples, pilot and profile changes;
// the client side calls it through a circuit breaker.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/opd-ai/go-arcadeflight/pkg/config"
	"github.com/opd-ai/go-arcadeflight/pkg/logging"
)

// DefaultRetries is the number of attempts ExecuteWithRetry makes
const DefaultRetries = 3

// NetworkService wraps outbound calls with circuit breaker and retry logic
type NetworkService struct {
	breaker   *gobreaker.CircuitBreaker
	logger    *logging.Logger
	baseDelay time.Duration
	retries   int
}

// NetworkOperation performs one outbound call
type NetworkOperation func() error

// permanentError marks a failure that retrying cannot fix, such as a
// rejected request. It does not count against the breaker.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that the breaker treats the call as successful and
// ExecuteWithRetry does not retry it
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// NewNetworkService creates a NetworkService configured from environment
// settings. A nil logger uses the default.
func NewNetworkService(envConfig *config.EnvironmentConfig, logger *logging.Logger) *NetworkService {
	if logger == nil {
		logger = logging.NewLogger()
	}

	settings := gobreaker.Settings{
		Name:        "flight-control",
		MaxRequests: envConfig.CircuitBreakerMaxRequests,
		Interval:    envConfig.CircuitBreakerInterval,
		Timeout:     envConfig.CircuitBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= envConfig.CircuitBreakerMaxConsecutiveFails
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &NetworkService{
		breaker:   gobreaker.NewCircuitBreaker(settings),
		logger:    logger,
		baseDelay: time.Second,
		retries:   DefaultRetries,
	}
}

// SetRetryPolicy changes the attempt count and the linear backoff step used
// by ExecuteWithRetry
func (ns *NetworkService) SetRetryPolicy(retries int, baseDelay time.Duration) {
	if retries < 1 {
		retries = 1
	}
	ns.retries = retries
	ns.baseDelay = baseDelay
}

// Execute runs operation through the circuit breaker. An open circuit fails
// immediately with gobreaker.ErrOpenState.
func (ns *NetworkService) Execute(ctx context.Context, operation NetworkOperation) error {
	_, err := ns.breaker.Execute(func() (interface{}, error) {
		return nil, operation()
	})
	if err != nil {
		if !IsPermanent(err) {
			ns.logger.LogWithContext(ctx, slog.LevelError, "circuit breaker execution failed",
				"error", err,
				"state", ns.breaker.State().String(),
			)
		}
		return fmt.Errorf("circuit breaker: %w", err)
	}
	return nil
}

// ExecuteWithRetry runs operation up to the configured number of attempts
// with linear backoff. Permanent errors and an open circuit end the loop
// early.
func (ns *NetworkService) ExecuteWithRetry(ctx context.Context, operation NetworkOperation) error {
	for attempt := 0; attempt < ns.retries; attempt++ {
		err := ns.Execute(ctx, operation)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}

		if ns.breaker.State() == gobreaker.StateOpen {
			ns.logger.Warn(ctx, "circuit breaker is open, skipping retries",
				"attempt", attempt+1,
				"max_retries", ns.retries,
			)
			return err
		}

		if attempt == ns.retries-1 {
			ns.logger.Error(ctx, "all retry attempts failed", err, "attempts", ns.retries)
			return fmt.Errorf("max retries (%d) exceeded: %w", ns.retries, err)
		}

		delay := time.Duration(attempt+1) * ns.baseDelay
		ns.logger.Warn(ctx, "operation failed, retrying",
			"attempt", attempt+1,
			"max_retries", ns.retries,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
	}

	return fmt.Errorf("unexpected exit from retry loop")
}

// GetState returns the current state of the circuit breaker
func (ns *NetworkService) GetState() gobreaker.State {
	return ns.breaker.State()
}

// GetCounts returns the breaker's counts for the current interval
func (ns *NetworkService) GetCounts() gobreaker.Counts {
	return ns.breaker.Counts()
}
