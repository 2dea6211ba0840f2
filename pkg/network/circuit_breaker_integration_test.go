package network

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

// TestCircuitBreakerIntegration checks that server failures open the
// client's breaker and that it then stops calling the server
func TestCircuitBreakerIntegration(t *testing.T) {
	var calls atomic.Int32
	srv := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "boom"})
	})
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	assert.Equal(t, gobreaker.StateClosed, c.Service().GetState())

	// each GET makes two attempts; the breaker trips after three failures
	_, err := c.State(ctx)
	require.Error(t, err)
	_, err = c.State(ctx)
	require.Error(t, err)

	assert.Equal(t, gobreaker.StateOpen, c.Service().GetState())
	assert.Equal(t, int32(3), calls.Load())

	_, err = c.State(ctx)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "expected open breaker, got %v", err)
	assert.Equal(t, int32(3), calls.Load())
}

// TestCircuitBreakerIgnoresRejections checks that 4xx responses leave the
// breaker closed
func TestCircuitBreakerIgnoresRejections(t *testing.T) {
	srv := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid input"})
	})
	c := newTestClient(t, srv.URL)

	for i := 0; i < 10; i++ {
		_, err := c.Vehicles(context.Background())
		require.Error(t, err)
		assert.True(t, IsPermanent(err))
	}
	assert.Equal(t, gobreaker.StateClosed, c.Service().GetState())
}

// TestCircuitBreakerFailureHandling checks that an unreachable server
// fails cleanly and leaves the client usable
func TestCircuitBreakerFailureHandling(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url)
	_, err := c.State(context.Background())
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
	assert.NotNil(t, c.Service())
}
