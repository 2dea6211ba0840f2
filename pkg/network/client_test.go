package network

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-arcadeflight/pkg/config"
	"github.com/opd-ai/go-arcadeflight/pkg/entity"
	"github.com/opd-ai/go-arcadeflight/pkg/flight"
	"github.com/opd-ai/go-arcadeflight/pkg/logging"
)

func clientConfig() *config.EnvironmentConfig {
	cfg := breakerConfig(3, 30*time.Second)
	cfg.HTTPTimeout = 2 * time.Second
	return cfg
}

func newTestClient(t *testing.T, url string) *ControlClient {
	t.Helper()
	c := NewControlClient(url+"/", clientConfig(), quietLogger())
	c.Service().SetRetryPolicy(2, 10*time.Millisecond)
	return c
}

func TestNewControlClient(t *testing.T) {
	cfg := clientConfig()
	cfg.HTTPTimeout = 0
	c := NewControlClient("http://localhost:8080///", cfg, nil)

	assert.Equal(t, "http://localhost:8080", c.baseURL)
	assert.Equal(t, 10*time.Second, c.httpClient.Timeout)
	assert.NotNil(t, c.logger)
	assert.NotNil(t, c.Service())
}

func TestControlClient_RoundTrip(t *testing.T) {
	world, srv := newTestServer(t, 100)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	state, err := c.State(ctx)
	require.NoError(t, err)
	assert.Len(t, state.Vehicles, len(world.Vehicles()))

	id, err := c.Spawn(ctx, config.VehicleConfig{Name: "Echo", Profile: "fighter", Position: [3]float64{0, 800, 0}})
	require.NoError(t, err)

	view, err := c.Vehicle(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Echo", view.Name)
	assert.Equal(t, "fighter", view.Profile)

	require.NoError(t, c.SetPilot(ctx, id, "orbit"))
	require.NoError(t, c.SwapProfile(ctx, id, "interceptor"))
	require.NoError(t, c.Equip(ctx, id, "interceptor", entity.Modifiers{Tag: "drop", TurnRateScale: 1.1}))
	require.NoError(t, c.SendControl(ctx, id, flight.ControlSample{Throttle: 1}))

	engineState, err := world.Vehicle(id)
	require.NoError(t, err)
	assert.Equal(t, "interceptor+drop", engineState.ProfileID)
	assert.Empty(t, engineState.Pilot)

	vehicles, err := c.Vehicles(ctx)
	require.NoError(t, err)
	assert.Len(t, vehicles, len(world.Vehicles()))

	pilots, err := c.Pilots(ctx)
	require.NoError(t, err)
	assert.Contains(t, pilots, "orbit")

	profiles, err := c.Profiles(ctx)
	require.NoError(t, err)
	assert.Contains(t, profiles, "interceptor")

	require.NoError(t, c.Destroy(ctx, id))
	_, err = c.Vehicle(ctx, id)
	assert.True(t, IsNotFound(err), "expected not found, got %v", err)
}

func TestControlClient_RejectedRequests(t *testing.T) {
	_, srv := newTestServer(t, 100)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	_, err := c.Spawn(ctx, config.VehicleConfig{Name: "Bad", Profile: "zeppelin"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "zeppelin")
	assert.True(t, IsPermanent(err))

	err = c.SetPilot(ctx, entity.ID(999999999), "cruise")
	assert.True(t, IsNotFound(err))
}

func TestControlClient_ForwardsCorrelationID(t *testing.T) {
	var seen string
	srv := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(CorrelationHeader)
		writeJSON(w, http.StatusOK, []VehicleView{})
	})
	c := newTestClient(t, srv.URL)

	ctx := logging.WithCorrelationID(context.Background(), "trace-42")
	_, err := c.Vehicles(ctx)
	require.NoError(t, err)
	assert.Equal(t, "trace-42", seen)
}

func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: http.StatusNotFound, Message: "vehicle not found: 7"}
	assert.Equal(t, "control API: 404 Not Found: vehicle not found: 7", err.Error())
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("other")))
}
