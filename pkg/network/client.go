// pkg/network/client.go
package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opd-ai/go-arcadeflight/pkg/config"
	"github.com/opd-ai/go-arcadeflight/pkg/entity"
	"github.com/opd-ai/go-arcadeflight/pkg/flight"
	"github.com/opd-ai/go-arcadeflight/pkg/logging"
)

// APIError is a non-2xx response from the control API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("control API: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// IsNotFound reports whether err is a 404 from the control API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// ControlClient calls a ControlServer. Transport failures and 5xx responses
// count against the circuit breaker; rejected requests do not.
type ControlClient struct {
	baseURL    string
	httpClient *http.Client
	service    *NetworkService
	logger     *logging.Logger
}

// NewControlClient creates a client for the control API at baseURL, for
// example "http://localhost:8080"
func NewControlClient(baseURL string, envConfig *config.EnvironmentConfig, logger *logging.Logger) *ControlClient {
	if logger == nil {
		logger = logging.NewLogger()
	}
	timeout := envConfig.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ControlClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		service:    NewNetworkService(envConfig, logger),
		logger:     logger,
	}
}

// Service returns the circuit breaker wrapping the client's calls
func (c *ControlClient) Service() *NetworkService {
	return c.service
}

// do sends one request and decodes a JSON response into out when out is
// non-nil. Idempotent reads are retried.
func (c *ControlClient) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return logging.WrapError(err, "encoding %s %s", method, path)
		}
	}

	op := func() error {
		return c.roundTrip(ctx, method, path, body, out)
	}
	if method == http.MethodGet {
		return c.service.ExecuteWithRetry(ctx, op)
	}
	return c.service.Execute(ctx, op)
}

func (c *ControlClient) roundTrip(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Permanent(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logging.GetCorrelationID(ctx); id != "" {
		req.Header.Set(CorrelationHeader, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp ErrorResponse
		json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&errResp)
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		if resp.StatusCode >= http.StatusInternalServerError {
			return apiErr
		}
		return Permanent(apiErr)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func vehiclePath(id entity.ID, suffix string) string {
	return fmt.Sprintf("/v1/vehicles/%d%s", uint64(id), suffix)
}

// State fetches the world state
func (c *ControlClient) State(ctx context.Context) (StateView, error) {
	var state StateView
	err := c.do(ctx, http.MethodGet, "/v1/state", nil, &state)
	return state, err
}

// Vehicles lists every vehicle in ID order
func (c *ControlClient) Vehicles(ctx context.Context) ([]VehicleView, error) {
	var views []VehicleView
	err := c.do(ctx, http.MethodGet, "/v1/vehicles", nil, &views)
	return views, err
}

// Vehicle fetches one vehicle
func (c *ControlClient) Vehicle(ctx context.Context, id entity.ID) (VehicleView, error) {
	var view VehicleView
	err := c.do(ctx, http.MethodGet, vehiclePath(id, ""), nil, &view)
	return view, err
}

// Pilots lists the scripted pilots the server knows
func (c *ControlClient) Pilots(ctx context.Context) ([]string, error) {
	var names []string
	err := c.do(ctx, http.MethodGet, "/v1/pilots", nil, &names)
	return names, err
}

// Profiles lists the catalog's profile IDs
func (c *ControlClient) Profiles(ctx context.Context) ([]string, error) {
	var ids []string
	err := c.do(ctx, http.MethodGet, "/v1/profiles", nil, &ids)
	return ids, err
}

// Spawn adds a vehicle and returns its ID
func (c *ControlClient) Spawn(ctx context.Context, vc config.VehicleConfig) (entity.ID, error) {
	var resp SpawnResponse
	if err := c.do(ctx, http.MethodPost, "/v1/vehicles", vc, &resp); err != nil {
		return 0, err
	}
	return entity.ID(resp.ID), nil
}

// Destroy removes a vehicle
func (c *ControlClient) Destroy(ctx context.Context, id entity.ID) error {
	return c.do(ctx, http.MethodDelete, vehiclePath(id, ""), nil, nil)
}

// SendControl takes manual control of a vehicle with sample
func (c *ControlClient) SendControl(ctx context.Context, id entity.ID, sample flight.ControlSample) error {
	return c.do(ctx, http.MethodPost, vehiclePath(id, "/control"), sample, nil)
}

// SetPilot hands a vehicle to a scripted pilot
func (c *ControlClient) SetPilot(ctx context.Context, id entity.ID, pilot string) error {
	return c.do(ctx, http.MethodPut, vehiclePath(id, "/pilot"), PilotRequest{Pilot: pilot}, nil)
}

// SwapProfile changes a vehicle's performance profile
func (c *ControlClient) SwapProfile(ctx context.Context, id entity.ID, profile string) error {
	return c.do(ctx, http.MethodPut, vehiclePath(id, "/profile"), ProfileRequest{Profile: profile}, nil)
}

// Equip flies a vehicle on base adjusted by mods
func (c *ControlClient) Equip(ctx context.Context, id entity.ID, base string, mods entity.Modifiers) error {
	return c.do(ctx, http.MethodPost, vehiclePath(id, "/equip"), EquipRequest{Base: base, Modifiers: mods}, nil)
}
