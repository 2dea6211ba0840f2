// pkg/network/server.go
package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/opd-ai/go-arcadeflight/pkg/config"
	"github.com/opd-ai/go-arcadeflight/pkg/engine"
	"github.com/opd-ai/go-arcadeflight/pkg/entity"
	"github.com/opd-ai/go-arcadeflight/pkg/flight"
	"github.com/opd-ai/go-arcadeflight/pkg/logging"
	"github.com/opd-ai/go-arcadeflight/pkg/physics"
	"github.com/opd-ai/go-arcadeflight/pkg/validation"
)

// CorrelationHeader carries the per-request correlation ID
const CorrelationHeader = "X-Correlation-ID"

// VehicleView is the wire form of a vehicle's state
type VehicleView struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name"`
	Profile      string     `json:"profile"`
	Pilot        string     `json:"pilot,omitempty"`
	Position     [3]float64 `json:"position"`
	Velocity     [3]float64 `json:"velocity"`
	Speed        float64    `json:"speed"`
	ForwardSpeed float64    `json:"forwardSpeed"`
	Pitch        float64    `json:"pitch"`
	Yaw          float64    `json:"yaw"`
	Bank         float64    `json:"bank"`
	Throttle     float64    `json:"throttle"`
	Stalled      bool       `json:"stalled"`
}

// NewVehicleView converts an engine vehicle state to its wire form
func NewVehicleView(s engine.VehicleState) VehicleView {
	return VehicleView{
		ID:           uint64(s.ID),
		Name:         s.Name,
		Profile:      s.ProfileID,
		Pilot:        s.Pilot,
		Position:     s.Position,
		Velocity:     s.Velocity,
		Speed:        s.Speed,
		ForwardSpeed: s.ForwardSpeed,
		Pitch:        s.Pitch,
		Yaw:          s.Yaw,
		Bank:         s.BankAngle,
		Throttle:     s.Throttle,
		Stalled:      s.Stalled,
	}
}

// State converts the view back to an engine vehicle state. Orientation is
// rebuilt from heading and pitch; bank is carried separately.
func (v VehicleView) State() engine.VehicleState {
	return engine.VehicleState{
		ID:           entity.ID(v.ID),
		Name:         v.Name,
		ProfileID:    v.Profile,
		Pilot:        v.Pilot,
		Position:     v.Position,
		Orientation:  physics.HeadingQuat(v.Yaw, v.Pitch),
		Velocity:     v.Velocity,
		Speed:        v.Speed,
		ForwardSpeed: v.ForwardSpeed,
		Pitch:        v.Pitch,
		Yaw:          v.Yaw,
		BankAngle:    v.Bank,
		Throttle:     v.Throttle,
		Stalled:      v.Stalled,
	}
}

// StateView is the wire form of the world state
type StateView struct {
	Tick     uint64        `json:"tick"`
	SimTime  float64       `json:"simTime"`
	Running  bool          `json:"running"`
	Vehicles []VehicleView `json:"vehicles"`
}

// PilotRequest assigns a scripted pilot
type PilotRequest struct {
	Pilot string `json:"pilot"`
}

// ProfileRequest swaps a vehicle's catalog profile
type ProfileRequest struct {
	Profile string `json:"profile"`
}

// EquipRequest flies a vehicle on a base profile adjusted by modifiers
type EquipRequest struct {
	Base      string           `json:"base"`
	Modifiers entity.Modifiers `json:"modifiers"`
}

// SpawnResponse reports the ID of a spawned vehicle
type SpawnResponse struct {
	ID uint64 `json:"id"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ControlServer exposes a World over HTTP
type ControlServer struct {
	world     *engine.World
	validator *validation.MessageValidator
	logger    *logging.Logger
}

// NewControlServer creates a control server for world. A nil logger uses
// the default.
func NewControlServer(world *engine.World, validator *validation.MessageValidator, logger *logging.Logger) *ControlServer {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &ControlServer{world: world, validator: validator, logger: logger}
}

// Register installs the control routes on mux
func (s *ControlServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/state", s.handleState)
	mux.HandleFunc("GET /v1/pilots", s.handlePilots)
	mux.HandleFunc("GET /v1/profiles", s.handleProfiles)
	mux.HandleFunc("GET /v1/vehicles", s.handleListVehicles)
	mux.HandleFunc("POST /v1/vehicles", s.handleSpawn)
	mux.HandleFunc("GET /v1/vehicles/{id}", s.handleGetVehicle)
	mux.HandleFunc("DELETE /v1/vehicles/{id}", s.handleDestroy)
	mux.HandleFunc("POST /v1/vehicles/{id}/control", s.handleControl)
	mux.HandleFunc("PUT /v1/vehicles/{id}/pilot", s.handlePilot)
	mux.HandleFunc("PUT /v1/vehicles/{id}/profile", s.handleProfile)
	mux.HandleFunc("POST /v1/vehicles/{id}/equip", s.handleEquip)
}

// Handler returns a handler serving only the control routes
func (s *ControlServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// clientID identifies the caller for rate limiting
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// begin tags the request with a correlation ID and spends one request from
// the caller's budget. It returns false once a response has been written.
func (s *ControlServer) begin(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	ctx := logging.WithCorrelationID(r.Context(), r.Header.Get(CorrelationHeader))
	ctx = logging.WithAttrs(ctx, "method", r.Method, "path", r.URL.Path)
	r = r.WithContext(ctx)
	w.Header().Set(CorrelationHeader, logging.GetCorrelationID(ctx))

	if err := s.validator.Allow(clientID(r)); err != nil {
		s.writeError(w, r, err)
		return r, false
	}
	return r, true
}

// decode reads a size-limited JSON body into v. Rate limiting has already
// happened in begin.
func (s *ControlServer) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := io.ReadAll(io.LimitReader(r.Body, validation.MaxMessageSize+1))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: reading body: %v", validation.ErrInvalidInput, err))
		return false
	}
	if err := validation.CheckFormat(data); err != nil {
		s.writeError(w, r, err)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", validation.ErrInvalidInput, err))
		return false
	}
	return true
}

// vehicleID parses the {id} path value
func (s *ControlServer) vehicleID(w http.ResponseWriter, r *http.Request) (entity.ID, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		s.writeError(w, r, fmt.Errorf("%w: vehicle id %q", validation.ErrInvalidInput, raw))
		return 0, false
	}
	return entity.ID(id), true
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrVehicleNotFound):
		return http.StatusNotFound
	case errors.Is(err, validation.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, validation.ErrMessageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, validation.ErrInvalidJSON),
		errors.Is(err, validation.ErrInvalidInput),
		errors.Is(err, engine.ErrUnknownPilot),
		errors.Is(err, entity.ErrUnknownProfile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *ControlServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "control request failed", err)
	} else {
		s.logger.Debug(r.Context(), "control request rejected",
			"status", status,
			"error", err.Error(),
		)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *ControlServer) handleState(w http.ResponseWriter, r *http.Request) {
	r, ok := s.begin(w, r)
	if !ok {
		return
	}
	state := s.world.State()
	view := StateView{
		Tick:     state.Tick,
		SimTime:  state.SimTime,
		Running:  state.Running,
		Vehicles: make([]VehicleView, 0, len(state.Vehicles)),
	}
	for _, v := range state.Vehicles {
		view.Vehicles = append(view.Vehicles, NewVehicleView(v))
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *ControlServer) handlePilots(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.begin(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, engine.PilotNames())
}

func (s *ControlServer) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.begin(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.world.Catalog.IDs())
}

func (s *ControlServer) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.begin(w, r); !ok {
		return
	}
	states := s.world.Vehicles()
	views := make([]VehicleView, 0, len(states))
	for _, v := range states {
		views = append(views, NewVehicleView(v))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *ControlServer) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	r, ok := s.begin(w, r)
	if !ok {
		return
	}
	id, ok := s.vehicleID(w, r)
	if !ok {
		return
	}
	state, err := s.world.Vehicle(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewVehicleView(state))
}

func (s *ControlServer) handleSpawn(w http.ResponseWriter, r *http.Request) {
	r, ok := s.begin(w, r)
	if !ok {
		return
	}
	var vc config.VehicleConfig
	if !s.decode(w, r, &vc) {
		return
	}

	name, err := validation.ValidateVehicleName(vc.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	vc.Name = name
	if err := validation.ValidateIdentifier("profile", vc.Profile); err != nil {
		s.writeError(w, r, err)
		return
	}
	if vc.Pilot != "" {
		if err := validation.ValidateIdentifier("pilot", vc.Pilot); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	id, err := s.world.Spawn(vc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info(r.Context(), "vehicle spawned via control API",
		"vehicle_id", id,
		"name", vc.Name,
		"profile", vc.Profile,
		"client", clientID(r),
	)
	writeJSON(w, http.StatusCreated, SpawnResponse{ID: uint64(id)})
}

func (s *ControlServer) handleDestroy(w http.ResponseWriter, r *http.Request) {
	r, ok := s.begin(w, r)
	if !ok {
		return
	}
	id, ok := s.vehicleID(w, r)
	if !ok {
		return
	}
	if err := s.world.Destroy(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *ControlServer) handleControl(w http.ResponseWriter, r *http.Request) {
	r, ok := s.begin(w, r)
	if !ok {
		return
	}
	id, ok := s.vehicleID(w, r)
	if !ok {
		return
	}
	var sample flight.ControlSample
	if !s.decode(w, r, &sample) {
		return
	}
	if err := validation.ValidateControlSample(sample); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.world.SetControl(id, sample); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *ControlServer) handlePilot(w http.ResponseWriter, r *http.Request) {
	r, ok := s.begin(w, r)
	if !ok {
		return
	}
	id, ok := s.vehicleID(w, r)
	if !ok {
		return
	}
	var req PilotRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := validation.ValidateIdentifier("pilot", req.Pilot); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.world.SetPilot(id, req.Pilot); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *ControlServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	r, ok := s.begin(w, r)
	if !ok {
		return
	}
	id, ok := s.vehicleID(w, r)
	if !ok {
		return
	}
	var req ProfileRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := validation.ValidateIdentifier("profile", req.Profile); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.world.SwapProfile(id, req.Profile); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *ControlServer) handleEquip(w http.ResponseWriter, r *http.Request) {
	r, ok := s.begin(w, r)
	if !ok {
		return
	}
	id, ok := s.vehicleID(w, r)
	if !ok {
		return
	}
	var req EquipRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := validation.ValidateIdentifier("profile", req.Base); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validation.ValidateModifiers(req.Modifiers); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.world.Equip(id, req.Base, req.Modifiers); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
