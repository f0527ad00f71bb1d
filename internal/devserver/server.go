// Package devserver is an in-memory stand-in for the real backend.
// It implements the full REST surface the client consumes, so local
// development and the integration tests do not need the hosted
// service.
package devserver

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"farmlink/internal/models"
)

// maxStoredReadings caps per-device history so a long-running dev
// server does not grow without bound.
const maxStoredReadings = 1000

type deviceState struct {
	device   models.Device
	readings []models.SensorReading // oldest first
	relays   models.RelayStates
}

// Server holds the in-memory device registry.
type Server struct {
	mu      sync.Mutex
	devices map[string]*deviceState
}

// New creates an empty dev backend.
func New() *Server {
	return &Server{
		devices: make(map[string]*deviceState),
	}
}

// RegisterDevice adds a device with a generated id and token and
// returns it, the way the real backend registers a physical unit.
func (s *Server) RegisterDevice(name, location string) models.Device {
	device := models.Device{
		ID:        uuid.NewString(),
		Name:      name,
		Location:  location,
		CreatedAt: time.Now().UTC(),
		Token:     uuid.NewString(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[device.ID] = &deviceState{
		device: device,
		relays: models.RelayStates{
			Relay1: models.RelayOff,
			Relay2: models.RelayOff,
			Relay3: models.RelayOff,
			Relay4: models.RelayOff,
		},
	}
	return device
}

// AddReading appends a reading for a device, used to seed test data.
func (s *Server) AddReading(reading models.SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.devices[reading.DeviceID]
	if !ok {
		return
	}
	state.readings = append(state.readings, reading)
	if len(state.readings) > maxStoredReadings {
		state.readings = state.readings[len(state.readings)-maxStoredReadings:]
	}
}

// Handler builds the /api router.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/wakeup", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/devices/count", s.handleListDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices/{deviceID}", s.handleDeviceDetails).Methods(http.MethodGet)
	api.HandleFunc("/devices/{deviceID}/latest", s.handleLatest).Methods(http.MethodGet)
	api.HandleFunc("/devices/{deviceID}/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/data", s.handleSubmit).Methods(http.MethodPost)
	api.HandleFunc("/relay/status/{deviceID}", s.handleRelayStatus).Methods(http.MethodGet)
	api.HandleFunc("/relay/control", s.handleRelayControl).Methods(http.MethodPost)

	return router
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

func respondFailure(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func encodeDevice(d models.Device) map[string]interface{} {
	return map[string]interface{}{
		"id":        d.ID,
		"name":      d.Name,
		"location":  d.Location,
		"createdAt": d.CreatedAt.Format(time.RFC3339),
		"token":     d.Token,
	}
}

func encodeReading(r models.SensorReading) map[string]interface{} {
	return map[string]interface{}{
		"deviceId":     r.DeviceID,
		"temperature":  r.Temperature,
		"humidity":     r.Humidity,
		"soilMoisture": r.SoilMoisture,
		"distance":     r.Distance,
		"timestamp":    r.Timestamp.Format(time.RFC3339),
	}
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := make([]map[string]interface{}, 0, len(s.devices))
	for _, state := range s.devices {
		devices = append(devices, encodeDevice(state.device))
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i]["id"].(string) < devices[j]["id"].(string)
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(devices),
		"devices": devices,
	})
}

func (s *Server) handleDeviceDetails(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceID"]

	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.devices[deviceID]
	if !ok {
		respondFailure(w, http.StatusNotFound, "device not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"device":  encodeDevice(state.device),
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceID"]

	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.devices[deviceID]
	if !ok || len(state.readings) == 0 {
		respondFailure(w, http.StatusNotFound, "no readings for device")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    encodeReading(state.readings[len(state.readings)-1]),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceID"]
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.devices[deviceID]
	if !ok {
		respondFailure(w, http.StatusNotFound, "device not found")
		return
	}

	// Most recent first.
	data := make([]map[string]interface{}, 0, limit)
	for i := len(state.readings) - 1; i >= 0 && len(data) < limit; i-- {
		data = append(data, encodeReading(state.readings[i]))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(data),
		"data":    data,
	})
}

// authorize checks the opaque x-auth-token header against the device
// registration.
func (s *Server) authorize(r *http.Request, deviceID string) (*deviceState, int, string) {
	state, ok := s.devices[deviceID]
	if !ok {
		return nil, http.StatusNotFound, "device not found"
	}
	token := r.Header.Get("x-auth-token")
	if token == "" {
		return nil, http.StatusUnauthorized, "missing x-auth-token header"
	}
	if token != state.device.Token {
		return nil, http.StatusForbidden, "invalid token"
	}
	return state, http.StatusOK, ""
}

type submitRequest struct {
	DeviceID     string  `json:"deviceId"`
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	SoilMoisture float64 `json:"soilMoisture"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondFailure(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	defer r.Body.Close()

	if req.Temperature < models.TemperatureMin || req.Temperature > models.TemperatureMax {
		respondFailure(w, http.StatusBadRequest, fmt.Sprintf("temperature %.2f out of range", req.Temperature))
		return
	}
	if req.Humidity < models.HumidityMin || req.Humidity > models.HumidityMax {
		respondFailure(w, http.StatusBadRequest, fmt.Sprintf("humidity %.2f out of range", req.Humidity))
		return
	}
	if req.SoilMoisture < models.SoilMin || req.SoilMoisture > models.SoilMax {
		respondFailure(w, http.StatusBadRequest, fmt.Sprintf("soilMoisture %.2f out of range", req.SoilMoisture))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state, code, msg := s.authorize(r, req.DeviceID)
	if state == nil {
		respondFailure(w, code, msg)
		return
	}

	state.readings = append(state.readings, models.SensorReading{
		DeviceID:     req.DeviceID,
		Temperature:  req.Temperature,
		Humidity:     req.Humidity,
		SoilMoisture: req.SoilMoisture,
		Timestamp:    time.Now().UTC(),
	})
	if len(state.readings) > maxStoredReadings {
		state.readings = state.readings[len(state.readings)-maxStoredReadings:]
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "reading stored",
	})
}

func encodeBank(deviceID string, relays models.RelayStates) map[string]interface{} {
	return map[string]interface{}{
		"success":  true,
		"deviceId": deviceID,
		"relays":   relays,
	}
}

func (s *Server) handleRelayStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceID"]

	s.mu.Lock()
	defer s.mu.Unlock()
	state, code, msg := s.authorize(r, deviceID)
	if state == nil {
		respondFailure(w, code, msg)
		return
	}
	respondJSON(w, http.StatusOK, encodeBank(deviceID, state.relays))
}

type controlRequest struct {
	DeviceID    string            `json:"deviceId"`
	RelayNumber int               `json:"relayNumber"`
	State       models.RelayState `json:"state"`
}

func (s *Server) handleRelayControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondFailure(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	defer r.Body.Close()

	if req.RelayNumber < 1 || req.RelayNumber > models.RelayCount {
		respondFailure(w, http.StatusBadRequest, fmt.Sprintf("relayNumber %d out of range", req.RelayNumber))
		return
	}
	if !req.State.Valid() {
		respondFailure(w, http.StatusBadRequest, fmt.Sprintf("state %q must be on or off", req.State))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state, code, msg := s.authorize(r, req.DeviceID)
	if state == nil {
		respondFailure(w, code, msg)
		return
	}

	state.relays = state.relays.SetRelay(req.RelayNumber, req.State)
	respondJSON(w, http.StatusOK, encodeBank(req.DeviceID, state.relays))
}
