// Package sensordata fetches and submits sensor readings.
//
// The read paths carry an "always render something" contract: Latest
// never fails, it degrades through history to a synthetic zero-valued
// reading. The write path is the opposite: a rejected submission is
// always reported to the caller.
package sensordata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"farmlink/internal/credstore"
	"farmlink/internal/httpclient"
	"farmlink/internal/models"
)

// DefaultHistoryLimit caps a history fetch when the caller does not
// supply a limit.
const DefaultHistoryLimit = 100

// Service reads and writes sensor data for registered devices.
type Service struct {
	client *httpclient.Client
	tokens *credstore.Store
}

// NewService creates a sensor data service over the shared transport.
func NewService(client *httpclient.Client, tokens *credstore.Store) *Service {
	return &Service{
		client: client,
		tokens: tokens,
	}
}

// readingWire is the backend encoding of one reading. Optional fields
// simply decode to zero.
type readingWire struct {
	DeviceID     string  `json:"deviceId"`
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	SoilMoisture float64 `json:"soilMoisture"`
	Distance     float64 `json:"distance"`
	Timestamp    string  `json:"timestamp"`
}

func (w readingWire) normalize(deviceID string) models.SensorReading {
	r := models.SensorReading{
		DeviceID:     w.DeviceID,
		Temperature:  w.Temperature,
		Humidity:     w.Humidity,
		SoilMoisture: w.SoilMoisture,
		Distance:     w.Distance,
	}
	if r.DeviceID == "" {
		r.DeviceID = deviceID
	}
	if w.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, w.Timestamp); err == nil {
			r.Timestamp = t
		}
	}
	return r
}

type latestEnvelope struct {
	Success bool         `json:"success"`
	Data    *readingWire `json:"data"`
}

type historyEnvelope struct {
	Success bool          `json:"success"`
	Count   int           `json:"count"`
	Data    []readingWire `json:"data"`
}

type submitEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Latest returns the most recent reading for a device. When the
// backend has no latest value the most recent history entry is used;
// when there is no history either, a zero-valued reading stamped with
// the current time is returned. The second return value is false only
// when both the primary fetch and the history fallback errored; the
// reading is still renderable.
func (s *Service) Latest(ctx context.Context, deviceID string) (models.SensorReading, bool) {
	body, status, err := s.client.Get(ctx, "/devices/"+deviceID+"/latest", nil)
	if err != nil {
		log.Printf("Latest fetch for device %s failed, trying history: %v", deviceID, err)
		return s.latestFromHistory(ctx, deviceID, false)
	}

	var env latestEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Printf("Latest payload for device %s unreadable, trying history: %v", deviceID, err)
		return s.latestFromHistory(ctx, deviceID, false)
	}

	if status == http.StatusNotFound || !env.Success || env.Data == nil {
		return s.latestFromHistory(ctx, deviceID, true)
	}
	return env.Data.normalize(deviceID), true
}

// latestFromHistory is the fallback behind Latest. okWhenEmpty keeps
// the missing-latest path successful while the error path stays
// reported.
func (s *Service) latestFromHistory(ctx context.Context, deviceID string, okWhenEmpty bool) (models.SensorReading, bool) {
	hist := s.History(ctx, deviceID, 1)
	if len(hist.Readings) > 0 {
		return hist.Readings[0], true
	}
	if !hist.Success {
		return models.ZeroReading(deviceID), false
	}
	return models.ZeroReading(deviceID), okWhenEmpty
}

// History returns up to limit readings, most recent first, as the
// backend ordered them. A 404 means the device simply has no history
// yet and is a successful empty result.
func (s *Service) History(ctx context.Context, deviceID string, limit int) models.HistoryResult {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	empty := models.HistoryResult{Readings: []models.SensorReading{}}

	path := fmt.Sprintf("/devices/%s/history?limit=%d", deviceID, limit)
	body, status, err := s.client.Get(ctx, path, nil)
	if err != nil {
		log.Printf("History fetch for device %s failed: %v", deviceID, err)
		return empty
	}
	if status == http.StatusNotFound {
		return models.HistoryResult{Success: true, Readings: []models.SensorReading{}}
	}

	var env historyEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Printf("History payload for device %s unreadable: %v", deviceID, err)
		return empty
	}
	if status >= http.StatusBadRequest || !env.Success {
		log.Printf("History fetch for device %s rejected by backend (status %d)", deviceID, status)
		return empty
	}

	readings := make([]models.SensorReading, 0, len(env.Data))
	for _, w := range env.Data {
		readings = append(readings, w.normalize(deviceID))
	}
	return models.HistoryResult{Success: true, Readings: readings}
}

// Submit posts one reading on behalf of a device. Input is validated
// before any network call; failures on the wire or at the backend are
// propagated, never swallowed — a silently lost submission would look
// like a healthy sensor.
func (s *Service) Submit(ctx context.Context, deviceID string, temperature, humidity, soilMoisture float64, authToken string) error {
	if deviceID == "" {
		return models.NewAPIError(models.ErrorCodeValidation, "deviceId is required", nil)
	}
	if temperature < models.TemperatureMin || temperature > models.TemperatureMax {
		return models.NewAPIError(models.ErrorCodeValidation,
			fmt.Sprintf("temperature %.2f out of range [%.0f, %.0f]", temperature, models.TemperatureMin, models.TemperatureMax), nil)
	}
	if humidity < models.HumidityMin || humidity > models.HumidityMax {
		return models.NewAPIError(models.ErrorCodeValidation,
			fmt.Sprintf("humidity %.2f out of range [%.0f, %.0f]", humidity, models.HumidityMin, models.HumidityMax), nil)
	}
	if soilMoisture < models.SoilMin || soilMoisture > models.SoilMax {
		return models.NewAPIError(models.ErrorCodeValidation,
			fmt.Sprintf("soilMoisture %.2f out of range [%.0f, %.0f]", soilMoisture, models.SoilMin, models.SoilMax), nil)
	}

	token := s.tokens.Resolve(deviceID, authToken)
	if token == "" {
		return models.NewAPIError(models.ErrorCodeAuth, "no token available for device "+deviceID, nil)
	}

	payload := map[string]interface{}{
		"deviceId":     deviceID,
		"temperature":  temperature,
		"humidity":     humidity,
		"soilMoisture": soilMoisture,
	}
	body, status, err := s.client.Post(ctx, "/data", payload, map[string]string{"x-auth-token": token})
	if err != nil {
		return err
	}

	var env submitEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.NewAPIError(models.ErrorCodeShape, "unreadable submission response", err)
	}
	if status >= http.StatusBadRequest || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("reading rejected by backend (status %d)", status)
		}
		return models.NewAPIError(models.ErrorCodeBackend, msg, nil)
	}
	return nil
}
