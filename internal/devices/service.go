// Package devices is the directory of registered sensor/relay units.
package devices

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"farmlink/internal/httpclient"
	"farmlink/internal/models"
)

// Service lists registered devices and their metadata. Listing is a
// read path: it degrades to an unsuccessful empty result instead of
// returning errors.
type Service struct {
	client *httpclient.Client

	// Wake-up retry policy. Shrunk by tests.
	wakeAttempts int
	wakeDelay    time.Duration
	wakeTimeout  time.Duration
}

// NewService creates a directory service over the shared transport.
func NewService(client *httpclient.Client) *Service {
	return &Service{
		client:       client,
		wakeAttempts: 3,
		wakeDelay:    2 * time.Second,
		wakeTimeout:  30 * time.Second,
	}
}

// deviceWire tolerates the field name variants the backend has used
// for ids, creation dates and tokens.
type deviceWire struct {
	ID        string `json:"id"`
	AltID     string `json:"_id"`
	Name      string `json:"name"`
	Location  string `json:"location"`
	CreatedAt string `json:"createdAt"`
	Created   string `json:"created_at"`
	Token     string `json:"token"`
	AuthToken string `json:"authToken"`
}

// normalize maps a wire device onto the single canonical shape.
func (w deviceWire) normalize() models.Device {
	d := models.Device{
		ID:       w.ID,
		Name:     w.Name,
		Location: w.Location,
		Token:    w.Token,
	}
	if d.ID == "" {
		d.ID = w.AltID
	}
	if d.Token == "" {
		d.Token = w.AuthToken
	}
	raw := w.CreatedAt
	if raw == "" {
		raw = w.Created
	}
	if raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			d.CreatedAt = t
		}
	}
	return d
}

type listEnvelope struct {
	Success bool         `json:"success"`
	Count   int          `json:"count"`
	Devices []deviceWire `json:"devices"`
}

// List fetches the registered devices. Any transport or shape failure
// yields {Success:false, Count:0, Devices:[]}; callers must check
// Success.
func (s *Service) List(ctx context.Context) models.DeviceList {
	empty := models.DeviceList{Devices: []models.Device{}}

	// The endpoint is named /devices/count for historical reasons but
	// returns the full device list.
	body, status, err := s.client.Get(ctx, "/devices/count", nil)
	if err != nil {
		log.Printf("Device listing failed: %v", err)
		return empty
	}

	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Printf("Device listing returned an unreadable payload: %v", err)
		return empty
	}
	if status >= http.StatusBadRequest || !env.Success {
		log.Printf("Device listing rejected by backend (status %d)", status)
		return empty
	}

	devices := make([]models.Device, 0, len(env.Devices))
	for _, w := range env.Devices {
		devices = append(devices, w.normalize())
	}
	return models.DeviceList{Success: true, Count: len(devices), Devices: devices}
}

type detailsEnvelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Device  deviceWire `json:"device"`
}

// Details fetches the metadata (including the token) for one device.
func (s *Service) Details(ctx context.Context, deviceID string) (models.Device, error) {
	if deviceID == "" {
		return models.Device{}, models.NewAPIError(models.ErrorCodeValidation, "deviceId is required", nil)
	}

	body, status, err := s.client.Get(ctx, "/devices/"+deviceID, nil)
	if err != nil {
		return models.Device{}, err
	}

	var env detailsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.Device{}, models.NewAPIError(models.ErrorCodeShape, "unreadable device details payload", err)
	}
	if status >= http.StatusBadRequest || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "device details request rejected"
		}
		return models.Device{}, models.NewAPIError(models.ErrorCodeBackend, msg, nil)
	}

	device := env.Device.normalize()
	if device.ID == "" {
		return models.Device{}, models.NewAPIError(models.ErrorCodeShape, "device details payload missing id", nil)
	}
	return device, nil
}

// ListWithWakeup first pokes /wakeup so a cold backend gets a chance
// to spin up, then lists devices. Wake-up failures are ignored; the
// plain listing always runs.
func (s *Service) ListWithWakeup(ctx context.Context) models.DeviceList {
	for attempt := 1; attempt <= s.wakeAttempts; attempt++ {
		wctx, cancel := context.WithTimeout(ctx, s.wakeTimeout)
		_, status, err := s.client.Get(wctx, "/wakeup", nil)
		cancel()
		if err == nil && status < http.StatusInternalServerError {
			break
		}
		log.Printf("Backend wake-up attempt %d/%d failed", attempt, s.wakeAttempts)

		if attempt == s.wakeAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return s.List(ctx)
		case <-time.After(s.wakeDelay):
		}
	}
	return s.List(ctx)
}
