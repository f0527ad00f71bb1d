// Package relay queries and switches the four per-device relays.
// Every operation needs a resolvable device token, and relay writes
// are never applied optimistically: callers only commit the bank the
// backend confirmed.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"farmlink/internal/credstore"
	"farmlink/internal/httpclient"
	"farmlink/internal/models"
)

// Service controls device relays over the shared transport.
type Service struct {
	client *httpclient.Client
	tokens *credstore.Store
}

// NewService creates a relay control service.
func NewService(client *httpclient.Client, tokens *credstore.Store) *Service {
	return &Service{
		client: client,
		tokens: tokens,
	}
}

// bankEnvelope is the backend shape for both status and control
// responses.
type bankEnvelope struct {
	Success  bool                `json:"success"`
	Message  string              `json:"message"`
	DeviceID string              `json:"deviceId"`
	Relays   *models.RelayStates `json:"relays"`
}

// decodeBank validates the envelope: success, deviceId and all four
// relay states must be present and well-formed.
func decodeBank(body []byte, status int) (models.RelayBank, error) {
	var env bankEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.RelayBank{}, models.NewAPIError(models.ErrorCodeShape, "unreadable relay payload", err)
	}
	if status >= http.StatusBadRequest || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("relay request rejected by backend (status %d)", status)
		}
		return models.RelayBank{}, models.NewAPIError(models.ErrorCodeBackend, msg, nil)
	}
	if env.DeviceID == "" || env.Relays == nil {
		return models.RelayBank{}, models.NewAPIError(models.ErrorCodeShape, "relay payload missing deviceId or relays", nil)
	}
	if !env.Relays.Valid() {
		return models.RelayBank{}, models.NewAPIError(models.ErrorCodeShape, "relay payload carries an undefined relay state", nil)
	}
	return models.RelayBank{DeviceID: env.DeviceID, Relays: *env.Relays}, nil
}

// resolveToken applies the explicit-then-cached-then-default policy.
// No HTTP request is issued when it fails.
func (s *Service) resolveToken(deviceID, explicit string) (string, error) {
	token := s.tokens.Resolve(deviceID, explicit)
	if token == "" {
		return "", models.NewAPIError(models.ErrorCodeAuth, "no token available for device "+deviceID, nil)
	}
	return token, nil
}

// Status fetches the current state of all four relays. authToken may
// be empty, in which case the cached token for the device is used.
func (s *Service) Status(ctx context.Context, deviceID, authToken string) (models.RelayBank, error) {
	if deviceID == "" {
		return models.RelayBank{}, models.NewAPIError(models.ErrorCodeValidation, "deviceId is required", nil)
	}
	token, err := s.resolveToken(deviceID, authToken)
	if err != nil {
		return models.RelayBank{}, err
	}

	body, status, err := s.client.Get(ctx, "/relay/status/"+deviceID, map[string]string{"x-auth-token": token})
	if err != nil {
		return models.RelayBank{}, err
	}
	return decodeBank(body, status)
}

// Set switches one relay and returns the updated bank as the backend
// reports it.
func (s *Service) Set(ctx context.Context, deviceID string, relayNumber int, state models.RelayState, authToken string) (models.RelayBank, error) {
	if deviceID == "" {
		return models.RelayBank{}, models.NewAPIError(models.ErrorCodeValidation, "deviceId is required", nil)
	}
	if relayNumber < 1 || relayNumber > models.RelayCount {
		return models.RelayBank{}, models.NewAPIError(models.ErrorCodeValidation,
			fmt.Sprintf("relayNumber %d out of range [1, %d]", relayNumber, models.RelayCount), nil)
	}
	if !state.Valid() {
		return models.RelayBank{}, models.NewAPIError(models.ErrorCodeValidation,
			fmt.Sprintf("state %q must be %q or %q", state, models.RelayOn, models.RelayOff), nil)
	}
	token, err := s.resolveToken(deviceID, authToken)
	if err != nil {
		return models.RelayBank{}, err
	}

	payload := map[string]interface{}{
		"deviceId":    deviceID,
		"relayNumber": relayNumber,
		"state":       state,
	}
	body, status, err := s.client.Post(ctx, "/relay/control", payload, map[string]string{"x-auth-token": token})
	if err != nil {
		return models.RelayBank{}, err
	}
	return decodeBank(body, status)
}
