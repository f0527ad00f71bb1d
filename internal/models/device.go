package models

import "time"

// Device is the canonical shape for a registered sensor/relay unit.
// The client only reads devices; they are created backend-side when a
// physical unit registers itself.
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"createdAt"`
	Token     string    `json:"token,omitempty"`
}

// DeviceList is the result of a directory listing. Listing never
// fails outright; callers must check Success.
type DeviceList struct {
	Success bool     `json:"success"`
	Count   int      `json:"count"`
	Devices []Device `json:"devices"`
}
