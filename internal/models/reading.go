package models

import "time"

// Expected value ranges for a submitted reading. Distance has no
// submit-side range: 0 means "no data" and valid echoes fall in
// 2..400 cm, but the sensor reports whatever it measured.
const (
	TemperatureMin = -40.0
	TemperatureMax = 80.0
	HumidityMin    = 0.0
	HumidityMax    = 100.0
	SoilMin        = 0.0
	SoilMax        = 100.0
)

// SensorReading is one immutable measurement from a device.
type SensorReading struct {
	DeviceID     string    `json:"deviceId"`
	Temperature  float64   `json:"temperature"`
	Humidity     float64   `json:"humidity"`
	SoilMoisture float64   `json:"soilMoisture"`
	Distance     float64   `json:"distance"`
	Timestamp    time.Time `json:"timestamp"`
}

// ZeroReading builds the synthetic reading returned when a device has
// neither a latest value nor any history. It is stamped with the
// current time so gauges still render.
func ZeroReading(deviceID string) SensorReading {
	return SensorReading{
		DeviceID:  deviceID,
		Timestamp: time.Now(),
	}
}

// HistoryResult is an ordered, most-recent-first slice of past
// readings. A missing history (backend 404) is a successful empty
// result, not an error.
type HistoryResult struct {
	Success  bool            `json:"success"`
	Readings []SensorReading `json:"data"`
}
