// Package archive records polled readings into InfluxDB so gauges
// have history to draw even when the backend prunes its own.
package archive

import (
	"context"
	"fmt"
	"log"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"farmlink/internal/models"
)

// Recorder writes sensor readings into one InfluxDB bucket.
type Recorder struct {
	client influxdb2.Client
	org    string
	bucket string
}

// NewRecorder connects to InfluxDB and makes sure the target bucket
// exists.
func NewRecorder(url, token, org, bucket string) (*Recorder, error) {
	client := influxdb2.NewClient(url, token)

	health, err := client.Health(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		return nil, fmt.Errorf("InfluxDB health check failed: %v", health.Message)
	}

	r := &Recorder{
		client: client,
		org:    org,
		bucket: bucket,
	}
	if err := r.ensureBucket(context.Background()); err != nil {
		client.Close()
		return nil, err
	}
	return r, nil
}

// ensureBucket creates the bucket when it does not exist yet.
func (r *Recorder) ensureBucket(ctx context.Context) error {
	bucketsAPI := r.client.BucketsAPI()
	if _, err := bucketsAPI.FindBucketByName(ctx, r.bucket); err == nil {
		return nil
	}

	org, err := r.client.OrganizationsAPI().FindOrganizationByName(ctx, r.org)
	if err != nil {
		return fmt.Errorf("error finding organization '%s': %w", r.org, err)
	}
	if _, err := bucketsAPI.CreateBucketWithName(ctx, org, r.bucket); err != nil {
		return fmt.Errorf("error creating bucket '%s': %w", r.bucket, err)
	}
	log.Printf("Bucket '%s' created", r.bucket)
	return nil
}

// WriteReading stores one reading as a sensor_data point tagged with
// the device id.
func (r *Recorder) WriteReading(ctx context.Context, reading models.SensorReading) error {
	writeAPI := r.client.WriteAPIBlocking(r.org, r.bucket)

	point := influxdb2.NewPoint(
		"sensor_data",
		map[string]string{"device_id": reading.DeviceID},
		map[string]interface{}{
			"temperature":   reading.Temperature,
			"humidity":      reading.Humidity,
			"soil_moisture": reading.SoilMoisture,
			"distance":      reading.Distance,
		},
		reading.Timestamp,
	)
	if err := writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("failed to write to InfluxDB: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (r *Recorder) Close() {
	r.client.Close()
}
