// The monitor is the headless counterpart of the mobile dashboard: it
// watches every registered device, logs each delivered reading, and
// optionally archives readings to InfluxDB and republishes them over
// MQTT.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"farmlink/internal/archive"
	"farmlink/internal/config"
	"farmlink/internal/credstore"
	"farmlink/internal/devices"
	"farmlink/internal/httpclient"
	"farmlink/internal/messaging"
	"farmlink/internal/poller"
	"farmlink/internal/sensordata"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	client := httpclient.New(cfg.APIBaseURL, cfg.RequestTimeout)
	tokens := credstore.New(cfg.RedisAddr, cfg.DefaultToken)
	directory := devices.NewService(client)
	readings := sensordata.NewService(client, tokens)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	list := directory.ListWithWakeup(ctx)
	if !list.Success {
		logger.Error("Could not list devices, is the backend reachable?", "api", cfg.APIBaseURL)
		os.Exit(1)
	}
	if list.Count == 0 {
		logger.Warn("No devices registered, nothing to watch")
	}
	for _, d := range list.Devices {
		if d.Token != "" {
			tokens.Put(d.ID, d.Token)
		}
	}
	logger.Info("Device directory loaded", "count", list.Count)

	var recorder *archive.Recorder
	if cfg.InfluxURL != "" {
		var err error
		recorder, err = archive.NewRecorder(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
		if err != nil {
			logger.Error("InfluxDB archive unavailable", "error", err)
			os.Exit(1)
		}
		defer recorder.Close()
		logger.Info("Archiving readings to InfluxDB", "bucket", cfg.InfluxBucket)
	}

	var publisher *messaging.Publisher
	if cfg.MQTTBroker != "" {
		publisher = messaging.NewPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
		if err := publisher.Connect(); err != nil {
			logger.Error("MQTT broker unavailable", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		logger.Info("Republishing readings over MQTT", "broker", cfg.MQTTBroker, "topic", cfg.MQTTTopic)
	}

	go serveMetrics(cfg.MetricsAddr, logger)

	watcher := poller.New(readings, cfg.PollInterval)
	var wg sync.WaitGroup
	for _, device := range list.Devices {
		device := device
		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher.Watch(ctx, device.ID, func(u poller.Update) {
				logger.Info("reading",
					"device", u.DeviceID,
					"ok", u.OK,
					"temperature", u.Reading.Temperature,
					"humidity", u.Reading.Humidity,
					"soilMoisture", u.Reading.SoilMoisture,
					"distance", u.Reading.Distance,
					"timestamp", u.Reading.Timestamp,
				)
				if !u.OK {
					return
				}
				if recorder != nil {
					if err := recorder.WriteReading(ctx, u.Reading); err != nil {
						logger.Error("Failed to archive reading", "device", u.DeviceID, "error", err)
					}
				}
				if publisher != nil {
					if err := publisher.PublishReading(u.Reading); err != nil {
						logger.Error("Failed to republish reading", "device", u.DeviceID, "error", err)
					}
				}
			})
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	cancel()
	wg.Wait()
}

// serveMetrics exposes Prometheus metrics and a liveness endpoint.
func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	logger.Info("Metrics server running", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server stopped", "error", err)
	}
}
