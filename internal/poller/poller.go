// Package poller turns the per-screen refresh timers of the UI into
// cancellable watch loops. A watch is bound to its context and stops
// when the context does, so a torn-down consumer cannot leak a timer.
//
// Polls may overlap when the interval is shorter than the round trip.
// Instead of letting the later response blindly overwrite the
// display, every fetch carries a sequence number and completions that
// arrive after a newer one has been delivered are discarded.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"farmlink/internal/models"
)

var (
	pollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmlink_polls_total",
		Help: "Completed latest-reading polls per device",
	}, []string{"device_id"})

	pollFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmlink_poll_failures_total",
		Help: "Polls that degraded to an unsuccessful zero reading",
	}, []string{"device_id"})

	staleDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmlink_poll_stale_dropped_total",
		Help: "Poll responses discarded because a newer one was already delivered",
	}, []string{"device_id"})
)

func init() {
	prometheus.MustRegister(pollsTotal, pollFailures, staleDropped)
}

// LatestFetcher is the read side of the sensor data service.
type LatestFetcher interface {
	Latest(ctx context.Context, deviceID string) (models.SensorReading, bool)
}

// Update is one delivered poll result.
type Update struct {
	DeviceID string
	Reading  models.SensorReading
	// OK mirrors the Latest contract: false means the reading is the
	// degraded zero value.
	OK bool
	// Seq is the fetch sequence number within this watch.
	Seq uint64
}

// Poller runs periodic latest-reading fetches.
type Poller struct {
	fetcher  LatestFetcher
	interval time.Duration
}

// New creates a Poller. interval must be positive.
func New(fetcher LatestFetcher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
	}
}

// Watch polls deviceID until ctx is cancelled, calling onUpdate for
// every fresh result. The first fetch is issued immediately. onUpdate
// is never invoked concurrently with itself and never after a newer
// sequence number has been delivered.
func (p *Poller) Watch(ctx context.Context, deviceID string, onUpdate func(Update)) {
	var (
		mu        sync.Mutex
		delivered uint64
		wg        sync.WaitGroup
		seq       uint64
	)

	fetch := func(n uint64) {
		defer wg.Done()
		reading, ok := p.fetcher.Latest(ctx, deviceID)
		pollsTotal.WithLabelValues(deviceID).Inc()
		if !ok {
			pollFailures.WithLabelValues(deviceID).Inc()
		}

		mu.Lock()
		defer mu.Unlock()
		if n <= delivered {
			staleDropped.WithLabelValues(deviceID).Inc()
			return
		}
		delivered = n
		onUpdate(Update{DeviceID: deviceID, Reading: reading, OK: ok, Seq: n})
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	seq++
	wg.Add(1)
	go fetch(seq)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-ticker.C:
			seq++
			wg.Add(1)
			go fetch(seq)
		}
	}
}
