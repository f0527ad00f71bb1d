package devserver_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"farmlink/internal/credstore"
	"farmlink/internal/devices"
	"farmlink/internal/devserver"
	"farmlink/internal/httpclient"
	"farmlink/internal/models"
	"farmlink/internal/relay"
	"farmlink/internal/sensordata"
)

// The dev backend doubles as the integration target: these tests wire
// the real services against it, end to end.

type harness struct {
	backend  *devserver.Server
	device   models.Device
	tokens   *credstore.Store
	dir      *devices.Service
	readings *sensordata.Service
	relays   *relay.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	backend := devserver.New()
	device := backend.RegisterDevice("Greenhouse North", "greenhouse-1")

	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)

	client := httpclient.New(ts.URL+"/api", 2*time.Second)
	tokens := credstore.New("", "")
	return &harness{
		backend:  backend,
		device:   device,
		tokens:   tokens,
		dir:      devices.NewService(client),
		readings: sensordata.NewService(client, tokens),
		relays:   relay.NewService(client, tokens),
	}
}

func TestDirectoryListing(t *testing.T) {
	h := newHarness(t)

	list := h.dir.List(context.Background())
	if !list.Success || list.Count != 1 {
		t.Fatalf("List() = %+v, want the seeded device", list)
	}
	got := list.Devices[0]
	if got.ID != h.device.ID || got.Token != h.device.Token {
		t.Fatalf("listed device = %+v, want %+v", got, h.device)
	}

	details, err := h.dir.Details(context.Background(), h.device.ID)
	if err != nil {
		t.Fatalf("Details() failed: %v", err)
	}
	if details.Name != "Greenhouse North" || details.Location != "greenhouse-1" {
		t.Fatalf("Details() = %+v", details)
	}
}

func TestSubmitThenLatestAndHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.tokens.Put(h.device.ID, h.device.Token)

	// A fresh device has no data but must still render.
	reading, ok := h.readings.Latest(ctx, h.device.ID)
	if !ok || reading.Temperature != 0 {
		t.Fatalf("Latest() on a fresh device = %+v ok=%v, want zero reading ok=true", reading, ok)
	}

	if err := h.readings.Submit(ctx, h.device.ID, 21.5, 48, 33, ""); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if err := h.readings.Submit(ctx, h.device.ID, 22.0, 47, 34, ""); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	reading, ok = h.readings.Latest(ctx, h.device.ID)
	if !ok {
		t.Fatal("Latest() ok = false after submissions")
	}
	if reading.Temperature != 22.0 || reading.Humidity != 47 {
		t.Fatalf("Latest() = %+v, want the second submission", reading)
	}

	hist := h.readings.History(ctx, h.device.ID, 10)
	if !hist.Success || len(hist.Readings) != 2 {
		t.Fatalf("History() = %+v, want both submissions", hist)
	}
	if hist.Readings[0].Temperature != 22.0 {
		t.Fatal("History() is not most-recent first")
	}

	hist = h.readings.History(ctx, h.device.ID, 1)
	if len(hist.Readings) != 1 {
		t.Fatalf("History(limit=1) returned %d readings", len(hist.Readings))
	}
}

func TestSubmitWithWrongTokenIsRejected(t *testing.T) {
	h := newHarness(t)

	err := h.readings.Submit(context.Background(), h.device.ID, 21.5, 48, 33, "not-the-token")
	if got := models.CodeOf(err); got != models.ErrorCodeBackend {
		t.Fatalf("Submit(bad token) error code = %q, want %q", got, models.ErrorCodeBackend)
	}
}

func TestRelayControlFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.tokens.Put(h.device.ID, h.device.Token)

	bank, err := h.relays.Status(ctx, h.device.ID, "")
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	for n := 1; n <= models.RelayCount; n++ {
		if bank.Relays.Relay(n) != models.RelayOff {
			t.Fatalf("fresh device relay%d = %q, want off", n, bank.Relays.Relay(n))
		}
	}

	bank, err = h.relays.Set(ctx, h.device.ID, 2, models.RelayOn, "")
	if err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if bank.Relays.Relay2 != models.RelayOn || bank.Relays.Relay1 != models.RelayOff {
		t.Fatalf("Set() bank = %+v, want only relay2 switched", bank)
	}

	// The confirmed state persists.
	bank, err = h.relays.Status(ctx, h.device.ID, "")
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	if bank.Relays.Relay2 != models.RelayOn {
		t.Fatalf("Status() after Set = %+v", bank)
	}
}

func TestRelayStatusWithWrongToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.relays.Status(context.Background(), h.device.ID, "not-the-token")
	if got := models.CodeOf(err); got != models.ErrorCodeBackend {
		t.Fatalf("Status(bad token) error code = %q, want %q", got, models.ErrorCodeBackend)
	}
}

func TestWakeupListingAgainstDevBackend(t *testing.T) {
	h := newHarness(t)

	list := h.dir.ListWithWakeup(context.Background())
	if !list.Success || list.Count != 1 {
		t.Fatalf("ListWithWakeup() = %+v", list)
	}
}
