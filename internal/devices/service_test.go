package devices

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"farmlink/internal/httpclient"
	"farmlink/internal/models"
)

func newService(t *testing.T, handler http.Handler) (*Service, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewService(httpclient.New(ts.URL, time.Second)), ts
}

func TestListNormalizesWireVariants(t *testing.T) {
	svc, _ := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/devices/count" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{
			"success": true,
			"count": 2,
			"devices": [
				{"id":"dev-1","name":"Greenhouse","location":"north","createdAt":"2026-03-01T10:00:00Z","token":"tok-1"},
				{"_id":"dev-2","name":"Pump","location":"field","created_at":"2026-03-02T11:00:00Z","authToken":"tok-2"}
			]
		}`))
	}))

	list := svc.List(context.Background())
	if !list.Success {
		t.Fatal("List() Success = false")
	}
	if list.Count != 2 || len(list.Devices) != 2 {
		t.Fatalf("List() count = %d, devices = %d, want 2", list.Count, len(list.Devices))
	}

	first, second := list.Devices[0], list.Devices[1]
	if first.ID != "dev-1" || first.Token != "tok-1" {
		t.Fatalf("canonical device mangled: %+v", first)
	}
	if second.ID != "dev-2" {
		t.Fatalf("_id variant not normalized: %+v", second)
	}
	if second.Token != "tok-2" {
		t.Fatalf("authToken variant not normalized: %+v", second)
	}
	want := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	if !second.CreatedAt.Equal(want) {
		t.Fatalf("created_at variant not normalized: %v", second.CreatedAt)
	}
}

func TestListDegradesOnTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	svc := NewService(httpclient.New(url, time.Second))
	list := svc.List(context.Background())
	if list.Success {
		t.Fatal("List() Success = true against a dead backend")
	}
	if list.Count != 0 || len(list.Devices) != 0 {
		t.Fatalf("List() failure shape = %+v, want empty", list)
	}
	if list.Devices == nil {
		t.Fatal("List() must return an empty slice, not nil")
	}
}

func TestListDegradesOnBackendRejection(t *testing.T) {
	svc, _ := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"count":0,"devices":[]}`))
	}))

	if list := svc.List(context.Background()); list.Success {
		t.Fatal("List() Success = true on a success:false envelope")
	}
}

func TestDetailsRequiresDeviceID(t *testing.T) {
	var calls int32
	svc, _ := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	_, err := svc.Details(context.Background(), "")
	if !models.IsValidationError(err) {
		t.Fatalf("Details(\"\") error = %v, want validation error", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("Details(\"\") must not issue a request")
	}
}

func TestDetails(t *testing.T) {
	svc, _ := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/devices/dev-1" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"success":true,"device":{"id":"dev-1","name":"Greenhouse","location":"north","createdAt":"2026-03-01T10:00:00Z","token":"tok-1"}}`))
	}))

	device, err := svc.Details(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("Details() failed: %v", err)
	}
	if device.ID != "dev-1" || device.Name != "Greenhouse" || device.Token != "tok-1" {
		t.Fatalf("Details() = %+v", device)
	}
}

func TestDetailsBackendRejection(t *testing.T) {
	svc, _ := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"message":"device not found"}`))
	}))

	_, err := svc.Details(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error for an unknown device")
	}
	if got := models.CodeOf(err); got != models.ErrorCodeBackend {
		t.Fatalf("error code = %q, want %q", got, models.ErrorCodeBackend)
	}
}

func TestListWithWakeupIgnoresWakeFailures(t *testing.T) {
	var wakeCalls int32
	svc, _ := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wakeup":
			atomic.AddInt32(&wakeCalls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		case "/devices/count":
			w.Write([]byte(`{"success":true,"count":1,"devices":[{"id":"dev-1","name":"Greenhouse"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	svc.wakeAttempts = 2
	svc.wakeDelay = 10 * time.Millisecond
	svc.wakeTimeout = time.Second

	list := svc.ListWithWakeup(context.Background())
	if !list.Success || list.Count != 1 {
		t.Fatalf("ListWithWakeup() = %+v, want the plain listing despite wake failures", list)
	}
	if got := atomic.LoadInt32(&wakeCalls); got != 2 {
		t.Fatalf("wake attempts = %d, want 2", got)
	}
}

func TestListWithWakeupStopsRetryingOnSuccess(t *testing.T) {
	var wakeCalls int32
	svc, _ := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wakeup":
			atomic.AddInt32(&wakeCalls, 1)
			w.Write([]byte(`{"success":true}`))
		case "/devices/count":
			w.Write([]byte(`{"success":true,"count":0,"devices":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	svc.wakeDelay = 10 * time.Millisecond

	if list := svc.ListWithWakeup(context.Background()); !list.Success {
		t.Fatalf("ListWithWakeup() = %+v", list)
	}
	if got := atomic.LoadInt32(&wakeCalls); got != 1 {
		t.Fatalf("wake attempts = %d, want 1 after an immediate success", got)
	}
}
