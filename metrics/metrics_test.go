package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeStatus struct{}

func (fakeStatus) Devices() []Device {
	return []Device{
		{ID: "ruuvi_c0ffee000001", Name: "Ruuvi 0001", Role: "temperature", Enabled: true,
			Items: map[string]interface{}{"Temperature": 21.5}},
		{ID: "mopeka_c0ffee000002", Name: "Mopeka", Role: "tank"},
	}
}

func (fakeStatus) Drivers() []string { return []string{"mopeka", "ruuvi"} }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestDevicesEndpoints(t *testing.T) {
	h := Router(New(), fakeStatus{})

	rec := get(t, h, "/devices")
	if rec.Code != http.StatusOK {
		t.Fatalf("/devices status = %d", rec.Code)
	}
	var list []Device
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Items != nil {
		t.Fatalf("/devices = %+v", list)
	}

	rec = get(t, h, "/devices/ruuvi_c0ffee000001")
	var d Device
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatal(err)
	}
	if d.Items["Temperature"] != 21.5 {
		t.Fatalf("device items = %v", d.Items)
	}

	if rec := get(t, h, "/devices/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown device status = %d", rec.Code)
	}
	if rec := get(t, h, "/drivers"); !strings.Contains(rec.Body.String(), "ruuvi") {
		t.Fatalf("/drivers = %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := New()
	m.Frames.Add(3)
	m.FramesDropped.WithLabelValues(ReasonMalformed).Inc()
	m.Devices.Set(2)

	if v := testutil.ToFloat64(m.FramesDropped.WithLabelValues(ReasonMalformed)); v != 1 {
		t.Fatalf("dropped = %v", v)
	}

	rec := get(t, Router(m, fakeStatus{}), "/metrics")
	body := rec.Body.String()
	for _, want := range []string{"blesensors_frames_total 3", "blesensors_devices 2"} {
		if !strings.Contains(body, want) {
			t.Fatalf("/metrics lacks %q", want)
		}
	}
}
