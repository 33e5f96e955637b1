package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/metrics"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/scan"
	"gitlab.ubiant.me/go-shared/ble-sensors/settings"
	"gitlab.ubiant.me/go-shared/ble-sensors/vendors"
)

type fakeSource struct {
	frames     chan scan.Frame
	refreshes  int
	continuous []bool
}

func (f *fakeSource) Frames() <-chan scan.Frame { return f.frames }

func (f *fakeSource) Refresh() error {
	f.refreshes++
	return nil
}

func (f *fakeSource) SetContinuous(on bool) { f.continuous = append(f.continuous, on) }

func newService(t *testing.T, refresh uint32) (*Service, *fakeSource, *settings.MemStore) {
	t.Helper()
	store := settings.NewMemStore()
	r, err := registry.New(store, item.New(""), nil, registry.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	src := &fakeSource{frames: make(chan scan.Frame)}
	s := New(Options{
		Registry:         r,
		Table:            vendors.NewTable(nil),
		Source:           src,
		Metrics:          metrics.New(),
		TickPeriod:       time.Hour,
		ScanRefreshTicks: refresh,
	})
	return s, src, store
}

// ruuviReport wraps a RAWv2 payload in a manufacturer AD structure
func ruuviReport(t *testing.T) scan.Frame {
	t.Helper()
	payload := []byte{
		0x05, 0x12, 0xfc, 0x53, 0x94, 0xc3, 0x7c, 0x00, 0x04, 0xff, 0xfc, 0x04, 0x0c,
		0xac, 0x36, 0x42, 0x00, 0xcd, 0xc0, 0xff, 0xee, 0x00, 0x00, 0x01,
	}
	data := append([]byte{byte(len(payload) + 3), scan.ADManufacturer, 0x99, 0x04}, payload...)
	addr, err := scan.ParseAddr("f0:00:00:00:00:01")
	if err != nil {
		t.Fatal(err)
	}
	return scan.Frame{Addr: addr, Data: data}
}

func TestHandleFrameCounts(t *testing.T) {
	s, _, _ := newService(t, 0)

	s.HandleFrame(ruuviReport(t))
	if s.reg.Lookup("c0ffee000001") == nil {
		t.Fatal("ruuvi device not created")
	}
	if v := testutil.ToFloat64(s.metrics.FramesHandled.WithLabelValues("0x0499")); v != 1 {
		t.Fatalf("handled = %v", v)
	}

	bad := ruuviReport(t)
	bad.Data[4] = 3
	s.HandleFrame(bad)
	if v := testutil.ToFloat64(s.metrics.FramesDropped.WithLabelValues(metrics.ReasonMalformed)); v != 1 {
		t.Fatalf("malformed = %v", v)
	}

	other := scan.Frame{Data: []byte{0x04, scan.ADManufacturer, 0x34, 0x12, 0x00}}
	s.HandleFrame(other)
	if v := testutil.ToFloat64(s.metrics.FramesDropped.WithLabelValues(metrics.ReasonUnknown)); v != 1 {
		t.Fatalf("unknown = %v", v)
	}
	if v := testutil.ToFloat64(s.metrics.Frames); v != 3 {
		t.Fatalf("frames = %v", v)
	}
}

func TestRefreshAndContinuousScan(t *testing.T) {
	s, src, store := newService(t, 2)
	if len(src.continuous) != 1 || src.continuous[0] {
		t.Fatalf("initial continuous = %v", src.continuous)
	}

	for i := 0; i < 5; i++ {
		s.OnTick()
	}
	if src.refreshes != 2 {
		t.Fatalf("refreshes = %d, want 2", src.refreshes)
	}

	if err := store.Set("Settings/BleSensors/ContinuousScan", item.Int(1)); err != nil {
		t.Fatal(err)
	}
	if len(src.continuous) != 2 || !src.continuous[1] {
		t.Fatalf("continuous = %v", src.continuous)
	}
}

func TestRunSerializesWork(t *testing.T) {
	s, src, _ := newService(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	src.frames <- ruuviReport(t)

	var n int
	if !s.Call(func() { n = s.reg.Len() }) {
		t.Fatal("Call failed on a running service")
	}
	if n != 1 {
		t.Fatalf("devices = %d, want 1", n)
	}

	list := s.Devices()
	if len(list) != 1 || list[0].ID != "ruuvi_c0ffee000001" || list[0].Role != "temperature" {
		t.Fatalf("status = %+v", list)
	}

	cancel()
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if s.Do(func() {}) {
		t.Fatal("Do accepted work after Run ended")
	}
}
