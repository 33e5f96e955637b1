// Package service runs the processing loop of the daemon. One goroutine
// owns the registry and every item tree; frames, ticks and work queued by
// the bus and HTTP goroutines are serialized on it.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"gitlab.ubiant.me/go-shared/ble-sensors/driver"
	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/metrics"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/scan"
	"gitlab.ubiant.me/go-shared/ble-sensors/vendors"
)

var log = logging.MustGetLogger("ble-sensors")

const queueLen = 64

// Options are the collaborators of a Service
type Options struct {
	Registry *registry.Registry
	Table    *vendors.Table
	Drivers  *driver.DriversManager
	// Source may be nil, the service then only serves queued work
	Source  scan.Source
	Metrics *metrics.Metrics
	// TickPeriod defaults to the nominal tick rate
	TickPeriod time.Duration
	// ScanRefreshTicks is the period of the source refresh, 0 disables it
	ScanRefreshTicks uint32
}

// Service is the processing actor
type Service struct {
	opts    Options
	reg     *registry.Registry
	table   *vendors.Table
	metrics *metrics.Metrics

	do      chan func()
	done    chan struct{}
	refresh uint32
}

// New returns a service ready to Run. The continuous scan setting of the
// registry is forwarded to the source when it supports it.
func New(opts Options) *Service {
	if opts.TickPeriod <= 0 {
		opts.TickPeriod = time.Second / registry.TicksPerSecond
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	s := &Service{
		opts:    opts,
		reg:     opts.Registry,
		table:   opts.Table,
		metrics: opts.Metrics,
		do:      make(chan func(), queueLen),
		done:    make(chan struct{}),
	}

	if cs, ok := opts.Source.(scan.ContinuousScanner); ok {
		s.reg.SetScanHook(cs.SetContinuous)
		cs.SetContinuous(s.reg.ContinuousScan())
	}

	return s
}

// Do queues fn on the service goroutine. It returns false once Run ended.
func (s *Service) Do(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.do <- fn:
		return true
	case <-s.done:
		return false
	}
}

// Call runs fn on the service goroutine and waits for it
func (s *Service) Call(fn func()) bool {
	ch := make(chan struct{})
	if !s.Do(func() { fn(); close(ch) }) {
		return false
	}
	select {
	case <-ch:
		return true
	case <-s.done:
		return false
	}
}

// Run processes frames, ticks and queued work until ctx is cancelled
func (s *Service) Run(ctx context.Context) error {
	defer close(s.done)

	ticker := time.NewTicker(s.opts.TickPeriod)
	defer ticker.Stop()

	var frames <-chan scan.Frame
	if s.opts.Source != nil {
		frames = s.opts.Source.Frames()
	}

	log.Info("Service started")
	for {
		select {
		case <-ctx.Done():
			log.Info("Service stopped")
			return nil

		case f, ok := <-frames:
			if !ok {
				log.Warning("Frame source closed")
				frames = nil
				continue
			}
			s.HandleFrame(f)

		case fn := <-s.do:
			fn()

		case <-ticker.C:
			s.OnTick()
		}
	}
}

// HandleFrame dispatches the manufacturer data and the name of a report
func (s *Service) HandleFrame(f scan.Frame) {
	s.metrics.Frames.Inc()

	var names []string
	for _, ad := range scan.ParseAdvertisement(f.Data) {
		switch ad.Type {
		case scan.ADManufacturer:
			mfg, payload, ok := ad.Manufacturer()
			if !ok {
				s.metrics.FramesDropped.WithLabelValues(metrics.ReasonMalformed).Inc()
				continue
			}
			s.handleManufacturer(f.Addr, mfg, payload)
		case scan.ADCompleteName:
			names = append(names, string(ad.Data))
		}
	}

	for _, name := range names {
		s.table.HandleName(s.reg, f.Addr, name)
	}
}

func (s *Service) handleManufacturer(addr scan.Addr, mfg uint16, payload []byte) {
	err := s.table.Handle(s.reg, addr, mfg, payload)
	switch errors.Cause(err) {
	case nil:
		s.metrics.FramesHandled.WithLabelValues(fmt.Sprintf("0x%04x", mfg)).Inc()
	case vendors.ErrUnknownManufacturer:
		s.metrics.FramesDropped.WithLabelValues(metrics.ReasonUnknown).Inc()
	case vendors.ErrMalformed:
		s.metrics.FramesDropped.WithLabelValues(metrics.ReasonMalformed).Inc()
		log.Debug("Dropped frame:", err)
	case registry.ErrTooManyDevices:
		s.metrics.FramesDropped.WithLabelValues(metrics.ReasonFull).Inc()
		log.Debug("Dropped frame of", addr, err)
	default:
		s.metrics.FramesDropped.WithLabelValues(metrics.ReasonError).Inc()
		log.Warning("Frame of", addr, "failed:", err)
	}
}

// OnTick advances the registry clock and runs the periodic work
func (s *Service) OnTick() {
	s.metrics.Ticks.Inc()
	if expired := s.reg.Tick(); len(expired) > 0 {
		s.metrics.Expired.Add(float64(len(expired)))
	}

	if s.reg.Now()%registry.TicksPerSecond == 0 {
		s.updateGauges()
	}

	if s.opts.ScanRefreshTicks == 0 {
		return
	}
	s.refresh++
	if s.refresh < s.opts.ScanRefreshTicks {
		return
	}
	s.refresh = 0
	if r, ok := s.opts.Source.(scan.Refresher); ok {
		if err := r.Refresh(); err != nil {
			log.Warning("Scan refresh failed:", err)
		}
	}
}

func (s *Service) updateGauges() {
	connected := 0
	for _, d := range s.reg.Devices() {
		if d.Connected() {
			connected++
		}
	}
	s.metrics.Devices.Set(float64(s.reg.Len()))
	s.metrics.Connected.Set(float64(connected))
}

// Devices implements metrics.Status
func (s *Service) Devices() []metrics.Device {
	var list []metrics.Device
	s.Call(func() {
		for _, d := range s.reg.Devices() {
			list = append(list, s.status(d))
		}
	})
	return list
}

func (s *Service) status(d *registry.Device) metrics.Device {
	st := metrics.Device{
		ID:        d.DevID(),
		Name:      s.reg.Control().ValueString("Devices/" + d.DevID() + "/Name"),
		Role:      d.Info.DeviceRole(),
		Enabled:   s.reg.IsEnabled(d),
		Connected: d.Connected(),
		LastSeen:  d.LastSeen(),
		Items:     make(map[string]interface{}),
	}
	d.Root.Walk(func(it *item.Item) {
		if it == d.Root || it.Ownership() != item.OwnerSet {
			return
		}
		st.Items[it.Path()] = it.Value().Interface()
	})
	return st
}

// Drivers implements metrics.Status
func (s *Service) Drivers() []string {
	if s.opts.Drivers == nil {
		return nil
	}
	return s.opts.Drivers.Names()
}
