// Package metrics counts the frame traffic and serves the status endpoints.
package metrics

import (
	"github.com/op/go-logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var log = logging.MustGetLogger("ble-sensors")

// Drop reasons of FramesDropped
const (
	ReasonMalformed = "malformed"
	ReasonUnknown   = "unknown_manufacturer"
	ReasonFull      = "registry_full"
	ReasonError     = "error"
)

// Metrics holds the collectors of the daemon on a private registry
type Metrics struct {
	reg *prometheus.Registry

	Frames        prometheus.Counter
	FramesHandled *prometheus.CounterVec
	FramesDropped *prometheus.CounterVec
	Devices       prometheus.Gauge
	Connected     prometheus.Gauge
	Expired       prometheus.Counter
	Ticks         prometheus.Counter
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blesensors_frames_total",
			Help: "Advertising frames received",
		}),
		FramesHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blesensors_frames_handled_total",
			Help: "Manufacturer payloads decoded, by manufacturer id",
		}, []string{"manufacturer"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blesensors_frames_dropped_total",
			Help: "Manufacturer payloads dropped, by reason",
		}, []string{"reason"}),
		Devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blesensors_devices",
			Help: "Devices in the registry",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blesensors_devices_published",
			Help: "Devices published on the bus",
		}),
		Expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blesensors_devices_expired_total",
			Help: "Devices removed after the expiry delay",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blesensors_ticks_total",
			Help: "Scheduler ticks",
		}),
	}

	m.reg.MustRegister(
		m.Frames,
		m.FramesHandled,
		m.FramesDropped,
		m.Devices,
		m.Connected,
		m.Expired,
		m.Ticks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the prometheus registry of the collectors
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }
