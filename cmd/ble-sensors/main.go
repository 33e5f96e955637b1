package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"gitlab.ubiant.me/go-shared/ble-sensors/config"
	"gitlab.ubiant.me/go-shared/ble-sensors/dbusconn"
	"gitlab.ubiant.me/go-shared/ble-sensors/driver"
	"gitlab.ubiant.me/go-shared/ble-sensors/item"
	"gitlab.ubiant.me/go-shared/ble-sensors/metrics"
	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
	"gitlab.ubiant.me/go-shared/ble-sensors/scan"
	"gitlab.ubiant.me/go-shared/ble-sensors/service"
	"gitlab.ubiant.me/go-shared/ble-sensors/settings"
	"gitlab.ubiant.me/go-shared/ble-sensors/vendors"
)

const logModule = "ble-sensors"

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var log = logging.MustGetLogger(logModule)

func main() {
	configFile := flag.String("config", "/data/ble-sensors/config.yaml", "configuration file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ble-sensors %s (build %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v, using the default configuration\n", err)
		cfg = config.Default()
	}
	setupLogger(cfg.Log)
	log.Info("ble-sensors", Version, "starting")

	if err := run(cfg); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func setupLogger(c config.LogConfig) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	format := logging.MustStringFormatter(`%{time:15:04:05.000} %{level:.4s} %{shortfile} %{message}`)
	leveled := logging.SetBackend(logging.NewBackendFormatter(backend, format))

	level, err := logging.LogLevel(c.Level)
	if err != nil {
		level = logging.INFO
	}
	leveled.SetLevel(level, "")
}

func openStore(cfg *config.Config, dc *dbusconn.Dbus) (settings.Store, func(), error) {
	switch cfg.Settings.Backend {
	case config.BackendBadger:
		b, err := settings.OpenBadgerStore(cfg.Settings.Path)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {
			if err := b.Close(); err != nil {
				log.Warning("Closing the settings:", err)
			}
		}, nil
	case config.BackendDbus:
		conn, err := dc.Dial()
		if err != nil {
			return nil, nil, err
		}
		return settings.NewDbusStore(conn, dc.Dispatch), func() { conn.Close() }, nil
	}
	return settings.NewMemStore(), func() {}, nil
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// remote writes arriving before the service exists are dropped
	var svcRef atomic.Pointer[service.Service]
	dc := &dbusconn.Dbus{
		Address: cfg.Bus.Address,
		Dispatch: func(fn func()) {
			if svc := svcRef.Load(); svc != nil {
				svc.Do(fn)
				return
			}
			log.Warning("Remote write before startup dropped")
		},
	}

	store, closeStore, err := openStore(cfg, dc)
	if err != nil {
		return errors.Wrap(err, "settings")
	}
	defer closeStore()

	var pub *dbusconn.Publisher
	var regPub registry.Publisher
	if cfg.Bus.Enabled {
		pub = dbusconn.NewPublisher(dc)
		regPub = pub
	}

	control := item.New("")
	reg, err := registry.New(store, control, regPub, cfg.RegistryConfig(Version))
	if err != nil {
		return err
	}
	for name, addr := range cfg.Scan.Interfaces {
		reg.AddInterface(name, addr)
	}

	dm := &driver.DriversManager{}
	dm.InitDriversManager(cfg.Drivers)
	table := vendors.NewTable(dm)

	var src scan.Source
	if cfg.Scan.Replay != "" {
		replay := scan.NewReplaySource(cfg.Scan.Replay, time.Duration(cfg.Scan.ReplayInterval)*time.Millisecond)
		go func() {
			if err := replay.Run(ctx); err != nil {
				log.Error("Replay stopped:", err)
			}
		}()
		src = replay
	} else {
		log.Warning("No frame source configured")
	}

	m := metrics.New()
	svc := service.New(service.Options{
		Registry:         reg,
		Table:            table,
		Drivers:          dm,
		Source:           src,
		Metrics:          m,
		TickPeriod:       time.Second / time.Duration(cfg.Ticks.PerSecond),
		ScanRefreshTicks: uint32(cfg.Ticks.ScanRefresh * cfg.Ticks.PerSecond),
	})
	svcRef.Store(svc)

	var module *dbusconn.Module
	if pub != nil {
		defer pub.Close()
		if err := pub.Connect(cfg.ControlName(), control); err != nil {
			return errors.Wrap(err, "control service")
		}
		if module, err = pub.ExportModule(control, logModule); err != nil {
			log.Warning("Module object:", err)
		}
	}

	if cfg.HTTP.Listen != "" {
		srv := metrics.NewServer(cfg.HTTP.Listen, m, svc)
		srv.Start()
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				log.Warning("Status server shutdown:", err)
			}
		}()
	}

	if module != nil {
		module.SetReady()
	}
	return svc.Run(ctx)
}
