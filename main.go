package main

import (
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/the-lightning-land/provd/connectivity"
	"github.com/the-lightning-land/provd/machine"
	"github.com/the-lightning-land/provd/provdb"
	"github.com/the-lightning-land/provd/provision"
	"github.com/the-lightning-land/provd/transport"
	"github.com/the-lightning-land/provd/wifi"
	"github.com/the-lightning-land/provd/wifi/wpa"
	// Blank import to set up profiling HTTP handlers.
	_ "net/http/pprof"
)

var (
	// Commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	Commit string
	// Version stores the version string of this build. This should be set using -ldflags during compilation.
	Version string
	// Date stores the date of this build. This should be set using -ldflags during compilation.
	Date string
)

const fallbackDocument = `<!DOCTYPE html>
<html><head><title>provd</title></head>
<body><p>No provisioning UI installed. Connect a websocket to /ws.</p></body>
</html>
`

// provdMain is the true entry point for provd. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
func provdMain() error {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)

	// Load CLI configuration and defaults
	cfg, err := loadConfig()
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return nil
	} else if err != nil {
		return errors.Errorf("Failed parsing arguments: %v", err)
	}

	// Set logger into debug mode if called with --debug
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Info("Setting debug mode.")
	}

	log.Debug("Loaded config.")

	// Print version of the daemon
	log.Infof("Version %s (commit %s)", Version, Commit)
	log.Infof("Built on %s", Date)

	// Stop here if only version was requested
	if cfg.ShowVersion {
		return nil
	}

	if cfg.Profiling.Listen != "" {
		go func() {
			log.Infof("Starting profiling server on %v", cfg.Profiling.Listen)
			// Redirect the root path
			http.Handle("/", http.RedirectHandler("/debug/pprof", http.StatusSeeOther))
			// All other handlers are registered on DefaultServeMux through the import of pprof
			err := http.ListenAndServe(cfg.Profiling.Listen, nil)
			if err != nil {
				log.Errorf("Could not run profiler: %v", err)
			}
		}()
	}

	ap, err := cfg.accessPoint()
	if err != nil {
		return errors.Wrap(err, "Invalid access point configuration")
	}

	// provd.db keeps the history of link transitions
	db, err := provdb.Open(&provdb.Config{Dir: cfg.DataDir})
	if err != nil {
		return errors.Errorf("Could not open provd.db: %v", err)
	}

	log.Infof("Opened %v", db.Path())

	defer func() {
		err := db.Close()
		if err != nil {
			log.Errorf("Could not close provd.db: %v", err)
		} else {
			log.Info("Closed provd.db.")
		}
	}()

	last, err := db.Last()
	if err != nil {
		log.Warnf("Could not read last link state: %v", err)
	} else if last != nil {
		log.Infof("Last link state was %v on %v at %v", last.State, last.SSID, last.Time)
	}

	// The radio driver
	var driver wifi.Driver

	switch cfg.Net {
	case "wpa":
		driver = wpa.NewDriver(&wpa.DriverConfig{
			Interface:   cfg.Wpa.Interface,
			ApInterface: cfg.Wpa.ApInterface,
			Logger:      log.New().WithField("system", "wpa"),
		})

		log.Infof("Created wpa_supplicant driver for %v and %v.", cfg.Wpa.Interface, cfg.Wpa.ApInterface)
	case "mock":
		driver = wifi.NewMockDriver(&wifi.MockDriverConfig{
			Networks: []wifi.AccessPointRecord{
				{SSID: "Home", RSSI: -45, Encrypted: true},
				{SSID: "Cafe", RSSI: -71, Encrypted: false},
			},
			Address: netip.MustParseAddr("192.168.1.23"),
			Delay:   2 * time.Second,
		})

		log.Info("Created a mock radio driver.")
	default:
		return errors.Errorf("Unknown networking type %v", cfg.Net)
	}

	linkManager := wifi.NewManager(&wifi.Config{
		Driver:      driver,
		AccessPoint: ap,
		MaxRetry:    cfg.Ap.MaxRetry,
		ScanTimeout: cfg.ScanTimeout,
		Logger:      log.New().WithField("system", "wifi"),
	})

	// The hardware controller
	var m machine.Machine

	switch cfg.Machine {
	case "gpio":
		m = machine.NewGpioMachine(&machine.GpioMachineConfig{
			ButtonPin: cfg.Gpio.Button,
			LedPin:    cfg.Gpio.Led,
			Logger:    log.New().WithField("system", "machine"),
		})

		log.Infof("Created GPIO machine on button pin %v and led pin %v.", cfg.Gpio.Button, cfg.Gpio.Led)
	case "mock":
		m = machine.NewMockMachine(log.New().WithField("system", "machine"))

		log.Info("Created a mock machine.")
	case "none":
		log.Info("Running without a machine.")
	default:
		return errors.Errorf("Unknown machine type %v", cfg.Machine)
	}

	if m != nil {
		if err := m.Start(); err != nil {
			return errors.Errorf("Could not start machine: %v", err)
		}

		defer func() {
			err := m.Stop()
			if err != nil {
				log.Errorf("Could not properly stop machine: %v", err)
			} else {
				log.Infof("Stopped machine.")
			}
		}()
	}

	document := []byte(fallbackDocument)

	if cfg.UI.Document != "" {
		document, err = os.ReadFile(cfg.UI.Document)
		if err != nil {
			return errors.Errorf("Could not read UI document: %v", err)
		}
	}

	channel := transport.NewChannel(&transport.Config{
		Listen:     cfg.Listen,
		MaxClients: ap.MaxClients,
		Logger:     log.New().WithField("system", "transport"),
	})

	tracker := connectivity.NewTracker()

	var coordinator *provision.Coordinator

	history := newHistoryRecorder(db, func() string {
		return coordinator.Session().Credentials.SSID
	})

	observers := connectivity.Observers{tracker, history}

	if m != nil {
		observers = append(observers, connectivity.ObserverFunc(func(state connectivity.State) {
			m.ToggleLed(state == connectivity.Connected)
		}))
	}

	// central controller of the provisioning session
	coordinator = provision.NewCoordinator(&provision.Config{
		Link:        linkManager,
		Transport:   channel,
		Observer:    observers,
		Document:    document,
		GracePeriod: cfg.Grace,
		Logger:      log.New().WithField("system", "provision"),
	})

	log.Infof("Created coordinator.")

	history.start()
	defer history.stop()

	// a radio that can not be initialized is fatal
	err = linkManager.Initialize(coordinator)
	if err != nil {
		return errors.Errorf("Could not initialize link manager: %v", err)
	}

	defer func() {
		err := linkManager.Close()
		if err != nil {
			log.Errorf("Could not properly close link manager: %v", err)
		} else {
			log.Info("Closed link manager.")
		}
	}()

	defer func() {
		err := coordinator.StopProvisioning()
		if err != nil {
			log.Errorf("Could not properly stop provisioning: %v", err)
		}
	}()

	switch cfg.Trigger {
	case "startup":
		err := coordinator.StartProvisioning()
		if err != nil {
			return errors.Errorf("Could not start provisioning: %v", err)
		}
	case "button":
		go func() {
			for range m.ButtonPresses() {
				log.Info("Button pressed, starting provisioning...")

				err := coordinator.StartProvisioning()
				if err != nil {
					log.Errorf("Could not start provisioning: %v", err)
				}
			}
		}()

		log.Info("Waiting for a button press to start provisioning.")
	}

	// Handle interrupt signals correctly
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		sig := <-signals
		log.Info(sig)
		log.Info("Received an interrupt, stopping coordinator...")
		coordinator.Shutdown()
	}()

	// blocks until the coordinator is shut down
	err = coordinator.Run()
	if err != nil {
		return errors.Errorf("Failed running coordinator: %v", err)
	}

	// finish with no error
	return nil
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := provdMain(); err != nil {
		log.WithError(err).Println("Failed running provd.")
		os.Exit(1)
	}
}
