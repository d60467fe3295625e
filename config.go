package main

import (
	"net/netip"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/the-lightning-land/provd/wifi"
)

const (
	defaultConfigFile  = "/etc/provd/provd.conf"
	defaultDataDir     = "/var/lib/provd"
	defaultListen      = ":80"
	defaultApSsid      = "provd"
	defaultPassphrase  = "12345678"
	defaultApIP        = "192.168.100.1"
	defaultApNetmask   = "255.255.255.0"
	defaultApChannel   = 1
	defaultMaxClients  = 4
	defaultMaxRetry    = 6
	defaultGrace       = 2 * time.Second
	defaultScanTimeout = 15 * time.Second
)

type uiConfig struct {
	Document string `long:"document" description:"Path to the HTML document served to the provisioning peer"`
}

type apConfig struct {
	SSID       string `long:"ssid" description:"Name of the provisioning access point"`
	Passphrase string `long:"passphrase" description:"WPA2 passphrase of the access point, empty for an open network"`
	IP         string `long:"ip" description:"Address of the device inside the access point network"`
	Netmask    string `long:"netmask" description:"Netmask of the access point network"`
	Channel    int    `long:"channel" description:"2.4 GHz channel of the access point"`
	MaxClients int    `long:"maxclients" description:"Maximum number of simultaneous clients"`
	MaxRetry   int    `long:"maxretry" description:"Connection attempts before a network is given up"`
}

type wpaConfig struct {
	Interface   string `long:"interface" description:"Client interface controlled through wpa_supplicant"`
	ApInterface string `long:"apinterface" description:"Interface the access point runs on"`
}

type gpioConfig struct {
	Button string `long:"button" description:"Pin of the provisioning button"`
	Led    string `long:"led" description:"Pin of the connection status LED"`
}

type profilingConfig struct {
	Listen string `long:"listen" description:"Address the profiler listens on, disabled when empty"`
}

type config struct {
	ShowVersion bool          `short:"v" long:"version" description:"Display version information and exit"`
	Debug       bool          `long:"debug" description:"Start in debug mode"`
	ConfigFile  string        `long:"configfile" description:"Path to the configuration file"`
	DataDir     string        `long:"datadir" description:"The directory to store provd's data within"`
	Net         string        `long:"net" description:"The radio driver" choice:"wpa" choice:"mock"`
	Machine     string        `long:"machine" description:"The hardware controller" choice:"gpio" choice:"mock" choice:"none"`
	Trigger     string        `long:"trigger" description:"What starts provisioning" choice:"startup" choice:"button"`
	Listen      string        `long:"listen" description:"Address the provisioning UI is served on"`
	Grace       time.Duration `long:"grace" description:"Delay between the success reply and the access point teardown"`
	ScanTimeout time.Duration `long:"scantimeout" description:"Upper bound of a single network scan"`

	UI        *uiConfig        `group:"UI" namespace:"ui"`
	Ap        *apConfig        `group:"Access point" namespace:"ap"`
	Wpa       *wpaConfig       `group:"wpa_supplicant" namespace:"wpa"`
	Gpio      *gpioConfig      `group:"GPIO" namespace:"gpio"`
	Profiling *profilingConfig `group:"Profiling" namespace:"profiling"`
}

func defaultConfig() *config {
	return &config{
		ConfigFile:  defaultConfigFile,
		DataDir:     defaultDataDir,
		Net:         "wpa",
		Machine:     "none",
		Trigger:     "startup",
		Listen:      defaultListen,
		Grace:       defaultGrace,
		ScanTimeout: defaultScanTimeout,
		UI:          &uiConfig{},
		Ap: &apConfig{
			SSID:       defaultApSsid,
			Passphrase: defaultPassphrase,
			IP:         defaultApIP,
			Netmask:    defaultApNetmask,
			Channel:    defaultApChannel,
			MaxClients: defaultMaxClients,
			MaxRetry:   defaultMaxRetry,
		},
		Wpa: &wpaConfig{
			Interface:   "wlan0",
			ApInterface: "uap0",
		},
		Gpio: &gpioConfig{
			Button: "GPIO17",
			Led:    "GPIO27",
		},
		Profiling: &profilingConfig{},
	}
}

// loadConfig applies defaults, then the config file, then the command line.
func loadConfig() (*config, error) {
	return parseConfig(os.Args[1:])
}

func parseConfig(args []string) (*config, error) {
	cfg := defaultConfig()

	// a first pass finds the config file and handles --help
	preParser := flags.NewParser(cfg, flags.Default)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	if cfg.ShowVersion {
		return cfg, nil
	}

	parser := flags.NewParser(cfg, flags.Default)

	err = flags.NewIniParser(parser).ParseFile(cfg.ConfigFile)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "could not parse config file %v", cfg.ConfigFile)
	}

	// command line options take precedence over the config file
	_, err = parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	if cfg.Trigger == "button" && cfg.Machine == "none" {
		return nil, errors.New("trigger button needs a machine")
	}

	return cfg, nil
}

// accessPoint builds and validates the hotspot plan.
func (c *config) accessPoint() (wifi.AccessPointConfig, error) {
	addr, err := netip.ParseAddr(c.Ap.IP)
	if err != nil {
		return wifi.AccessPointConfig{}, errors.Wrapf(err, "invalid access point ip")
	}

	mask, err := netip.ParseAddr(c.Ap.Netmask)
	if err != nil {
		return wifi.AccessPointConfig{}, errors.Wrapf(err, "invalid access point netmask")
	}

	ap := wifi.AccessPointConfig{
		SSID:       c.Ap.SSID,
		Passphrase: c.Ap.Passphrase,
		Address:    addr,
		Netmask:    mask,
		Channel:    c.Ap.Channel,
		MaxClients: c.Ap.MaxClients,
	}

	err = ap.Validate()
	if err != nil {
		return wifi.AccessPointConfig{}, err
	}

	return ap, nil
}
