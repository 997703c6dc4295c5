// Package config loads the engine configuration from a YAML file or CLI flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds one valuation run's settings.
type Config struct {
	// BaseCurrency the fiat currency all values are reported in.
	BaseCurrency string
	// RateServiceURL base URL of the historical exchange rate service.
	RateServiceURL string
	// RequestTimeout timeout for rate service requests.
	RequestTimeout time.Duration
	// Windows look-back windows of the recent-changes table.
	Windows []time.Duration
	// EventsFile path to the parsed activity records (JSON).
	EventsFile string
	// ListenAddr address of the portfolio HTTP API.
	ListenAddr string
	// Domain optional domain for automatic TLS; empty serves plain HTTP.
	Domain string
	// WALDir directory for the rate quote journal; empty disables it.
	WALDir string
}

type ConfigTmp struct {
	BaseCurrency   string          `yaml:"base_currency"`
	RateServiceURL string          `yaml:"rate_service_url"`
	RequestTimeout time.Duration   `yaml:"request_timeout"`
	Windows        []time.Duration `yaml:"windows,omitempty"`
	EventsFile     string          `yaml:"events_file"`
	ListenAddr     string          `yaml:"listen_addr"`
	Domain         string          `yaml:"domain,omitempty"`
	WALDir         string          `yaml:"wal_dir,omitempty"`
}

// Get reads the configuration from --config when provided, CLI flags otherwise.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	base := flag.String("base", "USD", "base currency for reported values, example: USD")
	rateURL := flag.String("ratesurl", "http://localhost:7878", "historical rate service URL")
	timeout := flag.Duration("timeout", 15*time.Second, "rate service request timeout")
	events := flag.String("events", "events.json", "path to parsed activity records")
	listen := flag.String("listen", ":8087", "portfolio API listen address")
	domain := flag.String("domain", "", "domain for automatic TLS, empty serves HTTP")
	walDir := flag.String("waldir", "", "rate quote journal directory, empty disables")

	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	cfg := Config{
		BaseCurrency:   *base,
		RateServiceURL: *rateURL,
		RequestTimeout: *timeout,
		EventsFile:     *events,
		ListenAddr:     *listen,
		Domain:         *domain,
		WALDir:         *walDir,
	}
	return cfg, cfg.validate()
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	cfg := Config{
		BaseCurrency:   tmp.BaseCurrency,
		RateServiceURL: tmp.RateServiceURL,
		RequestTimeout: tmp.RequestTimeout,
		Windows:        tmp.Windows,
		EventsFile:     tmp.EventsFile,
		ListenAddr:     tmp.ListenAddr,
		Domain:         tmp.Domain,
		WALDir:         tmp.WALDir,
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8087"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.BaseCurrency == "" {
		return fmt.Errorf("base currency is required")
	}
	if c.RateServiceURL == "" {
		return fmt.Errorf("rate service URL is required")
	}
	if c.EventsFile == "" {
		return fmt.Errorf("events file is required")
	}
	return nil
}
