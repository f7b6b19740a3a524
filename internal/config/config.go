package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultEndpoint    = "ovh-eu"
	defaultRateLimit   = 10.0
	defaultDNSProvider = "ovh"
	defaultMaxRetry    = 10
	defaultSleep       = 10 * time.Second
	defaultJournalPath = "ovh-reconcile.db"
	defaultMetricsJob  = "ovh_reconcile"
	defaultLogLevel    = "info"
	defaultLogEnv      = "prod"

	envPrefix = "OVH_RECONCILE_"
)

type Config struct {
	OVH     OVH     `yaml:"ovh"`
	DNS     DNS     `yaml:"dns"`
	Poll    Poll    `yaml:"poll"`
	Journal Journal `yaml:"journal"`
	Metrics Metrics `yaml:"metrics"`
	Log     Log     `yaml:"log"`
}

// OVH holds the API endpoint and credentials. Either all three keys are
// set or none is, in which case the client falls back to the ovh.conf lookup.
type OVH struct {
	Endpoint          string  `yaml:"endpoint"`
	ApplicationKey    string  `yaml:"applicationKey"`
	ApplicationSecret string  `yaml:"applicationSecret"`
	ConsumerKey       string  `yaml:"consumerKey"`
	RateLimit         float64 `yaml:"rateLimit"`
}

type DNS struct {
	Provider string   `yaml:"provider"`
	Zones    []string `yaml:"zones"`
	Token    string   `yaml:"token"`
	TTL      int      `yaml:"ttl"`
}

type Poll struct {
	MaxRetry int           `yaml:"maxRetry"`
	Sleep    time.Duration `yaml:"sleep"`
}

type Journal struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Metrics struct {
	PushgatewayURL string `yaml:"pushgatewayUrl"`
	Job            string `yaml:"job"`
}

type Log struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

// HasCredentials reports whether explicit API credentials were configured.
func (o OVH) HasCredentials() bool {
	return o.ApplicationKey != "" && o.ApplicationSecret != "" && o.ConsumerKey != ""
}

func (o OVH) partialCredentials() bool {
	set := 0
	for _, v := range []string{o.ApplicationKey, o.ApplicationSecret, o.ConsumerKey} {
		if v != "" {
			set++
		}
	}
	return set != 0 && set != 3
}

func Load(path string) (*Config, error) {
	configFile := path != ""
	if configFile {
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Default().Warn("fail find config file, proceeding", "path", path)
			configFile = false
		}
	}

	var cfg Config
	if configFile {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			f.Close()
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			slog.Default().Warn("fail close config file", "path", path, "error", err)
		}
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.OVH.Endpoint == "" {
		cfg.OVH.Endpoint = defaultEndpoint
	}
	if cfg.OVH.RateLimit == 0 {
		cfg.OVH.RateLimit = defaultRateLimit
	}
	if cfg.DNS.Provider == "" {
		cfg.DNS.Provider = defaultDNSProvider
	}
	if cfg.Poll.MaxRetry == 0 {
		cfg.Poll.MaxRetry = defaultMaxRetry
	}
	if cfg.Poll.Sleep == 0 {
		cfg.Poll.Sleep = defaultSleep
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = defaultJournalPath
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = defaultMetricsJob
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Env == "" {
		cfg.Log.Env = defaultLogEnv
	}
}

// Override from environment if set
func applyEnv(cfg *Config) {
	if endpoint := getenv("ENDPOINT"); endpoint != "" {
		cfg.OVH.Endpoint = endpoint
	}
	if key := getenv("APPLICATION_KEY"); key != "" {
		cfg.OVH.ApplicationKey = key
	}
	if secret := getenv("APPLICATION_SECRET"); secret != "" {
		cfg.OVH.ApplicationSecret = secret
	}
	if consumer := getenv("CONSUMER_KEY"); consumer != "" {
		cfg.OVH.ConsumerKey = consumer
	}
	if rl := getenv("RATE_LIMIT"); rl != "" {
		if limit, err := strconv.ParseFloat(rl, 64); err == nil {
			cfg.OVH.RateLimit = limit
		} else {
			slog.Default().Warn("fail parse rate limit to float from string", "rate_limit", rl, "error", err)
		}
	}
	if dnsProvider := getenv("DNS_PROVIDER"); dnsProvider != "" {
		cfg.DNS.Provider = dnsProvider
	}
	if token := getenv("CLOUDFLARE_TOKEN"); token != "" {
		cfg.DNS.Token = token
	}
	if dnsZones := getenv("DNS_ZONES"); dnsZones != "" {
		cfg.DNS.Zones = strings.Split(dnsZones, ",")
	}
	if dnsTtl := getenv("DNS_TTL"); dnsTtl != "" {
		if ttl, err := strconv.Atoi(dnsTtl); err == nil {
			cfg.DNS.TTL = ttl
		} else {
			slog.Default().Warn("fail parse ttl to int from string", "ttl", dnsTtl, "error", err)
		}
	}
	if maxRetry := getenv("MAX_RETRY"); maxRetry != "" {
		if n, err := strconv.Atoi(maxRetry); err == nil {
			cfg.Poll.MaxRetry = n
		} else {
			slog.Default().Warn("fail parse max retry to int from string", "max_retry", maxRetry, "error", err)
		}
	}
	if sleep := getenv("SLEEP"); sleep != "" {
		if d, err := time.ParseDuration(sleep); err == nil {
			cfg.Poll.Sleep = d
		} else {
			slog.Default().Warn("fail parse sleep to duration from string", "sleep", sleep, "error", err)
		}
	}
	if journal := getenv("JOURNAL"); journal != "" {
		switch strings.ToLower(journal) {
		case "true":
			cfg.Journal.Enabled = true
		case "false":
			cfg.Journal.Enabled = false
		default:
			slog.Default().Warn("fail parse journal to bool from string", "journal", journal)
		}
	}
	if journalPath := getenv("JOURNAL_PATH"); journalPath != "" {
		cfg.Journal.Path = journalPath
	}
	if pushURL := getenv("PUSHGATEWAY_URL"); pushURL != "" {
		cfg.Metrics.PushgatewayURL = pushURL
	}
	if loglevel := getenv("LOG_LEVEL"); loglevel != "" {
		cfg.Log.Level = loglevel
	}
	if logenv := getenv("LOG_ENV"); logenv != "" {
		cfg.Log.Env = logenv
	}
}

func getenv(name string) string {
	return os.Getenv(envPrefix + name)
}

func (c *Config) Validate() error {
	if c.OVH.partialCredentials() {
		return errors.New("missing credentials: either none or all of applicationKey, applicationSecret, consumerKey")
	}
	if c.OVH.RateLimit < 0 {
		return fmt.Errorf("invalid rate limit %v", c.OVH.RateLimit)
	}
	switch c.DNS.Provider {
	case "ovh":
	case "cloudflare":
		if c.DNS.Token == "" {
			return errors.New("cloudflare dns provider requires a token")
		}
	default:
		return fmt.Errorf("unknown dns provider %q", c.DNS.Provider)
	}
	if c.Poll.MaxRetry < 1 {
		return fmt.Errorf("poll maxRetry must be at least 1, got %d", c.Poll.MaxRetry)
	}
	if c.Poll.Sleep < 0 {
		return fmt.Errorf("poll sleep must not be negative, got %s", c.Poll.Sleep)
	}
	return nil
}
