// Package config loads bridge settings from defaults, an optional YAML or
// TOML file, the environment and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/urmzd/aquabridge/pkg/entity"
	"github.com/urmzd/aquabridge/pkg/mqtt"
	"github.com/urmzd/aquabridge/pkg/schema"
	"gopkg.in/yaml.v3"
)

// Environment variables read after the config file.
const (
	EnvMQTTPassword = "AQUALOGIC_MQTT_PASSWORD"
	EnvHTTPUser     = "AQUALOGIC_HTTP_USER"
	EnvHTTPPass     = "AQUALOGIC_HTTP_PASS"
)

// ErrHelp is returned when -h or -help was requested.
var ErrHelp = flag.ErrHelp

// Config is the complete bridge configuration.
type Config struct {
	Serial                  string             `yaml:"serial" toml:"serial" json:"serial,omitempty"`
	TCP                     string             `yaml:"tcp" toml:"tcp" json:"tcp,omitempty"`
	SourceTimeout           int                `yaml:"source_timeout" toml:"source_timeout" json:"source_timeout"`
	SystemMessageExpiration int                `yaml:"system_message_expiration" toml:"system_message_expiration" json:"system_message_expiration"`
	Identifier              string             `yaml:"identifier" toml:"identifier" json:"identifier"`
	DiscoverPrefix          string             `yaml:"discover_prefix" toml:"discover_prefix" json:"discover_prefix"`
	Enable                  []string           `yaml:"enable" toml:"enable" json:"enable"`
	SystemMessageSensors    []entity.SensorDef `yaml:"system_message_sensors" toml:"system_message_sensors" json:"system_message_sensors"`
	MQTT                    MQTTConfig         `yaml:"mqtt" toml:"mqtt" json:"mqtt"`
	HTTP                    HTTPConfig         `yaml:"http" toml:"http" json:"http"`
	DB                      string             `yaml:"db" toml:"db" json:"db"`
	HistoryDays             int                `yaml:"history_days" toml:"history_days" json:"history_days"`
	Verbose                 int                `yaml:"verbose" toml:"verbose" json:"verbose"`
}

// MQTTConfig holds the broker connection settings.
type MQTTConfig struct {
	Dest      string `yaml:"dest" toml:"dest" json:"dest"`
	Username  string `yaml:"username" toml:"username" json:"username"`
	Password  string `yaml:"password" toml:"password" json:"password"`
	ClientID  string `yaml:"client_id" toml:"client_id" json:"client_id"`
	Insecure  bool   `yaml:"insecure" toml:"insecure" json:"insecure"`
	Version   int    `yaml:"version" toml:"version" json:"version"`
	Transport string `yaml:"transport" toml:"transport" json:"transport"`
}

// HTTPConfig holds the web UI settings. An empty Addr disables the UI.
type HTTPConfig struct {
	Addr string `yaml:"addr" toml:"addr" json:"addr"`
	User string `yaml:"user" toml:"user" json:"user"`
	Pass string `yaml:"pass" toml:"pass" json:"pass"`
}

// Default returns the configuration used when nothing else is given.
func Default() *Config {
	return &Config{
		SourceTimeout:           10,
		SystemMessageExpiration: 180,
		Identifier:              "aqualogic",
		DiscoverPrefix:          "homeassistant",
		HistoryDays:             30,
		MQTT:                    MQTTConfig{Version: 4, Transport: ""},
	}
}

// Source returns the serial path or TCP address, whichever is set.
func (c *Config) Source() string {
	if c.Serial != "" {
		return c.Serial
	}
	return c.TCP
}

func (c *Config) SourceTimeoutDuration() time.Duration {
	return time.Duration(c.SourceTimeout) * time.Second
}

func (c *Config) MessageExpiryDuration() time.Duration {
	return time.Duration(c.SystemMessageExpiration) * time.Second
}

// HistoryRetention is how long history rows are kept. Zero keeps them
// forever.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.HistoryDays) * 24 * time.Hour
}

// MQTTOptions converts the broker settings for the mqtt package.
func (c *Config) MQTTOptions() mqtt.Options {
	return mqtt.Options{
		Dest:      c.MQTT.Dest,
		ClientID:  c.MQTT.ClientID,
		Username:  c.MQTT.Username,
		Password:  c.MQTT.Password,
		Insecure:  c.MQTT.Insecure,
		Version:   uint(c.MQTT.Version),
		Transport: c.MQTT.Transport,
	}
}

// LoadFile merges a YAML or TOML file, chosen by extension, into c.
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(raw), c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
	}
	return nil
}

// ApplyEnv fills secrets from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvMQTTPassword); v != "" {
		c.MQTT.Password = v
	}
	if v := getenv(EnvHTTPUser); v != "" {
		c.HTTP.User = v
	}
	if v := getenv(EnvHTTPPass); v != "" {
		c.HTTP.Pass = v
	}
}

// Validate checks c against the embedded schema and the entity catalog.
func (c *Config) Validate() error {
	if (c.Serial == "") == (c.TCP == "") {
		return errors.New("exactly one of -serial or -tcp is required")
	}
	if c.MQTT.Dest == "" {
		return errors.New("-mqtt-dest is required")
	}
	if c.MQTT.Version == 5 {
		return errors.New("MQTT 5 is not supported, use -mqtt-version 3 or 4")
	}
	if !mqtt.ValidTransport(c.MQTT.Transport) {
		return fmt.Errorf("unsupported -mqtt-transport %q", c.MQTT.Transport)
	}
	if (c.HTTP.User == "") != (c.HTTP.Pass == "") {
		return errors.New("-http-user and -http-pass must be set together")
	}

	if err := schema.NewValidator().ValidateValue(schema.Config, c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := entity.ValidateEnableList(c.Enable); err != nil {
		return err
	}
	if _, err := entity.SystemMessageSensorCatalog(c.Identifier, c.SystemMessageSensors); err != nil {
		return err
	}
	return nil
}

// listFlag collects repeatable flags. With split set, each value may also
// be a comma separated list.
type listFlag struct {
	values []string
	split  bool
}

func (l *listFlag) String() string { return strings.Join(l.values, ",") }

func (l *listFlag) Set(v string) error {
	if !l.split {
		l.values = append(l.values, v)
		return nil
	}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			l.values = append(l.values, part)
		}
	}
	return nil
}

// countFlag implements -v -v -v style verbosity.
type countFlag int

func (c *countFlag) String() string   { return fmt.Sprint(int(*c)) }
func (c *countFlag) IsBoolFlag() bool { return true }
func (c *countFlag) Set(v string) error {
	switch v {
	case "true":
		*c++
	case "false":
	default:
		var n int
		if _, err := fmt.Sscan(v, &n); err != nil {
			return fmt.Errorf("invalid verbosity %q", v)
		}
		*c = countFlag(n)
	}
	return nil
}

// Load builds the configuration from args (without the program name) and
// the environment, then validates it.
func Load(args []string, getenv func(string) string, output io.Writer) (*Config, error) {
	var (
		configPath string
		flags      Config
		enable     = listFlag{split: true}
		sms        listFlag
		verbose    countFlag
	)

	fs := flag.NewFlagSet("aquabridge", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&configPath, "config", "", "YAML or TOML config file")
	fs.StringVar(&flags.Serial, "serial", "", "serial device source `/dev/path`")
	fs.StringVar(&flags.TCP, "tcp", "", "network serial adapter source `host:port`")
	fs.IntVar(&flags.SourceTimeout, "source-timeout", 0, "`seconds` without panel updates before the bridge exits (default 10)")
	fs.IntVar(&flags.SystemMessageExpiration, "system-message-expiration", 0, "`seconds` after which a Check System message is no longer reported (default 180)")
	fs.StringVar(&flags.Identifier, "identifier", "", "device identifier used in topics and unique ids (default aqualogic)")
	fs.Var(&enable, "enable", "enable entities, repeatable or comma separated: "+entityHelp())
	fs.Var(&sms, "sms", "binary sensor ON while a Check System message is shown: `TEXT[,KEY[,DEV_CLASS]]`, repeatable")
	fs.StringVar(&flags.MQTT.Dest, "mqtt-dest", "", "MQTT broker `host:port`")
	fs.StringVar(&flags.MQTT.Username, "mqtt-username", "", "MQTT username")
	fs.StringVar(&flags.MQTT.Password, "mqtt-password", "", "MQTT password (prefer "+EnvMQTTPassword+")")
	fs.StringVar(&flags.MQTT.ClientID, "mqtt-clientid", "", "MQTT client id")
	fs.BoolVar(&flags.MQTT.Insecure, "mqtt-insecure", false, "use TLS without certificate validation (dangerous)")
	fs.IntVar(&flags.MQTT.Version, "mqtt-version", 0, "MQTT protocol version, 3 (3.1) or 4 (3.1.1) (default 4)")
	fs.StringVar(&flags.MQTT.Transport, "mqtt-transport", "", "tcp or websockets (default tcp unless port is 9001 or 443)")
	fs.StringVar(&flags.DiscoverPrefix, "discover-prefix", "", "Home Assistant discovery prefix (default homeassistant)")
	fs.StringVar(&flags.HTTP.Addr, "http", "", "serve the web UI on `addr`, e.g. :8080")
	fs.StringVar(&flags.HTTP.User, "http-user", "", "web UI basic auth user")
	fs.StringVar(&flags.HTTP.Pass, "http-pass", "", "web UI basic auth password")
	fs.StringVar(&flags.DB, "db", "", "history database path, \"off\" disables it")
	fs.IntVar(&flags.HistoryDays, "history-days", 0, "`days` of history to keep, 0 keeps everything (default 30)")
	fs.Var(&verbose, "v", "increase verbosity, repeatable")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if configPath != "" {
		if err := cfg.LoadFile(configPath); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(getenv)

	var sensorDefs []entity.SensorDef
	for _, v := range sms.values {
		def, err := entity.ParseSensorDef(v)
		if err != nil {
			return nil, err
		}
		sensorDefs = append(sensorDefs, def)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "serial":
			cfg.Serial = flags.Serial
		case "tcp":
			cfg.TCP = flags.TCP
		case "source-timeout":
			cfg.SourceTimeout = flags.SourceTimeout
		case "system-message-expiration":
			cfg.SystemMessageExpiration = flags.SystemMessageExpiration
		case "identifier":
			cfg.Identifier = flags.Identifier
		case "enable":
			cfg.Enable = append(cfg.Enable, enable.values...)
		case "sms":
			cfg.SystemMessageSensors = append(cfg.SystemMessageSensors, sensorDefs...)
		case "mqtt-dest":
			cfg.MQTT.Dest = flags.MQTT.Dest
		case "mqtt-username":
			cfg.MQTT.Username = flags.MQTT.Username
		case "mqtt-password":
			cfg.MQTT.Password = flags.MQTT.Password
		case "mqtt-clientid":
			cfg.MQTT.ClientID = flags.MQTT.ClientID
		case "mqtt-insecure":
			cfg.MQTT.Insecure = flags.MQTT.Insecure
		case "mqtt-version":
			cfg.MQTT.Version = flags.MQTT.Version
		case "mqtt-transport":
			cfg.MQTT.Transport = flags.MQTT.Transport
		case "discover-prefix":
			cfg.DiscoverPrefix = flags.DiscoverPrefix
		case "http":
			cfg.HTTP.Addr = flags.HTTP.Addr
		case "http-user":
			cfg.HTTP.User = flags.HTTP.User
		case "http-pass":
			cfg.HTTP.Pass = flags.HTTP.Pass
		case "db":
			cfg.DB = flags.DB
		case "history-days":
			cfg.HistoryDays = flags.HistoryDays
		case "v":
			cfg.Verbose = int(verbose)
		}
	})
	cfg.Enable = dedupe(cfg.Enable)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func entityHelp() string {
	meta := entity.ValidEntityMeta()
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s (%s)", k, meta[k])
	}
	return strings.Join(parts, ", ")
}

func dedupe(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
