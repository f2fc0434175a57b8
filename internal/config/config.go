package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport kinds understood by the daemon.
const (
	TransportRFCOMM = "rfcomm"
	TransportTCP    = "tcp"
	TransportSerial = "serial"
)

// Config holds every setting of the daemon and the CLI.
type Config struct {
	// ControlAddress is the gRPC address the daemon listens on and the CLI dials.
	ControlAddress string `yaml:"control_addr"`
	// HTTPAddress serves /status and /metrics; empty disables the HTTP surface.
	HTTPAddress string `yaml:"http_addr"`
	// StateFile persists the armed alarm across daemon restarts.
	StateFile string `yaml:"state_file"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Timezone names the location used for wall-clock alarm times.
	Timezone string `yaml:"timezone"`
	// Timeout bounds every CLI call to the daemon.
	Timeout time.Duration `yaml:"timeout"`

	Transport TransportConfig `yaml:"transport"`
	Command   CommandConfig   `yaml:"command"`
	Wake      WakeConfig      `yaml:"wake"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	GPIO      GPIOConfig      `yaml:"gpio"`
}

// TransportConfig selects and tunes the byte stream to the remote device.
type TransportConfig struct {
	// Kind is rfcomm, tcp or serial.
	Kind string `yaml:"kind"`
	// Target is a MAC address or BlueZ object path (rfcomm), host:port (tcp)
	// or a device node (serial).
	Target string `yaml:"target"`
	// Adapter is the BlueZ adapter used to build device paths from a MAC.
	Adapter string `yaml:"adapter"`
	// Baud is the serial line speed.
	Baud int `yaml:"baud"`
	// ConnectTimeout bounds a single connect attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// WriteTimeout bounds a single write where the stream supports deadlines.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// AutoConnect makes the daemon connect to Target on start-up.
	AutoConnect bool `yaml:"auto_connect"`
}

// CommandConfig holds the command texts understood by the remote device.
type CommandConfig struct {
	// StartTemplate formats the scheduled command; {minutes} is replaced by
	// the wait time.
	StartTemplate string `yaml:"start_template"`
	// Stop is the command sent by the stop action.
	Stop string `yaml:"stop"`
	// MaxWaitMinutes caps the wait time accepted by Schedule.
	MaxWaitMinutes int `yaml:"max_wait_minutes"`
}

// WakeConfig tunes alarm firing.
type WakeConfig struct {
	// MaxLateness is how late a restored alarm may still fire after a restart.
	MaxLateness time.Duration `yaml:"max_lateness"`
	// Snooze is the default snooze interval.
	Snooze time.Duration `yaml:"snooze"`
	// ConnectOnWake makes a firing alarm connect first when the link is down.
	ConnectOnWake bool `yaml:"connect_on_wake"`
	// ConnectAttempts bounds the connect-on-wake attempts.
	ConnectAttempts int `yaml:"connect_attempts"`
}

// MQTTConfig enables the MQTT status sink when Broker is set.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

// GPIOConfig enables indicator LEDs for non-zero pins.
type GPIOConfig struct {
	Chip     string `yaml:"chip"`
	LinkPin  int    `yaml:"link_pin"`
	ArmedPin int    `yaml:"armed_pin"`
}

const (
	// DefaultConfigFilename is the default settings file.
	DefaultConfigFilename = "breakfast-alarm.yaml"
	// DefaultStateFilename is the default armed-alarm file.
	DefaultStateFilename = "breakfast-alarm-state.json"
	// DefaultControlAddress is the default gRPC address.
	DefaultControlAddress = "127.0.0.1:50515"
	// DefaultTimeout is the default CLI call timeout.
	DefaultTimeout = 5 * time.Second
	// DefaultConnectTimeout bounds a connect attempt.
	DefaultConnectTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds a write.
	DefaultWriteTimeout = 5 * time.Second
	// DefaultStartTemplate matches the remote device's START parser.
	DefaultStartTemplate = "START {minutes}"
	// DefaultStopCommand cancels a running sequence on the remote device.
	DefaultStopCommand = "STOP"
	// DefaultMaxWaitMinutes is the largest wait the remote device accepts.
	DefaultMaxWaitMinutes = 30
	// DefaultMaxLateness is how late a restored alarm may fire.
	DefaultMaxLateness = 15 * time.Minute
	// DefaultSnooze is the default snooze interval.
	DefaultSnooze = 9 * time.Minute
	// DefaultConnectAttempts bounds connect-on-wake.
	DefaultConnectAttempts = 3
	// DefaultAdapter is the first BlueZ adapter.
	DefaultAdapter = "hci0"
	// DefaultBaud is the usual HC-05/HC-06 speed.
	DefaultBaud = 9600
	// DefaultTopicPrefix prefixes MQTT topics.
	DefaultTopicPrefix = "breakfast-alarm"
	// DefaultClientID is the MQTT client identifier.
	DefaultClientID = "breakfast-alarmd"
	// DefaultGPIOChip is the Raspberry Pi GPIO chip.
	DefaultGPIOChip = "gpiochip0"

	// MinutesPlaceholder is replaced in StartTemplate.
	MinutesPlaceholder = "{minutes}"

	// DefaultFilePermissions is used for the config and state files.
	DefaultFilePermissions = 0o600
)

var (
	errConfigIsNotSet        = errors.New("configuration is not set")
	errControlAddressInvalid = errors.New("invalid control address")
	errUnknownTransport      = errors.New("unknown transport kind")
	errTemplateNoPlaceholder = errors.New("start template must contain " + MinutesPlaceholder)
	errNegative              = errors.New("value must not be negative")
)

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := new(Config)
	cfg.Transport.AutoConnect = true
	cfg.Wake.ConnectOnWake = true

	// Defaults alone always validate.
	_ = Validate(cfg) //nolint:errcheck // See above.

	return cfg
}

// Load reads configuration from path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks cfg and fills defaults for unset optional fields.
//
//nolint:cyclop,funlen // Flat list of field checks.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ControlAddress == "" {
		cfg.ControlAddress = DefaultControlAddress
	}

	if _, _, err := net.SplitHostPort(cfg.ControlAddress); err != nil {
		return fmt.Errorf("%w %q: %w", errControlAddressInvalid, cfg.ControlAddress, err)
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if err := validateTransport(&cfg.Transport); err != nil {
		return err
	}

	if err := validateCommand(&cfg.Command); err != nil {
		return err
	}

	if cfg.Wake.MaxLateness <= 0 {
		cfg.Wake.MaxLateness = DefaultMaxLateness
	}

	if cfg.Wake.Snooze <= 0 {
		cfg.Wake.Snooze = DefaultSnooze
	}

	if cfg.Wake.ConnectAttempts <= 0 {
		cfg.Wake.ConnectAttempts = DefaultConnectAttempts
	}

	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = DefaultClientID
	}

	if cfg.GPIO.Chip == "" {
		cfg.GPIO.Chip = DefaultGPIOChip
	}

	if cfg.GPIO.LinkPin < 0 || cfg.GPIO.ArmedPin < 0 {
		return fmt.Errorf("gpio pins: %w", errNegative)
	}

	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}

	return loc
}

// FormatStart renders the start command for waitMinutes.
func (c *CommandConfig) FormatStart(waitMinutes int) string {
	return strings.ReplaceAll(c.StartTemplate, MinutesPlaceholder, fmt.Sprint(waitMinutes))
}

func validateTransport(t *TransportConfig) error {
	if t.Kind == "" {
		t.Kind = TransportRFCOMM
	}

	switch t.Kind {
	case TransportRFCOMM, TransportTCP, TransportSerial:
	default:
		return fmt.Errorf("%w: %q", errUnknownTransport, t.Kind)
	}

	if t.Adapter == "" {
		t.Adapter = DefaultAdapter
	}

	if t.Baud <= 0 {
		t.Baud = DefaultBaud
	}

	if t.ConnectTimeout <= 0 {
		t.ConnectTimeout = DefaultConnectTimeout
	}

	if t.WriteTimeout <= 0 {
		t.WriteTimeout = DefaultWriteTimeout
	}

	return nil
}

func validateCommand(c *CommandConfig) error {
	if c.StartTemplate == "" {
		c.StartTemplate = DefaultStartTemplate
	}

	if !strings.Contains(c.StartTemplate, MinutesPlaceholder) {
		return errTemplateNoPlaceholder
	}

	if c.Stop == "" {
		c.Stop = DefaultStopCommand
	}

	if c.MaxWaitMinutes < 0 {
		return fmt.Errorf("max_wait_minutes: %w", errNegative)
	}

	if c.MaxWaitMinutes == 0 {
		c.MaxWaitMinutes = DefaultMaxWaitMinutes
	}

	return nil
}
