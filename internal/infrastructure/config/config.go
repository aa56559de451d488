package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the entrance controller.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Buttons   ButtonsConfig   `yaml:"buttons"`
	Validator ValidatorConfig `yaml:"validator"`
	Audio     AudioConfig     `yaml:"audio"`
	Remote    RemoteConfig    `yaml:"remote"`
	Garage    GarageConfig    `yaml:"garage"`
	CallerID  CallerIDConfig  `yaml:"callerid"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Timezone string         `yaml:"timezone"`
	Location LocationConfig `yaml:"location"`

	// TimeFormat is the Go layout used for times in notifications.
	TimeFormat string `yaml:"time_format"`
}

// LocationConfig contains geographic coordinates for the sunrise/sunset calculation.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// HardwareConfig describes the I/O expanders and the board-level GPIO lines.
type HardwareConfig struct {
	// I2CBus is the periph.io bus name, e.g. "/dev/i2c-2" or "2".
	I2CBus   string         `yaml:"i2c_bus"`
	BoardA   uint16         `yaml:"board_a"`
	BoardB   uint16         `yaml:"board_b"`
	Power    PowerConfig    `yaml:"power"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
}

// PowerConfig controls the GPIO line that supplies the expander boards.
type PowerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Pin     string `yaml:"pin"`
	// SafeTimeout is how long the supply stays off (and settles after
	// switching back on) during a bus reset, in milliseconds.
	SafeTimeout int `yaml:"safe_timeout"`
}

// WatchdogConfig contains hardware watchdog settings.
type WatchdogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	Interval int    `yaml:"interval"` // milliseconds
}

// ButtonsConfig contains the matrix behaviour settings.
type ButtonsConfig struct {
	// LightTimeout is the base light duration in seconds.
	LightTimeout int  `yaml:"light_timeout"`
	BellEnable   bool `yaml:"bell_enable"`
	// BellStartHour and BellEndHour bound the hours (inclusive) in which
	// the bell buttons ring.
	BellStartHour int `yaml:"bell_start_hour"`
	BellEndHour   int `yaml:"bell_end_hour"`
	// StrictInput stops the control loop when the matrix reports a code
	// that no action is wired to. When false the code is logged and ignored.
	StrictInput bool `yaml:"strict_input"`
}

// ValidatorConfig contains the code table and its bounds.
type ValidatorConfig struct {
	MaxLength    int `yaml:"max_length"`
	TimeoutTicks int `yaml:"timeout_ticks"`
	// Users maps a display name to its code, written as "[14, 15, 13, 15]".
	Users map[string]string `yaml:"users"`
}

// AudioConfig contains audio cue settings.
type AudioConfig struct {
	Enabled bool   `yaml:"enabled"`
	Player  string `yaml:"player"`
	Bell    string `yaml:"bell"`
	Alarm   string `yaml:"alarm"`
}

// RemoteConfig contains the SSH peer that is signalled on a fire alarm.
type RemoteConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	KeyFile        string `yaml:"key_file"`
	KnownHostsFile string `yaml:"known_hosts_file"`
	AlarmCommand   string `yaml:"alarm_command"`
	Timeout        int    `yaml:"timeout"` // seconds
}

// GarageConfig contains the garage switch GPIO lines.
type GarageConfig struct {
	Enabled        bool   `yaml:"enabled"`
	EntranceTop    string `yaml:"entrance_top"`
	EntranceBottom string `yaml:"entrance_bottom"`
	GateTop        string `yaml:"gate_top"`
	GateBottom     string `yaml:"gate_bottom"`
	EndPosition    string `yaml:"end_position"`
}

// CallerIDConfig contains the GSM modem settings for the phone opener.
type CallerIDConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Device   string   `yaml:"device"`
	BaudRate int      `yaml:"baud_rate"`
	Numbers  []string `yaml:"numbers"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: OPENSESAME_SECTION_KEY
// For example: OPENSESAME_I2C_BUS, OPENSESAME_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with the values of the installed entrance.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:         "entrance",
			Name:       "Haustür",
			Timezone:   "Local",
			TimeFormat: "15:04",
		},
		Hardware: HardwareConfig{
			I2CBus: "/dev/i2c-2",
			BoardA: 0x20,
			BoardB: 0x21,
			Power: PowerConfig{
				Pin:         "GPIO202",
				SafeTimeout: 15000,
			},
			Watchdog: WatchdogConfig{
				Path:     "/dev/watchdog",
				Interval: 1000,
			},
		},
		Buttons: ButtonsConfig{
			LightTimeout:  300,
			BellEnable:    true,
			BellStartHour: 7,
			BellEndHour:   21,
			StrictInput:   true,
		},
		Validator: ValidatorConfig{
			MaxLength:    10,
			TimeoutTicks: 1000,
		},
		Audio: AudioConfig{
			Player: "ogg123",
			Bell:   "/dev/null",
			Alarm:  "/dev/null",
		},
		Remote: RemoteConfig{
			Port:         22,
			AlarmCommand: "killall -SIGUSR2 opensesame",
			Timeout:      10,
		},
		CallerID: CallerIDConfig{
			BaudRate: 115200,
		},
		Database: DatabaseConfig{
			Path:        "./data/opensesame.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "opensesame",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENSESAME_I2C_BUS"); v != "" {
		cfg.Hardware.I2CBus = v
	}
	if v := os.Getenv("OPENSESAME_LIGHT_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Buttons.LightTimeout = n
		}
	}
	if v := os.Getenv("OPENSESAME_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("OPENSESAME_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("OPENSESAME_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("OPENSESAME_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("OPENSESAME_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("OPENSESAME_REMOTE_KEY_FILE"); v != "" {
		cfg.Remote.KeyFile = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Site.Location.Latitude < -90 || c.Site.Location.Latitude > 90 {
		errs = append(errs, "site.location.latitude must be between -90 and 90")
	}
	if c.Site.Location.Longitude < -180 || c.Site.Location.Longitude > 180 {
		errs = append(errs, "site.location.longitude must be between -180 and 180")
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone is invalid: %v", err))
	}

	// Hardware
	if c.Hardware.I2CBus == "" {
		errs = append(errs, "hardware.i2c_bus is required")
	}
	if c.Hardware.BoardA > 0x7f || c.Hardware.BoardB > 0x7f {
		errs = append(errs, "hardware board addresses must be 7-bit")
	}
	if c.Hardware.BoardA == c.Hardware.BoardB {
		errs = append(errs, "hardware.board_a and hardware.board_b must differ")
	}
	if c.Hardware.Power.Enabled && c.Hardware.Power.Pin == "" {
		errs = append(errs, "hardware.power.pin is required when power switching is enabled")
	}
	if c.Hardware.Watchdog.Enabled && c.Hardware.Watchdog.Interval <= 0 {
		errs = append(errs, "hardware.watchdog.interval must be positive")
	}

	// Buttons
	if c.Buttons.LightTimeout < 3 {
		errs = append(errs, "buttons.light_timeout must be at least 3 seconds")
	}
	if c.Buttons.BellStartHour < 0 || c.Buttons.BellEndHour > 23 || c.Buttons.BellStartHour > c.Buttons.BellEndHour {
		errs = append(errs, "buttons bell hours must satisfy 0 <= start <= end <= 23")
	}

	// Validator
	if c.Validator.MaxLength < 1 {
		errs = append(errs, "validator.max_length must be positive")
	}
	if c.Validator.TimeoutTicks < 1 {
		errs = append(errs, "validator.timeout_ticks must be positive")
	}

	if c.Remote.Enabled && (c.Remote.Host == "" || c.Remote.User == "" || c.Remote.KeyFile == "") {
		errs = append(errs, "remote.host, remote.user and remote.key_file are required when remote is enabled")
	}
	if c.CallerID.Enabled && c.CallerID.Device == "" {
		errs = append(errs, "callerid.device is required when callerid is enabled")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location returns the time zone the bell hours are evaluated in.
func (c *Config) Location() (*time.Location, error) {
	switch c.Site.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Site.Timezone)
	}
}

// LightTimeoutTicks returns the light base duration in 10 ms ticks.
func (c *Config) LightTimeoutTicks() uint32 {
	return uint32(c.Buttons.LightTimeout) * 100
}

// SafeTimeout returns the power-cycle settle time as a Duration.
func (c *Config) SafeTimeout() time.Duration {
	return time.Duration(c.Hardware.Power.SafeTimeout) * time.Millisecond
}

// WatchdogInterval returns the watchdog feed interval as a Duration.
func (c *Config) WatchdogInterval() time.Duration {
	return time.Duration(c.Hardware.Watchdog.Interval) * time.Millisecond
}

// RemoteTimeout returns the SSH dial timeout as a Duration.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.Timeout) * time.Second
}
