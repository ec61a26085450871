package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Delivery variants.
const (
	VariantPost = "post"
	VariantNGSI = "ngsi"
)

// Config holds all application configuration values.
type Config struct {
	LogLevel string

	// Node identity and wire variant
	NodeID  string
	Variant string // "post" or "ngsi"

	// Remote endpoint
	ServerHost   string
	ServerPort   int
	Method       string
	PathTemplate string // may contain {id}

	// Delivery timing
	ResponseSettle    time.Duration
	RetryInterval     time.Duration
	RetryMaxAttempts  int    // 0 = retry forever
	RetryBackoff      string // "constant" or "exponential"
	PostDeliveryPause time.Duration
	ReadTimeout       time.Duration
	BreakerFailures   int // 0 disables the circuit breaker
	BreakerOpen       time.Duration

	// Loop timing
	CycleInterval time.Duration // fixed sleep (post) or period (ngsi)
	PollTick      time.Duration

	// Sampling
	Samples          int
	SampleDelay      time.Duration
	LightSampleDelay time.Duration
	SensorSettle     time.Duration

	// Sensors
	I2CBus        string
	EnvSensor     string // "hdc1080", "bme280" or "none"
	HDC1080Addr   uint16
	BME280Addr    uint16
	AP3216Enabled bool
	AP3216Addr    uint16

	// Soil moisture and actuator
	SoilEnabled       bool
	SoilADCAddr       uint16
	SoilChannel       int
	MoistureMode      string // "linear" or "fullscale"
	MoistureRawDry    float64
	MoistureRawWet    float64
	MoistureFullScale float64
	ActuatorPin       string

	// GPS
	GPSEnabled    bool
	GPSSerialPort string
	GPSBaudRate   int

	// MQTT mirror
	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string

	// Status server and display
	StatusAddr     string
	DisplayEnabled bool
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("node_id", "point06")
	v.SetDefault("variant", VariantNGSI)

	v.SetDefault("response_settle_ms", 500)
	v.SetDefault("retry_interval_ms", 2000)
	v.SetDefault("retry_max_attempts", 0)
	v.SetDefault("retry_backoff", "constant")
	v.SetDefault("post_delivery_pause_ms", 2000)
	v.SetDefault("read_timeout_ms", 200)
	v.SetDefault("breaker_failures", 0)
	v.SetDefault("breaker_open_s", 60)

	v.SetDefault("poll_tick_ms", 100)

	v.SetDefault("samples", 10)
	v.SetDefault("sample_delay_ms", 8)
	v.SetDefault("light_sample_delay_ms", 13)
	v.SetDefault("sensor_settle_ms", 30)

	v.SetDefault("i2c_bus", "")
	v.SetDefault("env_sensor", "hdc1080")
	v.SetDefault("hdc1080_addr", "0x40")
	v.SetDefault("bme280_addr", "0x76")
	v.SetDefault("ap3216_enabled", true)
	v.SetDefault("ap3216_addr", "0x1E")

	v.SetDefault("soil_enabled", true)
	v.SetDefault("soil_adc_addr", "0x48")
	v.SetDefault("soil_channel", 0)
	v.SetDefault("moisture_mode", "linear")
	v.SetDefault("moisture_raw_dry", 870)
	v.SetDefault("moisture_raw_wet", 800)
	v.SetDefault("moisture_full_scale", 4095)
	v.SetDefault("actuator_pin", "")

	v.SetDefault("gps_enabled", true)
	v.SetDefault("gps_serial_port", "/dev/serial0")
	v.SetDefault("gps_baud_rate", 9600)

	v.SetDefault("mqtt_client_id", "agri-node")
	v.SetDefault("display_enabled", false)
}

// Load reads the KEY=VALUE configuration file at configPath. A missing file
// is not an error; defaults and AGRI_* environment variables still apply.
// flags, when non-nil, may carry a --log-level override.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if flags != nil {
		if f := flags.Lookup("log-level"); f != nil {
			if err := v.BindPFlag("log_level", f); err != nil {
				return nil, fmt.Errorf("bind log-level flag: %w", err)
			}
		}
	}

	v.SetEnvPrefix("AGRI")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !isNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		LogLevel:          strings.ToLower(v.GetString("log_level")),
		NodeID:            v.GetString("node_id"),
		Variant:           strings.ToLower(v.GetString("variant")),
		ServerHost:        v.GetString("server_host"),
		ServerPort:        v.GetInt("server_port"),
		Method:            strings.ToUpper(v.GetString("method")),
		PathTemplate:      v.GetString("path_template"),
		ResponseSettle:    millis(v, "response_settle_ms"),
		RetryInterval:     millis(v, "retry_interval_ms"),
		RetryMaxAttempts:  v.GetInt("retry_max_attempts"),
		RetryBackoff:      strings.ToLower(v.GetString("retry_backoff")),
		PostDeliveryPause: millis(v, "post_delivery_pause_ms"),
		ReadTimeout:       millis(v, "read_timeout_ms"),
		BreakerFailures:   v.GetInt("breaker_failures"),
		BreakerOpen:       time.Duration(v.GetInt("breaker_open_s")) * time.Second,
		PollTick:          millis(v, "poll_tick_ms"),
		Samples:           v.GetInt("samples"),
		SampleDelay:       millis(v, "sample_delay_ms"),
		LightSampleDelay:  millis(v, "light_sample_delay_ms"),
		SensorSettle:      millis(v, "sensor_settle_ms"),
		I2CBus:            v.GetString("i2c_bus"),
		EnvSensor:         strings.ToLower(v.GetString("env_sensor")),
		AP3216Enabled:     v.GetBool("ap3216_enabled"),
		SoilEnabled:       v.GetBool("soil_enabled"),
		SoilChannel:       v.GetInt("soil_channel"),
		MoistureMode:      strings.ToLower(v.GetString("moisture_mode")),
		MoistureRawDry:    v.GetFloat64("moisture_raw_dry"),
		MoistureRawWet:    v.GetFloat64("moisture_raw_wet"),
		MoistureFullScale: v.GetFloat64("moisture_full_scale"),
		ActuatorPin:       v.GetString("actuator_pin"),
		GPSEnabled:        v.GetBool("gps_enabled"),
		GPSSerialPort:     v.GetString("gps_serial_port"),
		GPSBaudRate:       v.GetInt("gps_baud_rate"),
		MQTTBroker:        v.GetString("mqtt_broker"),
		MQTTClientID:      v.GetString("mqtt_client_id"),
		MQTTTopic:         v.GetString("mqtt_topic"),
		StatusAddr:        v.GetString("status_addr"),
		DisplayEnabled:    v.GetBool("display_enabled"),
	}

	for key, dst := range map[string]*uint16{
		"hdc1080_addr":  &c.HDC1080Addr,
		"bme280_addr":   &c.BME280Addr,
		"ap3216_addr":   &c.AP3216Addr,
		"soil_adc_addr": &c.SoilADCAddr,
	} {
		addr, err := parseAddr(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err)
		}
		*dst = addr
	}

	if v.IsSet("cycle_interval_s") {
		c.CycleInterval = time.Duration(v.GetFloat64("cycle_interval_s") * float64(time.Second))
	}
	c.applyVariantDefaults()
	if c.MQTTTopic == "" {
		c.MQTTTopic = "agri/" + c.NodeID + "/cycle"
	}
	return c, nil
}

// applyVariantDefaults fills the endpoint and timing left unset with the
// values of the selected variant.
func (c *Config) applyVariantDefaults() {
	switch c.Variant {
	case VariantPost:
		setIfZero(&c.ServerPort, 80)
		setIfEmpty(&c.Method, "POST")
		setIfEmpty(&c.PathTemplate, "/update_data")
		if c.CycleInterval == 0 {
			c.CycleInterval = 10 * time.Second
		}
	case VariantNGSI:
		setIfZero(&c.ServerPort, 1026)
		setIfEmpty(&c.Method, "PATCH")
		setIfEmpty(&c.PathTemplate, "/v2/entities/{id}/attrs")
		if c.CycleInterval == 0 {
			c.CycleInterval = 30 * time.Second
		}
	}
}

func (c *Config) validate() error {
	if c.Variant != VariantPost && c.Variant != VariantNGSI {
		return fmt.Errorf("VARIANT must be %q or %q, got %q", VariantPost, VariantNGSI, c.Variant)
	}
	if c.ServerHost == "" {
		return fmt.Errorf("SERVER_HOST is required")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be 1-65535, got %d", c.ServerPort)
	}
	if c.NodeID == "" {
		return fmt.Errorf("NODE_ID is required")
	}
	if c.Samples < 1 {
		return fmt.Errorf("SAMPLES must be at least 1, got %d", c.Samples)
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("CYCLE_INTERVAL_S must be positive")
	}
	if c.RetryMaxAttempts < 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be >= 0 (0 = unlimited), got %d", c.RetryMaxAttempts)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("READ_TIMEOUT_MS must be positive, got %s", c.ReadTimeout)
	}
	if c.BreakerFailures < 0 {
		return fmt.Errorf("BREAKER_FAILURES must be >= 0 (0 = disabled), got %d", c.BreakerFailures)
	}
	if c.BreakerFailures > 0 && c.BreakerOpen <= 0 {
		return fmt.Errorf("BREAKER_OPEN_S must be positive when the breaker is enabled")
	}
	if c.RetryBackoff != "constant" && c.RetryBackoff != "exponential" {
		return fmt.Errorf("RETRY_BACKOFF must be constant or exponential, got %q", c.RetryBackoff)
	}
	switch c.EnvSensor {
	case "hdc1080", "bme280", "none":
	default:
		return fmt.Errorf("ENV_SENSOR must be hdc1080, bme280 or none, got %q", c.EnvSensor)
	}
	if c.SoilChannel < 0 || c.SoilChannel > 3 {
		return fmt.Errorf("SOIL_CHANNEL must be 0-3, got %d", c.SoilChannel)
	}
	switch c.MoistureMode {
	case "linear":
		if c.MoistureRawDry == c.MoistureRawWet {
			return fmt.Errorf("MOISTURE_RAW_DRY and MOISTURE_RAW_WET must differ")
		}
	case "fullscale":
		if c.MoistureFullScale <= 0 {
			return fmt.Errorf("MOISTURE_FULL_SCALE must be positive")
		}
	default:
		return fmt.Errorf("MOISTURE_MODE must be linear or fullscale, got %q", c.MoistureMode)
	}
	if c.GPSEnabled {
		if c.GPSSerialPort == "" {
			return fmt.Errorf("GPS_SERIAL_PORT is required")
		}
		if c.GPSBaudRate == 0 {
			return fmt.Errorf("GPS_BAUD_RATE is required")
		}
	}
	return nil
}

// InitGlobal initializes the global configuration from file. Only the first
// call has any effect.
func InitGlobal(configPath string, flags *pflag.FlagSet) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath, flags)
	})
	return err
}

// Get returns the global configuration, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func millis(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Millisecond
}

func parseAddr(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}

func setIfZero(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
