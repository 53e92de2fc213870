package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDVario   string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string

	// Topics
	TopicEstimate string
	TopicTone     string
	TopicNMEA     string

	// Barometer
	SensorType    string // bmp280, bme280, bmp180 or sim
	SensorI2CBus  string // periph bus name, "" for the first one
	SensorI2CAddr uint16
	SimScenario   string // YAML scenario, required for SENSOR_TYPE=sim

	// GPS (optional: without it the altitude is never cross-calibrated)
	GPSSerialPort string
	GPSBaudRate   int
	GPSLatencyMs  int // RMC end of fix to line received, subtracted when aligning the clock

	// Sentence output
	ConsoleSerialPort string // "" writes to stdout
	ConsoleBaudRate   int
	LogPath           string // "" disables the sentence log
	LogQueueBytes     int
	Verbose           bool

	// Vario
	VarioKnob uint8  // 0-15, volume is KNOB/2 clamped to 3
	BatteryMV uint32 // reported in LK8EX1 when no battery monitor is wired

	// Web Server
	WebServerPort int
	MetricsPort   int // 0 disables /metrics on the vario process

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal/Get.
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config carrying the values used for keys missing from
// the file.
func Default() *Config {
	return &Config{
		MQTTClientIDVario:     "baro-vario",
		MQTTClientIDConsole:   "baro-console",
		MQTTClientIDWeb:       "baro-web",
		MQTTClientIDDisplay:   "baro-display",
		TopicEstimate:         "baro/estimate",
		TopicTone:             "baro/tone",
		TopicNMEA:             "baro/nmea",
		SensorI2CAddr:         0x77,
		GPSBaudRate:           9600,
		ConsoleBaudRate:       115200,
		LogQueueBytes:         4096,
		VarioKnob:             4,
		BatteryMV:             3700,
		WebServerPort:         8080,
		DisplayUpdateInterval: 500,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines from r on top of Default().
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_VARIO":
		c.MQTTClientIDVario = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_ESTIMATE":
		c.TopicEstimate = value
	case "TOPIC_TONE":
		c.TopicTone = value
	case "TOPIC_NMEA":
		c.TopicNMEA = value

	// Barometer
	case "SENSOR_TYPE":
		v := strings.ToLower(value)
		switch v {
		case "bmp280", "bme280", "bmp180", "sim":
		default:
			return fmt.Errorf("SENSOR_TYPE must be bmp280, bme280, bmp180 or sim, got %q", value)
		}
		c.SensorType = v
	case "SENSOR_I2C_BUS":
		c.SensorI2CBus = value
	case "SENSOR_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid SENSOR_I2C_ADDR %q: %w", value, err)
		}
		if addr > 0x7F {
			return fmt.Errorf("SENSOR_I2C_ADDR must be a 7-bit address, got 0x%X", addr)
		}
		c.SensorI2CAddr = uint16(addr)
	case "SIM_SCENARIO":
		c.SimScenario = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate
	case "GPS_LATENCY_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_LATENCY_MS %q: %w", value, err)
		}
		c.GPSLatencyMs = ms

	// Sentence output
	case "CONSOLE_SERIAL_PORT":
		c.ConsoleSerialPort = value
	case "CONSOLE_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_BAUD_RATE %q: %w", value, err)
		}
		c.ConsoleBaudRate = rate
	case "LOG_PATH":
		c.LogPath = value
	case "LOG_QUEUE_BYTES":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid LOG_QUEUE_BYTES %q: %w", value, err)
		}
		if n < 256 {
			return fmt.Errorf("LOG_QUEUE_BYTES must be at least 256, got %d", n)
		}
		c.LogQueueBytes = n
	case "VERBOSE":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid VERBOSE %q: %w", value, err)
		}
		c.Verbose = v

	// Vario
	case "VARIO_KNOB":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid VARIO_KNOB %q: %w", value, err)
		}
		if val < 0 || val > 15 {
			return fmt.Errorf("VARIO_KNOB must be 0-15, got %d", val)
		}
		c.VarioKnob = uint8(val)
	case "BATTERY_MV":
		val, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid BATTERY_MV %q: %w", value, err)
		}
		c.BatteryMV = uint32(val)

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port
	case "METRICS_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid METRICS_PORT %q: %w", value, err)
		}
		c.MetricsPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.SensorType == "" {
		return fmt.Errorf("SENSOR_TYPE is required")
	}
	if c.SensorType == "sim" && c.SimScenario == "" {
		return fmt.Errorf("SIM_SCENARIO is required when SENSOR_TYPE=sim")
	}
	if c.GPSSerialPort != "" && c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE must be positive")
	}
	if c.GPSLatencyMs < 0 || c.GPSLatencyMs >= 1000 {
		return fmt.Errorf("GPS_LATENCY_MS must be in [0, 1000)")
	}
	if c.ConsoleSerialPort != "" && c.ConsoleBaudRate <= 0 {
		return fmt.Errorf("CONSOLE_BAUD_RATE must be positive")
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
