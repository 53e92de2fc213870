package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseAppliesValuesOverDefaults(t *testing.T) {
	in := `
# bench setup
MQTT_BROKER=tcp://localhost:1883
SENSOR_TYPE=BME280
SENSOR_I2C_ADDR=0x76
VERBOSE=true
VARIO_KNOB=7
GPS_LATENCY_MS=40
LOG_PATH = /tmp/baro.log
`
	cfg, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.SensorType != "bme280" {
		t.Fatalf("SensorType: got %q", cfg.SensorType)
	}
	if cfg.SensorI2CAddr != 0x76 {
		t.Fatalf("SensorI2CAddr: got 0x%X", cfg.SensorI2CAddr)
	}
	if !cfg.Verbose || cfg.VarioKnob != 7 || cfg.GPSLatencyMs != 40 || cfg.LogPath != "/tmp/baro.log" {
		t.Fatalf("values not applied: %+v", cfg)
	}
	// untouched keys keep their defaults
	if cfg.TopicEstimate != "baro/estimate" || cfg.LogQueueBytes != 4096 || cfg.BatteryMV != 3700 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"missing equals", "MQTT_BROKER", "invalid config line 1"},
		{"unknown key", "MQTT_BROKER=x\nFOO=1", "unknown config key"},
		{"bad sensor", "MQTT_BROKER=x\nSENSOR_TYPE=ms5611", "SENSOR_TYPE must be"},
		{"knob range", "MQTT_BROKER=x\nSENSOR_TYPE=bmp280\nVARIO_KNOB=16", "VARIO_KNOB must be 0-15"},
		{"wide address", "MQTT_BROKER=x\nSENSOR_I2C_ADDR=0x100", "7-bit"},
		{"no broker", "SENSOR_TYPE=bmp280", "MQTT_BROKER is required"},
		{"no sensor", "MQTT_BROKER=x", "SENSOR_TYPE is required"},
		{"sim without scenario", "MQTT_BROKER=x\nSENSOR_TYPE=sim", "SIM_SCENARIO is required"},
		{"tiny log queue", "MQTT_BROKER=x\nLOG_QUEUE_BYTES=10", "at least 256"},
		{"gps latency", "MQTT_BROKER=x\nSENSOR_TYPE=bmp280\nGPS_LATENCY_MS=1500", "GPS_LATENCY_MS must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vario_config.txt")
	body := "MQTT_BROKER=tcp://broker:1883\nSENSOR_TYPE=sim\nSIM_SCENARIO=climb.yaml\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SimScenario != "climb.yaml" || cfg.MQTTBroker != "tcp://broker:1883" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
