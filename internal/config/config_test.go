package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
)

// clearEnv unsets keys for the duration of the test. t.Setenv restores the
// original values afterwards, including anything godotenv set meanwhile.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("Broker: got %q", cfg.Broker)
	}
	if cfg.Poll != 500*time.Millisecond {
		t.Errorf("Poll: got %v", cfg.Poll)
	}
	if cfg.Samples != 5 || cfg.Threshold != 3 || cfg.SampleInterval != 10*time.Millisecond {
		t.Errorf("debounce: got samples=%d threshold=%d interval=%v", cfg.Samples, cfg.Threshold, cfg.SampleInterval)
	}
	if cfg.StatusInterval != 10*time.Second {
		t.Errorf("StatusInterval: got %v", cfg.StatusInterval)
	}
	if cfg.Heartbeat != 15*time.Minute {
		t.Errorf("Heartbeat: got %v", cfg.Heartbeat)
	}
	if cfg.GPIO != BackendGPIOCDev || cfg.Chip != "gpiochip0" {
		t.Errorf("GPIO: got %q on %q", cfg.GPIO, cfg.Chip)
	}
	if cfg.PinLow != 4 || cfg.PinHigh != 5 || cfg.PinRelay != 14 {
		t.Errorf("pins: got low=%d high=%d relay=%d", cfg.PinLow, cfg.PinHigh, cfg.PinRelay)
	}
	if cfg.RelayActiveLow {
		t.Error("RelayActiveLow should default to false")
	}
	if cfg.PinLED != -1 || cfg.LEDActiveLow {
		t.Errorf("status LED should default to disabled: pin=%d activeLow=%v", cfg.PinLED, cfg.LEDActiveLow)
	}
	if cfg.HTTPAddr != ":80" {
		t.Errorf("HTTPAddr: got %q", cfg.HTTPAddr)
	}
	if cfg.BufferSize != 64 {
		t.Errorf("BufferSize: got %d", cfg.BufferSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TANK_BROKER", "tcp://broker.local:1883")
	t.Setenv("TANK_MQTT_USERNAME", "pump")
	t.Setenv("TANK_POLL", "2s")
	t.Setenv("TANK_HEARTBEAT", "0")
	t.Setenv("TANK_GPIO", "periph")
	t.Setenv("TANK_RELAY_ACTIVE_LOW", "true")
	t.Setenv("TANK_HTTP", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Broker != "tcp://broker.local:1883" || cfg.Username != "pump" {
		t.Errorf("mqtt: got %q user %q", cfg.Broker, cfg.Username)
	}
	if cfg.Poll != 2*time.Second {
		t.Errorf("Poll: got %v", cfg.Poll)
	}
	if cfg.Heartbeat != 0 {
		t.Errorf("Heartbeat: got %v, want disabled", cfg.Heartbeat)
	}
	if cfg.GPIO != BackendPeriph || !cfg.RelayActiveLow {
		t.Errorf("gpio: got %q activeLow=%v", cfg.GPIO, cfg.RelayActiveLow)
	}
	if cfg.HTTPAddr != "" {
		t.Errorf("HTTPAddr: got %q, want empty (disabled)", cfg.HTTPAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadParsingError(t *testing.T) {
	t.Setenv("TANK_POLL", "soon")

	_, err := Load()
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if cerr.Kind != ErrParsing {
		t.Errorf("Kind: got %s, want %s", cerr.Kind, ErrParsing)
	}
}

func TestLoadDotenvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "tank-pump.env")
	content := "TANK_BROKER=tcp://dotenv.local:1883\nTANK_SAMPLES=7\nTANK_THRESHOLD=4\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	clearEnv(t, "TANK_BROKER", "TANK_SAMPLES", "TANK_THRESHOLD")

	cfg, err := Load(filepath.Join(dir, "missing.env"), envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Broker != "tcp://dotenv.local:1883" {
		t.Errorf("Broker: got %q", cfg.Broker)
	}
	if cfg.Samples != 7 || cfg.Threshold != 4 {
		t.Errorf("got samples=%d threshold=%d", cfg.Samples, cfg.Threshold)
	}
}

func TestLoadEnvironmentOverridesDotenv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("TANK_PIN_RELAY=17\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("TANK_PIN_RELAY", "22")

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PinRelay != 22 {
		t.Errorf("PinRelay: got %d, want 22 from the process environment", cfg.PinRelay)
	}
}

func TestLoadMalformedDotenv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("TANK_BROKER='unterminated\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	clearEnv(t, "TANK_BROKER")

	_, err := Load(envFile)
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if cerr.Kind != ErrDotenv {
		t.Errorf("Kind: got %s, want %s", cerr.Kind, ErrDotenv)
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty broker", func(c *Config) { c.Broker = "" }, "Broker"},
		{"broker not a url", func(c *Config) { c.Broker = "localhost" }, "Broker"},
		{"zero poll", func(c *Config) { c.Poll = 0 }, "Poll"},
		{"zero sample interval", func(c *Config) { c.SampleInterval = 0 }, "SampleInterval"},
		{"no samples", func(c *Config) { c.Samples = 0 }, "Samples"},
		{"threshold above samples", func(c *Config) { c.Threshold = 6 }, "Threshold"},
		{"zero threshold", func(c *Config) { c.Threshold = 0 }, "Threshold"},
		{"negative heartbeat", func(c *Config) { c.Heartbeat = -time.Second }, "Heartbeat"},
		{"zero status interval", func(c *Config) { c.StatusInterval = 0 }, "StatusInterval"},
		{"unknown backend", func(c *Config) { c.GPIO = "sysfs" }, "GPIO"},
		{"negative pin", func(c *Config) { c.PinRelay = -1 }, "PinRelay"},
		{"shared probe pins", func(c *Config) { c.PinHigh = c.PinLow }, "PinLow"},
		{"relay on probe pin", func(c *Config) { c.PinRelay = c.PinHigh }, "PinHigh"},
		{"zero buffer", func(c *Config) { c.BufferSize = 0 }, "BufferSize"},
		{"led below disabled", func(c *Config) { c.PinLED = -2 }, "PinLED"},
		{"led on relay pin", func(c *Config) { c.PinLED = c.PinRelay }, "PinLED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *Error, got %T: %v", err, err)
			}
			if cerr.Kind != ErrValidation {
				t.Errorf("Kind: got %s", cerr.Kind)
			}
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", cerr.Err)
			}
			found := false
			for _, fe := range verrs {
				if fe.Field() == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected failure on %s, got %v", tt.field, verrs)
			}
		})
	}
}

func TestValidateAcceptsDisabledHeartbeatAndHTTP(t *testing.T) {
	cfg := validConfig(t)
	cfg.Heartbeat = 0
	cfg.HTTPAddr = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateAcceptsStatusLED(t *testing.T) {
	cfg := validConfig(t)
	cfg.PinLED = 2
	cfg.LEDActiveLow = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestErrorFormatting(t *testing.T) {
	inner := errors.New("boom")
	e := &Error{Kind: ErrParsing, Message: "bad value", Err: inner}

	if got := e.Error(); got != "[PARSING_FAILED] bad value: boom" {
		t.Errorf("Error(): got %q", got)
	}
	if !errors.Is(e, inner) {
		t.Error("errors.Is should see the wrapped error")
	}

	bare := &Error{Kind: ErrValidation, Message: "nope"}
	if got := bare.Error(); !strings.HasPrefix(got, "[VALIDATION_FAILED]") || strings.Contains(got, ": <nil>") {
		t.Errorf("Error() without cause: got %q", got)
	}
}
