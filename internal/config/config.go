// Package config loads daemon settings from the environment.
//
// Loading order:
//  1. Optional .env files via godotenv (missing files are skipped; variables
//     already set in the process environment win).
//  2. envconfig populates Config from TANK_* variables, applying tag defaults.
//  3. Command-line flags may overwrite fields (see cmd/tank-pump).
//  4. Validate checks the final struct with go-playground/validator.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. TANK_BROKER.
const Prefix = "TANK"

// Backend names accepted by Config.GPIO.
const (
	BackendGPIOCDev = "gpiocdev"
	BackendPeriph   = "periph"
)

// Config holds all daemon settings.
type Config struct {
	// MQTT
	Broker     string `envconfig:"BROKER" default:"tcp://192.168.1.200:1883" validate:"required,url"`
	Username   string `envconfig:"MQTT_USERNAME"`
	Password   string `envconfig:"MQTT_PASSWORD"`
	BufferSize int    `envconfig:"MQTT_BUFFER" default:"64" validate:"min=1"`

	// Control loop
	Poll           time.Duration `envconfig:"POLL" default:"500ms" validate:"gt=0"`
	SampleInterval time.Duration `envconfig:"SAMPLE_INTERVAL" default:"10ms" validate:"gt=0"`
	Samples        int           `envconfig:"SAMPLES" default:"5" validate:"min=1"`
	Threshold      int           `envconfig:"THRESHOLD" default:"3" validate:"min=1,ltefield=Samples"`
	StatusInterval time.Duration `envconfig:"STATUS_INTERVAL" default:"10s" validate:"gt=0"`
	Heartbeat      time.Duration `envconfig:"HEARTBEAT" default:"15m" validate:"gte=0"`

	// GPIO
	GPIO           string `envconfig:"GPIO" default:"gpiocdev" validate:"oneof=gpiocdev periph"`
	Chip           string `envconfig:"GPIO_CHIP" default:"gpiochip0" validate:"required"`
	PinLow         int    `envconfig:"PIN_LOW" default:"4" validate:"gte=0,nefield=PinHigh,nefield=PinRelay"`
	PinHigh        int    `envconfig:"PIN_HIGH" default:"5" validate:"gte=0,nefield=PinRelay"`
	PinRelay       int    `envconfig:"PIN_RELAY" default:"14" validate:"gte=0"`
	RelayActiveLow bool   `envconfig:"RELAY_ACTIVE_LOW" default:"false"`
	// PinLED drives an optional status LED; -1 disables it.
	PinLED       int  `envconfig:"PIN_LED" default:"-1" validate:"gte=-1,nefield=PinLow,nefield=PinHigh,nefield=PinRelay"`
	LEDActiveLow bool `envconfig:"LED_ACTIVE_LOW" default:"false"`

	// HTTP status server; empty disables it.
	HTTPAddr string `envconfig:"HTTP" default:":80"`

	// NetworkEnvFile is the pi-helper state file read for network info.
	NetworkEnvFile string `envconfig:"NETWORK_ENV_FILE" default:"/run/pi-helper.env"`
}

// ErrorKind categorizes configuration failures.
type ErrorKind string

const (
	// ErrDotenv indicates an env file exists but could not be parsed.
	ErrDotenv ErrorKind = "DOTENV_FAILED"
	// ErrParsing indicates a variable could not be converted to its field type.
	ErrParsing ErrorKind = "PARSING_FAILED"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ErrorKind = "VALIDATION_FAILED"
)

// Error is returned by Load and Validate.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

var validate = validator.New()

// Load reads the given env files (if present) and then the process
// environment. The result is not validated; call Validate after applying
// flag overrides.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, &Error{Kind: ErrDotenv, Message: "failed to load " + f, Err: err}
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, &Error{Kind: ErrParsing, Message: "failed to process environment configuration", Err: err}
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &Error{Kind: ErrValidation, Message: "configuration validation failed", Err: err}
	}
	return nil
}

// Usage prints the supported variables in envconfig's table format.
func Usage() error {
	var cfg Config
	return envconfig.Usage(Prefix, &cfg)
}
