// Command tank-pump keeps a water tank between its low and high probes by
// switching a pump relay, and reports state over MQTT and HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/tank-pump/internal/config"
	"github.com/sweeney/tank-pump/internal/gpio"
	"github.com/sweeney/tank-pump/internal/logic"
	"github.com/sweeney/tank-pump/internal/mqtt"
	"github.com/sweeney/tank-pump/internal/status"
	"github.com/sweeney/tank-pump/internal/web"
)

// envFiles are read in order before the environment is parsed. Missing files
// are skipped.
var envFiles = []string{".env", "/etc/tank-pump/tank-pump.env"}

func main() {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	printState := registerFlags(flag.CommandLine, cfg)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output(), "\nEnvironment (flags take precedence):")
		config.Usage()
	}
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// registerFlags binds command-line flags to cfg. Flag defaults are the values
// already loaded from the environment.
func registerFlags(fs *flag.FlagSet, cfg *config.Config) *bool {
	fs.StringVar(&cfg.Broker, "broker", cfg.Broker, "MQTT broker address")
	fs.StringVar(&cfg.Username, "mqtt-user", cfg.Username, "MQTT username (empty for anonymous)")
	fs.DurationVar(&cfg.Poll, "poll", cfg.Poll, "Control loop interval")
	fs.DurationVar(&cfg.SampleInterval, "sample-interval", cfg.SampleInterval, "Delay between probe reads")
	fs.IntVar(&cfg.Samples, "samples", cfg.Samples, "Probe reads per debounce window")
	fs.IntVar(&cfg.Threshold, "threshold", cfg.Threshold, "High reads needed to assert a probe")
	fs.DurationVar(&cfg.StatusInterval, "status-interval", cfg.StatusInterval, "Interval for republishing retained state")
	fs.DurationVar(&cfg.Heartbeat, "heartbeat", cfg.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&cfg.GPIO, "gpio", cfg.GPIO, `GPIO backend ("gpiocdev" or "periph")`)
	fs.StringVar(&cfg.Chip, "chip", cfg.Chip, "GPIO character device (gpiocdev backend)")
	fs.IntVar(&cfg.PinLow, "pin-low", cfg.PinLow, "BCM pin number for the low-water probe")
	fs.IntVar(&cfg.PinHigh, "pin-high", cfg.PinHigh, "BCM pin number for the high-water probe")
	fs.IntVar(&cfg.PinRelay, "pin-relay", cfg.PinRelay, "BCM pin number for the pump relay")
	fs.BoolVar(&cfg.RelayActiveLow, "relay-active-low", cfg.RelayActiveLow, "Relay energizes on a low output")
	fs.IntVar(&cfg.PinLED, "pin-led", cfg.PinLED, "BCM pin number for the status LED (-1 to disable)")
	fs.BoolVar(&cfg.LEDActiveLow, "led-active-low", cfg.LEDActiveLow, "Status LED lights on a low output")
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP status address (empty to disable)")
	return fs.Bool("print-state", false, "Print debounced probe levels and exit")
}

func pinConfig(cfg *config.Config) gpio.PinConfig {
	return gpio.PinConfig{
		Chip:           cfg.Chip,
		Low:            cfg.PinLow,
		High:           cfg.PinHigh,
		Relay:          cfg.PinRelay,
		RelayActiveLow: cfg.RelayActiveLow,
		LED:            cfg.PinLED,
		LEDActiveLow:   cfg.LEDActiveLow,
	}
}

func openPins(cfg *config.Config) (gpio.Pins, error) {
	if cfg.GPIO == config.BackendPeriph {
		p, err := gpio.OpenPeriphPins(gpio.PeriphNamesFor(pinConfig(cfg)))
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	p, err := gpio.NewRealPins(pinConfig(cfg))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func sensorConfig(cfg *config.Config) logic.SensorConfig {
	return logic.SensorConfig{
		Samples:   cfg.Samples,
		Threshold: cfg.Threshold,
		Interval:  cfg.SampleInterval,
	}
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		PollMs:           cfg.Poll.Milliseconds(),
		SampleIntervalMs: cfg.SampleInterval.Milliseconds(),
		Samples:          cfg.Samples,
		Threshold:        cfg.Threshold,
		StatusMs:         cfg.StatusInterval.Milliseconds(),
		HeartbeatMs:      cfg.Heartbeat.Milliseconds(),
		Broker:           cfg.Broker,
		HTTPAddr:         cfg.HTTPAddr,
		GPIO:             cfg.GPIO,
	}
}

func run(cfg *config.Config, printState bool) error {
	pins, err := openPins(cfg)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pins.Close()

	monitor := logic.NewMonitor(pins.ReadProbe, time.Sleep, sensorConfig(cfg))

	// Print state mode
	if printState {
		monitor.Prime()
		fmt.Printf("low: %s, high: %s\n", levelString(monitor.LowAsserted()), levelString(monitor.HighAsserted()))
		return nil
	}

	boot := time.Now()
	mono := func() logic.Millis { return logic.Millis(time.Since(boot).Milliseconds()) }
	clock := logic.NewTimeBasis(mono, func() int64 { return time.Now().Unix() })
	pump := logic.NewAutomaton(clock, pins.WriteRelay)
	monitor.Prime()

	commands := mqtt.NewCommandQueue()
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.Broker,
		Username:   cfg.Username,
		Password:   cfg.Password,
		BufferSize: cfg.BufferSize,
		Commands:   commands,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(boot, statusConfig(cfg))
	network := func() *status.NetworkInfo { return readNetworkInfo(cfg.NetworkEnvFile) }
	if net := network(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	g, ctx := errgroup.WithContext(context.Background())
	// stop ends the helper goroutines once the control loop returns.
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var srv *web.Server
	if cfg.HTTPAddr != "" {
		srv = web.New(cfg.HTTPAddr, tracker, commands.Deliver)
		g.Go(func() error {
			log.Printf("http status server listening on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	if cfg.PinLED >= 0 {
		led := &statusLED{
			write: pins.WriteLED,
			state: func() (bool, bool) {
				return publisher.IsConnected(), tracker.Snapshot().Pump.Override.Active
			},
			mono: mono,
		}
		ledTicker := time.NewTicker(ledInterval)
		defer ledTicker.Stop()
		g.Go(func() error { return led.run(ctx.Done(), ledTicker.C) })
	}

	log.Printf("started: poll=%v debounce=%d/%d@%v broker=%s gpio=%s heartbeat=%v",
		cfg.Poll, cfg.Threshold, cfg.Samples, cfg.SampleInterval, cfg.Broker, cfg.GPIO, cfg.Heartbeat)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	loop := &controlLoop{
		monitor:     monitor,
		pump:        pump,
		clock:       clock,
		publisher:   publisher,
		mqttStatus:  publisher,
		tracker:     tracker,
		network:     network,
		statusEvery: cfg.StatusInterval,
		heartbeat:   cfg.Heartbeat,
		now:         time.Now,
	}
	g.Go(func() error {
		defer stop()
		defer func() {
			if srv == nil {
				return
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		return loop.run(ctx.Done(), commands.C(), ticker.C, sigCh)
	})

	return g.Wait()
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// readNetworkInfo reads pi-helper's state file, falling back to the process
// environment for keys the file does not have (or when it is missing). The
// file is re-read on every call so heartbeats see current values.
func readNetworkInfo(path string) *status.NetworkInfo {
	get := os.Getenv
	if path != "" {
		if vals, err := godotenv.Read(path); err == nil {
			get = func(key string) string {
				if v, ok := vals[key]; ok {
					return v
				}
				return os.Getenv(key)
			}
		}
	}

	s := get(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       get(envNetworkType),
		IP:         get(envNetworkIP),
		Status:     s,
		Gateway:    get(envNetworkGateway),
		WifiStatus: get(envNetworkWifiStatus),
		SSID:       get(envNetworkWifiSSID),
	}
}

func levelString(asserted bool) string {
	if asserted {
		return "WET"
	}
	return "DRY"
}
