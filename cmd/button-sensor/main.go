// Command button-sensor monitors a debounced button input and publishes
// press, release, hold and click-sequence events to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/button-sensor/internal/button"
	"github.com/sweeney/button-sensor/internal/input"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/status"
	"github.com/sweeney/button-sensor/internal/web"
)

// DefaultPin is the BCM line offset the button is wired to.
const DefaultPin = 17

func main() {
	poll := flag.Duration("poll", 10*time.Millisecond, "Input polling interval")
	debounce := flag.Duration("debounce", 35*time.Millisecond, "Debounce window")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	chip := flag.String("chip", "gpiochip0", "GPIO chip device")
	pin := flag.Int("pin", DefaultPin, "BCM pin number for the button")
	pull := flag.String("pull", "up", "Pin bias: up, down, or none")
	activeLow := flag.Bool("active-low", true, "Raw low level means pressed")
	mode := flag.String("mode", "poll", "Sampling mode: poll or events")
	holds := flag.String("hold", "", `Long-hold thresholds, comma separated (e.g. "2s,10s")`)
	sequences := flag.String("sequence", "2:400ms", `Click sequences as count:window, comma separated (e.g. "2:400ms,3:1s")`)
	printState := flag.Bool("print-state", false, "Print current state and exit")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	wsBroker := flag.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)

	flag.Parse()

	cfg, err := buildConfig(*poll, *debounce, *broker, *heartbeat, *chip, *pin, *pull, *activeLow, *mode, *holds, *sequences, *printState, *httpAddr, *wsBroker)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// daemonConfig is the parsed flag set.
type daemonConfig struct {
	Poll       time.Duration
	Debounce   time.Duration
	Broker     string
	Heartbeat  time.Duration
	Chip       string
	Pin        int
	Pull       input.Pull
	ActiveLow  bool
	Mode       string
	Holds      []time.Duration
	Sequences  []seqSpec
	PrintState bool
	HTTPAddr   string
	WSBroker   string
}

// seqSpec is one parsed -sequence entry.
type seqSpec struct {
	Count  uint
	Window time.Duration
}

func buildConfig(poll, debounce time.Duration, broker string, heartbeat time.Duration, chip string, pin int, pull string, activeLow bool, mode, holds, sequences string, printState bool, httpAddr, wsBroker string) (daemonConfig, error) {
	p, err := input.ParsePull(pull)
	if err != nil {
		return daemonConfig{}, err
	}
	hs, err := parseHolds(holds)
	if err != nil {
		return daemonConfig{}, err
	}
	seqs, err := parseSequences(sequences)
	if err != nil {
		return daemonConfig{}, err
	}
	if mode != "poll" && mode != "events" {
		return daemonConfig{}, fmt.Errorf("unknown mode %q (want poll or events)", mode)
	}

	return daemonConfig{
		Poll:       poll,
		Debounce:   debounce,
		Broker:     broker,
		Heartbeat:  heartbeat,
		Chip:       chip,
		Pin:        pin,
		Pull:       p,
		ActiveLow:  activeLow,
		Mode:       mode,
		Holds:      hs,
		Sequences:  seqs,
		PrintState: printState,
		HTTPAddr:   httpAddr,
		WSBroker:   resolveWSBroker(wsBroker, broker),
	}, nil
}

func run(cfg daemonConfig) error {
	// Initialize the input source
	src, err := input.NewGPIOSource(input.GPIOConfig{
		Chip:      cfg.Chip,
		Pin:       cfg.Pin,
		Pull:      cfg.Pull,
		ActiveLow: cfg.ActiveLow,
	})
	if err != nil {
		return fmt.Errorf("init input: %w", err)
	}
	defer src.Close()

	// Print state mode
	if cfg.PrintState {
		level, err := src.Read()
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		fmt.Printf("Button: %s\n", mqtt.StateString(level))
		return nil
	}

	// Initialize MQTT
	publisher := mqtt.NewRealPublisher(cfg.Broker)
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      cfg.Poll.Milliseconds(),
		DebounceMs:  cfg.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Pin:         cfg.Pin,
		Pull:        cfg.Pull.String(),
		Broker:      cfg.Broker,
		HTTPPort:    cfg.HTTPAddr,
		WSBroker:    cfg.WSBroker,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
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

	// Mode switches requested over HTTP are answered by the run loop.
	modeCh := make(chan modeRequest)

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, func(mode string) error {
			return requestMode(modeCh, mode)
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: poll=%v debounce=%v broker=%s heartbeat=%v mode=%s",
		cfg.Poll, cfg.Debounce, cfg.Broker, cfg.Heartbeat, cfg.Mode)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(src, publisher, publisher, tracker, loopConfig{
		Debounce:  cfg.Debounce,
		Heartbeat: cfg.Heartbeat,
		Mode:      cfg.Mode,
		Holds:     cfg.Holds,
		Sequences: cfg.Sequences,
	}, time.Now, ticker.C, sigCh, modeCh)
}

// loopConfig is the subset of configuration the run loop needs.
type loopConfig struct {
	Debounce  time.Duration
	Heartbeat time.Duration
	Mode      string
	Holds     []time.Duration
	Sequences []seqSpec
}

// edgeSample is a pushed level change from a watching source.
type edgeSample struct {
	level bool
	at    time.Time
}

// modeRequest asks the run loop to switch sampling mode and reports back.
type modeRequest struct {
	mode  string
	reply chan error
}

// requestMode hands a mode switch to the run loop and waits for the result.
func requestMode(modeCh chan<- modeRequest, mode string) error {
	req := modeRequest{mode: mode, reply: make(chan error, 1)}
	select {
	case modeCh <- req:
	case <-time.After(2 * time.Second):
		return errors.New("mode switch timed out")
	}
	select {
	case err := <-req.reply:
		return err
	case <-time.After(2 * time.Second):
		return errors.New("mode switch timed out")
	}
}

func runLoop(src input.Source, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, cfg loopConfig, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, modeReq <-chan modeRequest) error {
	startTime := now()
	eng := button.New(button.Options{
		DebounceWindow: cfg.Debounce,
		AssumeReleased: true,
	}, startTime)

	// procTime is the timestamp of the processing step in flight; hold and
	// sequence callbacks stamp their events with it.
	var procTime time.Time
	var derived []button.Event

	for _, d := range cfg.Holds {
		d := d
		err := eng.OnPressFor(d, func() {
			derived = append(derived, button.Event{Timestamp: procTime, Type: button.EventHold, Pressed: true, Hold: d})
		})
		if err != nil {
			return fmt.Errorf("register hold %v: %w", d, err)
		}
	}
	for _, s := range cfg.Sequences {
		s := s
		err := eng.OnSequence(s.Count, s.Window, func() {
			derived = append(derived, button.Event{Timestamp: procTime, Type: button.EventSequence, Count: s.Count})
		})
		if err != nil {
			return fmt.Errorf("register sequence %d:%v: %w", s.Count, s.Window, err)
		}
	}

	// Edge events arrive on the source's notification goroutine; the
	// channel hands them to this loop. Non-blocking send so a stalled loop
	// never blocks the notifier.
	edges := make(chan edgeSample, 16)

	// lastLevel is the most recent raw level seen in events mode. Ticks
	// re-feed it so a restarted debounce window can still elapse while the
	// line is steady between edges.
	var lastLevel bool

	mode := ""
	setMode := func(m string) error {
		if m == mode {
			return nil
		}
		switch m {
		case "events":
			w, ok := src.(input.Watcher)
			if !ok {
				return input.ErrEventsUnsupported
			}
			lvl, err := src.Read()
			if err != nil {
				return fmt.Errorf("read initial level: %w", err)
			}
			lastLevel = lvl
			err = w.Watch(func(level bool, at time.Time) {
				select {
				case edges <- edgeSample{level: level, at: at}:
				default:
					log.Printf("edge queue full, dropping sample")
				}
			})
			if err != nil {
				return err
			}
		case "poll":
			if mode == "events" {
				if w, ok := src.(input.Watcher); ok {
					if err := w.Unwatch(); err != nil {
						log.Printf("unwatch error: %v", err)
					}
				}
			}
		default:
			return fmt.Errorf("unknown mode %q", m)
		}
		mode = m
		if tracker != nil {
			tracker.SetMode(m)
		}
		log.Printf("sampling mode: %s", m)
		return nil
	}
	if err := setMode(cfg.Mode); err != nil {
		return fmt.Errorf("set mode %q: %w", cfg.Mode, err)
	}

	// afterStep publishes everything the step produced and refreshes the
	// status tracker, mirroring one poll tick.
	afterStep := func(t time.Time) {
		var events []button.Event
		if eng.WasPressed() {
			events = append(events, button.Event{Timestamp: t, Type: button.EventPress, Pressed: true})
		}
		if eng.WasReleased() {
			events = append(events, button.Event{Timestamp: t, Type: button.EventRelease})
		}
		events = append(events, derived...)
		derived = derived[:0]

		for _, event := range events {
			log.Printf("event: %s (state=%s)", event.Type, mqtt.StateString(event.Pressed))
			if err := publisher.Publish(event); err != nil {
				log.Printf("publish error: %v", err)
				// Don't crash on publish failure
			}
		}

		// Check for heartbeat
		if hb := eng.CheckHeartbeat(t, cfg.Heartbeat); hb != nil {
			log.Printf("heartbeat: uptime=%v presses=%d releases=%d holds=%d sequences=%d",
				hb.Uptime, hb.Counts.Presses, hb.Counts.Releases, hb.Counts.Holds, hb.Counts.Sequences)

			hbEvent := mqtt.SystemEvent{
				Timestamp: hb.Timestamp,
				Event:     "HEARTBEAT",
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				tracker.Update(eng.IsPressed(), eng.Ready(), eng.Counts())
				snap := tracker.Snapshot()
				hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}

		// Update status tracker for HTTP consumers
		if tracker != nil {
			tracker.Update(eng.IsPressed(), eng.Ready(), eng.Counts())
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
		}
	}

	// handleEdge clamps the pushed timestamp to the last processed step,
	// since edges are stamped on the notifier goroutine and may be dequeued
	// after a later tick. The engine's clock never runs backwards.
	handleEdge := func(e edgeSample) {
		at := e.at
		if at.Before(procTime) {
			at = procTime
		}
		procTime = at
		lastLevel = e.level
		eng.Sample(e.level, at)
		afterStep(at)
	}

	for {
		// Pending edges take priority over ticks so a pushed sample is
		// never processed after a later refresh.
		if mode == "events" {
			select {
			case e := <-edges:
				handleEdge(e)
				continue
			default:
			}
		}

		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case e := <-edges:
			if mode != "events" {
				// Stale edge delivered around a mode switch.
				continue
			}
			handleEdge(e)

		case <-tick:
			t := now()
			procTime = t
			if mode == "events" {
				// No edge arrives while the line is steady: re-feed the
				// last level so a restarted debounce window can elapse
				// and long-holds still fire.
				eng.Sample(lastLevel, t)
			} else {
				raw, err := src.Read()
				if err != nil {
					log.Printf("input read error: %v", err)
					continue
				}
				eng.Sample(raw, t)
			}
			afterStep(t)

		case req := <-modeReq:
			req.reply <- setMode(req.mode)
		}
	}
}

// parseHolds parses the -hold flag: a comma-separated list of durations.
func parseHolds(s string) ([]time.Duration, error) {
	if s == "" {
		return nil, nil
	}
	var out []time.Duration
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, fmt.Errorf("hold %q: %w", part, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("hold %q: duration must be positive", part)
		}
		out = append(out, d)
	}
	return out, nil
}

// parseSequences parses the -sequence flag: comma-separated count:window
// entries, e.g. "2:400ms,3:1s".
func parseSequences(s string) ([]seqSpec, error) {
	if s == "" {
		return nil, nil
	}
	var out []seqSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		countStr, windowStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("sequence %q: want count:window", part)
		}
		count, err := strconv.ParseUint(countStr, 10, 32)
		if err != nil || count == 0 {
			return nil, fmt.Errorf("sequence %q: invalid count", part)
		}
		window, err := time.ParseDuration(windowStr)
		if err != nil {
			return nil, fmt.Errorf("sequence %q: %w", part, err)
		}
		if window <= 0 {
			return nil, fmt.Errorf("sequence %q: window must be positive", part)
		}
		out = append(out, seqSpec{Count: uint(count), Window: window})
	}
	return out, nil
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

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
