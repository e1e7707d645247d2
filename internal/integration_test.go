package internal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/button-sensor/internal/button"
	"github.com/sweeney/button-sensor/internal/input"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/status"
)

// simLoop drives an engine from scripted samples the way the daemon's poll
// loop does: sample, then publish edge events followed by derived events.
type simLoop struct {
	eng     *button.Engine
	now     time.Time
	derived []button.Event
}

func newSimLoop(opts button.Options, start time.Time) *simLoop {
	return &simLoop{eng: button.New(opts, start)}
}

func (s *simLoop) watchHold(t *testing.T, d time.Duration) {
	t.Helper()
	err := s.eng.OnPressFor(d, func() {
		s.derived = append(s.derived, button.Event{Timestamp: s.now, Type: button.EventHold, Pressed: true, Hold: d})
	})
	if err != nil {
		t.Fatalf("register hold %v: %v", d, err)
	}
}

func (s *simLoop) watchSequence(t *testing.T, count uint, window time.Duration) {
	t.Helper()
	err := s.eng.OnSequence(count, window, func() {
		s.derived = append(s.derived, button.Event{Timestamp: s.now, Type: button.EventSequence, Count: count})
	})
	if err != nil {
		t.Fatalf("register sequence %d:%v: %v", count, window, err)
	}
}

func (s *simLoop) step(t *testing.T, pub mqtt.Publisher, raw bool, now time.Time) {
	t.Helper()
	s.now = now
	s.eng.Sample(raw, now)

	var events []button.Event
	if s.eng.WasPressed() {
		events = append(events, button.Event{Timestamp: now, Type: button.EventPress, Pressed: true})
	}
	if s.eng.WasReleased() {
		events = append(events, button.Event{Timestamp: now, Type: button.EventRelease})
	}
	events = append(events, s.derived...)
	s.derived = s.derived[:0]

	for _, event := range events {
		if err := pub.Publish(event); err != nil {
			t.Fatalf("publish error: %v", err)
		}
	}
}

// TestIntegrationFullFlow tests the complete flow from input to MQTT using fakes.
func TestIntegrationFullFlow(t *testing.T) {
	// Simulate: idle -> press and hold past 250ms -> release -> quick second
	// click completing a double-click sequence.
	samples := []bool{
		// Idle baseline
		false, false, false, false, // t=0..300ms
		// First press, held long enough for the hold watch
		true, true, true, true, // t=400..700ms (PRESS confirmed at 700ms)
		true, true, true, true, // t=800..1100ms (HOLD at 1000ms)
		// Release
		false, false, false, false, // t=1200..1500ms (RELEASE at 1500ms)
		// Second click
		true, true, true, true, // t=1600..1900ms (PRESS at 1900ms)
		false, false, false, false, // t=2000..2300ms (RELEASE + SEQUENCE at 2300ms)
	}

	src := input.NewFakeSource(samples)
	publisher := mqtt.NewFakePublisher()
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	loop := newSimLoop(button.Options{
		DebounceWindow: 250 * time.Millisecond,
		AssumeReleased: true,
	}, startTime)
	loop.watchHold(t, 250*time.Millisecond)
	loop.watchSequence(t, 2, 2*time.Second)

	pollInterval := 100 * time.Millisecond

	for i := range samples {
		raw, err := src.Read()
		if err != nil {
			t.Fatalf("sample %d: input read error: %v", i, err)
		}
		loop.step(t, publisher, raw, startTime.Add(time.Duration(i)*pollInterval))
	}

	wantTypes := []button.EventType{
		button.EventPress,
		button.EventHold,
		button.EventRelease,
		button.EventPress,
		button.EventRelease,
		button.EventSequence,
	}
	if len(publisher.Events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d", len(wantTypes), len(publisher.Events))
	}
	for i, want := range wantTypes {
		if publisher.Events[i].Type != want {
			t.Errorf("event %d: expected %s, got %s", i, want, publisher.Events[i].Type)
		}
	}

	// Transition timestamps include the debounce window.
	if want := startTime.Add(700 * time.Millisecond); !publisher.Events[0].Timestamp.Equal(want) {
		t.Errorf("first PRESS: expected %v, got %v", want, publisher.Events[0].Timestamp)
	}
	if want := startTime.Add(1500 * time.Millisecond); !publisher.Events[2].Timestamp.Equal(want) {
		t.Errorf("first RELEASE: expected %v, got %v", want, publisher.Events[2].Timestamp)
	}
	if publisher.Events[1].Hold != 250*time.Millisecond {
		t.Errorf("HOLD threshold: expected 250ms, got %v", publisher.Events[1].Hold)
	}
	if publisher.Events[5].Count != 2 {
		t.Errorf("SEQUENCE count: expected 2, got %d", publisher.Events[5].Count)
	}

	// Verify JSON payloads
	for i, payload := range publisher.Payloads {
		var parsed mqtt.Payload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			t.Errorf("payload %d: invalid JSON: %v", i, err)
		}
		if parsed.Button.Timestamp == "" {
			t.Errorf("payload %d: missing timestamp", i)
		}
		if parsed.Button.Event == "" {
			t.Errorf("payload %d: missing event", i)
		}
	}
}

// TestIntegrationNoEventsDuringSettling verifies the first confirmed level
// never produces an event when no initial level was assumed.
func TestIntegrationNoEventsDuringSettling(t *testing.T) {
	samples := []bool{true, true, true, true}

	src := input.NewFakeSource(samples)
	publisher := mqtt.NewFakePublisher()
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	loop := newSimLoop(button.Options{DebounceWindow: 250 * time.Millisecond}, startTime)

	for i := range samples {
		raw, _ := src.Read()
		loop.step(t, publisher, raw, startTime.Add(time.Duration(i)*100*time.Millisecond))
	}

	if len(publisher.Events) != 0 {
		t.Errorf("expected no events while settling, got %d", len(publisher.Events))
	}
}

// TestIntegrationBounceRejection verifies bounces shorter than the debounce
// window are ignored.
func TestIntegrationBounceRejection(t *testing.T) {
	samples := []bool{
		false, false, false,
		true, // single bounced sample
		false, false, false,
	}

	src := input.NewFakeSource(samples)
	publisher := mqtt.NewFakePublisher()
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	loop := newSimLoop(button.Options{
		DebounceWindow: 250 * time.Millisecond,
		AssumeReleased: true,
	}, startTime)

	for i := range samples {
		raw, _ := src.Read()
		loop.step(t, publisher, raw, startTime.Add(time.Duration(i)*100*time.Millisecond))
	}

	if len(publisher.Events) != 0 {
		t.Errorf("expected no events for bounce, got %d", len(publisher.Events))
	}
}

// TestIntegrationPayloadFormat verifies the exact JSON structure.
func TestIntegrationPayloadFormat(t *testing.T) {
	event := button.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      button.EventPress,
		Pressed:   true,
	}

	publisher := mqtt.NewFakePublisher()
	publisher.Publish(event)

	expected := `{"button":{"timestamp":"2026-02-02T22:18:12Z","event":"PRESS","state":"PRESSED"}}`

	if string(publisher.Payloads[0]) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(publisher.Payloads[0]), expected)
	}
}

// TestIntegrationHoldPayloadFormat verifies hold_ms appears for HOLD events.
func TestIntegrationHoldPayloadFormat(t *testing.T) {
	event := button.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 14, 0, time.UTC),
		Type:      button.EventHold,
		Pressed:   true,
		Hold:      2 * time.Second,
	}

	publisher := mqtt.NewFakePublisher()
	publisher.Publish(event)

	expected := `{"button":{"timestamp":"2026-02-02T22:18:14Z","event":"HOLD","state":"PRESSED","hold_ms":2000}}`

	if string(publisher.Payloads[0]) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(publisher.Payloads[0]), expected)
	}
}

// TestIntegrationSequencePayloadFormat verifies count appears for SEQUENCE events.
func TestIntegrationSequencePayloadFormat(t *testing.T) {
	event := button.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 15, 0, time.UTC),
		Type:      button.EventSequence,
		Count:     2,
	}

	publisher := mqtt.NewFakePublisher()
	publisher.Publish(event)

	expected := `{"button":{"timestamp":"2026-02-02T22:18:15Z","event":"SEQUENCE","state":"RELEASED","count":2}}`

	if string(publisher.Payloads[0]) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(publisher.Payloads[0]), expected)
	}
}

// TestIntegrationShutdownEventSIGTERM verifies shutdown event on SIGTERM.
func TestIntegrationShutdownEventSIGTERM(t *testing.T) {
	publisher := mqtt.NewFakePublisher()

	event := mqtt.SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 15, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
		Retained:  true,
	}

	if err := publisher.PublishSystem(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(publisher.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(publisher.SystemEvents))
	}
	if publisher.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN event, got %s", publisher.SystemEvents[0].Event)
	}
	if publisher.SystemEvents[0].Reason != "SIGTERM" {
		t.Errorf("expected SIGTERM reason, got %s", publisher.SystemEvents[0].Reason)
	}

	var parsed mqtt.SystemPayload
	if err := json.Unmarshal(publisher.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Event != "SHUTDOWN" {
		t.Errorf("payload event: expected SHUTDOWN, got %s", parsed.System.Event)
	}
	if parsed.System.Timestamp != "2026-02-03T15:30:00Z" {
		t.Errorf("payload timestamp: expected 2026-02-03T15:30:00Z, got %s", parsed.System.Timestamp)
	}
}

// TestIntegrationShutdownPayloadFormat verifies the exact JSON structure for
// shutdown events.
func TestIntegrationShutdownPayloadFormat(t *testing.T) {
	publisher := mqtt.NewFakePublisher()

	event := mqtt.SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	publisher.PublishSystem(event)

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`

	if string(publisher.SystemPayloads[0]) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(publisher.SystemPayloads[0]), expected)
	}
}

// TestIntegrationShutdownPublishFailureLogsButContinues verifies graceful
// handling of publish errors.
func TestIntegrationShutdownPublishFailureLogsButContinues(t *testing.T) {
	publisher := mqtt.NewFakePublisher()
	publisher.PublishSystemError = errors.New("broker disconnected")

	event := mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	err := publisher.PublishSystem(event)
	if err == nil {
		t.Error("expected error from publish")
	}
	if len(publisher.SystemEvents) != 0 {
		t.Errorf("expected no system events on error, got %d", len(publisher.SystemEvents))
	}
}

// TestIntegrationStartupStatusEvent verifies the startup event carries a full
// status snapshot built from the tracker.
func TestIntegrationStartupStatusEvent(t *testing.T) {
	startTime := time.Date(2026, 2, 3, 19, 5, 51, 0, time.UTC)
	tracker := status.NewTracker(startTime, status.Config{
		PollMs:      10,
		DebounceMs:  35,
		HeartbeatMs: 900000,
		Pin:         17,
		Pull:        "up",
		Broker:      "tcp://192.168.1.200:1883",
		HTTPPort:    ":80",
	})

	snap := tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}

	publisher := mqtt.NewFakePublisher()
	if err := publisher.PublishSystem(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(publisher.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "STARTUP" {
		t.Errorf("payload event: expected STARTUP, got %s", parsed.Status.Event)
	}
	if parsed.Status.Button != "UNKNOWN" {
		t.Errorf("payload button: expected UNKNOWN before any sample, got %s", parsed.Status.Button)
	}
	if parsed.Status.Config.DebounceMs != 35 {
		t.Errorf("payload debounce_ms: expected 35, got %d", parsed.Status.Config.DebounceMs)
	}
	if parsed.Status.Config.Pin != 17 {
		t.Errorf("payload pin: expected 17, got %d", parsed.Status.Config.Pin)
	}
	if parsed.Status.Config.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("payload broker: got %s", parsed.Status.Config.Broker)
	}
}

// TestIntegrationHeartbeatAfterEvents verifies heartbeat data and the status
// payload reflect counts accumulated by the engine.
func TestIntegrationHeartbeatAfterEvents(t *testing.T) {
	samples := []bool{
		false, false, false, false,
		true, true, true, true, // press
		false, false, false, false, // release
	}

	src := input.NewFakeSource(samples)
	publisher := mqtt.NewFakePublisher()
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	loop := newSimLoop(button.Options{
		DebounceWindow: 250 * time.Millisecond,
		AssumeReleased: true,
	}, startTime)

	for i := range samples {
		raw, _ := src.Read()
		loop.step(t, publisher, raw, startTime.Add(time.Duration(i)*100*time.Millisecond))
	}

	if len(publisher.Events) != 2 {
		t.Fatalf("expected 2 button events, got %d", len(publisher.Events))
	}

	heartbeatTime := startTime.Add(15 * time.Minute)
	hb := loop.eng.CheckHeartbeat(heartbeatTime, 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat data")
	}
	if hb.Counts.Presses != 1 || hb.Counts.Releases != 1 {
		t.Errorf("heartbeat counts: got %+v", hb.Counts)
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("heartbeat uptime: expected 15m, got %v", hb.Uptime)
	}

	tracker := status.NewTracker(startTime, status.Config{Broker: "tcp://192.168.1.200:1883"})
	tracker.Update(loop.eng.IsPressed(), loop.eng.Ready(), loop.eng.Counts())

	event := mqtt.SystemEvent{
		Timestamp:  hb.Timestamp,
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", ""),
	}
	if err := publisher.PublishSystem(event); err != nil {
		t.Fatalf("heartbeat publish error: %v", err)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(publisher.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("payload event: expected HEARTBEAT, got %s", parsed.Status.Event)
	}
	if parsed.Status.Counts.Presses != 1 {
		t.Errorf("payload presses: expected 1, got %d", parsed.Status.Counts.Presses)
	}
	if parsed.Status.Button != "RELEASED" {
		t.Errorf("payload button: expected RELEASED, got %s", parsed.Status.Button)
	}
}
