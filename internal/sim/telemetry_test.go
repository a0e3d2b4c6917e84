package sim

import (
	"encoding/json"
	"testing"
	"time"

	"aquadash/internal/model"
	"aquadash/internal/realtime"
)

func collectBroadcasts(t *testing.T, hub *Hub, topic string) *recordWriter {
	t.Helper()
	w := &recordWriter{}
	hub.Subscribe(topic, &Subscriber{Writer: w})
	return w
}

func kinds(t *testing.T, w *recordWriter) []string {
	t.Helper()
	var result []string
	for _, raw := range w.messages {
		var env realtime.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		result = append(result, env.Type)
	}
	return result
}

func TestTick_BroadcastsSensorUpdatePerDevice(t *testing.T) {
	s := newEmptyStore(t)
	hub := NewHub()
	tel := NewTelemetry(s, hub, time.Second)

	dev := s.Devices()[0]
	w := collectBroadcasts(t, hub, realtime.TopicForDevice(dev.ID))

	tel.Tick()

	if _, ok := s.Latest(dev.ID); !ok {
		t.Fatalf("expected a reading recorded")
	}
	got := kinds(t, w)
	found := false
	for _, k := range got {
		if k == realtime.MessageSensorUpdate {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected sensor_update broadcast, got %v", got)
	}
}

func TestTick_AutoStartsPumpBelowLowerBound(t *testing.T) {
	s := newEmptyStore(t)
	hub := NewHub()
	tel := NewTelemetry(s, hub, time.Second)

	dev := s.Devices()[0]
	// The walk moves at most a few points per tick, so a reading this far
	// under the lower bound stays under it on the next tick.
	s.AppendReading(model.Reading{DeviceID: dev.ID, WaterLevel: 2, Timestamp: time.Now()})
	w := collectBroadcasts(t, hub, realtime.TopicForDevice(dev.ID))

	tel.Tick()

	pump, _ := s.Pump(dev.ID)
	if !pump.Running || pump.Mode != model.PumpModeAuto {
		t.Fatalf("expected auto pump start, got %+v", pump)
	}
	got := kinds(t, w)
	found := false
	for _, k := range got {
		if k == realtime.MessagePumpStatus {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected pump_status broadcast, got %v", got)
	}

	latest, _ := s.Latest(dev.ID)
	if latest.PumpStatus != "running" {
		t.Fatalf("expected reading to carry pump status, got %q", latest.PumpStatus)
	}
}

func TestTick_AutoStopsPumpAboveUpperBound(t *testing.T) {
	s := newEmptyStore(t)
	hub := NewHub()
	tel := NewTelemetry(s, hub, time.Second)

	dev := s.Devices()[0]
	s.SetPump(dev.ID, true, model.PumpModeAuto, time.Now())
	s.AppendReading(model.Reading{DeviceID: dev.ID, WaterLevel: 98, Timestamp: time.Now()})

	tel.Tick()

	pump, _ := s.Pump(dev.ID)
	if pump.Running {
		t.Fatalf("expected auto pump stop, got %+v", pump)
	}
}

func TestTick_LeavesManualPumpAlone(t *testing.T) {
	s := newEmptyStore(t)
	hub := NewHub()
	tel := NewTelemetry(s, hub, time.Second)

	dev := s.Devices()[0]
	s.SetPump(dev.ID, false, model.PumpModeManual, time.Now())
	s.AppendReading(model.Reading{DeviceID: dev.ID, WaterLevel: 2, Timestamp: time.Now()})

	tel.Tick()

	pump, _ := s.Pump(dev.ID)
	if pump.Running {
		t.Fatalf("manual mode must not be overridden by the controller")
	}
}

func TestStartStop(t *testing.T) {
	s := newEmptyStore(t)
	tel := NewTelemetry(s, NewHub(), time.Millisecond)

	tel.Start()
	time.Sleep(20 * time.Millisecond)
	tel.Stop()
	tel.Stop() // idempotent

	if _, ok := s.Latest(s.Devices()[0].ID); !ok {
		t.Fatalf("expected ticker to produce readings")
	}
}
