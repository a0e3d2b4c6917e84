package sim

import (
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"

	"aquadash/internal/model"
	"aquadash/internal/realtime"
)

// Telemetry synthesizes sensor readings on a fixed interval, runs the
// auto pump controller against the configured thresholds, and pushes
// the resulting updates through the hub.
type Telemetry struct {
	store    *Store
	hub      *Hub
	interval time.Duration
	rng      *rand.Rand
	rngMu    sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once

	now func() time.Time
}

func NewTelemetry(store *Store, hub *Hub, interval time.Duration) *Telemetry {
	return &Telemetry{
		store:    store,
		hub:      hub,
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		stop:     make(chan struct{}),
		now:      time.Now,
	}
}

func (t *Telemetry) Start() {
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.Tick()
			case <-t.stop:
				return
			}
		}
	}()
}

func (t *Telemetry) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Tick produces one reading per device and applies auto pump control.
func (t *Telemetry) Tick() {
	now := t.now()
	for _, dev := range t.store.Devices() {
		reading := t.synthesize(dev.ID, now)

		pump, _ := t.store.Pump(dev.ID)
		if pump.Mode == model.PumpModeAuto {
			if changed, next := t.autoControl(dev.ID, reading.WaterLevel, pump, now); changed {
				pump = next
				t.broadcastPump(pump, now)
			}
		}
		reading.PumpStatus = pump.Status()

		t.store.AppendReading(reading)
		t.broadcast(dev.ID, realtime.NewSensorUpdate(reading))
	}
}

// synthesize random-walks each metric from the previous reading so the
// charts look continuous rather than like noise.
func (t *Telemetry) synthesize(deviceID int, now time.Time) model.Reading {
	prev, ok := t.store.Latest(deviceID)
	if !ok {
		prev = model.Reading{
			DeviceID:     deviceID,
			WaterLevel:   15 + t.randFloat()*70,
			Temperature:  18 + t.randFloat()*10,
			Humidity:     40 + t.randFloat()*30,
			SoilMoisture: 30 + t.randFloat()*40,
		}
	}

	pump, _ := t.store.Pump(deviceID)
	drift := t.randFloat()*4 - 3 // draining faster than it refills
	if pump.Running {
		drift = 2 + t.randFloat()*3
	}

	return model.Reading{
		DeviceID:     deviceID,
		WaterLevel:   clamp(prev.WaterLevel+drift, 0, 100),
		Temperature:  clamp(prev.Temperature+t.randFloat()-0.5, 5, 45),
		Humidity:     clamp(prev.Humidity+t.randFloat()*2-1, 0, 100),
		SoilMoisture: clamp(prev.SoilMoisture+t.randFloat()*2-1, 0, 100),
		Timestamp:    now,
	}
}

func (t *Telemetry) autoControl(deviceID int, level float64, pump model.PumpState, now time.Time) (bool, model.PumpState) {
	th, ok := t.store.Thresholds(deviceID)
	if !ok {
		return false, pump
	}
	switch {
	case !pump.Running && level < th.LowerBound:
		next, _ := t.store.SetPump(deviceID, true, model.PumpModeAuto, now)
		return true, next
	case pump.Running && level > th.UpperBound:
		next, _ := t.store.SetPump(deviceID, false, model.PumpModeAuto, now)
		return true, next
	}
	return false, pump
}

func (t *Telemetry) broadcastPump(pump model.PumpState, now time.Time) {
	t.broadcast(pump.DeviceID, realtime.NewPumpStatus(pump, now))
}

func (t *Telemetry) broadcast(deviceID int, message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("telemetry: marshal broadcast: %v", err)
		return
	}
	t.hub.Broadcast(realtime.TopicForDevice(deviceID), payload)
}

func (t *Telemetry) randFloat() float64 {
	t.rngMu.Lock()
	defer t.rngMu.Unlock()
	return t.rng.Float64()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
