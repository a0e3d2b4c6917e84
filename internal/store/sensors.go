package store

import (
	"context"
	"sync"

	"aquadash/internal/model"
)

// HistoryCap bounds the per-device reading log; the oldest entry is
// evicted first.
const HistoryCap = 500

type ReadingAPI interface {
	Current(ctx context.Context, deviceID int) (model.Reading, error)
	History(ctx context.Context, deviceID, limit int) ([]model.Reading, error)
	StartPump(ctx context.Context, deviceID int) (model.PumpState, error)
	StopPump(ctx context.Context, deviceID int) (model.PumpState, error)
}

// Sensors holds the latest reading, the capped historical log, and the
// pump state per device. Every merge bumps a per-device sequence so a
// slow fetch response cannot overwrite state that arrived after it.
type Sensors struct {
	mu        sync.RWMutex
	api       ReadingAPI
	cap       int
	latest    map[int]model.Reading
	history   map[int][]model.Reading
	pumps     map[int]model.PumpState
	seq       map[int]int
	lastError string
}

func NewSensors(api ReadingAPI) *Sensors {
	return &Sensors{
		api:     api,
		cap:     HistoryCap,
		latest:  make(map[int]model.Reading),
		history: make(map[int][]model.Reading),
		pumps:   make(map[int]model.PumpState),
		seq:     make(map[int]int),
	}
}

// beginFetch marks the start of a request; the returned sequence is
// compared on completion, and any merge in between invalidates it.
func (s *Sensors) beginFetch(deviceID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[deviceID]++
	return s.seq[deviceID]
}

func (s *Sensors) Fetch(ctx context.Context, deviceID int) Result {
	seq := s.beginFetch(deviceID)

	reading, err := s.api.Current(ctx, deviceID)
	if err != nil {
		s.setError("failed to fetch sensor data")
		return Result{Error: "failed to fetch sensor data"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq[deviceID] != seq {
		// A newer reading or fetch superseded this response.
		return Result{Success: true}
	}
	s.applyLocked(reading)
	return Result{Success: true}
}

// FetchHistory replaces the device's historical window with the
// server's. A response for a superseded request is discarded, so live
// readings merged while it was in flight are never lost.
func (s *Sensors) FetchHistory(ctx context.Context, deviceID int) Result {
	seq := s.beginFetch(deviceID)

	readings, err := s.api.History(ctx, deviceID, s.cap)
	if err != nil {
		s.setError("failed to fetch history")
		return Result{Error: "failed to fetch history"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq[deviceID] != seq {
		return Result{Success: true}
	}
	s.seq[deviceID]++
	if len(readings) > s.cap {
		readings = readings[len(readings)-s.cap:]
	}
	s.history[deviceID] = append([]model.Reading(nil), readings...)
	return Result{Success: true}
}

// Apply merges one reading: it becomes the latest and is appended to the
// historical log, evicting the oldest entry past the cap. Both the fetch
// path and the live-update path land here.
func (s *Sensors) Apply(r model.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(r)
}

func (s *Sensors) applyLocked(r model.Reading) {
	s.seq[r.DeviceID]++
	s.latest[r.DeviceID] = r

	h := s.history[r.DeviceID]
	if len(h) >= s.cap {
		h = h[1:]
	}
	s.history[r.DeviceID] = append(h, r)
}

// ApplyPump merges a pump state change from either the REST path or a
// pump_status push.
func (s *Sensors) ApplyPump(p model.PumpState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pumps[p.DeviceID] = p
}

func (s *Sensors) StartPump(ctx context.Context, deviceID int) Result {
	state, err := s.api.StartPump(ctx, deviceID)
	if err != nil {
		s.setError("failed to start pump")
		return Result{Error: "failed to start pump"}
	}
	s.ApplyPump(state)
	return Result{Success: true}
}

func (s *Sensors) StopPump(ctx context.Context, deviceID int) Result {
	state, err := s.api.StopPump(ctx, deviceID)
	if err != nil {
		s.setError("failed to stop pump")
		return Result{Error: "failed to stop pump"}
	}
	s.ApplyPump(state)
	return Result{Success: true}
}

func (s *Sensors) Latest(deviceID int) (model.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.latest[deviceID]
	return r, ok
}

func (s *Sensors) History(deviceID int) []model.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.history[deviceID]
	result := make([]model.Reading, len(h))
	copy(result, h)
	return result
}

func (s *Sensors) Pump(deviceID int) (model.PumpState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pumps[deviceID]
	return p, ok
}

func (s *Sensors) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = make(map[int]model.Reading)
	s.history = make(map[int][]model.Reading)
	s.pumps = make(map[int]model.PumpState)
	s.seq = make(map[int]int)
	s.lastError = ""
}

func (s *Sensors) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

func (s *Sensors) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}
