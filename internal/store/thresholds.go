package store

import (
	"context"
	"sync"

	"aquadash/internal/model"
)

type ThresholdAPI interface {
	Thresholds(ctx context.Context, deviceID int) (model.Threshold, error)
	UpdateThresholds(ctx context.Context, deviceID int, t model.Threshold) (model.Threshold, error)
}

// Thresholds caches per-device alert bounds. Admin writes and pushed
// threshold_updated messages converge on Apply; fetches are tagged with
// a per-device sequence so a stale response never overwrites a newer
// push.
type Thresholds struct {
	mu        sync.RWMutex
	api       ThresholdAPI
	byDevice  map[int]model.Threshold
	seq       map[int]int
	loading   bool
	lastError string
}

func NewThresholds(api ThresholdAPI) *Thresholds {
	return &Thresholds{api: api, byDevice: make(map[int]model.Threshold), seq: make(map[int]int)}
}

func (t *Thresholds) Fetch(ctx context.Context, deviceID int) Result {
	t.setLoading(true)
	defer t.setLoading(false)

	t.mu.Lock()
	t.seq[deviceID]++
	seq := t.seq[deviceID]
	t.mu.Unlock()

	threshold, err := t.api.Thresholds(ctx, deviceID)
	if err != nil {
		t.setError("failed to fetch thresholds")
		return Result{Error: "failed to fetch thresholds"}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seq[deviceID] != seq {
		// A push or a newer fetch superseded this response.
		return Result{Success: true}
	}
	t.applyLocked(threshold)
	return Result{Success: true}
}

// Update pushes new bounds to the collaborator (admin only, enforced
// server-side) and merges the confirmed record.
func (t *Thresholds) Update(ctx context.Context, deviceID int, threshold model.Threshold) Result {
	t.setLoading(true)
	defer t.setLoading(false)

	threshold.DeviceID = deviceID
	updated, err := t.api.UpdateThresholds(ctx, deviceID, threshold)
	if err != nil {
		t.setError("failed to update thresholds")
		return Result{Error: "failed to update thresholds"}
	}
	t.Apply(updated)
	return Result{Success: true}
}

func (t *Thresholds) Apply(threshold model.Threshold) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyLocked(threshold)
}

func (t *Thresholds) applyLocked(threshold model.Threshold) {
	t.seq[threshold.DeviceID]++
	t.byDevice[threshold.DeviceID] = threshold
}

func (t *Thresholds) Get(deviceID int) (model.Threshold, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	threshold, ok := t.byDevice[deviceID]
	return threshold, ok
}

func (t *Thresholds) Remove(deviceID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byDevice, deviceID)
}

func (t *Thresholds) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byDevice = make(map[int]model.Threshold)
	t.seq = make(map[int]int)
	t.lastError = ""
}

func (t *Thresholds) Loading() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loading
}

func (t *Thresholds) LastError() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastError
}

func (t *Thresholds) setLoading(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loading = v
}

func (t *Thresholds) setError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastError = msg
}
