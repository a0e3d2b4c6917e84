package store

import (
	"context"
	"sort"
	"sync"

	"aquadash/internal/api"
	"aquadash/internal/model"
)

// Result is the store-boundary outcome handed to the UI layer. Failures
// carry a displayable message; the cached state is retained.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type DeviceAPI interface {
	Devices(ctx context.Context) ([]model.Device, error)
	RegisterDevice(ctx context.Context, name, location string) (api.RegisterDeviceResponse, error)
	DeleteDevice(ctx context.Context, deviceID int) error
}

// Devices caches the server's device records keyed by id. Admin actions
// and live-update callbacks both land in Apply, so the cache only ever
// holds one record shape.
type Devices struct {
	mu        sync.RWMutex
	api       DeviceAPI
	byID      map[int]model.Device
	loading   bool
	lastError string
	fetchSeq  int
}

func NewDevices(api DeviceAPI) *Devices {
	return &Devices{api: api, byID: make(map[int]model.Device)}
}

// Fetch repopulates the cache. Responses for superseded fetches are
// discarded so a slow request cannot overwrite newer state.
func (d *Devices) Fetch(ctx context.Context) Result {
	d.mu.Lock()
	d.loading = true
	d.lastError = ""
	d.fetchSeq++
	seq := d.fetchSeq
	d.mu.Unlock()

	devices, err := d.api.Devices(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != d.fetchSeq {
		return Result{Success: true}
	}
	d.loading = false
	if err != nil {
		d.lastError = "failed to fetch devices"
		return Result{Error: d.lastError}
	}

	byID := make(map[int]model.Device, len(devices))
	for _, dev := range devices {
		byID[dev.ID] = dev
	}
	d.byID = byID
	return Result{Success: true}
}

// Register creates a device through the collaborator and merges it in.
func (d *Devices) Register(ctx context.Context, name, location string) Result {
	resp, err := d.api.RegisterDevice(ctx, name, location)
	if err != nil {
		d.setError("failed to register device")
		return Result{Error: "failed to register device"}
	}
	d.Apply(resp.Device)
	return Result{Success: true}
}

func (d *Devices) Delete(ctx context.Context, deviceID int) Result {
	if err := d.api.DeleteDevice(ctx, deviceID); err != nil {
		d.setError("failed to delete device")
		return Result{Error: "failed to delete device"}
	}
	d.Remove(deviceID)
	return Result{Success: true}
}

// Apply is the single merge point for device records.
func (d *Devices) Apply(dev model.Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[dev.ID] = dev
}

func (d *Devices) Remove(deviceID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byID, deviceID)
}

func (d *Devices) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID = make(map[int]model.Device)
	d.lastError = ""
}

func (d *Devices) Get(deviceID int) (model.Device, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dev, ok := d.byID[deviceID]
	return dev, ok
}

func (d *Devices) List() []model.Device {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]model.Device, 0, len(d.byID))
	for _, dev := range d.byID {
		result = append(result, dev)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (d *Devices) Loading() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loading
}

func (d *Devices) LastError() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastError
}

func (d *Devices) setError(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastError = msg
}
