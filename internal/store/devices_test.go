package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"aquadash/internal/api"
	"aquadash/internal/model"
)

type fakeDeviceAPI struct {
	devices []model.Device
	err     error
	nextID  int
}

func (f *fakeDeviceAPI) Devices(context.Context) ([]model.Device, error) {
	return f.devices, f.err
}

func (f *fakeDeviceAPI) RegisterDevice(_ context.Context, name, location string) (api.RegisterDeviceResponse, error) {
	if f.err != nil {
		return api.RegisterDeviceResponse{}, f.err
	}
	f.nextID++
	return api.RegisterDeviceResponse{
		Device:    model.Device{ID: f.nextID, Name: name, Location: location, Status: model.DeviceOffline},
		DeviceKey: "key",
	}, nil
}

func (f *fakeDeviceAPI) DeleteDevice(context.Context, int) error { return f.err }

func TestDevices_FetchPopulatesCache(t *testing.T) {
	f := &fakeDeviceAPI{devices: []model.Device{
		{ID: 2, Name: "tank-b"},
		{ID: 1, Name: "tank-a"},
	}}
	d := NewDevices(f)

	if res := d.Fetch(context.Background()); !res.Success {
		t.Fatalf("Fetch failed: %q", res.Error)
	}

	list := d.List()
	if len(list) != 2 || list[0].ID != 1 || list[1].ID != 2 {
		t.Fatalf("unexpected device list: %+v", list)
	}
	if _, ok := d.Get(1); !ok {
		t.Fatalf("expected device 1 cached")
	}
}

func TestDevices_FetchErrorRetainsCache(t *testing.T) {
	f := &fakeDeviceAPI{devices: []model.Device{{ID: 1, Name: "tank-a"}}}
	d := NewDevices(f)
	if res := d.Fetch(context.Background()); !res.Success {
		t.Fatalf("Fetch failed: %q", res.Error)
	}

	f.err = errors.New("boom")
	res := d.Fetch(context.Background())
	if res.Success {
		t.Fatalf("expected failure")
	}
	if d.LastError() == "" {
		t.Fatalf("expected error surfaced on the store")
	}
	if _, ok := d.Get(1); !ok {
		t.Fatalf("expected prior cache retained")
	}
}

type slowDeviceAPI struct {
	calls   int32
	release chan struct{}
	first   []model.Device
	second  []model.Device
}

func (f *slowDeviceAPI) Devices(context.Context) ([]model.Device, error) {
	if atomic.AddInt32(&f.calls, 1) == 1 {
		<-f.release
		return f.first, nil
	}
	return f.second, nil
}

func (f *slowDeviceAPI) RegisterDevice(context.Context, string, string) (api.RegisterDeviceResponse, error) {
	return api.RegisterDeviceResponse{}, nil
}

func (f *slowDeviceAPI) DeleteDevice(context.Context, int) error { return nil }

func TestDevices_StaleResponseDiscarded(t *testing.T) {
	f := &slowDeviceAPI{
		release: make(chan struct{}),
		first:   []model.Device{{ID: 1, Name: "stale"}},
		second:  []model.Device{{ID: 1, Name: "fresh"}},
	}
	d := NewDevices(f)

	done := make(chan Result, 1)
	go func() { done <- d.Fetch(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&f.calls) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first fetch never started")
		}
		time.Sleep(time.Millisecond)
	}

	if res := d.Fetch(context.Background()); !res.Success {
		t.Fatalf("second fetch failed: %q", res.Error)
	}

	close(f.release)
	<-done

	dev, ok := d.Get(1)
	if !ok || dev.Name != "fresh" {
		t.Fatalf("stale response overwrote newer state: %+v", dev)
	}
}

func TestDevices_RegisterAndDeleteConvergeOnCache(t *testing.T) {
	f := &fakeDeviceAPI{}
	d := NewDevices(f)

	if res := d.Register(context.Background(), "tank-a", "greenhouse"); !res.Success {
		t.Fatalf("Register failed: %q", res.Error)
	}
	dev, ok := d.Get(1)
	if !ok || dev.Name != "tank-a" {
		t.Fatalf("expected registered device cached, got %+v", dev)
	}

	if res := d.Delete(context.Background(), 1); !res.Success {
		t.Fatalf("Delete failed: %q", res.Error)
	}
	if _, ok := d.Get(1); ok {
		t.Fatalf("expected device removed")
	}
}

func TestDevices_ApplyMatchesFetchShape(t *testing.T) {
	d := NewDevices(&fakeDeviceAPI{})
	d.Apply(model.Device{ID: 7, Name: "tank-g", Status: model.DeviceOnline})

	dev, ok := d.Get(7)
	if !ok || dev.Status != model.DeviceOnline {
		t.Fatalf("unexpected merged device: %+v", dev)
	}
}
