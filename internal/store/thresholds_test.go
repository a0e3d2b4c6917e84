package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"aquadash/internal/model"
)

type fakeThresholdAPI struct {
	threshold model.Threshold
	err       error
}

func (f *fakeThresholdAPI) Thresholds(context.Context, int) (model.Threshold, error) {
	return f.threshold, f.err
}

func (f *fakeThresholdAPI) UpdateThresholds(_ context.Context, deviceID int, t model.Threshold) (model.Threshold, error) {
	if f.err != nil {
		return model.Threshold{}, f.err
	}
	t.DeviceID = deviceID
	return t, nil
}

func TestThresholds_FetchAndGet(t *testing.T) {
	f := &fakeThresholdAPI{threshold: model.Threshold{DeviceID: 7, Metric: model.MetricWaterLevel, LowerBound: 20, UpperBound: 80}}
	ts := NewThresholds(f)

	if res := ts.Fetch(context.Background(), 7); !res.Success {
		t.Fatalf("Fetch failed: %q", res.Error)
	}
	got, ok := ts.Get(7)
	if !ok || got.LowerBound != 20 || got.UpperBound != 80 {
		t.Fatalf("unexpected threshold: %+v", got)
	}
}

func TestThresholds_UpdateConvergesWithPush(t *testing.T) {
	ts := NewThresholds(&fakeThresholdAPI{})

	res := ts.Update(context.Background(), 7, model.Threshold{Metric: model.MetricWaterLevel, LowerBound: 30, UpperBound: 70})
	if !res.Success {
		t.Fatalf("Update failed: %q", res.Error)
	}

	// A pushed threshold_updated lands in the same merge point.
	ts.Apply(model.Threshold{DeviceID: 7, Metric: model.MetricWaterLevel, LowerBound: 35, UpperBound: 65})

	got, ok := ts.Get(7)
	if !ok || got.LowerBound != 35 {
		t.Fatalf("unexpected threshold after push: %+v", got)
	}
}

// slowThresholdAPI blocks the first Thresholds call until released.
type slowThresholdAPI struct {
	calls     int32
	release   chan struct{}
	threshold model.Threshold
}

func (f *slowThresholdAPI) Thresholds(context.Context, int) (model.Threshold, error) {
	if atomic.AddInt32(&f.calls, 1) == 1 {
		<-f.release
	}
	return f.threshold, nil
}

func (f *slowThresholdAPI) UpdateThresholds(_ context.Context, deviceID int, t model.Threshold) (model.Threshold, error) {
	t.DeviceID = deviceID
	return t, nil
}

func TestThresholds_StaleFetchDiscarded(t *testing.T) {
	f := &slowThresholdAPI{
		release:   make(chan struct{}),
		threshold: model.Threshold{DeviceID: 7, Metric: model.MetricWaterLevel, LowerBound: 20, UpperBound: 80},
	}
	ts := NewThresholds(f)

	done := make(chan Result, 1)
	go func() { done <- ts.Fetch(context.Background(), 7) }()

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&f.calls) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("fetch never started")
		}
		time.Sleep(time.Millisecond)
	}

	// A threshold_updated push lands while the fetch is still in flight.
	ts.Apply(model.Threshold{DeviceID: 7, Metric: model.MetricWaterLevel, LowerBound: 35, UpperBound: 65})

	close(f.release)
	<-done

	got, ok := ts.Get(7)
	if !ok || got.LowerBound != 35 || got.UpperBound != 65 {
		t.Fatalf("stale fetch overwrote the pushed bounds: %+v", got)
	}
}

func TestThresholds_ErrorRetainsCache(t *testing.T) {
	f := &fakeThresholdAPI{}
	ts := NewThresholds(f)
	ts.Apply(model.Threshold{DeviceID: 7, LowerBound: 20, UpperBound: 80})

	f.err = errors.New("boom")
	if res := ts.Update(context.Background(), 7, model.Threshold{}); res.Success {
		t.Fatalf("expected failure")
	}
	if ts.LastError() == "" {
		t.Fatalf("expected error surfaced on the store")
	}
	if got, ok := ts.Get(7); !ok || got.LowerBound != 20 {
		t.Fatalf("expected prior cache retained, got %+v", got)
	}
}

func TestThresholds_ClearAndRemove(t *testing.T) {
	ts := NewThresholds(&fakeThresholdAPI{})
	ts.Apply(model.Threshold{DeviceID: 7})
	ts.Apply(model.Threshold{DeviceID: 8})

	ts.Remove(7)
	if _, ok := ts.Get(7); ok {
		t.Fatalf("expected device 7 thresholds removed")
	}

	ts.Clear()
	if _, ok := ts.Get(8); ok {
		t.Fatalf("expected all thresholds cleared")
	}
}
