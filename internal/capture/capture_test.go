package capture

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/tripglot/translator-worker/internal/errors"
)

type errCollector struct {
	mu   sync.Mutex
	errs []error
}

func (c *errCollector) sink(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

func (c *errCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

func TestAdapter_StartPropagatesTypedOpenErrors(t *testing.T) {
	t.Parallel()

	device := NewStubDevice(StubDeviceConfig{
		OpenErr: apperrors.NewPermissionDeniedError("camera"),
	})
	a, err := NewAdapter(device, nil, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	err = a.Start()
	if !apperrors.HasCode(err, apperrors.ErrorPermissionDenied) {
		t.Errorf("expected PERMISSION_DENIED, got %v", err)
	}
}

func TestAdapter_CaptureBeforeStartReturnsNil(t *testing.T) {
	t.Parallel()

	a, err := NewAdapter(NewStubDevice(StubDeviceConfig{}), nil, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	if frame := a.CaptureFrame(80); frame != nil {
		t.Errorf("expected nil frame before Start, got %d bytes", len(frame))
	}
}

func TestAdapter_PauseSuspendsCapture(t *testing.T) {
	t.Parallel()

	a, err := NewAdapter(NewStubDevice(StubDeviceConfig{Frames: [][]byte{[]byte("f1")}}), nil, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if frame := a.CaptureFrame(80); !bytes.Equal(frame, []byte("f1")) {
		t.Errorf("frame = %q", frame)
	}

	a.Pause()
	if frame := a.CaptureFrame(80); frame != nil {
		t.Error("paused adapter should capture nothing")
	}

	a.Resume()
	if frame := a.CaptureFrame(80); frame == nil {
		t.Error("resumed adapter should capture again")
	}
}

func TestAdapter_FrameErrorsGoToSink(t *testing.T) {
	t.Parallel()

	sink := &errCollector{}
	device := NewStubDevice(StubDeviceConfig{FrameErr: errors.New("sensor fault")})
	a, err := NewAdapter(device, sink.sink, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if frame := a.CaptureFrame(80); frame != nil {
		t.Error("failed capture should return nil")
	}
	if sink.count() != 1 {
		t.Errorf("sink received %d errors, want 1", sink.count())
	}
}

func TestAdapter_AutoCaptureDeliversFrames(t *testing.T) {
	t.Parallel()

	device := NewStubDevice(StubDeviceConfig{Frames: [][]byte{[]byte("a"), []byte("b")}})
	a, err := NewAdapter(device, nil, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	frames := make(chan []byte, 16)
	if err := a.StartAutoCapture(func(f []byte) { frames <- f }, 5*time.Millisecond); err != nil {
		t.Fatalf("StartAutoCapture: %v", err)
	}

	// A second loop cannot start while one is running.
	if err := a.StartAutoCapture(func([]byte) {}, time.Millisecond); !apperrors.HasCode(err, apperrors.ErrorDeviceBusy) {
		t.Errorf("expected DEVICE_BUSY, got %v", err)
	}

	for i := 0; i < 3; i++ {
		select {
		case <-frames:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}
	a.StopAutoCapture()

	// After stopping, the loop settles and no further frames arrive.
	time.Sleep(20 * time.Millisecond)
	drained := len(frames)
	time.Sleep(50 * time.Millisecond)
	if len(frames) != drained {
		t.Error("frames still arriving after StopAutoCapture")
	}
}

func TestAdapter_AutoCaptureSkipsWhilePaused(t *testing.T) {
	t.Parallel()

	device := NewStubDevice(StubDeviceConfig{})
	a, err := NewAdapter(device, nil, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	a.Pause()

	var calls int32
	var mu sync.Mutex
	if err := a.StartAutoCapture(func([]byte) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, 5*time.Millisecond); err != nil {
		t.Fatalf("StartAutoCapture: %v", err)
	}
	defer a.StopAutoCapture()

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 0 {
		t.Errorf("callback fired %d times while paused", got)
	}
	if device.FrameCount() != 0 {
		t.Errorf("device served %d frames while paused", device.FrameCount())
	}
}

func TestAdapter_TorchUnsupportedIsNotAnError(t *testing.T) {
	t.Parallel()

	sink := &errCollector{}
	a, err := NewAdapter(NewStubDevice(StubDeviceConfig{HasTorch: false}), sink.sink, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	if a.SetTorch(true) {
		t.Error("torchless device should report false")
	}
	if sink.count() != 0 {
		t.Errorf("no error expected for missing torch, got %d", sink.count())
	}
}

func TestAdapter_TorchToggles(t *testing.T) {
	t.Parallel()

	device := NewStubDevice(StubDeviceConfig{HasTorch: true})
	a, err := NewAdapter(device, nil, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	if !a.SetTorch(true) {
		t.Fatal("expected torch to turn on")
	}
	if !device.TorchOn() {
		t.Error("device torch should be on")
	}
	a.SetTorch(false)
	if device.TorchOn() {
		t.Error("device torch should be off")
	}
}

func TestAdapter_SwitchFacingToggles(t *testing.T) {
	t.Parallel()

	device := NewStubDevice(StubDeviceConfig{})
	a, err := NewAdapter(device, nil, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if a.Facing() != FacingBack {
		t.Fatalf("initial facing = %v", a.Facing())
	}
	if err := a.SwitchFacing(); err != nil {
		t.Fatalf("SwitchFacing: %v", err)
	}
	if a.Facing() != FacingFront || device.CurrentFacing() != FacingFront {
		t.Errorf("facing = %v / device %v, want front", a.Facing(), device.CurrentFacing())
	}
	if err := a.SwitchFacing(); err != nil {
		t.Fatalf("SwitchFacing back: %v", err)
	}
	if a.Facing() != FacingBack {
		t.Errorf("facing = %v, want back", a.Facing())
	}
}
