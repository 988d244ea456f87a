package capture

import (
	"fmt"
	"sync"
)

// StubDeviceConfig configures the stub camera behavior.
type StubDeviceConfig struct {
	// Frames are returned round-robin by Frame. Nil yields a tiny
	// placeholder frame.
	Frames [][]byte
	// OpenErr, when set, is returned by Open (simulates permission
	// denial, missing hardware, or a busy device).
	OpenErr error
	// FrameErr, when set, is returned by every Frame call.
	FrameErr error
	// HasTorch reports torch hardware support.
	HasTorch bool
}

// StubDevice is a deterministic Device for development and tests.
type StubDevice struct {
	mu      sync.Mutex
	cfg     StubDeviceConfig
	open    bool
	next    int
	torchOn bool
	facing  Facing
	frames  int
}

// NewStubDevice creates a stub camera with the given config.
func NewStubDevice(cfg StubDeviceConfig) *StubDevice {
	if len(cfg.Frames) == 0 {
		cfg.Frames = [][]byte{[]byte("stub-frame")}
	}
	return &StubDevice{cfg: cfg}
}

func (d *StubDevice) Open(c Constraints) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cfg.OpenErr != nil {
		return d.cfg.OpenErr
	}
	d.open = true
	d.facing = c.Facing
	return nil
}

func (d *StubDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}

func (d *StubDevice) Frame(quality int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, fmt.Errorf("stub device is not open")
	}
	if d.cfg.FrameErr != nil {
		return nil, d.cfg.FrameErr
	}
	frame := d.cfg.Frames[d.next%len(d.cfg.Frames)]
	d.next++
	d.frames++
	return frame, nil
}

func (d *StubDevice) SupportsTorch() bool {
	return d.cfg.HasTorch
}

func (d *StubDevice) SetTorch(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.cfg.HasTorch {
		return fmt.Errorf("stub device has no torch")
	}
	d.torchOn = on
	return nil
}

func (d *StubDevice) SetFacing(f Facing) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.facing = f
	return nil
}

// TorchOn reports the current torch state.
func (d *StubDevice) TorchOn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.torchOn
}

// CurrentFacing reports the facing last applied.
func (d *StubDevice) CurrentFacing() Facing {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.facing
}

// FrameCount reports how many frames have been served.
func (d *StubDevice) FrameCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}
