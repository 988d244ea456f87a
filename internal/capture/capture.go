// Package capture wraps a camera device: still-frame capture, torch and
// facing control, and a timer-driven automatic capture loop. Capture
// failures are dispatched to an error sink rather than returned, so the
// caller's display layer decides how to surface them.
package capture

import (
	"sync"
	"time"

	apperrors "github.com/tripglot/translator-worker/internal/errors"
	"github.com/tripglot/translator-worker/internal/logging"
)

// Facing selects the camera direction.
type Facing string

const (
	FacingBack  Facing = "back"
	FacingFront Facing = "front"
)

// Constraints are passed to the device when the stream starts.
type Constraints struct {
	Facing Facing
}

// Device is the camera collaborator. Open failures should be the typed
// errors from the errors package (permission / not-found / busy).
type Device interface {
	Open(c Constraints) error
	Close() error
	// Frame returns one encoded still frame at the given JPEG quality.
	Frame(quality int) ([]byte, error)
	SupportsTorch() bool
	SetTorch(on bool) error
	SetFacing(f Facing) error
}

// ErrorSink receives capture failures.
type ErrorSink func(err error)

// Adapter owns the device lifecycle and the automatic capture loop.
type Adapter struct {
	device  Device
	errSink ErrorSink
	logger  *logging.Logger

	mu       sync.Mutex
	started  bool
	paused   bool
	facing   Facing
	autoStop chan struct{}
}

// NewAdapter wires the adapter to a device. A nil sink discards errors.
func NewAdapter(device Device, errSink ErrorSink, logger *logging.Logger) (*Adapter, error) {
	if device == nil {
		return nil, apperrors.NewInvalidInputError("camera device is required")
	}
	if errSink == nil {
		errSink = func(error) {}
	}
	if logger == nil {
		logger = logging.NewLogger("capture")
	}
	return &Adapter{
		device:  device,
		errSink: errSink,
		logger:  logger,
		facing:  FacingBack,
	}, nil
}

// Start opens the camera stream. Permission, missing-device, and busy
// failures come back as the corresponding typed errors.
func (a *Adapter) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}

	if err := a.device.Open(Constraints{Facing: a.facing}); err != nil {
		a.logger.Error("camera open failed", "facing", a.facing, "error", err)
		return err
	}
	a.started = true
	a.paused = false
	a.logger.Info("camera started", "facing", a.facing)
	return nil
}

// Stop closes the stream and any automatic capture loop.
func (a *Adapter) Stop() error {
	a.StopAutoCapture()

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil
	}
	a.started = false
	return a.device.Close()
}

// Pause suspends frame capture without releasing the device.
func (a *Adapter) Pause() {
	a.mu.Lock()
	a.paused = true
	a.mu.Unlock()
}

// Resume re-enables frame capture.
func (a *Adapter) Resume() {
	a.mu.Lock()
	a.paused = false
	a.mu.Unlock()
}

// CaptureFrame returns one encoded frame, or nil when the stream is not
// ready or paused. Device failures go to the error sink, not the caller.
func (a *Adapter) CaptureFrame(quality int) []byte {
	a.mu.Lock()
	ready := a.started && !a.paused
	a.mu.Unlock()
	if !ready {
		return nil
	}

	frame, err := a.device.Frame(quality)
	if err != nil {
		a.errSink(err)
		return nil
	}
	return frame
}

// StartAutoCapture invokes the callback with a fresh frame at a fixed
// period. Ticks while paused (or while a frame fails) are skipped.
func (a *Adapter) StartAutoCapture(callback func(frame []byte), interval time.Duration) error {
	if callback == nil {
		return apperrors.NewInvalidInputError("capture callback is required")
	}
	if interval <= 0 {
		return apperrors.NewInvalidInputError("capture interval must be positive")
	}

	a.mu.Lock()
	if a.autoStop != nil {
		a.mu.Unlock()
		return apperrors.NewDeviceBusyError("camera auto-capture", nil)
	}
	stop := make(chan struct{})
	a.autoStop = stop
	a.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if frame := a.CaptureFrame(0); frame != nil {
					callback(frame)
				}
			}
		}
	}()

	a.logger.Info("auto-capture started", "interval", interval)
	return nil
}

// StopAutoCapture stops the timer loop, if any.
func (a *Adapter) StopAutoCapture() {
	a.mu.Lock()
	stop := a.autoStop
	a.autoStop = nil
	a.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

// SwitchFacing toggles between the front and back cameras.
func (a *Adapter) SwitchFacing() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := FacingBack
	if a.facing == FacingBack {
		next = FacingFront
	}
	if err := a.device.SetFacing(next); err != nil {
		return err
	}
	a.facing = next
	a.logger.Info("camera facing switched", "facing", next)
	return nil
}

// Facing returns the current camera direction.
func (a *Adapter) Facing() Facing {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.facing
}

// SetTorch toggles the torch. Returns false when the hardware does not
// support one; that is not an error.
func (a *Adapter) SetTorch(on bool) bool {
	if !a.device.SupportsTorch() {
		return false
	}
	if err := a.device.SetTorch(on); err != nil {
		a.errSink(err)
		return false
	}
	return true
}
