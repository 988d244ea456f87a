// Package orchestrator owns application state (mode, scan mode, language
// direction, history) and drives the two user flows: camera-scan-translate
// and voice-listen-translate-speak.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tripglot/translator-worker/internal/capture"
	apperrors "github.com/tripglot/translator-worker/internal/errors"
	"github.com/tripglot/translator-worker/internal/history"
	"github.com/tripglot/translator-worker/internal/logging"
	"github.com/tripglot/translator-worker/internal/ocr"
	"github.com/tripglot/translator-worker/internal/phrasebook"
	"github.com/tripglot/translator-worker/internal/speech"
	"github.com/tripglot/translator-worker/internal/translate"
)

// Mode is the active user flow.
type Mode string

const (
	ModeCamera Mode = "camera"
	ModeVoice  Mode = "voice"
)

// ScanMode selects manual or timer-driven camera scanning.
type ScanMode string

const (
	ScanManual ScanMode = "manual"
	ScanAuto   ScanMode = "auto"
)

// ScanOutcome classifies a camera scan.
type ScanOutcome string

const (
	// ScanTranslated means text was found and translated.
	ScanTranslated ScanOutcome = "translated"
	// ScanNoFrame means no frame was available (not ready or paused).
	ScanNoFrame ScanOutcome = "no-frame"
	// ScanNoText means no target-script text was found. This is a
	// normal negative outcome, not an error.
	ScanNoText ScanOutcome = "no-text"
	// ScanFailed means recognition succeeded but translation did not.
	ScanFailed ScanOutcome = "failed"
)

// ScanResult is the outcome of one camera scan or queued image job.
type ScanResult struct {
	Outcome        ScanOutcome       `json:"outcome"`
	SourceText     string            `json:"sourceText,omitempty"`
	Translation    string            `json:"translation,omitempty"`
	Confidence     float64           `json:"confidence,omitempty"`
	ProviderID     string            `json:"providerId,omitempty"`
	FromCache      bool              `json:"fromCache"`
	OCRConfidence  float64           `json:"ocrConfidence,omitempty"`
	PhraseMatches  []phrasebook.Entry `json:"phraseMatches,omitempty"`
	Error          string            `json:"error,omitempty"`
	ProcessingTime time.Duration     `json:"-"`
}

// VoiceResult is the outcome of a finished voice session.
type VoiceResult struct {
	Success     bool   `json:"success"`
	SourceText  string `json:"sourceText,omitempty"`
	Translation string `json:"translation,omitempty"`
	SourceLang  string `json:"sourceLang,omitempty"`
	TargetLang  string `json:"targetLang,omitempty"`
	Spoken      bool   `json:"spoken"`
	Error       string `json:"error,omitempty"`
}

// Display is what the presentation layer renders.
type Display struct {
	SourceText    string
	Translation   string
	PhraseMatches []phrasebook.Entry
	Origin        history.Origin
	FromCache     bool
	ProviderID    string
}

// DisplaySink receives display updates. Identical consecutive
// translations are suppressed during auto-scan.
type DisplaySink func(Display)

// Config wires the orchestrator. Recognizer and Translator are required;
// Capture and Speech are optional depending on the deployment (the queue
// worker runs without either).
type Config struct {
	Capture    *capture.Adapter
	Recognizer *ocr.Recognizer
	Translator *translate.Service
	Speech     *speech.Adapter
	Phrasebook *phrasebook.Book
	History    *history.Log
	Display    DisplaySink

	SourceLang   string // default "ja"
	TargetLang   string // default "en"
	FrameQuality int    // JPEG quality for captures, default 80
	Logger       *logging.Logger
}

// Orchestrator coordinates the adapters into user flows.
type Orchestrator struct {
	capture    *capture.Adapter
	recognizer *ocr.Recognizer
	translator *translate.Service
	speech     *speech.Adapter
	phrasebook *phrasebook.Book
	history    *history.Log
	display    DisplaySink
	quality    int
	logger     *logging.Logger

	mu            sync.Mutex
	mode          Mode
	scanMode      ScanMode
	sourceLang    string
	targetLang    string
	lastDisplayed string
	autoStop      chan struct{}

	scanBusy atomic.Bool
}

// New creates the orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Recognizer == nil {
		return nil, apperrors.NewInvalidInputError("recognizer is required")
	}
	if cfg.Translator == nil {
		return nil, apperrors.NewInvalidInputError("translator is required")
	}
	if cfg.SourceLang == "" {
		cfg.SourceLang = "ja"
	}
	if cfg.TargetLang == "" {
		cfg.TargetLang = "en"
	}
	if cfg.FrameQuality <= 0 {
		cfg.FrameQuality = 80
	}
	if cfg.Display == nil {
		cfg.Display = func(Display) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("orchestrator")
	}
	return &Orchestrator{
		capture:    cfg.Capture,
		recognizer: cfg.Recognizer,
		translator: cfg.Translator,
		speech:     cfg.Speech,
		phrasebook: cfg.Phrasebook,
		history:    cfg.History,
		display:    cfg.Display,
		quality:    cfg.FrameQuality,
		logger:     cfg.Logger,
		mode:       ModeCamera,
		scanMode:   ScanManual,
		sourceLang: cfg.SourceLang,
		targetLang: cfg.TargetLang,
	}, nil
}

// Direction returns the current source and target languages.
func (o *Orchestrator) Direction() (source, target string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sourceLang, o.targetLang
}

// ToggleDirection swaps the language direction.
func (o *Orchestrator) ToggleDirection() {
	o.mu.Lock()
	o.sourceLang, o.targetLang = o.targetLang, o.sourceLang
	o.mu.Unlock()
}

// Mode returns the active flow.
func (o *Orchestrator) Mode() Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

// SetMode switches flows, stopping camera activity when leaving camera
// mode and finalizing any voice session when leaving voice mode.
func (o *Orchestrator) SetMode(mode Mode) {
	o.mu.Lock()
	prev := o.mode
	o.mode = mode
	o.mu.Unlock()

	if prev == mode {
		return
	}
	if prev == ModeCamera {
		o.StopAutoScan()
	}
	if prev == ModeVoice && o.speech != nil && o.speech.Listening() {
		o.speech.FinishListening()
	}
}

// ScanOnce runs the camera flow a single time: capture, recognize,
// translate, merge phrasebook, display, append to history.
func (o *Orchestrator) ScanOnce(ctx context.Context) (*ScanResult, error) {
	if o.capture == nil {
		return nil, apperrors.NewDeviceNotFoundError("camera")
	}

	frame := o.capture.CaptureFrame(o.quality)
	if frame == nil {
		return &ScanResult{Outcome: ScanNoFrame}, nil
	}

	result, err := o.ProcessImage(ctx, frame, ProcessOptions{})
	if err != nil {
		return nil, err
	}

	if result.Outcome == ScanTranslated {
		o.displayResult(result)
	}
	return result, nil
}

// ProcessOptions override the orchestrator's direction for one image.
type ProcessOptions struct {
	SourceLang string
	TargetLang string
	// Preprocess defaults to true; set SkipPreprocess for pre-cleaned
	// uploads.
	SkipPreprocess bool
}

// ProcessImage is the capture-independent scan pipeline, shared by
// ScanOnce and the queue worker.
func (o *Orchestrator) ProcessImage(ctx context.Context, image []byte, opts ProcessOptions) (*ScanResult, error) {
	start := time.Now()

	source, target := o.Direction()
	if opts.SourceLang != "" {
		source = opts.SourceLang
	}
	if opts.TargetLang != "" {
		target = opts.TargetLang
	}

	recognition, err := o.recognizer.Recognize(ctx, image, ocr.Options{
		Preprocess: !opts.SkipPreprocess,
		Script:     scriptForLanguage(source),
	})
	if err != nil {
		return nil, err
	}

	if recognition.TargetText == "" {
		o.logger.Debug("no target-script text found", "raw_chars", len(recognition.RawText))
		return &ScanResult{
			Outcome:        ScanNoText,
			OCRConfidence:  recognition.Confidence,
			ProcessingTime: time.Since(start),
		}, nil
	}

	translation := o.translator.Translate(ctx, recognition.TargetText, translate.Options{
		SourceLang: source,
		TargetLang: target,
	})
	if !translation.Success {
		return &ScanResult{
			Outcome:        ScanFailed,
			SourceText:     recognition.TargetText,
			OCRConfidence:  recognition.Confidence,
			Error:          translation.Error,
			ProcessingTime: time.Since(start),
		}, nil
	}

	result := &ScanResult{
		Outcome:        ScanTranslated,
		SourceText:     recognition.TargetText,
		Translation:    translation.Translation,
		Confidence:     translation.Confidence,
		ProviderID:     translation.ProviderID,
		FromCache:      translation.FromCache,
		OCRConfidence:  recognition.Confidence,
		ProcessingTime: time.Since(start),
	}
	if o.phrasebook != nil {
		result.PhraseMatches = o.phrasebook.FindWithin(recognition.TargetText)
	}

	if o.history != nil {
		if err := o.history.Add(ctx, history.Item{
			SourceText: result.SourceText,
			TargetText: result.Translation,
			Origin:     history.OriginCamera,
		}); err != nil {
			o.logger.Warn("failed to persist history", "error", err)
		}
	}

	return result, nil
}

// StartAutoScan runs the camera flow on a fixed timer. Ticks are skipped
// while a previous run is still in flight.
func (o *Orchestrator) StartAutoScan(ctx context.Context, interval time.Duration) error {
	if o.capture == nil {
		return apperrors.NewDeviceNotFoundError("camera")
	}
	if interval <= 0 {
		return apperrors.NewInvalidInputError("scan interval must be positive")
	}

	o.mu.Lock()
	if o.autoStop != nil {
		o.mu.Unlock()
		return apperrors.NewDeviceBusyError("auto-scan", nil)
	}
	stop := make(chan struct{})
	o.autoStop = stop
	o.scanMode = ScanAuto
	o.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				o.StopAutoScan()
				return
			case <-ticker.C:
				if !o.scanBusy.CompareAndSwap(false, true) {
					continue
				}
				if _, err := o.ScanOnce(ctx); err != nil {
					o.logger.Warn("auto-scan run failed", "error", err)
				}
				o.scanBusy.Store(false)
			}
		}
	}()

	o.logger.Info("auto-scan started", "interval", interval)
	return nil
}

// StopAutoScan stops the timer loop, if any.
func (o *Orchestrator) StopAutoScan() {
	o.mu.Lock()
	stop := o.autoStop
	o.autoStop = nil
	o.scanMode = ScanManual
	o.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

// ScanMode returns the current scan mode.
func (o *Orchestrator) ScanMode() ScanMode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.scanMode
}

// StartVoice begins a listening session in the current source language.
func (o *Orchestrator) StartVoice(ctx context.Context) error {
	if o.speech == nil {
		return apperrors.NewDeviceNotFoundError("microphone")
	}
	source, _ := o.Direction()
	return o.speech.StartListening(ctx, source)
}

// FinishVoice finalizes the session, translates the transcript in the
// direction implied by its language, speaks the result, and records it.
func (o *Orchestrator) FinishVoice(ctx context.Context) (*VoiceResult, error) {
	if o.speech == nil {
		return nil, apperrors.NewDeviceNotFoundError("microphone")
	}

	session := o.speech.FinishListening()
	if !session.Success {
		return &VoiceResult{Success: false}, nil
	}

	source, target := o.Direction()
	// The session language determines the direction: speech in the
	// target language translates back to the source language.
	if session.Language == target {
		source, target = target, source
	}

	translation := o.translator.Translate(ctx, session.Text, translate.Options{
		SourceLang: source,
		TargetLang: target,
	})
	if !translation.Success {
		return &VoiceResult{
			Success:    false,
			SourceText: session.Text,
			SourceLang: source,
			TargetLang: target,
			Error:      translation.Error,
		}, nil
	}

	result := &VoiceResult{
		Success:     true,
		SourceText:  session.Text,
		Translation: translation.Translation,
		SourceLang:  source,
		TargetLang:  target,
	}

	if err := o.speech.Speak(ctx, translation.Translation, target); err != nil {
		o.logger.Warn("failed to speak translation", "error", err)
	} else {
		result.Spoken = true
	}

	if o.history != nil {
		if err := o.history.Add(ctx, history.Item{
			SourceText: session.Text,
			TargetText: translation.Translation,
			Origin:     history.OriginVoice,
		}); err != nil {
			o.logger.Warn("failed to persist history", "error", err)
		}
	}

	o.displayResult(&ScanResult{
		SourceText:  result.SourceText,
		Translation: result.Translation,
		FromCache:   translation.FromCache,
		ProviderID:  translation.ProviderID,
	})

	return result, nil
}

// displayResult pushes to the display sink, suppressing a translation
// identical to the one currently displayed.
func (o *Orchestrator) displayResult(result *ScanResult) {
	o.mu.Lock()
	if result.Translation == o.lastDisplayed {
		o.mu.Unlock()
		return
	}
	o.lastDisplayed = result.Translation
	o.mu.Unlock()

	origin := history.OriginCamera
	if o.Mode() == ModeVoice {
		origin = history.OriginVoice
	}
	o.display(Display{
		SourceText:    result.SourceText,
		Translation:   result.Translation,
		PhraseMatches: result.PhraseMatches,
		Origin:        origin,
		FromCache:     result.FromCache,
		ProviderID:    result.ProviderID,
	})
}

func scriptForLanguage(lang string) *ocr.Script {
	if lang == "en" {
		return ocr.ScriptLatin
	}
	return ocr.ScriptJapanese
}
