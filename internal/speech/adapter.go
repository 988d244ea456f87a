package speech

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	apperrors "github.com/tripglot/translator-worker/internal/errors"
	"github.com/tripglot/translator-worker/internal/logging"
)

// DefaultRestartAttempts bounds engine auto-restarts per session.
const DefaultRestartAttempts = 3

type permissionState int

const (
	permissionUnknown permissionState = iota
	permissionGranted
	permissionDenied
)

// session is the transient per-listening-session state.
type session struct {
	id              string
	language        string
	finalText       strings.Builder
	interimText     string
	restartAttempts int
}

// AdapterConfig configures the speech adapter.
type AdapterConfig struct {
	Recognition     RecognitionEngine
	Synthesis       SynthesisEngine
	Permission      PermissionClient
	Sink            Sink
	RestartAttempts int // default 3
	Logger          *logging.Logger
}

// Adapter coordinates listening sessions and speech playback. At most
// one listening session exists at a time, and at most one utterance
// plays at a time.
type Adapter struct {
	recognition RecognitionEngine
	synthesis   SynthesisEngine
	permission  PermissionClient
	sink        Sink
	restartMax  int
	logger      *logging.Logger

	mu         sync.Mutex
	session    *session
	permState  permissionState
	permWatch  []func(granted bool)
	speakerGen int
}

// NewAdapter creates the adapter. Recognition and Synthesis engines are
// required; a nil sink discards events.
func NewAdapter(cfg AdapterConfig) (*Adapter, error) {
	if cfg.Recognition == nil {
		return nil, apperrors.NewInvalidInputError("recognition engine is required")
	}
	if cfg.Synthesis == nil {
		return nil, apperrors.NewInvalidInputError("synthesis engine is required")
	}
	if cfg.RestartAttempts <= 0 {
		cfg.RestartAttempts = DefaultRestartAttempts
	}
	if cfg.Sink == nil {
		cfg.Sink = func(Event) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("speech")
	}
	return &Adapter{
		recognition: cfg.Recognition,
		synthesis:   cfg.Synthesis,
		permission:  cfg.Permission,
		sink:        cfg.Sink,
		restartMax:  cfg.RestartAttempts,
		logger:      cfg.Logger,
	}, nil
}

// RequestPermission acquires microphone permission and caches the result.
func (a *Adapter) RequestPermission(ctx context.Context) (bool, error) {
	if a.permission == nil {
		a.setPermission(permissionGranted)
		return true, nil
	}
	granted, err := a.permission.Request(ctx)
	if err != nil {
		return false, apperrors.NewSpeechEngineError("permission-request", err)
	}
	if granted {
		a.setPermission(permissionGranted)
	} else {
		a.setPermission(permissionDenied)
	}
	return granted, nil
}

// PermissionGranted returns the cached permission result; known is false
// until the first request resolves.
func (a *Adapter) PermissionGranted() (granted, known bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.permState {
	case permissionGranted:
		return true, true
	case permissionDenied:
		return false, true
	}
	return false, false
}

// OnPermissionChange registers a callback fired whenever the cached
// permission result changes, including out-of-band revocation.
func (a *Adapter) OnPermissionChange(fn func(granted bool)) {
	a.mu.Lock()
	a.permWatch = append(a.permWatch, fn)
	a.mu.Unlock()
}

// StartListening begins a new listening session. Fails when a session is
// already active or permission is denied.
func (a *Adapter) StartListening(ctx context.Context, lang string) error {
	a.mu.Lock()
	if a.session != nil {
		a.mu.Unlock()
		return apperrors.NewDeviceBusyError("microphone", nil)
	}
	permState := a.permState
	a.mu.Unlock()

	if permState == permissionUnknown {
		granted, err := a.RequestPermission(ctx)
		if err != nil {
			return err
		}
		if !granted {
			permState = permissionDenied
		}
	}
	if permState == permissionDenied {
		err := apperrors.NewPermissionDeniedError("microphone")
		a.sink(Event{Kind: EventError, Err: err, Text: err.Message})
		return err
	}

	sess := &session{id: uuid.NewString(), language: lang}

	a.mu.Lock()
	if a.session != nil {
		a.mu.Unlock()
		return apperrors.NewDeviceBusyError("microphone", nil)
	}
	a.session = sess
	a.mu.Unlock()

	if err := a.recognition.Start(lang, a.callbacks(sess.id)); err != nil {
		a.mu.Lock()
		a.session = nil
		a.mu.Unlock()
		return apperrors.NewSpeechEngineError("start", err)
	}

	a.logger.Info("listening session started", "session", sess.id, "language", lang)
	a.sink(Event{Kind: EventListening, SessionID: sess.id})
	return nil
}

// FinishListening explicitly stops capture and returns whatever has been
// accumulated, without waiting for a final engine event. With zero
// captured speech it returns Success:false and the adapter is idle,
// ready for a new StartListening.
func (a *Adapter) FinishListening() SessionResult {
	a.mu.Lock()
	sess := a.session
	a.session = nil
	a.mu.Unlock()

	if sess == nil {
		return SessionResult{Success: false}
	}

	if err := a.recognition.Stop(); err != nil {
		a.logger.Warn("recognition stop failed", "session", sess.id, "error", err)
	}

	text := strings.TrimSpace(sess.finalText.String())
	if text == "" {
		text = strings.TrimSpace(sess.interimText)
	}

	a.logger.Info("listening session finished", "session", sess.id, "chars", len(text))
	return SessionResult{
		Success:  text != "",
		Text:     text,
		Language: sess.language,
	}
}

// Listening reports whether a session is active.
func (a *Adapter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil
}

// Speak plays the text, cancelling any in-flight utterance first. The
// voice is chosen by locale match against the engine's voice list.
func (a *Adapter) Speak(ctx context.Context, text, lang string) error {
	if strings.TrimSpace(text) == "" {
		return apperrors.NewInvalidInputError("nothing to speak")
	}

	a.synthesis.Cancel()

	a.mu.Lock()
	a.speakerGen++
	gen := a.speakerGen
	a.mu.Unlock()

	voice := a.selectVoice(lang)
	a.sink(Event{Kind: EventSpeaking, Text: text})

	if err := a.synthesis.Speak(ctx, text, voice); err != nil {
		a.mu.Lock()
		superseded := gen != a.speakerGen
		a.mu.Unlock()
		if superseded {
			// A newer Speak cancelled this one; not a failure.
			return nil
		}
		return apperrors.NewSpeechEngineError("synthesis", err)
	}
	return nil
}

// selectVoice matches the requested language against available voices
// using BCP 47 matching, falling back to the first voice.
func (a *Adapter) selectVoice(lang string) Voice {
	voices := a.synthesis.Voices()
	if len(voices) == 0 {
		return Voice{Language: lang}
	}

	want, err := language.Parse(lang)
	if err != nil {
		return voices[0]
	}

	tags := make([]language.Tag, 0, len(voices))
	valid := make([]Voice, 0, len(voices))
	for _, v := range voices {
		tag, err := language.Parse(v.Language)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		valid = append(valid, v)
	}
	if len(tags) == 0 {
		return voices[0]
	}

	matcher := language.NewMatcher(tags)
	_, idx, conf := matcher.Match(want)
	if conf == language.No {
		return voices[0]
	}
	return valid[idx]
}

func (a *Adapter) callbacks(sessionID string) Callbacks {
	return Callbacks{
		OnResult: func(text string, final bool) {
			a.mu.Lock()
			sess := a.session
			if sess == nil || sess.id != sessionID {
				a.mu.Unlock()
				return
			}
			if final {
				if sess.finalText.Len() > 0 {
					sess.finalText.WriteString(" ")
				}
				sess.finalText.WriteString(strings.TrimSpace(text))
				sess.interimText = ""
			} else {
				sess.interimText = text
			}
			a.mu.Unlock()

			a.sink(Event{Kind: EventTranscript, SessionID: sessionID, Text: text, Final: final})
		},
		OnError: func(code string) {
			a.handleEngineError(sessionID, code)
		},
		OnEnd: func() {
			a.handleEngineEnd(sessionID)
		},
		OnSoundStart: func() {
			a.sink(Event{Kind: EventDetecting, SessionID: sessionID})
		},
		OnSpeechStart: func() {
			a.sink(Event{Kind: EventDetecting, SessionID: sessionID, Text: "speech"})
		},
	}
}

func (a *Adapter) handleEngineError(sessionID, code string) {
	switch code {
	case EngineErrNoSpeech:
		// Non-fatal: hint the user and let the end/restart path recover.
		a.sink(Event{Kind: EventNoSpeech, SessionID: sessionID})
		a.sink(Event{Kind: EventHint, SessionID: sessionID, Text: "Try speaking closer to the microphone"})
	case EngineErrNotAllowed:
		a.setPermission(permissionDenied)
		err := apperrors.NewPermissionDeniedError("microphone")
		a.teardownSession(sessionID)
		a.sink(Event{Kind: EventError, SessionID: sessionID, Err: err, Text: err.Message})
	case EngineErrAborted:
		// Explicit abort; FinishListening already owns the state.
	default:
		err := apperrors.NewSpeechEngineError(code, nil)
		a.teardownSession(sessionID)
		a.sink(Event{Kind: EventError, SessionID: sessionID, Err: err, Text: err.Message})
	}
}

// handleEngineEnd restarts engines that stop after each utterance while
// the session is logically still listening, up to the attempt bound.
// This is a platform-compatibility shim gated on the engine capability.
func (a *Adapter) handleEngineEnd(sessionID string) {
	a.mu.Lock()
	sess := a.session
	if sess == nil || sess.id != sessionID {
		a.mu.Unlock()
		return
	}
	if !a.recognition.Capabilities().StopsAfterUtterance {
		a.session = nil
		a.mu.Unlock()
		return
	}
	if sess.restartAttempts >= a.restartMax {
		a.session = nil
		a.mu.Unlock()
		a.sink(Event{Kind: EventHint, SessionID: sessionID, Text: "Listening stopped; tap to start again"})
		return
	}
	sess.restartAttempts++
	attempt := sess.restartAttempts
	lang := sess.language
	a.mu.Unlock()

	if err := a.recognition.Start(lang, a.callbacks(sessionID)); err != nil {
		a.logger.Warn("engine restart failed", "session", sessionID, "attempt", attempt, "error", err)
		a.teardownSession(sessionID)
		a.sink(Event{Kind: EventError, SessionID: sessionID, Err: err})
		return
	}
	a.logger.Debug("engine restarted", "session", sessionID, "attempt", attempt)
}

func (a *Adapter) teardownSession(sessionID string) {
	a.mu.Lock()
	if a.session != nil && a.session.id == sessionID {
		a.session = nil
	}
	a.mu.Unlock()
	a.recognition.Abort()
}

func (a *Adapter) setPermission(state permissionState) {
	a.mu.Lock()
	changed := a.permState != state
	a.permState = state
	watchers := append([]func(bool){}, a.permWatch...)
	a.mu.Unlock()

	if changed {
		for _, fn := range watchers {
			fn(state == permissionGranted)
		}
	}
}
