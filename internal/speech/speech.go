// Package speech wraps speech-to-text and text-to-speech engines behind
// a session-oriented adapter: a manually-terminated listening session
// accumulates interim and final transcripts, and status events stream to
// a caller-supplied sink.
package speech

import "context"

// EventKind labels a status event.
type EventKind string

const (
	EventListening  EventKind = "listening"
	EventDetecting  EventKind = "detecting"
	EventSpeaking   EventKind = "speaking"
	EventTranscript EventKind = "transcript"
	EventNoSpeech   EventKind = "no-speech"
	EventError      EventKind = "error"
	EventHint       EventKind = "hint"
)

// Event is a status update pushed to the caller's sink. This is the only
// channel for interim progress.
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"sessionId,omitempty"`
	Text      string    `json:"text,omitempty"`
	Final     bool      `json:"final,omitempty"`
	Err       error     `json:"-"`
}

// Sink receives status events. Implementations must not block.
type Sink func(Event)

// Callbacks deliver recognition engine events to the adapter.
type Callbacks struct {
	OnResult      func(text string, final bool)
	OnError       func(code string)
	OnEnd         func()
	OnSoundStart  func()
	OnSpeechStart func()
}

// Capabilities describe quirks of a recognition engine.
type Capabilities struct {
	// StopsAfterUtterance marks engines that silently end after each
	// utterance while the session is logically still open; the adapter
	// restarts such engines up to a bounded attempt count.
	StopsAfterUtterance bool
}

// RecognitionEngine is the speech-to-text collaborator. Start begins
// continuous capture for the given language and routes events through
// the callbacks until Stop or Abort.
type RecognitionEngine interface {
	Capabilities() Capabilities
	Start(language string, cb Callbacks) error
	Stop() error
	Abort()
}

// Engine error codes, mirroring the recognition platform's taxonomy.
const (
	EngineErrNoSpeech   = "no-speech"
	EngineErrNotAllowed = "not-allowed"
	EngineErrNetwork    = "network"
	EngineErrAborted    = "aborted"
)

// Voice describes a synthesis voice.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// SynthesisEngine is the text-to-speech collaborator. Speak blocks until
// the utterance completes, the context is cancelled, or Cancel is called.
type SynthesisEngine interface {
	Speak(ctx context.Context, text string, voice Voice) error
	Cancel()
	Voices() []Voice
}

// PermissionClient acquires microphone permission. Request must be
// driven by a direct user action on platforms that require one.
type PermissionClient interface {
	Request(ctx context.Context) (bool, error)
}

// SessionResult is what FinishListening returns: the accumulated final
// text, else the last interim text.
type SessionResult struct {
	Success  bool   `json:"success"`
	Text     string `json:"text"`
	Language string `json:"language"`
}
