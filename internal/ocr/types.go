// Shared data structures for text recognition.

package ocr

import (
	"context"
	"time"
)

// BoundingBox represents coordinates of a recognized region.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Fragment is a recognized word, line, or block with its confidence.
type Fragment struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// Result is the outcome of a single recognition call. Confidence values
// are on a 0-100 scale. Fragments below the configured threshold are
// excluded from Words/Lines/Blocks but RawText is never blanked.
type Result struct {
	Success    bool       `json:"success"`
	RawText    string     `json:"rawText"`
	TargetText string     `json:"targetText"`
	Confidence float64    `json:"confidence"`
	Words      []Fragment `json:"words"`
	Lines      []Fragment `json:"lines"`
	Blocks     []Fragment `json:"blocks"`

	Duration time.Duration `json:"-"`
}

// Options configure a single recognition call.
type Options struct {
	// Preprocess runs the resize/contrast/grayscale/sharpen pipeline
	// before recognition.
	Preprocess bool
	// MaxDimension bounds the longer image side when preprocessing.
	// Zero means the recognizer default.
	MaxDimension int
	// ConfidenceThreshold overrides the recognizer default when > 0.
	ConfidenceThreshold float64
	// Script selects the target script for TargetText extraction.
	// Nil means the recognizer default.
	Script *Script
}

// EngineResult is the raw output of the underlying OCR engine.
type EngineResult struct {
	Text       string
	Confidence float64
	Words      []Fragment
	Lines      []Fragment
	Blocks     []Fragment
}

// Engine is the OCR collaborator consumed as a black box.
type Engine interface {
	Recognize(ctx context.Context, image []byte) (*EngineResult, error)
	Close() error
}
