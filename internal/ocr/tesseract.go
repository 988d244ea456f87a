// Tesseract engine - local OCR via gosseract.

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// TesseractConfig holds Tesseract configuration.
type TesseractConfig struct {
	// Languages are traineddata names, e.g. "jpn", "eng".
	Languages []string
	// TessdataPrefix optionally overrides the traineddata directory.
	TessdataPrefix string
}

// TesseractEngine implements Engine on top of a local Tesseract install.
type TesseractEngine struct {
	cfg TesseractConfig
}

// NewTesseractEngine creates a Tesseract-backed OCR engine.
func NewTesseractEngine(cfg TesseractConfig) (*TesseractEngine, error) {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"jpn", "eng"}
	}
	return &TesseractEngine{cfg: cfg}, nil
}

// Recognize runs OCR on the encoded image and extracts word, line, and
// block fragments with confidences on a 0-100 scale.
func (t *TesseractEngine) Recognize(ctx context.Context, image []byte) (*EngineResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if t.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.cfg.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(t.cfg.Languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract recognition failed: %w", err)
	}

	words, err := t.fragments(client, gosseract.RIL_WORD)
	if err != nil {
		return nil, err
	}
	lines, err := t.fragments(client, gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, err
	}
	blocks, err := t.fragments(client, gosseract.RIL_BLOCK)
	if err != nil {
		return nil, err
	}

	return &EngineResult{
		Text:       text,
		Confidence: meanConfidence(words),
		Words:      words,
		Lines:      lines,
		Blocks:     blocks,
	}, nil
}

func (t *TesseractEngine) fragments(client *gosseract.Client, level gosseract.PageIteratorLevel) ([]Fragment, error) {
	boxes, err := client.GetBoundingBoxes(level)
	if err != nil {
		return nil, fmt.Errorf("bounding boxes (level %d): %w", level, err)
	}

	fragments := make([]Fragment, 0, len(boxes))
	for _, box := range boxes {
		fragments = append(fragments, Fragment{
			Text:       box.Word,
			Confidence: box.Confidence,
			BoundingBox: BoundingBox{
				X:      box.Box.Min.X,
				Y:      box.Box.Min.Y,
				Width:  box.Box.Dx(),
				Height: box.Box.Dy(),
			},
		})
	}
	return fragments, nil
}

// Close releases engine resources. Tesseract clients are per-call, so
// there is nothing long-lived to tear down.
func (t *TesseractEngine) Close() error {
	return nil
}

func meanConfidence(words []Fragment) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}
