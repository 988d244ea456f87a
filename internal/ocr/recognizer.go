// Recognizer serializes recognition requests into a single-slot queue so
// the underlying engine never sees two jobs at once, and post-processes
// engine output (confidence filtering, target-script extraction).

package ocr

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/tripglot/translator-worker/internal/errors"
	"github.com/tripglot/translator-worker/internal/logging"
)

// DefaultConfidenceThreshold drops fragments scored below this value.
const DefaultConfidenceThreshold = 40

// RecognizerConfig configures the recognition adapter.
type RecognizerConfig struct {
	Engine              Engine
	ConfidenceThreshold float64 // default 40
	MaxDimension        int     // preprocessing bound, default 1280
	Script              *Script // default ScriptJapanese
	QueueDepth          int     // pending request bound, default 64
	Logger              *logging.Logger
}

type request struct {
	ctx   context.Context
	image []byte
	opts  Options
	reply chan reply
}

type reply struct {
	result *Result
	err    error
}

// Recognizer wraps the OCR engine behind a FIFO work queue.
type Recognizer struct {
	cfg    RecognizerConfig
	jobs   chan request
	logger *logging.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewRecognizer validates the config and starts the queue worker.
func NewRecognizer(cfg RecognizerConfig) (*Recognizer, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = 1280
	}
	if cfg.Script == nil {
		cfg.Script = ScriptJapanese
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("ocr")
	}

	r := &Recognizer{
		cfg:    cfg,
		jobs:   make(chan request, cfg.QueueDepth),
		logger: cfg.Logger,
		done:   make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// Recognize enqueues a recognition request and waits for its turn.
// Requests are processed one at a time in submission order.
func (r *Recognizer) Recognize(ctx context.Context, image []byte, opts Options) (*Result, error) {
	if len(image) == 0 {
		return nil, apperrors.NewInvalidInputError("image data is empty")
	}

	req := request{ctx: ctx, image: image, opts: opts, reply: make(chan reply, 1)}

	select {
	case r.jobs <- req:
	case <-r.done:
		return nil, fmt.Errorf("recognizer is closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case rep := <-req.reply:
		return rep.result, rep.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the queue worker and releases the engine.
func (r *Recognizer) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	return r.cfg.Engine.Close()
}

func (r *Recognizer) run() {
	for {
		select {
		case <-r.done:
			r.drain()
			return
		case req := <-r.jobs:
			res, err := r.process(req)
			req.reply <- reply{result: res, err: err}
		}
	}
}

func (r *Recognizer) drain() {
	for {
		select {
		case req := <-r.jobs:
			req.reply <- reply{err: fmt.Errorf("recognizer is closed")}
		default:
			return
		}
	}
}

func (r *Recognizer) process(req request) (*Result, error) {
	if err := req.ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	image := req.image

	if req.opts.Preprocess {
		maxDim := req.opts.MaxDimension
		if maxDim <= 0 {
			maxDim = r.cfg.MaxDimension
		}
		processed, err := Preprocess(image, maxDim)
		if err != nil {
			// A photo that cannot be decoded still goes to the engine
			// untouched; the engine produces the authoritative failure.
			r.logger.Warn("preprocessing failed, using original image", "error", err)
		} else {
			image = processed
		}
	}

	engineResult, err := r.cfg.Engine.Recognize(req.ctx, image)
	if err != nil {
		return nil, apperrors.NewOCRFailedError("tesseract", err)
	}

	threshold := req.opts.ConfidenceThreshold
	if threshold <= 0 {
		threshold = r.cfg.ConfidenceThreshold
	}
	script := req.opts.Script
	if script == nil {
		script = r.cfg.Script
	}

	result := &Result{
		Success:    true,
		RawText:    engineResult.Text,
		TargetText: ExtractRuns(engineResult.Text, script),
		Confidence: engineResult.Confidence,
		Words:      filterFragments(engineResult.Words, threshold),
		Lines:      filterFragments(engineResult.Lines, threshold),
		Blocks:     filterFragments(engineResult.Blocks, threshold),
		Duration:   time.Since(start),
	}

	r.logger.Debug("recognition completed",
		"chars", len(result.RawText),
		"target_chars", len(result.TargetText),
		"confidence", fmt.Sprintf("%.1f", result.Confidence),
		"duration", result.Duration)

	return result, nil
}

// filterFragments drops entries below the threshold. The aggregate text
// keeps low-confidence words; only the structured lists are filtered.
func filterFragments(fragments []Fragment, threshold float64) []Fragment {
	kept := make([]Fragment, 0, len(fragments))
	for _, f := range fragments {
		if f.Confidence >= threshold {
			kept = append(kept, f)
		}
	}
	return kept
}
