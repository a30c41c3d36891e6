// Package ocr is the recognition adapter of the annotation pipeline. It
// negotiates an engine language set, initializes the engine lazily exactly
// once, isolates per-image failures, and degrades to a disabled no-op when
// the engine cannot start. An Adapter handles one in-flight call at a time.
package ocr

import (
	"context"
	"sync"

	"github.com/wudi/pdfannot/model"
	"github.com/wudi/pdfannot/observability"
)

type adapterConfig struct {
	primary      string
	fallbacks    []string
	maxImageSize int
	logger       observability.Logger
}

// AdapterOption customizes an Adapter.
type AdapterOption func(*adapterConfig)

// WithPrimaryLanguage sets the preferred recognition language by name or
// engine code.
func WithPrimaryLanguage(name string) AdapterOption {
	return func(c *adapterConfig) { c.primary = name }
}

// WithFallbackLanguages sets ordered fallback languages.
func WithFallbackLanguages(names ...string) AdapterOption {
	return func(c *adapterConfig) { c.fallbacks = append([]string(nil), names...) }
}

// WithMaxImageSize downsamples inputs whose larger pixel extent exceeds max
// before recognition. Zero disables downsampling.
func WithMaxImageSize(px int) AdapterOption {
	return func(c *adapterConfig) { c.maxImageSize = px }
}

// WithAdapterLogger sets the logger. Default: NopLogger.
func WithAdapterLogger(l observability.Logger) AdapterOption {
	return func(c *adapterConfig) { c.logger = l }
}

// Adapter wraps an Engine with the pipeline's lifecycle rules.
type Adapter struct {
	engine Engine
	cfg    adapterConfig

	initOnce  sync.Once
	languages []string
	disabled  bool
	closed    bool
}

// NewAdapter constructs an Adapter around engine. The engine is not touched
// until the first Recognize call.
func NewAdapter(engine Engine, opts ...AdapterOption) *Adapter {
	cfg := adapterConfig{logger: observability.NopLogger{}}
	for _, o := range opts {
		o(&cfg)
	}
	return &Adapter{engine: engine, cfg: cfg}
}

// init resolves the language set and starts the engine exactly once.
// Initialization failure disables recognition for the rest of the run; it
// never propagates.
func (a *Adapter) init(ctx context.Context) {
	a.initOnce.Do(func() {
		a.languages = ResolveLanguages(a.cfg.primary, a.cfg.fallbacks)
		if err := a.engine.Init(ctx, a.languages); err != nil {
			a.cfg.logger.Warn("recognition engine unavailable, OCR disabled",
				observability.String("engine", a.engine.Name()),
				observability.Error("error", err))
			a.disabled = true
		}
	})
}

// Enabled reports whether recognition is active. It forces initialization.
func (a *Adapter) Enabled(ctx context.Context) bool {
	a.init(ctx)
	return !a.disabled && !a.closed
}

// Languages returns the resolved engine language set, initializing lazily.
func (a *Adapter) Languages(ctx context.Context) []string {
	a.init(ctx)
	return append([]string(nil), a.languages...)
}

// Recognize runs recognition on one encoded image. A nil result means no
// OCR output for this image; errors never escape a single image.
func (a *Adapter) Recognize(ctx context.Context, id string, data []byte, dpi int) *model.OCRResult {
	a.init(ctx)
	if a.disabled || a.closed || len(data) == 0 {
		return nil
	}

	if a.cfg.maxImageSize > 0 {
		scaled, err := downscale(data, a.cfg.maxImageSize)
		if err != nil {
			a.cfg.logger.Warn("downscale failed, using original image",
				observability.String("image", id), observability.Error("error", err))
		} else {
			data = scaled
		}
	}

	in := Input{ID: id, Image: data, Format: ImageFormatPNG, DPI: dpi}
	res, err := a.engine.Recognize(ctx, in)
	if err != nil {
		a.cfg.logger.Warn("recognition failed for image",
			observability.String("image", id), observability.Error("error", err))
		return nil
	}

	out := &model.OCRResult{
		Text:       res.Text,
		Confidence: res.Confidence,
		Language:   res.Language,
	}
	if detector, ok := a.engine.(LanguageDetector); ok && len(a.languages) > 1 {
		scores, err := detector.DetectLanguages(ctx, in)
		if err != nil {
			a.cfg.logger.Debug("language detection failed",
				observability.String("image", id), observability.Error("error", err))
		} else {
			for _, s := range scores {
				out.Languages = append(out.Languages, model.LanguageScore{
					Language:   s.Language,
					Confidence: s.Confidence,
				})
			}
			if len(scores) > 0 {
				out.Language = scores[0].Language
			}
		}
	}
	return out
}

// Close tears the engine down. It is safe to call when initialization never
// happened or failed, and must be called after use regardless of outcomes.
func (a *Adapter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if a.disabled {
		return nil
	}
	return a.engine.Close()
}
