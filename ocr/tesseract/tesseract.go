// Package tesseract implements ocr.Engine using the gosseract client.
package tesseract

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/pdfannot/ocr"
)

// Engine drives a single Tesseract client. It supports exactly one in-flight
// call at a time; serialize or pool instances for concurrency.
type Engine struct {
	clientFactory func() *gosseract.Client
	client        *gosseract.Client
	languages     []string
}

// New constructs a Tesseract-backed engine.
func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Init creates the client and binds the trained-data language set.
func (e *Engine) Init(ctx context.Context, languages []string) error {
	if e.client != nil {
		return nil
	}
	c := e.clientFactory()
	if len(languages) > 0 {
		if err := c.SetLanguage(languages...); err != nil {
			c.Close()
			return fmt.Errorf("set languages %v: %w", languages, err)
		}
	}
	e.client = c
	e.languages = append([]string(nil), languages...)
	return nil
}

// Recognize performs OCR on a single image input.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if e.client == nil {
		return ocr.Result{}, fmt.Errorf("engine not initialized")
	}
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	if err := e.client.SetImageFromBytes(in.Image); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	if in.DPI > 0 {
		if err := e.client.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(in.DPI)); err != nil {
			return ocr.Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	text, err := e.client.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	conf := meanWordConfidence(e.client)
	lang := ""
	if len(e.languages) > 0 {
		lang = e.languages[0]
	}
	return ocr.Result{InputID: in.ID, Text: text, Confidence: conf, Language: lang}, nil
}

// DetectLanguages ranks the initialized language set by recognition
// confidence against the input, using a throwaway client per language so the
// primary client keeps its combined language binding.
func (e *Engine) DetectLanguages(ctx context.Context, in ocr.Input) ([]ocr.LanguageScore, error) {
	if e.client == nil {
		return nil, fmt.Errorf("engine not initialized")
	}
	scores := make([]ocr.LanguageScore, 0, len(e.languages))
	for _, lang := range e.languages {
		if lang == "osd" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conf, err := e.scoreLanguage(lang, in.Image)
		if err != nil {
			continue
		}
		scores = append(scores, ocr.LanguageScore{Language: lang, Confidence: conf})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Confidence > scores[j].Confidence
	})
	return scores, nil
}

func (e *Engine) scoreLanguage(lang string, img []byte) (float64, error) {
	c := e.clientFactory()
	defer c.Close()
	if err := c.SetLanguage(lang); err != nil {
		return 0, err
	}
	if err := c.SetImageFromBytes(img); err != nil {
		return 0, err
	}
	if _, err := c.Text(); err != nil {
		return 0, err
	}
	return meanWordConfidence(c), nil
}

// Close releases the client. Safe to call before Init or more than once.
func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

// meanWordConfidence averages word confidences on a 0-100 scale.
func meanWordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes))
}
