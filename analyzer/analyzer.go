// Package analyzer turns an opened PDF into annotation records: one image
// annotation per raster region and one text annotation per grouped block of
// glyph runs, with captions heuristically attached to nearby images.
package analyzer

import (
	"context"
	"fmt"

	"github.com/wudi/pdfannot/geo"
	"github.com/wudi/pdfannot/model"
	"github.com/wudi/pdfannot/observability"
	"github.com/wudi/pdfannot/pdfread"
)

// ProgressFunc is invoked after each page's image-extraction phase. It must
// return quickly; the pipeline does not run it on a separate goroutine.
type ProgressFunc func(page, pageCount, imageCount int)

type config struct {
	extractImages      bool
	extractText        bool
	detectCaptions     bool
	analyzeHierarchy   bool
	maxCaptionDistance float64
	minImageSize       int
	progress           ProgressFunc
	logger             observability.Logger
}

func defaults() config {
	return config{
		extractImages:      true,
		extractText:        true,
		detectCaptions:     true,
		analyzeHierarchy:   true,
		maxCaptionDistance: 50,
		minImageSize:       32,
		logger:             observability.NopLogger{},
	}
}

// Option customizes a Parser.
type Option func(*config)

// WithoutImages disables image extraction.
func WithoutImages() Option { return func(c *config) { c.extractImages = false } }

// WithoutText disables text extraction.
func WithoutText() Option { return func(c *config) { c.extractText = false } }

// WithoutCaptions disables caption association.
func WithoutCaptions() Option { return func(c *config) { c.detectCaptions = false } }

// WithoutHierarchy emits each text block as its own level-1 group instead of
// grouping by the heading heuristic.
func WithoutHierarchy() Option { return func(c *config) { c.analyzeHierarchy = false } }

// WithMaxCaptionDistance sets the maximum center-to-center distance in points
// for a caption to attach to an image. Default: 50.
func WithMaxCaptionDistance(pts float64) Option {
	return func(c *config) { c.maxCaptionDistance = pts }
}

// WithMinImageSize sets the minimum pixel extent below which an image is
// still recorded but excluded from recognition. Default: 32.
func WithMinImageSize(px int) Option { return func(c *config) { c.minImageSize = px } }

// WithProgress registers a per-page progress callback.
func WithProgress(fn ProgressFunc) Option { return func(c *config) { c.progress = fn } }

// WithLogger sets the logger. Default: NopLogger.
func WithLogger(l observability.Logger) Option { return func(c *config) { c.logger = l } }

// Parser analyzes documents. A Parser is stateless and safe to reuse across
// documents, one document at a time.
type Parser struct {
	cfg config
}

// New constructs a Parser.
func New(opts ...Option) *Parser {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}
	return &Parser{cfg: cfg}
}

// Image pairs an image annotation with its encoded payload and recognition
// eligibility. Data is nil for inline images.
type Image struct {
	model.ImageAnnotation
	Data        []byte
	OCREligible bool
}

// Result is the in-memory parse output handed to the orchestrator.
type Result struct {
	DocumentID string
	PageCount  int
	Images     []Image
	Texts      []model.TextAnnotation
	Metadata   model.DocumentMetadata
	// Warnings lists per-item extraction failures that were skipped.
	Warnings []string
}

// Parse analyzes raw document bytes page by page, strictly in order: caption
// association needs both the image and text results of a page before the
// next page starts.
func (p *Parser) Parse(ctx context.Context, data []byte, documentID string) (*Result, error) {
	doc, err := pdfread.Open(data)
	if err != nil {
		return nil, err
	}

	res := &Result{
		DocumentID: documentID,
		PageCount:  doc.PageCount(),
		Metadata:   metadataFromInfo(doc.Metadata()),
	}

	if p.cfg.extractText {
		if err := doc.TextLayerError(); err != nil {
			p.cfg.logger.Warn("text layer unavailable, text extraction degraded to empty",
				observability.Error("error", err))
			res.Warnings = append(res.Warnings, fmt.Sprintf("text layer unavailable: %v", err))
		}
	}

	for page := 1; page <= doc.PageCount(); page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var pageImages []Image
		if p.cfg.extractImages {
			pageImages = p.extractPageImages(doc, documentID, page, res)
		}
		if p.cfg.progress != nil {
			p.cfg.progress(page, doc.PageCount(), len(res.Images)+len(pageImages))
		}

		var pageTexts []model.TextAnnotation
		if p.cfg.extractText {
			pageTexts = p.extractPageText(doc, documentID, page, res)
		}

		if p.cfg.detectCaptions {
			p.associateCaptions(pageImages, pageTexts)
		}

		res.Images = append(res.Images, pageImages...)
		res.Texts = append(res.Texts, pageTexts...)
	}
	return res, nil
}

func (p *Parser) extractPageImages(doc *pdfread.Document, documentID string, page int, res *Result) []Image {
	objs, err := doc.Images(page)
	if err != nil {
		p.cfg.logger.Warn("image extraction failed, page skipped",
			observability.Int("page", page), observability.Error("error", err))
		res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: image extraction: %v", page, err))
		return nil
	}
	images := make([]Image, 0, len(objs))
	for i, obj := range objs {
		ann := model.ImageAnnotation{
			DocumentID:      documentID,
			SectionID:       fmt.Sprintf("%s_img_p%d_i%d", documentID, page, i),
			PageNumber:      page,
			ImageIndex:      i,
			Bounds:          obj.Bounds,
			Format:          obj.Format,
			ColorSpace:      obj.ColorSpace,
			DPI:             obj.DPI,
			Inline:          obj.Inline,
			HasTransparency: obj.HasAlpha,
		}
		setPixelDimensions(&ann, obj.Bounds)
		eligible := !obj.Inline && len(obj.Data) > 0 &&
			ann.WidthPx >= p.cfg.minImageSize && ann.HeightPx >= p.cfg.minImageSize
		images = append(images, Image{ImageAnnotation: ann, Data: obj.Data, OCREligible: eligible})
	}
	return images
}

// setPixelDimensions derives the three-unit dimensions from the placed
// bounding box: pixels exact from the extent in points, centimeters and
// inches rounded to two decimals.
func setPixelDimensions(ann *model.ImageAnnotation, bounds geo.Rect) {
	ann.WidthPx = int(bounds.Width() + 0.5)
	ann.HeightPx = int(bounds.Height() + 0.5)
	ann.WidthCm = geo.Round2(geo.PointsToCm(float64(ann.WidthPx)))
	ann.HeightCm = geo.Round2(geo.PointsToCm(float64(ann.HeightPx)))
	ann.WidthInches = geo.Round2(geo.PointsToInches(float64(ann.WidthPx)))
	ann.HeightInches = geo.Round2(geo.PointsToInches(float64(ann.HeightPx)))
}

func (p *Parser) extractPageText(doc *pdfread.Document, documentID string, page int, res *Result) []model.TextAnnotation {
	runs, err := doc.TextRuns(page)
	if err != nil {
		p.cfg.logger.Warn("text extraction failed, page skipped",
			observability.Int("page", page), observability.Error("error", err))
		res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: text extraction: %v", page, err))
		return nil
	}
	blocks := buildBlocks(runs)
	groups := groupBlocks(blocks, p.cfg.analyzeHierarchy)
	return annotationsFromGroups(groups, documentID, page)
}

func metadataFromInfo(info pdfread.Info) model.DocumentMetadata {
	return model.DocumentMetadata{
		Title:        info.Title,
		Author:       info.Author,
		Subject:      info.Subject,
		Keywords:     info.Keywords,
		Creator:      info.Creator,
		Producer:     info.Producer,
		CreationDate: info.CreationDate,
		ModDate:      info.ModDate,
	}
}
