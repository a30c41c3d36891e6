// Package annotate orchestrates the analysis pipeline: parse raw document
// bytes, enrich eligible images with recognition output, persist the
// annotation model, and compute the summary report returned to the caller.
package annotate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wudi/pdfannot/analyzer"
	"github.com/wudi/pdfannot/model"
	"github.com/wudi/pdfannot/observability"
)

// previewLimit bounds the content preview stored on a section row.
const previewLimit = 200

// DocumentParser produces the in-memory parse result for raw document bytes.
// *analyzer.Parser satisfies it.
type DocumentParser interface {
	Parse(ctx context.Context, data []byte, documentID string) (*analyzer.Result, error)
}

// Recognizer enriches images with recognized text. *ocr.Adapter satisfies it.
// A Recognizer instance serves one Analyze run and is closed by the service.
type Recognizer interface {
	Enabled(ctx context.Context) bool
	Languages(ctx context.Context) []string
	Recognize(ctx context.Context, id string, data []byte, dpi int) *model.OCRResult
	Close() error
}

// Store is the persistence surface the orchestrator drives. *store.Store
// satisfies it.
type Store interface {
	CreateDocument(ctx context.Context, doc *model.Document) (string, error)
	SaveAnalysis(ctx context.Context, documentID string, sections []model.Section, images []model.ImageAnnotation, texts []model.TextAnnotation) error
	UpdateDocumentStatus(ctx context.Context, id string, status model.AnalysisStatus, totalSections int) error
}

// Request is one document analysis job.
type Request struct {
	// Name is the caller-supplied document name.
	Name string
	// MediaType declares the payload content type.
	MediaType string
	// Data is the raw document byte buffer.
	Data []byte
	// SessionID and MessageID are optional correlation identifiers.
	SessionID string
	MessageID string
}

type config struct {
	recognizer func() Recognizer
	logger     observability.Logger
	tracer     observability.Tracer
	metrics    observability.Metrics
}

// Option customizes a Service.
type Option func(*config)

// WithRecognizer registers a factory producing one Recognizer per Analyze
// run. Without it, OCR enrichment is skipped entirely.
func WithRecognizer(fn func() Recognizer) Option {
	return func(c *config) { c.recognizer = fn }
}

// WithLogger sets the logger. Default: NopLogger.
func WithLogger(l observability.Logger) Option { return func(c *config) { c.logger = l } }

// WithTracer sets the tracer. Default: NopTracer.
func WithTracer(t observability.Tracer) Option { return func(c *config) { c.tracer = t } }

// WithMetrics sets the metrics sink. Default: NopMetrics.
func WithMetrics(m observability.Metrics) Option { return func(c *config) { c.metrics = m } }

// Service ties the parser, the recognition adapter, and the store together.
// A Service handles one Analyze call at a time per store handle.
type Service struct {
	parser DocumentParser
	store  Store
	cfg    config
}

// New constructs a Service.
func New(parser DocumentParser, st Store, opts ...Option) *Service {
	cfg := config{
		logger:  observability.NopLogger{},
		tracer:  observability.NopTracer(),
		metrics: observability.NopMetrics{},
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Service{parser: parser, store: st, cfg: cfg}
}

// Analyze runs the full pipeline for one document and returns its summary
// report. Parse and storage failures propagate; recognition problems only
// reduce enrichment. Writes already committed before a late failure are not
// rolled back, but the document is marked failed.
func (s *Service) Analyze(ctx context.Context, req Request) (*Report, error) {
	documentID := uuid.NewString()
	ctx, span := s.cfg.tracer.StartSpan(ctx, "annotate.analyze")
	defer span.Finish()
	span.SetTag("document_id", documentID)

	started := time.Now()
	s.cfg.logger.Info("document analysis started",
		observability.String("document_id", documentID),
		observability.String("name", req.Name),
		observability.Int("bytes", len(req.Data)))

	res, err := s.parser.Parse(ctx, req.Data, documentID)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("annotate: parse %s: %w", req.Name, err)
	}
	s.cfg.metrics.Observe(observability.MetricParseTime, time.Since(started).Seconds())
	s.cfg.metrics.Observe(observability.MetricPageCount, float64(res.PageCount))
	s.cfg.metrics.Observe(observability.MetricImageCount, float64(len(res.Images)))
	s.cfg.metrics.Observe(observability.MetricTextCount, float64(len(res.Texts)))

	ocrSummary := s.enrich(ctx, res)
	res.Metadata.OCR = ocrSummary

	doc := &model.Document{
		ID:        documentID,
		Name:      req.Name,
		MediaType: req.MediaType,
		ByteSize:  int64(len(req.Data)),
		SessionID: req.SessionID,
		MessageID: req.MessageID,
		Status:    model.StatusAnalyzing,
		PageCount: res.PageCount,
		Metadata:  res.Metadata,
	}
	if _, err := s.store.CreateDocument(ctx, doc); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("annotate: persist document: %w", err)
	}

	sections, images, warnings := buildSections(res)
	warnings = append(res.Warnings, warnings...)

	writeStarted := time.Now()
	if err := s.store.SaveAnalysis(ctx, documentID, sections, images, res.Texts); err != nil {
		span.SetError(err)
		s.markFailed(ctx, documentID)
		return nil, fmt.Errorf("annotate: persist annotations: %w", err)
	}
	s.cfg.metrics.Observe(observability.MetricStoreWriteTime, time.Since(writeStarted).Seconds())
	if err := s.store.UpdateDocumentStatus(ctx, documentID, model.StatusCompleted, len(sections)); err != nil {
		span.SetError(err)
		s.markFailed(ctx, documentID)
		return nil, fmt.Errorf("annotate: finalize document: %w", err)
	}

	report := buildReport(doc, res, images, warnings)
	s.cfg.logger.Info("document analysis completed",
		observability.String("document_id", documentID),
		observability.Int("pages", res.PageCount),
		observability.Int("images", len(res.Images)),
		observability.Int("text_sections", len(res.Texts)),
		observability.Int64("elapsed_ms", time.Since(started).Milliseconds()))
	return report, nil
}

// enrich runs recognition over eligible images, merging results in place. The
// adapter lives for exactly this run and is always closed.
func (s *Service) enrich(ctx context.Context, res *analyzer.Result) model.OCRSummary {
	if s.cfg.recognizer == nil {
		return model.OCRSummary{}
	}
	rec := s.cfg.recognizer()
	defer func() {
		if err := rec.Close(); err != nil {
			s.cfg.logger.Warn("recognizer close failed", observability.Error("error", err))
		}
	}()

	if !rec.Enabled(ctx) {
		return model.OCRSummary{}
	}

	started := time.Now()
	summary := model.OCRSummary{Enabled: true, Languages: rec.Languages(ctx)}
	for i := range res.Images {
		img := &res.Images[i]
		if !img.OCREligible {
			continue
		}
		if out := rec.Recognize(ctx, img.SectionID, img.Data, img.DPI); out != nil {
			img.OCR = out
			summary.ImageCount++
		}
	}
	summary.Duration = time.Since(started)
	s.cfg.metrics.Observe(observability.MetricOCRTime, summary.Duration.Seconds())
	s.cfg.metrics.Observe(observability.MetricOCRImageCount, float64(summary.ImageCount))
	return summary
}

func (s *Service) markFailed(ctx context.Context, documentID string) {
	if err := s.store.UpdateDocumentStatus(ctx, documentID, model.StatusFailed, -1); err != nil {
		s.cfg.logger.Warn("could not mark document failed",
			observability.String("document_id", documentID),
			observability.Error("error", err))
	}
}

// buildSections derives the generic section rows from the parse result,
// images first then text groups, each paired 1:1 with its detail record.
// Validation findings surface as warnings, never as errors.
func buildSections(res *analyzer.Result) ([]model.Section, []model.ImageAnnotation, []string) {
	var warnings []string
	sections := make([]model.Section, 0, len(res.Images)+len(res.Texts))
	images := make([]model.ImageAnnotation, 0, len(res.Images))
	ordinal := 0

	for i := range res.Images {
		img := &res.Images[i]
		if err := img.Validate(); err != nil {
			warnings = append(warnings, err.Error())
		}
		preview := ""
		if img.Caption != nil {
			preview = truncate(img.Caption.Text, previewLimit)
		} else if img.OCR != nil {
			preview = truncate(img.OCR.Text, previewLimit)
		}
		sections = append(sections, model.Section{
			DocumentID: res.DocumentID,
			SectionID:  img.SectionID,
			Type:       model.SectionImage,
			Ordinal:    ordinal,
			PageNumber: img.PageNumber,
			Preview:    preview,
			Selected:   true,
		})
		images = append(images, img.ImageAnnotation)
		ordinal++
	}

	for i := range res.Texts {
		txt := &res.Texts[i]
		sections = append(sections, model.Section{
			DocumentID:    res.DocumentID,
			SectionID:     txt.SectionID,
			Type:          model.SectionText,
			Ordinal:       ordinal,
			PageNumber:    txt.PageNumber,
			Preview:       truncate(txt.Content, previewLimit),
			ContentLength: txt.CharCount,
			Selected:      true,
		})
		ordinal++
	}
	return sections, images, warnings
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
