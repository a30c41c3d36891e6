// Package model defines the annotation records produced by document analysis
// and persisted by the store: documents, sections, and the per-section image
// and text detail annotations.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/wudi/pdfannot/geo"
)

// AnalysisStatus tracks the forward-only lifecycle of a document analysis.
type AnalysisStatus string

const (
	StatusPending   AnalysisStatus = "pending"
	StatusAnalyzing AnalysisStatus = "analyzing"
	StatusCompleted AnalysisStatus = "completed"
	StatusFailed    AnalysisStatus = "failed"
)

// CanTransition reports whether moving to next is a legal forward transition.
func (s AnalysisStatus) CanTransition(next AnalysisStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusAnalyzing
	case StatusAnalyzing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Valid reports whether s is one of the known status values.
func (s AnalysisStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAnalyzing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// SectionType discriminates the kind of content a section records.
type SectionType string

const (
	SectionText       SectionType = "text"
	SectionImage      SectionType = "image"
	SectionMetadata   SectionType = "metadata"
	SectionForm       SectionType = "form"
	SectionLink       SectionType = "link"
	SectionAnnotation SectionType = "annotation"
)

// ContentType classifies a text section.
type ContentType string

const (
	ContentParagraph ContentType = "paragraph"
	ContentHeading   ContentType = "heading"
	ContentList      ContentType = "list"
	ContentTable     ContentType = "table"
	ContentCaption   ContentType = "caption"
	ContentOther     ContentType = "other"
)

// OCRSummary aggregates the recognition work performed for one document.
type OCRSummary struct {
	Enabled    bool          `json:"enabled"`
	Languages  []string      `json:"languages,omitempty"`
	ImageCount int           `json:"image_count"`
	Duration   time.Duration `json:"duration"`
}

// DocumentMetadata carries the standard document info fields plus the OCR
// summary. Missing fields stay zero-valued. Extra is an escape hatch for
// non-core metadata only.
type DocumentMetadata struct {
	Title        string            `json:"title,omitempty"`
	Author       string            `json:"author,omitempty"`
	Subject      string            `json:"subject,omitempty"`
	Keywords     string            `json:"keywords,omitempty"`
	Creator      string            `json:"creator,omitempty"`
	Producer     string            `json:"producer,omitempty"`
	CreationDate string            `json:"creation_date,omitempty"`
	ModDate      string            `json:"mod_date,omitempty"`
	OCR          OCRSummary        `json:"ocr"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Document is one parsed unit.
type Document struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	MediaType     string           `json:"media_type"`
	ByteSize      int64            `json:"byte_size"`
	SessionID     string           `json:"session_id,omitempty"`
	MessageID     string           `json:"message_id,omitempty"`
	Status        AnalysisStatus   `json:"status"`
	PageCount     int              `json:"page_count"`
	TotalSections int              `json:"total_sections"`
	Metadata      DocumentMetadata `json:"metadata"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Section is the generic per-content-unit record. (DocumentID, SectionID) is
// unique per document; the image/text annotations below are 1:1 detail
// records keyed by the same pair.
type Section struct {
	DocumentID      string            `json:"document_id"`
	SectionID       string            `json:"section_id"`
	Type            SectionType       `json:"type"`
	Ordinal         int               `json:"ordinal"`
	PageNumber      int               `json:"page_number,omitempty"`
	Preview         string            `json:"preview,omitempty"`
	ContentLength   int               `json:"content_length"`
	Sensitive       bool              `json:"sensitive"`
	MatchedPatterns []string          `json:"matched_patterns,omitempty"`
	Confidence      float64           `json:"confidence"`
	Selected        bool              `json:"selected"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// Caption is the text heuristically identified as labeling an image.
type Caption struct {
	Text     string               `json:"text"`
	Position geo.RelativePosition `json:"position"`
	Bounds   *geo.Rect            `json:"bounds,omitempty"`
}

// LanguageScore is one entry of a ranked language detection result.
type LanguageScore struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// OCRResult holds the recognition output merged into an image annotation.
type OCRResult struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	Language   string          `json:"language,omitempty"`
	Languages  []LanguageScore `json:"languages,omitempty"`
}

// ImageAnnotation is the full-detail record for one image section.
type ImageAnnotation struct {
	DocumentID string `json:"document_id"`
	SectionID  string `json:"section_id"`
	PageNumber int    `json:"page_number"`
	ImageIndex int    `json:"image_index"`

	WidthPx  int `json:"width_px"`
	HeightPx int `json:"height_px"`
	// Physical dimensions derived from the pixel extent at 72 points per inch,
	// rounded to two decimal places.
	WidthCm      float64 `json:"width_cm"`
	HeightCm     float64 `json:"height_cm"`
	WidthInches  float64 `json:"width_inches"`
	HeightInches float64 `json:"height_inches"`

	Bounds  geo.Rect `json:"bounds"`
	Caption *Caption `json:"caption,omitempty"`

	Format          string `json:"format,omitempty"`
	ColorSpace      string `json:"color_space,omitempty"`
	DPI             int    `json:"dpi,omitempty"`
	Inline          bool   `json:"inline"`
	HasTransparency bool   `json:"has_transparency"`

	OCR *OCRResult `json:"ocr,omitempty"`
}

// Validate checks the image invariants: positive pixel dimensions and a
// well-ordered bounding box.
func (a *ImageAnnotation) Validate() error {
	if a.WidthPx <= 0 || a.HeightPx <= 0 {
		return fmt.Errorf("image %s: pixel dimensions must be positive, got %dx%d", a.SectionID, a.WidthPx, a.HeightPx)
	}
	if !a.Bounds.Valid() {
		return fmt.Errorf("image %s: bounding box %s is not ordered", a.SectionID, a.Bounds)
	}
	return nil
}

// TextAnnotation is the full-detail record for one text section. Sections
// form a tree via ParentSectionID; roots have an empty parent.
type TextAnnotation struct {
	DocumentID      string `json:"document_id"`
	SectionID       string `json:"section_id"`
	PageNumber      int    `json:"page_number"`
	SectionIndex    int    `json:"section_index"`
	ParentSectionID string `json:"parent_section_id,omitempty"`
	// Level is the depth in the inferred outline; smaller means higher.
	Level int `json:"level"`

	Title       string      `json:"title,omitempty"`
	Content     string      `json:"content"`
	ContentType ContentType `json:"content_type"`
	WordCount   int         `json:"word_count"`
	CharCount   int         `json:"char_count"`

	Bounds   *geo.Rect `json:"bounds,omitempty"`
	FontName string    `json:"font_name,omitempty"`
	FontSize float64   `json:"font_size,omitempty"`
	Bold     bool      `json:"bold"`
	Italic   bool      `json:"italic"`
	Color    string    `json:"color,omitempty"`

	HasDigit bool   `json:"has_digit"`
	HasURL   bool   `json:"has_url"`
	Language string `json:"language,omitempty"`
}

// CountWords returns the number of whitespace-delimited non-empty tokens.
func CountWords(s string) int { return len(strings.Fields(s)) }

// RedactionCategory classifies a redaction pattern.
type RedactionCategory string

const (
	CategoryPII       RedactionCategory = "pii"
	CategoryFinancial RedactionCategory = "financial"
	CategoryMedical   RedactionCategory = "medical"
	CategoryLegal     RedactionCategory = "legal"
	CategoryOther     RedactionCategory = "other"
)

// RedactionPattern is owned by the external pattern-matching collaborator and
// referenced here by name only.
type RedactionPattern struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Regex    string            `json:"regex"`
	Category RedactionCategory `json:"category"`
	Severity int               `json:"severity"`
	Active   bool              `json:"active"`
}

// RedactionResult records one pattern match against a stored section.
type RedactionResult struct {
	DocumentID  string    `json:"document_id"`
	SectionID   string    `json:"section_id"`
	PatternName string    `json:"pattern_name"`
	MatchedAt   time.Time `json:"matched_at"`
}

// RedactionPreference is a per-device toggle for one pattern category.
type RedactionPreference struct {
	DeviceID string            `json:"device_id"`
	Category RedactionCategory `json:"category"`
	Enabled  bool              `json:"enabled"`
}
