package annotate

import (
	"sort"

	"github.com/wudi/pdfannot/analyzer"
	"github.com/wudi/pdfannot/geo"
	"github.com/wudi/pdfannot/model"
)

// PageCounts is the per-page annotation breakdown.
type PageCounts struct {
	Page         int `json:"page"`
	Images       int `json:"images"`
	TextSections int `json:"text_sections"`
}

// AverageImageSize is the mean placed image extent across a document, in
// centimeters and inches, rounded to two decimals.
type AverageImageSize struct {
	WidthCm      float64 `json:"width_cm"`
	HeightCm     float64 `json:"height_cm"`
	WidthInches  float64 `json:"width_inches"`
	HeightInches float64 `json:"height_inches"`
}

// Report is the summary returned to the caller after a successful analysis.
type Report struct {
	DocumentID        string                 `json:"document_id"`
	Name              string                 `json:"name"`
	Status            model.AnalysisStatus   `json:"status"`
	PageCount         int                    `json:"page_count"`
	TotalSections     int                    `json:"total_sections"`
	TotalImages       int                    `json:"total_images"`
	TotalTextSections int                    `json:"total_text_sections"`
	ImagesWithCaption int                    `json:"images_with_caption"`
	CaptionPercentage float64                `json:"caption_percentage"`
	PerPage           []PageCounts           `json:"per_page,omitempty"`
	AverageImageSize  AverageImageSize       `json:"average_image_size"`
	Metadata          model.DocumentMetadata `json:"metadata"`
	Warnings          []string               `json:"warnings,omitempty"`
}

// buildReport aggregates the parse result into the caller-facing summary.
// All ratios are zero-division safe: an empty document reports zeros.
func buildReport(doc *model.Document, res *analyzer.Result, images []model.ImageAnnotation, warnings []string) *Report {
	r := &Report{
		DocumentID:        doc.ID,
		Name:              doc.Name,
		Status:            model.StatusCompleted,
		PageCount:         res.PageCount,
		TotalSections:     len(images) + len(res.Texts),
		TotalImages:       len(images),
		TotalTextSections: len(res.Texts),
		Metadata:          res.Metadata,
		Warnings:          warnings,
	}

	perPage := make(map[int]*PageCounts)
	counts := func(page int) *PageCounts {
		pc, ok := perPage[page]
		if !ok {
			pc = &PageCounts{Page: page}
			perPage[page] = pc
		}
		return pc
	}

	var sumWidth, sumHeight float64
	for i := range images {
		img := &images[i]
		counts(img.PageNumber).Images++
		if img.Caption != nil {
			r.ImagesWithCaption++
		}
		sumWidth += img.Bounds.Width()
		sumHeight += img.Bounds.Height()
	}
	for i := range res.Texts {
		counts(res.Texts[i].PageNumber).TextSections++
	}

	if r.TotalImages > 0 {
		r.CaptionPercentage = geo.Round2(float64(r.ImagesWithCaption) / float64(r.TotalImages) * 100)
		meanW := sumWidth / float64(r.TotalImages)
		meanH := sumHeight / float64(r.TotalImages)
		r.AverageImageSize = AverageImageSize{
			WidthCm:      geo.Round2(geo.PointsToCm(meanW)),
			HeightCm:     geo.Round2(geo.PointsToCm(meanH)),
			WidthInches:  geo.Round2(geo.PointsToInches(meanW)),
			HeightInches: geo.Round2(geo.PointsToInches(meanH)),
		}
	}

	for _, pc := range perPage {
		r.PerPage = append(r.PerPage, *pc)
	}
	sort.Slice(r.PerPage, func(i, j int) bool { return r.PerPage[i].Page < r.PerPage[j].Page })
	return r
}
