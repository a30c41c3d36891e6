package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/wudi/pdfannot/model"
	"github.com/wudi/pdfannot/store"
)

// ExportJSON renders the report as indented JSON.
func ExportJSON(r *Report) ([]byte, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("annotate: encode report: %w", err)
	}
	return out, nil
}

// AnnotationExport is the flattened annotation view of one stored document.
// Text content is truncated to the preview limit.
type AnnotationExport struct {
	Document *model.Document         `json:"document,omitempty"`
	Sections []model.Section         `json:"sections,omitempty"`
	Images   []model.ImageAnnotation `json:"images,omitempty"`
	Texts    []model.TextAnnotation  `json:"texts,omitempty"`
}

// ExportAnnotations reads a stored document back and renders its flattened
// annotation model as indented JSON.
func ExportAnnotations(ctx context.Context, st *store.Store, documentID string) ([]byte, error) {
	doc, err := st.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	sections, err := st.Sections(ctx, documentID)
	if err != nil {
		return nil, err
	}
	images, err := st.ImageAnnotations(ctx, documentID, 0)
	if err != nil {
		return nil, err
	}
	texts, err := st.TextAnnotations(ctx, documentID, 0)
	if err != nil {
		return nil, err
	}
	for i := range texts {
		texts[i].Content = truncate(texts[i].Content, previewLimit)
	}
	out, err := json.MarshalIndent(AnnotationExport{
		Document: doc,
		Sections: sections,
		Images:   images,
		Texts:    texts,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("annotate: encode annotations: %w", err)
	}
	return out, nil
}

// ExportMarkdown renders the report as a human-readable markdown summary.
func ExportMarkdown(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Analysis Report: %s\n\n", r.Name)
	fmt.Fprintf(&b, "- Document: `%s`\n", r.DocumentID)
	fmt.Fprintf(&b, "- Status: %s\n", r.Status)
	fmt.Fprintf(&b, "- Pages: %d\n", r.PageCount)
	fmt.Fprintf(&b, "- Sections: %d (%d images, %d text)\n",
		r.TotalSections, r.TotalImages, r.TotalTextSections)
	fmt.Fprintf(&b, "- Images with caption: %d (%.2f%%)\n", r.ImagesWithCaption, r.CaptionPercentage)
	if r.TotalImages > 0 {
		s := r.AverageImageSize
		fmt.Fprintf(&b, "- Average image size: %.2f x %.2f cm (%.2f x %.2f in)\n",
			s.WidthCm, s.HeightCm, s.WidthInches, s.HeightInches)
	}

	if m := r.Metadata; m.Title != "" || m.Author != "" {
		b.WriteString("\n## Metadata\n\n")
		if m.Title != "" {
			fmt.Fprintf(&b, "- Title: %s\n", m.Title)
		}
		if m.Author != "" {
			fmt.Fprintf(&b, "- Author: %s\n", m.Author)
		}
		if m.Producer != "" {
			fmt.Fprintf(&b, "- Producer: %s\n", m.Producer)
		}
	}
	if r.Metadata.OCR.Enabled {
		fmt.Fprintf(&b, "\n## OCR\n\n- Languages: %s\n- Images recognized: %d\n",
			strings.Join(r.Metadata.OCR.Languages, ", "), r.Metadata.OCR.ImageCount)
	}

	if len(r.PerPage) > 0 {
		b.WriteString("\n## Per Page\n\n| Page | Images | Text Sections |\n|---:|---:|---:|\n")
		for _, pc := range r.PerPage {
			fmt.Fprintf(&b, "| %d | %d | %d |\n", pc.Page, pc.Images, pc.TextSections)
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

// ExportHTML renders the markdown summary to HTML.
func ExportHTML(r *Report) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(ExportMarkdown(r)), &buf); err != nil {
		return nil, fmt.Errorf("annotate: render report: %w", err)
	}
	return buf.Bytes(), nil
}
