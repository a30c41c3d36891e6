// Package pdfread is the binary-document access boundary for the annotation
// pipeline. It wraps pdfcpu for document structure (pages, metadata, image
// XObjects) and ledongthuc/pdf for character-level glyph runs, and exposes
// only what the analyzer needs: page geometry, placed images, and text runs.
package pdfread

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/pdfannot/geo"
)

// ErrUnsupportedDocument marks input that is password-protected or not a
// well-formed PDF. It aborts the whole parse.
var ErrUnsupportedDocument = errors.New("pdfread: unsupported document")

// Document is an opened PDF ready for page-level access. It is not safe for
// concurrent use.
type Document struct {
	data []byte
	ctx  *model.Context
	dims []types.Dim

	text    *pdf.Reader
	textErr error
}

// Open parses raw PDF bytes. Password-protected or malformed input fails
// with ErrUnsupportedDocument.
func Open(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnsupportedDocument)
	}
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedDocument, err)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("%w: page dimensions: %v", ErrUnsupportedDocument, err)
	}

	d := &Document{data: data, ctx: ctx, dims: dims}
	// Glyph-run access is best effort: a reader failure degrades text
	// extraction to empty pages instead of rejecting the document.
	d.text, d.textErr = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	return d, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return d.ctx.PageCount }

// PageBounds returns the media box of the 1-based page in points.
func (d *Document) PageBounds(page int) geo.Rect {
	if page < 1 || page > len(d.dims) {
		return geo.Rect{}
	}
	dim := d.dims[page-1]
	return geo.Rect{X1: 0, Y1: 0, X2: dim.Width, Y2: dim.Height}
}

// Info carries the standard document information fields, raw as stored.
type Info struct {
	Title        string
	Author       string
	Subject      string
	Keywords     string
	Creator      string
	Producer     string
	CreationDate string
	ModDate      string
}

// Metadata reads the document info dictionary. Missing or undecodable fields
// are omitted, never fatal.
func (d *Document) Metadata() Info {
	var info Info
	if d.ctx.Info == nil {
		return info
	}
	dict, err := d.ctx.DereferenceDict(*d.ctx.Info)
	if err != nil || dict == nil {
		return info
	}
	info.Title = d.infoString(dict, "Title")
	info.Author = d.infoString(dict, "Author")
	info.Subject = d.infoString(dict, "Subject")
	info.Keywords = d.infoString(dict, "Keywords")
	info.Creator = d.infoString(dict, "Creator")
	info.Producer = d.infoString(dict, "Producer")
	info.CreationDate = d.infoString(dict, "CreationDate")
	info.ModDate = d.infoString(dict, "ModDate")
	return info
}

func (d *Document) infoString(dict types.Dict, key string) string {
	obj, ok := dict.Find(key)
	if !ok {
		return ""
	}
	obj, err := d.ctx.Dereference(obj)
	if err != nil {
		return ""
	}
	switch v := obj.(type) {
	case types.StringLiteral:
		s, err := types.StringLiteralToString(v)
		if err != nil {
			return ""
		}
		return s
	case types.HexLiteral:
		s, err := types.HexLiteralToString(v)
		if err != nil {
			return ""
		}
		return s
	}
	return ""
}

// GlyphRun is one positioned text run on a page. X and Y locate the baseline
// origin in points; W is the advance width.
type GlyphRun struct {
	Text     string
	Font     string
	FontSize float64
	X        float64
	Y        float64
	W        float64
}

// TextLayerError reports why glyph-run access is unavailable, or nil. While
// it is non-nil every page yields empty text runs.
func (d *Document) TextLayerError() error { return d.textErr }

// TextRuns returns the glyph runs of the 1-based page in content order. Pages
// without text, or documents whose text layer could not be opened, yield an
// empty slice.
func (d *Document) TextRuns(page int) ([]GlyphRun, error) {
	if d.textErr != nil {
		return nil, nil
	}
	if page < 1 || page > d.text.NumPage() {
		return nil, fmt.Errorf("pdfread: page %d out of range", page)
	}
	p := d.text.Page(page)
	if p.V.IsNull() {
		return nil, nil
	}
	content := p.Content()
	runs := make([]GlyphRun, 0, len(content.Text))
	for _, t := range content.Text {
		runs = append(runs, GlyphRun{
			Text:     t.S,
			Font:     t.Font,
			FontSize: t.FontSize,
			X:        t.X,
			Y:        t.Y,
			W:        t.W,
		})
	}
	return runs, nil
}
