package pdfread

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	// Codecs for DecodeConfig on extracted image payloads.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"

	"github.com/wudi/pdfannot/geo"
)

// ImageObject is one raster region discovered on a page: a placed image
// XObject or an inline image. Bounds is the placed extent in points. Data
// holds the encoded payload (nil for inline images, whose payload is not
// extracted).
type ImageObject struct {
	Name            string
	ObjNr           int
	Page            int
	Bounds          geo.Rect
	IntrinsicWidth  int
	IntrinsicHeight int
	Format          string
	ColorSpace      string
	HasAlpha        bool
	Inline          bool
	DPI             int
	Data            []byte
}

// Images returns the raster regions of the 1-based page in encounter order.
func (d *Document) Images(page int) ([]ImageObject, error) {
	extracted, err := pdfcpu.ExtractPageImages(d.ctx, page, false)
	if err != nil {
		return nil, fmt.Errorf("pdfread: extract page %d images: %w", page, err)
	}
	byName := make(map[string]*ImageObject, len(extracted))
	for objNr, img := range extracted {
		obj := &ImageObject{
			Name:  img.Name,
			ObjNr: objNr,
			Page:  page,
		}
		if data, err := io.ReadAll(img); err == nil {
			obj.Data = data
			obj.sniff()
		}
		byName[img.Name] = obj
	}

	placements, err := d.pagePlacements(page)
	if err != nil {
		return nil, err
	}

	var out []ImageObject
	placed := make(map[string]bool)
	for _, p := range placements {
		if p.inline {
			inline := ImageObject{
				Page:            page,
				Bounds:          p.bounds,
				Inline:          true,
				IntrinsicWidth:  p.inlineW,
				IntrinsicHeight: p.inlineH,
			}
			inline.DPI = deriveDPI(inline.IntrinsicWidth, p.bounds.Width())
			out = append(out, inline)
			continue
		}
		obj, ok := byName[p.name]
		if !ok {
			continue
		}
		copied := *obj
		copied.Bounds = p.bounds
		copied.DPI = deriveDPI(copied.IntrinsicWidth, p.bounds.Width())
		out = append(out, copied)
		placed[p.name] = true
	}

	return appendUnplaced(out, byName, placed), nil
}

// appendUnplaced records resources that never hit a Do operator, placed at
// the origin at their intrinsic size (one point per pixel). They come out of
// a map, so they are sorted by object number to keep image ordinals, and the
// section ids derived from them, stable across runs.
func appendUnplaced(out []ImageObject, byName map[string]*ImageObject, placed map[string]bool) []ImageObject {
	var unplaced []*ImageObject
	for _, obj := range byName {
		if placed[obj.Name] {
			continue
		}
		unplaced = append(unplaced, obj)
	}
	sort.Slice(unplaced, func(i, j int) bool {
		if unplaced[i].ObjNr != unplaced[j].ObjNr {
			return unplaced[i].ObjNr < unplaced[j].ObjNr
		}
		return unplaced[i].Name < unplaced[j].Name
	})
	for _, obj := range unplaced {
		obj.Bounds = geo.Rect{
			X2: float64(obj.IntrinsicWidth),
			Y2: float64(obj.IntrinsicHeight),
		}
		obj.DPI = geo.PointsPerInch
		out = append(out, *obj)
	}
	return out
}

func (d *Document) pagePlacements(page int) ([]placement, error) {
	r, err := pdfcpu.ExtractPageContent(d.ctx, page)
	if err != nil {
		return nil, fmt.Errorf("pdfread: page %d content: %w", page, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("pdfread: page %d content: %w", page, err)
	}
	return scanPlacements(data), nil
}

// sniff fills format, intrinsic dimensions, color space, and transparency
// from the encoded payload.
func (o *ImageObject) sniff() {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(o.Data))
	if err != nil {
		return
	}
	o.Format = format
	o.IntrinsicWidth = cfg.Width
	o.IntrinsicHeight = cfg.Height
	o.ColorSpace, o.HasAlpha = classifyColorModel(cfg.ColorModel)
}

func classifyColorModel(m color.Model) (space string, alpha bool) {
	switch m {
	case color.GrayModel, color.Gray16Model:
		return "DeviceGray", false
	case color.CMYKModel:
		return "DeviceCMYK", false
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model:
		return "DeviceRGB", true
	case color.YCbCrModel:
		return "DeviceRGB", false
	}
	if _, ok := m.(color.Palette); ok {
		return "Indexed", false
	}
	return "DeviceRGB", false
}

// deriveDPI computes the effective resolution of a placed image. When the
// intrinsic pixel width or the placed extent is unknown, the standard 72 is
// assumed.
func deriveDPI(intrinsicPx int, widthPts float64) int {
	if intrinsicPx <= 0 || widthPts <= 0 {
		return geo.PointsPerInch
	}
	return int(math.Round(float64(intrinsicPx) * geo.PointsPerInch / widthPts))
}
