package analyzer

import (
	"github.com/wudi/pdfannot/geo"
	"github.com/wudi/pdfannot/model"
)

// associateCaptions attaches, to each image, the closest same-page
// caption-typed text section within the configured maximum center distance.
// Ties keep the earlier candidate in encounter order.
func (p *Parser) associateCaptions(images []Image, texts []model.TextAnnotation) {
	for i := range images {
		var best *model.TextAnnotation
		bestDist := p.cfg.maxCaptionDistance
		for t := range texts {
			cand := &texts[t]
			if cand.ContentType != model.ContentCaption || cand.Bounds == nil {
				continue
			}
			d := geo.CenterDistance(images[i].Bounds, *cand.Bounds)
			if d < bestDist || (best == nil && d == bestDist) {
				best = cand
				bestDist = d
			}
		}
		if best == nil {
			continue
		}
		images[i].Caption = &model.Caption{
			Text:     best.Content,
			Position: captionPosition(images[i].Bounds, *best.Bounds),
			Bounds:   best.Bounds,
		}
	}
}

// captionPosition classifies where a caption sits relative to its image.
// Geometry is y-up but the labels follow rendered reading order, so the
// vertical classifications swap: a caption whose center sits below the image
// region reads as "top".
func captionPosition(image, caption geo.Rect) geo.RelativePosition {
	pos := geo.RelativePositionOf(image, caption)
	switch pos {
	case geo.PositionTop:
		return geo.PositionBottom
	case geo.PositionBottom:
		return geo.PositionTop
	}
	return pos
}
