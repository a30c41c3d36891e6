package pdfread

import (
	"math"

	"github.com/wudi/pdfannot/geo"
)

// placement records where a raster region lands on the page after the
// current transformation matrix is applied to the XObject unit square.
type placement struct {
	name    string
	bounds  geo.Rect
	inline  bool
	inlineW int
	inlineH int
}

// matrix is a PDF transformation matrix [a b c d e f].
type matrix [6]float64

func identity() matrix { return matrix{1, 0, 0, 1, 0, 0} }

// mul returns m concatenated onto base, as the cm operator does.
func (m matrix) mul(base matrix) matrix {
	return matrix{
		m[0]*base[0] + m[1]*base[2],
		m[0]*base[1] + m[1]*base[3],
		m[2]*base[0] + m[3]*base[2],
		m[2]*base[1] + m[3]*base[3],
		m[4]*base[0] + m[5]*base[2] + base[4],
		m[4]*base[1] + m[5]*base[3] + base[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// unitSquareBounds transforms the XObject unit square through m and returns
// the covering axis-aligned rectangle.
func (m matrix) unitSquareBounds() geo.Rect {
	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64
	for _, c := range [4][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		x, y := m.apply(c[0], c[1])
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	return geo.Rect{X1: minX, Y1: minY, X2: maxX, Y2: maxY}
}

// scanPlacements walks a page content stream tracking the graphics state and
// returns one placement per Do of an XObject plus one per inline image.
// Unknown operators are ignored; only q, Q, cm, Do and BI..EI matter here.
func scanPlacements(data []byte) []placement {
	var out []placement
	sc := newContentScanner(data)
	ctm := identity()
	var stack []matrix
	var operands []token

	for {
		tok, ok := sc.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}
		switch tok.text {
		case "q":
			stack = append(stack, ctm)
		case "Q":
			if n := len(stack); n > 0 {
				ctm = stack[n-1]
				stack = stack[:n-1]
			}
		case "cm":
			if m, ok := matrixFromOperands(operands); ok {
				ctm = m.mul(ctm)
			}
		case "Do":
			if name, ok := lastName(operands); ok {
				out = append(out, placement{name: name, bounds: ctm.unitSquareBounds()})
			}
		case "BI":
			w, h := sc.skipInlineImage()
			out = append(out, placement{
				inline:  true,
				inlineW: w,
				inlineH: h,
				bounds:  ctm.unitSquareBounds(),
			})
		}
		operands = operands[:0]
	}
	return out
}

func matrixFromOperands(operands []token) (matrix, bool) {
	if len(operands) < 6 {
		return matrix{}, false
	}
	var m matrix
	for i := 0; i < 6; i++ {
		t := operands[len(operands)-6+i]
		if !t.isNum {
			return matrix{}, false
		}
		m[i] = t.num
	}
	return m, true
}

func lastName(operands []token) (string, bool) {
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].kind == tokName {
			return operands[i].text, true
		}
	}
	return "", false
}
