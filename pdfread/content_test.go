package pdfread

import (
	"math"
	"testing"

	"github.com/wudi/pdfannot/geo"
)

func rectsClose(a, b geo.Rect) bool {
	const eps = 1e-6
	return math.Abs(a.X1-b.X1) < eps && math.Abs(a.Y1-b.Y1) < eps &&
		math.Abs(a.X2-b.X2) < eps && math.Abs(a.Y2-b.Y2) < eps
}

func TestScanPlacementsSimpleDo(t *testing.T) {
	stream := []byte("q 200 0 0 100 100 600 cm /Im1 Do Q")
	got := scanPlacements(stream)
	if len(got) != 1 {
		t.Fatalf("placements = %d, want 1", len(got))
	}
	if got[0].name != "Im1" {
		t.Fatalf("name = %q, want Im1", got[0].name)
	}
	want := geo.Rect{X1: 100, Y1: 600, X2: 300, Y2: 700}
	if !rectsClose(got[0].bounds, want) {
		t.Fatalf("bounds = %v, want %v", got[0].bounds, want)
	}
}

func TestScanPlacementsRestoresState(t *testing.T) {
	stream := []byte(`
		q 2 0 0 2 0 0 cm
		q 50 0 0 50 10 10 cm /A Do Q
		/B Do
		Q
		q 10 0 0 10 5 5 cm /C Do Q
	`)
	got := scanPlacements(stream)
	if len(got) != 3 {
		t.Fatalf("placements = %d, want 3", len(got))
	}
	// A: inner cm concatenated onto the outer doubling.
	if want := (geo.Rect{X1: 20, Y1: 20, X2: 120, Y2: 120}); !rectsClose(got[0].bounds, want) {
		t.Fatalf("A bounds = %v, want %v", got[0].bounds, want)
	}
	// B: only the outer doubling applies after the inner Q.
	if want := (geo.Rect{X1: 0, Y1: 0, X2: 2, Y2: 2}); !rectsClose(got[1].bounds, want) {
		t.Fatalf("B bounds = %v, want %v", got[1].bounds, want)
	}
	// C: outer state fully restored before the final q.
	if want := (geo.Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}); !rectsClose(got[2].bounds, want) {
		t.Fatalf("C bounds = %v, want %v", got[2].bounds, want)
	}
}

func TestScanPlacementsNegativeScaleNormalizes(t *testing.T) {
	// A flipped image still yields an ordered bbox.
	stream := []byte("q 100 0 0 -50 10 60 cm /Im0 Do Q")
	got := scanPlacements(stream)
	if len(got) != 1 {
		t.Fatalf("placements = %d, want 1", len(got))
	}
	want := geo.Rect{X1: 10, Y1: 10, X2: 110, Y2: 60}
	if !rectsClose(got[0].bounds, want) {
		t.Fatalf("bounds = %v, want %v", got[0].bounds, want)
	}
}

func TestScanPlacementsInlineImage(t *testing.T) {
	stream := []byte("q 30 0 0 20 5 5 cm BI /W 6 /H 4 /BPC 8 /CS /G ID \x01\x02\x03 EI Q /Im9 Do")
	got := scanPlacements(stream)
	if len(got) != 2 {
		t.Fatalf("placements = %d, want 2", len(got))
	}
	if !got[0].inline {
		t.Fatalf("first placement should be inline")
	}
	if got[0].inlineW != 6 || got[0].inlineH != 4 {
		t.Fatalf("inline dims = %dx%d, want 6x4", got[0].inlineW, got[0].inlineH)
	}
	if want := (geo.Rect{X1: 5, Y1: 5, X2: 35, Y2: 25}); !rectsClose(got[0].bounds, want) {
		t.Fatalf("inline bounds = %v, want %v", got[0].bounds, want)
	}
	// Scanner must resynchronize after the binary payload.
	if got[1].name != "Im9" {
		t.Fatalf("post-inline name = %q, want Im9", got[1].name)
	}
}

func TestScanPlacementsIgnoresStringsAndText(t *testing.T) {
	stream := []byte("BT /F1 12 Tf (ignore (nested) \\) parens /Im1 Do) Tj ET q 1 0 0 1 0 0 cm /Real Do Q")
	got := scanPlacements(stream)
	if len(got) != 1 || got[0].name != "Real" {
		t.Fatalf("placements = %+v, want single Real", got)
	}
}

func TestDeriveDPI(t *testing.T) {
	if got := deriveDPI(300, 72); got != 300 {
		t.Fatalf("deriveDPI(300px, 72pt) = %d, want 300", got)
	}
	if got := deriveDPI(0, 100); got != 72 {
		t.Fatalf("unknown intrinsic width must default to 72, got %d", got)
	}
	if got := deriveDPI(100, 0); got != 72 {
		t.Fatalf("unknown extent must default to 72, got %d", got)
	}
}
