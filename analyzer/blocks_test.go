package analyzer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/wudi/pdfannot/model"
	"github.com/wudi/pdfannot/pdfread"
)

func run(s string, x, y, w, size float64, font string) pdfread.GlyphRun {
	return pdfread.GlyphRun{Text: s, X: x, Y: y, W: w, FontSize: size, Font: font}
}

func TestBuildBlocksCoalescesLines(t *testing.T) {
	runs := []pdfread.GlyphRun{
		run("Hello", 100, 700, 30, 12, "Helvetica"),
		run("world", 140, 700, 30, 12, "Helvetica"),
		run("Next", 100, 680, 28, 12, "Helvetica"),
	}
	blocks := buildBlocks(runs)
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(blocks))
	}
	if got := blocks[0].String(); got != "Hello world" {
		t.Fatalf("first block = %q, want %q", got, "Hello world")
	}
	if got := blocks[1].String(); got != "Next" {
		t.Fatalf("second block = %q, want %q", got, "Next")
	}
	b := blocks[0].bounds
	if b.X1 != 100 || b.Y1 != 700 || b.X2 != 170 || b.Y2 != 712 {
		t.Fatalf("bounds = %v", b)
	}
}

func TestBuildBlocksDropsEmpty(t *testing.T) {
	runs := []pdfread.GlyphRun{
		run("   ", 100, 700, 10, 12, "Helvetica"),
		run("", 120, 700, 0, 12, "Helvetica"),
	}
	if blocks := buildBlocks(runs); len(blocks) != 0 {
		t.Fatalf("blocks = %d, want 0", len(blocks))
	}
}

func TestBuildBlocksTypographyFromFirstGlyph(t *testing.T) {
	runs := []pdfread.GlyphRun{
		run("Bold", 100, 700, 30, 16, "Helvetica-Bold"),
		run("tail", 140, 700, 20, 12, "Helvetica"),
	}
	blocks := buildBlocks(runs)
	if len(blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(blocks))
	}
	if !blocks[0].bold || blocks[0].fontSize != 16 || blocks[0].font != "Helvetica-Bold" {
		t.Fatalf("typography not taken from first glyph: %+v", blocks[0])
	}
}

func TestGroupBlocksHeadingNeverMergesBack(t *testing.T) {
	para1 := &block{fontSize: 11}
	para1.text.WriteString("body one")
	para2 := &block{fontSize: 11}
	para2.text.WriteString("body two")
	heading := &block{fontSize: 18}
	heading.text.WriteString("Chapter")
	para3 := &block{fontSize: 11}
	para3.text.WriteString("after heading")

	groups := groupBlocks([]*block{para1, para2, heading, para3}, true)
	if len(groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(groups))
	}
	if len(groups[0].blocks) != 2 || groups[0].level != 3 {
		t.Fatalf("consecutive paragraphs must merge: %+v", groups[0])
	}
	if groups[1].level != 1 || len(groups[1].blocks) != 1 {
		t.Fatalf("heading group wrong: %+v", groups[1])
	}
	if groups[2].level != 3 {
		t.Fatalf("trailing paragraph level = %d, want 3", groups[2].level)
	}
}

func TestGroupBlocksConsecutiveHeadingsSplit(t *testing.T) {
	h1 := &block{fontSize: 18}
	h1.text.WriteString("One")
	h2 := &block{fontSize: 18}
	h2.text.WriteString("Two")
	groups := groupBlocks([]*block{h1, h2}, true)
	if len(groups) != 2 {
		t.Fatalf("each heading candidate starts its own group, got %d", len(groups))
	}
}

func TestGroupBlocksHierarchyDisabled(t *testing.T) {
	a := &block{fontSize: 11}
	a.text.WriteString("a")
	b := &block{fontSize: 11}
	b.text.WriteString("b")
	groups := groupBlocks([]*block{a, b}, false)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	for _, g := range groups {
		if g.level != 1 {
			t.Fatalf("level = %d, want 1", g.level)
		}
	}
}

func TestBlockLevels(t *testing.T) {
	tests := []struct {
		size float64
		bold bool
		want int
	}{
		{20, false, 1},
		{18, false, 1},
		{14, false, 2},
		{11, true, 2},
		{11, false, 3},
	}
	for _, tt := range tests {
		b := &block{fontSize: tt.size, bold: tt.bold}
		if got := blockLevel(b); got != tt.want {
			t.Errorf("blockLevel(size=%v bold=%v) = %d, want %d", tt.size, tt.bold, got, tt.want)
		}
	}
}

func TestIsCaptionText(t *testing.T) {
	yes := []string{
		"Fig 1.1 Sample", "Figure 2 overview", "fig. 3.2.1 detail",
		"Table 4 results", "Image 7", "Diagram 1.2", "Chart 12 trend",
		"Photo 9", "Illustration 3.4",
	}
	for _, s := range yes {
		if !isCaptionText(s) {
			t.Errorf("expected caption: %q", s)
		}
	}
	no := []string{"Figure skating", "Fig", "Table of contents", "A plain sentence."}
	for _, s := range no {
		if isCaptionText(s) {
			t.Errorf("unexpected caption: %q", s)
		}
	}
}

func TestClassify(t *testing.T) {
	para := &group{level: 3, blocks: []*block{{fontSize: 11}}}
	if got := classify(para, "1. first item"); got != model.ContentList {
		t.Fatalf("list classification = %v", got)
	}
	if got := classify(para, "- bullet item"); got != model.ContentList {
		t.Fatalf("dash list classification = %v", got)
	}
	if got := classify(para, "Plain sentence."); got != model.ContentParagraph {
		t.Fatalf("paragraph classification = %v", got)
	}
	head := &group{level: 2, blocks: []*block{{fontSize: 14}}}
	if got := classify(head, "Background"); got != model.ContentHeading {
		t.Fatalf("heading classification = %v", got)
	}
	// Caption wins over heading-sized type.
	if got := classify(head, "Figure 3 apparatus"); got != model.ContentCaption {
		t.Fatalf("caption must take precedence, got %v", got)
	}
}

func TestAnnotationsFromGroupsCountsAndParents(t *testing.T) {
	h := &block{fontSize: 18, started: true}
	h.text.WriteString("Résults")
	sub := &block{fontSize: 14, started: true}
	sub.text.WriteString("Details")
	p1 := &block{fontSize: 11, started: true}
	p1.text.WriteString("alpha beta gamma")

	groups := groupBlocks([]*block{h, sub, p1}, true)
	anns := annotationsFromGroups(groups, "doc1", 2)
	if len(anns) != 3 {
		t.Fatalf("annotations = %d, want 3", len(anns))
	}

	root, child, leaf := anns[0], anns[1], anns[2]
	if root.ParentSectionID != "" {
		t.Fatalf("root parent = %q, want empty", root.ParentSectionID)
	}
	if child.ParentSectionID != root.SectionID {
		t.Fatalf("child parent = %q, want %q", child.ParentSectionID, root.SectionID)
	}
	if leaf.ParentSectionID != child.SectionID {
		t.Fatalf("leaf parent = %q, want %q", leaf.ParentSectionID, child.SectionID)
	}
	if root.ContentType != model.ContentHeading || root.Title != "Résults" {
		t.Fatalf("heading title not set: %+v", root)
	}

	for _, a := range anns {
		if a.CharCount != utf8.RuneCountInString(a.Content) {
			t.Errorf("%s: char count %d != %d", a.SectionID, a.CharCount, utf8.RuneCountInString(a.Content))
		}
		if a.WordCount != len(strings.Fields(a.Content)) {
			t.Errorf("%s: word count %d != %d", a.SectionID, a.WordCount, len(strings.Fields(a.Content)))
		}
	}
	if leaf.HasDigit != containsDigit(leaf.Content) {
		t.Errorf("digit flag inconsistent")
	}
	if leaf.SectionID != "doc1_txt_p2_s2" {
		t.Fatalf("section id = %q", leaf.SectionID)
	}
}
