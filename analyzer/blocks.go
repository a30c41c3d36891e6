package analyzer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wudi/pdfannot/geo"
	"github.com/wudi/pdfannot/model"
	"github.com/wudi/pdfannot/pdfread"
)

// Heading heuristic thresholds in points.
const (
	headingFontSize = 14
	majorHeadingPt  = 18
)

// block is one coalesced line of glyph runs: concatenated text, a growing
// bounding box, and the typography of its first glyph.
type block struct {
	text     strings.Builder
	bounds   geo.Rect
	font     string
	fontSize float64
	bold     bool
	italic   bool
	baseline float64
	rightX   float64
	started  bool
}

func (b *block) String() string { return b.text.String() }

// buildBlocks coalesces consecutive runs that share line membership. A new
// line starts when the baseline moves more than half the larger font size.
// Blocks whose trimmed text is empty are dropped.
func buildBlocks(runs []pdfread.GlyphRun) []*block {
	var blocks []*block
	var cur *block
	for _, run := range runs {
		if run.Text == "" {
			continue
		}
		if cur != nil && !sameLine(cur, run) {
			blocks = appendBlock(blocks, cur)
			cur = nil
		}
		if cur == nil {
			cur = &block{
				font:     run.Font,
				fontSize: run.FontSize,
				bold:     fontIsBold(run.Font),
				italic:   fontIsItalic(run.Font),
				baseline: run.Y,
			}
		}
		// Restore inter-word spacing lost between runs.
		if cur.started && run.X-cur.rightX > 0.3*maxFloat(cur.fontSize, run.FontSize) {
			cur.text.WriteByte(' ')
		}
		cur.text.WriteString(run.Text)
		quad := geo.NewRect(run.X, run.Y, run.X+run.W, run.Y+run.FontSize)
		if cur.started {
			cur.bounds = cur.bounds.Union(quad)
		} else {
			cur.bounds = quad
			cur.started = true
		}
		cur.rightX = run.X + run.W
	}
	return appendBlock(blocks, cur)
}

func appendBlock(blocks []*block, b *block) []*block {
	if b == nil || strings.TrimSpace(b.String()) == "" {
		return blocks
	}
	return append(blocks, b)
}

func sameLine(b *block, run pdfread.GlyphRun) bool {
	tolerance := 0.5 * maxFloat(b.fontSize, run.FontSize)
	if tolerance <= 0 {
		tolerance = 1
	}
	diff := b.baseline - run.Y
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func fontIsBold(name string) bool {
	return strings.Contains(strings.ToLower(name), "bold")
}

func fontIsItalic(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "italic") || strings.Contains(lower, "oblique")
}

// group is a run of blocks sharing one hierarchy level.
type group struct {
	blocks []*block
	level  int
}

func headingCandidate(b *block) bool {
	return b.fontSize >= headingFontSize || b.bold
}

func blockLevel(b *block) int {
	if !headingCandidate(b) {
		return 3
	}
	if b.fontSize >= majorHeadingPt {
		return 1
	}
	return 2
}

// groupBlocks clusters blocks into sections. A new group starts whenever the
// level changes or the block is itself a heading candidate, so a heading
// never absorbs trailing paragraph content. With hierarchy analysis off,
// every block is its own level-1 group.
func groupBlocks(blocks []*block, hierarchy bool) []*group {
	var groups []*group
	if !hierarchy {
		for _, b := range blocks {
			groups = append(groups, &group{blocks: []*block{b}, level: 1})
		}
		return groups
	}
	var cur *group
	for _, b := range blocks {
		level := blockLevel(b)
		if cur == nil || level != cur.level || headingCandidate(b) {
			cur = &group{level: level}
			groups = append(groups, cur)
		}
		cur.blocks = append(cur.blocks, b)
	}
	return groups
}

var captionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*fig(ure)?\.?\s+\d+(\.\d+)*`),
	regexp.MustCompile(`(?i)^\s*table\s+\d+(\.\d+)*`),
	regexp.MustCompile(`(?i)^\s*image\s+\d+(\.\d+)*`),
	regexp.MustCompile(`(?i)^\s*diagram\s+\d+(\.\d+)*`),
	regexp.MustCompile(`(?i)^\s*chart\s+\d+(\.\d+)*`),
	regexp.MustCompile(`(?i)^\s*photo\s+\d+(\.\d+)*`),
	regexp.MustCompile(`(?i)^\s*illustration\s+\d+(\.\d+)*`),
}

func isCaptionText(s string) bool {
	for _, re := range captionPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

var listMarker = regexp.MustCompile(`^\s*([0-9]+[.)]?|[-*•‣▪])\s+`)

func classify(g *group, text string) model.ContentType {
	switch {
	case isCaptionText(text):
		return model.ContentCaption
	case g.level <= 2 || headingCandidate(g.blocks[0]):
		return model.ContentHeading
	case listMarker.MatchString(text):
		return model.ContentList
	default:
		return model.ContentParagraph
	}
}

// annotationsFromGroups materializes text annotations for one page, wiring
// parent links: each group attaches to the most recent group on the page
// with a strictly smaller level.
func annotationsFromGroups(groups []*group, documentID string, page int) []model.TextAnnotation {
	anns := make([]model.TextAnnotation, 0, len(groups))
	type openParent struct {
		level int
		id    string
	}
	var parents []openParent

	for i, g := range groups {
		parts := make([]string, 0, len(g.blocks))
		bounds := g.blocks[0].bounds
		for _, b := range g.blocks {
			parts = append(parts, b.String())
			bounds = bounds.Union(b.bounds)
		}
		content := strings.Join(parts, "\n")
		first := g.blocks[0]

		ann := model.TextAnnotation{
			DocumentID:   documentID,
			SectionID:    fmt.Sprintf("%s_txt_p%d_s%d", documentID, page, i),
			PageNumber:   page,
			SectionIndex: i,
			Level:        g.level,
			Content:      content,
			ContentType:  classify(g, content),
			WordCount:    model.CountWords(content),
			CharCount:    utf8.RuneCountInString(content),
			FontName:     first.font,
			FontSize:     first.fontSize,
			Bold:         first.bold,
			Italic:       first.italic,
			HasDigit:     containsDigit(content),
			HasURL:       containsURL(content),
		}
		b := bounds
		ann.Bounds = &b
		if ann.ContentType == model.ContentHeading {
			ann.Title = strings.TrimSpace(first.String())
		}

		for len(parents) > 0 && parents[len(parents)-1].level >= g.level {
			parents = parents[:len(parents)-1]
		}
		if len(parents) > 0 {
			ann.ParentSectionID = parents[len(parents)-1].id
		}
		parents = append(parents, openParent{level: g.level, id: ann.SectionID})

		anns = append(anns, ann)
	}
	return anns
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func containsURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "http://") ||
		strings.Contains(lower, "https://") ||
		strings.Contains(lower, "www.")
}
