package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/wudi/pdfannot/geo"
	"github.com/wudi/pdfannot/model"
)

func TestMigrationsCreateTables(t *testing.T) {
	s := OpenMemory(t)
	for _, table := range []string{
		"documents", "sections", "image_annotations", "text_annotations",
		"redaction_patterns", "redaction_results", "redaction_preferences",
	} {
		var name string
		err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annot.db")
	ctx := context.Background()

	s1 := New(path)
	if s1.Degraded(ctx) {
		t.Fatal("first open degraded")
	}
	id, err := s1.CreateDocument(ctx, &model.Document{Name: "report.pdf"})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2 := New(path)
	defer s2.Close()
	if s2.Degraded(ctx) {
		t.Fatal("second open degraded")
	}
	doc, err := s2.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("get document after reopen: %v", err)
	}
	if doc == nil || doc.Name != "report.pdf" {
		t.Fatalf("document lost across reopen: %+v", doc)
	}
}

func TestInitializeOnce(t *testing.T) {
	s := New(":memory:")
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Degraded(ctx)
		}(i)
	}
	wg.Wait()
	for i, degraded := range results {
		if degraded != results[0] {
			t.Fatalf("caller %d observed a different initialization outcome", i)
		}
	}
}

func TestFallbackMode(t *testing.T) {
	// An unregistered driver makes the backend unavailable deterministically.
	s := New(":memory:", WithDriver("no-such-driver"))
	ctx := context.Background()

	if !s.Degraded(ctx) {
		t.Fatal("store should be degraded with an unavailable backend")
	}

	id, err := s.CreateDocument(ctx, &model.Document{Name: "ghost.pdf"})
	if err != nil {
		t.Fatalf("fallback create returned error: %v", err)
	}
	if id == "" {
		t.Fatal("fallback create must synthesize an identifier")
	}

	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("fallback get returned error: %v", err)
	}
	if doc != nil {
		t.Fatalf("fallback get returned data: %+v", doc)
	}

	if err := s.SaveAnalysis(ctx, id, []model.Section{{SectionID: "s1", Type: model.SectionText}}, nil, nil); err != nil {
		t.Fatalf("fallback save returned error: %v", err)
	}
	secs, err := s.Sections(ctx, id)
	if err != nil || len(secs) != 0 {
		t.Fatalf("fallback sections = %v, %v; want empty, nil", secs, err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("fallback close: %v", err)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	doc := &model.Document{
		Name:      "paper.pdf",
		MediaType: "application/pdf",
		ByteSize:  1234,
		SessionID: "sess-1",
		PageCount: 3,
		Metadata: model.DocumentMetadata{
			Title:  "A Paper",
			Author: "Someone",
			OCR:    model.OCRSummary{Enabled: true, Languages: []string{"eng"}, ImageCount: 2},
		},
	}
	id, err := s.CreateDocument(ctx, doc)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	got, err := s.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got == nil {
		t.Fatal("document not found")
	}
	if got.Status != model.StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if got.Metadata.Title != "A Paper" || !got.Metadata.OCR.Enabled {
		t.Errorf("metadata round trip: %+v", got.Metadata)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("store must own the timestamps")
	}

	missing, err := s.GetDocument(ctx, "nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing document = %+v, want nil", missing)
	}
}

func TestUpdateDocumentStatus(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	id, err := s.CreateDocument(ctx, &model.Document{Name: "doc.pdf"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.UpdateDocumentStatus(ctx, id, model.StatusAnalyzing, -1); err != nil {
		t.Fatalf("pending -> analyzing: %v", err)
	}
	if err := s.UpdateDocumentStatus(ctx, id, model.StatusCompleted, 7); err != nil {
		t.Fatalf("analyzing -> completed: %v", err)
	}

	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Status != model.StatusCompleted || doc.TotalSections != 7 {
		t.Fatalf("status/sections = %s/%d, want completed/7", doc.Status, doc.TotalSections)
	}

	err = s.UpdateDocumentStatus(ctx, id, model.StatusAnalyzing, -1)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("completed -> analyzing error = %v, want ErrInvalidTransition", err)
	}

	err = s.UpdateDocumentStatus(ctx, "nope", model.StatusAnalyzing, -1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing document error = %v, want ErrNotFound", err)
	}
}

func seedDocument(t *testing.T, s *Store) string {
	t.Helper()
	id, err := s.CreateDocument(context.Background(), &model.Document{Name: "seed.pdf"})
	if err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return id
}

func TestSaveAnalysisRoundTrip(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	id := seedDocument(t, s)

	sections := []model.Section{
		{SectionID: "img1", Type: model.SectionImage, Ordinal: 0, PageNumber: 1, Selected: true},
		{SectionID: "txt1", Type: model.SectionText, Ordinal: 1, PageNumber: 1, Preview: "Hello", ContentLength: 5, Selected: true},
	}
	images := []model.ImageAnnotation{{
		SectionID: "img1", PageNumber: 1, WidthPx: 200, HeightPx: 100,
		Bounds: geo.Rect{X1: 100, Y1: 600, X2: 300, Y2: 700},
		Caption: &model.Caption{
			Text:     "Fig 1.1 Sample",
			Position: geo.PositionTop,
			Bounds:   &geo.Rect{X1: 100, Y1: 580, X2: 260, Y2: 595},
		},
		OCR: &model.OCRResult{
			Text: "hello", Confidence: 91.5, Language: "eng",
			Languages: []model.LanguageScore{{Language: "eng", Confidence: 91.5}},
		},
	}}
	texts := []model.TextAnnotation{{
		SectionID: "txt1", PageNumber: 1, Content: "Hello", ContentType: model.ContentParagraph,
		WordCount: 1, CharCount: 5, Bounds: &geo.Rect{X1: 10, Y1: 10, X2: 60, Y2: 20},
	}}

	if err := s.SaveAnalysis(ctx, id, sections, images, texts); err != nil {
		t.Fatalf("save analysis: %v", err)
	}

	secs, err := s.Sections(ctx, id)
	if err != nil {
		t.Fatalf("sections: %v", err)
	}
	if len(secs) != 2 {
		t.Fatalf("section count = %d, want 2", len(secs))
	}

	imgs, err := s.ImageAnnotations(ctx, id, 1)
	if err != nil {
		t.Fatalf("image annotations: %v", err)
	}
	if len(imgs) != 1 {
		t.Fatalf("image count = %d, want 1", len(imgs))
	}
	img := imgs[0]
	if img.Caption == nil || img.Caption.Text != "Fig 1.1 Sample" || img.Caption.Position != geo.PositionTop {
		t.Fatalf("caption round trip: %+v", img.Caption)
	}
	if img.OCR == nil || img.OCR.Text != "hello" || len(img.OCR.Languages) != 1 {
		t.Fatalf("ocr round trip: %+v", img.OCR)
	}

	other, err := s.ImageAnnotations(ctx, id, 2)
	if err != nil || len(other) != 0 {
		t.Fatalf("page filter: got %d annotations on page 2", len(other))
	}
}

func TestSaveAnalysisRollsBackOnFailure(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	id := seedDocument(t, s)

	sections := []model.Section{
		{SectionID: "s1", Type: model.SectionText, Selected: true},
		{SectionID: "s1", Type: model.SectionText, Selected: true}, // duplicate key
	}
	if err := s.SaveAnalysis(ctx, id, sections, nil, nil); err == nil {
		t.Fatal("duplicate section id should fail the batch")
	}
	secs, err := s.Sections(ctx, id)
	if err != nil {
		t.Fatalf("sections: %v", err)
	}
	if len(secs) != 0 {
		t.Fatalf("partial write survived rollback: %d rows", len(secs))
	}
}

func TestUpdateSelectionAtomicity(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	id := seedDocument(t, s)

	sections := []model.Section{
		{SectionID: "s1", Type: model.SectionText, Selected: true},
		{SectionID: "s2", Type: model.SectionText, Selected: true},
	}
	if err := s.SaveAnalysis(ctx, id, sections, nil, nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	err := s.UpdateSelection(ctx, id, []string{"s1", "missing", "s2"}, false)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	secs, err := s.Sections(ctx, id)
	if err != nil {
		t.Fatalf("sections: %v", err)
	}
	for _, sec := range secs {
		if !sec.Selected {
			t.Fatalf("section %s deselected despite rollback", sec.SectionID)
		}
	}

	if err := s.UpdateSelection(ctx, id, []string{"s1", "s2"}, false); err != nil {
		t.Fatalf("valid batch: %v", err)
	}
	secs, _ = s.Sections(ctx, id)
	for _, sec := range secs {
		if sec.Selected {
			t.Fatalf("section %s still selected", sec.SectionID)
		}
	}
}

func TestTextHierarchyBreadthFirst(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	id := seedDocument(t, s)

	texts := []model.TextAnnotation{
		{SectionID: "h1", PageNumber: 1, SectionIndex: 0, Level: 1, ContentType: model.ContentHeading, Content: "Intro"},
		{SectionID: "p1", PageNumber: 1, SectionIndex: 1, Level: 3, ParentSectionID: "h1", Content: "First paragraph"},
		{SectionID: "h2", PageNumber: 1, SectionIndex: 2, Level: 2, ParentSectionID: "h1", ContentType: model.ContentHeading, Content: "Details"},
		{SectionID: "p2", PageNumber: 1, SectionIndex: 3, Level: 3, ParentSectionID: "h2", Content: "Deep paragraph"},
		{SectionID: "orphan", PageNumber: 1, SectionIndex: 4, Level: 3, ParentSectionID: "gone", Content: "Orphaned"},
	}
	if err := s.SaveAnalysis(ctx, id, nil, nil, texts); err != nil {
		t.Fatalf("save: %v", err)
	}

	tree, err := s.TextHierarchy(ctx, id, 1)
	if err != nil {
		t.Fatalf("hierarchy: %v", err)
	}
	got := make([]string, len(tree))
	for i, a := range tree {
		got[i] = a.SectionID
	}
	// Depth 0: h1, orphan (missing parent treated as root). Depth 1: p1, h2.
	// Depth 2: p2. Ties resolve by section index.
	want := []string{"h1", "orphan", "p1", "h2", "p2"}
	if len(got) != len(want) {
		t.Fatalf("hierarchy length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("hierarchy order = %v, want %v", got, want)
		}
	}
}

func TestRedactionPatternsSeeded(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	patterns, err := s.RedactionPatterns(ctx, true)
	if err != nil {
		t.Fatalf("patterns: %v", err)
	}
	if len(patterns) == 0 {
		t.Fatal("default pattern set must be seeded at initialization")
	}
	names := make(map[string]bool)
	for _, p := range patterns {
		names[p.Name] = true
	}
	for _, want := range []string{"email", "phone", "ssn"} {
		if !names[want] {
			t.Errorf("seeded pattern %q missing", want)
		}
	}
}

func TestRedactionPreferencesUpsert(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	pref := &model.RedactionPreference{DeviceID: "dev-1", Category: model.CategoryPII, Enabled: true}
	if err := s.SetRedactionPreference(ctx, pref); err != nil {
		t.Fatalf("set: %v", err)
	}
	pref.Enabled = false
	if err := s.SetRedactionPreference(ctx, pref); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	prefs, err := s.RedactionPreferences(ctx, "dev-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(prefs) != 1 || prefs[0].Enabled {
		t.Fatalf("prefs = %+v, want one disabled pii entry", prefs)
	}
}

func TestRedactionResults(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	id := seedDocument(t, s)

	r := &model.RedactionResult{DocumentID: id, SectionID: "s1", PatternName: "email"}
	if err := s.SaveRedactionResult(ctx, r); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveRedactionResult(ctx, r); err != nil {
		t.Fatalf("duplicate save should be a no-op: %v", err)
	}

	results, err := s.RedactionResults(ctx, id)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("result count = %d, want 1", len(results))
	}
	if results[0].MatchedAt.IsZero() {
		t.Error("matched_at should be stamped by the store")
	}
}
