package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/wudi/pdfannot/geo"
	"github.com/wudi/pdfannot/model"
)

// execer covers *sql.DB and *sql.Tx for the insert helpers.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSection(ctx context.Context, e execer, documentID string, sec *model.Section) error {
	patterns, err := json.Marshal(nonNil(sec.MatchedPatterns))
	if err != nil {
		return fmt.Errorf("store: marshal matched patterns: %w", err)
	}
	extra, err := json.Marshal(sec.Extra)
	if err != nil {
		return fmt.Errorf("store: marshal section extra: %w", err)
	}
	if sec.Extra == nil {
		extra = []byte("{}")
	}
	_, err = e.ExecContext(ctx, `
INSERT INTO sections (document_id, section_id, type, ordinal, page_number,
	preview, content_length, sensitive, matched_patterns, confidence, selected, extra)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		documentID, sec.SectionID, string(sec.Type), sec.Ordinal, sec.PageNumber,
		sec.Preview, sec.ContentLength, sec.Sensitive, string(patterns),
		sec.Confidence, sec.Selected, string(extra))
	if err != nil {
		return fmt.Errorf("store: insert section %s/%s: %w", documentID, sec.SectionID, err)
	}
	return nil
}

func insertImageAnnotation(ctx context.Context, e execer, documentID string, a *model.ImageAnnotation) error {
	var (
		capText, capPos                sql.NullString
		capX1, capY1, capX2, capY2     sql.NullFloat64
		ocrText, ocrLang, ocrLangsJSON sql.NullString
		ocrConf                        sql.NullFloat64
	)
	if c := a.Caption; c != nil {
		capText = sql.NullString{String: c.Text, Valid: true}
		capPos = sql.NullString{String: string(c.Position), Valid: true}
		if c.Bounds != nil {
			capX1 = sql.NullFloat64{Float64: c.Bounds.X1, Valid: true}
			capY1 = sql.NullFloat64{Float64: c.Bounds.Y1, Valid: true}
			capX2 = sql.NullFloat64{Float64: c.Bounds.X2, Valid: true}
			capY2 = sql.NullFloat64{Float64: c.Bounds.Y2, Valid: true}
		}
	}
	if o := a.OCR; o != nil {
		ocrText = sql.NullString{String: o.Text, Valid: true}
		ocrConf = sql.NullFloat64{Float64: o.Confidence, Valid: true}
		ocrLang = sql.NullString{String: o.Language, Valid: true}
		if len(o.Languages) > 0 {
			langs, err := json.Marshal(o.Languages)
			if err != nil {
				return fmt.Errorf("store: marshal ocr languages: %w", err)
			}
			ocrLangsJSON = sql.NullString{String: string(langs), Valid: true}
		}
	}

	_, err := e.ExecContext(ctx, `
INSERT INTO image_annotations (document_id, section_id, page_number, image_index,
	width_px, height_px, width_cm, height_cm, width_inches, height_inches,
	x1, y1, x2, y2,
	caption_text, caption_position, caption_x1, caption_y1, caption_x2, caption_y2,
	format, color_space, dpi, inline_image, has_transparency,
	ocr_text, ocr_confidence, ocr_language, ocr_languages)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		documentID, a.SectionID, a.PageNumber, a.ImageIndex,
		a.WidthPx, a.HeightPx, a.WidthCm, a.HeightCm, a.WidthInches, a.HeightInches,
		a.Bounds.X1, a.Bounds.Y1, a.Bounds.X2, a.Bounds.Y2,
		capText, capPos, capX1, capY1, capX2, capY2,
		a.Format, a.ColorSpace, a.DPI, a.Inline, a.HasTransparency,
		ocrText, ocrConf, ocrLang, ocrLangsJSON)
	if err != nil {
		return fmt.Errorf("store: insert image annotation %s/%s: %w", documentID, a.SectionID, err)
	}
	return nil
}

func insertTextAnnotation(ctx context.Context, e execer, documentID string, a *model.TextAnnotation) error {
	var x1, y1, x2, y2 sql.NullFloat64
	if b := a.Bounds; b != nil {
		x1 = sql.NullFloat64{Float64: b.X1, Valid: true}
		y1 = sql.NullFloat64{Float64: b.Y1, Valid: true}
		x2 = sql.NullFloat64{Float64: b.X2, Valid: true}
		y2 = sql.NullFloat64{Float64: b.Y2, Valid: true}
	}
	_, err := e.ExecContext(ctx, `
INSERT INTO text_annotations (document_id, section_id, page_number, section_index,
	parent_section_id, level, title, content, content_type, word_count, char_count,
	x1, y1, x2, y2, font_name, font_size, bold, italic, color,
	has_digit, has_url, language)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		documentID, a.SectionID, a.PageNumber, a.SectionIndex,
		a.ParentSectionID, a.Level, a.Title, a.Content, string(a.ContentType),
		a.WordCount, a.CharCount, x1, y1, x2, y2,
		a.FontName, a.FontSize, a.Bold, a.Italic, a.Color,
		a.HasDigit, a.HasURL, a.Language)
	if err != nil {
		return fmt.Errorf("store: insert text annotation %s/%s: %w", documentID, a.SectionID, err)
	}
	return nil
}

// CreateSection inserts one section row.
func (s *Store) CreateSection(ctx context.Context, documentID string, sec *model.Section) error {
	if !s.ready(ctx) {
		return nil
	}
	return insertSection(ctx, s.db, documentID, sec)
}

// CreateImageAnnotation inserts one image detail row.
func (s *Store) CreateImageAnnotation(ctx context.Context, documentID string, a *model.ImageAnnotation) error {
	if !s.ready(ctx) {
		return nil
	}
	return insertImageAnnotation(ctx, s.db, documentID, a)
}

// CreateTextAnnotation inserts one text detail row.
func (s *Store) CreateTextAnnotation(ctx context.Context, documentID string, a *model.TextAnnotation) error {
	if !s.ready(ctx) {
		return nil
	}
	return insertTextAnnotation(ctx, s.db, documentID, a)
}

// Sections returns all section rows of a document ordered by ordinal.
func (s *Store) Sections(ctx context.Context, documentID string) ([]model.Section, error) {
	if !s.ready(ctx) {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT document_id, section_id, type, ordinal, page_number, preview,
	content_length, sensitive, matched_patterns, confidence, selected, extra
FROM sections WHERE document_id = ? ORDER BY ordinal`, documentID)
	if err != nil {
		return nil, fmt.Errorf("store: query sections for %s: %w", documentID, err)
	}
	defer rows.Close()

	var out []model.Section
	for rows.Next() {
		var (
			sec             model.Section
			typ             string
			patterns, extra string
		)
		if err := rows.Scan(&sec.DocumentID, &sec.SectionID, &typ, &sec.Ordinal,
			&sec.PageNumber, &sec.Preview, &sec.ContentLength, &sec.Sensitive,
			&patterns, &sec.Confidence, &sec.Selected, &extra); err != nil {
			return nil, fmt.Errorf("store: scan section: %w", err)
		}
		sec.Type = model.SectionType(typ)
		if err := json.Unmarshal([]byte(patterns), &sec.MatchedPatterns); err != nil {
			return nil, fmt.Errorf("store: decode matched patterns: %w", err)
		}
		if extra != "{}" {
			if err := json.Unmarshal([]byte(extra), &sec.Extra); err != nil {
				return nil, fmt.Errorf("store: decode section extra: %w", err)
			}
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

// ImageAnnotations returns image detail rows for a document, page-filtered
// when page > 0, ordered by page then image index.
func (s *Store) ImageAnnotations(ctx context.Context, documentID string, page int) ([]model.ImageAnnotation, error) {
	if !s.ready(ctx) {
		return nil, nil
	}

	query := `
SELECT document_id, section_id, page_number, image_index,
	width_px, height_px, width_cm, height_cm, width_inches, height_inches,
	x1, y1, x2, y2,
	caption_text, caption_position, caption_x1, caption_y1, caption_x2, caption_y2,
	format, color_space, dpi, inline_image, has_transparency,
	ocr_text, ocr_confidence, ocr_language, ocr_languages
FROM image_annotations WHERE document_id = ?`
	args := []any{documentID}
	if page > 0 {
		query += ` AND page_number = ?`
		args = append(args, page)
	}
	query += ` ORDER BY page_number, image_index`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query image annotations for %s: %w", documentID, err)
	}
	defer rows.Close()

	var out []model.ImageAnnotation
	for rows.Next() {
		var (
			a                          model.ImageAnnotation
			capText, capPos            sql.NullString
			capX1, capY1, capX2, capY2 sql.NullFloat64
			ocrText, ocrLang, ocrLangs sql.NullString
			ocrConf                    sql.NullFloat64
		)
		if err := rows.Scan(&a.DocumentID, &a.SectionID, &a.PageNumber, &a.ImageIndex,
			&a.WidthPx, &a.HeightPx, &a.WidthCm, &a.HeightCm, &a.WidthInches, &a.HeightInches,
			&a.Bounds.X1, &a.Bounds.Y1, &a.Bounds.X2, &a.Bounds.Y2,
			&capText, &capPos, &capX1, &capY1, &capX2, &capY2,
			&a.Format, &a.ColorSpace, &a.DPI, &a.Inline, &a.HasTransparency,
			&ocrText, &ocrConf, &ocrLang, &ocrLangs); err != nil {
			return nil, fmt.Errorf("store: scan image annotation: %w", err)
		}
		if capText.Valid {
			c := &model.Caption{Text: capText.String, Position: geo.RelativePosition(capPos.String)}
			if capX1.Valid {
				c.Bounds = &geo.Rect{X1: capX1.Float64, Y1: capY1.Float64, X2: capX2.Float64, Y2: capY2.Float64}
			}
			a.Caption = c
		}
		if ocrText.Valid {
			ocr := &model.OCRResult{Text: ocrText.String, Confidence: ocrConf.Float64, Language: ocrLang.String}
			if ocrLangs.Valid {
				if err := json.Unmarshal([]byte(ocrLangs.String), &ocr.Languages); err != nil {
					return nil, fmt.Errorf("store: decode ocr languages: %w", err)
				}
			}
			a.OCR = ocr
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TextAnnotations returns text detail rows for a document, page-filtered when
// page > 0, ordered by page then section index.
func (s *Store) TextAnnotations(ctx context.Context, documentID string, page int) ([]model.TextAnnotation, error) {
	if !s.ready(ctx) {
		return nil, nil
	}

	query := `
SELECT document_id, section_id, page_number, section_index,
	parent_section_id, level, title, content, content_type, word_count, char_count,
	x1, y1, x2, y2, font_name, font_size, bold, italic, color,
	has_digit, has_url, language
FROM text_annotations WHERE document_id = ?`
	args := []any{documentID}
	if page > 0 {
		query += ` AND page_number = ?`
		args = append(args, page)
	}
	query += ` ORDER BY page_number, section_index`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query text annotations for %s: %w", documentID, err)
	}
	defer rows.Close()

	var out []model.TextAnnotation
	for rows.Next() {
		a, err := scanTextAnnotation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanTextAnnotation(rows *sql.Rows) (model.TextAnnotation, error) {
	var (
		a              model.TextAnnotation
		contentType    string
		x1, y1, x2, y2 sql.NullFloat64
	)
	if err := rows.Scan(&a.DocumentID, &a.SectionID, &a.PageNumber, &a.SectionIndex,
		&a.ParentSectionID, &a.Level, &a.Title, &a.Content, &contentType,
		&a.WordCount, &a.CharCount, &x1, &y1, &x2, &y2,
		&a.FontName, &a.FontSize, &a.Bold, &a.Italic, &a.Color,
		&a.HasDigit, &a.HasURL, &a.Language); err != nil {
		return a, fmt.Errorf("store: scan text annotation: %w", err)
	}
	a.ContentType = model.ContentType(contentType)
	if x1.Valid {
		a.Bounds = &geo.Rect{X1: x1.Float64, Y1: y1.Float64, X2: x2.Float64, Y2: y2.Float64}
	}
	return a, nil
}

// TextHierarchy returns the text annotations of one page in breadth-first
// hierarchy order: increasing depth from the roots, then original section
// index within a depth. Annotations whose parent is missing are treated as
// roots.
func (s *Store) TextHierarchy(ctx context.Context, documentID string, page int) ([]model.TextAnnotation, error) {
	flat, err := s.TextAnnotations(ctx, documentID, page)
	if err != nil || len(flat) == 0 {
		return nil, err
	}

	byID := make(map[string]int, len(flat))
	for i, a := range flat {
		byID[a.SectionID] = i
	}

	depth := make([]int, len(flat))
	for i := range flat {
		depth[i] = depthOf(flat, byID, i, 0)
	}

	order := make([]int, len(flat))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if depth[order[a]] != depth[order[b]] {
			return depth[order[a]] < depth[order[b]]
		}
		return flat[order[a]].SectionIndex < flat[order[b]].SectionIndex
	})

	out := make([]model.TextAnnotation, len(flat))
	for i, idx := range order {
		out[i] = flat[idx]
	}
	return out, nil
}

// depthOf walks parent links upward. The hop guard bounds cycles introduced
// by malformed parent references.
func depthOf(flat []model.TextAnnotation, byID map[string]int, i, hops int) int {
	if hops > len(flat) {
		return hops
	}
	parent := flat[i].ParentSectionID
	if parent == "" {
		return 0
	}
	pi, ok := byID[parent]
	if !ok {
		return 0
	}
	return depthOf(flat, byID, pi, hops+1) + 1
}

// UpdateSelection sets the user-selection flag on the given sections in one
// atomic transaction. Any failure rolls the whole batch back and the error
// propagates.
func (s *Store) UpdateSelection(ctx context.Context, documentID string, sectionIDs []string, selected bool) error {
	if !s.ready(ctx) {
		return nil
	}
	if len(sectionIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin selection update: %w", err)
	}
	for _, id := range sectionIDs {
		res, err := tx.ExecContext(ctx,
			`UPDATE sections SET selected = ? WHERE document_id = ? AND section_id = ?`,
			selected, documentID, id)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("store: update selection %s/%s: %w", documentID, id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			tx.Rollback()
			return fmt.Errorf("store: section %s/%s: %w", documentID, id, ErrNotFound)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit selection update: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
