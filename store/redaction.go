package store

import (
	"context"
	"fmt"
	"time"

	"github.com/wudi/pdfannot/model"
)

// RedactionPatterns returns the seeded pattern set, optionally restricted to
// active patterns.
func (s *Store) RedactionPatterns(ctx context.Context, activeOnly bool) ([]model.RedactionPattern, error) {
	if !s.ready(ctx) {
		return nil, nil
	}

	query := `SELECT id, name, regex, category, severity, active FROM redaction_patterns`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: query redaction patterns: %w", err)
	}
	defer rows.Close()

	var out []model.RedactionPattern
	for rows.Next() {
		var (
			p        model.RedactionPattern
			category string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Regex, &category, &p.Severity, &p.Active); err != nil {
			return nil, fmt.Errorf("store: scan redaction pattern: %w", err)
		}
		p.Category = model.RedactionCategory(category)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveRedactionResult records one pattern match against a stored section.
// Re-recording the same match is a no-op.
func (s *Store) SaveRedactionResult(ctx context.Context, r *model.RedactionResult) error {
	if !s.ready(ctx) {
		return nil
	}
	matchedAt := r.MatchedAt
	if matchedAt.IsZero() {
		matchedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO redaction_results (document_id, section_id, pattern_name, matched_at)
VALUES (?, ?, ?, ?)`,
		r.DocumentID, r.SectionID, r.PatternName, matchedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: insert redaction result %s/%s: %w", r.DocumentID, r.SectionID, err)
	}
	return nil
}

// RedactionResults returns the recorded matches for one document.
func (s *Store) RedactionResults(ctx context.Context, documentID string) ([]model.RedactionResult, error) {
	if !s.ready(ctx) {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT document_id, section_id, pattern_name, matched_at
FROM redaction_results WHERE document_id = ? ORDER BY section_id, pattern_name`, documentID)
	if err != nil {
		return nil, fmt.Errorf("store: query redaction results for %s: %w", documentID, err)
	}
	defer rows.Close()

	var out []model.RedactionResult
	for rows.Next() {
		var (
			r         model.RedactionResult
			matchedAt string
		)
		if err := rows.Scan(&r.DocumentID, &r.SectionID, &r.PatternName, &matchedAt); err != nil {
			return nil, fmt.Errorf("store: scan redaction result: %w", err)
		}
		r.MatchedAt, _ = time.Parse(time.RFC3339Nano, matchedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetRedactionPreference upserts one per-device category toggle.
func (s *Store) SetRedactionPreference(ctx context.Context, p *model.RedactionPreference) error {
	if !s.ready(ctx) {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO redaction_preferences (device_id, category, enabled) VALUES (?, ?, ?)
ON CONFLICT (device_id, category) DO UPDATE SET enabled = excluded.enabled`,
		p.DeviceID, string(p.Category), p.Enabled)
	if err != nil {
		return fmt.Errorf("store: set preference %s/%s: %w", p.DeviceID, p.Category, err)
	}
	return nil
}

// RedactionPreferences returns all category toggles for one device.
func (s *Store) RedactionPreferences(ctx context.Context, deviceID string) ([]model.RedactionPreference, error) {
	if !s.ready(ctx) {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT device_id, category, enabled FROM redaction_preferences
WHERE device_id = ? ORDER BY category`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("store: query preferences for %s: %w", deviceID, err)
	}
	defer rows.Close()

	var out []model.RedactionPreference
	for rows.Next() {
		var (
			p        model.RedactionPreference
			category string
		)
		if err := rows.Scan(&p.DeviceID, &category, &p.Enabled); err != nil {
			return nil, fmt.Errorf("store: scan preference: %w", err)
		}
		p.Category = model.RedactionCategory(category)
		out = append(out, p)
	}
	return out, rows.Err()
}
