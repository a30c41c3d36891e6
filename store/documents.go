package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wudi/pdfannot/model"
)

// CreateDocument inserts a document row and returns its identifier. An empty
// doc.ID gets a generated one. The store owns the timestamps; caller-supplied
// CreatedAt/UpdatedAt are ignored.
func (s *Store) CreateDocument(ctx context.Context, doc *model.Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = model.StatusPending
	}
	if !s.ready(ctx) {
		return doc.ID, nil
	}

	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return "", fmt.Errorf("store: marshal metadata: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents (id, name, media_type, byte_size, session_id, message_id,
	status, page_count, total_sections, metadata, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.MediaType, doc.ByteSize, doc.SessionID, doc.MessageID,
		string(doc.Status), doc.PageCount, doc.TotalSections, string(meta), now, now)
	if err != nil {
		return "", fmt.Errorf("store: insert document %s: %w", doc.ID, err)
	}
	return doc.ID, nil
}

// GetDocument returns the document with the given id, or nil when absent.
func (s *Store) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	if !s.ready(ctx) {
		return nil, nil
	}

	var (
		doc                  model.Document
		status, meta         string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, media_type, byte_size, session_id, message_id,
	status, page_count, total_sections, metadata, created_at, updated_at
FROM documents WHERE id = ?`, id).Scan(
		&doc.ID, &doc.Name, &doc.MediaType, &doc.ByteSize, &doc.SessionID, &doc.MessageID,
		&status, &doc.PageCount, &doc.TotalSections, &meta, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get document %s: %w", id, err)
	}

	doc.Status = model.AnalysisStatus(status)
	if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("store: decode metadata for %s: %w", id, err)
	}
	doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &doc, nil
}

// UpdateDocumentStatus moves a document to status, validating the transition
// against the analysis lifecycle. A non-negative totalSections also replaces
// the stored section count; pass -1 to leave it unchanged.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id string, status model.AnalysisStatus, totalSections int) error {
	if !status.Valid() {
		return fmt.Errorf("store: unknown status %q", status)
	}
	if !s.ready(ctx) {
		return nil
	}

	var current string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store: read status for %s: %w", id, err)
	}
	if !model.AnalysisStatus(current).CanTransition(status) {
		return fmt.Errorf("store: document %s: %s -> %s: %w", id, current, status, ErrInvalidTransition)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if totalSections >= 0 {
		_, err = s.db.ExecContext(ctx,
			`UPDATE documents SET status = ?, total_sections = ?, updated_at = ? WHERE id = ?`,
			string(status), totalSections, now, id)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), now, id)
	}
	if err != nil {
		return fmt.Errorf("store: update status for %s: %w", id, err)
	}
	return nil
}

// SaveAnalysis writes the complete parse output for one document — all
// sections with their image and text detail rows — in a single transaction.
// Any failure rolls the whole batch back.
func (s *Store) SaveAnalysis(ctx context.Context, documentID string,
	sections []model.Section, images []model.ImageAnnotation, texts []model.TextAnnotation) error {
	if !s.ready(ctx) {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin analysis write: %w", err)
	}
	for i := range sections {
		if err := insertSection(ctx, tx, documentID, &sections[i]); err != nil {
			tx.Rollback()
			return err
		}
	}
	for i := range images {
		if err := insertImageAnnotation(ctx, tx, documentID, &images[i]); err != nil {
			tx.Rollback()
			return err
		}
	}
	for i := range texts {
		if err := insertTextAnnotation(ctx, tx, documentID, &texts[i]); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit analysis write: %w", err)
	}
	return nil
}
