package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cmcs-platform/claims-api/internal/models"
)

// DocumentRepository persists claim attachment metadata. Rows are immutable:
// they are inserted once and removed only together with the owning claim.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create stores metadata for an accepted upload.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadDate.IsZero() {
		doc.UploadDate = time.Now().UTC()
	}
	const query = `INSERT INTO documents
	(id, claim_id, file_name, stored_name, content_type, size_bytes, description, upload_date)
	VALUES (:id, :claim_id, :file_name, :stored_name, :content_type, :size_bytes, :description, :upload_date)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID returns one document by identifier.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	const query = `SELECT id, claim_id, file_name, stored_name, content_type, size_bytes, description, upload_date
	FROM documents WHERE id = $1 LIMIT 1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByClaim returns the attachments of one claim, newest first.
func (r *DocumentRepository) ListByClaim(ctx context.Context, claimID int64) ([]models.Document, error) {
	const query = `SELECT id, claim_id, file_name, stored_name, content_type, size_bytes, description, upload_date
	FROM documents WHERE claim_id = $1 ORDER BY upload_date DESC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, claimID); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// DeleteByClaim removes all attachments of a claim and returns the stored
// names so the blobs can be cleaned up. The documents table also carries an
// ON DELETE CASCADE foreign key; this path exists for administrative removal.
func (r *DocumentRepository) DeleteByClaim(ctx context.Context, claimID int64) ([]string, error) {
	const query = `DELETE FROM documents WHERE claim_id = $1 RETURNING stored_name`
	var storedNames []string
	if err := r.db.SelectContext(ctx, &storedNames, query, claimID); err != nil {
		return nil, fmt.Errorf("delete documents by claim: %w", err)
	}
	return storedNames, nil
}
