package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cmcs-platform/claims-api/internal/dto"
	"github.com/cmcs-platform/claims-api/internal/models"
	appErrors "github.com/cmcs-platform/claims-api/pkg/errors"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListByClaim(ctx context.Context, claimID int64) ([]models.Document, error)
}

// linkSigner issues and validates signed download tokens.
type linkSigner interface {
	Generate(documentID, storedName string) (string, time.Time, error)
	Parse(token string) (documentID, storedName string, expiresAt time.Time, err error)
}

type documentClaimStore interface {
	GetByID(ctx context.Context, id int64) (*models.Claim, error)
}

type blobStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

// DocumentUpload is a single incoming file in a batch upload.
type DocumentUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Description string
	Content     io.Reader
}

// DocumentServiceConfig carries the attachment acceptance rules.
type DocumentServiceConfig struct {
	MaxFileSizeBytes  int64
	AllowedExtensions []string
}

// DocumentService validates and stores claim attachments.
type DocumentService struct {
	docs    documentStore
	claims  documentClaimStore
	storage blobStorage
	signer  linkSigner
	audit   auditRecorder
	metrics *MetricsService
	logger  *zap.Logger
	allowed map[string]struct{}
	maxSize int64
	now     func() time.Time
}

// NewDocumentService constructs a DocumentService. The extension allowlist is
// normalised to lowercase with a leading dot. The signer is optional; without
// it signed download links are disabled.
func NewDocumentService(docs documentStore, claims documentClaimStore, storage blobStorage, signer linkSigner, audit auditRecorder, metrics *MetricsService, logger *zap.Logger, config DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 5 * 1024 * 1024
	}
	allowed := make(map[string]struct{}, len(config.AllowedExtensions))
	for _, ext := range config.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &DocumentService{
		docs:    docs,
		claims:  claims,
		storage: storage,
		signer:  signer,
		audit:   audit,
		metrics: metrics,
		logger:  logger,
		allowed: allowed,
		maxSize: config.MaxFileSizeBytes,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Validate applies the acceptance gates to one file: the extension must be on
// the allowlist (case-insensitive) and the size must not exceed the cap.
// Extension is checked first so an oversized file of a banned type reports
// the type error.
func (s *DocumentService) Validate(fileName string, size int64) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := s.allowed[ext]; !ok {
		return appErrors.Clone(appErrors.ErrUnsupportedFileType,
			fmt.Sprintf("file type %q is not allowed", ext))
	}
	if size > s.maxSize {
		return appErrors.Clone(appErrors.ErrFileTooLarge,
			fmt.Sprintf("file size must be less than %dMB", s.maxSize/(1024*1024)))
	}
	return nil
}

// UploadBatch attaches the given files to a claim. Each file is validated and
// stored independently; one failed file never aborts the rest. Uploads are
// owner-only and allowed only while the claim is still in review.
func (s *DocumentService) UploadBatch(ctx context.Context, actor *models.JWTClaims, claimID int64, uploads []DocumentUpload) (*dto.UploadBatchResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	claim, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrClaimNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch claim")
	}
	if claim.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you may only attach documents to your own claims")
	}
	if claim.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			"documents can only be added to pending or coordinator-approved claims")
	}
	if len(uploads) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no files provided")
	}

	resp := &dto.UploadBatchResponse{
		ClaimID: claimID,
		Results: make([]dto.DocumentUploadResult, 0, len(uploads)),
	}
	for _, upload := range uploads {
		result := s.storeOne(ctx, claim, upload)
		if result.Accepted {
			resp.Accepted++
		} else {
			resp.Rejected++
		}
		resp.Results = append(resp.Results, result)
	}

	if resp.Accepted > 0 {
		s.recordAudit(ctx, actor, claimID, resp.Accepted)
	}
	return resp, nil
}

func (s *DocumentService) storeOne(ctx context.Context, claim *models.Claim, upload DocumentUpload) dto.DocumentUploadResult {
	result := dto.DocumentUploadResult{FileName: upload.FileName}

	if err := s.Validate(upload.FileName, upload.Size); err != nil {
		result.Error = appErrors.FromError(err).Message
		s.observeUpload("rejected")
		return result
	}

	storedName := uuid.NewString() + strings.ToLower(filepath.Ext(upload.FileName))
	if _, err := s.storage.SaveStream(storedName, upload.Content); err != nil {
		s.logger.Error("failed to store document blob",
			zap.Int64("claim_id", claim.ID),
			zap.String("file_name", upload.FileName),
			zap.Error(err))
		result.Error = appErrors.ErrStorageFailure.Message
		s.observeUpload("error")
		return result
	}

	doc := &models.Document{
		ClaimID:     claim.ID,
		FileName:    upload.FileName,
		StoredName:  storedName,
		ContentType: upload.ContentType,
		SizeBytes:   upload.Size,
		Description: strings.TrimSpace(upload.Description),
		UploadDate:  s.now(),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		// Keep blob and metadata consistent: remove the orphaned file.
		if delErr := s.storage.Delete(storedName); delErr != nil {
			s.logger.Warn("failed to remove orphaned blob", zap.String("stored_name", storedName), zap.Error(delErr))
		}
		s.logger.Error("failed to persist document metadata",
			zap.Int64("claim_id", claim.ID),
			zap.String("file_name", upload.FileName),
			zap.Error(err))
		result.Error = appErrors.ErrStorageFailure.Message
		s.observeUpload("error")
		return result
	}

	result.Accepted = true
	result.Document = doc
	s.observeUpload("accepted")
	return result
}

// ListByClaim returns the attachments of a claim, visible to the owner and to
// reviewer roles.
func (s *DocumentService) ListByClaim(ctx context.Context, actor *models.JWTClaims, claimID int64) ([]models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	claim, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrClaimNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch claim")
	}
	if claim.UserID != actor.UserID && !actor.Role.IsReviewer() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you may only view documents of your own claims")
	}
	docs, err := s.docs.ListByClaim(ctx, claimID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// OpenDocument resolves a document of a claim and returns a read handle for
// download, enforcing the same visibility as ListByClaim.
func (s *DocumentService) OpenDocument(ctx context.Context, actor *models.JWTClaims, claimID int64, documentID string) (*models.Document, *os.File, error) {
	docs, err := s.ListByClaim(ctx, actor, claimID)
	if err != nil {
		return nil, nil, err
	}
	for i := range docs {
		if docs[i].ID != documentID {
			continue
		}
		file, err := s.storage.Open(docs[i].StoredName)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to open document")
		}
		return &docs[i], file, nil
	}
	return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
}

// SignedLink issues a time-limited download token for one document, with the
// same visibility rules as ListByClaim. The resulting token authorises the
// download on its own so the link can be opened outside an API client.
func (s *DocumentService) SignedLink(ctx context.Context, actor *models.JWTClaims, claimID int64, documentID string) (string, time.Time, error) {
	if s.signer == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "signed downloads are not enabled")
	}
	docs, err := s.ListByClaim(ctx, actor, claimID)
	if err != nil {
		return "", time.Time{}, err
	}
	for i := range docs {
		if docs[i].ID != documentID {
			continue
		}
		token, expiresAt, err := s.signer.Generate(docs[i].ID, docs[i].StoredName)
		if err != nil {
			return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
		}
		return token, expiresAt, nil
	}
	return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "document not found")
}

// OpenSigned resolves a signed download token and returns the document with a
// read handle. No actor is required; the token itself is the authorisation.
func (s *DocumentService) OpenSigned(ctx context.Context, token string) (*models.Document, *os.File, error) {
	if s.signer == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "signed downloads are not enabled")
	}
	documentID, storedName, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch document")
	}
	if doc.StoredName != storedName {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	file, err := s.storage.Open(doc.StoredName)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to open document")
	}
	return doc, file, nil
}

func (s *DocumentService) recordAudit(ctx context.Context, actor *models.JWTClaims, claimID int64, count int) {
	if s.audit == nil {
		return
	}
	userID := actor.UserID
	resourceID := fmt.Sprintf("%d", claimID)
	entry := &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionDocumentUpload,
		Resource:   "claim",
		ResourceID: &resourceID,
		NewValues:  []byte(fmt.Sprintf(`{"accepted":%d}`, count)),
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.Error(err))
	}
}

func (s *DocumentService) observeUpload(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordDocumentUpload(outcome)
}
