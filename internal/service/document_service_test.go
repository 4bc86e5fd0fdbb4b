package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cmcs-platform/claims-api/internal/models"
	appErrors "github.com/cmcs-platform/claims-api/pkg/errors"
	"github.com/cmcs-platform/claims-api/pkg/storage"
)

type documentRepoStub struct {
	docs      []*models.Document
	failOnNth int
}

func (s *documentRepoStub) Create(ctx context.Context, doc *models.Document) error {
	if s.failOnNth > 0 && len(s.docs)+1 == s.failOnNth {
		return fmt.Errorf("insert failed")
	}
	s.docs = append(s.docs, doc)
	return nil
}

func (s *documentRepoStub) GetByID(ctx context.Context, id string) (*models.Document, error) {
	for _, doc := range s.docs {
		if doc.ID == id {
			copy := *doc
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *documentRepoStub) ListByClaim(ctx context.Context, claimID int64) ([]models.Document, error) {
	result := make([]models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if doc.ClaimID == claimID {
			result = append(result, *doc)
		}
	}
	return result, nil
}

type storageStub struct {
	saved   map[string][]byte
	deleted []string
	failAll bool
}

func newStorageStub() *storageStub {
	return &storageStub{saved: make(map[string][]byte)}
}

func (s *storageStub) SaveStream(filename string, r io.Reader) (string, error) {
	if s.failAll {
		return "", fmt.Errorf("disk full")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.saved[filename] = data
	return filename, nil
}

func (s *storageStub) Open(filename string) (*os.File, error) {
	return nil, fmt.Errorf("not supported in stub")
}

func (s *storageStub) Delete(filename string) error {
	s.deleted = append(s.deleted, filename)
	delete(s.saved, filename)
	return nil
}

func defaultDocumentConfig() DocumentServiceConfig {
	return DocumentServiceConfig{
		MaxFileSizeBytes:  5 * 1024 * 1024,
		AllowedExtensions: []string{".pdf", ".docx", ".xlsx", ".doc", ".xls", ".jpg", ".jpeg", ".png"},
	}
}

func newTestDocumentService(docs *documentRepoStub, claims *claimRepoStub, store *storageStub) *DocumentService {
	return NewDocumentService(docs, claims, store, nil, &auditStub{}, nil, nil, defaultDocumentConfig())
}

func TestDocumentServiceValidate(t *testing.T) {
	svc := newTestDocumentService(&documentRepoStub{}, newClaimRepoStub(), newStorageStub())

	cases := []struct {
		name     string
		fileName string
		size     int64
		wantErr  *appErrors.Error
	}{
		{"pdf within limit", "timesheet.pdf", 1024, nil},
		{"uppercase extension", "SCAN.PDF", 1024, nil},
		{"jpeg allowed", "receipt.jpeg", 2048, nil},
		{"exactly at limit", "big.docx", 5 * 1024 * 1024, nil},
		{"over limit", "huge.pdf", 5*1024*1024 + 1, appErrors.ErrFileTooLarge},
		{"executable banned", "malware.exe", 10, appErrors.ErrUnsupportedFileType},
		{"no extension", "README", 10, appErrors.ErrUnsupportedFileType},
		{"oversized banned type reports type first", "huge.exe", 6 * 1024 * 1024, appErrors.ErrUnsupportedFileType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Validate(tc.fileName, tc.size)
			if tc.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.True(t, appErrors.Is(err, tc.wantErr))
			}
		})
	}
}

func TestDocumentServiceUploadBatchIsolatesFailures(t *testing.T) {
	claims := newClaimRepoStub()
	seedClaim(claims, 1, "lect-1", models.ClaimStatusPending)
	docs := &documentRepoStub{}
	store := newStorageStub()
	svc := newTestDocumentService(docs, claims, store)

	resp, err := svc.UploadBatch(context.Background(), lecturerClaims("lect-1"), 1, []DocumentUpload{
		{FileName: "hours.pdf", Size: 100, Content: strings.NewReader("pdf-bytes")},
		{FileName: "notes.exe", Size: 50, Content: strings.NewReader("nope")},
		{FileName: "huge.docx", Size: 6 * 1024 * 1024, Content: strings.NewReader("big")},
		{FileName: "scan.jpg", Size: 200, Content: strings.NewReader("jpg-bytes")},
	})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Accepted)
	require.Equal(t, 2, resp.Rejected)
	require.Len(t, resp.Results, 4)

	require.True(t, resp.Results[0].Accepted)
	require.NotNil(t, resp.Results[0].Document)
	require.False(t, resp.Results[1].Accepted)
	require.Contains(t, resp.Results[1].Error, "not allowed")
	require.False(t, resp.Results[2].Accepted)
	require.True(t, resp.Results[3].Accepted)

	require.Len(t, docs.docs, 2)
	require.Len(t, store.saved, 2)
}

func TestDocumentServiceUploadBatchStorageFailure(t *testing.T) {
	claims := newClaimRepoStub()
	seedClaim(claims, 1, "lect-1", models.ClaimStatusPending)
	store := newStorageStub()
	store.failAll = true
	svc := newTestDocumentService(&documentRepoStub{}, claims, store)

	resp, err := svc.UploadBatch(context.Background(), lecturerClaims("lect-1"), 1, []DocumentUpload{
		{FileName: "hours.pdf", Size: 100, Content: strings.NewReader("pdf-bytes")},
	})
	require.NoError(t, err)
	require.Equal(t, 0, resp.Accepted)
	require.Equal(t, 1, resp.Rejected)
	require.Equal(t, appErrors.ErrStorageFailure.Message, resp.Results[0].Error)
}

func TestDocumentServiceUploadBatchRemovesOrphanedBlob(t *testing.T) {
	claims := newClaimRepoStub()
	seedClaim(claims, 1, "lect-1", models.ClaimStatusPending)
	docs := &documentRepoStub{failOnNth: 1}
	store := newStorageStub()
	svc := newTestDocumentService(docs, claims, store)

	resp, err := svc.UploadBatch(context.Background(), lecturerClaims("lect-1"), 1, []DocumentUpload{
		{FileName: "hours.pdf", Size: 100, Content: strings.NewReader("pdf-bytes")},
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Rejected)
	require.Len(t, store.deleted, 1)
	require.Empty(t, store.saved)
}

func TestDocumentServiceUploadBatchGuards(t *testing.T) {
	claims := newClaimRepoStub()
	seedClaim(claims, 1, "lect-1", models.ClaimStatusApproved)
	seedClaim(claims, 2, "lect-1", models.ClaimStatusPending)
	svc := newTestDocumentService(&documentRepoStub{}, claims, newStorageStub())
	upload := []DocumentUpload{{FileName: "hours.pdf", Size: 100, Content: strings.NewReader("x")}}

	_, err := svc.UploadBatch(context.Background(), lecturerClaims("lect-1"), 999, upload)
	require.True(t, appErrors.Is(err, appErrors.ErrClaimNotFound))

	_, err = svc.UploadBatch(context.Background(), lecturerClaims("lect-2"), 2, upload)
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.UploadBatch(context.Background(), lecturerClaims("lect-1"), 1, upload)
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.UploadBatch(context.Background(), lecturerClaims("lect-1"), 2, nil)
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestDocumentServiceSignedLink(t *testing.T) {
	claims := newClaimRepoStub()
	seedClaim(claims, 1, "lect-1", models.ClaimStatusPending)
	docs := &documentRepoStub{docs: []*models.Document{
		{ID: "doc-1", ClaimID: 1, FileName: "hours.pdf", StoredName: "abc.pdf"},
	}}
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewDocumentService(docs, claims, newStorageStub(), signer, &auditStub{}, nil, nil, defaultDocumentConfig())

	token, expiresAt, err := svc.SignedLink(context.Background(), lecturerClaims("lect-1"), 1, "doc-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, expiresAt.After(time.Now()))

	_, _, err = svc.SignedLink(context.Background(), lecturerClaims("lect-2"), 1, "doc-1")
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, _, err = svc.SignedLink(context.Background(), lecturerClaims("lect-1"), 1, "doc-9")
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	// Without a signer configured the feature is disabled.
	disabled := newTestDocumentService(docs, claims, newStorageStub())
	_, _, err = disabled.SignedLink(context.Background(), lecturerClaims("lect-1"), 1, "doc-1")
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestDocumentServiceOpenSignedRejectsBadTokens(t *testing.T) {
	claims := newClaimRepoStub()
	docs := &documentRepoStub{docs: []*models.Document{
		{ID: "doc-1", ClaimID: 1, FileName: "hours.pdf", StoredName: "abc.pdf"},
	}}
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewDocumentService(docs, claims, newStorageStub(), signer, &auditStub{}, nil, nil, defaultDocumentConfig())

	_, _, err := svc.OpenSigned(context.Background(), "not-a-token")
	require.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	otherSigner := storage.NewSignedURLSigner("different", time.Hour)
	token, _, err := otherSigner.Generate("doc-1", "abc.pdf")
	require.NoError(t, err)
	_, _, err = svc.OpenSigned(context.Background(), token)
	require.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	token, _, err = signer.Generate("doc-9", "abc.pdf")
	require.NoError(t, err)
	_, _, err = svc.OpenSigned(context.Background(), token)
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestDocumentServiceListByClaimVisibility(t *testing.T) {
	claims := newClaimRepoStub()
	seedClaim(claims, 1, "lect-1", models.ClaimStatusPending)
	docs := &documentRepoStub{docs: []*models.Document{
		{ID: "doc-1", ClaimID: 1, FileName: "hours.pdf"},
	}}
	svc := newTestDocumentService(docs, claims, newStorageStub())

	listed, err := svc.ListByClaim(context.Background(), lecturerClaims("lect-1"), 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	listed, err = svc.ListByClaim(context.Background(), reviewerClaims(models.RoleCoordinator), 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = svc.ListByClaim(context.Background(), lecturerClaims("lect-2"), 1)
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
