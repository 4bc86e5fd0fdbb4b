package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/cmcs-platform/claims-api/internal/models"
)

func newDocumentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestDocumentRepositoryCreateFillsDefaults(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc := &models.Document{
		ClaimID:     3,
		FileName:    "hours.pdf",
		StoredName:  "abc123.pdf",
		ContentType: "application/pdf",
		SizeBytes:   1024,
	}
	require.NoError(t, repo.Create(context.Background(), doc))
	require.NotEmpty(t, doc.ID)
	require.False(t, doc.UploadDate.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListByClaim(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	rows := sqlmock.NewRows([]string{"id", "claim_id", "file_name", "stored_name", "content_type", "size_bytes", "description", "upload_date"}).
		AddRow("doc-1", int64(3), "hours.pdf", "abc.pdf", "application/pdf", int64(1024), "", time.Now()).
		AddRow("doc-2", int64(3), "scan.jpg", "def.jpg", "image/jpeg", int64(2048), "receipt", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, claim_id, file_name")).
		WithArgs(int64(3)).
		WillReturnRows(rows)

	docs, err := repo.ListByClaim(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "hours.pdf", docs[0].FileName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryDeleteByClaimReturnsStoredNames(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	rows := sqlmock.NewRows([]string{"stored_name"}).AddRow("abc.pdf").AddRow("def.jpg")
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM documents WHERE claim_id = $1 RETURNING stored_name")).
		WithArgs(int64(3)).
		WillReturnRows(rows)

	names, err := repo.DeleteByClaim(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, []string{"abc.pdf", "def.jpg"}, names)
	require.NoError(t, mock.ExpectationsWereMet())
}
