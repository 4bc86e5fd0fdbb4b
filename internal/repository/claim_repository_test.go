package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cmcs-platform/claims-api/internal/models"
)

func newClaimRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var claimRowColumns = []string{
	"id", "user_id", "period", "workload", "hourly_rate", "amount", "description",
	"status", "submit_date", "approval_date", "rejection_reason", "processed_by", "processed_date",
	"lecturer_first_name", "lecturer_last_name", "processor_name",
}

func claimRow(id int64, status models.ClaimStatus) *sqlmock.Rows {
	return sqlmock.NewRows(claimRowColumns).
		AddRow(id, "lect-1", "2025-03", "10", "250.00", "2500.00", "March hours",
			status, time.Now(), nil, nil, nil, nil,
			"Thabo", "Mokoena", nil)
}

func TestClaimRepositoryCreateReturnsGeneratedID(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()

	repo := NewClaimRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO claims")).
		WithArgs("lect-1", "2025-03", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"March hours", string(models.ClaimStatusPending), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	claim := &models.Claim{
		UserID:      "lect-1",
		Period:      "2025-03",
		Workload:    decimal.RequireFromString("10"),
		HourlyRate:  decimal.RequireFromString("250.00"),
		Amount:      decimal.RequireFromString("2500.00"),
		Description: "March hours",
	}
	require.NoError(t, repo.Create(context.Background(), claim))
	require.Equal(t, int64(42), claim.ID)
	require.Equal(t, models.ClaimStatusPending, claim.Status)
	require.False(t, claim.SubmitDate.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()

	repo := NewClaimRepository(db)
	mock.ExpectQuery("SELECT c.id, c.user_id").
		WithArgs(int64(7)).
		WillReturnRows(claimRow(7, models.ClaimStatusPending))

	claim, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), claim.ID)
	require.Equal(t, "Thabo", claim.LecturerFirstName)
	require.True(t, claim.Amount.Equal(decimal.RequireFromString("2500.00")))

	mock.ExpectQuery("SELECT c.id, c.user_id").
		WithArgs(int64(999)).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByID(context.Background(), 999)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()

	repo := NewClaimRepository(db)
	mock.ExpectQuery("SELECT c.id, c.user_id.+c.status IN \\(\\$1,\\$2\\).+ILIKE \\$3.+ORDER BY c.submit_date DESC").
		WithArgs(string(models.ClaimStatusPending), string(models.ClaimStatusCoordinatorApproved), "%moko%").
		WillReturnRows(claimRow(1, models.ClaimStatusPending))

	claims, err := repo.List(context.Background(), models.ClaimFilter{
		Statuses:     []models.ClaimStatus{models.ClaimStatusPending, models.ClaimStatusCoordinatorApproved},
		LecturerName: "moko",
	})
	require.NoError(t, err)
	require.Len(t, claims, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepositoryListAscendingForManagerQueue(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()

	repo := NewClaimRepository(db)
	mock.ExpectQuery("SELECT c.id, c.user_id.+ORDER BY c.submit_date ASC").
		WithArgs("lect-1").
		WillReturnRows(claimRow(1, models.ClaimStatusPending))

	claims, err := repo.List(context.Background(), models.ClaimFilter{OwnerID: "lect-1", SortAscending: true})
	require.NoError(t, err)
	require.Len(t, claims, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()

	repo := NewClaimRepository(db)
	rows := sqlmock.NewRows([]string{"pending", "coordinator_approved", "approved", "rejected", "total"}).
		AddRow(3, 1, 2, 1, 7)
	mock.ExpectQuery("SELECT\\s+COUNT").
		WithArgs("lect-1").
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background(), "lect-1")
	require.NoError(t, err)
	require.Equal(t, 3, counts.Pending)
	require.Equal(t, 7, counts.Total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepositoryUpdateTransitionGuardsStatus(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()

	repo := NewClaimRepository(db)
	now := time.Now().UTC()
	params := UpdateTransitionParams{
		ID:            5,
		FromStatuses:  []models.ClaimStatus{models.ClaimStatusPending},
		Status:        models.ClaimStatusCoordinatorApproved,
		ProcessedBy:   "coord-1",
		ProcessedDate: now,
	}

	mock.ExpectExec("UPDATE claims.+status IN \\(\\$7\\)").
		WithArgs(string(models.ClaimStatusCoordinatorApproved), "coord-1", now, nil, nil, int64(5), string(models.ClaimStatusPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateTransition(context.Background(), params))

	// Zero affected rows means another transition won the race.
	mock.ExpectExec("UPDATE claims.+status IN \\(\\$7\\)").
		WithArgs(string(models.ClaimStatusCoordinatorApproved), "coord-1", now, nil, nil, int64(5), string(models.ClaimStatusPending)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.UpdateTransition(context.Background(), params), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepositoryUpdateTransitionRequiresFromSet(t *testing.T) {
	db, _, cleanup := newClaimRepoMock(t)
	defer cleanup()

	repo := NewClaimRepository(db)
	err := repo.UpdateTransition(context.Background(), UpdateTransitionParams{ID: 1, Status: models.ClaimStatusApproved})
	require.Error(t, err)
}
