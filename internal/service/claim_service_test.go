package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cmcs-platform/claims-api/internal/dto"
	"github.com/cmcs-platform/claims-api/internal/models"
	"github.com/cmcs-platform/claims-api/internal/repository"
	appErrors "github.com/cmcs-platform/claims-api/pkg/errors"
)

type claimRepoStub struct {
	claims     map[int64]*models.Claim
	nextID     int64
	lastFilter models.ClaimFilter
	// raceStatuses, when set, are used instead of the stored status when the
	// guarded update runs, simulating a concurrent transition between the
	// read and the write.
	raceStatus models.ClaimStatus
}

func newClaimRepoStub() *claimRepoStub {
	return &claimRepoStub{claims: make(map[int64]*models.Claim)}
}

func (s *claimRepoStub) Create(ctx context.Context, claim *models.Claim) error {
	s.nextID++
	claim.ID = s.nextID
	copy := *claim
	s.claims[claim.ID] = &copy
	return nil
}

func (s *claimRepoStub) GetByID(ctx context.Context, id int64) (*models.Claim, error) {
	if claim, ok := s.claims[id]; ok {
		copy := *claim
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *claimRepoStub) List(ctx context.Context, filter models.ClaimFilter) ([]models.Claim, error) {
	s.lastFilter = filter
	result := make([]models.Claim, 0, len(s.claims))
	for _, claim := range s.claims {
		if filter.OwnerID != "" && claim.UserID != filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 && !statusIn(claim.Status, filter.Statuses) {
			continue
		}
		result = append(result, *claim)
	}
	return result, nil
}

func (s *claimRepoStub) CountByStatus(ctx context.Context, ownerID string) (models.ClaimStatusCounts, error) {
	var counts models.ClaimStatusCounts
	for _, claim := range s.claims {
		if ownerID != "" && claim.UserID != ownerID {
			continue
		}
		counts.Total++
		switch claim.Status {
		case models.ClaimStatusPending:
			counts.Pending++
		case models.ClaimStatusCoordinatorApproved:
			counts.CoordinatorApproved++
		case models.ClaimStatusApproved:
			counts.Approved++
		case models.ClaimStatusRejected:
			counts.Rejected++
		}
	}
	return counts, nil
}

func (s *claimRepoStub) UpdateTransition(ctx context.Context, params repository.UpdateTransitionParams) error {
	claim, ok := s.claims[params.ID]
	if !ok {
		return sql.ErrNoRows
	}
	current := claim.Status
	if s.raceStatus != "" {
		current = s.raceStatus
	}
	if !statusIn(current, params.FromStatuses) {
		return sql.ErrNoRows
	}
	claim.Status = params.Status
	claim.ProcessedBy = &params.ProcessedBy
	claim.ProcessedDate = &params.ProcessedDate
	claim.ApprovalDate = params.ApprovalDate
	claim.RejectionReason = params.RejectionReason
	return nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestClaimService(repo *claimRepoStub, audit *auditStub) *ClaimService {
	return NewClaimService(repo, audit, nil, nil, nil, nil, ClaimServiceConfig{
		DefaultHourlyRate: decimal.RequireFromString("250.00"),
	})
}

func seedClaim(repo *claimRepoStub, id int64, owner string, status models.ClaimStatus) *models.Claim {
	claim := &models.Claim{
		ID:         id,
		UserID:     owner,
		Period:     "2025-03",
		Workload:   decimal.RequireFromString("10"),
		HourlyRate: decimal.RequireFromString("250.00"),
		Amount:     decimal.RequireFromString("2500.00"),
		Status:     status,
	}
	repo.claims[id] = claim
	if id > repo.nextID {
		repo.nextID = id
	}
	return claim
}

func lecturerClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleLecturer, FullName: "Thabo Mokoena"}
}

func TestClaimServiceSubmitDefaultsRateAndAmount(t *testing.T) {
	repo := newClaimRepoStub()
	audit := &auditStub{}
	svc := newTestClaimService(repo, audit)

	claim, err := svc.Submit(context.Background(), lecturerClaims("lect-1"), dto.SubmitClaimRequest{
		Period:      "2025-03",
		Workload:    decimal.RequireFromString("12.5"),
		Description: "March tutoring hours",
	})
	require.NoError(t, err)
	require.Equal(t, models.ClaimStatusPending, claim.Status)
	require.True(t, claim.HourlyRate.Equal(decimal.RequireFromString("250.00")))
	require.True(t, claim.Amount.Equal(decimal.RequireFromString("3125.00")))
	require.Equal(t, "lect-1", claim.UserID)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionClaimSubmit, audit.logs[0].Action)
}

func TestClaimServiceSubmitRejectsNonPositiveWorkload(t *testing.T) {
	svc := newTestClaimService(newClaimRepoStub(), &auditStub{})

	_, err := svc.Submit(context.Background(), lecturerClaims("lect-1"), dto.SubmitClaimRequest{
		Period:   "2025-03",
		Workload: decimal.Zero,
	})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestClaimServiceCoordinatorApprovesPendingClaim(t *testing.T) {
	repo := newClaimRepoStub()
	audit := &auditStub{}
	svc := newTestClaimService(repo, audit)
	seedClaim(repo, 1, "lect-1", models.ClaimStatusPending)

	result, err := svc.Transition(context.Background(), reviewerClaims(models.RoleCoordinator), 1, models.ActionCoordinatorApprove, "")
	require.NoError(t, err)
	require.Equal(t, models.ClaimStatusCoordinatorApproved, result.Claim.Status)
	require.NotNil(t, result.Claim.ProcessedBy)
	require.Equal(t, "reviewer-1", *result.Claim.ProcessedBy)
	require.NotNil(t, result.Claim.ProcessedDate)
	require.Nil(t, result.Claim.ApprovalDate)
	require.Contains(t, result.Message, "approved by coordinator")

	stored := repo.claims[1]
	require.Equal(t, models.ClaimStatusCoordinatorApproved, stored.Status)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionClaimApprove, audit.logs[0].Action)
}

func TestClaimServiceCoordinatorRejectsWithReason(t *testing.T) {
	repo := newClaimRepoStub()
	svc := newTestClaimService(repo, &auditStub{})
	seedClaim(repo, 2, "lect-1", models.ClaimStatusPending)

	result, err := svc.Transition(context.Background(), reviewerClaims(models.RoleCoordinator), 2, models.ActionCoordinatorReject, "Insufficient documentation")
	require.NoError(t, err)
	require.Equal(t, models.ClaimStatusRejected, result.Claim.Status)
	require.NotNil(t, result.Claim.RejectionReason)
	require.Equal(t, "Insufficient documentation", *result.Claim.RejectionReason)
	require.Contains(t, result.Message, "rejected")
}

func TestClaimServiceRejectWithBlankReasonLeavesClaimUntouched(t *testing.T) {
	repo := newClaimRepoStub()
	svc := newTestClaimService(repo, &auditStub{})
	seedClaim(repo, 3, "lect-1", models.ClaimStatusPending)

	_, err := svc.Transition(context.Background(), reviewerClaims(models.RoleCoordinator), 3, models.ActionCoordinatorReject, "   ")
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidReason))

	stored := repo.claims[3]
	require.Equal(t, models.ClaimStatusPending, stored.Status)
	require.Nil(t, stored.ProcessedBy)
	require.Nil(t, stored.RejectionReason)
}

func TestClaimServiceCoordinatorCannotApproveDecidedClaim(t *testing.T) {
	repo := newClaimRepoStub()
	svc := newTestClaimService(repo, &auditStub{})
	seedClaim(repo, 4, "lect-1", models.ClaimStatusApproved)

	_, err := svc.Transition(context.Background(), reviewerClaims(models.RoleCoordinator), 4, models.ActionCoordinatorApprove, "")
	require.True(t, appErrors.Is(err, appErrors.ErrIllegalTransition))
	require.Equal(t, "Only pending claims can be approved by coordinators.", appErrors.FromError(err).Message)
	require.Equal(t, models.ClaimStatusApproved, repo.claims[4].Status)
}

func TestClaimServiceTransitionUnknownClaim(t *testing.T) {
	svc := newTestClaimService(newClaimRepoStub(), &auditStub{})

	_, err := svc.Transition(context.Background(), reviewerClaims(models.RoleCoordinator), 999, models.ActionCoordinatorApprove, "")
	require.True(t, appErrors.Is(err, appErrors.ErrClaimNotFound))
	require.Equal(t, "Claim not found.", appErrors.FromError(err).Message)
}

func TestClaimServiceManagerApproveSetsApprovalDate(t *testing.T) {
	repo := newClaimRepoStub()
	svc := newTestClaimService(repo, &auditStub{})
	seedClaim(repo, 5, "lect-1", models.ClaimStatusCoordinatorApproved)

	result, err := svc.Transition(context.Background(), reviewerClaims(models.RoleAcademicManager), 5, models.ActionManagerApprove, "")
	require.NoError(t, err)
	require.Equal(t, models.ClaimStatusApproved, result.Claim.Status)
	require.NotNil(t, result.Claim.ApprovalDate)
	require.Contains(t, result.Message, "finally approved")
}

func TestClaimServiceTransitionLosesRace(t *testing.T) {
	repo := newClaimRepoStub()
	svc := newTestClaimService(repo, &auditStub{})
	seedClaim(repo, 6, "lect-1", models.ClaimStatusPending)
	repo.raceStatus = models.ClaimStatusRejected

	_, err := svc.Transition(context.Background(), reviewerClaims(models.RoleCoordinator), 6, models.ActionCoordinatorApprove, "")
	require.True(t, appErrors.Is(err, appErrors.ErrIllegalTransition))
}

func TestClaimServiceGetEnforcesOwnership(t *testing.T) {
	repo := newClaimRepoStub()
	svc := newTestClaimService(repo, &auditStub{})
	seedClaim(repo, 7, "lect-1", models.ClaimStatusPending)

	_, err := svc.Get(context.Background(), lecturerClaims("lect-2"), 7)
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	claim, err := svc.Get(context.Background(), lecturerClaims("lect-1"), 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), claim.ID)

	claim, err = svc.Get(context.Background(), reviewerClaims(models.RoleAcademicManager), 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), claim.ID)
}

func TestClaimServiceListUploadableFiltersStatuses(t *testing.T) {
	repo := newClaimRepoStub()
	svc := newTestClaimService(repo, &auditStub{})
	seedClaim(repo, 8, "lect-1", models.ClaimStatusPending)
	seedClaim(repo, 9, "lect-1", models.ClaimStatusApproved)
	seedClaim(repo, 10, "lect-1", models.ClaimStatusCoordinatorApproved)
	seedClaim(repo, 11, "lect-2", models.ClaimStatusPending)

	claims, err := svc.ListUploadable(context.Background(), lecturerClaims("lect-1"))
	require.NoError(t, err)
	require.Len(t, claims, 2)
	for _, claim := range claims {
		require.Equal(t, "lect-1", claim.UserID)
		require.False(t, claim.Status.Terminal())
	}
}

func TestClaimServiceListAllRequiresReviewer(t *testing.T) {
	svc := newTestClaimService(newClaimRepoStub(), &auditStub{})

	_, err := svc.ListAll(context.Background(), lecturerClaims("lect-1"), models.ClaimFilter{})
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
