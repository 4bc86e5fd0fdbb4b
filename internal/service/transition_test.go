package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cmcs-platform/claims-api/internal/models"
	appErrors "github.com/cmcs-platform/claims-api/pkg/errors"
)

func reviewerClaims(role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: "reviewer-1", Role: role, FullName: "Riya Naidoo"}
}

func TestPlanTransitionRoleGates(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	claim := &models.Claim{ID: 7, Status: models.ClaimStatusPending}

	cases := []struct {
		name    string
		role    models.UserRole
		action  models.ClaimAction
		allowed bool
	}{
		{"coordinator may coordinator-approve", models.RoleCoordinator, models.ActionCoordinatorApprove, true},
		{"manager may not coordinator-approve", models.RoleAcademicManager, models.ActionCoordinatorApprove, false},
		{"manager may manager-approve", models.RoleAcademicManager, models.ActionManagerApprove, true},
		{"coordinator may not manager-approve", models.RoleCoordinator, models.ActionManagerApprove, false},
		{"lecturer may not approve", models.RoleLecturer, models.ActionCoordinatorApprove, false},
		{"administrator may coordinator-approve", models.RoleAdministrator, models.ActionCoordinatorApprove, true},
		{"administrator may manager-approve", models.RoleAdministrator, models.ActionManagerApprove, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := planTransition(claim, reviewerClaims(tc.role), tc.action, "", now)
			if tc.allowed {
				require.NoError(t, err)
				require.NotNil(t, plan)
			} else {
				require.Error(t, err)
				require.True(t, appErrors.Is(err, appErrors.ErrForbidden))
			}
		})
	}
}

func TestPlanTransitionRequiresReason(t *testing.T) {
	now := time.Now().UTC()
	claim := &models.Claim{ID: 3, Status: models.ClaimStatusPending}

	_, err := planTransition(claim, reviewerClaims(models.RoleCoordinator), models.ActionCoordinatorReject, "   ", now)
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidReason))

	plan, err := planTransition(claim, reviewerClaims(models.RoleCoordinator), models.ActionCoordinatorReject, "  Insufficient documentation  ", now)
	require.NoError(t, err)
	require.NotNil(t, plan.rejectionReason)
	require.Equal(t, "Insufficient documentation", *plan.rejectionReason)
}

func TestPlanTransitionStatusGuards(t *testing.T) {
	now := time.Now().UTC()

	approved := &models.Claim{ID: 4, Status: models.ClaimStatusApproved}
	_, err := planTransition(approved, reviewerClaims(models.RoleCoordinator), models.ActionCoordinatorApprove, "", now)
	require.True(t, appErrors.Is(err, appErrors.ErrIllegalTransition))
	require.Equal(t, "Only pending claims can be approved by coordinators.", appErrors.FromError(err).Message)

	rejected := &models.Claim{ID: 5, Status: models.ClaimStatusRejected}
	_, err = planTransition(rejected, reviewerClaims(models.RoleAcademicManager), models.ActionManagerApprove, "", now)
	require.True(t, appErrors.Is(err, appErrors.ErrIllegalTransition))
	require.Equal(t, "Only pending or coordinator-approved claims can be finally approved.", appErrors.FromError(err).Message)

	coordApproved := &models.Claim{ID: 6, Status: models.ClaimStatusCoordinatorApproved}
	plan, err := planTransition(coordApproved, reviewerClaims(models.RoleAcademicManager), models.ActionManagerApprove, "", now)
	require.NoError(t, err)
	require.Equal(t, models.ClaimStatusApproved, plan.status)
}

func TestPlanTransitionApprovalDateOnlyOnFinalApprove(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pending := &models.Claim{ID: 8, Status: models.ClaimStatusPending}

	plan, err := planTransition(pending, reviewerClaims(models.RoleCoordinator), models.ActionCoordinatorApprove, "", now)
	require.NoError(t, err)
	require.Nil(t, plan.approvalDate)
	require.Equal(t, now, plan.processedDate)

	plan, err = planTransition(pending, reviewerClaims(models.RoleAcademicManager), models.ActionManagerApprove, "", now)
	require.NoError(t, err)
	require.NotNil(t, plan.approvalDate)
	require.Equal(t, now, *plan.approvalDate)
}

func TestPlanTransitionUnknownActionAndNilActor(t *testing.T) {
	now := time.Now().UTC()
	claim := &models.Claim{ID: 9, Status: models.ClaimStatusPending}

	_, err := planTransition(claim, reviewerClaims(models.RoleCoordinator), models.ClaimAction("DELETE"), "", now)
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = planTransition(claim, nil, models.ActionCoordinatorApprove, "", now)
	require.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
