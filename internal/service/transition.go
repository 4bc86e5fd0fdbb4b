package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/cmcs-platform/claims-api/internal/models"
	appErrors "github.com/cmcs-platform/claims-api/pkg/errors"
)

// transitionRule describes one row of the claim workflow table: who may take
// the action, from which statuses, into which status, and with which side
// effects on the review columns.
type transitionRule struct {
	permitted        func(models.UserRole) bool
	from             []models.ClaimStatus
	to               models.ClaimStatus
	requiresReason   bool
	setsApprovalDate bool
	guardMessage     string
	successMessage   func(id int64) string
}

// transitionRules is the single source of truth for claim status changes.
// Every guard, target status and user-facing message lives here so no handler
// or service method can invent a transition of its own.
var transitionRules = map[models.ClaimAction]transitionRule{
	models.ActionCoordinatorApprove: {
		permitted:    models.UserRole.CanActAsCoordinator,
		from:         []models.ClaimStatus{models.ClaimStatusPending},
		to:           models.ClaimStatusCoordinatorApproved,
		guardMessage: "Only pending claims can be approved by coordinators.",
		successMessage: func(id int64) string {
			return fmt.Sprintf("Claim #%d has been approved by coordinator and sent to manager for final approval!", id)
		},
	},
	models.ActionCoordinatorReject: {
		permitted:      models.UserRole.CanActAsCoordinator,
		from:           []models.ClaimStatus{models.ClaimStatusPending},
		to:             models.ClaimStatusRejected,
		requiresReason: true,
		guardMessage:   "Only pending claims can be rejected by coordinators.",
		successMessage: func(id int64) string {
			return fmt.Sprintf("Claim #%d has been rejected.", id)
		},
	},
	models.ActionManagerApprove: {
		permitted:        models.UserRole.CanActAsManager,
		from:             []models.ClaimStatus{models.ClaimStatusPending, models.ClaimStatusCoordinatorApproved},
		to:               models.ClaimStatusApproved,
		setsApprovalDate: true,
		guardMessage:     "Only pending or coordinator-approved claims can be finally approved.",
		successMessage: func(id int64) string {
			return fmt.Sprintf("Claim #%d has been finally approved and settled!", id)
		},
	},
	models.ActionManagerReject: {
		permitted:      models.UserRole.CanActAsManager,
		from:           []models.ClaimStatus{models.ClaimStatusPending, models.ClaimStatusCoordinatorApproved},
		to:             models.ClaimStatusRejected,
		requiresReason: true,
		guardMessage:   "Only pending or coordinator-approved claims can be rejected.",
		successMessage: func(id int64) string {
			return fmt.Sprintf("Claim #%d has been rejected.", id)
		},
	},
}

// transitionPlan is the fully validated mutation a transition applies. All
// checks happen before a plan exists, so applying one never half-updates a
// claim.
type transitionPlan struct {
	action          models.ClaimAction
	from            []models.ClaimStatus
	status          models.ClaimStatus
	processedBy     string
	processedDate   time.Time
	approvalDate    *time.Time
	rejectionReason *string
	message         string
}

// planTransition validates an action against the workflow table and returns
// the mutation to apply. Validation order is fixed: unknown action, actor
// role, reason presence, then the claim's current status.
func planTransition(claim *models.Claim, actor *models.JWTClaims, action models.ClaimAction, reason string, now time.Time) (*transitionPlan, error) {
	rule, ok := transitionRules[action]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown claim action %q", action))
	}

	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !rule.permitted(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "your role does not permit this action")
	}

	reason = strings.TrimSpace(reason)
	if rule.requiresReason && reason == "" {
		return nil, appErrors.ErrInvalidReason
	}

	if !statusIn(claim.Status, rule.from) {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, rule.guardMessage)
	}

	plan := &transitionPlan{
		action:        action,
		from:          rule.from,
		status:        rule.to,
		processedBy:   actor.UserID,
		processedDate: now,
		message:       rule.successMessage(claim.ID),
	}
	if rule.setsApprovalDate {
		ts := now
		plan.approvalDate = &ts
	}
	if rule.requiresReason {
		plan.rejectionReason = &reason
	}
	return plan, nil
}

// guardMessageFor returns the illegal-transition message for an action. Used
// when the database race guard fires after validation already passed.
func guardMessageFor(action models.ClaimAction) string {
	if rule, ok := transitionRules[action]; ok {
		return rule.guardMessage
	}
	return appErrors.ErrIllegalTransition.Message
}

func statusIn(status models.ClaimStatus, set []models.ClaimStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
