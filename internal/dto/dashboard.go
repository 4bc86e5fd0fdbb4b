package dto

import "github.com/cmcs-platform/claims-api/internal/models"

// DashboardSummaryResponse is the role-aware home dashboard payload:
// lecturers see their own claim counts, reviewers see system-wide totals.
type DashboardSummaryResponse struct {
	Counts       models.ClaimStatusCounts `json:"counts"`
	RecentClaims []models.Claim           `json:"recentClaims"`
}

// ReviewQueueCounts accompanies the coordinator dashboard listing; the
// numbers are computed independently of the active filter.
type ReviewQueueCounts struct {
	TotalPending        int `json:"totalPending"`
	CoordinatorApproved int `json:"coordinatorApproved"`
	WaitingForManager   int `json:"waitingForManager"`
}
