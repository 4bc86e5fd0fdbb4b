package dto

import (
	"github.com/shopspring/decimal"

	"github.com/cmcs-platform/claims-api/internal/models"
)

// SubmitClaimRequest is the payload for a lecturer submitting a new claim.
type SubmitClaimRequest struct {
	Period      string           `json:"period" validate:"required,max=20"`
	Workload    decimal.Decimal  `json:"workload"`
	HourlyRate  *decimal.Decimal `json:"hourlyRate,omitempty"`
	Description string           `json:"description" validate:"max=500"`
}

// RejectClaimRequest carries the mandatory rejection reason.
type RejectClaimRequest struct {
	Reason string `json:"reason"`
}

// ClaimQuery mirrors the dashboard listing filters.
type ClaimQuery struct {
	LecturerName string
	Status       models.ClaimStatus
}

// TransitionResult pairs the updated claim with the outcome message shown to
// the acting reviewer.
type TransitionResult struct {
	Claim   *models.Claim `json:"claim"`
	Message string        `json:"message"`
}
