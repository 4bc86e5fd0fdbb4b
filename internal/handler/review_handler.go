package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cmcs-platform/claims-api/internal/dto"
	"github.com/cmcs-platform/claims-api/internal/models"
	"github.com/cmcs-platform/claims-api/internal/service"
	appErrors "github.com/cmcs-platform/claims-api/pkg/errors"
	"github.com/cmcs-platform/claims-api/pkg/response"
)

// ReviewHandler wires the coordinator and manager transition endpoints. All
// four endpoints funnel into the same workflow engine; only the action
// differs.
type ReviewHandler struct {
	claims *service.ClaimService
}

// NewReviewHandler creates a new handler.
func NewReviewHandler(claims *service.ClaimService) *ReviewHandler {
	return &ReviewHandler{claims: claims}
}

// CoordinatorApprove godoc
// @Summary Coordinator approves a claim
// @Description Move a pending claim to coordinator-approved
// @Tags Review
// @Produce json
// @Param id path int true "Claim ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /coordinator/claims/{id}/approve [post]
func (h *ReviewHandler) CoordinatorApprove(c *gin.Context) {
	h.transition(c, models.ActionCoordinatorApprove, false)
}

// CoordinatorReject godoc
// @Summary Coordinator rejects a claim
// @Description Reject a pending claim with a mandatory reason
// @Tags Review
// @Accept json
// @Produce json
// @Param id path int true "Claim ID"
// @Param payload body dto.RejectClaimRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /coordinator/claims/{id}/reject [post]
func (h *ReviewHandler) CoordinatorReject(c *gin.Context) {
	h.transition(c, models.ActionCoordinatorReject, true)
}

// ManagerApprove godoc
// @Summary Manager finally approves a claim
// @Description Move a pending or coordinator-approved claim to approved
// @Tags Review
// @Produce json
// @Param id path int true "Claim ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /manager/claims/{id}/approve [post]
func (h *ReviewHandler) ManagerApprove(c *gin.Context) {
	h.transition(c, models.ActionManagerApprove, false)
}

// ManagerReject godoc
// @Summary Manager rejects a claim
// @Description Reject a pending or coordinator-approved claim with a mandatory reason
// @Tags Review
// @Accept json
// @Produce json
// @Param id path int true "Claim ID"
// @Param payload body dto.RejectClaimRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /manager/claims/{id}/reject [post]
func (h *ReviewHandler) ManagerReject(c *gin.Context) {
	h.transition(c, models.ActionManagerReject, true)
}

func (h *ReviewHandler) transition(c *gin.Context, action models.ClaimAction, withReason bool) {
	id, err := claimIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var reason string
	if withReason {
		var req dto.RejectClaimRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrInvalidReason, ""))
			return
		}
		reason = req.Reason
	}

	result, err := h.claims.Transition(c.Request.Context(), claimsFromContext(c), id, action, reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.WithMessage(c, http.StatusOK, result.Claim, result.Message)
}
