package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cmcs-platform/claims-api/internal/dto"
	"github.com/cmcs-platform/claims-api/internal/models"
	"github.com/cmcs-platform/claims-api/internal/service"
	"github.com/cmcs-platform/claims-api/pkg/response"
)

// DashboardHandler wires the role-scoped dashboard endpoints.
type DashboardHandler struct {
	dashboards *service.DashboardService
	reports    *service.ReportService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(dashboards *service.DashboardService, reports *service.ReportService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards, reports: reports}
}

// Summary godoc
// @Summary Home dashboard summary
// @Description Claim counts and recent claims, scoped to the caller's role
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.dashboards.Summary(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// CoordinatorQueue godoc
// @Summary Coordinator review queue
// @Description Claims awaiting coordinator review, newest first
// @Tags Dashboard
// @Produce json
// @Param status query string false "Status override"
// @Param lecturerName query string false "Lecturer name filter"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /coordinator/claims [get]
func (h *DashboardHandler) CoordinatorQueue(c *gin.Context) {
	query := dto.ClaimQuery{
		LecturerName: c.Query("lecturerName"),
		Status:       models.ClaimStatus(c.Query("status")),
	}

	claims, counts, err := h.dashboards.CoordinatorQueue(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, claims, nil, map[string]interface{}{"counts": counts})
}

// ManagerQueue godoc
// @Summary Manager approval queue
// @Description Claims awaiting final decision in submission order
// @Tags Dashboard
// @Produce json
// @Param lecturerName query string false "Lecturer name filter"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /manager/claims [get]
func (h *DashboardHandler) ManagerQueue(c *gin.Context) {
	claims, counts, err := h.dashboards.ManagerQueue(c.Request.Context(), claimsFromContext(c), c.Query("lecturerName"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, claims, nil, map[string]interface{}{"counts": counts})
}

// ExportApproved godoc
// @Summary Export approved claims
// @Description Download all finally approved claims as CSV
// @Tags Dashboard
// @Produce text/csv
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /manager/claims/export [get]
func (h *DashboardHandler) ExportApproved(c *gin.Context) {
	payload, filename, err := h.reports.ApprovedClaimsCSV(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", payload)
}
