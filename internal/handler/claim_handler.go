package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/cmcs-platform/claims-api/internal/dto"
	"github.com/cmcs-platform/claims-api/internal/models"
	"github.com/cmcs-platform/claims-api/internal/service"
	appErrors "github.com/cmcs-platform/claims-api/pkg/errors"
	"github.com/cmcs-platform/claims-api/pkg/response"
)

// ClaimHandler wires claim submission and listing endpoints.
type ClaimHandler struct {
	claims    *service.ClaimService
	documents *service.DocumentService
	reports   *service.ReportService
}

// NewClaimHandler creates a new handler.
func NewClaimHandler(claims *service.ClaimService, documents *service.DocumentService, reports *service.ReportService) *ClaimHandler {
	return &ClaimHandler{claims: claims, documents: documents, reports: reports}
}

// Submit godoc
// @Summary Submit a new claim
// @Description Create a workload claim in pending status; multipart submits may attach supporting files in the same request
// @Tags Claims
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Param payload body dto.SubmitClaimRequest true "Claim payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /claims [post]
func (h *ClaimHandler) Submit(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		h.submitMultipart(c)
		return
	}

	var req dto.SubmitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid claim payload"))
		return
	}

	claim, err := h.claims.Submit(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, claim)
}

// submitMultipart handles the combined submit-with-attachments form. The
// claim commit is never rolled back by upload failures; each file reports
// its own outcome.
func (h *ClaimHandler) submitMultipart(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload"))
		return
	}

	workload, err := decimal.NewFromString(c.PostForm("workload"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "workload must be a decimal number"))
		return
	}
	req := dto.SubmitClaimRequest{
		Period:      c.PostForm("period"),
		Workload:    workload,
		Description: c.PostForm("description"),
	}
	if raw := c.PostForm("hourlyRate"); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "hourly rate must be a decimal number"))
			return
		}
		req.HourlyRate = &rate
	}

	actor := claimsFromContext(c)
	claim, err := h.claims.Submit(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		response.Created(c, claim)
		return
	}

	uploads, closers, err := uploadsFromHeaders(files, c.PostForm("fileDescription"))
	defer closeAll(closers)
	if err != nil {
		response.JSON(c, http.StatusCreated, claim, nil, map[string]interface{}{"uploadError": "attachments were not readable"})
		return
	}

	batch, err := h.documents.UploadBatch(c.Request.Context(), actor, claim.ID, uploads)
	if err != nil {
		response.JSON(c, http.StatusCreated, claim, nil, map[string]interface{}{"uploadError": appErrors.FromError(err).Message})
		return
	}

	response.JSON(c, http.StatusCreated, claim, nil, map[string]interface{}{"uploads": batch})
}

// Get godoc
// @Summary Get a claim
// @Description Fetch one claim by id, owner or reviewer only
// @Tags Claims
// @Produce json
// @Param id path int true "Claim ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /claims/{id} [get]
func (h *ClaimHandler) Get(c *gin.Context) {
	id, err := claimIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	claim, err := h.claims.Get(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, claim, nil)
}

// List godoc
// @Summary List all claims
// @Description List claims across lecturers, reviewer roles only
// @Tags Claims
// @Produce json
// @Param status query string false "Status filter"
// @Param lecturerName query string false "Lecturer name filter"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /claims [get]
func (h *ClaimHandler) List(c *gin.Context) {
	filter := models.ClaimFilter{LecturerName: c.Query("lecturerName")}
	if status := c.Query("status"); status != "" {
		parsed := models.ClaimStatus(status)
		if !parsed.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status filter"))
			return
		}
		filter.Statuses = []models.ClaimStatus{parsed}
	}

	claims, err := h.claims.ListAll(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, claims, nil)
}

// ListMine godoc
// @Summary List own claims
// @Description List the authenticated lecturer's claims, newest first
// @Tags Claims
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /claims/mine [get]
func (h *ClaimHandler) ListMine(c *gin.Context) {
	claims, err := h.claims.ListMine(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, claims, nil)
}

// ListUploadable godoc
// @Summary List claims accepting uploads
// @Description List own claims that still accept document uploads
// @Tags Claims
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /claims/mine/uploadable [get]
func (h *ClaimHandler) ListUploadable(c *gin.Context) {
	claims, err := h.claims.ListUploadable(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, claims, nil)
}

// Statement godoc
// @Summary Download claim statement
// @Description Render the authenticated lecturer's claims as a PDF statement
// @Tags Claims
// @Produce application/pdf
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /claims/mine/statement [get]
func (h *ClaimHandler) Statement(c *gin.Context) {
	payload, filename, err := h.reports.Statement(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}
