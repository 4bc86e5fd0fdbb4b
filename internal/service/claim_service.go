package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cmcs-platform/claims-api/internal/dto"
	"github.com/cmcs-platform/claims-api/internal/models"
	"github.com/cmcs-platform/claims-api/internal/repository"
	appErrors "github.com/cmcs-platform/claims-api/pkg/errors"
)

type claimStore interface {
	Create(ctx context.Context, claim *models.Claim) error
	GetByID(ctx context.Context, id int64) (*models.Claim, error)
	List(ctx context.Context, filter models.ClaimFilter) ([]models.Claim, error)
	CountByStatus(ctx context.Context, ownerID string) (models.ClaimStatusCounts, error)
	UpdateTransition(ctx context.Context, params repository.UpdateTransitionParams) error
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type summaryInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ClaimServiceConfig carries the submission defaults.
type ClaimServiceConfig struct {
	DefaultHourlyRate    decimal.Decimal
	MaxDescriptionLength int
}

// ClaimService implements claim submission and the review workflow.
type ClaimService struct {
	repo      claimStore
	audit     auditRecorder
	cache     summaryInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    ClaimServiceConfig
	now       func() time.Time
}

// NewClaimService constructs a ClaimService. The cache and metrics
// dependencies are optional.
func NewClaimService(repo claimStore, audit auditRecorder, cache summaryInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config ClaimServiceConfig) *ClaimService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.MaxDescriptionLength <= 0 {
		config.MaxDescriptionLength = 500
	}
	return &ClaimService{
		repo:      repo,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit records a new claim for the acting lecturer. The claim starts in
// PENDING and its amount is the exact product of workload and hourly rate.
func (s *ClaimService) Submit(ctx context.Context, actor *models.JWTClaims, req dto.SubmitClaimRequest) (*models.Claim, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid claim payload")
	}
	if !req.Workload.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "workload must be greater than zero")
	}
	if len(req.Description) > s.config.MaxDescriptionLength {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("description must be at most %d characters", s.config.MaxDescriptionLength))
	}

	rate := s.config.DefaultHourlyRate
	if req.HourlyRate != nil {
		if !req.HourlyRate.IsPositive() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "hourly rate must be greater than zero")
		}
		rate = *req.HourlyRate
	}

	claim := &models.Claim{
		UserID:      actor.UserID,
		Period:      strings.TrimSpace(req.Period),
		Workload:    req.Workload,
		HourlyRate:  rate,
		Amount:      req.Workload.Mul(rate),
		Description: strings.TrimSpace(req.Description),
		Status:      models.ClaimStatusPending,
		SubmitDate:  s.now(),
	}

	if err := s.repo.Create(ctx, claim); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create claim")
	}

	s.recordAudit(ctx, actor, models.AuditActionClaimSubmit, claim.ID)
	s.invalidateSummaries(ctx)

	s.logger.Info("claim submitted",
		zap.Int64("claim_id", claim.ID),
		zap.String("user_id", actor.UserID),
		zap.String("amount", claim.Amount.String()))

	return claim, nil
}

// Get returns a single claim. Lecturers may only read their own claims;
// reviewer roles may read any.
func (s *ClaimService) Get(ctx context.Context, actor *models.JWTClaims, id int64) (*models.Claim, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	claim, err := s.loadClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim.UserID != actor.UserID && !actor.Role.IsReviewer() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you may only view your own claims")
	}
	return claim, nil
}

// ListAll returns claims across all lecturers. Reviewer roles only.
func (s *ClaimService) ListAll(ctx context.Context, actor *models.JWTClaims, filter models.ClaimFilter) ([]models.Claim, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.IsReviewer() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only reviewers may list all claims")
	}
	filter.OwnerID = ""
	claims, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list claims")
	}
	return claims, nil
}

// ListMine returns the acting lecturer's claims, newest first.
func (s *ClaimService) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Claim, error) {
	return s.listOwned(ctx, actor, nil)
}

// ListUploadable returns the acting lecturer's claims that still accept
// document uploads, i.e. those not yet finally decided.
func (s *ClaimService) ListUploadable(ctx context.Context, actor *models.JWTClaims) ([]models.Claim, error) {
	return s.listOwned(ctx, actor, []models.ClaimStatus{
		models.ClaimStatusPending,
		models.ClaimStatusCoordinatorApproved,
	})
}

func (s *ClaimService) listOwned(ctx context.Context, actor *models.JWTClaims, statuses []models.ClaimStatus) ([]models.Claim, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	claims, err := s.repo.List(ctx, models.ClaimFilter{OwnerID: actor.UserID, Statuses: statuses})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list claims")
	}
	return claims, nil
}

// Transition applies a role-gated workflow action to a claim. Validation
// completes before any write; the update itself is guarded by the expected
// from-statuses so concurrent reviewers cannot overwrite each other.
func (s *ClaimService) Transition(ctx context.Context, actor *models.JWTClaims, id int64, action models.ClaimAction, reason string) (*dto.TransitionResult, error) {
	claim, err := s.loadClaim(ctx, id)
	if err != nil {
		s.observeTransition(action, "error")
		return nil, err
	}

	plan, err := planTransition(claim, actor, action, reason, s.now())
	if err != nil {
		s.observeTransition(action, "denied")
		return nil, err
	}

	params := repository.UpdateTransitionParams{
		ID:              claim.ID,
		FromStatuses:    plan.from,
		Status:          plan.status,
		ProcessedBy:     plan.processedBy,
		ProcessedDate:   plan.processedDate,
		ApprovalDate:    plan.approvalDate,
		RejectionReason: plan.rejectionReason,
	}
	if err := s.repo.UpdateTransition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost a race: another reviewer moved the claim first.
			s.observeTransition(action, "conflict")
			return nil, appErrors.Clone(appErrors.ErrIllegalTransition, guardMessageFor(action))
		}
		s.observeTransition(action, "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update claim")
	}

	claim.Status = plan.status
	claim.ProcessedBy = &plan.processedBy
	claim.ProcessedDate = &plan.processedDate
	claim.ApprovalDate = plan.approvalDate
	claim.RejectionReason = plan.rejectionReason

	auditAction := models.AuditActionClaimApprove
	if plan.status == models.ClaimStatusRejected {
		auditAction = models.AuditActionClaimReject
	}
	s.recordAudit(ctx, actor, auditAction, claim.ID)
	s.observeTransition(action, "success")
	s.invalidateSummaries(ctx)

	s.logger.Info("claim transition applied",
		zap.Int64("claim_id", claim.ID),
		zap.String("action", string(action)),
		zap.String("status", string(plan.status)),
		zap.String("processed_by", plan.processedBy))

	return &dto.TransitionResult{Claim: claim, Message: plan.message}, nil
}

// Counts aggregates claim totals per status, scoped to the owner for
// lecturers and system-wide for reviewer roles.
func (s *ClaimService) Counts(ctx context.Context, actor *models.JWTClaims) (models.ClaimStatusCounts, error) {
	if actor == nil {
		return models.ClaimStatusCounts{}, appErrors.ErrUnauthorized
	}
	ownerID := actor.UserID
	if actor.Role.IsReviewer() {
		ownerID = ""
	}
	counts, err := s.repo.CountByStatus(ctx, ownerID)
	if err != nil {
		return models.ClaimStatusCounts{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count claims")
	}
	return counts, nil
}

func (s *ClaimService) loadClaim(ctx context.Context, id int64) (*models.Claim, error) {
	claim, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrClaimNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch claim")
	}
	return claim, nil
}

func (s *ClaimService) recordAudit(ctx context.Context, actor *models.JWTClaims, action string, claimID int64) {
	if s.audit == nil {
		return
	}
	userID := actor.UserID
	resourceID := fmt.Sprintf("%d", claimID)
	entry := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "claim",
		ResourceID: &resourceID,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.Error(err), zap.String("action", action))
	}
}

func (s *ClaimService) invalidateSummaries(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *ClaimService) observeTransition(action models.ClaimAction, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordClaimTransition(string(action), outcome)
}
