package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cmcs-platform/claims-api/internal/models"
	appErrors "github.com/cmcs-platform/claims-api/pkg/errors"
	"github.com/cmcs-platform/claims-api/pkg/export"
)

// ReportService renders claim statements as downloadable documents. Lecturers
// get a statement of their own claims; reviewer roles can export the approved
// claims of any period for payroll handover.
type ReportService struct {
	claims claimStore
	pdf    *export.PDFExporter
	csv    *export.CSVExporter
	logger *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(claims claimStore, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		claims: claims,
		pdf:    export.NewPDFExporter(),
		csv:    export.NewCSVExporter(),
		logger: logger,
	}
}

var statementHeaders = []string{"Claim", "Period", "Workload", "Rate", "Amount", "Status", "Submitted"}

// Statement renders the acting lecturer's claims as a PDF statement.
func (s *ReportService) Statement(ctx context.Context, actor *models.JWTClaims) ([]byte, string, error) {
	if actor == nil {
		return nil, "", appErrors.ErrUnauthorized
	}
	claims, err := s.claims.List(ctx, models.ClaimFilter{OwnerID: actor.UserID, Limit: 200})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list claims")
	}

	data := statementDataset(claims)
	payload, err := s.pdf.Render(data, fmt.Sprintf("Claim Statement - %s", actor.FullName))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
	}

	filename := fmt.Sprintf("claim-statement-%s.pdf", time.Now().UTC().Format("2006-01-02"))
	return payload, filename, nil
}

// ApprovedClaimsCSV exports all finally approved claims as CSV. Reviewer
// roles only.
func (s *ReportService) ApprovedClaimsCSV(ctx context.Context, actor *models.JWTClaims) ([]byte, string, error) {
	if actor == nil {
		return nil, "", appErrors.ErrUnauthorized
	}
	if !actor.Role.IsReviewer() {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "only reviewers may export approved claims")
	}
	claims, err := s.claims.List(ctx, models.ClaimFilter{
		Statuses:      []models.ClaimStatus{models.ClaimStatusApproved},
		SortAscending: true,
		Limit:         200,
	})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approved claims")
	}

	payload, err := s.csv.Render(statementDataset(claims))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("approved-claims-%s.csv", time.Now().UTC().Format("2006-01-02"))
	return payload, filename, nil
}

func statementDataset(claims []models.Claim) export.Dataset {
	rows := make([]map[string]string, 0, len(claims))
	for i := range claims {
		c := &claims[i]
		rows = append(rows, map[string]string{
			"Claim":     c.Reference(),
			"Period":    c.Period,
			"Workload":  c.Workload.String(),
			"Rate":      c.HourlyRate.String(),
			"Amount":    c.Amount.String(),
			"Status":    string(c.Status),
			"Submitted": c.SubmitDate.Format("2006-01-02"),
		})
	}
	return export.Dataset{Headers: statementHeaders, Rows: rows}
}
