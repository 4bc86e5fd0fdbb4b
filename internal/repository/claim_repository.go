package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cmcs-platform/claims-api/internal/models"
)

const claimColumns = `c.id, c.user_id, c.period, c.workload, c.hourly_rate, c.amount, c.description,
       c.status, c.submit_date, c.approval_date, c.rejection_reason, c.processed_by, c.processed_date`

const claimJoinedColumns = claimColumns + `,
       u.first_name AS lecturer_first_name, u.last_name AS lecturer_last_name,
       p.first_name || ' ' || p.last_name AS processor_name`

// ClaimRepository persists workload claims.
type ClaimRepository struct {
	db *sqlx.DB
}

// NewClaimRepository constructs the repository.
func NewClaimRepository(db *sqlx.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// Create inserts a new claim row and fills in the generated identifier.
func (r *ClaimRepository) Create(ctx context.Context, claim *models.Claim) error {
	if claim.Status == "" {
		claim.Status = models.ClaimStatusPending
	}
	if claim.SubmitDate.IsZero() {
		claim.SubmitDate = time.Now().UTC()
	}
	const query = `INSERT INTO claims
	(user_id, period, workload, hourly_rate, amount, description, status, submit_date)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		claim.UserID,
		claim.Period,
		claim.Workload,
		claim.HourlyRate,
		claim.Amount,
		claim.Description,
		claim.Status,
		claim.SubmitDate,
	).Scan(&claim.ID); err != nil {
		return fmt.Errorf("create claim: %w", err)
	}
	return nil
}

// GetByID fetches a claim by identifier including joined display names.
func (r *ClaimRepository) GetByID(ctx context.Context, id int64) (*models.Claim, error) {
	query := `SELECT ` + claimJoinedColumns + `
	FROM claims c
	JOIN users u ON u.id = c.user_id
	LEFT JOIN users p ON p.id = c.processed_by
	WHERE c.id = $1`
	var claim models.Claim
	if err := r.db.GetContext(ctx, &claim, query, id); err != nil {
		return nil, err
	}
	return &claim, nil
}

// List returns claims matching the filter. Reviewer dashboards join lecturer
// names so the name filter and display columns come from one query.
func (r *ClaimRepository) List(ctx context.Context, filter models.ClaimFilter) ([]models.Claim, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + claimJoinedColumns + `
	FROM claims c
	JOIN users u ON u.id = c.user_id
	LEFT JOIN users p ON p.id = c.processed_by`)

	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 3)

	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("c.user_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("c.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if term := strings.TrimSpace(filter.LecturerName); term != "" {
		args = append(args, "%"+term+"%")
		conditions = append(conditions, fmt.Sprintf("(u.first_name ILIKE $%d OR u.last_name ILIKE $%d)", len(args), len(args)))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}

	if filter.SortAscending {
		builder.WriteString(" ORDER BY c.submit_date ASC")
	} else {
		builder.WriteString(" ORDER BY c.submit_date DESC")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var claims []models.Claim
	if err := r.db.SelectContext(ctx, &claims, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return claims, nil
}

// CountByStatus aggregates claim totals per status, optionally scoped to one
// owner. Counts back the dashboard summary independent of any list filter.
func (r *ClaimRepository) CountByStatus(ctx context.Context, ownerID string) (models.ClaimStatusCounts, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT
	COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
	COUNT(*) FILTER (WHERE status = 'COORDINATOR_APPROVED') AS coordinator_approved,
	COUNT(*) FILTER (WHERE status = 'APPROVED') AS approved,
	COUNT(*) FILTER (WHERE status = 'REJECTED') AS rejected,
	COUNT(*) AS total
	FROM claims`)
	args := make([]interface{}, 0, 1)
	if ownerID != "" {
		args = append(args, ownerID)
		builder.WriteString(" WHERE user_id = $1")
	}
	var counts models.ClaimStatusCounts
	if err := r.db.GetContext(ctx, &counts, builder.String(), args...); err != nil {
		return models.ClaimStatusCounts{}, fmt.Errorf("count claims by status: %w", err)
	}
	return counts, nil
}

// UpdateTransitionParams groups the columns a transition is allowed to touch.
type UpdateTransitionParams struct {
	ID              int64
	FromStatuses    []models.ClaimStatus
	Status          models.ClaimStatus
	ProcessedBy     string
	ProcessedDate   time.Time
	ApprovalDate    *time.Time
	RejectionReason *string
}

// UpdateTransition persists a guarded status change. The WHERE clause pins
// the row to the expected from-set so a concurrent transition loses the race
// instead of overwriting it; zero affected rows surfaces as sql.ErrNoRows.
func (r *ClaimRepository) UpdateTransition(ctx context.Context, params UpdateTransitionParams) error {
	if len(params.FromStatuses) == 0 {
		return fmt.Errorf("update transition: empty from-set")
	}
	args := []interface{}{
		params.Status,
		params.ProcessedBy,
		params.ProcessedDate,
		params.ApprovalDate,
		params.RejectionReason,
		params.ID,
	}
	placeholders := make([]string, len(params.FromStatuses))
	for i, status := range params.FromStatuses {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`UPDATE claims
	SET status = $1, processed_by = $2, processed_date = $3, approval_date = $4, rejection_reason = $5
	WHERE id = $6 AND status IN (%s)`, strings.Join(placeholders, ","))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update claim transition: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check claim transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
