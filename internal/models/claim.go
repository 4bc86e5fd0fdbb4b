package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ClaimStatus enumerates the claim workflow states.
type ClaimStatus string

const (
	ClaimStatusPending             ClaimStatus = "PENDING"
	ClaimStatusCoordinatorApproved ClaimStatus = "COORDINATOR_APPROVED"
	ClaimStatusApproved            ClaimStatus = "APPROVED"
	ClaimStatusRejected            ClaimStatus = "REJECTED"
)

// Valid reports whether the status is one of the known workflow states.
func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimStatusPending, ClaimStatusCoordinatorApproved, ClaimStatusApproved, ClaimStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimStatusApproved || s == ClaimStatusRejected
}

// ClaimAction identifies a role-gated transition over a claim's status.
type ClaimAction string

const (
	ActionCoordinatorApprove ClaimAction = "COORDINATOR_APPROVE"
	ActionCoordinatorReject  ClaimAction = "COORDINATOR_REJECT"
	ActionManagerApprove     ClaimAction = "MANAGER_APPROVE"
	ActionManagerReject      ClaimAction = "MANAGER_REJECT"
)

// Claim is a lecturer's workload compensation request.
type Claim struct {
	ID              int64           `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"userId"`
	Period          string          `db:"period" json:"period"`
	Workload        decimal.Decimal `db:"workload" json:"workload"`
	HourlyRate      decimal.Decimal `db:"hourly_rate" json:"hourlyRate"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Description     string          `db:"description" json:"description"`
	Status          ClaimStatus     `db:"status" json:"status"`
	SubmitDate      time.Time       `db:"submit_date" json:"submitDate"`
	ApprovalDate    *time.Time      `db:"approval_date" json:"approvalDate,omitempty"`
	RejectionReason *string         `db:"rejection_reason" json:"rejectionReason,omitempty"`
	ProcessedBy     *string         `db:"processed_by" json:"processedBy,omitempty"`
	ProcessedDate   *time.Time      `db:"processed_date" json:"processedDate,omitempty"`

	// Joined display columns, populated by listing queries only.
	LecturerFirstName string  `db:"lecturer_first_name" json:"lecturerFirstName,omitempty"`
	LecturerLastName  string  `db:"lecturer_last_name" json:"lecturerLastName,omitempty"`
	ProcessorName     *string `db:"processor_name" json:"processorName,omitempty"`
}

// TotalAmount is the computed claim value; the stored amount column is a
// convenience copy and must never disagree with this product.
func (c *Claim) TotalAmount() decimal.Decimal {
	return c.Workload.Mul(c.HourlyRate)
}

// Reference renders the human-facing claim number, e.g. CL-0042.
func (c *Claim) Reference() string {
	return fmt.Sprintf("CL-%04d", c.ID)
}

// ClaimFilter narrows claim listing queries.
type ClaimFilter struct {
	OwnerID       string
	Statuses      []ClaimStatus
	LecturerName  string
	SortAscending bool
	Limit         int
	Offset        int
}

// ClaimStatusCounts aggregates claims per status for dashboard summaries.
type ClaimStatusCounts struct {
	Pending             int `db:"pending" json:"pending"`
	CoordinatorApproved int `db:"coordinator_approved" json:"coordinatorApproved"`
	Approved            int `db:"approved" json:"approved"`
	Rejected            int `db:"rejected" json:"rejected"`
	Total               int `db:"total" json:"total"`
}
