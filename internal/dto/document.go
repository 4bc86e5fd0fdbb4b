package dto

import "github.com/cmcs-platform/claims-api/internal/models"

// DocumentUploadResult reports the per-file outcome of a batch upload. A
// failed file never aborts the batch or the owning claim.
type DocumentUploadResult struct {
	FileName string           `json:"fileName"`
	Accepted bool             `json:"accepted"`
	Document *models.Document `json:"document,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// UploadBatchResponse summarises a multi-file upload attempt.
type UploadBatchResponse struct {
	ClaimID  int64                  `json:"claimId"`
	Accepted int                    `json:"accepted"`
	Rejected int                    `json:"rejected"`
	Results  []DocumentUploadResult `json:"results"`
}
