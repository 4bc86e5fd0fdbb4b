package models

import "time"

// Document is a supporting file attached to exactly one claim. Documents are
// immutable after creation and are removed only via claim cascade delete.
type Document struct {
	ID          string    `db:"id" json:"id"`
	ClaimID     int64     `db:"claim_id" json:"claimId"`
	FileName    string    `db:"file_name" json:"fileName"`
	StoredName  string    `db:"stored_name" json:"-"`
	ContentType string    `db:"content_type" json:"contentType"`
	SizeBytes   int64     `db:"size_bytes" json:"sizeBytes"`
	Description string    `db:"description" json:"description"`
	UploadDate  time.Time `db:"upload_date" json:"uploadDate"`
}
