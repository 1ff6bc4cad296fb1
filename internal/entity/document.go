package entity

import (
	"encoding/json"
	"time"
)

// Download modes recorded on a catalog entry. "raw" means the document
// bytes came straight from the files endpoint; "properties" means they
// were decoded from the base64 payload of the properties endpoint.
const (
	DownloadModeRaw        = "raw"
	DownloadModeProperties = "properties"
)

// RemoteDocument is an immutable snapshot of a document as reported by
// the remote catalog at enumeration time. All fields beyond ID are
// provider-reported and may be absent.
type RemoteDocument struct {
	ID          string
	FileName    string
	ContentType string
	Size        int64
	CreatedOn   *time.Time
	ModifiedOn  *time.Time
	Category    string
	Description string
	Tags        json.RawMessage
}

// Recency returns the timestamp used for the ingestion recency filter:
// creation time when reported, modification time otherwise. The second
// return is false when the provider reported neither.
func (d RemoteDocument) Recency() (time.Time, bool) {
	if d.CreatedOn != nil {
		return *d.CreatedOn, true
	}
	if d.ModifiedOn != nil {
		return *d.ModifiedOn, true
	}
	return time.Time{}, false
}

// CatalogEntry is the persisted record of an ingested document.
// Exactly one row exists per remote document id.
type CatalogEntry struct {
	FileID              string     `db:"file_id"`
	ContactID           int64      `db:"contact_id"`
	FileNameReported    *string    `db:"file_name_reported"`
	ContentTypeReported *string    `db:"content_type_reported"`
	SizeReported        *int64     `db:"size_reported"`
	CreatedOn           *time.Time `db:"created_on"`
	ModifiedOn          *time.Time `db:"modified_on"`
	Category            *string    `db:"category"`
	Description         *string    `db:"description"`
	Tags                []byte     `db:"tags"`

	DownloadMode       *string `db:"download_mode"`
	S3URL              *string `db:"s3_url"`
	ContentTypeFinal   *string `db:"content_type_final"`
	SizeFinalBytes     *int64  `db:"size_final_bytes"`
	ContentDisposition *string `db:"content_disposition"`

	// Insurance-card classification block. Reserved: populated by a
	// heuristic that is not yet enabled, so these stay at defaults.
	IsInsuranceIDCard   bool       `db:"is_insurance_id_card"`
	InsuranceNumber     *string    `db:"insurance_number"`
	InsuranceCarrier    *string    `db:"insurance_carrier"`
	InsuranceEffective  *time.Time `db:"insurance_effective"`
	InsuranceExpiration *time.Time `db:"insurance_expiration"`

	InsertedAt time.Time `db:"inserted_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// NewCatalogEntry builds a catalog entry from a remote document snapshot
// with all derived fields unset.
func NewCatalogEntry(doc RemoteDocument, contactID int64) *CatalogEntry {
	e := &CatalogEntry{
		FileID:     doc.ID,
		ContactID:  contactID,
		CreatedOn:  doc.CreatedOn,
		ModifiedOn: doc.ModifiedOn,
		Tags:       doc.Tags,
	}
	if doc.FileName != "" {
		e.FileNameReported = &doc.FileName
	}
	if doc.ContentType != "" {
		e.ContentTypeReported = &doc.ContentType
	}
	if doc.Size > 0 {
		size := doc.Size
		e.SizeReported = &size
	}
	if doc.Category != "" {
		e.Category = &doc.Category
	}
	if doc.Description != "" {
		e.Description = &doc.Description
	}
	return e
}

// DetectionResult is the transient outcome of scanning documents for an
// insurance application. It is never persisted.
type DetectionResult struct {
	Found   bool   `json:"found"`
	FileKey string `json:"fileKey,omitempty"`
	S3URL   string `json:"s3Url,omitempty"`
	Carrier string `json:"carrier,omitempty"`
}

// SyncReport summarizes one incremental sync run for a customer.
type SyncReport struct {
	CustomerID   string            `json:"contactId"`
	TotalDocs    int               `json:"totalDocs"`
	FilteredDocs int               `json:"filteredDocs"`
	NewDocs      int               `json:"newDocs"`
	Uploaded     int               `json:"uploaded"`
	Applications []DetectionResult `json:"applications,omitempty"`
}

// AuditResult is the structured response of the policy audit flow.
type AuditResult struct {
	Success         bool             `json:"success"`
	PolicyNumber    string           `json:"policyNumber,omitempty"`
	CustomerID      string           `json:"customerId,omitempty"`
	Sync            *SyncReport      `json:"sync,omitempty"`
	ApplicationInfo *DetectionResult `json:"applicationInfo,omitempty"`
	AnalysisResult  json.RawMessage  `json:"analysisResult,omitempty"`
	Message         string           `json:"message,omitempty"`
}
