package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alfrecampione/golden-review-backend/internal/entity"
	"github.com/alfrecampione/golden-review-backend/observability"
)

// ErrInvalidCustomerID is returned when a customer id is not numeric.
var ErrInvalidCustomerID = errors.New("customer id is not numeric")

// DocumentLister enumerates a customer's remote documents.
type DocumentLister interface {
	ListAllDocuments(ctx context.Context, customerID string) ([]entity.RemoteDocument, error)
}

// DocumentMaterializer stages a remote document to local disk.
type DocumentMaterializer interface {
	Materialize(ctx context.Context, dir string, doc entity.RemoteDocument) (*MaterializedFile, error)
}

// DocumentOffloader moves a staged file into object storage.
type DocumentOffloader interface {
	Upload(ctx context.Context, localPath, customerID, documentID, contentType string) (string, error)
}

// CatalogTx is a transaction scope over the document catalog.
type CatalogTx interface {
	Upsert(ctx context.Context, e *entity.CatalogEntry) error
	Commit() error
	Rollback() error
}

// CatalogStore is the catalog persistence port used by the pipeline.
type CatalogStore interface {
	Begin(ctx context.Context) (CatalogTx, error)
	ExistingIDs(ctx context.Context, contactID int64) (map[string]struct{}, error)
	ListByContact(ctx context.Context, contactID int64) ([]entity.CatalogEntry, error)
}

// ReferenceChecker tests a single stored document for application content.
type ReferenceChecker interface {
	CheckReference(ctx context.Context, s3URL string) (*entity.DetectionResult, error)
}

// SyncOrchestrator runs the incremental document sync for one customer:
// enumerate the remote catalog, keep recent documents not yet ingested,
// stage and offload each one, and record them all in a single catalog
// transaction. A failing document is logged and skipped; one bad file
// never aborts the run.
type SyncOrchestrator struct {
	lister       DocumentLister
	materializer DocumentMaterializer
	offloader    DocumentOffloader
	catalog      CatalogStore
	checker      ReferenceChecker
	logger       observability.Logger
	metrics      observability.Metrics

	scratchDir    string
	recencyWindow time.Duration

	// now is injectable for tests
	now func() time.Time
}

// NewSyncOrchestrator wires the sync pipeline.
func NewSyncOrchestrator(
	lister DocumentLister,
	materializer DocumentMaterializer,
	offloader DocumentOffloader,
	catalog CatalogStore,
	checker ReferenceChecker,
	scratchDir string,
	recencyWindow time.Duration,
	logger observability.Logger,
	metrics observability.Metrics,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		lister:        lister,
		materializer:  materializer,
		offloader:     offloader,
		catalog:       catalog,
		checker:       checker,
		scratchDir:    scratchDir,
		recencyWindow: recencyWindow,
		logger:        logger,
		metrics:       metrics,
		now:           time.Now,
	}
}

// SyncCustomer ingests the customer's recent documents and reports what
// happened. Re-running against an unchanged remote catalog is a no-op.
func (s *SyncOrchestrator) SyncCustomer(ctx context.Context, customerID string) (*entity.SyncReport, error) {
	start := s.now()
	defer func() {
		s.metrics.RecordDuration("sync.customer", time.Since(start).Seconds())
	}()

	contactID, err := strconv.ParseInt(customerID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCustomerID, customerID)
	}

	report := &entity.SyncReport{CustomerID: customerID}

	docs, err := s.lister.ListAllDocuments(ctx, customerID)
	if err != nil {
		s.metrics.RecordError("sync.customer", "list_failed")
		return nil, fmt.Errorf("failed to enumerate documents: %w", err)
	}
	report.TotalDocs = len(docs)

	recent := s.filterRecent(docs)
	report.FilteredDocs = len(recent)

	existing, err := s.catalog.ExistingIDs(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cataloged ids: %w", err)
	}

	var fresh []entity.RemoteDocument
	for _, doc := range recent {
		if _, ok := existing[doc.ID]; !ok {
			fresh = append(fresh, doc)
		}
	}
	report.NewDocs = len(fresh)

	// Nothing new: no transaction, no scratch dir, no provider fetches.
	if len(fresh) == 0 {
		s.logger.Info(ctx, "catalog already up to date", observability.Fields{
			"customer_id": customerID,
			"total_docs":  report.TotalDocs,
		})
		return report, nil
	}

	scratch := filepath.Join(s.scratchDir, customerID)
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			s.logger.Warn(ctx, "failed to remove scratch dir", observability.Fields{
				"dir": scratch,
			})
		}
	}()

	tx, err := s.catalog.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin catalog transaction: %w", err)
	}
	defer tx.Rollback()

	var ingested []*entity.CatalogEntry
	for _, doc := range fresh {
		entry, err := s.ingestOne(ctx, tx, scratch, customerID, contactID, doc)
		if err != nil {
			s.metrics.RecordError("sync.customer", "document_failed")
			s.logger.Error(ctx, "failed to ingest document", err, observability.Fields{
				"customer_id": customerID,
				"document_id": doc.ID,
			})
			continue
		}
		if entry.S3URL != nil {
			report.Uploaded++
		}
		ingested = append(ingested, entry)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit catalog transaction: %w", err)
	}

	if detection := s.detectInNew(ctx, ingested); detection != nil {
		report.Applications = append(report.Applications, *detection)
	}

	s.logger.Info(ctx, "sync complete", observability.Fields{
		"customer_id": customerID,
		"total_docs":  report.TotalDocs,
		"new_docs":    report.NewDocs,
		"uploaded":    report.Uploaded,
	})
	s.metrics.RecordSuccess("sync.customer")

	return report, nil
}

// ingestOne stages, offloads, and records a single document. A failed
// upload is not fatal: the catalog row is written without a storage
// reference so a later run can repair it.
func (s *SyncOrchestrator) ingestOne(ctx context.Context, tx CatalogTx, scratch, customerID string, contactID int64, doc entity.RemoteDocument) (*entity.CatalogEntry, error) {
	staged, err := s.materializer.Materialize(ctx, scratch, doc)
	if err != nil {
		return nil, err
	}

	entry := entity.NewCatalogEntry(doc, contactID)
	entry.DownloadMode = &staged.Mode
	if staged.ContentType != "" {
		entry.ContentTypeFinal = &staged.ContentType
	}
	size := staged.Size
	entry.SizeFinalBytes = &size
	if staged.ContentDisposition != "" {
		entry.ContentDisposition = &staged.ContentDisposition
	}

	url, err := s.offloader.Upload(ctx, staged.Path, customerID, doc.ID, staged.ContentType)
	if err != nil {
		s.logger.Warn(ctx, "upload failed, recording document without reference", observability.Fields{
			"customer_id": customerID,
			"document_id": doc.ID,
		})
		s.metrics.RecordError("sync.customer", "upload_failed")
	} else {
		entry.S3URL = &url
	}

	if err := tx.Upsert(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// filterRecent keeps documents whose reported timestamp falls within the
// recency window. Documents without any timestamp are excluded.
func (s *SyncOrchestrator) filterRecent(docs []entity.RemoteDocument) []entity.RemoteDocument {
	cutoff := s.now().Add(-s.recencyWindow)

	var recent []entity.RemoteDocument
	for _, doc := range docs {
		ts, ok := doc.Recency()
		if !ok || ts.Before(cutoff) {
			continue
		}
		recent = append(recent, doc)
	}
	return recent
}

// detectInNew runs application detection against the first newly uploaded
// PDF. The full-catalog scan belongs to the audit flow; this is only an
// early signal on fresh material, so its errors are swallowed.
func (s *SyncOrchestrator) detectInNew(ctx context.Context, ingested []*entity.CatalogEntry) *entity.DetectionResult {
	if s.checker == nil {
		return nil
	}
	for _, entry := range ingested {
		if entry.S3URL == nil || entry.ContentTypeFinal == nil {
			continue
		}
		if !strings.Contains(strings.ToLower(*entry.ContentTypeFinal), "pdf") {
			continue
		}

		result, err := s.checker.CheckReference(ctx, *entry.S3URL)
		if err != nil {
			s.logger.Warn(ctx, "detection on fresh document failed", observability.Fields{
				"file_id": entry.FileID,
			})
			return nil
		}
		if result != nil && result.Found {
			return result
		}
		return nil
	}
	return nil
}
