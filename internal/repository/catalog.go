// Package repository implements PostgreSQL persistence for the document
// catalog and policy lookups.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/alfrecampione/golden-review-backend/internal/entity"
	"github.com/alfrecampione/golden-review-backend/observability"
)

const catalogTable = "qq.contact_files"

var catalogColumns = []string{
	"file_id",
	"contact_id",
	"file_name_reported",
	"content_type_reported",
	"size_reported",
	"created_on",
	"modified_on",
	"category",
	"description",
	"tags",
	"download_mode",
	"s3_url",
	"content_type_final",
	"size_final_bytes",
	"content_disposition",
	"is_insurance_id_card",
	"insurance_number",
	"insurance_carrier",
	"insurance_effective",
	"insurance_expiration",
}

// CatalogRepository persists ingested document records. One row exists
// per remote file id; re-ingesting a document refreshes the row in place.
type CatalogRepository struct {
	db      *sqlx.DB
	logger  observability.Logger
	metrics observability.Metrics
	qb      squirrel.StatementBuilderType
}

// NewCatalogRepository creates a catalog repository over the given pool.
func NewCatalogRepository(db *sqlx.DB, logger observability.Logger, metrics observability.Metrics) *CatalogRepository {
	return &CatalogRepository{
		db:      db,
		logger:  logger,
		metrics: metrics,
		qb:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Begin opens a catalog transaction. All upserts of one sync run go
// through a single transaction so a partial run leaves no trace.
func (r *CatalogRepository) Begin(ctx context.Context) (*CatalogTx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &CatalogTx{tx: tx, r: r}, nil
}

// ExistingIDs returns the set of file ids already cataloged for a contact.
func (r *CatalogRepository) ExistingIDs(ctx context.Context, contactID int64) (map[string]struct{}, error) {
	query, args, err := r.qb.
		Select("file_id").
		From(catalogTable).
		Where(squirrel.Eq{"contact_id": contactID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		r.metrics.RecordError("repository.catalog", "select_failed")
		return nil, fmt.Errorf("select existing ids: %w", err)
	}

	existing := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		existing[id] = struct{}{}
	}
	return existing, nil
}

// ListByContact returns all cataloged documents for a contact, newest
// ingestion first.
func (r *CatalogRepository) ListByContact(ctx context.Context, contactID int64) ([]entity.CatalogEntry, error) {
	start := time.Now()
	defer func() {
		r.metrics.RecordDuration("repository.catalog.list", time.Since(start).Seconds())
	}()

	cols := append(append([]string{}, catalogColumns...), "inserted_at", "updated_at")
	query, args, err := r.qb.
		Select(cols...).
		From(catalogTable).
		Where(squirrel.Eq{"contact_id": contactID}).
		OrderBy("inserted_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []entity.CatalogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.metrics.RecordError("repository.catalog", "select_failed")
		return nil, fmt.Errorf("list catalog entries: %w", err)
	}
	return entries, nil
}

// buildUpsert produces the insert-or-refresh statement for one entry.
// The conflict target is file_id: a re-ingested document overwrites its
// reported and derived fields and bumps updated_at, while inserted_at
// keeps the original ingestion time.
func (r *CatalogRepository) buildUpsert(e *entity.CatalogEntry) (string, []interface{}, error) {
	update := "ON CONFLICT (file_id) DO UPDATE SET " +
		"contact_id = EXCLUDED.contact_id, " +
		"file_name_reported = EXCLUDED.file_name_reported, " +
		"content_type_reported = EXCLUDED.content_type_reported, " +
		"size_reported = EXCLUDED.size_reported, " +
		"created_on = EXCLUDED.created_on, " +
		"modified_on = EXCLUDED.modified_on, " +
		"category = EXCLUDED.category, " +
		"description = EXCLUDED.description, " +
		"tags = EXCLUDED.tags, " +
		"download_mode = EXCLUDED.download_mode, " +
		"s3_url = EXCLUDED.s3_url, " +
		"content_type_final = EXCLUDED.content_type_final, " +
		"size_final_bytes = EXCLUDED.size_final_bytes, " +
		"content_disposition = EXCLUDED.content_disposition, " +
		"is_insurance_id_card = EXCLUDED.is_insurance_id_card, " +
		"insurance_number = EXCLUDED.insurance_number, " +
		"insurance_carrier = EXCLUDED.insurance_carrier, " +
		"insurance_effective = EXCLUDED.insurance_effective, " +
		"insurance_expiration = EXCLUDED.insurance_expiration, " +
		"updated_at = now()"

	return r.qb.
		Insert(catalogTable).
		Columns(catalogColumns...).
		Values(
			e.FileID,
			e.ContactID,
			e.FileNameReported,
			e.ContentTypeReported,
			e.SizeReported,
			e.CreatedOn,
			e.ModifiedOn,
			e.Category,
			e.Description,
			e.Tags,
			e.DownloadMode,
			e.S3URL,
			e.ContentTypeFinal,
			e.SizeFinalBytes,
			e.ContentDisposition,
			e.IsInsuranceIDCard,
			e.InsuranceNumber,
			e.InsuranceCarrier,
			e.InsuranceEffective,
			e.InsuranceExpiration,
		).
		Suffix(update).
		ToSql()
}

// CatalogTx is a transaction scope over the catalog table.
type CatalogTx struct {
	tx *sqlx.Tx
	r  *CatalogRepository
}

// Upsert inserts or refreshes one catalog entry inside the transaction.
func (t *CatalogTx) Upsert(ctx context.Context, e *entity.CatalogEntry) error {
	start := time.Now()

	query, args, err := t.r.buildUpsert(e)
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		t.r.metrics.RecordError("repository.catalog", "upsert_failed")
		return fmt.Errorf("upsert catalog entry %s: %w", e.FileID, err)
	}

	t.r.metrics.RecordSuccess("repository.catalog.upsert")
	t.r.metrics.RecordDuration("repository.catalog.upsert", time.Since(start).Seconds())
	return nil
}

// Commit commits the transaction.
func (t *CatalogTx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction. Safe to call after Commit.
func (t *CatalogTx) Rollback() error {
	return t.tx.Rollback()
}
