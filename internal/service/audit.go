package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alfrecampione/golden-review-backend/internal/entity"
	"github.com/alfrecampione/golden-review-backend/observability"
)

// ErrPolicyNotFound is returned when a policy number resolves to nothing.
var ErrPolicyNotFound = errors.New("policy not found")

// PolicyResolver maps a policy number to its owning customer.
// Implementations return ErrPolicyNotFound for unknown numbers.
type PolicyResolver interface {
	CustomerIDByPolicy(ctx context.Context, policyNumber string) (string, error)
}

// CustomerSyncer runs the incremental document sync for one customer.
type CustomerSyncer interface {
	SyncCustomer(ctx context.Context, customerID string) (*entity.SyncReport, error)
}

// Analyzer extracts structured data from a stored application document.
type Analyzer interface {
	Analyze(ctx context.Context, s3URL string) (json.RawMessage, error)
}

// AuditPolicyUseCase is the end-to-end audit flow: resolve the policy's
// customer, bring their document catalog up to date, locate the newest
// insurance application among the stored PDFs, and run it through the
// external analysis function.
type AuditPolicyUseCase struct {
	policies PolicyResolver
	syncer   CustomerSyncer
	catalog  CatalogStore
	checker  ReferenceChecker
	analyzer Analyzer
	logger   observability.Logger
	metrics  observability.Metrics
}

// NewAuditPolicyUseCase wires the audit flow.
func NewAuditPolicyUseCase(
	policies PolicyResolver,
	syncer CustomerSyncer,
	catalog CatalogStore,
	checker ReferenceChecker,
	analyzer Analyzer,
	logger observability.Logger,
	metrics observability.Metrics,
) *AuditPolicyUseCase {
	return &AuditPolicyUseCase{
		policies: policies,
		syncer:   syncer,
		catalog:  catalog,
		checker:  checker,
		analyzer: analyzer,
		logger:   logger,
		metrics:  metrics,
	}
}

// AuditPolicy audits one policy by number. A catalog without any
// application document is a negative result, not an error; failures of
// the analysis function surface as ErrAnalysisFailed.
func (u *AuditPolicyUseCase) AuditPolicy(ctx context.Context, policyNumber string) (*entity.AuditResult, error) {
	start := time.Now()
	defer func() {
		u.metrics.RecordDuration("audit.policy", time.Since(start).Seconds())
	}()

	customerID, err := u.policies.CustomerIDByPolicy(ctx, policyNumber)
	if err != nil {
		if errors.Is(err, ErrPolicyNotFound) {
			u.metrics.RecordError("audit.policy", "policy_not_found")
			return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, policyNumber)
		}
		return nil, fmt.Errorf("failed to resolve policy %s: %w", policyNumber, err)
	}

	contactID, err := strconv.ParseInt(customerID, 10, 64)
	if err != nil {
		u.metrics.RecordError("audit.policy", "invalid_customer_id")
		return nil, fmt.Errorf("%w: %q", ErrInvalidCustomerID, customerID)
	}

	// A failed sync is not fatal: previously ingested documents can
	// still carry the audit.
	syncReport, err := u.syncer.SyncCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrInvalidCustomerID) {
			return nil, err
		}
		u.logger.Warn(ctx, "sync failed, auditing existing catalog", observability.Fields{
			"policy_number": policyNumber,
			"customer_id":   customerID,
		})
		u.metrics.RecordError("audit.policy", "sync_failed")
	}

	entries, err := u.catalog.ListByContact(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	application := u.findNewestApplication(ctx, entries)

	result := &entity.AuditResult{
		PolicyNumber: policyNumber,
		CustomerID:   customerID,
		Sync:         syncReport,
	}

	if application == nil {
		result.Message = "No application file found"
		u.metrics.RecordSuccess("audit.policy.no_application")
		return result, nil
	}
	result.ApplicationInfo = application

	analysis, err := u.analyzer.Analyze(ctx, application.S3URL)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze %s: %w", application.FileKey, err)
	}

	result.Success = true
	result.AnalysisResult = analysis
	u.metrics.RecordSuccess("audit.policy")

	return result, nil
}

// findNewestApplication scans the catalog's stored PDFs for application
// content, newest ingestion first; the first hit wins. Rows that cannot
// be checked are logged and skipped.
func (u *AuditPolicyUseCase) findNewestApplication(ctx context.Context, entries []entity.CatalogEntry) *entity.DetectionResult {
	candidates := make([]entity.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if e.S3URL == nil || e.ContentTypeFinal == nil {
			continue
		}
		if !strings.Contains(strings.ToLower(*e.ContentTypeFinal), "pdf") {
			continue
		}
		candidates = append(candidates, e)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].InsertedAt.After(candidates[j].InsertedAt)
	})

	for _, e := range candidates {
		result, err := u.checker.CheckReference(ctx, *e.S3URL)
		if err != nil {
			u.logger.Warn(ctx, "skipping uncheckable document", observability.Fields{
				"file_id": e.FileID,
			})
			continue
		}
		if result != nil && result.Found {
			return result
		}
	}
	return nil
}
