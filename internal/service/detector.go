package service

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/alfrecampione/golden-review-backend/internal/entity"
	"github.com/alfrecampione/golden-review-backend/internal/storage"
	"github.com/alfrecampione/golden-review-backend/observability"
)

// applicationPhrase marks a document as an application for insurance.
// Matching is case-insensitive over the extracted text.
const applicationPhrase = "application for insurance"

// carrierTokens maps text fragments to the carrier they identify.
var carrierTokens = map[string]string{
	"progressive": "progressive",
}

// storedKeyPattern extracts the object key from a storage reference URL.
var storedKeyPattern = regexp.MustCompile(`\.amazonaws\.com/(.+)$`)

// URLResolver turns an object key into its public reference URL.
type URLResolver interface {
	ReferenceURL(key string) string
}

// ApplicationDetector scans stored PDF documents for insurance
// application content. It only reads from object storage; nothing here
// mutates the catalog.
type ApplicationDetector struct {
	store    storage.ObjectStorage
	resolver URLResolver
	logger   observability.Logger
	metrics  observability.Metrics
}

// NewApplicationDetector creates a detector over the given storage.
func NewApplicationDetector(store storage.ObjectStorage, resolver URLResolver, logger observability.Logger, metrics observability.Metrics) *ApplicationDetector {
	return &ApplicationDetector{
		store:    store,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
	}
}

// FindApplication scans every stored PDF of a customer and returns all
// documents containing application content. A document that cannot be
// read or parsed is logged and skipped, never aborting the scan.
func (d *ApplicationDetector) FindApplication(ctx context.Context, customerID string) ([]entity.DetectionResult, error) {
	objects, err := d.store.List(ctx, customerID+"/")
	if err != nil {
		d.metrics.RecordError("detector", "list_failed")
		return nil, fmt.Errorf("failed to list stored documents: %w", err)
	}

	var matches []entity.DetectionResult
	for _, obj := range objects {
		if !strings.HasSuffix(strings.ToLower(obj.Key), ".pdf") {
			continue
		}

		result, err := d.checkKey(ctx, obj.Key)
		if err != nil {
			d.logger.Warn(ctx, "skipping unreadable document", observability.Fields{
				"key": obj.Key,
			})
			continue
		}
		if result.Found {
			matches = append(matches, *result)
		}
	}

	d.logger.Debug(ctx, "application scan complete", observability.Fields{
		"customer_id": customerID,
		"candidates":  len(objects),
		"matches":     len(matches),
	})
	return matches, nil
}

// CheckReference tests a single stored document, addressed by its
// reference URL, for application content.
func (d *ApplicationDetector) CheckReference(ctx context.Context, s3URL string) (*entity.DetectionResult, error) {
	m := storedKeyPattern.FindStringSubmatch(s3URL)
	if m == nil {
		return nil, fmt.Errorf("not a storage reference URL: %q", s3URL)
	}
	return d.checkKey(ctx, m[1])
}

// checkKey downloads one object and tests its text for the application
// phrase.
func (d *ApplicationDetector) checkKey(ctx context.Context, key string) (*entity.DetectionResult, error) {
	body, err := d.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	data, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	found, carrier := detectApplication(data)
	if !found {
		return &entity.DetectionResult{}, nil
	}

	d.metrics.RecordSuccess("detector.match")
	return &entity.DetectionResult{
		Found:   true,
		FileKey: key,
		S3URL:   d.resolver.ReferenceURL(key),
		Carrier: carrier,
	}, nil
}

// detectApplication tests document content for the application phrase
// and identifies the carrier. Text comes from PDF extraction; when the
// content is not a parseable PDF the raw bytes are scanned instead,
// which still catches text-like formats.
func detectApplication(data []byte) (bool, string) {
	text, err := extractPDFText(data)
	if err != nil {
		text = string(data)
	}

	lower := strings.ToLower(text)
	if !strings.Contains(lower, applicationPhrase) {
		return false, ""
	}

	for token, carrier := range carrierTokens {
		if strings.Contains(lower, token) {
			return true, carrier
		}
	}
	return true, ""
}

// extractPDFText extracts the text of every page. Pages that fail to
// extract are skipped; only a document that cannot be opened at all is
// an error.
func extractPDFText(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	for page := 0; page < doc.NumPage(); page++ {
		text, err := doc.Text(page)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
