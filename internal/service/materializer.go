// Package service implements the document pipeline use cases: staging
// remote documents to disk, syncing them into storage and the catalog,
// detecting insurance applications, and running the policy audit flow.
package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/alfrecampione/golden-review-backend/internal/catalyst"
	"github.com/alfrecampione/golden-review-backend/internal/entity"
	"github.com/alfrecampione/golden-review-backend/observability"
)

// DocumentFetcher is the subset of the Catalyst client the materializer
// needs to pull document content.
type DocumentFetcher interface {
	FetchRaw(ctx context.Context, documentID string) (*catalyst.RawPayload, error)
	FetchProperties(ctx context.Context, documentID string) (*catalyst.PropertiesDocument, error)
}

// MaterializedFile describes a document staged on local disk.
type MaterializedFile struct {
	Path               string
	ContentType        string
	Size               int64
	Mode               string
	ContentDisposition string
}

// Materializer stages remote documents into a local scratch directory.
// It tries the raw-bytes endpoint first and falls back to the base64
// properties endpoint when the raw response is missing or is a JSON/HTML
// error body served with a success status.
type Materializer struct {
	fetcher DocumentFetcher
	logger  observability.Logger
	metrics observability.Metrics
}

// NewMaterializer creates a materializer over the given fetcher.
func NewMaterializer(fetcher DocumentFetcher, logger observability.Logger, metrics observability.Metrics) *Materializer {
	return &Materializer{fetcher: fetcher, logger: logger, metrics: metrics}
}

// Materialize stages one document under dir and returns where it landed.
func (m *Materializer) Materialize(ctx context.Context, dir string, doc entity.RemoteDocument) (*MaterializedFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging dir: %w", err)
	}

	staged, rawErr := m.materializeRaw(ctx, dir, doc)
	if rawErr == nil {
		return staged, nil
	}

	m.logger.Debug(ctx, "raw fetch unusable, falling back to properties", observability.Fields{
		"document_id": doc.ID,
		"reason":      rawErr.Error(),
	})

	staged, propErr := m.materializeProperties(ctx, dir, doc)
	if propErr != nil {
		m.metrics.RecordError("materializer", "both_strategies_failed")
		return nil, fmt.Errorf("document %s: raw: %v; properties: %w", doc.ID, rawErr, propErr)
	}
	return staged, nil
}

func (m *Materializer) materializeRaw(ctx context.Context, dir string, doc entity.RemoteDocument) (*MaterializedFile, error) {
	payload, err := m.fetcher.FetchRaw(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if !payload.OK() {
		return nil, fmt.Errorf("raw endpoint returned HTTP %d", payload.Status)
	}
	if looksLikeErrorPayload(payload.Data) {
		return nil, fmt.Errorf("raw endpoint returned an error body with HTTP %d", payload.Status)
	}

	contentType := payload.ContentType
	if contentType == "" {
		contentType = doc.ContentType
	}

	path, err := m.writeStaged(dir, doc.FileName, doc.ID, contentType, payload.Data)
	if err != nil {
		return nil, err
	}

	m.metrics.RecordSuccess("materializer.raw")
	return &MaterializedFile{
		Path:               path,
		ContentType:        contentType,
		Size:               int64(len(payload.Data)),
		Mode:               entity.DownloadModeRaw,
		ContentDisposition: payload.ContentDisposition,
	}, nil
}

func (m *Materializer) materializeProperties(ctx context.Context, dir string, doc entity.RemoteDocument) (*MaterializedFile, error) {
	props, err := m.fetcher.FetchProperties(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	encoded := props.ContentBase64()
	if encoded == "" {
		return nil, fmt.Errorf("properties response carries no file content")
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode file content: %w", err)
	}

	name := props.Name()
	if name == "" {
		name = doc.FileName
	}
	contentType := props.Type()
	if contentType == "" {
		contentType = doc.ContentType
	}

	path, err := m.writeStaged(dir, name, doc.ID, contentType, data)
	if err != nil {
		return nil, err
	}

	m.metrics.RecordSuccess("materializer.properties")
	return &MaterializedFile{
		Path:        path,
		ContentType: contentType,
		Size:        int64(len(data)),
		Mode:        entity.DownloadModeProperties,
	}, nil
}

// writeStaged writes content under dir using a sanitized, deduplicated
// file name.
func (m *Materializer) writeStaged(dir, reportedName, documentID, contentType string, data []byte) (string, error) {
	name := stagedFileName(reportedName, documentID, contentType)
	path := dedupePath(filepath.Join(dir, name))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write staged file: %w", err)
	}
	return path, nil
}

// illegalNameChars matches characters that are unsafe in file names.
var illegalNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

const maxNameLength = 180

// sanitizeName makes a provider-reported file name safe for local disk.
func sanitizeName(name string) string {
	clean := illegalNameChars.ReplaceAllString(name, "_")
	clean = strings.TrimSpace(clean)
	if len(clean) > maxNameLength {
		clean = clean[:maxNameLength]
	}
	return clean
}

// extByContentType maps the document types the provider actually serves.
var extByContentType = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
	"application/vnd.ms-excel": ".xls",
	"text/plain":               ".txt",
}

// inferExt picks a file extension from the content type.
func inferExt(contentType string) string {
	mediaType := contentType
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	return extByContentType[strings.ToLower(strings.TrimSpace(mediaType))]
}

// stagedFileName builds the on-disk name for a staged document, falling
// back to the document id when the provider reported no usable name.
func stagedFileName(reportedName, documentID, contentType string) string {
	name := sanitizeName(reportedName)
	if name == "" || name == "." {
		name = documentID
	}
	if filepath.Ext(name) == "" {
		name += inferExt(contentType)
	}
	return name
}

// dedupePath qualifies path with -1, -2, ... when a file already exists
// there, so two documents with the same reported name both survive.
func dedupePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// looksLikeErrorPayload sniffs whether supposedly-binary content is
// actually a JSON or HTML error body the provider served with HTTP 200.
func looksLikeErrorPayload(data []byte) bool {
	head := data
	if len(head) > 200 {
		head = head[:200]
	}
	probe := strings.ToLower(strings.TrimSpace(string(head)))
	return strings.HasPrefix(probe, "{") ||
		strings.Contains(probe, "<!doctype") ||
		strings.Contains(probe, "<html")
}
