package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alfrecampione/golden-review-backend/observability"
)

// Offloader durably persists staged document files to object storage
// under a stable per-customer key and returns the public reference URL.
type Offloader struct {
	store   ObjectStorage
	bucket  string
	region  string
	logger  observability.Logger
	metrics observability.Metrics

	// now is injectable for tests (timestamp-qualified fallback keys)
	now func() time.Time
}

// NewOffloader creates an offloader over the given object storage.
func NewOffloader(store ObjectStorage, bucket, region string, logger observability.Logger, metrics observability.Metrics) *Offloader {
	return &Offloader{
		store:   store,
		bucket:  bucket,
		region:  region,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Upload moves a staged local file into object storage and removes the
// local copy once the upload succeeded. The key is deterministic —
// {customerID}/{documentID}{ext} — so re-running a sync overwrites the
// same object instead of accumulating copies. Without a document id the
// key is timestamp-qualified to avoid collisions.
func (o *Offloader) Upload(ctx context.Context, localPath, customerID, documentID, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open staged file: %w", err)
	}

	key := o.objectKey(localPath, customerID, documentID)

	err = o.store.Put(ctx, key, f, ObjectMetadata{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"contact_id": customerID,
			"file_id":    documentID,
		},
	})
	f.Close()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	// The staged copy is only removed after a successful upload so a
	// failed run can retry from disk.
	if err := os.Remove(localPath); err != nil {
		o.logger.Warn(ctx, "failed to remove staged file after upload", observability.Fields{
			"path": localPath,
		})
	}

	return o.ReferenceURL(key), nil
}

// ReferenceURL returns the public URL for a stored object key.
func (o *Offloader) ReferenceURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", o.bucket, o.region, key)
}

func (o *Offloader) objectKey(localPath, customerID, documentID string) string {
	fileName := filepath.Base(localPath)
	ext := filepath.Ext(fileName)

	var unique string
	if documentID != "" {
		unique = documentID + ext
	} else {
		base := fileName[:len(fileName)-len(ext)]
		unique = fmt.Sprintf("%s_%d%s", base, o.now().UnixMilli(), ext)
	}

	return customerID + "/" + unique
}
