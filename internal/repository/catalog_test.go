package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfrecampione/golden-review-backend/internal/entity"
	"github.com/alfrecampione/golden-review-backend/observability"
)

func TestBuildUpsert(t *testing.T) {
	r := NewCatalogRepository(nil, observability.NewDiscardLogger(), observability.NoopMetrics{})

	name := "policy.pdf"
	mode := entity.DownloadModeRaw
	url := "https://bucket.s3.us-east-1.amazonaws.com/123/f1.pdf"
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	e := &entity.CatalogEntry{
		FileID:           "f1",
		ContactID:        123,
		FileNameReported: &name,
		CreatedOn:        &created,
		DownloadMode:     &mode,
		S3URL:            &url,
	}

	query, args, err := r.buildUpsert(e)
	require.NoError(t, err)

	assert.Contains(t, query, "INSERT INTO qq.contact_files")
	assert.Contains(t, query, "ON CONFLICT (file_id) DO UPDATE SET")
	assert.Contains(t, query, "s3_url = EXCLUDED.s3_url")
	assert.Contains(t, query, "updated_at = now()")
	assert.NotContains(t, query, "inserted_at = EXCLUDED")

	// One placeholder per catalog column, dollar-numbered for postgres
	assert.Len(t, args, len(catalogColumns))
	assert.Contains(t, query, "$20")
	assert.Equal(t, "f1", args[0])
	assert.Equal(t, int64(123), args[1])
}

func TestBuildUpsertNilDerivedFields(t *testing.T) {
	r := NewCatalogRepository(nil, observability.NewDiscardLogger(), observability.NoopMetrics{})

	e := &entity.CatalogEntry{FileID: "f2", ContactID: 456}
	_, args, err := r.buildUpsert(e)
	require.NoError(t, err)

	// Derived fields for a document that failed to materialize stay NULL
	assert.Nil(t, args[10]) // download_mode
	assert.Nil(t, args[11]) // s3_url
}
