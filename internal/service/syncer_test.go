package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfrecampione/golden-review-backend/internal/entity"
	"github.com/alfrecampione/golden-review-backend/observability"
)

type fakeLister struct {
	docs []entity.RemoteDocument
	err  error
}

func (f *fakeLister) ListAllDocuments(ctx context.Context, customerID string) ([]entity.RemoteDocument, error) {
	return f.docs, f.err
}

type fakeMaterializer struct {
	files   map[string]*MaterializedFile
	failIDs map[string]bool
	calls   []string
}

func (f *fakeMaterializer) Materialize(ctx context.Context, dir string, doc entity.RemoteDocument) (*MaterializedFile, error) {
	f.calls = append(f.calls, doc.ID)
	if f.failIDs[doc.ID] {
		return nil, errors.New("materialize failed")
	}
	if file, ok := f.files[doc.ID]; ok {
		return file, nil
	}
	return &MaterializedFile{
		Path:        filepath.Join(dir, doc.ID+".pdf"),
		ContentType: "application/pdf",
		Size:        100,
		Mode:        entity.DownloadModeRaw,
	}, nil
}

type fakeOffloader struct {
	err   error
	calls []string
}

func (f *fakeOffloader) Upload(ctx context.Context, localPath, customerID, documentID, contentType string) (string, error) {
	f.calls = append(f.calls, documentID)
	if f.err != nil {
		return "", f.err
	}
	return "https://bucket.s3.us-east-1.amazonaws.com/" + customerID + "/" + documentID + ".pdf", nil
}

// fakeCatalog implements CatalogStore and records upserts. It also acts
// as its own transaction.
type fakeCatalog struct {
	existing  map[string]struct{}
	entries   []entity.CatalogEntry
	upserted  []*entity.CatalogEntry
	began     int
	committed int
	rolled    int
}

func (f *fakeCatalog) Begin(ctx context.Context) (CatalogTx, error) {
	f.began++
	return f, nil
}

func (f *fakeCatalog) ExistingIDs(ctx context.Context, contactID int64) (map[string]struct{}, error) {
	if f.existing == nil {
		return map[string]struct{}{}, nil
	}
	return f.existing, nil
}

func (f *fakeCatalog) ListByContact(ctx context.Context, contactID int64) ([]entity.CatalogEntry, error) {
	return f.entries, nil
}

func (f *fakeCatalog) Upsert(ctx context.Context, e *entity.CatalogEntry) error {
	f.upserted = append(f.upserted, e)
	return nil
}

func (f *fakeCatalog) Commit() error {
	f.committed++
	return nil
}

func (f *fakeCatalog) Rollback() error {
	f.rolled++
	return nil
}

type fakeChecker struct {
	results map[string]*entity.DetectionResult
	err     error
	calls   []string
}

func (f *fakeChecker) CheckReference(ctx context.Context, s3URL string) (*entity.DetectionResult, error) {
	f.calls = append(f.calls, s3URL)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[s3URL]; ok {
		return r, nil
	}
	return &entity.DetectionResult{}, nil
}

func recentTime(t *testing.T) *time.Time {
	t.Helper()
	ts := time.Now().Add(-24 * time.Hour)
	return &ts
}

func staleTime(t *testing.T) *time.Time {
	t.Helper()
	ts := time.Now().Add(-2 * 365 * 24 * time.Hour)
	return &ts
}

func newSyncer(t *testing.T, lister DocumentLister, mat DocumentMaterializer, off DocumentOffloader, cat CatalogStore, chk ReferenceChecker) *SyncOrchestrator {
	t.Helper()
	return NewSyncOrchestrator(
		lister, mat, off, cat, chk,
		t.TempDir(), 365*24*time.Hour,
		observability.NewDiscardLogger(), observability.NoopMetrics{},
	)
}

func TestSyncIngestsOnlyNewRecentDocuments(t *testing.T) {
	lister := &fakeLister{docs: []entity.RemoteDocument{
		{ID: "f1", FileName: "new.pdf", CreatedOn: recentTime(t)},
		{ID: "f2", FileName: "known.pdf", CreatedOn: recentTime(t)},
		{ID: "f3", FileName: "ancient.pdf", CreatedOn: staleTime(t)},
		{ID: "f4", FileName: "undated.pdf"},
	}}
	mat := &fakeMaterializer{}
	off := &fakeOffloader{}
	cat := &fakeCatalog{existing: map[string]struct{}{"f2": {}}}

	s := newSyncer(t, lister, mat, off, cat, nil)
	report, err := s.SyncCustomer(context.Background(), "123")
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalDocs)
	assert.Equal(t, 2, report.FilteredDocs)
	assert.Equal(t, 1, report.NewDocs)
	assert.Equal(t, 1, report.Uploaded)

	require.Len(t, cat.upserted, 1)
	entry := cat.upserted[0]
	assert.Equal(t, "f1", entry.FileID)
	assert.Equal(t, int64(123), entry.ContactID)
	require.NotNil(t, entry.S3URL)
	assert.Equal(t, "https://bucket.s3.us-east-1.amazonaws.com/123/f1.pdf", *entry.S3URL)
	require.NotNil(t, entry.DownloadMode)
	assert.Equal(t, entity.DownloadModeRaw, *entry.DownloadMode)
	assert.Equal(t, 1, cat.committed)
}

func TestSyncNoOpWhenNothingNew(t *testing.T) {
	lister := &fakeLister{docs: []entity.RemoteDocument{
		{ID: "f1", CreatedOn: recentTime(t)},
	}}
	mat := &fakeMaterializer{}
	cat := &fakeCatalog{existing: map[string]struct{}{"f1": {}}}

	s := newSyncer(t, lister, mat, &fakeOffloader{}, cat, nil)
	report, err := s.SyncCustomer(context.Background(), "123")
	require.NoError(t, err)

	assert.Equal(t, 0, report.NewDocs)
	assert.Zero(t, cat.began)
	assert.Empty(t, mat.calls)
}

func TestSyncIsIdempotent(t *testing.T) {
	lister := &fakeLister{docs: []entity.RemoteDocument{
		{ID: "f1", CreatedOn: recentTime(t)},
	}}
	cat := &fakeCatalog{}

	s := newSyncer(t, lister, &fakeMaterializer{}, &fakeOffloader{}, cat, nil)

	first, err := s.SyncCustomer(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, 1, first.NewDocs)

	// Second run sees f1 in the catalog and does nothing
	cat.existing = map[string]struct{}{"f1": {}}
	second, err := s.SyncCustomer(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, 0, second.NewDocs)
	assert.Len(t, cat.upserted, 1)
}

func TestSyncSwallowsPerDocumentFailures(t *testing.T) {
	lister := &fakeLister{docs: []entity.RemoteDocument{
		{ID: "bad", CreatedOn: recentTime(t)},
		{ID: "good", CreatedOn: recentTime(t)},
	}}
	mat := &fakeMaterializer{failIDs: map[string]bool{"bad": true}}
	cat := &fakeCatalog{}

	s := newSyncer(t, lister, mat, &fakeOffloader{}, cat, nil)
	report, err := s.SyncCustomer(context.Background(), "123")
	require.NoError(t, err)

	assert.Equal(t, 2, report.NewDocs)
	assert.Equal(t, 1, report.Uploaded)
	require.Len(t, cat.upserted, 1)
	assert.Equal(t, "good", cat.upserted[0].FileID)
	assert.Equal(t, 1, cat.committed)
}

func TestSyncRecordsDocumentWhenUploadFails(t *testing.T) {
	lister := &fakeLister{docs: []entity.RemoteDocument{
		{ID: "f1", CreatedOn: recentTime(t)},
	}}
	off := &fakeOffloader{err: errors.New("s3 down")}
	cat := &fakeCatalog{}

	s := newSyncer(t, lister, &fakeMaterializer{}, off, cat, nil)
	report, err := s.SyncCustomer(context.Background(), "123")
	require.NoError(t, err)

	assert.Equal(t, 0, report.Uploaded)
	require.Len(t, cat.upserted, 1)
	assert.Nil(t, cat.upserted[0].S3URL)
}

func TestSyncRejectsNonNumericCustomerID(t *testing.T) {
	s := newSyncer(t, &fakeLister{}, &fakeMaterializer{}, &fakeOffloader{}, &fakeCatalog{}, nil)

	_, err := s.SyncCustomer(context.Background(), "not-a-number")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCustomerID)
}

func TestSyncDetectsApplicationInFreshPDF(t *testing.T) {
	lister := &fakeLister{docs: []entity.RemoteDocument{
		{ID: "f1", CreatedOn: recentTime(t)},
	}}
	url := "https://bucket.s3.us-east-1.amazonaws.com/123/f1.pdf"
	chk := &fakeChecker{results: map[string]*entity.DetectionResult{
		url: {Found: true, FileKey: "123/f1.pdf", S3URL: url, Carrier: "progressive"},
	}}

	s := newSyncer(t, lister, &fakeMaterializer{}, &fakeOffloader{}, &fakeCatalog{}, chk)
	report, err := s.SyncCustomer(context.Background(), "123")
	require.NoError(t, err)

	require.Len(t, report.Applications, 1)
	assert.Equal(t, "progressive", report.Applications[0].Carrier)
	assert.Equal(t, []string{url}, chk.calls)
}

func TestSyncDetectionErrorIsNotFatal(t *testing.T) {
	lister := &fakeLister{docs: []entity.RemoteDocument{
		{ID: "f1", CreatedOn: recentTime(t)},
	}}
	chk := &fakeChecker{err: errors.New("fitz exploded")}

	s := newSyncer(t, lister, &fakeMaterializer{}, &fakeOffloader{}, &fakeCatalog{}, chk)
	report, err := s.SyncCustomer(context.Background(), "123")
	require.NoError(t, err)
	assert.Empty(t, report.Applications)
}
