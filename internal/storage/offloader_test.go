package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfrecampione/golden-review-backend/observability"
)

// memStorage is an in-memory ObjectStorage for tests.
type memStorage struct {
	objects map[string][]byte
	putErr  error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) Put(ctx context.Context, key string, reader io.Reader, metadata ObjectMetadata) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	for key, data := range m.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			infos = append(infos, ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return infos, nil
}

func (m *memStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func testOffloader(store ObjectStorage) *Offloader {
	return NewOffloader(store, "audit-files", "us-east-1", observability.NewDiscardLogger(), observability.NoopMetrics{})
}

func stageFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestUploadUsesDeterministicKey(t *testing.T) {
	store := newMemStorage()
	o := testOffloader(store)

	path := stageFile(t, "application.pdf", []byte("%PDF-1.4"))
	url, err := o.Upload(context.Background(), path, "123", "f1", "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "https://audit-files.s3.us-east-1.amazonaws.com/123/f1.pdf", url)
	assert.Equal(t, []byte("%PDF-1.4"), store.objects["123/f1.pdf"])

	// Staged file is removed after a successful upload
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUploadWithoutDocumentIDQualifiesKey(t *testing.T) {
	store := newMemStorage()
	o := testOffloader(store)
	o.now = func() time.Time { return time.UnixMilli(1700000000000) }

	path := stageFile(t, "scan.png", []byte("png-bytes"))
	url, err := o.Upload(context.Background(), path, "123", "", "image/png")
	require.NoError(t, err)

	assert.Equal(t, "https://audit-files.s3.us-east-1.amazonaws.com/123/scan_1700000000000.png", url)
}

func TestUploadFailureKeepsLocalFile(t *testing.T) {
	store := newMemStorage()
	store.putErr = errors.New("s3 down")
	o := testOffloader(store)

	path := stageFile(t, "application.pdf", []byte("%PDF-1.4"))
	_, err := o.Upload(context.Background(), path, "123", "f1", "application/pdf")
	require.Error(t, err)

	// The staged copy survives a failed upload
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}
