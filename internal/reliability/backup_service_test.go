package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	uploads map[string][]byte
	objects []types.Object
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: make(map[string][]byte)}
}

func (f *fakeStore) Upload(ctx context.Context, key string, body io.Reader, size int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.uploads[key] = data
	return nil
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]types.Object, error) {
	return f.objects, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func TestCreateAndUpload_ArchiveContents(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "beacon.db"), []byte("main data"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "cache.db"), []byte("cache data"), 0644))

	store := newFakeStore()
	svc := NewBackupService(store, dataDir, []string{"beacon.db", "cache.db"}, zerolog.Nop())

	require.NoError(t, svc.CreateAndUpload(context.Background()))
	require.Len(t, store.uploads, 1)

	var archive []byte
	for _, data := range store.uploads {
		archive = data
	}

	entries := readArchive(t, archive)
	assert.Equal(t, []byte("main data"), entries["beacon.db"])
	assert.Equal(t, []byte("cache data"), entries["cache.db"])

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(entries["backup-metadata.json"], &metadata))
	require.Len(t, metadata.Databases, 2)
	assert.Equal(t, "beacon.db", metadata.Databases[0].Filename)
	assert.Equal(t, int64(9), metadata.Databases[0].SizeBytes)
	assert.Contains(t, metadata.Databases[0].Checksum, "sha256:")
}

func TestCreateAndUpload_MissingDatabaseFails(t *testing.T) {
	store := newFakeStore()
	svc := NewBackupService(store, t.TempDir(), []string{"missing.db"}, zerolog.Nop())
	assert.Error(t, svc.CreateAndUpload(context.Background()))
	assert.Empty(t, store.uploads)
}

func TestListBackups_SortedNewestFirst(t *testing.T) {
	store := newFakeStore()
	store.objects = []types.Object{
		{Key: aws.String("beacon-backup-2026-08-01-030000.tar.gz"), Size: aws.Int64(100)},
		{Key: aws.String("beacon-backup-2026-08-20-030000.tar.gz"), Size: aws.Int64(200)},
		{Key: aws.String("not-a-backup.txt"), Size: aws.Int64(5)},
		{Key: aws.String("beacon-backup-garbled.tar.gz"), Size: aws.Int64(5)},
	}
	svc := NewBackupService(store, t.TempDir(), nil, zerolog.Nop())

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, "beacon-backup-2026-08-20-030000.tar.gz", backups[0].Filename)
	assert.Equal(t, int64(200), backups[0].SizeBytes)
}

func TestRotateOldBackups_KeepsNewestThree(t *testing.T) {
	store := newFakeStore()
	// Five backups, all far older than any retention window.
	names := []string{
		"beacon-backup-2020-01-05-030000.tar.gz",
		"beacon-backup-2020-01-04-030000.tar.gz",
		"beacon-backup-2020-01-03-030000.tar.gz",
		"beacon-backup-2020-01-02-030000.tar.gz",
		"beacon-backup-2020-01-01-030000.tar.gz",
	}
	for _, name := range names {
		store.objects = append(store.objects, types.Object{Key: aws.String(name), Size: aws.Int64(1)})
	}
	svc := NewBackupService(store, t.TempDir(), nil, zerolog.Nop())

	require.NoError(t, svc.RotateOldBackups(context.Background(), 30))
	assert.ElementsMatch(t, []string{names[3], names[4]}, store.deleted)
}

func TestRotateOldBackups_ZeroRetentionKeepsEverything(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 5; i++ {
		key := time.Date(2020, 1, i+1, 3, 0, 0, 0, time.UTC).Format("2006-01-02-150405")
		store.objects = append(store.objects, types.Object{
			Key: aws.String(backupPrefix + key + ".tar.gz"), Size: aws.Int64(1),
		})
	}
	svc := NewBackupService(store, t.TempDir(), nil, zerolog.Nop())

	require.NoError(t, svc.RotateOldBackups(context.Background(), 0))
	assert.Empty(t, store.deleted)
}

func TestParseBackupTimestamp(t *testing.T) {
	ts, ok := parseBackupTimestamp("beacon-backup-2026-08-30-031500.tar.gz")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 30, 3, 15, 0, 0, time.UTC), ts)

	_, ok = parseBackupTimestamp("other-file.tar.gz")
	assert.False(t, ok)
	_, ok = parseBackupTimestamp("beacon-backup-nonsense.tar.gz")
	assert.False(t, ok)
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer gz.Close()

	entries := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[header.Name] = content
	}
	return entries
}
