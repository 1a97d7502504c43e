package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-parser/constants"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     constants.FileType
		wantErr  bool
	}{
		{"jpg", "receipt.jpg", constants.IMAGE, false},
		{"jpeg upper", "RECEIPT.JPEG", constants.IMAGE, false},
		{"png", "scan.png", constants.IMAGE, false},
		{"gif", "a.b.gif", constants.IMAGE, false},
		{"bmp mixed case", "photo.BmP", constants.IMAGE, false},
		{"pdf", "/tmp/bill.PDF", constants.PDF, false},
		{"txt", "notes.txt", constants.TEXT, false},
		{"docx", "file.docx", "", true},
		{"heic", "phone.heic", "", true},
		{"no extension", "README", "", true},
		{"trailing dot", "receipt.", "", true},
		{"dotfile", ".pdf", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.filename)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedFileType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func openStore(t *testing.T) *LocalStore {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenLocalStore(filepath.Join(dir, "raw"), filepath.Join(dir, "index", "landing.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLocalStoreSaveAndRead(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	content := []byte("Total: $12.00")
	first, err := store.Save(ctx, content, "lunch.txt")
	require.NoError(t, err)
	assert.False(t, first.Deduplicated)
	assert.Equal(t, "lunch.txt", first.OriginalFilename)
	assert.Equal(t, first.HashHex[:2]+"/"+first.HashHex+".txt", first.Location)

	again, err := store.Save(ctx, content, "renamed.txt")
	require.NoError(t, err)
	assert.True(t, again.Deduplicated)
	assert.Equal(t, first.Location, again.Location)
	assert.Equal(t, "renamed.txt", again.OriginalFilename)

	indexed, ok, err := store.Lookup(first.HashHex)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "lunch.txt", indexed.OriginalFilename)

	data, err := store.Read(ctx, first.Location)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestLocalStoreReadErrors(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	_, err := store.Read(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = store.Read(ctx, "ab/missing.txt")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestIngestDirectory(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	write := func(rel, body string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	write("a.txt", "Total: $1.00")
	write("nested/b.TXT", "Total: $2.00")
	write("nested/dup.txt", "Total: $1.00")
	write("ignored.docx", "nope")
	write(".hidden/c.txt", "Total: $3.00")

	ing := NewFSIngestor(openStore(t), nil)
	results, stats, err := ing.IngestDirectory(ctx, root, true)
	require.NoError(t, err)

	assert.Len(t, results, 3)
	assert.EqualValues(t, 3, stats.Matched)
	assert.EqualValues(t, 3, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Deduplicated)
	assert.EqualValues(t, 0, stats.Failed)
}

func TestIngestPathRejectsUnsupported(t *testing.T) {
	p := filepath.Join(t.TempDir(), "file.docx")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	_, err := NewFSIngestor(openStore(t), nil).IngestPath(context.Background(), p)
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestStartWatcherInitialScan(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "r.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip.doc"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true})
	require.NoError(t, err)

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "r.txt"), p)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial scan event")
	}
}

func TestStartWatcherNoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}
