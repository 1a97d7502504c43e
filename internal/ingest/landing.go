package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/joseph-ayodele/receipt-parser/internal/common"
)

const filesBucket = "files"

// StoredFile describes one landed upload.
type StoredFile struct {
	Location         string    `json:"location"`
	OriginalFilename string    `json:"original_filename"`
	HashHex          string    `json:"hash"`
	Size             int64     `json:"size"`
	StoredAt         time.Time `json:"stored_at"`
	Deduplicated     bool      `json:"-"`
}

// Landing is the contract for storing raw uploads and reading them back.
type Landing interface {
	Save(ctx context.Context, content []byte, filename string) (StoredFile, error)
	Read(ctx context.Context, location string) ([]byte, error)
}

// LocalStore keeps uploads on the local filesystem, content-addressed by sha256,
// with a bbolt index so identical bytes land once.
type LocalStore struct {
	dir    string
	db     *bbolt.DB
	logger *slog.Logger
}

// OpenLocalStore creates dir if needed and opens the index at indexPath.
func OpenLocalStore(dir, indexPath string, logger *slog.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating landing directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := bbolt.Open(indexPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening landing index: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(filesBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &LocalStore{dir: dir, db: db, logger: logger}, nil
}

// Save writes content under a hash-derived location. Saving the same bytes
// again returns the first location with Deduplicated set, named after the
// new upload.
func (s *LocalStore) Save(ctx context.Context, content []byte, filename string) (StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return StoredFile{}, err
	}
	sum := sha256.Sum256(content)
	hashHex := hex.EncodeToString(sum[:])

	if existing, ok, err := s.Lookup(hashHex); err != nil {
		return StoredFile{}, err
	} else if ok {
		existing.Deduplicated = true
		existing.OriginalFilename = filepath.Base(filename)
		s.logger.Debug("landing dedup hit", "hash", hashHex, "location", existing.Location)
		return existing, nil
	}

	name := hashHex
	if ext := extOf(filename); ext != "" {
		name += "." + ext
	}
	loc := hashHex[:2] + "/" + name
	full := filepath.Join(s.dir, filepath.FromSlash(loc))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return StoredFile{}, fmt.Errorf("creating landing shard: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return StoredFile{}, fmt.Errorf("writing file: %w", err)
	}

	rec := StoredFile{
		Location:         loc,
		OriginalFilename: filepath.Base(filename),
		HashHex:          hashHex,
		Size:             int64(len(content)),
		StoredAt:         time.Now().UTC(),
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling index entry: %w", err)
		}
		return tx.Bucket([]byte(filesBucket)).Put([]byte(hashHex), data)
	})
	if err != nil {
		return StoredFile{}, err
	}

	s.logger.Info("landed file", "file_name", rec.OriginalFilename, "location", loc, "size", rec.Size)
	return rec, nil
}

// Lookup finds a landed file by content hash.
func (s *LocalStore) Lookup(hashHex string) (StoredFile, bool, error) {
	var rec StoredFile
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(filesBucket)).Get([]byte(hashHex))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return StoredFile{}, false, fmt.Errorf("reading landing index: %w", err)
	}
	return rec, found, nil
}

// Read returns the bytes stored at location.
func (s *LocalStore) Read(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel := filepath.FromSlash(location)
	if !filepath.IsLocal(rel) {
		return nil, common.NewAppError("INVALID_LOCATION", location, common.ErrInvalidInput)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil, common.NewAppError("NOT_FOUND", location, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Close closes the index.
func (s *LocalStore) Close() error {
	return s.db.Close()
}
