package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/datallboy/gothumb/internal/domain"
)

// ImageRecord is the metadata row kept for every stored image.
type ImageRecord struct {
	Key         string
	URL         string
	Size        int64
	ContentHash string
	CreatedAt   time.Time
	AccessedAt  time.Time
}

type Stats struct {
	Images     int64 `json:"images"`
	TotalBytes int64 `json:"total_bytes"`
}

// Get returns the stored bytes for url and bumps its access time.
// A blob that is missing or no longer matches its recorded hash is dropped and reported as ErrNotFound.
func (s *PersistentStore) Get(ctx context.Context, url string) ([]byte, error) {
	rec, err := s.Lookup(ctx, url)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.blobPath(rec.Key))
	if errors.Is(err, os.ErrNotExist) {
		// Row without a blob: drop the row so the next Put starts clean
		_, _ = s.db.ExecContext(ctx, s.rebind(`DELETE FROM images WHERE key = ?`), rec.Key)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	hash, err := domain.CalculateFileHash(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to hash blob: %w", err)
	}
	if hash != rec.ContentHash {
		if err := s.Delete(ctx, url); err != nil {
			return nil, fmt.Errorf("failed to drop corrupt blob: %w", err)
		}
		return nil, ErrNotFound
	}

	_, _ = s.db.ExecContext(ctx, s.rebind(`UPDATE images SET accessed_at = ? WHERE key = ?`), time.Now().Unix(), rec.Key)
	return data, nil
}

// Put writes the blob first, then upserts its metadata row.
func (s *PersistentStore) Put(ctx context.Context, url string, data []byte) error {
	key := domain.URLKey(url)

	hash, err := domain.CalculateFileHash(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to hash image: %w", err)
	}

	tmp, err := os.CreateTemp(s.blobDir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create blob: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.blobPath(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to commit blob: %w", err)
	}

	now := time.Now().Unix()
	query := `INSERT INTO images (key, url, size, content_hash, created_at, accessed_at)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT (key) DO UPDATE SET
                size = excluded.size,
                content_hash = excluded.content_hash,
                accessed_at = excluded.accessed_at`

	_, err = s.db.ExecContext(ctx, s.rebind(query), key, url, len(data), hash, now, now)
	return err
}

// Lookup returns the metadata row for url.
func (s *PersistentStore) Lookup(ctx context.Context, url string) (*ImageRecord, error) {
	query := `
			SELECT key, url, size, content_hash, created_at, accessed_at
			FROM images
			WHERE key = ? LIMIT 1`

	rec := &ImageRecord{}
	var created, accessed int64
	err := s.db.QueryRowContext(ctx, s.rebind(query), domain.URLKey(url)).
		Scan(&rec.Key, &rec.URL, &rec.Size, &rec.ContentHash, &created, &accessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.CreatedAt = time.Unix(created, 0)
	rec.AccessedAt = time.Unix(accessed, 0)
	return rec, nil
}

func (s *PersistentStore) Delete(ctx context.Context, url string) error {
	key := domain.URLKey(url)
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM images WHERE key = ?`), key); err != nil {
		return err
	}
	if err := os.Remove(s.blobPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *PersistentStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size), 0) FROM images`).
		Scan(&st.Images, &st.TotalBytes)
	return st, err
}
