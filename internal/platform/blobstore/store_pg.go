package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGBlobStore keeps images in the images table.
type PGBlobStore struct {
	pool *pgxpool.Pool
}

func NewPGBlobStore(pool *pgxpool.Pool) *PGBlobStore {
	return &PGBlobStore{pool: pool}
}

const metaCols = `id, file_name, content_type, size, hash, created_by, created_at`

func (s *PGBlobStore) Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO images (id, file_name, content_type, size, hash, created_by, created_at, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		meta.ID, meta.FileName, meta.ContentType, meta.Size, meta.Hash, meta.CreatedBy, meta.CreatedAt, data)
	if err != nil {
		return nil, fmt.Errorf("insert image: %w", err)
	}
	return &meta, nil
}

func (s *PGBlobStore) Download(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	var m BlobMetadata
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT `+metaCols+`, content FROM images WHERE id = $1`, id).
		Scan(&m.ID, &m.FileName, &m.ContentType, &m.Size, &m.Hash, &m.CreatedBy, &m.CreatedAt, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("select image: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), &m, nil
}

func (s *PGBlobStore) GetMetadata(ctx context.Context, id string) (*BlobMetadata, error) {
	var m BlobMetadata
	err := s.pool.QueryRow(ctx, `SELECT `+metaCols+` FROM images WHERE id = $1`, id).
		Scan(&m.ID, &m.FileName, &m.ContentType, &m.Size, &m.Hash, &m.CreatedBy, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("select image metadata: %w", err)
	}
	return &m, nil
}

func (s *PGBlobStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlobNotFound
	}
	return nil
}
