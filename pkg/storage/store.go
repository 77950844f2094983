package storage

import (
	"context"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/hashing"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// ContentStore is a content-addressable blob store. Put returns the
// CID of the stored content; Get resolves a CID back to the bytes.
// Content is immutable: a CID always resolves to the same bytes.
type ContentStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, cid string) ([]byte, error)
	Has(ctx context.Context, cid string) (bool, error)
	Close() error
}

// ComputeCID derives the content identifier for a blob. CIDs are the
// hex SHA-256 of the content, so Put is idempotent.
func ComputeCID(data []byte) (string, error) {
	cid, err := hashing.HashHex(data)
	if err != nil {
		return "", types.NewInternalError(types.ErrCodeInternalError, "failed to compute cid", err)
	}
	return cid, nil
}
