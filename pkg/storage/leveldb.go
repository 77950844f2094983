package storage

import (
	"context"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// LevelDBStore is a ContentStore backed by a local LevelDB database.
// Keys are CIDs, values are the raw content bytes.
type LevelDBStore struct {
	db     *leveldb.DB
	logger *logger.Logger
}

// NewLevelDBStore opens (or creates) a LevelDB-backed content store at path
func NewLevelDBStore(path string, log *logger.Logger) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to open content store", err)
	}

	log.WithComponent("storage").WithField("path", path).Info("Content store opened")
	return &LevelDBStore{db: db, logger: log}, nil
}

// Put stores the content and returns its CID
func (s *LevelDBStore) Put(_ context.Context, data []byte) (string, error) {
	cid, err := ComputeCID(data)
	if err != nil {
		return "", err
	}

	if err := s.db.Put([]byte(cid), data, nil); err != nil {
		return "", types.NewInternalError(types.ErrCodeInternalError, "failed to store content", err)
	}

	return cid, nil
}

// Get resolves a CID to its content bytes
func (s *LevelDBStore) Get(_ context.Context, cid string) ([]byte, error) {
	data, err := s.db.Get([]byte(cid), nil)
	if err != nil {
		if err == lerrors.ErrNotFound {
			return nil, types.NewNotFoundError(types.ErrCodeRecordNotFound, "content not found: "+cid)
		}
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to read content", err)
	}
	return data, nil
}

// Has reports whether the store holds content for the given CID
func (s *LevelDBStore) Has(_ context.Context, cid string) (bool, error) {
	ok, err := s.db.Has([]byte(cid), nil)
	if err != nil {
		return false, types.NewInternalError(types.ErrCodeInternalError, "failed to probe content store", err)
	}
	return ok, nil
}

// Close closes the underlying database
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
