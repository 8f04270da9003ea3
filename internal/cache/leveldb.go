package cache

import (
	"context"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
)

const levelPrefix = "e:"

// LevelDB stores entries in a goleveldb database.
type LevelDB struct {
	db *leveldb.DB
}

func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(_ context.Context, key string) ([]byte, error) {
	b, err := l.db.Get([]byte(levelPrefix+key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return b, err
}

func (l *LevelDB) Put(_ context.Context, key string, value []byte) error {
	return l.db.Put([]byte(levelPrefix+key), value, nil)
}

func (l *LevelDB) Delete(_ context.Context, key string) error {
	return l.db.Delete([]byte(levelPrefix+key), nil)
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}
