// Package testutil builds throwaway storage for tests. Everything runs on
// an in-memory LevelDB, so tests exercise the production storage code.
package testutil

import (
	"github.com/tolelom/purgechain/storage"
)

// NewMemDB opens an empty in-memory database. It panics on failure, which
// only happens if LevelDB itself is broken.
func NewMemDB() *storage.LevelDB {
	db, err := storage.NewMemLevelDB()
	if err != nil {
		panic(err)
	}
	return db
}

// NewMemBlockStore returns a block store over a fresh in-memory database.
func NewMemBlockStore() *storage.LevelBlockStore {
	return storage.NewLevelBlockStore(NewMemDB())
}

// NewStateDB returns a state over a fresh in-memory database.
func NewStateDB() *storage.StateDB {
	return storage.NewStateDB(NewMemDB())
}
