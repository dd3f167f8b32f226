package hotpad

import (
	"github.com/himanishpuri/HotRandomPad/internal/storage"
)

// NewSQLiteStorage opens (creating if needed) the sqlite database at dbPath.
// An empty dbPath uses $HOTPAD_DB_PATH or the default file name.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	if dbPath == "" {
		return storage.NewDBClient()
	}
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return db, nil
}
