package storage

import (
	"fmt"
	"path/filepath"

	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/storage/sqlite"
)

var (
	_ Provider = (*JSONStore)(nil)
	_ Provider = (*sqlite.Store)(nil)
)

// New returns the provider for backend, storing its file under dataDir.
func New(backend constants.Backend, dataDir string) (Provider, error) {
	switch backend {
	case constants.BackendSQLite:
		return sqlite.NewStore(filepath.Join(dataDir, constants.SQLiteFileName)), nil
	case constants.BackendJSON:
		return NewJSONStore(filepath.Join(dataDir, constants.JSONFileName)), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", backend)
	}
}
