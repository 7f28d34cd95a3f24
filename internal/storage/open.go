package storage

import "fmt"

// Open returns the backend named by backend, rooted at path. For the file
// backend path is a directory; for sqlite it is the database file.
func Open(backend, path string) (Storage, error) {
	switch backend {
	case BackendFile, "":
		return NewFile(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}

var (
	_ Storage = (*File)(nil)
	_ Storage = (*SQLite)(nil)
)
