// Package storage defines the key-value persistence abstraction that backs the
// record store.
package storage

// Storage is a small key-value store. Each Set replaces the whole value
// atomically with respect to concurrent readers.
type Storage interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)
	// Set writes value under key, replacing any previous value.
	Set(key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
	// Close releases backend resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)
