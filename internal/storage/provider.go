// Package storage defines the repository file-system abstraction the scanner reads through.
package storage

import "time"

// FileInfo is the subset of file metadata callers need.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Provider is the interface for repository file operations.
// All paths are relative to the repository root and use forward slashes.
type Provider interface {
	// List returns, in lexicographic order, every regular file under dir whose
	// dir-relative path matches the doublestar pattern.
	List(dir, pattern string) ([]string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Stat returns size and modification time of the file at path.
	Stat(path string) (FileInfo, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
}
